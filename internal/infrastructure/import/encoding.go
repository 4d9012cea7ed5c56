package csvimport

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// maxReplacementRatio is the share of undecodable runes above which a legacy
// decode is considered wrong.
const maxReplacementRatio = 0.01

// decodeText returns data as UTF-8 with any byte-order mark removed.
// A declared encoding is honored; otherwise UTF-8 is assumed and EUC-KR
// (CP949) is tried when the bytes are not valid UTF-8.
func decodeText(data []byte, declared string) ([]byte, error) {
	if declared != "" {
		enc, err := lookupEncoding(declared)
		if err != nil {
			return nil, err
		}
		if enc != nil {
			out, err := enc.NewDecoder().Bytes(data)
			if err != nil {
				return nil, ErrInvalidEncoding.WithCause(err)
			}
			return bytes.TrimPrefix(out, utf8BOM), nil
		}
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, nil
	}

	out, err := korean.EUCKR.NewDecoder().Bytes(data)
	if err != nil {
		return nil, ErrInvalidEncoding.WithCause(err)
	}
	if replacementRatio(out) > maxReplacementRatio {
		return nil, ErrInvalidEncoding
	}
	return out, nil
}

// lookupEncoding resolves a WHATWG encoding label. UTF-8 labels resolve to
// nil, meaning no transcoding is needed.
func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "cp949", "ms949", "uhc":
		return korean.EUCKR, nil
	case "utf-16":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, ErrUnknownEncoding.WithCause(err)
	}
	return enc, nil
}

func replacementRatio(b []byte) float64 {
	total := utf8.RuneCount(b)
	if total == 0 {
		return 0
	}
	bad := strings.Count(string(b), string(utf8.RuneError))
	return float64(bad) / float64(total)
}
