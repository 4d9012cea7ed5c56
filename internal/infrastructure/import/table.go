package csvimport

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Table is the parsed content of a tabular upload
type Table struct {
	Headers []string
	Columns map[string]int
	Records []*RawRecord
}

// MissingColumns returns the required fields no header maps to
func (t *Table) MissingColumns() []string {
	var missing []string
	for _, field := range RequiredFields {
		if _, ok := t.Columns[field]; !ok {
			missing = append(missing, field)
		}
	}
	return missing
}

// FileKind is the detected format of an upload
type FileKind string

const (
	FileKindCSV  FileKind = "csv"
	FileKindXLSX FileKind = "xlsx"
	FileKindXLS  FileKind = "xls"
)

var (
	zipMagic  = []byte("PK\x03\x04")
	ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// SupportedExtensions lists the accepted upload extensions
var SupportedExtensions = []string{".csv", ".xlsx", ".xls"}

// IsSupportedFile checks the extension of an upload file name
func IsSupportedFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// DetectFileKind decides how to parse an upload from its name and content.
// Files named .xls are often OOXML workbooks or CSV exports in disguise, so
// the content decides.
func DetectFileKind(filename string, data []byte) (FileKind, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".csv":
		return FileKindCSV, nil
	case ".xlsx":
		return FileKindXLSX, nil
	case ".xls":
		switch {
		case bytes.HasPrefix(data, zipMagic):
			return FileKindXLSX, nil
		case bytes.HasPrefix(data, ole2Magic):
			return FileKindXLS, nil
		default:
			return FileKindCSV, nil
		}
	}
	return "", ErrUnsupportedFormat
}

// ParseTable parses CSV or Excel bytes into a Table
func ParseTable(filename string, data []byte, opts ...ParserOption) (*Table, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	kind, err := DetectFileKind(filename, data)
	if err != nil {
		return nil, err
	}

	switch kind {
	case FileKindXLSX:
		return NewXLSXParser(opts...).Parse(data)
	case FileKindXLS:
		return NewXLSParser(opts...).Parse(data)
	}

	parser, err := ParseFromBytes(data, opts...)
	if err != nil {
		return nil, err
	}
	return parser.Parse()
}
