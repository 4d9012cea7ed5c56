package csvimport

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// parserConfig holds the settings shared by the CSV and XLSX parsers
type parserConfig struct {
	delimiter  rune
	lazyQuotes bool
	trimSpace  bool
	encoding   string
	sheet      string
	aliases    AliasSet
}

func defaultParserConfig() parserConfig {
	return parserConfig{
		lazyQuotes: true,
		trimSpace:  true,
		aliases:    DefaultAliases(),
	}
}

// ParserOption is a functional option for parser configuration
type ParserOption func(*parserConfig)

// WithDelimiter sets the field delimiter. Without it the delimiter is
// sniffed from the header line.
func WithDelimiter(d rune) ParserOption {
	return func(c *parserConfig) {
		c.delimiter = d
	}
}

// WithLazyQuotes enables lazy quote handling
func WithLazyQuotes(lazy bool) ParserOption {
	return func(c *parserConfig) {
		c.lazyQuotes = lazy
	}
}

// WithTrimSpace enables trimming of leading/trailing spaces from fields
func WithTrimSpace(trim bool) ParserOption {
	return func(c *parserConfig) {
		c.trimSpace = trim
	}
}

// WithEncoding declares the text encoding of the file (e.g. "euc-kr")
func WithEncoding(name string) ParserOption {
	return func(c *parserConfig) {
		c.encoding = name
	}
}

// WithSheet selects a workbook sheet by name instead of the first one
func WithSheet(name string) ParserOption {
	return func(c *parserConfig) {
		c.sheet = name
	}
}

// WithAliases replaces the header alias set
func WithAliases(aliases AliasSet) ParserOption {
	return func(c *parserConfig) {
		if aliases != nil {
			c.aliases = aliases
		}
	}
}

// CSVParser handles parsing of delimited review files
type CSVParser struct {
	cfg        parserConfig
	headers    []string
	columns    map[string]int
	currentRow int
	lastLine   int // physical line the previous record ended on
	totalRows  int
	reader     *csv.Reader
}

// NewCSVParser creates a new CSV parser from a reader. The content is
// decoded to UTF-8 and a leading byte-order mark is removed.
func NewCSVParser(r io.Reader, opts ...ParserOption) (*CSVParser, error) {
	cfg := defaultParserConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmptyFile
	}

	content, err := decodeText(raw, cfg.encoding)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, ErrEmptyFile
	}

	if cfg.delimiter == 0 {
		cfg.delimiter = sniffDelimiter(content)
	}

	reader := csv.NewReader(bytes.NewReader(content))
	reader.Comma = cfg.delimiter
	reader.LazyQuotes = cfg.lazyQuotes
	reader.TrimLeadingSpace = cfg.trimSpace
	reader.FieldsPerRecord = -1 // Allow variable number of fields

	return &CSVParser{cfg: cfg, reader: reader}, nil
}

// ParseFromBytes creates a parser from a byte slice
func ParseFromBytes(data []byte, opts ...ParserOption) (*CSVParser, error) {
	return NewCSVParser(bytes.NewReader(data), opts...)
}

// sniffDelimiter picks tab or semicolon when the first line uses it and has no comma
func sniffDelimiter(content []byte) rune {
	line := content
	if i := bytes.IndexByte(content, '\n'); i >= 0 {
		line = content[:i]
	}
	if bytes.IndexByte(line, ',') >= 0 {
		return ','
	}
	if bytes.IndexByte(line, '\t') >= 0 {
		return '\t'
	}
	if bytes.IndexByte(line, ';') >= 0 {
		return ';'
	}
	return ','
}

// ParseHeader reads the first non-blank row as the header row. It fails with
// ErrMissingHeader when no header cell matches a known field.
func (p *CSVParser) ParseHeader() error {
	for {
		record, err := p.reader.Read()
		if err == io.EOF {
			return ErrMissingHeader
		}
		if err != nil {
			return p.malformed(err)
		}
		p.advance(record)
		if isBlankRecord(record) {
			continue
		}

		p.headers = make([]string, len(record))
		for i, h := range record {
			p.headers[i] = cleanHeader(h)
		}
		break
	}

	p.columns = p.cfg.aliases.ResolveHeaders(p.headers)
	if len(p.columns) == 0 {
		return ErrMissingHeader
	}
	return nil
}

// Headers returns the parsed header names
func (p *CSVParser) Headers() []string {
	return p.headers
}

// Columns maps canonical fields to the index of the header that serves them
func (p *CSVParser) Columns() map[string]int {
	return p.columns
}

// ReadRecord reads the next row. Blank rows are returned too; callers decide
// whether to skip them.
func (p *CSVParser) ReadRecord() (*RawRecord, error) {
	fields, err := p.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, p.malformed(err)
	}

	p.advance(fields)
	p.totalRows++

	return buildRecord(p.currentRow, p.headers, fields, p.cfg.trimSpace), nil
}

// advance moves currentRow to the record just read. Empty lines skipped by
// the reader still count as rows; newlines inside quoted cells do not.
func (p *CSVParser) advance(fields []string) {
	start, _ := p.reader.FieldPos(0)
	p.currentRow += 1 + max(start-p.lastLine-1, 0)

	last := len(fields) - 1
	end, _ := p.reader.FieldPos(last)
	p.lastLine = end + strings.Count(fields[last], "\n")
}

// ReadAll reads every remaining non-blank row
func (p *CSVParser) ReadAll() ([]*RawRecord, error) {
	var records []*RawRecord
	for {
		rec, err := p.ReadRecord()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if rec.IsBlank() {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// CurrentRow returns the spreadsheet row number of the last row read
func (p *CSVParser) CurrentRow() int {
	return p.currentRow
}

// TotalRows returns the total number of data rows read, blank rows included
func (p *CSVParser) TotalRows() int {
	return p.totalRows
}

// Parse reads the header and all data rows into a Table
func (p *CSVParser) Parse() (*Table, error) {
	if err := p.ParseHeader(); err != nil {
		return nil, err
	}
	records, err := p.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoDataRows
	}
	return &Table{Headers: p.headers, Columns: p.columns, Records: records}, nil
}

func (p *CSVParser) malformed(err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		row := p.currentRow + 1 + max(parseErr.StartLine-p.lastLine-1, 0)
		return ErrMalformedRow.WithMessage("%d행을 읽을 수 없습니다. 따옴표와 쉼표를 확인해 주세요", row).WithCause(err)
	}
	return ErrMalformedRow.WithCause(err)
}

// buildRecord maps cells to headers. Cells past the last header are dropped.
func buildRecord(row int, headers, cells []string, trim bool) *RawRecord {
	rec := NewRawRecord(row, SourceTabular)
	for i, header := range headers {
		value := ""
		if i < len(cells) {
			value = cells[i]
			if trim {
				value = trimSpaces(value)
			}
		}
		rec.Add(header, value)
	}
	return rec
}

func isBlankRecord(cells []string) bool {
	for _, c := range cells {
		if trimSpaces(c) != "" {
			return false
		}
	}
	return true
}

// cleanHeader trims a header cell and drops a stray BOM
func cleanHeader(h string) string {
	return trimSpaces(strings.TrimPrefix(h, "\ufeff"))
}

// trimSpaces trims whitespace from a string
func trimSpaces(s string) string {
	start := 0
	end := len(s)

	for start < end {
		r, size := utf8.DecodeRuneInString(s[start:])
		if !isWhitespace(r) {
			break
		}
		start += size
	}

	for end > start {
		r, size := utf8.DecodeLastRuneInString(s[:end])
		if !isWhitespace(r) {
			break
		}
		end -= size
	}

	return s[start:end]
}

// isWhitespace checks if a rune is whitespace, including the full-width
// space Korean spreadsheets often carry
func isWhitespace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f', '\u00a0', '\u3000':
		return true
	}
	return false
}
