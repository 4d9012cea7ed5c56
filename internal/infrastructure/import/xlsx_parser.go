package csvimport

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// XLSXParser reads review rows from the first sheet of an Excel workbook
type XLSXParser struct {
	cfg parserConfig
}

// NewXLSXParser creates an Excel parser. Delimiter, quoting and encoding
// options have no effect on workbooks.
func NewXLSXParser(opts ...ParserOption) *XLSXParser {
	cfg := defaultParserConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &XLSXParser{cfg: cfg}
}

// Parse reads the workbook in data. Cell values are read raw, so dates come
// through as Excel serial numbers and are resolved by the Normalizer.
func (p *XLSXParser) Parse(data []byte) (*Table, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errUnreadableWorkbook.WithCause(err)
	}
	defer func() { _ = f.Close() }()

	sheet := p.cfg.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmptyFile
		}
		sheet = sheets[0]
	}

	// GetRows keeps empty rows, so the slice index maps to the sheet row
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, ErrMalformedRow.WithCause(fmt.Errorf("read sheet %q: %w", sheet, err))
	}

	return tableFromRows(rows, p.cfg)
}

// tableFromRows builds a Table from sheet rows, where rows[i] is sheet row
// i+1. The first non-blank row holds the headers.
func tableFromRows(rows [][]string, cfg parserConfig) (*Table, error) {
	headerIdx := -1
	for i, row := range rows {
		if !isBlankRecord(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, ErrEmptyFile
	}

	headers := make([]string, len(rows[headerIdx]))
	for i, h := range rows[headerIdx] {
		headers[i] = cleanHeader(h)
	}
	columns := cfg.aliases.ResolveHeaders(headers)
	if len(columns) == 0 {
		return nil, ErrMissingHeader
	}

	var records []*RawRecord
	for i := headerIdx + 1; i < len(rows); i++ {
		if isBlankRecord(rows[i]) {
			continue
		}
		records = append(records, buildRecord(i+1, headers, rows[i], cfg.trimSpace))
	}
	if len(records) == 0 {
		return nil, ErrNoDataRows
	}

	return &Table{Headers: headers, Columns: columns, Records: records}, nil
}
