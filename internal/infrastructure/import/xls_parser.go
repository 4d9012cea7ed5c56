package csvimport

import (
	"bytes"
	"fmt"

	"github.com/extrame/xls"
)

// XLSParser reads review rows from a legacy BIFF (.xls) workbook
type XLSParser struct {
	cfg parserConfig
}

// NewXLSParser creates a legacy Excel parser
func NewXLSParser(opts ...ParserOption) *XLSParser {
	cfg := defaultParserConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &XLSParser{cfg: cfg}
}

// Parse reads the first sheet, or the sheet chosen with WithSheet, of the
// workbook in data.
func (p *XLSParser) Parse(data []byte) (table *Table, err error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	// The BIFF reader panics on truncated or corrupt streams
	defer func() {
		if r := recover(); r != nil {
			table = nil
			err = errUnreadableWorkbook.WithCause(fmt.Errorf("xls: %v", r))
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, errUnreadableWorkbook.WithCause(err)
	}

	sheet, err := p.selectSheet(wb)
	if err != nil {
		return nil, err
	}
	return tableFromRows(sheetRows(sheet), p.cfg)
}

func (p *XLSParser) selectSheet(wb *xls.WorkBook) (*xls.WorkSheet, error) {
	if wb.NumSheets() == 0 {
		return nil, ErrEmptyFile
	}
	if p.cfg.sheet == "" {
		return wb.GetSheet(0), nil
	}
	for i := 0; i < wb.NumSheets(); i++ {
		if s := wb.GetSheet(i); s != nil && s.Name == p.cfg.sheet {
			return s, nil
		}
	}
	return nil, ErrMalformedRow.WithCause(fmt.Errorf("sheet %q not found", p.cfg.sheet))
}

const xlsScanColumns = 64

// sheetRows lays the sheet out like excelize's GetRows: missing rows are
// kept as nil so the slice index maps to the sheet row.
func sheetRows(sheet *xls.WorkSheet) [][]string {
	if sheet == nil {
		return nil
	}
	rows := make([][]string, int(sheet.MaxRow)+1)
	for i := range rows {
		row := sheet.Row(i)
		if row == nil {
			continue
		}
		// Rows without a ROW record report no width
		width := row.LastCol()
		if width <= 0 {
			width = xlsScanColumns
		}
		cells := make([]string, width)
		for c := range cells {
			cells[c] = row.Col(c)
		}
		rows[i] = trimTrailingBlanks(cells)
	}
	return rows
}

func trimTrailingBlanks(cells []string) []string {
	n := len(cells)
	for n > 0 && trimSpaces(cells[n-1]) == "" {
		n--
	}
	return cells[:n]
}
