package document

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for files that are neither PDF nor a
// spreadsheet.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// SupportedExtensions lists accepted upload extensions.
var SupportedExtensions = []string{".pdf", ".xlsx", ".xls"}

// Extract returns the text of a document, choosing the extractor by the
// extension of name.
func Extract(name string, content []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return ExtractPDF(content)
	case ".xlsx":
		return ExtractXLSX(content)
	case ".xls":
		return ExtractXLS(content)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// ExtractPDF returns the plain text of every page joined by newlines.
func ExtractPDF(content []byte) (text string, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("read pdf page %d: %w", i, err)
		}
		pages = append(pages, pageText)
	}
	return strings.Join(pages, "\n"), nil
}

// ExtractXLSX flattens every sheet of an .xlsx workbook.
func ExtractXLSX(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	var lines []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		lines = append(lines, FlattenRows(rows)...)
	}
	return strings.Join(lines, "\n"), nil
}

// ExtractXLS flattens every sheet of a legacy .xls workbook.
func ExtractXLS(content []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed xls: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(content), "utf-8")
	if err != nil {
		return "", fmt.Errorf("open xls: %w", err)
	}
	if wb == nil {
		return "", errors.New("open xls: no workbook stream")
	}

	var lines []string
	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		if sheet == nil {
			continue
		}
		var rows [][]string
		for r := 0; r <= int(sheet.MaxRow); r++ {
			row := sheetRow(sheet, r)
			if row == nil {
				continue
			}
			cells := make([]string, 0, row.LastCol())
			for c := 0; c < row.LastCol(); c++ {
				cells = append(cells, row.Col(c))
			}
			rows = append(rows, cells)
		}
		lines = append(lines, FlattenRows(rows)...)
	}
	return strings.Join(lines, "\n"), nil
}

// sheetRow returns row i, or nil for a row with no record. WorkSheet.Row
// dereferences missing rows.
func sheetRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

// FlattenRows renders rows as pipe-delimited lines. Cells are trimmed,
// short rows are padded to the widest row, and rows with no content are
// dropped.
func FlattenRows(rows [][]string) []string {
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, width)
		blank := true
		for i, cell := range row {
			cells[i] = strings.TrimSpace(cell)
			if cells[i] != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		lines = append(lines, strings.Join(cells, "|"))
	}
	return lines
}
