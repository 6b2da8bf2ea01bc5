// =============================================================================
// Invoice Dashboard - Spreadsheet Parser
// =============================================================================
//
// This module reads invoice exports saved as Excel workbooks:
//   - .xlsx through excelize
//   - legacy .xls (BIFF) through xlsReader
//
// Only one worksheet is read: the configured sheet, or the first one. Cells
// are returned as raw text. For .xlsx files the unformatted cell value is
// used, so amounts arrive without grouping and dates arrive as Excel serial
// numbers, which the normalizer understands.
//
// SHEET LAYOUT:
//   | Row 1 .. HeaderRows | Header cells (merged column-wise when > 1) |
//   | Following rows      | One invoice per row                         |
//
// =============================================================================

package xlsxparser

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/invoice-dashboard/internal/types"
)

var (
	// ErrNoSheets is returned for a workbook without worksheets.
	ErrNoSheets = errors.New("workbook has no sheets")

	// ErrSheetNotFound is returned when the requested sheet does not exist.
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrNoHeader is returned when the sheet has fewer rows than HeaderRows.
	ErrNoHeader = errors.New("sheet has no header row")
)

// Options selects what to read from a workbook.
type Options struct {
	// Sheet is the worksheet name. Empty means the first sheet.
	Sheet string

	// HeaderRows is the number of header rows. Default: 1
	HeaderRows int
}

func (o Options) headerRows() int {
	if o.HeaderRows <= 0 {
		return 1
	}
	return o.HeaderRows
}

// =============================================================================
// XLSX
// =============================================================================

// ParseXLSX reads an .xlsx file.
func ParseXLSX(path string, opts Options) (*types.RawTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return parseWorkbook(path, f, opts)
}

// ParseXLSXReader reads an .xlsx workbook from r. name is recorded as the
// table's source.
func ParseXLSXReader(name string, r io.Reader, opts Options) (*types.RawTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return parseWorkbook(name, f, opts)
}

// SheetNames lists the worksheets of an .xlsx file in workbook order.
func SheetNames(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

func parseWorkbook(name string, f *excelize.File, opts Options) (*types.RawTable, error) {
	sheetName := opts.Sheet
	if sheetName == "" {
		sheetName = f.GetSheetName(0)
		if sheetName == "" {
			return nil, ErrNoSheets
		}
	} else if idx, err := f.GetSheetIndex(sheetName); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, sheetName)
	}

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return tableFromRows(name, rows, opts.headerRows())
}

// =============================================================================
// XLS (BIFF)
// =============================================================================

// ParseXLS reads a legacy .xls file. Only the first sheet is supported.
func ParseXLS(path string, opts Options) (*types.RawTable, error) {
	book, err := xls.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	sheet, err := book.GetSheet(0)
	if err != nil || sheet == nil {
		return nil, ErrNoSheets
	}

	var rows [][]string
	for _, row := range sheet.GetRows() {
		var values []string
		for _, col := range row.GetCols() {
			values = append(values, col.GetString())
		}
		rows = append(rows, values)
	}
	return tableFromRows(path, rows, opts.headerRows())
}

// ParseXLSReader reads a legacy .xls workbook from r. The reader library
// works on paths, so the content is staged in a temporary file.
func ParseXLSReader(name string, r io.Reader, opts Options) (*types.RawTable, error) {
	tmp, err := os.CreateTemp("", "upload-*.xls")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	table, err := ParseXLS(tmp.Name(), opts)
	if err != nil {
		return nil, err
	}
	table.SourceFile = name
	return table, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func tableFromRows(name string, rows [][]string, headerRows int) (*types.RawTable, error) {
	// Leading blank rows above the header are common in exported reports.
	start := 0
	for start < len(rows) && blank(rows[start]) {
		start++
	}
	rows = rows[start:]

	if len(rows) < headerRows {
		return nil, ErrNoHeader
	}
	headers := types.MergeHeaderRows(rows, headerRows)
	return types.NewRawTable(name, headers, rows[headerRows:], start+headerRows+1), nil
}

func blank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}
