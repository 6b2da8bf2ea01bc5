// =============================================================================
// Invoice Dashboard - XLSX Export
// =============================================================================
//
// This module writes a filtered view and its analytics to a workbook.
//
// SHEETS:
//   Invoices   one row per record, canonical field labels as headers
//   KPIs       key, label, value and formatted value
//   Charts     one row per (chart, series, point)
//   Quality    missing and malformed counts per mapped field
//
// Amounts are written as real numeric cells and dates as date cells, so the
// workbook can be re-filtered in Excel.
//
// =============================================================================

package reportwriter

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/invoice-dashboard/internal/dataset"
	"github.com/ginjaninja78/invoice-dashboard/internal/kpi"
	"github.com/ginjaninja78/invoice-dashboard/internal/normalize"
	"github.com/ginjaninja78/invoice-dashboard/internal/schema"
	"github.com/ginjaninja78/invoice-dashboard/internal/validation"
)

// Sheet names.
const (
	SheetInvoices = "Invoices"
	SheetKPIs     = "KPIs"
	SheetCharts   = "Charts"
	SheetQuality  = "Quality"
)

// Workbook is the content of one export. KPIs, Charts and Quality may be
// empty; their sheets are still written with headers.
type Workbook struct {
	View    dataset.View
	KPIs    kpi.KPISet
	Charts  []kpi.Chart
	Quality *validation.Report

	// Warning is written above the KPI table, e.g. for an empty view.
	Warning string
}

// SaveXLSX writes wb to path.
func SaveXLSX(path string, wb Workbook) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := WriteXLSX(file, wb); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// WriteXLSX writes wb as an XLSX document to w.
func WriteXLSX(w io.Writer, wb Workbook) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetInvoices); err != nil {
		return err
	}
	for _, name := range []string{SheetKPIs, SheetCharts, SheetQuality} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", name, err)
		}
	}

	if err := writeInvoices(f, wb.View); err != nil {
		return fmt.Errorf("failed to write %s sheet: %w", SheetInvoices, err)
	}
	if err := writeKPIs(f, wb.KPIs, wb.Warning); err != nil {
		return fmt.Errorf("failed to write %s sheet: %w", SheetKPIs, err)
	}
	if err := writeCharts(f, wb.Charts); err != nil {
		return fmt.Errorf("failed to write %s sheet: %w", SheetCharts, err)
	}
	if err := writeQuality(f, wb.Quality); err != nil {
		return fmt.Errorf("failed to write %s sheet: %w", SheetQuality, err)
	}

	f.SetActiveSheet(0)
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeInvoices(f *excelize.File, view dataset.View) error {
	sw, err := f.NewStreamWriter(SheetInvoices)
	if err != nil {
		return err
	}

	fields := view.Mapping.Mapped()
	header := []any{"Row"}
	for _, fld := range fields {
		header = append(header, fld.Label())
	}
	header = append(header, "Outstanding")
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for i, r := range view.Records {
		row := []any{r.Row()}
		for _, fld := range fields {
			row = append(row, cellValue(r.Cell(fld)))
		}
		row = append(row, r.Outstanding().Round(2).InexactFloat64())

		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}

	// NumFmt 14 ~ date, NumFmt 2 ~ "0.00"
	dateStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 14})
	moneyStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 2})
	for i, fld := range fields {
		col, _ := excelize.ColumnNumberToName(i + 2)
		switch fld.Kind() {
		case schema.KindDate:
			_ = f.SetColStyle(SheetInvoices, col, dateStyle)
			_ = f.SetColWidth(SheetInvoices, col, col, 14)
		case schema.KindAmount:
			_ = f.SetColStyle(SheetInvoices, col, moneyStyle)
			_ = f.SetColWidth(SheetInvoices, col, col, 16)
		case schema.KindText:
			_ = f.SetColWidth(SheetInvoices, col, col, 24)
		}
	}
	last, _ := excelize.ColumnNumberToName(len(fields) + 2)
	_ = f.SetColStyle(SheetInvoices, last, moneyStyle)
	return nil
}

// cellValue converts a cell to the value excelize should store. Null stays
// an empty cell.
func cellValue(c normalize.Cell) any {
	switch c.Kind() {
	case normalize.CellNumber:
		d, _ := c.Number()
		return d.InexactFloat64()
	case normalize.CellDate:
		t, _ := c.Date()
		return t
	case normalize.CellText:
		s, _ := c.Text()
		return s
	}
	return nil
}

func writeKPIs(f *excelize.File, set kpi.KPISet, warning string) error {
	row := 1
	if warning != "" {
		if err := f.SetSheetRow(SheetKPIs, "A1", &[]any{"Warning", warning}); err != nil {
			return err
		}
		row = 3
	}

	cell, _ := excelize.CoordinatesToCellName(1, row)
	if err := f.SetSheetRow(SheetKPIs, cell, &[]any{"Key", "Label", "Value", "Formatted"}); err != nil {
		return err
	}
	styles := make(map[kpi.Color]int)
	for _, k := range set {
		row++
		var value any = k.Value.InexactFloat64()
		if k.NotApplicable {
			value = nil
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(SheetKPIs, cell, &[]any{k.Key, k.Label, value, k.Formatted}); err != nil {
			return err
		}

		// The formatted value carries the KPI's presentation color.
		hex := k.Color.Hex()
		if hex == "" {
			continue
		}
		id, ok := styles[k.Color]
		if !ok {
			var err error
			if id, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Color: hex}}); err != nil {
				return err
			}
			styles[k.Color] = id
		}
		formatted, _ := excelize.CoordinatesToCellName(4, row)
		if err := f.SetCellStyle(SheetKPIs, formatted, formatted, id); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(SheetKPIs, "A", "B", 24)
	_ = f.SetColWidth(SheetKPIs, "D", "D", 20)
	return nil
}

func writeCharts(f *excelize.File, charts []kpi.Chart) error {
	if err := f.SetSheetRow(SheetCharts, "A1", &[]any{"Chart", "Series", "Label", "Value", "Count", "Note"}); err != nil {
		return err
	}

	row := 1
	for _, c := range charts {
		if !c.Available {
			row++
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := f.SetSheetRow(SheetCharts, cell, &[]any{c.Title, nil, nil, nil, nil, c.Reason}); err != nil {
				return err
			}
			continue
		}
		for _, s := range c.Series {
			for _, p := range s.Points {
				row++
				cell, _ := excelize.CoordinatesToCellName(1, row)
				values := []any{c.Title, s.Name, p.Label, p.Value.InexactFloat64(), p.Count, nil}
				if err := f.SetSheetRow(SheetCharts, cell, &values); err != nil {
					return err
				}
			}
		}
	}
	_ = f.SetColWidth(SheetCharts, "A", "C", 28)
	return nil
}

func writeQuality(f *excelize.File, r *validation.Report) error {
	if err := f.SetSheetRow(SheetQuality, "A1", &[]any{"Field", "Missing", "Malformed"}); err != nil {
		return err
	}
	if r == nil {
		return nil
	}

	row := 1
	for _, fld := range schema.Fields() {
		q, ok := r.Fields[fld]
		if !ok {
			continue
		}
		row++
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(SheetQuality, cell, &[]any{string(fld), q.Missing, q.Malformed}); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
