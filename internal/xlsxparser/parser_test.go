package xlsxparser_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/invoice-dashboard/internal/xlsxparser"
)

// writeWorkbook saves rows to Sheet1 of a new workbook under t.TempDir().
func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	path := filepath.Join(t.TempDir(), "invoices.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseXLSX(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"Client", "Amount", "Issue Date"},
		{"Acme", 1250.5, 45672},
		{},
		{"Beta", 300, ""},
	})

	table, err := xlsxparser.ParseXLSX(path, xlsxparser.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(table.Headers, []string{"Client", "Amount", "Issue Date"}) {
		t.Errorf("headers = %q", table.Headers)
	}
	if table.Len() != 2 {
		t.Fatalf("rows = %d, want 2", table.Len())
	}
	first := table.Rows[0]
	if first.Number != 2 || first.Values[1] != "1250.5" || first.Values[2] != "45672" {
		t.Errorf("first row = %+v", first)
	}
	if table.Rows[1].Number != 4 {
		t.Errorf("second row number = %d, want 4", table.Rows[1].Number)
	}
}

func TestParseXLSXReaderSkipsLeadingBlankRows(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{},
		{"Invoice", "", "Due"},
		{"Number", "Total", "Date"},
		{"INV-1", 10, "2025-01-01"},
	})
	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	table, err := xlsxparser.ParseXLSXReader("upload.xlsx", file, xlsxparser.Options{HeaderRows: 2})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"Invoice Number", "Total", "Due Date"}; !reflect.DeepEqual(table.Headers, want) {
		t.Errorf("headers = %q, want %q", table.Headers, want)
	}
	if table.SourceFile != "upload.xlsx" || table.Rows[0].Number != 4 {
		t.Errorf("table = %+v", table)
	}
}

func TestParseXLSXErrors(t *testing.T) {
	path := writeWorkbook(t, [][]any{{"Client"}})

	if _, err := xlsxparser.ParseXLSX(path, xlsxparser.Options{Sheet: "Missing"}); !errors.Is(err, xlsxparser.ErrSheetNotFound) {
		t.Errorf("missing sheet: err = %v", err)
	}
	if _, err := xlsxparser.ParseXLSX(path, xlsxparser.Options{HeaderRows: 2}); !errors.Is(err, xlsxparser.ErrNoHeader) {
		t.Errorf("short sheet: err = %v", err)
	}
	if _, err := xlsxparser.ParseXLSX(filepath.Join(t.TempDir(), "nope.xlsx"), xlsxparser.Options{}); err == nil {
		t.Errorf("missing file should fail")
	}
}

func TestSheetNames(t *testing.T) {
	path := writeWorkbook(t, [][]any{{"Client"}})
	names, err := xlsxparser.SheetNames(path)
	if err != nil || !reflect.DeepEqual(names, []string{"Sheet1"}) {
		t.Errorf("SheetNames = %v, %v", names, err)
	}
}
