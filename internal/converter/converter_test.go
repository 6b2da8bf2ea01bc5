package converter_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/invoice-dashboard/internal/config"
	"github.com/ginjaninja78/invoice-dashboard/internal/converter"
	"github.com/ginjaninja78/invoice-dashboard/internal/schema"
)

const sampleCSV = `Invoice Number,Customer,Amount,Paid,Status,Issue Date
INV-1,Acme,"SAR 1,000.00",1000,Paid,2025-01-15
INV-2,Beta,500,0,Unpaid,2025-02-01
INV-3,Acme,abc,,Unpaid,not a date
`

func newConverter(t *testing.T, cfg *config.Config) *converter.Converter {
	t.Helper()
	c, err := converter.New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestLoadReaderCSV(t *testing.T) {
	c := newConverter(t, config.Default())

	ds, err := c.LoadReader(context.Background(), "q1.csv", strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatal(err)
	}
	if ds.Len() != 3 || ds.Source != "q1.csv" {
		t.Fatalf("dataset = %d records from %q", ds.Len(), ds.Source)
	}

	first := ds.Records[0]
	if v, ok := first.Number(schema.InvoiceAmount); !ok || !v.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("invoice_amount = %v, %v", v, ok)
	}
	if !ds.Records[1].Outstanding().Equal(decimal.NewFromInt(500)) {
		t.Errorf("outstanding = %s, want 500", ds.Records[1].Outstanding())
	}

	third := ds.Records[2]
	if !third.Cell(schema.InvoiceAmount).IsNull() || !third.Cell(schema.IssueDate).IsNull() {
		t.Errorf("malformed cells should be Null")
	}
	if ds.Quality.Malformed() != 2 || ds.Quality.Missing() != 1 {
		t.Errorf("quality = malformed %d missing %d, want 2 and 1", ds.Quality.Malformed(), ds.Quality.Missing())
	}
}

func TestTransformationRulesAndBindings(t *testing.T) {
	cfg := config.Default()
	cfg.ColumnBindings = map[string]string{"client": "Account"}
	cfg.TransformationRules = []config.TransformationRule{
		{Field: "payment_status", Actions: []config.TransformationAction{
			{Type: "lookup", LookupTable: map[string]string{"settled": "paid"}},
		}},
		{Field: "client", Actions: []config.TransformationAction{
			{Type: "normalize_whitespace"},
			{Type: "if_empty_use_default", Value: "Unknown"},
		}},
	}
	c := newConverter(t, cfg)

	input := "Customer,Account,Status\nIgnored,  Acme   Co ,SETTLED\nIgnored,,open\n"
	ds, err := c.LoadReader(context.Background(), "x.csv", strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}

	if h, _ := ds.Mapping.Header(schema.Client); h != "Account" {
		t.Errorf("client bound to %q, want Account", h)
	}
	if v, _ := ds.Records[0].Text(schema.Client); v != "Acme Co" {
		t.Errorf("client = %q", v)
	}
	if v, _ := ds.Records[1].Text(schema.Client); v != "Unknown" {
		t.Errorf("empty client = %q, want Unknown", v)
	}
	if v, _ := ds.Records[0].Text(schema.PaymentStatus); v != "paid" {
		t.Errorf("status = %q, want paid", v)
	}
}

func TestNewRejectsBadRules(t *testing.T) {
	tests := []config.TransformationRule{
		{Field: "vendor", Actions: []config.TransformationAction{{Type: "trim"}}},
		{Field: "client", Actions: []config.TransformationAction{{Type: "explode"}}},
		{Field: "client", Actions: []config.TransformationAction{{Type: "regex_replace", Find: "("}}},
		{Field: "invoice_no", Actions: []config.TransformationAction{{Type: "pad_zeros_to_length", Value: "x"}}},
	}
	for _, rule := range tests {
		cfg := config.Default()
		cfg.TransformationRules = []config.TransformationRule{rule}
		if _, err := converter.New(cfg, nil); err == nil {
			t.Errorf("New accepted rule %+v", rule)
		}
	}
}

func TestRunReportsFailures(t *testing.T) {
	c := newConverter(t, config.Default())
	dir := t.TempDir()

	pdf := filepath.Join(dir, "scan.pdf")
	if err := os.WriteFile(pdf, []byte("%PDF"), 0o644); err != nil {
		t.Fatal(err)
	}
	res := c.Run(context.Background(), pdf)
	if res.Success || !errors.Is(res.Error, converter.ErrUnsupportedFileType) {
		t.Errorf("Run(pdf) = %+v", res)
	}

	csvPath := filepath.Join(dir, "ok.csv")
	if err := os.WriteFile(csvPath, []byte(sampleCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	res = c.Run(context.Background(), csvPath)
	if !res.Success || res.Stats.RowsProcessed != 3 || res.Stats.MalformedCells != 2 {
		t.Errorf("Run(csv) = %+v", res)
	}
}

func TestLoadReaderWorkbookSheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", "Notes"); err != nil {
		t.Fatal(err)
	}
	if err := f.SetSheetRow("Notes", "A1", &[]any{"Exported by finance"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.NewSheet("Invoices"); err != nil {
		t.Fatal(err)
	}
	for i, row := range [][]any{{"Customer", "Amount"}, {"Acme", 1000}, {"Beta", 500}} {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Invoices", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()

	cfg := config.Default()
	cfg.Workbook.Sheet = "Invoices"
	ds, err := newConverter(t, cfg).LoadReader(context.Background(), "q1.xlsm", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if ds.Len() != 2 || !ds.Mapping.Has(schema.Client) || !ds.Mapping.Has(schema.InvoiceAmount) {
		t.Errorf("sheet Invoices = %d records, mapping %v", ds.Len(), ds.Mapping.Mapped())
	}

	cfg.Workbook.Sheet = "Missing"
	if _, err := newConverter(t, cfg).LoadReader(context.Background(), "q1.xlsx", bytes.NewReader(data)); err == nil {
		t.Error("expected an error for an absent sheet")
	}
}

func TestNewRejectsUnknownTimezone(t *testing.T) {
	cfg := config.Default()
	cfg.Timezone = "Mars/Olympus"
	if _, err := converter.New(cfg, nil); err == nil {
		t.Error("New accepted an unknown timezone")
	}
}

func TestLoadReaderHonoursCancellation(t *testing.T) {
	c := newConverter(t, config.Default())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.LoadReader(ctx, "q1.csv", strings.NewReader(sampleCSV)); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestPadLeft(t *testing.T) {
	if got := converter.PadLeft("42", 5, '0'); got != "00042" {
		t.Errorf("PadLeft = %q", got)
	}
	if got := converter.PadLeft("123456", 3, '0'); got != "123456" {
		t.Errorf("PadLeft should not truncate, got %q", got)
	}
}
