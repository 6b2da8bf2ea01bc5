package csvparser_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"

	"github.com/ginjaninja78/invoice-dashboard/internal/config"
	"github.com/ginjaninja78/invoice-dashboard/internal/csvparser"
)

func settings() config.CSVSettings {
	return config.CSVSettings{Delimiter: "auto", Encoding: "UTF-8", HeaderRows: 1}
}

func TestParseReaderSniffsDelimiter(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"comma", "Client,Amount\nAcme,100\n"},
		{"semicolon", "Client;Amount\nAcme;100\n"},
		{"pipe", "Client|Amount\nAcme|100\n"},
		{"tab", "Client\tAmount\nAcme\t100\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := csvparser.ParseReader("x.csv", strings.NewReader(tt.input), settings())
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(table.Headers, []string{"Client", "Amount"}) {
				t.Errorf("headers = %q", table.Headers)
			}
			if table.Len() != 1 || table.Rows[0].Values[1] != "100" {
				t.Errorf("rows = %+v", table.Rows)
			}
		})
	}
}

func TestParseReaderBOMAndArabicHeaders(t *testing.T) {
	input := "\uFEFFاسم العميل,مبلغ الفاتورة (ر.س)\nشركة النور,\"1,250.00\"\n"

	table, err := csvparser.ParseReader("ar.csv", strings.NewReader(input), settings())
	if err != nil {
		t.Fatal(err)
	}
	if table.Headers[0] != "اسم العميل" {
		t.Errorf("BOM not stripped: %q", table.Headers[0])
	}
	if got := table.Rows[0].Values[1]; got != "1,250.00" {
		t.Errorf("quoted amount = %q", got)
	}
	if table.Rows[0].Number != 2 {
		t.Errorf("row number = %d, want 2", table.Rows[0].Number)
	}
}

func TestParseReaderWindows1256(t *testing.T) {
	encoded, err := charmap.Windows1256.NewEncoder().String("العميل;المبلغ\nالنور;500\n")
	if err != nil {
		t.Fatal(err)
	}
	s := settings()
	s.Encoding = "Windows-1256"

	table, err := csvparser.ParseReader("legacy.csv", bytes.NewReader([]byte(encoded)), s)
	if err != nil {
		t.Fatal(err)
	}
	if table.Headers[0] != "العميل" || table.Rows[0].Values[0] != "النور" {
		t.Errorf("decoded table = %+v", table)
	}
}

func TestParseReaderMultiRowHeaders(t *testing.T) {
	input := "Invoice,,Due\nNumber,Total,Date\nINV-1,10,2025-01-01\n\nINV-2,,\n"
	s := settings()
	s.HeaderRows = 2

	table, err := csvparser.ParseReader("multi.csv", strings.NewReader(input), s)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"Invoice Number", "Total", "Due Date"}; !reflect.DeepEqual(table.Headers, want) {
		t.Errorf("headers = %q, want %q", table.Headers, want)
	}
	if table.Len() != 2 {
		t.Errorf("rows = %d, want 2", table.Len())
	}
}

func TestParseReaderErrors(t *testing.T) {
	if _, err := csvparser.ParseReader("empty.csv", strings.NewReader(" \n"), settings()); !errors.Is(err, csvparser.ErrEmptyFile) {
		t.Errorf("empty: err = %v", err)
	}
	s := settings()
	s.Encoding = "EBCDIC"
	if _, err := csvparser.ParseReader("x.csv", strings.NewReader("a\n1\n"), s); !errors.Is(err, csvparser.ErrUnknownEncoding) {
		t.Errorf("encoding: err = %v", err)
	}
	s = settings()
	s.HeaderRows = 3
	if _, err := csvparser.ParseReader("x.csv", strings.NewReader("a\n1\n"), s); !errors.Is(err, csvparser.ErrEmptyFile) {
		t.Errorf("header rows: err = %v", err)
	}
}

func TestParseFileTSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.txt")
	if err := os.WriteFile(path, []byte("Client\tAmount, SAR\nAcme\t1,000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	table, err := csvparser.Parse(path, settings())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(table.Headers, []string{"Client", "Amount, SAR"}) {
		t.Errorf("headers = %q", table.Headers)
	}
	if table.SourceFile != path {
		t.Errorf("source = %q", table.SourceFile)
	}
}

func TestSniff(t *testing.T) {
	if got := csvparser.Sniff("a;b;c,d"); got != ';' {
		t.Errorf("Sniff = %q", got)
	}
	if got := csvparser.Sniff("single"); got != ',' {
		t.Errorf("Sniff(no delimiter) = %q", got)
	}
}
