package dataset_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/invoice-dashboard/internal/dataset"
	"github.com/ginjaninja78/invoice-dashboard/internal/normalize"
	"github.com/ginjaninja78/invoice-dashboard/internal/schema"
	"github.com/ginjaninja78/invoice-dashboard/internal/types"
)

func TestBuildOutstanding(t *testing.T) {
	table := types.NewRawTable("in.csv",
		[]string{"invoice_amount", "paid_amount"},
		[][]string{
			{"SAR 1,000", "1000"},
			{"500", "0"},
		}, 2)

	ds := dataset.Build(table, schema.Resolve(table.Headers), normalize.New())

	want := []string{"0", "500"}
	total := decimal.Zero
	for i, r := range ds.Records {
		if !r.Outstanding().Equal(decimal.RequireFromString(want[i])) {
			t.Errorf("record %d outstanding = %s, want %s", i, r.Outstanding(), want[i])
		}
		total = total.Add(r.Outstanding())
	}
	if !total.Equal(decimal.NewFromInt(500)) {
		t.Errorf("total outstanding = %s, want 500", total)
	}
}

func TestBuildOutstandingZeroWhenPaidUnmapped(t *testing.T) {
	table := types.NewRawTable("in.csv",
		[]string{"Amount", "Client"},
		[][]string{{"750", "Acme"}}, 2)

	ds := dataset.Build(table, schema.Resolve(table.Headers), normalize.New())

	if ds.Mapping.Has(schema.PaidAmount) {
		t.Fatal("paid_amount should be unmapped")
	}
	if got := ds.Records[0].Outstanding(); !got.IsZero() {
		t.Errorf("outstanding = %s, want 0", got)
	}
}

func TestBuildOutstandingZeroWhenValueNull(t *testing.T) {
	table := types.NewRawTable("in.csv",
		[]string{"invoice_amount", "paid_amount"},
		[][]string{{"900", ""}, {"n/a", "100"}}, 2)

	ds := dataset.Build(table, schema.Resolve(table.Headers), normalize.New())

	for i, r := range ds.Records {
		if !r.Outstanding().IsZero() {
			t.Errorf("record %d outstanding = %s, want 0", i, r.Outstanding())
		}
	}
	if q := ds.Quality.Fields[schema.InvoiceAmount]; q.Malformed != 1 {
		t.Errorf("invoice_amount malformed = %d, want 1", q.Malformed)
	}
	if q := ds.Quality.Fields[schema.PaidAmount]; q.Missing != 1 {
		t.Errorf("paid_amount missing = %d, want 1", q.Missing)
	}
	if is := ds.Quality.Issues[0]; is.RowNumber != 3 || is.Value != "n/a" {
		t.Errorf("issue = %+v", is)
	}
}

func TestBuildIgnoresUnmappedColumns(t *testing.T) {
	table := types.NewRawTable("in.csv",
		[]string{"Client", "Notes"},
		[][]string{{"Acme", "call back"}}, 2)

	ds := dataset.Build(table, schema.Resolve(table.Headers), normalize.New())

	r := ds.Records[0]
	if c, _ := r.Text(schema.Client); c != "Acme" {
		t.Errorf("client = %q", c)
	}
	if !r.Cell(schema.InvoiceAmount).IsNull() {
		t.Errorf("unmapped field must be Null")
	}
	if r.Row() != 2 {
		t.Errorf("Row() = %d, want 2", r.Row())
	}
}

func TestViewWherePreservesOrder(t *testing.T) {
	m := schema.NewMapping([]string{"c"}, map[schema.Field]string{schema.Client: "c"})
	var recs []dataset.Record
	for i, name := range []string{"a", "b", "a", "c", "a"} {
		recs = append(recs, dataset.NewRecord(i+2, map[schema.Field]normalize.Cell{schema.Client: normalize.Text(name)}))
	}
	ds := dataset.New("x", m, recs)

	v := ds.All().Where(func(r dataset.Record) bool {
		c, _ := r.Text(schema.Client)
		return c == "a"
	})
	var rows []int
	for _, r := range v.Records {
		rows = append(rows, r.Row())
	}
	if len(rows) != 3 || rows[0] != 2 || rows[1] != 4 || rows[2] != 6 {
		t.Errorf("rows = %v, want [2 4 6]", rows)
	}
}

func TestRecordJSON(t *testing.T) {
	m := schema.NewMapping([]string{"a", "p"}, map[schema.Field]string{schema.InvoiceAmount: "a", schema.PaidAmount: "p"})
	ds := dataset.New("x", m, []dataset.Record{dataset.NewRecord(2, map[schema.Field]normalize.Cell{
		schema.InvoiceAmount: normalize.Number(decimal.NewFromInt(10)),
		schema.PaidAmount:    normalize.Number(decimal.NewFromInt(4)),
	})})

	b, err := json.Marshal(ds.Records[0])
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"invoice_amount":10`, `"outstanding_amount":6`, `"row":2`} {
		if !strings.Contains(string(b), want) {
			t.Errorf("json %s missing %s", b, want)
		}
	}
}
