// Package dataset holds normalized invoice records and the views filtered
// from them.
package dataset

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/invoice-dashboard/internal/normalize"
	"github.com/ginjaninja78/invoice-dashboard/internal/schema"
	"github.com/ginjaninja78/invoice-dashboard/internal/types"
	"github.com/ginjaninja78/invoice-dashboard/internal/validation"
)

// OutstandingField names the derived column in exports.
const OutstandingField = "outstanding_amount"

// =============================================================================
// RECORD
// =============================================================================

// Record is one normalized invoice row. Records are not mutated after a
// dataset is built.
type Record struct {
	row         int
	cells       map[schema.Field]normalize.Cell
	outstanding decimal.Decimal
}

// NewRecord builds a record from cells. Fields absent from cells are Null.
// The outstanding amount is zero until Augment runs.
func NewRecord(row int, cells map[schema.Field]normalize.Cell) Record {
	c := make(map[schema.Field]normalize.Cell, len(cells))
	for f, v := range cells {
		c[f] = v
	}
	return Record{row: row, cells: c}
}

// Row is the source row number.
func (r Record) Row() int { return r.row }

// Cell returns the value of f, Null when absent.
func (r Record) Cell(f schema.Field) normalize.Cell {
	return r.cells[f]
}

// Number returns the numeric value of f.
func (r Record) Number(f schema.Field) (decimal.Decimal, bool) {
	return r.cells[f].Number()
}

// Date returns the date value of f.
func (r Record) Date(f schema.Field) (time.Time, bool) {
	return r.cells[f].Date()
}

// Text returns the text value of f.
func (r Record) Text(f schema.Field) (string, bool) {
	return r.cells[f].Text()
}

// Outstanding returns the derived invoice - paid amount.
func (r Record) Outstanding() decimal.Decimal { return r.outstanding }

// MarshalJSON encodes the record as a flat object of canonical fields.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.cells)+2)
	out["row"] = r.row
	for _, f := range schema.Fields() {
		if c, ok := r.cells[f]; ok {
			out[string(f)] = c
		}
	}
	out[OutstandingField] = json.Number(r.outstanding.String())
	return json.Marshal(out)
}

// =============================================================================
// DATASET
// =============================================================================

// Dataset is the normalized content of one upload.
type Dataset struct {
	Source  string
	Mapping schema.ColumnMapping
	Records []Record
	Quality *validation.Report
}

// Build normalizes every mapped cell of table and derives the outstanding
// amount. Unmapped columns are ignored. Cell defects are recorded in the
// returned dataset's Quality report; Build itself never fails.
func Build(table *types.RawTable, mapping schema.ColumnMapping, n *normalize.Normalizer) *Dataset {
	mapped := mapping.Mapped()
	report := validation.NewReport(mapped, 0)
	report.Rows = table.Len()

	cols := make(map[schema.Field]int, len(mapped))
	for _, f := range mapped {
		h, _ := mapping.Header(f)
		if col := table.Column(h); col >= 0 {
			cols[f] = col
		}
	}

	records := make([]Record, 0, table.Len())
	for _, row := range table.Rows {
		cells := make(map[schema.Field]normalize.Cell, len(cols))
		for _, f := range mapped {
			col, ok := cols[f]
			if !ok {
				continue
			}
			raw := row.Values[col]
			cell, err := n.Field(raw, f)
			report.Record(row.Number, f, raw, err)
			cells[f] = cell
		}
		records = append(records, Record{row: row.Number, cells: cells})
	}

	return &Dataset{
		Source:  table.SourceFile,
		Mapping: mapping,
		Records: Augment(records, mapping),
		Quality: report,
	}
}

// New wraps already normalized records. Augment is applied.
func New(source string, mapping schema.ColumnMapping, records []Record) *Dataset {
	return &Dataset{
		Source:  source,
		Mapping: mapping,
		Records: Augment(records, mapping),
		Quality: validation.NewReport(mapping.Mapped(), 0),
	}
}

// Len returns the number of records.
func (d *Dataset) Len() int { return len(d.Records) }

// All returns an unfiltered view of the dataset.
func (d *Dataset) All() View {
	return View{Mapping: d.Mapping, Records: d.Records}
}

// =============================================================================
// DERIVED FIELDS
// =============================================================================

// Augment returns copies of records with the outstanding amount set to
// invoice_amount - paid_amount. The amount is zero when either field is
// unmapped or the record holds Null for it.
func Augment(records []Record, mapping schema.ColumnMapping) []Record {
	both := mapping.Has(schema.InvoiceAmount) && mapping.Has(schema.PaidAmount)

	out := make([]Record, len(records))
	for i, r := range records {
		r.outstanding = decimal.Zero
		if both {
			inv, okInv := r.Number(schema.InvoiceAmount)
			paid, okPaid := r.Number(schema.PaidAmount)
			if okInv && okPaid {
				r.outstanding = inv.Sub(paid)
			}
		}
		out[i] = r
	}
	return out
}

// =============================================================================
// VIEW
// =============================================================================

// View is an ordered subset of a dataset's records.
type View struct {
	Mapping schema.ColumnMapping `json:"mapping"`
	Records []Record             `json:"records"`
}

// Len returns the number of records in v.
func (v View) Len() int { return len(v.Records) }

// Empty reports whether v has no records.
func (v View) Empty() bool { return len(v.Records) == 0 }

// Where returns the records of v matching keep, in order.
func (v View) Where(keep func(Record) bool) View {
	out := View{Mapping: v.Mapping}
	for _, r := range v.Records {
		if keep(r) {
			out.Records = append(out.Records, r)
		}
	}
	return out
}
