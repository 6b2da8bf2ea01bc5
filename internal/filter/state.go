// =============================================================================
// Invoice Dashboard - Filter State
// =============================================================================
//
// This module defines the filter predicates applied to a dataset and the pure
// Apply function that evaluates them.
//
// DIMENSIONS:
//   - Categorical: client, payment_status, payment_method (value selection)
//   - Date:        issue_date, due_date (closed range, compared by calendar day)
//   - Numeric:     delay_days (closed range)
//
// A dimension exists only when its field is mapped. All predicates combine
// with AND.
//
// MISSING VALUES:
//   Each predicate carries IncludeMissing. It is true in the defaults built
//   from a dataset, so the default state keeps every record. Select and the
//   range constructors clear it.
//
// EMPTY SELECTION:
//   Select() with no values matches nothing. Missing values still pass a
//   predicate that explicitly sets IncludeMissing.
//
// =============================================================================

package filter

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/invoice-dashboard/internal/dataset"
	"github.com/ginjaninja78/invoice-dashboard/internal/schema"
)

// CategoricalFields are filtered by value selection.
var CategoricalFields = []schema.Field{schema.Client, schema.PaymentStatus, schema.PaymentMethod}

// DateFields are filtered by date range.
var DateFields = []schema.Field{schema.IssueDate, schema.DueDate}

// =============================================================================
// PREDICATES
// =============================================================================

// CategoryFilter selects records whose value is one of Values.
type CategoryFilter struct {
	Values         []string `json:"values"`
	IncludeMissing bool     `json:"include_missing"`
}

// Select returns a filter matching exactly values.
func Select(values ...string) CategoryFilter {
	return CategoryFilter{Values: append([]string{}, values...)}
}

func (c CategoryFilter) match(v string, ok bool) bool {
	if !ok {
		return c.IncludeMissing
	}
	for _, s := range c.Values {
		if s == v {
			return true
		}
	}
	return false
}

func (c CategoryFilter) clone() CategoryFilter {
	return CategoryFilter{Values: append([]string{}, c.Values...), IncludeMissing: c.IncludeMissing}
}

// DateRange selects records dated From through To, both inclusive, by
// calendar day.
type DateRange struct {
	From           time.Time `json:"from"`
	To             time.Time `json:"to"`
	IncludeMissing bool      `json:"include_missing"`
}

// Between returns a range over [from, to].
func Between(from, to time.Time) DateRange {
	return DateRange{From: from, To: to}
}

func (d DateRange) match(t time.Time, ok bool) bool {
	if !ok {
		return d.IncludeMissing
	}
	day := civil(t)
	return !day.Before(civil(d.From)) && !day.After(civil(d.To))
}

// NumberRange selects records with Min <= value <= Max.
type NumberRange struct {
	Min            decimal.Decimal `json:"min"`
	Max            decimal.Decimal `json:"max"`
	IncludeMissing bool            `json:"include_missing"`
}

// Range returns a range over [min, max].
func Range(min, max decimal.Decimal) NumberRange {
	return NumberRange{Min: min, Max: max}
}

func (n NumberRange) match(v decimal.Decimal, ok bool) bool {
	if !ok {
		return n.IncludeMissing
	}
	return v.GreaterThanOrEqual(n.Min) && v.LessThanOrEqual(n.Max)
}

// civil truncates t to midnight of its own calendar day.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// STATE
// =============================================================================

// State is the complete set of active predicates.
type State struct {
	Categories map[schema.Field]CategoryFilter `json:"categories"`
	Dates      map[schema.Field]DateRange      `json:"dates"`
	Delay      *NumberRange                    `json:"delay,omitempty"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	c := State{
		Categories: make(map[schema.Field]CategoryFilter, len(s.Categories)),
		Dates:      make(map[schema.Field]DateRange, len(s.Dates)),
	}
	for f, v := range s.Categories {
		c.Categories[f] = v.clone()
	}
	for f, v := range s.Dates {
		c.Dates[f] = v
	}
	if s.Delay != nil {
		d := *s.Delay
		c.Delay = &d
	}
	return c
}

// Defaults returns the full-extent state of ds: every distinct value
// selected, every range spanning the observed minimum and maximum, and missing
// values included.
func Defaults(ds *dataset.Dataset) State {
	s := State{
		Categories: make(map[schema.Field]CategoryFilter),
		Dates:      make(map[schema.Field]DateRange),
	}

	for _, f := range CategoricalFields {
		if !ds.Mapping.Has(f) {
			continue
		}
		s.Categories[f] = CategoryFilter{Values: distinct(ds.Records, f), IncludeMissing: true}
	}

	for _, f := range DateFields {
		if !ds.Mapping.Has(f) {
			continue
		}
		r := DateRange{IncludeMissing: true}
		first := true
		for _, rec := range ds.Records {
			t, ok := rec.Date(f)
			if !ok {
				continue
			}
			if first || t.Before(r.From) {
				r.From = t
			}
			if first || t.After(r.To) {
				r.To = t
			}
			first = false
		}
		s.Dates[f] = r
	}

	if ds.Mapping.Has(schema.DelayDays) {
		r := NumberRange{IncludeMissing: true}
		first := true
		for _, rec := range ds.Records {
			v, ok := rec.Number(schema.DelayDays)
			if !ok {
				continue
			}
			if first || v.LessThan(r.Min) {
				r.Min = v
			}
			if first || v.GreaterThan(r.Max) {
				r.Max = v
			}
			first = false
		}
		s.Delay = &r
	}

	return s
}

// distinct returns the sorted distinct non-null text values of f.
func distinct(records []dataset.Record, f schema.Field) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, r := range records {
		v, ok := r.Text(f)
		if !ok || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// APPLY
// =============================================================================

// Apply returns the records of ds satisfying every predicate of s, in dataset
// order. It does not modify ds or s.
func Apply(ds *dataset.Dataset, s State) dataset.View {
	return ds.All().Where(func(r dataset.Record) bool {
		return Match(r, s)
	})
}

// Match reports whether r satisfies every predicate of s.
func Match(r dataset.Record, s State) bool {
	for f, c := range s.Categories {
		v, ok := r.Text(f)
		if !c.match(v, ok) {
			return false
		}
	}
	for f, d := range s.Dates {
		t, ok := r.Date(f)
		if !d.match(t, ok) {
			return false
		}
	}
	if s.Delay != nil {
		v, ok := r.Number(schema.DelayDays)
		if !s.Delay.match(v, ok) {
			return false
		}
	}
	return true
}
