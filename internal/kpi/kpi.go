// =============================================================================
// Invoice Dashboard - KPI Engine
// =============================================================================
//
// This module computes the headline indicators of a filtered view.
//
// KPIs (in display order):
//   total_invoice_amount   sum of invoice_amount           (needs invoice_amount)
//   total_paid_amount      sum of paid_amount              (needs paid_amount)
//   total_outstanding      sum of the derived outstanding  (needs both amounts)
//   paid_invoice_count     records whose status is paid    (needs payment_status)
//   late_invoice_count     records with delay_days > 0     (needs delay_days)
//   average_delay_days     mean delay over late records    (needs delay_days)
//
// A KPI whose input field is unmapped is left out of the set. Null cells are
// skipped by sums and means.
//
// =============================================================================

package kpi

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ginjaninja78/invoice-dashboard/internal/dataset"
	"github.com/ginjaninja78/invoice-dashboard/internal/schema"
)

var (
	// ErrEmptyView is a warning: the filters matched no records.
	ErrEmptyView = errors.New("no records match the current filters")

	// ErrInsufficientData is returned when an aggregation needs an unmapped
	// field.
	ErrInsufficientData = errors.New("required column not mapped")
)

// KPI keys.
const (
	TotalInvoiceAmount = "total_invoice_amount"
	TotalPaidAmount    = "total_paid_amount"
	TotalOutstanding   = "total_outstanding"
	PaidInvoiceCount   = "paid_invoice_count"
	LateInvoiceCount   = "late_invoice_count"
	AverageDelayDays   = "average_delay_days"
)

// =============================================================================
// COLORS
// =============================================================================

// Color is a presentation token. Renderers map it to a concrete color.
type Color string

const (
	ColorPrimary   Color = "primary"
	ColorSecondary Color = "secondary"
	ColorAccent    Color = "accent"
	ColorPurple    Color = "purple"
	ColorGreen     Color = "green"
	ColorCrimson   Color = "crimson"
)

var palette = map[Color]string{
	ColorPrimary:   "#2A9D8F",
	ColorSecondary: "#E76F51",
	ColorAccent:    "#F4A261",
	ColorPurple:    "#8E44AD",
	ColorGreen:     "#43AA8B",
	ColorCrimson:   "#E63946",
}

// Hex returns the RGB hex of c.
func (c Color) Hex() string { return palette[c] }

// =============================================================================
// TYPES
// =============================================================================

// KPI is one headline indicator.
type KPI struct {
	Key       string          `json:"key"`
	Label     string          `json:"label"`
	Value     decimal.Decimal `json:"value"`
	Formatted string          `json:"formatted"`
	Color     Color           `json:"color"`

	// NotApplicable is set when the value is a placeholder, e.g. the average
	// delay of a view without late invoices.
	NotApplicable bool `json:"not_applicable,omitempty"`
}

// KPISet is an ordered list of KPIs.
type KPISet []KPI

// Get returns the KPI with key.
func (s KPISet) Get(key string) (KPI, bool) {
	for _, k := range s {
		if k.Key == key {
			return k, true
		}
	}
	return KPI{}, false
}

// Options tune KPI computation and formatting.
type Options struct {
	// PaidStatusLabels are payment_status values counted as paid. Compared
	// case-insensitively.
	PaidStatusLabels []string

	// Currency is appended to formatted amounts.
	Currency string

	// Language selects digit grouping.
	Language language.Tag

	// TopN is the size of ranked charts.
	TopN int
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		PaidStatusLabels: []string{"مدفوع", "paid"},
		Currency:         "SAR",
		Language:         language.English,
		TopN:             5,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if len(o.PaidStatusLabels) == 0 {
		o.PaidStatusLabels = d.PaidStatusLabels
	}
	if o.Language == language.Und {
		o.Language = d.Language
	}
	if o.TopN <= 0 {
		o.TopN = d.TopN
	}
	return o
}

func (o Options) isPaid(status string) bool {
	s := schema.Key(status)
	for _, l := range o.PaidStatusLabels {
		if schema.Key(l) == s {
			return true
		}
	}
	return false
}

// =============================================================================
// SUMMARIZE
// =============================================================================

// Summarize computes the KPI set of view. An empty view returns ErrEmptyView
// and no KPIs.
func Summarize(view dataset.View, opts Options) (KPISet, error) {
	if view.Empty() {
		return nil, ErrEmptyView
	}
	opts = opts.withDefaults()
	p := message.NewPrinter(opts.Language)
	m := view.Mapping

	var set KPISet

	if m.Has(schema.InvoiceAmount) {
		v := sumField(view, schema.InvoiceAmount)
		set = append(set, KPI{
			Key: TotalInvoiceAmount, Label: "Total Invoice Amount",
			Value: v, Formatted: formatAmount(p, v, opts.Currency), Color: ColorPrimary,
		})
	}

	if m.Has(schema.PaidAmount) {
		v := sumField(view, schema.PaidAmount)
		set = append(set, KPI{
			Key: TotalPaidAmount, Label: "Total Paid",
			Value: v, Formatted: formatAmount(p, v, opts.Currency), Color: ColorGreen,
		})
	}

	if m.Has(schema.InvoiceAmount) && m.Has(schema.PaidAmount) {
		outstanding := decimal.Zero
		for _, r := range view.Records {
			outstanding = outstanding.Add(r.Outstanding())
		}
		set = append(set, KPI{
			Key: TotalOutstanding, Label: "Total Outstanding",
			Value: outstanding, Formatted: formatAmount(p, outstanding, opts.Currency), Color: ColorCrimson,
		})
	}

	if m.Has(schema.PaymentStatus) {
		n := 0
		for _, r := range view.Records {
			if s, ok := r.Text(schema.PaymentStatus); ok && opts.isPaid(s) {
				n++
			}
		}
		set = append(set, countKPI(p, PaidInvoiceCount, "Paid Invoices", n, ColorAccent))
	}

	if m.Has(schema.DelayDays) {
		late := 0
		total := decimal.Zero
		for _, r := range view.Records {
			if d, ok := r.Number(schema.DelayDays); ok && d.IsPositive() {
				late++
				total = total.Add(d)
			}
		}
		set = append(set, countKPI(p, LateInvoiceCount, "Late Invoices", late, ColorPurple))

		avg := KPI{Key: AverageDelayDays, Label: "Average Delay (days)", Color: ColorSecondary}
		if late == 0 {
			avg.Value = decimal.Zero
			avg.Formatted = "0"
			avg.NotApplicable = true
		} else {
			avg.Value = total.Div(decimal.NewFromInt(int64(late))).Round(1)
			avg.Formatted = avg.Value.StringFixed(1)
		}
		set = append(set, avg)
	}

	return set, nil
}

func sumField(view dataset.View, f schema.Field) decimal.Decimal {
	total := decimal.Zero
	for _, r := range view.Records {
		if v, ok := r.Number(f); ok {
			total = total.Add(v)
		}
	}
	return total
}

func countKPI(p *message.Printer, key, label string, n int, c Color) KPI {
	return KPI{
		Key: key, Label: label,
		Value: decimal.NewFromInt(int64(n)), Formatted: p.Sprintf("%d", n), Color: c,
	}
}

// formatAmount renders v with digit grouping and two decimals.
func formatAmount(p *message.Printer, v decimal.Decimal, currency string) string {
	s := p.Sprintf("%.2f", v.Round(2).InexactFloat64())
	if currency = strings.TrimSpace(currency); currency != "" {
		s += " " + currency
	}
	return s
}
