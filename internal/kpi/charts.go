package kpi

import (
	"errors"
	"fmt"

	"github.com/ginjaninja78/invoice-dashboard/internal/dataset"
	"github.com/ginjaninja78/invoice-dashboard/internal/schema"
)

// ChartKind hints how a chart is drawn.
type ChartKind string

const (
	KindBar     ChartKind = "bar"
	KindPie     ChartKind = "pie"
	KindLine    ChartKind = "line"
	KindGrouped ChartKind = "grouped_bar"
)

// Chart is one dashboard panel.
type Chart struct {
	Key    string    `json:"key"`
	Title  string    `json:"title"`
	Kind   ChartKind `json:"kind"`
	Color  Color     `json:"color"`
	Series []Series  `json:"series,omitempty"`

	// Available is false when an input column is unmapped. Reason says which.
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

type seriesSpec struct {
	name   string
	dim    Dimension
	metric Metric
	agg    Aggregator
	top    bool
	where  func(dataset.Record) bool
}

type chartSpec struct {
	key    string
	title  string
	kind   ChartKind
	color  Color
	series []seriesSpec
}

func isLate(r dataset.Record) bool {
	d, ok := r.Number(schema.DelayDays)
	return ok && d.IsPositive()
}

var catalogue = []chartSpec{
	{"invoice_by_client", "Invoice Amount by Client", KindBar, ColorPrimary, []seriesSpec{
		{name: "invoice_amount", dim: By(schema.Client), metric: MetricOf(schema.InvoiceAmount), agg: Sum},
	}},
	{"status_distribution", "Payment Status", KindPie, ColorAccent, []seriesSpec{
		{name: "invoices", dim: By(schema.PaymentStatus), metric: MetricCount, agg: Count},
	}},
	{"outstanding_by_client", "Outstanding by Client", KindBar, ColorCrimson, []seriesSpec{
		{name: "outstanding", dim: By(schema.Client), metric: MetricOutstanding, agg: Sum},
	}},
	{"method_distribution", "Payment Method", KindPie, ColorSecondary, []seriesSpec{
		{name: "invoices", dim: By(schema.PaymentMethod), metric: MetricCount, agg: Count},
	}},
	{"monthly_invoiced_vs_paid", "Invoiced vs Paid by Month", KindGrouped, ColorPrimary, []seriesSpec{
		{name: "invoiced", dim: ByMonth(schema.IssueDate), metric: MetricOf(schema.InvoiceAmount), agg: Sum},
		{name: "paid", dim: ByMonth(schema.IssueDate), metric: MetricOf(schema.PaidAmount), agg: Sum},
	}},
	{"top_clients", "Top Clients by Invoice Amount", KindBar, ColorGreen, []seriesSpec{
		{name: "invoice_amount", dim: By(schema.Client), metric: MetricOf(schema.InvoiceAmount), agg: Sum, top: true},
	}},
	{"late_by_due_month", "Late Invoices by Due Month", KindBar, ColorPurple, []seriesSpec{
		{name: "late_invoices", dim: ByMonth(schema.DueDate), metric: MetricCount, agg: Count, where: isLate},
	}},
	{"delay_by_client", "Average Delay by Client", KindBar, ColorSecondary, []seriesSpec{
		{name: "average_delay", dim: By(schema.Client), metric: MetricOf(schema.DelayDays), agg: Mean, top: true},
	}},
	{"outstanding_by_method", "Outstanding by Payment Method", KindBar, ColorCrimson, []seriesSpec{
		{name: "outstanding", dim: By(schema.PaymentMethod), metric: MetricOutstanding, agg: Sum},
	}},
	{"paid_by_payment_month", "Paid Amount by Payment Month", KindLine, ColorGreen, []seriesSpec{
		{name: "paid", dim: ByMonth(schema.PaymentDate), metric: MetricOf(schema.PaidAmount), agg: Sum},
	}},
	{"invoices_by_issue_month", "Invoices Issued per Month", KindLine, ColorPrimary, []seriesSpec{
		{name: "invoices", dim: ByMonth(schema.IssueDate), metric: MetricCount, agg: Count},
	}},
}

// ChartKeys lists the catalogue keys in display order.
func ChartKeys() []string {
	out := make([]string, len(catalogue))
	for i, c := range catalogue {
		out[i] = c.key
	}
	return out
}

// Charts builds every dashboard chart for view. Charts whose inputs are
// unmapped are returned with Available false. An empty view returns
// ErrEmptyView.
func Charts(view dataset.View, opts Options) ([]Chart, error) {
	if view.Empty() {
		return nil, ErrEmptyView
	}
	opts = opts.withDefaults()

	charts := make([]Chart, 0, len(catalogue))
	for _, spec := range catalogue {
		c := Chart{Key: spec.key, Title: spec.title, Kind: spec.kind, Color: spec.color, Available: true}
		for _, ss := range spec.series {
			v := view
			if ss.where != nil {
				if !view.Mapping.Has(schema.DelayDays) {
					c.Available, c.Reason = false, fmt.Sprintf("%v: %s", ErrInsufficientData, schema.DelayDays)
					break
				}
				v = view.Where(ss.where)
			}
			s, err := GroupBy(v, ss.dim, ss.metric, ss.agg)
			if errors.Is(err, ErrInsufficientData) {
				c.Available, c.Reason = false, err.Error()
				break
			}
			if err != nil {
				return nil, err
			}
			if ss.top {
				s = TopN(s, opts.TopN)
			}
			s.Name = ss.name
			c.Series = append(c.Series, s)
		}
		if !c.Available {
			c.Series = nil
		}
		charts = append(charts, c)
	}
	return charts, nil
}
