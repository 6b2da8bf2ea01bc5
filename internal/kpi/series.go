package kpi

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/invoice-dashboard/internal/dataset"
	"github.com/ginjaninja78/invoice-dashboard/internal/schema"
)

// =============================================================================
// DIMENSIONS, METRICS, AGGREGATORS
// =============================================================================

// Dimension groups records either by a text field or by the calendar month
// of a date field.
type Dimension struct {
	Field   schema.Field `json:"field"`
	ByMonth bool         `json:"by_month"`
}

// By groups by the value of a text field.
func By(f schema.Field) Dimension { return Dimension{Field: f} }

// ByMonth groups by the calendar month of a date field.
func ByMonth(f schema.Field) Dimension { return Dimension{Field: f, ByMonth: true} }

// ParseDimension reads "client" or "issue_date:month". A date field without
// a suffix is grouped by month.
func ParseDimension(s string) (Dimension, error) {
	name, month := s, false
	if n := len(s) - len(":month"); n > 0 && s[n:] == ":month" {
		name, month = s[:n], true
	}
	f, ok := schema.Parse(name)
	if !ok {
		return Dimension{}, fmt.Errorf("unknown dimension %q", s)
	}
	if f.Kind() == schema.KindDate {
		month = true
	}
	if month && f.Kind() != schema.KindDate {
		return Dimension{}, fmt.Errorf("dimension %q: only date fields group by month", s)
	}
	if !month && f.Kind() != schema.KindText {
		return Dimension{}, fmt.Errorf("dimension %q: not a categorical field", s)
	}
	return Dimension{Field: f, ByMonth: month}, nil
}

func (d Dimension) String() string {
	if d.ByMonth {
		return string(d.Field) + ":month"
	}
	return string(d.Field)
}

// Metric is the quantity being aggregated: an amount or integer field, the
// derived outstanding amount, or the record count.
type Metric string

const (
	MetricCount       Metric = "count"
	MetricOutstanding Metric = Metric(dataset.OutstandingField)
)

// MetricOf returns the metric for a numeric field.
func MetricOf(f schema.Field) Metric { return Metric(f) }

// ParseMetric validates s as a metric name.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricCount, MetricOutstanding:
		return Metric(s), nil
	}
	f, ok := schema.Parse(s)
	if !ok || (f.Kind() != schema.KindAmount && f.Kind() != schema.KindInteger) {
		return "", fmt.Errorf("unknown metric %q", s)
	}
	return MetricOf(f), nil
}

// Aggregator folds the metric values of one group.
type Aggregator string

const (
	Sum   Aggregator = "sum"
	Mean  Aggregator = "mean"
	Count Aggregator = "count"
)

// ParseAggregator validates s.
func ParseAggregator(s string) (Aggregator, error) {
	switch a := Aggregator(s); a {
	case Sum, Mean, Count:
		return a, nil
	}
	return "", fmt.Errorf("unknown aggregator %q", s)
}

// =============================================================================
// SERIES
// =============================================================================

// Point is one group of a series.
type Point struct {
	Label string          `json:"label"`
	Value decimal.Decimal `json:"value"`

	// Count is the number of records in the group.
	Count int `json:"count"`
}

// Series is the result of a group-by aggregation.
type Series struct {
	Name       string     `json:"name"`
	Dimension  Dimension  `json:"dimension"`
	Metric     Metric     `json:"metric"`
	Aggregator Aggregator `json:"aggregator"`
	Points     []Point    `json:"points"`
}

// Labels returns the point labels in order.
func (s Series) Labels() []string {
	out := make([]string, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Label
	}
	return out
}

// month is a (year, month) bucket.
type month struct {
	year  int
	month time.Month
}

func (m month) before(o month) bool {
	if m.year != o.year {
		return m.year < o.year
	}
	return m.month < o.month
}

func (m month) String() string {
	return fmt.Sprintf("%04d-%02d", m.year, int(m.month))
}

type group struct {
	label  string
	month  month
	sum    decimal.Decimal
	values int
	count  int
}

// GroupBy aggregates metric over the groups of dim.
//
// Records with a Null dimension value are skipped. Categorical groups keep the
// order in which their values first appear; month groups are sorted
// chronologically. Sum and Mean skip Null metric values; Count counts the
// records of the group whose metric is not Null (every record for
// MetricCount). Unmapped inputs return ErrInsufficientData.
func GroupBy(view dataset.View, dim Dimension, metric Metric, agg Aggregator) (Series, error) {
	if !view.Mapping.Has(dim.Field) {
		return Series{}, fmt.Errorf("%w: %s", ErrInsufficientData, dim.Field)
	}
	if f := schema.Field(metric); metric != MetricCount && metric != MetricOutstanding && !view.Mapping.Has(f) {
		return Series{}, fmt.Errorf("%w: %s", ErrInsufficientData, f)
	}
	if metric == MetricCount {
		agg = Count
	}

	var order []*group
	byKey := make(map[string]*group)

	for _, r := range view.Records {
		var key string
		var mo month
		if dim.ByMonth {
			t, ok := r.Date(dim.Field)
			if !ok {
				continue
			}
			mo = month{t.Year(), t.Month()}
			key = mo.String()
		} else {
			v, ok := r.Text(dim.Field)
			if !ok {
				continue
			}
			key = v
		}

		g, ok := byKey[key]
		if !ok {
			g = &group{label: key, month: mo, sum: decimal.Zero}
			byKey[key] = g
			order = append(order, g)
		}
		g.count++

		if v, ok := metricValue(r, metric); ok {
			g.sum = g.sum.Add(v)
			g.values++
		}
	}

	if dim.ByMonth {
		sort.SliceStable(order, func(i, j int) bool { return order[i].month.before(order[j].month) })
	}

	s := Series{Dimension: dim, Metric: metric, Aggregator: agg, Points: make([]Point, 0, len(order))}
	for _, g := range order {
		p := Point{Label: g.label, Count: g.count}
		switch agg {
		case Sum:
			p.Value = g.sum
		case Mean:
			if g.values > 0 {
				p.Value = g.sum.Div(decimal.NewFromInt(int64(g.values))).Round(2)
			} else {
				p.Value = decimal.Zero
			}
		case Count:
			p.Value = decimal.NewFromInt(int64(g.values))
		}
		s.Points = append(s.Points, p)
	}
	return s, nil
}

func metricValue(r dataset.Record, metric Metric) (decimal.Decimal, bool) {
	switch metric {
	case MetricCount:
		return decimal.NewFromInt(1), true
	case MetricOutstanding:
		return r.Outstanding(), true
	}
	return r.Number(schema.Field(metric))
}

// TopN returns the n largest points of s, largest first. Ties keep their
// order in s.
func TopN(s Series, n int) Series {
	points := append([]Point(nil), s.Points...)
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Value.GreaterThan(points[j].Value)
	})
	if n >= 0 && n < len(points) {
		points = points[:n]
	}
	s.Points = points
	return s
}
