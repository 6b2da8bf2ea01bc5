package filter_test

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/invoice-dashboard/internal/dataset"
	"github.com/ginjaninja78/invoice-dashboard/internal/filter"
	"github.com/ginjaninja78/invoice-dashboard/internal/normalize"
	"github.com/ginjaninja78/invoice-dashboard/internal/schema"
	"github.com/ginjaninja78/invoice-dashboard/internal/types"
)

func sample(t *testing.T) *dataset.Dataset {
	t.Helper()
	table := types.NewRawTable("sample.csv",
		[]string{"Client", "Status", "Method", "Issue Date", "Due Date", "Delay", "Amount", "Paid"},
		[][]string{
			{"Acme", "مدفوع", "Cash", "2024-12-05", "2025-01-05", "0", "1000", "1000"},
			{"Beta", "Unpaid", "Card", "2025-01-10", "2025-02-10", "12", "500", "0"},
			{"Acme", "Partial", "", "2025-01-20", "", "3", "800", "300"},
			{"", "Unpaid", "Card", "bad date", "2025-03-01", "", "200", "0"},
		}, 2)
	return dataset.Build(table, schema.Resolve(table.Headers), normalize.New())
}

func rows(v dataset.View) []int {
	var out []int
	for _, r := range v.Records {
		out = append(out, r.Row())
	}
	return out
}

func TestDefaultsSelectFullExtent(t *testing.T) {
	ds := sample(t)
	s := filter.Defaults(ds)

	if got := s.Categories[schema.Client].Values; !reflect.DeepEqual(got, []string{"Acme", "Beta"}) {
		t.Errorf("client values = %v", got)
	}
	issue := s.Dates[schema.IssueDate]
	if issue.From.Format("2006-01-02") != "2024-12-05" || issue.To.Format("2006-01-02") != "2025-01-20" {
		t.Errorf("issue range = %v .. %v", issue.From, issue.To)
	}
	if s.Delay == nil || !s.Delay.Min.Equal(decimal.Zero) || !s.Delay.Max.Equal(decimal.NewFromInt(12)) {
		t.Errorf("delay range = %+v", s.Delay)
	}

	v := filter.Apply(ds, s)
	if v.Len() != ds.Len() {
		t.Errorf("full extent view has %d records, want %d", v.Len(), ds.Len())
	}
}

func TestEmptySelectionYieldsEmptyView(t *testing.T) {
	ds := sample(t)
	m := filter.NewManager()
	m.Load(ds)

	if err := m.SetFilter(schema.Client, []string{}); err != nil {
		t.Fatal(err)
	}
	v, err := m.View()
	if err != nil {
		t.Fatal(err)
	}
	if !v.Empty() {
		t.Errorf("view has %d records, want 0", v.Len())
	}
}

func TestApplyCombinesWithAndPreservesOrder(t *testing.T) {
	ds := sample(t)
	s := filter.Defaults(ds)
	s.Categories[schema.PaymentStatus] = filter.Select("Unpaid", "Partial")
	s.Categories[schema.Client] = filter.CategoryFilter{Values: []string{"Acme", "Beta"}, IncludeMissing: true}

	if got := rows(filter.Apply(ds, s)); !reflect.DeepEqual(got, []int{3, 4, 5}) {
		t.Errorf("rows = %v, want [3 4 5]", got)
	}

	s.Dates[schema.IssueDate] = filter.Between(
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
	)
	if got := rows(filter.Apply(ds, s)); !reflect.DeepEqual(got, []int{3, 4}) {
		t.Errorf("rows = %v, want [3 4]", got)
	}
}

func TestDateRangeIsInclusiveByDay(t *testing.T) {
	ds := sample(t)
	s := filter.Defaults(ds)
	day := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	s.Dates[schema.IssueDate] = filter.Between(day, day)

	if got := rows(filter.Apply(ds, s)); !reflect.DeepEqual(got, []int{4}) {
		t.Errorf("rows = %v, want [4]", got)
	}
}

func TestDelayRange(t *testing.T) {
	ds := sample(t)
	s := filter.Defaults(ds)
	s.Delay = &filter.NumberRange{Min: decimal.NewFromInt(1), Max: decimal.NewFromInt(20)}

	if got := rows(filter.Apply(ds, s)); !reflect.DeepEqual(got, []int{3, 4}) {
		t.Errorf("rows = %v, want [3 4]", got)
	}
}

func TestApplyIsIdempotentAndPure(t *testing.T) {
	ds := sample(t)
	s := filter.Defaults(ds)
	s.Categories[schema.PaymentMethod] = filter.Select("Card")
	before := s.Clone()

	first := filter.Apply(ds, s)
	second := filter.Apply(dataset.New(ds.Source, ds.Mapping, first.Records), s)

	if !reflect.DeepEqual(rows(first), rows(second)) {
		t.Errorf("apply not idempotent: %v then %v", rows(first), rows(second))
	}
	if !reflect.DeepEqual(before, s) {
		t.Errorf("Apply modified the state")
	}
	if ds.Len() != 4 {
		t.Errorf("Apply modified the dataset")
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	ds := sample(t)
	m := filter.NewManager()
	m.Load(ds)
	initial := m.State()

	_ = m.SetFilter(schema.Client, []string{"Beta"})
	_ = m.SetFilter(schema.DelayDays, filter.Range(decimal.NewFromInt(5), decimal.NewFromInt(5)))
	if reflect.DeepEqual(initial, m.State()) {
		t.Fatal("SetFilter did not change state")
	}

	if err := m.Reset(); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(initial, m.State()) {
		t.Errorf("state after Reset differs from state after Load")
	}
	v, _ := m.View()
	if v.Len() != ds.Len() {
		t.Errorf("view after Reset has %d records, want %d", v.Len(), ds.Len())
	}
}

func TestLoadRederivesDefaults(t *testing.T) {
	m := filter.NewManager()
	m.Load(sample(t))
	_ = m.SetFilter(schema.Client, []string{})

	table := types.NewRawTable("second.csv", []string{"Client"}, [][]string{{"Zed"}}, 2)
	m.Load(dataset.Build(table, schema.Resolve(table.Headers), normalize.New()))

	s := m.State()
	if got := s.Categories[schema.Client].Values; !reflect.DeepEqual(got, []string{"Zed"}) {
		t.Errorf("client values after reload = %v", got)
	}
	if _, ok := s.Dates[schema.IssueDate]; ok {
		t.Errorf("issue_date is unmapped in the new dataset and must have no filter")
	}
}

func TestManagerErrors(t *testing.T) {
	m := filter.NewManager()
	if err := m.Reset(); !errors.Is(err, filter.ErrNotLoaded) {
		t.Errorf("Reset before Load = %v", err)
	}
	if _, err := m.View(); !errors.Is(err, filter.ErrNotLoaded) {
		t.Errorf("View before Load = %v", err)
	}

	m.Load(sample(t))
	tests := []struct {
		field schema.Field
		value any
		want  error
	}{
		{schema.Client, "Acme", filter.ErrFilterType},
		{schema.IssueDate, []string{"x"}, filter.ErrFilterType},
		{schema.DelayDays, 5, filter.ErrFilterType},
		{schema.InvoiceAmount, []string{"x"}, filter.ErrNotFilterable},
		{schema.PaymentDate, filter.DateRange{}, filter.ErrNotFilterable},
		{schema.Client, filter.Select("Acme"), nil},
	}
	for _, tt := range tests {
		if err := m.SetFilter(tt.field, tt.value); !errors.Is(err, tt.want) {
			t.Errorf("SetFilter(%s, %T) = %v, want %v", tt.field, tt.value, err, tt.want)
		}
	}
}

func TestStateIsACopy(t *testing.T) {
	m := filter.NewManager()
	m.Load(sample(t))

	s := m.State()
	c := s.Categories[schema.Client]
	c.Values[0] = "mutated"

	if m.State().Categories[schema.Client].Values[0] == "mutated" {
		t.Errorf("State() exposes internal storage")
	}
}

func TestSnapshotIsConsistentAcrossReloads(t *testing.T) {
	big := sample(t)
	small := dataset.Build(
		types.NewRawTable("small.csv", []string{"Client"}, [][]string{{"Solo"}}, 2),
		schema.Resolve([]string{"Client"}), normalize.New())

	m := filter.NewManager()
	if _, _, err := m.Snapshot(); !errors.Is(err, filter.ErrNotLoaded) {
		t.Fatalf("Snapshot before Load = %v, want ErrNotLoaded", err)
	}
	m.Load(big)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				m.Load(small)
			} else {
				m.Load(big)
			}
		}
	}()

	for i := 0; i < 500; i++ {
		ds, view, err := m.Snapshot()
		if err != nil {
			t.Fatal(err)
		}
		if view.Len() != ds.Len() {
			close(stop)
			wg.Wait()
			t.Fatalf("view of %d records paired with dataset %s of %d", view.Len(), ds.Source, ds.Len())
		}
	}
	close(stop)
	wg.Wait()
}
