package filter

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ginjaninja78/invoice-dashboard/internal/dataset"
	"github.com/ginjaninja78/invoice-dashboard/internal/schema"
)

var (
	// ErrNotLoaded is returned when the manager has no dataset yet.
	ErrNotLoaded = errors.New("no dataset loaded")

	// ErrNotFilterable is returned for a field that has no filter dimension in
	// the loaded dataset.
	ErrNotFilterable = errors.New("field is not filterable")

	// ErrFilterType is returned when a filter value has the wrong type for
	// its dimension.
	ErrFilterType = errors.New("filter value has wrong type")
)

// Manager owns the filter state of one session.
//
// It starts Uninitialized. Load moves it to Active and always re-derives the
// defaults from the new dataset; Reset restores them. Views are recomputed
// from the dataset on every call and never cached.
type Manager struct {
	mu       sync.RWMutex
	ds       *dataset.Dataset
	defaults State
	state    State
}

// NewManager returns an Uninitialized manager.
func NewManager() *Manager {
	return &Manager{}
}

// Load installs ds and resets every filter to its full extent.
func (m *Manager) Load(ds *dataset.Dataset) {
	d := Defaults(ds)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ds = ds
	m.defaults = d
	m.state = d.Clone()
}

// Loaded reports whether the manager is Active.
func (m *Manager) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ds != nil
}

// Dataset returns the loaded dataset, or nil.
func (m *Manager) Dataset() *dataset.Dataset {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ds
}

// Reset restores the defaults derived at load time.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ds == nil {
		return ErrNotLoaded
	}
	m.state = m.defaults.Clone()
	return nil
}

// SetFilter replaces the predicate of one dimension.
//
// Accepted values:
//   - client, payment_status, payment_method: CategoryFilter or []string
//   - issue_date, due_date: DateRange
//   - delay_days: NumberRange
//
// An empty selection is legal and yields an empty view.
func (m *Manager) SetFilter(f schema.Field, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ds == nil {
		return ErrNotLoaded
	}

	switch {
	case isIn(f, CategoricalFields):
		if _, ok := m.state.Categories[f]; !ok {
			return fmt.Errorf("%w: %s is not mapped", ErrNotFilterable, f)
		}
		switch v := value.(type) {
		case CategoryFilter:
			m.state.Categories[f] = v.clone()
		case []string:
			m.state.Categories[f] = Select(v...)
		default:
			return fmt.Errorf("%w: %s takes a selection, got %T", ErrFilterType, f, value)
		}

	case isIn(f, DateFields):
		if _, ok := m.state.Dates[f]; !ok {
			return fmt.Errorf("%w: %s is not mapped", ErrNotFilterable, f)
		}
		v, ok := value.(DateRange)
		if !ok {
			return fmt.Errorf("%w: %s takes a date range, got %T", ErrFilterType, f, value)
		}
		m.state.Dates[f] = v

	case f == schema.DelayDays:
		if m.state.Delay == nil {
			return fmt.Errorf("%w: %s is not mapped", ErrNotFilterable, f)
		}
		v, ok := value.(NumberRange)
		if !ok {
			return fmt.Errorf("%w: %s takes a number range, got %T", ErrFilterType, f, value)
		}
		m.state.Delay = &v

	default:
		return fmt.Errorf("%w: %s", ErrNotFilterable, f)
	}
	return nil
}

// State returns a copy of the current state. It is empty before Load.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone()
}

// Defaults returns a copy of the full-extent state of the loaded dataset.
func (m *Manager) Defaults() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaults.Clone()
}

// View applies the current state to the loaded dataset.
func (m *Manager) View() (dataset.View, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ds == nil {
		return dataset.View{}, ErrNotLoaded
	}
	return Apply(m.ds, m.state), nil
}

// Snapshot returns the loaded dataset and its current view under one lock,
// so a concurrent Load cannot pair a view with a different dataset.
func (m *Manager) Snapshot() (*dataset.Dataset, dataset.View, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ds == nil {
		return nil, dataset.View{}, ErrNotLoaded
	}
	return m.ds, Apply(m.ds, m.state), nil
}

func isIn(f schema.Field, set []schema.Field) bool {
	for _, s := range set {
		if s == f {
			return true
		}
	}
	return false
}
