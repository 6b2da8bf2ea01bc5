package schema

import (
	"encoding/json"
)

// =============================================================================
// COLUMN MAPPING
// =============================================================================

// ColumnMapping binds canonical fields to raw headers of one upload.
// A header is bound to at most one field. Unbound fields are unmapped.
type ColumnMapping struct {
	byField map[Field]int
	headers []string
}

// Header returns the raw header bound to f.
func (m ColumnMapping) Header(f Field) (string, bool) {
	i, ok := m.byField[f]
	if !ok {
		return "", false
	}
	return m.headers[i], true
}

// Column returns the position of the header bound to f.
func (m ColumnMapping) Column(f Field) (int, bool) {
	i, ok := m.byField[f]
	return i, ok
}

// Has reports whether f is mapped.
func (m ColumnMapping) Has(f Field) bool {
	_, ok := m.byField[f]
	return ok
}

// Mapped returns the mapped fields in declaration order.
func (m ColumnMapping) Mapped() []Field {
	var out []Field
	for _, f := range Fields() {
		if m.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Missing returns the unmapped fields in declaration order.
func (m ColumnMapping) Missing() []Field {
	var out []Field
	for _, f := range Fields() {
		if !m.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Unused returns the headers no field claimed, in source order.
func (m ColumnMapping) Unused() []string {
	claimed := make(map[int]bool, len(m.byField))
	for _, i := range m.byField {
		claimed[i] = true
	}
	var out []string
	for i, h := range m.headers {
		if !claimed[i] {
			out = append(out, h)
		}
	}
	return out
}

// Headers returns the raw headers the mapping was resolved from.
func (m ColumnMapping) Headers() []string {
	return append([]string(nil), m.headers...)
}

// MarshalJSON encodes the mapping as field -> header.
func (m ColumnMapping) MarshalJSON() ([]byte, error) {
	out := make(map[Field]string, len(m.byField))
	for f, i := range m.byField {
		out[f] = m.headers[i]
	}
	return json.Marshal(out)
}

// NewMapping builds a mapping from explicit field -> header bindings. A
// binding is dropped when its header is absent or already claimed.
func NewMapping(headers []string, bindings map[Field]string) ColumnMapping {
	m := ColumnMapping{
		byField: make(map[Field]int),
		headers: append([]string(nil), headers...),
	}
	claimed := make([]bool, len(headers))
	for _, f := range Fields() {
		h, ok := bindings[f]
		if !ok {
			continue
		}
		for i := range headers {
			if !claimed[i] && headers[i] == h {
				m.byField[f] = i
				claimed[i] = true
				break
			}
		}
	}
	return m
}

// =============================================================================
// RESOLVER
// =============================================================================

// Resolve maps headers onto the canonical fields.
//
// Fields are visited in declaration order and, for each field, aliases in
// priority order. The first unclaimed header whose Key equals the alias Key is
// bound and claimed. A header that matches several fields therefore goes to
// the field declared first, and a field with several matching headers binds
// only the highest priority one.
func Resolve(headers []string) ColumnMapping {
	return ResolveWith(headers, nil)
}

// ResolveWith applies the explicit bindings first, as NewMapping does, and
// then resolves the remaining fields over the unclaimed headers.
func ResolveWith(headers []string, bindings map[Field]string) ColumnMapping {
	m := NewMapping(headers, bindings)

	keys := make([]string, len(headers))
	for i, h := range headers {
		keys[i] = Key(h)
	}
	claimed := make([]bool, len(headers))
	for _, i := range m.byField {
		claimed[i] = true
	}

	for _, d := range dictionary {
		if _, bound := m.byField[d.field]; bound {
			continue
		}
	aliases:
		for _, alias := range d.aliases {
			ak := Key(alias)
			for i, hk := range keys {
				if claimed[i] || hk != ak {
					continue
				}
				m.byField[d.field] = i
				claimed[i] = true
				break aliases
			}
		}
	}

	return m
}
