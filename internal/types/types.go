// =============================================================================
// Invoice Dashboard - Shared Types
// =============================================================================
//
// This package contains types shared by the parsers, the converter and the
// exporters. Keeping them here avoids import cycles between those packages.
//
// =============================================================================

package types

import (
	"fmt"
	"strings"
)

// RawRow is one data row aligned with RawTable.Headers.
type RawRow struct {
	// Number is the 1-based line or sheet row the values came from.
	Number int

	// Values has exactly one entry per header.
	Values []string
}

// RawTable is the parsed, untyped content of one upload.
type RawTable struct {
	// SourceFile is the name or path the table was read from.
	SourceFile string

	// Headers are cleaned and unique.
	Headers []string

	Rows []RawRow
}

// NewRawTable builds a table from a header row and the data rows that follow
// it. firstDataRow is the source row number of dataRows[0].
//
// Headers are trimmed, empty headers become Column_N and repeated headers get
// a .1, .2 suffix. Blank data rows are skipped; short rows are padded and long
// rows are cut to the header width.
func NewRawTable(source string, headers []string, dataRows [][]string, firstDataRow int) *RawTable {
	t := &RawTable{
		SourceFile: source,
		Headers:    UniqueHeaders(CleanHeaders(headers)),
	}

	for i, row := range dataRows {
		if isRowEmpty(row) {
			continue
		}
		values := make([]string, len(t.Headers))
		for col := range values {
			if col < len(row) {
				values[col] = strings.TrimSpace(row[col])
			}
		}
		t.Rows = append(t.Rows, RawRow{Number: firstDataRow + i, Values: values})
	}

	return t
}

// Len returns the number of data rows.
func (t *RawTable) Len() int { return len(t.Rows) }

// Column returns the index of header h, or -1.
func (t *RawTable) Column(h string) int {
	for i, header := range t.Headers {
		if header == h {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of t.
func (t *RawTable) Clone() *RawTable {
	c := &RawTable{
		SourceFile: t.SourceFile,
		Headers:    append([]string(nil), t.Headers...),
		Rows:       make([]RawRow, len(t.Rows)),
	}
	for i, r := range t.Rows {
		c.Rows[i] = RawRow{Number: r.Number, Values: append([]string(nil), r.Values...)}
	}
	return c
}

// =============================================================================
// HEADER HELPERS
// =============================================================================

// CleanHeaders trims headers and names empty ones Column_N.
func CleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		header = strings.TrimSpace(strings.TrimPrefix(header, "\uFEFF"))
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}
	return cleaned
}

// UniqueHeaders suffixes repeated headers with .1, .2 and so on, skipping any
// suffix already taken by another header.
func UniqueHeaders(headers []string) []string {
	taken := make(map[string]bool, len(headers))
	for _, h := range headers {
		taken[h] = true
	}

	seen := make(map[string]int, len(headers))
	out := make([]string, len(headers))
	for i, h := range headers {
		n, dup := seen[h]
		if !dup {
			seen[h] = 0
			out[i] = h
			continue
		}
		name := h
		for {
			n++
			name = fmt.Sprintf("%s.%d", h, n)
			if !taken[name] {
				break
			}
		}
		seen[h] = n
		taken[name] = true
		out[i] = name
	}
	return out
}

// MergeHeaderRows joins the non-empty cells of each column across the first n
// rows with a space.
//
// Example:
//
//	Row 1: "Invoice", "",      "Due"
//	Row 2: "Number",  "Total", "Date"
//	Result: "Invoice Number", "Total", "Due Date"
func MergeHeaderRows(rows [][]string, n int) []string {
	if n > len(rows) {
		n = len(rows)
	}
	if n <= 1 {
		if n == 1 {
			return append([]string(nil), rows[0]...)
		}
		return nil
	}

	maxCols := 0
	for i := 0; i < n; i++ {
		if len(rows[i]) > maxCols {
			maxCols = len(rows[i])
		}
	}

	headers := make([]string, maxCols)
	for col := 0; col < maxCols; col++ {
		var parts []string
		for row := 0; row < n; row++ {
			if col < len(rows[row]) {
				if v := strings.TrimSpace(rows[row][col]); v != "" {
					parts = append(parts, v)
				}
			}
		}
		headers[col] = strings.Join(parts, " ")
	}
	return headers
}

func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
