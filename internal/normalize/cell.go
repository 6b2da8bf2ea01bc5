package normalize

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// CellKind tags the variant held by a Cell.
type CellKind int

const (
	CellNull CellKind = iota
	CellNumber
	CellDate
	CellText
)

// Cell is a normalized value: exactly one of Null, Number, Date or Text.
// The zero value is Null.
type Cell struct {
	kind CellKind
	num  decimal.Decimal
	date time.Time
	text string
}

// Null returns the empty cell.
func Null() Cell { return Cell{} }

// Number returns a numeric cell.
func Number(d decimal.Decimal) Cell { return Cell{kind: CellNumber, num: d} }

// Date returns a date cell.
func Date(t time.Time) Cell { return Cell{kind: CellDate, date: t} }

// Text returns a text cell.
func Text(s string) Cell { return Cell{kind: CellText, text: s} }

func (c Cell) Kind() CellKind { return c.kind }

func (c Cell) IsNull() bool { return c.kind == CellNull }

// Number returns the numeric value, if c is a number.
func (c Cell) Number() (decimal.Decimal, bool) {
	if c.kind != CellNumber {
		return decimal.Zero, false
	}
	return c.num, true
}

// Date returns the time value, if c is a date.
func (c Cell) Date() (time.Time, bool) {
	if c.kind != CellDate {
		return time.Time{}, false
	}
	return c.date, true
}

// Text returns the string value, if c is text.
func (c Cell) Text() (string, bool) {
	if c.kind != CellText {
		return "", false
	}
	return c.text, true
}

// String renders the cell for display and export. Null renders empty.
func (c Cell) String() string {
	switch c.kind {
	case CellNumber:
		return c.num.String()
	case CellDate:
		return formatDate(c.date)
	case CellText:
		return c.text
	}
	return ""
}

// Equal reports whether two cells hold the same variant and value.
func (c Cell) Equal(o Cell) bool {
	if c.kind != o.kind {
		return false
	}
	switch c.kind {
	case CellNumber:
		return c.num.Equal(o.num)
	case CellDate:
		return c.date.Equal(o.date)
	case CellText:
		return c.text == o.text
	}
	return true
}

// MarshalJSON encodes numbers as JSON numbers, dates as strings and Null as
// null.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case CellNumber:
		return []byte(c.num.String()), nil
	case CellDate:
		return json.Marshal(formatDate(c.date))
	case CellText:
		return json.Marshal(c.text)
	}
	return []byte("null"), nil
}

// formatDate drops the clock when it is midnight.
func formatDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}
