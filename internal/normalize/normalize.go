// Package normalize converts raw upload cells into typed values.
//
// Amounts lose their currency token and thousands separators before being
// parsed as decimals. Dates are tried against a permissive layout list and,
// failing that, read as Excel serial day numbers. Anything that still does not
// parse becomes Null and is reported through one of the sentinel errors so the
// caller can count it as a data-quality defect.
package normalize

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/invoice-dashboard/internal/schema"
)

var (
	// ErrMissing marks an empty cell. It is not a defect.
	ErrMissing = errors.New("missing value")

	ErrMalformedAmount = errors.New("malformed amount")
	ErrMalformedDate   = errors.New("malformed date")
	ErrMalformedNumber = errors.New("malformed number")
)

// DefaultCurrencyTokens are stripped from amount cells.
var DefaultCurrencyTokens = []string{"SAR", "ر.س"}

// dateLayouts are tried in order after any configured layouts. Ambiguous
// slash dates are read month first.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04",
	"1/2/2006 15:04",
	"01-02-2006",
	"01-02-06",
	"1-2-06",
	"02.01.2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"2-Jan-2006",
	"02-Jan-06",
	"Jan 2, 2006",
	"January 2, 2006",
	"20060102",
}

// Excel serial day numbers accepted as dates: 1950-01-01 through 2100-01-01.
// Bare integers outside this window, such as a lone year, are malformed.
const (
	minExcelSerial = 18264
	maxExcelSerial = 73051
)

// errNoDigits marks an amount cell that held only a currency token or
// separators.
var errNoDigits = errors.New("no digits")

// Normalizer turns raw strings into Cells. It is safe for concurrent use once
// built.
type Normalizer struct {
	currency *regexp.Regexp
	layouts  []string
	loc      *time.Location
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithCurrencyTokens replaces the stripped currency tokens.
func WithCurrencyTokens(tokens ...string) Option {
	return func(n *Normalizer) {
		n.currency = currencyPattern(tokens)
	}
}

// WithDateLayouts adds layouts tried before the built-in ones. Layouts may be
// Go reference layouts or tokens such as DD/MM/YYYY.
func WithDateLayouts(layouts ...string) Option {
	return func(n *Normalizer) {
		for _, l := range layouts {
			if l = strings.TrimSpace(l); l != "" {
				n.layouts = append(n.layouts, convertDateFormat(l))
			}
		}
	}
}

// WithLocation sets the zone dates without an offset are read in.
func WithLocation(loc *time.Location) Option {
	return func(n *Normalizer) {
		if loc != nil {
			n.loc = loc
		}
	}
}

// New builds a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		currency: currencyPattern(DefaultCurrencyTokens),
		loc:      time.UTC,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.layouts = append(n.layouts, dateLayouts...)
	return n
}

// Field normalizes raw for the kind of f.
func (n *Normalizer) Field(raw string, f schema.Field) (Cell, error) {
	return n.Value(raw, f.Kind())
}

// Value normalizes raw as kind. The returned Cell is always usable; the error
// is nil, ErrMissing or one of the malformed sentinels.
func (n *Normalizer) Value(raw string, kind schema.Kind) (Cell, error) {
	switch kind {
	case schema.KindAmount:
		return n.Amount(raw)
	case schema.KindInteger:
		return n.Integer(raw)
	case schema.KindDate:
		return n.Date(raw)
	default:
		return n.Text(raw)
	}
}

// Amount parses a currency amount such as "SAR 12,345.67" or "(1,200)".
func (n *Normalizer) Amount(raw string) (Cell, error) {
	d, err := n.decimal(raw)
	switch {
	case errors.Is(err, ErrMissing):
		return Null(), ErrMissing
	case err != nil:
		return Null(), ErrMalformedAmount
	}
	return Number(d), nil
}

// Integer parses a whole number, truncating any fraction toward zero.
func (n *Normalizer) Integer(raw string) (Cell, error) {
	d, err := n.decimal(raw)
	switch {
	case errors.Is(err, ErrMissing):
		return Null(), ErrMissing
	case err != nil:
		return Null(), ErrMalformedNumber
	}
	return Number(d.Truncate(0)), nil
}

// Date parses raw against the configured and built-in layouts, then as an
// Excel serial.
func (n *Normalizer) Date(raw string) (Cell, error) {
	s := strings.TrimSpace(asciiDigits(raw))
	if s == "" {
		return Null(), ErrMissing
	}

	for _, layout := range n.layouts {
		if t, err := time.ParseInLocation(layout, s, n.loc); err == nil {
			return Date(t), nil
		}
	}

	if serial, err := decimal.NewFromString(s); err == nil {
		f := serial.InexactFloat64()
		if f >= minExcelSerial && f <= maxExcelSerial {
			if t, err := excelize.ExcelDateToTime(f, false); err == nil {
				y, m, d := t.Date()
				h, mi, sec := t.Clock()
				return Date(time.Date(y, m, d, h, mi, sec, 0, n.loc)), nil
			}
		}
	}

	return Null(), ErrMalformedDate
}

// Text trims raw. Empty text is Null.
func (n *Normalizer) Text(raw string) (Cell, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Null(), ErrMissing
	}
	return Text(s), nil
}

// decimal cleans an amount-like string and parses it.
func (n *Normalizer) decimal(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, ErrMissing
	}

	s = asciiDigits(s)
	s = n.currency.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if r == ',' || r == '٬' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if s == "" {
		return decimal.Zero, errNoDigits
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// asciiDigits maps Arabic-Indic and Extended Arabic-Indic digits to ASCII and
// the Arabic decimal separator to a dot.
func asciiDigits(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		case r == '٫':
			return '.'
		}
		return r
	}, s)
}

func currencyPattern(tokens []string) *regexp.Regexp {
	var parts []string
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			parts = append(parts, regexp.QuoteMeta(t))
		}
	}
	if len(parts) == 0 {
		return regexp.MustCompile(`$^`)
	}
	return regexp.MustCompile(`(?i)` + strings.Join(parts, "|"))
}

// convertDateFormat converts DD/MM/YYYY style tokens to a Go layout. Go
// layouts pass through unchanged.
func convertDateFormat(format string) string {
	r := strings.NewReplacer(
		"YYYY", "2006",
		"YY", "06",
		"MM", "01",
		"DD", "02",
		"HH", "15",
		"mm", "04",
		"ss", "05",
	)
	return r.Replace(format)
}
