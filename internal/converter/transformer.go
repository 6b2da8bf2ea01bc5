// =============================================================================
// Invoice Dashboard - Transformation Engine
// =============================================================================
//
// This module rewrites raw cell text before it is normalized. Rules are keyed
// by canonical field, so they apply whatever the source header was called.
//
// TRANSFORMATION TYPES:
//   - String manipulations (prepend, append, trim, case conversion)
//   - Whitespace cleanup
//   - Substring and regular expression replacements
//   - Lookup table replacements
//   - Defaults for empty cells
//   - Zero padding
//
// COMMON USE CASES:
//   - Mapping status spellings ("Settled", "PAID ") onto one paid label
//   - Unifying client names that differ only by case or spacing
//   - Filling an empty payment_method with "Unknown"
//
// =============================================================================

package converter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ginjaninja78/invoice-dashboard/internal/config"
	"github.com/ginjaninja78/invoice-dashboard/internal/schema"
)

var whitespace = regexp.MustCompile(`\s+`)

// =============================================================================
// TRANSFORMER
// =============================================================================

// Transformer applies the configured actions to cell values. It is built once
// and is safe for concurrent use.
type Transformer struct {
	rules map[schema.Field][]compiledAction
}

type compiledAction struct {
	config.TransformationAction
	re     *regexp.Regexp
	lookup map[string]string
	width  int
}

// NewTransformer compiles rules. Unknown fields, unknown action types and
// invalid patterns are reported here rather than on every cell.
func NewTransformer(rules []config.TransformationRule) (*Transformer, error) {
	t := &Transformer{rules: make(map[schema.Field][]compiledAction)}

	for _, rule := range rules {
		f, ok := schema.Parse(rule.Field)
		if !ok {
			return nil, fmt.Errorf("transformation rule: unknown field %q", rule.Field)
		}
		for _, action := range rule.Actions {
			ca, err := compile(action)
			if err != nil {
				return nil, fmt.Errorf("transformation rule for %s: %w", f, err)
			}
			t.rules[f] = append(t.rules[f], ca)
		}
	}
	return t, nil
}

func compile(action config.TransformationAction) (compiledAction, error) {
	ca := compiledAction{TransformationAction: action}

	switch action.Type {
	case "trim", "uppercase", "lowercase", "normalize_whitespace",
		"prepend_string", "append_string", "replace", "if_empty_use_default":

	case "regex_replace":
		re, err := regexp.Compile(action.Find)
		if err != nil {
			return ca, fmt.Errorf("invalid regex pattern: %w", err)
		}
		ca.re = re

	case "lookup":
		ca.lookup = make(map[string]string, len(action.LookupTable))
		for k, v := range action.LookupTable {
			ca.lookup[schema.Key(k)] = v
		}

	case "pad_zeros_to_length":
		n, err := strconv.Atoi(strings.TrimSpace(action.Value))
		if err != nil || n <= 0 {
			return ca, fmt.Errorf("pad_zeros_to_length: invalid length %q", action.Value)
		}
		ca.width = n

	default:
		return ca, fmt.Errorf("unknown transformation type: %s", action.Type)
	}
	return ca, nil
}

// Has reports whether any action is configured for f.
func (t *Transformer) Has(f schema.Field) bool {
	return len(t.rules[f]) > 0
}

// Transform applies the actions of f to value in order.
func (t *Transformer) Transform(f schema.Field, value string) string {
	for _, a := range t.rules[f] {
		value = a.apply(value)
	}
	return value
}

// =============================================================================
// TRANSFORMATION FUNCTIONS
// =============================================================================

func (a compiledAction) apply(value string) string {
	switch a.Type {

	// =========================================================================
	// STRING MANIPULATIONS
	// =========================================================================

	case "trim":
		return strings.TrimSpace(value)

	case "uppercase":
		return strings.ToUpper(value)

	case "lowercase":
		return strings.ToLower(value)

	case "normalize_whitespace":
		// EXAMPLE:
		//   Input:  "  Acme   Trading  "
		//   Output: "Acme Trading"
		return strings.TrimSpace(whitespace.ReplaceAllString(value, " "))

	case "prepend_string":
		return a.Value + value

	case "append_string":
		return value + a.Value

	case "replace":
		if a.Find == "" {
			return value
		}
		return strings.ReplaceAll(value, a.Find, a.Value)

	case "regex_replace":
		return a.re.ReplaceAllString(value, a.Value)

	// =========================================================================
	// VALUE MAPPING
	// =========================================================================

	case "lookup":
		// Keys are compared after case folding, so "PAID" matches "paid".
		if v, ok := a.lookup[schema.Key(value)]; ok {
			return v
		}
		return value

	case "if_empty_use_default":
		if strings.TrimSpace(value) == "" {
			return a.Value
		}
		return value

	// =========================================================================
	// NUMERIC FORMATTING
	// =========================================================================

	case "pad_zeros_to_length":
		// EXAMPLE:
		//   Input:  "123"
		//   Action: pad_zeros_to_length with value "6"
		//   Output: "000123"
		if value == "" {
			return value
		}
		return PadLeft(value, a.width, '0')
	}
	return value
}

// PadLeft pads s with padChar on the left up to length runes.
func PadLeft(s string, length int, padChar rune) string {
	n := len([]rune(s))
	if n >= length {
		return s
	}
	return strings.Repeat(string(padChar), length-n) + s
}
