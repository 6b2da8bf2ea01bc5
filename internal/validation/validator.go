// =============================================================================
// Invoice Dashboard - Data Quality Validation
// =============================================================================
//
// This module records the data-quality defects found while normalizing an
// upload. A defect never stops a load: the offending cell is stored as Null and
// the problem is counted here so the user can see how much of the file was
// usable.
//
// WHAT IS RECORDED:
//   - Per mapped field: how many cells were empty and how many were malformed
//   - Per defect: row number, field, raw value and the rule that failed
//
// The issue list is capped (see NewReport) so a badly broken file cannot grow
// the report without bound. Counts are always exact.
//
// =============================================================================

package validation

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ginjaninja78/invoice-dashboard/internal/normalize"
	"github.com/ginjaninja78/invoice-dashboard/internal/schema"
)

// DefaultMaxIssues caps the issues kept by a Report.
const DefaultMaxIssues = 500

// =============================================================================
// ISSUE TYPES
// =============================================================================

// Severity of an issue.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Issue is a single data-quality defect.
type Issue struct {
	// Severity is always warning for cell defects.
	Severity Severity `json:"severity"`

	// Field is the canonical field the cell was bound to.
	Field schema.Field `json:"field"`

	// Value is the raw cell text.
	Value string `json:"value"`

	// Rule names the check that failed, e.g. "amount" or "date".
	Rule string `json:"rule"`

	Message string `json:"message"`

	// RowNumber is the source row (header is row 1 for single-header files).
	RowNumber int `json:"row"`
}

// Error implements the error interface.
func (e *Issue) Error() string {
	return fmt.Sprintf("[%s] Row %d, Field '%s': %s (value: '%s')",
		strings.ToUpper(string(e.Severity)),
		e.RowNumber,
		e.Field,
		e.Message,
		e.Value,
	)
}

// =============================================================================
// REPORT
// =============================================================================

// FieldQuality holds the counts for one mapped field.
type FieldQuality struct {
	Missing   int `json:"missing"`
	Malformed int `json:"malformed"`
}

// Report summarizes the defects of one upload.
type Report struct {
	// Rows is the number of data rows checked.
	Rows int `json:"rows"`

	// Fields has an entry for every mapped field.
	Fields map[schema.Field]*FieldQuality `json:"fields"`

	// Issues lists malformed cells in row order, up to the cap.
	Issues []*Issue `json:"issues"`

	// Truncated counts issues dropped after the cap.
	Truncated int `json:"truncated,omitempty"`

	maxIssues int
}

// NewReport returns an empty report for the mapped fields. maxIssues <= 0
// uses DefaultMaxIssues.
func NewReport(mapped []schema.Field, maxIssues int) *Report {
	if maxIssues <= 0 {
		maxIssues = DefaultMaxIssues
	}
	r := &Report{
		Fields:    make(map[schema.Field]*FieldQuality, len(mapped)),
		maxIssues: maxIssues,
	}
	for _, f := range mapped {
		r.Fields[f] = &FieldQuality{}
	}
	return r
}

// Record counts the outcome of normalizing one cell. A nil err is a clean
// cell and is ignored.
func (r *Report) Record(row int, f schema.Field, raw string, err error) {
	if err == nil {
		return
	}

	q, ok := r.Fields[f]
	if !ok {
		q = &FieldQuality{}
		r.Fields[f] = q
	}

	if errors.Is(err, normalize.ErrMissing) {
		q.Missing++
		return
	}

	q.Malformed++
	if len(r.Issues) >= r.maxIssues {
		r.Truncated++
		return
	}
	r.Issues = append(r.Issues, &Issue{
		Severity:  SeverityWarning,
		Field:     f,
		Value:     raw,
		Rule:      ruleFor(err),
		Message:   err.Error(),
		RowNumber: row,
	})
}

// Malformed returns the total number of malformed cells.
func (r *Report) Malformed() int {
	n := 0
	for _, q := range r.Fields {
		n += q.Malformed
	}
	return n
}

// Missing returns the total number of empty cells in mapped columns.
func (r *Report) Missing() int {
	n := 0
	for _, q := range r.Fields {
		n += q.Missing
	}
	return n
}

// HasDefects reports whether any cell was malformed.
func (r *Report) HasDefects() bool {
	return r.Malformed() > 0
}

func ruleFor(err error) string {
	switch {
	case errors.Is(err, normalize.ErrMalformedAmount):
		return "amount"
	case errors.Is(err, normalize.ErrMalformedDate):
		return "date"
	case errors.Is(err, normalize.ErrMalformedNumber):
		return "integer"
	}
	return "value"
}

// =============================================================================
// OUTPUT
// =============================================================================

// Summary renders one line per mapped field in declaration order.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rows checked: %d, malformed cells: %d, empty cells: %d\n", r.Rows, r.Malformed(), r.Missing())
	for _, f := range schema.Fields() {
		q, ok := r.Fields[f]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "  %-16s missing %-6d malformed %d\n", f, q.Missing, q.Malformed)
	}
	return b.String()
}

// FormatIssues formats issues for display or logging.
func FormatIssues(issues []*Issue) string {
	if len(issues) == 0 {
		return "No data-quality issues."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Normalization completed with %d issue(s):\n\n", len(issues)))
	for i, issue := range issues {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, issue.Error()))
	}
	return builder.String()
}

// WriteErrorLog writes the report to filePath as plain text.
func WriteErrorLog(r *Report, source, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create error log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	fmt.Fprintf(writer, "Invoice Dashboard - Data Quality Log\nSource: %s\nGenerated: %s\n", source, time.Now().Format("2006-01-02 15:04:05"))
	writer.WriteString("================================================================================\n\n")
	writer.WriteString(r.Summary())
	writer.WriteString("\n")
	writer.WriteString(FormatIssues(r.Issues))
	if r.Truncated > 0 {
		fmt.Fprintf(writer, "\n... %d more issue(s) not shown\n", r.Truncated)
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush error log: %w", err)
	}
	return nil
}
