// =============================================================================
// Invoice Dashboard - Schema Dictionary
// =============================================================================
//
// This module defines the canonical invoice schema. Every uploaded table is
// mapped onto these fields before anything else looks at it.
//
// FIELD ORDER:
//   The declaration order below is significant. The column resolver walks the
//   fields in this order, so a field declared earlier wins a contested header.
//
// ALIASES:
//   Each field carries an ordered list of accepted header names in English and
//   Arabic. Matching is exact after case folding (see Key), never substring.
//
// =============================================================================

package schema

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// CANONICAL FIELDS
// =============================================================================

// Field is a canonical invoice field.
type Field string

const (
	InvoiceAmount Field = "invoice_amount"
	PaidAmount    Field = "paid_amount"
	PaymentStatus Field = "payment_status"
	DelayDays     Field = "delay_days"
	IssueDate     Field = "issue_date"
	DueDate       Field = "due_date"
	PaymentDate   Field = "payment_date"
	Client        Field = "client"
	PaymentMethod Field = "payment_method"
	InvoiceNo     Field = "invoice_no"
)

// Kind is the value type a field is normalized to.
type Kind int

const (
	KindText Kind = iota
	KindAmount
	KindInteger
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindAmount:
		return "amount"
	case KindInteger:
		return "integer"
	case KindDate:
		return "date"
	default:
		return "text"
	}
}

// definition is a single entry of the dictionary.
type definition struct {
	field   Field
	kind    Kind
	label   string
	aliases []string
}

// dictionary holds the fields in resolution order.
var dictionary = []definition{
	{
		field: InvoiceAmount,
		kind:  KindAmount,
		label: "Invoice Amount",
		aliases: []string{
			"invoice_amount", "amount", "invoice total", "مبلغ الفاتورة (ر.س)", "invoice", "total",
		},
	},
	{
		field: PaidAmount,
		kind:  KindAmount,
		label: "Paid Amount",
		aliases: []string{
			"paid_amount", "amount_paid", "payment", "paid", "المبلغ المدفوع (ر.س)",
		},
	},
	{
		field: PaymentStatus,
		kind:  KindText,
		label: "Payment Status",
		aliases: []string{
			"payment_status", "status", "حالة الدفع", "payment state", "payment status",
		},
	},
	{
		field: DelayDays,
		kind:  KindInteger,
		label: "Delay (days)",
		aliases: []string{
			"delay_days", "days_late", "late days", "أيام التأخير", "delay",
		},
	},
	{
		field: IssueDate,
		kind:  KindDate,
		label: "Issue Date",
		aliases: []string{
			"issue_date", "issue date", "invoice_date", "date", "تاريخ الفاتورة", "invoice date", "date issued",
		},
	},
	{
		field: DueDate,
		kind:  KindDate,
		label: "Due Date",
		aliases: []string{
			"due_date", "due", "due date", "تاريخ الاستحقاق", "payment due date",
		},
	},
	{
		field: PaymentDate,
		kind:  KindDate,
		label: "Payment Date",
		aliases: []string{
			"payment_date", "date_paid", "تاريخ الدفع", "payment date",
		},
	},
	{
		field: Client,
		kind:  KindText,
		label: "Client",
		aliases: []string{
			"client", "customer", "client name", "اسم العميل", "customer name",
		},
	},
	{
		field: PaymentMethod,
		kind:  KindText,
		label: "Payment Method",
		aliases: []string{
			"payment_method", "method", "طريقة الدفع", "payment type",
		},
	},
	{
		field: InvoiceNo,
		kind:  KindText,
		label: "Invoice No.",
		aliases: []string{
			"invoice_no", "invoice number", "رقم الفاتورة", "invoice id",
		},
	},
}

// index maps a field to its dictionary position.
var index = func() map[Field]int {
	m := make(map[Field]int, len(dictionary))
	for i, d := range dictionary {
		m[d.field] = i
	}
	return m
}()

// =============================================================================
// LOOKUPS
// =============================================================================

// Fields returns every canonical field in declaration order.
func Fields() []Field {
	out := make([]Field, len(dictionary))
	for i, d := range dictionary {
		out[i] = d.field
	}
	return out
}

// Parse returns the field named s.
func Parse(s string) (Field, bool) {
	f := Field(strings.TrimSpace(strings.ToLower(s)))
	_, ok := index[f]
	return f, ok
}

// Valid reports whether f is a canonical field.
func (f Field) Valid() bool {
	_, ok := index[f]
	return ok
}

// Kind returns the value type of f. Unknown fields are text.
func (f Field) Kind() Kind {
	if i, ok := index[f]; ok {
		return dictionary[i].kind
	}
	return KindText
}

// Label returns a display label for f.
func (f Field) Label() string {
	if i, ok := index[f]; ok {
		return dictionary[i].label
	}
	return string(f)
}

// Aliases returns a copy of the accepted header names for f in priority order.
func (f Field) Aliases() []string {
	i, ok := index[f]
	if !ok {
		return nil
	}
	return append([]string(nil), dictionary[i].aliases...)
}

// Categorical reports whether f is filtered by value selection.
func (f Field) Categorical() bool {
	switch f {
	case Client, PaymentStatus, PaymentMethod:
		return true
	}
	return false
}

// Key returns the comparison form of a header or alias: trimmed, NFC
// normalized and Unicode case folded.
func Key(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}
