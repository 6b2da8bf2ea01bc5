// =============================================================================
// Invoice Dashboard - PDF Invoice Generator
// =============================================================================
//
// This module renders a simplified tax invoice: seller block, client and
// invoice details, an items table, totals with VAT and the QR payment code.
//
// TOTALS:
//   line     = quantity * unit_price
//   subtotal = sum of lines
//   vat      = subtotal * vat_rate, rounded to 2 decimals
//   total    = subtotal + vat
//
// FONTS:
//   The core Arial font only covers Latin text. Set Options.FontPath to a
//   TTF with Arabic glyphs (e.g. Amiri) to print Arabic names.
//
// =============================================================================

package pdfgen

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/invoice-dashboard/internal/qr"
)

var (
	// ErrNoItems is returned for an invoice without items.
	ErrNoItems = errors.New("invoice has no items")

	// ErrInvalidItem is returned for an item with a non-positive quantity
	// or a negative price.
	ErrInvalidItem = errors.New("invalid invoice item")
)

// DefaultVATRate is the standard Saudi VAT rate.
var DefaultVATRate = decimal.RequireFromString("0.15")

// =============================================================================
// TYPES
// =============================================================================

// Item is one invoice line.
type Item struct {
	Description string          `yaml:"description"`
	Quantity    decimal.Decimal `yaml:"quantity"`
	UnitPrice   decimal.Decimal `yaml:"unit_price"`
}

// Line returns quantity * unit price.
func (i Item) Line() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice)
}

// Invoice is the document to render.
type Invoice struct {
	Number string    `yaml:"number"`
	Client string    `yaml:"client"`
	Date   time.Time `yaml:"date"`
	Items  []Item    `yaml:"items"`
}

// Seller identifies the issuer.
type Seller struct {
	Name      string
	VATNumber string
}

// Totals are the computed amounts of an invoice.
type Totals struct {
	Subtotal decimal.Decimal
	VAT      decimal.Decimal
	Total    decimal.Decimal
}

// Options tune rendering.
type Options struct {
	// VATRate is a fraction. Zero uses DefaultVATRate.
	VATRate decimal.Decimal

	// Currency is printed after amounts. Default: "SAR"
	Currency string

	// FontPath is an optional UTF-8 TTF font.
	FontPath string

	// QRSize is the QR image edge in pixels.
	QRSize int
}

// Result describes a rendered invoice.
type Result struct {
	Totals  Totals
	Payload string
}

// ComputeTotals validates items and computes the totals at rate.
func ComputeTotals(items []Item, rate decimal.Decimal) (Totals, error) {
	if len(items) == 0 {
		return Totals{}, ErrNoItems
	}

	subtotal := decimal.Zero
	for i, it := range items {
		if !it.Quantity.IsPositive() || it.UnitPrice.IsNegative() {
			return Totals{}, fmt.Errorf("%w: item %d (%q)", ErrInvalidItem, i+1, it.Description)
		}
		subtotal = subtotal.Add(it.Line())
	}
	subtotal = subtotal.Round(2)
	vat := subtotal.Mul(rate).Round(2)

	return Totals{Subtotal: subtotal, VAT: vat, Total: subtotal.Add(vat)}, nil
}

// =============================================================================
// RENDERING
// =============================================================================

// Render writes inv as a PDF to w.
//
// RETURNS:
//   - The totals and the QR payload printed on the invoice.
//   - An error if the invoice is invalid or rendering fails.
func Render(w io.Writer, inv Invoice, seller Seller, opts Options) (Result, error) {
	if opts.VATRate.IsZero() {
		opts.VATRate = DefaultVATRate
	}
	if opts.Currency == "" {
		opts.Currency = "SAR"
	}
	if inv.Date.IsZero() {
		inv.Date = time.Now()
	}

	totals, err := ComputeTotals(inv.Items, opts.VATRate)
	if err != nil {
		return Result{}, err
	}

	payload, err := qr.Payload(qr.Invoice{
		SellerName:   seller.Name,
		VATNumber:    seller.VATNumber,
		Timestamp:    inv.Date,
		InvoiceTotal: totals.Total,
		VATTotal:     totals.VAT,
	})
	if err != nil {
		return Result{}, err
	}
	png, err := qr.PNG(payload, opts.QRSize)
	if err != nil {
		return Result{}, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)

	family := "Arial"
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if opts.FontPath != "" {
		if _, err := os.Stat(opts.FontPath); err != nil {
			return Result{}, fmt.Errorf("font not found: %w", err)
		}
		pdf.AddUTF8Font("body", "", opts.FontPath)
		pdf.AddUTF8Font("body", "B", opts.FontPath)
		family = "body"
		tr = func(s string) string { return s }
	}

	pdf.AddPage()

	// Title
	pdf.SetFont(family, "B", 20)
	pdf.SetTextColor(42, 157, 143)
	pdf.CellFormat(0, 10, "Tax Invoice", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	// Seller block
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont(family, "B", 11)
	pdf.Cell(0, 6, tr(seller.Name))
	pdf.Ln(5)
	pdf.SetFont(family, "", 9)
	if seller.VATNumber != "" {
		pdf.Cell(0, 5, tr("VAT No.: "+seller.VATNumber))
		pdf.Ln(8)
	}

	// Invoice details
	pdf.SetFont(family, "", 10)
	pdf.Cell(0, 5, tr("Invoice: "+inv.Number))
	pdf.Ln(5)
	pdf.Cell(0, 5, tr("Client: "+inv.Client))
	pdf.Ln(5)
	pdf.Cell(0, 5, "Date: "+inv.Date.Format("2006-01-02"))
	pdf.Ln(10)

	// Items table
	pdf.SetFillColor(249, 249, 249)
	pdf.SetFont(family, "B", 9)
	pdf.CellFormat(90, 8, "Description", "B", 0, "L", true, 0, "")
	pdf.CellFormat(25, 8, "Qty", "B", 0, "R", true, 0, "")
	pdf.CellFormat(30, 8, "Unit Price", "B", 0, "R", true, 0, "")
	pdf.CellFormat(35, 8, "Amount", "B", 0, "R", true, 0, "")
	pdf.Ln(8)

	pdf.SetFont(family, "", 9)
	for _, it := range inv.Items {
		pdf.CellFormat(90, 6, tr(it.Description), "", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, it.Quantity.String(), "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, it.UnitPrice.StringFixed(2), "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, it.Line().StringFixed(2), "", 0, "R", false, 0, "")
		pdf.Ln(6)
	}
	pdf.Ln(4)

	// Totals
	rate := opts.VATRate.Mul(decimal.NewFromInt(100))
	for _, row := range []struct {
		label string
		value decimal.Decimal
	}{
		{"Subtotal", totals.Subtotal},
		{fmt.Sprintf("VAT (%s%%)", rate.String()), totals.VAT},
	} {
		pdf.CellFormat(145, 6, row.label, "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, money(row.value, opts.Currency), "", 0, "R", false, 0, "")
		pdf.Ln(6)
	}
	pdf.SetFont(family, "B", 12)
	pdf.CellFormat(145, 9, "Total", "T", 0, "R", true, 0, "")
	pdf.CellFormat(35, 9, money(totals.Total, opts.Currency), "T", 0, "R", true, 0, "")
	pdf.Ln(14)

	// QR code
	imgOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imgOpts, bytes.NewReader(png))
	pdf.ImageOptions("qr", 15, pdf.GetY(), 40, 40, false, imgOpts, 0, "")

	if err := pdf.Output(w); err != nil {
		return Result{}, fmt.Errorf("failed to write PDF: %w", err)
	}
	return Result{Totals: totals, Payload: payload}, nil
}

// RenderFile writes inv to path.
func RenderFile(path string, inv Invoice, seller Seller, opts Options) (Result, error) {
	var buf bytes.Buffer
	res, err := Render(&buf, inv, seller, opts)
	if err != nil {
		return Result{}, err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return Result{}, fmt.Errorf("failed to save PDF: %w", err)
	}
	return res, nil
}

// ParseVATRate parses a fraction such as "0.15". A percentage such as "15%"
// is accepted too.
func ParseVATRate(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultVATRate, nil
	}
	pct := strings.HasSuffix(s, "%")
	d, err := decimal.NewFromString(strings.TrimSuffix(s, "%"))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid VAT rate %q", s)
	}
	if pct {
		d = d.Div(decimal.NewFromInt(100))
	}
	if d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("VAT rate %q out of range", s)
	}
	return d, nil
}

func money(v decimal.Decimal, currency string) string {
	return v.StringFixed(2) + " " + currency
}
