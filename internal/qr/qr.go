// =============================================================================
// Invoice Dashboard - QR Payment Code
// =============================================================================
//
// This module builds the tag-length-value payload printed as a QR code on
// simplified tax invoices, and renders it as a PNG.
//
// PAYLOAD LAYOUT:
//   Each entry is one tag byte, one length byte and the UTF-8 value. The
//   concatenated entries are base64 encoded.
//
//   Tag 1  seller name
//   Tag 2  VAT registration number
//   Tag 3  invoice timestamp (ISO-8601)
//   Tag 4  invoice total including VAT ("%.2f")
//   Tag 5  VAT total ("%.2f")
//
// EXAMPLE:
//   Seller "Acme" becomes 0x01 0x04 'A' 'c' 'm' 'e'.
//
// =============================================================================

package qr

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

// Tags of the payload entries.
const (
	TagSellerName byte = iota + 1
	TagVATNumber
	TagTimestamp
	TagInvoiceTotal
	TagVATTotal
)

// MaxValueLen is the longest value a one-byte length can describe.
const MaxValueLen = 255

// DefaultSize is the PNG edge length in pixels.
const DefaultSize = 256

var (
	// ErrValueTooLong is returned when a value exceeds MaxValueLen bytes.
	ErrValueTooLong = errors.New("TLV value longer than 255 bytes")

	// ErrMalformedPayload is returned when decoding a truncated or invalid
	// payload.
	ErrMalformedPayload = errors.New("malformed TLV payload")
)

// Invoice holds the fields encoded in the QR code.
type Invoice struct {
	SellerName   string          `yaml:"seller_name" json:"seller_name"`
	VATNumber    string          `yaml:"vat_number" json:"vat_number"`
	Timestamp    time.Time       `yaml:"timestamp" json:"timestamp"`
	InvoiceTotal decimal.Decimal `yaml:"invoice_total" json:"invoice_total"`
	VATTotal     decimal.Decimal `yaml:"vat_total" json:"vat_total"`
}

// Entry is one decoded TLV entry.
type Entry struct {
	Tag   byte
	Value string
}

// =============================================================================
// ENCODING
// =============================================================================

// EncodeTLV returns the raw TLV bytes of inv.
func EncodeTLV(inv Invoice) ([]byte, error) {
	entries := []Entry{
		{TagSellerName, inv.SellerName},
		{TagVATNumber, inv.VATNumber},
		{TagTimestamp, inv.Timestamp.Format(time.RFC3339)},
		{TagInvoiceTotal, inv.InvoiceTotal.StringFixed(2)},
		{TagVATTotal, inv.VATTotal.StringFixed(2)},
	}

	var out []byte
	for _, e := range entries {
		if len(e.Value) > MaxValueLen {
			return nil, fmt.Errorf("%w: tag %d has %d bytes", ErrValueTooLong, e.Tag, len(e.Value))
		}
		out = append(out, e.Tag, byte(len(e.Value)))
		out = append(out, e.Value...)
	}
	return out, nil
}

// Payload returns the base64 text embedded in the QR code.
func Payload(inv Invoice) (string, error) {
	raw, err := EncodeTLV(inv)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// PNG renders payload as a QR code image. size <= 0 uses DefaultSize.
func PNG(payload string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to render QR code: %w", err)
	}
	return png, nil
}

// =============================================================================
// DECODING
// =============================================================================

// DecodeTLV splits raw into its entries.
func DecodeTLV(raw []byte) ([]Entry, error) {
	var out []Entry
	for i := 0; i < len(raw); {
		if i+2 > len(raw) {
			return nil, fmt.Errorf("%w: truncated header at byte %d", ErrMalformedPayload, i)
		}
		tag, n := raw[i], int(raw[i+1])
		i += 2
		if i+n > len(raw) {
			return nil, fmt.Errorf("%w: tag %d wants %d bytes, %d left", ErrMalformedPayload, tag, n, len(raw)-i)
		}
		out = append(out, Entry{Tag: tag, Value: string(raw[i : i+n])})
		i += n
	}
	return out, nil
}

// DecodePayload reverses Payload.
func DecodePayload(payload string) (Invoice, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Invoice{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	entries, err := DecodeTLV(raw)
	if err != nil {
		return Invoice{}, err
	}

	var inv Invoice
	for _, e := range entries {
		switch e.Tag {
		case TagSellerName:
			inv.SellerName = e.Value
		case TagVATNumber:
			inv.VATNumber = e.Value
		case TagTimestamp:
			if inv.Timestamp, err = time.Parse(time.RFC3339, e.Value); err != nil {
				return Invoice{}, fmt.Errorf("%w: timestamp %q", ErrMalformedPayload, e.Value)
			}
		case TagInvoiceTotal:
			if inv.InvoiceTotal, err = decimal.NewFromString(e.Value); err != nil {
				return Invoice{}, fmt.Errorf("%w: invoice total %q", ErrMalformedPayload, e.Value)
			}
		case TagVATTotal:
			if inv.VATTotal, err = decimal.NewFromString(e.Value); err != nil {
				return Invoice{}, fmt.Errorf("%w: VAT total %q", ErrMalformedPayload, e.Value)
			}
		}
	}
	return inv, nil
}
