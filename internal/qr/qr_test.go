package qr_test

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/invoice-dashboard/internal/qr"
)

func invoice() qr.Invoice {
	return qr.Invoice{
		SellerName:   "Acme",
		VATNumber:    "300000000000003",
		Timestamp:    time.Date(2025, 1, 15, 14, 30, 0, 0, time.UTC),
		InvoiceTotal: decimal.RequireFromString("1150"),
		VATTotal:     decimal.RequireFromString("150"),
	}
}

func TestEncodeTLV(t *testing.T) {
	raw, err := qr.EncodeTLV(invoice())
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.HasPrefix(raw, []byte{1, 4, 'A', 'c', 'm', 'e', 2, 15}) {
		t.Errorf("prefix = % x", raw[:8])
	}

	entries, err := qr.DecodeTLV(raw)
	if err != nil {
		t.Fatal(err)
	}
	want := []qr.Entry{
		{Tag: 1, Value: "Acme"},
		{Tag: 2, Value: "300000000000003"},
		{Tag: 3, Value: "2025-01-15T14:30:00Z"},
		{Tag: 4, Value: "1150.00"},
		{Tag: 5, Value: "150.00"},
	}
	if len(entries) != len(want) {
		t.Fatalf("entries = %+v", entries)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, entries[i], want[i])
		}
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	inv := invoice()
	inv.SellerName = "شركة موجز"

	payload, err := qr.Payload(inv)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		t.Fatalf("payload is not base64: %v", err)
	}

	got, err := qr.DecodePayload(payload)
	if err != nil {
		t.Fatal(err)
	}
	if got.SellerName != inv.SellerName || !got.Timestamp.Equal(inv.Timestamp) ||
		!got.InvoiceTotal.Equal(inv.InvoiceTotal) || !got.VATTotal.Equal(inv.VATTotal) {
		t.Errorf("decoded = %+v", got)
	}
}

func TestErrors(t *testing.T) {
	inv := invoice()
	inv.SellerName = strings.Repeat("x", 256)
	if _, err := qr.EncodeTLV(inv); !errors.Is(err, qr.ErrValueTooLong) {
		t.Errorf("256-byte value: err = %v", err)
	}

	inv.SellerName = strings.Repeat("x", 255)
	if _, err := qr.EncodeTLV(inv); err != nil {
		t.Errorf("255-byte value: err = %v", err)
	}

	for _, raw := range [][]byte{{1}, {1, 5, 'a', 'b'}} {
		if _, err := qr.DecodeTLV(raw); !errors.Is(err, qr.ErrMalformedPayload) {
			t.Errorf("DecodeTLV(% x) err = %v", raw, err)
		}
	}
	if _, err := qr.DecodePayload("not base64!"); !errors.Is(err, qr.ErrMalformedPayload) {
		t.Errorf("DecodePayload err = %v", err)
	}
}

func TestPNG(t *testing.T) {
	payload, err := qr.Payload(invoice())
	if err != nil {
		t.Fatal(err)
	}
	png, err := qr.PNG(payload, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")) {
		t.Error("output is not a PNG")
	}
}
