package docparse

import (
	"testing"
	"time"
)

func newTestInvoiceParser(now time.Time) *InvoiceParser {
	p := NewInvoiceParser(DefaultScoring().Invoice, discardLogger())
	p.now = func() time.Time { return now }
	return p
}

func TestParseInvoiceCompleteBill(t *testing.T) {
	p := newTestInvoiceParser(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))

	text := `FREIGHT INVOICE

Invoice #: INV-2024-0042
Invoice Date: 03/15/2026
Due Date: 04/14/2026
Payment Terms: Net 30

From:
Acme Freight Services LLC
123 Main Street
Houston, TX 77001

Ship To:
Global Shipping Co
456 Commerce Avenue
Dallas, TX 75201

Line Haul Freight Charge    $2,200.00
Fuel Surcharge              $250.00
Detention                   $50.00

Subtotal: $2,500.00
Tax: $0.00
Total Amount: $2,500.00`

	r := p.ParseInvoice(text)

	if r.Data.InvoiceNumber != "INV-2024-0042" {
		t.Errorf("invoice number = %q", r.Data.InvoiceNumber)
	}
	if r.Data.VendorName != "Acme Freight Services Llc" {
		t.Errorf("vendor name = %q", r.Data.VendorName)
	}
	if r.Data.CustomerName != "Global Shipping Co" {
		t.Errorf("customer name = %q", r.Data.CustomerName)
	}
	if r.Data.VendorAddress != "123 Main Street Houston, TX 77001" {
		t.Errorf("vendor address = %q", r.Data.VendorAddress)
	}
	if r.Data.CustomerAddress != "456 Commerce Avenue Dallas, TX 75201" {
		t.Errorf("customer address = %q", r.Data.CustomerAddress)
	}
	if want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC); !r.Data.InvoiceDate.Equal(want) {
		t.Errorf("invoice date = %v, want %v", r.Data.InvoiceDate, want)
	}
	if want := time.Date(2026, 4, 14, 0, 0, 0, 0, time.UTC); !r.Data.DueDate.Equal(want) {
		t.Errorf("due date = %v, want %v", r.Data.DueDate, want)
	}
	if r.Data.SubtotalCents != 250_000 {
		t.Errorf("subtotal = %d cents, want 250000", r.Data.SubtotalCents)
	}
	if r.Data.TotalCents != 250_000 {
		t.Errorf("total = %d cents, want 250000", r.Data.TotalCents)
	}
	if r.Data.PaymentTerms != "Net 30" {
		t.Errorf("payment terms = %q", r.Data.PaymentTerms)
	}
	if len(r.Data.LineItems) < 3 {
		t.Fatalf("line items = %d, want at least 3", len(r.Data.LineItems))
	}
	if r.Data.LineItems[0].Description != "Line Haul Freight Charge" || r.Data.LineItems[0].TotalCents != 220_000 {
		t.Errorf("first line item = %+v", r.Data.LineItems[0])
	}
	if r.Confidence < 0.85 || r.Confidence > 0.95 {
		t.Errorf("confidence = %v, want a value at or above the verified threshold", r.Confidence)
	}
	if !r.Verified {
		t.Error("complete invoice with number and total should verify")
	}
}

func TestParseInvoiceSparseBillDoesNotVerify(t *testing.T) {
	p := newTestInvoiceParser(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))

	r := p.ParseInvoice("Invoice INV-999\nTotal: $100.00")

	if r.Data.InvoiceNumber != "INV-999" {
		t.Errorf("invoice number = %q", r.Data.InvoiceNumber)
	}
	if r.Data.TotalCents != 10_000 {
		t.Errorf("total = %d cents, want 10000", r.Data.TotalCents)
	}
	if r.Confidence <= 0 || r.Confidence >= 0.85 {
		t.Errorf("confidence = %v, want a nonzero value below the verified threshold", r.Confidence)
	}
	if r.Verified {
		t.Error("invoice with only a number and a bare total must not verify")
	}
}

func TestParseInvoiceRejectsLabelWordsAsNumbers(t *testing.T) {
	p := newTestInvoiceParser(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))

	// "Invoice Date" must not yield an invoice number of "DATE"
	r := p.ParseInvoice("Invoice Date: 03/15/2026\nAmount Due: $500.00")

	if r.Data.InvoiceNumber != "" {
		t.Errorf("invoice number = %q, want rejection of label word", r.Data.InvoiceNumber)
	}
	if r.Verified {
		t.Error("invoice without a number must not verify")
	}
}

func TestParseInvoiceISODateFallback(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	p := newTestInvoiceParser(now)

	r := p.ParseInvoice("Invoice #: A-1001\nDate: 2026-03-15\nTotal: $900.00")
	if want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC); !r.Data.InvoiceDate.Equal(want) {
		t.Errorf("invoice date = %v, want %v from ISO fallback", r.Data.InvoiceDate, want)
	}

	// an ISO date years out of the billing window is noise, not the invoice date
	r = p.ParseInvoice("Invoice #: A-1002\nDate: 2031-03-15\nTotal: $900.00")
	if !r.Data.InvoiceDate.IsZero() {
		t.Errorf("invoice date = %v, want rejection outside the billing window", r.Data.InvoiceDate)
	}
}

func TestParseInvoiceBareTermsPhrase(t *testing.T) {
	p := newTestInvoiceParser(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))

	r := p.ParseInvoice("Invoice #: B-2001\nDue on Receipt\nTotal: $425.00")
	if r.Data.PaymentTerms != "Due on Receipt" {
		t.Errorf("payment terms = %q, want unlabeled phrase", r.Data.PaymentTerms)
	}
}

func TestParseInvoiceLineItemBonus(t *testing.T) {
	p := newTestInvoiceParser(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))

	single := p.ParseInvoice("Invoice #: C-3001\nLumper Fee  $75.00\nTotal: $75.00")
	multi := p.ParseInvoice("Invoice #: C-3001\nLumper Fee  $75.00\nDetention  $120.00\nTotal: $195.00")

	if len(single.Data.LineItems) == 0 || len(multi.Data.LineItems) < 2 {
		t.Fatalf("line items = %d and %d, want charges extracted from both",
			len(single.Data.LineItems), len(multi.Data.LineItems))
	}
	if multi.Confidence <= single.Confidence {
		t.Errorf("confidence %v with several charges should exceed %v with one",
			multi.Confidence, single.Confidence)
	}
}
