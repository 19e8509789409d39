package docparse

import (
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/joseph-ayodele/freight-docs/constants"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistryCoversAllParsedTypes(t *testing.T) {
	reg := NewRegistry(nil, discardLogger())

	for _, dt := range []constants.DocumentType{
		constants.DocTypeCDL,
		constants.DocTypeCOI,
		constants.DocTypePOD,
		constants.DocTypeRateCon,
		constants.DocTypeAgreement,
		constants.DocTypeInvoice,
	} {
		p, ok := reg.For(dt)
		if !ok {
			t.Fatalf("no parser registered for %s", dt)
		}
		if p.DocType() != dt {
			t.Errorf("parser for %s reports type %s", dt, p.DocType())
		}
	}

	if _, ok := reg.For(constants.DocumentType("BANK_STATEMENT")); ok {
		t.Error("unknown document type should have no parser")
	}
}

func TestEmptyInputYieldsZeroConfidenceEverywhere(t *testing.T) {
	reg := NewRegistry(nil, discardLogger())

	for _, text := range []string{"", "   ", "\n\n\t"} {
		for dt, p := range reg.parsers {
			out := p.Parse(text)
			if out.Confidence != 0 {
				t.Errorf("%s: confidence %v for empty input, want 0", dt, out.Confidence)
			}
			if out.FlagValue {
				t.Errorf("%s: flag %s set for empty input", dt, out.Flag)
			}
		}
	}
}

func TestParseIsIdempotent(t *testing.T) {
	reg := NewRegistry(nil, discardLogger())

	texts := map[constants.DocumentType]string{
		constants.DocTypeCDL:       "NAME: JOHN SMITH\nEXP: 12/25/2030\nCLASS: A",
		constants.DocTypeCOI:       "Policy Number: GL-1234567\nGeneral Liability: $1,000,000\nExpires: 01/01/2031",
		constants.DocTypePOD:       "PROOF OF DELIVERY\nDelivery confirmed\nReceived by: Jane Doe",
		constants.DocTypeRateCon:   "Rate: $2,500.00\nOrigin: Houston, TX\nDestination: Dallas, TX",
		constants.DocTypeAgreement: "CARRIER AGREEMENT\nSigned by: John Smith\nDate Signed: 01/15/2026",
		constants.DocTypeInvoice:   "Invoice #: INV-2024-001\nTotal: $2,500.00\nNet 30",
	}
	for dt, text := range texts {
		p, ok := reg.For(dt)
		if !ok {
			t.Fatalf("no parser for %s", dt)
		}
		first := p.Parse(text)
		second := p.Parse(text)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("%s: repeated parse of identical text differs:\n%+v\n%+v", dt, first, second)
		}
	}
}

func TestClamp(t *testing.T) {
	cases := []struct {
		in, want float32
	}{
		{-0.5, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{1.3, 1},
	}
	for _, tc := range cases {
		if got := clamp(tc.in); got != tc.want {
			t.Errorf("clamp(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestWeightedScore(t *testing.T) {
	weights := map[string]float32{"a": 0.5, "b": 0.25, "c": 0.25}
	got := weightedScore(weights, map[string]bool{"a": true, "b": false, "c": true})
	if got != 0.75 {
		t.Errorf("weightedScore = %v, want 0.75", got)
	}
}
