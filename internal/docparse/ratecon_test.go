package docparse

import (
	"testing"
	"time"
)

func newTestRateConParser() *RateConParser {
	return NewRateConParser(DefaultScoring().RateCon, discardLogger())
}

func TestParseRateConCompleteConfirmation(t *testing.T) {
	p := newTestRateConParser()

	text := `RATE CONFIRMATION
Rate: $2,500.00
Origin: Houston, TX
Destination: Dallas, TX
Pickup: 12/20/2025
Delivery: 12/22/2025
Weight: 42,000 lbs
Commodity: Frozen Foods`

	r := p.ParseRateCon(text)

	if r.Data.RateCents != 250_000 {
		t.Errorf("rate = %d cents, want 250000", r.Data.RateCents)
	}
	if r.Data.Origin != "Houston, TX" {
		t.Errorf("origin = %q", r.Data.Origin)
	}
	if r.Data.Destination != "Dallas, TX" {
		t.Errorf("destination = %q", r.Data.Destination)
	}
	if !r.Data.PickupDate.Equal(time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("pickup date = %v", r.Data.PickupDate)
	}
	if !r.Data.DeliveryDate.Equal(time.Date(2025, 12, 22, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("delivery date = %v", r.Data.DeliveryDate)
	}
	if r.Data.WeightLbs != 42_000 {
		t.Errorf("weight = %v lbs, want 42000", r.Data.WeightLbs)
	}
	if r.Data.Commodity != "Frozen Foods" {
		t.Errorf("commodity = %q", r.Data.Commodity)
	}
	if r.Confidence != 0.95 {
		t.Errorf("confidence = %v, want 0.95 with rate, route, and dates", r.Confidence)
	}
	if !r.Verified {
		t.Error("complete confirmation should verify")
	}
}

func TestParseRateConPicksLargestPlausibleRate(t *testing.T) {
	p := newTestRateConParser()

	// detention and fuel are accessorials; the line-haul rate dominates
	text := "Detention: $150.00\nFuel surcharge: $320.00\nRate: $2,500.00"
	r := p.ParseRateCon(text)

	if r.Data.RateCents != 250_000 {
		t.Errorf("rate = %d cents, want the largest in-range amount", r.Data.RateCents)
	}
}

func TestParseRateConIgnoresOutOfRangeAmounts(t *testing.T) {
	p := newTestRateConParser()

	// reference numbers and totals beyond the plausible line-haul band
	r := p.ParseRateCon("Total: $950,000.00\nAmount: $12.00")
	if r.Data.RateCents != 0 {
		t.Errorf("rate = %d cents, want no extraction outside [50, 50000]", r.Data.RateCents)
	}
}

func TestParseRateConInlineRoute(t *testing.T) {
	p := newTestRateConParser()

	r := p.ParseRateCon("Load moves from Houston, TX to Dallas, TX on 12/20/2025")

	if r.Data.Origin != "Houston, TX" {
		t.Errorf("origin = %q", r.Data.Origin)
	}
	if r.Data.Destination != "Dallas, TX" {
		t.Errorf("destination = %q", r.Data.Destination)
	}
}

func TestParseRateConRouteFromBareCityPairs(t *testing.T) {
	p := newTestRateConParser()

	// no routing keywords at all: first two distinct city/state pairs become
	// the lane
	r := p.ParseRateCon("Chicago, IL\nDetroit, MI")

	if r.Data.Origin != "Chicago, IL" {
		t.Errorf("origin = %q", r.Data.Origin)
	}
	if r.Data.Destination != "Detroit, MI" {
		t.Errorf("destination = %q", r.Data.Destination)
	}
}

func TestParseRateConInferredDatesAreOrdered(t *testing.T) {
	p := newTestRateConParser()

	// dates appear without keywords and out of order; pickup must come first
	r := p.ParseRateCon("12/22/2025\n12/20/2025")

	if !r.Data.PickupDate.Equal(time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("pickup = %v, want the earlier date", r.Data.PickupDate)
	}
	if !r.Data.DeliveryDate.Equal(time.Date(2025, 12, 22, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("delivery = %v, want the later date", r.Data.DeliveryDate)
	}
}

func TestParseRateConRateOnlyConfidence(t *testing.T) {
	p := newTestRateConParser()

	r := p.ParseRateCon("Rate: $1,800.00")
	if r.Data.RateCents != 180_000 {
		t.Fatalf("rate = %d cents", r.Data.RateCents)
	}
	if r.Confidence != 0.60 {
		t.Errorf("confidence = %v, want 0.60 for a bare rate", r.Confidence)
	}
	if r.Verified {
		t.Error("rate without a lane must not verify")
	}
}

func TestParseRateConCommodityFilters(t *testing.T) {
	p := newTestRateConParser()

	r := p.ParseRateCon("Commodity: that")
	if r.Data.Commodity != "" {
		t.Errorf("commodity = %q, want placeholder rejection", r.Data.Commodity)
	}
}
