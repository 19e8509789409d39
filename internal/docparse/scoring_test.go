package docparse

import (
	"strings"
	"testing"
)

func TestDefaultScoringLoads(t *testing.T) {
	cfg := DefaultScoring()

	if got := cfg.CDL.Weights["driver_name"]; got != 0.35 {
		t.Errorf("cdl driver_name weight = %v, want 0.35", got)
	}
	if cfg.CDL.MinExpirationDays != 30 {
		t.Errorf("cdl min expiration days = %d, want 30", cfg.CDL.MinExpirationDays)
	}
	if got := cfg.COI.Overrides["all_critical"]; got != 0.95 {
		t.Errorf("coi all_critical override = %v, want 0.95", got)
	}
	if cfg.POD.CompletedThreshold != 0.80 {
		t.Errorf("pod completed threshold = %v, want 0.80", cfg.POD.CompletedThreshold)
	}
	if cfg.Agreement.SignedThreshold != 0.90 {
		t.Errorf("agreement signed threshold = %v, want 0.90", cfg.Agreement.SignedThreshold)
	}

	// boost tiers must be ordered high to low for the exclusive-tier walk
	boosts := cfg.Agreement.SignalBoosts
	for i := 1; i < len(boosts); i++ {
		if boosts[i].MinSignals >= boosts[i-1].MinSignals {
			t.Fatalf("signal boosts not descending at %d: %+v", i, boosts)
		}
	}
}

func TestLoadScoringRejectsMalformedYAML(t *testing.T) {
	if _, err := LoadScoring([]byte("cdl: [unclosed")); err == nil {
		t.Error("malformed YAML should fail")
	}
}

func TestLoadScoringRejectsMissingSection(t *testing.T) {
	_, err := LoadScoring([]byte("cdl:\n  weights: {driver_name: 0.35}\n"))
	if err == nil {
		t.Fatal("document missing required sections should fail validation")
	}
	if !strings.Contains(err.Error(), "invalid scoring config") {
		t.Errorf("error = %v, want schema validation failure", err)
	}
}

func TestLoadScoringRejectsOutOfRangeWeight(t *testing.T) {
	data := strings.Replace(string(defaultScoringYAML), "0.35", "1.35", 1)
	if _, err := LoadScoring([]byte(data)); err == nil {
		t.Error("weight above 1 should fail validation")
	}
}

func TestLoadScoringRoundTripsEmbeddedTable(t *testing.T) {
	cfg, err := LoadScoring(defaultScoringYAML)
	if err != nil {
		t.Fatalf("embedded table should load: %v", err)
	}
	if len(cfg.RateCon.Weights) == 0 || len(cfg.Agreement.Ladder) == 0 {
		t.Error("embedded table decoded empty sections")
	}
}
