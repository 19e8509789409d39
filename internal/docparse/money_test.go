package docparse

import "testing"

func TestParseCents(t *testing.T) {
	cases := []struct {
		name      string
		amount    string
		fullMatch string
		want      int64
		ok        bool
	}{
		{"plain", "2500.00", "Rate: $2500.00", 250_000, true},
		{"thousands separators", "1,000,000", "GL: $1,000,000", 100_000_000, true},
		{"million suffix", "1", "Liability: $1M", 100_000_000, true},
		{"million word", "2.5", "Coverage: 2.5 Million", 250_000_000, true},
		{"thousand suffix", "750", "Limit: $750K", 75_000_000, true},
		{"thousand word", "500", "Limit: 500 Thousand", 50_000_000, true},
		{"not a number", "abc", "abc", 0, false},
		{"empty", "", "", 0, false},
		{"negative", "-100", "-100", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseCents(tc.amount, tc.fullMatch)
			if ok != tc.ok {
				t.Fatalf("parseCents(%q, %q) ok = %v, want %v", tc.amount, tc.fullMatch, ok, tc.ok)
			}
			if got != tc.want {
				t.Errorf("parseCents(%q, %q) = %d, want %d", tc.amount, tc.fullMatch, got, tc.want)
			}
		})
	}
}
