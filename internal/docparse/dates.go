package docparse

import (
	"strings"
	"time"
)

// Date layouts seen in recognized freight paperwork, most common first.
var dateLayouts = []string{
	"1/2/2006",
	"1-2-2006",
	"1/2/06",
	"1-2-06",
	"2006/1/2",
	"2006-1-2",
	"January 2, 2006",
	"Jan 2, 2006",
	"2006-1-2 15:04:05",
	"1/2/2006 15:04:05",
}

var timeLayouts = []string{
	"15:04",
	"15:04:05",
	"3:04 PM",
	"3:04PM",
	"3:04:05 PM",
}

// parseDate tries each known layout in order. Two-digit years that land
// before 1950 are shifted forward a century ("25" means 2025, not 1925).
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Year() < 1950 {
			t = t.AddDate(100, 0, 0)
		}
		return t, true
	}
	return time.Time{}, false
}

// parseDateTime parses a date plus an optional clock reading. An unparseable
// time part is ignored rather than failing the date.
func parseDateTime(dateStr, timeStr string) (time.Time, bool) {
	t, ok := parseDate(dateStr)
	if !ok {
		return time.Time{}, false
	}
	timeStr = strings.ToUpper(strings.TrimSpace(timeStr))
	if timeStr == "" {
		return t, true
	}
	for _, layout := range timeLayouts {
		clock, err := time.Parse(layout, timeStr)
		if err != nil {
			continue
		}
		return time.Date(t.Year(), t.Month(), t.Day(),
			clock.Hour(), clock.Minute(), clock.Second(), 0, t.Location()), true
	}
	return t, true
}
