package docparse

import (
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/freight-docs/constants"
)

// FlagRateConVerified is the business flag a rate confirmation parse gates.
const FlagRateConVerified = "ratecon_verified"

// Rates outside this range are noise: reference numbers, zip codes, per-mile
// figures.
const (
	rateconMinRate = 50
	rateconMaxRate = 50_000
)

var rateconRatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:rate|amount|total)[:\s]*\$?([0-9]{1,5}(?:,[0-9]{3})*(?:\.[0-9]{2})?)`),
	regexp.MustCompile(`(?i)compensation[:\s]*\$?([0-9]{1,5}(?:,[0-9]{3})*(?:\.[0-9]{2})?)`),
	regexp.MustCompile(`(?i)pay[:\s]*\$?([0-9]{1,5}(?:,[0-9]{3})*(?:\.[0-9]{2})?)`),
	regexp.MustCompile(`\$([0-9]{1,5}(?:,[0-9]{3})*(?:\.[0-9]{2})?)`),
	regexp.MustCompile(`(?i)([0-9]{1,5}(?:,[0-9]{3})*(?:\.[0-9]{2})?)\s*(?:dollars?|usd)`),
}

var rateconWeightPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:weight|lbs?|pounds?)[:\s]*([0-9,]+)`),
	regexp.MustCompile(`(?i)([0-9,]+)\s*(?:lbs?|pounds?)`),
}

var rateconCommodityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:commodity|product|freight|cargo)[:\s]*([A-Za-z][A-Za-z\s,.-]+)`),
	regexp.MustCompile(`(?i)(?:description|desc)[:\s]*([A-Za-z][A-Za-z\s,.-]+)`),
}

var (
	rateconOriginKeywords      = []string{"from", "origin", "pickup", "pick up", "pick", "loading"}
	rateconDestinationKeywords = []string{"to", "destination", "delivery", "deliver", "drop off", "drop", "unload"}
	rateconPickupKeywords      = []string{"pickup", "pick up", "loading", "load date"}
	rateconDeliveryKeywords    = []string{"delivery", "deliver", "unload", "delivery date"}
)

var (
	cityStateCommaRe = regexp.MustCompile(`([A-Za-z][A-Za-z\s]*[A-Za-z]),\s*([A-Z]{2})\b`)
	cityStateBareRe  = regexp.MustCompile(`([A-Za-z][A-Za-z\s]*[A-Za-z])\s+([A-Z]{2})\b`)
	inlineDateRe     = regexp.MustCompile(`(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`)
	anyDateRe        = regexp.MustCompile(`(\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|\d{4}[/-]\d{1,2}[/-]\d{1,2})`)

	fromToRoutePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)from\s+([A-Za-z]+(?:\s+[A-Za-z]+)*),\s*([A-Z]{2})\s+to\s+([A-Za-z]+(?:\s+[A-Za-z]+)*),\s*([A-Z]{2})`),
		regexp.MustCompile(`([A-Za-z]+(?:\s+[A-Za-z]+)*)\s+([A-Z]{2})\s+(?i:to)\s+([A-Za-z]+(?:\s+[A-Za-z]+)*)\s+([A-Z]{2})`),
		regexp.MustCompile(`(?is)(?:pick\s*up|pickup)\s+([A-Za-z]+(?:\s+[A-Za-z]+)*)\s+([A-Z]{2}).*?(?:drop\s*off|delivery?)\s+([A-Za-z]+(?:\s+[A-Za-z]+)*)\s+([A-Z]{2})`),
	}
)

// RateConData is the structured content of a rate confirmation. The rate is
// integer cents; weight is pounds.
type RateConData struct {
	RateCents    int64     `json:"rate_cents,omitempty"`
	Origin       string    `json:"origin,omitempty"`
	Destination  string    `json:"destination,omitempty"`
	PickupDate   time.Time `json:"pickup_date,omitempty"`
	DeliveryDate time.Time `json:"delivery_date,omitempty"`
	WeightLbs    float64   `json:"weight_lbs,omitempty"`
	Commodity    string    `json:"commodity,omitempty"`
}

// RateConResult is one rate confirmation parse.
type RateConResult struct {
	Data       RateConData       `json:"data"`
	Confidence float32           `json:"confidence"`
	Verified   bool              `json:"verified"`
	Details    map[string]Detail `json:"details"`
}

// RateConParser extracts rate confirmation fields from recognized text.
type RateConParser struct {
	scoring RateConScoring
	logger  *slog.Logger
}

func NewRateConParser(scoring RateConScoring, logger *slog.Logger) *RateConParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateConParser{scoring: scoring, logger: logger}
}

func (p *RateConParser) DocType() constants.DocumentType { return constants.DocTypeRateCon }

// extractRate collects every candidate amount and keeps the largest within
// the plausible line-haul range: the main rate dominates accessorials.
func extractRate(text string, details map[string]Detail) (int64, bool) {
	var best float64
	bestPattern := -1
	raw := ""
	for i, re := range rateconRatePatterns {
		for _, groups := range re.FindAllStringSubmatch(text, -1) {
			clean := strings.NewReplacer(",", "", "$", "", " ", "").Replace(groups[1])
			value, err := strconv.ParseFloat(clean, 64)
			if err != nil {
				continue
			}
			if value >= rateconMinRate && value <= rateconMaxRate && value > best {
				best = value
				bestPattern = i
				raw = groups[0]
			}
		}
	}
	if bestPattern < 0 {
		return 0, false
	}
	details["rate_amount"] = Detail{Pattern: bestPattern, Raw: raw}
	return int64(best * 100), true
}

// locationAfterKeyword finds a "City, ST" (or bare "City ST", or lone city)
// in the text following a keyword on one line.
func locationAfterKeyword(line, keyword string) (string, bool) {
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(keyword) + `\b`)
	loc := re.FindStringIndex(line)
	if loc == nil {
		return "", false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line[loc[1]:]), ":"))
	if m := cityStateCommaRe.FindStringSubmatch(rest); m != nil {
		return collapseSpaces(m[1]) + ", " + strings.ToUpper(m[2]), true
	}
	if m := cityStateBareRe.FindStringSubmatch(rest); m != nil {
		return collapseSpaces(m[1]) + ", " + strings.ToUpper(m[2]), true
	}
	return "", false
}

func extractRoute(text string, details map[string]Detail) (origin, destination string) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if origin == "" {
			for _, kw := range rateconOriginKeywords {
				if loc, ok := locationAfterKeyword(line, kw); ok {
					origin = loc
					details["origin"] = Detail{Raw: line}
					break
				}
			}
		}
		if destination == "" {
			for _, kw := range rateconDestinationKeywords {
				if loc, ok := locationAfterKeyword(line, kw); ok && loc != origin {
					destination = loc
					details["destination"] = Detail{Raw: line}
					break
				}
			}
		}
	}

	if origin == "" || destination == "" {
		for i, re := range fromToRoutePatterns {
			m := re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			if origin == "" {
				origin = collapseSpaces(m[1]) + ", " + strings.ToUpper(m[2])
				details["origin"] = Detail{Pattern: i, Raw: m[0]}
			}
			if destination == "" {
				destination = collapseSpaces(m[3]) + ", " + strings.ToUpper(m[4])
				details["destination"] = Detail{Pattern: i, Raw: m[0]}
			}
			break
		}
	}

	if origin == "" || destination == "" {
		var seen []string
		for _, m := range cityStateCommaRe.FindAllStringSubmatch(text, -1) {
			loc := collapseSpaces(m[1]) + ", " + strings.ToUpper(m[2])
			dup := false
			for _, s := range seen {
				if s == loc {
					dup = true
					break
				}
			}
			if !dup {
				seen = append(seen, loc)
			}
		}
		if origin == "" && len(seen) > 0 {
			origin = seen[0]
			details["origin"] = Detail{Raw: seen[0]}
		}
		if destination == "" && len(seen) > 1 {
			destination = seen[1]
			details["destination"] = Detail{Raw: seen[1]}
		}
	}
	return origin, destination
}

func extractSchedule(text string, details map[string]Detail) (pickup, delivery time.Time) {
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		if pickup.IsZero() {
			for _, kw := range rateconPickupKeywords {
				if strings.Contains(lower, kw) {
					if m := inlineDateRe.FindStringSubmatch(line); m != nil {
						if t, ok := parseDate(m[1]); ok {
							pickup = t
							details["pickup_date"] = Detail{Raw: m[1]}
						}
					}
					break
				}
			}
		}
		if delivery.IsZero() {
			for _, kw := range rateconDeliveryKeywords {
				if strings.Contains(lower, kw) {
					if m := inlineDateRe.FindStringSubmatch(line); m != nil {
						if t, ok := parseDate(m[1]); ok {
							delivery = t
							details["delivery_date"] = Detail{Raw: m[1]}
						}
					}
					break
				}
			}
		}
	}

	if pickup.IsZero() || delivery.IsZero() {
		var all []time.Time
		for _, m := range anyDateRe.FindAllStringSubmatch(text, -1) {
			if t, ok := parseDate(m[1]); ok {
				all = append(all, t)
			}
		}
		sort.Slice(all, func(i, j int) bool { return all[i].Before(all[j]) })
		if pickup.IsZero() && len(all) > 0 {
			pickup = all[0]
			details["pickup_date"] = Detail{Raw: "inferred"}
		}
		if delivery.IsZero() && len(all) > 1 {
			delivery = all[1]
			details["delivery_date"] = Detail{Raw: "inferred"}
		}
	}
	return pickup, delivery
}

func extractWeight(text string, details map[string]Detail) (float64, bool) {
	for i, re := range rateconWeightPatterns {
		for _, groups := range re.FindAllStringSubmatch(text, -1) {
			clean := strings.NewReplacer(",", "", " ", "").Replace(groups[1])
			value, err := strconv.ParseFloat(clean, 64)
			if err != nil {
				continue
			}
			if value >= 100 && value <= 80_000 {
				details["weight"] = Detail{Pattern: i, Raw: groups[0]}
				return value, true
			}
		}
	}
	return 0, false
}

func extractCommodity(text string, details map[string]Detail) (string, bool) {
	for i, re := range rateconCommodityPatterns {
		for _, groups := range re.FindAllStringSubmatch(text, -1) {
			commodity := collapseSpaces(groups[1])
			if len(commodity) < 3 || len(commodity) > 100 {
				continue
			}
			switch strings.ToLower(commodity) {
			case "here", "there", "this", "that":
				continue
			}
			details["commodity"] = Detail{Pattern: i, Raw: groups[0]}
			return commodity, true
		}
	}
	return "", false
}

// ParseRateCon extracts, scores, and gates one rate confirmation.
func (p *RateConParser) ParseRateCon(text string) RateConResult {
	cleaned := CleanArtifacts(text)
	details := make(map[string]Detail)

	data := RateConData{}
	data.RateCents, _ = extractRate(cleaned, details)
	data.Origin, data.Destination = extractRoute(cleaned, details)
	data.PickupDate, data.DeliveryDate = extractSchedule(cleaned, details)
	data.WeightLbs, _ = extractWeight(cleaned, details)
	data.Commodity, _ = extractCommodity(cleaned, details)

	confidence := p.score(data)
	verified := data.RateCents > 0 && data.Origin != "" && data.Destination != "" &&
		confidence >= p.scoring.VerifiedThreshold

	p.logger.Debug("parse.ratecon.done",
		"confidence", confidence,
		"verified", verified,
		"rate_cents", data.RateCents,
		"origin", data.Origin,
		"destination", data.Destination,
	)
	return RateConResult{Data: data, Confidence: confidence, Verified: verified, Details: details}
}

func (p *RateConParser) score(data RateConData) float32 {
	present := map[string]bool{
		"rate_amount":   data.RateCents > 0,
		"origin":        data.Origin != "",
		"destination":   data.Destination != "",
		"pickup_date":   !data.PickupDate.IsZero(),
		"delivery_date": !data.DeliveryDate.IsZero(),
		"weight":        data.WeightLbs > 0,
		"commodity":     data.Commodity != "",
	}
	score := weightedScore(p.scoring.Weights, present)

	hasRate := present["rate_amount"]
	hasBothLocations := present["origin"] && present["destination"]
	hasOneLocation := present["origin"] || present["destination"]
	hasDates := present["pickup_date"] || present["delivery_date"]

	switch {
	case hasRate && hasBothLocations && hasDates:
		score = p.scoring.Overrides["rate_locations_dates"]
	case hasRate && hasBothLocations:
		score = p.scoring.Overrides["rate_locations"]
	case hasRate && hasOneLocation:
		score = p.scoring.Overrides["rate_one_location"]
	case hasRate:
		score = p.scoring.Overrides["rate_only"]
	}
	return clamp(score)
}

func (p *RateConParser) Parse(text string) Outcome {
	r := p.ParseRateCon(text)
	fields := make(map[string]any)
	if r.Data.RateCents > 0 {
		fields["rate_amount"] = r.Data.RateCents
	}
	if r.Data.Origin != "" {
		fields["origin"] = r.Data.Origin
	}
	if r.Data.Destination != "" {
		fields["destination"] = r.Data.Destination
	}
	if !r.Data.PickupDate.IsZero() {
		fields["pickup_date"] = r.Data.PickupDate
	}
	if !r.Data.DeliveryDate.IsZero() {
		fields["delivery_date"] = r.Data.DeliveryDate
	}
	if r.Data.WeightLbs > 0 {
		fields["weight"] = r.Data.WeightLbs
	}
	if r.Data.Commodity != "" {
		fields["commodity"] = r.Data.Commodity
	}
	return Outcome{
		DocType:    constants.DocTypeRateCon,
		Fields:     fields,
		Details:    r.Details,
		Confidence: r.Confidence,
		Flag:       FlagRateConVerified,
		FlagValue:  r.Verified,
	}
}
