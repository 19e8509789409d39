package docparse

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/joseph-ayodele/freight-docs/constants"
)

// FlagCDLVerified is the business flag a CDL parse gates.
const FlagCDLVerified = "cdl_verified"

var (
	cdlNamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:NAME):\s*([A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+){1,3})`),
		regexp.MustCompile(`([A-Z][A-Z]+,\s*[A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+)*)`),
		regexp.MustCompile(`(?is)(?:First):\s*([A-Za-z]+).*?(?:Last):\s*([A-Za-z]+)`),
		regexp.MustCompile(`(?m)^([A-Z][a-z]+\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)$`),
	}

	cdlLicensePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:DL|LICENSE|LIC|CDL)[:# ]*([A-Z0-9]{7,15})`),
		regexp.MustCompile(`\b([A-Z0-9]{8,12})\b`),
		regexp.MustCompile(`(?i)(?:CA|TX|FL|NY|IL|PA|OH|GA|NC|MI)\s*([A-Z0-9]{7,12})`),
	}

	cdlExpirationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:EXP|EXPIRES|EXPIRATION)\s*(?:DATE)?[:]*\s*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
		regexp.MustCompile(`(?is)DOB:\s*\d{1,2}[/-]\d{1,2}[/-]\d{2,4}.*?(?:EXP|EXPIRES)[:]*\s*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
		regexp.MustCompile(`\b(\d{1,2}[/-]\d{1,2}[/-]\d{4})\b`),
	}

	cdlClassPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:CLASS|CDL CLASS)[:]*\s*([A-C])`),
		regexp.MustCompile(`(?i)(?:CLASS\s*)?([A-C])\s*(?:CDL|CLASS)`),
	}

	cdlAddressPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:ADDRESS|ADDR)[:]*\s*([0-9]+\s+[A-Za-z\s]+(?:ST|STREET|AVE|AVENUE|RD|ROAD|BLVD|BOULEVARD|DR|DRIVE|LN|LANE)[^0-9]*?[A-Z]{2}\s+\d{5})`),
		regexp.MustCompile(`(?is)([0-9]+\s+[A-Za-z][A-Za-z\s]+(?:ST|STREET|AVE|AVENUE|RD|ROAD|BLVD|BOULEVARD|DR|DRIVE|LN|LANE))[^0-9]*?([A-Z]{2}\s+\d{5})`),
		regexp.MustCompile(`(?i)([0-9]{1,5}\s+[A-Za-z][A-Za-z\s]+(?:ST|STREET|AVE|AVENUE|RD|ROAD|BLVD|BOULEVARD|DR|DRIVE|LN|LANE))([^0-9]|$)`),
	}

	cdlStatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:STATE|ST)[:]*\s*([A-Z]{2})\b`),
		regexp.MustCompile(`\b([A-Z]{2})\s+\d{5}`),
	}
)

// cdlLicenseFalsePositives are uppercase words the standalone license pattern
// tends to capture on real scans.
var cdlLicenseFalsePositives = map[string]struct{}{
	"COMMERCIAL": {}, "DRIVER": {}, "LICENSE": {}, "EXPIRES": {}, "ADDRESS": {},
	"BIRTHDAY": {}, "WEIGHT": {}, "HEIGHT": {}, "EYES": {}, "HAIR": {},
}

// CDLData is the structured content of a commercial driver's license.
type CDLData struct {
	DriverName     string    `json:"driver_name,omitempty"`
	LicenseNumber  string    `json:"license_number,omitempty"`
	ExpirationDate time.Time `json:"expiration_date,omitempty"`
	LicenseClass   string    `json:"license_class,omitempty"`
	Address        string    `json:"address,omitempty"`
	State          string    `json:"state,omitempty"`
}

// CDLResult is one CDL parse: data, score, gate decision, audit trail.
type CDLResult struct {
	Data       CDLData           `json:"data"`
	Confidence float32           `json:"confidence"`
	Verified   bool              `json:"verified"`
	Details    map[string]Detail `json:"details"`
}

// CDLParser extracts commercial driver's license fields from recognized text.
type CDLParser struct {
	scoring CDLScoring
	logger  *slog.Logger
	now     func() time.Time
}

func NewCDLParser(scoring CDLScoring, logger *slog.Logger) *CDLParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &CDLParser{scoring: scoring, logger: logger, now: time.Now}
}

func (p *CDLParser) DocType() constants.DocumentType { return constants.DocTypeCDL }

func (p *CDLParser) specs() []FieldSpec {
	return []FieldSpec{
		{
			Name:     "driver_name",
			Patterns: cdlNamePatterns,
			Post: func(capture string, groups []string) (any, bool) {
				name := capture
				if len(groups) > 2 && groups[2] != "" {
					name = groups[1] + " " + groups[2]
				}
				name = normalizeName(name)
				if len(name) <= 3 {
					return nil, false
				}
				return name, true
			},
		},
		{
			Name:     "license_number",
			Patterns: cdlLicensePatterns,
			Post: func(capture string, _ []string) (any, bool) {
				num := strings.ToUpper(strings.TrimSpace(capture))
				if !validLicenseNumber(num) {
					return nil, false
				}
				return num, true
			},
		},
		{
			Name:     "expiration_date",
			Patterns: cdlExpirationPatterns,
			Post: func(capture string, _ []string) (any, bool) {
				t, ok := parseDate(capture)
				if !ok || !t.After(p.now()) {
					return nil, false
				}
				return t, true
			},
		},
		{
			Name:     "license_class",
			Patterns: cdlClassPatterns,
			Post: func(capture string, _ []string) (any, bool) {
				class := strings.ToUpper(strings.TrimSpace(capture))
				if class != "A" && class != "B" && class != "C" {
					return nil, false
				}
				return class, true
			},
		},
		{
			Name:     "address",
			Patterns: cdlAddressPatterns,
			Post: func(capture string, groups []string) (any, bool) {
				address := capture
				if len(groups) > 2 && strings.TrimSpace(groups[2]) != "" && len(groups[2]) > 2 {
					address = groups[1] + " " + groups[2]
				}
				address = collapseSpaces(address)
				if len(address) <= 10 {
					return nil, false
				}
				return address, true
			},
		},
		{
			Name:     "state",
			Patterns: cdlStatePatterns,
			Post: func(capture string, _ []string) (any, bool) {
				state := strings.ToUpper(strings.TrimSpace(capture))
				if len(state) != 2 {
					return nil, false
				}
				return state, true
			},
		},
	}
}

func validLicenseNumber(num string) bool {
	if len(num) < 7 || len(num) > 15 {
		return false
	}
	if !strings.ContainsAny(num, "0123456789") {
		return false
	}
	_, bad := cdlLicenseFalsePositives[num]
	return !bad
}

// ParseCDL extracts, scores, and gates one CDL document.
func (p *CDLParser) ParseCDL(text string) CDLResult {
	fields, details := ExtractFields(text, p.specs())

	data := CDLData{}
	if v, ok := fields["driver_name"].(string); ok {
		data.DriverName = v
	}
	if v, ok := fields["license_number"].(string); ok {
		data.LicenseNumber = v
	}
	if v, ok := fields["expiration_date"].(time.Time); ok {
		data.ExpirationDate = v
	}
	if v, ok := fields["license_class"].(string); ok {
		data.LicenseClass = v
	}
	if v, ok := fields["address"].(string); ok {
		data.Address = v
	}
	if v, ok := fields["state"].(string); ok {
		data.State = v
	}

	confidence := p.score(fields)
	verified := p.verify(data)

	p.logger.Debug("parse.cdl.done",
		"confidence", confidence,
		"verified", verified,
		"fields_found", len(fields),
	)
	return CDLResult{Data: data, Confidence: confidence, Verified: verified, Details: details}
}

func (p *CDLParser) score(fields map[string]any) float32 {
	present := map[string]bool{
		"driver_name":     fields["driver_name"] != nil,
		"expiration_date": fields["expiration_date"] != nil,
		"license_number":  fields["license_number"] != nil,
		"license_class":   fields["license_class"] != nil,
		"address":         fields["address"] != nil,
		"state":           fields["state"] != nil,
	}
	score := weightedScore(p.scoring.Weights, present)

	found := 0
	for _, ok := range present {
		if ok {
			found++
		}
	}
	switch {
	case present["driver_name"] && present["expiration_date"]:
		score = max(score, p.scoring.Overrides["name_and_expiration"])
	case (present["driver_name"] || present["expiration_date"]) && found >= 2:
		score = max(score, p.scoring.Overrides["critical_plus_other"])
	}
	return clamp(score)
}

// verify applies the hard business rule: name and expiration present, and the
// license must stay valid beyond the minimum window. Independent of the
// confidence score.
func (p *CDLParser) verify(data CDLData) bool {
	if data.DriverName == "" || data.ExpirationDate.IsZero() {
		return false
	}
	return daysUntil(p.now(), data.ExpirationDate) >= p.scoring.MinExpirationDays
}

func (p *CDLParser) Parse(text string) Outcome {
	r := p.ParseCDL(text)
	fields := make(map[string]any)
	if r.Data.DriverName != "" {
		fields["driver_name"] = r.Data.DriverName
	}
	if r.Data.LicenseNumber != "" {
		fields["license_number"] = r.Data.LicenseNumber
	}
	if !r.Data.ExpirationDate.IsZero() {
		fields["expiration_date"] = r.Data.ExpirationDate
	}
	if r.Data.LicenseClass != "" {
		fields["license_class"] = r.Data.LicenseClass
	}
	if r.Data.Address != "" {
		fields["address"] = r.Data.Address
	}
	if r.Data.State != "" {
		fields["state"] = r.Data.State
	}
	return Outcome{
		DocType:    constants.DocTypeCDL,
		Fields:     fields,
		Details:    r.Details,
		Confidence: r.Confidence,
		Flag:       FlagCDLVerified,
		FlagValue:  r.Verified,
	}
}
