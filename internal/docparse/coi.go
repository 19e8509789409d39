package docparse

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/joseph-ayodele/freight-docs/constants"
)

// FlagInsuranceVerified is the business flag a COI parse gates.
const FlagInsuranceVerified = "insurance_verified"

// Liability amounts below this are treated as pattern noise, not coverage.
const coiMinLiabilityCents = 100_000 // $1,000

var (
	coiPolicyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Policy|POL)(?:\s+(?:Number|No|#))[:]*\s*([A-Z0-9-]{4,20})`),
		regexp.MustCompile(`(?i)(?:Certificate|Cert)(?:\s+(?:No|Number))[:]*\s+([A-Z0-9-]{6,20})`),
		regexp.MustCompile(`(?i)\b([A-Z]{2,4}-?[0-9A-Z]{3,}(?:-[0-9A-Z]{3,})*)\b`),
		regexp.MustCompile(`(?i)POLICY[:]*\s*([A-Z0-9-]{6,20})(?:\s|$)`),
		regexp.MustCompile(`\b([0-9]{8,15})\b`),
		regexp.MustCompile(`(?i)Policy[:]\s*([A-Z0-9-]{4,20})(?:\s|$)`),
	}

	coiCompanyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Insurer|Insurance Company|Carrier)[:]*\s*([A-Z][A-Za-z\s&]{3,40})`),
		regexp.MustCompile(`(?i)\b(State Farm|Allstate|Progressive|GEICO|Farmers|Liberty Mutual|Nationwide|USAA|Travelers|American Family|MetLife|AIG|CNA|Zurich|Hartford|Chubb)\b`),
		regexp.MustCompile(`(?i)(?:Issued by|Underwritten by)[:]*\s*([A-Z][A-Za-z\s&]{3,40})`),
		regexp.MustCompile(`(?i)\b([A-Z][A-Za-z]*(?:\s+[A-Z][A-Za-z]*)*\s+Insurance\s+Company)\b`),
		regexp.MustCompile(`(?i)\b([A-Z][A-Za-z]*(?:\s+[A-Z][A-Za-z]*)*)\s+Insurance(?:\s+Company)?\b`),
		regexp.MustCompile(`(?i)\b([A-Z][A-Za-z\s&]{10,50}(?:Insurance|Company))\b`),
	}

	coiGeneralLiabilityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:General Liability|GL|General Agg|Aggregate)[:]*\s*\$?([0-9,]+(?:\.[0-9]{1,2})?)\s*(?:M\b|Million|K\b|Thousand)?`),
		regexp.MustCompile(`(?i)(?:Each Occurrence|Per Occurrence|Occurrence Limit)[:]*\s*\$?([0-9,]+(?:\.[0-9]{1,2})?)\s*(?:M\b|Million|K\b|Thousand)?`),
		regexp.MustCompile(`(?i)(?:Bodily Injury|Property Damage|BI/PD)[:]*\s*\$?([0-9,]+(?:\.[0-9]{1,2})?)\s*(?:M\b|Million|K\b|Thousand)?`),
		regexp.MustCompile(`(?i)(?:Coverage|Limit)[:]*\s*\$?([0-9,]+(?:\.[0-9]{1,2})?)\s*(?:M\b|Million|K\b|Thousand)?`),
	}

	coiAutoLiabilityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Auto Liability|AL|Commercial Auto|Vehicle)[:]*\s*\$?([0-9,]+(?:\.[0-9]{1,2})?)\s*(?:M\b|Million|K\b|Thousand)?`),
		regexp.MustCompile(`(?i)(?:Combined Single Limit|CSL|Single Limit)[:]*\s*\$?([0-9,]+(?:\.[0-9]{1,2})?)\s*(?:M\b|Million|K\b|Thousand)?`),
		regexp.MustCompile(`(?i)(?:Liability Limit|Liability Coverage)[:]*\s*\$?([0-9,]+(?:\.[0-9]{1,2})?)\s*(?:M\b|Million|K\b|Thousand)?`),
	}

	coiEffectivePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Effective|Eff)(?:\s+Date)?[:]*\s*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
		regexp.MustCompile(`(?i)(?:Policy Period|Coverage Period)[:]*\s*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
		regexp.MustCompile(`(?i)From[:]*\s*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
	}

	coiExpirationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Expires|Expiration|Exp)(?:\s+Date)?[:]*\s*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
		regexp.MustCompile(`(?i)(?:Policy Period|Coverage Period)[:]*\s*\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\s+(?:to|through|-)\s*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
		regexp.MustCompile(`(?i)To[:]*\s*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
		regexp.MustCompile(`(?i)(?:Valid Until|Until)[:]*\s*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
	}

	coiDateShapeRe     = regexp.MustCompile(`^\d{1,2}[/-]\d{1,2}[/-]\d{2,4}$`)
	coiOCRYearShapeRe  = regexp.MustCompile(`^(?:20[O][0-9]|[0-9][O][0-9]{2})$`)
	coiPlainYearRe     = regexp.MustCompile(`^(19|20)\d{2}$`)
	coiAlphaNumShapeRe = regexp.MustCompile(`[A-Z0-9]`)
)

var coiPolicyFalsePositives = map[string]struct{}{
	"CERTIFICATE": {}, "INSURANCE": {}, "LIABILITY": {}, "GENERAL": {},
	"COMMERCIAL": {}, "POLICY": {}, "COVERAGE": {}, "EFFECTIVE": {},
	"EXPIRATION": {}, "COMPANY": {}, "NUMBER": {}, "NO": {},
	"1000000": {}, "2000000": {}, "500000": {}, "750000": {},
	"IFICATE": {}, "URANCE": {}, "TIFICATE": {},
	"RANDOM": {}, "TEXT": {}, "MORE": {}, "SOME": {}, "NAME": {}, "DATE": {},
	"TIME": {}, "FORM": {}, "TYPE": {}, "KIND": {}, "AUTO": {}, "HOME": {},
	"FIRE": {}, "LIFE": {},
}

// coiKnownPrefixes are short all-letter policy codes that are legitimate
// despite looking like English words.
var coiKnownPrefixes = map[string]struct{}{
	"ABC": {}, "PGR": {}, "ASC": {}, "SF": {}, "ALL": {}, "GEICO": {},
	"STATE": {}, "PROG": {}, "TPC": {},
}

var coiCompanyNoiseWords = map[string]struct{}{
	"CERTIFICATE": {}, "LIABILITY": {}, "GENERAL": {}, "POLICY": {},
	"COVERAGE": {}, "EFFECTIVE": {}, "EXPIRATION": {}, "AMOUNT": {}, "LIMIT": {},
}

// COIData is the structured content of a certificate of insurance. Liability
// amounts are integer cents.
type COIData struct {
	PolicyNumber          string    `json:"policy_number,omitempty"`
	InsuranceCompany      string    `json:"insurance_company,omitempty"`
	GeneralLiabilityCents int64     `json:"general_liability_cents,omitempty"`
	AutoLiabilityCents    int64     `json:"auto_liability_cents,omitempty"`
	EffectiveDate         time.Time `json:"effective_date,omitempty"`
	ExpirationDate        time.Time `json:"expiration_date,omitempty"`
}

// COIResult is one COI parse.
type COIResult struct {
	Data       COIData           `json:"data"`
	Confidence float32           `json:"confidence"`
	Verified   bool              `json:"verified"`
	Details    map[string]Detail `json:"details"`
}

// COIParser extracts certificate-of-insurance fields from recognized text.
type COIParser struct {
	scoring COIScoring
	logger  *slog.Logger
	now     func() time.Time
}

func NewCOIParser(scoring COIScoring, logger *slog.Logger) *COIParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &COIParser{scoring: scoring, logger: logger, now: time.Now}
}

func (p *COIParser) DocType() constants.DocumentType { return constants.DocTypeCOI }

func validPolicyNumber(num string) bool {
	if len(num) < 4 || !coiAlphaNumShapeRe.MatchString(num) {
		return false
	}
	if coiOCRYearShapeRe.MatchString(num) || coiDateShapeRe.MatchString(num) {
		return false
	}
	if coiPlainYearRe.MatchString(num) {
		// bare years in the plausible policy range are allowed; anything else
		// is almost certainly a date fragment
		year := 0
		for _, c := range num {
			year = year*10 + int(c-'0')
		}
		if year < 2020 || year > 2035 {
			return false
		}
	}
	if _, bad := coiPolicyFalsePositives[num]; bad {
		return false
	}
	allAlpha := true
	allDigit := true
	for _, c := range num {
		if c < 'A' || c > 'Z' {
			allAlpha = false
		}
		if c < '0' || c > '9' {
			allDigit = false
		}
	}
	if allAlpha && len(num) <= 10 {
		_, known := coiKnownPrefixes[num]
		return known
	}
	if allDigit && len(num) < 4 {
		return false
	}
	return true
}

func cleanCompanyName(company string) string {
	company = collapseSpaces(company)
	company = strings.TrimRight(company, ".,;:")

	words := strings.Fields(company)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		upper := strings.ToUpper(w)
		if _, noise := coiCompanyNoiseWords[upper]; noise || len(w) <= 1 {
			continue
		}
		kept = append(kept, w)
	}
	if len(kept) == 0 {
		return company
	}
	return titleCaser.String(strings.ToLower(strings.Join(kept, " ")))
}

func liabilityPost(capture string, groups []string) (any, bool) {
	cents, ok := parseCents(capture, groups[0])
	if !ok || cents < coiMinLiabilityCents {
		return nil, false
	}
	return cents, true
}

func (p *COIParser) specs() []FieldSpec {
	return []FieldSpec{
		{
			Name:     "policy_number",
			Patterns: coiPolicyPatterns,
			Post: func(capture string, _ []string) (any, bool) {
				num := strings.ToUpper(strings.TrimSpace(capture))
				if !validPolicyNumber(num) {
					return nil, false
				}
				return num, true
			},
		},
		{
			Name:     "insurance_company",
			Patterns: coiCompanyPatterns,
			Post: func(capture string, _ []string) (any, bool) {
				company := cleanCompanyName(capture)
				if len(company) <= 3 {
					return nil, false
				}
				return company, true
			},
		},
		{Name: "general_liability", Patterns: coiGeneralLiabilityPatterns, Post: liabilityPost},
		{Name: "auto_liability", Patterns: coiAutoLiabilityPatterns, Post: liabilityPost},
		{
			Name:     "effective_date",
			Patterns: coiEffectivePatterns,
			Post: func(capture string, _ []string) (any, bool) {
				t, ok := parseDate(capture)
				if !ok {
					return nil, false
				}
				return t, true
			},
		},
		{
			Name:     "expiration_date",
			Patterns: coiExpirationPatterns,
			Post: func(capture string, _ []string) (any, bool) {
				t, ok := parseDate(capture)
				if !ok || !t.After(p.now()) {
					return nil, false
				}
				return t, true
			},
		},
	}
}

// ParseCOI extracts, scores, and gates one certificate of insurance.
func (p *COIParser) ParseCOI(text string) COIResult {
	fields, details := ExtractFields(text, p.specs())

	data := COIData{}
	if v, ok := fields["policy_number"].(string); ok {
		data.PolicyNumber = v
	}
	if v, ok := fields["insurance_company"].(string); ok {
		data.InsuranceCompany = v
	}
	if v, ok := fields["general_liability"].(int64); ok {
		data.GeneralLiabilityCents = v
	}
	if v, ok := fields["auto_liability"].(int64); ok {
		data.AutoLiabilityCents = v
	}
	if v, ok := fields["effective_date"].(time.Time); ok {
		data.EffectiveDate = v
	}
	if v, ok := fields["expiration_date"].(time.Time); ok {
		data.ExpirationDate = v
	}

	confidence := p.score(fields)
	verified := p.verify(data)

	p.logger.Debug("parse.coi.done",
		"confidence", confidence,
		"verified", verified,
		"fields_found", len(fields),
	)
	return COIResult{Data: data, Confidence: confidence, Verified: verified, Details: details}
}

func (p *COIParser) score(fields map[string]any) float32 {
	present := map[string]bool{
		"policy_number":     fields["policy_number"] != nil,
		"insurance_company": fields["insurance_company"] != nil,
		"general_liability": fields["general_liability"] != nil,
		"auto_liability":    fields["auto_liability"] != nil,
		"effective_date":    fields["effective_date"] != nil,
		"expiration_date":   fields["expiration_date"] != nil,
	}
	score := weightedScore(p.scoring.Weights, present)

	hasPolicy := present["policy_number"]
	hasCompany := present["insurance_company"]
	hasAmounts := present["general_liability"] || present["auto_liability"]
	hasBothAmounts := present["general_liability"] && present["auto_liability"]
	hasDates := present["effective_date"] || present["expiration_date"]

	switch {
	case hasPolicy && hasCompany && hasAmounts && hasDates:
		score = p.scoring.Overrides["all_critical"]
	case hasPolicy && hasAmounts && hasDates && (hasCompany || hasBothAmounts):
		score = p.scoring.Overrides["policy_amounts_dates_extra"]
	case hasPolicy && hasAmounts && hasDates:
		score = p.scoring.Overrides["policy_amounts_dates"]
	case hasPolicy && (hasAmounts || hasDates):
		score = p.scoring.Overrides["policy_plus_one"]
	}
	return clamp(score)
}

// verify requires a policy number, at least one liability amount, and
// coverage extending past the minimum window.
func (p *COIParser) verify(data COIData) bool {
	if data.PolicyNumber == "" || data.ExpirationDate.IsZero() {
		return false
	}
	if data.GeneralLiabilityCents == 0 && data.AutoLiabilityCents == 0 {
		return false
	}
	return daysUntil(p.now(), data.ExpirationDate) >= p.scoring.MinCoverageDays
}

func (p *COIParser) Parse(text string) Outcome {
	r := p.ParseCOI(text)
	fields := make(map[string]any)
	if r.Data.PolicyNumber != "" {
		fields["policy_number"] = r.Data.PolicyNumber
	}
	if r.Data.InsuranceCompany != "" {
		fields["insurance_company"] = r.Data.InsuranceCompany
	}
	if r.Data.GeneralLiabilityCents > 0 {
		fields["general_liability"] = r.Data.GeneralLiabilityCents
	}
	if r.Data.AutoLiabilityCents > 0 {
		fields["auto_liability"] = r.Data.AutoLiabilityCents
	}
	if !r.Data.EffectiveDate.IsZero() {
		fields["effective_date"] = r.Data.EffectiveDate
	}
	if !r.Data.ExpirationDate.IsZero() {
		fields["expiration_date"] = r.Data.ExpirationDate
	}
	return Outcome{
		DocType:    constants.DocTypeCOI,
		Fields:     fields,
		Details:    r.Details,
		Confidence: r.Confidence,
		Flag:       FlagInsuranceVerified,
		FlagValue:  r.Verified,
	}
}
