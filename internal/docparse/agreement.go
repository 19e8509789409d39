package docparse

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/joseph-ayodele/freight-docs/constants"
)

// FlagAgreementSigned is the business flag an agreement parse gates.
const FlagAgreementSigned = "agreement_signed"

// Signature evidence. An agreement counts as signed when at least two
// indicators fire, or a single strong one does.
var agreementSignaturePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:digitally\s+)?signed\s+by[:\s]*([A-Za-z\s.]*)`),
	regexp.MustCompile(`(?i)driver\s+signature[:\s]*`),
	regexp.MustCompile(`(?i)signature[:\s]*`),
	regexp.MustCompile(`X{2,}[_\-\s]*|X[_\-]{3,}|[_\-]{4,}`),
	regexp.MustCompile(`(?i)date\s+signed[:\s]*`),
	regexp.MustCompile(`(?i)signed\s+on[:\s]*`),
	regexp.MustCompile(`(?i)i\s+(?:agree|accept|acknowledge)\s+(?:to\s+)?(?:the\s+)?terms`),
}

// The first pattern is only a strong signal when it actually captured a
// signer name; a bare "signed by:" label is weak evidence.
const agreementSignedByPattern = 0

var agreementTypePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(driver|independent\s+contractor|carrier)\s+agreement`),
	regexp.MustCompile(`(?i)transportation\s+agreement`),
	regexp.MustCompile(`(?i)freight\s+broker\s+agreement`),
	regexp.MustCompile(`(?i)freight\s+agreement`),
	regexp.MustCompile(`(?i)load\s+agreement`),
	regexp.MustCompile(`(?im)^\s*terms\s+and\s+conditions\s*$`),
	regexp.MustCompile(`(?i)(employment|service)\s+contract`),
	regexp.MustCompile(`(?i)non[\s-]*disclosure\s+agreement`),
}

var agreementTermPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)liability[^.\n]{0,80}\$[0-9,]+(?:\.[0-9]{2})?[^.\n]{0,40}`),
	regexp.MustCompile(`(?i)(?:payment|rate|pay)[^.\n]{0,40}(?:per\s+(?:mile|load|hour))[^.\n]{0,40}`),
	regexp.MustCompile(`(?i)equipment\s+requirements?[^.\n]{0,120}`),
	regexp.MustCompile(`(?i)termination[^.\n]{0,40}notice[^.\n]{0,60}`),
	regexp.MustCompile(`(?i)(?:DOT|FMCSA)\s+(?:compliance|regulations?|requirements?)[^.\n]{0,80}`),
}

var agreementDatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:date\s+signed|signed\s+on|execution\s+date)[:\s]*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
	regexp.MustCompile(`(?i)(?:date\s+signed|signed\s+on|executed)[:\s]*([A-Za-z]+\s+\d{1,2},?\s+\d{4})`),
	regexp.MustCompile(`(?i)dated?[:\s]+(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
}

// Articles stay lowercase when title-casing an agreement type heading.
var lowercaseArticles = map[string]bool{
	"and": true, "of": true, "the": true, "in": true, "on": true,
	"at": true, "to": true, "for": true, "with": true,
}

// AgreementData is the structured content of a freight agreement document.
type AgreementData struct {
	SignatureDetected   bool      `json:"signature_detected"`
	SignatureIndicators int       `json:"signature_indicators"`
	AgreementType       string    `json:"agreement_type,omitempty"`
	KeyTerms            []string  `json:"key_terms,omitempty"`
	SigningDate         time.Time `json:"signing_date,omitempty"`
}

// AgreementResult is one agreement parse.
type AgreementResult struct {
	Data       AgreementData     `json:"data"`
	Confidence float32           `json:"confidence"`
	Signed     bool              `json:"signed"`
	Details    map[string]Detail `json:"details"`
}

// AgreementParser detects signatures and agreement structure in contract
// text.
type AgreementParser struct {
	scoring AgreementScoring
	logger  *slog.Logger
}

func NewAgreementParser(scoring AgreementScoring, logger *slog.Logger) *AgreementParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &AgreementParser{scoring: scoring, logger: logger}
}

func (p *AgreementParser) DocType() constants.DocumentType { return constants.DocTypeAgreement }

func detectSignature(text string, details map[string]Detail) (bool, int) {
	indicators := 0
	strong := false
	firstPattern := -1
	for i, re := range agreementSignaturePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		indicators++
		if firstPattern < 0 {
			firstPattern = i
		}
		if i == agreementSignedByPattern {
			if len(m) > 1 && len(strings.TrimSpace(m[1])) > 3 {
				strong = true
			}
		} else {
			strong = true
		}
	}
	detected := indicators >= 2 || strong
	if indicators > 0 {
		details["signature"] = Detail{Pattern: firstPattern, Signals: indicators}
	}
	return detected, indicators
}

func titleCaseAgreementType(raw string) string {
	words := strings.Fields(strings.ToLower(collapseSpaces(raw)))
	for i, w := range words {
		if i > 0 && lowercaseArticles[w] {
			continue
		}
		words[i] = titleCaser.String(w)
	}
	return strings.Join(words, " ")
}

func extractAgreementType(text string, details map[string]Detail) (string, bool) {
	for i, re := range agreementTypePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		details["agreement_type"] = Detail{Pattern: i, Raw: m[0]}
		return titleCaseAgreementType(m[0]), true
	}
	return "", false
}

func extractKeyTerms(text string, details map[string]Detail) []string {
	var terms []string
	seen := make(map[string]bool)
	for _, re := range agreementTermPatterns {
		matches := re.FindAllString(text, 3)
		for _, m := range matches {
			term := collapseSpaces(m)
			if len(term) <= 10 || seen[term] {
				continue
			}
			seen[term] = true
			terms = append(terms, term)
		}
	}
	if len(terms) > 0 {
		details["key_terms"] = Detail{Signals: len(terms)}
	}
	return terms
}

func extractSigningDate(text string, details map[string]Detail) (time.Time, bool) {
	for i, re := range agreementDatePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if t, ok := parseDate(m[1]); ok {
			details["signing_date"] = Detail{Pattern: i, Raw: m[1]}
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseAgreement extracts, scores, and gates one agreement document.
func (p *AgreementParser) ParseAgreement(text string) AgreementResult {
	if strings.TrimSpace(text) == "" {
		// the ladder floor applies to documents, not to missing text
		return AgreementResult{Details: map[string]Detail{}}
	}
	cleaned := CleanArtifacts(text)
	details := make(map[string]Detail)

	data := AgreementData{}
	data.SignatureDetected, data.SignatureIndicators = detectSignature(cleaned, details)
	data.AgreementType, _ = extractAgreementType(cleaned, details)
	data.KeyTerms = extractKeyTerms(cleaned, details)
	data.SigningDate, _ = extractSigningDate(cleaned, details)

	confidence := p.score(data)
	signed := confidence >= p.scoring.SignedThreshold

	p.logger.Debug("parse.agreement.done",
		"confidence", confidence,
		"signed", signed,
		"signature_indicators", data.SignatureIndicators,
		"agreement_type", data.AgreementType,
	)
	return AgreementResult{Data: data, Confidence: confidence, Signed: signed, Details: details}
}

func (p *AgreementParser) score(data AgreementData) float32 {
	hasSig := data.SignatureDetected
	hasType := data.AgreementType != ""
	hasTerms := len(data.KeyTerms) > 0
	hasDate := !data.SigningDate.IsZero()

	ladder := p.scoring.Ladder
	var score float32
	switch {
	case hasSig && hasType && hasDate:
		score = ladder["signature_type_date"]
	case hasSig && hasType:
		score = ladder["signature_type"]
	case hasSig && hasTerms:
		score = ladder["signature_terms"]
	case hasSig:
		score = ladder["signature_only"]
	case hasType && hasTerms:
		score = ladder["type_terms"]
	case hasTerms:
		score = ladder["terms_only"]
	default:
		score = ladder["floor"]
	}

	// Boost tiers are exclusive: only the highest one that the indicator
	// count reaches applies.
	for _, boost := range p.scoring.SignalBoosts {
		if data.SignatureIndicators >= boost.MinSignals {
			score += boost.Boost
			break
		}
	}
	return clamp(score)
}

func (p *AgreementParser) Parse(text string) Outcome {
	r := p.ParseAgreement(text)
	fields := map[string]any{
		"signature_detected":   r.Data.SignatureDetected,
		"signature_indicators": r.Data.SignatureIndicators,
	}
	if r.Data.AgreementType != "" {
		fields["agreement_type"] = r.Data.AgreementType
	}
	if len(r.Data.KeyTerms) > 0 {
		fields["key_terms"] = r.Data.KeyTerms
	}
	if !r.Data.SigningDate.IsZero() {
		fields["signing_date"] = r.Data.SigningDate
	}
	return Outcome{
		DocType:    constants.DocTypeAgreement,
		Fields:     fields,
		Details:    r.Details,
		Confidence: r.Confidence,
		Flag:       FlagAgreementSigned,
		FlagValue:  r.Signed,
	}
}
