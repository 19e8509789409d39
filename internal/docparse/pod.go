package docparse

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/joseph-ayodele/freight-docs/constants"
)

// FlagPODCompleted is the business flag a proof-of-delivery parse gates.
const FlagPODCompleted = "pod_completed"

var podConfirmationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)delivery\s+confirmed?`),
	regexp.MustCompile(`(?i)delivered\s+successfully`),
	regexp.MustCompile(`(?i)package\s+delivered`),
	regexp.MustCompile(`(?i)shipment\s+delivered`),
	regexp.MustCompile(`(?i)freight\s+delivered`),
	regexp.MustCompile(`(?i)cargo\s+delivered`),
	regexp.MustCompile(`(?i)goods\s+delivered`),
	regexp.MustCompile(`(?i)delivery\s+completed?`),
	regexp.MustCompile(`(?i)received\s+in\s+good\s+condition`),
	regexp.MustCompile(`(?i)delivery\s+accepted`),
	regexp.MustCompile(`(?i)status[:\s]*delivered`),
}

// podIndicators identify the document type itself; weaker evidence than an
// explicit confirmation phrase, still enough to set the flag.
var podIndicators = []string{
	"proof of delivery",
	"pod",
	"delivery receipt",
	"delivery confirmation",
	"consignee receipt",
	"freight receipt",
	"delivery note",
	"shipment receipt",
}

var podSignaturePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)signature[:\s]*[A-Za-z\s]+`),
	regexp.MustCompile(`(?i)signed\s+by[:\s]*[A-Za-z\s]+`),
	regexp.MustCompile(`(?i)received\s+by[:\s]*[A-Za-z\s]+`),
	regexp.MustCompile(`(?i)accepted\s+by[:\s]*[A-Za-z\s]+`),
	regexp.MustCompile(`(?i)electronically\s+signed`),
	regexp.MustCompile(`(?i)digital\s+signature`),
	regexp.MustCompile(`(?i)signature\s+on\s+file`),
	regexp.MustCompile(`(?i)signed\s+digitally`),
	regexp.MustCompile(`(?i)[*]{2,}.*signature.*[*]{2,}`),
	regexp.MustCompile(`(?i)___+.*signature.*___+`),
}

var podReceiverPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:received|delivered|signed)\s+(?:to|by)[:\s]*(?:mr\.?|ms\.?|mrs\.?|dr\.?)?\s*([A-Za-z][A-Za-z\s]{2,30})`),
	regexp.MustCompile(`(?i)consignee[:\s]*(?:mr\.?|ms\.?|mrs\.?)?\s*([A-Za-z][A-Za-z\s]{2,30})`),
	regexp.MustCompile(`(?i)recipient[:\s]*(?:mr\.?|ms\.?|mrs\.?)?\s*([A-Za-z][A-Za-z\s]{2,30})`),
	regexp.MustCompile(`(?i)customer[:\s]*(?:mr\.?|ms\.?|mrs\.?)?\s*([A-Za-z][A-Za-z\s]{2,30})`),
	regexp.MustCompile(`(?i)name[:\s]*([A-Za-z][A-Za-z\s]{2,30})`),
	regexp.MustCompile(`(?i)contact[:\s]*([A-Za-z][A-Za-z\s]{2,30})`),
	regexp.MustCompile(`(?i)signature[:\s]*[_\-]*\s*([A-Za-z][A-Za-z\s]{2,30})`),
}

var podDatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:delivered|delivery|received)\s+(?:on|at)?[:\s]*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
	regexp.MustCompile(`(?i)(?:delivered|delivery|received)\s+(?:on|at)?[:\s]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`),
	regexp.MustCompile(`(?i)delivery\s+date[:\s]*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
	regexp.MustCompile(`(?i)delivery\s+date[:\s]*(\d{4}[/-]\d{1,2}[/-]\d{1,2})`),
	regexp.MustCompile(`(?i)(?:delivered|delivery|received)[:\s]*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})\s+(?:at\s+)?(\d{1,2}:\d{2})`),
	regexp.MustCompile(`(?i)(?:delivered|delivery|received)[:\s]*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})\s+(\d{1,2}:\d{2}\s*[apAP][mM])`),
	regexp.MustCompile(`(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
	regexp.MustCompile(`(\d{4}[/-]\d{1,2}[/-]\d{1,2})`),
}

var podNotesPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:delivery\s+)?notes?\b[:\s]*([^\n\r]{10,200})`),
	regexp.MustCompile(`(?i)(?:special\s+)?instructions?\b[:\s]*([^\n\r]{10,200})`),
	regexp.MustCompile(`(?i)comments?\b[:\s]*([^\n\r]{10,200})`),
	regexp.MustCompile(`(?i)remarks?\b[:\s]*([^\n\r]{10,200})`),
	regexp.MustCompile(`(?i)observations?\b[:\s]*([^\n\r]{5,100})`),
	regexp.MustCompile(`(?i)condition[:\s]*([^\n\r]{5,100})`),
	regexp.MustCompile(`(?i)((?:good|poor|damaged|excellent)\s+condition)`),
	regexp.MustCompile(`(?i)(damage[sd]?[:\s]*[^\n\r]{5,100})`),
	regexp.MustCompile(`(?i)(exception[:\s]*[^\n\r]{5,100})`),
}

// podReceiverDenylist are tokens a receiver-name capture must not contain;
// they mark form labels, not people.
var podReceiverDenylist = []string{
	"date", "time", "signature", "line", "print", "page",
	"delivery", "package", "condition", "satisfied", "front door",
	"good", "excellent", "poor", "damaged", "notes", "comments", "remarks",
}

var (
	fullNameShapeRe   = regexp.MustCompile(`^[A-Z][a-z]+ [A-Z][a-z]+$`)
	singleNameShapeRe = regexp.MustCompile(`^[A-Z][a-z]+$`)
)

// scoreReceiverCandidate ranks receiver-name candidates. Deterministic:
// shorter plausible captures and proper name shapes win, and the tie-break is
// pattern precedence.
func scoreReceiverCandidate(name string) int {
	score := 0
	switch {
	case len(name) <= 20:
		score += 3
	case len(name) <= 30:
		score++
	}
	switch {
	case fullNameShapeRe.MatchString(name):
		score += 5
	case singleNameShapeRe.MatchString(name):
		score += 2
	}
	if strings.Count(name, ".") <= 1 && strings.Count(name, ",") <= 1 {
		score++
	}
	return score
}

// PODData is the structured content of a proof-of-delivery document.
type PODData struct {
	DeliveryConfirmed bool      `json:"delivery_confirmed"`
	DeliveryDate      time.Time `json:"delivery_date,omitempty"`
	ReceiverName      string    `json:"receiver_name,omitempty"`
	SignaturePresent  bool      `json:"signature_present"`
	DeliveryNotes     string    `json:"delivery_notes,omitempty"`
}

// PODResult is one POD parse.
type PODResult struct {
	Data       PODData           `json:"data"`
	Confidence float32           `json:"confidence"`
	Completed  bool              `json:"completed"`
	Details    map[string]Detail `json:"details"`
}

// PODParser extracts proof-of-delivery fields from recognized text.
type PODParser struct {
	scoring PODScoring
	logger  *slog.Logger
}

func NewPODParser(scoring PODScoring, logger *slog.Logger) *PODParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &PODParser{scoring: scoring, logger: logger}
}

func (p *PODParser) DocType() constants.DocumentType { return constants.DocTypePOD }

var podConfirmationSpecPatterns = func() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(podConfirmationPatterns)+len(podIndicators))
	patterns = append(patterns, podConfirmationPatterns...)
	for _, indicator := range podIndicators {
		patterns = append(patterns, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(indicator)))
	}
	return patterns
}()

func podSpecs() []FieldSpec {
	return []FieldSpec{
		{Name: "delivery_confirmed", Mode: CountSignals, Patterns: podConfirmationSpecPatterns},
		{Name: "signature_present", Mode: CountSignals, Patterns: podSignaturePatterns},
		{
			Name:     "receiver_name",
			Mode:     BestMatch,
			Patterns: podReceiverPatterns,
			Post: func(capture string, _ []string) (any, bool) {
				name := strings.TrimSpace(capture)
				if cut, _, found := strings.Cut(name, "\n"); found {
					name = strings.TrimSpace(cut)
				}
				if len(name) < 2 {
					return nil, false
				}
				lower := strings.ToLower(name)
				for _, bad := range podReceiverDenylist {
					if strings.Contains(lower, bad) {
						return nil, false
					}
				}
				return name, true
			},
			Score: scoreReceiverCandidate,
		},
		{
			Name:     "delivery_date",
			Patterns: podDatePatterns,
			Post: func(capture string, groups []string) (any, bool) {
				timePart := ""
				if len(groups) > 2 {
					timePart = groups[2]
				}
				t, ok := parseDateTime(capture, timePart)
				if !ok {
					return nil, false
				}
				return t, true
			},
		},
	}
}

// extractNotes aggregates every notes-shaped capture, deduplicated in order,
// capped at 500 characters.
func extractNotes(text string) (string, int) {
	seen := make(map[string]struct{})
	var notes []string
	for _, re := range podNotesPatterns {
		for _, groups := range re.FindAllStringSubmatch(text, -1) {
			note := strings.TrimSpace(groups[1])
			if len(note) < 5 {
				continue
			}
			if _, dup := seen[note]; dup {
				continue
			}
			seen[note] = struct{}{}
			notes = append(notes, note)
		}
	}
	if len(notes) == 0 {
		return "", 0
	}
	combined := strings.Join(notes, ". ")
	if len(combined) > 500 {
		combined = combined[:500]
	}
	return combined, len(notes)
}

// ParsePOD extracts, scores, and gates one proof-of-delivery document.
func (p *PODParser) ParsePOD(text string) PODResult {
	cleaned := CleanArtifacts(text)
	fields, details := ExtractFields(cleaned, podSpecs())

	data := PODData{}
	confirmDetail, confirmed := details["delivery_confirmed"]
	data.DeliveryConfirmed = confirmed
	_, data.SignaturePresent = fields["signature_present"]
	if v, ok := fields["receiver_name"].(string); ok {
		data.ReceiverName = v
	}
	if v, ok := fields["delivery_date"].(time.Time); ok {
		data.DeliveryDate = v
	}
	var notesCount int
	data.DeliveryNotes, notesCount = extractNotes(cleaned)
	if notesCount > 0 {
		details["delivery_notes"] = Detail{Signals: notesCount}
	}

	// confirmation via an explicit phrase, not just the document title
	explicitConfirmation := confirmed && confirmDetail.Pattern < len(podConfirmationPatterns)

	confidence := p.score(data, explicitConfirmation)
	completed := data.DeliveryConfirmed && confidence >= p.scoring.CompletedThreshold

	p.logger.Debug("parse.pod.done",
		"confidence", confidence,
		"completed", completed,
		"delivery_confirmed", data.DeliveryConfirmed,
		"signature_present", data.SignaturePresent,
	)
	return PODResult{Data: data, Confidence: confidence, Completed: completed, Details: details}
}

func (p *PODParser) score(data PODData, explicitConfirmation bool) float32 {
	present := map[string]bool{
		"delivery_confirmed": data.DeliveryConfirmed,
		"signature_present":  data.SignaturePresent,
		"delivery_date":      !data.DeliveryDate.IsZero(),
		"receiver_name":      data.ReceiverName != "",
		"delivery_notes":     data.DeliveryNotes != "",
	}
	score := weightedScore(p.scoring.Weights, present)

	var bonuses float32
	if explicitConfirmation {
		bonuses += p.scoring.Bonuses["explicit_confirmation"]
	}
	if len(data.ReceiverName) > 5 {
		bonuses += p.scoring.Bonuses["receiver_name_quality"]
	}
	if len(data.DeliveryNotes) > 20 {
		bonuses += p.scoring.Bonuses["substantial_notes"]
	}
	return clamp(score + bonuses)
}

func (p *PODParser) Parse(text string) Outcome {
	r := p.ParsePOD(text)
	fields := map[string]any{
		"delivery_confirmed": r.Data.DeliveryConfirmed,
		"signature_present":  r.Data.SignaturePresent,
	}
	if r.Data.ReceiverName != "" {
		fields["receiver_name"] = r.Data.ReceiverName
	}
	if !r.Data.DeliveryDate.IsZero() {
		fields["delivery_date"] = r.Data.DeliveryDate
	}
	if r.Data.DeliveryNotes != "" {
		fields["delivery_notes"] = r.Data.DeliveryNotes
	}
	return Outcome{
		DocType:    constants.DocTypePOD,
		Fields:     fields,
		Details:    r.Details,
		Confidence: r.Confidence,
		Flag:       FlagPODCompleted,
		FlagValue:  r.Completed,
	}
}
