package docparse

import (
	"log/slog"
	"time"

	"github.com/joseph-ayodele/freight-docs/constants"
)

// Outcome is the document-type-agnostic view of a parse, consumed by the
// pipeline and the flag repository. Parsing never fails: garbage or empty
// text yields zero confidence and a false flag, not an error.
type Outcome struct {
	DocType    constants.DocumentType `json:"doc_type"`
	Fields     map[string]any         `json:"fields"`
	Details    map[string]Detail      `json:"details"`
	Confidence float32                `json:"confidence"`
	Flag       string                 `json:"flag"`
	FlagValue  bool                   `json:"flag_value"`
}

// Parser turns recognized text into a scored, gated Outcome for one document
// type. Implementations are stateless after construction and safe for
// concurrent use.
type Parser interface {
	DocType() constants.DocumentType
	Parse(text string) Outcome
}

// Registry holds one parser per document type.
type Registry struct {
	parsers map[constants.DocumentType]Parser
}

// NewRegistry builds the full parser set against one scoring table. A nil
// config uses the embedded default.
func NewRegistry(cfg *ScoringConfig, logger *slog.Logger) *Registry {
	if cfg == nil {
		cfg = DefaultScoring()
	}
	if logger == nil {
		logger = slog.Default()
	}
	parsers := []Parser{
		NewCDLParser(cfg.CDL, logger),
		NewCOIParser(cfg.COI, logger),
		NewPODParser(cfg.POD, logger),
		NewRateConParser(cfg.RateCon, logger),
		NewAgreementParser(cfg.Agreement, logger),
		NewInvoiceParser(cfg.Invoice, logger),
	}
	byType := make(map[constants.DocumentType]Parser, len(parsers))
	for _, p := range parsers {
		byType[p.DocType()] = p
	}
	return &Registry{parsers: byType}
}

// For returns the parser for a document type, or false when the type has no
// structural parser.
func (r *Registry) For(dt constants.DocumentType) (Parser, bool) {
	p, ok := r.parsers[dt]
	return p, ok
}

// clamp bounds a confidence score to [0,1].
func clamp(score float32) float32 {
	if score > 1 {
		return 1
	}
	if score < 0 {
		return 0
	}
	return score
}

// weightedScore sums the weights of present fields.
func weightedScore(weights map[string]float32, present map[string]bool) float32 {
	var score float32
	for field, ok := range present {
		if ok {
			score += weights[field]
		}
	}
	return score
}

// daysUntil counts whole days from now to a deadline.
func daysUntil(now, deadline time.Time) int {
	return int(deadline.Sub(now).Hours() / 24)
}
