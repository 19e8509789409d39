package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/freight-docs/constants"
	"github.com/joseph-ayodele/freight-docs/internal/common"
	"github.com/joseph-ayodele/freight-docs/internal/docparse"
	"github.com/joseph-ayodele/freight-docs/internal/ocr"
	"github.com/joseph-ayodele/freight-docs/internal/repository"
)

// Recognizer is the OCR acquisition boundary the processor drives.
type Recognizer interface {
	Recognize(ctx context.Context, file []byte, filename, mimeType string, opts ocr.Options) (*ocr.RecognitionResult, error)
}

// FlagWriter persists a gate decision for a load.
type FlagWriter interface {
	SetFlag(ctx context.Context, loadID uuid.UUID, flag string, value bool) error
}

// AuditWriter keeps the local parse history.
type AuditWriter interface {
	Record(ctx context.Context, e *repository.AuditEntry) error
}

// Request is one document to push through the pipeline.
type Request struct {
	LoadID    uuid.UUID // optional; flags are only written when set
	Path      string
	DocType   constants.DocumentType
	Languages []string
}

// Result is the pipeline outcome. FullText is the recognizer output verbatim,
// regardless of what the parser made of it, so downstream consumers (LLM
// extractors, review tooling) see exactly what was recognized.
type Result struct {
	State       constants.ParseState
	FullText    string
	Recognition *ocr.RecognitionResult
	Outcome     *docparse.Outcome
}

// Processor runs a document through recognition, extraction, scoring, and the
// verification gate: RECEIVED, TEXT_NORMALIZED, FIELDS_EXTRACTED, SCORED,
// then VERIFIED or REJECTED.
type Processor struct {
	Logger     *slog.Logger
	Recognizer Recognizer
	Parsers    *docparse.Registry
	Flags      FlagWriter  // optional
	Audit      AuditWriter // optional
}

func NewProcessor(recognizer Recognizer, parsers *docparse.Registry, flags FlagWriter, audit AuditWriter, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		Logger:     logger,
		Recognizer: recognizer,
		Parsers:    parsers,
		Flags:      flags,
		Audit:      audit,
	}
}

// ProcessFile reads, recognizes, parses, and gates one document. A document
// type without a structural parser stops cleanly at TEXT_NORMALIZED with the
// full text available.
func (p *Processor) ProcessFile(ctx context.Context, req Request) (*Result, error) {
	log := p.Logger.With("path", req.Path, "doc_type", req.DocType)
	if rid := common.RequestIDFromContext(ctx); rid != "" {
		log = log.With("request_id", rid)
	}
	if lid := common.LoadIDFromContext(ctx); lid != "" {
		log = log.With("load_id", lid)
	}

	mimeType := constants.MIMETypeForPath(req.Path)
	if mimeType == "" {
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(req.Path))
	}

	data, err := os.ReadFile(req.Path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	result := &Result{State: constants.ParseStateReceived}
	log.Info("pipeline.received", "bytes", len(data))

	rec, err := p.Recognizer.Recognize(ctx, data, filepath.Base(req.Path), mimeType, ocr.Options{
		Languages: req.Languages,
	})
	if err != nil {
		log.Error("pipeline.recognize.failed", "err", err)
		return result, fmt.Errorf("recognize: %w", err)
	}
	result.State = constants.ParseStateTextNormalized
	result.Recognition = rec
	result.FullText = rec.FullText
	log.Info("pipeline.text_normalized",
		"provider", rec.Provider,
		"pages", rec.PageCount,
		"confidence", rec.AverageConfidence,
	)

	parser, ok := p.Parsers.For(req.DocType)
	if !ok {
		log.Info("pipeline.no_parser")
		return result, nil
	}

	outcome := parser.Parse(rec.FullText)
	result.State = constants.ParseStateFieldsExtracted
	result.Outcome = &outcome
	result.State = constants.ParseStateScored

	if outcome.FlagValue {
		result.State = constants.ParseStateVerified
	} else {
		result.State = constants.ParseStateRejected
	}
	log.Info("pipeline.scored",
		"state", result.State,
		"confidence", outcome.Confidence,
		"flag", outcome.Flag,
		"flag_value", outcome.FlagValue,
	)

	if p.Flags != nil && req.LoadID != uuid.Nil {
		if err := p.Flags.SetFlag(ctx, req.LoadID, outcome.Flag, outcome.FlagValue); err != nil {
			return result, fmt.Errorf("persist flag: %w", err)
		}
	}
	if p.Audit != nil {
		if err := p.Audit.Record(ctx, p.auditEntry(req, result, rec, &outcome)); err != nil {
			return result, fmt.Errorf("record audit: %w", err)
		}
	}
	return result, nil
}

func (p *Processor) auditEntry(req Request, result *Result, rec *ocr.RecognitionResult, outcome *docparse.Outcome) *repository.AuditEntry {
	fields, err := json.Marshal(outcome.Fields)
	if err != nil {
		fields = []byte("{}")
	}
	details, err := json.Marshal(outcome.Details)
	if err != nil {
		details = []byte("{}")
	}
	return &repository.AuditEntry{
		FilePath:    req.Path,
		DocType:     string(req.DocType),
		State:       string(result.State),
		Provider:    rec.Provider,
		Confidence:  outcome.Confidence,
		Flag:        outcome.Flag,
		FlagValue:   outcome.FlagValue,
		FieldsJSON:  string(fields),
		DetailsJSON: string(details),
	}
}
