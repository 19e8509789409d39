package ocr

import (
	"context"
	"strings"
)

// TextLine is one recognized line with the provider's confidence and geometry.
type TextLine struct {
	Text       string      `json:"text"`
	Confidence float32     `json:"confidence"`
	BBox       []float64   `json:"bbox,omitempty"`
	Polygon    [][]float64 `json:"polygon,omitempty"`
}

// Page is one recognized page.
type Page struct {
	Number            int        `json:"page_number"`
	Text              string     `json:"text"`
	AverageConfidence float32    `json:"average_confidence"`
	Lines             []TextLine `json:"text_lines"`
	Languages         []string   `json:"languages,omitempty"`
}

// RecognitionResult is the normalized OCR output, provider-agnostic.
// Pages are never mutated after construction. AverageConfidence is the mean
// of all line confidences across pages, or 0 when no lines were recognized.
// Confidence is comparable within one provider only; treat it as a monotonic
// quality signal, not a probability.
type RecognitionResult struct {
	Pages             []Page  `json:"pages"`
	FullText          string  `json:"full_text"`
	PageCount         int     `json:"page_count"`
	AverageConfidence float32 `json:"average_confidence"`
	Provider          string  `json:"provider"`
}

// Options are per-request OCR options.
type Options struct {
	// Languages holds up to 4 language hints.
	Languages []string
	// MaxPages limits how many pages the provider processes; 0 = no limit.
	MaxPages int
	// ForceOCR requests the provider's strongest recognition mode. Set by the
	// failover tier; ignored by providers without such a mode.
	ForceOCR bool
}

// JobHandle identifies a submitted recognition job.
type JobHandle struct {
	RequestID string
	CheckURL  string
}

// Provider is one external OCR service. Implementations are stateless and
// safe for concurrent use; all blocking happens inside Submit and Poll.
type Provider interface {
	Name() string

	// Validate checks local preconditions (size ceiling, MIME set) before any
	// network call. Returns a *ProviderError wrapping ErrValidation on failure.
	Validate(size int, mimeType string) error

	// Submit uploads the file and returns a job handle. One HTTP call.
	Submit(ctx context.Context, file []byte, filename, mimeType string, opts Options) (JobHandle, error)

	// Poll checks the job once. done is false while the provider is still
	// processing; the caller owns the wait/backoff schedule.
	Poll(ctx context.Context, h JobHandle) (result *RecognitionResult, done bool, err error)
}

// joinPageTexts builds the document text from per-page texts, insertion order
// preserved, skipping empty pages.
func joinPageTexts(pages []Page) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// overallConfidence is the arithmetic mean of all line confidences, or 0
// when no lines exist.
func overallConfidence(pages []Page) float32 {
	var sum float32
	var n int
	for _, p := range pages {
		for _, l := range p.Lines {
			sum += l.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float32(n)
}

func pageConfidence(lines []TextLine) float32 {
	if len(lines) == 0 {
		return 0
	}
	var sum float32
	for _, l := range lines {
		sum += l.Confidence
	}
	return sum / float32(len(lines))
}
