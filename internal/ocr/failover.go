package ocr

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/freight-docs/constants"
)

// RecognizerConfig holds thresholds and behavior flags for failover.
type RecognizerConfig struct {
	// ConfidenceThreshold is τ: results at or above it are accepted from the
	// primary tier. Default 0.5.
	ConfidenceThreshold float32
	// EnableFallback turns the second tier on. When off, low-confidence
	// primary results are returned as-is rather than discarded.
	EnableFallback bool
	// PreferStructuredForDocs moves PreferredForDocuments to the front of the
	// provider order for multi-page document MIME types.
	PreferStructuredForDocs bool
	// PreferredForDocuments names the structure-oriented provider. Default "marker".
	PreferredForDocuments string

	MaxPollAttempts int           // default 300
	PollInterval    time.Duration // initial wait between polls, default 2s
	PollIntervalCap time.Duration // backoff ceiling, default 10s
}

// Stats are the orchestrator's counters. Mutated only under mu; readers use
// Snapshot.
type Stats struct {
	mu sync.Mutex

	totalRequests               int64
	providerSuccess             map[string]int64
	confidenceTriggeredFallback int64
	errorTriggeredFallback      int64
	bothFailed                  int64
	acceptedWithWarning         int64
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	TotalRequests               int64            `json:"total_requests"`
	ProviderSuccess             map[string]int64 `json:"provider_success"`
	ConfidenceTriggeredFallback int64            `json:"confidence_triggered_fallback"`
	ErrorTriggeredFallback      int64            `json:"error_triggered_fallback"`
	BothFailed                  int64            `json:"both_failed"`
	AcceptedWithWarning         int64            `json:"accepted_with_warning"`
	SuccessRate                 float64          `json:"success_rate"`
	FallbackRate                float64          `json:"fallback_rate"`
}

func newStats() *Stats {
	return &Stats{providerSuccess: make(map[string]int64)}
}

func (s *Stats) snapshot(fallbackProvider string) StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := StatsSnapshot{
		TotalRequests:               s.totalRequests,
		ProviderSuccess:             make(map[string]int64, len(s.providerSuccess)),
		ConfidenceTriggeredFallback: s.confidenceTriggeredFallback,
		ErrorTriggeredFallback:      s.errorTriggeredFallback,
		BothFailed:                  s.bothFailed,
		AcceptedWithWarning:         s.acceptedWithWarning,
	}
	var successes int64
	for k, v := range s.providerSuccess {
		out.ProviderSuccess[k] = v
		successes += v
	}
	if s.totalRequests > 0 {
		out.SuccessRate = float64(successes) / float64(s.totalRequests)
		out.FallbackRate = float64(s.providerSuccess[fallbackProvider]) / float64(s.totalRequests)
	}
	return out
}

func (s *Stats) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalRequests = 0
	s.providerSuccess = make(map[string]int64)
	s.confidenceTriggeredFallback = 0
	s.errorTriggeredFallback = 0
	s.bothFailed = 0
	s.acceptedWithWarning = 0
}

func (s *Stats) incr(f func(*Stats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(s)
}

// Recognizer fronts an ordered list of providers with two-tier failover:
// hard errors and low confidence both route to the next provider, with
// distinct counters. Confidence is a routing signal only, never ground truth.
// Safe for concurrent use; provider attempts within one call are sequential.
type Recognizer struct {
	providers []Provider
	cfg       RecognizerConfig
	stats     *Stats
	logger    *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func NewRecognizer(providers []Provider, cfg RecognizerConfig, logger *slog.Logger) *Recognizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.5
	}
	if cfg.ConfidenceThreshold > 1 {
		cfg.ConfidenceThreshold = 1
	}
	if cfg.PreferredForDocuments == "" {
		cfg.PreferredForDocuments = markerName
	}
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = 300
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.PollIntervalCap <= 0 {
		cfg.PollIntervalCap = 10 * time.Second
	}
	return &Recognizer{
		providers: providers,
		cfg:       cfg,
		stats:     newStats(),
		logger:    logger,
		sleep:     sleepCtx,
	}
}

// Stats returns a point-in-time snapshot of the failover counters.
func (r *Recognizer) Stats() StatsSnapshot {
	fallback := ""
	if len(r.providers) > 1 {
		fallback = r.providers[1].Name()
	}
	return r.stats.snapshot(fallback)
}

// ResetStats zeroes all counters.
func (r *Recognizer) ResetStats() {
	r.stats.reset()
}

// Recognize submits the document to the preferred provider and fails over to
// the next one on hard error or low confidence. A low-confidence result is
// returned annotated rather than discarded whenever no better result exists.
func (r *Recognizer) Recognize(ctx context.Context, file []byte, filename, mimeType string, opts Options) (*RecognitionResult, error) {
	r.stats.incr(func(s *Stats) { s.totalRequests++ })

	reqID := uuid.New().String()
	log := r.logger.With("req_id", reqID, "filename", filename, "mime_type", mimeType)

	order := r.order(mimeType)
	primary := order[0]

	primaryResult, primaryErr := r.attempt(ctx, primary, file, filename, mimeType, opts, log)

	if primaryErr == nil {
		confidence := primaryResult.AverageConfidence
		if confidence >= r.cfg.ConfidenceThreshold {
			r.stats.incr(func(s *Stats) { s.providerSuccess[primary.Name()]++ })
			log.Info("ocr.recognize.ok", "provider", primary.Name(), "confidence", confidence)
			return primaryResult, nil
		}
		if !r.cfg.EnableFallback || len(order) < 2 {
			// Never silently discard data the caller could still use.
			r.stats.incr(func(s *Stats) {
				s.providerSuccess[primary.Name()]++
				s.acceptedWithWarning++
			})
			log.Warn("ocr.recognize.low_confidence_accepted",
				"provider", primary.Name(),
				"confidence", confidence,
				"threshold", r.cfg.ConfidenceThreshold,
			)
			return primaryResult, nil
		}
		r.stats.incr(func(s *Stats) { s.confidenceTriggeredFallback++ })
		log.Warn("ocr.recognize.confidence_fallback",
			"provider", primary.Name(),
			"confidence", confidence,
			"threshold", r.cfg.ConfidenceThreshold,
		)
	} else {
		log.Error("ocr.recognize.provider_error", "provider", primary.Name(), "error", primaryErr)
		if !r.cfg.EnableFallback || len(order) < 2 {
			return nil, &RecognitionError{Primary: primaryErr}
		}
		r.stats.incr(func(s *Stats) { s.errorTriggeredFallback++ })
	}

	// Second tier: strongest recognition mode, two tiers only.
	secondary := order[1]
	fbOpts := opts
	fbOpts.ForceOCR = true
	fallbackResult, fallbackErr := r.attempt(ctx, secondary, file, filename, mimeType, fbOpts, log)
	if fallbackErr == nil {
		r.stats.incr(func(s *Stats) { s.providerSuccess[secondary.Name()]++ })
		log.Info("ocr.recognize.fallback_ok",
			"provider", secondary.Name(),
			"confidence", fallbackResult.AverageConfidence,
		)
		return fallbackResult, nil
	}
	log.Error("ocr.recognize.fallback_error", "provider", secondary.Name(), "error", fallbackErr)

	r.stats.incr(func(s *Stats) { s.bothFailed++ })
	if primaryResult != nil {
		r.stats.incr(func(s *Stats) { s.acceptedWithWarning++ })
		log.Warn("ocr.recognize.low_confidence_accepted",
			"provider", primary.Name(),
			"confidence", primaryResult.AverageConfidence,
		)
		return primaryResult, nil
	}
	return nil, &RecognitionError{Primary: primaryErr, Fallback: fallbackErr}
}

// order returns the provider attempt order for this MIME type.
func (r *Recognizer) order(mimeType string) []Provider {
	order := make([]Provider, len(r.providers))
	copy(order, r.providers)
	if !r.cfg.PreferStructuredForDocs {
		return order
	}
	if _, isDoc := constants.DocumentMIMETypes[mimeType]; !isDoc {
		return order
	}
	for i, p := range order {
		if p.Name() == r.cfg.PreferredForDocuments && i > 0 {
			order[0], order[i] = order[i], order[0]
			break
		}
	}
	return order
}

// attempt runs one provider end to end: submit, then poll with geometric
// backoff until terminal state or the attempt ceiling.
func (r *Recognizer) attempt(ctx context.Context, p Provider, file []byte, filename, mimeType string, opts Options, log *slog.Logger) (*RecognitionResult, error) {
	handle, err := p.Submit(ctx, file, filename, mimeType, opts)
	if err != nil {
		return nil, err
	}
	log.Debug("ocr.poll.start", "provider", p.Name(), "request_id", handle.RequestID)

	interval := r.cfg.PollInterval
	for attempt := 1; attempt <= r.cfg.MaxPollAttempts; attempt++ {
		result, done, err := p.Poll(ctx, handle)
		if err != nil {
			return nil, err
		}
		if done {
			log.Debug("ocr.poll.done", "provider", p.Name(), "attempts", attempt)
			return result, nil
		}
		if err := r.sleep(ctx, interval); err != nil {
			return nil, newProviderError(p.Name(), ErrTimeout, "cancelled while polling: %v", err)
		}
		interval = time.Duration(float64(interval) * 1.5)
		if interval > r.cfg.PollIntervalCap {
			interval = r.cfg.PollIntervalCap
		}
	}
	return nil, newProviderError(p.Name(), ErrTimeout, "no result after %d polls", r.cfg.MaxPollAttempts)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
