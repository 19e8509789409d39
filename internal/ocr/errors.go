package ocr

import (
	"errors"
	"fmt"
)

// Error kinds. The orchestrator routes on these: authentication failures are
// never retried against the same provider, rate-limit and processing failures
// are retried only via failover, timeouts mean the local poll budget ran out.
var (
	ErrAuthentication = errors.New("authentication rejected")
	ErrRateLimit      = errors.New("rate limit exceeded")
	ErrProcessing     = errors.New("processing failed")
	ErrTimeout        = errors.New("polling timed out")
	ErrValidation     = errors.New("validation failed")
)

// ProviderError is a classified failure from one provider.
type ProviderError struct {
	Provider string
	Kind     error
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Provider, e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Kind
}

func newProviderError(provider string, kind error, format string, args ...any) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// RecognitionError reports that every configured tier failed.
type RecognitionError struct {
	Primary  error
	Fallback error
}

func (e *RecognitionError) Error() string {
	if e.Fallback == nil {
		return fmt.Sprintf("recognition failed: %v", e.Primary)
	}
	return fmt.Sprintf("recognition failed: primary: %v; fallback: %v", e.Primary, e.Fallback)
}

func (e *RecognitionError) Unwrap() error {
	return e.Primary
}
