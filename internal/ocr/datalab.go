package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

const (
	datalabName        = "datalab"
	datalabMaxFileSize = 200 << 20 // 200MB
	maxLanguageHints   = 4
)

var datalabMIMETypes = map[string]struct{}{
	"application/pdf": {},
	"image/png":       {},
	"image/jpeg":      {},
	"image/jpg":       {},
	"image/webp":      {},
	"image/gif":       {},
	"image/tiff":      {},
}

// DatalabConfig configures the Datalab line-OCR client.
type DatalabConfig struct {
	BaseURL string // default "https://www.datalab.to/api/v1"
	APIKey  string
	Timeout time.Duration // per-request, default 30s
}

// DatalabClient talks to the Datalab OCR submit/poll API. Stateless; safe to
// share across concurrent calls.
type DatalabClient struct {
	cfg        DatalabConfig
	httpClient *http.Client
	logger     *slog.Logger
}

func NewDatalabClient(cfg DatalabConfig, logger *slog.Logger) *DatalabClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.datalab.to/api/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &DatalabClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

func (c *DatalabClient) Name() string { return datalabName }

// Validate enforces the provider's size ceiling and MIME set locally, before
// any network call.
func (c *DatalabClient) Validate(size int, mimeType string) error {
	if size <= 0 {
		return newProviderError(datalabName, ErrValidation, "file is empty")
	}
	if size > datalabMaxFileSize {
		return newProviderError(datalabName, ErrValidation, "file size %d exceeds maximum %d", size, datalabMaxFileSize)
	}
	if _, ok := datalabMIMETypes[strings.ToLower(mimeType)]; !ok {
		return newProviderError(datalabName, ErrValidation, "unsupported MIME type %q", mimeType)
	}
	return nil
}

type datalabSubmitResponse struct {
	Success         bool   `json:"success"`
	Error           string `json:"error"`
	RequestID       string `json:"request_id"`
	RequestCheckURL string `json:"request_check_url"`
}

func (c *DatalabClient) Submit(ctx context.Context, file []byte, filename, mimeType string, opts Options) (JobHandle, error) {
	if err := c.Validate(len(file), mimeType); err != nil {
		return JobHandle{}, err
	}
	if len(opts.Languages) > maxLanguageHints {
		return JobHandle{}, newProviderError(datalabName, ErrValidation, "at most %d language hints allowed", maxLanguageHints)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := writeFilePart(w, "file", filename, mimeType, file); err != nil {
		return JobHandle{}, newProviderError(datalabName, ErrProcessing, "encode form: %v", err)
	}
	if len(opts.Languages) > 0 {
		if err := w.WriteField("langs", strings.Join(opts.Languages, ",")); err != nil {
			return JobHandle{}, newProviderError(datalabName, ErrProcessing, "encode form: %v", err)
		}
	}
	if opts.MaxPages > 0 {
		if err := w.WriteField("max_pages", strconv.Itoa(opts.MaxPages)); err != nil {
			return JobHandle{}, newProviderError(datalabName, ErrProcessing, "encode form: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		return JobHandle{}, newProviderError(datalabName, ErrProcessing, "encode form: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/ocr", &body)
	if err != nil {
		return JobHandle{}, newProviderError(datalabName, ErrProcessing, "build request: %v", err)
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)
	req.Header.Set("Content-Type", w.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return JobHandle{}, classifyTransportError(datalabName, ctx, err)
	}
	defer closeBody(resp.Body, c.logger)

	raw, _ := io.ReadAll(resp.Body)
	c.logger.Debug("ocr.submit",
		"provider", datalabName,
		"filename", filename,
		"bytes", len(file),
		"status", resp.StatusCode,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	var sr datalabSubmitResponse
	if decodeErr := json.Unmarshal(raw, &sr); decodeErr != nil && resp.StatusCode/100 == 2 {
		return JobHandle{}, newProviderError(datalabName, ErrProcessing, "decode submit response: %v", decodeErr)
	}
	if err := classifyStatus(datalabName, resp.StatusCode, sr.Error); err != nil {
		return JobHandle{}, err
	}
	if !sr.Success {
		return JobHandle{}, newProviderError(datalabName, ErrProcessing, "submission rejected: %s", orUnknown(sr.Error))
	}
	if sr.RequestCheckURL == "" {
		return JobHandle{}, newProviderError(datalabName, ErrProcessing, "no check URL in submit response")
	}
	return JobHandle{RequestID: sr.RequestID, CheckURL: sr.RequestCheckURL}, nil
}

type datalabPollResponse struct {
	Status    string `json:"status"`
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	PageCount int    `json:"page_count"`
	Pages     []struct {
		Page      int      `json:"page"`
		Languages []string `json:"languages"`
		TextLines []struct {
			Text       string      `json:"text"`
			Confidence float32     `json:"confidence"`
			BBox       []float64   `json:"bbox"`
			Polygon    [][]float64 `json:"polygon"`
		} `json:"text_lines"`
	} `json:"pages"`
}

// Poll performs one status check. The caller owns the wait schedule between
// calls.
func (c *DatalabClient) Poll(ctx context.Context, h JobHandle) (*RecognitionResult, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.CheckURL, nil)
	if err != nil {
		return nil, false, newProviderError(datalabName, ErrProcessing, "build poll request: %v", err)
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, classifyTransportError(datalabName, ctx, err)
	}
	defer closeBody(resp.Body, c.logger)

	if err := classifyStatus(datalabName, resp.StatusCode, ""); err != nil {
		return nil, false, err
	}

	var pr datalabPollResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, false, newProviderError(datalabName, ErrProcessing, "decode poll response: %v", err)
	}

	switch pr.Status {
	case "processing":
		return nil, false, nil
	case "complete":
		if !pr.Success {
			return nil, true, newProviderError(datalabName, ErrProcessing, "recognition failed: %s", orUnknown(pr.Error))
		}
		return c.normalize(&pr), true, nil
	default:
		return nil, true, newProviderError(datalabName, ErrProcessing, "unexpected status %q", pr.Status)
	}
}

// normalize maps Datalab's page/line schema onto the common shape, dropping
// empty lines.
func (c *DatalabClient) normalize(pr *datalabPollResponse) *RecognitionResult {
	pages := make([]Page, 0, len(pr.Pages))
	for _, p := range pr.Pages {
		lines := make([]TextLine, 0, len(p.TextLines))
		var texts []string
		for _, l := range p.TextLines {
			text := strings.TrimSpace(l.Text)
			if text == "" {
				continue
			}
			lines = append(lines, TextLine{
				Text:       text,
				Confidence: l.Confidence,
				BBox:       l.BBox,
				Polygon:    l.Polygon,
			})
			texts = append(texts, text)
		}
		number := p.Page
		if number == 0 {
			number = len(pages) + 1
		}
		pages = append(pages, Page{
			Number:            number,
			Text:              strings.Join(texts, "\n"),
			AverageConfidence: pageConfidence(lines),
			Lines:             lines,
			Languages:         p.Languages,
		})
	}
	return &RecognitionResult{
		Pages:             pages,
		FullText:          joinPageTexts(pages),
		PageCount:         pr.PageCount,
		AverageConfidence: overallConfidence(pages),
		Provider:          datalabName,
	}
}

// --- shared HTTP helpers ---

func classifyStatus(provider string, status int, apiError string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return newProviderError(provider, ErrAuthentication, "invalid API key")
	case status == http.StatusTooManyRequests:
		return newProviderError(provider, ErrRateLimit, "rate limit exceeded")
	case status >= 400:
		return newProviderError(provider, ErrProcessing, "HTTP %d: %s", status, orUnknown(apiError))
	}
	return nil
}

func classifyTransportError(provider string, ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return newProviderError(provider, ErrTimeout, "request cancelled: %v", ctx.Err())
	}
	return newProviderError(provider, ErrProcessing, "network error: %v", err)
}

func writeFilePart(w *multipart.Writer, field, filename, mimeType string, data []byte) error {
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	hdr.Set("Content-Type", mimeType)
	part, err := w.CreatePart(hdr)
	if err != nil {
		return err
	}
	_, err = part.Write(data)
	return err
}

func closeBody(body io.ReadCloser, logger *slog.Logger) {
	if err := body.Close(); err != nil {
		logger.Warn("ocr.response_body_close_error", "error", err)
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown error"
	}
	return s
}
