package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	markerName        = "marker"
	markerMaxFileSize = 200 << 20
)

// Marker accepts everything Datalab does plus office/document formats.
var markerMIMETypes = func() map[string]struct{} {
	m := map[string]struct{}{
		"application/vnd.ms-excel": {},
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         {},
		"application/vnd.oasis.opendocument.spreadsheet":                            {},
		"application/msword":                                                        {},
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   {},
		"application/vnd.oasis.opendocument.text":                                   {},
		"application/vnd.ms-powerpoint":                                             {},
		"application/vnd.openxmlformats-officedocument.presentationml.presentation": {},
		"application/vnd.oasis.opendocument.presentation":                           {},
		"text/html":            {},
		"application/epub+zip": {},
	}
	for k := range datalabMIMETypes {
		m[k] = struct{}{}
	}
	return m
}()

var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

// MarkerConfig configures the Marker structure-extraction client.
type MarkerConfig struct {
	BaseURL string
	APIKey  string // same key as Datalab; all Datalab endpoints share credentials
	Timeout time.Duration

	// Marker reports no per-line confidence. Estimated confidence from block
	// completeness is clamped to [HeuristicFloor, HeuristicCeiling]; the
	// constants are empirical and intentionally configurable.
	HeuristicFloor   float32
	HeuristicCeiling float32
}

// MarkerClient talks to the Marker document-conversion API, normalizing its
// block tree into the common line-OCR shape so failover is seamless.
type MarkerClient struct {
	cfg        MarkerConfig
	httpClient *http.Client
	logger     *slog.Logger
}

func NewMarkerClient(cfg MarkerConfig, logger *slog.Logger) *MarkerClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.datalab.to/api/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HeuristicFloor <= 0 {
		cfg.HeuristicFloor = 0.5
	}
	if cfg.HeuristicCeiling <= 0 || cfg.HeuristicCeiling > 1 {
		cfg.HeuristicCeiling = 0.95
	}
	return &MarkerClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

func (c *MarkerClient) Name() string { return markerName }

func (c *MarkerClient) Validate(size int, mimeType string) error {
	if size <= 0 {
		return newProviderError(markerName, ErrValidation, "file is empty")
	}
	if size > markerMaxFileSize {
		return newProviderError(markerName, ErrValidation, "file size %d exceeds maximum %d", size, markerMaxFileSize)
	}
	if _, ok := markerMIMETypes[strings.ToLower(mimeType)]; !ok {
		return newProviderError(markerName, ErrValidation, "unsupported MIME type %q", mimeType)
	}
	return nil
}

func (c *MarkerClient) Submit(ctx context.Context, file []byte, filename, mimeType string, opts Options) (JobHandle, error) {
	if err := c.Validate(len(file), mimeType); err != nil {
		return JobHandle{}, err
	}
	if len(opts.Languages) > maxLanguageHints {
		return JobHandle{}, newProviderError(markerName, ErrValidation, "at most %d language hints allowed", maxLanguageHints)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := writeFilePart(w, "file", filename, mimeType, file); err != nil {
		return JobHandle{}, newProviderError(markerName, ErrProcessing, "encode form: %v", err)
	}
	fields := map[string]string{
		// JSON output keeps the block tree parseable for normalization.
		"output_format": "json",
	}
	if opts.ForceOCR {
		fields["force_ocr"] = "true"
	}
	if len(opts.Languages) > 0 {
		fields["langs"] = strings.Join(opts.Languages, ",")
	}
	if opts.MaxPages > 0 {
		fields["max_pages"] = strconv.Itoa(opts.MaxPages)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return JobHandle{}, newProviderError(markerName, ErrProcessing, "encode form: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		return JobHandle{}, newProviderError(markerName, ErrProcessing, "encode form: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/marker", &body)
	if err != nil {
		return JobHandle{}, newProviderError(markerName, ErrProcessing, "build request: %v", err)
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)
	req.Header.Set("Content-Type", w.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return JobHandle{}, classifyTransportError(markerName, ctx, err)
	}
	defer closeBody(resp.Body, c.logger)

	var sr datalabSubmitResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&sr)
	c.logger.Debug("ocr.submit",
		"provider", markerName,
		"filename", filename,
		"bytes", len(file),
		"force_ocr", opts.ForceOCR,
		"status", resp.StatusCode,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if err := classifyStatus(markerName, resp.StatusCode, sr.Error); err != nil {
		return JobHandle{}, err
	}
	if decodeErr != nil {
		return JobHandle{}, newProviderError(markerName, ErrProcessing, "decode submit response: %v", decodeErr)
	}
	if !sr.Success {
		return JobHandle{}, newProviderError(markerName, ErrProcessing, "submission rejected: %s", orUnknown(sr.Error))
	}
	if sr.RequestCheckURL == "" {
		return JobHandle{}, newProviderError(markerName, ErrProcessing, "no check URL in submit response")
	}
	return JobHandle{RequestID: sr.RequestID, CheckURL: sr.RequestCheckURL}, nil
}

type markerBlock struct {
	BlockType string        `json:"block_type"`
	HTML      string        `json:"html"`
	BBox      []float64     `json:"bbox"`
	Polygon   [][]float64   `json:"polygon"`
	Children  []markerBlock `json:"children"`
}

type markerPollResponse struct {
	Status    string      `json:"status"`
	Success   bool        `json:"success"`
	Error     string      `json:"error"`
	PageCount int         `json:"page_count"`
	JSON      markerBlock `json:"json"`
}

func (c *MarkerClient) Poll(ctx context.Context, h JobHandle) (*RecognitionResult, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.CheckURL, nil)
	if err != nil {
		return nil, false, newProviderError(markerName, ErrProcessing, "build poll request: %v", err)
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, classifyTransportError(markerName, ctx, err)
	}
	defer closeBody(resp.Body, c.logger)

	if err := classifyStatus(markerName, resp.StatusCode, ""); err != nil {
		return nil, false, err
	}

	var pr markerPollResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, false, newProviderError(markerName, ErrProcessing, "decode poll response: %v", err)
	}

	switch pr.Status {
	case "processing":
		return nil, false, nil
	case "complete":
		if !pr.Success {
			return nil, true, newProviderError(markerName, ErrProcessing, "recognition failed: %s", orUnknown(pr.Error))
		}
		return c.normalize(&pr), true, nil
	default:
		return nil, true, newProviderError(markerName, ErrProcessing, "unexpected status %q", pr.Status)
	}
}

// normalize flattens the Marker block tree into pages of text lines. Line
// confidence is assigned per block type since Marker reports none.
func (c *MarkerClient) normalize(pr *markerPollResponse) *RecognitionResult {
	var pages []Page
	for _, child := range pr.JSON.Children {
		if child.BlockType != "Page" {
			continue
		}
		page := c.normalizePage(&child, len(pages)+1)
		pages = append(pages, page)
	}
	return &RecognitionResult{
		Pages:             pages,
		FullText:          joinPageTexts(pages),
		PageCount:         len(pages),
		AverageConfidence: c.estimateConfidence(&pr.JSON),
		Provider:          markerName,
	}
}

func (c *MarkerClient) normalizePage(block *markerBlock, number int) Page {
	var lines []TextLine
	var texts []string
	for _, child := range block.Children {
		line, ok := blockToLine(&child)
		if !ok {
			continue
		}
		lines = append(lines, line)
		texts = append(texts, line.Text)
	}
	return Page{
		Number:            number,
		Text:              strings.Join(texts, "\n"),
		AverageConfidence: pageConfidence(lines),
		Lines:             lines,
	}
}

func blockToLine(block *markerBlock) (TextLine, bool) {
	text := strings.TrimSpace(htmlTagRe.ReplaceAllString(block.HTML, ""))
	if text == "" || len(block.BBox) == 0 {
		return TextLine{}, false
	}

	polygon := block.Polygon
	if len(polygon) < 4 && len(block.BBox) == 4 {
		x1, y1, x2, y2 := block.BBox[0], block.BBox[1], block.BBox[2], block.BBox[3]
		polygon = [][]float64{{x1, y1}, {x2, y1}, {x2, y2}, {x1, y2}}
	}

	var confidence float32 = 0.9
	switch {
	case block.BlockType == "SectionHeader" || block.BlockType == "Title":
		confidence = 0.95
	case len(text) < 3:
		confidence = 0.7
	}

	return TextLine{
		Text:       text,
		Confidence: confidence,
		BBox:       block.BBox,
		Polygon:    polygon,
	}, true
}

// estimateConfidence derives a quality signal from extraction completeness:
// the ratio of blocks that yielded usable text to total blocks, mapped onto
// 0.7..0.95 and clamped to the configured plausible range.
func (c *MarkerClient) estimateConfidence(root *markerBlock) float32 {
	var confidence float32 = 0.8
	if len(root.Children) > 0 {
		confidence += 0.1
		var textBlocks, totalBlocks int
		for _, child := range root.Children {
			if child.BlockType != "Page" {
				continue
			}
			for _, block := range child.Children {
				totalBlocks++
				text := strings.TrimSpace(htmlTagRe.ReplaceAllString(block.HTML, ""))
				if len(block.BBox) > 0 && len(text) > 2 {
					textBlocks++
				}
			}
		}
		if totalBlocks > 0 {
			confidence = 0.7 + float32(textBlocks)/float32(totalBlocks)*0.25
		}
	}
	if confidence > c.cfg.HeuristicCeiling {
		confidence = c.cfg.HeuristicCeiling
	}
	if confidence < c.cfg.HeuristicFloor {
		confidence = c.cfg.HeuristicFloor
	}
	return confidence
}
