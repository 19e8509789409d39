package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/freight-docs/constants"
	"github.com/joseph-ayodele/freight-docs/internal/common"
	"github.com/joseph-ayodele/freight-docs/internal/docparse"
	"github.com/joseph-ayodele/freight-docs/internal/ocr"
	"github.com/joseph-ayodele/freight-docs/internal/pipeline"
)

// parsedoc runs one document through recognition and parsing, printing the
// outcome as JSON. Plain-text input skips OCR entirely, which makes regex and
// scoring changes cheap to try against saved extracts.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 3 {
		logger.Error("usage", "cmd", "parsedoc <doc-type> <file>")
		os.Exit(2)
	}
	docType, ok := constants.CanonicalDocumentType(os.Args[1])
	if !ok {
		logger.Error("unknown document type", "arg", os.Args[1])
		os.Exit(2)
	}
	path := os.Args[2]

	start := time.Now()

	registry := docparse.NewRegistry(nil, logger)
	parser, ok := registry.For(docType)
	if !ok {
		logger.Error("no structural parser for type", "doc_type", docType)
		os.Exit(2)
	}

	var outcome docparse.Outcome
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Error("read file", "path", path, "error", err)
			os.Exit(1)
		}
		outcome = parser.Parse(string(data))
	} else {
		cfg := common.LoadConfig()
		if err := cfg.Validate(); err != nil {
			logger.Error("config invalid", "error", err)
			os.Exit(1)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		datalab := ocr.NewDatalabClient(ocr.DatalabConfig{
			BaseURL: cfg.OCR.DatalabURL,
			APIKey:  cfg.OCR.DatalabAPIKey,
			Timeout: cfg.OCR.RequestTimeout,
		}, logger)
		marker := ocr.NewMarkerClient(ocr.MarkerConfig{
			BaseURL:          cfg.OCR.MarkerURL,
			APIKey:           cfg.OCR.DatalabAPIKey,
			Timeout:          cfg.OCR.RequestTimeout,
			HeuristicFloor:   cfg.OCR.HeuristicFloor,
			HeuristicCeiling: cfg.OCR.HeuristicCeiling,
		}, logger)
		recognizer := ocr.NewRecognizer([]ocr.Provider{datalab, marker}, ocr.RecognizerConfig{
			ConfidenceThreshold:     cfg.OCR.ConfidenceThreshold,
			EnableFallback:          cfg.OCR.EnableFallback,
			PreferStructuredForDocs: cfg.OCR.PreferMarkerForDocs,
			MaxPollAttempts:         cfg.OCR.MaxPollAttempts,
			PollInterval:            cfg.OCR.PollInterval,
			PollIntervalCap:         cfg.OCR.PollIntervalCap,
		}, logger)

		processor := pipeline.NewProcessor(recognizer, registry, nil, nil, logger)
		result, err := processor.ProcessFile(ctx, pipeline.Request{Path: path, DocType: docType})
		if err != nil {
			logger.Error("parse failed", "path", path, "error", err)
			os.Exit(1)
		}
		if result.Outcome == nil {
			logger.Error("no outcome produced", "path", path, "state", result.State)
			os.Exit(1)
		}
		outcome = *result.Outcome
	}

	out, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		logger.Error("encode outcome", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	logger.Info("done",
		"doc_type", docType,
		"confidence", outcome.Confidence,
		"flag", outcome.Flag,
		"flag_value", outcome.FlagValue,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
