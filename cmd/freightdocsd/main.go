package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/freight-docs/internal/async"
	"github.com/joseph-ayodele/freight-docs/internal/common"
	"github.com/joseph-ayodele/freight-docs/internal/docparse"
	"github.com/joseph-ayodele/freight-docs/internal/ingest"
	"github.com/joseph-ayodele/freight-docs/internal/ocr"
	"github.com/joseph-ayodele/freight-docs/internal/pipeline"
	"github.com/joseph-ayodele/freight-docs/internal/repository"
	"github.com/joseph-ayodele/freight-docs/internal/server"
)

var uuidRe = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// loadIDFromFilename picks a load UUID out of the file name, supporting the
// dispatch convention of naming scans like "ratecon_<load-id>.pdf". Returns
// uuid.Nil when the name carries no UUID.
func loadIDFromFilename(name string) uuid.UUID {
	m := uuidRe.FindString(name)
	if m == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(m)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("config invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load flags need Postgres; everything else runs without it, so a
	// missing DB_URL degrades to parse + audit only.
	var pool *pgxpool.Pool
	var flags pipeline.FlagWriter
	if cfg.Database.DSN != "" {
		var err error
		pool, err = repository.Open(ctx, repository.Config{
			DSN:              cfg.Database.DSN,
			MaxConns:         cfg.Database.MaxConns,
			MinConns:         cfg.Database.MinConns,
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
			DialTimeout:      cfg.Database.DialTimeout,
			StatementTimeout: cfg.Database.StatementTimeout,
		}, logger)
		if err != nil {
			logger.Error("open db", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := repository.HealthCheck(ctx, pool, cfg.Database.DialTimeout, logger); err != nil {
			logger.Error("db health failed", "error", err)
			os.Exit(1)
		}
		flags = repository.NewFlagRepository(pool, logger)
	} else {
		logger.Warn("DB_URL not set; load flags disabled")
	}

	audit, err := repository.OpenAudit(ctx, cfg.Audit.Path, logger)
	if err != nil {
		logger.Error("open audit store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := audit.Close(); cerr != nil {
			logger.Error("close audit store", "error", cerr)
		}
	}()

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

	processor := pipeline.NewProcessor(
		recognizer,
		docparse.NewRegistry(nil, logger),
		flags,
		audit,
		logger,
	)

	if stats, err := ingest.ScanInbox(cfg.Ingest.InboxDir, nil); err != nil {
		logger.Error("inbox scan failed", "root", cfg.Ingest.InboxDir, "error", err)
		os.Exit(1)
	} else {
		logger.Info("inbox.backlog",
			"matched", stats.Matched,
			"untyped", stats.Untyped,
			"skipped", stats.Skipped,
		)
	}

	events, watchErrs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Root:        cfg.Ingest.InboxDir,
		InitialScan: true,
		SettleTime:  cfg.Ingest.SettleTime,
	}, logger)
	if err != nil {
		logger.Error("start watcher", "error", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	go func() {
		opsCfg := server.OpsConfig{Addr: ":" + port}
		if pool != nil {
			opsCfg.Check = func(ctx context.Context) error {
				return repository.HealthCheck(ctx, pool, cfg.Database.DialTimeout, logger)
			}
		}
		if err := server.ServeOps(ctx, opsCfg, logger); err != nil {
			logger.Error("ops server failed", "error", err)
			stop()
		}
	}()

	workers := async.NewPool(cfg.Ingest.Workers, 128, logger)

	statsTicker := time.NewTicker(cfg.Ingest.StatsInterval)
	defer statsTicker.Stop()

	logger.Info("freightdocsd started", "inbox", cfg.Ingest.InboxDir, "workers", cfg.Ingest.Workers)

	process := func(path string) {
		docType, known := ingest.DocTypeForPath(cfg.Ingest.InboxDir, path)
		if !known {
			logger.Warn("inbox.untyped", "path", path)
			return
		}
		task := func(taskCtx context.Context) {
			reqCtx := common.WithRequestID(taskCtx, uuid.NewString())
			loadID := loadIDFromFilename(path)
			if loadID != uuid.Nil {
				reqCtx = common.WithLoadID(reqCtx, loadID.String())
			}

			result, err := processor.ProcessFile(reqCtx, pipeline.Request{
				LoadID:  loadID,
				Path:    path,
				DocType: docType,
			})
			if err != nil {
				logger.Error("pipeline.failed", "path", path, "error", err)
				return
			}
			logger.Info("pipeline.done",
				"path", path,
				"doc_type", docType,
				"state", result.State,
			)
		}
		if err := workers.Enqueue(ctx, task); err != nil {
			logger.Warn("pipeline.not_enqueued", "path", path, "error", err)
		}
	}

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err, ok := <-watchErrs:
			if ok && err != nil {
				logger.Error("watch.error", "error", err)
			}
		case <-statsTicker.C:
			logger.Info("ocr.stats", "stats", recognizer.Stats())
		case path, ok := <-events:
			if !ok {
				break loop
			}
			process(path)
		}
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	workers.Shutdown(drainCtx)
	logger.Info("shut down", "stats", recognizer.Stats())
}
