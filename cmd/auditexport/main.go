package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/freight-docs/internal/common"
	"github.com/joseph-ayodele/freight-docs/internal/export"
	"github.com/joseph-ayodele/freight-docs/internal/repository"
)

// auditexport writes the parse audit as an XLSX report.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	fromArg := flag.String("from", "", "start date, YYYY-MM-DD (inclusive)")
	toArg := flag.String("to", "", "end date, YYYY-MM-DD (inclusive)")
	outArg := flag.String("out", "parse-audit.xlsx", "output file")
	flag.Parse()

	parseDay := func(name, v string) *time.Time {
		if v == "" {
			return nil
		}
		d, err := time.ParseInLocation("2006-01-02", v, time.UTC)
		if err != nil {
			logger.Error("invalid date", "flag", name, "value", v, "error", err)
			os.Exit(2)
		}
		return &d
	}
	from := parseDay("from", *fromArg)
	to := parseDay("to", *toArg)

	cfg := common.LoadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	audit, err := repository.OpenAudit(ctx, cfg.Audit.Path, logger)
	if err != nil {
		logger.Error("open audit store", "path", cfg.Audit.Path, "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := audit.Close(); cerr != nil {
			logger.Error("close audit store", "error", cerr)
		}
	}()

	svc := export.NewService(audit, logger)
	data, err := svc.ExportAuditXLSX(ctx, from, to)
	if err != nil {
		logger.Error("export failed", "error", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*outArg, data, 0o644); err != nil {
		logger.Error("write output", "path", *outArg, "error", err)
		os.Exit(1)
	}
	logger.Info("written", "path", *outArg, "bytes", len(data))
}
