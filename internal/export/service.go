package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/freight-docs/internal/repository"
)

// AuditLister is the slice of the audit store the exporter needs.
type AuditLister interface {
	List(ctx context.Context, from, to *time.Time) ([]repository.AuditEntry, error)
}

// Service produces XLSX reports from the local parse audit.
type Service struct {
	audit  AuditLister
	logger *slog.Logger
}

func NewService(audit AuditLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{audit: audit, logger: logger}
}

// ExportAuditXLSX returns an XLSX workbook for the given date window.
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> the full audit history.
func (s *Service) ExportAuditXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	var fromDate, toDate *time.Time
	if from != nil {
		f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
		fromDate = &f
	}
	if to != nil {
		// inclusive: extend to the end of the day
		t := time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, 0, time.UTC)
		toDate = &t
	}
	if fromDate != nil && toDate == nil {
		today := time.Now().UTC()
		t := time.Date(today.Year(), today.Month(), today.Day(), 23, 59, 59, 0, time.UTC)
		toDate = &t
	}

	entries, err := s.audit.List(ctx, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Parses"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Parsed At",
		"Document",
		"Type",
		"State",
		"Provider",
		"Confidence",
		"Flag",
		"Flag Set",
		"Fields",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, e := range entries {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, e.CreatedAt.UTC().Format("2006-01-02 15:04"))
		write(2, e.FilePath)
		write(3, e.DocType)
		write(4, e.State)
		write(5, e.Provider)
		write(6, fmt.Sprintf("%.2f", e.Confidence))
		write(7, e.Flag)
		if e.FlagValue {
			write(8, "yes")
		} else {
			write(8, "no")
		}
		write(9, truncate(e.FieldsJSON, 200))

		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 18)
	_ = f.SetColWidth(sheet, "B", "B", 48)
	_ = f.SetColWidth(sheet, "C", "E", 14)
	_ = f.SetColWidth(sheet, "F", "F", 11)
	_ = f.SetColWidth(sheet, "G", "H", 16)
	_ = f.SetColWidth(sheet, "I", "I", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(entries),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 1 || len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
