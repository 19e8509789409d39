package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS parse_audit (
	id           TEXT PRIMARY KEY,
	file_path    TEXT NOT NULL,
	doc_type     TEXT NOT NULL,
	state        TEXT NOT NULL,
	provider     TEXT NOT NULL DEFAULT '',
	confidence   REAL NOT NULL,
	flag         TEXT NOT NULL,
	flag_value   INTEGER NOT NULL,
	fields_json  TEXT NOT NULL DEFAULT '{}',
	details_json TEXT NOT NULL DEFAULT '{}',
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_parse_audit_created_at ON parse_audit (created_at);
`

// AuditEntry is one parse outcome kept locally for review and export.
type AuditEntry struct {
	ID          uuid.UUID
	FilePath    string
	DocType     string
	State       string
	Provider    string
	Confidence  float32
	Flag        string
	FlagValue   bool
	FieldsJSON  string
	DetailsJSON string
	CreatedAt   time.Time
}

// AuditStore is a local sqlite log of every parse the pipeline ran. The
// Postgres side only carries current flags; history lives here.
type AuditStore struct {
	db  *sql.DB
	log *slog.Logger
}

func OpenAudit(ctx context.Context, path string, log *slog.Logger) (*AuditStore, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit store: %w", err)
	}
	if _, err := db.ExecContext(ctx, auditSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init audit schema: %w", err)
	}
	log.Info("audit store ready", "path", path)
	return &AuditStore{db: db, log: log}, nil
}

func (s *AuditStore) Close() error {
	return s.db.Close()
}

func (s *AuditStore) Record(ctx context.Context, e *AuditEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	const query = `
		INSERT INTO parse_audit
			(id, file_path, doc_type, state, provider, confidence, flag, flag_value, fields_json, details_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	flagValue := 0
	if e.FlagValue {
		flagValue = 1
	}
	_, err := s.db.ExecContext(ctx, query,
		e.ID.String(), e.FilePath, e.DocType, e.State, e.Provider,
		e.Confidence, e.Flag, flagValue, e.FieldsJSON, e.DetailsJSON,
		e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		s.log.Error("audit.record.failed", "file", e.FilePath, "err", err)
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

// List returns entries inside the window, oldest first. Nil bounds are open.
func (s *AuditStore) List(ctx context.Context, from, to *time.Time) ([]AuditEntry, error) {
	query := `
		SELECT id, file_path, doc_type, state, provider, confidence, flag, flag_value, fields_json, details_json, created_at
		FROM parse_audit`
	var (
		clauses []string
		args    []any
	)
	if from != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, from.UTC().Format(time.RFC3339Nano))
	}
	if to != nil {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, to.UTC().Format(time.RFC3339Nano))
	}
	for i, c := range clauses {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var (
			e         AuditEntry
			id        string
			flagValue int
			createdAt string
		)
		if err := rows.Scan(&id, &e.FilePath, &e.DocType, &e.State, &e.Provider,
			&e.Confidence, &e.Flag, &flagValue, &e.FieldsJSON, &e.DetailsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("audit entry id: %w", err)
		}
		e.FlagValue = flagValue != 0
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("audit entry timestamp: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
