package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// flagColumns whitelists the business flags a parse may set. The values are
// the actual column names, so anything outside the map never reaches SQL.
var flagColumns = map[string]string{
	"cdl_verified":       "cdl_verified",
	"insurance_verified": "insurance_verified",
	"pod_completed":      "pod_completed",
	"ratecon_verified":   "ratecon_verified",
	"agreement_signed":   "agreement_signed",
	"invoice_verified":   "invoice_verified",
}

// LoadFlags is the verification state of one load.
type LoadFlags struct {
	LoadID            uuid.UUID
	CDLVerified       bool
	InsuranceVerified bool
	PODCompleted      bool
	RateConVerified   bool
	AgreementSigned   bool
	InvoiceVerified   bool
	UpdatedAt         time.Time
}

type FlagRepository interface {
	// SetFlag records a gate decision for a load, creating the row on first
	// touch.
	SetFlag(ctx context.Context, loadID uuid.UUID, flag string, value bool) error
	GetFlags(ctx context.Context, loadID uuid.UUID) (*LoadFlags, error)
}

type flagRepo struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewFlagRepository(pool *pgxpool.Pool, log *slog.Logger) FlagRepository {
	if log == nil {
		log = slog.Default()
	}
	return &flagRepo{pool: pool, log: log}
}

func (r *flagRepo) SetFlag(ctx context.Context, loadID uuid.UUID, flag string, value bool) error {
	column, ok := flagColumns[flag]
	if !ok {
		return fmt.Errorf("unknown flag %q", flag)
	}

	query := fmt.Sprintf(`
		INSERT INTO load_flags (load_id, %[1]s, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (load_id)
		DO UPDATE SET %[1]s = EXCLUDED.%[1]s, updated_at = now()`, column)

	if _, err := r.pool.Exec(ctx, query, loadID, value); err != nil {
		r.log.Error("flags.set.failed", "load_id", loadID, "flag", flag, "err", err)
		return fmt.Errorf("set flag %s: %w", flag, err)
	}
	r.log.Info("flags.set", "load_id", loadID, "flag", flag, "value", value)
	return nil
}

func (r *flagRepo) GetFlags(ctx context.Context, loadID uuid.UUID) (*LoadFlags, error) {
	const query = `
		SELECT load_id, cdl_verified, insurance_verified, pod_completed,
		       ratecon_verified, agreement_signed, invoice_verified, updated_at
		FROM load_flags
		WHERE load_id = $1`

	var f LoadFlags
	err := r.pool.QueryRow(ctx, query, loadID).Scan(
		&f.LoadID,
		&f.CDLVerified,
		&f.InsuranceVerified,
		&f.PODCompleted,
		&f.RateConVerified,
		&f.AgreementSigned,
		&f.InvoiceVerified,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get flags for %s: %w", loadID, err)
	}
	return &f, nil
}
