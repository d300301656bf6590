package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oks-citadel/apply-sla/model"
)

// archiveSchema holds the durable mirror of the four entity sets. Indexes
// follow the read paths: lookups by contract and user, filters by type,
// and the sweep's end-date selection predicate.
const archiveSchema = `
CREATE TABLE IF NOT EXISTS sla_contracts (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	tier TEXT NOT NULL,
	status TEXT NOT NULL,
	end_date TIMESTAMPTZ NOT NULL,
	extended_end_date TIMESTAMPTZ,
	body JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_sla_contracts_user ON sla_contracts(user_id);
CREATE INDEX IF NOT EXISTS idx_sla_contracts_status_end ON sla_contracts(status, end_date);

CREATE TABLE IF NOT EXISTS sla_progress_events (
	id TEXT PRIMARY KEY,
	contract_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	body JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	archived_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_sla_events_contract ON sla_progress_events(contract_id);
CREATE INDEX IF NOT EXISTS idx_sla_events_user ON sla_progress_events(user_id);
CREATE INDEX IF NOT EXISTS idx_sla_events_type ON sla_progress_events(event_type);

CREATE TABLE IF NOT EXISTS sla_violations (
	id TEXT PRIMARY KEY,
	contract_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	violation_type TEXT NOT NULL,
	resolved BOOLEAN NOT NULL,
	body JSONB NOT NULL,
	detected_at TIMESTAMPTZ NOT NULL,
	archived_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_sla_violations_contract ON sla_violations(contract_id);
CREATE INDEX IF NOT EXISTS idx_sla_violations_type ON sla_violations(violation_type);

CREATE TABLE IF NOT EXISTS sla_remedies (
	id TEXT PRIMARY KEY,
	violation_id TEXT NOT NULL,
	contract_id TEXT NOT NULL,
	remedy_type TEXT NOT NULL,
	status TEXT NOT NULL,
	body JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_sla_remedies_violation ON sla_remedies(violation_id);
CREATE INDEX IF NOT EXISTS idx_sla_remedies_contract ON sla_remedies(contract_id);
`

// PostgresArchive implements Archiver over pgx. Writes are upserts keyed by
// entity id, so re-archiving after a retry or re-drive is harmless.
type PostgresArchive struct {
	pool *pgxpool.Pool
}

func NewPostgresArchive(ctx context.Context, dsn string) (*PostgresArchive, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to archive database: %w", err)
	}
	return &PostgresArchive{pool: pool}, nil
}

// EnsureSchema creates the archive tables and indexes.
func (a *PostgresArchive) EnsureSchema(ctx context.Context) error {
	if _, err := a.pool.Exec(ctx, archiveSchema); err != nil {
		return fmt.Errorf("failed to ensure archive schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (a *PostgresArchive) Close() {
	a.pool.Close()
}

func (a *PostgresArchive) ArchiveContract(ctx context.Context, c *model.SLAContract) error {
	body, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = a.pool.Exec(ctx, `
INSERT INTO sla_contracts (id, user_id, tier, status, end_date, extended_end_date, body, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,now())
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	end_date = EXCLUDED.end_date,
	extended_end_date = EXCLUDED.extended_end_date,
	body = EXCLUDED.body,
	updated_at = now()
`, c.ID, c.UserID, string(c.Tier), string(c.Status), c.EndDate, c.ExtendedEndDate, body)
	return err
}

func (a *PostgresArchive) ArchiveEvent(ctx context.Context, e *model.SLAProgressEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = a.pool.Exec(ctx, `
INSERT INTO sla_progress_events (id, contract_id, user_id, event_type, body, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body
`, e.ID, e.ContractID, e.UserID, string(e.Type), body, e.CreatedAt)
	return err
}

func (a *PostgresArchive) ArchiveViolation(ctx context.Context, v *model.SLAViolation) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = a.pool.Exec(ctx, `
INSERT INTO sla_violations (id, contract_id, user_id, violation_type, resolved, body, detected_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET resolved = EXCLUDED.resolved, body = EXCLUDED.body
`, v.ID, v.ContractID, v.UserID, string(v.Type), v.Resolved, body, v.DetectedAt)
	return err
}

func (a *PostgresArchive) ArchiveRemedy(ctx context.Context, r *model.SLARemedy) error {
	body, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = a.pool.Exec(ctx, `
INSERT INTO sla_remedies (id, violation_id, contract_id, remedy_type, status, body, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,now())
ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, body = EXCLUDED.body, updated_at = now()
`, r.ID, r.ViolationID, r.ContractID, string(r.Type), string(r.Status), body)
	return err
}
