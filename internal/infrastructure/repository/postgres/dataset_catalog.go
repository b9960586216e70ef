package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/lfreitas-dev/nfcom-analyzer/internal/core/domain"
)

// DatasetCatalog persists dataset lifecycle state in Postgres. The
// status column carries the explicit run-completion marker the
// idempotency gate relies on.
type DatasetCatalog struct {
	db *sql.DB
}

func NewDatasetCatalog(db *sql.DB) *DatasetCatalog {
	return &DatasetCatalog{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (c *DatasetCatalog) EnsureSchema(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS datasets (
	fingerprint TEXT PRIMARY KEY,
	file_count INTEGER NOT NULL,
	total_bytes BIGINT NOT NULL,
	status TEXT NOT NULL,
	record_count BIGINT NOT NULL DEFAULT 0,
	invoices_skipped BIGINT NOT NULL DEFAULT 0,
	items_skipped BIGINT NOT NULL DEFAULT 0,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_datasets_status ON datasets(status);
CREATE INDEX IF NOT EXISTS idx_datasets_created_at ON datasets(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (c *DatasetCatalog) Create(ctx context.Context, ds *domain.Dataset) error {
	_, err := c.db.ExecContext(ctx, `
INSERT INTO datasets (
	fingerprint, file_count, total_bytes, status, record_count, invoices_skipped, items_skipped, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		ds.Fingerprint, ds.FileCount, ds.TotalBytes, string(ds.Status),
		ds.RecordCount, ds.InvoicesSkipped, ds.ItemsSkipped, nullIfEmpty(ds.Error),
		ds.CreatedAt, ds.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert dataset: %w", err)
	}
	return nil
}

func (c *DatasetCatalog) GetByFingerprint(ctx context.Context, fingerprint string) (*domain.Dataset, error) {
	row := c.db.QueryRowContext(ctx, `
SELECT fingerprint, file_count, total_bytes, status, record_count, invoices_skipped, items_skipped, error_message, created_at, updated_at
FROM datasets
WHERE fingerprint = $1
`, fingerprint)

	var ds domain.Dataset
	var status string
	var errMessage sql.NullString

	err := row.Scan(
		&ds.Fingerprint, &ds.FileCount, &ds.TotalBytes, &status,
		&ds.RecordCount, &ds.InvoicesSkipped, &ds.ItemsSkipped, &errMessage,
		&ds.CreatedAt, &ds.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDatasetNotFound, "get dataset", fmt.Errorf("fingerprint %s", fingerprint))
		}
		return nil, fmt.Errorf("scan dataset: %w", err)
	}

	ds.Status = domain.DatasetStatus(status)
	ds.Error = errMessage.String
	return &ds, nil
}

func (c *DatasetCatalog) MarkLoaded(ctx context.Context, fingerprint string, stats domain.ExtractStats) error {
	result, err := c.db.ExecContext(ctx, `
UPDATE datasets
SET status = $2, record_count = $3, invoices_skipped = $4, items_skipped = $5, error_message = NULL, updated_at = $6
WHERE fingerprint = $1
`, fingerprint, string(domain.StatusLoaded), stats.Records, stats.InvoicesSkipped, stats.ItemsSkipped, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark dataset loaded: %w", err)
	}
	return requireRow(result, fingerprint)
}

func (c *DatasetCatalog) MarkFailed(ctx context.Context, fingerprint, errMessage string) error {
	result, err := c.db.ExecContext(ctx, `
UPDATE datasets
SET status = $2, error_message = $3, updated_at = $4
WHERE fingerprint = $1
`, fingerprint, string(domain.StatusFailed), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark dataset failed: %w", err)
	}
	return requireRow(result, fingerprint)
}

func (c *DatasetCatalog) Delete(ctx context.Context, fingerprint string) error {
	result, err := c.db.ExecContext(ctx, `DELETE FROM datasets WHERE fingerprint = $1`, fingerprint)
	if err != nil {
		return fmt.Errorf("delete dataset: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete dataset rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDatasetNotFound, "delete dataset", fmt.Errorf("fingerprint %s", fingerprint))
	}
	return nil
}

func requireRow(result sql.Result, fingerprint string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDatasetNotFound, "update dataset", fmt.Errorf("fingerprint %s", fingerprint))
	}
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
