package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lfreitas-dev/nfcom-analyzer/internal/core/domain"
)

const insertColumns = `source_file, branch_code, invoice_number, issue_timestamp, item_id,
	cfop_code, classification_code, product_value, tax_base,
	discount_value, other_value, invoice_total, pis_cst,
	cofins_cst, pis_tax_base, cofins_tax_base, icms_value,
	icms_code, return_indicator, no_cst_indicator`

const insertColumnCount = 20

// ItemStore is the wide invoice_items table inside one dataset file.
type ItemStore struct {
	db *sql.DB
}

func NewItemStore(db *sql.DB) *ItemStore {
	return &ItemStore{db: db}
}

func sqlOpen(path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	// DuckDB holds a single writer per file; keep the pool to one
	// connection so concurrent callers queue instead of failing.
	db.SetMaxOpenConns(1)
	return db, nil
}

func (s *ItemStore) EnsureSchema(ctx context.Context) error {
	const query = `
CREATE TABLE IF NOT EXISTS invoice_items (
	source_file VARCHAR NOT NULL,
	branch_code VARCHAR,
	invoice_number INTEGER NOT NULL,
	issue_timestamp VARCHAR NOT NULL,
	item_id VARCHAR,
	cfop_code VARCHAR NOT NULL,
	classification_code VARCHAR,
	product_value DOUBLE,
	tax_base DOUBLE,
	discount_value DOUBLE,
	other_value DOUBLE,
	invoice_total DOUBLE,
	pis_cst VARCHAR,
	cofins_cst VARCHAR,
	pis_tax_base DOUBLE,
	cofins_tax_base DOUBLE,
	icms_value DOUBLE,
	icms_code VARCHAR NOT NULL,
	return_indicator VARCHAR NOT NULL,
	no_cst_indicator VARCHAR NOT NULL
)`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create invoice_items table: %w", err)
	}
	return nil
}

func (s *ItemStore) CountItems(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoice_items`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count invoice items: %w", err)
	}
	return count, nil
}

// InsertBatch writes the whole batch in one transaction as a single
// multi-row statement.
func (s *ItemStore) InsertBatch(ctx context.Context, records []domain.LineItemRecord) error {
	if len(records) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(records))
	args := make([]any, 0, len(records)*insertColumnCount)
	row := "(" + strings.TrimSuffix(strings.Repeat("?, ", insertColumnCount), ", ") + ")"
	for _, rec := range records {
		placeholders = append(placeholders, row)
		args = append(args,
			rec.SourceFile, rec.BranchCode, rec.InvoiceNumber, rec.IssueTimestamp, rec.ItemID,
			rec.CFOPCode, rec.ClassificationCode, rec.ProductValue, rec.TaxBase,
			rec.DiscountValue, rec.OtherValue, rec.InvoiceTotal, rec.PISCST,
			rec.COFINSCST, rec.PISTaxBase, rec.COFINSTaxBase, rec.ICMSValue,
			rec.ICMSCode, rec.ReturnIndicator, rec.NoCSTIndicator,
		)
	}

	query := fmt.Sprintf("INSERT INTO invoice_items (%s) VALUES %s",
		insertColumns, strings.Join(placeholders, ", "))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %d invoice items: %w", len(records), err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert tx: %w", err)
	}
	return nil
}

func (s *ItemStore) CreateIndexes(ctx context.Context) error {
	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_items_invoice_number ON invoice_items(invoice_number)`,
		`CREATE INDEX IF NOT EXISTS idx_items_issue_timestamp ON invoice_items(issue_timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_items_cfop_code ON invoice_items(cfop_code)`,
		`CREATE INDEX IF NOT EXISTS idx_items_source_file ON invoice_items(source_file)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// Query executes arbitrary read SQL and returns the full result with
// column order preserved. Byte columns are rendered as strings so the
// result serializes cleanly.
func (s *ItemStore) Query(ctx context.Context, sqlText string) (*domain.QueryResult, error) {
	rows, err := s.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "execute query", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read result columns: %w", err)
	}

	result := &domain.QueryResult{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate result rows: %w", err)
	}
	return result, nil
}

func (s *ItemStore) Summary(ctx context.Context) (*domain.DatasetSummary, error) {
	const query = `
SELECT COUNT(*),
	COUNT(DISTINCT invoice_number),
	SUM(product_value)
FROM invoice_items`

	var summary domain.DatasetSummary
	var total sql.NullFloat64
	err := s.db.QueryRowContext(ctx, query).Scan(
		&summary.RecordCount, &summary.DistinctInvoices, &total,
	)
	if err != nil {
		return nil, fmt.Errorf("summarize dataset: %w", err)
	}
	if total.Valid {
		summary.TotalProductValue = &total.Float64
	}
	return &summary, nil
}

func (s *ItemStore) Close() error {
	return s.db.Close()
}
