package ports

import (
	"context"
	"io"

	"github.com/lfreitas-dev/nfcom-analyzer/internal/core/domain"
)

// ItemStore is one open store instance: the wide invoice_items table
// inside a fingerprinted database file.
type ItemStore interface {
	EnsureSchema(ctx context.Context) error
	CountItems(ctx context.Context) (int64, error)
	// InsertBatch writes all records in one transaction; either the
	// whole batch lands or none of it does.
	InsertBatch(ctx context.Context, records []domain.LineItemRecord) error
	// CreateIndexes is idempotent; callers treat failure as non-fatal.
	CreateIndexes(ctx context.Context) error
	Query(ctx context.Context, sqlText string) (*domain.QueryResult, error)
	Summary(ctx context.Context) (*domain.DatasetSummary, error)
	Close() error
}

// StoreProvider maps fingerprints to store instances on disk.
type StoreProvider interface {
	Open(ctx context.Context, fingerprint string) (ItemStore, error)
	// Delete removes the store file; a missing file is a no-op.
	Delete(ctx context.Context, fingerprint string) error
}

// DatasetCatalog persists dataset state, including explicit run
// completion for the idempotency gate.
type DatasetCatalog interface {
	Create(ctx context.Context, ds *domain.Dataset) error
	GetByFingerprint(ctx context.Context, fingerprint string) (*domain.Dataset, error)
	MarkLoaded(ctx context.Context, fingerprint string, stats domain.ExtractStats) error
	MarkFailed(ctx context.Context, fingerprint, errMessage string) error
	Delete(ctx context.Context, fingerprint string) error
}

// InvoiceExtractor flattens one XML document into line-item records,
// streamed through emit so peak memory stays bounded by the caller's
// batch. A non-nil emit error aborts extraction and is returned as-is.
type InvoiceExtractor interface {
	Extract(ctx context.Context, file domain.FileBuffer, emit func(domain.LineItemRecord) error) (domain.ExtractStats, error)
}

// ObjectStorage stages uploaded file sets for asynchronous loading.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, prefix string) error
}

// MessageQueue publishes/consumes staged-dataset events.
type MessageQueue interface {
	PublishDatasetStaged(ctx context.Context, fingerprint string) error
	SubscribeDatasetStaged(ctx context.Context, handler func(context.Context, string) error) error
}

// ReportCatalog lists canned analytical queries.
type ReportCatalog interface {
	List() []domain.Report
	Get(name string) (domain.Report, bool)
}

// ResultExporter renders a query result into a downloadable document.
type ResultExporter interface {
	Export(result *domain.QueryResult) ([]byte, error)
}
