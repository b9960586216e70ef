package ports

import (
	"context"

	"github.com/lfreitas-dev/nfcom-analyzer/internal/core/domain"
)

// DatasetIngestor is the inbound contract for loading uploaded file sets.
type DatasetIngestor interface {
	// Load runs the whole pipeline synchronously and returns the count
	// of durable records, or the prior run's count when the
	// idempotency gate short-circuits.
	Load(ctx context.Context, files []domain.FileBuffer) (*domain.LoadResult, error)
	// Stage persists the file set and schedules an asynchronous load,
	// returning the dataset fingerprint.
	Stage(ctx context.Context, files []domain.FileBuffer) (string, error)
	// LoadStaged replays a staged file set; the worker's entry point.
	LoadStaged(ctx context.Context, fingerprint string) (*domain.LoadResult, error)
}

// DatasetQueryService is the inbound contract for ad-hoc SQL over a
// loaded dataset. SQL is passed to the store verbatim.
type DatasetQueryService interface {
	Query(ctx context.Context, fingerprint, sqlText string) (*domain.QueryResult, error)
	Summary(ctx context.Context, fingerprint string) (*domain.DatasetSummary, error)
}

// DatasetReader is the inbound read model for dataset catalog state.
type DatasetReader interface {
	GetByFingerprint(ctx context.Context, fingerprint string) (*domain.Dataset, error)
}

// DatasetManager removes a dataset's store instance and catalog entry.
type DatasetManager interface {
	Delete(ctx context.Context, fingerprint string) error
}

// ReportRunner lists and executes canned reports against a dataset.
type ReportRunner interface {
	List() []domain.Report
	Run(ctx context.Context, fingerprint, name string) (*domain.QueryResult, error)
}
