package domain

import "time"

type DatasetStatus string

const (
	StatusLoading DatasetStatus = "loading"
	StatusLoaded  DatasetStatus = "loaded"
	StatusFailed  DatasetStatus = "failed"
)

// Dataset is the catalog record for one fingerprinted file set and its
// store instance. The fingerprint is immutable for the life of the
// dataset; status records explicit run completion so a crashed load is
// distinguishable from a finished one.
type Dataset struct {
	Fingerprint     string        `json:"fingerprint"`
	FileCount       int           `json:"file_count"`
	TotalBytes      int64         `json:"total_bytes"`
	Status          DatasetStatus `json:"status"`
	RecordCount     int64         `json:"record_count"`
	InvoicesSkipped int64         `json:"invoices_skipped"`
	ItemsSkipped    int64         `json:"items_skipped"`
	Error           string        `json:"error,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// FileBuffer is one uploaded XML document held in memory. Name and
// Size feed the fingerprint; Data is never content-hashed.
type FileBuffer struct {
	Name string
	Size int64
	Data []byte
}

// ExtractStats counts extractor outcomes for one file. Skips are the
// best-effort contract's only error signal, surfaced here so they are
// observable without aborting.
type ExtractStats struct {
	Records         int64
	InvoicesSkipped int64
	ItemsSkipped    int64
}

func (s *ExtractStats) Add(other ExtractStats) {
	s.Records += other.Records
	s.InvoicesSkipped += other.InvoicesSkipped
	s.ItemsSkipped += other.ItemsSkipped
}

// LoadResult reports one load run. AlreadyLoaded marks an idempotency
// short-circuit: the count is the prior run's, nothing was reprocessed.
type LoadResult struct {
	Fingerprint     string `json:"fingerprint"`
	RecordCount     int64  `json:"record_count"`
	InvoicesSkipped int64  `json:"invoices_skipped"`
	ItemsSkipped    int64  `json:"items_skipped"`
	AlreadyLoaded   bool   `json:"already_loaded"`
}

// QueryResult is a tabular result with column order preserved.
type QueryResult struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Report is a canned analytical query executable by name.
type Report struct {
	Name  string `json:"name" yaml:"name"`
	Title string `json:"title" yaml:"title"`
	SQL   string `json:"sql" yaml:"sql"`
}

// DatasetSummary mirrors the headline figures of a loaded dataset.
type DatasetSummary struct {
	RecordCount       int64    `json:"record_count"`
	DistinctInvoices  int64    `json:"distinct_invoices"`
	TotalProductValue *float64 `json:"total_product_value,omitempty"`
}
