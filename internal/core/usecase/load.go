package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/lfreitas-dev/nfcom-analyzer/internal/core/domain"
	"github.com/lfreitas-dev/nfcom-analyzer/internal/core/ports"
)

const manifestKey = "manifest.json"

type stagedManifest struct {
	Files []stagedFile `json:"files"`
}

type stagedFile struct {
	Name string `json:"name"`
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

// LoadDatasetUseCase runs the extraction-and-load pipeline: fingerprint
// gate, per-file extraction, batched inserts, index build, and explicit
// run-completion bookkeeping in the catalog.
type LoadDatasetUseCase struct {
	catalog   ports.DatasetCatalog
	stores    ports.StoreProvider
	extractor ports.InvoiceExtractor
	storage   ports.ObjectStorage
	queue     ports.MessageQueue
	batchSize int
}

func NewLoadDatasetUseCase(
	catalog ports.DatasetCatalog,
	stores ports.StoreProvider,
	extractor ports.InvoiceExtractor,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	batchSize int,
) *LoadDatasetUseCase {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &LoadDatasetUseCase{
		catalog:   catalog,
		stores:    stores,
		extractor: extractor,
		storage:   storage,
		queue:     queue,
		batchSize: batchSize,
	}
}

func (uc *LoadDatasetUseCase) Load(ctx context.Context, files []domain.FileBuffer) (*domain.LoadResult, error) {
	if len(files) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "load dataset", errors.New("no files supplied"))
	}

	fingerprint := domain.Fingerprint(files)

	skip, prior, err := uc.gate(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	if skip {
		return &domain.LoadResult{
			Fingerprint:     fingerprint,
			RecordCount:     prior.RecordCount,
			InvoicesSkipped: prior.InvoicesSkipped,
			ItemsSkipped:    prior.ItemsSkipped,
			AlreadyLoaded:   true,
		}, nil
	}

	if err := uc.createCatalogEntry(ctx, fingerprint, files); err != nil {
		return nil, err
	}

	result, err := uc.runPipeline(ctx, fingerprint, files)
	if err != nil {
		if failErr := uc.catalog.MarkFailed(ctx, fingerprint, err.Error()); failErr != nil {
			return nil, fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return nil, err
	}
	return result, nil
}

// gate implements the idempotency check. Only an explicitly completed
// prior run short-circuits; a row left in loading/failed state means a
// crashed or aborted run, whose partial store file is discarded so the
// reload starts clean.
func (uc *LoadDatasetUseCase) gate(ctx context.Context, fingerprint string) (bool, *domain.Dataset, error) {
	existing, err := uc.catalog.GetByFingerprint(ctx, fingerprint)
	if err != nil {
		if domain.IsKind(err, domain.ErrDatasetNotFound) {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("check prior run: %w", err)
	}

	if existing.Status == domain.StatusLoaded {
		return true, existing, nil
	}

	if err := uc.stores.Delete(ctx, fingerprint); err != nil {
		return false, nil, fmt.Errorf("discard partial store: %w", err)
	}
	if err := uc.catalog.Delete(ctx, fingerprint); err != nil {
		return false, nil, fmt.Errorf("discard stale catalog entry: %w", err)
	}
	return false, nil, nil
}

func (uc *LoadDatasetUseCase) createCatalogEntry(ctx context.Context, fingerprint string, files []domain.FileBuffer) error {
	var totalBytes int64
	for _, f := range files {
		totalBytes += f.Size
	}
	now := time.Now().UTC()
	ds := &domain.Dataset{
		Fingerprint: fingerprint,
		FileCount:   len(files),
		TotalBytes:  totalBytes,
		Status:      domain.StatusLoading,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.catalog.Create(ctx, ds); err != nil {
		return fmt.Errorf("create catalog entry: %w", err)
	}
	return nil
}

func (uc *LoadDatasetUseCase) runPipeline(ctx context.Context, fingerprint string, files []domain.FileBuffer) (*domain.LoadResult, error) {
	store, err := uc.stores.Open(ctx, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("open store instance: %w", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure store schema: %w", err)
	}

	// Row-count guard on the instance itself: rows without a completed
	// catalog entry mean the catalog lost track of a finished load.
	// Adopt them instead of duplicating.
	count, err := store.CountItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("count existing rows: %w", err)
	}
	if count > 0 {
		stats := domain.ExtractStats{Records: count}
		if err := uc.catalog.MarkLoaded(ctx, fingerprint, stats); err != nil {
			return nil, fmt.Errorf("adopt existing rows: %w", err)
		}
		return &domain.LoadResult{Fingerprint: fingerprint, RecordCount: count, AlreadyLoaded: true}, nil
	}

	loader := newBatchLoader(store, uc.batchSize)
	var total domain.ExtractStats

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stats, err := uc.extractor.Extract(ctx, f, func(rec domain.LineItemRecord) error {
			return loader.Add(ctx, rec)
		})
		total.Add(stats)
		if err != nil {
			return nil, fmt.Errorf("process file %s: %w", f.Name, err)
		}
	}

	if err := loader.Flush(ctx); err != nil {
		return nil, err
	}

	if err := store.CreateIndexes(ctx); err != nil {
		slog.Warn("index_creation_failed", "fingerprint", fingerprint, "error", err)
	}

	total.Records = loader.Written()
	if err := uc.catalog.MarkLoaded(ctx, fingerprint, total); err != nil {
		return nil, fmt.Errorf("mark run completed: %w", err)
	}

	return &domain.LoadResult{
		Fingerprint:     fingerprint,
		RecordCount:     total.Records,
		InvoicesSkipped: total.InvoicesSkipped,
		ItemsSkipped:    total.ItemsSkipped,
	}, nil
}

// Stage persists the file set and its manifest, then schedules an
// asynchronous load by publishing the fingerprint.
func (uc *LoadDatasetUseCase) Stage(ctx context.Context, files []domain.FileBuffer) (string, error) {
	if len(files) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "stage dataset", errors.New("no files supplied"))
	}

	fingerprint := domain.Fingerprint(files)
	manifest := stagedManifest{Files: make([]stagedFile, 0, len(files))}

	for i, f := range files {
		key := fmt.Sprintf("%s/%04d_%s", fingerprint, i, sanitizeFilename(f.Name))
		if err := uc.storage.Save(ctx, key, bytes.NewReader(f.Data)); err != nil {
			return "", fmt.Errorf("stage file %s: %w", f.Name, err)
		}
		manifest.Files = append(manifest.Files, stagedFile{Name: f.Name, Key: key, Size: f.Size})
	}

	raw, err := json.Marshal(manifest)
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	if err := uc.storage.Save(ctx, fingerprint+"/"+manifestKey, bytes.NewReader(raw)); err != nil {
		return "", fmt.Errorf("stage manifest: %w", err)
	}

	if err := uc.queue.PublishDatasetStaged(ctx, fingerprint); err != nil {
		return "", fmt.Errorf("publish staged event: %w", err)
	}
	return fingerprint, nil
}

// LoadStaged replays a staged file set; the worker's entry point.
func (uc *LoadDatasetUseCase) LoadStaged(ctx context.Context, fingerprint string) (*domain.LoadResult, error) {
	manifest, err := uc.readManifest(ctx, fingerprint)
	if err != nil {
		return nil, err
	}

	files := make([]domain.FileBuffer, 0, len(manifest.Files))
	for _, entry := range manifest.Files {
		data, err := uc.readStagedFile(ctx, entry.Key)
		if err != nil {
			return nil, err
		}
		files = append(files, domain.FileBuffer{Name: entry.Name, Size: entry.Size, Data: data})
	}

	if got := domain.Fingerprint(files); got != fingerprint {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"load staged dataset",
			fmt.Errorf("manifest fingerprint mismatch: %s", got),
		)
	}

	result, err := uc.Load(ctx, files)
	if err != nil {
		return nil, err
	}
	if err := uc.storage.Remove(ctx, fingerprint); err != nil {
		slog.Warn("staging_cleanup_failed", "fingerprint", fingerprint, "error", err)
	}
	return result, nil
}

func (uc *LoadDatasetUseCase) readManifest(ctx context.Context, fingerprint string) (*stagedManifest, error) {
	reader, err := uc.storage.Open(ctx, fingerprint+"/"+manifestKey)
	if err != nil {
		return nil, domain.WrapError(domain.ErrDatasetNotFound, "open staged manifest", err)
	}
	defer reader.Close()

	var manifest stagedManifest
	if err := json.NewDecoder(reader).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("decode staged manifest: %w", err)
	}
	return &manifest, nil
}

func (uc *LoadDatasetUseCase) readStagedFile(ctx context.Context, key string) ([]byte, error) {
	reader, err := uc.storage.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open staged file %s: %w", key, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read staged file %s: %w", key, err)
	}
	return data, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.xml"
	}
	return base
}
