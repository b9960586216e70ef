package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lfreitas-dev/nfcom-analyzer/internal/core/domain"
	"github.com/lfreitas-dev/nfcom-analyzer/internal/core/ports"
)

// QueryDatasetUseCase exposes the persisted table to ad-hoc SQL. The
// statement is handed to the store verbatim; row limiting belongs to
// the calling surface.
type QueryDatasetUseCase struct {
	catalog ports.DatasetCatalog
	stores  ports.StoreProvider
}

func NewQueryDatasetUseCase(catalog ports.DatasetCatalog, stores ports.StoreProvider) *QueryDatasetUseCase {
	return &QueryDatasetUseCase{catalog: catalog, stores: stores}
}

func (uc *QueryDatasetUseCase) Query(ctx context.Context, fingerprint, sqlText string) (*domain.QueryResult, error) {
	if strings.TrimSpace(sqlText) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "query dataset", errors.New("empty sql statement"))
	}

	store, err := uc.openLoaded(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	result, err := store.Query(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	return result, nil
}

func (uc *QueryDatasetUseCase) Summary(ctx context.Context, fingerprint string) (*domain.DatasetSummary, error) {
	store, err := uc.openLoaded(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	summary, err := store.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("summarize dataset: %w", err)
	}
	return summary, nil
}

func (uc *QueryDatasetUseCase) openLoaded(ctx context.Context, fingerprint string) (ports.ItemStore, error) {
	ds, err := uc.catalog.GetByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	if ds.Status != domain.StatusLoaded {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"open dataset",
			fmt.Errorf("dataset status is %s, not loaded", ds.Status),
		)
	}
	store, err := uc.stores.Open(ctx, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("open store instance: %w", err)
	}
	return store, nil
}
