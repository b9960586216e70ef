package usecase

import (
	"context"
	"fmt"

	"github.com/lfreitas-dev/nfcom-analyzer/internal/core/domain"
	"github.com/lfreitas-dev/nfcom-analyzer/internal/core/ports"
)

// PurgeDatasetUseCase removes a dataset's store file, catalog entry and
// any leftover staging. Safe to call when nothing exists.
type PurgeDatasetUseCase struct {
	catalog ports.DatasetCatalog
	stores  ports.StoreProvider
	storage ports.ObjectStorage
}

func NewPurgeDatasetUseCase(catalog ports.DatasetCatalog, stores ports.StoreProvider, storage ports.ObjectStorage) *PurgeDatasetUseCase {
	return &PurgeDatasetUseCase{catalog: catalog, stores: stores, storage: storage}
}

func (uc *PurgeDatasetUseCase) Delete(ctx context.Context, fingerprint string) error {
	if err := uc.stores.Delete(ctx, fingerprint); err != nil {
		return fmt.Errorf("delete store instance: %w", err)
	}
	if err := uc.catalog.Delete(ctx, fingerprint); err != nil && !domain.IsKind(err, domain.ErrDatasetNotFound) {
		return fmt.Errorf("delete catalog entry: %w", err)
	}
	if err := uc.storage.Remove(ctx, fingerprint); err != nil {
		return fmt.Errorf("remove staged files: %w", err)
	}
	return nil
}
