package postgres

import (
	"context"
	"errors"

	"github.com/lfreitas-dev/nfcom-analyzer/internal/core/domain"
	"github.com/lfreitas-dev/nfcom-analyzer/internal/core/ports"
	"github.com/lfreitas-dev/nfcom-analyzer/internal/infrastructure/resilience"
)

// ResilientCatalog decorates a DatasetCatalog with retry and circuit
// breaking. Catalog state is load-bearing for the idempotency gate, so
// transient connection failures get another chance before a run is
// declared failed.
type ResilientCatalog struct {
	inner    ports.DatasetCatalog
	executor *resilience.Executor
}

func NewResilientCatalog(inner ports.DatasetCatalog, executor *resilience.Executor) *ResilientCatalog {
	return &ResilientCatalog{inner: inner, executor: executor}
}

var _ ports.DatasetCatalog = (*ResilientCatalog)(nil)

func classifyCatalogError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	// Semantic outcomes are answers, not failures.
	if domain.IsKind(err, domain.ErrDatasetNotFound) || domain.IsKind(err, domain.ErrInvalidInput) {
		return resilience.ErrorClassification{}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}

func (c *ResilientCatalog) Create(ctx context.Context, ds *domain.Dataset) error {
	return c.executor.Execute(ctx, "catalog.create", func(callCtx context.Context) error {
		return c.inner.Create(callCtx, ds)
	}, classifyCatalogError)
}

func (c *ResilientCatalog) GetByFingerprint(ctx context.Context, fingerprint string) (*domain.Dataset, error) {
	var ds *domain.Dataset
	err := c.executor.Execute(ctx, "catalog.get", func(callCtx context.Context) error {
		var callErr error
		ds, callErr = c.inner.GetByFingerprint(callCtx, fingerprint)
		return callErr
	}, classifyCatalogError)
	if err != nil {
		return nil, err
	}
	return ds, nil
}

func (c *ResilientCatalog) MarkLoaded(ctx context.Context, fingerprint string, stats domain.ExtractStats) error {
	return c.executor.Execute(ctx, "catalog.mark_loaded", func(callCtx context.Context) error {
		return c.inner.MarkLoaded(callCtx, fingerprint, stats)
	}, classifyCatalogError)
}

func (c *ResilientCatalog) MarkFailed(ctx context.Context, fingerprint, errMessage string) error {
	return c.executor.Execute(ctx, "catalog.mark_failed", func(callCtx context.Context) error {
		return c.inner.MarkFailed(callCtx, fingerprint, errMessage)
	}, classifyCatalogError)
}

func (c *ResilientCatalog) Delete(ctx context.Context, fingerprint string) error {
	return c.executor.Execute(ctx, "catalog.delete", func(callCtx context.Context) error {
		return c.inner.Delete(callCtx, fingerprint)
	}, classifyCatalogError)
}
