package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lfreitas-dev/nfcom-analyzer/internal/core/domain"
	"github.com/lfreitas-dev/nfcom-analyzer/internal/infrastructure/resilience"
)

type flakyCatalog struct {
	failures int
	calls    int
	getErr   error
}

func (f *flakyCatalog) Create(ctx context.Context, ds *domain.Dataset) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("connection reset")
	}
	return nil
}

func (f *flakyCatalog) GetByFingerprint(ctx context.Context, fingerprint string) (*domain.Dataset, error) {
	f.calls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &domain.Dataset{Fingerprint: fingerprint}, nil
}

func (f *flakyCatalog) MarkLoaded(ctx context.Context, fingerprint string, stats domain.ExtractStats) error {
	return nil
}

func (f *flakyCatalog) MarkFailed(ctx context.Context, fingerprint, errMessage string) error {
	return nil
}

func (f *flakyCatalog) Delete(ctx context.Context, fingerprint string) error {
	return nil
}

func newTestExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		BreakerEnabled:      false,
	})
}

func TestResilientCatalogRetriesTransientFailures(t *testing.T) {
	inner := &flakyCatalog{failures: 2}
	catalog := NewResilientCatalog(inner, newTestExecutor())

	err := catalog.Create(context.Background(), &domain.Dataset{Fingerprint: "abc"})
	if err != nil {
		t.Fatalf("Create() error = %v, want success after retries", err)
	}
	if inner.calls != 3 {
		t.Fatalf("inner calls = %d, want 3", inner.calls)
	}
}

func TestResilientCatalogDoesNotRetryNotFound(t *testing.T) {
	inner := &flakyCatalog{
		getErr: domain.WrapError(domain.ErrDatasetNotFound, "get dataset", errors.New("no rows")),
	}
	catalog := NewResilientCatalog(inner, newTestExecutor())

	_, err := catalog.GetByFingerprint(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrDatasetNotFound) {
		t.Fatalf("GetByFingerprint() error = %v, want dataset-not-found", err)
	}
	if inner.calls != 1 {
		t.Fatalf("inner calls = %d, want 1 (no retry on not-found)", inner.calls)
	}
}

func TestResilientCatalogReturnsValue(t *testing.T) {
	inner := &flakyCatalog{}
	catalog := NewResilientCatalog(inner, newTestExecutor())

	ds, err := catalog.GetByFingerprint(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("GetByFingerprint() error = %v", err)
	}
	if ds == nil || ds.Fingerprint != "abc123" {
		t.Fatalf("GetByFingerprint() dataset = %+v, want fingerprint abc123", ds)
	}
}
