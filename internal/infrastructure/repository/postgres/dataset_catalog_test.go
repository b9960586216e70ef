package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/lfreitas-dev/nfcom-analyzer/internal/core/domain"
)

func newCatalogWithMock(t *testing.T) (*DatasetCatalog, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewDatasetCatalog(db), mock, func() { _ = db.Close() }
}

func TestGetByFingerprintReturnsDomainNotFound(t *testing.T) {
	catalog, mock, done := newCatalogWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT fingerprint, file_count, total_bytes").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := catalog.GetByFingerprint(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrDatasetNotFound) {
		t.Fatalf("expected ErrDatasetNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByFingerprintScansStatus(t *testing.T) {
	catalog, mock, done := newCatalogWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"fingerprint", "file_count", "total_bytes", "status",
		"record_count", "invoices_skipped", "items_skipped", "error_message",
		"created_at", "updated_at",
	}).AddRow("fp1", 3, int64(2048), "loaded", int64(1500), int64(2), int64(1), nil, now, now)

	mock.ExpectQuery("SELECT fingerprint, file_count, total_bytes").
		WithArgs("fp1").
		WillReturnRows(rows)

	ds, err := catalog.GetByFingerprint(context.Background(), "fp1")
	if err != nil {
		t.Fatalf("GetByFingerprint() error = %v", err)
	}
	if ds.Status != domain.StatusLoaded {
		t.Fatalf("status = %q", ds.Status)
	}
	if ds.RecordCount != 1500 || ds.InvoicesSkipped != 2 || ds.ItemsSkipped != 1 {
		t.Fatalf("counters %+v", ds)
	}
	if ds.Error != "" {
		t.Fatalf("null error_message must scan to empty, got %q", ds.Error)
	}
}

func TestMarkLoadedReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	catalog, mock, done := newCatalogWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE datasets").
		WithArgs("missing", string(domain.StatusLoaded), int64(10), int64(0), int64(0), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := catalog.MarkLoaded(context.Background(), "missing", domain.ExtractStats{Records: 10})
	if !domain.IsKind(err, domain.ErrDatasetNotFound) {
		t.Fatalf("expected ErrDatasetNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMarkFailedPersistsMessage(t *testing.T) {
	catalog, mock, done := newCatalogWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE datasets").
		WithArgs("fp1", string(domain.StatusFailed), "process file jan.xml: malformed", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := catalog.MarkFailed(context.Background(), "fp1", "process file jan.xml: malformed"); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteMissingDatasetReturnsDomainNotFound(t *testing.T) {
	catalog, mock, done := newCatalogWithMock(t)
	defer done()

	mock.ExpectExec("DELETE FROM datasets").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := catalog.Delete(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrDatasetNotFound) {
		t.Fatalf("expected ErrDatasetNotFound, got %v", err)
	}
}
