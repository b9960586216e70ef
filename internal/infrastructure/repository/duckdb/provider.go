package duckdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/lfreitas-dev/nfcom-analyzer/internal/core/ports"
)

// Provider maps fingerprints to per-dataset DuckDB files under one
// directory. Each Open hands back an isolated store instance; datasets
// never share a database file.
type Provider struct {
	dir string
}

func NewProvider(dir string) (*Provider, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &Provider{dir: dir}, nil
}

var _ ports.StoreProvider = (*Provider)(nil)

func (p *Provider) path(fingerprint string) string {
	return filepath.Join(p.dir, "dataset_"+fingerprint+".duckdb")
}

func (p *Provider) Open(ctx context.Context, fingerprint string) (ports.ItemStore, error) {
	db, err := sqlOpen(p.path(fingerprint))
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping store %s: %w", fingerprint, err)
	}
	return NewItemStore(db), nil
}

// Delete removes the database file and its write-ahead log; a dataset
// that was never materialized is a no-op.
func (p *Provider) Delete(_ context.Context, fingerprint string) error {
	path := p.path(fingerprint)
	for _, target := range []string{path, path + ".wal"} {
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove store file %s: %w", target, err)
		}
	}
	return nil
}
