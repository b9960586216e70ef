package usecase

import (
	"context"
	"fmt"

	"github.com/lfreitas-dev/nfcom-analyzer/internal/core/domain"
	"github.com/lfreitas-dev/nfcom-analyzer/internal/core/ports"
)

const defaultBatchSize = 1000

// batchLoader buffers extracted records and flushes them to the store
// in fixed-size groups, one transaction per group. Peak memory is one
// batch, not the dataset.
type batchLoader struct {
	store   ports.ItemStore
	size    int
	buf     []domain.LineItemRecord
	written int64
}

func newBatchLoader(store ports.ItemStore, size int) *batchLoader {
	if size <= 0 {
		size = defaultBatchSize
	}
	return &batchLoader{
		store: store,
		size:  size,
		buf:   make([]domain.LineItemRecord, 0, size),
	}
}

func (b *batchLoader) Add(ctx context.Context, rec domain.LineItemRecord) error {
	b.buf = append(b.buf, rec)
	if len(b.buf) >= b.size {
		return b.flush(ctx)
	}
	return nil
}

// Flush writes the remainder; call once after the last Add.
func (b *batchLoader) Flush(ctx context.Context) error {
	if len(b.buf) == 0 {
		return nil
	}
	return b.flush(ctx)
}

func (b *batchLoader) flush(ctx context.Context) error {
	if err := b.store.InsertBatch(ctx, b.buf); err != nil {
		return fmt.Errorf("insert batch of %d records: %w", len(b.buf), err)
	}
	b.written += int64(len(b.buf))
	b.buf = b.buf[:0]
	return nil
}

func (b *batchLoader) Written() int64 {
	return b.written
}
