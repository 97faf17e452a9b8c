package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	memstore "github.com/soochol/txsched/internal/repository/memory"
	"github.com/soochol/txsched/internal/txsched"
)

const maxDispatchRecords = 10000

// MemoryDispatchRepository stores dispatch records in memory with FIFO eviction.
type MemoryDispatchRepository struct {
	store *memstore.Store[*txsched.DispatchRecord]

	mu    sync.Mutex
	order []string // insertion order for FIFO eviction
	limit int
}

func NewMemoryDispatchRepository() *MemoryDispatchRepository {
	return newMemoryDispatchRepository(maxDispatchRecords)
}

func newMemoryDispatchRepository(limit int) *MemoryDispatchRepository {
	return &MemoryDispatchRepository{
		store: memstore.New(func(r *txsched.DispatchRecord) string { return r.ID }),
		limit: limit,
	}
}

func (r *MemoryDispatchRepository) Create(ctx context.Context, record *txsched.DispatchRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store.Has(ctx, record.ID) {
		return r.store.Set(ctx, record)
	}

	// FIFO eviction when at capacity.
	if len(r.order) >= r.limit {
		oldest := r.order[0]
		r.order = r.order[1:]
		_ = r.store.Delete(ctx, oldest)
	}

	r.order = append(r.order, record.ID)
	return r.store.Set(ctx, record)
}

func (r *MemoryDispatchRepository) Get(ctx context.Context, id string) (*txsched.DispatchRecord, error) {
	rec, err := r.store.Get(ctx, id)
	if errors.Is(err, memstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

func (r *MemoryDispatchRepository) List(ctx context.Context, f txsched.DispatchFilter) ([]*txsched.DispatchRecord, int, error) {
	all, err := r.store.Sorted(ctx,
		func(rec *txsched.DispatchRecord) bool {
			return (f.TransactionID == "" || rec.TransactionID == f.TransactionID) &&
				(f.Status == "" || rec.Status == f.Status)
		},
		// Newest first.
		func(a, b *txsched.DispatchRecord) bool {
			if a.StartedAt.Equal(b.StartedAt) {
				return a.Sequence > b.Sequence
			}
			return a.StartedAt.After(b.StartedAt)
		},
	)
	if err != nil {
		return nil, 0, err
	}

	total := len(all)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < total {
		end = f.Offset + f.Limit
	}
	return all[f.Offset:end], total, nil
}
