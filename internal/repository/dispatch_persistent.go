package repository

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/soochol/txsched/internal/db"
	"github.com/soochol/txsched/internal/txsched"
)

// PersistentDispatchRepository wraps a MemoryDispatchRepository with a SQL backend.
// Writes go to both stores (DB failure is logged but non-fatal).
// Reads try memory first, falling back to the database; listings prefer the
// database, which holds the full history.
type PersistentDispatchRepository struct {
	mem *MemoryDispatchRepository
	db  *db.DB
}

func NewPersistentDispatchRepository(mem *MemoryDispatchRepository, database *db.DB) *PersistentDispatchRepository {
	return &PersistentDispatchRepository{mem: mem, db: database}
}

func (r *PersistentDispatchRepository) Create(ctx context.Context, record *txsched.DispatchRecord) error {
	_ = r.mem.Create(ctx, record)
	if err := r.db.CreateDispatch(ctx, record); err != nil {
		log.Warn().Err(err).Str("dispatch", record.ID).Msg("repository: db create dispatch failed, in-memory only")
	}
	return nil
}

func (r *PersistentDispatchRepository) Get(ctx context.Context, id string) (*txsched.DispatchRecord, error) {
	rec, err := r.mem.Get(ctx, id)
	if err == nil {
		return rec, nil
	}

	dbRec, dbErr := r.db.GetDispatch(ctx, id)
	if dbErr != nil {
		return nil, err // return original ErrNotFound
	}
	return dbRec, nil
}

func (r *PersistentDispatchRepository) List(ctx context.Context, f txsched.DispatchFilter) ([]*txsched.DispatchRecord, int, error) {
	recs, total, err := r.db.ListDispatches(ctx, f)
	if err == nil {
		return recs, total, nil
	}
	log.Warn().Err(err).Msg("repository: db list dispatches failed, falling back to in-memory")
	return r.mem.List(ctx, f)
}
