package scheduler

import (
	"context"
	"errors"
	"fmt"

	memstore "github.com/soochol/txsched/internal/repository/memory"
	"github.com/soochol/txsched/internal/txsched"
)

// Registry maps transaction ids to live jobs. It is the only state shared
// between firing callbacks and is safe for concurrent use.
type Registry struct {
	store *memstore.Store[*Job]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		store: memstore.New(func(j *Job) string { return j.TransactionID }),
	}
}

// Insert adds job, failing with txsched.ErrDuplicateJobID if its id is taken.
func (r *Registry) Insert(job *Job) error {
	err := r.store.Insert(context.Background(), job)
	if errors.Is(err, memstore.ErrExists) {
		return fmt.Errorf("%w: %s", txsched.ErrDuplicateJobID, job.TransactionID)
	}
	return err
}

// Get returns the job registered under id.
func (r *Registry) Get(id string) (*Job, bool) {
	job, err := r.store.Get(context.Background(), id)
	if err != nil {
		return nil, false
	}
	return job, true
}

// Remove deregisters id. Removing an absent id is a no-op; the result reports
// whether a job was actually removed.
func (r *Registry) Remove(id string) bool {
	return r.store.Delete(context.Background(), id) == nil
}

// Len returns the number of live jobs.
func (r *Registry) Len() int {
	return r.store.Len()
}

// List returns the live jobs ordered by creation time.
func (r *Registry) List() []*Job {
	jobs, _ := r.store.Sorted(context.Background(), nil, func(a, b *Job) bool {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.TransactionID < b.TransactionID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return jobs
}
