// Package repository persists the dispatch history.
package repository

import (
	"context"
	"errors"

	"github.com/soochol/txsched/internal/txsched"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("dispatch record not found")

// DispatchRepository abstracts persistence for dispatch attempts.
type DispatchRepository interface {
	Create(ctx context.Context, record *txsched.DispatchRecord) error
	Get(ctx context.Context, id string) (*txsched.DispatchRecord, error)
	// List returns matching records newest first, plus the total number of
	// matches before pagination.
	List(ctx context.Context, filter txsched.DispatchFilter) ([]*txsched.DispatchRecord, int, error)
}
