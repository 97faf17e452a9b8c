package services

import (
	"context"

	"github.com/soochol/txsched/internal/repository"
	"github.com/soochol/txsched/internal/txsched"
)

const (
	defaultDispatchLimit = 50
	maxDispatchLimit     = 500
)

// DispatchHistoryService manages dispatch attempt records.
type DispatchHistoryService struct {
	repo repository.DispatchRepository
}

// NewDispatchHistoryService creates a DispatchHistoryService.
func NewDispatchHistoryService(repo repository.DispatchRepository) *DispatchHistoryService {
	return &DispatchHistoryService{repo: repo}
}

// Record stores one dispatch attempt. Records without an id get one.
func (s *DispatchHistoryService) Record(ctx context.Context, record *txsched.DispatchRecord) error {
	if record.ID == "" {
		record.ID = txsched.GenerateID("dsp")
	}
	return s.repo.Create(ctx, record)
}

// Get retrieves a single dispatch record.
func (s *DispatchHistoryService) Get(ctx context.Context, id string) (*txsched.DispatchRecord, error) {
	return s.repo.Get(ctx, id)
}

// List returns dispatch records newest first. The limit defaults to 50 and
// is capped at 500.
func (s *DispatchHistoryService) List(ctx context.Context, f txsched.DispatchFilter) ([]*txsched.DispatchRecord, int, error) {
	switch {
	case f.Limit <= 0:
		f.Limit = defaultDispatchLimit
	case f.Limit > maxDispatchLimit:
		f.Limit = maxDispatchLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.List(ctx, f)
}
