package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/soochol/txsched/internal/repository"
	"github.com/soochol/txsched/internal/txsched"
)

func newDispatch(txID string, seq int, status txsched.DispatchStatus) *txsched.DispatchRecord {
	started := time.Date(2025, 5, 1, 10, 0, seq, 0, time.UTC)
	return &txsched.DispatchRecord{
		TransactionID: txID,
		UserID:        42,
		Kind:          txsched.JobRecurring,
		Sequence:      seq,
		Status:        status,
		StartedAt:     started,
		CompletedAt:   started.Add(5 * time.Millisecond),
	}
}

func TestDispatchHistoryService_RecordAndGet(t *testing.T) {
	svc := NewDispatchHistoryService(repository.NewMemoryDispatchRepository())
	ctx := context.Background()

	rec := newDispatch("tx-1", 1, txsched.DispatchSuccess)
	if err := svc.Record(ctx, rec); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !strings.HasPrefix(rec.ID, "dsp-") {
		t.Fatalf("expected generated dsp- id, got %q", rec.ID)
	}

	got, err := svc.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.TransactionID != "tx-1" || got.Sequence != 1 {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Caller-supplied ids are kept.
	named := newDispatch("tx-1", 2, txsched.DispatchFailed)
	named.ID = "dsp-fixed"
	if err := svc.Record(ctx, named); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := svc.Get(ctx, "dsp-fixed"); err != nil {
		t.Fatalf("Get dsp-fixed: %v", err)
	}

	if _, err := svc.Get(ctx, "nope"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDispatchHistoryService_ListLimits(t *testing.T) {
	svc := NewDispatchHistoryService(repository.NewMemoryDispatchRepository())
	ctx := context.Background()

	for i := 1; i <= 60; i++ {
		_ = svc.Record(ctx, newDispatch(fmt.Sprintf("tx-%d", i%2), i, txsched.DispatchSuccess))
	}

	recs, total, err := svc.List(ctx, txsched.DispatchFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 60 {
		t.Fatalf("total = %d, want 60", total)
	}
	if len(recs) != defaultDispatchLimit {
		t.Fatalf("len = %d, want default limit %d", len(recs), defaultDispatchLimit)
	}
	if recs[0].Sequence != 60 {
		t.Errorf("expected newest first, got sequence %d", recs[0].Sequence)
	}

	recs, _, _ = svc.List(ctx, txsched.DispatchFilter{Limit: 10000})
	if len(recs) != 60 {
		t.Errorf("capped list len = %d, want 60", len(recs))
	}

	recs, total, _ = svc.List(ctx, txsched.DispatchFilter{TransactionID: "tx-1", Limit: 5, Offset: -3})
	if total != 30 || len(recs) != 5 {
		t.Errorf("filtered: got %d of %d, want 5 of 30", len(recs), total)
	}
}
