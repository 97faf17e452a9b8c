package scheduler

// job.go — JobLifecycle responsibility layer.
// The firing callbacks decide, at each due instant, whether a job dispatches,
// skips, or reaches its terminal transition.

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/soochol/txsched/internal/metrics"
	"github.com/soochol/txsched/internal/txsched"
)

// Job is a scheduled transaction owned by the Registry.
type Job struct {
	TransactionID string
	Kind          txsched.JobKind
	Request       txsched.ScheduleRequest
	ExecutionDate time.Time
	CreatedAt     time.Time

	// Recurring jobs only.
	Expression *ScheduleExpression
	Frequency  int

	executed atomic.Int64
	done     atomic.Bool

	mu          sync.Mutex
	handle      Handle
	stopPending bool
}

// ExecutedCount returns how many dispatches the job has attempted.
func (j *Job) ExecutedCount() int {
	return int(j.executed.Load())
}

// Done reports whether the job reached its terminal transition.
func (j *Job) Done() bool {
	return j.done.Load()
}

// attach binds the alarm that drives the job. If the job was stopped before
// the alarm existed, the alarm is stopped right away.
func (j *Job) attach(h Handle) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.handle = h
	if j.stopPending {
		h.Stop()
	}
}

func (j *Job) stopTimer() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.stopPending = true
	if j.handle != nil {
		j.handle.Stop()
	}
}

func (j *Job) nextFire() time.Time {
	j.mu.Lock()
	h := j.handle
	j.mu.Unlock()
	if h == nil || j.Done() {
		return time.Time{}
	}
	return h.Next()
}

// Info returns a snapshot of the job.
func (j *Job) Info() txsched.JobInfo {
	info := txsched.JobInfo{
		TransactionID: j.TransactionID,
		Kind:          j.Kind,
		UserID:        j.Request.UserID,
		Type:          j.Request.Type,
		Amount:        j.Request.Amount,
		ExecutionDate: j.ExecutionDate,
		ExecutedCount: j.ExecutedCount(),
		CreatedAt:     j.CreatedAt,
	}
	if j.Kind == txsched.JobRecurring {
		info.Interval = j.Request.Interval
		info.Frequency = j.Frequency
		if j.Expression != nil {
			info.Spec = j.Expression.Spec
		}
	}
	if next := j.nextFire(); !next.IsZero() {
		info.NextFireAt = &next
	}
	return info
}

// fireOneTime runs when a one-time job's alarm goes off. The single attempt
// is consumed whatever the dispatch outcome.
func (s *SchedulerService) fireOneTime(job *Job) {
	if !job.done.CompareAndSwap(false, true) {
		return
	}
	err := s.dispatch(job, 1)
	job.executed.Add(1)

	s.terminate(job, true)
	if err != nil {
		log.Warn().Str("transaction", job.TransactionID).Err(err).
			Msg("scheduler: one-time job finished without delivery")
		return
	}
	log.Info().Str("transaction", job.TransactionID).Msg("scheduler: one-time job executed")
}

// fireRecurring runs on every tick of a recurring job.
func (s *SchedulerService) fireRecurring(job *Job) {
	if job.Done() {
		return
	}

	// Periodic schedules may tick before the requested start.
	if s.now().Before(job.ExecutionDate) {
		metrics.FiringSkipped()
		log.Debug().Str("transaction", job.TransactionID).Time("start_at", job.ExecutionDate).
			Msg("scheduler: firing before start time, skipped")
		return
	}

	if job.ExecutedCount() >= job.Frequency {
		if !job.done.CompareAndSwap(false, true) {
			return
		}
		s.terminate(job, true)
		log.Info().Str("transaction", job.TransactionID).Int("executions", job.ExecutedCount()).
			Msg("scheduler: recurring job completed")
		return
	}

	seq := job.ExecutedCount() + 1
	// A failed attempt still counts toward the frequency.
	if err := s.dispatch(job, seq); err != nil {
		log.Warn().Str("transaction", job.TransactionID).Int("sequence", seq).Err(err).
			Msg("scheduler: recurring dispatch failed")
	}
	job.executed.Add(1)
}

// dispatch sends the job's payload to the queue and records the attempt.
func (s *SchedulerService) dispatch(job *Job, seq int) error {
	payload := txsched.TransactionPayload{
		ScheduleRequest: job.Request,
		TransactionID:   job.TransactionID,
	}

	log.Info().Str("transaction", job.TransactionID).Int("sequence", seq).
		Msg("scheduler: dispatching transaction")

	started := time.Now()
	ack, err := s.dispatcher.Dispatch(s.ctx, payload)
	completed := time.Now()

	record := &txsched.DispatchRecord{
		ID:            txsched.GenerateID("dsp"),
		TransactionID: job.TransactionID,
		UserID:        job.Request.UserID,
		Kind:          job.Kind,
		Sequence:      seq,
		Status:        txsched.DispatchSuccess,
		Ack:           ack,
		StartedAt:     started,
		CompletedAt:   completed,
	}
	if err != nil {
		msg := err.Error()
		record.Status = txsched.DispatchFailed
		record.Error = &msg
		record.Ack = nil
	}
	metrics.RecordDispatch(string(job.Kind), string(record.Status), completed.Sub(started).Seconds())
	s.record(record)
	return err
}

func (s *SchedulerService) record(record *txsched.DispatchRecord) {
	if s.recorder == nil {
		return
	}
	// History is written even while the service is shutting down.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), 5*time.Second)
	defer cancel()
	if err := s.recorder.Record(ctx, record); err != nil {
		log.Warn().Str("transaction", record.TransactionID).Err(err).
			Msg("scheduler: failed to record dispatch")
	}
}

// terminate stops the job's alarm and removes it from the registry.
func (s *SchedulerService) terminate(job *Job, completed bool) {
	job.stopTimer()
	if s.registry.Remove(job.TransactionID) {
		metrics.JobRemoved(string(job.Kind), completed)
	}
}
