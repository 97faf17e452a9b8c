// Package scheduler turns schedule requests into timed jobs that dispatch
// transactions to the processing queue.
package scheduler

// service.go — SchedulerService public facade.
// Struct definition, constructor, and all public API methods live here.
// Interval translation: interval.go
// Alarm engine:         timer.go
// Job registry:         registry.go
// Firing logic:         job.go

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/soochol/txsched/internal/metrics"
	"github.com/soochol/txsched/internal/txsched"
	"github.com/soochol/txsched/internal/txsched/ports"
)

// SchedulerService accepts schedule requests and drives the resulting jobs
// until they finish. Jobs live in memory only.
type SchedulerService struct {
	timer      Timer
	registry   *Registry
	dispatcher ports.Dispatcher
	recorder   ports.DispatchRecorder

	loc   *time.Location
	now   func() time.Time
	newID func() string

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSchedulerService creates a SchedulerService with its required dependencies.
func NewSchedulerService(timer Timer, registry *Registry, dispatcher ports.Dispatcher) *SchedulerService {
	ctx, cancel := context.WithCancel(context.Background())
	return &SchedulerService{
		timer:      timer,
		registry:   registry,
		dispatcher: dispatcher,
		loc:        time.Local,
		now:        time.Now,
		newID:      txsched.NewTransactionID,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SetRecorder configures where dispatch attempts are recorded.
func (s *SchedulerService) SetRecorder(r ports.DispatchRecorder) {
	s.recorder = r
}

// SetLocation sets the location used for timestamps without an offset and
// for aligning interval schedules.
func (s *SchedulerService) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

// SetClock replaces the time source.
func (s *SchedulerService) SetClock(now func() time.Time) {
	s.now = now
}

// SetIDGenerator replaces the transaction id generator.
func (s *SchedulerService) SetIDGenerator(gen func() string) {
	s.newID = gen
}

// Start begins firing armed jobs.
func (s *SchedulerService) Start() {
	s.timer.Start()
	log.Info().Str("tz", s.loc.String()).Msg("scheduler: started")
}

// Stop halts the timer, waits for running firings (bounded by ctx), and drops
// every remaining job. Jobs are not persisted.
func (s *SchedulerService) Stop(ctx context.Context) {
	s.timer.Stop(ctx)
	s.cancel()

	dropped := 0
	for _, job := range s.registry.List() {
		if job.done.CompareAndSwap(false, true) {
			s.terminate(job, false)
			dropped++
		}
	}
	log.Info().Int("dropped_jobs", dropped).Msg("scheduler: stopped")
}

// ScheduleTransaction registers a job for req and returns without waiting for
// any firing. A request carrying both an interval and a frequency becomes a
// recurring job; anything else is a one-time job.
func (s *SchedulerService) ScheduleTransaction(_ context.Context, req *txsched.ScheduleRequest) (*txsched.Receipt, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: empty request", txsched.ErrInvalidRequest)
	}
	if strings.TrimSpace(req.ScheduleAt) == "" {
		return nil, txsched.ErrMissingScheduleTime
	}

	id := s.newID()
	if req.IsRecurring() {
		return s.scheduleRecurring(req, id)
	}
	if req.Interval != nil || req.Frequency > 0 {
		log.Warn().Str("transaction", id).
			Msg("scheduler: interval and frequency must both be set for recurring jobs, scheduling once")
	}
	return s.scheduleOneTime(req, id)
}

func (s *SchedulerService) scheduleOneTime(req *txsched.ScheduleRequest, id string) (*txsched.Receipt, error) {
	at, err := s.executionDate(req)
	if err != nil {
		return nil, err
	}

	job := &Job{
		TransactionID: id,
		Kind:          txsched.JobOneTime,
		Request:       *req,
		ExecutionDate: at,
		CreatedAt:     s.now(),
	}
	if err := s.register(job); err != nil {
		return nil, err
	}
	job.attach(s.timer.ArmOnce(at, func() { s.fireOneTime(job) }))

	log.Info().Str("transaction", id).Time("execute_at", at).
		Msg("scheduler: one-time job scheduled")
	return &txsched.Receipt{
		Status:        txsched.StatusScheduledOneTime,
		TransactionID: id,
		ExecuteAt:     &at,
	}, nil
}

func (s *SchedulerService) scheduleRecurring(req *txsched.ScheduleRequest, id string) (*txsched.Receipt, error) {
	if req.Interval == nil || req.Frequency <= 0 {
		return nil, txsched.ErrMissingIntervalOrFrequency
	}
	at, err := s.executionDate(req)
	if err != nil {
		return nil, err
	}
	expr, err := TranslateInterval(*req.Interval, s.loc)
	if err != nil {
		return nil, err
	}

	interval := *req.Interval
	job := &Job{
		TransactionID: id,
		Kind:          txsched.JobRecurring,
		Request:       *req,
		ExecutionDate: at,
		CreatedAt:     s.now(),
		Expression:    &expr,
		Frequency:     req.Frequency,
	}
	job.Request.Interval = &interval

	handle := s.timer.ArmPeriodic(expr.Schedule, func() { s.fireRecurring(job) }, false)
	job.attach(handle)
	if err := s.register(job); err != nil {
		handle.Stop()
		return nil, err
	}
	handle.Start()

	log.Info().Str("transaction", id).Str("spec", expr.Spec).Int("frequency", job.Frequency).
		Time("start_at", at).Msg("scheduler: recurring job scheduled")
	return &txsched.Receipt{
		Status:        txsched.StatusScheduledRecurring,
		TransactionID: id,
		Interval:      &interval,
		Frequency:     job.Frequency,
		StartAt:       &at,
	}, nil
}

// executionDate parses scheduleAt and rejects instants that are not in the future.
func (s *SchedulerService) executionDate(req *txsched.ScheduleRequest) (time.Time, error) {
	at, err := txsched.ParseScheduleAt(req.ScheduleAt, s.loc)
	if err != nil {
		return time.Time{}, err
	}
	if !at.After(s.now()) {
		return time.Time{}, fmt.Errorf("%w: %s", txsched.ErrScheduleInPast, at.Format(time.RFC3339))
	}
	return at, nil
}

func (s *SchedulerService) register(job *Job) error {
	if err := s.registry.Insert(job); err != nil {
		log.Error().Str("transaction", job.TransactionID).Err(err).
			Msg("scheduler: job registry is inconsistent")
		return err
	}
	metrics.JobScheduled(string(job.Kind))
	return nil
}

// ListJobs returns snapshots of all live jobs.
func (s *SchedulerService) ListJobs() []txsched.JobInfo {
	jobs := s.registry.List()
	out := make([]txsched.JobInfo, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Info())
	}
	return out
}

// GetJob returns a snapshot of the live job with the given id.
func (s *SchedulerService) GetJob(id string) (txsched.JobInfo, error) {
	job, ok := s.registry.Get(id)
	if !ok {
		return txsched.JobInfo{}, fmt.Errorf("%w: %s", txsched.ErrJobNotFound, id)
	}
	return job.Info(), nil
}

// IsInternalError reports whether err from ScheduleTransaction is a fault of
// the service rather than of the request.
func IsInternalError(err error) bool {
	return err != nil && !txsched.IsRequestError(err) && !errors.Is(err, txsched.ErrJobNotFound)
}
