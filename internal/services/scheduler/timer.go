package scheduler

// timer.go — TimerEngine responsibility layer.
// One shared cron instance drives every alarm; each job gets its own entry.

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Handle controls a single armed alarm.
type Handle interface {
	// Start begins firing. Calling Start on a started or stopped handle is a no-op.
	Start()
	// Stop prevents any further firing. It is idempotent.
	Stop()
	// Next returns the next planned firing, or the zero time if none.
	Next() time.Time
}

// Timer arms alarms that invoke a callback at due instants until stopped.
type Timer interface {
	// ArmOnce arms a started, single-shot alarm at the given instant.
	ArmOnce(at time.Time, fn func()) Handle
	// ArmPeriodic arms an alarm following schedule. It only fires once
	// started, either right away (start) or by a later Handle.Start call.
	ArmPeriodic(schedule cron.Schedule, fn func(), start bool) Handle
	Start()
	Stop(ctx context.Context)
}

// CronTimer implements Timer on top of robfig/cron.
type CronTimer struct {
	cron   *cron.Cron
	logger cron.Logger
}

// NewCronTimer creates a timer evaluating schedules in loc.
func NewCronTimer(loc *time.Location) *CronTimer {
	if loc == nil {
		loc = time.Local
	}
	logger := cronLogger{log: log.Logger.With().Str("component", "cron").Logger()}
	return &CronTimer{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger)),
		),
		logger: logger,
	}
}

func (t *CronTimer) ArmOnce(at time.Time, fn func()) Handle {
	h := &cronHandle{c: t.cron, schedule: &onceSchedule{at: at}, job: cron.FuncJob(fn)}
	h.Start()
	return h
}

func (t *CronTimer) ArmPeriodic(schedule cron.Schedule, fn func(), start bool) Handle {
	// Firings of the same job never overlap; a slow dispatch delays the next one.
	job := cron.NewChain(cron.DelayIfStillRunning(t.logger)).Then(cron.FuncJob(fn))
	h := &cronHandle{c: t.cron, schedule: schedule, job: job}
	if start {
		h.Start()
	}
	return h
}

// Start begins the cron loop.
func (t *CronTimer) Start() {
	t.cron.Start()
}

// Stop halts the cron loop and waits for running callbacks, or for ctx.
func (t *CronTimer) Stop(ctx context.Context) {
	select {
	case <-t.cron.Stop().Done():
	case <-ctx.Done():
	}
}

type cronHandle struct {
	c        *cron.Cron
	schedule cron.Schedule
	job      cron.Job

	mu      sync.Mutex
	id      cron.EntryID
	started bool
	stopped bool
}

func (h *cronHandle) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started || h.stopped {
		return
	}
	h.id = h.c.Schedule(h.schedule, h.job)
	h.started = true
}

func (h *cronHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.stopped = true
	if h.started {
		h.c.Remove(h.id)
	}
}

func (h *cronHandle) Next() time.Time {
	h.mu.Lock()
	id, live := h.id, h.started && !h.stopped
	h.mu.Unlock()
	if !live {
		return time.Time{}
	}
	return h.c.Entry(id).Next
}

// onceSchedule yields its instant the first time it is asked and nothing
// afterwards. cron asks once when the entry is armed and once after each run,
// so the entry fires exactly once even if the instant is already past.
type onceSchedule struct {
	at    time.Time
	asked atomic.Bool
}

func (s *onceSchedule) Next(time.Time) time.Time {
	if s.asked.CompareAndSwap(false, true) {
		return s.at
	}
	return time.Time{}
}

// cronLogger routes robfig/cron's logging to zerolog. cron reports every
// wake-up at info level, which is debug noise for this service.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
