package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/soochol/txsched/internal/txsched"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// manualTimer records armed alarms; tests fire them explicitly.
type manualTimer struct {
	mu      sync.Mutex
	handles []*manualHandle
}

func (m *manualTimer) ArmOnce(at time.Time, fn func()) Handle {
	h := &manualHandle{at: at, fn: fn, started: true}
	m.add(h)
	return h
}

func (m *manualTimer) ArmPeriodic(schedule cron.Schedule, fn func(), start bool) Handle {
	h := &manualHandle{schedule: schedule, fn: fn, started: start, periodic: true}
	m.add(h)
	return h
}

func (m *manualTimer) Start()                 {}
func (m *manualTimer) Stop(_ context.Context) {}

func (m *manualTimer) add(h *manualHandle) {
	m.mu.Lock()
	m.handles = append(m.handles, h)
	m.mu.Unlock()
}

func (m *manualTimer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handles)
}

func (m *manualTimer) last() *manualHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.handles) == 0 {
		return nil
	}
	return m.handles[len(m.handles)-1]
}

type manualHandle struct {
	mu       sync.Mutex
	at       time.Time
	schedule cron.Schedule
	fn       func()
	periodic bool
	started  bool
	stopped  bool
}

func (h *manualHandle) Start() {
	h.mu.Lock()
	if !h.stopped {
		h.started = true
	}
	h.mu.Unlock()
}

func (h *manualHandle) Stop() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
}

func (h *manualHandle) Next() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started || h.stopped {
		return time.Time{}
	}
	if h.periodic {
		return h.schedule.Next(time.Now())
	}
	return h.at
}

func (h *manualHandle) isStarted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started
}

func (h *manualHandle) isStopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

// fire invokes the callback the way the engine would, reporting whether the
// alarm was live.
func (h *manualHandle) fire() bool {
	h.mu.Lock()
	live := h.started && !h.stopped
	h.mu.Unlock()
	if !live {
		return false
	}
	h.fn()
	return true
}

// fakeDispatcher captures payloads and can be told to fail.
type fakeDispatcher struct {
	mu       sync.Mutex
	payloads []txsched.TransactionPayload
	fail     error
	onSend   func(txsched.TransactionPayload)
}

func (d *fakeDispatcher) Dispatch(_ context.Context, p txsched.TransactionPayload) (json.RawMessage, error) {
	d.mu.Lock()
	d.payloads = append(d.payloads, p)
	fail, onSend := d.fail, d.onSend
	d.mu.Unlock()
	if onSend != nil {
		onSend(p)
	}
	if fail != nil {
		return nil, fmt.Errorf("%w: %v", txsched.ErrDispatchFailure, fail)
	}
	return json.RawMessage(`{"accepted":true}`), nil
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.payloads)
}

func (d *fakeDispatcher) sent() []txsched.TransactionPayload {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]txsched.TransactionPayload(nil), d.payloads...)
}

type memRecorder struct {
	mu      sync.Mutex
	records []*txsched.DispatchRecord
}

func (r *memRecorder) Record(_ context.Context, rec *txsched.DispatchRecord) error {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
	return nil
}

func (r *memRecorder) all() []*txsched.DispatchRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*txsched.DispatchRecord(nil), r.records...)
}
