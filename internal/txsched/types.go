package txsched

import (
	"encoding/json"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// --- Transaction ---

// TransactionType is the kind of money movement a scheduled job performs.
type TransactionType string

const (
	TransactionDeposit  TransactionType = "DEPOSIT"
	TransactionWithdraw TransactionType = "WITHDRAW"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == TransactionDeposit || t == TransactionWithdraw
}

// --- Interval ---

// IntervalUnit is the granularity of a recurring interval.
type IntervalUnit string

const (
	UnitSecond IntervalUnit = "SECOND"
	UnitMinute IntervalUnit = "MINUTE"
	UnitHour   IntervalUnit = "HOUR"
	UnitDay    IntervalUnit = "DAY"
)

// Valid reports whether u is one of the supported units.
func (u IntervalUnit) Valid() bool {
	switch u {
	case UnitSecond, UnitMinute, UnitHour, UnitDay:
		return true
	}
	return false
}

// Duration returns the length of one unit, or 0 for an unknown unit.
// A DAY is 24 hours on the wall clock it is evaluated in.
func (u IntervalUnit) Duration() time.Duration {
	switch u {
	case UnitSecond:
		return time.Second
	case UnitMinute:
		return time.Minute
	case UnitHour:
		return time.Hour
	case UnitDay:
		return 24 * time.Hour
	}
	return 0
}

// MaxValue is the largest interval value whose spacing still fits in a
// time.Duration.
func (u IntervalUnit) MaxValue() int64 {
	d := u.Duration()
	if d == 0 {
		return 0
	}
	return int64(math.MaxInt64 / d)
}

// Interval describes how often a recurring job fires: every Value Units.
type Interval struct {
	Unit  IntervalUnit `json:"unit"`
	Value int          `json:"value"`
}

// InRange reports whether Value is positive and within the unit's MaxValue.
func (iv Interval) InRange() bool {
	return iv.Value > 0 && int64(iv.Value) <= iv.Unit.MaxValue()
}

// --- Request / Receipt ---

// ScheduleRequest asks for a transaction to be executed at ScheduleAt,
// optionally repeating every Interval up to Frequency times.
type ScheduleRequest struct {
	UserID     int64           `json:"userId"`
	Amount     decimal.Decimal `json:"amount"`
	Type       TransactionType `json:"type"`
	ScheduleAt string          `json:"scheduleAt"`
	Interval   *Interval       `json:"interval,omitempty"`
	Frequency  int             `json:"frequency,omitempty"`
}

// MarshalJSON writes Amount as a JSON number, the way queue consumers expect
// it. Decoding accepts both numbers and strings.
func (r ScheduleRequest) MarshalJSON() ([]byte, error) {
	type plain ScheduleRequest
	return json.Marshal(struct {
		plain
		Amount json.RawMessage `json:"amount"`
	}{plain(r), amountJSON(r.Amount)})
}

// IsRecurring reports whether both interval and frequency are present.
// A request carrying only one of them is a one-time request.
func (r *ScheduleRequest) IsRecurring() bool {
	return r.Interval != nil && r.Frequency > 0
}

// TransactionPayload is what gets dispatched to the processing queue:
// the original request plus the identifier assigned at schedule time.
type TransactionPayload struct {
	ScheduleRequest
	TransactionID string `json:"transactionId"`
}

func (p TransactionPayload) MarshalJSON() ([]byte, error) {
	type plain ScheduleRequest
	return json.Marshal(struct {
		plain
		Amount        json.RawMessage `json:"amount"`
		TransactionID string          `json:"transactionId"`
	}{plain(p.ScheduleRequest), amountJSON(p.Amount), p.TransactionID})
}

// ReceiptStatus tells the caller which scheduling strategy was applied.
type ReceiptStatus string

const (
	StatusScheduledOneTime   ReceiptStatus = "SCHEDULED_ONE_TIME"
	StatusScheduledRecurring ReceiptStatus = "SCHEDULED_RECURRING"
)

// Receipt is returned as soon as a request is accepted. Which of the
// optional fields are set depends on Status.
type Receipt struct {
	Status        ReceiptStatus `json:"status"`
	TransactionID string        `json:"transactionId"`
	ExecuteAt     *time.Time    `json:"executeAt,omitempty"`
	Interval      *Interval     `json:"interval,omitempty"`
	Frequency     int           `json:"frequency,omitempty"`
	StartAt       *time.Time    `json:"startAt,omitempty"`
}

// --- Jobs ---

// JobKind distinguishes single-shot jobs from periodic ones.
type JobKind string

const (
	JobOneTime   JobKind = "ONE_TIME"
	JobRecurring JobKind = "RECURRING"
)

// JobInfo is a read-only snapshot of a live job.
type JobInfo struct {
	TransactionID string          `json:"transactionId"`
	Kind          JobKind         `json:"kind"`
	UserID        int64           `json:"userId"`
	Type          TransactionType `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	ExecutionDate time.Time       `json:"executionDate"`
	Spec          string          `json:"spec,omitempty"`
	Interval      *Interval       `json:"interval,omitempty"`
	Frequency     int             `json:"frequency,omitempty"`
	ExecutedCount int             `json:"executedCount"`
	NextFireAt    *time.Time      `json:"nextFireAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func (j JobInfo) MarshalJSON() ([]byte, error) {
	type plain JobInfo
	return json.Marshal(struct {
		plain
		Amount json.RawMessage `json:"amount"`
	}{plain(j), amountJSON(j.Amount)})
}

// amountJSON renders d as an unquoted JSON number.
func amountJSON(d decimal.Decimal) json.RawMessage {
	return json.RawMessage(d.String())
}

// --- Dispatch history ---

// DispatchStatus is the outcome of a single dispatch attempt.
type DispatchStatus string

const (
	DispatchSuccess DispatchStatus = "success"
	DispatchFailed  DispatchStatus = "failed"
)

// DispatchRecord captures one attempt to hand a transaction to the queue.
type DispatchRecord struct {
	ID            string          `json:"id"`
	TransactionID string          `json:"transactionId"`
	UserID        int64           `json:"userId"`
	Kind          JobKind         `json:"kind"`
	Sequence      int             `json:"sequence"` // 1-based execution number within the job
	Status        DispatchStatus  `json:"status"`
	Error         *string         `json:"error,omitempty"`
	Ack           json.RawMessage `json:"ack,omitempty"`
	StartedAt     time.Time       `json:"startedAt"`
	CompletedAt   time.Time       `json:"completedAt"`
}

// DispatchFilter narrows a history listing. Zero values mean "any".
type DispatchFilter struct {
	TransactionID string
	Status        DispatchStatus
	Limit         int
	Offset        int
}
