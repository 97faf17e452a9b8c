package txsched

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDecodeScheduleRequest(t *testing.T) {
	req, err := DecodeScheduleRequest(strings.NewReader(
		`{"userId":3,"amount":"19.99","type":"WITHDRAW","scheduleAt":"2030-02-01T08:00:00Z","interval":{"unit":"MINUTE","value":15},"frequency":4}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.UserID != 3 || req.Type != TransactionWithdraw || !req.Amount.Equal(decimal.RequireFromString("19.99")) {
		t.Fatalf("unexpected request: %+v", req)
	}
	if !req.IsRecurring() || req.Interval.Unit != UnitMinute || req.Interval.Value != 15 {
		t.Fatalf("expected recurring MINUTE/15, got %+v", req.Interval)
	}
	if err := req.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestDecodeScheduleRequest_Rejects(t *testing.T) {
	bodies := []string{
		`{"userId":1,"amount":1,"type":"DEPOSIT","scheduleAt":"2030-01-01","currency":"EUR"}`,
		`{"userId":1,"amount":1,"type":"DEPOSIT","scheduleAt":"2030-01-01"} {"again":true}`,
		`[1,2,3]`,
		``,
	}
	for i, body := range bodies {
		_, err := DecodeScheduleRequestBytes([]byte(body))
		if !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("case %d: expected ErrInvalidRequest, got %v", i, err)
		}
		if !IsRequestError(err) {
			t.Errorf("case %d: expected a request error", i)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := func() *ScheduleRequest {
		return &ScheduleRequest{UserID: 1, Amount: decimal.NewFromInt(5), Type: TransactionDeposit, ScheduleAt: "2030-01-01T00:00:00Z"}
	}
	if err := valid().Validate(); err != nil {
		t.Fatalf("valid request: %v", err)
	}

	// scheduleAt is optional at this layer; the scheduler reports it.
	noTime := valid()
	noTime.ScheduleAt = ""
	if err := noTime.Validate(); err != nil {
		t.Fatalf("missing scheduleAt should pass shape validation: %v", err)
	}

	tests := []struct {
		name  string
		mut   func(*ScheduleRequest)
		field string
	}{
		{"user", func(r *ScheduleRequest) { r.UserID = 0 }, "userId"},
		{"amount zero", func(r *ScheduleRequest) { r.Amount = decimal.Zero }, "amount"},
		{"amount negative", func(r *ScheduleRequest) { r.Amount = decimal.NewFromInt(-1) }, "amount"},
		{"type", func(r *ScheduleRequest) { r.Type = "deposit" }, "type"},
		{"scheduleAt", func(r *ScheduleRequest) { r.ScheduleAt = "next tuesday" }, "scheduleAt"},
		{"unit", func(r *ScheduleRequest) { r.Interval = &Interval{Unit: "WEEK", Value: 1} }, "interval.unit"},
		{"value", func(r *ScheduleRequest) { r.Interval = &Interval{Unit: UnitDay, Value: 0} }, "interval.value"},
		{"value overflow", func(r *ScheduleRequest) { r.Interval = &Interval{Unit: UnitMinute, Value: math.MaxInt} }, "interval.value"},
		{"frequency", func(r *ScheduleRequest) { r.Frequency = -2 }, "frequency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mut(r)
			err := r.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Fatalf("expected ValidationError on %s, got %v", tt.field, err)
			}
			if !IsRequestError(err) {
				t.Fatal("validation errors are request errors")
			}
		})
	}

	// All problems are reported together.
	bad := &ScheduleRequest{Type: "X"}
	if n := strings.Count(bad.Validate().Error(), "\n") + 1; n != 3 {
		t.Errorf("expected 3 joined errors, got %d: %v", n, bad.Validate())
	}
}

func TestParseScheduleAt(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2030-01-02T03:04:05Z", time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"2030-01-02T03:04:05.250+02:00", time.Date(2030, 1, 2, 1, 4, 5, 250e6, time.UTC)},
		{"2030-01-02T03:04:05", time.Date(2030, 1, 2, 3, 4, 5, 0, tokyo)},
		{"2030-01-02T03:04", time.Date(2030, 1, 2, 3, 4, 0, 0, tokyo)},
		{"2030-01-02 03:04:05", time.Date(2030, 1, 2, 3, 4, 5, 0, tokyo)},
		{"2030-01-02", time.Date(2030, 1, 2, 0, 0, 0, 0, tokyo)},
		{"  2030-01-02T03:04:05Z  ", time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseScheduleAt(tt.in, tokyo)
		if err != nil {
			t.Errorf("%q: %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("%q: got %s, want %s", tt.in, got, tt.want)
		}
	}

	if _, err := ParseScheduleAt("", tokyo); !errors.Is(err, ErrMissingScheduleTime) {
		t.Errorf("empty: expected ErrMissingScheduleTime, got %v", err)
	}
	if _, err := ParseScheduleAt("01/02/2030", tokyo); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("bad layout: expected ErrInvalidRequest, got %v", err)
	}
}

func TestIsRequestError(t *testing.T) {
	for _, err := range []error{ErrMissingScheduleTime, ErrScheduleInPast, ErrMissingIntervalOrFrequency,
		ErrUnsupportedIntervalUnit, ErrInvalidInterval, ErrInvalidRequest} {
		if !IsRequestError(err) {
			t.Errorf("%v should be a request error", err)
		}
	}
	for _, err := range []error{ErrDuplicateJobID, ErrDispatchFailure, ErrJobNotFound, errors.New("boom")} {
		if IsRequestError(err) {
			t.Errorf("%v should not be a request error", err)
		}
	}
}
