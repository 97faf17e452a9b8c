package txsched

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// DecodeScheduleRequest reads a single JSON ScheduleRequest from r.
// Unknown fields are rejected.
func DecodeScheduleRequest(r io.Reader) (*ScheduleRequest, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var req ScheduleRequest
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: unexpected data after request object", ErrInvalidRequest)
	}
	return &req, nil
}

// DecodeScheduleRequestBytes is DecodeScheduleRequest for an in-memory body.
func DecodeScheduleRequestBytes(b []byte) (*ScheduleRequest, error) {
	return DecodeScheduleRequest(bytes.NewReader(b))
}

// Validate checks the shape of the request. A missing scheduleAt is left to
// the scheduler, which reports it as ErrMissingScheduleTime.
func (r *ScheduleRequest) Validate() error {
	var errs []error
	if r.UserID <= 0 {
		errs = append(errs, &ValidationError{Field: "userId", Reason: "must be a positive integer"})
	}
	if r.Amount.Sign() <= 0 {
		errs = append(errs, &ValidationError{Field: "amount", Reason: "must be greater than 0"})
	}
	if !r.Type.Valid() {
		errs = append(errs, &ValidationError{Field: "type", Reason: "must be one of DEPOSIT, WITHDRAW"})
	}
	if strings.TrimSpace(r.ScheduleAt) != "" {
		if _, err := ParseScheduleAt(r.ScheduleAt, time.UTC); err != nil {
			errs = append(errs, &ValidationError{Field: "scheduleAt", Reason: "must be an ISO-8601 date string"})
		}
	}
	if r.Interval != nil {
		if !r.Interval.Unit.Valid() {
			errs = append(errs, &ValidationError{Field: "interval.unit", Reason: "must be one of SECOND, MINUTE, HOUR, DAY"})
		}
		if r.Interval.Value <= 0 {
			errs = append(errs, &ValidationError{Field: "interval.value", Reason: "must be a positive integer"})
		} else if r.Interval.Unit.Valid() && !r.Interval.InRange() {
			errs = append(errs, &ValidationError{Field: "interval.value", Reason: fmt.Sprintf("must be at most %d for %s", r.Interval.Unit.MaxValue(), r.Interval.Unit)})
		}
	}
	if r.Frequency < 0 {
		errs = append(errs, &ValidationError{Field: "frequency", Reason: "must be a positive integer"})
	}
	return errors.Join(errs...)
}

// Layouts accepted for scheduleAt, most specific first. Layouts without a
// zone offset are interpreted in the caller's location.
var scheduleLayouts = []struct {
	layout string
	zoned  bool
}{
	{time.RFC3339Nano, true},
	{"2006-01-02T15:04:05.999999999", false},
	{"2006-01-02T15:04", false},
	{"2006-01-02 15:04:05", false},
	{"2006-01-02", false},
}

// ParseScheduleAt parses an ISO-8601 timestamp. Timestamps without an offset
// are read in loc.
func ParseScheduleAt(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrMissingScheduleTime
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, l := range scheduleLayouts {
		var (
			t   time.Time
			err error
		)
		if l.zoned {
			t, err = time.Parse(l.layout, s)
		} else {
			t, err = time.ParseInLocation(l.layout, s, loc)
		}
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: scheduleAt %q is not an ISO-8601 date", ErrInvalidRequest, s)
}
