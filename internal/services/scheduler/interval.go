package scheduler

// interval.go — IntervalTranslator responsibility layer.
// Turns an abstract (unit, value) interval into a firing schedule that the
// cron engine can drive.

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/soochol/txsched/internal/txsched"
)

// ScheduleExpression is the concrete firing schedule derived from an Interval.
type ScheduleExpression struct {
	// Spec is the crontab rendering, seconds field first.
	Spec     string
	Schedule cron.Schedule
}

// Next returns the first firing instant strictly after t.
func (e ScheduleExpression) Next(t time.Time) time.Time {
	return e.Schedule.Next(t)
}

// TranslateInterval maps iv to a periodic schedule evaluated in loc.
//
//	SECOND(v): every v seconds
//	MINUTE(v): second 0 of every v-th minute
//	HOUR(v):   minute 0, second 0 of every v-th hour
//	DAY(v):    midnight of every v-th day
//
// When v divides the unit's cycle (60 seconds, 60 minutes, 24 hours) the
// crontab step expression is used as is. Otherwise a crontab step would reset
// at the cycle boundary, so the schedule counts units from the Unix epoch
// instead and firings stay exactly v units apart.
func TranslateInterval(iv txsched.Interval, loc *time.Location) (ScheduleExpression, error) {
	if loc == nil {
		loc = time.Local
	}
	if !iv.Unit.Valid() {
		return ScheduleExpression{}, fmt.Errorf("%w: %q", txsched.ErrUnsupportedIntervalUnit, iv.Unit)
	}
	if iv.Value <= 0 {
		return ScheduleExpression{}, fmt.Errorf("%w: got %d", txsched.ErrInvalidInterval, iv.Value)
	}
	if !iv.InRange() {
		return ScheduleExpression{}, fmt.Errorf("%w: %d %s exceeds %d", txsched.ErrInvalidInterval, iv.Value, iv.Unit, iv.Unit.MaxValue())
	}

	v := iv.Value
	var (
		spec  string
		cycle int
	)
	switch iv.Unit {
	case txsched.UnitSecond:
		spec, cycle = fmt.Sprintf("*/%d * * * * *", v), 60
	case txsched.UnitMinute:
		spec, cycle = fmt.Sprintf("0 */%d * * * *", v), 60
	case txsched.UnitHour:
		spec, cycle = fmt.Sprintf("0 0 */%d * * *", v), 24
	case txsched.UnitDay:
		// Days have no fixed cycle within a month.
		spec, cycle = fmt.Sprintf("0 0 0 */%d * *", v), 0
	}

	if cycle > 0 && v <= cycle && cycle%v == 0 {
		sched, err := parseCronExpr(spec, loc)
		if err != nil {
			return ScheduleExpression{}, fmt.Errorf("compile %q: %w", spec, err)
		}
		return ScheduleExpression{Spec: spec, Schedule: sched}, nil
	}
	return ScheduleExpression{
		Spec:     spec,
		Schedule: &alignedSchedule{unit: iv.Unit, every: int64(v), loc: loc},
	}, nil
}

// parseCronExpr tries 6-field (with seconds) then 5-field (standard) parsing
// and evaluates the result in loc.
func parseCronExpr(expr string, loc *time.Location) (cron.Schedule, error) {
	parser6 := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser6.Parse(expr)
	if err != nil {
		parser5 := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if sched, err = parser5.Parse(expr); err != nil {
			return nil, err
		}
	}
	if spec, ok := sched.(*cron.SpecSchedule); ok && loc != nil {
		spec.Location = loc
	}
	return sched, nil
}

// alignedSchedule fires on unit boundaries whose index, counted from the
// Unix epoch in loc's wall clock, is a multiple of every.
type alignedSchedule struct {
	unit  txsched.IntervalUnit
	every int64
	loc   *time.Location
}

var epochDay = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

func (s *alignedSchedule) Next(t time.Time) time.Time {
	if s.unit == txsched.UnitSecond {
		next := (floorDiv(t.Unix(), s.every) + 1) * s.every
		return time.Unix(next, 0).In(s.loc)
	}

	k := (floorDiv(s.index(t), s.every) + 1) * s.every
	next := s.at(k)
	// Wall-clock gaps and repeats around DST changes can map an index to an
	// instant that is not after t.
	for i := 0; !next.After(t) && i < 4; i++ {
		k += s.every
		next = s.at(k)
	}
	return next
}

// index returns the number of whole units between the epoch and t, both read
// on loc's wall clock.
func (s *alignedSchedule) index(t time.Time) int64 {
	lt := t.In(s.loc)
	civil := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, time.UTC)
	day := int64(civil.Sub(epochDay) / (24 * time.Hour))
	switch s.unit {
	case txsched.UnitMinute:
		return day*24*60 + int64(lt.Hour())*60 + int64(lt.Minute())
	case txsched.UnitHour:
		return day*24 + int64(lt.Hour())
	default:
		return day
	}
}

// at converts a unit index back to the wall-clock instant it starts at.
func (s *alignedSchedule) at(k int64) time.Time {
	switch s.unit {
	case txsched.UnitMinute:
		day, rem := floorDiv(k, 24*60), floorMod(k, 24*60)
		return time.Date(1970, 1, 1+int(day), int(rem/60), int(rem%60), 0, 0, s.loc)
	case txsched.UnitHour:
		day, hour := floorDiv(k, 24), floorMod(k, 24)
		return time.Date(1970, 1, 1+int(day), int(hour), 0, 0, 0, s.loc)
	default:
		return time.Date(1970, 1, 1+int(k), 0, 0, 0, 0, s.loc)
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	return a - floorDiv(a, b)*b
}
