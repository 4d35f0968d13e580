package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"PulseMail/internal/models"
)

// Trigger builds the cron schedule that fires spec. Calendar specs use
// standard five-field expressions evaluated in the caller's location.
func Trigger(spec models.Spec) (cron.Schedule, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	switch s := spec.(type) {
	case models.OnceSpec:
		return oneShot{at: s.At}, nil

	case models.DailySpec:
		return cron.ParseStandard(fmt.Sprintf("%d %d * * *", s.At.Minute, s.At.Hour))

	case models.WeeklySpec:
		// cron numbers weekdays from Sunday
		dow := (s.Weekday + 1) % 7
		return cron.ParseStandard(fmt.Sprintf("%d %d * * %d", s.At.Minute, s.At.Hour, dow))

	case models.MonthlySpec:
		return cron.ParseStandard(fmt.Sprintf("%d %d %d * *", s.At.Minute, s.At.Hour, s.Day))

	case models.IntervalSpec:
		return every{delay: s.Duration()}, nil
	}

	return nil, fmt.Errorf("%w: %T", models.ErrUnknownScheduleType, spec)
}

// oneShot fires once at a fixed instant. A zero Next tells cron the entry
// never runs again.
type oneShot struct {
	at time.Time
}

func (o oneShot) Next(t time.Time) time.Time {
	if o.at.After(t) {
		return o.at
	}
	return time.Time{}
}

// every is a constant-delay schedule. Unlike cron.Every it keeps
// sub-second precision so it matches NextRun exactly.
type every struct {
	delay time.Duration
}

func (e every) Next(t time.Time) time.Time {
	return t.Add(e.delay)
}
