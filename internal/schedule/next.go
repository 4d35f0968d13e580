// Package schedule turns schedule specs into instants. Trigger builds the
// cron.Schedule that fires a spec and NextRun reports the next due time.
package schedule

import (
	"fmt"
	"time"

	"PulseMail/internal/models"
)

// NextRun returns the next time spec is due after now, evaluated in now's
// location. A time equal to now counts as already due and rolls forward.
// Once specs return their configured instant unchanged. Calendar specs are
// answered by the same cron schedule Trigger builds, so wall-clock times
// that a DST change skips or repeats resolve the way the scheduler fires them.
func NextRun(spec models.Spec, now time.Time) (time.Time, error) {
	switch s := spec.(type) {
	case models.OnceSpec:
		return s.At, nil

	case models.DailySpec, models.WeeklySpec, models.MonthlySpec:
		trig, err := Trigger(spec)
		if err != nil {
			return time.Time{}, err
		}
		next := trig.Next(now)
		if next.IsZero() {
			return time.Time{}, fmt.Errorf("%s has no upcoming run", Describe(spec))
		}
		return next, nil

	case models.IntervalSpec:
		d := s.Duration()
		if d <= 0 {
			return time.Time{}, fmt.Errorf("invalid interval %d %s", s.Value, s.Unit)
		}
		return now.Add(d), nil
	}

	return time.Time{}, fmt.Errorf("%w: %T", models.ErrUnknownScheduleType, spec)
}

var weekdayNames = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// Describe renders a spec for listings.
func Describe(spec models.Spec) string {
	switch s := spec.(type) {
	case models.OnceSpec:
		return "once at " + s.At.Format("2006-01-02 15:04")
	case models.DailySpec:
		return "daily at " + s.At.String()
	case models.WeeklySpec:
		if s.Weekday >= 0 && s.Weekday < len(weekdayNames) {
			return "every " + weekdayNames[s.Weekday] + " at " + s.At.String()
		}
	case models.MonthlySpec:
		return fmt.Sprintf("monthly on day %d at %s", s.Day, s.At)
	case models.IntervalSpec:
		return fmt.Sprintf("every %d %s", s.Value, s.Unit)
	}
	return "unknown"
}
