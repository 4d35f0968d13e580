package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type ScheduleType string

const (
	ScheduleOnce     ScheduleType = "once"
	ScheduleDaily    ScheduleType = "daily"
	ScheduleWeekly   ScheduleType = "weekly"
	ScheduleMonthly  ScheduleType = "monthly"
	ScheduleInterval ScheduleType = "interval"
)

var ErrUnknownScheduleType = errors.New("unknown schedule type")

// ScheduledEmail is a persisted rule describing when and to whom a template is sent.
type ScheduledEmail struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	TemplateID int64       `json:"template_id"`
	Recipients []Recipient `json:"recipients"`
	Spec       Spec        `json:"-"`
	NextRun    *time.Time  `json:"next_run,omitempty"`
	Active     bool        `json:"is_active"`
	CreatedAt  time.Time   `json:"created_at"`
}

// JobID is the scheduler key for a schedule.
func JobID(scheduleID int64) string {
	return "schedule_" + strconv.FormatInt(scheduleID, 10)
}

// Firing is the message a trigger emits when a schedule is due.
type Firing struct {
	ScheduleID int64
	FiredAt    time.Time
}

// Spec is the closed set of schedule parameter shapes. Only the types in this
// package implement it.
type Spec interface {
	Type() ScheduleType
	Validate() error
	spec()
}

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return Clock{}, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return Clock{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return Clock{}, fmt.Errorf("invalid minute in %q", s)
	}
	return Clock{Hour: h, Minute: m}, nil
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

func (c Clock) validate() error {
	if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 {
		return fmt.Errorf("invalid time %02d:%02d", c.Hour, c.Minute)
	}
	return nil
}

type OnceSpec struct {
	At time.Time
}

type DailySpec struct {
	At Clock
}

// WeeklySpec fires on Weekday, where 0 is Monday and 6 is Sunday.
type WeeklySpec struct {
	Weekday int
	At      Clock
}

// MonthlySpec fires on day Day of every month that has it.
type MonthlySpec struct {
	Day int
	At  Clock
}

type IntervalUnit string

const (
	UnitMinutes IntervalUnit = "minutes"
	UnitHours   IntervalUnit = "hours"
	UnitDays    IntervalUnit = "days"
)

type IntervalSpec struct {
	Unit  IntervalUnit
	Value int
}

func (OnceSpec) Type() ScheduleType     { return ScheduleOnce }
func (DailySpec) Type() ScheduleType    { return ScheduleDaily }
func (WeeklySpec) Type() ScheduleType   { return ScheduleWeekly }
func (MonthlySpec) Type() ScheduleType  { return ScheduleMonthly }
func (IntervalSpec) Type() ScheduleType { return ScheduleInterval }

func (OnceSpec) spec()     {}
func (DailySpec) spec()    {}
func (WeeklySpec) spec()   {}
func (MonthlySpec) spec()  {}
func (IntervalSpec) spec() {}

func (s OnceSpec) Validate() error {
	if s.At.IsZero() {
		return errors.New("once schedule needs a datetime")
	}
	return nil
}

func (s DailySpec) Validate() error { return s.At.validate() }

func (s WeeklySpec) Validate() error {
	if s.Weekday < 0 || s.Weekday > 6 {
		return fmt.Errorf("weekday must be 0-6, got %d", s.Weekday)
	}
	return s.At.validate()
}

func (s MonthlySpec) Validate() error {
	if s.Day < 1 || s.Day > 31 {
		return fmt.Errorf("day must be 1-31, got %d", s.Day)
	}
	return s.At.validate()
}

func (s IntervalSpec) Validate() error {
	if s.Value <= 0 {
		return fmt.Errorf("interval_value must be positive, got %d", s.Value)
	}
	switch s.Unit {
	case UnitMinutes, UnitHours, UnitDays:
		return nil
	}
	return fmt.Errorf("unknown interval_type %q", s.Unit)
}

// Duration is the elapsed time between firings.
func (s IntervalSpec) Duration() time.Duration {
	switch s.Unit {
	case UnitMinutes:
		return time.Duration(s.Value) * time.Minute
	case UnitHours:
		return time.Duration(s.Value) * time.Hour
	case UnitDays:
		return time.Duration(s.Value) * 24 * time.Hour
	}
	return 0
}

type specWire struct {
	Datetime      string `json:"datetime,omitempty"`
	Time          string `json:"time,omitempty"`
	Weekday       *int   `json:"weekday,omitempty"`
	Day           *int   `json:"day,omitempty"`
	IntervalType  string `json:"interval_type,omitempty"`
	IntervalValue *int   `json:"interval_value,omitempty"`
}

var datetimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseDatetime reads an ISO 8601 datetime. Values without an offset are
// interpreted in loc.
func ParseDatetime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime %q, expected ISO 8601", s)
}

// DecodeSpec builds the typed spec for a schedule type from its JSON parameters.
func DecodeSpec(typ ScheduleType, data []byte, loc *time.Location) (Spec, error) {
	if loc == nil {
		loc = time.Local
	}
	var w specWire
	if len(data) > 0 {
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decoding %s schedule data: %w", typ, err)
		}
	}

	var spec Spec
	switch typ {
	case ScheduleOnce:
		if w.Datetime == "" {
			return nil, errors.New("once schedule needs datetime")
		}
		at, err := ParseDatetime(w.Datetime, loc)
		if err != nil {
			return nil, err
		}
		spec = OnceSpec{At: at}
	case ScheduleDaily:
		c, err := ParseClock(w.Time)
		if err != nil {
			return nil, err
		}
		spec = DailySpec{At: c}
	case ScheduleWeekly:
		c, err := ParseClock(w.Time)
		if err != nil {
			return nil, err
		}
		if w.Weekday == nil {
			return nil, errors.New("weekly schedule needs weekday")
		}
		spec = WeeklySpec{Weekday: *w.Weekday, At: c}
	case ScheduleMonthly:
		c, err := ParseClock(w.Time)
		if err != nil {
			return nil, err
		}
		if w.Day == nil {
			return nil, errors.New("monthly schedule needs day")
		}
		spec = MonthlySpec{Day: *w.Day, At: c}
	case ScheduleInterval:
		if w.IntervalValue == nil {
			return nil, errors.New("interval schedule needs interval_value")
		}
		spec = IntervalSpec{Unit: IntervalUnit(w.IntervalType), Value: *w.IntervalValue}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheduleType, typ)
	}

	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// EncodeSpec renders a spec in its JSON wire format.
func EncodeSpec(spec Spec) ([]byte, error) {
	var w specWire
	switch s := spec.(type) {
	case OnceSpec:
		w.Datetime = s.At.Format(time.RFC3339)
	case DailySpec:
		w.Time = s.At.String()
	case WeeklySpec:
		wd := s.Weekday
		w.Time, w.Weekday = s.At.String(), &wd
	case MonthlySpec:
		d := s.Day
		w.Time, w.Day = s.At.String(), &d
	case IntervalSpec:
		v := s.Value
		w.IntervalType, w.IntervalValue = string(s.Unit), &v
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownScheduleType, spec)
	}
	return json.Marshal(w)
}
