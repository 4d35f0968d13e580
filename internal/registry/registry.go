// Package registry keeps scheduler jobs in step with persisted schedules.
// The database is the source of truth; jobs are rebuilt from it on start.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"PulseMail/internal/db"
	"PulseMail/internal/email"
	"PulseMail/internal/metrics"
	"PulseMail/internal/models"
	"PulseMail/internal/schedule"
	"PulseMail/internal/scheduler"
)

var ErrInvalidSchedule = errors.New("invalid schedule")

// Store is the subset of the database the registry works against.
type Store interface {
	GetActiveSchedules(ctx context.Context) ([]db.ScheduleView, error)
	GetTemplate(ctx context.Context, id int64) (models.EmailTemplate, error)
	CreateSchedule(ctx context.Context, s *models.ScheduledEmail) error
	UpdateNextRun(ctx context.Context, id int64, next time.Time) error
	DeactivateSchedule(ctx context.Context, id int64) error
	DeleteSchedule(ctx context.Context, id int64) error
}

// Dispatch hands a firing to the workers. It must not block.
type Dispatch func(models.Firing) bool

type Registry struct {
	store    Store
	sched    *scheduler.Scheduler
	dispatch Dispatch
	now      func() time.Time
	log      *zap.Logger
}

type Option func(*Registry)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func New(store Store, sched *scheduler.Scheduler, dispatch Dispatch, log *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		store:    store,
		sched:    sched,
		dispatch: dispatch,
		now:      time.Now,
		log:      log,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Registry) clock() time.Time {
	return r.now().In(r.sched.Location())
}

// NewSchedule is the input to Add.
type NewSchedule struct {
	Name       string              `json:"name" validate:"required,max=200"`
	TemplateID int64               `json:"template_id" validate:"required,gt=0"`
	Recipients []models.Recipient  `json:"recipients" validate:"required,min=1"`
	Type       models.ScheduleType `json:"schedule_type" validate:"required,oneof=once daily weekly monthly interval"`
	Params     json.RawMessage     `json:"schedule_data" validate:"required"`
}

// Add validates, persists and registers a new schedule. When registration
// fails the row is kept and picked up by the next LoadAll.
func (r *Registry) Add(ctx context.Context, in NewSchedule) (models.ScheduledEmail, error) {
	spec, err := models.DecodeSpec(in.Type, in.Params, r.sched.Location())
	if err != nil {
		return models.ScheduledEmail{}, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}

	recipients := email.Normalize(in.Recipients)
	if len(recipients) == 0 {
		return models.ScheduledEmail{}, fmt.Errorf("%w: no recipients", ErrInvalidSchedule)
	}

	if _, err := r.store.GetTemplate(ctx, in.TemplateID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return models.ScheduledEmail{}, fmt.Errorf("%w: template %d does not exist", ErrInvalidSchedule, in.TemplateID)
		}
		return models.ScheduledEmail{}, err
	}

	now := r.clock()
	next, err := schedule.NextRun(spec, now)
	if err != nil {
		return models.ScheduledEmail{}, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	if _, once := spec.(models.OnceSpec); once && !next.After(now) {
		return models.ScheduledEmail{}, fmt.Errorf("%w: datetime %s is in the past", ErrInvalidSchedule, next.Format(time.RFC3339))
	}

	s := models.ScheduledEmail{
		Name:       in.Name,
		TemplateID: in.TemplateID,
		Recipients: recipients,
		Spec:       spec,
		NextRun:    &next,
	}
	if err := r.store.CreateSchedule(ctx, &s); err != nil {
		return models.ScheduledEmail{}, err
	}

	if err := r.Register(s); err != nil {
		r.log.Error("failed to register schedule",
			zap.Int64("schedule_id", s.ID),
			zap.Error(err),
		)
	} else {
		r.log.Info("schedule added",
			zap.Int64("schedule_id", s.ID),
			zap.String("rule", schedule.Describe(spec)),
			zap.Time("next_run", next),
		)
	}
	return s, nil
}

// LoadAll registers a job for every active schedule and returns how many
// were registered or dispatched. Rows that fail are logged and skipped.
func (r *Registry) LoadAll(ctx context.Context) (int, error) {
	views, err := r.store.GetActiveSchedules(ctx)
	if err != nil {
		return 0, err
	}

	now := r.clock()
	loaded := 0
	for _, v := range views {
		log := r.log.With(zap.Int64("schedule_id", v.ID))
		if v.Problem != nil {
			log.Error("skipping undecodable schedule", zap.Error(v.Problem))
			continue
		}

		if once, ok := v.Spec.(models.OnceSpec); ok && !once.At.After(now) {
			// missed while the process was down
			log.Warn("once schedule overdue, running now", zap.Time("due", once.At))
			if r.dispatch(models.Firing{ScheduleID: v.ID, FiredAt: now}) {
				loaded++
			}
			continue
		}

		if needsRecompute(v.ScheduledEmail, now) {
			next, err := schedule.NextRun(v.Spec, now)
			if err != nil {
				log.Error("computing next run", zap.Error(err))
				continue
			}
			if err := r.store.UpdateNextRun(ctx, v.ID, next); err != nil {
				log.Error("persisting recomputed next run", zap.Error(err))
			}
			log.Info("next run recomputed", zap.Time("next_run", next))
		}

		if err := r.Register(v.ScheduledEmail); err != nil {
			log.Error("failed to register schedule", zap.Error(err))
			continue
		}
		loaded++
	}

	r.log.Info("schedules loaded", zap.Int("loaded", loaded), zap.Int("active", len(views)))
	return loaded, nil
}

// needsRecompute reports whether a recurring row's stored next run cannot be
// trusted. Interval triggers restart their cadence when registered, so their
// next run is always refreshed.
func needsRecompute(s models.ScheduledEmail, now time.Time) bool {
	switch s.Spec.(type) {
	case models.OnceSpec:
		return false
	case models.IntervalSpec:
		return true
	}
	return s.NextRun == nil || !s.NextRun.After(now)
}

// Register installs or replaces the job for s.
func (r *Registry) Register(s models.ScheduledEmail) error {
	trigger, err := schedule.Trigger(s.Spec)
	if err != nil {
		return err
	}
	r.sched.AddJob(models.JobID(s.ID), trigger, r.fireJob(s.ID))
	metrics.ScheduledJobs.Set(float64(r.sched.Len()))
	return nil
}

// Unregister drops the job for id if there is one.
func (r *Registry) Unregister(id int64) {
	if r.sched.RemoveJob(models.JobID(id)) {
		metrics.ScheduledJobs.Set(float64(r.sched.Len()))
	}
}

func (r *Registry) fireJob(id int64) cron.Job {
	return cron.FuncJob(func() {
		r.dispatch(models.Firing{ScheduleID: id, FiredAt: r.clock()})
	})
}

// Remove unregisters the job and deactivates the row, or deletes it when
// purge is set.
func (r *Registry) Remove(ctx context.Context, id int64, purge bool) error {
	r.Unregister(id)
	if purge {
		return r.store.DeleteSchedule(ctx, id)
	}
	return r.store.DeactivateSchedule(ctx, id)
}

// Pause suspends future firings until Resume or a restart.
func (r *Registry) Pause(id int64) error {
	return r.sched.PauseJob(models.JobID(id))
}

func (r *Registry) Resume(id int64) error {
	return r.sched.ResumeJob(models.JobID(id))
}

// Scheduler statuses reported by Jobs.
const (
	StatusScheduled    = "scheduled"
	StatusPaused       = "paused"
	StatusNotScheduled = "not_scheduled"
)

// JobStatus is one row of the schedule dashboard.
type JobStatus struct {
	db.ScheduleView
	Type        models.ScheduleType `json:"schedule_type,omitempty"`
	Params      json.RawMessage     `json:"schedule_data,omitempty"`
	Description string              `json:"description,omitempty"`
	Status      string              `json:"status"`
	NextFire    *time.Time          `json:"next_fire,omitempty"`
}

// Jobs lists active schedules together with their scheduler state.
func (r *Registry) Jobs(ctx context.Context) ([]JobStatus, error) {
	views, err := r.store.GetActiveSchedules(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]JobStatus, 0, len(views))
	for _, v := range views {
		js := JobStatus{ScheduleView: v, Status: StatusNotScheduled}
		if v.Spec != nil {
			js.Type = v.Spec.Type()
			js.Description = schedule.Describe(v.Spec)
			if raw, err := models.EncodeSpec(v.Spec); err == nil {
				js.Params = raw
			}
		}
		if j, ok := r.sched.GetJob(models.JobID(v.ID)); ok {
			js.Status = StatusScheduled
			if j.Paused {
				js.Status = StatusPaused
			} else if !j.Next.IsZero() {
				next := j.Next
				js.NextFire = &next
			}
		}
		out = append(out, js)
	}
	return out, nil
}

// TypeInfo describes one schedule type and its parameters.
type TypeInfo struct {
	Type        models.ScheduleType `json:"type"`
	Description string              `json:"description"`
	Fields      []string            `json:"fields"`
}

func ScheduleTypes() []TypeInfo {
	return []TypeInfo{
		{models.ScheduleOnce, "Send once at a specific date and time", []string{"datetime"}},
		{models.ScheduleDaily, "Send every day at a specific time", []string{"time"}},
		{models.ScheduleWeekly, "Send every week on a specific day (0=Monday..6=Sunday)", []string{"time", "weekday"}},
		{models.ScheduleMonthly, "Send every month on a specific day; months without it are skipped", []string{"time", "day"}},
		{models.ScheduleInterval, "Send repeatedly after a fixed interval", []string{"interval_type", "interval_value"}},
	}
}
