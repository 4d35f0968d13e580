// Package executor runs a due schedule: it sends the batch and then either
// retires a one-shot schedule or advances a recurring one.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"PulseMail/internal/db"
	"PulseMail/internal/email"
	"PulseMail/internal/metrics"
	"PulseMail/internal/models"
	"PulseMail/internal/schedule"
)

type Store interface {
	GetScheduleForRun(ctx context.Context, id int64) (models.ScheduledEmail, models.EmailTemplate, error)
	GetActiveAccount(ctx context.Context) (models.Account, error)
	UpdateNextRun(ctx context.Context, id int64, next time.Time) error
	DeactivateSchedule(ctx context.Context, id int64) error
}

type Sender interface {
	Send(ctx context.Context, batch email.Batch) models.BatchResult
}

// Unregisterer drops the live job of a retired schedule.
type Unregisterer interface {
	Unregister(id int64)
}

type Executor struct {
	Store    Store
	Sender   Sender
	Registry Unregisterer
	Loc      *time.Location
	Log      *zap.Logger
}

// Execute handles one firing. Errors and panics are logged, never returned.
// The batch runs to completion even if ctx is cancelled mid-way.
func (e *Executor) Execute(ctx context.Context, f models.Firing) {
	ctx = context.WithoutCancel(ctx)
	log := e.Log.With(zap.Int64("schedule_id", f.ScheduleID))

	defer func() {
		if p := recover(); p != nil {
			metrics.ScheduleExecutions.WithLabelValues(metrics.ResultError).Inc()
			log.Error("schedule execution panicked", zap.Any("panic", p), zap.Stack("stack"))
		}
	}()

	result, err := e.run(ctx, f, log)
	if err != nil {
		log.Error("schedule execution failed", zap.Error(err))
	}
	metrics.ScheduleExecutions.WithLabelValues(result).Inc()
}

func (e *Executor) run(ctx context.Context, f models.Firing, log *zap.Logger) (string, error) {
	sched, tmpl, err := e.Store.GetScheduleForRun(ctx, f.ScheduleID)
	if errors.Is(err, db.ErrNotFound) {
		log.Warn("schedule missing, inactive or without template, skipping")
		return metrics.ResultSkipped, nil
	}
	if err != nil {
		return metrics.ResultError, err
	}

	account, err := e.Store.GetActiveAccount(ctx)
	if errors.Is(err, db.ErrNotFound) {
		return metrics.ResultError, errors.New("no active email account configured")
	}
	if err != nil {
		return metrics.ResultError, err
	}

	recipients := email.Normalize(sched.Recipients)
	if len(recipients) == 0 {
		return metrics.ResultError, errors.New("schedule has no recipients")
	}

	id := sched.ID
	res := e.Sender.Send(ctx, email.Batch{
		Account:    account,
		Template:   tmpl,
		Recipients: recipients,
		ScheduleID: &id,
	})
	log.Info("scheduled batch sent",
		zap.String("name", sched.Name),
		zap.String("batch_id", res.BatchID),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
	)

	if _, once := sched.Spec.(models.OnceSpec); once {
		e.Registry.Unregister(id)
		if err := e.Store.DeactivateSchedule(ctx, id); err != nil {
			return metrics.ResultError, fmt.Errorf("deactivating: %w", err)
		}
		log.Info("once schedule completed")
		return metrics.ResultOK, nil
	}

	firedAt := f.FiredAt
	if e.Loc != nil {
		firedAt = firedAt.In(e.Loc)
	}
	next, err := schedule.NextRun(sched.Spec, firedAt)
	if err != nil {
		return metrics.ResultError, err
	}
	if err := e.Store.UpdateNextRun(ctx, id, next); err != nil {
		return metrics.ResultError, fmt.Errorf("advancing next run: %w", err)
	}
	log.Debug("next run advanced", zap.Time("next_run", next))
	return metrics.ResultOK, nil
}
