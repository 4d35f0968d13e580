package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"PulseMail/internal/models"
)

type scheduleRow struct {
	ID           int64      `db:"id"`
	Name         string     `db:"name"`
	TemplateID   int64      `db:"template_id"`
	Recipients   string     `db:"recipients"`
	ScheduleType string     `db:"schedule_type"`
	ScheduleData string     `db:"schedule_data"`
	NextRun      *time.Time `db:"next_run"`
	Active       bool       `db:"is_active"`
	CreatedAt    time.Time  `db:"created_at"`
}

// ScheduleView is a schedule joined with its template for listings. Problem
// is set when the stored row can no longer be decoded.
type ScheduleView struct {
	models.ScheduledEmail
	TemplateName    string `json:"template_name"`
	TemplateSubject string `json:"template_subject"`
	Problem         error  `json:"-"`
}

const scheduleColumns = `se.id, se.name, se.template_id, se.recipients, se.schedule_type,
	se.schedule_data, se.next_run, se.is_active, se.created_at`

func (s *Store) toSchedule(r scheduleRow) (models.ScheduledEmail, error) {
	out := models.ScheduledEmail{
		ID:         r.ID,
		Name:       r.Name,
		TemplateID: r.TemplateID,
		NextRun:    s.localPtr(r.NextRun),
		Active:     r.Active,
		CreatedAt:  s.local(r.CreatedAt),
	}
	if err := json.Unmarshal([]byte(r.Recipients), &out.Recipients); err != nil {
		return out, fmt.Errorf("schedule %d: decoding recipients: %w", r.ID, err)
	}
	spec, err := models.DecodeSpec(models.ScheduleType(r.ScheduleType), []byte(r.ScheduleData), s.loc)
	if err != nil {
		return out, fmt.Errorf("schedule %d: %w", r.ID, err)
	}
	out.Spec = spec
	return out, nil
}

// CreateSchedule inserts sched and sets its ID and CreatedAt.
func (s *Store) CreateSchedule(ctx context.Context, sched *models.ScheduledEmail) error {
	recipients, err := json.Marshal(sched.Recipients)
	if err != nil {
		return fmt.Errorf("encoding recipients: %w", err)
	}
	data, err := models.EncodeSpec(sched.Spec)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	id, err := s.insertID(ctx, `
		INSERT INTO scheduled_emails (
			name, template_id, recipients, schedule_type, schedule_data,
			next_run, is_active, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sched.Name, sched.TemplateID, string(recipients), string(sched.Spec.Type()), string(data),
		utcPtr(sched.NextRun), true, now,
	)
	if err != nil {
		return fmt.Errorf("creating schedule: %w", err)
	}

	sched.ID = id
	sched.Active = true
	sched.CreatedAt = s.local(now)
	return nil
}

// GetActiveSchedules returns every active schedule ordered by next run. Rows
// whose template has been deleted are included with empty template fields.
func (s *Store) GetActiveSchedules(ctx context.Context) ([]ScheduleView, error) {
	type row struct {
		scheduleRow
		TemplateName    sql.NullString `db:"template_name"`
		TemplateSubject sql.NullString `db:"template_subject"`
	}

	var rows []row
	err := s.DB.SelectContext(ctx, &rows, s.q(`
		SELECT `+scheduleColumns+`, et.name AS template_name, et.subject AS template_subject
		FROM scheduled_emails se
		LEFT JOIN email_templates et ON se.template_id = et.id
		WHERE se.is_active = ?
		ORDER BY se.next_run, se.id`), true)
	if err != nil {
		return nil, fmt.Errorf("listing schedules: %w", err)
	}

	views := make([]ScheduleView, 0, len(rows))
	for _, r := range rows {
		sched, err := s.toSchedule(r.scheduleRow)
		views = append(views, ScheduleView{
			ScheduledEmail:  sched,
			TemplateName:    r.TemplateName.String,
			TemplateSubject: r.TemplateSubject.String,
			Problem:         err,
		})
	}
	return views, nil
}

// GetSchedule returns a schedule regardless of its active flag.
func (s *Store) GetSchedule(ctx context.Context, id int64) (models.ScheduledEmail, error) {
	var r scheduleRow
	err := s.DB.GetContext(ctx, &r, s.q(`SELECT `+scheduleColumns+` FROM scheduled_emails se WHERE se.id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ScheduledEmail{}, ErrNotFound
	}
	if err != nil {
		return models.ScheduledEmail{}, fmt.Errorf("getting schedule %d: %w", id, err)
	}
	return s.toSchedule(r)
}

// GetScheduleForRun reads an active schedule joined with its template.
// A missing row, an inactive row or a deleted template all yield ErrNotFound.
func (s *Store) GetScheduleForRun(ctx context.Context, id int64) (models.ScheduledEmail, models.EmailTemplate, error) {
	type row struct {
		scheduleRow
		TSubject string    `db:"t_subject"`
		TBody    string    `db:"t_body"`
		TIsHTML  bool      `db:"t_is_html"`
		TName    string    `db:"t_name"`
		TCreated time.Time `db:"t_created_at"`
		TUpdated time.Time `db:"t_updated_at"`
	}

	var r row
	err := s.DB.GetContext(ctx, &r, s.q(`
		SELECT `+scheduleColumns+`,
			et.name AS t_name, et.subject AS t_subject, et.body AS t_body, et.is_html AS t_is_html,
			et.created_at AS t_created_at, et.updated_at AS t_updated_at
		FROM scheduled_emails se
		JOIN email_templates et ON se.template_id = et.id
		WHERE se.id = ? AND se.is_active = ?`), id, true)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ScheduledEmail{}, models.EmailTemplate{}, ErrNotFound
	}
	if err != nil {
		return models.ScheduledEmail{}, models.EmailTemplate{}, fmt.Errorf("getting schedule %d: %w", id, err)
	}

	sched, err := s.toSchedule(r.scheduleRow)
	if err != nil {
		return models.ScheduledEmail{}, models.EmailTemplate{}, err
	}
	tmpl := models.EmailTemplate{
		ID:        r.TemplateID,
		Name:      r.TName,
		Subject:   r.TSubject,
		Body:      r.TBody,
		IsHTML:    r.TIsHTML,
		CreatedAt: s.local(r.TCreated),
		UpdatedAt: s.local(r.TUpdated),
	}
	return sched, tmpl, nil
}

func (s *Store) UpdateNextRun(ctx context.Context, id int64, next time.Time) error {
	err := affected(s.DB.ExecContext(ctx, s.q(`UPDATE scheduled_emails SET next_run = ? WHERE id = ?`), next.UTC(), id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("updating next run of schedule %d: %w", id, err)
	}
	return err
}

func (s *Store) DeactivateSchedule(ctx context.Context, id int64) error {
	err := affected(s.DB.ExecContext(ctx, s.q(`UPDATE scheduled_emails SET is_active = ? WHERE id = ?`), false, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("deactivating schedule %d: %w", id, err)
	}
	return err
}

func (s *Store) DeleteSchedule(ctx context.Context, id int64) error {
	err := affected(s.DB.ExecContext(ctx, s.q(`DELETE FROM scheduled_emails WHERE id = ?`), id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("deleting schedule %d: %w", id, err)
	}
	return err
}
