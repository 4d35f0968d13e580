package db

import (
	"context"
	"fmt"
	"time"

	"PulseMail/internal/models"
)

// RecordSendLog appends one delivery attempt.
func (s *Store) RecordSendLog(ctx context.Context, l *models.SendLog) error {
	if l.SentAt.IsZero() {
		l.SentAt = time.Now()
	}
	id, err := s.insertID(ctx, `
		INSERT INTO email_logs (
			sender_email, recipient_email, subject, body, status, error_message,
			template_id, schedule_id, batch_id, sent_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.SenderEmail, l.To, l.Subject, l.Body, string(l.Status), l.ErrorMsg,
		l.TemplateID, l.ScheduleID, l.BatchID, l.SentAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording send log for %s: %w", l.To, err)
	}
	l.ID = id
	return nil
}

// ListSendLogs returns the newest logs first.
func (s *Store) ListSendLogs(ctx context.Context, limit int) ([]models.SendLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []models.SendLog
	err := s.DB.SelectContext(ctx, &out, s.q(`
		SELECT el.id, el.sender_email, el.recipient_email, el.subject, el.body, el.status,
			el.error_message, el.template_id, et.name AS template_name, el.schedule_id,
			el.batch_id, el.sent_at
		FROM email_logs el
		LEFT JOIN email_templates et ON el.template_id = et.id
		ORDER BY el.sent_at DESC, el.id DESC
		LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("listing send logs: %w", err)
	}
	for i := range out {
		out[i].SentAt = s.local(out[i].SentAt)
	}
	return out, nil
}

// ScheduleLogs returns every log written for one schedule, oldest first.
func (s *Store) ScheduleLogs(ctx context.Context, scheduleID int64) ([]models.SendLog, error) {
	var out []models.SendLog
	err := s.DB.SelectContext(ctx, &out, s.q(`
		SELECT id, sender_email, recipient_email, subject, body, status, error_message,
			template_id, schedule_id, batch_id, sent_at
		FROM email_logs WHERE schedule_id = ? ORDER BY id`), scheduleID)
	if err != nil {
		return nil, fmt.Errorf("listing logs of schedule %d: %w", scheduleID, err)
	}
	for i := range out {
		out[i].SentAt = s.local(out[i].SentAt)
	}
	return out, nil
}
