package email

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"PulseMail/internal/metrics"
	"PulseMail/internal/models"
)

// LogRecorder persists per-recipient outcomes.
type LogRecorder interface {
	RecordSendLog(ctx context.Context, l *models.SendLog) error
}

// Batch is one template sent to an ordered list of recipients.
type Batch struct {
	Account     models.Account
	Template    models.EmailTemplate
	Recipients  []models.Recipient
	Attachments []string
	ScheduleID  *int64
}

// BatchSender personalizes and delivers a batch one recipient at a time.
// A failed recipient never aborts the rest of the batch.
type BatchSender struct {
	Mailer  Mailer
	Limiter *rate.Limiter
	Logs    LogRecorder
	Log     *zap.Logger
	Now     func() time.Time
}

func (b *BatchSender) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// Send delivers the batch in recipient order and writes one SendLog per
// attempt, all sharing a fresh batch id.
func (b *BatchSender) Send(ctx context.Context, batch Batch) models.BatchResult {
	res := models.BatchResult{BatchID: uuid.NewString()}
	templateID := batch.Template.ID

	for _, r := range batch.Recipients {
		vals := r.Values()
		msg := models.Message{
			To:          r.Email,
			Subject:     Personalize(batch.Template.Subject, vals),
			Body:        Personalize(batch.Template.Body, vals),
			IsHTML:      batch.Template.IsHTML,
			Attachments: batch.Attachments,
		}

		err := b.deliver(ctx, batch.Account, msg)

		entry := models.SendLog{
			SenderEmail: batch.Account.Email,
			To:          r.Email,
			Subject:     msg.Subject,
			Body:        msg.Body,
			Status:      models.StatusSent,
			ScheduleID:  batch.ScheduleID,
			BatchID:     res.BatchID,
			SentAt:      b.now(),
		}
		if templateID != 0 {
			entry.TemplateID = &templateID
		}

		if err != nil {
			entry.Status = models.StatusFailed
			entry.ErrorMsg = err.Error()
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", r.Email, err))
			metrics.EmailFailures.Inc()
			b.Log.Warn("email send failed",
				zap.String("batch_id", res.BatchID),
				zap.String("to", r.Email),
				zap.Error(err),
			)
		} else {
			res.Sent++
			metrics.EmailsSent.Inc()
			b.Log.Debug("email sent",
				zap.String("batch_id", res.BatchID),
				zap.String("to", r.Email),
			)
		}

		if logErr := b.Logs.RecordSendLog(ctx, &entry); logErr != nil {
			b.Log.Error("failed to record send log",
				zap.String("batch_id", res.BatchID),
				zap.String("to", r.Email),
				zap.Error(logErr),
			)
		}
	}

	b.Log.Info("batch finished",
		zap.String("batch_id", res.BatchID),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
	)
	return res
}

func (b *BatchSender) deliver(ctx context.Context, from models.Account, msg models.Message) error {
	if b.Limiter != nil {
		if err := b.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}
	return b.Mailer.Send(ctx, from, msg)
}
