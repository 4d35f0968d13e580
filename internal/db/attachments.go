package db

import (
	"context"
	"fmt"

	"PulseMail/internal/models"
)

func (s *Store) RecordAttachment(ctx context.Context, a *models.Attachment) error {
	id, err := s.insertID(ctx, `
		INSERT INTO attachments (filename, file_path, sender_email, file_size, mime_type, received_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.Filename, a.FilePath, a.SenderEmail, a.Size, a.MIMEType, a.ReceivedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording attachment %s: %w", a.Filename, err)
	}
	a.ID = id
	return nil
}

// ListAttachments returns the most recently received attachments first.
func (s *Store) ListAttachments(ctx context.Context, limit int) ([]models.Attachment, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []models.Attachment
	err := s.DB.SelectContext(ctx, &out, s.q(`
		SELECT id, filename, file_path, sender_email, file_size, mime_type, received_at
		FROM attachments ORDER BY received_at DESC, id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("listing attachments: %w", err)
	}
	for i := range out {
		out[i].ReceivedAt = s.local(out[i].ReceivedAt)
	}
	return out, nil
}
