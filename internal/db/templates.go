package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"PulseMail/internal/models"
)

func (s *Store) CreateTemplate(ctx context.Context, t *models.EmailTemplate) error {
	now := time.Now().UTC()
	id, err := s.insertID(ctx, `
		INSERT INTO email_templates (name, subject, body, is_html, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.Name, t.Subject, t.Body, t.IsHTML, now, now,
	)
	if err != nil {
		return fmt.Errorf("creating template %q: %w", t.Name, err)
	}
	t.ID = id
	t.CreatedAt = s.local(now)
	t.UpdatedAt = t.CreatedAt
	return nil
}

func (s *Store) GetTemplate(ctx context.Context, id int64) (models.EmailTemplate, error) {
	var t models.EmailTemplate
	err := s.DB.GetContext(ctx, &t, s.q(`
		SELECT id, name, subject, body, is_html, created_at, updated_at
		FROM email_templates WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	if err != nil {
		return t, fmt.Errorf("getting template %d: %w", id, err)
	}
	t.CreatedAt = s.local(t.CreatedAt)
	t.UpdatedAt = s.local(t.UpdatedAt)
	return t, nil
}

func (s *Store) ListTemplates(ctx context.Context) ([]models.EmailTemplate, error) {
	var out []models.EmailTemplate
	err := s.DB.SelectContext(ctx, &out, `
		SELECT id, name, subject, body, is_html, created_at, updated_at
		FROM email_templates ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	for i := range out {
		out[i].CreatedAt = s.local(out[i].CreatedAt)
		out[i].UpdatedAt = s.local(out[i].UpdatedAt)
	}
	return out, nil
}

// UpdateTemplate overwrites name, subject, body and format of t.ID.
func (s *Store) UpdateTemplate(ctx context.Context, t *models.EmailTemplate) error {
	now := time.Now().UTC()
	err := affected(s.DB.ExecContext(ctx, s.q(`
		UPDATE email_templates SET name = ?, subject = ?, body = ?, is_html = ?, updated_at = ?
		WHERE id = ?`),
		t.Name, t.Subject, t.Body, t.IsHTML, now, t.ID,
	))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("updating template %d: %w", t.ID, err)
	}
	t.UpdatedAt = s.local(now)
	return nil
}

func (s *Store) DeleteTemplate(ctx context.Context, id int64) error {
	err := affected(s.DB.ExecContext(ctx, s.q(`DELETE FROM email_templates WHERE id = ?`), id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("deleting template %d: %w", id, err)
	}
	return err
}
