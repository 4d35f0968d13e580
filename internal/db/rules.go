package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"PulseMail/internal/models"
)

// Keywords are stored comma separated.
func joinKeywords(kw []string) string {
	clean := make([]string, 0, len(kw))
	for _, k := range kw {
		if k = strings.TrimSpace(k); k != "" {
			clean = append(clean, k)
		}
	}
	return strings.Join(clean, ",")
}

func splitKeywords(s string) []string {
	var out []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func (s *Store) CreateRule(ctx context.Context, r *models.AutoReplyRule) error {
	now := time.Now().UTC()
	id, err := s.insertID(ctx, `
		INSERT INTO auto_reply_rules (name, keywords, template_id, is_active, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		r.Name, joinKeywords(r.Keywords), r.TemplateID, true, now,
	)
	if err != nil {
		return fmt.Errorf("creating rule %q: %w", r.Name, err)
	}
	r.ID = id
	r.Active = true
	r.CreatedAt = s.local(now)
	return nil
}

// ListActiveRules returns active rules in creation order.
func (s *Store) ListActiveRules(ctx context.Context) ([]models.AutoReplyRule, error) {
	var rows []struct {
		ID           int64     `db:"id"`
		Name         string    `db:"name"`
		Keywords     string    `db:"keywords"`
		TemplateID   int64     `db:"template_id"`
		TemplateName string    `db:"template_name"`
		Active       bool      `db:"is_active"`
		CreatedAt    time.Time `db:"created_at"`
	}
	err := s.DB.SelectContext(ctx, &rows, s.q(`
		SELECT r.id, r.name, r.keywords, r.template_id, et.name AS template_name,
			r.is_active, r.created_at
		FROM auto_reply_rules r
		JOIN email_templates et ON r.template_id = et.id
		WHERE r.is_active = ?
		ORDER BY r.id`), true)
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}

	out := make([]models.AutoReplyRule, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.AutoReplyRule{
			ID:           r.ID,
			Name:         r.Name,
			Keywords:     splitKeywords(r.Keywords),
			TemplateID:   r.TemplateID,
			TemplateName: r.TemplateName,
			Active:       r.Active,
			CreatedAt:    s.local(r.CreatedAt),
		})
	}
	return out, nil
}
