package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"PulseMail/internal/models"
)

type contactRow struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Data      string    `db:"additional_data"`
	CreatedAt time.Time `db:"created_at"`
}

// UpsertContacts inserts contacts, overwriting name and data of addresses
// that already exist. It returns how many rows were written.
func (s *Store) UpsertContacts(ctx context.Context, contacts []models.Contact) (int, error) {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	query := s.q(`
		INSERT INTO contacts (name, email, additional_data, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET
			name = excluded.name,
			additional_data = excluded.additional_data`)

	now := time.Now().UTC()
	n := 0
	for _, c := range contacts {
		data := c.Data
		if data == nil {
			data = map[string]string{}
		}
		raw, err := json.Marshal(data)
		if err != nil {
			return n, fmt.Errorf("encoding data of %s: %w", c.Email, err)
		}
		if _, err := tx.ExecContext(ctx, query, c.Name, c.Email, string(raw), now); err != nil {
			return n, fmt.Errorf("saving contact %s: %w", c.Email, err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

func (s *Store) ListContacts(ctx context.Context) ([]models.Contact, error) {
	var rows []contactRow
	err := s.DB.SelectContext(ctx, &rows, `
		SELECT id, name, email, additional_data, created_at FROM contacts ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("listing contacts: %w", err)
	}

	out := make([]models.Contact, 0, len(rows))
	for _, r := range rows {
		c := models.Contact{ID: r.ID, Name: r.Name, Email: r.Email, CreatedAt: s.local(r.CreatedAt)}
		if r.Data != "" {
			if err := json.Unmarshal([]byte(r.Data), &c.Data); err != nil {
				return nil, fmt.Errorf("decoding data of contact %d: %w", r.ID, err)
			}
		}
		out = append(out, c)
	}
	return out, nil
}
