package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"PulseMail/internal/models"
)

const accountColumns = `id, name, email, smtp_server, smtp_port, imap_server, imap_port, is_active, created_at`

func secretKey(email string) string {
	return "account:" + email
}

// CreateAccount inserts a and stores its password in the vault.
func (s *Store) CreateAccount(ctx context.Context, a *models.Account) error {
	if s.vault == nil {
		return errors.New("no credential vault configured")
	}
	if err := s.vault.Set(secretKey(a.Email), a.Password); err != nil {
		return fmt.Errorf("storing password for %s: %w", a.Email, err)
	}

	now := time.Now().UTC()
	id, err := s.insertID(ctx, `
		INSERT INTO email_accounts (name, email, smtp_server, smtp_port, imap_server, imap_port, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Name, a.Email, a.SMTPHost, a.SMTPPort, a.IMAPHost, a.IMAPPort, true, now,
	)
	if err != nil {
		_ = s.vault.Delete(secretKey(a.Email))
		return fmt.Errorf("creating account %s: %w", a.Email, err)
	}
	a.ID = id
	a.Active = true
	a.CreatedAt = s.local(now)
	return nil
}

// ListAccounts returns every account without passwords.
func (s *Store) ListAccounts(ctx context.Context) ([]models.Account, error) {
	var out []models.Account
	if err := s.DB.SelectContext(ctx, &out, `SELECT `+accountColumns+` FROM email_accounts ORDER BY id`); err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	for i := range out {
		out[i].CreatedAt = s.local(out[i].CreatedAt)
	}
	return out, nil
}

// GetActiveAccount returns the first active account with its password
// filled in. ErrNotFound means no account is configured.
func (s *Store) GetActiveAccount(ctx context.Context) (models.Account, error) {
	var a models.Account
	err := s.DB.GetContext(ctx, &a, s.q(`
		SELECT `+accountColumns+` FROM email_accounts
		WHERE is_active = ? ORDER BY id LIMIT 1`), true)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	if err != nil {
		return a, fmt.Errorf("getting active account: %w", err)
	}
	a.CreatedAt = s.local(a.CreatedAt)

	if s.vault == nil {
		return a, errors.New("no credential vault configured")
	}
	a.Password, err = s.vault.Get(secretKey(a.Email))
	if err != nil {
		return a, fmt.Errorf("reading password for %s: %w", a.Email, err)
	}
	return a, nil
}

// DeleteAccount removes the account row and its stored password.
func (s *Store) DeleteAccount(ctx context.Context, id int64) error {
	var addr string
	err := s.DB.GetContext(ctx, &addr, s.q(`SELECT email FROM email_accounts WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("getting account %d: %w", id, err)
	}
	if err := affected(s.DB.ExecContext(ctx, s.q(`DELETE FROM email_accounts WHERE id = ?`), id)); err != nil {
		return fmt.Errorf("deleting account %d: %w", id, err)
	}
	if s.vault != nil {
		_ = s.vault.Delete(secretKey(addr))
	}
	return nil
}
