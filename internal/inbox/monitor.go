package inbox

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"PulseMail/internal/db"
	"PulseMail/internal/models"
)

type Fetcher interface {
	FetchUnseen(ctx context.Context, account models.Account, since time.Time) ([]RawMessage, error)
}

type AccountSource interface {
	GetActiveAccount(ctx context.Context) (models.Account, error)
}

// Monitor polls for unseen mail every Interval until its context ends.
type Monitor struct {
	Accounts  AccountSource
	Fetcher   Fetcher
	Processor *Processor
	Interval  time.Duration
	Log       *zap.Logger

	lastCheck time.Time
}

func (m *Monitor) Run(ctx context.Context) {
	interval := m.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	if m.lastCheck.IsZero() {
		m.lastCheck = time.Now()
	}

	m.Log.Info("inbox monitoring started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Log.Info("inbox monitoring stopped")
			return
		case <-ticker.C:
			if err := m.Poll(ctx); err != nil {
				m.Log.Warn("inbox poll failed", zap.Error(err))
			}
		}
	}
}

// Poll processes unseen messages received since the previous successful
// poll. Per-message failures are logged and do not fail the poll.
func (m *Monitor) Poll(ctx context.Context) error {
	account, err := m.Accounts.GetActiveAccount(ctx)
	if errors.Is(err, db.ErrNotFound) {
		m.Log.Debug("no active account, skipping inbox poll")
		return nil
	}
	if err != nil {
		return err
	}
	if account.IMAPHost == "" {
		m.Log.Debug("active account has no IMAP server", zap.String("account", account.Email))
		return nil
	}

	started := time.Now()
	since := m.lastCheck
	if since.IsZero() {
		since = started
	}

	msgs, err := m.Fetcher.FetchUnseen(ctx, account, since)
	if err != nil {
		return err
	}

	for _, raw := range msgs {
		msg, err := Parse(raw.Data)
		if err != nil {
			m.Log.Error("parsing message failed", zap.Uint32("uid", raw.UID), zap.Error(err))
			continue
		}
		if err := m.Processor.Process(ctx, account, msg); err != nil {
			m.Log.Error("processing message failed", zap.Uint32("uid", raw.UID), zap.Error(err))
		}
	}

	m.lastCheck = started
	return nil
}
