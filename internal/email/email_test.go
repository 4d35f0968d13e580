package email

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"

	"PulseMail/internal/models"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []models.Message
	fail map[string]error
}

func (f *fakeMailer) Send(_ context.Context, _ models.Account, msg models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[msg.To]; err != nil {
		return err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type memLogs struct {
	logs []models.SendLog
}

func (m *memLogs) RecordSendLog(_ context.Context, l *models.SendLog) error {
	l.ID = int64(len(m.logs) + 1)
	m.logs = append(m.logs, *l)
	return nil
}

func TestPersonalize(t *testing.T) {
	vals := map[string]string{"name": "Ann", "email": "ann@example.com", "company": "Acme"}

	assert.Equal(t, "Hi Ann from Acme", Personalize("Hi {name} from {company}", vals))
	assert.Equal(t, "Ann Ann", Personalize("{name} {name}", vals))
	assert.Equal(t, "Hi {unknown}", Personalize("Hi {unknown}", vals))
	assert.Equal(t, "plain", Personalize("plain", nil))
}

func TestNormalize(t *testing.T) {
	got := Normalize([]models.Recipient{
		{Email: " a@example.com "},
		{Email: ""},
		{Email: "b@example.com", Name: "Bee"},
	})
	require.Len(t, got, 2)
	assert.Equal(t, models.Recipient{Email: "a@example.com", Name: "a@example.com"}, got[0])
	assert.Equal(t, "Bee", got[1].Name)
}

func TestBatchSendContinuesPastFailures(t *testing.T) {
	mailer := &fakeMailer{fail: map[string]error{"bad@example.com": errors.New("550 no such user")}}
	logs := &memLogs{}
	b := &BatchSender{
		Mailer:  mailer,
		Limiter: rate.NewLimiter(rate.Inf, 1),
		Logs:    logs,
		Log:     zaptest.NewLogger(t),
	}
	schedID := int64(3)

	res := b.Send(context.Background(), Batch{
		Account:  models.Account{Email: "ops@example.com"},
		Template: models.EmailTemplate{ID: 9, Subject: "Hi {name}", Body: "Team {team}"},
		Recipients: []models.Recipient{
			{Email: "bad@example.com", Name: "Bad"},
			{Email: "ok@example.com", Name: "Ok", Fields: map[string]string{"team": "ops"}},
		},
		ScheduleID: &schedID,
	})

	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Failed)
	assert.NotEmpty(t, res.BatchID)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "bad@example.com")

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "Hi Ok", mailer.sent[0].Subject)
	assert.Equal(t, "Team ops", mailer.sent[0].Body)

	require.Len(t, logs.logs, 2)
	assert.Equal(t, models.StatusFailed, logs.logs[0].Status)
	assert.Equal(t, "550 no such user", logs.logs[0].ErrorMsg)
	assert.Equal(t, models.StatusSent, logs.logs[1].Status)
	for _, l := range logs.logs {
		assert.Equal(t, res.BatchID, l.BatchID)
		require.NotNil(t, l.ScheduleID)
		assert.Equal(t, schedID, *l.ScheduleID)
		require.NotNil(t, l.TemplateID)
		assert.Equal(t, int64(9), *l.TemplateID)
	}
}

func TestBatchSendCancelledLimiter(t *testing.T) {
	logs := &memLogs{}
	b := &BatchSender{
		Mailer:  &fakeMailer{},
		Limiter: rate.NewLimiter(rate.Limit(0.001), 1),
		Logs:    logs,
		Log:     zaptest.NewLogger(t),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := b.Send(ctx, Batch{
		Account:    models.Account{Email: "ops@example.com"},
		Template:   models.EmailTemplate{Subject: "s", Body: "b"},
		Recipients: []models.Recipient{{Email: "a@example.com"}, {Email: "b@example.com"}},
	})
	assert.Equal(t, 2, res.Failed)
	assert.Len(t, logs.logs, 2)
}

func TestBuildMessage(t *testing.T) {
	m := buildMessage(
		models.Account{Name: "Ops", Email: "ops@example.com"},
		models.Message{To: "a@example.com", Subject: "Report", Body: "<b>hi</b>", IsHTML: true},
	)

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "To: a@example.com")
	assert.Contains(t, raw, "Subject: Report")
	assert.Contains(t, raw, "text/html")
	assert.Contains(t, raw, "<ops@example.com>")
}
