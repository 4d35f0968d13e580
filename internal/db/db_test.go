package db

import (
	"context"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PulseMail/internal/credential"
	"PulseMail/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:", credential.NewVault(keyring.NewArrayKeyring(nil)), time.UTC)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedTemplate(t *testing.T, s *Store) models.EmailTemplate {
	t.Helper()
	tmpl := models.EmailTemplate{Name: "welcome", Subject: "Hi {name}", Body: "Hello {name}"}
	require.NoError(t, s.CreateTemplate(context.Background(), &tmpl))
	return tmpl
}

func TestMigrationsAreIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.runMigrations())

	var version int
	require.NoError(t, s.DB.Get(&version, "SELECT MAX(version) FROM schema_version"))
	assert.Equal(t, 1, version)
}

func TestScheduleLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tmpl := seedTemplate(t, s)

	next := time.Date(2024, 1, 16, 9, 0, 0, 0, time.UTC)
	sched := models.ScheduledEmail{
		Name:       "morning",
		TemplateID: tmpl.ID,
		Recipients: []models.Recipient{
			{Email: "a@example.com", Name: "A"},
			{Email: "b@example.com", Name: "b@example.com", Fields: map[string]string{"team": "ops"}},
		},
		Spec:    models.DailySpec{At: models.Clock{Hour: 9}},
		NextRun: &next,
	}
	require.NoError(t, s.CreateSchedule(ctx, &sched))
	require.NotZero(t, sched.ID)
	assert.True(t, sched.Active)

	views, err := s.GetActiveSchedules(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.NoError(t, views[0].Problem)
	assert.Equal(t, "welcome", views[0].TemplateName)
	assert.Equal(t, models.DailySpec{At: models.Clock{Hour: 9}}, views[0].Spec)
	assert.Equal(t, sched.Recipients, views[0].Recipients)
	require.NotNil(t, views[0].NextRun)
	assert.True(t, next.Equal(*views[0].NextRun))

	got, gotTmpl, err := s.GetScheduleForRun(ctx, sched.ID)
	require.NoError(t, err)
	assert.Equal(t, "morning", got.Name)
	assert.Equal(t, "Hi {name}", gotTmpl.Subject)

	later := next.Add(24 * time.Hour)
	require.NoError(t, s.UpdateNextRun(ctx, sched.ID, later))
	got, err = s.GetSchedule(ctx, sched.ID)
	require.NoError(t, err)
	assert.True(t, later.Equal(*got.NextRun))

	require.NoError(t, s.DeactivateSchedule(ctx, sched.ID))
	_, _, err = s.GetScheduleForRun(ctx, sched.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	views, err = s.GetActiveSchedules(ctx)
	require.NoError(t, err)
	assert.Empty(t, views)

	require.NoError(t, s.DeleteSchedule(ctx, sched.ID))
	_, err = s.GetSchedule(ctx, sched.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteSchedule(ctx, sched.ID), ErrNotFound)
	assert.ErrorIs(t, s.UpdateNextRun(ctx, sched.ID, later), ErrNotFound)
}

func TestDeletedTemplateLeavesScheduleUnrunnable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tmpl := seedTemplate(t, s)

	sched := models.ScheduledEmail{
		Name:       "weekly",
		TemplateID: tmpl.ID,
		Recipients: []models.Recipient{{Email: "a@example.com", Name: "a@example.com"}},
		Spec:       models.WeeklySpec{Weekday: 6, At: models.Clock{Hour: 7, Minute: 30}},
	}
	require.NoError(t, s.CreateSchedule(ctx, &sched))
	require.NoError(t, s.DeleteTemplate(ctx, tmpl.ID))

	_, _, err := s.GetScheduleForRun(ctx, sched.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	views, err := s.GetActiveSchedules(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Empty(t, views[0].TemplateName)
	assert.Nil(t, views[0].NextRun)
}

func TestUndecodableScheduleIsReported(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tmpl := seedTemplate(t, s)

	_, err := s.DB.Exec(`
		INSERT INTO scheduled_emails (name, template_id, recipients, schedule_type, schedule_data, is_active, created_at)
		VALUES ('broken', ?, '["a@example.com"]', 'yearly', '{}', 1, ?)`, tmpl.ID, time.Now().UTC())
	require.NoError(t, err)

	views, err := s.GetActiveSchedules(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.ErrorIs(t, views[0].Problem, models.ErrUnknownScheduleType)
}

func TestTemplateCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tmpl := seedTemplate(t, s)

	tmpl.Body = "<p>Hello {name}</p>"
	tmpl.IsHTML = true
	require.NoError(t, s.UpdateTemplate(ctx, &tmpl))

	got, err := s.GetTemplate(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.True(t, got.IsHTML)
	assert.Equal(t, "<p>Hello {name}</p>", got.Body)

	dup := models.EmailTemplate{Name: "welcome", Subject: "x", Body: "y"}
	assert.Error(t, s.CreateTemplate(ctx, &dup), "names are unique")

	list, err := s.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	missing := models.EmailTemplate{ID: 999, Name: "x"}
	assert.ErrorIs(t, s.UpdateTemplate(ctx, &missing), ErrNotFound)
	_, err = s.GetTemplate(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAccountPasswordLivesInVault(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetActiveAccount(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	acc := models.Account{
		Name: "Ops", Email: "ops@example.com", Password: "hunter2",
		SMTPHost: "smtp.example.com", SMTPPort: 587, IMAPHost: "imap.example.com", IMAPPort: 993,
	}
	require.NoError(t, s.CreateAccount(ctx, &acc))

	var stored int
	require.NoError(t, s.DB.Get(&stored, `SELECT COUNT(*) FROM email_accounts WHERE email = 'ops@example.com'`))
	assert.Equal(t, 1, stored)

	got, err := s.GetActiveAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got.Password)
	assert.Equal(t, 587, got.SMTPPort)

	list, err := s.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Password)

	require.NoError(t, s.DeleteAccount(ctx, acc.ID))
	_, err = s.vault.Get(secretKey(acc.Email))
	assert.ErrorIs(t, err, credential.ErrNotFound)
}

func TestSendLogs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tmpl := seedTemplate(t, s)
	schedID := int64(7)

	for _, st := range []models.SendStatus{models.StatusSent, models.StatusFailed} {
		l := models.SendLog{
			SenderEmail: "ops@example.com", To: "a@example.com", Subject: "Hi",
			Status: st, TemplateID: &tmpl.ID, ScheduleID: &schedID, BatchID: "b1",
		}
		if st == models.StatusFailed {
			l.ErrorMsg = "mailbox unavailable"
		}
		require.NoError(t, s.RecordSendLog(ctx, &l))
	}

	logs, err := s.ListSendLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.NotNil(t, logs[0].TemplateName)
	assert.Equal(t, "welcome", *logs[0].TemplateName)

	byID, err := s.ScheduleLogs(ctx, schedID)
	require.NoError(t, err)
	require.Len(t, byID, 2)
	assert.Equal(t, models.StatusSent, byID[0].Status)
	assert.Equal(t, "mailbox unavailable", byID[1].ErrorMsg)
}

func TestContactsUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.UpsertContacts(ctx, []models.Contact{
		{Name: "Ann", Email: "ann@example.com", Data: map[string]string{"city": "Oslo"}},
		{Name: "Bob", Email: "bob@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.UpsertContacts(ctx, []models.Contact{
		{Name: "Ann B", Email: "ann@example.com", Data: map[string]string{"city": "Bergen"}},
	})
	require.NoError(t, err)

	list, err := s.ListContacts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Ann B", list[0].Name)
	assert.Equal(t, "Bergen", list[0].Data["city"])
	assert.Empty(t, list[1].Data)
}

func TestRulesAndAttachments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tmpl := seedTemplate(t, s)

	rule := models.AutoReplyRule{Name: "pricing", Keywords: []string{" price ", "quote", ""}, TemplateID: tmpl.ID}
	require.NoError(t, s.CreateRule(ctx, &rule))

	rules, err := s.ListActiveRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, []string{"price", "quote"}, rules[0].Keywords)
	assert.Equal(t, "welcome", rules[0].TemplateName)

	att := models.Attachment{
		Filename: "report.pdf", FilePath: "/tmp/x_report.pdf", SenderEmail: "a@example.com",
		Size: 42, MIMEType: "application/pdf", ReceivedAt: time.Now(),
	}
	require.NoError(t, s.RecordAttachment(ctx, &att))
	atts, err := s.ListAttachments(ctx, 5)
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, int64(42), atts[0].Size)

	require.NoError(t, s.DeleteTemplate(ctx, tmpl.ID))
	rules, err = s.ListActiveRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)
}
