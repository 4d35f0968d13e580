// Package inbox polls the active account's mailbox, answers messages that
// match auto-reply rules and stores their attachments.
package inbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"PulseMail/internal/email"
	"PulseMail/internal/metrics"
	"PulseMail/internal/models"
)

type Store interface {
	ListActiveRules(ctx context.Context) ([]models.AutoReplyRule, error)
	GetTemplate(ctx context.Context, id int64) (models.EmailTemplate, error)
	RecordAttachment(ctx context.Context, a *models.Attachment) error
	RecordSendLog(ctx context.Context, l *models.SendLog) error
}

// Processor handles one inbound message at a time.
type Processor struct {
	Store  Store
	Mailer email.Mailer
	Dir    string
	Log    *zap.Logger
	Now    func() time.Time
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Process answers msg with the first matching rule and saves its attachments.
func (p *Processor) Process(ctx context.Context, account models.Account, msg *Message) error {
	if msg.From == "" {
		return fmt.Errorf("message has no sender")
	}

	if !strings.EqualFold(msg.From, account.Email) {
		if err := p.autoReply(ctx, account, msg); err != nil {
			p.Log.Error("auto-reply failed", zap.String("from", msg.From), zap.Error(err))
		}
	}

	for _, part := range msg.Attachments {
		if err := p.saveAttachment(ctx, msg.From, part); err != nil {
			p.Log.Error("saving attachment failed",
				zap.String("from", msg.From),
				zap.String("filename", part.Filename),
				zap.Error(err),
			)
		}
	}
	return nil
}

// MatchRule returns the first rule with a keyword contained in text,
// ignoring case.
func MatchRule(rules []models.AutoReplyRule, text string) (models.AutoReplyRule, bool) {
	lower := strings.ToLower(text)
	for _, r := range rules {
		for _, kw := range r.Keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				return r, true
			}
		}
	}
	return models.AutoReplyRule{}, false
}

func (p *Processor) autoReply(ctx context.Context, account models.Account, msg *Message) error {
	rules, err := p.Store.ListActiveRules(ctx)
	if err != nil {
		return err
	}
	rule, ok := MatchRule(rules, msg.Text+" "+msg.Subject)
	if !ok {
		return nil
	}

	tmpl, err := p.Store.GetTemplate(ctx, rule.TemplateID)
	if err != nil {
		return fmt.Errorf("rule %q: %w", rule.Name, err)
	}

	vals := map[string]string{"email": msg.From, "name": msg.From, "subject": msg.Subject}
	reply := models.Message{
		To:      msg.From,
		Subject: "Re: " + msg.Subject,
		Body:    email.Personalize(tmpl.Body, vals),
		IsHTML:  tmpl.IsHTML,
	}
	sendErr := p.Mailer.Send(ctx, account, reply)

	entry := models.SendLog{
		SenderEmail: account.Email,
		To:          reply.To,
		Subject:     reply.Subject,
		Body:        reply.Body,
		Status:      models.StatusSent,
		TemplateID:  &tmpl.ID,
		SentAt:      p.now(),
	}
	if sendErr != nil {
		entry.Status = models.StatusFailed
		entry.ErrorMsg = sendErr.Error()
		metrics.EmailFailures.Inc()
	} else {
		metrics.EmailsSent.Inc()
		metrics.AutoReplies.Inc()
	}
	if err := p.Store.RecordSendLog(ctx, &entry); err != nil {
		p.Log.Error("failed to record send log", zap.String("to", reply.To), zap.Error(err))
	}
	if sendErr != nil {
		return sendErr
	}

	p.Log.Info("auto-reply sent", zap.String("to", msg.From), zap.String("rule", rule.Name))
	return nil
}

var unsafeChars = regexp.MustCompile(`[^\w\s.-]`)

// SanitizeFilename strips path elements and characters outside word
// characters, spaces, dots and dashes.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.TrimSpace(unsafeChars.ReplaceAllString(name, ""))
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "attachment"
	}
	return name
}

func (p *Processor) saveAttachment(ctx context.Context, from string, part Part) error {
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return err
	}

	name := SanitizeFilename(part.Filename)
	path := filepath.Join(p.Dir, uuid.NewString()+"_"+name)
	if err := os.WriteFile(path, part.Data, 0o644); err != nil {
		return err
	}

	mimeType := part.MIMEType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	a := models.Attachment{
		Filename:    name,
		FilePath:    path,
		SenderEmail: from,
		Size:        int64(len(part.Data)),
		MIMEType:    mimeType,
		ReceivedAt:  p.now(),
	}
	if err := p.Store.RecordAttachment(ctx, &a); err != nil {
		return err
	}
	p.Log.Info("attachment saved", zap.String("filename", name), zap.String("from", from))
	return nil
}
