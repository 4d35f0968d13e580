package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"PulseMail/internal/csvparser"
	"PulseMail/internal/db"
	"PulseMail/internal/email"
	"PulseMail/internal/models"
	"PulseMail/internal/registry"
	"PulseMail/internal/scheduler"
)

// SMTPChecker verifies SMTP credentials.
type SMTPChecker interface {
	Ping(from models.Account) error
}

// Mailbox is the IMAP side used for connection tests and inbox listing.
type Mailbox interface {
	Ping(ctx context.Context, account models.Account) error
	FetchRecent(ctx context.Context, account models.Account, limit int) ([]models.InboxMessage, error)
}

type Handler struct {
	Store    *db.Store
	Registry *registry.Registry
	Sender   *email.BatchSender
	SMTP     SMTPChecker
	Mailbox  Mailbox
	Validate *validator.Validate
	Log      *zap.Logger

	// AttachmentsDir is the only directory /send may attach files from.
	// Empty disables attachments.
	AttachmentsDir string
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /schedules", h.CreateSchedule)
	mux.HandleFunc("GET /schedules", h.ListSchedules)
	mux.HandleFunc("DELETE /schedules/{id}", h.DeleteSchedule)
	mux.HandleFunc("POST /schedules/{id}/pause", h.PauseSchedule)
	mux.HandleFunc("POST /schedules/{id}/resume", h.ResumeSchedule)
	mux.HandleFunc("GET /schedule-types", h.ScheduleTypes)

	mux.HandleFunc("POST /templates", h.CreateTemplate)
	mux.HandleFunc("GET /templates", h.ListTemplates)
	mux.HandleFunc("PUT /templates/{id}", h.UpdateTemplate)
	mux.HandleFunc("DELETE /templates/{id}", h.DeleteTemplate)

	mux.HandleFunc("POST /accounts", h.CreateAccount)
	mux.HandleFunc("GET /accounts", h.ListAccounts)
	mux.HandleFunc("POST /accounts/test", h.TestAccount)

	mux.HandleFunc("POST /contacts/import", h.ImportContacts)
	mux.HandleFunc("GET /contacts", h.ListContacts)

	mux.HandleFunc("POST /rules", h.CreateRule)
	mux.HandleFunc("GET /rules", h.ListRules)

	mux.HandleFunc("GET /logs", h.ListLogs)
	mux.HandleFunc("GET /attachments", h.ListAttachments)
	mux.HandleFunc("GET /inbox", h.ListInbox)

	mux.HandleFunc("POST /send", h.SendEmail)

	return mux
}

// decode reads a JSON body into dst and validates it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		fail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	if err := h.Validate.Struct(dst); err != nil {
		fail(w, http.StatusBadRequest, "validation error: "+err.Error())
		return false
	}
	return true
}

func (h *Handler) internal(w http.ResponseWriter, msg string, err error) {
	h.Log.Error(msg, zap.Error(err))
	fail(w, http.StatusInternalServerError, "internal server error")
}

// ---- schedules

func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var in registry.NewSchedule
	if !h.decode(w, r, &in) {
		return
	}

	s, err := h.Registry.Add(r.Context(), in)
	if errors.Is(err, registry.ErrInvalidSchedule) {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.internal(w, "failed to create schedule", err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Registry.Jobs(r.Context())
	if err != nil {
		h.internal(w, "failed to list schedules", err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		fail(w, http.StatusBadRequest, "invalid id")
		return
	}
	purge := r.URL.Query().Get("purge") == "true"

	err := h.Registry.Remove(r.Context(), id, purge)
	if errors.Is(err, db.ErrNotFound) {
		fail(w, http.StatusNotFound, "schedule not found")
		return
	}
	if err != nil {
		h.internal(w, "failed to remove schedule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) PauseSchedule(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.Registry.Pause)
}

func (h *Handler) ResumeSchedule(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.Registry.Resume)
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request, op func(int64) error) {
	id, ok := pathID(r)
	if !ok {
		fail(w, http.StatusBadRequest, "invalid id")
		return
	}
	err := op(id)
	if errors.Is(err, scheduler.ErrJobNotFound) {
		fail(w, http.StatusNotFound, "schedule is not scheduled")
		return
	}
	if err != nil {
		h.internal(w, "failed to toggle schedule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ScheduleTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, registry.ScheduleTypes())
}

// ---- templates

type templateRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Subject string `json:"subject" validate:"required"`
	Body    string `json:"body" validate:"required"`
	IsHTML  bool   `json:"is_html"`
}

func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !h.decode(w, r, &req) {
		return
	}
	t := models.EmailTemplate{Name: req.Name, Subject: req.Subject, Body: req.Body, IsHTML: req.IsHTML}
	if err := h.Store.CreateTemplate(r.Context(), &t); err != nil {
		h.internal(w, "failed to create template", err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListTemplates(r.Context())
	if err != nil {
		h.internal(w, "failed to list templates", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		fail(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req templateRequest
	if !h.decode(w, r, &req) {
		return
	}
	t := models.EmailTemplate{ID: id, Name: req.Name, Subject: req.Subject, Body: req.Body, IsHTML: req.IsHTML}
	err := h.Store.UpdateTemplate(r.Context(), &t)
	if errors.Is(err, db.ErrNotFound) {
		fail(w, http.StatusNotFound, "template not found")
		return
	}
	if err != nil {
		h.internal(w, "failed to update template", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		fail(w, http.StatusBadRequest, "invalid id")
		return
	}
	err := h.Store.DeleteTemplate(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		fail(w, http.StatusNotFound, "template not found")
		return
	}
	if err != nil {
		h.internal(w, "failed to delete template", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- accounts

type accountRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	SMTPHost string `json:"smtp_server" validate:"required,hostname|ip"`
	SMTPPort int    `json:"smtp_port" validate:"required,min=1,max=65535"`
	IMAPHost string `json:"imap_server" validate:"omitempty,hostname|ip"`
	IMAPPort int    `json:"imap_port" validate:"omitempty,min=1,max=65535"`
}

func (req accountRequest) account() models.Account {
	port := req.IMAPPort
	if port == 0 {
		port = 993
	}
	return models.Account{
		Name: req.Name, Email: req.Email, Password: req.Password,
		SMTPHost: req.SMTPHost, SMTPPort: req.SMTPPort,
		IMAPHost: req.IMAPHost, IMAPPort: port,
	}
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !h.decode(w, r, &req) {
		return
	}
	a := req.account()
	if err := h.Store.CreateAccount(r.Context(), &a); err != nil {
		h.internal(w, "failed to create account", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListAccounts(r.Context())
	if err != nil {
		h.internal(w, "failed to list accounts", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// TestAccount checks SMTP and, when configured, IMAP credentials without
// saving anything.
func (h *Handler) TestAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !h.decode(w, r, &req) {
		return
	}
	a := req.account()

	if err := h.SMTP.Ping(a); err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": false, "message": err.Error()})
		return
	}
	if a.IMAPHost != "" {
		if err := h.Mailbox.Ping(r.Context(), a); err != nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{"ok": false, "message": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "message": "Connection successful"})
}

// ---- contacts

func (h *Handler) ImportContacts(w http.ResponseWriter, r *http.Request) {
	contacts, bad, err := csvparser.ParseContacts(r.Body, h.Validate)
	if err != nil {
		fail(w, http.StatusBadRequest, "invalid csv: "+err.Error())
		return
	}

	n, err := h.Store.UpsertContacts(r.Context(), contacts)
	if err != nil {
		h.internal(w, "failed to import contacts", err)
		return
	}

	errs := make([]string, 0, len(bad))
	for _, e := range bad {
		errs = append(errs, e.String())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"imported": n, "errors": errs})
}

func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListContacts(r.Context())
	if err != nil {
		h.internal(w, "failed to list contacts", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ---- rules

type ruleRequest struct {
	Name       string   `json:"name" validate:"required"`
	Keywords   []string `json:"keywords" validate:"required,min=1,dive,required"`
	TemplateID int64    `json:"template_id" validate:"required,gt=0"`
}

func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if !h.decode(w, r, &req) {
		return
	}
	if _, err := h.Store.GetTemplate(r.Context(), req.TemplateID); errors.Is(err, db.ErrNotFound) {
		fail(w, http.StatusBadRequest, fmt.Sprintf("template %d does not exist", req.TemplateID))
		return
	} else if err != nil {
		h.internal(w, "failed to look up template", err)
		return
	}

	rule := models.AutoReplyRule{Name: req.Name, Keywords: req.Keywords, TemplateID: req.TemplateID}
	if err := h.Store.CreateRule(r.Context(), &rule); err != nil {
		h.internal(w, "failed to create rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListActiveRules(r.Context())
	if err != nil {
		h.internal(w, "failed to list rules", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ---- history and inbox

func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListSendLogs(r.Context(), queryLimit(r, 100))
	if err != nil {
		h.internal(w, "failed to list logs", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListAttachments(r.Context(), queryLimit(r, 100))
	if err != nil {
		h.internal(w, "failed to list attachments", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) ListInbox(w http.ResponseWriter, r *http.Request) {
	account, err := h.Store.GetActiveAccount(r.Context())
	if errors.Is(err, db.ErrNotFound) {
		fail(w, http.StatusConflict, "no active email account configured")
		return
	}
	if err != nil {
		h.internal(w, "failed to load account", err)
		return
	}

	msgs, err := h.Mailbox.FetchRecent(r.Context(), account, queryLimit(r, 50))
	if err != nil {
		h.Log.Warn("inbox fetch failed", zap.Error(err))
		fail(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// ---- immediate send

type sendRequest struct {
	TemplateID  int64              `json:"template_id" validate:"required,gt=0"`
	Recipients  []models.Recipient `json:"recipients" validate:"required,min=1"`
	Attachments []string           `json:"attachments"`
}

func (h *Handler) SendEmail(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	tmpl, err := h.Store.GetTemplate(ctx, req.TemplateID)
	if errors.Is(err, db.ErrNotFound) {
		fail(w, http.StatusBadRequest, "template not found")
		return
	}
	if err != nil {
		h.internal(w, "failed to load template", err)
		return
	}

	account, err := h.Store.GetActiveAccount(ctx)
	if errors.Is(err, db.ErrNotFound) {
		fail(w, http.StatusConflict, "no active email account configured")
		return
	}
	if err != nil {
		h.internal(w, "failed to load account", err)
		return
	}

	recipients := email.Normalize(req.Recipients)
	if len(recipients) == 0 {
		fail(w, http.StatusBadRequest, "no recipients")
		return
	}

	attachments := make([]string, 0, len(req.Attachments))
	for _, name := range req.Attachments {
		path, err := attachmentPath(h.AttachmentsDir, name)
		if err != nil {
			fail(w, http.StatusBadRequest, err.Error())
			return
		}
		attachments = append(attachments, path)
	}

	res := h.Sender.Send(context.WithoutCancel(ctx), email.Batch{
		Account:     account,
		Template:    tmpl,
		Recipients:  recipients,
		Attachments: attachments,
	})
	writeJSON(w, http.StatusOK, res)
}

// attachmentPath resolves name, relative to root, to a file that lives
// inside root after symlinks are followed.
func attachmentPath(root, name string) (string, error) {
	if root == "" {
		return "", errors.New("attachments are disabled")
	}
	if name == "" || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("attachment %q must be relative to the attachments directory", name)
	}
	if outside(filepath.Clean(name)) {
		return "", fmt.Errorf("attachment %q is outside the attachments directory", name)
	}

	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", fmt.Errorf("attachments directory: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(filepath.Join(realRoot, name))
	if err != nil {
		return "", fmt.Errorf("attachment %q not found", name)
	}
	rel, err := filepath.Rel(realRoot, resolved)
	if err != nil || outside(rel) {
		return "", fmt.Errorf("attachment %q is outside the attachments directory", name)
	}
	return resolved, nil
}

func outside(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
