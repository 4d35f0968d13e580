package models

import "time"

type SendStatus string

const (
	StatusSent   SendStatus = "sent"
	StatusFailed SendStatus = "failed"
)

// SendLog is one delivery attempt to one recipient.
type SendLog struct {
	ID           int64      `json:"id" db:"id"`
	SenderEmail  string     `json:"sender_email" db:"sender_email"`
	To           string     `json:"recipient_email" db:"recipient_email"`
	Subject      string     `json:"subject" db:"subject"`
	Body         string     `json:"body" db:"body"`
	Status       SendStatus `json:"status" db:"status"`
	ErrorMsg     string     `json:"error_message,omitempty" db:"error_message"`
	TemplateID   *int64     `json:"template_id,omitempty" db:"template_id"`
	TemplateName *string    `json:"template_name,omitempty" db:"template_name"`
	ScheduleID   *int64     `json:"schedule_id,omitempty" db:"schedule_id"`
	BatchID      string     `json:"batch_id,omitempty" db:"batch_id"`
	SentAt       time.Time  `json:"sent_at" db:"sent_at"`
}

// Message is a rendered email ready for delivery.
type Message struct {
	To          string
	Subject     string
	Body        string
	IsHTML      bool
	Attachments []string
}

// BatchResult aggregates the outcome of a batch send.
type BatchResult struct {
	BatchID string   `json:"batch_id"`
	Sent    int      `json:"sent"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}
