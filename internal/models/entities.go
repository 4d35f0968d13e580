package models

import "time"

type EmailTemplate struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Subject   string    `json:"subject" db:"subject"`
	Body      string    `json:"body" db:"body"`
	IsHTML    bool      `json:"is_html" db:"is_html"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Account is a sending/receiving mailbox. Password is filled from the
// credential vault and never persisted in the accounts table.
type Account struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	SMTPHost  string    `json:"smtp_server" db:"smtp_server"`
	SMTPPort  int       `json:"smtp_port" db:"smtp_port"`
	IMAPHost  string    `json:"imap_server" db:"imap_server"`
	IMAPPort  int       `json:"imap_port" db:"imap_port"`
	Password  string    `json:"-" db:"-"`
	Active    bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Contact struct {
	ID        int64             `json:"id"`
	Name      string            `json:"name"`
	Email     string            `json:"email"`
	Data      map[string]string `json:"additional_data,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Recipient converts the contact into a personalization target.
func (c Contact) Recipient() Recipient {
	return Recipient{Email: c.Email, Name: c.Name, Fields: c.Data}
}

type AutoReplyRule struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Keywords     []string  `json:"keywords"`
	TemplateID   int64     `json:"template_id"`
	TemplateName string    `json:"template_name,omitempty"`
	Active       bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

type Attachment struct {
	ID          int64     `json:"id" db:"id"`
	Filename    string    `json:"filename" db:"filename"`
	FilePath    string    `json:"file_path" db:"file_path"`
	SenderEmail string    `json:"sender_email" db:"sender_email"`
	Size        int64     `json:"file_size" db:"file_size"`
	MIMEType    string    `json:"mime_type" db:"mime_type"`
	ReceivedAt  time.Time `json:"received_at" db:"received_at"`
}

// InboxMessage is a summary of a message in a remote mailbox.
type InboxMessage struct {
	UID     uint32    `json:"uid"`
	From    string    `json:"from"`
	Subject string    `json:"subject"`
	Date    time.Time `json:"date"`
	Preview string    `json:"preview"`
}
