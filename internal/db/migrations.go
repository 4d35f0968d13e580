package db

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// Template ids on scheduled_emails carry no foreign key: deleting a template
// leaves its schedules in place, and they are skipped at execution time.
var sqliteMigrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS email_accounts (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL,
	email       TEXT NOT NULL UNIQUE,
	smtp_server TEXT NOT NULL,
	smtp_port   INTEGER NOT NULL,
	imap_server TEXT NOT NULL DEFAULT '',
	imap_port   INTEGER NOT NULL DEFAULT 993,
	is_active   INTEGER NOT NULL DEFAULT 1,
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS email_templates (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	subject    TEXT NOT NULL,
	body       TEXT NOT NULL,
	is_html    INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS email_logs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	sender_email    TEXT NOT NULL,
	recipient_email TEXT NOT NULL,
	subject         TEXT NOT NULL,
	body            TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL,
	error_message   TEXT NOT NULL DEFAULT '',
	template_id     INTEGER REFERENCES email_templates(id) ON DELETE SET NULL,
	schedule_id     INTEGER,
	batch_id        TEXT NOT NULL DEFAULT '',
	sent_at         DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS scheduled_emails (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL,
	template_id   INTEGER NOT NULL,
	recipients    TEXT NOT NULL,
	schedule_type TEXT NOT NULL,
	schedule_data TEXT NOT NULL,
	next_run      DATETIME,
	is_active     INTEGER NOT NULL DEFAULT 1,
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS contacts (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	name            TEXT NOT NULL,
	email           TEXT NOT NULL UNIQUE,
	additional_data TEXT NOT NULL DEFAULT '{}',
	created_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS attachments (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	filename     TEXT NOT NULL,
	file_path    TEXT NOT NULL,
	sender_email TEXT NOT NULL,
	file_size    INTEGER NOT NULL DEFAULT 0,
	mime_type    TEXT NOT NULL DEFAULT '',
	received_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS auto_reply_rules (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL,
	keywords    TEXT NOT NULL,
	template_id INTEGER NOT NULL REFERENCES email_templates(id) ON DELETE CASCADE,
	is_active   INTEGER NOT NULL DEFAULT 1,
	created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scheduled_emails_active ON scheduled_emails(is_active, next_run);
CREATE INDEX IF NOT EXISTS idx_email_logs_sent_at ON email_logs(sent_at);
CREATE INDEX IF NOT EXISTS idx_attachments_received_at ON attachments(received_at);
`,
	},
}

var postgresMigrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS email_accounts (
	id          BIGSERIAL PRIMARY KEY,
	name        TEXT NOT NULL,
	email       TEXT NOT NULL UNIQUE,
	smtp_server TEXT NOT NULL,
	smtp_port   INTEGER NOT NULL,
	imap_server TEXT NOT NULL DEFAULT '',
	imap_port   INTEGER NOT NULL DEFAULT 993,
	is_active   BOOLEAN NOT NULL DEFAULT TRUE,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS email_templates (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	subject    TEXT NOT NULL,
	body       TEXT NOT NULL,
	is_html    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS email_logs (
	id              BIGSERIAL PRIMARY KEY,
	sender_email    TEXT NOT NULL,
	recipient_email TEXT NOT NULL,
	subject         TEXT NOT NULL,
	body            TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL,
	error_message   TEXT NOT NULL DEFAULT '',
	template_id     BIGINT REFERENCES email_templates(id) ON DELETE SET NULL,
	schedule_id     BIGINT,
	batch_id        TEXT NOT NULL DEFAULT '',
	sent_at         TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS scheduled_emails (
	id            BIGSERIAL PRIMARY KEY,
	name          TEXT NOT NULL,
	template_id   BIGINT NOT NULL,
	recipients    TEXT NOT NULL,
	schedule_type TEXT NOT NULL,
	schedule_data TEXT NOT NULL,
	next_run      TIMESTAMPTZ,
	is_active     BOOLEAN NOT NULL DEFAULT TRUE,
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS contacts (
	id              BIGSERIAL PRIMARY KEY,
	name            TEXT NOT NULL,
	email           TEXT NOT NULL UNIQUE,
	additional_data TEXT NOT NULL DEFAULT '{}',
	created_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS attachments (
	id           BIGSERIAL PRIMARY KEY,
	filename     TEXT NOT NULL,
	file_path    TEXT NOT NULL,
	sender_email TEXT NOT NULL,
	file_size    BIGINT NOT NULL DEFAULT 0,
	mime_type    TEXT NOT NULL DEFAULT '',
	received_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS auto_reply_rules (
	id          BIGSERIAL PRIMARY KEY,
	name        TEXT NOT NULL,
	keywords    TEXT NOT NULL,
	template_id BIGINT NOT NULL REFERENCES email_templates(id) ON DELETE CASCADE,
	is_active   BOOLEAN NOT NULL DEFAULT TRUE,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scheduled_emails_active ON scheduled_emails(is_active, next_run);
CREATE INDEX IF NOT EXISTS idx_email_logs_sent_at ON email_logs(sent_at);
CREATE INDEX IF NOT EXISTS idx_attachments_received_at ON attachments(received_at);
`,
	},
}
