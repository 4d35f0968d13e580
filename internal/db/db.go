package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

// Secrets stores account passwords outside the database.
type Secrets interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// Store is the durable source of truth for accounts, templates, schedules,
// contacts, rules, attachments and send logs.
type Store struct {
	DB      *sqlx.DB
	dialect dialect
	loc     *time.Location
	vault   Secrets
}

// New opens conn. postgres:// URLs use pgx, anything else is a SQLite
// path (":memory:" for an in-memory database). Times read back are
// converted to loc.
func New(conn string, vault Secrets, loc *time.Location) (*Store, error) {
	if loc == nil {
		loc = time.Local
	}

	s := &Store{loc: loc, vault: vault}

	var err error
	if isPostgres(conn) {
		s.dialect = dialectPostgres
		s.DB, err = sqlx.Open("pgx", conn)
	} else {
		s.dialect = dialectSQLite
		s.DB, err = openSQLite(conn)
	}
	if err != nil {
		return nil, err
	}

	if err := s.DB.Ping(); err != nil {
		s.DB.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		s.DB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func openSQLite(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// One connection: SQLite serializes writers anyway, and each
	// connection to ":memory:" would otherwise see its own database.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return db, nil
}

func isPostgres(conn string) bool {
	c := strings.ToLower(conn)
	return strings.HasPrefix(c, "postgres://") || strings.HasPrefix(c, "postgresql://")
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// Location is the zone times are returned in.
func (s *Store) Location() *time.Location { return s.loc }

// q rewrites ? placeholders for the active driver.
func (s *Store) q(query string) string {
	return s.DB.Rebind(query)
}

func (s *Store) local(t time.Time) time.Time {
	return t.In(s.loc)
}

func (s *Store) localPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	lt := t.In(s.loc)
	return &lt
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (s *Store) runMigrations() error {
	if _, err := s.DB.Exec("CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)"); err != nil {
		return fmt.Errorf("creating schema_version: %w", err)
	}

	current := 0
	if err := s.DB.Get(&current, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	list := sqliteMigrations
	if s.dialect == dialectPostgres {
		list = postgresMigrations
	}

	for _, m := range list {
		if m.version <= current {
			continue
		}
		if _, err := s.DB.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
		if _, err := s.DB.Exec(s.q("INSERT INTO schema_version (version) VALUES (?)"), m.version); err != nil {
			return fmt.Errorf("recording migration v%d: %w", m.version, err)
		}
	}
	return nil
}

// insertID runs an INSERT ... RETURNING id.
func (s *Store) insertID(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	if err := s.DB.QueryRowxContext(ctx, s.q(query+" RETURNING id"), args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// affected turns a zero-row update into ErrNotFound.
func affected(res interface{ RowsAffected() (int64, error) }, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
