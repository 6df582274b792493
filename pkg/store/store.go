package store

import (
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the Postgres-backed persistence layer: session projections as
// JSONB documents, session-to-identity routing, and the contact address book.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres and ensures the schema exists.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(10 * time.Minute)
	db.SetConnMaxIdleTime(3 * time.Minute)
	if err = db.Ping(); err != nil {
		return nil, err
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			doc_id TEXT NOT NULL,
			data JSONB NOT NULL DEFAULT '{}'::jsonb,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (collection, doc_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_data ON documents USING gin (data)`,
		`CREATE TABLE IF NOT EXISTS session_routing (
			session_id TEXT PRIMARY KEY,
			jid TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS contacts (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			phone VARCHAR(50) UNIQUE NOT NULL,
			notes TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS contact_groups (
			id UUID PRIMARY KEY,
			name VARCHAR(255) UNIQUE NOT NULL,
			network_jid TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS contact_group_members (
			group_id UUID NOT NULL REFERENCES contact_groups(id) ON DELETE CASCADE,
			phone VARCHAR(50) NOT NULL,
			PRIMARY KEY (group_id, phone)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_group_members_group ON contact_group_members(group_id)`,
	}
	for _, stmt := range statements {
		if _, err = db.Exec(stmt); err != nil {
			return nil, err
		}
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying pool for components that manage their own schema,
// such as the chat library's device store.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }
