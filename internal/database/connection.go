package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a row does not exist or belongs to another user
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write would create a second unmastered
	// record for the same (user, type, original text)
	ErrDuplicate = errors.New("duplicate active mistake")
)

// isUniqueViolation reports whether err is a unique constraint failure on either driver
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Options describes how to reach the database
type Options struct {
	Driver string // sqlite3 or postgres
	Path   string // sqlite file path, ":memory:" for tests
	DSN    string // postgres connection string
}

// Connect opens the database and makes sure the schema exists
func Connect(opts Options) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)

	switch opts.Driver {
	case DriverPostgres:
		db, err = sqlx.Connect(DriverPostgres, opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
	case DriverSQLite, "":
		dsn := opts.Path
		if dsn != ":memory:" {
			// Create data directory if it doesn't exist
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
			dsn += "?_busy_timeout=5000"
		}
		db, err = sqlx.Connect(DriverSQLite, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		// SQLite doesn't support multiple writers; one connection also keeps
		// an in-memory database alive between queries.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	if err := InitializeSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// InitializeSchema creates necessary tables if they don't exist
func InitializeSchema(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS mistakes (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			original_text TEXT NOT NULL,
			correction TEXT NOT NULL,
			explanation TEXT NOT NULL DEFAULT '',
			context TEXT NOT NULL DEFAULT '',
			example_usage TEXT NOT NULL DEFAULT '',
			situation_context TEXT,
			severity INTEGER NOT NULL DEFAULT 3,
			frequency INTEGER NOT NULL DEFAULT 1,
			last_occurred TIMESTAMP NOT NULL,
			ease_factor DOUBLE PRECISION NOT NULL DEFAULT 2.5,
			interval_days INTEGER NOT NULL DEFAULT 0,
			practice_count INTEGER NOT NULL DEFAULT 0,
			success_count INTEGER NOT NULL DEFAULT 0,
			failed_practices INTEGER NOT NULL DEFAULT 0,
			mastery_level DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_answer TEXT NOT NULL DEFAULT '',
			last_practiced TIMESTAMP,
			next_practice_date TIMESTAMP NOT NULL,
			status TEXT NOT NULL DEFAULT 'NEW',
			in_drill_queue BOOLEAN NOT NULL DEFAULT TRUE,
			version INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create mistakes table: %w", err)
	}

	// At most one unmastered record per (user, type, original text)
	_, err = db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_mistakes_active_dedup
		ON mistakes (user_id, type, original_text)
		WHERE status <> 'MASTERED'
	`)
	if err != nil {
		return fmt.Errorf("failed to create mistakes dedup index: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_mistakes_due
		ON mistakes (user_id, in_drill_queue, next_practice_date)
	`)
	if err != nil {
		return fmt.Errorf("failed to create mistakes due index: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS drill_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			mistake_ids TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create drill_sessions table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS practice_attempts (
			user_id TEXT NOT NULL,
			idempotency_key TEXT NOT NULL,
			mistake_id TEXT NOT NULL,
			feedback TEXT NOT NULL DEFAULT '',
			applied BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, idempotency_key)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create practice_attempts table: %w", err)
	}

	return nil
}
