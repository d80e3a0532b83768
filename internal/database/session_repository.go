package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/engdrill/pkg/models"
)

// SessionRepository handles database operations for drill sessions
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new repository instance
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

type sessionRow struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	MistakeIDs string    `db:"mistake_ids"`
	CreatedAt  time.Time `db:"created_at"`
	ExpiresAt  time.Time `db:"expires_at"`
}

// Create inserts a new session
func (r *SessionRepository) Create(ctx context.Context, s *models.DrillSession) error {
	ids, err := json.Marshal(s.MistakeIDs)
	if err != nil {
		return fmt.Errorf("failed to encode session mistakes: %w", err)
	}
	query := r.db.Rebind(`
		INSERT INTO drill_sessions (id, user_id, mistake_ids, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if _, err := r.db.ExecContext(ctx, query, s.ID, s.UserID, string(ids), s.CreatedAt, s.ExpiresAt); err != nil {
		return fmt.Errorf("failed to create drill session: %w", err)
	}
	return nil
}

// GetByID returns a session owned by userID
func (r *SessionRepository) GetByID(ctx context.Context, id, userID string) (*models.DrillSession, error) {
	var row sessionRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind("SELECT * FROM drill_sessions WHERE id = ? AND user_id = ?"), id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get drill session: %w", err)
	}

	s := &models.DrillSession{
		ID:        row.ID,
		UserID:    row.UserID,
		CreatedAt: row.CreatedAt,
		ExpiresAt: row.ExpiresAt,
	}
	if err := json.Unmarshal([]byte(row.MistakeIDs), &s.MistakeIDs); err != nil {
		return nil, fmt.Errorf("failed to decode session mistakes: %w", err)
	}
	return s, nil
}

// DeleteExpired removes sessions that expired before cutoff
func (r *SessionRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM drill_sessions WHERE expires_at <= ?"), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}
