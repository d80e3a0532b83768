package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/engdrill/pkg/models"
)

// AttemptRepository stores idempotency keys of practice results
type AttemptRepository struct {
	db *sqlx.DB
}

// NewAttemptRepository creates a new repository instance
func NewAttemptRepository(db *sqlx.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// Claim reserves an idempotency key. It returns false when the key was
// already claimed by an earlier request of the same user.
func (r *AttemptRepository) Claim(ctx context.Context, a *models.PracticeAttempt) (bool, error) {
	query := r.db.Rebind(`
		INSERT INTO practice_attempts (user_id, idempotency_key, mistake_id, feedback, applied, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, idempotency_key) DO NOTHING
	`)
	result, err := r.db.ExecContext(ctx, query, a.UserID, a.IdempotencyKey, a.MistakeID, a.Feedback, a.Applied, a.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to claim practice attempt: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

// Get returns a claimed attempt
func (r *AttemptRepository) Get(ctx context.Context, userID, key string) (*models.PracticeAttempt, error) {
	var a models.PracticeAttempt
	query := r.db.Rebind("SELECT * FROM practice_attempts WHERE user_id = ? AND idempotency_key = ?")
	err := r.db.GetContext(ctx, &a, query, userID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get practice attempt: %w", err)
	}
	return &a, nil
}

// Complete marks a claimed attempt as applied and stores its feedback
func (r *AttemptRepository) Complete(ctx context.Context, userID, key, feedback string) error {
	query := r.db.Rebind(`
		UPDATE practice_attempts SET applied = TRUE, feedback = ?
		WHERE user_id = ? AND idempotency_key = ?
	`)
	if _, err := r.db.ExecContext(ctx, query, feedback, userID, key); err != nil {
		return fmt.Errorf("failed to complete practice attempt: %w", err)
	}
	return nil
}

// Release drops a claim whose practice result could not be applied
func (r *AttemptRepository) Release(ctx context.Context, userID, key string) error {
	query := r.db.Rebind("DELETE FROM practice_attempts WHERE user_id = ? AND idempotency_key = ? AND applied = FALSE")
	if _, err := r.db.ExecContext(ctx, query, userID, key); err != nil {
		return fmt.Errorf("failed to release practice attempt: %w", err)
	}
	return nil
}

// DeleteOlderThan removes attempts created before cutoff
func (r *AttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM practice_attempts WHERE created_at < ?"), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old practice attempts: %w", err)
	}
	return result.RowsAffected()
}
