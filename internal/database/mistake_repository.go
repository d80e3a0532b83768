package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/engdrill/pkg/models"
)

// MistakeRepository handles database operations for mistakes
type MistakeRepository struct {
	db *sqlx.DB
}

// NewMistakeRepository creates a new repository instance
func NewMistakeRepository(db *sqlx.DB) *MistakeRepository {
	return &MistakeRepository{db: db}
}

// Upsert inserts m, or bumps the frequency of the unmastered record with the
// same (user, type, original text). Scheduling fields of an existing record
// are left untouched. It returns the id of the touched record and whether it
// was merged into an existing one.
func (r *MistakeRepository) Upsert(ctx context.Context, m *models.Mistake) (string, bool, error) {
	query := r.db.Rebind(`
		INSERT INTO mistakes (
			id, user_id, type, original_text, correction, explanation, context,
			example_usage, situation_context, severity, frequency, last_occurred,
			ease_factor, interval_days, practice_count, success_count, failed_practices,
			mastery_level, last_answer, last_practiced, next_practice_date, status,
			in_drill_queue, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, type, original_text) WHERE status <> 'MASTERED'
		DO UPDATE SET
			frequency = mistakes.frequency + 1,
			last_occurred = excluded.last_occurred,
			updated_at = excluded.updated_at
		RETURNING id
	`)

	var id string
	err := r.db.QueryRowxContext(ctx, query,
		m.ID, m.UserID, m.Type, m.OriginalText, m.Correction, m.Explanation, m.Context,
		m.ExampleUsage, m.SituationContext, m.Severity, m.Frequency, m.LastOccurred,
		m.EaseFactor, m.IntervalDays, m.PracticeCount, m.SuccessCount, m.FailedPractices,
		m.MasteryLevel, m.LastAnswer, m.LastPracticed, m.NextPracticeDate, m.Status,
		m.InDrillQueue, m.Version, m.CreatedAt, m.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return "", false, fmt.Errorf("failed to upsert mistake: %w", err)
	}
	return id, id != m.ID, nil
}

// FindActive returns the unmastered record for (user, type, original text)
func (r *MistakeRepository) FindActive(ctx context.Context, userID string, t models.MistakeType, originalText string) (*models.Mistake, error) {
	query := r.db.Rebind(`
		SELECT * FROM mistakes
		WHERE user_id = ? AND type = ? AND original_text = ? AND status <> 'MASTERED'
	`)
	var m models.Mistake
	err := r.db.GetContext(ctx, &m, query, userID, t, originalText)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active mistake: %w", err)
	}
	return &m, nil
}

// FindMastered returns the most recently updated mastered record for (user, type, original text)
func (r *MistakeRepository) FindMastered(ctx context.Context, userID string, t models.MistakeType, originalText string) (*models.Mistake, error) {
	query := r.db.Rebind(`
		SELECT * FROM mistakes
		WHERE user_id = ? AND type = ? AND original_text = ? AND status = 'MASTERED'
		ORDER BY updated_at DESC
		LIMIT 1
	`)
	var m models.Mistake
	err := r.db.GetContext(ctx, &m, query, userID, t, originalText)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find mastered mistake: %w", err)
	}
	return &m, nil
}

// Revive puts a mastered mistake that recurred back into learning
func (r *MistakeRepository) Revive(ctx context.Context, m *models.Mistake, expectedVersion int64) (bool, error) {
	query := r.db.Rebind(`
		UPDATE mistakes SET
			frequency = ?,
			last_occurred = ?,
			next_practice_date = ?,
			status = ?,
			in_drill_queue = ?,
			updated_at = ?,
			version = version + 1
		WHERE id = ? AND user_id = ? AND version = ? AND status = 'MASTERED'
	`)
	return r.execCAS(ctx, "revive mistake", query,
		m.Frequency, m.LastOccurred, m.NextPracticeDate, m.Status, m.InDrillQueue, m.UpdatedAt,
		m.ID, m.UserID, expectedVersion,
	)
}

// GetByID returns a mistake owned by userID
func (r *MistakeRepository) GetByID(ctx context.Context, id, userID string) (*models.Mistake, error) {
	var m models.Mistake
	err := r.db.GetContext(ctx, &m, r.db.Rebind("SELECT * FROM mistakes WHERE id = ? AND user_id = ?"), id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mistake by ID: %w", err)
	}
	return &m, nil
}

// GetDue returns the mistakes of a user that are in the drill queue and due at now.
// Rows come back in creation order so ranking ties are reproducible.
func (r *MistakeRepository) GetDue(ctx context.Context, userID string, now time.Time) ([]models.Mistake, error) {
	query := r.db.Rebind(`
		SELECT * FROM mistakes
		WHERE user_id = ? AND in_drill_queue = TRUE AND next_practice_date <= ?
		ORDER BY created_at ASC, id ASC
	`)
	var mistakes []models.Mistake
	if err := r.db.SelectContext(ctx, &mistakes, query, userID, now); err != nil {
		return nil, fmt.Errorf("failed to get due mistakes: %w", err)
	}
	return mistakes, nil
}

// List returns the mistakes of a user matching filter, newest first
func (r *MistakeRepository) List(ctx context.Context, userID string, filter models.MistakeFilter) ([]models.Mistake, error) {
	var (
		where = []string{"user_id = ?"}
		args  = []interface{}{userID}
	)
	if filter.Type != nil {
		where = append(where, "type = ?")
		args = append(args, *filter.Type)
	}
	if filter.InDrillQueue != nil {
		where = append(where, "in_drill_queue = ?")
		args = append(args, *filter.InDrillQueue)
	}
	if filter.IsLearned != nil {
		if *filter.IsLearned {
			where = append(where, "status = 'MASTERED'")
		} else {
			where = append(where, "status <> 'MASTERED'")
		}
	}
	args = append(args, filter.Limit, filter.Skip)

	query := r.db.Rebind(fmt.Sprintf(`
		SELECT * FROM mistakes
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, strings.Join(where, " AND ")))

	mistakes := []models.Mistake{}
	if err := r.db.SelectContext(ctx, &mistakes, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list mistakes: %w", err)
	}
	return mistakes, nil
}

// Update writes the practice and scheduling state of m if nobody changed the
// record since expectedVersion was read. Frequency and last_occurred belong to
// ingestion and are never written here.
func (r *MistakeRepository) Update(ctx context.Context, m *models.Mistake, expectedVersion int64) (bool, error) {
	query := r.db.Rebind(`
		UPDATE mistakes SET
			severity = ?,
			ease_factor = ?,
			interval_days = ?,
			practice_count = ?,
			success_count = ?,
			failed_practices = ?,
			mastery_level = ?,
			last_answer = ?,
			last_practiced = ?,
			next_practice_date = ?,
			status = ?,
			in_drill_queue = ?,
			updated_at = ?,
			version = version + 1
		WHERE id = ? AND user_id = ? AND version = ?
	`)
	ok, err := r.execCAS(ctx, "update mistake", query,
		m.Severity, m.EaseFactor, m.IntervalDays, m.PracticeCount, m.SuccessCount,
		m.FailedPractices, m.MasteryLevel, m.LastAnswer, m.LastPracticed,
		m.NextPracticeDate, m.Status, m.InDrillQueue, m.UpdatedAt,
		m.ID, m.UserID, expectedVersion,
	)
	if ok {
		m.Version = expectedVersion + 1
	}
	return ok, err
}

// Delete removes a mistake owned by userID
func (r *MistakeRepository) Delete(ctx context.Context, id, userID string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM mistakes WHERE id = ? AND user_id = ?"), id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete mistake: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// CountDueByUser returns, per user, how many mistakes are due at now
func (r *MistakeRepository) CountDueByUser(ctx context.Context, now time.Time) (map[string]int, error) {
	query := r.db.Rebind(`
		SELECT user_id, COUNT(*) AS due
		FROM mistakes
		WHERE in_drill_queue = TRUE AND next_practice_date <= ?
		GROUP BY user_id
	`)
	var rows []struct {
		UserID string `db:"user_id"`
		Due    int    `db:"due"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, now); err != nil {
		return nil, fmt.Errorf("failed to count due mistakes: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.UserID] = row.Due
	}
	return counts, nil
}

// execCAS runs a conditional update and reports whether exactly one row changed
func (r *MistakeRepository) execCAS(ctx context.Context, op, query string, args ...interface{}) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if isUniqueViolation(err) {
		return false, fmt.Errorf("failed to %s: %w", op, ErrDuplicate)
	}
	if err != nil {
		return false, fmt.Errorf("failed to %s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}
