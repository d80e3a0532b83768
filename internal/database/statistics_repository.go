package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/engdrill/pkg/models"
)

// StatisticsRepository computes aggregate views over a user's mistakes
type StatisticsRepository struct {
	db *sqlx.DB
}

// NewStatisticsRepository creates a new repository instance
func NewStatisticsRepository(db *sqlx.DB) *StatisticsRepository {
	return &StatisticsRepository{db: db}
}

// GetUserStatistics counts a user's mistakes by status and type in one pass.
// A mistake is due when its practice date passed and it is not mastered.
func (r *StatisticsRepository) GetUserStatistics(ctx context.Context, userID string, now time.Time) (*models.MistakeStatistics, error) {
	query := r.db.Rebind(`
		SELECT
			COUNT(*) AS total_count,
			COALESCE(SUM(CASE WHEN status = 'MASTERED' THEN 1 ELSE 0 END), 0) AS mastered_count,
			COALESCE(SUM(CASE WHEN status = 'LEARNING' THEN 1 ELSE 0 END), 0) AS learning_count,
			COALESCE(SUM(CASE WHEN status = 'NEW' THEN 1 ELSE 0 END), 0) AS new_count,
			COALESCE(SUM(CASE WHEN type = 'GRAMMAR' THEN 1 ELSE 0 END), 0) AS grammar_count,
			COALESCE(SUM(CASE WHEN type = 'VOCABULARY' THEN 1 ELSE 0 END), 0) AS vocabulary_count,
			COALESCE(SUM(CASE WHEN type = 'PRONUNCIATION' THEN 1 ELSE 0 END), 0) AS pronunciation_count,
			COALESCE(SUM(CASE WHEN status <> 'MASTERED' AND next_practice_date <= ? THEN 1 ELSE 0 END), 0) AS due_for_practice
		FROM mistakes
		WHERE user_id = ?
	`)

	var stats models.MistakeStatistics
	if err := r.db.GetContext(ctx, &stats, query, now, userID); err != nil {
		return nil, fmt.Errorf("failed to get user statistics: %w", err)
	}
	return &stats, nil
}
