// Package drill ingests detected language mistakes and turns them into
// spaced-repetition practice: deduplicated storage, ranked drill sessions,
// practice results and per-user statistics.
package drill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/example/engdrill/internal/database"
	"github.com/example/engdrill/internal/spaced_repetition"
	"github.com/example/engdrill/pkg/models"
)

// MistakeRepository persists mistake records
type MistakeRepository interface {
	Upsert(ctx context.Context, m *models.Mistake) (string, bool, error)
	FindActive(ctx context.Context, userID string, t models.MistakeType, originalText string) (*models.Mistake, error)
	FindMastered(ctx context.Context, userID string, t models.MistakeType, originalText string) (*models.Mistake, error)
	Revive(ctx context.Context, m *models.Mistake, expectedVersion int64) (bool, error)
	GetByID(ctx context.Context, id, userID string) (*models.Mistake, error)
	GetDue(ctx context.Context, userID string, now time.Time) ([]models.Mistake, error)
	List(ctx context.Context, userID string, filter models.MistakeFilter) ([]models.Mistake, error)
	Update(ctx context.Context, m *models.Mistake, expectedVersion int64) (bool, error)
	Delete(ctx context.Context, id, userID string) error
}

// SessionRepository persists drill sessions
type SessionRepository interface {
	Create(ctx context.Context, s *models.DrillSession) error
	GetByID(ctx context.Context, id, userID string) (*models.DrillSession, error)
}

// AttemptRepository persists practice idempotency keys
type AttemptRepository interface {
	Claim(ctx context.Context, a *models.PracticeAttempt) (bool, error)
	Get(ctx context.Context, userID, key string) (*models.PracticeAttempt, error)
	Complete(ctx context.Context, userID, key, feedback string) error
	Release(ctx context.Context, userID, key string) error
}

// StatisticsRepository aggregates a user's mistakes
type StatisticsRepository interface {
	GetUserStatistics(ctx context.Context, userID string, now time.Time) (*models.MistakeStatistics, error)
}

// Repositories groups the storage the service needs
type Repositories struct {
	Mistakes   MistakeRepository
	Sessions   SessionRepository
	Attempts   AttemptRepository
	Statistics StatisticsRepository
}

// NewRepositories wires the sqlx-backed repositories
func NewRepositories(db *sqlx.DB) Repositories {
	return Repositories{
		Mistakes:   database.NewMistakeRepository(db),
		Sessions:   database.NewSessionRepository(db),
		Attempts:   database.NewAttemptRepository(db),
		Statistics: database.NewStatisticsRepository(db),
	}
}

// Options tunes the service
type Options struct {
	DefaultSessionSize int
	MaxSessionSize     int
	SessionTTL         time.Duration
	// ReviveMastered lets a re-detected mastered mistake return to LEARNING
	// instead of starting a fresh NEW record.
	ReviveMastered bool
	// Performance at or above this value counts as a successful practice
	SuccessThreshold float64
	// A mistake is mastered once its success ratio reaches MasteryThreshold
	// over at least MinPracticesForMastery attempts.
	MasteryThreshold       float64
	MinPracticesForMastery int
	// Now is the clock; defaults to time.Now in UTC
	Now func() time.Time
}

// DefaultOptions returns the production settings
func DefaultOptions() Options {
	return Options{
		DefaultSessionSize:     5,
		MaxSessionSize:         20,
		SessionTTL:             24 * time.Hour,
		SuccessThreshold:       0.8,
		MasteryThreshold:       0.8,
		MinPracticesForMastery: 3,
	}
}

const (
	defaultListLimit  = 50
	maxListLimit      = 100
	maxUpdateAttempts = 5
)

// Service is the mistake drilling engine. It holds no mutable state and is
// safe for concurrent use.
type Service struct {
	repos     Repositories
	scheduler *spaced_repetition.SM2
	ranker    *spaced_repetition.Ranker
	opts      Options
	logger    *zap.Logger
}

// NewService creates a drilling service
func NewService(repos Repositories, scheduler *spaced_repetition.SM2, ranker *spaced_repetition.Ranker, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	defaults := DefaultOptions()
	if opts.DefaultSessionSize <= 0 {
		opts.DefaultSessionSize = defaults.DefaultSessionSize
	}
	if opts.MaxSessionSize <= 0 {
		opts.MaxSessionSize = defaults.MaxSessionSize
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaults.SessionTTL
	}
	if opts.SuccessThreshold <= 0 {
		opts.SuccessThreshold = defaults.SuccessThreshold
	}
	if opts.MasteryThreshold <= 0 {
		opts.MasteryThreshold = defaults.MasteryThreshold
	}
	if opts.MinPracticesForMastery <= 0 {
		opts.MinPracticesForMastery = defaults.MinPracticesForMastery
	}
	return &Service{
		repos:     repos,
		scheduler: scheduler,
		ranker:    ranker,
		opts:      opts,
		logger:    logger,
	}
}

func (s *Service) now() time.Time {
	return s.opts.Now()
}

// notFound translates a repository miss into the service error
func notFound(err error, what, id string) error {
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return err
}
