package drill

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/engdrill/internal/database"
	"github.com/example/engdrill/pkg/models"
)

// PracticeInput is one practice attempt reported by the client
type PracticeInput struct {
	MistakeID string
	UserID    string
	// SessionID ties the attempt to a drill session; stale sessions are rejected
	SessionID string
	// PerformanceScore in [0,1] overrides WasSuccessful when set
	PerformanceScore *float64
	WasSuccessful    bool
	UserAnswer       string
	// IdempotencyKey makes retries of the same attempt count once
	IdempotencyKey string
}

// PracticeOutcome is the updated mistake and the feedback shown to the user
type PracticeOutcome struct {
	Mistake  models.Mistake `json:"mistake"`
	Feedback string         `json:"feedback"`
	// Replayed is true when the idempotency key was seen before and nothing changed
	Replayed bool `json:"replayed"`
}

// RecordResult applies a practice attempt to a mistake: counters, mastery,
// status and the next practice date.
func (s *Service) RecordResult(ctx context.Context, in PracticeInput) (*PracticeOutcome, error) {
	if strings.TrimSpace(in.MistakeID) == "" {
		return nil, invalid("mistake_id", "is required")
	}
	if strings.TrimSpace(in.UserID) == "" {
		return nil, invalid("user_id", "is required")
	}
	performance, err := s.performance(in)
	if err != nil {
		return nil, err
	}

	if in.SessionID != "" {
		if err := s.checkSession(ctx, in); err != nil {
			return nil, err
		}
	}

	if in.IdempotencyKey == "" {
		return s.applyResult(ctx, in, performance)
	}

	claimed, err := s.repos.Attempts.Claim(ctx, &models.PracticeAttempt{
		UserID:         in.UserID,
		IdempotencyKey: in.IdempotencyKey,
		MistakeID:      in.MistakeID,
		CreatedAt:      s.now(),
	})
	if err != nil {
		return nil, err
	}
	if !claimed {
		return s.replay(ctx, in)
	}

	outcome, err := s.applyResult(ctx, in, performance)
	if err != nil {
		if relErr := s.repos.Attempts.Release(ctx, in.UserID, in.IdempotencyKey); relErr != nil {
			s.logger.Error("failed to release practice attempt",
				zap.String("user_id", in.UserID),
				zap.String("idempotency_key", in.IdempotencyKey),
				zap.Error(relErr))
		}
		return nil, err
	}
	if err := s.repos.Attempts.Complete(ctx, in.UserID, in.IdempotencyKey, outcome.Feedback); err != nil {
		// The result is applied; a retry would be answered as in-flight instead of replayed
		s.logger.Error("failed to complete practice attempt",
			zap.String("user_id", in.UserID),
			zap.String("idempotency_key", in.IdempotencyKey),
			zap.Error(err))
	}
	return outcome, nil
}

func (s *Service) performance(in PracticeInput) (float64, error) {
	if in.PerformanceScore == nil {
		if in.WasSuccessful {
			return 1, nil
		}
		return 0, nil
	}
	p := *in.PerformanceScore
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, invalid("performance_score", "must be within [0, 1]")
	}
	return p, nil
}

func (s *Service) checkSession(ctx context.Context, in PracticeInput) error {
	session, err := s.repos.Sessions.GetByID(ctx, in.SessionID, in.UserID)
	if err != nil {
		return notFound(err, "drill session", in.SessionID)
	}
	if session.Expired(s.now()) {
		return fmt.Errorf("drill session %s: %w", in.SessionID, ErrSessionExpired)
	}
	if !session.Contains(in.MistakeID) {
		if _, err := s.repos.Mistakes.GetByID(ctx, in.MistakeID, in.UserID); err != nil {
			return notFound(err, "mistake", in.MistakeID)
		}
		return invalid("mistake_id", "is not part of session %s", in.SessionID)
	}
	return nil
}

// replay answers a retried attempt without applying it again
func (s *Service) replay(ctx context.Context, in PracticeInput) (*PracticeOutcome, error) {
	attempt, err := s.repos.Attempts.Get(ctx, in.UserID, in.IdempotencyKey)
	if errors.Is(err, database.ErrNotFound) {
		// Claim was released between our insert and read
		return nil, fmt.Errorf("practice attempt %s: %w", in.IdempotencyKey, ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	if attempt.MistakeID != in.MistakeID {
		return nil, invalid("idempotency_key", "was already used for another mistake")
	}
	if !attempt.Applied {
		return nil, fmt.Errorf("practice attempt %s still in progress: %w", in.IdempotencyKey, ErrConflict)
	}

	m, err := s.repos.Mistakes.GetByID(ctx, in.MistakeID, in.UserID)
	if err != nil {
		return nil, notFound(err, "mistake", in.MistakeID)
	}
	s.logger.Info("replayed practice result",
		zap.String("user_id", in.UserID),
		zap.String("mistake_id", in.MistakeID),
		zap.String("idempotency_key", in.IdempotencyKey))
	return &PracticeOutcome{Mistake: *m, Feedback: attempt.Feedback, Replayed: true}, nil
}

// applyResult reads, updates and writes back the mistake with a version check,
// re-reading when a concurrent writer got there first.
func (s *Service) applyResult(ctx context.Context, in PracticeInput, performance float64) (*PracticeOutcome, error) {
	success := performance >= s.opts.SuccessThreshold

	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		m, err := s.repos.Mistakes.GetByID(ctx, in.MistakeID, in.UserID)
		if err != nil {
			return nil, notFound(err, "mistake", in.MistakeID)
		}

		version := m.Version
		previous := m.Status
		s.applyPractice(m, performance, success, in.UserAnswer, s.now())

		ok, err := s.repos.Mistakes.Update(ctx, m, version)
		if errors.Is(err, database.ErrDuplicate) {
			return nil, fmt.Errorf("mistake %s: %w", in.MistakeID, ErrConflict)
		}
		if err != nil {
			return nil, err
		}
		if ok {
			s.logger.Info("practice result recorded",
				zap.String("user_id", in.UserID),
				zap.String("mistake_id", m.ID),
				zap.Bool("successful", success),
				zap.Float64("performance", performance),
				zap.String("status_from", string(previous)),
				zap.String("status_to", string(m.Status)),
				zap.Int("interval_days", m.IntervalDays))
			return &PracticeOutcome{Mistake: *m, Feedback: PracticeFeedback(m, success)}, nil
		}
		s.logger.Debug("practice update lost a race, retrying",
			zap.String("mistake_id", in.MistakeID),
			zap.Int("attempt", attempt))
	}
	return nil, fmt.Errorf("mistake %s: %w", in.MistakeID, ErrConflict)
}

// applyPractice mutates m for one practice attempt
func (s *Service) applyPractice(m *models.Mistake, performance float64, success bool, answer string, now time.Time) {
	m.PracticeCount++
	if success {
		m.SuccessCount++
	} else {
		m.FailedPractices++
	}
	m.MasteryLevel = MasteryLevel(m)

	interval := s.scheduler.Schedule(m.IntervalDays, m.EaseFactor, performance)
	m.IntervalDays = interval.Days
	m.EaseFactor = interval.EaseFactor
	m.NextPracticeDate = s.scheduler.NextDate(now, interval)

	m.LastPracticed = &now
	m.LastAnswer = answer
	m.UpdatedAt = now

	// Only a recurrence takes a record out of MASTERED; practicing one keeps
	// counters and schedule current without touching its status.
	switch {
	case m.Status == models.StatusMastered:
	case m.PracticeCount >= s.opts.MinPracticesForMastery && m.MasteryLevel >= s.opts.MasteryThreshold:
		m.Status = models.StatusMastered
	default:
		m.Status = models.StatusLearning
	}
	m.InDrillQueue = m.Status != models.StatusMastered
}

// MasteryLevel is the share of successful practices, 0 before the first one
func MasteryLevel(m *models.Mistake) float64 {
	if m.PracticeCount == 0 {
		return 0
	}
	return float64(m.SuccessCount) / float64(m.PracticeCount)
}

// PracticeFeedback renders the message shown after a practice attempt
func PracticeFeedback(m *models.Mistake, success bool) string {
	if success {
		return fmt.Sprintf("Great job! You've correctly used '%s' instead of '%s'.", m.Correction, m.OriginalText)
	}
	feedback := fmt.Sprintf("Keep practicing! Remember to use '%s' instead of '%s'.", m.Correction, m.OriginalText)
	if m.Explanation != "" {
		feedback += " " + m.Explanation
	}
	return feedback
}
