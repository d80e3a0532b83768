package drill

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/engdrill/internal/database"
	"github.com/example/engdrill/pkg/models"
)

// GetMistake returns one mistake of a user
func (s *Service) GetMistake(ctx context.Context, id, userID string) (*models.Mistake, error) {
	m, err := s.repos.Mistakes.GetByID(ctx, id, userID)
	if err != nil {
		return nil, notFound(err, "mistake", id)
	}
	return m, nil
}

// ListMistakes returns a page of a user's mistakes, newest first
func (s *Service) ListMistakes(ctx context.Context, userID string, filter models.MistakeFilter) ([]models.Mistake, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Skip < 0 {
		filter.Skip = 0
	}
	return s.repos.Mistakes.List(ctx, userID, filter)
}

// DeleteMistake removes a mistake; administrative, never called by the engine itself
func (s *Service) DeleteMistake(ctx context.Context, id, userID string) error {
	if err := s.repos.Mistakes.Delete(ctx, id, userID); err != nil {
		return notFound(err, "mistake", id)
	}
	s.logger.Info("mistake deleted", zap.String("user_id", userID), zap.String("mistake_id", id))
	return nil
}

// UpdateMistake applies a manual edit. Mastered mistakes always leave the
// drill queue, putting one back in the queue returns it to LEARNING, and a
// practiced mistake can never go back to NEW. Un-mastering is refused while
// a newer unmastered record with the same text exists.
func (s *Service) UpdateMistake(ctx context.Context, id, userID string, upd models.MistakeUpdate) (*models.Mistake, error) {
	if upd.Severity != nil && (*upd.Severity < 1 || *upd.Severity > 5) {
		return nil, invalid("severity", "must be within [1, 5]")
	}

	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		m, err := s.repos.Mistakes.GetByID(ctx, id, userID)
		if err != nil {
			return nil, notFound(err, "mistake", id)
		}

		version := m.Version
		wasMastered := m.Status == models.StatusMastered
		if err := applyEdit(m, upd); err != nil {
			return nil, err
		}
		if wasMastered && m.Status != models.StatusMastered {
			if err := s.ensureNoActiveDuplicate(ctx, m); err != nil {
				return nil, err
			}
		}
		m.UpdatedAt = s.now()

		ok, err := s.repos.Mistakes.Update(ctx, m, version)
		if errors.Is(err, database.ErrDuplicate) {
			return nil, activeDuplicate(m)
		}
		if err != nil {
			return nil, err
		}
		if ok {
			return m, nil
		}
	}
	return nil, fmt.Errorf("mistake %s: %w", id, ErrConflict)
}

func applyEdit(m *models.Mistake, upd models.MistakeUpdate) error {
	if upd.Severity != nil {
		m.Severity = *upd.Severity
	}

	target := m.Status
	if upd.Status != nil {
		target = *upd.Status
	}
	if upd.IsLearned != nil {
		switch {
		case *upd.IsLearned:
			if upd.Status != nil && *upd.Status != models.StatusMastered {
				return invalid("is_learned", "contradicts status %s", *upd.Status)
			}
			target = models.StatusMastered
		case target == models.StatusMastered:
			if upd.Status != nil {
				return invalid("is_learned", "contradicts status %s", *upd.Status)
			}
			target = models.StatusLearning
		}
	}
	if upd.InDrillQueue != nil && *upd.InDrillQueue && target == models.StatusMastered {
		if upd.Status != nil || (upd.IsLearned != nil && *upd.IsLearned) {
			return invalid("in_drill_queue", "a mastered mistake cannot be in the drill queue")
		}
		target = models.StatusLearning
	}
	if target == models.StatusNew && (m.PracticeCount > 0 || m.Status == models.StatusMastered) {
		return invalid("status", "a practiced mistake cannot go back to %s", models.StatusNew)
	}

	if target != m.Status {
		switch {
		case target == models.StatusMastered:
			m.InDrillQueue = false
		case m.Status == models.StatusMastered:
			m.InDrillQueue = true
		}
		m.Status = target
	}
	if upd.InDrillQueue != nil && m.Status != models.StatusMastered {
		m.InDrillQueue = *upd.InDrillQueue
	}
	return nil
}

// ensureNoActiveDuplicate refuses to bring m back into the dedup scope while
// another unmastered record already holds its (type, original text)
func (s *Service) ensureNoActiveDuplicate(ctx context.Context, m *models.Mistake) error {
	_, err := s.repos.Mistakes.FindActive(ctx, m.UserID, m.Type, m.OriginalText)
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return activeDuplicate(m)
}

func activeDuplicate(m *models.Mistake) error {
	return invalid("status", "an unmastered mistake for %q already exists", m.OriginalText)
}
