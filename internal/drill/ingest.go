package drill

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/engdrill/internal/database"
	"github.com/example/engdrill/pkg/models"
)

// StoreDetections persists a batch of freshly detected mistakes for a user.
// Each detection either creates a NEW record or bumps the frequency of the
// unmastered record with the same type and original text. Malformed
// detections and per-item storage failures are logged and skipped so one bad
// item never blocks the rest of the batch. It returns the id of every touched
// record in input order.
func (s *Service) StoreDetections(ctx context.Context, userID string, detections []models.Detection) ([]string, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, invalid("user_id", "is required")
	}

	log := s.logger.With(zap.String("user_id", userID))
	ids := make([]string, 0, len(detections))

	for i, d := range detections {
		if err := ctx.Err(); err != nil {
			return ids, err
		}

		m, ok := s.newMistake(userID, d)
		if !ok {
			log.Warn("skipping malformed detection",
				zap.Int("index", i),
				zap.String("type", d.Type),
				zap.Bool("has_original_text", strings.TrimSpace(d.OriginalText) != ""),
				zap.Bool("has_correction", strings.TrimSpace(d.Correction) != ""))
			continue
		}

		if s.opts.ReviveMastered {
			id, revived, err := s.reviveMastered(ctx, m)
			if err != nil {
				log.Error("failed to revive mastered mistake", zap.Int("index", i), zap.Error(err))
				continue
			}
			if revived {
				ids = append(ids, id)
				continue
			}
		}

		id, merged, err := s.repos.Mistakes.Upsert(ctx, m)
		if err != nil {
			log.Error("failed to store detection", zap.Int("index", i), zap.Error(err))
			continue
		}
		log.Debug("stored detection",
			zap.String("mistake_id", id),
			zap.String("type", string(m.Type)),
			zap.Bool("merged", merged))
		ids = append(ids, id)
	}

	return ids, nil
}

// newMistake validates a detection and builds the record it would create
func (s *Service) newMistake(userID string, d models.Detection) (*models.Mistake, bool) {
	t, ok := models.ParseMistakeType(d.Type)
	original := strings.TrimSpace(d.OriginalText)
	correction := strings.TrimSpace(d.Correction)
	if !ok || original == "" || correction == "" {
		return nil, false
	}

	severity := models.DefaultSeverity
	if d.Severity != nil {
		severity = clampSeverity(*d.Severity)
	}

	now := s.now()
	return &models.Mistake{
		ID:               uuid.NewString(),
		UserID:           userID,
		Type:             t,
		OriginalText:     original,
		Correction:       correction,
		Explanation:      strings.TrimSpace(d.Explanation),
		Context:          d.Context,
		ExampleUsage:     strings.TrimSpace(d.ExampleUsage),
		SituationContext: d.Situation,
		Severity:         severity,
		Frequency:        1,
		LastOccurred:     now,
		EaseFactor:       models.DefaultEaseFactor,
		NextPracticeDate: s.scheduler.NewItemDate(now),
		Status:           models.StatusNew,
		InDrillQueue:     true,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, true
}

// reviveMastered moves a mastered record that recurred back to LEARNING. It
// does nothing when an unmastered record already exists (that one gets merged)
// or when nothing was ever mastered.
func (s *Service) reviveMastered(ctx context.Context, candidate *models.Mistake) (string, bool, error) {
	_, err := s.repos.Mistakes.FindActive(ctx, candidate.UserID, candidate.Type, candidate.OriginalText)
	if err == nil {
		return "", false, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return "", false, err
	}

	m, err := s.repos.Mistakes.FindMastered(ctx, candidate.UserID, candidate.Type, candidate.OriginalText)
	if errors.Is(err, database.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	now := s.now()
	version := m.Version
	m.Frequency++
	m.LastOccurred = now
	m.Status = models.StatusLearning
	m.InDrillQueue = true
	// Mistakes that keep coming back are practiced sooner
	m.NextPracticeDate = now.AddDate(0, 0, recurrenceDelayDays(m.Frequency))
	m.UpdatedAt = now

	ok, err := s.repos.Mistakes.Revive(ctx, m, version)
	if errors.Is(err, database.ErrDuplicate) {
		// An unmastered record appeared meanwhile; the upsert merges into it
		return "", false, nil
	}
	if err != nil || !ok {
		// Lost the race: fall back to a regular upsert
		return "", false, err
	}
	s.logger.Info("mastered mistake recurred, back to learning",
		zap.String("user_id", m.UserID),
		zap.String("mistake_id", m.ID),
		zap.Int("frequency", m.Frequency))
	return m.ID, true, nil
}

func recurrenceDelayDays(frequency int) int {
	if frequency > 5 {
		frequency = 5
	}
	days := 7 - frequency
	if days < 1 {
		days = 1
	}
	return days
}

func clampSeverity(v int) int {
	if v < 1 {
		return 1
	}
	if v > 5 {
		return 5
	}
	return v
}
