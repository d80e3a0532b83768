package drill

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/engdrill/pkg/models"
)

// Session is a drill session together with the mistakes to practice, best first
type Session struct {
	models.DrillSession
	Mistakes []models.DrillItem `json:"mistakes"`
}

// CreateSession picks the most valuable due mistakes of a user and opens a
// session for them. size <= 0 means the default size; larger sizes are capped.
func (s *Service) CreateSession(ctx context.Context, userID string, size int) (*Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, invalid("user_id", "is required")
	}
	size = s.sessionSize(size)
	now := s.now()

	due, err := s.repos.Mistakes.GetDue(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	ranked := s.ranker.Rank(due, now, size)

	session := &Session{
		DrillSession: models.DrillSession{
			ID:         uuid.NewString(),
			UserID:     userID,
			MistakeIDs: make([]string, 0, len(ranked)),
			CreatedAt:  now,
			ExpiresAt:  now.Add(s.opts.SessionTTL),
		},
		Mistakes: make([]models.DrillItem, 0, len(ranked)),
	}
	for _, r := range ranked {
		session.MistakeIDs = append(session.MistakeIDs, r.Mistake.ID)
		session.Mistakes = append(session.Mistakes, models.DrillItem{
			Mistake:        r.Mistake,
			PracticePrompt: PracticePrompt(&r.Mistake),
			PriorityScore:  r.Score,
		})
	}

	if err := s.repos.Sessions.Create(ctx, &session.DrillSession); err != nil {
		return nil, err
	}

	s.logger.Info("drill session created",
		zap.String("user_id", userID),
		zap.String("session_id", session.ID),
		zap.Int("due", len(due)),
		zap.Int("selected", len(ranked)))
	return session, nil
}

func (s *Service) sessionSize(size int) int {
	if size <= 0 {
		return s.opts.DefaultSessionSize
	}
	if size > s.opts.MaxSessionSize {
		return s.opts.MaxSessionSize
	}
	return size
}

// PracticePrompt renders the exercise shown to the user for a mistake
func PracticePrompt(m *models.Mistake) string {
	sentence := m.Context
	if strings.TrimSpace(sentence) == "" {
		sentence = m.OriginalText
	}

	switch m.Type {
	case models.MistakeGrammar:
		return fmt.Sprintf("Correct the grammar in this sentence: %q", sentence)
	case models.MistakeVocabulary:
		return fmt.Sprintf("Improve this sentence by using a better word or phrase for '%s': %q", m.OriginalText, sentence)
	case models.MistakePronunciation:
		return fmt.Sprintf("Say this aloud, paying attention to '%s': %q", m.OriginalText, sentence)
	}
	return fmt.Sprintf("Practice this mistake: %s", m.OriginalText)
}
