package drill

import (
	"context"
	"math"

	"github.com/example/engdrill/pkg/models"
)

// Statistics returns per-user counts and the mastery percentage
func (s *Service) Statistics(ctx context.Context, userID string) (*models.MistakeStatistics, error) {
	stats, err := s.repos.Statistics.GetUserStatistics(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}
	if stats.TotalCount > 0 {
		pct := float64(stats.MasteredCount) / float64(stats.TotalCount) * 100
		stats.MasteryPercentage = math.Round(pct*10) / 10
	}
	return stats, nil
}
