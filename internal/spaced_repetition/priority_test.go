package spaced_repetition

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/engdrill/pkg/models"
)

var rankNow = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func dueMistake(id string, frequency, severity int) models.Mistake {
	return models.Mistake{
		ID:               id,
		Frequency:        frequency,
		Severity:         severity,
		LastOccurred:     rankNow,
		NextPracticeDate: rankNow,
		InDrillQueue:     true,
		Status:           models.StatusNew,
	}
}

func TestScore_Factors(t *testing.T) {
	r := NewRanker(DefaultWeights())

	m := dueMistake("a", 5, 5)
	// 1*2.0 + 1*1.5 + 1*1.0 + 0 + 1*5.0
	assert.InDelta(t, 9.5, r.Score(&m, rankNow), 1e-9)

	m.FailedPractices = 10
	assert.InDelta(t, 10.0, r.Score(&m, rankNow), 1e-9)

	m = dueMistake("b", 1, 1)
	m.LastOccurred = rankNow.AddDate(0, 0, -10)
	m.NextPracticeDate = rankNow.AddDate(0, 0, -3)
	// 0.4 + 0.3 + 0.5 + 0 + 1.3*5
	assert.InDelta(t, 7.7, r.Score(&m, rankNow), 1e-9)
}

func TestScore_NotYetDue(t *testing.T) {
	r := NewRanker(Weights{Due: 1})

	m := dueMistake("a", 1, 1)
	m.NextPracticeDate = rankNow.AddDate(0, 0, 4)
	assert.InDelta(t, 0.6, r.Score(&m, rankNow), 1e-9)

	m.NextPracticeDate = rankNow.AddDate(0, 0, 20)
	assert.InDelta(t, 0.1, r.Score(&m, rankNow), 1e-9)
}

func TestRank_FiltersIneligible(t *testing.T) {
	r := NewRanker(DefaultWeights())

	notQueued := dueMistake("not-queued", 5, 5)
	notQueued.InDrillQueue = false
	future := dueMistake("future", 5, 5)
	future.NextPracticeDate = rankNow.Add(time.Minute)
	ok := dueMistake("ok", 1, 1)

	ranked := r.Rank([]models.Mistake{notQueued, future, ok}, rankNow, 10)
	require.Len(t, ranked, 1)
	assert.Equal(t, "ok", ranked[0].Mistake.ID)
}

func TestRank_OrdersBySeverityAndFrequency(t *testing.T) {
	r := NewRanker(DefaultWeights())

	input := []models.Mistake{
		dueMistake("low", 1, 1),
		dueMistake("sev5", 1, 5),
		dueMistake("freq5", 5, 1),
		dueMistake("both", 5, 5),
		dueMistake("mid", 3, 3),
		dueMistake("sev4", 1, 4),
		dueMistake("freq2", 2, 1),
		dueMistake("sev2", 1, 2),
	}

	ranked := r.Rank(input, rankNow, 5)
	require.Len(t, ranked, 5)

	ids := make([]string, 0, len(ranked))
	for i, rk := range ranked {
		ids = append(ids, rk.Mistake.ID)
		if i > 0 {
			assert.GreaterOrEqual(t, ranked[i-1].Score, rk.Score)
		}
	}
	assert.Equal(t, []string{"both", "freq5", "mid", "sev5", "sev4"}, ids)
}

func TestRank_StableForTies(t *testing.T) {
	r := NewRanker(DefaultWeights())

	var input []models.Mistake
	for i := 0; i < 6; i++ {
		input = append(input, dueMistake(fmt.Sprintf("m%d", i), 2, 3))
	}

	ranked := r.Rank(input, rankNow, 4)
	for i, rk := range ranked {
		assert.Equal(t, fmt.Sprintf("m%d", i), rk.Mistake.ID)
	}
}

func TestRank_Deterministic(t *testing.T) {
	r := NewRanker(DefaultWeights())

	input := []models.Mistake{dueMistake("a", 3, 2), dueMistake("b", 2, 5), dueMistake("c", 4, 4)}
	input[1].FailedPractices = 2
	input[2].LastOccurred = rankNow.AddDate(0, 0, -30)

	first := r.Rank(input, rankNow, 0)
	second := r.Rank(input, rankNow, 0)
	assert.Equal(t, first, second)
	assert.Len(t, first, 3)
}
