package spaced_repetition

import (
	"math"
	"sort"
	"time"

	"github.com/example/engdrill/pkg/models"
)

// Weights scale each normalized priority factor
type Weights struct {
	Frequency float64 `mapstructure:"frequency"`
	Severity  float64 `mapstructure:"severity"`
	Recency   float64 `mapstructure:"recency"`
	Failed    float64 `mapstructure:"failed"`
	Due       float64 `mapstructure:"due"`
}

// DefaultWeights returns the weighting used for drill sessions
func DefaultWeights() Weights {
	return Weights{
		Frequency: 2.0,
		Severity:  1.5,
		Recency:   1.0,
		Failed:    0.5,
		Due:       5.0,
	}
}

// Ranker orders due mistakes so the most valuable ones are drilled first
type Ranker struct {
	Weights Weights
}

// NewRanker creates a ranker with the given weights
func NewRanker(w Weights) *Ranker {
	return &Ranker{Weights: w}
}

// Ranked is a mistake with its priority score
type Ranked struct {
	Mistake models.Mistake
	Score   float64
}

// Score computes the combined priority of a single mistake at now
func (r *Ranker) Score(m *models.Mistake, now time.Time) float64 {
	frequencyFactor := math.Min(5, float64(m.Frequency)) / 5
	severityFactor := float64(m.Severity) / 5

	// More recent mistakes score higher, with diminishing returns
	daysSince := math.Max(0, wholeDays(now.Sub(m.LastOccurred)))
	recencyFactor := 1 / (1 + daysSince*0.1)

	failedFactor := math.Min(1.0, float64(m.FailedPractices)*0.2)

	daysOverdue := wholeDays(now.Sub(m.NextPracticeDate))
	dueFactor := 1.0
	if daysOverdue > 0 {
		dueFactor = 1.0 + math.Min(1.0, daysOverdue*0.1)
	} else if daysOverdue < 0 {
		dueFactor = math.Max(0.1, 1.0+daysOverdue*0.1)
	}

	return frequencyFactor*r.Weights.Frequency +
		severityFactor*r.Weights.Severity +
		recencyFactor*r.Weights.Recency +
		failedFactor*r.Weights.Failed +
		dueFactor*r.Weights.Due
}

// Rank filters the eligible mistakes, sorts them by descending score and keeps
// the first limit entries. Ties keep input order. limit <= 0 keeps everything.
func (r *Ranker) Rank(mistakes []models.Mistake, now time.Time, limit int) []Ranked {
	ranked := make([]Ranked, 0, len(mistakes))
	for i := range mistakes {
		m := &mistakes[i]
		if !m.IsDue(now) {
			continue
		}
		ranked = append(ranked, Ranked{Mistake: *m, Score: r.Score(m, now)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// wholeDays floors a duration to calendar days, rounding toward negative infinity
func wholeDays(d time.Duration) float64 {
	return math.Floor(d.Hours() / 24)
}
