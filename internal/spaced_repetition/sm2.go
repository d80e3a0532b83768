package spaced_repetition

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/example/engdrill/pkg/models"
)

// SM2 implements the SuperMemo-2 family scheduler adapted to a 0-1 performance scale
type SM2 struct {
	// Rescaled (0-5) performance below this value resets the interval
	ResetThreshold float64
	// Maximum interval in days
	MaxInterval int
	// Ease factor penalty applied on reset
	ResetPenalty float64

	logger *zap.Logger
}

// NewSM2 creates a scheduler with the default settings
func NewSM2(logger *zap.Logger) *SM2 {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SM2{
		ResetThreshold: 2,
		MaxInterval:    30,
		ResetPenalty:   0.2,
		logger:         logger,
	}
}

// Interval is the outcome of one scheduling step
type Interval struct {
	Days       int
	EaseFactor float64
}

// Schedule computes the next interval and ease factor after a practice attempt.
// previousIntervalDays is 0 for an item that was never practiced.
func (sm *SM2) Schedule(previousIntervalDays int, easeFactor, performance float64) Interval {
	previousIntervalDays, easeFactor, performance = sm.sanitize(previousIntervalDays, easeFactor, performance)

	// Convert performance from 0-1 scale to the classical 0-5 scale
	quality := performance * 5

	// Very poor answer: start over tomorrow
	if quality < sm.ResetThreshold {
		return Interval{
			Days:       1,
			EaseFactor: math.Max(models.MinEaseFactor, easeFactor-sm.ResetPenalty),
		}
	}

	switch previousIntervalDays {
	case 0:
		return Interval{Days: 1, EaseFactor: easeFactor}
	case 1:
		return Interval{Days: sm.clampDays(6), EaseFactor: easeFactor}
	}

	newEF := easeFactor + (0.1 - (5-quality)*0.08)
	if newEF < models.MinEaseFactor {
		newEF = models.MinEaseFactor
	}

	days := int(math.Ceil(float64(previousIntervalDays) * newEF))
	return Interval{Days: sm.clampDays(days), EaseFactor: newEF}
}

// NewItemDate is the first practice date of a freshly detected mistake
func (sm *SM2) NewItemDate(now time.Time) time.Time {
	return now.AddDate(0, 0, 1)
}

// NextDate converts an interval into a practice date
func (sm *SM2) NextDate(now time.Time, interval Interval) time.Time {
	return now.AddDate(0, 0, interval.Days)
}

func (sm *SM2) clampDays(days int) int {
	if days < 1 {
		return 1
	}
	if days > sm.MaxInterval {
		return sm.MaxInterval
	}
	return days
}

// sanitize clamps inputs that break scheduling invariants; these should never
// reach the scheduler, so each clamp is logged.
func (sm *SM2) sanitize(prev int, ef, perf float64) (int, float64, float64) {
	if prev < 0 {
		sm.logger.Warn("scheduling invariant violation: negative interval, clamping",
			zap.Int("previous_interval_days", prev))
		prev = 0
	}
	if math.IsNaN(ef) || ef < models.MinEaseFactor {
		sm.logger.Warn("scheduling invariant violation: ease factor below floor, clamping",
			zap.Float64("ease_factor", ef))
		ef = models.MinEaseFactor
	}
	switch {
	case math.IsNaN(perf) || perf < 0:
		sm.logger.Warn("performance outside [0,1], clamping", zap.Float64("performance", perf))
		perf = 0
	case perf > 1:
		sm.logger.Warn("performance outside [0,1], clamping", zap.Float64("performance", perf))
		perf = 1
	}
	return prev, ef, perf
}
