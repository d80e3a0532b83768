package spaced_repetition

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedule_PoorPerformanceResets(t *testing.T) {
	sm := NewSM2(nil)

	got := sm.Schedule(12, 2.5, 0.2)
	assert.Equal(t, 1, got.Days)
	assert.InDelta(t, 2.3, got.EaseFactor, 1e-9)
}

func TestSchedule_ResetRespectsEaseFloor(t *testing.T) {
	sm := NewSM2(nil)

	got := sm.Schedule(5, 1.4, 0)
	assert.Equal(t, 1, got.Days)
	assert.Equal(t, 1.3, got.EaseFactor)
}

func TestSchedule_FirstPractice(t *testing.T) {
	sm := NewSM2(nil)

	got := sm.Schedule(0, 2.5, 0.9)
	assert.Equal(t, Interval{Days: 1, EaseFactor: 2.5}, got)
}

func TestSchedule_SecondPractice(t *testing.T) {
	sm := NewSM2(nil)

	got := sm.Schedule(1, 2.1, 0.6)
	assert.Equal(t, Interval{Days: 6, EaseFactor: 2.1}, got)
}

func TestSchedule_GrowsWithEaseFactor(t *testing.T) {
	sm := NewSM2(nil)

	// perfect answer: ef + 0.1
	got := sm.Schedule(6, 2.5, 1.0)
	assert.InDelta(t, 2.6, got.EaseFactor, 1e-9)
	assert.Equal(t, 16, got.Days) // ceil(6 * 2.6) = 15.6 -> 16

	// rescaled 3: ef + (0.1 - 2*0.08) = ef - 0.06
	got = sm.Schedule(6, 2.5, 0.6)
	assert.InDelta(t, 2.44, got.EaseFactor, 1e-9)
	assert.Equal(t, 15, got.Days) // ceil(14.64)
}

func TestSchedule_CapsAtThirtyDays(t *testing.T) {
	sm := NewSM2(nil)

	got := sm.Schedule(20, 2.5, 1.0)
	assert.Equal(t, 30, got.Days)
}

func TestSchedule_ThresholdBoundary(t *testing.T) {
	sm := NewSM2(nil)

	// 0.4 rescales to exactly 2, which is not a reset
	got := sm.Schedule(1, 2.5, 0.4)
	assert.Equal(t, 6, got.Days)

	got = sm.Schedule(1, 2.5, 0.39)
	assert.Equal(t, 1, got.Days)
}

func TestSchedule_ClampsInvalidInput(t *testing.T) {
	sm := NewSM2(nil)

	got := sm.Schedule(-3, 0.5, 1.7)
	assert.Equal(t, 1, got.Days)
	assert.GreaterOrEqual(t, got.EaseFactor, 1.3)
}

func TestSchedule_InvariantsHoldForRandomSequences(t *testing.T) {
	sm := NewSM2(nil)
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 200; run++ {
		interval, ef := 0, 2.5
		for step := 0; step < 40; step++ {
			got := sm.Schedule(interval, ef, rng.Float64())
			require.GreaterOrEqual(t, got.EaseFactor, 1.3)
			require.GreaterOrEqual(t, got.Days, 1)
			require.LessOrEqual(t, got.Days, 30)
			interval, ef = got.Days, got.EaseFactor
		}
	}
}

func TestNewItemDate(t *testing.T) {
	sm := NewSM2(nil)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(24*time.Hour), sm.NewItemDate(now))
	assert.Equal(t, now.AddDate(0, 0, 6), sm.NextDate(now, Interval{Days: 6}))
}
