package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/example/engdrill/internal/database"
	"github.com/example/engdrill/pkg/models"
)

var sweepNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func TestRunOnce(t *testing.T) {
	db, err := database.Connect(database.Options{Driver: database.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	sessions := database.NewSessionRepository(db)
	attempts := database.NewAttemptRepository(db)
	mistakes := database.NewMistakeRepository(db)

	require.NoError(t, sessions.Create(ctx, &models.DrillSession{
		ID: "old", UserID: "u1", MistakeIDs: []string{},
		CreatedAt: sweepNow.Add(-48 * time.Hour), ExpiresAt: sweepNow.Add(-24 * time.Hour),
	}))
	require.NoError(t, sessions.Create(ctx, &models.DrillSession{
		ID: "live", UserID: "u1", MistakeIDs: []string{},
		CreatedAt: sweepNow, ExpiresAt: sweepNow.Add(24 * time.Hour),
	}))

	_, err = attempts.Claim(ctx, &models.PracticeAttempt{UserID: "u1", IdempotencyKey: "k-old", MistakeID: "m", CreatedAt: sweepNow.Add(-8 * 24 * time.Hour)})
	require.NoError(t, err)
	_, err = attempts.Claim(ctx, &models.PracticeAttempt{UserID: "u1", IdempotencyKey: "k-new", MistakeID: "m", CreatedAt: sweepNow.Add(-time.Hour)})
	require.NoError(t, err)

	for i, user := range []string{"u1", "u1", "u2"} {
		_, _, err := mistakes.Upsert(ctx, &models.Mistake{
			ID: string(rune('a' + i)), UserID: user, Type: models.MistakeGrammar,
			OriginalText: string(rune('a' + i)), Correction: "x", Severity: 3, Frequency: 1,
			LastOccurred: sweepNow.Add(-72 * time.Hour), EaseFactor: models.DefaultEaseFactor,
			NextPracticeDate: sweepNow.Add(-time.Hour), Status: models.StatusNew, InDrillQueue: true,
			Version: 1, CreatedAt: sweepNow.Add(-72 * time.Hour), UpdatedAt: sweepNow.Add(-72 * time.Hour),
		})
		require.NoError(t, err)
	}

	core, logs := observer.New(zap.InfoLevel)
	s := New(sessions, attempts, mistakes, Options{Now: func() time.Time { return sweepNow }}, zap.New(core))

	result, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.ExpiredSessions)
	assert.Equal(t, int64(1), result.StaleAttempts)
	assert.Equal(t, map[string]int{"u1": 2, "u2": 1}, result.DueByUser)

	_, err = sessions.GetByID(ctx, "live", "u1")
	assert.NoError(t, err)
	_, err = sessions.GetByID(ctx, "old", "u1")
	assert.ErrorIs(t, err, database.ErrNotFound)
	_, err = attempts.Get(ctx, "u1", "k-new")
	assert.NoError(t, err)

	assert.Equal(t, 2, logs.FilterMessage("mistakes due for practice").Len())
	assert.Equal(t, 1, logs.FilterMessage("sweep finished").Len())
}

type failingSessions struct{}

func (failingSessions) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, errors.New("disk on fire")
}

type countingAttempts struct{ calls int }

func (c *countingAttempts) DeleteOlderThan(context.Context, time.Time) (int64, error) {
	c.calls++
	return 3, nil
}

type staticDue map[string]int

func (d staticDue) CountDueByUser(context.Context, time.Time) (map[string]int, error) {
	return d, nil
}

func TestRunOnce_ContinuesAfterFailure(t *testing.T) {
	attempts := &countingAttempts{}
	s := New(failingSessions{}, attempts, staticDue{"u1": 4}, Options{}, nil)

	result, err := s.RunOnce(context.Background())
	assert.EqualError(t, err, "disk on fire")
	assert.Equal(t, 1, attempts.calls)
	assert.Equal(t, int64(3), result.StaleAttempts)
	assert.Equal(t, 4, result.DueByUser["u1"])
}

func TestStartStop(t *testing.T) {
	attempts := &countingAttempts{}
	s := New(staticSessions{}, attempts, staticDue{}, Options{Interval: time.Hour}, nil)

	require.NoError(t, s.Start())
	assert.Eventually(t, func() bool { return s.scheduler.IsRunning() }, time.Second, 10*time.Millisecond)
	s.Stop()
	assert.False(t, s.scheduler.IsRunning())
}

type staticSessions struct{}

func (staticSessions) DeleteExpired(context.Context, time.Time) (int64, error) { return 0, nil }
