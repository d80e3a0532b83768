package drill

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/example/engdrill/internal/database"
	"github.com/example/engdrill/internal/spaced_repetition"
	"github.com/example/engdrill/pkg/models"
)

const testUser = "user-1"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	svc   *Service
	db    *sqlx.DB
	clock *testClock
	ctx   context.Context
}

func newTestEnv(t *testing.T, tweak func(*Options)) *testEnv {
	t.Helper()

	db, err := database.Connect(database.Options{Driver: database.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := &testClock{now: time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)}
	opts := DefaultOptions()
	opts.Now = clock.Now
	if tweak != nil {
		tweak(&opts)
	}

	svc := NewService(
		NewRepositories(db),
		spaced_repetition.NewSM2(nil),
		spaced_repetition.NewRanker(spaced_repetition.DefaultWeights()),
		opts,
		nil,
	)
	return &testEnv{svc: svc, db: db, clock: clock, ctx: context.Background()}
}

func severity(v int) *int { return &v }

func grammarDetection(original, correction string, sev int) models.Detection {
	return models.Detection{
		Type:         "GRAMMAR",
		OriginalText: original,
		Correction:   correction,
		Explanation:  "Use the past tense for finished actions.",
		Context:      "Yesterday " + original + " to the park.",
		Severity:     severity(sev),
	}
}

// storeOne stores a single detection and returns the touched id
func (e *testEnv) storeOne(t *testing.T, d models.Detection) string {
	t.Helper()
	ids, err := e.svc.StoreDetections(e.ctx, testUser, []models.Detection{d})
	require.NoError(t, err)
	require.Len(t, ids, 1)
	return ids[0]
}

func (e *testEnv) get(t *testing.T, id string) *models.Mistake {
	t.Helper()
	m, err := e.svc.GetMistake(e.ctx, id, testUser)
	require.NoError(t, err)
	return m
}

func (e *testEnv) practice(t *testing.T, id string, success bool) *PracticeOutcome {
	t.Helper()
	out, err := e.svc.RecordResult(e.ctx, PracticeInput{
		MistakeID:     id,
		UserID:        testUser,
		WasSuccessful: success,
		UserAnswer:    "answer",
	})
	require.NoError(t, err)
	return out
}
