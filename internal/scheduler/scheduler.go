package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Default sweep settings
const (
	DefaultSweepInterval    = time.Hour
	DefaultAttemptRetention = 7 * 24 * time.Hour
)

// SessionStore drops drill sessions that stopped accepting results
type SessionStore interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// AttemptStore drops idempotency keys nobody will retry anymore
type AttemptStore interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// DueCounter reports how many mistakes each user has waiting
type DueCounter interface {
	CountDueByUser(ctx context.Context, now time.Time) (map[string]int, error)
}

// Options configures the sweep
type Options struct {
	Interval         time.Duration
	AttemptRetention time.Duration
	// Now is the clock; defaults to time.Now in UTC
	Now func() time.Time
}

// SweepResult summarizes one sweep run
type SweepResult struct {
	ExpiredSessions int64
	StaleAttempts   int64
	DueByUser       map[string]int
}

// Scheduler manages scheduled housekeeping. Due-ness is always derived when
// a session is created, so a missed sweep only leaves stale rows behind.
type Scheduler struct {
	scheduler *gocron.Scheduler
	sessions  SessionStore
	attempts  AttemptStore
	due       DueCounter
	opts      Options
	logger    *zap.Logger
}

// New creates a new scheduler instance
func New(sessions SessionStore, attempts AttemptStore, due DueCounter, opts Options, logger *zap.Logger) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultSweepInterval
	}
	if opts.AttemptRetention <= 0 {
		opts.AttemptRetention = DefaultAttemptRetention
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		sessions:  sessions,
		attempts:  attempts,
		due:       due,
		opts:      opts,
		logger:    logger,
	}
}

// Start begins running the sweep every interval, the first run immediately
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(s.opts.Interval).Do(s.sweep); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	// Start the scheduler in a non-blocking manner
	s.scheduler.StartAsync()
	s.logger.Info("sweep scheduled", zap.Duration("interval", s.opts.Interval))
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.Interval)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("sweep failed", zap.Error(err))
	}
}

// RunOnce purges expired sessions and stale idempotency keys and logs the
// due backlog of every user. A failing step does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) (*SweepResult, error) {
	now := s.opts.Now()
	result := &SweepResult{}
	var firstErr error

	expired, err := s.sessions.DeleteExpired(ctx, now)
	if err != nil {
		s.logger.Error("failed to purge expired sessions", zap.Error(err))
		firstErr = err
	}
	result.ExpiredSessions = expired

	stale, err := s.attempts.DeleteOlderThan(ctx, now.Add(-s.opts.AttemptRetention))
	if err != nil {
		s.logger.Error("failed to purge practice attempts", zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}
	result.StaleAttempts = stale

	counts, err := s.due.CountDueByUser(ctx, now)
	if err != nil {
		s.logger.Error("failed to count due mistakes", zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}
	result.DueByUser = counts
	for userID, count := range counts {
		s.logger.Info("mistakes due for practice", zap.String("user_id", userID), zap.Int("due", count))
	}

	s.logger.Info("sweep finished",
		zap.Int64("expired_sessions", expired),
		zap.Int64("stale_attempts", stale),
		zap.Int("users_with_due", len(counts)))
	return result, firstErr
}
