package models

import "time"

// DrillSession is a bounded, time-limited set of mistakes selected for one practice round
type DrillSession struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	MistakeIDs []string  `json:"mistake_ids" db:"-"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	ExpiresAt  time.Time `json:"expires_at" db:"expires_at"`
}

// Expired reports whether the session stopped accepting results at now
func (s *DrillSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Contains reports whether mistakeID was selected for this session
func (s *DrillSession) Contains(mistakeID string) bool {
	for _, id := range s.MistakeIDs {
		if id == mistakeID {
			return true
		}
	}
	return false
}

// DrillItem is one mistake of a session together with its practice prompt
type DrillItem struct {
	Mistake
	PracticePrompt string  `json:"practice_prompt"`
	PriorityScore  float64 `json:"priority_score"`
}

// PracticeAttempt records an applied practice result under a client idempotency key
type PracticeAttempt struct {
	UserID         string    `json:"user_id" db:"user_id"`
	IdempotencyKey string    `json:"idempotency_key" db:"idempotency_key"`
	MistakeID      string    `json:"mistake_id" db:"mistake_id"`
	Feedback       string    `json:"feedback" db:"feedback"`
	Applied        bool      `json:"applied" db:"applied"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
