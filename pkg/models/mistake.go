package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// MistakeType classifies a language mistake
type MistakeType string

const (
	MistakeGrammar         MistakeType = "GRAMMAR"
	MistakeVocabulary      MistakeType = "VOCABULARY"
	MistakePronunciation   MistakeType = "PRONUNCIATION"
	MistakeFluency         MistakeType = "FLUENCY"
	MistakeCulturalContext MistakeType = "CULTURAL_CONTEXT"
)

// ParseMistakeType accepts any casing ("grammar", "Grammar", "GRAMMAR")
func ParseMistakeType(s string) (MistakeType, bool) {
	t := MistakeType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case MistakeGrammar, MistakeVocabulary, MistakePronunciation, MistakeFluency, MistakeCulturalContext:
		return t, true
	}
	return "", false
}

// MistakeStatus is the learning state of a mistake
type MistakeStatus string

const (
	StatusNew      MistakeStatus = "NEW"
	StatusLearning MistakeStatus = "LEARNING"
	StatusMastered MistakeStatus = "MASTERED"
)

// ParseMistakeStatus accepts any casing
func ParseMistakeStatus(s string) (MistakeStatus, bool) {
	st := MistakeStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusNew, StatusLearning, StatusMastered:
		return st, true
	}
	return "", false
}

const (
	// DefaultEaseFactor is the ease factor of a mistake that was never practiced
	DefaultEaseFactor = 2.5
	// MinEaseFactor is the floor of the ease factor
	MinEaseFactor = 1.3
	// DefaultSeverity is used when a detection carries no severity
	DefaultSeverity = 3
)

// Situation describes the conversation a mistake was made in
type Situation struct {
	UserRole  string `json:"user_role,omitempty"`
	AIRole    string `json:"ai_role,omitempty"`
	Situation string `json:"situation,omitempty"`
}

// IsZero reports whether no situation data is present
func (s Situation) IsZero() bool {
	return s.UserRole == "" && s.AIRole == "" && s.Situation == ""
}

// Value stores the situation as JSON text, NULL when empty
func (s Situation) Value() (driver.Value, error) {
	if s.IsZero() {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads the JSON text written by Value
func (s *Situation) Scan(src interface{}) error {
	*s = Situation{}
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported situation column type %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, s)
}

// Mistake is one tracked language mistake of a user and its practice history
type Mistake struct {
	ID               string        `json:"id" db:"id"`
	UserID           string        `json:"user_id" db:"user_id"`
	Type             MistakeType   `json:"type" db:"type"`
	OriginalText     string        `json:"original_text" db:"original_text"`
	Correction       string        `json:"correction" db:"correction"`
	Explanation      string        `json:"explanation" db:"explanation"`
	Context          string        `json:"context" db:"context"`
	ExampleUsage     string        `json:"example_usage,omitempty" db:"example_usage"`
	SituationContext Situation     `json:"situation_context" db:"situation_context"`
	Severity         int           `json:"severity" db:"severity"` // 1-5
	Frequency        int           `json:"frequency" db:"frequency"`
	LastOccurred     time.Time     `json:"last_occurred" db:"last_occurred"`
	EaseFactor       float64       `json:"ease_factor" db:"ease_factor"`
	IntervalDays     int           `json:"interval_days" db:"interval_days"` // 0 until first practice
	PracticeCount    int           `json:"practice_count" db:"practice_count"`
	SuccessCount     int           `json:"success_count" db:"success_count"`
	FailedPractices  int           `json:"failed_practices" db:"failed_practices"`
	MasteryLevel     float64       `json:"mastery_level" db:"mastery_level"`
	LastAnswer       string        `json:"last_answer,omitempty" db:"last_answer"`
	LastPracticed    *time.Time    `json:"last_practiced" db:"last_practiced"`
	NextPracticeDate time.Time     `json:"next_practice_date" db:"next_practice_date"`
	Status           MistakeStatus `json:"status" db:"status"`
	InDrillQueue     bool          `json:"in_drill_queue" db:"in_drill_queue"`
	Version          int64         `json:"-" db:"version"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

// IsDue reports whether the mistake may be drilled at now
func (m *Mistake) IsDue(now time.Time) bool {
	return m.InDrillQueue && !m.NextPracticeDate.After(now)
}

// IsLearned mirrors the legacy is_learned flag
func (m *Mistake) IsLearned() bool {
	return m.Status == StatusMastered
}

// Detection is a mistake reported by the feedback generator, not yet stored
type Detection struct {
	Type         string    `json:"type"`
	OriginalText string    `json:"original_text"`
	Correction   string    `json:"correction"`
	Explanation  string    `json:"explanation"`
	Context      string    `json:"context"`
	ExampleUsage string    `json:"example_usage,omitempty"`
	Severity     *int      `json:"severity,omitempty"`
	Situation    Situation `json:"situation,omitempty"`
}

// MistakeFilter narrows a mistake listing
type MistakeFilter struct {
	Type         *MistakeType
	InDrillQueue *bool
	IsLearned    *bool
	Limit        int
	Skip         int
}

// MistakeUpdate is a manual edit; nil fields are left untouched
type MistakeUpdate struct {
	Severity     *int           `json:"severity,omitempty"`
	Status       *MistakeStatus `json:"status,omitempty"`
	IsLearned    *bool          `json:"is_learned,omitempty"`
	InDrillQueue *bool          `json:"in_drill_queue,omitempty"`
}
