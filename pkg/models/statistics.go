package models

// MistakeStatistics summarizes a user's mistakes
type MistakeStatistics struct {
	TotalCount         int     `json:"total_count" db:"total_count"`
	MasteredCount      int     `json:"mastered_count" db:"mastered_count"`
	LearningCount      int     `json:"learning_count" db:"learning_count"`
	NewCount           int     `json:"new_count" db:"new_count"`
	GrammarCount       int     `json:"grammar_count" db:"grammar_count"`
	VocabularyCount    int     `json:"vocabulary_count" db:"vocabulary_count"`
	PronunciationCount int     `json:"pronunciation_count" db:"pronunciation_count"`
	DueForPractice     int     `json:"due_for_practice" db:"due_for_practice"`
	MasteryPercentage  float64 `json:"mastery_percentage" db:"-"`
}
