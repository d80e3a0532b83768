// Package ai turns the structured output of the conversation feedback
// generator into mistake detections.
package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/engdrill/pkg/models"
)

// contextRadius is how many characters around a mistake are kept as context
const contextRadius = 50

// minGrammarSeverity drops minor grammar remarks
const minGrammarSeverity = 3

// GrammarIssue is one grammar remark of the generator
type GrammarIssue struct {
	Issue       string `json:"issue"`
	Correction  string `json:"correction"`
	Explanation string `json:"explanation"`
	Severity    *int   `json:"severity,omitempty"`
}

// VocabularyIssue is one word choice remark of the generator
type VocabularyIssue struct {
	Original          string `json:"original"`
	BetterAlternative string `json:"better_alternative"`
	Reason            string `json:"reason"`
	ExampleUsage      string `json:"example_usage"`
}

// DetailedFeedback is the machine readable part of the generator output
type DetailedFeedback struct {
	GrammarIssues    []GrammarIssue    `json:"grammar_issues"`
	VocabularyIssues []VocabularyIssue `json:"vocabulary_issues"`
}

// ConversationFeedback is a transcribed utterance with its feedback. The
// feedback arrives either decoded in Feedback or as the generator's raw text
// in RawFeedback.
type ConversationFeedback struct {
	Transcription string           `json:"transcription"`
	Feedback      DetailedFeedback `json:"feedback"`
	RawFeedback   string           `json:"raw_feedback,omitempty"`
	Situation     models.Situation `json:"situation"`
}

// DecodeRaw replaces Feedback with the decoded RawFeedback when present
func (f *ConversationFeedback) DecodeRaw() error {
	if strings.TrimSpace(f.RawFeedback) == "" {
		return nil
	}
	fb, err := ParseDetailedFeedback(f.RawFeedback)
	if err != nil {
		return err
	}
	f.Feedback = *fb
	return nil
}

// ParseDetailedFeedback decodes generator output, tolerating a markdown code fence around the JSON
func ParseDetailedFeedback(raw string) (*DetailedFeedback, error) {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	}

	// Accept both the bare object and the {"detailed_feedback": ...} envelope
	var envelope struct {
		Detailed *DetailedFeedback `json:"detailed_feedback"`
		DetailedFeedback
	}
	if err := json.Unmarshal([]byte(cleaned), &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode feedback: %w", err)
	}
	if envelope.Detailed != nil {
		return envelope.Detailed, nil
	}
	fb := envelope.DetailedFeedback
	return &fb, nil
}

// Detections maps feedback to detections, grammar first. Minor grammar
// issues (severity 1 or 2) are dropped; a missing severity counts as 3.
func (f *ConversationFeedback) Detections() []models.Detection {
	detections := make([]models.Detection, 0, len(f.Feedback.GrammarIssues)+len(f.Feedback.VocabularyIssues))

	for _, issue := range f.Feedback.GrammarIssues {
		severity := models.DefaultSeverity
		if issue.Severity != nil {
			severity = *issue.Severity
		}
		if severity < minGrammarSeverity {
			continue
		}
		detections = append(detections, models.Detection{
			Type:         string(models.MistakeGrammar),
			OriginalText: issue.Issue,
			Correction:   issue.Correction,
			Explanation:  issue.Explanation,
			Context:      ExtractContext(f.Transcription, issue.Issue),
			Severity:     &severity,
			Situation:    f.Situation,
		})
	}

	for _, issue := range f.Feedback.VocabularyIssues {
		detections = append(detections, models.Detection{
			Type:         string(models.MistakeVocabulary),
			OriginalText: issue.Original,
			Correction:   issue.BetterAlternative,
			Explanation:  issue.Reason,
			ExampleUsage: issue.ExampleUsage,
			Context:      ExtractContext(f.Transcription, issue.Original),
			Situation:    f.Situation,
		})
	}

	return detections
}

// ExtractContext returns up to 50 characters on each side of the first
// occurrence of text in transcription, with the mistake in brackets. The
// whole transcription is returned when text does not occur in it.
func ExtractContext(transcription, text string) string {
	if text == "" {
		return transcription
	}
	pos := strings.Index(transcription, text)
	if pos < 0 {
		return transcription
	}

	runes := []rune(transcription)
	start := len([]rune(transcription[:pos]))
	end := start + len([]rune(text))

	from := start - contextRadius
	if from < 0 {
		from = 0
	}
	to := end + contextRadius
	if to > len(runes) {
		to = len(runes)
	}

	window := string(runes[from:to])
	return strings.ReplaceAll(window, text, "["+text+"]")
}
