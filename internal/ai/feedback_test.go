package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/engdrill/pkg/models"
)

func intPtr(v int) *int { return &v }

func TestDetections(t *testing.T) {
	fb := ConversationFeedback{
		Transcription: "Yesterday I go to the market and buy very big apples.",
		Situation:     models.Situation{UserRole: "customer", AIRole: "vendor", Situation: "market"},
		Feedback: DetailedFeedback{
			GrammarIssues: []GrammarIssue{
				{Issue: "I go", Correction: "I went", Explanation: "Past tense", Severity: intPtr(4)},
				{Issue: "buy", Correction: "bought", Explanation: "Past tense", Severity: intPtr(2)},
				{Issue: "the market", Correction: "a market", Explanation: "Article"},
			},
			VocabularyIssues: []VocabularyIssue{
				{Original: "very big", BetterAlternative: "huge", Reason: "More natural", ExampleUsage: "They were huge apples."},
			},
		},
	}

	got := fb.Detections()
	require.Len(t, got, 3)

	assert.Equal(t, "GRAMMAR", got[0].Type)
	assert.Equal(t, "I go", got[0].OriginalText)
	assert.Equal(t, 4, *got[0].Severity)
	assert.Equal(t, "Yesterday [I go] to the market and buy very big apples.", got[0].Context)
	assert.Equal(t, "vendor", got[0].Situation.AIRole)

	assert.Equal(t, "the market", got[1].OriginalText)
	assert.Equal(t, models.DefaultSeverity, *got[1].Severity)

	assert.Equal(t, "VOCABULARY", got[2].Type)
	assert.Equal(t, "huge", got[2].Correction)
	assert.Equal(t, "More natural", got[2].Explanation)
	assert.Equal(t, "They were huge apples.", got[2].ExampleUsage)
	assert.Nil(t, got[2].Severity)
}

func TestExtractContext(t *testing.T) {
	long := "This sentence is padded with plenty of words before the mistake, then I goes home and keeps talking for a long while after it."

	tests := []struct {
		name          string
		transcription string
		text          string
		want          string
	}{
		{name: "not found", transcription: "Hello there", text: "bye", want: "Hello there"},
		{name: "empty text", transcription: "Hello there", text: "", want: "Hello there"},
		{name: "short transcription", transcription: "I goes home", text: "I goes", want: "[I goes] home"},
		{
			name:          "window of fifty characters",
			transcription: long,
			text:          "I goes",
			want:          "ded with plenty of words before the mistake, then [I goes] home and keeps talking for a long while after it.",
		},
		{name: "multibyte", transcription: "Café où je suis allé", text: "je suis", want: "Café où [je suis] allé"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractContext(tt.transcription, tt.text))
		})
	}
}

func TestParseDetailedFeedback(t *testing.T) {
	raw := "```json\n{\"user_feedback\": \"Nice!\", \"detailed_feedback\": {\"grammar_issues\": [{\"issue\": \"I go\", \"correction\": \"I went\", \"explanation\": \"Past\", \"severity\": 3}], \"vocabulary_issues\": []}}\n```"

	fb, err := ParseDetailedFeedback(raw)
	require.NoError(t, err)
	require.Len(t, fb.GrammarIssues, 1)
	assert.Equal(t, "I went", fb.GrammarIssues[0].Correction)

	bare, err := ParseDetailedFeedback(`{"vocabulary_issues": [{"original": "very big", "better_alternative": "huge"}]}`)
	require.NoError(t, err)
	require.Len(t, bare.VocabularyIssues, 1)
	assert.Equal(t, "huge", bare.VocabularyIssues[0].BetterAlternative)

	_, err = ParseDetailedFeedback("not json")
	assert.Error(t, err)
}

func TestConversationFeedback_DecodeRaw(t *testing.T) {
	f := ConversationFeedback{
		Transcription: "Yesterday I go home.",
		RawFeedback:   "```json\n{\"detailed_feedback\": {\"grammar_issues\": [{\"issue\": \"I go\", \"correction\": \"I went\", \"severity\": 4}]}}\n```",
	}
	require.NoError(t, f.DecodeRaw())

	got := f.Detections()
	require.Len(t, got, 1)
	assert.Equal(t, "I go", got[0].OriginalText)
	assert.Equal(t, "I went", got[0].Correction)

	decoded := ConversationFeedback{Feedback: DetailedFeedback{VocabularyIssues: []VocabularyIssue{{Original: "very big", BetterAlternative: "huge"}}}}
	require.NoError(t, decoded.DecodeRaw())
	assert.Len(t, decoded.Detections(), 1)

	broken := ConversationFeedback{RawFeedback: "sorry, I cannot help with that"}
	assert.Error(t, broken.DecodeRaw())
}
