package drill

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/engdrill/pkg/models"
)

func TestStoreDetections_CreatesNewRecord(t *testing.T) {
	env := newTestEnv(t, nil)
	now := env.clock.Now()

	id := env.storeOne(t, grammarDetection("I go yesterday", "I went yesterday", 3))

	m := env.get(t, id)
	assert.Equal(t, models.MistakeGrammar, m.Type)
	assert.Equal(t, models.StatusNew, m.Status)
	assert.Equal(t, 1, m.Frequency)
	assert.Equal(t, 3, m.Severity)
	assert.Equal(t, 2.5, m.EaseFactor)
	assert.Equal(t, 0, m.IntervalDays)
	assert.True(t, m.InDrillQueue)
	assert.Nil(t, m.LastPracticed)
	assert.WithinDuration(t, now.Add(24*time.Hour), m.NextPracticeDate, 0)
	assert.WithinDuration(t, now, m.LastOccurred, 0)
}

func TestStoreDetections_MergesDuplicate(t *testing.T) {
	env := newTestEnv(t, nil)
	d := grammarDetection("I go yesterday", "I went yesterday", 3)

	first := env.storeOne(t, d)
	before := env.get(t, first)

	env.clock.Advance(3 * time.Hour)
	second := env.storeOne(t, d)
	require.Equal(t, first, second)

	after := env.get(t, second)
	assert.Equal(t, 2, after.Frequency)
	assert.WithinDuration(t, env.clock.Now(), after.LastOccurred, 0)
	assert.WithinDuration(t, before.NextPracticeDate, after.NextPracticeDate, 0)
	assert.Equal(t, before.EaseFactor, after.EaseFactor)
	assert.Equal(t, before.Status, after.Status)
}

func TestStoreDetections_DedupInvariant(t *testing.T) {
	env := newTestEnv(t, nil)
	d := grammarDetection("she don't know", "she doesn't know", 4)

	batch := make([]models.Detection, 7)
	for i := range batch {
		batch[i] = d
	}
	ids, err := env.svc.StoreDetections(env.ctx, testUser, batch)
	require.NoError(t, err)
	require.Len(t, ids, 7)
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	all, err := env.svc.ListMistakes(env.ctx, testUser, models.MistakeFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 7, all[0].Frequency)
}

func TestStoreDetections_SkipsMalformedKeepsOrder(t *testing.T) {
	env := newTestEnv(t, nil)

	batch := []models.Detection{
		grammarDetection("a", "b", 3),
		{Type: "grammar", OriginalText: "  ", Correction: "x"},
		{Type: "vocabulary", OriginalText: "very big", Correction: ""},
		{Type: "spelling", OriginalText: "teh", Correction: "the"},
		{Type: "vocabulary", OriginalText: "very big", Correction: "huge", Severity: severity(9)},
		grammarDetection("a", "b", 3),
	}
	ids, err := env.svc.StoreDetections(env.ctx, testUser, batch)
	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.Equal(t, ids[0], ids[2])
	assert.NotEqual(t, ids[0], ids[1])

	vocab := env.get(t, ids[1])
	assert.Equal(t, models.MistakeVocabulary, vocab.Type)
	assert.Equal(t, 5, vocab.Severity)
}

func TestStoreDetections_DefaultSeverityAndSituation(t *testing.T) {
	env := newTestEnv(t, nil)

	id := env.storeOne(t, models.Detection{
		Type:         "Pronunciation",
		OriginalText: "th as in think",
		Correction:   "voiceless dental fricative",
		Situation:    models.Situation{UserRole: "customer", AIRole: "barista", Situation: "ordering coffee"},
	})

	m := env.get(t, id)
	assert.Equal(t, models.MistakePronunciation, m.Type)
	assert.Equal(t, models.DefaultSeverity, m.Severity)
	assert.Equal(t, "barista", m.SituationContext.AIRole)
}

func TestStoreDetections_SameTextDifferentTypeOrUser(t *testing.T) {
	env := newTestEnv(t, nil)

	grammar := env.storeOne(t, grammarDetection("make a photo", "take a photo", 3))
	vocab := env.storeOne(t, models.Detection{Type: "VOCABULARY", OriginalText: "make a photo", Correction: "take a photo"})
	assert.NotEqual(t, grammar, vocab)

	other, err := env.svc.StoreDetections(env.ctx, "user-2", []models.Detection{grammarDetection("make a photo", "take a photo", 3)})
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.NotEqual(t, grammar, other[0])
}

func TestStoreDetections_MasteredIsNotAMergeTarget(t *testing.T) {
	env := newTestEnv(t, nil)
	d := grammarDetection("I go yesterday", "I went yesterday", 3)

	id := env.storeOne(t, d)
	for i := 0; i < 3; i++ {
		env.practice(t, id, true)
	}
	require.Equal(t, models.StatusMastered, env.get(t, id).Status)

	fresh := env.storeOne(t, d)
	assert.NotEqual(t, id, fresh)

	m := env.get(t, fresh)
	assert.Equal(t, models.StatusNew, m.Status)
	assert.Equal(t, 1, m.Frequency)
	assert.Equal(t, models.StatusMastered, env.get(t, id).Status)
}

func TestStoreDetections_RevivesMasteredWhenEnabled(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.ReviveMastered = true })
	d := grammarDetection("I go yesterday", "I went yesterday", 3)

	id := env.storeOne(t, d)
	for i := 0; i < 3; i++ {
		env.practice(t, id, true)
	}
	require.Equal(t, models.StatusMastered, env.get(t, id).Status)

	env.clock.Advance(48 * time.Hour)
	revived := env.storeOne(t, d)
	require.Equal(t, id, revived)

	m := env.get(t, id)
	assert.Equal(t, models.StatusLearning, m.Status)
	assert.True(t, m.InDrillQueue)
	assert.Equal(t, 2, m.Frequency)
	assert.Equal(t, 3, m.SuccessCount)
	assert.WithinDuration(t, env.clock.Now().AddDate(0, 0, 5), m.NextPracticeDate, 0)

	// Now unmastered again, the next detection is a plain merge
	again := env.storeOne(t, d)
	assert.Equal(t, id, again)
	assert.Equal(t, 3, env.get(t, id).Frequency)
}

func TestStoreDetections_RequiresUser(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.svc.StoreDetections(env.ctx, "", []models.Detection{grammarDetection("a", "b", 3)})
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}
