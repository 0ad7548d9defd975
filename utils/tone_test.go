package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tahseel/models"
)

func TestRecommendedProgression(t *testing.T) {
	got := RecommendedProgression(models.TierGovernment)
	assert.Equal(t, []string{
		models.ToneVeryFormal, models.ToneVeryFormal, models.ToneFormal, models.ToneFormal,
	}, got)

	// Unknown tiers fall back to the REGULAR ladder
	assert.Equal(t, RecommendedProgression(models.TierRegular), RecommendedProgression("WHOLESALE"))
}

func TestRecommendedProgressionReturnsCopy(t *testing.T) {
	first := RecommendedProgression(models.TierVIP)
	first[0] = models.ToneUrgent

	second := RecommendedProgression(models.TierVIP)
	assert.Equal(t, models.ToneFriendly, second[0])
}

func TestValidateEscalationAcceptsSaneLadder(t *testing.T) {
	steps := []EscalationStep{
		{Tone: models.ToneFriendly, DelayDays: 7},
		{Tone: models.ToneBusiness, DelayDays: 7},
		{Tone: models.ToneFormal, DelayDays: 7},
		{Tone: models.ToneFirm, DelayDays: 10},
	}

	report := ValidateEscalation(steps, models.TierRegular)

	assert.True(t, report.Appropriate)
	assert.Empty(t, report.Issues)
	assert.Empty(t, report.Suggestions)
	assert.Equal(t, RecommendedProgression(models.TierRegular), report.RecommendedProgression)
}

func TestValidateEscalationFlagsCooldownAndCeiling(t *testing.T) {
	steps := []EscalationStep{
		{Tone: models.ToneGentle, DelayDays: 1},
		{Tone: models.ToneFirm, DelayDays: 2},
		{Tone: models.ToneUrgent, DelayDays: 3},
	}

	report := ValidateEscalation(steps, models.TierVIP)

	assert.False(t, report.Appropriate)
	require.Len(t, report.Issues, 5)
	require.Len(t, report.Suggestions, 5)

	joined := strings.Join(report.Issues, "; ")
	assert.Contains(t, joined, "starts too soon")
	assert.Contains(t, joined, "follows too quickly")
	assert.Contains(t, joined, "too aggressive")

	// VIP never escalates past FORMAL
	assert.Contains(t, strings.Join(report.Suggestions, "; "), "use FORMAL or softer")
	assert.Equal(t, RecommendedProgression(models.TierVIP), report.RecommendedProgression)
}

func TestValidateEscalationCeilingPerTier(t *testing.T) {
	steps := []EscalationStep{{Tone: models.ToneFirm, DelayDays: 7}}

	// FIRM is within the REGULAR ceiling but past the GOVERNMENT one
	assert.True(t, ValidateEscalation(steps, models.TierRegular).Appropriate)
	assert.False(t, ValidateEscalation(steps, models.TierGovernment).Appropriate)
	assert.False(t, ValidateEscalation(steps, models.TierNew).Appropriate)
}

func TestRecommendedToneRuleOrder(t *testing.T) {
	// Loyalty rule wins even when the account is badly overdue
	assert.Equal(t, models.ToneGentle, RecommendedTone(ToneContext{
		RelationshipMonths: 36,
		PaymentHistory:     models.HistoryExcellent,
		AttemptNumber:      2,
		DaysOverdue:        95,
	}))

	// Past attempt two the loyalty rule stops applying
	assert.Equal(t, models.ToneUrgent, RecommendedTone(ToneContext{
		RelationshipMonths: 36,
		PaymentHistory:     models.HistoryExcellent,
		AttemptNumber:      3,
		DaysOverdue:        95,
	}))

	// Urgency outranks the overlapping firm rule
	assert.Equal(t, models.ToneUrgent, RecommendedTone(ToneContext{
		DaysOverdue:    95,
		AttemptNumber:  3,
		PaymentHistory: models.HistoryAverage,
	}))
	assert.Equal(t, models.ToneUrgent, RecommendedTone(ToneContext{
		AttemptNumber: 5,
		DaysOverdue:   10,
	}))

	assert.Equal(t, models.ToneFirm, RecommendedTone(ToneContext{
		PaymentHistory: models.HistoryPoor,
		AttemptNumber:  3,
		DaysOverdue:    20,
	}))
	assert.Equal(t, models.ToneFirm, RecommendedTone(ToneContext{
		DaysOverdue:   50,
		AttemptNumber: 1,
	}))

	assert.Equal(t, models.ToneProfessional, RecommendedTone(ToneContext{
		DaysOverdue:   10,
		AttemptNumber: 1,
	}))
}

func TestToneGuidelinesCoverEveryTone(t *testing.T) {
	seen := make(map[string]bool)
	for _, guideline := range ToneGuidelines {
		seen[guideline.Tone] = true
		assert.NotEmpty(t, guideline.ExamplePhrases["en"], "tone %s missing English phrase", guideline.Tone)
		assert.NotEmpty(t, guideline.ExamplePhrases["ar"], "tone %s missing Arabic phrase", guideline.Tone)
	}
	for tone := range toneRank {
		assert.True(t, seen[tone], "tone %s has no guideline", tone)
	}
}
