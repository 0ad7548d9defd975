package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tahseel/models"
)

func TestCalculateScoreAggressiveMessage(t *testing.T) {
	text := "PAY NOW!!! YOU MUST PAY IMMEDIATELY OR ELSE WE WILL TAKE LEGAL ACTION AGAINST YOU RIGHT NOW"

	breakdown := CalculateScore(text, ComplianceContext{Language: "en", RelationshipTier: models.TierRegular})

	assert.Less(t, breakdown.Composite, 40.0)
	assert.Equal(t, 0.0, breakdown.ToneScore)
	assert.GreaterOrEqual(t, len(breakdown.Recommendations), 5)

	joined := strings.Join(breakdown.Recommendations, "; ")
	assert.Contains(t, joined, "demanding language")
	assert.Contains(t, joined, "capitals")
	assert.Contains(t, joined, "exclamation")
}

func TestCalculateScoreTraditionalMessage(t *testing.T) {
	text := "As-salamu alaykum Dear Mr. Ahmed,\n\n" +
		"We hope this message finds you well. Our records show that invoice INV-100 " +
		"for AED 5,000.00 remains outstanding. We would appreciate settlement at your " +
		"earliest convenience, inshallah.\n\n" +
		"Our office in Dubai is open Sunday to Thursday, 9:00 AM to 6:00 PM. " +
		"Our TRN is 100234567890003.\n\n" +
		"JazakAllah khair,\nAl Noor Trading LLC"

	breakdown := CalculateScore(text, ComplianceContext{Language: "en", RelationshipTier: models.TierVIP})

	assert.Greater(t, breakdown.Composite, 90.0)
	assert.Empty(t, breakdown.Recommendations)
	assert.Equal(t, 100.0, breakdown.GreetingScore)
	assert.Equal(t, 100.0, breakdown.ToneScore)
	// Religious bonuses stack past 100 and stay uncapped on the dimension
	assert.Equal(t, 120.0, breakdown.ReligiousScore)
}

func TestCalculateScoreEmptyText(t *testing.T) {
	breakdown := CalculateScore("   ", ComplianceContext{})

	assert.Equal(t, 0.0, breakdown.Composite)
	assert.Equal(t, 0.0, breakdown.GreetingScore)
	require.NotEmpty(t, breakdown.Recommendations)
	assert.Equal(t, "Message is empty", breakdown.Recommendations[0])
	assert.Len(t, breakdown.Recommendations, 6)
}

func TestArabicDetection(t *testing.T) {
	text := "السلام عليكم سعادة المحترم، نرجو التكرم بسداد الفاتورة. مع فائق الاحترام، والسلام عليكم"

	breakdown := CalculateScore(text, ComplianceContext{Language: "ar"})

	assert.Equal(t, 1.0, breakdown.ArabicRatio)
	assert.True(t, breakdown.RequiresRTL)
	assert.False(t, breakdown.MixedLanguage)
	assert.Equal(t, 100.0, breakdown.LanguageScore)
}

func TestMixedLanguageFlagged(t *testing.T) {
	text := "Dear customer نرجو التكرم بسداد invoice INV-9 في أقرب وقت please arrange payment"

	breakdown := CalculateScore(text, ComplianceContext{Language: "en"})

	assert.True(t, breakdown.MixedLanguage)
	assert.Contains(t, strings.Join(breakdown.Recommendations, "; "), "mixing languages")
}

func TestGovernmentTierAmplifiesTonePenalty(t *testing.T) {
	text := "Dear Sir, we may pursue legal action regarding invoice INV-7. Best regards"

	regular := CalculateScore(text, ComplianceContext{Language: "en", RelationshipTier: models.TierRegular})
	government := CalculateScore(text, ComplianceContext{Language: "en", RelationshipTier: models.TierGovernment})

	assert.Equal(t, 80.0, regular.ToneScore)
	assert.Equal(t, 70.0, government.ToneScore)
}

func TestRamadanGreetingBonus(t *testing.T) {
	base := "Dear Mr. Ali, invoice INV-5 is outstanding. Our office is open Sunday to Thursday. Best regards"

	plain := CalculateScore(base, ComplianceContext{Language: "en", IsRamadan: true})
	greeted := CalculateScore("Ramadan Kareem! "+base, ComplianceContext{Language: "en", IsRamadan: true})

	assert.Greater(t, greeted.CulturalScore, plain.CulturalScore)
	assert.Contains(t, strings.Join(plain.Recommendations, "; "), "Ramadan greeting")
	assert.NotContains(t, strings.Join(greeted.Recommendations, "; "), "Ramadan greeting")
}
