package utils

import (
	"regexp"
	"strings"
	"unicode"

	"tahseel/models"
)

// Dimension weights. Greeting/closing quality carries the most weight;
// everything else is even. The religious dimension may exceed 100, but the
// composite is clamped to [0, 100].
const (
	weightLanguage  = 0.16
	weightGreeting  = 0.20
	weightTone      = 0.16
	weightCultural  = 0.16
	weightReligious = 0.16
	weightFormality = 0.16
)

// ComplianceContext carries what the scorer needs to know about the message
// besides its text.
type ComplianceContext struct {
	Language         string // declared language, "en" or "ar"
	StepType         string // gentle_reminder, follow_up, firm_notice, final_notice
	RelationshipTier string
	IsRamadan        bool
}

// ComplianceScoreBreakdown is produced fresh on every call and never persisted.
type ComplianceScoreBreakdown struct {
	LanguageScore  float64 `json:"language_score"`
	GreetingScore  float64 `json:"greeting_score"`
	ToneScore      float64 `json:"tone_score"`
	CulturalScore  float64 `json:"cultural_score"`
	ReligiousScore float64 `json:"religious_score"` // uncapped, bonuses may exceed 100
	FormalityScore float64 `json:"formality_score"`

	Composite     float64 `json:"composite"` // weighted, clamped to [0, 100]
	ArabicRatio   float64 `json:"arabic_ratio"`
	MixedLanguage bool    `json:"mixed_language"`
	RequiresRTL   bool    `json:"requires_rtl"`

	Recommendations []string `json:"recommendations"`
}

var (
	religiousGreetings = []string{
		"السلام عليكم", "as-salamu alaykum", "assalamu alaikum", "assalamualaikum",
		"peace be upon you",
	}
	formalGreetings = []string{
		"dear mr", "dear ms", "dear mrs", "dear dr", "dear eng", "dear sir",
		"dear madam", "respected", "سعادة", "السيد", "السيدة", "حضرة",
	}
	casualGreetings = []string{
		"hi ", "hi,", "hey", "hello", "what's up", "yo ", "مرحبا يا",
	}

	religiousClosings = []string{
		"jazakallah", "jazak allah", "barakallahu", "جزاكم الله", "بارك الله",
		"wassalam", "والسلام عليكم",
	}
	formalClosings = []string{
		"best regards", "kind regards", "sincerely", "respectfully",
		"yours faithfully", "مع أطيب التحيات", "فائق الاحترام", "مع التقدير",
	}
	casualClosings = []string{
		"cheers", "later", "take care", "thx",
	}

	demandingPhrases = []string{
		"must pay", "pay now", "pay immediately", "pay up", "immediately",
		"final warning", "legal action", "last chance", "or else", "right now",
		"ادفع الآن", "فورا", "إجراء قانوني",
	}

	businessHoursMentions = []string{
		"business hours", "working hours", "office hours", "sunday to thursday",
		"ساعات العمل", "من الأحد إلى الخميس",
	}
	regionMentions = []string{
		"uae", "united arab emirates", "dubai", "abu dhabi", "sharjah", "ajman",
		"fujairah", "ras al khaimah", "umm al quwain", "الإمارات", "دبي", "أبوظبي",
		"الشارقة",
	}
	ramadanGreetings = []string{
		"ramadan kareem", "ramadan mubarak", "رمضان كريم", "رمضان مبارك",
	}
	trnMentions = []string{
		"trn", "tax registration", "الرقم الضريبي",
	}

	repeatedExclamations = regexp.MustCompile(`!{2,}`)
)

// CalculateScore grades the message's cultural appropriateness. Scoring is
// advisory: recommendations never block a send.
func CalculateScore(text string, ctx ComplianceContext) ComplianceScoreBreakdown {
	if strings.TrimSpace(text) == "" {
		return ComplianceScoreBreakdown{
			Recommendations: []string{
				"Message is empty",
				"Add a formal greeting such as \"Dear Mr. ...\" or \"As-salamu alaykum\"",
				"Add a courteous closing such as \"Best regards\"",
				"Include business-hours information",
				"Include your TRN (Tax Registration Number)",
				"Reference your local presence (emirate or UAE)",
			},
		}
	}

	breakdown := ComplianceScoreBreakdown{}
	var recs []string

	breakdown.ArabicRatio, breakdown.MixedLanguage = arabicScriptRatio(text)
	breakdown.RequiresRTL = breakdown.ArabicRatio >= 0.5
	breakdown.LanguageScore, recs = scoreLanguage(breakdown.ArabicRatio, breakdown.MixedLanguage, ctx.Language, recs)

	lower := strings.ToLower(text)
	breakdown.GreetingScore, recs = scoreGreetingClosing(lower, recs)
	breakdown.ToneScore, recs = scoreTone(text, lower, ctx.RelationshipTier, recs)
	breakdown.CulturalScore, recs = scoreCultural(lower, ctx.IsRamadan, recs)
	breakdown.ReligiousScore, recs = scoreReligious(lower, recs)
	breakdown.FormalityScore, recs = scoreFormality(lower, recs)

	composite := weightLanguage*breakdown.LanguageScore +
		weightGreeting*breakdown.GreetingScore +
		weightTone*breakdown.ToneScore +
		weightCultural*breakdown.CulturalScore +
		weightReligious*breakdown.ReligiousScore +
		weightFormality*breakdown.FormalityScore
	if composite > 100 {
		composite = 100
	}
	if composite < 0 {
		composite = 0
	}
	breakdown.Composite = composite
	breakdown.Recommendations = recs
	return breakdown
}

// arabicScriptRatio classifies each token by dominant Unicode script and
// returns the Arabic fraction plus a mixed-content flag.
func arabicScriptRatio(text string) (ratio float64, mixed bool) {
	tokens := strings.Fields(text)
	letterTokens, arabicTokens := 0, 0
	for _, tok := range tokens {
		arabic, latin := 0, 0
		for _, r := range tok {
			switch {
			case unicode.Is(unicode.Arabic, r):
				arabic++
			case unicode.IsLetter(r):
				latin++
			}
		}
		if arabic == 0 && latin == 0 {
			continue
		}
		letterTokens++
		if arabic > latin {
			arabicTokens++
		}
	}
	if letterTokens == 0 {
		return 0, false
	}
	ratio = float64(arabicTokens) / float64(letterTokens)
	mixed = ratio > 0.2 && ratio < 0.8
	return ratio, mixed
}

func scoreLanguage(ratio float64, mixed bool, declared string, recs []string) (float64, []string) {
	var score float64
	switch declared {
	case "ar":
		score = ratio * 100
		if ratio < 0.5 {
			recs = append(recs, "Message is declared Arabic but is mostly written in another script")
		}
	default:
		score = (1 - ratio) * 100
		if ratio >= 0.5 {
			recs = append(recs, "Message is declared "+displayLanguage(declared)+" but is mostly Arabic script")
		}
	}
	if mixed {
		recs = append(recs, "Avoid mixing languages within one message")
	}
	return score, recs
}

func displayLanguage(code string) string {
	if code == "" {
		return "English"
	}
	return code
}

// scoreGreetingClosing grades the opening and closing phrases on a four-level
// scale. A casual greeting is never appropriate in collection correspondence.
func scoreGreetingClosing(lower string, recs []string) (float64, []string) {
	opening := head(lower, 120)
	closing := tail(lower, 160)

	var openScore float64
	switch {
	case containsAny(opening, religiousGreetings):
		openScore = 100
	case containsAny(opening, formalGreetings):
		openScore = 85
	case strings.Contains(opening, "dear "):
		openScore = 70
	case containsAny(opening, casualGreetings):
		openScore = 40
		recs = append(recs, "Replace the casual greeting with a formal or traditional one")
	default:
		openScore = 20
		recs = append(recs, "Add a formal greeting such as \"Dear Mr. ...\" or \"As-salamu alaykum\"")
	}

	var closeScore float64
	switch {
	case containsAny(closing, religiousClosings):
		closeScore = 100
	case containsAny(closing, formalClosings):
		closeScore = 90
	case containsAny(closing, casualClosings):
		closeScore = 40
		recs = append(recs, "Replace the casual sign-off with a formal closing")
	default:
		closeScore = 20
		recs = append(recs, "Add a courteous closing such as \"Best regards\"")
	}

	return (openScore + closeScore) / 2, recs
}

func scoreTone(text, lower, tier string, recs []string) (float64, []string) {
	var penalty float64
	demanding := false
	for _, phrase := range demandingPhrases {
		if strings.Contains(lower, phrase) {
			penalty += 20
			demanding = true
		}
	}
	if demanding {
		recs = append(recs, "Avoid demanding language; request payment courteously")
	}

	if n := len(repeatedExclamations.FindAllString(text, -1)); n > 0 {
		penalty += float64(10 * n)
		recs = append(recs, "Remove repeated exclamation marks")
	}

	if isShouting(text) {
		penalty += 25
		recs = append(recs, "Avoid writing in all capitals")
	}

	// The same phrase costs more when addressed to a government entity.
	if tier == models.TierGovernment {
		penalty *= 1.5
	}

	score := 100 - penalty
	if score < 0 {
		score = 0
	}
	return score, recs
}

func isShouting(text string) bool {
	upper, letters := 0, 0
	for _, r := range text {
		if !unicode.IsLetter(r) || unicode.Is(unicode.Arabic, r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return letters >= 20 && float64(upper)/float64(letters) > 0.5
}

func scoreCultural(lower string, ramadan bool, recs []string) (float64, []string) {
	score := 30.0
	if containsAny(lower, businessHoursMentions) {
		score += 35
	} else {
		recs = append(recs, "Include business-hours information")
	}
	if containsAny(lower, regionMentions) {
		score += 35
	} else {
		recs = append(recs, "Reference your local presence (emirate or UAE)")
	}
	if ramadan {
		if containsAny(lower, ramadanGreetings) {
			score += 10
		} else {
			// A missing Ramadan greeting is a recommendation, never an error.
			recs = append(recs, "Consider adding a Ramadan greeting during the holy month")
		}
	}
	if score > 100 {
		score = 100
	}
	return score, recs
}

// scoreReligious rewards traditional etiquette. Deliberately uncapped so
// highly traditional messages stand out when ranked.
func scoreReligious(lower string, recs []string) (float64, []string) {
	score := 30.0
	if containsAny(lower, religiousGreetings) {
		score += 40
	}
	if containsAny(lower, religiousClosings) {
		score += 40
	}
	if strings.Contains(lower, "inshallah") || strings.Contains(lower, "insha'allah") || strings.Contains(lower, "إن شاء الله") {
		score += 10
	}
	if score < 60 {
		recs = append(recs, "Consider a traditional greeting such as \"As-salamu alaykum\"")
	}
	return score, recs
}

func scoreFormality(lower string, recs []string) (float64, []string) {
	score := 20.0
	if containsAny(lower, trnMentions) {
		score += 40
	} else {
		recs = append(recs, "Include your TRN (Tax Registration Number)")
	}
	if containsAny(lower, businessHoursMentions) {
		score += 40
	}
	return score, recs
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func head(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func tail(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
