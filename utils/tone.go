package utils

import (
	"fmt"

	"tahseel/models"
)

// MinCooldownDays is the policy minimum between consecutive reminders.
const MinCooldownDays = 7

// toneRank orders tones by aggressiveness.
var toneRank = map[string]int{
	models.ToneGentle:       1,
	models.ToneFriendly:     2,
	models.ToneBusiness:     3,
	models.ToneProfessional: 3,
	models.ToneFormal:       4,
	models.ToneVeryFormal:   4,
	models.ToneFirm:         5,
	models.ToneUrgent:       6,
}

// tierToneCeiling caps how aggressive a sequence may get per relationship tier.
// Government and VIP relationships never go past FORMAL.
var tierToneCeiling = map[string]string{
	models.TierGovernment: models.ToneFormal,
	models.TierVIP:        models.ToneFormal,
	models.TierNew:        models.ToneFormal,
	models.TierRegular:    models.ToneFirm,
}

// tierProgressions are static reference tables, not computed.
var tierProgressions = map[string][]string{
	models.TierGovernment: {models.ToneVeryFormal, models.ToneVeryFormal, models.ToneFormal, models.ToneFormal},
	models.TierVIP:        {models.ToneFriendly, models.ToneBusiness, models.ToneFormal, models.ToneFormal},
	models.TierRegular:    {models.ToneFriendly, models.ToneBusiness, models.ToneFormal, models.ToneFirm},
	models.TierNew:        {models.ToneVeryFormal, models.ToneFormal, models.ToneBusiness, models.ToneFormal},
}

// ToneGuideline describes one tone for API consumers and sequence builders.
type ToneGuideline struct {
	Tone            string            `json:"tone"`
	Description     string            `json:"description"`
	RecommendedFor  []string          `json:"recommended_for"`
	ExamplePhrases  map[string]string `json:"example_phrases"` // language -> phrase
}

// ToneGuidelines is the static reference data behind the selector.
var ToneGuidelines = []ToneGuideline{
	{
		Tone:           models.ToneGentle,
		Description:    "Soft nudge for valued, long-standing relationships",
		RecommendedFor: []string{models.TierVIP, models.TierRegular},
		ExamplePhrases: map[string]string{
			"en": "We hope this message finds you well. A gentle reminder regarding invoice {{invoice_number}}.",
			"ar": "نأمل أن تكونوا بخير. تذكير لطيف بخصوص الفاتورة {{invoice_number}}.",
		},
	},
	{
		Tone:           models.ToneFriendly,
		Description:    "Warm first touch for healthy relationships",
		RecommendedFor: []string{models.TierVIP, models.TierRegular},
		ExamplePhrases: map[string]string{
			"en": "Just a friendly note that invoice {{invoice_number}} is awaiting payment.",
			"ar": "نود تذكيركم بأن الفاتورة {{invoice_number}} بانتظار السداد.",
		},
	},
	{
		Tone:           models.ToneBusiness,
		Description:    "Neutral commercial follow-up",
		RecommendedFor: []string{models.TierVIP, models.TierRegular, models.TierNew},
		ExamplePhrases: map[string]string{
			"en": "Our records show invoice {{invoice_number}} remains outstanding.",
			"ar": "تشير سجلاتنا إلى أن الفاتورة {{invoice_number}} لا تزال مستحقة.",
		},
	},
	{
		Tone:           models.ToneProfessional,
		Description:    "Default professional reminder",
		RecommendedFor: []string{models.TierRegular, models.TierNew},
		ExamplePhrases: map[string]string{
			"en": "Please arrange settlement of invoice {{invoice_number}} at your earliest convenience.",
			"ar": "نرجو ترتيب سداد الفاتورة {{invoice_number}} في أقرب وقت ممكن.",
		},
	},
	{
		Tone:           models.ToneFormal,
		Description:    "Elevated formality for later steps",
		RecommendedFor: []string{models.TierGovernment, models.TierVIP, models.TierRegular, models.TierNew},
		ExamplePhrases: map[string]string{
			"en": "We respectfully request settlement of invoice {{invoice_number}}.",
			"ar": "نرجو التكرم بسداد الفاتورة {{invoice_number}}.",
		},
	},
	{
		Tone:           models.ToneVeryFormal,
		Description:    "Highest formality, suited to government correspondence",
		RecommendedFor: []string{models.TierGovernment, models.TierNew},
		ExamplePhrases: map[string]string{
			"en": "Esteemed Sir/Madam, kindly be advised that invoice {{invoice_number}} is due for settlement.",
			"ar": "سعادة المحترم، نفيدكم بأن الفاتورة {{invoice_number}} مستحقة السداد.",
		},
	},
	{
		Tone:           models.ToneFirm,
		Description:    "Direct language for persistent non-payment",
		RecommendedFor: []string{models.TierRegular},
		ExamplePhrases: map[string]string{
			"en": "Invoice {{invoice_number}} is significantly overdue and requires your prompt attention.",
			"ar": "الفاتورة {{invoice_number}} متأخرة بشكل كبير وتتطلب اهتمامكم العاجل.",
		},
	},
	{
		Tone:           models.ToneUrgent,
		Description:    "Final escalation before the matter leaves routine collection",
		RecommendedFor: []string{models.TierRegular},
		ExamplePhrases: map[string]string{
			"en": "This is an urgent notice regarding the long-overdue invoice {{invoice_number}}.",
			"ar": "هذا إشعار عاجل بخصوص الفاتورة المتأخرة {{invoice_number}}.",
		},
	},
}

// RecommendedProgression returns the fixed tone ladder for a tier. Unknown
// tiers fall back to the REGULAR progression.
func RecommendedProgression(tier string) []string {
	progression, ok := tierProgressions[tier]
	if !ok {
		progression = tierProgressions[models.TierRegular]
	}
	out := make([]string, len(progression))
	copy(out, progression)
	return out
}

// EscalationStep is one (tone, delay) pair under validation.
type EscalationStep struct {
	Tone      string `json:"tone"`
	DelayDays int    `json:"delay_days"`
}

// EscalationReport is the outcome of ValidateEscalation.
type EscalationReport struct {
	Appropriate            bool     `json:"appropriate"`
	Issues                 []string `json:"issues"`
	Suggestions            []string `json:"suggestions"`
	RecommendedProgression []string `json:"recommended_progression"`
}

// ValidateEscalation checks a proposed sequence against cooldown and
// tier-ceiling rules. Every issue gets exactly one corrective suggestion.
func ValidateEscalation(steps []EscalationStep, tier string) EscalationReport {
	report := EscalationReport{
		Appropriate:            true,
		RecommendedProgression: RecommendedProgression(tier),
	}

	ceiling, ok := tierToneCeiling[tier]
	if !ok {
		ceiling = tierToneCeiling[models.TierRegular]
	}

	for i, step := range steps {
		if i == 0 && step.DelayDays < MinCooldownDays {
			report.Issues = append(report.Issues,
				fmt.Sprintf("step 1 starts too soon: %d days before the first reminder", step.DelayDays))
			report.Suggestions = append(report.Suggestions,
				fmt.Sprintf("wait at least %d days before the first reminder", MinCooldownDays))
		}
		if i > 0 && step.DelayDays < MinCooldownDays {
			report.Issues = append(report.Issues,
				fmt.Sprintf("step %d follows too quickly: %d days after step %d", i+1, step.DelayDays, i))
			report.Suggestions = append(report.Suggestions,
				fmt.Sprintf("allow at least %d days between step %d and step %d", MinCooldownDays, i, i+1))
		}
		if toneRank[step.Tone] > toneRank[ceiling] {
			report.Issues = append(report.Issues,
				fmt.Sprintf("step %d tone %s is too aggressive for tier %s", i+1, step.Tone, tier))
			report.Suggestions = append(report.Suggestions,
				fmt.Sprintf("use %s or softer for step %d", ceiling, i+1))
		}
	}

	report.Appropriate = len(report.Issues) == 0
	return report
}

// ToneContext feeds the per-attempt tone recommendation.
type ToneContext struct {
	AttemptNumber      int
	DaysOverdue        int
	Segment            string
	PaymentHistory     string
	RelationshipMonths int
}

// RecommendedTone applies ordered rules, first match wins. The ordering is a
// contract: urgency outranks firmness so a very overdue account is never
// softened by the overlapping firm rule.
func RecommendedTone(ctx ToneContext) string {
	switch {
	case ctx.RelationshipMonths >= 24 && ctx.PaymentHistory == models.HistoryExcellent && ctx.AttemptNumber <= 2:
		return models.ToneGentle
	case ctx.DaysOverdue >= 90 || ctx.AttemptNumber >= 5:
		return models.ToneUrgent
	case (ctx.PaymentHistory == models.HistoryPoor && ctx.AttemptNumber >= 3) || ctx.DaysOverdue >= 45:
		return models.ToneFirm
	default:
		return models.ToneProfessional
	}
}
