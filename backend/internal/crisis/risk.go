package crisis

import "strings"

const (
	keywordRiskWeight = 0.4
	patternRiskWeight = 0.3

	shortTermImmediateShare = 0.8
	shortTermBehaviorScale  = 20.0
	longTermImmediateShare  = 0.6
	longTermFactorScale     = 40.0

	patternConfidenceBonus    = 0.05
	maxPatternConfidenceBonus = 0.2
)

// assessRisk aggregates surviving matches, the timeline signal and the broad
// emotional estimate into bounded risk scores.
//
// keywordRisk and patternRisk both draw on pattern risk weights, so several
// hits from related patterns push immediate risk up twice. Kept as calibrated.
func assessRisk(lowered string, lib *Library, matches []KeywordMatch, timeline TimelineAnalysis, profile EmotionalProfile) RiskAssessment {
	patterns := distinctPatterns(lib, matches)

	keywordRisk := 0.0
	avgConfidence := 0.0
	if len(matches) > 0 {
		for _, m := range matches {
			keywordRisk += m.UrgencyScore * m.Confidence
			avgConfidence += m.Confidence
		}
		keywordRisk /= float64(len(matches))
		avgConfidence /= float64(len(matches))
	}

	patternRisk := 0.0
	if len(patterns) > 0 {
		for _, p := range patterns {
			patternRisk += p.RiskWeight
		}
		patternRisk /= float64(len(patterns))
	}

	emotionalMultiplier := profile.Intensity * profile.CrisisAlignment

	immediate := (keywordRisk*keywordRiskWeight + patternRisk*patternRiskWeight) *
		timeline.multiplier() * (1 + emotionalMultiplier)
	immediate = clamp(immediate, 0, 100)

	behavioralScore := fractionPresent(lowered, lib.behavioralEscalation)
	riskFactorScore := fractionPresent(lowered, lib.riskFactorTerms)

	shortTerm := clamp(immediate*shortTermImmediateShare+behavioralScore*shortTermBehaviorScale, 0, 100)
	longTerm := clamp(immediate*longTermImmediateShare+riskFactorScore*longTermFactorScale, 0, 100)

	confidence := 0.0
	if len(matches) > 0 {
		bonus := float64(len(patterns)) * patternConfidenceBonus
		if bonus > maxPatternConfidenceBonus {
			bonus = maxPatternConfidenceBonus
		}
		confidence = clamp(avgConfidence+bonus, 0, 1)
	}

	triggers := make([]string, 0, len(patterns))
	for _, p := range patterns {
		triggers = append(triggers, p.Description)
	}

	return RiskAssessment{
		ImmediateRisk:       immediate,
		ShortTermRisk:       shortTerm,
		LongTermRisk:        longTerm,
		InterventionUrgency: urgencyFor(immediate),
		ConfidenceScore:     confidence,
		RiskFactors:         matchFactors(lowered, lib.riskFactors),
		ProtectiveFactors:   matchFactors(lowered, lib.protectiveFactors),
		TriggerIndicators:   triggers,
		TimelineAnalysis:    timeline,
		EmotionalProfile:    profile,
	}
}

// urgencyFor maps immediate risk to an intervention-urgency tier
func urgencyFor(immediate float64) Urgency {
	switch {
	case immediate >= 90:
		return UrgencyImmediate
	case immediate >= 70:
		return UrgencyHigh
	case immediate >= 50:
		return UrgencyMedium
	case immediate >= 30:
		return UrgencyLow
	default:
		return UrgencyNone
	}
}

// distinctPatterns returns the patterns behind the matches, first occurrence first
func distinctPatterns(lib *Library, matches []KeywordMatch) []*Pattern {
	seen := make(map[string]bool)
	out := make([]*Pattern, 0)
	for _, m := range matches {
		if seen[m.PatternID] {
			continue
		}
		seen[m.PatternID] = true
		if p := lib.pattern(m.PatternID); p != nil {
			out = append(out, p)
		}
	}
	return out
}

func matchFactors(lowered string, vocab []FactorVocabulary) []string {
	labels := make([]string, 0)
	for _, v := range vocab {
		for _, t := range v.Terms {
			if strings.Contains(lowered, strings.ToLower(t)) {
				labels = append(labels, v.Label)
				break
			}
		}
	}
	return labels
}
