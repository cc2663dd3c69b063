package crisis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var neutralProfile = EmotionalProfile{PrimaryEmotion: neutralEmotion, Stability: 1, CrisisAlignment: neutralAlignment}

func TestAssessRisk(t *testing.T) {
	lib := defaultLibrary(t)
	selfHarm := KeywordMatch{PatternID: "self-harm-behaviour", Confidence: 1, UrgencyScore: 75}
	calm := TimelineAnalysis{Timeframe: TimeframeNone, UrgencyModifiers: []string{}}

	tests := []struct {
		name      string
		matches   []KeywordMatch
		timeline  TimelineAnalysis
		profile   EmotionalProfile
		immediate float64
	}{
		{
			name:      "no matches",
			timeline:  calm,
			profile:   neutralProfile,
			immediate: 0,
		},
		{
			name:      "single match",
			matches:   []KeywordMatch{selfHarm},
			timeline:  calm,
			profile:   neutralProfile,
			immediate: 75*0.4 + 75*0.3,
		},
		{
			name:      "temporal urgency",
			matches:   []KeywordMatch{selfHarm},
			timeline:  TimelineAnalysis{HasTemporalUrgency: true, Timeframe: "immediate"},
			profile:   neutralProfile,
			immediate: (75*0.4 + 75*0.3) * 1.5,
		},
		{
			name:      "emotional multiplier",
			matches:   []KeywordMatch{selfHarm},
			timeline:  calm,
			profile:   EmotionalProfile{PrimaryEmotion: "despair", Intensity: 1, CrisisAlignment: 0.9},
			immediate: (75*0.4 + 75*0.3) * 1.9,
		},
		{
			name:      "clamped at 100",
			matches:   []KeywordMatch{selfHarm},
			timeline:  TimelineAnalysis{HasTemporalUrgency: true, Timeframe: "immediate"},
			profile:   EmotionalProfile{PrimaryEmotion: "despair", Intensity: 1, CrisisAlignment: 0.9},
			immediate: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := assessRisk("", lib, tt.matches, tt.timeline, tt.profile)
			assert.InDelta(t, tt.immediate, got.ImmediateRisk, 1e-9)
			assert.InDelta(t, tt.immediate*0.8, got.ShortTermRisk, 1e-9)
			assert.InDelta(t, tt.immediate*0.6, got.LongTermRisk, 1e-9)
			assert.Equal(t, urgencyFor(tt.immediate), got.InterventionUrgency)
		})
	}
}

func TestAssessRisk_PatternWeightsCountTwice(t *testing.T) {
	lib := defaultLibrary(t)
	calm := TimelineAnalysis{Timeframe: TimeframeNone}

	matches := []KeywordMatch{
		{PatternID: "substance-relapse", Confidence: 0.7, UrgencyScore: 70},
		{PatternID: "substance-relapse", Confidence: 0.7, UrgencyScore: 70},
		{PatternID: "overdose-mention", Confidence: 0.8, UrgencyScore: 85},
	}
	got := assessRisk("", lib, matches, calm, neutralProfile)

	keywordRisk := (70*0.7 + 70*0.7 + 85*0.8) / 3
	patternRisk := (70.0 + 85.0) / 2
	assert.InDelta(t, keywordRisk*0.4+patternRisk*0.3, got.ImmediateRisk, 1e-9)
	assert.InDelta(t, (0.7+0.7+0.8)/3.0+0.1, got.ConfidenceScore, 1e-9)
	assert.Equal(t, []string{
		"Substance relapse or loss of control",
		"Overdose or dangerous substance combination",
	}, got.TriggerIndicators)
}

func TestAssessRisk_Factors(t *testing.T) {
	lib := defaultLibrary(t)
	matches := []KeywordMatch{{PatternID: "severe-distress", Confidence: 1, UrgencyScore: 60}}
	text := "i'm alone since the relationship ended, giving up and feeling reckless. my therapist and my dog help"

	got := assessRisk(text, lib, matches, TimelineAnalysis{Timeframe: TimeframeNone}, neutralProfile)

	immediate := 60*0.4 + 60*0.3
	assert.InDelta(t, immediate, got.ImmediateRisk, 1e-9)
	assert.InDelta(t, immediate*0.8+0.5*20, got.ShortTermRisk, 1e-9)
	assert.InDelta(t, immediate*0.6+(2.0/6)*40, got.LongTermRisk, 1e-9)
	assert.Equal(t, []string{"Social isolation", "Recent loss"}, got.RiskFactors)
	assert.Equal(t, []string{"Professional care", "Pets"}, got.ProtectiveFactors)
}

func TestAssessRisk_ConfidenceBonusCapped(t *testing.T) {
	lib := defaultLibrary(t)
	ids := []string{"self-harm-behaviour", "severe-distress", "panic-crisis", "trauma-response", "substance-relapse"}

	matches := make([]KeywordMatch, 0, len(ids))
	for _, id := range ids {
		matches = append(matches, KeywordMatch{PatternID: id, Confidence: 0.7, UrgencyScore: 50})
	}

	got := assessRisk("", lib, matches, TimelineAnalysis{}, neutralProfile)
	assert.InDelta(t, 0.9, got.ConfidenceScore, 1e-9)
}

func TestUrgencyFor(t *testing.T) {
	cases := map[float64]Urgency{
		0: UrgencyNone, 29.99: UrgencyNone, 30: UrgencyLow, 50: UrgencyMedium,
		69.9: UrgencyMedium, 70: UrgencyHigh, 90: UrgencyImmediate, 100: UrgencyImmediate,
	}
	for risk, want := range cases {
		assert.Equal(t, want, urgencyFor(risk), "risk %.2f", risk)
	}
}

func TestSeverityFor(t *testing.T) {
	cases := map[float64]Severity{
		0: SeverityNone, 14.9: SeverityNone, 15: SeverityLow, 35: SeverityMedium,
		55: SeverityHigh, 74.9: SeverityHigh, 75: SeverityCritical, 90: SeverityEmergency,
	}
	for risk, want := range cases {
		assert.Equal(t, want, SeverityFor(risk), "risk %.2f", risk)
	}

	// monotonic in immediate risk
	prev := SeverityFor(0).Rank()
	for r := 0.0; r <= 100; r += 0.5 {
		rank := SeverityFor(r).Rank()
		assert.GreaterOrEqual(t, rank, prev)
		prev = rank
	}
}
