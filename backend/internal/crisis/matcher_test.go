package crisis

import (
	"regexp"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextAround(t *testing.T) {
	s := strings.Repeat("a", 200) + "x" + strings.Repeat("b", 200)

	window := contextAround(s, 200, 201)
	assert.Len(t, window, 2*ContextWindow+1)
	assert.Equal(t, strings.Repeat("a", ContextWindow)+"x"+strings.Repeat("b", ContextWindow), window)

	assert.Equal(t, "short text", contextAround("short text", 0, 5))
	assert.Equal(t, s[:5+ContextWindow+1], contextAround(s, 5, 6))
}

func TestContextAround_CountsCharacters(t *testing.T) {
	// "é" is two bytes
	s := strings.Repeat("é", 200) + "x" + strings.Repeat("é", 200)
	start := strings.Index(s, "x")

	window := contextAround(s, start, start+1)
	assert.True(t, utf8.ValidString(window))
	assert.Equal(t, 2*ContextWindow+1, utf8.RuneCountInString(window))
	assert.Equal(t, strings.Repeat("é", ContextWindow)+"x"+strings.Repeat("é", ContextWindow), window)
}

func TestFindMatches_PositionInCharacters(t *testing.T) {
	p := Pattern{ID: "p", Expr: `\bhelp\b`, re: regexp.MustCompile(`\bhelp\b`)}

	raw, err := findMatches("ééé help", []Pattern{p})
	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.Equal(t, 4, raw[0].position)
}

func TestFindMatches_UncompiledPattern(t *testing.T) {
	_, err := findMatches("anything", []Pattern{{ID: "broken", Expr: "("}})
	require.ErrorIs(t, err, ErrPatternNotCompiled)
	assert.Contains(t, err.Error(), "broken")
}

func TestFindMatches_AllOccurrences(t *testing.T) {
	p := Pattern{ID: "p", Expr: `\bhelp\b`, re: regexp.MustCompile(`\bhelp\b`)}

	raw, err := findMatches("help me, please help", []Pattern{p})
	require.NoError(t, err)
	require.Len(t, raw, 2)
	assert.Equal(t, 0, raw[0].position)
	assert.Equal(t, 16, raw[1].position)
	assert.Equal(t, "help", raw[1].text)
}

func TestMatchConfidence(t *testing.T) {
	p := &Pattern{
		PositiveAmplifiers: []string{"tonight", "really"},
		NegativeFlagWords:  []string{"never", "joking"},
		ContextRequirement: []string{"plan", "pills"},
	}

	tests := []struct {
		name   string
		window string
		want   float64
	}{
		{"no adjustments", "something else", 0.5},
		{"one amplifier", "tonight", 0.65},
		{"amplifiers counted once each", "tonight tonight tonight", 0.65},
		{"context term", "i have a plan", 0.7},
		{"context counted once", "plan and pills", 0.7},
		{"amplifier and context", "really a plan tonight", 1.0},
		{"negation", "never", 0.2},
		{"two negations clamp at zero", "never joking", 0},
		{"negation cancels amplifier", "never tonight plan", 0.55},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, matchConfidence(p, tt.window), 1e-9)
		})
	}
}

func TestUrgencyBonus(t *testing.T) {
	lib := defaultLibrary(t)

	assert.Equal(t, 0.0, urgencyBonus("nothing temporal here", lib.timeline))
	assert.Equal(t, 20.0, urgencyBonus("tonight", lib.timeline))
	// one bonus per bucket, however many of its terms appear
	assert.Equal(t, 20.0, urgencyBonus("tonight or today", lib.timeline))
	assert.Equal(t, 50.0, urgencyBonus("right now, tonight", lib.timeline))
	// word boundaries: "known" does not contain the term "now"
	assert.Equal(t, 0.0, urgencyBonus("i have known this", lib.timeline))
}

func TestRequiresIntervention(t *testing.T) {
	high := &Pattern{Severity: SeverityHigh, TimelineIndicators: []string{"again"}}
	critical := &Pattern{Severity: SeverityCritical}

	assert.True(t, requiresIntervention(critical, "", 0))
	assert.False(t, requiresIntervention(high, "calm", 60))
	assert.True(t, requiresIntervention(high, "calm", 70))
	assert.True(t, requiresIntervention(high, "it happened again", 10))
}

func TestScoreMatches(t *testing.T) {
	strong := &Pattern{ID: "strong", Severity: SeverityHigh, Category: CategorySelfHarm, RiskWeight: 75,
		PositiveAmplifiers: []string{"again", "deeper"}, ContextRequirement: []string{"blood"},
		EmotionalIndicators: []string{"numb", "punish"}}
	medium := &Pattern{ID: "medium", Severity: SeverityHigh, Category: CategorySevereDistress, RiskWeight: 60,
		ContextRequirement: []string{"blood"}}
	weak := &Pattern{ID: "weak", Severity: SeverityMedium, Category: CategoryTraumaResponse, RiskWeight: 50}

	window := "again deeper blood numb"
	raw := []rawMatch{
		{pattern: weak, text: "w", position: 0, surrounding: window},
		{pattern: medium, text: "m", position: 3, surrounding: window},
		{pattern: strong, text: "s", position: 9, surrounding: window},
		{pattern: medium, text: "m2", position: 1, surrounding: window},
	}

	matches := scoreMatches(raw, nil)
	require.Len(t, matches, 3, "weak match falls under the threshold")

	assert.Equal(t, "strong", matches[0].PatternID)
	assert.Equal(t, 1.0, matches[0].Confidence)
	assert.Equal(t, 75.0, matches[0].UrgencyScore)
	assert.Equal(t, 0.5, matches[0].EmotionalWeight)
	assert.True(t, matches[0].InterventionRequired)

	// equal confidence keeps position order
	assert.Equal(t, "m2", matches[1].Keyword)
	assert.Equal(t, "m", matches[2].Keyword)
	assert.False(t, matches[1].InterventionRequired)
}

func TestScoreMatches_UrgencyClamped(t *testing.T) {
	lib := defaultLibrary(t)
	p := &Pattern{ID: "p", Severity: SeverityEmergency, RiskWeight: 95, ContextRequirement: []string{"tonight"}}

	matches := scoreMatches([]rawMatch{{pattern: p, surrounding: "right now tonight"}}, lib.timeline)
	require.Len(t, matches, 1)
	assert.Equal(t, 100.0, matches[0].UrgencyScore)
}
