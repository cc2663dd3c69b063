package crisis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	// ContextWindow is the number of characters kept on each side of a hit
	ContextWindow = 150
	// ConfidenceThreshold is the minimum confidence a match needs to survive scoring
	ConfidenceThreshold = 0.7

	baseConfidence  = 0.5
	amplifierBoost  = 0.15
	negationPenalty = 0.30
	contextBoost    = 0.20

	interventionUrgencyScore = 70.0
)

// rawMatch is a pattern hit before confidence scoring
type rawMatch struct {
	pattern     *Pattern
	text        string
	position    int
	surrounding string
}

// findMatches runs every pattern globally over the lower-cased text.
// No hit is discarded here; scoreMatches does the filtering.
func findMatches(lowered string, patterns []Pattern) ([]rawMatch, error) {
	raw := make([]rawMatch, 0)
	for i := range patterns {
		p := &patterns[i]
		if p.re == nil {
			return nil, fmt.Errorf("%w: %s", ErrPatternNotCompiled, p.ID)
		}
		for _, loc := range p.re.FindAllStringIndex(lowered, -1) {
			raw = append(raw, rawMatch{
				pattern:     p,
				text:        lowered[loc[0]:loc[1]],
				position:    utf8.RuneCountInString(lowered[:loc[0]]),
				surrounding: contextAround(lowered, loc[0], loc[1]),
			})
		}
	}
	return raw, nil
}

// contextAround returns up to ContextWindow characters on each side of the
// byte range [start,end)
func contextAround(s string, start, end int) string {
	from := start
	for n := 0; n < ContextWindow && from > 0; n++ {
		_, size := utf8.DecodeLastRuneInString(s[:from])
		from -= size
	}
	to := end
	for n := 0; n < ContextWindow && to < len(s); n++ {
		_, size := utf8.DecodeRuneInString(s[to:])
		to += size
	}
	return s[from:to]
}

// scoreMatches applies confidence adjustment and urgency scoring, drops
// matches under ConfidenceThreshold and orders the rest by confidence
func scoreMatches(raw []rawMatch, timeline []TimelineBucket) []KeywordMatch {
	matches := make([]KeywordMatch, 0, len(raw))
	for _, r := range raw {
		confidence := matchConfidence(r.pattern, r.surrounding)
		if confidence < ConfidenceThreshold {
			continue
		}

		urgency := clamp(r.pattern.RiskWeight+urgencyBonus(r.surrounding, timeline), 0, 100)

		matches = append(matches, KeywordMatch{
			PatternID:            r.pattern.ID,
			Keyword:              r.text,
			Confidence:           confidence,
			Severity:             r.pattern.Severity,
			Category:             r.pattern.Category,
			Position:             r.position,
			Surrounding:          r.surrounding,
			UrgencyScore:         urgency,
			InterventionRequired: requiresIntervention(r.pattern, r.surrounding, urgency),
			EmotionalWeight:      fractionPresent(r.surrounding, r.pattern.EmotionalIndicators),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].Position < matches[j].Position
	})
	return matches
}

// matchConfidence starts at baseConfidence and adjusts for every amplifier,
// every negation and the presence of any required context term
func matchConfidence(p *Pattern, window string) float64 {
	confidence := baseConfidence
	for _, w := range p.PositiveAmplifiers {
		if containsFold(window, w) {
			confidence += amplifierBoost
		}
	}
	for _, w := range p.NegativeFlagWords {
		if containsFold(window, w) {
			confidence -= negationPenalty
		}
	}
	if containsAny(window, p.ContextRequirement) {
		confidence += contextBoost
	}
	return clamp(round4(confidence), 0, 1)
}

// urgencyBonus sums the bonus of every timeline bucket present in the window
func urgencyBonus(window string, timeline []TimelineBucket) float64 {
	bonus := 0.0
	for _, b := range timeline {
		if b.re != nil && b.re.MatchString(window) {
			bonus += b.Bonus
		}
	}
	return bonus
}

func requiresIntervention(p *Pattern, window string, urgency float64) bool {
	if p.Severity.Rank() >= SeverityCritical.Rank() {
		return true
	}
	return urgency >= interventionUrgencyScore || containsAny(window, p.TimelineIndicators)
}

func containsFold(s, term string) bool {
	return term != "" && strings.Contains(s, strings.ToLower(term))
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if containsFold(s, t) {
			return true
		}
	}
	return false
}

// fractionPresent returns the share of terms found in s (0 for an empty list)
func fractionPresent(s string, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	found := 0
	for _, t := range terms {
		if containsFold(s, t) {
			found++
		}
	}
	return float64(found) / float64(len(terms))
}

// round4 keeps accumulated float drift from flipping threshold comparisons
func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
