package crisis

import (
	"math"
	"sort"
	"strings"
)

const (
	// emotionalStrengthThreshold is the overall marker strength an emotional state must exceed
	emotionalStrengthThreshold = 0.3
	// bucketSaturation is the keyword-hit count at which a broad emotion reaches full intensity
	bucketSaturation = 3.0

	neutralEmotion   = "neutral"
	neutralAlignment = 0.3
)

// profileEmotionalStates returns every emotional state whose linguistic markers
// and behavioural phrases are strongly present, strongest crisis signal first
func profileEmotionalStates(lowered string, states []EmotionalState) []EmotionalIndicator {
	indicators := make([]EmotionalIndicator, 0)
	for _, s := range states {
		markers := presentTerms(lowered, s.Markers)
		behaviors := presentTerms(lowered, s.Behaviors)

		markerRatio := float64(len(markers)) / float64(len(s.Markers))
		behaviorRatio := float64(len(behaviors)) / float64(len(s.Behaviors))
		strength := (markerRatio + behaviorRatio) / 2
		if strength <= emotionalStrengthThreshold {
			continue
		}

		indicators = append(indicators, EmotionalIndicator{
			EmotionalState:      s.Name,
			Intensity:           clamp(s.BaseIntensity*strength, 0, 1),
			CrisisCorrelation:   s.CrisisCorrelation,
			LinguisticMarkers:   markers,
			BehavioralPatterns:  behaviors,
			InterventionUrgency: s.InterventionUrgency,
		})
	}

	sort.SliceStable(indicators, func(i, j int) bool {
		return indicators[i].Intensity*indicators[i].CrisisCorrelation >
			indicators[j].Intensity*indicators[j].CrisisCorrelation
	})
	return indicators
}

// estimateEmotionalIntensity picks the broad emotion with the most keyword hits.
// Ties go to the bucket listed first.
func estimateEmotionalIntensity(lowered string, buckets []EmotionBucket) EmotionalProfile {
	best := -1
	bestHits := 0
	for i, b := range buckets {
		hits := 0
		for _, re := range b.res {
			if re.MatchString(lowered) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = i, hits
		}
	}

	if best < 0 {
		return EmotionalProfile{
			PrimaryEmotion:  neutralEmotion,
			Intensity:       0,
			Stability:       1,
			CrisisAlignment: neutralAlignment,
		}
	}

	intensity := math.Min(1, float64(bestHits)/bucketSaturation)
	return EmotionalProfile{
		PrimaryEmotion:  buckets[best].Name,
		Intensity:       intensity,
		Stability:       1 - intensity,
		CrisisAlignment: buckets[best].CrisisAlignment,
	}
}

func presentTerms(s string, terms []string) []string {
	found := make([]string, 0)
	for _, t := range terms {
		if strings.Contains(s, strings.ToLower(t)) {
			found = append(found, t)
		}
	}
	return found
}
