package crisis

// TimeframeNone is reported when no temporal-urgency vocabulary is present
const TimeframeNone = "none"

const temporalMultiplier = 1.5

// analyzeTimeline scans the whole text for timeline vocabulary, independent
// of pattern hits. The first matched bucket in table order names the timeframe.
func analyzeTimeline(lowered string, buckets []TimelineBucket) TimelineAnalysis {
	ta := TimelineAnalysis{
		Timeframe:        TimeframeNone,
		UrgencyModifiers: make([]string, 0),
	}

	seen := make(map[string]bool)
	for _, b := range buckets {
		if b.re == nil {
			continue
		}
		found := b.re.FindAllString(lowered, -1)
		if len(found) == 0 {
			continue
		}
		if !ta.HasTemporalUrgency {
			ta.HasTemporalUrgency = true
			ta.Timeframe = b.Name
		}
		for _, f := range found {
			if !seen[f] {
				seen[f] = true
				ta.UrgencyModifiers = append(ta.UrgencyModifiers, f)
			}
		}
	}
	return ta
}

// multiplier is the factor applied to immediate risk for temporal urgency
func (t TimelineAnalysis) multiplier() float64 {
	if t.HasTemporalUrgency {
		return temporalMultiplier
	}
	return 1.0
}
