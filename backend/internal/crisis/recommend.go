package crisis

import (
	"fmt"
	"sort"
	"strings"
)

const monitoringRiskFloor = 20.0

type recommendationTemplate struct {
	Type        RecommendationType
	Priority    int
	Description string
	ActionItems []string
	Timeframe   string
	Resources   []string
}

var tierRecommendations = map[Urgency]recommendationTemplate{
	UrgencyImmediate: {
		Type:        RecommendationImmediate,
		Priority:    1,
		Description: "Immediate safety intervention required",
		ActionItems: []string{
			"Contact emergency services now",
			"Stay with the person and do not leave them alone",
			"Remove access to means of self-harm",
			"Connect with a crisis line while help is on the way",
		},
		Timeframe: "Immediately",
		Resources: []string{
			"Emergency services: 911 / 112",
			"988 Suicide & Crisis Lifeline (call or text 988)",
			"Crisis Text Line: text HOME to 741741",
		},
	},
	UrgencyHigh: {
		Type:        RecommendationUrgent,
		Priority:    2,
		Description: "Urgent crisis support needed",
		ActionItems: []string{
			"Call a crisis hotline together",
			"Arrange an emergency session with a mental health professional",
			"Create a safety plan for the next 24 hours",
			"Notify a trusted support person",
		},
		Timeframe: "Within 1 hour",
		Resources: []string{
			"988 Suicide & Crisis Lifeline (call or text 988)",
			"Crisis Text Line: text HOME to 741741",
			"Local mobile crisis team",
		},
	},
	UrgencyMedium: {
		Type:        RecommendationSupportive,
		Priority:    3,
		Description: "Professional support recommended",
		ActionItems: []string{
			"Schedule a therapy appointment within 24 hours",
			"Reach out to a friend or family member today",
			"Review coping strategies and the safety plan",
		},
		Timeframe: "Within 24 hours",
		Resources: []string{
			"Therapist or counselor directory",
			"988 Suicide & Crisis Lifeline (call or text 988)",
			"Peer support warmline",
		},
	},
	UrgencyLow: {
		Type:        RecommendationResources,
		Priority:    4,
		Description: "Self-care and support resources",
		ActionItems: []string{
			"Share self-care and coping resources",
			"Encourage contact with a support network",
			"Check in again within the week",
		},
		Timeframe: "Within 1 week",
		Resources: []string{
			"Self-help and coping skills library",
			"Peer support community",
		},
	},
}

var monitoringRecommendation = recommendationTemplate{
	Type:        RecommendationMonitoring,
	Priority:    5,
	Description: "Ongoing monitoring",
	ActionItems: []string{
		"Check in regularly over the coming days",
		"Track mood and risk changes across conversations",
		"Re-assess if new crisis language appears",
	},
	Timeframe: "Ongoing",
	Resources: []string{
		"Mood tracking tools",
		"Follow-up reminders",
	},
}

// generateRecommendations maps the urgency tier to prioritised recommendations,
// most urgent first
func generateRecommendations(urgency Urgency, immediateRisk float64, meta Metadata) []Recommendation {
	notes := culturalNotes(meta)
	recs := make([]Recommendation, 0, 2)

	if t, ok := tierRecommendations[urgency]; ok {
		recs = append(recs, t.build(notes))
	}
	if immediateRisk > monitoringRiskFloor {
		recs = append(recs, monitoringRecommendation.build(notes))
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Priority < recs[j].Priority
	})
	return recs
}

func (t recommendationTemplate) build(notes []string) Recommendation {
	return Recommendation{
		Type:                   t.Type,
		Priority:               t.Priority,
		Description:            t.Description,
		ActionItems:            append([]string(nil), t.ActionItems...),
		Timeframe:              t.Timeframe,
		Resources:              append([]string(nil), t.Resources...),
		CulturalConsiderations: append([]string(nil), notes...),
	}
}

func culturalNotes(meta Metadata) []string {
	notes := []string{"Respect the person's cultural and religious background when offering support"}
	if c := strings.TrimSpace(meta.CulturalContext); c != "" {
		notes = append(notes, fmt.Sprintf("Adapt resources and language to cultural context: %s", c))
	}
	if lang := meta.Language(); lang != defaultLanguage {
		notes = append(notes, fmt.Sprintf("Offer resources in the person's language (%s)", lang))
	}
	return notes
}
