package crisis

import "time"

// Category classifies what kind of crisis a pattern recognises
type Category string

const (
	CategorySuicidalIdeation Category = "suicidal-ideation"
	CategorySuicidePlan      Category = "suicide-plan"
	CategorySelfHarm         Category = "self-harm"
	CategorySubstanceCrisis  Category = "substance-crisis"
	CategoryViolenceThreat   Category = "violence-threat"
	CategoryMedicalEmergency Category = "medical-emergency"
	CategorySevereDistress   Category = "severe-distress"
	CategoryPanicCrisis      Category = "panic-crisis"
	CategoryPsychoticEpisode Category = "psychotic-episode"
	CategoryAbuseDisclosure  Category = "abuse-disclosure"
	CategoryTraumaResponse   Category = "trauma-response"
)

var knownCategories = map[Category]bool{
	CategorySuicidalIdeation: true,
	CategorySuicidePlan:      true,
	CategorySelfHarm:         true,
	CategorySubstanceCrisis:  true,
	CategoryViolenceThreat:   true,
	CategoryMedicalEmergency: true,
	CategorySevereDistress:   true,
	CategoryPanicCrisis:      true,
	CategoryPsychoticEpisode: true,
	CategoryAbuseDisclosure:  true,
	CategoryTraumaResponse:   true,
}

// IsKnownCategory reports whether c is one of the fixed crisis categories
func IsKnownCategory(c Category) bool {
	return knownCategories[c]
}

// Severity is the ordered crisis-intensity tier, from none to emergency
type Severity string

const (
	SeverityNone      Severity = "none"
	SeverityLow       Severity = "low"
	SeverityMedium    Severity = "medium"
	SeverityHigh      Severity = "high"
	SeverityCritical  Severity = "critical"
	SeverityEmergency Severity = "emergency"
)

var severityRank = map[Severity]int{
	SeverityNone:      0,
	SeverityLow:       1,
	SeverityMedium:    2,
	SeverityHigh:      3,
	SeverityCritical:  4,
	SeverityEmergency: 5,
}

// Rank returns the position of s in the severity ordering (-1 if unknown)
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return -1
}

// Urgency is the intervention-urgency tier driving recommendations
type Urgency string

const (
	UrgencyNone      Urgency = "none"
	UrgencyLow       Urgency = "low"
	UrgencyMedium    Urgency = "medium"
	UrgencyHigh      Urgency = "high"
	UrgencyImmediate Urgency = "immediate"
)

// RecommendationType describes the kind of intervention being recommended
type RecommendationType string

const (
	RecommendationImmediate  RecommendationType = "immediate"
	RecommendationUrgent     RecommendationType = "urgent"
	RecommendationSupportive RecommendationType = "supportive"
	RecommendationMonitoring RecommendationType = "monitoring"
	RecommendationResources  RecommendationType = "resources"
)

// Metadata is the optional caller context accompanying the analysed text
type Metadata struct {
	UserID          string `json:"user_id,omitempty"`
	CulturalContext string `json:"cultural_context,omitempty"`
	LanguageCode    string `json:"language_code,omitempty"` // defaults to "en"
}

// KeywordMatch is one pattern hit that survived confidence filtering
type KeywordMatch struct {
	PatternID            string   `json:"pattern_id"`
	Keyword              string   `json:"keyword"`
	Confidence           float64  `json:"confidence"` // 0.0 to 1.0
	Severity             Severity `json:"severity"`
	Category             Category `json:"category"`
	Position             int      `json:"position"`
	Surrounding          string   `json:"surrounding"`
	UrgencyScore         float64  `json:"urgency_score"` // 0 to 100
	InterventionRequired bool     `json:"intervention_required"`
	EmotionalWeight      float64  `json:"emotional_weight"` // 0.0 to 1.0
}

// EmotionalIndicator is an emotional state whose markers were found in the text
type EmotionalIndicator struct {
	EmotionalState      string   `json:"emotional_state"`
	Intensity           float64  `json:"intensity"`
	CrisisCorrelation   float64  `json:"crisis_correlation"`
	LinguisticMarkers   []string `json:"linguistic_markers"`
	BehavioralPatterns  []string `json:"behavioral_patterns"`
	InterventionUrgency Urgency  `json:"intervention_urgency"`
}

// TimelineAnalysis summarises temporal-urgency vocabulary in the text
type TimelineAnalysis struct {
	HasTemporalUrgency bool     `json:"has_temporal_urgency"`
	Timeframe          string   `json:"timeframe"`
	UrgencyModifiers   []string `json:"urgency_modifiers"`
}

// EmotionalProfile is the broad emotional-intensity estimate
type EmotionalProfile struct {
	PrimaryEmotion  string  `json:"primary_emotion"`
	Intensity       float64 `json:"intensity"`
	Stability       float64 `json:"stability"`
	CrisisAlignment float64 `json:"crisis_alignment"`
}

// RiskAssessment holds the bounded risk scores for one analysis
type RiskAssessment struct {
	ImmediateRisk       float64          `json:"immediate_risk"`
	ShortTermRisk       float64          `json:"short_term_risk"`
	LongTermRisk        float64          `json:"long_term_risk"`
	InterventionUrgency Urgency          `json:"intervention_urgency"`
	ConfidenceScore     float64          `json:"confidence_score"`
	RiskFactors         []string         `json:"risk_factors"`
	ProtectiveFactors   []string         `json:"protective_factors"`
	TriggerIndicators   []string         `json:"trigger_indicators"`
	TimelineAnalysis    TimelineAnalysis `json:"timeline_analysis"`
	EmotionalProfile    EmotionalProfile `json:"emotional_profile"`
}

// Recommendation is one prioritised intervention (priority 1 is most urgent)
type Recommendation struct {
	Type                   RecommendationType `json:"type"`
	Priority               int                `json:"priority"`
	Description            string             `json:"description"`
	ActionItems            []string           `json:"action_items"`
	Timeframe              string             `json:"timeframe"`
	Resources              []string           `json:"resources"`
	CulturalConsiderations []string           `json:"cultural_considerations"`
}

// AnalysisMetadata describes how a result was produced
type AnalysisMetadata struct {
	Method          string        `json:"method"`
	Confidence      float64       `json:"confidence"`
	ProcessingTime  time.Duration `json:"processing_time_ns"`
	FlaggedConcerns []string      `json:"flagged_concerns"`
	LibraryVersion  string        `json:"library_version,omitempty"`
}

// Result is the complete output of one analysis call
type Result struct {
	HasCrisisIndicators         bool                 `json:"has_crisis_indicators"`
	OverallSeverity             Severity             `json:"overall_severity"`
	KeywordMatches              []KeywordMatch       `json:"keyword_matches"`
	EmotionalIndicators         []EmotionalIndicator `json:"emotional_indicators"`
	RiskAssessment              RiskAssessment       `json:"risk_assessment"`
	InterventionRecommendations []Recommendation     `json:"intervention_recommendations"`
	EscalationRequired          bool                 `json:"escalation_required"`
	EmergencyServicesRequired   bool                 `json:"emergency_services_required"`
	AnalysisMetadata            AnalysisMetadata     `json:"analysis_metadata"`
}

// Categories returns the distinct categories of the surviving matches, in match order
func (r *Result) Categories() []string {
	seen := make(map[Category]bool)
	out := make([]string, 0)
	for _, m := range r.KeywordMatches {
		if !seen[m.Category] {
			seen[m.Category] = true
			out = append(out, string(m.Category))
		}
	}
	return out
}

// IsFailsafe reports whether r is the neutral result produced after an analysis failure
func (r *Result) IsFailsafe() bool {
	return r.AnalysisMetadata.Method == MethodFailsafe
}
