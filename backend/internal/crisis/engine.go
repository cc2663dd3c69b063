package crisis

import (
	"fmt"
	"log"
	"strings"
	"time"
)

const (
	// MethodPatternAnalysis tags results produced by the full scoring pipeline
	MethodPatternAnalysis = "pattern-context-emotional-temporal"
	// MethodFailsafe tags the neutral result returned after an analysis failure
	MethodFailsafe = "failsafe"

	// FailsafeConcern is the flagged concern carried by every failsafe result
	FailsafeConcern = "Analysis failed - using failsafe mode"

	defaultLanguage = "en"

	crisisIndicatorRisk = 30.0
	escalationRisk      = 70.0
	emergencyRisk       = 90.0
)

// Engine runs crisis-risk analysis over free text. It holds only immutable
// state, so one Engine can serve any number of goroutines.
type Engine struct {
	library *Library
	logger  *log.Logger
}

// NewEngine creates an Engine over lib. A nil logger disables failure logging.
func NewEngine(lib *Library, logger *log.Logger) *Engine {
	return &Engine{library: lib, logger: logger}
}

// Library returns the pattern library the engine analyses with
func (e *Engine) Library() *Library {
	return e.library
}

// Analyze scores text for crisis risk. It never panics and never returns an
// error: any failure inside the pipeline yields the failsafe result.
func (e *Engine) Analyze(text string, meta Metadata) (result *Result) {
	start := time.Now()
	if e == nil {
		return Failsafe(time.Since(start))
	}

	defer func() {
		if r := recover(); r != nil {
			e.logError("Crisis analysis panicked (text length %d): %v", len(text), r)
			result = Failsafe(time.Since(start))
		}
	}()

	res, err := e.analyze(text, meta)
	if err != nil {
		e.logError("Crisis analysis failed (text length %d): %v", len(text), err)
		return Failsafe(time.Since(start))
	}

	res.AnalysisMetadata.ProcessingTime = time.Since(start)
	return res
}

func (e *Engine) analyze(text string, meta Metadata) (*Result, error) {
	if e.library == nil {
		return nil, fmt.Errorf("%w: engine has no library", ErrInvalidLibrary)
	}
	lib := e.library
	lowered := strings.ToLower(text)

	raw, err := findMatches(lowered, lib.patterns)
	if err != nil {
		return nil, fmt.Errorf("keyword matching: %w", err)
	}
	matches := scoreMatches(raw, lib.timeline)

	timeline := analyzeTimeline(lowered, lib.timeline)
	indicators := profileEmotionalStates(lowered, lib.emotionalStates)
	profile := estimateEmotionalIntensity(lowered, lib.emotionBuckets)

	risk := assessRisk(lowered, lib, matches, timeline, profile)
	recs := generateRecommendations(risk.InterventionUrgency, risk.ImmediateRisk, meta)

	severity := SeverityFor(risk.ImmediateRisk)
	return &Result{
		HasCrisisIndicators:         severity != SeverityNone && risk.ImmediateRisk > crisisIndicatorRisk,
		OverallSeverity:             severity,
		KeywordMatches:              matches,
		EmotionalIndicators:         indicators,
		RiskAssessment:              risk,
		InterventionRecommendations: recs,
		EscalationRequired:          risk.ImmediateRisk >= escalationRisk || severity == SeverityEmergency,
		EmergencyServicesRequired:   risk.ImmediateRisk >= emergencyRisk || anyEmergency(matches),
		AnalysisMetadata: AnalysisMetadata{
			Method:          MethodPatternAnalysis,
			Confidence:      risk.ConfidenceScore,
			FlaggedConcerns: flaggedConcerns(matches, timeline, meta),
			LibraryVersion:  lib.version,
		},
	}, nil
}

// SeverityFor maps immediate risk to the overall severity tier
func SeverityFor(immediateRisk float64) Severity {
	switch {
	case immediateRisk >= 90:
		return SeverityEmergency
	case immediateRisk >= 75:
		return SeverityCritical
	case immediateRisk >= 55:
		return SeverityHigh
	case immediateRisk >= 35:
		return SeverityMedium
	case immediateRisk >= 15:
		return SeverityLow
	default:
		return SeverityNone
	}
}

// Failsafe returns the neutral zero-risk result used when analysis fails
func Failsafe(elapsed time.Duration) *Result {
	return &Result{
		HasCrisisIndicators:         false,
		OverallSeverity:             SeverityNone,
		KeywordMatches:              []KeywordMatch{},
		EmotionalIndicators:         []EmotionalIndicator{},
		InterventionRecommendations: []Recommendation{},
		RiskAssessment: RiskAssessment{
			InterventionUrgency: UrgencyNone,
			RiskFactors:         []string{},
			ProtectiveFactors:   []string{},
			TriggerIndicators:   []string{},
			TimelineAnalysis: TimelineAnalysis{
				Timeframe:        TimeframeNone,
				UrgencyModifiers: []string{},
			},
			EmotionalProfile: EmotionalProfile{
				PrimaryEmotion: neutralEmotion,
				Stability:      1,
			},
		},
		AnalysisMetadata: AnalysisMetadata{
			Method:          MethodFailsafe,
			Confidence:      0,
			ProcessingTime:  elapsed,
			FlaggedConcerns: []string{FailsafeConcern},
		},
	}
}

func anyEmergency(matches []KeywordMatch) bool {
	for _, m := range matches {
		if m.Severity == SeverityEmergency {
			return true
		}
	}
	return false
}

func flaggedConcerns(matches []KeywordMatch, timeline TimelineAnalysis, meta Metadata) []string {
	concerns := make([]string, 0)
	seen := make(map[string]bool)
	for _, m := range matches {
		if m.Severity == SeverityEmergency && !seen[m.PatternID] {
			seen[m.PatternID] = true
			concerns = append(concerns, fmt.Sprintf("Emergency-severity %s language detected", m.Category))
		}
	}
	if timeline.HasTemporalUrgency && len(matches) > 0 {
		concerns = append(concerns, fmt.Sprintf("Temporal urgency: %s", timeline.Timeframe))
	}
	if lang := meta.Language(); lang != defaultLanguage {
		concerns = append(concerns, fmt.Sprintf("Input language %q: vocabularies are English-only, detection may under-perform", lang))
	}
	return concerns
}

// Language returns the normalised language code, "en" when unset
func (m Metadata) Language() string {
	lang := strings.ToLower(strings.TrimSpace(m.LanguageCode))
	if lang == "" {
		return defaultLanguage
	}
	// en-US, en_GB
	if strings.HasPrefix(lang, defaultLanguage+"-") || strings.HasPrefix(lang, defaultLanguage+"_") {
		return defaultLanguage
	}
	return lang
}

func (e *Engine) logError(format string, args ...interface{}) {
	if e != nil && e.logger != nil {
		e.logger.Printf("[ERROR] "+format, args...)
	}
}
