package crisis

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed library.yaml
var defaultLibraryYAML []byte

var (
	// ErrInvalidLibrary is returned when a library table fails validation
	ErrInvalidLibrary = errors.New("invalid crisis library")
	// ErrPatternNotCompiled is returned when a pattern reaches the matcher without a compiled expression
	ErrPatternNotCompiled = errors.New("crisis pattern not compiled")
)

// Pattern is one declarative crisis rule
type Pattern struct {
	ID                  string   `yaml:"id" json:"id"`
	Expr                string   `yaml:"expr" json:"expr"`
	Description         string   `yaml:"description" json:"description"`
	Category            Category `yaml:"category" json:"category"`
	Severity            Severity `yaml:"severity" json:"severity"`
	RiskWeight          float64  `yaml:"risk_weight" json:"risk_weight"` // 0 - 100
	ContextRequirement  []string `yaml:"context_requirement" json:"context_requirement"`
	NegativeFlagWords   []string `yaml:"negative_flag_words" json:"negative_flag_words"`
	PositiveAmplifiers  []string `yaml:"positive_amplifiers" json:"positive_amplifiers"`
	TimelineIndicators  []string `yaml:"timeline_indicators" json:"timeline_indicators"`
	EmotionalIndicators []string `yaml:"emotional_indicators" json:"emotional_indicators"`

	re *regexp.Regexp
}

// TimelineBucket is a named group of temporal-urgency vocabulary
type TimelineBucket struct {
	Name  string   `yaml:"name"`
	Bonus float64  `yaml:"bonus"`
	Terms []string `yaml:"terms"`

	re *regexp.Regexp
}

// EmotionalState describes one emotional-state indicator and its markers
type EmotionalState struct {
	Name                string   `yaml:"name"`
	BaseIntensity       float64  `yaml:"base_intensity"`
	CrisisCorrelation   float64  `yaml:"crisis_correlation"`
	Markers             []string `yaml:"markers"`
	Behaviors           []string `yaml:"behaviors"`
	InterventionUrgency Urgency  `yaml:"intervention_urgency"`
}

// EmotionBucket is one broad emotion used by the intensity estimate
type EmotionBucket struct {
	Name            string   `yaml:"name"`
	CrisisAlignment float64  `yaml:"crisis_alignment"`
	Keywords        []string `yaml:"keywords"`

	res []*regexp.Regexp
}

// FactorVocabulary maps a risk or protective factor label to its trigger terms
type FactorVocabulary struct {
	Label string   `yaml:"label"`
	Terms []string `yaml:"terms"`
}

type libraryFile struct {
	Version              string             `yaml:"version"`
	Patterns             []Pattern          `yaml:"patterns"`
	Timeline             []TimelineBucket   `yaml:"timeline"`
	EmotionalStates      []EmotionalState   `yaml:"emotional_states"`
	EmotionBuckets       []EmotionBucket    `yaml:"emotion_buckets"`
	BehavioralEscalation []string           `yaml:"behavioral_escalation"`
	RiskFactorTerms      []string           `yaml:"risk_factor_terms"`
	RiskFactors          []FactorVocabulary `yaml:"risk_factors"`
	ProtectiveFactors    []FactorVocabulary `yaml:"protective_factors"`
}

// Library is the immutable set of crisis patterns and vocabularies.
// It is safe for concurrent use; nothing mutates it after LoadLibrary returns.
type Library struct {
	version              string
	patterns             []Pattern
	timeline             []TimelineBucket
	emotionalStates      []EmotionalState
	emotionBuckets       []EmotionBucket
	behavioralEscalation []string
	riskFactorTerms      []string
	riskFactors          []FactorVocabulary
	protectiveFactors    []FactorVocabulary

	byID map[string]int
}

// PatternSummary is the public description of a pattern
type PatternSummary struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Severity    Severity `json:"severity"`
	RiskWeight  float64  `json:"risk_weight"`
}

// DefaultLibrary returns the embedded library, parsed once per process
var DefaultLibrary = sync.OnceValues(func() (*Library, error) {
	return LoadLibrary(defaultLibraryYAML)
})

// OpenLibrary returns the table at path, or the embedded one when path is empty
func OpenLibrary(path string) (*Library, error) {
	if path == "" {
		return DefaultLibrary()
	}
	return LoadLibraryFile(path)
}

// LoadLibraryFile reads and compiles a library table from disk
func LoadLibraryFile(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read library file: %w", err)
	}
	return LoadLibrary(data)
}

// LoadLibrary parses a YAML library table, validates it and compiles every expression
func LoadLibrary(data []byte) (*Library, error) {
	var f libraryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: failed to parse YAML: %v", ErrInvalidLibrary, err)
	}

	if len(f.Patterns) == 0 {
		return nil, fmt.Errorf("%w: no patterns defined", ErrInvalidLibrary)
	}
	if f.Version == "" {
		f.Version = "1.0.0"
	}

	byID := make(map[string]int, len(f.Patterns))
	for i := range f.Patterns {
		p := &f.Patterns[i]
		if err := validatePattern(p); err != nil {
			return nil, fmt.Errorf("%w: pattern %d (%s): %v", ErrInvalidLibrary, i, p.ID, err)
		}
		if _, dup := byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate pattern id %q", ErrInvalidLibrary, p.ID)
		}
		byID[p.ID] = i

		re, err := regexp.Compile(p.Expr)
		if err != nil {
			return nil, fmt.Errorf("%w: pattern %q: %v", ErrInvalidLibrary, p.ID, err)
		}
		p.re = re
	}

	for i := range f.Timeline {
		b := &f.Timeline[i]
		if b.Name == "" || len(b.Terms) == 0 {
			return nil, fmt.Errorf("%w: timeline bucket %d needs a name and terms", ErrInvalidLibrary, i)
		}
		b.re = termsRegexp(b.Terms)
	}

	for _, s := range f.EmotionalStates {
		if !inUnitRange(s.BaseIntensity) || !inUnitRange(s.CrisisCorrelation) {
			return nil, fmt.Errorf("%w: emotional state %q weights must be within [0,1]", ErrInvalidLibrary, s.Name)
		}
		if len(s.Markers) == 0 || len(s.Behaviors) == 0 {
			return nil, fmt.Errorf("%w: emotional state %q needs markers and behaviors", ErrInvalidLibrary, s.Name)
		}
	}

	for i := range f.EmotionBuckets {
		b := &f.EmotionBuckets[i]
		if !inUnitRange(b.CrisisAlignment) {
			return nil, fmt.Errorf("%w: emotion bucket %q alignment must be within [0,1]", ErrInvalidLibrary, b.Name)
		}
		b.res = make([]*regexp.Regexp, len(b.Keywords))
		for j, k := range b.Keywords {
			b.res[j] = termsRegexp([]string{k})
		}
	}

	return &Library{
		version:              f.Version,
		patterns:             f.Patterns,
		timeline:             f.Timeline,
		emotionalStates:      f.EmotionalStates,
		emotionBuckets:       f.EmotionBuckets,
		behavioralEscalation: f.BehavioralEscalation,
		riskFactorTerms:      f.RiskFactorTerms,
		riskFactors:          f.RiskFactors,
		protectiveFactors:    f.ProtectiveFactors,
		byID:                 byID,
	}, nil
}

func validatePattern(p *Pattern) error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(p.Expr) == "" {
		return fmt.Errorf("expr is required")
	}
	if !knownCategories[p.Category] {
		return fmt.Errorf("unknown category %q", p.Category)
	}
	if p.Severity.Rank() < severityRank[SeverityLow] {
		return fmt.Errorf("unknown severity %q", p.Severity)
	}
	if p.RiskWeight < 0 || p.RiskWeight > 100 {
		return fmt.Errorf("risk_weight %.1f outside [0,100]", p.RiskWeight)
	}
	return nil
}

// termsRegexp builds a word-bounded alternation over literal terms
func termsRegexp(terms []string) *regexp.Regexp {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = regexp.QuoteMeta(strings.ToLower(t))
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}

// pattern returns the pattern with the given id, or nil
func (l *Library) pattern(id string) *Pattern {
	i, ok := l.byID[id]
	if !ok {
		return nil
	}
	return &l.patterns[i]
}

// Version returns the library table version
func (l *Library) Version() string {
	return l.version
}

// Patterns returns a deep copy of the pattern table
func (l *Library) Patterns() []Pattern {
	out := make([]Pattern, len(l.patterns))
	for i, p := range l.patterns {
		p.ContextRequirement = slices.Clone(p.ContextRequirement)
		p.NegativeFlagWords = slices.Clone(p.NegativeFlagWords)
		p.PositiveAmplifiers = slices.Clone(p.PositiveAmplifiers)
		p.TimelineIndicators = slices.Clone(p.TimelineIndicators)
		p.EmotionalIndicators = slices.Clone(p.EmotionalIndicators)
		out[i] = p
	}
	return out
}

// Summary returns a description of every pattern, in table order
func (l *Library) Summary() []PatternSummary {
	out := make([]PatternSummary, len(l.patterns))
	for i, p := range l.patterns {
		out[i] = PatternSummary{
			ID:          p.ID,
			Description: p.Description,
			Category:    p.Category,
			Severity:    p.Severity,
			RiskWeight:  p.RiskWeight,
		}
	}
	return out
}
