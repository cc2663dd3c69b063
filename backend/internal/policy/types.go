package policy

// RoutingPolicy is the root of a routing policy YAML document
type RoutingPolicy struct {
	Version string        `yaml:"version" json:"version"`
	Rules   []RoutingRule `yaml:"rules" json:"rules"`
}

// Effect says whether a matching rule asks for intervention or suppresses it
type Effect string

const (
	EffectPermit Effect = "permit"
	EffectForbid Effect = "forbid"
)

// RoutingRule maps a condition over an analysis result to an obligation
type RoutingRule struct {
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Effect      Effect    `yaml:"effect,omitempty" json:"effect,omitempty"` // default permit
	Obligation  string    `yaml:"obligation,omitempty" json:"obligation,omitempty"`
	Fields      []string  `yaml:"fields,omitempty" json:"fields,omitempty"`
	When        Condition `yaml:"when" json:"when"`
}

// Condition is a conjunction of checks; unset fields are ignored
type Condition struct {
	MinImmediateRisk *int     `yaml:"min_immediate_risk,omitempty" json:"min_immediate_risk,omitempty"` // 0 - 100
	MinConfidence    *int     `yaml:"min_confidence,omitempty" json:"min_confidence,omitempty"`         // 0 - 100
	MinSeverity      string   `yaml:"min_severity,omitempty" json:"min_severity,omitempty"`
	Severities       []string `yaml:"severities,omitempty" json:"severities,omitempty"`
	Categories       []string `yaml:"categories,omitempty" json:"categories,omitempty"`
	Languages        []string `yaml:"languages,omitempty" json:"languages,omitempty"`
	HasCrisis        *bool    `yaml:"has_crisis,omitempty" json:"has_crisis,omitempty"`
	Escalation       *bool    `yaml:"escalation,omitempty" json:"escalation,omitempty"`
	Emergency        *bool    `yaml:"emergency,omitempty" json:"emergency,omitempty"`
	Failsafe         *bool    `yaml:"failsafe,omitempty" json:"failsafe,omitempty"`
}

// IsEmpty reports whether the condition matches every result
func (c Condition) IsEmpty() bool {
	return c.MinImmediateRisk == nil && c.MinConfidence == nil && c.MinSeverity == "" &&
		len(c.Severities) == 0 && len(c.Categories) == 0 && len(c.Languages) == 0 &&
		c.HasCrisis == nil && c.Escalation == nil && c.Emergency == nil && c.Failsafe == nil
}

func (r RoutingRule) effect() Effect {
	if r.Effect == "" {
		return EffectPermit
	}
	return r.Effect
}
