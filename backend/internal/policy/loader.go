package policy

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/blackrose-blackhat/crisis-guard/backend/internal/crisis"
	"gopkg.in/yaml.v3"
)

// ErrInvalidPolicy is returned when a routing policy fails validation
var ErrInvalidPolicy = errors.New("invalid routing policy")

// LoadRoutingPolicy reads and validates a routing policy YAML file
func LoadRoutingPolicy(path string) (*RoutingPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParseRoutingPolicy(data)
}

// ParseRoutingPolicy parses and validates a routing policy YAML document
func ParseRoutingPolicy(data []byte) (*RoutingPolicy, error) {
	var p RoutingPolicy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: failed to parse YAML: %v", ErrInvalidPolicy, err)
	}
	if p.Version == "" {
		p.Version = "1.0.0"
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks every rule. Strings end up inside Cedar string literals and
// the engine splits policy text on ';', so neither quotes nor ';' are allowed.
func (p *RoutingPolicy) Validate() error {
	if len(p.Rules) == 0 {
		return fmt.Errorf("%w: no rules defined", ErrInvalidPolicy)
	}
	if err := checkLiteral("version", p.Version); err != nil {
		return err
	}

	seen := make(map[string]bool, len(p.Rules))
	for i, r := range p.Rules {
		if r.Name == "" {
			return fmt.Errorf("%w: rule %d has no name", ErrInvalidPolicy, i)
		}
		if seen[r.Name] {
			return fmt.Errorf("%w: duplicate rule %q", ErrInvalidPolicy, r.Name)
		}
		seen[r.Name] = true

		if err := validateRule(r); err != nil {
			return fmt.Errorf("%w: rule %q: %v", ErrInvalidPolicy, r.Name, err)
		}
	}
	return nil
}

func validateRule(r RoutingRule) error {
	switch r.effect() {
	case EffectPermit:
		if r.Obligation == "" {
			return fmt.Errorf("permit rules need an obligation")
		}
	case EffectForbid:
	default:
		return fmt.Errorf("unknown effect %q", r.Effect)
	}

	literals := append([]string{r.Name, r.Description, r.Obligation, r.When.MinSeverity}, r.Fields...)
	literals = append(literals, r.When.Severities...)
	literals = append(literals, r.When.Categories...)
	literals = append(literals, r.When.Languages...)
	for _, s := range literals {
		if err := checkLiteral("value", s); err != nil {
			return err
		}
	}
	for _, f := range r.Fields {
		if strings.Contains(f, ",") {
			return fmt.Errorf("field %q contains ','", f)
		}
	}

	c := r.When
	if c.MinImmediateRisk != nil && (*c.MinImmediateRisk < 0 || *c.MinImmediateRisk > 100) {
		return fmt.Errorf("min_immediate_risk %d outside [0,100]", *c.MinImmediateRisk)
	}
	if c.MinConfidence != nil && (*c.MinConfidence < 0 || *c.MinConfidence > 100) {
		return fmt.Errorf("min_confidence %d outside [0,100]", *c.MinConfidence)
	}
	if c.MinSeverity != "" && crisis.Severity(c.MinSeverity).Rank() < 0 {
		return fmt.Errorf("unknown severity %q", c.MinSeverity)
	}
	for _, s := range c.Severities {
		if crisis.Severity(s).Rank() < 0 {
			return fmt.Errorf("unknown severity %q", s)
		}
	}
	for _, cat := range c.Categories {
		if !crisis.IsKnownCategory(crisis.Category(cat)) {
			return fmt.Errorf("unknown category %q", cat)
		}
	}
	return nil
}

func checkLiteral(name, s string) error {
	if strings.ContainsAny(s, "\";\\\n") {
		return fmt.Errorf("%w: %s %q contains a forbidden character", ErrInvalidPolicy, name, s)
	}
	return nil
}
