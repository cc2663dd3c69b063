package policy

import (
	"fmt"
	"strings"

	"github.com/blackrose-blackhat/crisis-guard/backend/internal/crisis"
)

// RouteAction is the Cedar action every routing policy is written against
const RouteAction = "route"

// Context attribute names shared by the compiler and the routing engine
const (
	AttrImmediateRisk = "immediate_risk"
	AttrConfidence    = "confidence"
	AttrSeverity      = "severity"
	AttrSeverityRank  = "severity_rank"
	AttrCategories    = "categories"
	AttrLanguage      = "language"
	AttrHasCrisis     = "has_crisis"
	AttrEscalation    = "escalation"
	AttrEmergency     = "emergency"
	AttrFailsafe      = "failsafe"
)

// Annotation keys read back by the routing engine
const (
	AnnotationRule       = "rule"
	AnnotationObligation = "obligation"
	AnnotationFields     = "fields"
)

// Compile converts a RoutingPolicy into Cedar policy text, one annotated
// policy per rule in rule order.
func Compile(p *RoutingPolicy) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	var b strings.Builder

	b.WriteString("// Auto-generated from a routing policy YAML document. Do not edit directly.\n")
	b.WriteString(fmt.Sprintf("// Policy version: %s\n\n", p.Version))

	for _, r := range p.Rules {
		compileRule(&b, r)
	}

	return b.String(), nil
}

func compileRule(b *strings.Builder, r RoutingRule) {
	if r.Description != "" {
		b.WriteString(fmt.Sprintf("// %s: %s\n", r.Name, r.Description))
	} else {
		b.WriteString(fmt.Sprintf("// %s\n", r.Name))
	}

	b.WriteString(fmt.Sprintf("@%s(\"%s\")\n", AnnotationRule, r.Name))
	if r.Obligation != "" {
		b.WriteString(fmt.Sprintf("@%s(\"%s\")\n", AnnotationObligation, r.Obligation))
	}
	if len(r.Fields) > 0 {
		b.WriteString(fmt.Sprintf("@%s(\"%s\")\n", AnnotationFields, strings.Join(r.Fields, ",")))
	}

	b.WriteString(fmt.Sprintf(`%s(
    principal,
    action == Action::"%s",
    resource
)`, r.effect(), RouteAction))

	conds := conditions(r.When)
	if len(conds) > 0 {
		b.WriteString(fmt.Sprintf(`
when {
    %s
}`, strings.Join(conds, " &&\n    ")))
	}
	b.WriteString(";\n\n")
}

func conditions(c Condition) []string {
	var parts []string

	if c.MinImmediateRisk != nil {
		parts = append(parts, fmt.Sprintf("context.%s >= %d", AttrImmediateRisk, *c.MinImmediateRisk))
	}
	if c.MinConfidence != nil {
		parts = append(parts, fmt.Sprintf("context.%s >= %d", AttrConfidence, *c.MinConfidence))
	}
	if c.MinSeverity != "" {
		parts = append(parts, fmt.Sprintf("context.%s >= %d", AttrSeverityRank, crisis.Severity(c.MinSeverity).Rank()))
	}
	if len(c.Severities) > 0 {
		parts = append(parts, fmt.Sprintf("%s.contains(context.%s)", setLiteral(c.Severities), AttrSeverity))
	}
	if len(c.Categories) > 0 {
		parts = append(parts, fmt.Sprintf("context.%s.containsAny(%s)", AttrCategories, setLiteral(c.Categories)))
	}
	if len(c.Languages) > 0 {
		parts = append(parts, fmt.Sprintf("%s.contains(context.%s)", setLiteral(c.Languages), AttrLanguage))
	}

	flags := []struct {
		attr string
		v    *bool
	}{
		{AttrHasCrisis, c.HasCrisis},
		{AttrEscalation, c.Escalation},
		{AttrEmergency, c.Emergency},
		{AttrFailsafe, c.Failsafe},
	}
	for _, f := range flags {
		if f.v != nil {
			parts = append(parts, fmt.Sprintf("context.%s == %t", f.attr, *f.v))
		}
	}
	return parts
}

func setLiteral(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
