package policy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cedar-policy/cedar-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseChunks splits compiled text the way the routing engine does and parses every policy
func parseChunks(t *testing.T, src string) []*cedar.Policy {
	t.Helper()
	var out []*cedar.Policy
	for i, chunk := range strings.Split(src, ";") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		var p cedar.Policy
		require.NoError(t, p.UnmarshalCedar([]byte(chunk+";")), "chunk %d:\n%s", i, chunk)
		out = append(out, &p)
	}
	return out
}

func TestDefaultRoutingPolicy_Compiles(t *testing.T) {
	p := DefaultRoutingPolicy()
	require.NoError(t, p.Validate())

	src, err := Compile(p)
	require.NoError(t, err)

	policies := parseChunks(t, src)
	require.Len(t, policies, len(p.Rules))

	for i, cp := range policies {
		ann := cp.Annotations()
		assert.Equal(t, p.Rules[i].Name, string(ann[AnnotationRule]))
		assert.Equal(t, p.Rules[i].Obligation, string(ann[AnnotationObligation]))
	}
}

func TestCompile_Conditions(t *testing.T) {
	p := &RoutingPolicy{
		Version: "2",
		Rules: []RoutingRule{
			{
				Name:       "everything",
				Obligation: "NOTIFY",
				Fields:     []string{"a", "b"},
				When: Condition{
					MinImmediateRisk: intPtr(40),
					MinConfidence:    intPtr(70),
					MinSeverity:      "high",
					Severities:       []string{"critical", "emergency"},
					Categories:       []string{"self-harm", "suicide-plan"},
					Languages:        []string{"en"},
					HasCrisis:        boolPtr(true),
					Failsafe:         boolPtr(false),
				},
			},
			{
				Name:   "quiet",
				Effect: EffectForbid,
			},
		},
	}

	src, err := Compile(p)
	require.NoError(t, err)

	for _, want := range []string{
		"// Policy version: 2",
		`@rule("everything")`,
		`@obligation("NOTIFY")`,
		`@fields("a,b")`,
		`action == Action::"route"`,
		"context.immediate_risk >= 40",
		"context.confidence >= 70",
		"context.severity_rank >= 3",
		`["critical", "emergency"].contains(context.severity)`,
		`context.categories.containsAny(["self-harm", "suicide-plan"])`,
		`["en"].contains(context.language)`,
		"context.has_crisis == true",
		"context.failsafe == false",
		"forbid(",
	} {
		assert.Contains(t, src, want)
	}

	policies := parseChunks(t, src)
	require.Len(t, policies, 2)

	// an empty condition compiles to an unconditional policy
	quiet := src[strings.Index(src, `@rule("quiet")`):]
	assert.NotContains(t, quiet, "when")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		p    RoutingPolicy
	}{
		{"no rules", RoutingPolicy{}},
		{"unnamed rule", RoutingPolicy{Rules: []RoutingRule{{Obligation: "X"}}}},
		{"duplicate names", RoutingPolicy{Rules: []RoutingRule{{Name: "a", Obligation: "X"}, {Name: "a", Obligation: "Y"}}}},
		{"permit without obligation", RoutingPolicy{Rules: []RoutingRule{{Name: "a"}}}},
		{"unknown effect", RoutingPolicy{Rules: []RoutingRule{{Name: "a", Effect: "maybe", Obligation: "X"}}}},
		{"semicolon", RoutingPolicy{Rules: []RoutingRule{{Name: "a;b", Obligation: "X"}}}},
		{"quote", RoutingPolicy{Rules: []RoutingRule{{Name: "a", Obligation: `X"`}}}},
		{"comma in field", RoutingPolicy{Rules: []RoutingRule{{Name: "a", Obligation: "X", Fields: []string{"a,b"}}}}},
		{"risk out of range", RoutingPolicy{Rules: []RoutingRule{{Name: "a", Obligation: "X", When: Condition{MinImmediateRisk: intPtr(101)}}}}},
		{"unknown severity", RoutingPolicy{Rules: []RoutingRule{{Name: "a", Obligation: "X", When: Condition{Severities: []string{"dire"}}}}}},
		{"unknown min severity", RoutingPolicy{Rules: []RoutingRule{{Name: "a", Obligation: "X", When: Condition{MinSeverity: "dire"}}}}},
		{"unknown category", RoutingPolicy{Rules: []RoutingRule{{Name: "a", Obligation: "X", When: Condition{Categories: []string{"sadness"}}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, tt.p.Validate(), ErrInvalidPolicy)
			_, err := Compile(&tt.p)
			require.ErrorIs(t, err, ErrInvalidPolicy)
		})
	}
}

func TestLoadRoutingPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - name: self-harm-followup
    obligation: SCHEDULE_FOLLOWUP
    fields: [user_id]
    when:
      categories: [self-harm]
      min_immediate_risk: 30
  - name: mute-failsafe
    effect: forbid
    when:
      failsafe: true
`), 0o644))

	p, err := LoadRoutingPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", p.Version)
	require.Len(t, p.Rules, 2)

	first := p.Rules[0]
	assert.Equal(t, "SCHEDULE_FOLLOWUP", first.Obligation)
	assert.Equal(t, []string{"self-harm"}, first.When.Categories)
	require.NotNil(t, first.When.MinImmediateRisk)
	assert.Equal(t, 30, *first.When.MinImmediateRisk)
	assert.Nil(t, first.When.HasCrisis)

	second := p.Rules[1]
	assert.Equal(t, EffectForbid, second.Effect)
	require.NotNil(t, second.When.Failsafe)
	assert.True(t, *second.When.Failsafe)

	_, err = LoadRoutingPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = ParseRoutingPolicy([]byte("rules: ["))
	require.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestCondition_IsEmpty(t *testing.T) {
	assert.True(t, Condition{}.IsEmpty())
	assert.False(t, Condition{HasCrisis: boolPtr(false)}.IsEmpty())
	assert.False(t, Condition{Languages: []string{"en"}}.IsEmpty())
}
