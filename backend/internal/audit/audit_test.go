package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/blackrose-blackhat/crisis-guard/backend/internal/crisis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emergencyResult() *crisis.Result {
	return &crisis.Result{
		HasCrisisIndicators:       true,
		OverallSeverity:           crisis.SeverityEmergency,
		EscalationRequired:        true,
		EmergencyServicesRequired: true,
		KeywordMatches: []crisis.KeywordMatch{
			{Category: crisis.CategorySuicidePlan},
			{Category: crisis.CategorySuicidalIdeation},
		},
		RiskAssessment: crisis.RiskAssessment{
			ImmediateRisk:       97.5,
			InterventionUrgency: crisis.UrgencyImmediate,
		},
		AnalysisMetadata: crisis.AnalysisMetadata{Method: crisis.MethodPatternAnalysis},
	}
}

func TestShouldAudit(t *testing.T) {
	assert.True(t, ShouldAudit(emergencyResult()))
	assert.True(t, ShouldAudit(crisis.Failsafe(0)))
	assert.False(t, ShouldAudit(&crisis.Result{OverallSeverity: crisis.SeverityLow}))
}

func TestNewEntry(t *testing.T) {
	text := "i am going to kill myself tonight"
	e := NewEntry("req-1", text, crisis.Metadata{UserID: "u-42"}, emergencyResult(), 3*time.Millisecond)

	assert.Equal(t, "req-1", e.RequestID)
	assert.Equal(t, CategoryCrisisIntervention, e.Category)
	assert.Equal(t, "u-42", e.UserID)
	assert.Equal(t, HashText(text), e.TextSHA256)
	assert.Len(t, e.TextSHA256, 64)
	assert.Equal(t, []string{"suicide-plan", "suicidal-ideation"}, e.Categories)
	assert.True(t, e.Emergency)
	assert.False(t, e.Failsafe)
	assert.False(t, e.Timestamp.IsZero())
}

func TestLogger_WritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf)

	text := "i am going to kill myself tonight"
	entry := NewEntry("req-1", text, crisis.Metadata{}, emergencyResult(), time.Millisecond)
	entry.Decision = "INTERVENE"
	entry.Obligations = []string{"ROUTE_EMERGENCY"}
	l.Log(entry)
	l.Log(Entry{RequestID: "req-2"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, buf.String(), text)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "crisis_intervention", first["category"])
	assert.Equal(t, "emergency", first["severity"])
	assert.Equal(t, "INTERVENE", first["decision"])
	assert.Equal(t, 97.5, first["immediate_risk"])

	var second Entry
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, CategoryCrisisIntervention, second.Category)
	assert.False(t, second.Timestamp.IsZero())
}

func TestLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := NewLogger(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Log(Entry{RequestID: "concurrent"})
		}()
	}
	wg.Wait()
	require.NoError(t, l.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		n++
	}
	assert.Equal(t, 20, n)
}
