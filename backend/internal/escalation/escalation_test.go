package escalation

import (
	"bytes"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/blackrose-blackhat/crisis-guard/backend/internal/crisis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	opened  []string
	expired []string
}

func (r *recorder) OnEscalation(c Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened = append(r.opened, c.ID)
	return nil
}

func (r *recorder) OnExpired(c Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expired = append(r.expired, c.ID)
	return nil
}

func newTestManager(sla time.Duration) (*Manager, *time.Time, *recorder) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(Config{SLA: sla}, nil)
	m.now = func() time.Time { return clock }
	rec := &recorder{}
	m.SetNotifier(rec)
	return m, &clock, rec
}

func result(risk float64, emergency bool) *crisis.Result {
	return &crisis.Result{
		OverallSeverity:           crisis.SeverityFor(risk),
		EmergencyServicesRequired: emergency,
		KeywordMatches:            []crisis.KeywordMatch{{Category: crisis.CategorySuicidePlan}},
		RiskAssessment:            crisis.RiskAssessment{ImmediateRisk: risk},
		AnalysisMetadata:          crisis.AnalysisMetadata{Method: crisis.MethodPatternAnalysis},
	}
}

func TestOpen(t *testing.T) {
	m, clock, rec := newTestManager(10 * time.Minute)

	c := m.Open("req-1", crisis.Metadata{UserID: "u-1"}, result(97.5, true), []string{"ESCALATE_TO_HUMAN"})

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, StatusPending, c.Status)
	assert.Equal(t, "u-1", c.UserID)
	assert.Equal(t, crisis.SeverityEmergency, c.Severity)
	assert.Equal(t, []string{"suicide-plan"}, c.Categories)
	assert.Equal(t, clock.Add(10*time.Minute), c.ExpiresAt)
	assert.Equal(t, []string{c.ID}, rec.opened)

	got, err := m.Get(c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, got)

	_, err = m.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestList_Order(t *testing.T) {
	m, clock, _ := newTestManager(time.Hour)

	low := m.Open("low", crisis.Metadata{}, result(40, false), nil)
	*clock = clock.Add(time.Second)
	high := m.Open("high", crisis.Metadata{}, result(80, false), nil)
	*clock = clock.Add(time.Second)
	emergency := m.Open("emergency", crisis.Metadata{}, result(60, true), nil)

	ids := func(cases []Case) []string {
		out := make([]string, len(cases))
		for i, c := range cases {
			out[i] = c.ID
		}
		return out
	}
	assert.Equal(t, []string{emergency.ID, high.ID, low.ID}, ids(m.List("")))

	_, err := m.Acknowledge(high.ID, "counsellor")
	require.NoError(t, err)
	assert.Equal(t, []string{emergency.ID, low.ID}, ids(m.List(StatusPending)))
	assert.Equal(t, []string{high.ID}, ids(m.List(StatusAcknowledged)))
	assert.Equal(t, 2, m.Pending())
}

func TestAcknowledgeAndResolve(t *testing.T) {
	m, _, _ := newTestManager(time.Hour)
	c := m.Open("req", crisis.Metadata{}, result(80, false), nil)

	acked, err := m.Acknowledge(c.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, StatusAcknowledged, acked.Status)
	assert.Equal(t, "alice", acked.HandledBy)
	require.NotNil(t, acked.AcknowledgedAt)

	_, err = m.Acknowledge(c.ID, "bob")
	require.ErrorIs(t, err, ErrInvalidStatus)

	resolved, err := m.Resolve(c.ID, "alice", "safety plan agreed")
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, resolved.Status)
	assert.Equal(t, "safety plan agreed", resolved.Note)

	_, err = m.Resolve(c.ID, "alice", "")
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, err = m.Acknowledge("missing", "alice")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = m.Resolve("missing", "alice", "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExpiry(t *testing.T) {
	m, clock, rec := newTestManager(5 * time.Minute)
	c := m.Open("req", crisis.Metadata{}, result(97, true), nil)
	acked := m.Open("req-2", crisis.Metadata{}, result(97, true), nil)
	_, err := m.Acknowledge(acked.ID, "alice")
	require.NoError(t, err)

	*clock = clock.Add(6 * time.Minute)

	_, err = m.Acknowledge(c.ID, "alice")
	require.ErrorIs(t, err, ErrExpired)

	got, err := m.Get(c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)
	assert.Equal(t, []string{c.ID}, rec.expired, "expiry is notified once")

	still, err := m.Get(acked.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAcknowledged, still.Status, "acknowledged cases do not expire")

	// late responders can still close an expired case
	resolved, err := m.Resolve(c.ID, "bob", "reached by phone")
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, resolved.Status)
}

func TestResolvedCasesAreCapped(t *testing.T) {
	m, _, _ := newTestManager(time.Hour)
	m.config.MaxClosed = 100

	for i := 0; i < 10000; i++ {
		c := m.Open("req", crisis.Metadata{}, result(80, false), nil)
		_, err := m.Resolve(c.ID, "alice", "")
		require.NoError(t, err)
	}
	open := m.Open("req", crisis.Metadata{}, result(80, false), nil)

	assert.Equal(t, 1, m.Pending())
	assert.Len(t, m.cases, 101)
	assert.Len(t, m.List(StatusResolved), 100)
	_, err := m.Get(open.ID)
	require.NoError(t, err)
}

func TestClosedCasesExpireAfterRetention(t *testing.T) {
	m, clock, rec := newTestManager(5 * time.Minute)
	m.config.Retention = 30 * time.Minute

	resolved := m.Open("req-1", crisis.Metadata{}, result(80, false), nil)
	_, err := m.Resolve(resolved.ID, "alice", "")
	require.NoError(t, err)
	expired := m.Open("req-2", crisis.Metadata{}, result(97, true), nil)
	acked := m.Open("req-3", crisis.Metadata{}, result(90, true), nil)
	_, err = m.Acknowledge(acked.ID, "bob")
	require.NoError(t, err)

	*clock = clock.Add(10 * time.Minute)
	assert.Equal(t, 0, m.Pending())
	assert.Equal(t, []string{expired.ID}, rec.expired)

	*clock = clock.Add(25 * time.Minute)
	assert.Equal(t, 0, m.Pending())
	_, err = m.Get(resolved.ID)
	require.ErrorIs(t, err, ErrNotFound)
	got, err := m.Get(expired.ID)
	require.NoError(t, err, "expired case closed 25 minutes ago is still retained")
	assert.Equal(t, StatusExpired, got.Status)

	*clock = clock.Add(10 * time.Minute)
	assert.Equal(t, 0, m.Pending())
	_, err = m.Get(expired.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = m.Get(acked.ID)
	require.NoError(t, err, "acknowledged cases are never pruned")
}

func TestResolveAfterExpiryKeepsCase(t *testing.T) {
	m, clock, _ := newTestManager(5 * time.Minute)
	m.config.Retention = 30 * time.Minute

	c := m.Open("req", crisis.Metadata{}, result(97, true), nil)
	*clock = clock.Add(6 * time.Minute)
	require.Equal(t, 0, m.Pending())

	*clock = clock.Add(20 * time.Minute)
	_, err := m.Resolve(c.ID, "bob", "reached by phone")
	require.NoError(t, err)

	*clock = clock.Add(15 * time.Minute)
	require.Equal(t, 0, m.Pending())
	got, err := m.Get(c.ID)
	require.NoError(t, err, "retention restarts when an expired case is resolved")
	assert.Equal(t, StatusResolved, got.Status)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(Config{}, nil)
	m.SetNotifier(LogNotifier{Logger: log.New(&buf, "", 0)})

	c := m.Open("req-9", crisis.Metadata{}, result(97, true), []string{"ESCALATE_TO_HUMAN"})
	assert.Contains(t, buf.String(), "[ESCALATION] case="+c.ID)
	assert.Contains(t, buf.String(), "request=req-9")
	assert.Equal(t, DefaultSLA, c.ExpiresAt.Sub(c.OpenedAt))
}

func TestConcurrentUse(t *testing.T) {
	m := NewManager(Config{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := m.Open("req", crisis.Metadata{}, result(80, false), nil)
			m.List("")
			_, _ = m.Acknowledge(c.ID, "x")
		}()
	}
	wg.Wait()
	assert.Len(t, m.List(StatusAcknowledged), 16)
}
