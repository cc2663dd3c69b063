package escalation

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/blackrose-blackhat/crisis-guard/backend/internal/crisis"
	"github.com/google/uuid"
)

// Status represents the status of a human review case
type Status string

const (
	StatusPending      Status = "pending"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
	StatusExpired      Status = "expired"
)

const (
	// DefaultSLA is how long a case may stay pending before it expires
	DefaultSLA = 15 * time.Minute
	// DefaultRetention is how long resolved and expired cases stay queryable
	DefaultRetention = time.Hour
	// DefaultMaxClosed caps the resolved and expired cases kept in memory
	DefaultMaxClosed = 1000
)

// Case is a crisis assessment handed to a human responder
type Case struct {
	ID             string          `json:"id"`
	RequestID      string          `json:"request_id"`
	UserID         string          `json:"user_id,omitempty"`
	Reasons        []string        `json:"reasons"` // obligations that opened the case
	Severity       crisis.Severity `json:"severity"`
	ImmediateRisk  float64         `json:"immediate_risk"`
	Emergency      bool            `json:"emergency"`
	Failsafe       bool            `json:"failsafe"`
	Categories     []string        `json:"categories"`
	OpenedAt       time.Time       `json:"opened_at"`
	ExpiresAt      time.Time       `json:"expires_at"`
	Status         Status          `json:"status"`
	HandledBy      string          `json:"handled_by,omitempty"`
	AcknowledgedAt *time.Time      `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time      `json:"resolved_at,omitempty"`
	Note           string          `json:"note,omitempty"`
}

// Notifier delivers escalation events to responders
type Notifier interface {
	// OnEscalation is called when a case is opened
	OnEscalation(c Case) error
	// OnExpired is called once when a pending case passes its SLA
	OnExpired(c Case) error
}

// Config configures the review queue
type Config struct {
	SLA       time.Duration
	Retention time.Duration
	MaxClosed int
}

// closedRef records when a case reached a closed status, in closing order
type closedRef struct {
	id     string
	status Status
	at     time.Time
}

// Manager holds review cases in memory. Pending and acknowledged cases are
// kept until closed; closed cases are dropped after Retention or once more
// than MaxClosed of them are held, oldest first.
type Manager struct {
	mu       sync.Mutex
	config   Config
	cases    map[string]*Case
	closed   []closedRef
	notifier Notifier
	logger   *log.Logger
	now      func() time.Time
}

// NewManager creates a new Manager
func NewManager(config Config, logger *log.Logger) *Manager {
	if config.SLA <= 0 {
		config.SLA = DefaultSLA
	}
	if config.Retention <= 0 {
		config.Retention = DefaultRetention
	}
	if config.MaxClosed <= 0 {
		config.MaxClosed = DefaultMaxClosed
	}
	return &Manager{
		config: config,
		cases:  make(map[string]*Case),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetNotifier sets the notifier for escalation events
func (m *Manager) SetNotifier(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifier = n
}

// Open creates a pending case for an assessed result
func (m *Manager) Open(requestID string, meta crisis.Metadata, r *crisis.Result, reasons []string) Case {
	now := m.now()
	c := &Case{
		ID:            uuid.New().String(),
		RequestID:     requestID,
		UserID:        meta.UserID,
		Reasons:       append([]string(nil), reasons...),
		Severity:      r.OverallSeverity,
		ImmediateRisk: r.RiskAssessment.ImmediateRisk,
		Emergency:     r.EmergencyServicesRequired,
		Failsafe:      r.IsFailsafe(),
		Categories:    r.Categories(),
		OpenedAt:      now,
		ExpiresAt:     now.Add(m.config.SLA),
		Status:        StatusPending,
	}

	m.mu.Lock()
	m.pruneLocked()
	m.cases[c.ID] = c
	snapshot := *c
	notifier := m.notifier
	m.mu.Unlock()

	if notifier != nil {
		if err := notifier.OnEscalation(snapshot); err != nil {
			m.logError("Escalation notification for case %s failed: %v", c.ID, err)
		}
	}
	return snapshot
}

// Get retrieves a case by ID
func (m *Manager) Get(id string) (Case, error) {
	m.mu.Lock()
	c, ok := m.cases[id]
	if !ok {
		m.mu.Unlock()
		return Case{}, ErrNotFound
	}
	expired := m.expireLocked(c)
	snapshot := *c
	notifier := m.notifier
	m.mu.Unlock()

	m.notifyExpired(notifier, expired)
	return snapshot, nil
}

// List returns cases with the given status (all cases when status is empty),
// emergencies first, then highest risk, then oldest.
func (m *Manager) List(status Status) []Case {
	m.mu.Lock()
	var expired []Case
	out := make([]Case, 0, len(m.cases))
	for _, c := range m.cases {
		expired = append(expired, m.expireLocked(c)...)
		if status == "" || c.Status == status {
			out = append(out, *c)
		}
	}
	m.pruneLocked()
	notifier := m.notifier
	m.mu.Unlock()

	m.notifyExpired(notifier, expired)

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Emergency != b.Emergency {
			return a.Emergency
		}
		if a.ImmediateRisk != b.ImmediateRisk {
			return a.ImmediateRisk > b.ImmediateRisk
		}
		if !a.OpenedAt.Equal(b.OpenedAt) {
			return a.OpenedAt.Before(b.OpenedAt)
		}
		return a.ID < b.ID
	})
	return out
}

// Pending returns the number of cases awaiting a responder
func (m *Manager) Pending() int {
	m.mu.Lock()
	var expired []Case
	n := 0
	for _, c := range m.cases {
		expired = append(expired, m.expireLocked(c)...)
		if c.Status == StatusPending {
			n++
		}
	}
	m.pruneLocked()
	notifier := m.notifier
	m.mu.Unlock()

	m.notifyExpired(notifier, expired)
	return n
}

// Acknowledge marks a pending case as taken by a responder. An acknowledged
// case no longer expires.
func (m *Manager) Acknowledge(id, by string) (Case, error) {
	m.mu.Lock()
	c, ok := m.cases[id]
	if !ok {
		m.mu.Unlock()
		return Case{}, ErrNotFound
	}
	expired := m.expireLocked(c)
	notifier := m.notifier

	var err error
	switch c.Status {
	case StatusPending:
		now := m.now()
		c.Status = StatusAcknowledged
		c.HandledBy = by
		c.AcknowledgedAt = &now
	case StatusExpired:
		err = ErrExpired
	default:
		err = ErrInvalidStatus
	}
	snapshot := *c
	m.mu.Unlock()

	m.notifyExpired(notifier, expired)
	if err != nil {
		return Case{}, err
	}
	return snapshot, nil
}

// Resolve closes a pending, acknowledged or expired case
func (m *Manager) Resolve(id, by, note string) (Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.cases[id]
	if !ok {
		return Case{}, ErrNotFound
	}
	if c.Status == StatusResolved {
		return Case{}, ErrInvalidStatus
	}

	now := m.now()
	c.Status = StatusResolved
	c.HandledBy = by
	c.ResolvedAt = &now
	c.Note = note
	snapshot := *c
	m.closed = append(m.closed, closedRef{id: c.ID, status: StatusResolved, at: now})
	m.pruneLocked()
	return snapshot, nil
}

// expireLocked moves a pending case past its SLA to expired. It returns the
// case when it changed so the caller can notify outside the lock.
func (m *Manager) expireLocked(c *Case) []Case {
	if c.Status != StatusPending || !m.now().After(c.ExpiresAt) {
		return nil
	}
	c.Status = StatusExpired
	m.closed = append(m.closed, closedRef{id: c.ID, status: StatusExpired, at: m.now()})
	return []Case{*c}
}

// pruneLocked drops closed cases past the retention window, and the oldest
// closed cases beyond MaxClosed. A ref whose case has since changed status
// (expired, then resolved) is stale and only consumed.
func (m *Manager) pruneLocked() {
	cutoff := m.now().Add(-m.config.Retention)
	for len(m.closed) > 0 {
		ref := m.closed[0]
		if len(m.closed) <= m.config.MaxClosed && ref.at.After(cutoff) {
			return
		}
		m.closed = m.closed[1:]
		if c, ok := m.cases[ref.id]; ok && c.Status == ref.status {
			delete(m.cases, ref.id)
		}
	}
}

func (m *Manager) notifyExpired(n Notifier, cases []Case) {
	for _, c := range cases {
		m.logError("Escalation case %s expired unacknowledged (severity %s)", c.ID, c.Severity)
		if n == nil {
			continue
		}
		if err := n.OnExpired(c); err != nil {
			m.logError("Expiry notification for case %s failed: %v", c.ID, err)
		}
	}
}

func (m *Manager) logError(format string, args ...interface{}) {
	if m.logger != nil {
		m.logger.Printf("[ERROR] "+format, args...)
	}
}

// LogNotifier writes escalation events to a logger
type LogNotifier struct {
	Logger *log.Logger
}

func (n LogNotifier) OnEscalation(c Case) error {
	n.Logger.Printf("[ESCALATION] case=%s request=%s severity=%s risk=%.1f emergency=%v reasons=%v",
		c.ID, c.RequestID, c.Severity, c.ImmediateRisk, c.Emergency, c.Reasons)
	return nil
}

func (n LogNotifier) OnExpired(c Case) error {
	n.Logger.Printf("[ESCALATION] case=%s expired after %v without acknowledgement", c.ID, c.ExpiresAt.Sub(c.OpenedAt))
	return nil
}

// Errors
type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrNotFound      = Error("escalation case not found")
	ErrInvalidStatus = Error("escalation case cannot change status")
	ErrExpired       = Error("escalation case has expired")
)
