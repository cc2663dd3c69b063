package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/blackrose-blackhat/crisis-guard/backend/internal/crisis"
)

// CategoryCrisisIntervention is the event category of every audit entry
const CategoryCrisisIntervention = "crisis_intervention"

// Entry is one structured crisis_intervention audit record. Raw text is never
// stored; TextSHA256 lets operators correlate repeated submissions.
type Entry struct {
	Timestamp           time.Time       `json:"timestamp"`
	RequestID           string          `json:"request_id"`
	Category            string          `json:"category"`
	UserID              string          `json:"user_id,omitempty"`
	TextSHA256          string          `json:"text_sha256"`
	Severity            crisis.Severity `json:"severity"`
	ImmediateRisk       float64         `json:"immediate_risk"`
	InterventionUrgency crisis.Urgency  `json:"intervention_urgency"`
	Escalation          bool            `json:"escalation"`
	Emergency           bool            `json:"emergency"`
	Failsafe            bool            `json:"failsafe"`
	Categories          []string        `json:"categories"`
	Decision            string          `json:"decision,omitempty"`
	PolicyVersion       string          `json:"policy_version,omitempty"`
	Obligations         []string        `json:"obligations,omitempty"`
	EscalationID        string          `json:"escalation_id,omitempty"`
	Latency             time.Duration   `json:"latency_ns"`
}

// Logger handles structured audit logging
type Logger struct {
	mu       sync.Mutex
	closer   io.Closer
	encoder  *json.Encoder
	fallback *log.Logger
}

// NewLogger creates a new audit logger
// If filePath is empty, logs to stdout in JSON format
func NewLogger(filePath string) (*Logger, error) {
	if filePath == "" {
		return NewWriterLogger(os.Stdout), nil
	}

	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	l := NewWriterLogger(file)
	l.closer = file
	return l, nil
}

// NewWriterLogger creates an audit logger writing JSON lines to w
func NewWriterLogger(w io.Writer) *Logger {
	return &Logger{
		encoder:  json.NewEncoder(w),
		fallback: log.New(os.Stderr, "[AUDIT] ", log.LstdFlags),
	}
}

// ShouldAudit reports whether a result is an auditable crisis_intervention event
func ShouldAudit(r *crisis.Result) bool {
	return r.HasCrisisIndicators || r.EscalationRequired || r.EmergencyServicesRequired || r.IsFailsafe()
}

// NewEntry builds an entry for one analysed text
func NewEntry(requestID, text string, meta crisis.Metadata, r *crisis.Result, latency time.Duration) Entry {
	return Entry{
		Timestamp:           time.Now().UTC(),
		RequestID:           requestID,
		Category:            CategoryCrisisIntervention,
		UserID:              meta.UserID,
		TextSHA256:          HashText(text),
		Severity:            r.OverallSeverity,
		ImmediateRisk:       r.RiskAssessment.ImmediateRisk,
		InterventionUrgency: r.RiskAssessment.InterventionUrgency,
		Escalation:          r.EscalationRequired,
		Emergency:           r.EmergencyServicesRequired,
		Failsafe:            r.IsFailsafe(),
		Categories:          r.Categories(),
		Latency:             latency,
	}
}

// HashText returns the hex SHA-256 of text
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Log writes an audit entry
func (l *Logger) Log(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Category == "" {
		entry.Category = CategoryCrisisIntervention
	}

	if err := l.encoder.Encode(entry); err != nil {
		l.fallback.Printf("Failed to write audit entry: %v, request: %s", err, entry.RequestID)
	}
}

// Close closes the audit log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
