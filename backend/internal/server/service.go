package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/blackrose-blackhat/crisis-guard/backend/internal/audit"
	"github.com/blackrose-blackhat/crisis-guard/backend/internal/cache"
	"github.com/blackrose-blackhat/crisis-guard/backend/internal/crisis"
	"github.com/blackrose-blackhat/crisis-guard/backend/internal/escalation"
	"github.com/blackrose-blackhat/crisis-guard/backend/internal/metrics"
	"github.com/blackrose-blackhat/crisis-guard/backend/internal/policy"
	"github.com/blackrose-blackhat/crisis-guard/backend/internal/routing"
	"github.com/google/uuid"
)

// ErrEmptyText is returned for requests without text to analyse
var ErrEmptyText = errors.New("text is required")

// ServiceConfig holds the collaborators of a Service. Only Engine is required.
type ServiceConfig struct {
	Engine           *crisis.Engine
	Router           *routing.Engine
	Cache            *cache.ResultCache
	Audit            *audit.Logger
	Escalations      *escalation.Manager
	Logger           *log.Logger
	BatchConcurrency int
}

// Service runs one assessment end to end: analysis, cache, routing decision,
// metrics and the crisis_intervention audit trail.
type Service struct {
	engine           *crisis.Engine
	router           *routing.Engine
	cache            *cache.ResultCache
	audit            *audit.Logger
	escalations      *escalation.Manager
	logger           *log.Logger
	batchConcurrency int
}

// AssessRequest is one text to assess
type AssessRequest struct {
	Text            string `json:"text"`
	UserID          string `json:"user_id,omitempty"`
	CulturalContext string `json:"cultural_context,omitempty"`
	LanguageCode    string `json:"language_code,omitempty"`
}

// Metadata returns the engine metadata carried by the request
func (r AssessRequest) Metadata() crisis.Metadata {
	return crisis.Metadata{
		UserID:          r.UserID,
		CulturalContext: r.CulturalContext,
		LanguageCode:    r.LanguageCode,
	}
}

// Assessment is an analysis result together with its routing decision
type Assessment struct {
	RequestID    string            `json:"request_id"`
	Cached       bool              `json:"cached"`
	Result       *crisis.Result    `json:"result"`
	Routing      *routing.Decision `json:"routing,omitempty"`
	EscalationID string            `json:"escalation_id,omitempty"`
}

// NewService creates a service from its collaborators
func NewService(sc ServiceConfig) *Service {
	concurrency := sc.BatchConcurrency
	if concurrency <= 0 {
		concurrency = crisis.DefaultBatchConcurrency
	}
	return &Service{
		engine:           sc.Engine,
		router:           sc.Router,
		cache:            sc.Cache,
		audit:            sc.Audit,
		escalations:      sc.Escalations,
		logger:           sc.Logger,
		batchConcurrency: concurrency,
	}
}

// Engine returns the analysis engine
func (s *Service) Engine() *crisis.Engine {
	return s.engine
}

// Router returns the routing engine, or nil when routing is disabled
func (s *Service) Router() *routing.Engine {
	return s.router
}

// Escalations returns the human review queue, or nil when it is disabled
func (s *Service) Escalations() *escalation.Manager {
	return s.escalations
}

// Validate rejects requests the service will not analyse
func (r AssessRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return ErrEmptyText
	}
	return nil
}

// Assess analyses one text. Analysis itself cannot fail; errors are
// ErrEmptyText or a cancelled context.
func (s *Service) Assess(ctx context.Context, req AssessRequest) (*Assessment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	meta := req.Metadata()

	result, cached := s.lookup(req.Text, meta)
	if !cached {
		result = s.engine.Analyze(req.Text, meta)
		if s.cache != nil {
			s.cache.Set(req.Text, meta, result)
		}
	}

	return s.finish(req, result, cached, time.Since(start)), nil
}

// AssessBatch analyses every request in order. Cached texts are answered
// without re-analysis; the rest run through the engine's bounded batch.
func (s *Service) AssessBatch(ctx context.Context, reqs []AssessRequest) ([]*Assessment, error) {
	for i, req := range reqs {
		if err := req.Validate(); err != nil {
			return nil, fmt.Errorf("request %d: %w", i, err)
		}
	}

	start := time.Now()

	results := make([]*crisis.Result, len(reqs))
	cached := make([]bool, len(reqs))

	var pending []crisis.Request
	var pendingIdx []int
	for i, req := range reqs {
		if r, ok := s.lookup(req.Text, req.Metadata()); ok {
			results[i] = r
			cached[i] = true
			continue
		}
		pending = append(pending, crisis.Request{Text: req.Text, Metadata: req.Metadata()})
		pendingIdx = append(pendingIdx, i)
	}

	if len(pending) > 0 {
		analysed, err := s.engine.AnalyzeBatch(ctx, pending, s.batchConcurrency)
		if err != nil {
			return nil, err
		}
		for j, r := range analysed {
			i := pendingIdx[j]
			results[i] = r
			if s.cache != nil {
				s.cache.Set(reqs[i].Text, reqs[i].Metadata(), r)
			}
		}
	}

	out := make([]*Assessment, len(reqs))
	for i, req := range reqs {
		out[i] = s.finish(req, results[i], cached[i], time.Since(start))
	}
	s.logInfo("Batch of %d assessed in %v (%d from cache)", len(reqs), time.Since(start), len(reqs)-len(pending))
	return out, nil
}

func (s *Service) lookup(text string, meta crisis.Metadata) (*crisis.Result, bool) {
	if s.cache == nil {
		return nil, false
	}
	r, ok := s.cache.Get(text, meta)
	metrics.RecordCacheLookup(ok)
	return r, ok
}

// finish routes the result, records metrics and writes the audit entry
func (s *Service) finish(req AssessRequest, result *crisis.Result, cached bool, latency time.Duration) *Assessment {
	a := &Assessment{
		RequestID: uuid.New().String(),
		Cached:    cached,
		Result:    result,
	}

	metrics.RecordAnalysis(result, result.AnalysisMetadata.ProcessingTime)

	var obligations []string
	if s.router != nil {
		d := s.router.Route(result, req.Metadata())
		a.Routing = &d
		for _, ob := range d.Obligations {
			obligations = append(obligations, ob.Type)
		}
		metrics.RecordDecision(string(d.Action), obligations)
	}

	if s.escalations != nil {
		if reasons := escalationReasons(result, a.Routing); len(reasons) > 0 {
			c := s.escalations.Open(a.RequestID, req.Metadata(), result, reasons)
			a.EscalationID = c.ID
			metrics.RecordEscalation(s.escalations.Pending())
		}
	}

	if s.audit != nil && audit.ShouldAudit(result) {
		entry := audit.NewEntry(a.RequestID, req.Text, req.Metadata(), result, latency)
		if a.Routing != nil {
			entry.Decision = string(a.Routing.Action)
			entry.PolicyVersion = a.Routing.PolicyVersion
			entry.Obligations = obligations
		}
		entry.EscalationID = a.EscalationID
		s.audit.Log(entry)
	}

	s.logInfo("Assessment %s: severity=%s risk=%.1f cached=%v text_len=%d",
		a.RequestID, result.OverallSeverity, result.RiskAssessment.ImmediateRisk, cached, len(req.Text))
	return a
}

// escalationReasons lists why a result needs a human responder. With a routing
// decision only its review obligations count; without one the engine's own
// escalation flag and the failsafe state do.
func escalationReasons(r *crisis.Result, d *routing.Decision) []string {
	var reasons []string
	if d != nil {
		for _, ob := range d.Obligations {
			if ob.Type == policy.ObligationEscalate || ob.Type == policy.ObligationFlagForReview {
				reasons = append(reasons, ob.Type)
			}
		}
		return reasons
	}
	if r.EscalationRequired {
		reasons = append(reasons, policy.ObligationEscalate)
	}
	if r.IsFailsafe() {
		reasons = append(reasons, policy.ObligationFlagForReview)
	}
	return reasons
}

// Logging helpers
func (s *Service) logInfo(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf("[INFO] "+format, args...)
	}
}

func (s *Service) logError(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf("[ERROR] "+format, args...)
	}
}
