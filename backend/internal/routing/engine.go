package routing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blackrose-blackhat/crisis-guard/backend/internal/crisis"
	"github.com/blackrose-blackhat/crisis-guard/backend/internal/policy"
	"github.com/cedar-policy/cedar-go"
	"github.com/fsnotify/fsnotify"
)

// Action is the routing outcome for one analysis result
type Action string

const (
	INTERVENE Action = "INTERVENE"
	SUPPRESS  Action = "SUPPRESS"
	NO_ACTION Action = "NO_ACTION"
)

// Obligation is something the caller must do for this result
type Obligation struct {
	Type     string   `json:"type"`
	Fields   []string `json:"fields,omitempty"`
	Rule     string   `json:"rule,omitempty"`
	PolicyID string   `json:"policy_id"`
}

// Decision is the outcome of evaluating a result against the routing policy
type Decision struct {
	Action        Action       `json:"decision"`
	Reason        string       `json:"reason"`
	PolicyIDs     []string     `json:"policy_ids"`
	Obligations   []Obligation `json:"obligations"`
	PolicyVersion string       `json:"policy_version"`
}

// Engine wraps the Cedar policy engine with hot-reloading support
type Engine struct {
	policySet     atomic.Pointer[cedar.PolicySet]
	policyVersion atomic.Pointer[string]
	source        atomic.Pointer[string]
	PolicyPath    string

	watcher    *fsnotify.Watcher
	stopWatch  chan struct{}
	stopOnce   sync.Once
	logger     *log.Logger
	reloadLock sync.Mutex
}

// NewEngine loads the routing policy at policyPath. An empty path uses the
// compiled default policy; .yaml and .yml files are compiled from routing
// YAML; anything else is read as Cedar text.
func NewEngine(policyPath string, logger *log.Logger) (*Engine, error) {
	e := &Engine{
		PolicyPath: policyPath,
		stopWatch:  make(chan struct{}),
		logger:     logger,
	}

	if err := e.reload(); err != nil {
		return nil, err
	}

	return e, nil
}

// PolicyVersion returns the current policy version (thread-safe)
func (e *Engine) PolicyVersion() string {
	v := e.policyVersion.Load()
	if v == nil {
		return ""
	}
	return *v
}

// Source returns the Cedar text currently in force
func (e *Engine) Source() string {
	s := e.source.Load()
	if s == nil {
		return ""
	}
	return *s
}

// StartHotReload enables fsnotify file watching for policy hot-reloading
func (e *Engine) StartHotReload() error {
	if e.PolicyPath == "" {
		return fmt.Errorf("hot reload needs a policy file, engine uses the built-in policy")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	e.watcher = watcher

	if err := watcher.Add(e.PolicyPath); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch policy file: %w", err)
	}

	go e.watchLoop()

	e.logInfo("Routing policy hot-reload enabled for: %s", e.PolicyPath)
	return nil
}

// StopHotReload stops the file watcher
func (e *Engine) StopHotReload() {
	if e.watcher == nil {
		return
	}
	e.stopOnce.Do(func() {
		close(e.stopWatch)
		e.watcher.Close()
	})
}

func (e *Engine) watchLoop() {
	// Debounce timer to handle rapid file saves
	var debounceTimer *time.Timer
	debounce := 500 * time.Millisecond

	for {
		select {
		case event, ok := <-e.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounce, func() {
					e.reloadLock.Lock()
					defer e.reloadLock.Unlock()

					oldVersion := e.PolicyVersion()
					if err := e.reload(); err != nil {
						e.logError("Routing policy hot-reload failed, keeping %s: %v", oldVersion, err)
					} else {
						e.logInfo("Routing policy hot-reload: %s -> %s", oldVersion, e.PolicyVersion())
					}
				})
			}
		case err, ok := <-e.watcher.Errors:
			if !ok {
				return
			}
			e.logError("Routing policy watcher error: %v", err)
		case <-e.stopWatch:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return
		}
	}
}

// reload loads the policy source, parses it and swaps it in atomically.
// On any error the previous policy set stays in force.
func (e *Engine) reload() error {
	src, err := loadSource(e.PolicyPath)
	if err != nil {
		return err
	}

	ps, err := parsePolicySet(src)
	if err != nil {
		return err
	}

	hash := sha256.Sum256([]byte(src))
	version := hex.EncodeToString(hash[:])[:12]

	e.policySet.Store(ps)
	e.source.Store(&src)
	e.policyVersion.Store(&version)

	return nil
}

func loadSource(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case "":
		if path == "" {
			return policy.Compile(policy.DefaultRoutingPolicy())
		}
	case ".yaml", ".yml":
		p, err := policy.LoadRoutingPolicy(path)
		if err != nil {
			return "", err
		}
		return policy.Compile(p)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read policy file: %w", err)
	}
	return string(data), nil
}

// parsePolicySet splits Cedar text on ';' and parses each policy.
// Policy IDs are zero-padded so that they sort in source order.
func parsePolicySet(src string) (*cedar.PolicySet, error) {
	ps := cedar.NewPolicySet()

	n := 0
	for i, chunk := range strings.Split(src, ";") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" || isCommentOnly(chunk) {
			continue
		}

		var p cedar.Policy
		if err := p.UnmarshalCedar([]byte(chunk + ";")); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cedar policy part %d: %w", i, err)
		}

		ps.Add(cedar.PolicyID(fmt.Sprintf("policy%03d", n)), &p)
		n++
	}

	if n == 0 {
		return nil, fmt.Errorf("routing policy contains no policies")
	}
	return ps, nil
}

func isCommentOnly(chunk string) bool {
	for _, line := range strings.Split(chunk, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "//") {
			return false
		}
	}
	return true
}

// Route evaluates an analysis result against the routing policy.
// INTERVENE when at least one permit matched and no forbid did, SUPPRESS when
// a forbid matched, NO_ACTION otherwise. Obligations are ordered by policy ID.
func (e *Engine) Route(r *crisis.Result, meta crisis.Metadata) Decision {
	version := e.PolicyVersion()

	ps := e.policySet.Load()
	if ps == nil {
		return Decision{Action: NO_ACTION, Reason: "Routing engine not initialized", PolicyVersion: version}
	}
	if r == nil {
		return Decision{Action: NO_ACTION, Reason: "No analysis result", PolicyVersion: version}
	}

	entities, req := buildRequest(r, meta)

	decision, diagnostics := cedar.Authorize(ps, entities, req)

	for _, de := range diagnostics.Errors {
		e.logError("Routing policy %s evaluation error: %s", de.PolicyID, de.Message)
	}

	ids := make([]string, 0, len(diagnostics.Reasons))
	for _, reason := range diagnostics.Reasons {
		ids = append(ids, string(reason.PolicyID))
	}
	sort.Strings(ids)

	obligations := make([]Obligation, 0, len(ids))
	for _, id := range ids {
		p := ps.Get(cedar.PolicyID(id))
		if p == nil {
			continue
		}
		annotations := p.Annotations()
		typeVal, ok := annotations[policy.AnnotationObligation]
		if !ok {
			continue
		}
		ob := Obligation{
			Type:     string(typeVal),
			Rule:     string(annotations[policy.AnnotationRule]),
			PolicyID: id,
		}
		if fieldsVal, ok := annotations[policy.AnnotationFields]; ok {
			ob.Fields = strings.Split(string(fieldsVal), ",")
			for i := range ob.Fields {
				ob.Fields[i] = strings.TrimSpace(ob.Fields[i])
			}
		}
		obligations = append(obligations, ob)
	}

	d := Decision{
		PolicyIDs:     ids,
		Obligations:   obligations,
		PolicyVersion: version,
	}

	switch {
	case decision == cedar.Allow:
		d.Action = INTERVENE
		d.Reason = "Routing policy requires intervention"
	case len(ids) > 0:
		d.Action = SUPPRESS
		d.Reason = "Routing policy suppressed intervention"
		// forbid policies carry no obligations for the caller
		d.Obligations = []Obligation{}
	default:
		d.Action = NO_ACTION
		d.Reason = "No routing policy matched"
	}
	return d
}

func buildRequest(r *crisis.Result, meta crisis.Metadata) (cedar.EntityMap, cedar.Request) {
	principalID := meta.UserID
	if principalID == "" {
		principalID = "anonymous"
	}
	principal := cedar.NewEntityUID("User", cedar.String(principalID))
	resource := cedar.NewEntityUID("Conversation", "default")
	language := meta.Language()

	entities := cedar.EntityMap{
		resource: cedar.Entity{
			UID: resource,
			Attributes: cedar.NewRecord(cedar.RecordMap{
				"language": cedar.String(language),
			}),
		},
	}

	cats := r.Categories()
	catValues := make([]cedar.Value, len(cats))
	for i, c := range cats {
		catValues[i] = cedar.String(c)
	}

	ra := r.RiskAssessment
	req := cedar.Request{
		Principal: principal,
		Action:    cedar.NewEntityUID("Action", policy.RouteAction),
		Resource:  resource,
		Context: cedar.NewRecord(cedar.RecordMap{
			policy.AttrImmediateRisk: cedar.Long(int64(ra.ImmediateRisk)),
			policy.AttrConfidence:    cedar.Long(int64(r.AnalysisMetadata.Confidence * 100)),
			policy.AttrSeverity:      cedar.String(string(r.OverallSeverity)),
			policy.AttrSeverityRank:  cedar.Long(int64(r.OverallSeverity.Rank())),
			policy.AttrCategories:    cedar.NewSet(catValues...),
			policy.AttrLanguage:      cedar.String(language),
			policy.AttrHasCrisis:     cedar.Boolean(r.HasCrisisIndicators),
			policy.AttrEscalation:    cedar.Boolean(r.EscalationRequired),
			policy.AttrEmergency:     cedar.Boolean(r.EmergencyServicesRequired),
			policy.AttrFailsafe:      cedar.Boolean(r.IsFailsafe()),
		}),
	}
	return entities, req
}

// HasObligation reports whether d carries an obligation of the given type
func (d Decision) HasObligation(obligationType string) bool {
	for _, ob := range d.Obligations {
		if ob.Type == obligationType {
			return true
		}
	}
	return false
}

func (e *Engine) logInfo(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Printf("[INFO] "+format, args...)
	}
}

func (e *Engine) logError(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Printf("[ERROR] "+format, args...)
	}
}
