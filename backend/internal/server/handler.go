package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/blackrose-blackhat/crisis-guard/backend/internal/crisis"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultMaxRequestSize caps request bodies when HandlerConfig leaves it unset
const DefaultMaxRequestSize = 1 << 20

// HandlerConfig holds configuration for the HTTP surface
type HandlerConfig struct {
	Service         *Service
	MaxRequestSize  int64
	MaxBatchSize    int
	MetricsEndpoint string // empty disables /metrics
}

// ErrorResponse is returned for rejected requests
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// BatchRequest is the body of POST /v1/crisis/analyze/batch
type BatchRequest struct {
	Requests []AssessRequest `json:"requests"`
}

// BatchResponse carries one assessment per request, in request order
type BatchResponse struct {
	Assessments []*Assessment `json:"assessments"`
}

// PatternsResponse describes the loaded pattern library
type PatternsResponse struct {
	Version  string                  `json:"version"`
	Patterns []crisis.PatternSummary `json:"patterns"`
}

// NewHandler builds the HTTP routes of the crisis service
func NewHandler(hc *HandlerConfig) http.Handler {
	if hc.MaxRequestSize <= 0 {
		hc.MaxRequestSize = DefaultMaxRequestSize
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/crisis/analyze", hc.analyze)
	mux.HandleFunc("POST /v1/crisis/analyze/batch", hc.analyzeBatch)
	mux.HandleFunc("GET /v1/crisis/patterns", hc.patterns)
	mux.HandleFunc("GET /health", hc.health)
	hc.registerEscalations(mux)
	if hc.MetricsEndpoint != "" {
		mux.Handle("GET "+hc.MetricsEndpoint, promhttp.Handler())
	}
	return mux
}

func (hc *HandlerConfig) analyze(w http.ResponseWriter, r *http.Request) {
	var req AssessRequest
	if !hc.decode(w, r, &req) {
		return
	}

	a, err := hc.Service.Assess(r.Context(), req)
	if err != nil {
		hc.sendAssessError(w, err)
		return
	}

	w.Header().Set("X-Crisis-Request-ID", a.RequestID)
	if a.Routing != nil {
		w.Header().Set("X-Crisis-Policy-Version", a.Routing.PolicyVersion)
	}
	sendJSON(w, http.StatusOK, a)
}

func (hc *HandlerConfig) analyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !hc.decode(w, r, &req) {
		return
	}
	if len(req.Requests) == 0 {
		sendErrorResponse(w, http.StatusBadRequest, "invalid_request", "requests must not be empty", uuid.New().String())
		return
	}
	if hc.MaxBatchSize > 0 && len(req.Requests) > hc.MaxBatchSize {
		sendErrorResponse(w, http.StatusRequestEntityTooLarge, "batch_too_large",
			fmt.Sprintf("batch of %d exceeds limit of %d", len(req.Requests), hc.MaxBatchSize), uuid.New().String())
		return
	}

	out, err := hc.Service.AssessBatch(r.Context(), req.Requests)
	if err != nil {
		hc.sendAssessError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, BatchResponse{Assessments: out})
}

func (hc *HandlerConfig) patterns(w http.ResponseWriter, r *http.Request) {
	lib := hc.Service.Engine().Library()
	if lib == nil {
		sendErrorResponse(w, http.StatusServiceUnavailable, "no_library", "pattern library not loaded", uuid.New().String())
		return
	}
	sendJSON(w, http.StatusOK, PatternsResponse{Version: lib.Version(), Patterns: lib.Summary()})
}

func (hc *HandlerConfig) health(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"status":  "ok",
		"service": "crisis-guard",
	}
	if lib := hc.Service.Engine().Library(); lib != nil {
		status["library_version"] = lib.Version()
	}
	if router := hc.Service.Router(); router != nil {
		status["policy_version"] = router.PolicyVersion()
	}
	if m := hc.Service.Escalations(); m != nil {
		status["pending_escalations"] = strconv.Itoa(m.Pending())
	}
	sendJSON(w, http.StatusOK, status)
}

// decode reads a size-capped JSON body into v, answering 400/413 itself on failure
func (hc *HandlerConfig) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, hc.MaxRequestSize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		requestID := uuid.New().String()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendErrorResponse(w, http.StatusRequestEntityTooLarge, "request_too_large", "Request body too large", requestID)
			return false
		}
		hc.Service.logError("Failed to decode request %s: %v", requestID, err)
		sendErrorResponse(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body", requestID)
		return false
	}
	return true
}

func (hc *HandlerConfig) sendAssessError(w http.ResponseWriter, err error) {
	requestID := uuid.New().String()
	if errors.Is(err, ErrEmptyText) {
		sendErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error(), requestID)
		return
	}
	// only a cancelled or timed out request context reaches here
	hc.Service.logError("Request %s aborted: %v", requestID, err)
	sendErrorResponse(w, http.StatusServiceUnavailable, "request_cancelled", err.Error(), requestID)
}

func sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sendErrorResponse sends a JSON error response
func sendErrorResponse(w http.ResponseWriter, status int, code, message, requestID string) {
	w.Header().Set("X-Crisis-Request-ID", requestID)
	sendJSON(w, status, ErrorResponse{
		Error:     code,
		Code:      code,
		Message:   message,
		RequestID: requestID,
	})
}
