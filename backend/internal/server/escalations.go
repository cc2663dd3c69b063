package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/blackrose-blackhat/crisis-guard/backend/internal/escalation"
	"github.com/google/uuid"
)

// EscalationAction is the body of acknowledge and resolve requests
type EscalationAction struct {
	By   string `json:"by"`
	Note string `json:"note,omitempty"`
}

// EscalationList is the body of GET /v1/crisis/escalations
type EscalationList struct {
	Cases []escalation.Case `json:"cases"`
}

func (hc *HandlerConfig) registerEscalations(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/crisis/escalations", hc.listEscalations)
	mux.HandleFunc("GET /v1/crisis/escalations/{id}", hc.getEscalation)
	mux.HandleFunc("POST /v1/crisis/escalations/{id}/acknowledge", hc.acknowledgeEscalation)
	mux.HandleFunc("POST /v1/crisis/escalations/{id}/resolve", hc.resolveEscalation)
}

func (hc *HandlerConfig) listEscalations(w http.ResponseWriter, r *http.Request) {
	m := hc.escalations(w)
	if m == nil {
		return
	}
	status := escalation.Status(r.URL.Query().Get("status"))
	switch status {
	case "", escalation.StatusPending, escalation.StatusAcknowledged, escalation.StatusResolved, escalation.StatusExpired:
	default:
		sendErrorResponse(w, http.StatusBadRequest, "invalid_request", "unknown status "+string(status), uuid.New().String())
		return
	}
	sendJSON(w, http.StatusOK, EscalationList{Cases: m.List(status)})
}

func (hc *HandlerConfig) getEscalation(w http.ResponseWriter, r *http.Request) {
	m := hc.escalations(w)
	if m == nil {
		return
	}
	c, err := m.Get(r.PathValue("id"))
	if err != nil {
		sendEscalationError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, c)
}

func (hc *HandlerConfig) acknowledgeEscalation(w http.ResponseWriter, r *http.Request) {
	m := hc.escalations(w)
	if m == nil {
		return
	}
	action, ok := hc.decodeAction(w, r)
	if !ok {
		return
	}
	c, err := m.Acknowledge(r.PathValue("id"), action.By)
	if err != nil {
		sendEscalationError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, c)
}

func (hc *HandlerConfig) resolveEscalation(w http.ResponseWriter, r *http.Request) {
	m := hc.escalations(w)
	if m == nil {
		return
	}
	action, ok := hc.decodeAction(w, r)
	if !ok {
		return
	}
	c, err := m.Resolve(r.PathValue("id"), action.By, action.Note)
	if err != nil {
		sendEscalationError(w, err)
		return
	}
	hc.Service.logInfo("Escalation %s resolved by %s", c.ID, c.HandledBy)
	sendJSON(w, http.StatusOK, c)
}

// escalations returns the review queue or answers 404 when it is disabled
func (hc *HandlerConfig) escalations(w http.ResponseWriter) *escalation.Manager {
	m := hc.Service.Escalations()
	if m == nil {
		sendErrorResponse(w, http.StatusNotFound, "escalations_disabled", "escalation queue is not enabled", uuid.New().String())
	}
	return m
}

func (hc *HandlerConfig) decodeAction(w http.ResponseWriter, r *http.Request) (EscalationAction, bool) {
	var action EscalationAction
	r.Body = http.MaxBytesReader(w, r.Body, hc.MaxRequestSize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(&action); err != nil && !errors.Is(err, io.EOF) {
		sendErrorResponse(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body", uuid.New().String())
		return action, false
	}
	if action.By == "" {
		sendErrorResponse(w, http.StatusBadRequest, "invalid_request", "by is required", uuid.New().String())
		return action, false
	}
	return action, true
}

func sendEscalationError(w http.ResponseWriter, err error) {
	requestID := uuid.New().String()
	switch {
	case errors.Is(err, escalation.ErrNotFound):
		sendErrorResponse(w, http.StatusNotFound, "not_found", err.Error(), requestID)
	case errors.Is(err, escalation.ErrExpired):
		sendErrorResponse(w, http.StatusGone, "expired", err.Error(), requestID)
	default:
		sendErrorResponse(w, http.StatusConflict, "invalid_status", err.Error(), requestID)
	}
}
