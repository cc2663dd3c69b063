package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/blackrose-blackhat/crisis-guard/backend/internal/server"
)

const (
	protocolVersion = "2024-11-05"

	ToolAssessCrisisRisk = "assess_crisis_risk"

	ResourcePatterns      = "crisis://patterns"
	ResourceRoutingPolicy = "crisis://routing-policy"

	// maxMessageSize bounds one newline-delimited JSON-RPC message
	maxMessageSize = 4 << 20
)

// JSON-RPC error codes
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// Server implements the Model Context Protocol (MCP) over stdio
type Server struct {
	service *server.Service
	version string
	logger  *log.Logger
	mu      sync.Mutex
}

// NewServer creates a new MCP server backed by the assessment service
func NewServer(service *server.Service, version string, logger *log.Logger) *Server {
	return &Server{
		service: service,
		version: version,
		logger:  logger,
	}
}

// StartStdio serves MCP over standard input/output until stdin closes
func (s *Server) StartStdio(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads newline-delimited JSON-RPC requests from r and writes responses to w
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxMessageSize)
	encoder := json.NewEncoder(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var req Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			s.logError("Failed to decode MCP request: %v", err)
			s.write(encoder, Response{JSONRPC: "2.0", Error: &RPCError{Code: codeParseError, Message: "Parse error"}})
			continue
		}

		if resp, ok := s.handleRequest(ctx, req); ok {
			s.write(encoder, resp)
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading MCP input: %w", err)
	}
	return nil
}

func (s *Server) write(encoder *json.Encoder, resp Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := encoder.Encode(resp); err != nil {
		s.logError("Failed to write MCP response: %v", err)
	}
}

// Request represents a JSON-RPC request
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC response
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// handleRequest dispatches one request. Notifications (no ID) get no response.
func (s *Server) handleRequest(ctx context.Context, req Request) (Response, bool) {
	var result interface{}
	var rpcErr *RPCError

	switch req.Method {
	case "initialize":
		result = map[string]interface{}{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]interface{}{
				"tools":     map[string]interface{}{},
				"resources": map[string]interface{}{},
			},
			"serverInfo": map[string]string{
				"name":    "crisis-guard",
				"version": s.version,
			},
		}

	case "tools/list":
		result = map[string]interface{}{
			"tools": []interface{}{
				map[string]interface{}{
					"name":        ToolAssessCrisisRisk,
					"description": "Assesses a message for crisis risk (suicidal ideation, self-harm, abuse, medical emergencies) and returns severity, risk scores, intervention recommendations and routing obligations",
					"inputSchema": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"text": map[string]interface{}{
								"type":        "string",
								"description": "The message to assess",
							},
							"user_id": map[string]interface{}{
								"type": "string",
							},
							"cultural_context": map[string]interface{}{
								"type": "string",
							},
							"language_code": map[string]interface{}{
								"type":        "string",
								"description": "BCP 47 language code, defaults to en",
							},
						},
						"required": []string{"text"},
					},
				},
			},
		}

	case "tools/call":
		var params struct {
			Name      string              `json:"name"`
			Arguments server.AssessRequest `json:"arguments"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			rpcErr = &RPCError{Code: codeInvalidParams, Message: "Invalid params"}
		} else {
			result, rpcErr = s.handleToolCall(ctx, params.Name, params.Arguments)
		}

	case "resources/list":
		resources := []interface{}{
			map[string]interface{}{
				"uri":         ResourcePatterns,
				"name":        "Crisis Pattern Library",
				"description": "The crisis patterns the engine matches, with category, severity and risk weight",
				"mimeType":    "application/json",
			},
		}
		if s.service.Router() != nil {
			resources = append(resources, map[string]interface{}{
				"uri":         ResourceRoutingPolicy,
				"name":        "Active Routing Policy",
				"description": "The Cedar policy deciding intervention obligations",
				"mimeType":    "text/x-cedar",
			})
		}
		result = map[string]interface{}{"resources": resources}

	case "resources/read":
		var params struct {
			URI string `json:"uri"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			rpcErr = &RPCError{Code: codeInvalidParams, Message: "Invalid params"}
		} else {
			result, rpcErr = s.readResource(params.URI)
		}

	case "notifications/initialized":
		return Response{}, false

	default:
		rpcErr = &RPCError{Code: codeMethodNotFound, Message: fmt.Sprintf("Method %s not found", req.Method)}
	}

	if req.ID == nil {
		return Response{}, false
	}
	return Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
		Error:   rpcErr,
	}, true
}

func (s *Server) handleToolCall(ctx context.Context, name string, args server.AssessRequest) (interface{}, *RPCError) {
	if name != ToolAssessCrisisRisk {
		return nil, &RPCError{Code: codeMethodNotFound, Message: "Tool not found"}
	}

	a, err := s.service.Assess(ctx, args)
	if errors.Is(err, server.ErrEmptyText) {
		return nil, &RPCError{Code: codeInvalidParams, Message: "Text missing"}
	}
	if err != nil {
		return nil, &RPCError{Code: -32000, Message: err.Error()}
	}

	raw, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, &RPCError{Code: -32000, Message: err.Error()}
	}

	return map[string]interface{}{
		"content": []interface{}{
			map[string]interface{}{
				"type": "text",
				"text": summarize(a),
			},
			map[string]interface{}{
				"type": "text",
				"text": string(raw),
			},
		},
		"isError": false,
	}, nil
}

// summarize renders the headline of an assessment for humans
func summarize(a *server.Assessment) string {
	r := a.Result
	var b strings.Builder
	fmt.Fprintf(&b, "Crisis Assessment: %s\n\n", strings.ToUpper(string(r.OverallSeverity)))
	fmt.Fprintf(&b, "Immediate risk: %.1f/100 (urgency: %s)\n", r.RiskAssessment.ImmediateRisk, r.RiskAssessment.InterventionUrgency)
	fmt.Fprintf(&b, "Escalation required: %v\nEmergency services required: %v\n", r.EscalationRequired, r.EmergencyServicesRequired)
	if cats := r.Categories(); len(cats) > 0 {
		fmt.Fprintf(&b, "Categories: %s\n", strings.Join(cats, ", "))
	}
	for _, rec := range r.InterventionRecommendations {
		fmt.Fprintf(&b, "- [P%d] %s (%s)\n", rec.Priority, rec.Description, rec.Timeframe)
	}
	if a.Routing != nil {
		fmt.Fprintf(&b, "Routing: %s\n", a.Routing.Action)
		for _, ob := range a.Routing.Obligations {
			fmt.Fprintf(&b, "- %s\n", ob.Type)
		}
	}
	for _, c := range r.AnalysisMetadata.FlaggedConcerns {
		fmt.Fprintf(&b, "Note: %s\n", c)
	}
	return b.String()
}

func (s *Server) readResource(uri string) (interface{}, *RPCError) {
	var mimeType, text string

	switch uri {
	case ResourcePatterns:
		lib := s.service.Engine().Library()
		if lib == nil {
			return nil, &RPCError{Code: codeInvalidParams, Message: "Pattern library not loaded"}
		}
		raw, err := json.MarshalIndent(server.PatternsResponse{Version: lib.Version(), Patterns: lib.Summary()}, "", "  ")
		if err != nil {
			return nil, &RPCError{Code: -32000, Message: err.Error()}
		}
		mimeType, text = "application/json", string(raw)

	case ResourceRoutingPolicy:
		router := s.service.Router()
		if router == nil {
			return nil, &RPCError{Code: codeInvalidParams, Message: "Routing disabled"}
		}
		mimeType, text = "text/x-cedar", router.Source()

	default:
		return nil, &RPCError{Code: codeInvalidParams, Message: "Unknown resource"}
	}

	return map[string]interface{}{
		"contents": []interface{}{
			map[string]interface{}{
				"uri":      uri,
				"mimeType": mimeType,
				"text":     text,
			},
		},
	}, nil
}

func (s *Server) logError(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf("[MCP ERROR] "+format, args...)
	}
}
