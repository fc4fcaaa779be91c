// Package mcpserver exposes the compliance analyzer over the Model
// Context Protocol, so AI assistants can analyze legal documents, pull
// framework knowledge, and query the team's compliance history through
// a standard tool surface.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	ouicomply "github.com/KJFromMicromonic/OuiComply"
)

// Config holds MCP server identity and limits.
type Config struct {
	// Name is the server name reported during the MCP handshake.
	Name string

	// Version is the reported server version.
	Version string

	// MaxReports bounds the in-memory report store. Oldest reports are
	// dropped once the bound is reached. Zero means the default (128).
	MaxReports int
}

// Server wraps the MCP server with compliance analysis tools, resources
// and an in-memory report store for the generate_compliance_report flow.
type Server struct {
	mcp      *mcp.Server
	config   *Config
	analyzer *ouicomply.Analyzer
	memory   *ouicomply.TeamMemory
	log      *slog.Logger
	ready    atomic.Bool

	mu      sync.Mutex
	reports map[string]*ouicomply.AnalysisResult
	order   []string // report ids, oldest first
}

// New creates an MCP server with all tools and resources registered.
// memory may be nil; the history and trends tools then report that
// persistence is disabled instead of failing.
func New(cfg *Config, analyzer *ouicomply.Analyzer, memory *ouicomply.TeamMemory, log *slog.Logger) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Name == "" {
		cfg.Name = "ouicomply-mcp"
	}
	if cfg.Version == "" {
		cfg.Version = "0.1.0"
	}
	if cfg.MaxReports <= 0 {
		cfg.MaxReports = 128
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		config:   cfg,
		analyzer: analyzer,
		memory:   memory,
		log:      log,
		reports:  make(map[string]*ouicomply.AnalysisResult),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.Name,
			Title:   "OuiComply Compliance MCP Server",
			Version: cfg.Version,
		},
		&mcp.ServerOptions{
			Instructions: serverInstructions,
		},
	)

	s.registerTools()
	s.registerResources()

	return s
}

// MCPServer returns the underlying MCP server for direct access (e.g., testing).
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

// MarkReady signals that startup validation passed. Until then the
// /health endpoint returns 503.
func (s *Server) MarkReady() { s.ready.Store(true) }

// IsReady reports whether startup validation has completed.
func (s *Server) IsReady() bool { return s.ready.Load() }

// RunStdio runs the MCP server over stdio transport. This is the primary
// mode for IDE and assistant integrations; all logging must go to stderr
// because stdout carries the protocol stream.
func (s *Server) RunStdio(ctx context.Context) error {
	s.log.Info("mcp server starting", "transport", "stdio", "name", s.config.Name)
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler returns an http.Handler for the streamable HTTP transport
// with a /health probe. Used for remote and container deployments.
func (s *Server) HTTPHandler() http.Handler {
	streamable := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return s.mcp },
		&mcp.StreamableHTTPOptions{Stateless: false},
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/mcp", streamable)
	mux.Handle("/", streamable)

	return s.recoveryMiddleware(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if !s.IsReady() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"starting","service":"` + s.config.Name + `"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","service":"` + s.config.Name + `"}`))
}

// recoveryMiddleware catches panics in HTTP handlers and returns a 500
// instead of killing the connection.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.log.Error("panic in http handler", "err", err, "stack", string(debug.Stack()))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"internal server error"}`))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// storeReport keeps the result for later report generation, evicting the
// oldest entry when the bound is hit.
func (s *Server) storeReport(id string, result *ouicomply.AnalysisResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.reports[id]; !exists {
		s.order = append(s.order, id)
	}
	s.reports[id] = result
	for len(s.order) > s.config.MaxReports {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.reports, oldest)
	}
}

func (s *Server) lookupReport(id string) (*ouicomply.AnalysisResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	return r, ok
}

// ---------------------------------------------------------------------------
// Helpers — result builders
// ---------------------------------------------------------------------------

// textResult creates a CallToolResult with a single text content block.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// jsonResult marshals v to indented JSON and wraps it in a CallToolResult.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return textResult(string(data)), nil
}

// errorResult creates an IsError CallToolResult so the LLM can see the
// error and self-correct rather than raising a protocol-level exception.
func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// parseArgs unmarshals the raw JSON arguments from a tool call into dst.
func parseArgs(req *mcp.CallToolRequest, dst any) error {
	if len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params.Arguments, dst); err != nil {
		return fmt.Errorf("parsing tool arguments: %w", err)
	}
	return nil
}

const serverInstructions = `You are operating OuiComply — a legal document compliance analysis server backed by Mistral AI.

## TOOL SELECTION GUIDE

| User Intent | Tool |
|---|---|
| "Is this contract GDPR compliant?" | analyze_document_compliance |
| "Check these 5 documents" | analyze_batch |
| "Give me a report for that analysis" | generate_compliance_report |
| "What have we analyzed before?" | get_compliance_history |
| "Is our risk improving?" | analyze_risk_trends |
| "What would this analysis cost?" | dry_run_analysis |
| "Search past findings" | search_team_memory |
| "Cache status / reset" | cache_stats, clear_cache |

## WORKFLOW

1. analyze_document_compliance with the document text (or base64 bytes for PDFs) and the frameworks to check (gdpr, sox, ccpa, hipaa).
2. The response includes a report_id. Pass it to generate_compliance_report for a formatted markdown or JSON report.
3. Results are stored in team memory automatically; use get_compliance_history and analyze_risk_trends for longitudinal questions.

## INTERPRETING RESULTS

- compliance_status: compliant | partially_compliant | non_compliant | requires_review
- requires_review means the automated analysis could not complete; the "error" field explains why. The document still needs human review — never report it as compliant.
- risk_score is 0.0 (no risk) to 1.0 (critical). Severity-weighted across all issues.

## RESOURCES

- compliance://frameworks — supported framework catalog with required clauses
- compliance://templates/checklist — review checklist template`
