package mcpserver

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	ouicomply "github.com/KJFromMicromonic/OuiComply"
)

// registerTools adds all compliance tools to the MCP server.
func (s *Server) registerTools() {
	s.addAnalyzeTool()
	s.addAnalyzeBatchTool()
	s.addReportTool()
	s.addHistoryTool()
	s.addTrendsTool()
	s.addSearchMemoryTool()
	s.addDryRunTool()
	s.addCacheStatsTool()
	s.addClearCacheTool()
}

func boolPtr(b bool) *bool { return &b }

var frameworkEnum = []string{"gdpr", "sox", "ccpa", "hipaa"}

// ═══════════════════════════════════════════════════════════════════════════
// analyze_document_compliance — Single document analysis
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addAnalyzeTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "analyze_document_compliance",
			Title: "Analyze Document Compliance",
			Description: `Analyze a legal document against compliance frameworks (GDPR, SOX, CCPA, HIPAA) using Mistral AI.

USE THIS TOOL WHEN:
• The user wants to check a contract, policy, or agreement for compliance gaps
• You need structured issues with severity, location, and recommendations
• You need a risk score and compliance status for a document

Pass plain text in 'document_text', or base64-encoded bytes in 'document_base64' for PDFs and other binary formats. Byte uploads are content-addressed: resubmitting identical bytes reuses the previous upload.

The analysis NEVER fails with an exception. If the AI service is unavailable after retries, the result has compliance_status "requires_review" and an "error" field — the document still needs human review.

EXAMPLE INPUTS:
• Text: {"document_text": "This agreement...", "frameworks": ["gdpr"]}
• PDF: {"document_base64": "<base64>", "media_type": "application/pdf", "frameworks": ["gdpr", "sox"]}
• Quick pass: {"document_text": "...", "analysis_depth": "basic"}

Returns: report_id (for generate_compliance_report), issues, missing clauses, recommendations, risk score, status.`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"document_text": map[string]any{
						"type":        "string",
						"description": "Document content as plain text. Use this OR document_base64.",
					},
					"document_base64": map[string]any{
						"type":        "string",
						"description": "Document bytes, base64-encoded. Use for PDFs and binary formats.",
					},
					"media_type": map[string]any{
						"type":        "string",
						"description": "MIME type for document_base64 (e.g. application/pdf). Auto-detected when omitted.",
					},
					"frameworks": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string", "enum": frameworkEnum},
						"description": "Frameworks to check against. Default: gdpr, sox, ccpa.",
					},
					"analysis_depth": map[string]any{
						"type":        "string",
						"description": "Analysis thoroughness.",
						"enum":        []string{"basic", "standard", "comprehensive"},
						"default":     "comprehensive",
					},
				},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
				OpenWorldHint:  boolPtr(true),
				Title:          "Analyze Document Compliance",
			},
		},
		s.handleAnalyze,
	)
}

type analyzeArgs struct {
	DocumentText   string   `json:"document_text"`
	DocumentBase64 string   `json:"document_base64"`
	MediaType      string   `json:"media_type"`
	Frameworks     []string `json:"frameworks"`
	AnalysisDepth  string   `json:"analysis_depth"`
}

func (a analyzeArgs) toRequest() (ouicomply.AnalysisRequest, error) {
	req := ouicomply.AnalysisRequest{
		DocumentText: a.DocumentText,
		MediaType:    a.MediaType,
		Frameworks:   a.Frameworks,
		Depth:        a.AnalysisDepth,
	}
	if a.DocumentBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(a.DocumentBase64)
		if err != nil {
			return req, fmt.Errorf("document_base64 is not valid base64: %w", err)
		}
		req.DocumentBytes = data
	}
	return req, nil
}

type analyzeResponse struct {
	ReportID string                    `json:"report_id"`
	Result   *ouicomply.AnalysisResult `json:"result"`
	Memory   *ouicomply.MemoryEntry    `json:"memory_entry,omitempty"`
}

func (s *Server) handleAnalyze(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args analyzeArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.DocumentText == "" && args.DocumentBase64 == "" {
		return errorResult("either document_text or document_base64 is required."), nil
	}

	areq, err := args.toRequest()
	if err != nil {
		return errorResult(err.Error()), nil
	}

	result := s.analyzer.Analyze(ctx, areq)

	reportID := uuid.NewString()
	s.storeReport(reportID, result)

	resp := analyzeResponse{ReportID: reportID, Result: result}
	if s.memory != nil {
		entry, err := s.memory.Store(result)
		if err != nil {
			s.log.Warn("storing analysis in team memory failed", "err", err)
		} else {
			resp.Memory = &entry
		}
	}

	return jsonResult(resp)
}

// ═══════════════════════════════════════════════════════════════════════════
// analyze_batch — Parallel multi-document analysis
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addAnalyzeBatchTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "analyze_batch",
			Title: "Analyze Document Batch",
			Description: `Analyze multiple documents in parallel against the same frameworks.

USE THIS TOOL WHEN:
• The user has several contracts or policies to check at once
• You want per-document isolation: one failing document never affects the others

Each document gets its own result at the matching index. A document whose analysis failed has compliance_status "requires_review" with an "error" field.

EXAMPLE INPUT:
{"documents": [{"document_text": "..."}, {"document_base64": "...", "media_type": "application/pdf"}], "frameworks": ["gdpr"]}

Returns: per-document results with report ids, index-aligned with the input.`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"documents": map[string]any{
						"type":        "array",
						"description": "Documents to analyze. Each needs document_text or document_base64.",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"document_text":   map[string]any{"type": "string"},
								"document_base64": map[string]any{"type": "string"},
								"media_type":      map[string]any{"type": "string"},
							},
						},
					},
					"frameworks": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string", "enum": frameworkEnum},
						"description": "Frameworks to check all documents against. Default: gdpr, sox, ccpa.",
					},
					"analysis_depth": map[string]any{
						"type": "string",
						"enum": []string{"basic", "standard", "comprehensive"},
					},
				},
				"required": []string{"documents"},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
				OpenWorldHint:  boolPtr(true),
				Title:          "Analyze Document Batch",
			},
		},
		s.handleAnalyzeBatch,
	)
}

type batchArgs struct {
	Documents []struct {
		DocumentText   string `json:"document_text"`
		DocumentBase64 string `json:"document_base64"`
		MediaType      string `json:"media_type"`
	} `json:"documents"`
	Frameworks    []string `json:"frameworks"`
	AnalysisDepth string   `json:"analysis_depth"`
}

type batchItemResponse struct {
	Index    int                       `json:"index"`
	ReportID string                    `json:"report_id,omitempty"`
	Result   *ouicomply.AnalysisResult `json:"result,omitempty"`
	Error    string                    `json:"error,omitempty"`
}

func (s *Server) handleAnalyzeBatch(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args batchArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if len(args.Documents) == 0 {
		return errorResult("at least one document is required."), nil
	}

	reqs := make([]ouicomply.AnalysisRequest, 0, len(args.Documents))
	for i, d := range args.Documents {
		item := analyzeArgs{
			DocumentText:   d.DocumentText,
			DocumentBase64: d.DocumentBase64,
			MediaType:      d.MediaType,
			Frameworks:     args.Frameworks,
			AnalysisDepth:  args.AnalysisDepth,
		}
		areq, err := item.toRequest()
		if err != nil {
			return errorResult(fmt.Sprintf("document %d: %v", i, err)), nil
		}
		reqs = append(reqs, areq)
	}

	results := s.analyzer.AnalyzeAll(ctx, reqs)

	items := make([]batchItemResponse, len(results))
	for _, r := range results {
		item := batchItemResponse{Index: r.Index}
		if r.Err != nil {
			item.Error = r.Err.Error()
		}
		if r.Result != nil {
			id := uuid.NewString()
			s.storeReport(id, r.Result)
			item.ReportID = id
			item.Result = r.Result
			if s.memory != nil {
				if _, err := s.memory.Store(r.Result); err != nil {
					s.log.Warn("storing batch result in team memory failed", "index", r.Index, "err", err)
				}
			}
		}
		items[r.Index] = item
	}

	return jsonResult(map[string]any{
		"documents": items,
		"count":     len(items),
	})
}

// ═══════════════════════════════════════════════════════════════════════════
// generate_compliance_report — Format a stored analysis
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addReportTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "generate_compliance_report",
			Title: "Generate Compliance Report",
			Description: `Render a previously completed analysis as a formatted report.

Pass the report_id returned by analyze_document_compliance or analyze_batch. Reports are held in memory for the lifetime of the server process.

EXAMPLE INPUTS:
• Markdown report: {"report_id": "...", "format": "markdown"}
• Raw JSON: {"report_id": "...", "format": "json"}`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"report_id": map[string]any{
						"type":        "string",
						"description": "Report id from a previous analysis.",
					},
					"format": map[string]any{
						"type":    "string",
						"enum":    []string{"markdown", "json"},
						"default": "markdown",
					},
				},
				"required": []string{"report_id"},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
				Title:          "Generate Compliance Report",
			},
		},
		s.handleReport,
	)
}

type reportArgs struct {
	ReportID string `json:"report_id"`
	Format   string `json:"format"`
}

func (s *Server) handleReport(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args reportArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.ReportID == "" {
		return errorResult("report_id is required. Run analyze_document_compliance first."), nil
	}

	result, ok := s.lookupReport(args.ReportID)
	if !ok {
		return errorResult(fmt.Sprintf("no report with id %q. Reports do not survive server restarts; re-run the analysis.", args.ReportID)), nil
	}

	if args.Format == "json" {
		return jsonResult(result)
	}
	return textResult(renderMarkdownReport(result)), nil
}

// renderMarkdownReport formats an analysis result as a human-readable
// markdown document.
func renderMarkdownReport(r *ouicomply.AnalysisResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Compliance Analysis Report\n\n")
	fmt.Fprintf(&b, "**Document:** %s\n", r.DocumentID)
	fmt.Fprintf(&b, "**Status:** %s\n", r.Status)
	fmt.Fprintf(&b, "**Risk score:** %.2f\n", r.RiskScore)
	fmt.Fprintf(&b, "**Frameworks:** %s\n", strings.Join(r.Metadata.Frameworks, ", "))
	fmt.Fprintf(&b, "**Analyzed:** %s (model %s, %dms)\n\n",
		r.Metadata.AnalyzedAt.Format("2006-01-02 15:04:05 UTC"), r.Metadata.Model, r.Metadata.ElapsedMS)

	if r.Error != "" {
		fmt.Fprintf(&b, "> ⚠️ Automated analysis did not complete: %s\n", r.Error)
		fmt.Fprintf(&b, "> This document requires manual review.\n\n")
	}

	fmt.Fprintf(&b, "## Issues (%d)\n\n", len(r.Issues))
	if len(r.Issues) == 0 {
		b.WriteString("No compliance issues identified.\n\n")
	}
	for _, issue := range r.Issues {
		fmt.Fprintf(&b, "### [%s] %s / %s\n\n", strings.ToUpper(issue.Severity), issue.Framework, issue.Category)
		fmt.Fprintf(&b, "%s\n\n", issue.Description)
		fmt.Fprintf(&b, "- **Location:** %s\n", issue.Location)
		fmt.Fprintf(&b, "- **Recommendation:** %s\n", issue.Recommendation)
		fmt.Fprintf(&b, "- **Confidence:** %.0f%%\n\n", issue.Confidence*100)
	}

	if len(r.MissingClauses) > 0 {
		b.WriteString("## Missing Clauses\n\n")
		for _, clause := range r.MissingClauses {
			fmt.Fprintf(&b, "- %s\n", clause)
		}
		b.WriteString("\n")
	}

	if len(r.Recommendations) > 0 {
		b.WriteString("## Recommendations\n\n")
		for i, rec := range r.Recommendations {
			fmt.Fprintf(&b, "%d. %s\n", i+1, rec)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// ═══════════════════════════════════════════════════════════════════════════
// get_compliance_history — Stored assessments
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addHistoryTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "get_compliance_history",
			Title: "Get Compliance History",
			Description: `List past compliance assessments from team memory, newest first.

EXAMPLE INPUTS:
• Recent history: {"limit": 10}
• GDPR only: {"framework": "gdpr", "limit": 5}`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"framework": map[string]any{
						"type":        "string",
						"enum":        frameworkEnum,
						"description": "Restrict to assessments that covered this framework.",
					},
					"limit": map[string]any{
						"type":    "integer",
						"default": 20,
						"minimum": 1,
						"maximum": 200,
					},
				},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
				Title:          "Get Compliance History",
			},
		},
		s.handleHistory,
	)
}

type historyArgs struct {
	Framework string `json:"framework"`
	Limit     int    `json:"limit"`
}

func (s *Server) handleHistory(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args historyArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if s.memory == nil {
		return errorResult("team memory is disabled on this server; no history is available."), nil
	}
	if args.Limit <= 0 {
		args.Limit = 20
	}

	entries, err := s.memory.History(args.Framework, args.Limit)
	if err != nil {
		return errorResult(fmt.Sprintf("reading history failed: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// ═══════════════════════════════════════════════════════════════════════════
// analyze_risk_trends — Longitudinal risk statistics
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addTrendsTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "analyze_risk_trends",
			Title: "Analyze Risk Trends",
			Description: `Summarize risk across all stored assessments: count, average risk, latest risk, and whether the trend is improving, stable, or declining.

Takes no arguments.`,
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
				Title:          "Analyze Risk Trends",
			},
		},
		s.handleTrends,
	)
}

func (s *Server) handleTrends(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.memory == nil {
		return errorResult("team memory is disabled on this server; no trends are available."), nil
	}
	trends, err := s.memory.Trends()
	if err != nil {
		return errorResult(fmt.Sprintf("computing trends failed: %v", err)), nil
	}
	return jsonResult(trends)
}

// ═══════════════════════════════════════════════════════════════════════════
// search_team_memory — Full-text search over stored insights
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addSearchMemoryTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "search_team_memory",
			Title: "Search Team Memory",
			Description: `Search stored compliance insights by keyword, optionally scoped to a framework.

EXAMPLE INPUTS:
• {"query": "data retention"}
• {"query": "missing clause", "framework": "gdpr", "limit": 5}`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Keyword to match against insights and document ids.",
					},
					"framework": map[string]any{
						"type": "string",
						"enum": frameworkEnum,
					},
					"limit": map[string]any{
						"type":    "integer",
						"default": 20,
						"minimum": 1,
						"maximum": 200,
					},
				},
				"required": []string{"query"},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
				Title:          "Search Team Memory",
			},
		},
		s.handleSearchMemory,
	)
}

type searchArgs struct {
	Query     string `json:"query"`
	Framework string `json:"framework"`
	Limit     int    `json:"limit"`
}

func (s *Server) handleSearchMemory(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args searchArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if s.memory == nil {
		return errorResult("team memory is disabled on this server."), nil
	}
	if args.Query == "" {
		return errorResult("query is required."), nil
	}
	if args.Limit <= 0 {
		args.Limit = 20
	}

	entries, err := s.memory.Search(args.Query, args.Framework, args.Limit)
	if err != nil {
		return errorResult(fmt.Sprintf("search failed: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// ═══════════════════════════════════════════════════════════════════════════
// dry_run_analysis — Cost preview without remote calls
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addDryRunTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "dry_run_analysis",
			Title: "Dry Run Analysis",
			Description: `Preview what an analysis would cost WITHOUT calling the AI service: prompt calls, upload calls (and whether the upload is already cached), and rough token estimates.

USE THIS TOOL WHEN:
• The user asks "how expensive would this be?" before a large batch
• You want to verify a byte-identical document is already cached

Zero network requests. Instant.`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"document_text":   map[string]any{"type": "string"},
					"document_base64": map[string]any{"type": "string"},
					"media_type":      map[string]any{"type": "string"},
					"frameworks": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string", "enum": frameworkEnum},
					},
					"analysis_depth": map[string]any{
						"type": "string",
						"enum": []string{"basic", "standard", "comprehensive"},
					},
				},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
				OpenWorldHint:  boolPtr(false),
				Title:          "Dry Run Analysis",
			},
		},
		s.handleDryRun,
	)
}

func (s *Server) handleDryRun(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args analyzeArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.DocumentText == "" && args.DocumentBase64 == "" {
		return errorResult("either document_text or document_base64 is required."), nil
	}

	areq, err := args.toRequest()
	if err != nil {
		return errorResult(err.Error()), nil
	}

	stats, err := s.analyzer.DryRun(areq)
	if err != nil {
		return errorResult(fmt.Sprintf("dry run failed: %v", err)), nil
	}
	plan, err := s.analyzer.Explain(areq)
	if err != nil {
		return errorResult(fmt.Sprintf("dry run failed: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"stats": stats,
		"plan":  plan,
	})
}

// ═══════════════════════════════════════════════════════════════════════════
// cache_stats / clear_cache — Upload cache administration
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addCacheStatsTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:        "cache_stats",
			Title:       "Cache Statistics",
			Description: "Report the document upload cache state (number of cached uploads). Takes no arguments.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
				Title:          "Cache Statistics",
			},
		},
		func(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return jsonResult(s.analyzer.CacheStats())
		},
	)
}

func (s *Server) addClearCacheTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:        "clear_cache",
			Title:       "Clear Upload Cache",
			Description: "Drop all cached document uploads. Subsequent analyses of the same bytes will re-upload. Takes no arguments.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
			Annotations: &mcp.ToolAnnotations{
				IdempotentHint: true,
				Title:          "Clear Upload Cache",
			},
		},
		func(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			s.analyzer.ClearCache()
			return textResult(`{"cleared": true}`), nil
		},
	)
}
