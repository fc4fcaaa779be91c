package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	ouicomply "github.com/KJFromMicromonic/OuiComply"
)

// registerResources adds the domain-knowledge resources to the MCP server.
func (s *Server) registerResources() {
	s.addVersionResource()
	s.addFrameworksResource()
	s.addChecklistResource()
}

func (s *Server) addVersionResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			URI:         "compliance://version",
			Name:        "Server Version",
			Description: "Server version, capabilities, and tool inventory.",
			MIMEType:    "application/json",
		},
		func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			info := map[string]any{
				"name":    s.config.Name,
				"version": s.config.Version,
				"tools": []string{
					"analyze_document_compliance", "analyze_batch",
					"generate_compliance_report", "get_compliance_history",
					"analyze_risk_trends", "search_team_memory",
					"dry_run_analysis", "cache_stats", "clear_cache",
				},
				"frameworks": ouicomply.FrameworkIDs(),
			}
			data, _ := json.MarshalIndent(info, "", "  ")
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{URI: "compliance://version", MIMEType: "application/json", Text: string(data)},
				},
			}, nil
		},
	)
}

func (s *Server) addFrameworksResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			URI:         "compliance://frameworks",
			Name:        "Compliance Framework Catalog",
			Description: "Supported frameworks with their required clauses and risk indicators.",
			MIMEType:    "application/json",
		},
		func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			var catalog []ouicomply.Framework
			for _, id := range ouicomply.FrameworkIDs() {
				catalog = append(catalog, ouicomply.LookupFramework(id))
			}
			data, err := json.MarshalIndent(catalog, "", "  ")
			if err != nil {
				return nil, err
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{URI: "compliance://frameworks", MIMEType: "application/json", Text: string(data)},
				},
			}, nil
		},
	)
}

func (s *Server) addChecklistResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			URI:         "compliance://templates/checklist",
			Name:        "Compliance Review Checklist",
			Description: "A review checklist template for manual follow-up on analysis findings.",
			MIMEType:    "text/markdown",
		},
		func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{URI: "compliance://templates/checklist", MIMEType: "text/markdown", Text: checklistTemplate},
				},
			}, nil
		},
	)
}

const checklistTemplate = `# Compliance Review Checklist

## Before review
- [ ] Confirm the analyzed document version matches the one under review
- [ ] Note the compliance_status and risk_score from the automated analysis
- [ ] If status is requires_review, the automated pass failed: review everything manually

## Per issue
- [ ] Verify the cited location actually contains the problem
- [ ] Judge whether the severity rating is appropriate for your context
- [ ] Assign an owner and a remediation deadline

## Missing clauses
- [ ] Confirm each flagged clause is genuinely absent (not phrased differently)
- [ ] Draft replacement language with legal counsel

## After review
- [ ] Record decisions next to each finding
- [ ] Re-run the analysis after document changes
- [ ] Compare the new risk_score against the previous assessment
`
