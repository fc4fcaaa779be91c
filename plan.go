package ouicomply

import (
	"fmt"
	"strings"
)

// ExecutionStats describes what an analysis would cost without making
// remote calls: useful for planning and for sanity-checking a batch
// before burning API quota.
type ExecutionStats struct {
	PromptCalls       int      `json:"prompt_calls"`
	UploadCalls       int      `json:"upload_calls"`
	CachedUploads     int      `json:"cached_uploads"`
	Model             string   `json:"model"`
	Frameworks        []string `json:"frameworks"`
	EstInputTokens    int      `json:"est_input_tokens"`
	EstOutputTokens   int      `json:"est_output_tokens"`
	ClausesRequested  int      `json:"clauses_requested"`
}

// EstimateTokensFromText is a rough chars/4 heuristic, good enough for
// relative cost comparison between requests.
func EstimateTokensFromText(text string) int {
	return len(text)/4 + 1
}

// DryRun simulates Analyze for one request without touching the remote
// service. The upload cache is consulted read-only: a request whose bytes
// are already cached costs no upload call.
func (a *Analyzer) DryRun(req AnalysisRequest) (*ExecutionStats, error) {
	if len(req.DocumentBytes) == 0 && req.DocumentText == "" {
		return nil, fmt.Errorf("dry run: %w", ErrEmptyDocument)
	}

	frameworkIDs := req.Frameworks
	if len(frameworkIDs) == 0 {
		frameworkIDs = DefaultFrameworks
	}
	depth := req.Depth
	if depth == "" {
		depth = DepthComprehensive
	}

	frameworks := make([]Framework, 0, len(frameworkIDs))
	clauses := 0
	for _, id := range frameworkIDs {
		f := LookupFramework(id)
		frameworks = append(frameworks, f)
		clauses += len(f.RequiredClauses)
	}

	userPrompt, err := a.prompts.Render("analysis",
		analysisPromptContext(frameworks, depth, req.DocumentText, "dry-run"))
	if err != nil {
		return nil, err
	}

	stats := &ExecutionStats{
		PromptCalls:      1,
		Model:            a.modelName(),
		Frameworks:       frameworkIDs,
		EstInputTokens:   EstimateTokensFromText(userPrompt),
		ClausesRequested: clauses,
		// Output is dominated by per-issue JSON; assume one issue and one
		// missing clause per requested clause as the upper bound.
		EstOutputTokens: 20 + clauses*60,
	}

	if len(req.DocumentBytes) > 0 {
		stats.UploadCalls = 1
		if a.cache != nil && a.cache.Stats().Entries > 0 {
			if _, err := a.cache.peek(req.DocumentBytes); err == nil {
				stats.UploadCalls = 0
				stats.CachedUploads = 1
			}
		}
	}
	return stats, nil
}

// Explain renders a DryRun as a human-readable plan.
func (a *Analyzer) Explain(req AnalysisRequest) (string, error) {
	stats, err := a.DryRun(req)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Compliance analysis plan (model %s)\n", stats.Model)
	fmt.Fprintf(&b, "  frameworks:        %s\n", strings.Join(stats.Frameworks, ", "))
	fmt.Fprintf(&b, "  prompt calls:      %d\n", stats.PromptCalls)
	fmt.Fprintf(&b, "  upload calls:      %d (cached: %d)\n", stats.UploadCalls, stats.CachedUploads)
	fmt.Fprintf(&b, "  clauses requested: %d\n", stats.ClausesRequested)
	fmt.Fprintf(&b, "  est. tokens:       %d in / %d out\n", stats.EstInputTokens, stats.EstOutputTokens)
	return b.String(), nil
}
