package ouicomply

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Analyzer turns an AnalysisRequest into an AnalysisResult using the
// remote model's function-calling capability. Internal steps fail loud;
// the public Analyze boundary fails soft: callers always receive a
// well-formed result, degraded and flagged when the remote dependency
// could not produce a trustworthy analysis.
type Analyzer struct {
	invoker Invoker
	cache   *DocumentCache
	prompts *StickPromptProvider
	opts    Options
	log     *slog.Logger
}

// NewAnalyzer returns an Analyzer that logs with slog.Default().
func NewAnalyzer(invoker Invoker, cache *DocumentCache, optFns ...func(*Options)) (*Analyzer, error) {
	return NewAnalyzerWithLogger(invoker, cache, slog.Default(), optFns...)
}

// NewAnalyzerWithLogger lets the caller supply their own logger.
func NewAnalyzerWithLogger(invoker Invoker, cache *DocumentCache, log *slog.Logger, optFns ...func(*Options)) (*Analyzer, error) {
	prompts, err := defaultPromptProvider()
	if err != nil {
		return nil, fmt.Errorf("load prompt templates: %w", err)
	}
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Analyzer{
		invoker: invoker,
		cache:   cache,
		prompts: prompts,
		opts:    opts,
		log:     orDefault(log),
	}, nil
}

// CacheStats exposes the upload cache snapshot for admin tooling.
func (a *Analyzer) CacheStats() CacheStats {
	if a.cache == nil {
		return CacheStats{}
	}
	return a.cache.Stats()
}

// ClearCache drops all cached upload handles.
func (a *Analyzer) ClearCache() {
	if a.cache != nil {
		a.cache.Clear()
	}
}

// Analyze runs the full pipeline for one document. It never returns an
// error: irrecoverable failures produce a degraded result with status
// StatusRequiresReview and the failure in the Error field, so MCP tool
// handlers and HTTP wrappers always have a well-formed object to ship.
func (a *Analyzer) Analyze(ctx context.Context, req AnalysisRequest) *AnalysisResult {
	start := time.Now()
	result, err := a.analyze(ctx, req, start)
	if err != nil {
		a.log.Error("analysis degraded", "error", err, "frameworks", req.Frameworks)
		return a.degradedResult(req, err, start)
	}
	return result
}

func (a *Analyzer) analyze(ctx context.Context, req AnalysisRequest, start time.Time) (*AnalysisResult, error) {
	if len(req.DocumentBytes) == 0 && req.DocumentText == "" {
		return nil, fmt.Errorf("analyze: %w", ErrEmptyDocument)
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
	for _, id := range frameworkIDs {
		frameworks = append(frameworks, LookupFramework(id))
	}

	// Upload path: bytes go through the content-addressed cache; text is
	// inlined into the prompt and skips the document service entirely.
	var documentID string
	if len(req.DocumentBytes) > 0 {
		handle, err := Retry(ctx, a.opts.Retry, a.log, func() (DocumentHandle, error) {
			callCtx, cancel := a.callContext(ctx)
			defer cancel()
			return a.cache.GetOrUpload(callCtx, req.DocumentBytes, req.MediaType)
		})
		if err != nil {
			return nil, fmt.Errorf("upload document: %w", err)
		}
		documentID = handle.RemoteID
	} else {
		documentID = "text-" + uuid.NewString()
	}

	systemPrompt, err := a.prompts.GetPrompt("system")
	if err != nil {
		return nil, err
	}
	userPrompt, err := a.prompts.Render("analysis",
		analysisPromptContext(frameworks, depth, req.DocumentText, documentID))
	if err != nil {
		return nil, err
	}

	call := ChatCall{
		Model:        a.opts.Model,
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Function:     complianceFunctionSchema(),
		Temperature:  a.opts.Temperature,
		MaxTokens:    a.opts.MaxTokens,
	}

	raw, err := Retry(ctx, a.opts.Retry, a.log, func() ([]byte, error) {
		callCtx, cancel := a.callContext(ctx)
		defer cancel()
		return a.invoker.Complete(callCtx, call)
	})
	if err != nil {
		return nil, fmt.Errorf("remote analysis call: %w", err)
	}

	repaired, err := ParseRepair(raw)
	if err != nil {
		return nil, err
	}
	if len(repaired) != len(raw) {
		a.log.Warn("model response repaired", "raw_length", len(raw), "repaired_length", len(repaired))
	}

	var parsed structuredAnalysis
	if err := json.Unmarshal(repaired, &parsed); err != nil {
		return nil, &MalformedResponseError{Raw: string(raw)}
	}

	return a.buildResult(parsed, documentID, frameworkIDs, depth, start), nil
}

// buildResult normalizes the wire payload into the typed result. Missing
// fields are default-filled, never rejected; defaulting is logged once so
// flaky model output stays visible without failing the analysis.
func (a *Analyzer) buildResult(parsed structuredAnalysis, documentID string, frameworkIDs []string, depth string, start time.Time) *AnalysisResult {
	fallbackFramework := frameworkIDs[0]

	rawIssues := parsed.rawIssues()
	issues := make([]ComplianceIssue, 0, len(rawIssues))
	defaulted := 0
	for _, m := range rawIssues {
		issue := normalizeIssue(m, fallbackFramework)
		if _, ok := m["category"]; !ok {
			defaulted++
		}
		issues = append(issues, issue)
	}
	if defaulted > 0 {
		a.log.Info("issue fields defaulted during normalization", "issues", len(issues), "defaulted", defaulted)
	}

	riskScore := riskFromIssues(issues)
	if parsed.RiskScore != nil {
		riskScore = clamp01(*parsed.RiskScore)
	}

	status := parsed.Status
	switch status {
	case StatusCompliant, StatusPartiallyCompliant, StatusNonCompliant:
	default:
		status = statusFromScore(riskScore)
	}

	missing := parsed.MissingClauses
	if missing == nil {
		missing = []string{}
	}
	recommendations := parsed.Recommendations
	if recommendations == nil {
		recommendations = []string{}
	}

	result := &AnalysisResult{
		DocumentID:      documentID,
		Issues:          issues,
		MissingClauses:  missing,
		Recommendations: recommendations,
		RiskScore:       riskScore,
		Status:          status,
		Metadata: AnalysisMetadata{
			Frameworks: frameworkIDs,
			Depth:      depth,
			Model:      a.modelName(),
			ElapsedMS:  time.Since(start).Milliseconds(),
			AnalyzedAt: time.Now().UTC(),
		},
	}
	a.log.Info("analysis completed",
		"document_id", documentID,
		"issues", len(result.Issues),
		"risk_score", result.RiskScore,
		"status", result.Status)
	return result
}

func (a *Analyzer) degradedResult(req AnalysisRequest, cause error, start time.Time) *AnalysisResult {
	frameworkIDs := req.Frameworks
	if len(frameworkIDs) == 0 {
		frameworkIDs = DefaultFrameworks
	}
	depth := req.Depth
	if depth == "" {
		depth = DepthComprehensive
	}
	return &AnalysisResult{
		DocumentID:      "unanalyzed-" + uuid.NewString(),
		Issues:          []ComplianceIssue{},
		MissingClauses:  []string{},
		Recommendations: []string{"analysis failed; review the document manually"},
		RiskScore:       0,
		Status:          StatusRequiresReview,
		Error:           cause.Error(),
		Metadata: AnalysisMetadata{
			Frameworks: frameworkIDs,
			Depth:      depth,
			Model:      a.modelName(),
			ElapsedMS:  time.Since(start).Milliseconds(),
			AnalyzedAt: time.Now().UTC(),
		},
	}
}

// callContext bounds a single remote attempt; the remote API may hang.
func (a *Analyzer) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.opts.Timeout)
}

func (a *Analyzer) modelName() string {
	if a.opts.Model != "" {
		return a.opts.Model
	}
	if m, ok := a.invoker.(interface{ Model() string }); ok {
		return m.Model()
	}
	return "default"
}
