package ouicomply

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyDocument is returned when a request carries neither bytes nor text.
var ErrEmptyDocument = errors.New("document is empty")

// Severity levels accepted for a ComplianceIssue.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Compliance status values. StatusRequiresReview flags a degraded result
// and is never produced by a successful analysis.
const (
	StatusCompliant          = "compliant"
	StatusPartiallyCompliant = "partially_compliant"
	StatusNonCompliant       = "non_compliant"
	StatusRequiresReview     = "requires_review"
)

// Analysis depth levels.
const (
	DepthBasic         = "basic"
	DepthStandard      = "standard"
	DepthComprehensive = "comprehensive"
)

// DefaultFrameworks is used when a request names no frameworks.
var DefaultFrameworks = []string{"gdpr", "sox", "ccpa"}

// AnalysisRequest is the input to the core. Exactly one of DocumentBytes
// and DocumentText should be set; bytes go through the upload cache,
// text is inlined into the prompt.
type AnalysisRequest struct {
	DocumentBytes []byte   `json:"-"`
	DocumentText  string   `json:"document_text,omitempty"`
	MediaType     string   `json:"media_type,omitempty"`
	Frameworks    []string `json:"frameworks,omitempty"`
	Depth         string   `json:"analysis_depth,omitempty"`
}

// ComplianceIssue is one finding. Every field has a default so a
// partially populated model response never fails validation.
type ComplianceIssue struct {
	IssueID        string  `json:"issue_id"`
	Category       string  `json:"category"`
	Severity       string  `json:"severity"`
	Framework      string  `json:"framework"`
	Description    string  `json:"description"`
	Location       string  `json:"location"`
	Recommendation string  `json:"recommendation"`
	Confidence     float64 `json:"confidence"`
}

// AnalysisMetadata describes how a result was produced.
type AnalysisMetadata struct {
	Frameworks []string  `json:"frameworks_analyzed"`
	Depth      string    `json:"analysis_depth"`
	Model      string    `json:"model"`
	ElapsedMS  int64     `json:"elapsed_ms"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// AnalysisResult is the aggregate returned to callers. Created fresh per
// request and never mutated after construction. A degraded result has
// Status StatusRequiresReview and a populated Error; an empty Issues list
// alone is the legitimate happy path for a clean document.
type AnalysisResult struct {
	DocumentID      string            `json:"document_id"`
	Issues          []ComplianceIssue `json:"issues"`
	MissingClauses  []string          `json:"missing_clauses"`
	Recommendations []string          `json:"recommendations"`
	RiskScore       float64           `json:"risk_score"`
	Status          string            `json:"compliance_status"`
	Error           string            `json:"error,omitempty"`
	Metadata        AnalysisMetadata  `json:"metadata"`
}

// Degraded reports whether the analysis failed and the result is a
// placeholder rather than a genuine assessment.
func (r *AnalysisResult) Degraded() bool { return r.Status == StatusRequiresReview }

var severityWeights = map[string]float64{
	SeverityLow:      0.2,
	SeverityMedium:   0.5,
	SeverityHigh:     0.8,
	SeverityCritical: 1.0,
}

// normalizeIssue converts one untyped issue mapping from the model into a
// fully typed ComplianceIssue, filling absent or invalid fields with safe
// defaults instead of rejecting the record. fallbackFramework is the
// first framework the caller requested.
func normalizeIssue(m map[string]any, fallbackFramework string) ComplianceIssue {
	issue := ComplianceIssue{
		IssueID:        stringField(m, "issue_id"),
		Category:       stringField(m, "category"),
		Severity:       stringField(m, "severity"),
		Framework:      stringField(m, "framework"),
		Description:    stringField(m, "description"),
		Location:       stringField(m, "location"),
		Recommendation: stringField(m, "recommendation"),
		Confidence:     floatField(m, "confidence", 0.5),
	}
	if issue.IssueID == "" {
		issue.IssueID = uuid.NewString()
	}
	if issue.Category == "" {
		issue.Category = "general"
	}
	if _, ok := severityWeights[issue.Severity]; !ok {
		issue.Severity = SeverityMedium
	}
	if issue.Framework == "" {
		issue.Framework = fallbackFramework
	}
	if issue.Location == "" {
		issue.Location = "not specified"
	}
	if issue.Recommendation == "" {
		issue.Recommendation = "review this finding manually"
	}
	issue.Confidence = clamp01(issue.Confidence)
	return issue
}

// riskFromIssues is the fallback risk score when the model omits one:
// a severity-weighted average of per-issue confidence.
func riskFromIssues(issues []ComplianceIssue) float64 {
	if len(issues) == 0 {
		return 0
	}
	var weighted, total float64
	for _, issue := range issues {
		w := severityWeights[issue.Severity]
		weighted += w * issue.Confidence
		total += w
	}
	if total == 0 {
		return 0
	}
	return clamp01(weighted / total)
}

// statusFromScore derives the coarse status when the model omits it.
func statusFromScore(score float64) string {
	switch {
	case score < 0.3:
		return StatusCompliant
	case score < 0.6:
		return StatusPartiallyCompliant
	default:
		return StatusNonCompliant
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func floatField(m map[string]any, key string, def float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}
