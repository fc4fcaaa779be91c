package ouicomply

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnalyzer(t *testing.T, remote *stubRemote, optFns ...func(*Options)) *Analyzer {
	t.Helper()
	optFns = append([]func(*Options){WithRetry(fastRetry(3))}, optFns...)
	a, err := NewAnalyzer(remote, NewDocumentCache(remote, nil), optFns...)
	require.NoError(t, err)
	return a
}

func TestAnalyzeCleanDocument(t *testing.T) {
	remote := &stubRemote{Payload: []byte(`{
		"issues": [],
		"missing_clauses": [],
		"recommendations": [],
		"risk_score": 0.1,
		"compliance_status": "compliant"
	}`)}
	a := newTestAnalyzer(t, remote)

	result := a.Analyze(context.Background(), AnalysisRequest{
		DocumentText: "This agreement includes all required clauses.",
	})

	require.False(t, result.Degraded())
	assert.Equal(t, StatusCompliant, result.Status)
	assert.Equal(t, 0.1, result.RiskScore)
	assert.Empty(t, result.Issues)
	assert.NotNil(t, result.Issues)
	assert.Empty(t, result.Error)
	assert.True(t, strings.HasPrefix(result.DocumentID, "text-"))
	assert.Equal(t, DefaultFrameworks, result.Metadata.Frameworks)
	assert.Equal(t, DepthComprehensive, result.Metadata.Depth)
	assert.Equal(t, "stub-model", result.Metadata.Model)
	assert.Equal(t, int64(1), remote.completes.Load())
}

func TestAnalyzeDerivesRiskAndStatus(t *testing.T) {
	remote := &stubRemote{Payload: []byte(`{
		"issues": [
			{"severity": "critical", "confidence": 1.0, "category": "consent", "framework": "gdpr"}
		]
	}`)}
	a := newTestAnalyzer(t, remote)

	result := a.Analyze(context.Background(), AnalysisRequest{
		DocumentText: "some document",
		Frameworks:   []string{"gdpr"},
	})

	require.False(t, result.Degraded())
	require.Len(t, result.Issues, 1)
	assert.Equal(t, 1.0, result.RiskScore)
	assert.Equal(t, StatusNonCompliant, result.Status)
	assert.Equal(t, []string{"gdpr"}, result.Metadata.Frameworks)
}

func TestAnalyzeNormalizesSparseIssues(t *testing.T) {
	remote := &stubRemote{Payload: []byte(`{
		"issues": [{"description": "vague retention language"}],
		"risk_score": 0.45
	}`)}
	a := newTestAnalyzer(t, remote)

	result := a.Analyze(context.Background(), AnalysisRequest{
		DocumentText: "doc",
		Frameworks:   []string{"sox", "gdpr"},
	})

	require.Len(t, result.Issues, 1)
	issue := result.Issues[0]
	assert.Equal(t, "general", issue.Category)
	assert.Equal(t, SeverityMedium, issue.Severity)
	assert.Equal(t, "sox", issue.Framework, "fallback is the first requested framework")
	assert.Equal(t, 0.5, issue.Confidence)
	assert.Equal(t, 0.45, result.RiskScore)
	assert.Equal(t, StatusPartiallyCompliant, result.Status)
}

func TestAnalyzeAcceptsLegacyIssueKey(t *testing.T) {
	remote := &stubRemote{Payload: []byte(`{
		"compliance_issues": [{"severity": "low", "confidence": 0.3}],
		"risk_score": 0.2
	}`)}
	a := newTestAnalyzer(t, remote)

	result := a.Analyze(context.Background(), AnalysisRequest{DocumentText: "doc"})
	require.False(t, result.Degraded())
	assert.Len(t, result.Issues, 1)
}

func TestAnalyzeRepairsTruncatedResponse(t *testing.T) {
	remote := &stubRemote{Payload: []byte(`{"issues": [{"severity": "high", "confidence": 0.8}], "risk_score": 0.7`)}
	a := newTestAnalyzer(t, remote)

	result := a.Analyze(context.Background(), AnalysisRequest{DocumentText: "doc"})

	require.False(t, result.Degraded())
	require.Len(t, result.Issues, 1)
	assert.Equal(t, SeverityHigh, result.Issues[0].Severity)
	assert.Equal(t, 0.7, result.RiskScore)
	assert.Equal(t, StatusNonCompliant, result.Status)
}

func TestAnalyzeDegradesOnMalformedResponse(t *testing.T) {
	remote := &stubRemote{Payload: []byte("I could not produce JSON, sorry.")}
	a := newTestAnalyzer(t, remote)

	result := a.Analyze(context.Background(), AnalysisRequest{DocumentText: "doc"})

	require.True(t, result.Degraded())
	assert.Equal(t, StatusRequiresReview, result.Status)
	assert.Contains(t, result.Error, "malformed")
	assert.True(t, strings.HasPrefix(result.DocumentID, "unanalyzed-"))
}

func TestAnalyzeDegradesAfterRetriesExhausted(t *testing.T) {
	remote := &stubRemote{FailErr: errors.New("upstream timeout")}
	a := newTestAnalyzer(t, remote)

	result := a.Analyze(context.Background(), AnalysisRequest{
		DocumentText: "doc",
		Frameworks:   []string{"gdpr"},
		Depth:        DepthBasic,
	})

	require.True(t, result.Degraded())
	assert.Equal(t, StatusRequiresReview, result.Status)
	assert.Contains(t, result.Error, "upstream timeout")
	assert.Equal(t, int64(3), remote.completes.Load(), "every configured attempt must be spent")
	assert.NotNil(t, result.Issues)
	assert.Empty(t, result.Issues)
	assert.Equal(t, []string{"gdpr"}, result.Metadata.Frameworks)
	assert.Equal(t, DepthBasic, result.Metadata.Depth)
	assert.NotEmpty(t, result.Recommendations)
}

func TestAnalyzeEmptyRequestDegradesWithoutRemoteCalls(t *testing.T) {
	remote := &stubRemote{Payload: []byte(`{}`)}
	a := newTestAnalyzer(t, remote)

	result := a.Analyze(context.Background(), AnalysisRequest{})

	require.True(t, result.Degraded())
	assert.Contains(t, result.Error, "empty")
	assert.Equal(t, int64(0), remote.completes.Load())
	assert.Equal(t, int64(0), remote.uploads.Load())
}

func TestAnalyzeBytesPathUsesUploadCache(t *testing.T) {
	remote := &stubRemote{Payload: []byte(`{"issues": [], "risk_score": 0.0}`)}
	a := newTestAnalyzer(t, remote)
	ctx := context.Background()

	doc := []byte("binary contract bytes")
	r1 := a.Analyze(ctx, AnalysisRequest{DocumentBytes: doc, MediaType: "application/pdf"})
	r2 := a.Analyze(ctx, AnalysisRequest{DocumentBytes: doc, MediaType: "application/pdf"})

	require.False(t, r1.Degraded())
	require.False(t, r2.Degraded())
	assert.Equal(t, "file-stub-1", r1.DocumentID)
	assert.Equal(t, r1.DocumentID, r2.DocumentID)
	assert.Equal(t, int64(1), remote.uploads.Load(), "second analysis must reuse the cached upload")
	assert.Equal(t, int64(2), remote.completes.Load())
	assert.Equal(t, 1, a.CacheStats().Entries)
}

func TestAnalyzeTimeoutOptionBoundsAttempts(t *testing.T) {
	// The per-attempt context must carry a deadline when Timeout is set.
	remote := &stubRemote{Payload: []byte(`{"issues": []}`)}
	a := newTestAnalyzer(t, remote, WithTimeout(50*time.Millisecond))

	result := a.Analyze(context.Background(), AnalysisRequest{DocumentText: "doc"})
	require.False(t, result.Degraded())
}

func TestClearCacheResets(t *testing.T) {
	remote := &stubRemote{Payload: []byte(`{"issues": []}`)}
	a := newTestAnalyzer(t, remote)
	ctx := context.Background()

	a.Analyze(ctx, AnalysisRequest{DocumentBytes: []byte("doc")})
	require.Equal(t, 1, a.CacheStats().Entries)

	a.ClearCache()
	assert.Equal(t, 0, a.CacheStats().Entries)
}
