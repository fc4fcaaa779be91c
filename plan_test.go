package ouicomply

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDryRunTextRequest(t *testing.T) {
	a := newTestAnalyzer(t, &stubRemote{})

	stats, err := a.DryRun(AnalysisRequest{
		DocumentText: "a short agreement",
		Frameworks:   []string{"gdpr"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.PromptCalls)
	assert.Equal(t, 0, stats.UploadCalls)
	assert.Equal(t, []string{"gdpr"}, stats.Frameworks)
	assert.Equal(t, len(LookupFramework("gdpr").RequiredClauses), stats.ClausesRequested)
	assert.Greater(t, stats.EstInputTokens, 0)
	assert.Greater(t, stats.EstOutputTokens, 0)
}

func TestDryRunEmptyRequest(t *testing.T) {
	a := newTestAnalyzer(t, &stubRemote{})
	_, err := a.DryRun(AnalysisRequest{})
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestDryRunReportsCachedUpload(t *testing.T) {
	remote := &stubRemote{Payload: []byte(`{"issues": []}`)}
	a := newTestAnalyzer(t, remote)
	doc := []byte("contract bytes")

	// Before any upload the plan includes one upload call.
	stats, err := a.DryRun(AnalysisRequest{DocumentBytes: doc})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.UploadCalls)
	assert.Equal(t, 0, stats.CachedUploads)

	// After a real analysis the same bytes are free.
	a.Analyze(context.Background(), AnalysisRequest{DocumentBytes: doc})
	uploadsBefore := remote.uploads.Load()

	stats, err = a.DryRun(AnalysisRequest{DocumentBytes: doc})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.UploadCalls)
	assert.Equal(t, 1, stats.CachedUploads)
	assert.Equal(t, uploadsBefore, remote.uploads.Load(), "dry run must not upload")
}

func TestEstimateTokensFromText(t *testing.T) {
	assert.Equal(t, 1, EstimateTokensFromText(""))
	assert.Equal(t, 26, EstimateTokensFromText(string(make([]byte, 100))))
}

func TestExplainRendersPlan(t *testing.T) {
	a := newTestAnalyzer(t, &stubRemote{})
	out, err := a.Explain(AnalysisRequest{DocumentText: "doc", Frameworks: []string{"gdpr", "sox"}})
	require.NoError(t, err)
	assert.Contains(t, out, "gdpr, sox")
	assert.Contains(t, out, "prompt calls")
}
