package ouicomply

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tyler-sommer/stick"
)

func TestDefaultPromptProviderLoadsTemplates(t *testing.T) {
	p, err := defaultPromptProvider()
	require.NoError(t, err)

	system, err := p.GetPrompt("system")
	require.NoError(t, err)
	assert.Contains(t, system, "compliance expert")

	_, err = p.GetPrompt("missing")
	assert.Error(t, err)
}

func TestAnalysisPromptIncludesClausesAndIndicators(t *testing.T) {
	p, err := defaultPromptProvider()
	require.NoError(t, err)

	frameworks := []Framework{LookupFramework("gdpr"), LookupFramework("sox")}
	out, err := p.Render("analysis",
		analysisPromptContext(frameworks, DepthComprehensive, "the document body", "doc-1"))
	require.NoError(t, err)

	assert.Contains(t, out, "General Data Protection Regulation, Sarbanes-Oxley Act")
	assert.Contains(t, out, "gdpr: data retention period")
	assert.Contains(t, out, "sox: whistleblower protection")
	assert.Contains(t, out, "gdpr: excessive data retention")
	assert.Contains(t, out, "comprehensive")
	assert.Contains(t, out, "the document body")
	assert.NotContains(t, out, "already been uploaded", "inline text must not use the upload branch")
}

func TestAnalysisPromptUploadedBranch(t *testing.T) {
	p, err := defaultPromptProvider()
	require.NoError(t, err)

	out, err := p.Render("analysis",
		analysisPromptContext([]Framework{LookupFramework("gdpr")}, DepthBasic, "", "file-abc123"))
	require.NoError(t, err)

	assert.Contains(t, out, "file-abc123")
	assert.Contains(t, out, "already been uploaded")
	assert.NotContains(t, out, "<<DOC>>")
}

func TestWithTemplatesAndVars(t *testing.T) {
	p, err := NewStickPromptProvider(
		WithTemplates(map[string]string{"greet": "hello {{ name }} from {{ org }}"}),
		WithVar("org", "legal"),
	)
	require.NoError(t, err)

	out, err := p.Render("greet", map[string]stick.Value{"name": "reviewer"})
	require.NoError(t, err)
	assert.Equal(t, "hello reviewer from legal", out)
}

func TestAddTemplateOverrides(t *testing.T) {
	p, err := NewStickPromptProvider(WithTemplates(map[string]string{"x": "one"}))
	require.NoError(t, err)

	p.AddTemplate("x", "two")
	out, err := p.GetPrompt("x")
	require.NoError(t, err)
	assert.Equal(t, "two", out)
}
