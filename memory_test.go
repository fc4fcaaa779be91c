package ouicomply

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempMemory(t *testing.T) *TeamMemory {
	t.Helper()
	return NewTeamMemory(filepath.Join(t.TempDir(), "memory", "team.json"), nil)
}

func sampleResult(status string, risk float64) *AnalysisResult {
	return &AnalysisResult{
		DocumentID: "doc-1",
		Issues: []ComplianceIssue{
			{Severity: SeverityHigh, Framework: "gdpr", Description: "no retention period", Confidence: 0.8},
			{Severity: SeverityLow, Framework: "gdpr", Description: "minor wording", Confidence: 0.4},
		},
		MissingClauses: []string{"data breach notification"},
		RiskScore:      risk,
		Status:         status,
		Metadata:       AnalysisMetadata{Frameworks: []string{"gdpr"}},
	}
}

func TestStoreAndHistoryRoundTrip(t *testing.T) {
	m := tempMemory(t)

	entry, err := m.Store(sampleResult(StatusNonCompliant, 0.8))
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "doc-1", entry.DocumentID)
	assert.Equal(t, 2, entry.IssueCount)

	// High-severity issues and missing clauses become insights; the low
	// severity one does not.
	require.Len(t, entry.Insights, 2)
	assert.Contains(t, entry.Insights[0], "no retention period")
	assert.Contains(t, entry.Insights[1], "missing clause")

	entries, err := m.History("", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.ID, entries[0].ID)
}

func TestStorePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "team.json")

	m1 := NewTeamMemory(path, nil)
	_, err := m1.Store(sampleResult(StatusCompliant, 0.1))
	require.NoError(t, err)

	m2 := NewTeamMemory(path, nil)
	entries, err := m2.History("", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSearchFiltersByQueryAndFramework(t *testing.T) {
	m := tempMemory(t)
	_, err := m.Store(sampleResult(StatusNonCompliant, 0.8))
	require.NoError(t, err)

	sox := sampleResult(StatusCompliant, 0.2)
	sox.Metadata.Frameworks = []string{"sox"}
	sox.Issues = nil
	sox.MissingClauses = []string{"whistleblower protection"}
	_, err = m.Store(sox)
	require.NoError(t, err)

	hits, err := m.Search("retention", "", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = m.Search("", "sox", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, []string{"sox"}, hits[0].Frameworks)

	hits, err = m.Search("whistleblower", "gdpr", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchLimit(t *testing.T) {
	m := tempMemory(t)
	for i := 0; i < 5; i++ {
		_, err := m.Store(sampleResult(StatusCompliant, 0.1))
		require.NoError(t, err)
	}
	hits, err := m.Search("", "", 3)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestTrendsEmpty(t *testing.T) {
	m := tempMemory(t)
	trends, err := m.Trends()
	require.NoError(t, err)
	assert.Equal(t, 0, trends.Assessments)
	assert.Equal(t, "stable", trends.Trend)
}

func TestTrendsDetectsImprovement(t *testing.T) {
	m := tempMemory(t)

	for _, risk := range []float64{0.9, 0.8, 0.3, 0.2} {
		_, err := m.Store(sampleResult(StatusNonCompliant, risk))
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond) // distinct CreatedAt ordering
	}

	trends, err := m.Trends()
	require.NoError(t, err)
	assert.Equal(t, 4, trends.Assessments)
	assert.InDelta(t, 0.55, trends.AverageRisk, 1e-9)
	assert.InDelta(t, 0.2, trends.LatestRisk, 1e-9)
	assert.Equal(t, "improving", trends.Trend)
}

func TestTrendsDetectsDecline(t *testing.T) {
	m := tempMemory(t)
	for _, risk := range []float64{0.1, 0.2, 0.7, 0.8} {
		_, err := m.Store(sampleResult(StatusNonCompliant, risk))
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}
	trends, err := m.Trends()
	require.NoError(t, err)
	assert.Equal(t, "declining", trends.Trend)
}

func TestStoreDegradedResult(t *testing.T) {
	m := tempMemory(t)
	degraded := &AnalysisResult{
		DocumentID: "unanalyzed-1",
		Status:     StatusRequiresReview,
		Error:      "remote unavailable",
		Metadata:   AnalysisMetadata{Frameworks: []string{"gdpr"}},
	}
	entry, err := m.Store(degraded)
	require.NoError(t, err)
	assert.Equal(t, StatusRequiresReview, entry.Status)
	require.NotEmpty(t, entry.Insights)
	assert.Contains(t, entry.Insights[0], "degraded")
}

func TestMemoryFileIsValidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "team.json")
	m := NewTeamMemory(path, nil)
	_, err := m.Store(sampleResult(StatusCompliant, 0.1))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, len(data) > 0)
	assert.Equal(t, byte('['), data[0])
}
