package ouicomply

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryEntry is one stored compliance insight, distilled from a
// completed analysis so the team's history survives process restarts.
type MemoryEntry struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Frameworks []string  `json:"frameworks"`
	Status     string    `json:"status"`
	RiskScore  float64   `json:"risk_score"`
	IssueCount int       `json:"issue_count"`
	Insights   []string  `json:"insights"`
	CreatedAt  time.Time `json:"created_at"`
}

// RiskTrends summarizes stored assessments over time.
type RiskTrends struct {
	Assessments  int     `json:"assessments"`
	AverageRisk  float64 `json:"average_risk"`
	LatestRisk   float64 `json:"latest_risk"`
	Trend        string  `json:"trend"` // improving | stable | declining
}

// TeamMemory persists compliance insights to a flat JSON file. It is the
// only durable state in the system; everything else is per-process.
// Writes are atomic (temp file + rename) and guarded by a mutex.
type TeamMemory struct {
	path string
	log  *slog.Logger

	mu      sync.Mutex
	entries []MemoryEntry
	loaded  bool
}

// NewTeamMemory opens (or will create) the memory file at path.
func NewTeamMemory(path string, log *slog.Logger) *TeamMemory {
	return &TeamMemory{path: path, log: orDefault(log)}
}

// Store distills a result into a MemoryEntry and appends it to the file.
// Degraded results are stored too; their status makes them identifiable.
func (m *TeamMemory) Store(result *AnalysisResult) (MemoryEntry, error) {
	entry := MemoryEntry{
		ID:         uuid.NewString(),
		DocumentID: result.DocumentID,
		Frameworks: result.Metadata.Frameworks,
		Status:     result.Status,
		RiskScore:  result.RiskScore,
		IssueCount: len(result.Issues),
		Insights:   distillInsights(result),
		CreatedAt:  time.Now().UTC(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(); err != nil {
		return MemoryEntry{}, err
	}
	m.entries = append(m.entries, entry)
	if err := m.saveLocked(); err != nil {
		m.entries = m.entries[:len(m.entries)-1]
		return MemoryEntry{}, err
	}
	m.log.Debug("memory entry stored", "id", entry.ID, "document_id", entry.DocumentID)
	return entry, nil
}

// Search returns entries whose insights or document id contain the query,
// optionally restricted to one framework. Newest first.
func (m *TeamMemory) Search(query, framework string, limit int) ([]MemoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(); err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	var out []MemoryEntry
	for _, e := range m.entries {
		if framework != "" && !containsString(e.Frameworks, framework) {
			continue
		}
		if query != "" && !entryMatches(e, query) {
			continue
		}
		out = append(out, e)
	}
	sortNewestFirst(out)
	return truncateEntries(out, limit), nil
}

// History returns the most recent entries, optionally filtered by framework.
func (m *TeamMemory) History(framework string, limit int) ([]MemoryEntry, error) {
	return m.Search("", framework, limit)
}

// Trends computes aggregate risk statistics over all stored assessments.
// Trend direction compares the older half's average against the newer half's.
func (m *TeamMemory) Trends() (RiskTrends, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(); err != nil {
		return RiskTrends{}, err
	}
	if len(m.entries) == 0 {
		return RiskTrends{Trend: "stable"}, nil
	}

	ordered := append([]MemoryEntry(nil), m.entries...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].CreatedAt.Before(ordered[j].CreatedAt) })

	var sum float64
	for _, e := range ordered {
		sum += e.RiskScore
	}
	trends := RiskTrends{
		Assessments: len(ordered),
		AverageRisk: sum / float64(len(ordered)),
		LatestRisk:  ordered[len(ordered)-1].RiskScore,
		Trend:       "stable",
	}

	if len(ordered) >= 2 {
		mid := len(ordered) / 2
		older := averageRisk(ordered[:mid])
		newer := averageRisk(ordered[mid:])
		switch {
		case newer < older-0.05:
			trends.Trend = "improving"
		case newer > older+0.05:
			trends.Trend = "declining"
		}
	}
	return trends, nil
}

func (m *TeamMemory) loadLocked() error {
	if m.loaded {
		return nil
	}
	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		m.entries = nil
		m.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("read memory file: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &m.entries); err != nil {
			return fmt.Errorf("parse memory file %s: %w", m.path, err)
		}
	}
	m.loaded = true
	return nil
}

func (m *TeamMemory) saveLocked() error {
	data, err := json.MarshalIndent(m.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode memory: %w", err)
	}
	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create memory dir: %w", err)
		}
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write memory file: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("replace memory file: %w", err)
	}
	return nil
}

// distillInsights keeps the findings worth remembering: high-impact
// issues and missing clauses.
func distillInsights(result *AnalysisResult) []string {
	var insights []string
	for _, issue := range result.Issues {
		if issue.Severity == SeverityHigh || issue.Severity == SeverityCritical {
			insights = append(insights, fmt.Sprintf("[%s/%s] %s", issue.Framework, issue.Severity, issue.Description))
		}
	}
	for _, clause := range result.MissingClauses {
		insights = append(insights, "missing clause: "+clause)
	}
	if result.Degraded() {
		insights = append(insights, "analysis degraded: "+result.Error)
	}
	return insights
}

func entryMatches(e MemoryEntry, query string) bool {
	if strings.Contains(strings.ToLower(e.DocumentID), query) {
		return true
	}
	for _, in := range e.Insights {
		if strings.Contains(strings.ToLower(in), query) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func sortNewestFirst(entries []MemoryEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
}

func truncateEntries(entries []MemoryEntry, limit int) []MemoryEntry {
	if limit > 0 && len(entries) > limit {
		return entries[:limit]
	}
	return entries
}

func averageRisk(entries []MemoryEntry) float64 {
	if len(entries) == 0 {
		return 0
	}
	var sum float64
	for _, e := range entries {
		sum += e.RiskScore
	}
	return sum / float64(len(entries))
}
