package ouicomply

import (
	"sort"
	"strings"
)

// Framework describes one compliance framework: what the model should
// look for and which absences count as findings. The set is open — an
// unknown id falls back to a generic definition rather than an error, so
// new frameworks can be requested without code changes to the transport.
type Framework struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	RequiredClauses []string `json:"required_clauses"`
	RiskIndicators  []string `json:"risk_indicators"`
}

var builtinFrameworks = map[string]Framework{
	"gdpr": {
		ID:   "gdpr",
		Name: "General Data Protection Regulation",
		RequiredClauses: []string{
			"data processing purpose",
			"legal basis for processing",
			"data retention period",
			"data subject rights",
			"data protection officer contact",
			"cross-border data transfer safeguards",
			"data breach notification",
			"consent withdrawal mechanism",
		},
		RiskIndicators: []string{
			"unclear data processing purposes",
			"missing legal basis",
			"excessive data retention",
			"insufficient data subject rights",
			"unclear consent mechanisms",
		},
	},
	"sox": {
		ID:   "sox",
		Name: "Sarbanes-Oxley Act",
		RequiredClauses: []string{
			"financial reporting controls",
			"internal control framework",
			"management responsibility",
			"auditor independence",
			"whistleblower protection",
			"document retention policy",
			"conflict of interest disclosure",
		},
		RiskIndicators: []string{
			"weak internal controls",
			"insufficient documentation",
			"conflict of interest issues",
			"inadequate audit trails",
		},
	},
	"ccpa": {
		ID:   "ccpa",
		Name: "California Consumer Privacy Act",
		RequiredClauses: []string{
			"personal information collection notice",
			"consumer rights disclosure",
			"opt-out mechanisms",
			"data sale restrictions",
			"non-discrimination policy",
			"authorized agent procedures",
		},
		RiskIndicators: []string{
			"unclear data collection practices",
			"missing opt-out mechanisms",
			"insufficient consumer rights information",
		},
	},
	"hipaa": {
		ID:   "hipaa",
		Name: "Health Insurance Portability and Accountability Act",
		RequiredClauses: []string{
			"privacy notice",
			"minimum necessary standard",
			"patient consent procedures",
			"breach notification",
			"business associate agreements",
			"administrative safeguards",
		},
		RiskIndicators: []string{
			"insufficient privacy protections",
			"unclear consent procedures",
			"inadequate breach response",
		},
	},
}

// LookupFramework returns the catalog entry for id, or a generic entry
// for ids the catalog does not know.
func LookupFramework(id string) Framework {
	key := strings.ToLower(strings.TrimSpace(id))
	if f, ok := builtinFrameworks[key]; ok {
		return f
	}
	return Framework{
		ID:              key,
		Name:            strings.ToUpper(key),
		RequiredClauses: []string{"general legal compliance requirements"},
		RiskIndicators:  []string{"ambiguous or missing compliance language"},
	}
}

// FrameworkIDs lists the built-in framework ids in stable order.
func FrameworkIDs() []string {
	ids := make([]string, 0, len(builtinFrameworks))
	for id := range builtinFrameworks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
