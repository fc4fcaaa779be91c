package ouicomply

// FunctionSchema describes the callable signature the model is forced to
// invoke. Parameters follows JSON-Schema conventions and is passed to the
// remote API verbatim.
type FunctionSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// complianceFunctionSchema mirrors AnalysisResult so the model's
// function-call arguments decode straight into the structured payload.
// Only the fields the normalization step genuinely requires are marked
// required; everything else is default-filled afterwards.
func complianceFunctionSchema() FunctionSchema {
	return FunctionSchema{
		Name:        "report_compliance_analysis",
		Description: "Report the structured compliance analysis of a legal document",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"issues": map[string]any{
					"type":        "array",
					"description": "Compliance issues found in the document",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"issue_id": map[string]any{
								"type":        "string",
								"description": "Unique identifier for the issue",
							},
							"category": map[string]any{
								"type":        "string",
								"description": "Category of the compliance issue",
							},
							"severity": map[string]any{
								"type": "string",
								"enum": []string{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical},
							},
							"framework": map[string]any{
								"type":        "string",
								"description": "Compliance framework this issue relates to",
							},
							"description": map[string]any{
								"type":        "string",
								"description": "Detailed description of the issue",
							},
							"location": map[string]any{
								"type":        "string",
								"description": "Where in the document the issue was found",
							},
							"recommendation": map[string]any{
								"type":        "string",
								"description": "Recommended action to address the issue",
							},
							"confidence": map[string]any{
								"type":    "number",
								"minimum": 0,
								"maximum": 1,
							},
						},
						"required": []string{"severity", "description", "recommendation"},
					},
				},
				"missing_clauses": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Required clauses not found in the document",
				},
				"recommendations": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "General recommendations for compliance improvement",
				},
				"risk_score": map[string]any{
					"type":        "number",
					"minimum":     0,
					"maximum":     1,
					"description": "Overall risk score, 0 = low risk, 1 = high risk",
				},
				"compliance_status": map[string]any{
					"type": "string",
					"enum": []string{StatusCompliant, StatusPartiallyCompliant, StatusNonCompliant},
				},
			},
			"required": []string{"issues", "missing_clauses", "risk_score"},
		},
	}
}

// structuredAnalysis is the wire shape of the function-call arguments.
// Issues stay untyped here; normalizeIssue converts them at one boundary.
type structuredAnalysis struct {
	Issues           []map[string]any `json:"issues"`
	ComplianceIssues []map[string]any `json:"compliance_issues"` // older prompt revisions used this key
	MissingClauses   []string         `json:"missing_clauses"`
	Recommendations  []string         `json:"recommendations"`
	RiskScore        *float64         `json:"risk_score"`
	Status           string           `json:"compliance_status"`
}

func (s *structuredAnalysis) rawIssues() []map[string]any {
	if len(s.Issues) > 0 {
		return s.Issues
	}
	return s.ComplianceIssues
}
