package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"msfauditor/internal/runner"
)

// Vulnerability is one finding in an analysis.
type Vulnerability struct {
	Title          string `json:"title" yaml:"title"`
	Severity       string `json:"severity" yaml:"severity"`
	Description    string `json:"description" yaml:"description"`
	AffectedTarget string `json:"affected_target" yaml:"affected_target"`
}

// Recommendation is one remediation step in an analysis.
type Recommendation struct {
	Priority  string `json:"priority" yaml:"priority"`
	Action    string `json:"action" yaml:"action"`
	Rationale string `json:"rationale" yaml:"rationale"`
}

// Analysis is the parsed AI review of a run's results.
type Analysis struct {
	Summary         string           `json:"summary" yaml:"summary"`
	Vulnerabilities []Vulnerability  `json:"vulnerabilities" yaml:"vulnerabilities"`
	RiskLevel       string           `json:"risk_level" yaml:"risk_level"`
	Recommendations []Recommendation `json:"recommendations" yaml:"recommendations"`
	PriorityActions []string         `json:"priority_actions" yaml:"priority_actions"`
}

// Analyzer asks an LLM to review run results.
type Analyzer struct {
	client Client
}

// NewAnalyzer wraps a provider client.
func NewAnalyzer(client Client) *Analyzer {
	return &Analyzer{client: client}
}

const analyzerSystem = "You are a cybersecurity expert analyzing penetration test results. " +
	"Provide detailed, actionable security analysis in JSON format."

// AnalyzeResults reviews the results of a run. A malformed model response
// is not an error: the raw text becomes the summary so the report still
// carries whatever the model said.
func (a *Analyzer) AnalyzeResults(ctx context.Context, results []runner.Result) (*Analysis, error) {
	if len(results) == 0 {
		return &Analysis{Summary: "No scan results to analyze.", RiskLevel: "unknown"}, nil
	}

	raw, err := a.client.Complete(ctx, Request{
		System:      analyzerSystem,
		Prompt:      buildAnalysisPrompt(results),
		Temperature: 0.3,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("result analysis: %w", err)
	}

	return ParseAnalysis(raw), nil
}

// ParseAnalysis decodes an analysis response, falling back to the raw text
// as the summary when the body is not valid JSON.
func ParseAnalysis(raw string) *Analysis {
	analysis := &Analysis{}
	if err := json.Unmarshal([]byte(stripFences(raw)), analysis); err != nil {
		return &Analysis{Summary: raw, RiskLevel: "unknown"}
	}
	if analysis.RiskLevel == "" {
		analysis.RiskLevel = "unknown"
	}
	return analysis
}

func buildAnalysisPrompt(results []runner.Result) string {
	var b strings.Builder

	b.WriteString(`You are a security analyst reviewing Metasploit module run results.
Analyze the following results and provide:

1. A summary of findings
2. List of potential vulnerabilities identified
3. Risk level assessment (Critical, High, Medium, Low, Info)
4. Specific remediation recommendations
5. Priority actions

Scan Results:
`)

	for i, result := range results {
		fmt.Fprintf(&b, "\n--- Result %d ---\n", i+1)
		fmt.Fprintf(&b, "Module: %s\n", result.Module)
		fmt.Fprintf(&b, "Target: %s\n", result.Target)
		fmt.Fprintf(&b, "Status: %s\n", result.Status)
		if result.Error != "" {
			fmt.Fprintf(&b, "Error: %s\n", result.Error)
		}
		if result.Output != "" {
			fmt.Fprintf(&b, "Details:\n%s\n", result.Output)
		}
	}

	b.WriteString(`
Please provide your analysis in the following JSON format:
{
  "summary": "Brief overview of findings",
  "vulnerabilities": [
    {
      "title": "Vulnerability name",
      "severity": "Critical|High|Medium|Low|Info",
      "description": "Detailed description",
      "affected_target": "Target identifier"
    }
  ],
  "risk_level": "Critical|High|Medium|Low|Info",
  "recommendations": [
    {
      "priority": "High|Medium|Low",
      "action": "Specific action to take",
      "rationale": "Why this is important"
    }
  ],
  "priority_actions": ["Action 1", "Action 2"]
}

Only respond with valid JSON, no additional text.
`)

	return b.String()
}
