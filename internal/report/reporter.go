// Package report accumulates run results and renders them as console
// summaries and JSON/YAML/plain-text report files.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"msfauditor/internal/ai"
	"msfauditor/internal/runner"
)

// Report is the serialized form of a run.
type Report struct {
	Target      string          `json:"target" yaml:"target"`
	GeneratedAt string          `json:"generated_at" yaml:"generated_at"`
	Results     []runner.Result `json:"results" yaml:"results"`
	AIAnalysis  *ai.Analysis    `json:"ai_analysis,omitempty" yaml:"ai_analysis,omitempty"`
}

// Reporter collects results during a run.
type Reporter struct {
	target   string
	results  []runner.Result
	analysis *ai.Analysis
}

// NewReporter creates a reporter for a target.
func NewReporter(target string) *Reporter {
	return &Reporter{target: target}
}

// Add records one result.
func (r *Reporter) Add(result runner.Result) {
	r.results = append(r.results, result)
}

// AddAll records a batch of results.
func (r *Reporter) AddAll(results []runner.Result) {
	r.results = append(r.results, results...)
}

// Results returns everything recorded so far.
func (r *Reporter) Results() []runner.Result {
	return r.results
}

// SetAnalysis attaches an AI analysis to the report.
func (r *Reporter) SetAnalysis(analysis *ai.Analysis) {
	r.analysis = analysis
}

// Counts returns completed and failed-or-timed-out totals.
func (r *Reporter) Counts() (completed, failed int) {
	for _, result := range r.results {
		if result.Status == runner.StatusCompleted {
			completed++
		} else {
			failed++
		}
	}
	return completed, failed
}

func (r *Reporter) report() Report {
	return Report{
		Target:      r.target,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Results:     r.results,
		AIAnalysis:  r.analysis,
	}
}

// PrintSummary writes the summary table to w.
func (r *Reporter) PrintSummary(w io.Writer) {
	if len(r.results) == 0 {
		fmt.Fprintln(w, "No results to display")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Module", "Type", "Target", "Status", "Duration"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)

	for _, result := range r.results {
		table.Append([]string{
			result.Module,
			result.Type,
			result.Target,
			string(result.Status),
			fmt.Sprintf("%.2fs", result.DurationSeconds),
		})
	}
	table.Render()

	completed, failed := r.Counts()
	fmt.Fprintf(w, "\nCompleted: %d  Failed: %d  Total: %d\n", completed, failed, len(r.results))

	if r.analysis != nil {
		fmt.Fprintf(w, "\nRisk level: %s\n", r.analysis.RiskLevel)
		if r.analysis.Summary != "" {
			fmt.Fprintf(w, "%s\n", r.analysis.Summary)
		}
	}
}

// Save writes the report to path, choosing the format by extension:
// .json, .yaml/.yml, anything else plain text.
func (r *Reporter) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return r.SaveJSON(path)
	case ".yaml", ".yml":
		return r.SaveYAML(path)
	default:
		return r.SaveText(path)
	}
}

// SaveJSON writes the report as indented JSON.
func (r *Reporter) SaveJSON(path string) error {
	data, err := json.MarshalIndent(r.report(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// SaveYAML writes the report as YAML.
func (r *Reporter) SaveYAML(path string) error {
	data, err := yaml.Marshal(r.report())
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// SaveText writes a human-readable plain text report.
func (r *Reporter) SaveText(path string) error {
	var b strings.Builder
	rule := strings.Repeat("=", 80)

	b.WriteString(rule + "\n")
	b.WriteString("MSFAUDITOR RUN REPORT\n")
	b.WriteString(rule + "\n\n")
	fmt.Fprintf(&b, "Target: %s\n", r.target)
	fmt.Fprintf(&b, "Generated: %s\n\n", time.Now().UTC().Format(time.RFC3339))

	for i, result := range r.results {
		fmt.Fprintf(&b, "Result %d\n", i+1)
		b.WriteString(strings.Repeat("-", 80) + "\n")
		fmt.Fprintf(&b, "Module: %s\n", result.Module)
		fmt.Fprintf(&b, "Type: %s\n", result.Type)
		fmt.Fprintf(&b, "Target: %s\n", result.Target)
		fmt.Fprintf(&b, "Status: %s\n", result.Status)
		fmt.Fprintf(&b, "Duration: %.2fs\n", result.DurationSeconds)
		fmt.Fprintf(&b, "Timestamp: %s\n", result.Timestamp)
		if result.Error != "" {
			fmt.Fprintf(&b, "Error: %s\n", result.Error)
		}
		if result.Output != "" {
			fmt.Fprintf(&b, "\nOutput:\n%s\n", result.Output)
		}
		b.WriteString("\n" + rule + "\n\n")
	}

	if r.analysis != nil {
		b.WriteString("AI ANALYSIS\n")
		b.WriteString(rule + "\n")
		fmt.Fprintf(&b, "Risk level: %s\n", r.analysis.RiskLevel)
		fmt.Fprintf(&b, "Summary: %s\n", r.analysis.Summary)
		for _, vuln := range r.analysis.Vulnerabilities {
			fmt.Fprintf(&b, "\n[%s] %s\n", vuln.Severity, vuln.Title)
			fmt.Fprintf(&b, "  %s\n", vuln.Description)
		}
		for _, rec := range r.analysis.Recommendations {
			fmt.Fprintf(&b, "\n(%s) %s\n", rec.Priority, rec.Action)
			if rec.Rationale != "" {
				fmt.Fprintf(&b, "  %s\n", rec.Rationale)
			}
		}
		if len(r.analysis.PriorityActions) > 0 {
			b.WriteString("\nPriority actions:\n")
			for _, action := range r.analysis.PriorityActions {
				fmt.Fprintf(&b, "  - %s\n", action)
			}
		}
	}

	return os.WriteFile(path, []byte(b.String()), 0644)
}
