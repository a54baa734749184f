package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"msfauditor/internal/ai"
	"msfauditor/internal/runner"
)

func sampleResults() []runner.Result {
	return []runner.Result{
		{
			Module:          "auxiliary/scanner/http/http_version",
			Type:            "auxiliary",
			Target:          "10.0.0.1",
			Status:          runner.StatusCompleted,
			DurationSeconds: 2.5,
			Output:          "Apache 2.4.41",
			Timestamp:       "2026-01-15T10:00:00Z",
		},
		{
			Module:          "auxiliary/scanner/ssh/ssh_version",
			Type:            "auxiliary",
			Target:          "10.0.0.1",
			Status:          runner.StatusFailed,
			DurationSeconds: 0.3,
			Error:           "connection refused",
			Timestamp:       "2026-01-15T10:00:03Z",
		},
	}
}

func TestCounts(t *testing.T) {
	r := NewReporter("10.0.0.1")
	r.AddAll(sampleResults())
	r.Add(runner.Result{Status: runner.StatusTimeout})

	completed, failed := r.Counts()
	if completed != 1 {
		t.Errorf("completed = %d, want 1", completed)
	}
	if failed != 2 {
		t.Errorf("failed = %d, want 2", failed)
	}
}

func TestPrintSummary(t *testing.T) {
	r := NewReporter("10.0.0.1")
	r.AddAll(sampleResults())
	r.SetAnalysis(&ai.Analysis{Summary: "one old service", RiskLevel: "Medium"})

	var b strings.Builder
	r.PrintSummary(&b)
	out := b.String()

	for _, want := range []string{
		"auxiliary/scanner/http/http_version",
		"completed",
		"failed",
		"Completed: 1  Failed: 1  Total: 2",
		"Risk level: Medium",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestPrintSummaryEmpty(t *testing.T) {
	var b strings.Builder
	NewReporter("10.0.0.1").PrintSummary(&b)
	if !strings.Contains(b.String(), "No results") {
		t.Errorf("empty summary = %q", b.String())
	}
}

func TestSaveJSON(t *testing.T) {
	r := NewReporter("10.0.0.1")
	r.AddAll(sampleResults())

	path := filepath.Join(t.TempDir(), "report.json")
	if err := r.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if report.Target != "10.0.0.1" {
		t.Errorf("Target = %q", report.Target)
	}
	if len(report.Results) != 2 {
		t.Errorf("Results = %d, want 2", len(report.Results))
	}
	if report.AIAnalysis != nil {
		t.Error("AIAnalysis present without SetAnalysis")
	}
	if report.GeneratedAt == "" {
		t.Error("GeneratedAt is empty")
	}
}

func TestSaveYAML(t *testing.T) {
	r := NewReporter("10.0.0.1")
	r.AddAll(sampleResults())
	r.SetAnalysis(&ai.Analysis{Summary: "findings", RiskLevel: "Low"})

	path := filepath.Join(t.TempDir(), "report.yaml")
	if err := r.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	var report Report
	if err := yaml.Unmarshal(data, &report); err != nil {
		t.Fatalf("report is not valid YAML: %v", err)
	}
	if report.AIAnalysis == nil || report.AIAnalysis.RiskLevel != "Low" {
		t.Errorf("AIAnalysis = %+v", report.AIAnalysis)
	}
}

func TestSaveText(t *testing.T) {
	r := NewReporter("10.0.0.1")
	r.AddAll(sampleResults())
	r.SetAnalysis(&ai.Analysis{
		Summary:   "one finding",
		RiskLevel: "Medium",
		Vulnerabilities: []ai.Vulnerability{
			{Title: "Old Apache", Severity: "Medium", Description: "outdated"},
		},
		PriorityActions: []string{"patch apache"},
	})

	path := filepath.Join(t.TempDir(), "report.txt")
	if err := r.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	text := string(data)

	for _, want := range []string{
		"MSFAUDITOR RUN REPORT",
		"Target: 10.0.0.1",
		"Module: auxiliary/scanner/http/http_version",
		"Apache 2.4.41",
		"Error: connection refused",
		"AI ANALYSIS",
		"[Medium] Old Apache",
		"- patch apache",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("text report missing %q", want)
		}
	}
}

func TestSaveCreatesDirectories(t *testing.T) {
	r := NewReporter("10.0.0.1")
	r.AddAll(sampleResults())

	path := filepath.Join(t.TempDir(), "nested", "deeper", "report.json")
	if err := r.Save(path); err != nil {
		t.Fatalf("Save() into missing directory error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("report not written: %v", err)
	}
}

func TestCreateWorkspace(t *testing.T) {
	base := t.TempDir()
	dir, err := CreateWorkspace(base, "https://example.com:8443/app?x=1")
	if err != nil {
		t.Fatalf("CreateWorkspace() error = %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("workspace not created: %v", err)
	}

	name := filepath.Base(dir)
	if strings.ContainsAny(name, "/:?&=") {
		t.Errorf("workspace name %q contains unsanitized characters", name)
	}
	if !strings.HasPrefix(name, "https-example.com-8443-app-x-1-") {
		t.Errorf("workspace name = %q", name)
	}
}

func TestCreateWorkspaceUnique(t *testing.T) {
	base := t.TempDir()
	first, err := CreateWorkspace(base, "10.0.0.1")
	if err != nil {
		t.Fatalf("CreateWorkspace() error = %v", err)
	}
	second, err := CreateWorkspace(base, "10.0.0.1")
	if err != nil {
		t.Fatalf("CreateWorkspace() error = %v", err)
	}
	if first == second {
		t.Errorf("two workspaces share a path: %s", first)
	}
}

func TestSanitizeTargetEmpty(t *testing.T) {
	if got := sanitizeTarget("://"); got != "target" {
		t.Errorf("sanitizeTarget(\"://\") = %q, want target", got)
	}
}
