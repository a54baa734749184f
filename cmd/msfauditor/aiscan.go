package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"msfauditor/internal/ai"
	"msfauditor/internal/report"
	"msfauditor/internal/runner"
	"msfauditor/internal/ui"
)

func newAIScanCmd() *cobra.Command {
	var (
		priorityFlag string
		autoRun      bool
	)

	cmd := &cobra.Command{
		Use:   "aiscan <target>",
		Short: "AI-assisted module selection and execution",
		Long: `Ask the configured AI provider which Metasploit modules fit the target,
confirm the plan, then execute it. The provider analyzes the target
(URL, IP or hostname) and recommends modules across all framework types.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAIScan(args[0], priorityFlag, autoRun)
		},
	}

	cmd.Flags().StringVarP(&priorityFlag, "priority", "p", "high", "minimum module priority to keep (high/medium/low)")
	cmd.Flags().BoolVarP(&autoRun, "auto-run", "a", false, "run the selected modules without confirmation")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "report file (.json/.yaml/.yml, anything else plain text)")

	return cmd
}

func runAIScan(target, priority string, autoRun bool) error {
	setupLogging()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	apiKey := cfg.AI.ResolveAPIKey()
	if !cfg.AI.Enabled && apiKey == "" {
		return fmt.Errorf("AI is not configured: set ai.enabled/ai.api_key in the config " +
			"or export OPENAI_API_KEY, ANTHROPIC_API_KEY or GEMINI_API_KEY")
	}

	ctx, cancel := signalContext()
	defer cancel()

	if useTUI() {
		ui.ShowBanner(version, target, "aiscan")
	}

	client, err := ai.NewClient(ctx, cfg.AI.Provider, apiKey, cfg.AI.DefaultModel())
	if err != nil {
		return err
	}

	ui.Step("consulting %s for module selection", client.Name())
	plan, err := ai.NewSelector(client).SelectModules(ctx, target, nil)
	if err != nil {
		return err
	}

	displayPlan(plan)

	plan = ai.FilterPriority(plan, strings.ToLower(priority))
	selected := ai.Flatten(plan)
	if len(selected) == 0 {
		ui.Warn("no modules selected at priority %q or above", priority)
		return nil
	}

	if !autoRun {
		if !confirm(fmt.Sprintf("Run %d selected module(s) against %s?", len(selected), target)) {
			ui.Warn("scan cancelled")
			return nil
		}
	}

	specs := make([]runner.ModuleSpec, 0, len(selected))
	for _, sel := range selected {
		specs = append(specs, runner.ModuleSpec{
			Path:     sel.Entry.Module,
			Type:     sel.Type,
			Options:  sel.Entry.Options,
			Priority: sel.Entry.Priority,
		})
	}

	run := newRunner(cfg)
	if err := run.Connect(ctx); err != nil {
		return err
	}
	defer run.Close()

	reporter := report.NewReporter(target)
	reporter.AddAll(executeSequence(ctx, cancel, run, specs, target))

	if cfg.AI.Enabled && ctx.Err() == nil {
		ui.Step("analyzing results with %s", client.Name())
		analysis, err := ai.NewAnalyzer(client).AnalyzeResults(ctx, reporter.Results())
		if err != nil {
			ui.Warn("AI analysis failed: %v", err)
		} else {
			reporter.SetAnalysis(analysis)
		}
	}

	fmt.Println()
	reporter.PrintSummary(os.Stdout)

	if err := saveReports(reporter, cfg, target); err != nil {
		return err
	}

	if ctx.Err() != nil {
		return errInterrupted
	}
	ui.Success("AI-assisted scan completed")
	return nil
}

func displayPlan(plan *ai.Plan) {
	if plan.TargetAnalysis != "" {
		fmt.Println("\nTarget analysis:")
		fmt.Printf("  %s\n", plan.TargetAnalysis)
	}

	if len(plan.ExecutionOrder) > 0 {
		fmt.Println("\nRecommended execution order:")
		for i, phase := range plan.ExecutionOrder {
			fmt.Printf("  %d. %s\n", i+1, phase)
		}
	}

	for _, moduleType := range ai.ModuleTypes {
		entries := plan.Modules[moduleType]
		if len(entries) == 0 {
			continue
		}
		fmt.Printf("\n%s modules (%d):\n", strings.ToUpper(moduleType), len(entries))
		for i, entry := range entries {
			fmt.Printf("  [%s] %d. %s\n", strings.ToUpper(entry.Priority), i+1, entry.Module)
			if entry.Rationale != "" {
				fmt.Printf("       rationale: %s\n", entry.Rationale)
			}
			for name, value := range entry.Options {
				fmt.Printf("       option %s = %s\n", name, runner.MaskValue(name, value))
			}
			if entry.RecommendedPayload != "" {
				fmt.Printf("       payload: %s\n", entry.RecommendedPayload)
			}
		}
	}
	fmt.Printf("\nTotal: %d module(s)\n", plan.Count())
}

func confirm(question string) bool {
	fmt.Printf("\n%s [y/N] ", question)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
