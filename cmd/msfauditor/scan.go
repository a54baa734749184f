package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"msfauditor/internal/config"
	"msfauditor/internal/report"
	"msfauditor/internal/runner"
	"msfauditor/internal/ui"
)

func newScanCmd() *cobra.Command {
	var (
		moduleFlag string
		forceFlag  bool
	)

	cmd := &cobra.Command{
		Use:   "scan <target>",
		Short: "Run the configured auxiliary modules against a target",
		Long: `Run auxiliary modules from the configured allow-list against the target.
Requires a running Metasploit RPC service:

    msfrpcd -P <password> -U msf -a 127.0.0.1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(args[0], moduleFlag, forceFlag)
		},
	}

	cmd.Flags().StringVarP(&moduleFlag, "module", "m", "", "specific module to run (overrides the allow-list)")
	cmd.Flags().BoolVar(&forceFlag, "force", false, "permit --module values outside the allow-list")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "report file (.json/.yaml/.yml, anything else plain text)")

	return cmd
}

func runScan(target, moduleFlag string, force bool) error {
	setupLogging()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	specs, err := scanSpecs(cfg, moduleFlag, force)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if useTUI() {
		ui.ShowBanner(version, target, "scan")
	}

	run := newRunner(cfg)
	if err := run.Connect(ctx); err != nil {
		return err
	}
	defer run.Close()

	reporter := report.NewReporter(target)
	reporter.AddAll(executeSequence(ctx, cancel, run, specs, target))

	fmt.Println()
	reporter.PrintSummary(os.Stdout)

	if err := saveReports(reporter, cfg, target); err != nil {
		return err
	}

	if ctx.Err() != nil {
		return errInterrupted
	}
	ui.Success("scan completed")
	return nil
}

// scanSpecs resolves which modules to run. A --module outside the
// allow-list is refused unless --force: an allow-list that only warns is
// no allow-list at all.
func scanSpecs(cfg *config.Config, moduleFlag string, force bool) ([]runner.ModuleSpec, error) {
	if moduleFlag != "" {
		allowed := false
		for _, module := range cfg.AllowedModules {
			if module == moduleFlag {
				allowed = true
				break
			}
		}
		if !allowed {
			if !force {
				return nil, fmt.Errorf("module %q is not in allowed_modules (use --force to run it anyway)", moduleFlag)
			}
			ui.Warn("module %q is not in allowed_modules, running due to --force", moduleFlag)
		}
		return []runner.ModuleSpec{{Path: moduleFlag}}, nil
	}

	if len(cfg.AllowedModules) == 0 {
		return nil, fmt.Errorf("no modules specified: add allowed_modules to the config or use --module")
	}

	specs := make([]runner.ModuleSpec, 0, len(cfg.AllowedModules))
	for _, module := range cfg.AllowedModules {
		specs = append(specs, runner.ModuleSpec{Path: module})
	}
	return specs, nil
}

// saveReports writes the report: to the explicit --output path when given,
// otherwise as JSON and text into a fresh report workspace.
func saveReports(reporter *report.Reporter, cfg *config.Config, target string) error {
	if outputPath != "" {
		if err := reporter.Save(outputPath); err != nil {
			return err
		}
		ui.Success("report saved to %s", outputPath)
		return nil
	}

	workspace, err := report.CreateWorkspace(cfg.Report.BaseDir, target)
	if err != nil {
		return err
	}
	for _, name := range []string{"report.json", "report.txt"} {
		if err := reporter.Save(filepath.Join(workspace, name)); err != nil {
			return err
		}
	}
	ui.Success("reports saved to %s", workspace)
	return nil
}
