// msfauditor is a command-line orchestrator for authorized security
// assessments: it runs Metasploit modules against a single target over the
// framework's RPC service and renders the results as reports. Module
// selection comes from a configured allow-list (scan) or an LLM
// recommendation step (aiscan).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"msfauditor/internal/config"
	"msfauditor/internal/msfrpc"
	"msfauditor/internal/runner"
	"msfauditor/internal/ui"
)

const version = "0.3.0"

var errInterrupted = errors.New("interrupted")

var (
	cfgFile    string
	outputPath string
	debugMode  bool
	plainMode  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "msfauditor",
		Short:         "Metasploit module orchestrator for authorized security assessments",
		Long: `msfauditor connects to a running Metasploit RPC service (msfrpcd),
executes framework modules against a target and renders reports.
Modules come from a configured allow-list (scan) or from an AI
recommendation step (aiscan).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "msfauditor.json", "configuration file path")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&plainMode, "plain", false, "disable the live progress view")

	rootCmd.AddCommand(
		newVersionCmd(),
		newInfoCmd(),
		newScanCmd(),
		newAIScanCmd(),
		newModulesCmd(),
		newDoctorCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errInterrupted) {
			ui.Warn("interrupted")
			os.Exit(130)
		}
		ui.Error("%v", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show important usage information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(`msfauditor executes Metasploit modules through a remote RPC service.
Use it only against systems you are explicitly authorized to test, within
the agreed assessment scope. Start the RPC service with:

    msfrpcd -P <password> -U msf -a 127.0.0.1`)
		},
	}
}

// signalContext returns a context cancelled by SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func setupLogging() {
	if debugMode {
		log.SetLevel(log.DebugLevel)
	}
}

// useTUI reports whether the live progress view should run. Debug mode
// keeps plain line output so log records stay readable.
func useTUI() bool {
	return ui.IsInteractive() && !plainMode && !debugMode
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("%w\n\ncreate one based on msfauditor.sample.json", err)
	}
	return cfg, nil
}

func newRPCClient(cfg *config.Config) *msfrpc.Client {
	return msfrpc.New(msfrpc.Options{
		Host:     cfg.MSF.Host,
		Port:     cfg.MSF.Port,
		Username: cfg.MSF.Username,
		Password: cfg.MSF.Password,
		SSL:      cfg.MSF.SSL,
	})
}

func newRunner(cfg *config.Config) *runner.Runner {
	return runner.New(newRPCClient(cfg), time.Duration(cfg.Timeout)*time.Second)
}

// executeSequence runs the specs with either the TUI progress view or
// plain status lines.
func executeSequence(ctx context.Context, cancel context.CancelFunc, run *runner.Runner, specs []runner.ModuleSpec, target string) []runner.Result {
	if useTUI() {
		progress := ui.StartProgress(target, specs, cancel)
		results := run.RunSequence(ctx, specs, target, progress.StatusFunc())
		progress.Stop()
		return results
	}

	return run.RunSequence(ctx, specs, target, func(i int, spec runner.ModuleSpec, status runner.Status, d time.Duration, err error) {
		switch status {
		case runner.StatusRunning:
			ui.Step("running %s", spec.Path)
		case runner.StatusCompleted:
			ui.Success("%s completed in %s", spec.Path, d.Round(time.Millisecond))
		case runner.StatusTimeout:
			ui.Warn("%s timed out after %s", spec.Path, d.Round(time.Second))
		case runner.StatusFailed:
			ui.Error("%s failed: %v", spec.Path, err)
		}
	})
}
