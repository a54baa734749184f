package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"msfauditor/internal/config"
	"msfauditor/internal/doctor"
	"msfauditor/internal/ui"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the RPC service, AI credentials and local system",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor()
		},
	}
}

// runDoctor works without a config file so it can diagnose a fresh install.
func runDoctor() error {
	setupLogging()

	var cfg *config.Config
	if _, err := os.Stat(cfgFile); err == nil {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		ui.Step("using config %s", cfgFile)
	} else {
		cfg = config.Defaults()
		ui.Warn("no config file at %s, checking defaults", cfgFile)
	}

	ctx, cancel := signalContext()
	defer cancel()

	checks, err := doctor.Run(ctx, cfg)
	fmt.Println()
	for _, check := range checks {
		if check.OK {
			ui.Success("%-14s %s", check.Name, check.Detail)
		} else {
			ui.Error("%-14s %s", check.Name, check.Detail)
		}
	}
	fmt.Println()

	if err != nil {
		return fmt.Errorf("environment is not ready: %w", err)
	}
	ui.Success("environment looks ready")
	return nil
}
