package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"msfauditor/internal/runner"
)

func newModulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modules",
		Short: "Inspect framework modules",
	}
	cmd.AddCommand(newModulesInfoCmd())
	return cmd
}

func newModulesInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <module-path>",
		Short: "Show module metadata and options from the RPC service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModulesInfo(args[0])
		},
	}
}

func runModulesInfo(modulePath string) error {
	setupLogging()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	moduleType, name := runner.ResolveType(runner.ModuleSpec{Path: modulePath})

	client := newRPCClient(cfg)
	if err := client.Login(ctx); err != nil {
		return fmt.Errorf("connecting to Metasploit RPC: %w", err)
	}
	defer client.Logout(ctx)

	info, err := client.ModuleInfo(ctx, moduleType, name)
	if err != nil {
		return fmt.Errorf("module %q not found: %w", modulePath, err)
	}

	fmt.Printf("Name:        %s\n", info.Name)
	fmt.Printf("Path:        %s/%s\n", moduleType, name)
	if info.Rank != nil {
		fmt.Printf("Rank:        %v\n", info.Rank)
	}
	if len(info.Authors) > 0 {
		fmt.Printf("Authors:     %s\n", strings.Join(info.Authors, ", "))
	}
	fmt.Printf("Description: %s\n", info.Description)

	options, err := client.ModuleOptions(ctx, moduleType, name)
	if err != nil {
		return fmt.Errorf("fetching module options: %w", err)
	}
	if len(options) == 0 {
		return nil
	}

	names := make([]string, 0, len(options))
	for optName := range options {
		names = append(names, optName)
	}
	sort.Strings(names)

	fmt.Println("\nOptions:")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Name", "Type", "Required", "Default", "Description"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)

	for _, optName := range names {
		opt := options[optName]
		if opt.Advanced {
			continue
		}
		required := ""
		if opt.Required {
			required = "yes"
		}
		defaultValue := ""
		if opt.Default != nil {
			defaultValue = fmt.Sprintf("%v", opt.Default)
		}
		table.Append([]string{optName, opt.Type, required, defaultValue, opt.Desc})
	}
	table.Render()

	return nil
}
