// Package ui holds the console presentation layer: lipgloss styles, the
// banner, colored status messages and the live progress view used while a
// module sequence runs.
package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	accentColor  = lipgloss.Color("#7D56F4")
	successColor = lipgloss.Color("#04B575")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	subtleColor  = lipgloss.Color("#6B7280")

	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(accentColor)

	highlightStyle = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	subtleStyle    = lipgloss.NewStyle().Foreground(subtleColor)
)

// IsInteractive reports whether stdout is a terminal.
func IsInteractive() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

// ShowBanner prints the application banner with target context.
func ShowBanner(version, target, mode string) {
	title := bannerStyle.Render("msfauditor v" + version)
	info := fmt.Sprintf("%s %s   %s %s",
		subtleStyle.Render("target:"), highlightStyle.Render(target),
		subtleStyle.Render("mode:"), highlightStyle.Render(mode))

	fmt.Println(lipgloss.JoinVertical(lipgloss.Left, title, info))
	fmt.Println()
}
