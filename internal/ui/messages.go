package ui

import (
	"fmt"

	"github.com/fatih/color"
)

var (
	successMark = color.New(color.FgGreen, color.Bold).SprintFunc()
	warnMark    = color.New(color.FgYellow, color.Bold).SprintFunc()
	errorMark   = color.New(color.FgRed, color.Bold).SprintFunc()
	stepMark    = color.New(color.FgCyan, color.Bold).SprintFunc()
)

// Success prints a completed-action message.
func Success(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", successMark("✓"), fmt.Sprintf(format, args...))
}

// Warn prints a warning message.
func Warn(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", warnMark("!"), fmt.Sprintf(format, args...))
}

// Error prints a failure message.
func Error(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", errorMark("✗"), fmt.Sprintf(format, args...))
}

// Step prints an in-progress action message.
func Step(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", stepMark("→"), fmt.Sprintf(format, args...))
}
