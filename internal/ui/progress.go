package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"msfauditor/internal/runner"
)

// UpdateMsg carries a module status transition into the progress view.
type UpdateMsg struct {
	Index    int
	Status   runner.Status
	Duration time.Duration
	Err      error
}

// doneMsg stops the progress view.
type doneMsg struct{}

type moduleLine struct {
	path     string
	status   runner.Status
	duration time.Duration
	err      error
}

type progressModel struct {
	spinner spinner.Model
	target  string
	lines   []moduleLine
	cancel  context.CancelFunc
	done    bool
}

func newProgressModel(target string, specs []runner.ModuleSpec, cancel context.CancelFunc) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accentColor)

	lines := make([]moduleLine, len(specs))
	for i, spec := range specs {
		lines[i] = moduleLine{path: spec.Path, status: runner.StatusPending}
	}

	return progressModel{spinner: s, target: target, lines: lines, cancel: cancel}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			// Cancel the run; the driver sends doneMsg once the runner
			// winds down.
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil
	case UpdateMsg:
		if msg.Index >= 0 && msg.Index < len(m.lines) {
			m.lines[msg.Index].status = msg.Status
			m.lines[msg.Index].duration = msg.Duration
			m.lines[msg.Index].err = msg.Err
		}
		return m, nil
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	default:
		return m, nil
	}
}

func (m progressModel) View() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Running %d module(s) against %s\n\n", len(m.lines), highlightStyle.Render(m.target))

	for _, line := range m.lines {
		var mark string
		switch line.status {
		case runner.StatusRunning:
			mark = m.spinner.View()
		case runner.StatusCompleted:
			mark = lipgloss.NewStyle().Foreground(successColor).Render("✓")
		case runner.StatusFailed:
			mark = lipgloss.NewStyle().Foreground(errorColor).Render("✗")
		case runner.StatusTimeout:
			mark = lipgloss.NewStyle().Foreground(warningColor).Render("!")
		default:
			mark = subtleStyle.Render("·")
		}

		fmt.Fprintf(&b, " %s %s", mark, line.path)
		if line.duration > 0 {
			fmt.Fprintf(&b, " %s", subtleStyle.Render(line.duration.Round(time.Millisecond).String()))
		}
		if line.err != nil {
			fmt.Fprintf(&b, " %s", subtleStyle.Render("("+line.err.Error()+")"))
		}
		b.WriteString("\n")
	}

	if !m.done {
		b.WriteString(subtleStyle.Render("\nctrl+c to cancel\n"))
	}
	return b.String()
}

// Progress drives the live sequence view. It runs the bubbletea program in
// the background; the runner feeds it through the StatusFunc.
type Progress struct {
	program *tea.Program
}

// StartProgress launches the progress view. cancel is invoked when the
// operator hits ctrl+c inside the view.
func StartProgress(target string, specs []runner.ModuleSpec, cancel context.CancelFunc) *Progress {
	model := newProgressModel(target, specs, cancel)
	program := tea.NewProgram(model)
	go func() {
		// Rendering errors only cost the live view, never the run.
		_, _ = program.Run()
	}()
	return &Progress{program: program}
}

// StatusFunc adapts the runner callback into view updates.
func (p *Progress) StatusFunc() runner.StatusFunc {
	return func(index int, _ runner.ModuleSpec, status runner.Status, d time.Duration, err error) {
		p.program.Send(UpdateMsg{Index: index, Status: status, Duration: d, Err: err})
	}
}

// Stop ends the view and waits for the final frame to flush.
func (p *Progress) Stop() {
	p.program.Send(doneMsg{})
	p.program.Wait()
}
