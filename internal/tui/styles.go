package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/ipu-gate/internal/message"
	"github.com/kingrea/ipu-gate/internal/report"
	"github.com/kingrea/ipu-gate/internal/workflow/engine"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)
	labelStyleComplete = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	labelStyleFailed   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	labelStyleRunning  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	labelStyleHalted   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	labelStyleSkipped  = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	labelStyleDefault  = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	detailTextStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	footerStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).MarginTop(1)
	boxStyle           = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#444444")).
				Padding(0, 1)
)

func phaseLabel(state engine.PhaseState) string {
	text := strings.ToUpper(string(state))
	switch state {
	case engine.PhaseStateComplete:
		return labelStyleComplete.Render(text)
	case engine.PhaseStateFailed:
		return labelStyleFailed.Render(text)
	case engine.PhaseStateRunning:
		return labelStyleRunning.Render(text)
	case engine.PhaseStateSkipped:
		return labelStyleSkipped.Render(text)
	default:
		return labelStyleDefault.Render(text)
	}
}

func statusLabel(status engine.EngineStatus) string {
	text := strings.ToUpper(string(status))
	switch status {
	case engine.EngineStatusComplete:
		return labelStyleComplete.Render(text)
	case engine.EngineStatusInhibited:
		return labelStyleHalted.Render(text)
	case engine.EngineStatusError:
		return labelStyleFailed.Render(text)
	default:
		return labelStyleRunning.Render(text)
	}
}

func renderPhases(state engine.State) string {
	if len(state.Phases) == 0 {
		return detailTextStyle.Render("waiting for the engine...")
	}
	lines := make([]string, 0, len(state.Phases))
	for _, phase := range state.Phases {
		line := fmt.Sprintf("%-22s %s", phase.Name, phaseLabel(phase.State))
		if n := len(phase.Actors); n > 0 {
			line += detailTextStyle.Render(fmt.Sprintf("  %d actor(s)", n))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func renderReport(r report.Report, width int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s  %s\n", r.RunID, statusLabel(r.Status))
	if r.Reason != "" {
		b.WriteString(detailTextStyle.Render(r.Reason) + "\n")
	}
	b.WriteString("\n")
	entries := r.Entries()
	if len(entries) == 0 {
		b.WriteString(labelStyleComplete.Render("No inhibitors or check results reported.") + "\n")
	}
	for _, e := range entries {
		if e.Kind == message.KindInhibitor {
			b.WriteString(labelStyleFailed.Render("INHIBITOR ") + e.Summary + "\n")
		} else {
			b.WriteString(labelStyleHalted.Render(strings.ToUpper(string(e.Severity))+" ") + e.Summary)
			if e.Result != "" {
				b.WriteString(detailTextStyle.Render(" ("+e.Result+")"))
			}
			b.WriteString("\n")
		}
		if e.Details != "" {
			b.WriteString(detailTextStyle.Render("  "+e.Details) + "\n")
		}
	}
	return lipgloss.NewStyle().Width(max(20, width)).Render(b.String())
}
