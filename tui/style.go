package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles used throughout the TUI.
var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleStatusWarn = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("208")).
			Bold(true)

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleNarrative = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	styleHeading = lipgloss.NewStyle().
			Foreground(lipgloss.Color("81")).
			Bold(true)

	styleRoads = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleQi = lipgloss.NewStyle().
		Foreground(lipgloss.Color("45"))

	styleWarning = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208"))

	styleSystem = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	stylePlayerInput = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleTrace = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// lineKind identifies the type of an output line for styling.
type lineKind int

const (
	kindNarrative lineKind = iota
	kindHeading
	kindRoads
	kindQi
	kindWarning
	kindSystem
	kindError
	kindTrace
)

// classifyLine determines what kind of output line this is.
func classifyLine(line string) lineKind {
	switch {
	case strings.HasPrefix(line, "[trace]"):
		return kindTrace
	case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
		return kindSystem
	case strings.HasPrefix(line, "Roads lead to:"),
		strings.HasPrefix(line, "You could explore:"):
		return kindRoads
	case strings.HasPrefix(line, "Warning:"),
		strings.HasPrefix(line, "Your meditation is broken"),
		strings.HasPrefix(line, "You can barely stand"):
		return kindWarning
	case strings.Contains(line, " Qi"), strings.HasPrefix(line, "Qi "):
		return kindQi
	case isHeading(line):
		return kindHeading
	default:
		return kindNarrative
	}
}

// isHeading matches the first line of a location view:
// "Sect Hall (sect, qi density 1.0)".
func isHeading(line string) bool {
	return strings.HasSuffix(line, ")") && strings.Contains(line, "qi density")
}

// renderLineKind applies the style for a given lineKind.
func renderLineKind(line string, kind lineKind) string {
	switch kind {
	case kindHeading:
		return styleHeading.Render(line)
	case kindRoads:
		return styleRoads.Render(line)
	case kindQi:
		return styleQi.Render(line)
	case kindWarning:
		return styleWarning.Render(line)
	case kindSystem:
		return styleSystem.Render(line)
	case kindError:
		return styleError.Render(line)
	case kindTrace:
		return styleTrace.Render(line)
	default:
		return styleNarrative.Render(line)
	}
}

// styledSystemMsg renders a system message in gray with brackets.
func styledSystemMsg(text string) string {
	return styleSystem.Render("[" + text + "]")
}
