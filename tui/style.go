package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles used throughout the TUI.
var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleNarrative = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	styleChoice = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228"))

	styleObject = lipgloss.NewStyle().
			Bold(true)

	styleSystem = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	styleInput = lipgloss.NewStyle().
			Foreground(lipgloss.Color("34"))
)

// lineKind identifies the type of an output line for styling. Unlike a
// log scraper, the model tags every line at the source, so styling never
// guesses from text content.
type lineKind int

const (
	kindNarrative lineKind = iota
	kindChoice
	kindObject
	kindSystem
	kindError
	kindInput
)

// renderLineKind applies the style for a given lineKind.
func renderLineKind(line string, kind lineKind) string {
	switch kind {
	case kindChoice:
		return styleChoice.Render(line)
	case kindObject:
		return styleObject.Render(line)
	case kindSystem:
		return styleSystem.Render("[" + line + "]")
	case kindError:
		return styleError.Render(line)
	case kindInput:
		return styleInput.Render(line)
	default:
		return styleNarrative.Render(line)
	}
}
