package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// mapDisplayName derives a human-readable name from a map ID.
// "sandy_rocks" -> "Sandy Rocks", "crystal_cavern" -> "Crystal Cavern".
func mapDisplayName(id string) string {
	words := strings.Split(id, "_")
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// renderStatusBar produces a full-width inverted status line showing
// the current map, visible objects, and the player's collection.
func (m Model) renderStatusBar() string {
	g := m.engine.Game()

	mapName := "Nowhere"
	visible := 0
	if g != nil {
		if w := g.CurrentMap(); w != nil {
			mapName = mapDisplayName(w.ID)
			for _, obj := range w.Objects() {
				if obj.Visible {
					visible++
				}
			}
		}
	}

	left := fmt.Sprintf(" %s | Objects: %d", mapName, visible)
	if m.choices != nil {
		left += " | choose 1-" + fmt.Sprint(len(m.choices))
	}

	right := " "
	if g != nil && len(g.Players()) > 0 {
		collected := g.Players()[0].Collected
		for _, p := range g.Players() {
			if p.ID == m.playerID {
				collected = p.Collected
				break
			}
		}
		if len(collected) > 0 {
			candidate := fmt.Sprintf("Got: %s ", strings.Join(collected, ", "))
			if lipgloss.Width(left)+lipgloss.Width(candidate)+2 < m.width {
				right = candidate
			} else {
				right = fmt.Sprintf("Got: %d ", len(collected))
			}
		}
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	return styleStatusBar.Width(m.width).Render(bar)
}
