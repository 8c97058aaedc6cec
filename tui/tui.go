package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nathoo/fable/engine"
	"github.com/nathoo/fable/types"
)

// rawLine stores an unstyled output line with its classification,
// so we can re-wrap and re-style when the terminal is resized.
type rawLine struct {
	text string
	kind lineKind
}

// Model is the Bubble Tea model for the Fable player.
type Model struct {
	engine   *engine.Engine
	playerID string

	viewport viewport.Model
	input    textinput.Model
	history  *History

	rawLines []rawLine // accumulated narrative lines (unstyled, for re-wrapping)
	choices  []string  // pending choice labels, nil when not at a choice point
	partial  string    // a "|" text piece waiting for its continuation

	width    int
	height   int
	ready    bool
	quitting bool
	saveDir  string
}

// outputMsg carries rendered lines into the Update loop.
type outputMsg struct {
	input   string // echoed player input (empty for the opening scene)
	lines   []rawLine
	choices []string
}

// New creates a TUI model wired to the given engine.
func New(eng *engine.Engine, playerID string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 256
	ti.PromptStyle = styleInputPrompt

	home, _ := os.UserHomeDir()
	return Model{
		engine:   eng,
		playerID: playerID,
		input:    ti,
		history:  NewHistory(100),
		saveDir:  filepath.Join(home, ".fable", "saves"),
	}
}

// Run starts the Bubble Tea program.
func Run(eng *engine.Engine, playerID string) error {
	m := New(eng, playerID)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}

// Init produces the opening scene: whatever dialogue the new game
// started, then the current map.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, func() tea.Msg {
		opening := m
		lines := opening.playOut()
		if opening.choices == nil {
			lines = append(lines, opening.lookLines()...)
		}
		return outputMsg{lines: lines, choices: opening.choices}
	})
}

// Update handles messages (key presses, window resize, output).
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		vpHeight := m.height - 2 // 1 status bar + 1 input line
		if vpHeight < 1 {
			vpHeight = 1
		}

		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.KeyMap = viewportKeyMap()
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}

		m.refreshViewport()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "enter":
			return m.handleEnter()

		case "up":
			if prev, ok := m.history.Prev(); ok {
				m.input.SetValue(prev)
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if next, ok := m.history.Next(); ok {
				m.input.SetValue(next)
				m.input.CursorEnd()
			} else {
				m.input.SetValue("")
				m.history.ResetCursor()
			}
			return m, nil

		case "pgup", "pgdown":
			var vpCmd tea.Cmd
			m.viewport, vpCmd = m.viewport.Update(msg)
			return m, vpCmd
		}

	case outputMsg:
		if msg.choices != nil {
			m.choices = msg.choices
		}
		m = m.appendOutput(msg)
	}

	var inputCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	cmds = append(cmds, inputCmd)

	return m, tea.Batch(cmds...)
}

// handleEnter processes the submitted input line.
func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")

	if input == "" {
		return m, nil
	}

	m.history.Push(input)
	m.history.ResetCursor()

	// Meta-commands.
	if strings.HasPrefix(input, "/") {
		output, quit := m.handleMeta(input)
		lines := make([]rawLine, 0, len(output))
		for _, l := range output {
			lines = append(lines, rawLine{text: l, kind: kindSystem})
		}
		m = m.appendOutput(outputMsg{input: input, lines: lines})
		if quit {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	// At a choice point a bare number answers it.
	if m.choices != nil {
		m = m.appendOutput(outputMsg{input: input, lines: m.answerChoice(input)})
		return m, nil
	}

	m = m.appendOutput(outputMsg{input: input, lines: m.handleVerb(input)})
	return m, nil
}

// answerChoice turns the typed number into a selection.
func (m *Model) answerChoice(input string) []rawLine {
	n, err := strconv.Atoi(input)
	if err != nil {
		return []rawLine{{
			text: fmt.Sprintf("Pick a number between 1 and %d.", len(m.choices)),
			kind: kindError,
		}}
	}
	step, err := m.engine.Choose(n - 1)
	if err != nil {
		return []rawLine{{
			text: fmt.Sprintf("Pick a number between 1 and %d.", len(m.choices)),
			kind: kindError,
		}}
	}
	m.choices = nil
	lines := m.renderStep(step, nil)
	if m.choices == nil { // renderStep may suspend again immediately
		lines = append(lines, m.playOut()...)
	}
	return lines
}

// handleVerb dispatches world commands outside of dialogue.
func (m *Model) handleVerb(input string) []rawLine {
	parts := strings.Fields(input)
	verb := strings.ToLower(parts[0])
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch verb {
	case "look", "l":
		return m.lookLines()

	case "touch", "t", "take":
		if arg == "" {
			return []rawLine{{text: "Touch what?", kind: kindError}}
		}
		if err := m.engine.Interact(m.playerID, arg); err != nil {
			return []rawLine{{text: err.Error(), kind: kindError}}
		}
		return m.playOut()

	case "go", "walk":
		if arg == "" {
			return []rawLine{{text: "Go where?", kind: kindError}}
		}
		if err := m.engine.EnterMap(arg); err != nil {
			return []rawLine{{text: err.Error(), kind: kindError}}
		}
		lines := m.playOut()
		if m.choices == nil {
			lines = append(lines, m.lookLines()...)
		}
		return lines

	default:
		return []rawLine{{
			text: "Unknown command: " + verb + ". Type /help for available commands.",
			kind: kindError,
		}}
	}
}

// playOut drains dialogue steps until the session suspends on a choice
// or finishes, collecting display lines. Consecutive "|" pieces join
// into one line.
func (m *Model) playOut() []rawLine {
	var lines []rawLine
	for {
		step, err := m.engine.Advance()
		if err != nil {
			lines = append(lines, rawLine{text: err.Error(), kind: kindError})
			return lines
		}
		var stop bool
		lines = m.renderStep(step, lines)
		stop = step.Kind == "finished" || step.Kind == "awaiting_choice"
		if stop {
			return lines
		}
	}
}

// renderStep converts one dialogue step into output lines.
func (m *Model) renderStep(step types.Step, lines []rawLine) []rawLine {
	switch step.Kind {
	case "displayed":
		if step.NoBreak {
			m.partial += step.Text
			return lines
		}
		lines = append(lines, rawLine{text: m.partial + step.Text, kind: kindNarrative})
		m.partial = ""
	case "awaiting_choice":
		lines = m.flushPartial(lines)
		m.choices = step.Labels
		for i, label := range step.Labels {
			lines = append(lines, rawLine{
				text: fmt.Sprintf("  %d. %s", i+1, label),
				kind: kindChoice,
			})
		}
	case "command":
		lines = append(lines, rawLine{text: step.Command, kind: kindSystem})
	case "finished":
		lines = m.flushPartial(lines)
	}
	return lines
}

func (m *Model) flushPartial(lines []rawLine) []rawLine {
	if m.partial != "" {
		lines = append(lines, rawLine{text: m.partial, kind: kindNarrative})
		m.partial = ""
	}
	return lines
}

// lookLines describes the current map and its visible objects.
func (m *Model) lookLines() []rawLine {
	w := m.engine.Game().CurrentMap()
	if w == nil {
		return []rawLine{{text: "Nowhere to look.", kind: kindError}}
	}
	lines := []rawLine{{text: "You are at " + mapDisplayName(w.ID) + ".", kind: kindNarrative}}
	var any bool
	for _, obj := range w.Objects() {
		if !obj.Visible {
			continue
		}
		any = true
		lines = append(lines, rawLine{text: "  - " + obj.Name, kind: kindObject})
	}
	if !any {
		lines = append(lines, rawLine{text: "  (nothing of note)", kind: kindNarrative})
	}
	return lines
}

// appendOutput adds lines to the narrative and refreshes the viewport.
func (m Model) appendOutput(msg outputMsg) Model {
	if msg.input != "" {
		m.rawLines = append(m.rawLines, rawLine{text: "> " + msg.input, kind: kindInput})
	}

	m.rawLines = append(m.rawLines, msg.lines...)

	// Blank line separator between turns.
	m.rawLines = append(m.rawLines, rawLine{})

	m.refreshViewport()

	return m
}

// refreshViewport re-wraps and re-styles all raw lines at the current width
// and updates the viewport content.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	width := m.width
	if width < 10 {
		width = 10
	}

	var styled []string
	for _, rl := range m.rawLines {
		if rl.text == "" {
			styled = append(styled, "")
			continue
		}
		styled = append(styled, renderLineKind(wordWrap(rl.text, width), rl.kind))
	}

	m.viewport.SetContent(strings.Join(styled, "\n"))
	m.viewport.GotoBottom()
}

// wordWrap wraps text to fit within the given width, breaking at word
// boundaries.
func wordWrap(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}

	var result strings.Builder
	words := strings.Fields(text)
	lineLen := 0

	for i, word := range words {
		wLen := len(word)

		if i == 0 {
			result.WriteString(word)
			lineLen = wLen
			continue
		}

		if lineLen+1+wLen > width {
			result.WriteString("\n")
			result.WriteString(word)
			lineLen = wLen
		} else {
			result.WriteString(" ")
			result.WriteString(word)
			lineLen += 1 + wLen
		}
	}

	return result.String()
}

// View renders the full TUI layout: viewport + status bar + input.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	return m.viewport.View() + "\n" + m.renderStatusBar() + "\n" + m.input.View()
}

// handleMeta dispatches meta-commands. Returns output lines and quit flag.
func (m *Model) handleMeta(input string) ([]string, bool) {
	parts := strings.Fields(input)
	cmd := parts[0]
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "/quit", "/exit":
		return []string{"Goodbye."}, true

	case "/save":
		return m.cmdSave(arg), false

	case "/load":
		return m.cmdLoad(arg), false

	case "/vars":
		return m.cmdVars(), false

	case "/help":
		return m.cmdHelp(), false

	default:
		return []string{fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd)}, false
	}
}

func (m *Model) cmdSave(name string) []string {
	if name == "" {
		name = "quicksave"
	}

	data, err := m.engine.SaveGame()
	if err != nil {
		return []string{fmt.Sprintf("Save failed: %v", err)}
	}

	if err := os.MkdirAll(m.saveDir, 0o755); err != nil {
		return []string{fmt.Sprintf("Save failed: %v", err)}
	}

	path := filepath.Join(m.saveDir, name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return []string{fmt.Sprintf("Save failed: %v", err)}
	}

	return []string{fmt.Sprintf("Game saved to %s.", name)}
}

func (m *Model) cmdLoad(name string) []string {
	if name == "" {
		name = "quicksave"
	}

	path := filepath.Join(m.saveDir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return []string{fmt.Sprintf("Load failed: %v", err)}
	}

	if err := m.engine.LoadGame(data); err != nil {
		return []string{fmt.Sprintf("Load failed: %v", err)}
	}

	m.choices = nil
	return []string{fmt.Sprintf("Game loaded from %s.", name)}
}

func (m *Model) cmdVars() []string {
	store := m.engine.Vars()
	names := store.Names()
	if len(names) == 0 {
		return []string{"No variables set."}
	}
	output := make([]string, 0, len(names))
	for _, name := range names {
		v, _ := store.Get(name)
		output = append(output, fmt.Sprintf("%s = %v", name, v))
	}
	return output
}

func (m *Model) cmdHelp() []string {
	return []string{
		"System:",
		"  /save [name]  — Save game (default: quicksave)",
		"  /load [name]  — Load game (default: quicksave)",
		"  /vars         — Debug: dump dialogue variables",
		"  /quit         — Exit",
		"  /help         — Show this help",
		"",
		"World:",
		"  look (l)          — List what's on the current map",
		"  touch <object>    — Pick up or talk to an object",
		"  go <map>          — Move to another map",
		"",
		"In dialogue, answer a numbered choice by typing its number.",
		"Navigation: PgUp/PgDn to scroll, Up/Down for command history",
	}
}

// viewportKeyMap returns a viewport keymap with Up/Down disabled
// (we use those for input history).
func viewportKeyMap() viewport.KeyMap {
	return viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		Up:           key.NewBinding(key.WithDisabled()),
		Down:         key.NewBinding(key.WithDisabled()),
	}
}
