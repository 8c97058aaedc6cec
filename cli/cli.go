// Package cli provides terminal I/O, dialogue rendering, and
// meta-command dispatch for the plain (non-TUI) player.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nathoo/fable/engine"
	"github.com/nathoo/fable/types"
)

// CLI handles terminal interaction with the player.
type CLI struct {
	Engine    *engine.Engine
	In        io.Reader
	Out       io.Writer
	SaveDir   string
	PlayerID  string
	EchoInput bool // echo each input line after the prompt (for script playback)

	choices []string // pending choice labels, nil when not at a choice point
	midLine bool     // a "|" text piece left the cursor mid-line
}

// New creates a CLI wired to the given engine.
func New(eng *engine.Engine, playerID string) *CLI {
	home, _ := os.UserHomeDir()
	return &CLI{
		Engine:   eng,
		In:       os.Stdin,
		Out:      os.Stdout,
		SaveDir:  filepath.Join(home, ".fable", "saves"),
		PlayerID: playerID,
	}
}

// Run starts the player loop: drain any dialogue the game opened with,
// then prompt → input → dispatch → render.
func (c *CLI) Run() {
	c.playOut()

	scanner := bufio.NewScanner(c.In)
	for {
		c.prompt()
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		// Skip comment lines (for script files).
		if strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(input)
		}

		// Meta-commands start with '/'.
		if strings.HasPrefix(input, "/") {
			if c.handleMeta(input) {
				return // /quit
			}
			continue
		}

		// At a choice point a bare number answers it.
		if c.choices != nil {
			if n, err := strconv.Atoi(input); err == nil {
				c.choose(n)
				continue
			}
			c.printSystem("Pick a number between 1 and " + strconv.Itoa(len(c.choices)) + ".")
			continue
		}

		c.handleVerb(input)
	}
}

func (c *CLI) prompt() {
	if c.choices != nil {
		c.print("? ")
		return
	}
	c.print("> ")
}

// handleVerb dispatches world commands outside of dialogue.
func (c *CLI) handleVerb(input string) {
	parts := strings.Fields(input)
	verb := strings.ToLower(parts[0])
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch verb {
	case "look", "l":
		c.cmdLook()
	case "touch", "t", "take":
		if arg == "" {
			c.printSystem("Touch what?")
			return
		}
		if err := c.Engine.Interact(c.PlayerID, arg); err != nil {
			c.printSystem(err.Error())
			return
		}
		c.playOut()
	case "go", "walk":
		if arg == "" {
			c.printSystem("Go where?")
			return
		}
		if err := c.Engine.EnterMap(arg); err != nil {
			c.printSystem(err.Error())
			return
		}
		c.playOut()
	default:
		c.printSystem("Unknown command: " + verb + ". Type /help for available commands.")
	}
}

// choose answers a pending choice point with a 1-based selection.
func (c *CLI) choose(n int) {
	step, err := c.Engine.Choose(n - 1)
	if err != nil {
		c.printSystem(fmt.Sprintf("Pick a number between 1 and %d.", len(c.choices)))
		return
	}
	c.choices = nil
	if c.renderStep(step) {
		return
	}
	c.playOut()
}

// playOut renders dialogue steps until the session suspends on a choice
// or finishes. The engine executes command steps itself; the CLI just
// notes them.
func (c *CLI) playOut() {
	for {
		step, err := c.Engine.Advance()
		if err != nil {
			c.printSystem(err.Error())
			return
		}
		if c.renderStep(step) {
			return
		}
	}
}

// renderStep prints one dialogue step. Returns true when the loop
// should stop (choice point or end of dialogue).
func (c *CLI) renderStep(step types.Step) bool {
	switch step.Kind {
	case "displayed":
		if step.NoBreak {
			c.print(step.Text)
			c.midLine = true
		} else {
			c.printLine(step.Text)
			c.midLine = false
		}
	case "awaiting_choice":
		c.closeLine()
		c.choices = step.Labels
		for i, label := range step.Labels {
			c.printLine(fmt.Sprintf("  %d. %s", i+1, label))
		}
		return true
	case "command":
		c.printSystem(step.Command)
	case "finished":
		c.closeLine()
		return true
	}
	return false
}

// closeLine terminates a line a "|" text piece left open.
func (c *CLI) closeLine() {
	if c.midLine {
		c.printLine("")
		c.midLine = false
	}
}

func (c *CLI) cmdLook() {
	m := c.Engine.Game().CurrentMap()
	if m == nil {
		c.printSystem("Nowhere to look.")
		return
	}
	c.printLine("You are at " + m.ID + ".")
	var any bool
	for _, obj := range m.Objects() {
		if !obj.Visible {
			continue
		}
		any = true
		c.printLine("  - " + obj.Name)
	}
	if !any {
		c.printLine("  (nothing of note)")
	}
}

// handleMeta dispatches meta-commands. Returns true if the player
// should exit.
func (c *CLI) handleMeta(input string) bool {
	parts := strings.Fields(input)
	cmd := parts[0]
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "/quit", "/exit":
		c.printSystem("Goodbye.")
		return true

	case "/save":
		c.cmdSave(arg)

	case "/load":
		c.cmdLoad(arg)

	case "/vars":
		c.cmdVars()

	case "/help":
		c.cmdHelp()

	default:
		c.printSystem(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd))
	}

	return false
}

func (c *CLI) cmdSave(name string) {
	if name == "" {
		name = "quicksave"
	}

	data, err := c.Engine.SaveGame()
	if err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}

	if err := os.MkdirAll(c.SaveDir, 0o755); err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}

	path := filepath.Join(c.SaveDir, name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}

	c.printSystem(fmt.Sprintf("Game saved to %s.", name))
}

func (c *CLI) cmdLoad(name string) {
	if name == "" {
		name = "quicksave"
	}

	path := filepath.Join(c.SaveDir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}

	if err := c.Engine.LoadGame(data); err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}

	c.choices = nil
	c.printSystem(fmt.Sprintf("Game loaded from %s.", name))
	c.cmdLook()
}

func (c *CLI) cmdVars() {
	store := c.Engine.Vars()
	names := store.Names()
	if len(names) == 0 {
		c.printSystem("No variables set.")
		return
	}
	for _, name := range names {
		v, _ := store.Get(name)
		c.printSystem(fmt.Sprintf("%s = %v", name, v))
	}
}

func (c *CLI) cmdHelp() {
	help := []string{
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
	}
	for _, line := range help {
		c.printLine(line)
	}
}

func (c *CLI) printLine(text string) {
	fmt.Fprintln(c.Out, text)
}

func (c *CLI) print(text string) {
	fmt.Fprint(c.Out, text)
}

func (c *CLI) printSystem(text string) {
	fmt.Fprintf(c.Out, "[%s]\n", text)
}
