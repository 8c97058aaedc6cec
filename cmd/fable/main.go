// Fable is a dialogue and event runtime for narrative games.
// Usage: fable [--version] [--plain] [--config <file>] [--script <file>] <game_directory>
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nathoo/fable/cli"
	"github.com/nathoo/fable/config"
	"github.com/nathoo/fable/engine"
	"github.com/nathoo/fable/engine/world"
	"github.com/nathoo/fable/logger"
	"github.com/nathoo/fable/tui"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// worldFile bootstraps the world: maps, their objects, and the player.
// Everything else about the game lives in scripts and dialogue assets.
type worldFile struct {
	Player struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"player"`
	Maps []struct {
		ID      string `json:"id"`
		Objects []struct {
			Name        string `json:"name"`
			Visible     bool   `json:"visible"`
			Collectable bool   `json:"collectable"`
			Dialogue    string `json:"dialogue,omitempty"`
		} `json:"objects"`
	} `json:"maps"`
}

func main() {
	plain := false
	var gameDir string
	var scriptFile string
	var configFile string

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version":
			fmt.Printf("fable %s (commit %s, built %s)\n", version, commit, date)
			return
		case "--plain":
			plain = true
		case "--script":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "--script requires a file path\n")
				os.Exit(1)
			}
			i++
			scriptFile = args[i]
		case "--config":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "--config requires a file path\n")
				os.Exit(1)
			}
			i++
			configFile = args[i]
		default:
			if gameDir == "" {
				gameDir = args[i]
			}
		}
	}

	if gameDir == "" {
		fmt.Fprintf(os.Stderr, "Usage: fable [--version] [--plain] [--config <file>] [--script <file>] <game_directory>\n")
		os.Exit(1)
	}

	cfg := loadConfig(gameDir, configFile)
	log := logger.Setup(cfg, nil)

	eng := engine.New(engine.Options{
		AutoContinue: cfg.AutoContinue,
		Commands:     cfg.Commands,
		Logger:       log,
	})
	defer eng.Close()

	for _, err := range eng.LoadScripts(filepath.Join(gameDir, cfg.ScriptDir)) {
		log.Warn("script skipped", "error", err)
	}
	for _, err := range eng.LoadDialogues(filepath.Join(gameDir, cfg.DialogueDir)) {
		log.Warn("dialogue asset skipped", "error", err)
	}

	if err := eng.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading game: %v\n", err)
		os.Exit(1)
	}

	playerID, err := buildWorld(eng, gameDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading game: %v\n", err)
		os.Exit(1)
	}

	if err := eng.NewGame(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting game: %v\n", err)
		os.Exit(1)
	}

	// Script mode: open file, force plain, echo commands.
	if scriptFile != "" {
		f, err := os.Open(scriptFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening script: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		c := cli.New(eng, playerID)
		c.In = f
		c.EchoInput = true
		c.SaveDir = cfg.SaveDir
		c.Run()
		return
	}

	// Use plain CLI if --plain flag or stdout is not a terminal.
	if plain || !isTerminal() {
		c := cli.New(eng, playerID)
		c.SaveDir = cfg.SaveDir
		c.Run()
		return
	}

	if err := tui.Run(eng, playerID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads an explicit --config file, falls back to
// <gameDir>/fable.yaml, and finally to the defaults.
func loadConfig(gameDir, configFile string) *config.Config {
	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	path := filepath.Join(gameDir, "fable.yaml")
	if _, err := os.Stat(path); err == nil {
		cfg, err := config.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return config.Default()
}

// buildWorld populates the engine's world from <gameDir>/world.json and
// returns the player ID.
func buildWorld(eng *engine.Engine, gameDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(gameDir, "world.json"))
	if err != nil {
		return "", fmt.Errorf("reading world.json: %w", err)
	}
	var wf worldFile
	if err := json.Unmarshal(data, &wf); err != nil {
		return "", fmt.Errorf("parsing world.json: %w", err)
	}

	for _, m := range wf.Maps {
		if _, err := eng.AddMap(m.ID); err != nil {
			return "", err
		}
		for _, o := range m.Objects {
			obj := &world.Object{
				Name:         o.Name,
				Visible:      o.Visible,
				Collectable:  o.Collectable,
				DialogueNode: o.Dialogue,
			}
			if err := eng.SpawnObject(m.ID, obj); err != nil {
				return "", err
			}
		}
	}

	if wf.Player.ID == "" {
		wf.Player.ID = "player"
	}
	if _, err := eng.AddPlayer(wf.Player.ID, wf.Player.Name); err != nil {
		return "", err
	}
	return wf.Player.ID, nil
}

// isTerminal returns true if stdout is a terminal (not piped/redirected).
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
