// Package engine wires the runtime together: dialogue graphs, the
// variable store, the expression evaluator, the event registry, the
// world, and the script bridge. It is the host surface a front end
// drives and the Host implementation script handlers call back into.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/nathoo/fable/engine/dialogue"
	"github.com/nathoo/fable/engine/events"
	"github.com/nathoo/fable/engine/expr"
	"github.com/nathoo/fable/engine/graph"
	"github.com/nathoo/fable/engine/save"
	"github.com/nathoo/fable/engine/vars"
	"github.com/nathoo/fable/engine/world"
	"github.com/nathoo/fable/script"
	"github.com/nathoo/fable/types"
)

var (
	// ErrUnknownCommand is returned when a dialogue command step names a
	// command outside the accepted set. Validation catches this at load
	// time; hitting it at runtime means a graph skipped validation.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrAlreadyStarted rejects a second Start.
	ErrAlreadyStarted = errors.New("engine already started")
	// ErrNotStarted rejects gameplay calls before Start.
	ErrNotStarted = errors.New("engine not started")
)

// CommandFunc executes one dialogue command. Commands declared in the
// configuration but not registered here are still valid in assets; their
// steps pass through to the front end unexecuted.
type CommandFunc func(args []any) error

// SoundPlayer receives play_sound calls. The default implementation
// only logs; a front end with an audio stack replaces it.
type SoundPlayer func(path string) error

// Options carries host policy for the engine.
type Options struct {
	// AutoContinue is handed to every dialogue session.
	AutoContinue bool
	// Commands extends the accepted command-name set beyond the
	// built-ins. Dialogue assets naming anything else fail validation.
	Commands []string
	Logger   *slog.Logger
	Sound    SoundPlayer
}

// Engine owns all runtime state. It is single-threaded: every method
// must be called from the host's update loop.
type Engine struct {
	log  *slog.Logger
	opts Options

	store    *vars.Store
	registry *events.Registry
	bridge   *script.Bridge
	eval     *expr.Evaluator
	game     *world.Game

	graphs    map[string]*graph.Graph
	nodeIndex map[string]string // node name -> graph name

	commands     map[string]CommandFunc
	commandNames map[string]bool

	session *dialogue.Session
	pending *types.Step // first step of a freshly started session
	started bool
}

// New creates an engine. Load scripts and dialogue assets, then call
// Start before any gameplay method.
func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	e := &Engine{
		log:          opts.Logger,
		opts:         opts,
		store:        vars.New(),
		registry:     events.NewRegistry(opts.Logger),
		graphs:       map[string]*graph.Graph{},
		nodeIndex:    map[string]string{},
		commands:     map[string]CommandFunc{},
		commandNames: map[string]bool{},
	}
	e.bridge = script.New(e, e.registry, e.store, opts.Logger)
	e.registerBuiltins()
	for _, name := range opts.Commands {
		e.commandNames[name] = true
	}
	return e
}

func (e *Engine) registerBuiltins() {
	e.RegisterCommand("play_sound", func(args []any) error {
		if len(args) != 1 {
			return fmt.Errorf("play_sound: want 1 argument, got %d", len(args))
		}
		path, ok := args[0].(string)
		if !ok {
			return fmt.Errorf("play_sound: argument must be a string")
		}
		return e.PlaySound(path)
	})
	// Recognized but executed by the front end: the step passes through.
	e.commandNames["exit_level"] = true
}

// RegisterCommand adds a command to the accepted set with a handler.
// Must be called before Start; later registrations are rejected.
func (e *Engine) RegisterCommand(name string, fn CommandFunc) error {
	if e.started {
		return ErrAlreadyStarted
	}
	e.commands[name] = fn
	e.commandNames[name] = true
	return nil
}

// LoadScripts executes every behavior script in dir. A failing script
// is reported and skipped.
func (e *Engine) LoadScripts(dir string) []error {
	return e.bridge.LoadDir(dir)
}

// LoadDialogues loads every dialogue asset in dir. Node names must be
// unique across all loaded graphs so start_dialogue can resolve them
// without a graph qualifier.
func (e *Engine) LoadDialogues(dir string) []error {
	graphs, errs := graph.LoadDir(dir)
	for name, g := range graphs {
		e.graphs[name] = g
		for _, n := range g.Nodes {
			if other, dup := e.nodeIndex[n.Name]; dup {
				errs = append(errs, &graph.LoadError{Graph: name, Errors: []string{
					fmt.Sprintf("node %q already defined in graph %q", n.Name, other),
				}})
				continue
			}
			e.nodeIndex[n.Name] = name
		}
	}
	return errs
}

// Start freezes the registry, builds the expression evaluator over the
// script predicates, validates every loaded graph, and constructs the
// game instance (running its setup blocks). Validation failures are
// collected and joined, and leave the engine unstarted.
func (e *Engine) Start() error {
	if e.started {
		return ErrAlreadyStarted
	}
	e.registry.Freeze()
	e.eval = expr.New(e.bridge.Predicates())

	var errs []error
	for _, name := range sortedKeys(e.graphs) {
		if err := graph.Validate(e.graphs[name], e.commandNames, e.eval); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	g, err := world.NewGame(e.registry)
	if err != nil {
		return err
	}
	e.game = g
	e.started = true
	return nil
}

// NewGame fires the new_game lifecycle event, then enters the current
// map. Call once, after the world is populated.
func (e *Engine) NewGame() error {
	if !e.started {
		return ErrNotStarted
	}
	if err := e.registry.Trigger(e.game.Instance, "new_game"); err != nil {
		e.log.Warn("new_game handlers failed", "error", err)
	}
	if m := e.game.CurrentMap(); m != nil {
		return e.enter(m)
	}
	return nil
}

// AddPlayer adds a player to the world, running player setup blocks.
func (e *Engine) AddPlayer(id, name string) (*world.Player, error) {
	if !e.started {
		return nil, ErrNotStarted
	}
	return e.game.AddPlayer(id, name)
}

// AddMap adds a map to the world, running map setup blocks. The first
// map added becomes the current map.
func (e *Engine) AddMap(id string) (*world.Map, error) {
	if !e.started {
		return nil, ErrNotStarted
	}
	return e.game.AddMap(id)
}

// SpawnObject places an object on a map and fires the spawn event on
// the map's instance.
func (e *Engine) SpawnObject(mapID string, obj *world.Object) error {
	if !e.started {
		return ErrNotStarted
	}
	m := e.game.Map(mapID)
	if m == nil {
		return fmt.Errorf("no such map %q", mapID)
	}
	if err := m.AddObject(obj); err != nil {
		return err
	}
	if err := e.registry.Trigger(m.Instance, "spawn", obj.Name); err != nil {
		e.log.Warn("spawn handlers failed", "map", mapID, "object", obj.Name, "error", err)
	}
	return nil
}

// EnterMap exits the current map, switches to the named one, and fires
// its enter event. Nodes the new map's graph tags run_on_load start
// automatically.
func (e *Engine) EnterMap(id string) error {
	if !e.started {
		return ErrNotStarted
	}
	if old := e.game.CurrentMap(); old != nil && old.ID != id {
		if err := e.registry.Trigger(old.Instance, "exit"); err != nil {
			e.log.Warn("exit handlers failed", "map", old.ID, "error", err)
		}
	}
	if err := e.game.SetCurrentMap(id); err != nil {
		return err
	}
	return e.enter(e.game.CurrentMap())
}

func (e *Engine) enter(m *world.Map) error {
	if err := e.registry.Trigger(m.Instance, "enter"); err != nil {
		e.log.Warn("enter handlers failed", "map", m.ID, "error", err)
	}
	// A graph named after the map may tag entry nodes run_on_load.
	g, ok := e.graphs[m.ID]
	if !ok {
		return nil
	}
	for _, n := range g.Nodes {
		if !g.HasTag(n.Name, "run_on_load") {
			continue
		}
		return e.StartDialogue(n.Name)
	}
	return nil
}

// Interact is the player touching a named object on the current map:
// collectable objects are collected, dialogue-bearing objects start
// their dialogue, anything else is ignored.
func (e *Engine) Interact(playerID, objectName string) error {
	if !e.started {
		return ErrNotStarted
	}
	m := e.game.CurrentMap()
	if m == nil {
		return fmt.Errorf("no current map")
	}
	obj := m.Object(objectName)
	if obj == nil || !obj.Visible {
		return nil
	}
	if obj.Collectable {
		return e.Collect(playerID, objectName)
	}
	if obj.DialogueNode != "" {
		return e.StartDialogue(obj.DialogueNode)
	}
	return nil
}

// Collect picks up a collectable object for the player, fires the
// collect event on the player's instance, and starts the object's
// dialogue if it carries one and no dialogue is active.
func (e *Engine) Collect(playerID, objectName string) error {
	if !e.started {
		return ErrNotStarted
	}
	var p *world.Player
	for _, cand := range e.game.Players() {
		if cand.ID == playerID {
			p = cand
			break
		}
	}
	if p == nil {
		return fmt.Errorf("no such player %q", playerID)
	}
	obj, err := e.game.Collect(p, objectName)
	if err != nil {
		return err
	}
	if err := e.registry.Trigger(p.Instance, "collect", objectName); err != nil {
		e.log.Warn("collect handlers failed", "player", playerID, "object", objectName, "error", err)
	}
	if obj.DialogueNode != "" && !e.InDialogue() {
		return e.StartDialogue(obj.DialogueNode)
	}
	return nil
}

// StartDialogue begins a session at the named node. A node tagged
// run_once starts only on its first run; the marker lives in the
// variable store so it persists through saves. An active session is
// replaced.
func (e *Engine) StartDialogue(node string) error {
	if !e.started {
		return ErrNotStarted
	}
	graphName, ok := e.nodeIndex[node]
	if !ok {
		return fmt.Errorf("%w: %s", dialogue.ErrNoSuchNode, node)
	}
	g := e.graphs[graphName]

	if g.HasTag(node, "run_once") {
		marker := "$seen_" + node
		if v, _ := e.store.Get(marker); v == true {
			return nil
		}
		e.store.Set(marker, true)
	}
	if e.session != nil && !e.session.Finished() {
		e.log.Warn("replacing active dialogue", "node", node)
	}

	s := dialogue.New(g, e.store, e.eval, dialogue.Options{
		AutoContinue: e.opts.AutoContinue,
		Logger:       e.log,
	})
	step, err := s.Start(node)
	if err != nil {
		return err
	}
	e.session = s
	first := e.handleStep(step)
	e.pending = &first
	return nil
}

// InDialogue reports whether a session is active.
func (e *Engine) InDialogue() bool {
	return e.session != nil && !e.session.Finished()
}

// Advance yields the next dialogue step. With no active session it
// returns a finished step.
func (e *Engine) Advance() (types.Step, error) {
	if e.pending != nil {
		step := *e.pending
		e.pending = nil
		return step, nil
	}
	if e.session == nil {
		return types.Step{Kind: "finished"}, nil
	}
	step, err := e.session.Advance()
	if err != nil {
		return step, err
	}
	return e.handleStep(step), nil
}

// Choose answers a pending choice point. An out-of-range index returns
// dialogue.ErrInvalidChoice and leaves the session unchanged.
func (e *Engine) Choose(i int) (types.Step, error) {
	if e.session == nil {
		return types.Step{}, dialogue.ErrInvalidChoice
	}
	e.pending = nil
	step, err := e.session.Choose(i)
	if err != nil {
		return step, err
	}
	return e.handleStep(step), nil
}

// handleStep executes command steps against the registered handlers and
// drops finished sessions. The step always flows through to the caller.
func (e *Engine) handleStep(step types.Step) types.Step {
	switch step.Kind {
	case "command":
		if fn, ok := e.commands[step.Command]; ok {
			if err := fn(step.Args); err != nil {
				e.log.Warn("command failed", "command", step.Command, "error", err)
			}
		} else if !e.commandNames[step.Command] {
			// Validation should have rejected this graph.
			e.log.Error("unvalidated command reached runtime", "command", step.Command)
		}
	case "finished":
		e.session = nil
	}
	return step
}

// SaveGame serializes the world and variable store.
func (e *Engine) SaveGame() ([]byte, error) {
	if !e.started {
		return nil, ErrNotStarted
	}
	return save.Save(e.game, e.store)
}

// LoadGame lays a save over the current world and fires the load event.
// The active dialogue session, if any, is dropped.
func (e *Engine) LoadGame(data []byte) error {
	if !e.started {
		return ErrNotStarted
	}
	sd, err := save.Load(data)
	if err != nil {
		return err
	}
	save.Apply(e.game, e.store, sd)
	e.session = nil
	e.pending = nil
	if err := e.registry.Trigger(e.game.Instance, "load"); err != nil {
		e.log.Warn("load handlers failed", "error", err)
	}
	return nil
}

// Vars exposes the variable store for front-end inspection.
func (e *Engine) Vars() *vars.Store { return e.store }

// Game exposes the world. Nil before Start.
func (e *Engine) Game() *world.Game { return e.game }

// Close releases the script bridge.
func (e *Engine) Close() {
	e.bridge.Close()
}

// Host interface for the script bridge.

// UpdateMapObject applies flag changes to a named object.
func (e *Engine) UpdateMapObject(mapID, object string, flags types.ObjectFlags) error {
	m := e.game.Map(mapID)
	if m == nil {
		return fmt.Errorf("no such map %q", mapID)
	}
	obj := m.Object(object)
	if obj == nil {
		return fmt.Errorf("map %q: no object %q", mapID, object)
	}
	obj.ApplyFlags(flags)
	return nil
}

// CurrentMap returns the active map.
func (e *Engine) CurrentMap() *world.Map {
	if e.game == nil {
		return nil
	}
	return e.game.CurrentMap()
}

// Players returns the players in join order.
func (e *Engine) Players() []*world.Player {
	if e.game == nil {
		return nil
	}
	return e.game.Players()
}

// PlaySound forwards to the configured sound player, or logs.
func (e *Engine) PlaySound(path string) error {
	if e.opts.Sound != nil {
		return e.opts.Sound(path)
	}
	e.log.Info("play sound", "path", path)
	return nil
}

func sortedKeys(m map[string]*graph.Graph) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
