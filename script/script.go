// Package script hosts the embedded Lua environment: it loads behavior
// scripts at startup, exposes the archetype extension DSL and the core
// bridge table to them, and wraps the Lua closures they register so the
// event dispatcher can fire them against live game state. Unlike asset
// loading, the VM stays alive for the whole process — the handlers are
// Lua functions.
package script

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/fable/engine/events"
	"github.com/nathoo/fable/engine/expr"
	"github.com/nathoo/fable/engine/vars"
	"github.com/nathoo/fable/engine/world"
	"github.com/nathoo/fable/types"
)

// PreludeName is loaded before any other script so that shared archetype
// definitions exist when the startup scripts extend them.
const PreludeName = "prelude.lua"

// Host is the narrow call surface handlers reach game state through.
// Every call is synchronous and side-effecting; nothing returns an
// awaitable.
type Host interface {
	StartDialogue(node string) error
	UpdateMapObject(mapID, object string, flags types.ObjectFlags) error
	CurrentMap() *world.Map
	Players() []*world.Player
	PlaySound(path string) error
}

// Bridge owns the Lua state and the registrations scripts made into it.
type Bridge struct {
	L        *lua.LState
	host     Host
	registry *events.Registry
	store    *vars.Store
	log      *slog.Logger

	predicates map[string]expr.Predicate
}

// New creates a sandboxed Lua state and registers the script API.
func New(host Host, registry *events.Registry, store *vars.Store, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibs(L)
	sandbox(L)

	b := &Bridge{
		L:          L,
		host:       host,
		registry:   registry,
		store:      store,
		log:        log,
		predicates: map[string]expr.Predicate{},
	}
	b.registerAPI()
	return b
}

// Close releases the Lua state. No handler can fire afterwards.
func (b *Bridge) Close() {
	b.L.Close()
}

// Predicates returns the predicate table scripts registered, for the
// expression evaluator.
func (b *Bridge) Predicates() map[string]expr.Predicate {
	return b.predicates
}

// LoadDir executes every .lua file in dir: the prelude first, then the
// rest alphabetically, so later scripts can extend archetypes the
// prelude defined. A failing script is reported and skipped; it does not
// abort the others.
func (b *Bridge) LoadDir(dir string) []error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return []error{fmt.Errorf("reading script directory %s: %w", dir, err)}
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".lua") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return []error{fmt.Errorf("no .lua files found in %s", dir)}
	}
	sortScripts(names)

	var errs []error
	for _, name := range names {
		if err := b.LoadFile(filepath.Join(dir, name)); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// LoadFile executes one script file.
func (b *Bridge) LoadFile(path string) error {
	if err := b.L.DoFile(path); err != nil {
		return fmt.Errorf("executing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// LoadString executes script source directly. Used by tests.
func (b *Bridge) LoadString(src string) error {
	if err := b.L.DoString(src); err != nil {
		return fmt.Errorf("executing script: %w", err)
	}
	return nil
}

// sortScripts orders the prelude first, the rest alphabetically.
func sortScripts(names []string) {
	sort.Slice(names, func(i, j int) bool {
		if names[i] == PreludeName {
			return true
		}
		if names[j] == PreludeName {
			return false
		}
		return names[i] < names[j]
	})
}

// openSafeLibs opens only the safe subset of Lua standard libraries.
func openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// sandbox removes globals that would reach the filesystem or break
// determinism.
func sandbox(L *lua.LState) {
	dangerous := []string{
		"dofile", "loadfile", "load", "loadstring",
		"rawset", "rawget", "rawequal",
		"collectgarbage",
	}
	for _, name := range dangerous {
		L.SetGlobal(name, lua.LNil)
	}
	if mathTbl := L.GetGlobal("math"); mathTbl != lua.LNil {
		if tbl, ok := mathTbl.(*lua.LTable); ok {
			tbl.RawSetString("randomseed", lua.LNil)
		}
	}
}
