package script

import (
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/fable/engine/events"
	"github.com/nathoo/fable/engine/world"
	"github.com/nathoo/fable/types"
)

// registerAPI installs the script-facing globals: the archetype
// extension DSL (Extend, On, Predicate) and the core bridge table.
func (b *Bridge) registerAPI() {
	b.registerDSL()
	b.registerCore()
}

func (b *Bridge) registerDSL() {
	L := b.L

	// Extend "player" { setup = fn, on_collect = fn, ... } — curried.
	// Reopening is allowed: each call appends to the archetype's
	// descriptor, so later scripts can extend what the prelude defined.
	L.SetGlobal("Extend", L.NewFunction(func(L *lua.LState) int {
		archetype := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			var failure string
			tbl.ForEach(func(k, v lua.LValue) {
				if failure != "" {
					return
				}
				key, ok := k.(lua.LString)
				if !ok {
					failure = "Extend table keys must be strings"
					return
				}
				fn, ok := v.(*lua.LFunction)
				if !ok {
					failure = "Extend entry " + string(key) + " must be a function"
					return
				}
				switch {
				case string(key) == "setup":
					if err := b.registry.OnSetup(archetype, b.wrapSetup(fn)); err != nil {
						failure = err.Error()
					}
				case strings.HasPrefix(string(key), "on_"):
					event := strings.TrimPrefix(string(key), "on_")
					if err := b.registry.OnClass(archetype, event, events.Any, b.wrapHandler(fn)); err != nil {
						failure = err.Error()
					}
				default:
					failure = "Extend entry " + string(key) + " is not setup or on_<event>"
				}
			})
			if failure != "" {
				L.RaiseError("Extend %q: %s", archetype, failure)
			}
			return 0
		}))
		return 1
	}))

	// On("player", "collect", "gem", fn) — class-level handler with an
	// object-name filter. Use "any" to match every object.
	L.SetGlobal("On", L.NewFunction(func(L *lua.LState) int {
		archetype := L.CheckString(1)
		event := L.CheckString(2)
		match := L.CheckString(3)
		fn := L.CheckFunction(4)
		if err := b.registry.OnClass(archetype, event, match, b.wrapHandler(fn)); err != nil {
			L.RaiseError("On(%q, %q): %v", archetype, event, err)
		}
		return 0
	}))

	// Predicate("notAlone", fn) — exposes a zero-argument query to
	// dialogue conditions.
	L.SetGlobal("Predicate", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		fn := L.CheckFunction(2)
		b.predicates[name] = b.wrapPredicate(fn)
		return 0
	}))
}

func (b *Bridge) registerCore() {
	L := b.L
	core := L.NewTable()

	core.RawSetString("start_dialogue", L.NewFunction(func(L *lua.LState) int {
		node := L.CheckString(1)
		if err := b.host.StartDialogue(node); err != nil {
			L.RaiseError("start_dialogue(%q): %v", node, err)
		}
		return 0
	}))

	core.RawSetString("update_object", L.NewFunction(func(L *lua.LState) int {
		mapID := L.CheckString(1)
		name := L.CheckString(2)
		tbl := L.CheckTable(3)
		var flags types.ObjectFlags
		if v := tbl.RawGetString("visible"); v != lua.LNil {
			visible := lua.LVAsBool(v)
			flags.Visible = &visible
		}
		if v := tbl.RawGetString("collectable"); v != lua.LNil {
			collectable := lua.LVAsBool(v)
			flags.Collectable = &collectable
		}
		if err := b.host.UpdateMapObject(mapID, name, flags); err != nil {
			L.RaiseError("update_object(%q, %q): %v", mapID, name, err)
		}
		return 0
	}))

	core.RawSetString("current_map", L.NewFunction(func(L *lua.LState) int {
		m := b.host.CurrentMap()
		if m == nil {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(m.ID))
		return 1
	}))

	core.RawSetString("players", L.NewFunction(func(L *lua.LState) int {
		players := b.host.Players()
		out := L.NewTable()
		for _, p := range players {
			out.Append(b.playerTable(p))
		}
		L.Push(out)
		return 1
	}))

	core.RawSetString("play_sound", L.NewFunction(func(L *lua.LState) int {
		path := L.CheckString(1)
		if err := b.host.PlaySound(path); err != nil {
			L.RaiseError("play_sound(%q): %v", path, err)
		}
		return 0
	}))

	core.RawSetString("get_var", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		v, _ := b.store.Get(name)
		L.Push(goToLua(v))
		return 1
	}))

	core.RawSetString("set_var", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		b.store.Set(name, luaToGo(L.Get(2)))
		return 0
	}))

	core.RawSetString("log", L.NewFunction(func(L *lua.LState) int {
		b.log.Info("script: " + L.CheckString(1))
		return 0
	}))

	L.SetGlobal("core", core)
}

// wrapHandler turns a Lua function into an event handler. The closure
// receives an explicit self table bound to the firing instance plus the
// event arguments — no implicit receiver.
func (b *Bridge) wrapHandler(fn *lua.LFunction) events.HandlerFunc {
	return func(ctx *events.Context) error {
		args := make([]lua.LValue, 0, len(ctx.Args)+1)
		args = append(args, b.instanceTable(ctx.Instance, false))
		for _, a := range ctx.Args {
			args = append(args, goToLua(a))
		}
		return b.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...)
	}
}

// wrapSetup turns a Lua function into a setup block. The self table it
// receives additionally carries on(), the instance-level registration
// entry point.
func (b *Bridge) wrapSetup(fn *lua.LFunction) events.SetupFunc {
	return func(inst *events.Instance) error {
		return b.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true},
			b.instanceTable(inst, true))
	}
}

// wrapPredicate turns a Lua function into an evaluator predicate. The
// function must return a single scalar.
func (b *Bridge) wrapPredicate(fn *lua.LFunction) func() (any, error) {
	return func() (any, error) {
		if err := b.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}); err != nil {
			return nil, err
		}
		ret := b.L.Get(-1)
		b.L.Pop(1)
		return luaToGo(ret), nil
	}
}

// instanceTable builds the self table for one handler or setup call.
func (b *Bridge) instanceTable(inst *events.Instance, withOn bool) *lua.LTable {
	L := b.L
	tbl := L.NewTable()
	tbl.RawSetString("id", lua.LString(inst.ID))
	tbl.RawSetString("archetype", lua.LString(inst.Archetype))
	if p, ok := inst.Object.(*world.Player); ok {
		tbl.RawSetString("name", lua.LString(p.Name))
	}
	if withOn {
		tbl.RawSetString("on", L.NewFunction(func(L *lua.LState) int {
			event := L.CheckString(1)
			match := L.CheckString(2)
			fn := L.CheckFunction(3)
			if err := inst.On(event, match, b.wrapHandler(fn)); err != nil {
				L.RaiseError("on(%q): %v", event, err)
			}
			return 0
		}))
	}
	return tbl
}

// playerTable exposes one player to scripts: identity plus a has()
// collection query.
func (b *Bridge) playerTable(p *world.Player) *lua.LTable {
	L := b.L
	tbl := L.NewTable()
	tbl.RawSetString("id", lua.LString(p.ID))
	tbl.RawSetString("name", lua.LString(p.Name))
	tbl.RawSetString("has", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(p.Has(L.CheckString(1))))
		return 1
	}))
	return tbl
}
