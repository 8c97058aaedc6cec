// Package events implements per-archetype registries of named-event
// handler chains with instance-level and class-level scopes, and the
// ordered, synchronous dispatcher that fires them.
//
// Error policy: dispatch is best-effort. Every handler in the chain is
// attempted even if an earlier one fails; the errors are joined and
// returned to the caller after the chain completes. A broken handler can
// never corrupt the registry or starve the handlers behind it.
package events

import (
	"errors"
	"fmt"
	"log/slog"
)

// The fixed archetypes that can own handlers and setup blocks.
const (
	ArchetypeGame   = "game"
	ArchetypePlayer = "player"
	ArchetypeMap    = "map"
)

// Any matches every object name in a handler registration.
const Any = "any"

var (
	// ErrUnknownArchetype is a configuration error, fatal at script load.
	ErrUnknownArchetype = errors.New("unknown archetype")
	// ErrUnknownEvent is a configuration error, fatal at script load.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrReentrantTrigger guards against a handler firing the event it is
	// itself handling, for the same instance. The nested trigger is
	// rejected; the outer chain continues.
	ErrReentrantTrigger = errors.New("reentrant trigger")
	// ErrRegistryFrozen rejects class-level registration after game start.
	ErrRegistryFrozen = errors.New("registry frozen after game start")
	// ErrMidDispatch rejects handler registration from inside a handler.
	ErrMidDispatch = errors.New("registration during dispatch")
)

// Context is passed to every handler invocation: the firing instance
// plus the event arguments. Handlers never get an implicit receiver.
type Context struct {
	Instance *Instance
	Event    string
	Args     []any
}

// HandlerFunc is an opaque handler callable. For script handlers it
// captures the embedded Lua environment.
type HandlerFunc func(ctx *Context) error

// SetupFunc runs exactly once at instance construction.
type SetupFunc func(inst *Instance) error

type handler struct {
	match string // object-name filter; Any matches everything
	fn    HandlerFunc
}

// Registry holds class-level handler chains and setup blocks per
// archetype. It is built once at script-load time; Freeze is called at
// game start, after which only instance-level setup registration (at
// instance construction) can add handlers.
type Registry struct {
	log     *slog.Logger
	events  map[string]bool
	class  map[string]map[string][]handler
	setups map[string][]SetupFunc
	frozen bool
}

// KnownEvents is the closed set of event names the dispatcher accepts.
func KnownEvents() []string {
	return []string{"collect", "spawn", "load", "enter", "exit", "new_game"}
}

// NewRegistry creates an empty registry accepting the known event set.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	events := map[string]bool{}
	for _, e := range KnownEvents() {
		events[e] = true
	}
	class := map[string]map[string][]handler{}
	setups := map[string][]SetupFunc{}
	for _, a := range []string{ArchetypeGame, ArchetypePlayer, ArchetypeMap} {
		class[a] = map[string][]handler{}
		setups[a] = nil
	}
	return &Registry{log: log, events: events, class: class, setups: setups}
}

// Freeze marks the end of script loading. Later class-level
// registrations fail with ErrRegistryFrozen.
func (r *Registry) Freeze() {
	r.frozen = true
}

// OnClass registers a class-level handler shared by all instances of the
// archetype. match filters on the event's object-name argument; use Any
// for a wildcard.
func (r *Registry) OnClass(archetype, event, match string, fn HandlerFunc) error {
	if r.frozen {
		return ErrRegistryFrozen
	}
	chains, ok := r.class[archetype]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownArchetype, archetype)
	}
	if !r.events[event] {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, event)
	}
	chains[event] = append(chains[event], handler{match: match, fn: fn})
	return nil
}

// OnSetup registers a setup block for the archetype. Setup blocks run
// exactly once per instance, at construction, in registration order,
// before any event can fire for that instance.
func (r *Registry) OnSetup(archetype string, fn SetupFunc) error {
	if r.frozen {
		return ErrRegistryFrozen
	}
	if _, ok := r.class[archetype]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownArchetype, archetype)
	}
	r.setups[archetype] = append(r.setups[archetype], fn)
	return nil
}

// Instance is a live entity that can receive events. Object carries the
// world-side value the instance represents.
type Instance struct {
	ID        string
	Archetype string
	Object    any

	registry      *Registry
	handlers      map[string][]handler
	inFlight      map[string]bool
	dispatchDepth int
}

// NewInstance constructs an instance of the archetype and runs its setup
// blocks synchronously, in registration order. Setup errors are joined
// and returned; the instance itself is still usable so one broken setup
// block does not orphan the entity.
func (r *Registry) NewInstance(archetype, id string, object any) (*Instance, error) {
	if _, ok := r.class[archetype]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownArchetype, archetype)
	}
	inst := &Instance{
		ID:        id,
		Archetype: archetype,
		Object:    object,
		registry:  r,
		handlers:  map[string][]handler{},
		inFlight:  map[string]bool{},
	}
	var errs []error
	for _, setup := range r.setups[archetype] {
		if err := setup(inst); err != nil {
			errs = append(errs, fmt.Errorf("setup for %s %q: %w", archetype, id, err))
		}
	}
	return inst, errors.Join(errs...)
}

// On registers an instance-level handler. Instance handlers fire before
// any class-level handler for the archetype. Registration from inside a
// running handler chain is rejected.
func (i *Instance) On(event, match string, fn HandlerFunc) error {
	if i.dispatchDepth > 0 {
		return ErrMidDispatch
	}
	if !i.registry.events[event] {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, event)
	}
	i.handlers[event] = append(i.handlers[event], handler{match: match, fn: fn})
	return nil
}

// Trigger fires an event against an instance: instance-scoped handlers
// first, in registration order, then class-scoped handlers for the
// instance's archetype, in registration order. That two-tier order is a
// contract — item-specific bookkeeping observes the event before generic
// class behavior reacts to it.
//
// Handlers whose match filter names a specific object only fire when the
// first argument equals that name.
func (r *Registry) Trigger(inst *Instance, event string, args ...any) error {
	if !r.events[event] {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, event)
	}
	if inst.inFlight[event] {
		return fmt.Errorf("%w: %s on %s %q", ErrReentrantTrigger, event, inst.Archetype, inst.ID)
	}
	inst.inFlight[event] = true
	inst.dispatchDepth++
	defer func() {
		delete(inst.inFlight, event)
		inst.dispatchDepth--
	}()

	ctx := &Context{Instance: inst, Event: event, Args: args}

	var errs []error
	chains := [][]handler{
		inst.handlers[event],
		r.class[inst.Archetype][event],
	}
	for _, chain := range chains {
		for _, h := range chain {
			if !matches(h.match, args) {
				continue
			}
			if err := h.fn(ctx); err != nil {
				r.log.Warn("event handler failed",
					"archetype", inst.Archetype, "instance", inst.ID,
					"event", event, "error", err)
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// matches applies the object-name filter: Any passes everything, a
// specific name requires the first event argument to equal it.
func matches(match string, args []any) bool {
	if match == Any || match == "" {
		return true
	}
	if len(args) == 0 {
		return false
	}
	name, ok := args[0].(string)
	return ok && name == match
}
