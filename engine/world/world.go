// Package world models the host-side game state the script bridge acts
// on: the game, its players and maps, and the map objects handlers show,
// hide, and collect. Map objects are mutated only through bridge calls,
// never by the dialogue interpreter.
package world

import (
	"fmt"

	"github.com/nathoo/fable/engine/events"
	"github.com/nathoo/fable/types"
)

// Object is a named map object with mutable flags and an optional
// dialogue node started when the player interacts with it.
type Object struct {
	Name         string
	Visible      bool
	Collectable  bool
	DialogueNode string
}

// ApplyFlags updates the object's mutable flags. Nil fields are left
// unchanged.
func (o *Object) ApplyFlags(flags types.ObjectFlags) {
	if flags.Visible != nil {
		o.Visible = *flags.Visible
	}
	if flags.Collectable != nil {
		o.Collectable = *flags.Collectable
	}
}

// Map owns an ordered set of objects.
type Map struct {
	ID       string
	Instance *events.Instance

	objects []*Object
	byName  map[string]*Object
}

// AddObject registers an object on the map. Objects keep insertion
// order; names are unique per map.
func (m *Map) AddObject(obj *Object) error {
	if _, dup := m.byName[obj.Name]; dup {
		return fmt.Errorf("map %q: duplicate object %q", m.ID, obj.Name)
	}
	m.objects = append(m.objects, obj)
	m.byName[obj.Name] = obj
	return nil
}

// Object returns the named object, or nil.
func (m *Map) Object(name string) *Object {
	return m.byName[name]
}

// Objects returns the map's objects in insertion order.
func (m *Map) Objects() []*Object {
	return m.objects
}

// Player is one player-facing entity with a collection of picked-up
// object names.
type Player struct {
	ID        string
	Name      string
	Instance  *events.Instance
	Collected []string
}

// Has reports whether the player has collected the named object.
func (p *Player) Has(name string) bool {
	for _, n := range p.Collected {
		if n == name {
			return true
		}
	}
	return false
}

// Game is the root world instance. There is exactly one per process.
type Game struct {
	Instance *events.Instance

	registry   *events.Registry
	players    []*Player
	maps       map[string]*Map
	mapOrder   []string
	currentMap string
}

// NewGame constructs the game instance, running game setup blocks.
func NewGame(r *events.Registry) (*Game, error) {
	g := &Game{registry: r, maps: map[string]*Map{}}
	inst, err := r.NewInstance(events.ArchetypeGame, "game", g)
	if err != nil {
		return nil, err
	}
	g.Instance = inst
	return g, nil
}

// AddPlayer constructs a player and its event instance, running player
// setup blocks. Setup errors surface but the player is still added.
func (g *Game) AddPlayer(id, name string) (*Player, error) {
	p := &Player{ID: id, Name: name}
	inst, err := g.registry.NewInstance(events.ArchetypePlayer, id, p)
	if inst != nil {
		p.Instance = inst
		g.players = append(g.players, p)
	}
	return p, err
}

// AddMap constructs a map and its event instance, running map setup
// blocks.
func (g *Game) AddMap(id string) (*Map, error) {
	if _, dup := g.maps[id]; dup {
		return nil, fmt.Errorf("duplicate map %q", id)
	}
	m := &Map{ID: id, byName: map[string]*Object{}}
	inst, err := g.registry.NewInstance(events.ArchetypeMap, id, m)
	if inst != nil {
		m.Instance = inst
		g.maps[id] = m
		g.mapOrder = append(g.mapOrder, id)
		if g.currentMap == "" {
			g.currentMap = id
		}
	}
	return m, err
}

// Players returns the players in join order.
func (g *Game) Players() []*Player {
	return g.players
}

// Map returns the map with the given id, or nil.
func (g *Game) Map(id string) *Map {
	return g.maps[id]
}

// MapIDs returns map ids in creation order.
func (g *Game) MapIDs() []string {
	return g.mapOrder
}

// CurrentMap returns the active map, or nil before any map is added.
func (g *Game) CurrentMap() *Map {
	return g.maps[g.currentMap]
}

// SetCurrentMap switches the active map.
func (g *Game) SetCurrentMap(id string) error {
	if _, ok := g.maps[id]; !ok {
		return fmt.Errorf("no such map %q", id)
	}
	g.currentMap = id
	return nil
}

// Collect marks the named object on the current map as taken: it stops
// being visible and collectable, and joins the player's collection.
// The caller fires the collect event afterwards.
func (g *Game) Collect(p *Player, objectName string) (*Object, error) {
	m := g.CurrentMap()
	if m == nil {
		return nil, fmt.Errorf("no current map")
	}
	obj := m.Object(objectName)
	if obj == nil {
		return nil, fmt.Errorf("map %q: no object %q", m.ID, objectName)
	}
	if !obj.Collectable || !obj.Visible {
		return nil, fmt.Errorf("map %q: object %q is not collectable", m.ID, objectName)
	}
	obj.Visible = false
	obj.Collectable = false
	p.Collected = append(p.Collected, objectName)
	return obj, nil
}
