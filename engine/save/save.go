// Package save implements JSON serialization and deserialization of game
// state: the variable store, the active map, per-map object flags, and
// each player's collection. Dialogue sessions are deliberately not
// saved; an interrupted dialogue restarts from its entry node.
package save

import (
	"encoding/json"

	"github.com/nathoo/fable/engine/vars"
	"github.com/nathoo/fable/engine/world"
)

// Version is written into every save file for forward compatibility
// checks.
const Version = "1"

// ObjectState is the persisted slice of one map object: only the
// mutable flags. Object identity and dialogue bindings come from the
// assets, not the save.
type ObjectState struct {
	Visible     bool `json:"visible"`
	Collectable bool `json:"collectable"`
}

// SaveData is the JSON-serializable save format.
type SaveData struct {
	Version    string                            `json:"version"`
	CurrentMap string                            `json:"current_map"`
	Vars       map[string]any                    `json:"vars"`
	Objects    map[string]map[string]ObjectState `json:"objects"`
	Collected  map[string][]string               `json:"collected"`
}

// Save serializes the game world and variable store to JSON bytes.
func Save(g *world.Game, store *vars.Store) ([]byte, error) {
	objects := map[string]map[string]ObjectState{}
	for _, id := range g.MapIDs() {
		m := g.Map(id)
		states := map[string]ObjectState{}
		for _, obj := range m.Objects() {
			states[obj.Name] = ObjectState{Visible: obj.Visible, Collectable: obj.Collectable}
		}
		objects[id] = states
	}

	collected := map[string][]string{}
	for _, p := range g.Players() {
		collected[p.ID] = append([]string{}, p.Collected...)
	}

	current := ""
	if m := g.CurrentMap(); m != nil {
		current = m.ID
	}

	data := SaveData{
		Version:    Version,
		CurrentMap: current,
		Vars:       store.Snapshot(),
		Objects:    objects,
		Collected:  collected,
	}
	return json.MarshalIndent(data, "", "  ")
}

// Load deserializes JSON bytes into SaveData.
func Load(data []byte) (*SaveData, error) {
	var sd SaveData
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, err
	}
	// Ensure maps are never nil after load.
	if sd.Vars == nil {
		sd.Vars = map[string]any{}
	}
	if sd.Objects == nil {
		sd.Objects = map[string]map[string]ObjectState{}
	}
	if sd.Collected == nil {
		sd.Collected = map[string][]string{}
	}
	return &sd, nil
}

// Apply lays loaded save data over a freshly constructed world. Maps,
// objects, and players the save does not mention keep their asset
// defaults; saved entries that no longer exist in the assets are
// skipped.
func Apply(g *world.Game, store *vars.Store, sd *SaveData) {
	store.Restore(sd.Vars)

	for mapID, states := range sd.Objects {
		m := g.Map(mapID)
		if m == nil {
			continue
		}
		for name, st := range states {
			obj := m.Object(name)
			if obj == nil {
				continue
			}
			obj.Visible = st.Visible
			obj.Collectable = st.Collectable
		}
	}

	for _, p := range g.Players() {
		if names, ok := sd.Collected[p.ID]; ok {
			p.Collected = append([]string{}, names...)
		}
	}

	if sd.CurrentMap != "" {
		// Ignore a stale map id; the default current map stands.
		_ = g.SetCurrentMap(sd.CurrentMap)
	}
}
