package world

import (
	"testing"

	"github.com/nathoo/fable/engine/events"
	"github.com/nathoo/fable/types"
)

func newTestGame(t *testing.T) *Game {
	t.Helper()
	g, err := NewGame(events.NewRegistry(nil))
	if err != nil {
		t.Fatalf("NewGame error: %v", err)
	}
	return g
}

func TestMapObjects(t *testing.T) {
	g := newTestGame(t)
	m, err := g.AddMap("sandyrocks")
	if err != nil {
		t.Fatalf("AddMap error: %v", err)
	}

	gem := &Object{Name: "gem", Visible: true, Collectable: true, DialogueNode: "GemFound"}
	if err := m.AddObject(gem); err != nil {
		t.Fatalf("AddObject error: %v", err)
	}
	if err := m.AddObject(&Object{Name: "gem"}); err == nil {
		t.Error("duplicate object name should fail")
	}

	if m.Object("gem") != gem {
		t.Error("Object(gem) lookup failed")
	}
	if m.Object("nope") != nil {
		t.Error("Object(nope) should be nil")
	}

	visible := false
	gem.ApplyFlags(types.ObjectFlags{Visible: &visible})
	if gem.Visible {
		t.Error("ApplyFlags should hide the object")
	}
	if !gem.Collectable {
		t.Error("ApplyFlags must leave nil fields unchanged")
	}
}

func TestCollect(t *testing.T) {
	g := newTestGame(t)
	m, _ := g.AddMap("sandyrocks")
	m.AddObject(&Object{Name: "gem", Visible: true, Collectable: true})
	m.AddObject(&Object{Name: "rock", Visible: true, Collectable: false})
	p, err := g.AddPlayer("p1", "Miri")
	if err != nil {
		t.Fatalf("AddPlayer error: %v", err)
	}

	obj, err := g.Collect(p, "gem")
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if obj.Visible || obj.Collectable {
		t.Error("collected object should be hidden and uncollectable")
	}
	if !p.Has("gem") {
		t.Error("player should have the gem")
	}

	if _, err := g.Collect(p, "gem"); err == nil {
		t.Error("collecting twice should fail")
	}
	if _, err := g.Collect(p, "rock"); err == nil {
		t.Error("collecting a non-collectable object should fail")
	}
	if _, err := g.Collect(p, "ghost"); err == nil {
		t.Error("collecting a missing object should fail")
	}
}

func TestCurrentMap(t *testing.T) {
	g := newTestGame(t)
	if g.CurrentMap() != nil {
		t.Error("CurrentMap before any AddMap should be nil")
	}

	g.AddMap("a")
	g.AddMap("b")
	if g.CurrentMap().ID != "a" {
		t.Errorf("first added map should be current, got %q", g.CurrentMap().ID)
	}
	if err := g.SetCurrentMap("b"); err != nil {
		t.Fatalf("SetCurrentMap error: %v", err)
	}
	if g.CurrentMap().ID != "b" {
		t.Errorf("current map = %q, want b", g.CurrentMap().ID)
	}
	if err := g.SetCurrentMap("zzz"); err == nil {
		t.Error("SetCurrentMap to unknown map should fail")
	}

	ids := g.MapIDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("MapIDs = %v, want [a b]", ids)
	}
}

func TestSetupBlocksRunOnConstruction(t *testing.T) {
	r := events.NewRegistry(nil)
	var setupFor []string
	r.OnSetup(events.ArchetypePlayer, func(inst *events.Instance) error {
		setupFor = append(setupFor, inst.ID)
		return nil
	})

	g, _ := NewGame(r)
	g.AddPlayer("p1", "Miri")
	g.AddPlayer("p2", "Tal")

	if len(setupFor) != 2 || setupFor[0] != "p1" || setupFor[1] != "p2" {
		t.Errorf("setups ran for %v, want [p1 p2]", setupFor)
	}
	if len(g.Players()) != 2 {
		t.Errorf("Players() = %d, want 2", len(g.Players()))
	}
}
