package dialogue

import (
	"errors"
	"testing"

	"github.com/nathoo/fable/engine/expr"
	"github.com/nathoo/fable/engine/graph"
	"github.com/nathoo/fable/engine/vars"
)

func mustParse(t *testing.T, asset string) *graph.Graph {
	t.Helper()
	g, err := graph.Parse([]byte(asset))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	return g
}

func newSession(t *testing.T, asset string, opts Options) (*Session, *vars.Store) {
	t.Helper()
	store := vars.New()
	eval := expr.New(map[string]expr.Predicate{
		"notAlone": func() (any, error) { return false, nil },
	})
	return New(mustParse(t, asset), store, eval, opts), store
}

// The walkthrough from the asset contract: Text, Branch over two
// choices, fall-through goto into a terminal node.
const walkthrough = `{"name":"w","nodes":[
  {"name":"Start","body":[
    {"text":"A"},
    {"branch":[
      {"label":"x","body":[{"text":"B"}]},
      {"label":"y","body":[{"text":"C"}]}
    ]},
    {"goto":"end"}
  ]},
  {"name":"end","body":[{"text":"D"}]}
]}`

func TestWalkthrough(t *testing.T) {
	s, _ := newSession(t, walkthrough, Options{})

	step, err := s.Start("Start")
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if step.Kind != "displayed" || step.Text != "A" {
		t.Fatalf("Start = %+v, want displayed A", step)
	}

	step, err = s.Advance()
	if err != nil {
		t.Fatalf("Advance error: %v", err)
	}
	if step.Kind != "awaiting_choice" {
		t.Fatalf("step = %+v, want awaiting_choice", step)
	}
	if len(step.Labels) != 2 || step.Labels[0] != "x" || step.Labels[1] != "y" {
		t.Fatalf("labels = %v, want [x y]", step.Labels)
	}

	step, err = s.Choose(0)
	if err != nil {
		t.Fatalf("Choose error: %v", err)
	}
	if step.Kind != "displayed" || step.Text != "B" {
		t.Fatalf("after choice = %+v, want displayed B", step)
	}

	step, _ = s.Advance()
	if step.Kind != "displayed" || step.Text != "D" {
		t.Fatalf("after choice body = %+v, want displayed D", step)
	}

	step, _ = s.Advance()
	if step.Kind != "finished" {
		t.Fatalf("final step = %+v, want finished", step)
	}
	if !s.Finished() {
		t.Error("session should report finished")
	}
}

func TestStartUnknownNode(t *testing.T) {
	s, _ := newSession(t, walkthrough, Options{})
	if _, err := s.Start("Missing"); !errors.Is(err, ErrNoSuchNode) {
		t.Errorf("Start(Missing) error = %v, want ErrNoSuchNode", err)
	}
}

func TestInvalidChoiceLeavesCursor(t *testing.T) {
	s, _ := newSession(t, walkthrough, Options{})
	s.Start("Start")
	step, _ := s.Advance()
	if step.Kind != "awaiting_choice" {
		t.Fatalf("step = %+v, want awaiting_choice", step)
	}

	// Out of range on a two-choice branch.
	if _, err := s.Choose(2); !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("Choose(2) error = %v, want ErrInvalidChoice", err)
	}
	if _, err := s.Choose(-1); !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("Choose(-1) error = %v, want ErrInvalidChoice", err)
	}

	// The cursor is unchanged: the same branch is still pending and a
	// valid retry works.
	step, _ = s.Advance()
	if step.Kind != "awaiting_choice" || len(step.Labels) != 2 {
		t.Fatalf("after invalid choice = %+v, want same awaiting_choice", step)
	}
	step, err := s.Choose(1)
	if err != nil {
		t.Fatalf("retry Choose(1) error: %v", err)
	}
	if step.Text != "C" {
		t.Errorf("retry selected = %+v, want displayed C", step)
	}
}

func TestChooseWithoutPendingBranch(t *testing.T) {
	s, _ := newSession(t, walkthrough, Options{})
	s.Start("Start") // suspended at Text("A"), not a branch
	if _, err := s.Choose(0); !errors.Is(err, ErrInvalidChoice) {
		t.Errorf("Choose with no pending branch error = %v, want ErrInvalidChoice", err)
	}
}

func TestSetAndIf(t *testing.T) {
	asset := `{"name":"g","nodes":[
      {"name":"n","body":[
        {"set":{"key":"$x","value":1}},
        {"if":{"cond":"$x == 1","body":[{"text":"yes"}]}},
        {"if":{"cond":"$x == 2","body":[{"text":"no"}]}},
        {"text":"after"}
      ]}]}`
	s, store := newSession(t, asset, Options{})

	// Set is invisible to the caller; the first yield is the If body.
	step, err := s.Start("n")
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if step.Kind != "displayed" || step.Text != "yes" {
		t.Fatalf("step = %+v, want displayed yes", step)
	}
	if v, _ := store.Get("$x"); v != float64(1) {
		t.Errorf("$x = %v, want 1", v)
	}

	// False If body is skipped entirely.
	step, _ = s.Advance()
	if step.Text != "after" {
		t.Errorf("step = %+v, want displayed after", step)
	}
}

func TestIfFailsClosed(t *testing.T) {
	asset := `{"name":"g","nodes":[
      {"name":"n","body":[
        {"if":{"cond":"nosuch()","body":[{"text":"hidden"}]}},
        {"text":"visible"}
      ]}]}`
	s, _ := newSession(t, asset, Options{})
	step, err := s.Start("n")
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	// Unknown predicate must not abort the session; the condition is
	// treated as false.
	if step.Kind != "displayed" || step.Text != "visible" {
		t.Errorf("step = %+v, want displayed visible", step)
	}
}

func TestCommandAcknowledged(t *testing.T) {
	asset := `{"name":"g","nodes":[
      {"name":"n","body":[
        {"command":{"name":"play_sound","args":["ding.ogg"]}},
        {"text":"done"}
      ]}]}`
	s, _ := newSession(t, asset, Options{})

	step, err := s.Start("n")
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if step.Kind != "command" || step.Command != "play_sound" {
		t.Fatalf("step = %+v, want command play_sound", step)
	}
	if len(step.Args) != 1 || step.Args[0] != "ding.ogg" {
		t.Errorf("args = %v, want [ding.ogg]", step.Args)
	}

	// A choice during a pending command is invalid.
	if _, err := s.Choose(0); !errors.Is(err, ErrInvalidChoice) {
		t.Errorf("Choose during pending command error = %v, want ErrInvalidChoice", err)
	}

	// One Advance acknowledges; the command is never re-yielded.
	step, _ = s.Advance()
	if step.Kind != "displayed" || step.Text != "done" {
		t.Errorf("after ack = %+v, want displayed done", step)
	}
}

func TestGotoCycleDoesNotHang(t *testing.T) {
	asset := `{"name":"g","nodes":[
      {"name":"a","body":[{"goto":"b"}]},
      {"name":"b","body":[{"goto":"a"}]}
    ]}`
	s, _ := newSession(t, asset, Options{})

	// A cyclic graph must yield control instead of spinning: the session
	// ends cleanly rather than hanging the host.
	step, err := s.Start("a")
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if step.Kind != "finished" {
		t.Errorf("cyclic session step = %+v, want finished", step)
	}
}

func TestGotoCycleWithTextYieldsEachIteration(t *testing.T) {
	asset := `{"name":"g","nodes":[
      {"name":"a","body":[{"text":"tick"},{"goto":"a"}]}
    ]}`
	s, _ := newSession(t, asset, Options{})

	step, err := s.Start("a")
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	// Each loop iteration yields its text; the host stays in control.
	for i := 0; i < 5; i++ {
		if step.Kind != "displayed" || step.Text != "tick" {
			t.Fatalf("iteration %d: step = %+v, want displayed tick", i, step)
		}
		step, _ = s.Advance()
	}
}

func TestNoBreakFlag(t *testing.T) {
	asset := `{"name":"g","nodes":[
      {"name":"n","body":[{"text":"Hello, |"},{"text":"world"}]}]}`
	s, _ := newSession(t, asset, Options{})

	step, _ := s.Start("n")
	if step.Text != "Hello, " || !step.NoBreak {
		t.Errorf("step = %+v, want NoBreak 'Hello, '", step)
	}
	step, _ = s.Advance()
	if step.Text != "world" || step.NoBreak {
		t.Errorf("step = %+v, want breaking 'world'", step)
	}
}

func TestAutoContinueCoalescesText(t *testing.T) {
	asset := `{"name":"g","nodes":[
      {"name":"n","body":[
        {"text":"one"},
        {"text":"two, |"},
        {"text":"three"},
        {"branch":[{"label":"go","body":[{"text":"four"}]}]}
      ]}]}`
	s, _ := newSession(t, asset, Options{AutoContinue: true})

	step, err := s.Start("n")
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if step.Kind != "displayed" {
		t.Fatalf("step = %+v, want displayed", step)
	}
	if step.Text != "one\ntwo, three" {
		t.Errorf("coalesced text = %q, want %q", step.Text, "one\ntwo, three")
	}

	// The branch is delivered on the following advance.
	step, _ = s.Advance()
	if step.Kind != "awaiting_choice" || len(step.Labels) != 1 {
		t.Fatalf("step = %+v, want awaiting_choice [go]", step)
	}
	step, _ = s.Choose(0)
	if step.Kind != "displayed" || step.Text != "four" {
		t.Errorf("step = %+v, want displayed four", step)
	}
	step, _ = s.Advance()
	if step.Kind != "finished" {
		t.Errorf("step = %+v, want finished", step)
	}
}

func TestPromptSugar(t *testing.T) {
	asset := `{"name":"g","nodes":[
      {"name":"n","body":[
        {"prompt":{"message":"Which way?","choices":[
          {"label":"left","goto":"a"},
          {"label":"right","goto":"b"}
        ]}}
      ]},
      {"name":"a","body":[{"text":"west"}]},
      {"name":"b","body":[{"text":"east"}]}
    ]}`
	s, _ := newSession(t, asset, Options{})

	step, _ := s.Start("n")
	if step.Kind != "displayed" || step.Text != "Which way?" {
		t.Fatalf("step = %+v, want displayed 'Which way?'", step)
	}
	step, _ = s.Advance()
	if step.Kind != "awaiting_choice" {
		t.Fatalf("step = %+v, want awaiting_choice", step)
	}
	step, _ = s.Choose(1)
	if step.Kind != "displayed" || step.Text != "east" {
		t.Errorf("step = %+v, want displayed east", step)
	}
}

func TestAdvanceAfterFinishedStaysFinished(t *testing.T) {
	asset := `{"name":"g","nodes":[{"name":"n","body":[{"text":"x"}]}]}`
	s, _ := newSession(t, asset, Options{})
	s.Start("n")
	s.Advance() // finished
	step, err := s.Advance()
	if err != nil || step.Kind != "finished" {
		t.Errorf("Advance after finish = %+v, %v; want finished, nil", step, err)
	}
}

func TestBranchFallThrough(t *testing.T) {
	// An empty chosen body falls straight through to the instruction
	// after the branch.
	asset := `{"name":"g","nodes":[
      {"name":"n","body":[
        {"branch":[{"label":"skip","body":[]}]},
        {"text":"after"}
      ]}]}`
	s, _ := newSession(t, asset, Options{})
	step, _ := s.Start("n")
	if step.Kind != "awaiting_choice" {
		t.Fatalf("step = %+v, want awaiting_choice", step)
	}
	step, err := s.Choose(0)
	if err != nil {
		t.Fatalf("Choose error: %v", err)
	}
	if step.Kind != "displayed" || step.Text != "after" {
		t.Errorf("step = %+v, want displayed after", step)
	}
}

func TestNestedBranchExpansion(t *testing.T) {
	asset := `{"name":"g","nodes":[
      {"name":"n","body":[
        {"branch":[
          {"label":"outer","body":[
            {"text":"in outer"},
            {"branch":[{"label":"inner","body":[{"text":"in inner"}]}]}
          ]}
        ]},
        {"text":"tail"}
      ]}]}`
	s, _ := newSession(t, asset, Options{})
	s.Start("n")
	step, _ := s.Choose(0)
	if step.Text != "in outer" {
		t.Fatalf("step = %+v, want 'in outer'", step)
	}
	step, _ = s.Advance()
	if step.Kind != "awaiting_choice" {
		t.Fatalf("step = %+v, want inner awaiting_choice", step)
	}
	step, _ = s.Choose(0)
	if step.Text != "in inner" {
		t.Fatalf("step = %+v, want 'in inner'", step)
	}
	step, _ = s.Advance()
	if step.Text != "tail" {
		t.Fatalf("step = %+v, want fall-through to tail", step)
	}
	if step, _ = s.Advance(); step.Kind != "finished" {
		t.Errorf("step = %+v, want finished", step)
	}
}

func TestStepTypesClosedSet(t *testing.T) {
	// Guard against new kinds leaking out unnoticed.
	s, _ := newSession(t, walkthrough, Options{})
	step, _ := s.Start("Start")
	seen := map[string]bool{step.Kind: true}
	for !s.Finished() {
		if s.AwaitingChoice() {
			step, _ = s.Choose(0)
		} else {
			step, _ = s.Advance()
		}
		seen[step.Kind] = true
	}
	for kind := range seen {
		switch kind {
		case "displayed", "awaiting_choice", "command", "finished":
		default:
			t.Errorf("unexpected step kind %q", kind)
		}
	}
}
