package graph

import (
	"errors"
	"strings"
	"testing"

	"github.com/nathoo/fable/engine/expr"
)

const sampleAsset = `{
  "name": "intro",
  "meta": {"Start": ["run_on_load", "run_once"]},
  "nodes": [
    {"name": "Start", "body": [
      {"text": "A"},
      {"branch": [
        {"label": "x", "body": [{"text": "B"}]},
        {"label": "y", "body": [{"text": "C"}]}
      ]},
      {"goto": "end"}
    ]},
    {"name": "end", "body": [
      {"text": "D"}
    ]}
  ]
}`

func TestParse(t *testing.T) {
	g, err := Parse([]byte(sampleAsset))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if g.Name != "intro" {
		t.Errorf("Name = %q, want intro", g.Name)
	}
	if len(g.Nodes) != 2 {
		t.Fatalf("len(Nodes) = %d, want 2", len(g.Nodes))
	}
	if !g.HasNode("Start") || !g.HasNode("end") {
		t.Error("node index missing Start or end")
	}
	if g.Node("nope") != nil {
		t.Error("Node(nope) should be nil")
	}
	if !g.HasTag("Start", "run_once") {
		t.Error("Start should carry run_once tag")
	}

	start := g.Node("Start")
	if got := len(start.Body); got != 3 {
		t.Fatalf("Start body length = %d, want 3", got)
	}
	branch := start.Body[1]
	if branch.Type != "branch" || len(branch.Choices) != 2 {
		t.Fatalf("second instruction = %+v, want branch with 2 choices", branch)
	}
	if branch.Choices[0].Label != "x" || branch.Choices[1].Label != "y" {
		t.Errorf("choice order = %q,%q, want x,y", branch.Choices[0].Label, branch.Choices[1].Label)
	}
}

func TestParseTextLineBreakSuppression(t *testing.T) {
	g, err := Parse([]byte(`{"name":"g","nodes":[{"name":"n","body":[{"text":"Hello|"}]}]}`))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	in := g.Node("n").Body[0]
	if in.Text != "Hello" || !in.NoBreak {
		t.Errorf("text = %q noBreak = %v, want Hello/true", in.Text, in.NoBreak)
	}
}

func TestParsePromptDesugar(t *testing.T) {
	asset := `{"name":"g","nodes":[
      {"name":"n","body":[
        {"prompt": {"message": "Pick one", "choices": [
          {"label": "left", "goto": "a"},
          {"label": "right", "goto": "b"}
        ]}}
      ]},
      {"name":"a","body":[{"text":"A"}]},
      {"name":"b","body":[{"text":"B"}]}
    ]}`
	g, err := Parse([]byte(asset))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	body := g.Node("n").Body
	if len(body) != 2 {
		t.Fatalf("prompt should desugar into 2 instructions, got %d", len(body))
	}
	if body[0].Type != "text" || body[0].Text != "Pick one" {
		t.Errorf("first instruction = %+v, want text 'Pick one'", body[0])
	}
	if body[1].Type != "branch" || len(body[1].Choices) != 2 {
		t.Fatalf("second instruction = %+v, want branch with 2 choices", body[1])
	}
	choice := body[1].Choices[1]
	if choice.Label != "right" || len(choice.Body) != 1 || choice.Body[0].Type != "goto" || choice.Body[0].Target != "b" {
		t.Errorf("desugared choice = %+v, want single goto b", choice)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		asset string
	}{
		{"malformed json", `{`},
		{"missing name", `{"nodes":[]}`},
		{"empty node name", `{"name":"g","nodes":[{"name":"","body":[]}]}`},
		{"duplicate node", `{"name":"g","nodes":[{"name":"n","body":[]},{"name":"n","body":[]}]}`},
		{"ambiguous instruction", `{"name":"g","nodes":[{"name":"n","body":[{"text":"a","goto":"n"}]}]}`},
		{"empty instruction", `{"name":"g","nodes":[{"name":"n","body":[{}]}]}`},
	}
	for _, tt := range tests {
		if _, err := Parse([]byte(tt.asset)); err == nil {
			t.Errorf("%s: Parse succeeded, want error", tt.name)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	asset := `{"name":"g","meta":{"n":["run_once"]},"nodes":[
      {"name":"n","body":[
        {"text":"hello|"},
        {"set":{"key":"$x","value":1}},
        {"if":{"cond":"$x == 1","body":[{"text":"one"}]}},
        {"branch":[
          {"label":"b","body":[{"goto":"m"}]},
          {"label":"a","body":[{"command":{"name":"play_sound","args":["ding.ogg"]}}]}
        ]}
      ]},
      {"name":"m","body":[{"text":"end"}]}
    ]}`
	g, err := Parse([]byte(asset))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	data, err := Marshal(g)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	g2, err := Parse(data)
	if err != nil {
		t.Fatalf("reparse error: %v", err)
	}

	// Node order, instruction order, and choice-label order must survive.
	if len(g2.Nodes) != 2 || g2.Nodes[0].Name != "n" || g2.Nodes[1].Name != "m" {
		t.Fatalf("node order not preserved: %+v", g2.Nodes)
	}
	body := g2.Nodes[0].Body
	wantTypes := []string{"text", "set", "if", "branch"}
	for i, want := range wantTypes {
		if body[i].Type != want {
			t.Errorf("instruction %d type = %q, want %q", i, body[i].Type, want)
		}
	}
	if body[0].Text != "hello" || !body[0].NoBreak {
		t.Errorf("text round trip = %q/%v, want hello/true", body[0].Text, body[0].NoBreak)
	}
	if body[1].Value != float64(1) {
		t.Errorf("set value round trip = %v (%T), want float64(1)", body[1].Value, body[1].Value)
	}
	choices := body[3].Choices
	if choices[0].Label != "b" || choices[1].Label != "a" {
		t.Errorf("choice order not preserved: %q,%q", choices[0].Label, choices[1].Label)
	}
	if got := choices[1].Body[0]; got.Command != "play_sound" || got.Args[0] != "ding.ogg" {
		t.Errorf("command round trip = %+v", got)
	}
}

func validationEvaluator() *expr.Evaluator {
	return expr.New(map[string]expr.Predicate{
		"notAlone": func() (any, error) { return false, nil },
	})
}

func TestValidate(t *testing.T) {
	commands := map[string]bool{"exit_level": true, "play_sound": true}

	tests := []struct {
		name    string
		asset   string
		wantErr string // substring of one collected error; "" means valid
	}{
		{
			name:  "valid",
			asset: sampleAsset,
		},
		{
			name: "dangling goto",
			asset: `{"name":"g","nodes":[
              {"name":"n","body":[{"goto":"nowhere"}]}]}`,
			wantErr: `goto target "nowhere"`,
		},
		{
			name: "dangling prompt target",
			asset: `{"name":"g","nodes":[
              {"name":"n","body":[{"prompt":{"message":"m","choices":[{"label":"l","goto":"gone"}]}}]}]}`,
			wantErr: `goto target "gone"`,
		},
		{
			name: "empty choice set",
			asset: `{"name":"g","nodes":[
              {"name":"n","body":[{"branch":[]}]}]}`,
			wantErr: "empty choice set",
		},
		{
			name: "unknown command",
			asset: `{"name":"g","nodes":[
              {"name":"n","body":[{"command":{"name":"reticulate"}}]}]}`,
			wantErr: `unknown command "reticulate"`,
		},
		{
			name: "unknown predicate in condition",
			asset: `{"name":"g","nodes":[
              {"name":"n","body":[{"if":{"cond":"nosuch()","body":[{"text":"x"}]}}]}]}`,
			wantErr: "unknown predicate",
		},
		{
			name: "nested dangling goto inside choice",
			asset: `{"name":"g","nodes":[
              {"name":"n","body":[{"branch":[{"label":"l","body":[{"goto":"void"}]}]}]}]}`,
			wantErr: `goto target "void"`,
		},
		{
			name:    "meta references missing node",
			asset:   `{"name":"g","meta":{"ghost":["run_once"]},"nodes":[{"name":"n","body":[{"text":"x"}]}]}`,
			wantErr: `undefined node "ghost"`,
		},
	}

	for _, tt := range tests {
		g, err := Parse([]byte(tt.asset))
		if err != nil {
			t.Fatalf("%s: Parse error: %v", tt.name, err)
		}
		err = Validate(g, commands, validationEvaluator())
		if tt.wantErr == "" {
			if err != nil {
				t.Errorf("%s: Validate error: %v", tt.name, err)
			}
			continue
		}
		if err == nil {
			t.Errorf("%s: Validate succeeded, want error containing %q", tt.name, tt.wantErr)
			continue
		}
		var le *LoadError
		if !errors.As(err, &le) {
			t.Errorf("%s: error type %T, want *LoadError", tt.name, err)
			continue
		}
		if !strings.Contains(err.Error(), tt.wantErr) {
			t.Errorf("%s: error %q does not contain %q", tt.name, err, tt.wantErr)
		}
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	asset := `{"name":"g","nodes":[
      {"name":"n","body":[
        {"goto":"nowhere"},
        {"branch":[]},
        {"command":{"name":"reticulate"}}
      ]}]}`
	g, err := Parse([]byte(asset))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	err = Validate(g, map[string]bool{}, nil)
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("error type %T, want *LoadError", err)
	}
	if len(le.Errors) != 3 {
		t.Errorf("collected %d errors, want 3: %v", len(le.Errors), le.Errors)
	}
}
