package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nathoo/fable/engine/vars"
	"github.com/nathoo/fable/types"
)

// Ext is the file suffix for dialogue assets.
const Ext = ".dialogue.json"

// The serialized asset format. Nodes, instructions, and choices are
// arrays so that their order survives round-trips exactly; meta is
// keyed by node name, where order carries no meaning.
type jsonGraph struct {
	Name  string              `json:"name"`
	Meta  map[string][]string `json:"meta,omitempty"`
	Nodes []jsonNode          `json:"nodes"`
}

type jsonNode struct {
	Name string      `json:"name"`
	Body []jsonInstr `json:"body"`
}

// jsonInstr carries exactly one variant key.
type jsonInstr struct {
	Text    *string      `json:"text,omitempty"`
	Branch  []jsonChoice `json:"branch,omitempty"`
	Prompt  *jsonPrompt  `json:"prompt,omitempty"`
	GoTo    *string      `json:"goto,omitempty"`
	If      *jsonIf      `json:"if,omitempty"`
	Set     *jsonSet     `json:"set,omitempty"`
	Command *jsonCommand `json:"command,omitempty"`
}

type jsonChoice struct {
	Label string      `json:"label"`
	Body  []jsonInstr `json:"body"`
}

type jsonPrompt struct {
	Message string             `json:"message"`
	Choices []jsonPromptChoice `json:"choices"`
}

type jsonPromptChoice struct {
	Label string `json:"label"`
	GoTo  string `json:"goto"`
}

type jsonIf struct {
	Cond string      `json:"cond"`
	Body []jsonInstr `json:"body"`
}

type jsonSet struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type jsonCommand struct {
	Name string `json:"name"`
	Args []any  `json:"args,omitempty"`
}

// Parse decodes a dialogue asset. Prompt instructions are desugared into
// a text followed by a branch of single-goto bodies, so the in-memory
// graph only ever contains the core instruction variants. Structural
// problems (unknown or ambiguous instruction keys) fail here; referential
// checks happen in Validate.
func Parse(data []byte) (*Graph, error) {
	var jg jsonGraph
	if err := json.Unmarshal(data, &jg); err != nil {
		return nil, fmt.Errorf("decoding dialogue asset: %w", err)
	}
	if jg.Name == "" {
		return nil, fmt.Errorf("dialogue asset has no name")
	}

	g := &Graph{Name: jg.Name, Meta: jg.Meta}
	seen := map[string]bool{}
	for _, jn := range jg.Nodes {
		if jn.Name == "" {
			return nil, fmt.Errorf("graph %q: node with empty name", jg.Name)
		}
		if seen[jn.Name] {
			return nil, fmt.Errorf("graph %q: duplicate node %q", jg.Name, jn.Name)
		}
		seen[jn.Name] = true
		body, err := convertBody(jn.Body, jg.Name, jn.Name)
		if err != nil {
			return nil, err
		}
		g.Nodes = append(g.Nodes, Node{Name: jn.Name, Body: body})
	}
	g.index()
	return g, nil
}

// Marshal serializes a graph back to the asset format. Since prompts are
// desugared at parse time, output only uses the core variants.
func Marshal(g *Graph) ([]byte, error) {
	jg := jsonGraph{Name: g.Name, Meta: g.Meta}
	for _, node := range g.Nodes {
		jg.Nodes = append(jg.Nodes, jsonNode{
			Name: node.Name,
			Body: encodeBody(node.Body),
		})
	}
	return json.MarshalIndent(jg, "", "  ")
}

// LoadDir parses every dialogue asset in dir, keyed by graph name. A
// malformed asset is skipped and reported; it never aborts the other
// assets in the directory.
func LoadDir(dir string) (map[string]*Graph, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("reading dialogue directory %s: %w", dir, err)}
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), Ext) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	graphs := map[string]*Graph{}
	var errs []error
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			errs = append(errs, fmt.Errorf("reading %s: %w", name, err))
			continue
		}
		g, err := Parse(data)
		if err != nil {
			errs = append(errs, fmt.Errorf("asset %s: %w", name, err))
			continue
		}
		if _, dup := graphs[g.Name]; dup {
			errs = append(errs, fmt.Errorf("asset %s: duplicate graph name %q", name, g.Name))
			continue
		}
		graphs[g.Name] = g
	}
	return graphs, errs
}

func convertBody(body []jsonInstr, graphName, nodeName string) ([]types.Instruction, error) {
	var out []types.Instruction
	for i, ji := range body {
		instrs, err := convertInstr(ji, graphName, nodeName)
		if err != nil {
			return nil, fmt.Errorf("graph %q node %q instruction %d: %w", graphName, nodeName, i, err)
		}
		out = append(out, instrs...)
	}
	return out, nil
}

// convertInstr maps one serialized instruction to its in-memory form.
// A prompt expands into two instructions.
func convertInstr(ji jsonInstr, graphName, nodeName string) ([]types.Instruction, error) {
	if err := checkSingleVariant(ji); err != nil {
		return nil, err
	}

	switch {
	case ji.Text != nil:
		text, noBreak := strings.CutSuffix(*ji.Text, "|")
		return []types.Instruction{{Type: "text", Text: text, NoBreak: noBreak}}, nil

	case ji.Branch != nil:
		var choices []types.Choice
		for _, jc := range ji.Branch {
			body, err := convertBody(jc.Body, graphName, nodeName)
			if err != nil {
				return nil, err
			}
			choices = append(choices, types.Choice{Label: jc.Label, Body: body})
		}
		return []types.Instruction{{Type: "branch", Choices: choices}}, nil

	case ji.Prompt != nil:
		text, noBreak := strings.CutSuffix(ji.Prompt.Message, "|")
		var choices []types.Choice
		for _, jc := range ji.Prompt.Choices {
			choices = append(choices, types.Choice{
				Label: jc.Label,
				Body:  []types.Instruction{{Type: "goto", Target: jc.GoTo}},
			})
		}
		return []types.Instruction{
			{Type: "text", Text: text, NoBreak: noBreak},
			{Type: "branch", Choices: choices},
		}, nil

	case ji.GoTo != nil:
		return []types.Instruction{{Type: "goto", Target: *ji.GoTo}}, nil

	case ji.If != nil:
		body, err := convertBody(ji.If.Body, graphName, nodeName)
		if err != nil {
			return nil, err
		}
		return []types.Instruction{{Type: "if", Cond: ji.If.Cond, Body: body}}, nil

	case ji.Set != nil:
		return []types.Instruction{{Type: "set", Key: ji.Set.Key, Value: vars.Normalize(ji.Set.Value)}}, nil

	case ji.Command != nil:
		args := make([]any, len(ji.Command.Args))
		for i, a := range ji.Command.Args {
			args[i] = vars.Normalize(a)
		}
		return []types.Instruction{{Type: "command", Command: ji.Command.Name, Args: args}}, nil
	}

	return nil, fmt.Errorf("instruction has no variant key")
}

func checkSingleVariant(ji jsonInstr) error {
	n := 0
	if ji.Text != nil {
		n++
	}
	if ji.Branch != nil {
		n++
	}
	if ji.Prompt != nil {
		n++
	}
	if ji.GoTo != nil {
		n++
	}
	if ji.If != nil {
		n++
	}
	if ji.Set != nil {
		n++
	}
	if ji.Command != nil {
		n++
	}
	if n > 1 {
		return fmt.Errorf("instruction has %d variant keys, want exactly one", n)
	}
	return nil
}

func encodeBody(body []types.Instruction) []jsonInstr {
	out := make([]jsonInstr, 0, len(body))
	for _, in := range body {
		out = append(out, encodeInstr(in))
	}
	return out
}

func encodeInstr(in types.Instruction) jsonInstr {
	switch in.Type {
	case "text":
		text := in.Text
		if in.NoBreak {
			text += "|"
		}
		return jsonInstr{Text: &text}
	case "branch":
		choices := make([]jsonChoice, 0, len(in.Choices))
		for _, c := range in.Choices {
			choices = append(choices, jsonChoice{Label: c.Label, Body: encodeBody(c.Body)})
		}
		return jsonInstr{Branch: choices}
	case "goto":
		target := in.Target
		return jsonInstr{GoTo: &target}
	case "if":
		return jsonInstr{If: &jsonIf{Cond: in.Cond, Body: encodeBody(in.Body)}}
	case "set":
		return jsonInstr{Set: &jsonSet{Key: in.Key, Value: in.Value}}
	case "command":
		return jsonInstr{Command: &jsonCommand{Name: in.Command, Args: in.Args}}
	}
	return jsonInstr{}
}
