package graph

import (
	"fmt"
	"strings"

	"github.com/nathoo/fable/engine/expr"
	"github.com/nathoo/fable/types"
)

// LoadError collects every problem found in one graph, so an author sees
// all of them at once instead of fixing one per load attempt.
type LoadError struct {
	Graph  string
	Errors []string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("graph %q failed validation with %d error(s):\n  %s",
		e.Graph, len(e.Errors), strings.Join(e.Errors, "\n  "))
}

// Validate checks referential integrity: every goto target names an
// existing node, no branch has an empty choice set, every command is in
// the host's closed command set, and every If condition parses and calls
// only known predicates. A dangling target is a load-time error here,
// never a runtime one. commands and ev may be nil to skip those checks.
func Validate(g *Graph, commands map[string]bool, ev *expr.Evaluator) error {
	le := &LoadError{Graph: g.Name}

	if len(g.Nodes) == 0 {
		le.Errors = append(le.Errors, "graph has no nodes")
	}
	for node := range g.Meta {
		if !g.HasNode(node) {
			le.Errors = append(le.Errors, fmt.Sprintf(
				"meta references undefined node %q", node))
		}
	}
	for _, node := range g.Nodes {
		validateBody(g, node.Name, node.Body, commands, ev, le)
	}

	if len(le.Errors) > 0 {
		return le
	}
	return nil
}

func validateBody(g *Graph, nodeName string, body []types.Instruction,
	commands map[string]bool, ev *expr.Evaluator, le *LoadError) {

	for _, in := range body {
		switch in.Type {
		case "goto":
			if !g.HasNode(in.Target) {
				le.Errors = append(le.Errors, fmt.Sprintf(
					"node %q: goto target %q does not exist", nodeName, in.Target))
			}

		case "branch":
			if len(in.Choices) == 0 {
				le.Errors = append(le.Errors, fmt.Sprintf(
					"node %q: branch with empty choice set", nodeName))
			}
			for _, c := range in.Choices {
				if c.Label == "" {
					le.Errors = append(le.Errors, fmt.Sprintf(
						"node %q: branch choice with empty label", nodeName))
				}
				validateBody(g, nodeName, c.Body, commands, ev, le)
			}

		case "if":
			if ev != nil {
				if err := ev.Validate(in.Cond); err != nil {
					le.Errors = append(le.Errors, fmt.Sprintf(
						"node %q: %v", nodeName, err))
				}
			}
			validateBody(g, nodeName, in.Body, commands, ev, le)

		case "command":
			if commands != nil && !commands[in.Command] {
				le.Errors = append(le.Errors, fmt.Sprintf(
					"node %q: unknown command %q", nodeName, in.Command))
			}

		case "set":
			if in.Key == "" {
				le.Errors = append(le.Errors, fmt.Sprintf(
					"node %q: set with empty key", nodeName))
			}

		case "text":
			// Nothing to check.

		default:
			le.Errors = append(le.Errors, fmt.Sprintf(
				"node %q: unknown instruction type %q", nodeName, in.Type))
		}
	}
}
