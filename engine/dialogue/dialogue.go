// Package dialogue implements the resumable dialogue interpreter: a
// state machine that executes a graph's instructions, suspending on
// choice points and commands, resuming on host input. Results are
// returned, never awaited — the host drives resumption from its own
// update loop.
package dialogue

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nathoo/fable/engine/expr"
	"github.com/nathoo/fable/engine/graph"
	"github.com/nathoo/fable/engine/vars"
	"github.com/nathoo/fable/types"
)

// ErrInvalidChoice is returned for an out-of-range selection, or a
// selection when no choice is pending. The cursor is left unchanged and
// the caller may retry.
var ErrInvalidChoice = errors.New("invalid choice")

// ErrNoSuchNode is returned by Start for a node name the graph does not
// define.
var ErrNoSuchNode = errors.New("no such dialogue node")

// Options carries host policy for a session.
type Options struct {
	// AutoContinue coalesces consecutive text instructions into a single
	// displayed step instead of yielding once per line. A text piece
	// whose source ended in "|" joins the following piece without a
	// line break.
	AutoContinue bool
	Logger       *slog.Logger
}

// frame is one level of the execution cursor. The bottom frame is a
// node body; frames above it are inline expansions from branch choices
// and if bodies.
type frame struct {
	node  string
	body  []types.Instruction
	index int
}

// Session is a live dialogue run. At most one is active per
// player-facing dialogue; discarding it aborts the run (Set mutations
// already applied stay applied).
type Session struct {
	graph *graph.Graph
	store *vars.Store
	eval  *expr.Evaluator
	opts  Options
	log   *slog.Logger

	frames         []frame
	pendingChoices []types.Choice
	pendingCommand bool
	finished       bool
}

// New creates a session over a validated graph. Call Start to begin.
func New(g *graph.Graph, store *vars.Store, eval *expr.Evaluator, opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Session{graph: g, store: store, eval: eval, opts: opts, log: log}
}

// Graph returns the graph this session runs.
func (s *Session) Graph() *graph.Graph { return s.graph }

// Finished reports whether the session has terminated.
func (s *Session) Finished() bool { return s.finished }

// AwaitingChoice reports whether the session is suspended at a branch.
func (s *Session) AwaitingChoice() bool { return s.pendingChoices != nil }

// Start begins execution at the named node and runs to the first yield
// point. Starting an unknown node is an error, not a crash.
func (s *Session) Start(node string) (types.Step, error) {
	n := s.graph.Node(node)
	if n == nil {
		return types.Step{}, fmt.Errorf("%w: %s", ErrNoSuchNode, node)
	}
	s.frames = []frame{{node: n.Name, body: n.Body}}
	s.pendingChoices = nil
	s.pendingCommand = false
	s.finished = false
	return s.run(), nil
}

// Advance resumes execution with no input: after a displayed step, after
// acknowledging a command, or to re-read a pending choice prompt. A
// command step must be acknowledged by exactly one Advance before the
// session resumes past it, so a command can never fire twice.
func (s *Session) Advance() (types.Step, error) {
	if s.finished {
		return types.Step{Kind: "finished"}, nil
	}
	if s.pendingChoices != nil {
		// Still waiting; re-present the same choices.
		return types.Step{Kind: "awaiting_choice", Labels: s.labels()}, nil
	}
	s.pendingCommand = false
	return s.run(), nil
}

// Choose resumes a session suspended at a branch by selecting the
// choice at index i. The chosen body is expanded inline ahead of the
// remaining node instructions; control falls through to the instruction
// after the branch when it is exhausted.
func (s *Session) Choose(i int) (types.Step, error) {
	if s.pendingChoices == nil {
		return types.Step{}, ErrInvalidChoice
	}
	if i < 0 || i >= len(s.pendingChoices) {
		return types.Step{}, ErrInvalidChoice
	}
	body := s.pendingChoices[i].Body
	s.pendingChoices = nil

	// Step past the branch, then expand the chosen body above it.
	top := &s.frames[len(s.frames)-1]
	top.index++
	if len(body) > 0 {
		s.frames = append(s.frames, frame{node: top.node, body: body})
	}
	return s.run(), nil
}

// run executes instructions at the cursor until something must be
// yielded to the host.
func (s *Session) run() types.Step {
	visited := map[string]bool{}
	var buf []string
	noBreak := false

	flush := func() (types.Step, bool) {
		if len(buf) == 0 {
			return types.Step{}, false
		}
		text := strings.TrimSuffix(strings.Join(buf, ""), "\n")
		return types.Step{Kind: "displayed", Text: text, NoBreak: noBreak}, true
	}

	for {
		if len(s.frames) == 0 {
			if step, ok := flush(); ok {
				return step
			}
			s.finished = true
			return types.Step{Kind: "finished"}
		}

		top := &s.frames[len(s.frames)-1]
		if top.index >= len(top.body) {
			s.frames = s.frames[:len(s.frames)-1]
			continue
		}

		in := top.body[top.index]
		switch in.Type {
		case "text":
			top.index++
			if !s.opts.AutoContinue {
				return types.Step{Kind: "displayed", Text: in.Text, NoBreak: in.NoBreak}
			}
			piece := in.Text
			if !in.NoBreak {
				piece += "\n"
			}
			buf = append(buf, piece)
			noBreak = in.NoBreak

		case "set":
			s.store.Set(in.Key, in.Value)
			top.index++

		case "if":
			top.index++
			ok, err := s.eval.EvalBool(in.Cond, s.store)
			if err != nil {
				// Fail closed: a broken condition skips its body.
				s.log.Warn("condition failed, treating as false",
					"graph", s.graph.Name, "node", top.node, "cond", in.Cond, "error", err)
				ok = false
			}
			if ok && len(in.Body) > 0 {
				node := top.node
				s.frames = append(s.frames, frame{node: node, body: in.Body})
			}

		case "goto":
			n := s.graph.Node(in.Target)
			if n == nil {
				// Validation rejects dangling targets at load; terminate
				// cleanly rather than hang or panic if one slips through.
				s.log.Error("goto target missing at runtime",
					"graph", s.graph.Name, "node", top.node, "target", in.Target)
				s.finished = true
				return types.Step{Kind: "finished"}
			}
			if visited[n.Name] {
				// An unconditional goto cycle would never yield. End the
				// session instead of hanging the host.
				s.log.Warn("goto cycle detected, ending session",
					"graph", s.graph.Name, "node", n.Name)
				if step, ok := flush(); ok {
					s.frames = nil
					return step
				}
				s.finished = true
				return types.Step{Kind: "finished"}
			}
			visited[n.Name] = true
			s.frames = []frame{{node: n.Name, body: n.Body}}

		case "branch":
			if len(in.Choices) == 0 {
				// Rejected at load; skip defensively.
				top.index++
				continue
			}
			if step, ok := flush(); ok {
				// Buffered text is delivered first; the branch is
				// re-encountered on the next Advance.
				return step
			}
			s.pendingChoices = in.Choices
			return types.Step{Kind: "awaiting_choice", Labels: s.labels()}

		case "command":
			if step, ok := flush(); ok {
				return step
			}
			top.index++
			s.pendingCommand = true
			return types.Step{Kind: "command", Command: in.Command, Args: in.Args}

		default:
			s.log.Error("unknown instruction type, ending session",
				"graph", s.graph.Name, "node", top.node, "type", in.Type)
			s.finished = true
			return types.Step{Kind: "finished"}
		}
	}
}

func (s *Session) labels() []string {
	labels := make([]string, len(s.pendingChoices))
	for i, c := range s.pendingChoices {
		labels[i] = c.Label
	}
	return labels
}
