// Package types defines the shared data structures for the Fable runtime.
// This package contains only type definitions — no logic, no methods.
package types

// Instruction is a single dialogue instruction. Type selects the variant;
// only the fields belonging to that variant are populated:
//
//	"text"    — Text, NoBreak
//	"branch"  — Choices
//	"goto"    — Target
//	"if"      — Cond, Body
//	"set"     — Key, Value
//	"command" — Command, Args
//
// "prompt" never survives loading: the graph codec desugars it into a
// "text" followed by a "branch" of single-goto bodies.
type Instruction struct {
	Type    string
	Text    string
	NoBreak bool // trailing "|" in the source text suppressed the line break
	Choices []Choice
	Target  string
	Cond    string
	Body    []Instruction
	Key     string
	Value   any
	Command string
	Args    []any
}

// Choice is one labeled option of a branch. Order is significant and
// preserved from the asset file.
type Choice struct {
	Label string
	Body  []Instruction
}

// Step is the result of advancing a dialogue session. Kind is one of:
//
//	"displayed"       — Text, NoBreak
//	"awaiting_choice" — Labels
//	"command"         — Command, Args
//	"finished"        — no fields
type Step struct {
	Kind    string
	Text    string
	NoBreak bool
	Labels  []string
	Command string
	Args    []any
}

// Event is a named occurrence fired against a world instance, e.g.
// "collect" with the object name as first argument.
type Event struct {
	Name string
	Args []any
}

// ObjectFlags carries the mutable flags of a map object for bridge
// update calls. Nil fields are left unchanged.
type ObjectFlags struct {
	Visible     *bool
	Collectable *bool
}
