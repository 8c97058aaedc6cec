package expr

import (
	"errors"
	"fmt"

	"github.com/alecthomas/participle/v2"

	"github.com/nathoo/fable/engine/vars"
)

// ErrUnknownPredicate is returned when a condition calls a predicate the
// host never supplied. Callers evaluating an If must treat the condition
// as false (fail-closed) rather than aborting the session.
var ErrUnknownPredicate = errors.New("unknown predicate")

// Predicate is a zero-argument host query function, e.g. notAlone().
type Predicate func() (any, error)

// Evaluator parses and evaluates condition expressions against a
// variable store and a host-supplied predicate table.
type Evaluator struct {
	parser     *participle.Parser[expression]
	predicates map[string]Predicate
}

// New creates an evaluator with the given predicate table. The table is
// fixed at construction time; nil is treated as empty.
func New(predicates map[string]Predicate) *Evaluator {
	if predicates == nil {
		predicates = map[string]Predicate{}
	}
	return &Evaluator{
		parser:     newParser(),
		predicates: predicates,
	}
}

// Eval evaluates an expression and returns its scalar result. A missing
// variable evaluates to a nil "empty" sentinel, never an error.
func (e *Evaluator) Eval(input string, store *vars.Store) (any, error) {
	ast, err := e.parser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("parsing condition %q: %w", input, err)
	}

	left, err := e.operandValue(ast.Left, store)
	if err != nil {
		return nil, err
	}
	if ast.Op == "" {
		return left, nil
	}

	right, err := e.operandValue(ast.Right, store)
	if err != nil {
		return nil, err
	}
	return compare(ast.Op, left, right)
}

// EvalBool evaluates an expression for truthiness.
func (e *Evaluator) EvalBool(input string, store *vars.Store) (bool, error) {
	v, err := e.Eval(input, store)
	if err != nil {
		return false, err
	}
	return vars.Truthy(v), nil
}

// Validate parses an expression without evaluating it, and checks that
// any predicate it calls exists. Used at graph load time.
func (e *Evaluator) Validate(input string) error {
	ast, err := e.parser.ParseString("", input)
	if err != nil {
		return fmt.Errorf("parsing condition %q: %w", input, err)
	}
	for _, op := range []*operand{ast.Left, ast.Right} {
		if op == nil || op.Call == nil {
			continue
		}
		if _, ok := e.predicates[*op.Call]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownPredicate, *op.Call)
		}
	}
	return nil
}

func (e *Evaluator) operandValue(op *operand, store *vars.Store) (any, error) {
	switch {
	case op.Bool != nil:
		return bool(*op.Bool), nil
	case op.Number != nil:
		return *op.Number, nil
	case op.Str != nil:
		return string(*op.Str), nil
	case op.Var != nil:
		// Missing variables are a defined "empty" value, not a failure.
		v, _ := store.Get(*op.Var)
		return v, nil
	case op.Call != nil:
		fn, ok := e.predicates[*op.Call]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPredicate, *op.Call)
		}
		v, err := fn()
		if err != nil {
			return nil, fmt.Errorf("predicate %s: %w", *op.Call, err)
		}
		return vars.Normalize(v), nil
	}
	return nil, nil
}

// compare applies a comparison operator to two scalars.
func compare(op string, left, right any) (any, error) {
	switch op {
	case "==":
		return looseEqual(left, right), nil
	case "!=":
		return !looseEqual(left, right), nil
	case ">", "<":
		ln, lok := left.(float64)
		rn, rok := right.(float64)
		if !lok || !rok {
			return nil, fmt.Errorf("operator %q needs numbers, got %T and %T", op, left, right)
		}
		if op == ">" {
			return ln > rn, nil
		}
		return ln < rn, nil
	}
	return nil, fmt.Errorf("unsupported operator %q", op)
}

// looseEqual compares scalars. The nil "empty" sentinel from a missing
// variable equals the empty values of each type, so "$unset == false"
// and "$unset == 0" both hold.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		other := a
		if a == nil {
			other = b
		}
		switch t := other.(type) {
		case nil:
			return true
		case bool:
			return !t
		case float64:
			return t == 0
		case string:
			return t == ""
		}
		return false
	}
	return a == b
}
