// Package expr evaluates dialogue conditions: comparisons, boolean
// literals, "$"-prefixed variable lookups, and zero-argument host
// predicate calls. The grammar is deliberately small — it only has to
// cover what dialogue assets actually write in If conditions.
package expr

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// exprLexer defines the token types for condition expressions. The
// multi-character comparison operators must be matched before the
// single-character ones would be split apart.
var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"[^"]*"`},
	{Name: "Number", Pattern: `-?\d+(\.\d+)?`},
	{Name: "OpEq", Pattern: `==`},
	{Name: "OpNe", Pattern: `!=`},
	{Name: "OpGt", Pattern: `>`},
	{Name: "OpLt", Pattern: `<`},
	{Name: "Var", Pattern: `\$[a-zA-Z_]\w*`},
	{Name: "Ident", Pattern: `[a-zA-Z_]\w*`},
	{Name: "Punct", Pattern: `[()]`},
	{Name: "whitespace", Pattern: `\s+`},
})

// expression is either a bare operand (evaluated for truthiness) or a
// single comparison between two operands.
type expression struct {
	Left  *operand `parser:"@@"`
	Op    string   `parser:"( @('==' | '!=' | '>' | '<')"`
	Right *operand `parser:"  @@ )?"`
}

// operand is a literal, a variable lookup, or a predicate call.
type operand struct {
	Bool   *boolean      `parser:"  @('true' | 'false')"`
	Call   *string       `parser:"| @Ident '(' ')'"`
	Number *float64      `parser:"| @Number"`
	Str    *quotedString `parser:"| @String"`
	Var    *string       `parser:"| @Var"`
}

// boolean captures "true"/"false" keyword tokens.
type boolean bool

func (b *boolean) Capture(values []string) error {
	*b = values[0] == "true"
	return nil
}

// quotedString captures a string literal without its surrounding quotes.
type quotedString string

func (s *quotedString) Capture(values []string) error {
	raw := values[0]
	*s = quotedString(raw[1 : len(raw)-1])
	return nil
}

func newParser() *participle.Parser[expression] {
	return participle.MustBuild[expression](
		participle.Lexer(exprLexer),
	)
}
