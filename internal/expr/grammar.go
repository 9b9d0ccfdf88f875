// Package expr implements the guard expression sub-language (spec §4.4):
// literals, identifiers (bound variables, "_" for the current node inside
// a Guarded clause), comparisons, boolean connectives, arithmetic, string
// concatenation, property access, and length.
//
// Grammar and lexer are built with github.com/alecthomas/participle/v2,
// the teacher's own dependency (grammar.NewParser in the teacher uses the
// same two imports), here exercised on the one sub-grammar in Tendril
// simple and closed enough for a declarative struct-tag parser: operator
// precedence is expressed the standard participle way, as nested rule
// layers (OrExpr > AndExpr > CmpExpr > AddExpr > MulExpr > Unary > Primary)
// rather than Pratt precedence climbing.
package expr

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var guardLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Number", Pattern: `[0-9]+(\.[0-9]+)?`},
	{Name: "String", Pattern: `"(\\.|[^"])*"`},
	{Name: "OpMulti", Pattern: `==|!=|<=|>=|&&|\|\|`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Punct", Pattern: `[()\.\+\-\*/%<>!$,]`},
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
})

// Expr is the root of a guard expression: the lowest-precedence ||.
type Expr struct {
	Left *AndExpr   `@@`
	Rest []*OrRHS   `@@*`
}

type OrRHS struct {
	Right *AndExpr `"||" @@`
}

type AndExpr struct {
	Left *CmpExpr  `@@`
	Rest []*AndRHS `@@*`
}

type AndRHS struct {
	Right *CmpExpr `"&&" @@`
}

// CmpExpr is non-associative: at most one comparison operator.
type CmpExpr struct {
	Left  *AddExpr `@@`
	Op    string   `( @( "==" | "!=" | "<=" | ">=" | "<" | ">" )`
	Right *AddExpr `  @@ )?`
}

type AddExpr struct {
	Left *MulExpr  `@@`
	Rest []*AddRHS `@@*`
}

type AddRHS struct {
	Op    string   `@( "+" | "-" )`
	Right *MulExpr `@@`
}

type MulExpr struct {
	Left *Unary    `@@`
	Rest []*MulRHS `@@*`
}

type MulRHS struct {
	Op    string `@( "*" | "%" )`
	Right *Unary `@@`
}

type Unary struct {
	Sign    string   `( @( "-" | "!" ) )?`
	Primary *Primary `@@`
}

// Primary is a terminal: a literal, a len(...) call, a variable reference
// with optional dotted property access, or a parenthesized sub-expression.
type Primary struct {
	Number  *float64 `  @Number`
	String  *string  `| @String`
	True    bool     `| @"true"`
	False   bool     `| @"false"`
	Len     *LenCall `| @@`
	Current *Ref     `| @@`
	Paren   *Expr    `| "(" @@ ")"`
}

// Ref is "$name" / "_" followed by zero or more ".field" accesses.
type Ref struct {
	Dollar bool     `@"$"?`
	Name   string   `@Ident`
	Path   []string `( "." @Ident )*`
}

type LenCall struct {
	Name string `"len" "("`
	Arg  *Ref   `@@ ")"`
}

// NewParser builds the guard-expression participle parser.
func NewParser() (*participle.Parser[Expr], error) {
	return participle.Build[Expr](
		participle.Lexer(guardLexer),
		participle.Unquote("String"),
		participle.UseLookahead(2),
		participle.Elide("Whitespace"),
	)
}

// Parse compiles a guard expression's source text into an Expr AST.
func Parse(source string) (*Expr, error) {
	p, err := NewParser()
	if err != nil {
		return nil, err
	}
	return p.ParseString("", source)
}
