// Package perr defines Tendril's error taxonomy (spec §7): fatal
// compile-time syntax errors, well-formedness errors the evaluator
// discovers lazily, and resource-exhaustion errors. All three carry a
// human-readable message; PatternSyntax additionally carries a
// caret-pointed source snippet.
package perr

import (
	"fmt"
	"strings"
)

// PatternSyntax is raised by the lexer/parser/validator. Pos is a byte
// offset into Source; Expected lists the token/context names that were
// tried at the farthest failure point reached during backtracking.
type PatternSyntax struct {
	Msg      string
	Source   string
	Pos      int
	Expected []string
}

func (e *PatternSyntax) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pattern syntax error: %s\n", e.Msg)
	b.WriteString(Snippet(e.Source, e.Pos))
	if len(e.Expected) > 0 {
		fmt.Fprintf(&b, "\nexpected one of: %s", strings.Join(e.Expected, ", "))
	}
	return b.String()
}

// Snippet renders a single caret-pointed line of context around pos,
// the way the teacher's "✗ %s\n  %v\n" CLI output surfaces participle
// errors, but with our own caret line since participle does not produce
// one for a hand-rolled lexer.
func Snippet(source string, pos int) string {
	if pos < 0 {
		pos = 0
	}
	if pos > len(source) {
		pos = len(source)
	}
	lineStart := strings.LastIndexByte(source[:pos], '\n') + 1
	lineEndRel := strings.IndexByte(source[pos:], '\n')
	var lineEnd int
	if lineEndRel < 0 {
		lineEnd = len(source)
	} else {
		lineEnd = pos + lineEndRel
	}
	line := source[lineStart:lineEnd]
	col := pos - lineStart
	caret := strings.Repeat(" ", col) + "^"
	return line + "\n" + caret
}

// PatternEvaluate is raised for well-formedness failures discovered
// lazily at evaluation time: a GroupBind at top level, a Flow outside a
// k:v context, a Flow referencing an undeclared label, or a bucket kind
// mismatch.
type PatternEvaluate struct {
	Msg string
}

func (e *PatternEvaluate) Error() string {
	return "pattern evaluation error: " + e.Msg
}

// PatternAmbiguous is raised when the evaluator's step budget (§4.5
// Termination and resource budget) is exceeded.
type PatternAmbiguous struct {
	Msg string
}

func (e *PatternAmbiguous) Error() string {
	return "pattern ambiguous (step budget exceeded): " + e.Msg
}
