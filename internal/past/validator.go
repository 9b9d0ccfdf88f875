package past

import (
	"regexp"
	"strings"

	"github.com/tendril-lang/tendril/internal/perr"
)

// Validate runs the single post-parse pass (spec §4.3): at most one
// Replace target per pattern, every quantifier/spread/explicit
// cardinality satisfies 0 ≤ min ≤ max, and every regex literal actually
// compiles (the compiled form is cached on the node so the evaluator
// never re-compiles per candidate). Missing upper bounds are already
// normalized to Unbounded by the parser, so there is nothing to do for
// that rule here.
func Validate(root Node) error {
	var replaceCount int
	var firstBadQuant *Span
	var regexErr error
	var regexPos int
	walk(root, func(n Node) {
		switch x := n.(type) {
		case Replace:
			replaceCount++
		case Quant:
			if !validCardinality(x.Min, x.Max) && firstBadQuant == nil {
				sp := x.span()
				firstBadQuant = &sp
			}
		case Spread:
			if !validCardinality(x.Min, x.Max) && firstBadQuant == nil {
				sp := x.span()
				firstBadQuant = &sp
			}
		case Obj:
			if x.Spread != nil && x.Spread.Bare && !validCardinality(x.Spread.Min, x.Spread.Max) && firstBadQuant == nil {
				sp := x.Spread.span()
				firstBadQuant = &sp
			}
		case StringPattern:
			if x.Regexp != nil && x.Regexp.Compiled == nil && regexErr == nil {
				re, err := regexp.Compile(goRegexFlags(x.Regexp.Flags) + x.Regexp.Source)
				if err != nil {
					regexErr = err
					regexPos = x.span().Pos
					return
				}
				x.Regexp.Compiled = re
			}
		}
	}, func(t Term) {
		if ot, ok := t.(OTerm); ok && ot.Quant != nil {
			if !validCardinality(ot.Quant.Min, ot.Quant.Max) && firstBadQuant == nil {
				sp := ot.Quant.span()
				firstBadQuant = &sp
			}
		}
	})

	if replaceCount > 1 {
		return &perr.PatternSyntax{Msg: "a pattern may contain at most one replacement target (>> ... <<)", Pos: root.span().Pos}
	}
	if firstBadQuant != nil {
		return &perr.PatternSyntax{Msg: "quantifier bounds must satisfy 0 <= min <= max", Pos: firstBadQuant.Pos}
	}
	if regexErr != nil {
		return &perr.PatternSyntax{Msg: "invalid regular expression: " + regexErr.Error(), Pos: regexPos}
	}
	return nil
}

// goRegexFlags translates the surface flags of a /body/flags literal into
// the stdlib's inline-flag prefix. "g" and "y" are already rejected by
// the lexer; "u" is a no-op (Go regexps are Unicode-aware throughout).
func goRegexFlags(flags string) string {
	var b strings.Builder
	for _, f := range "ims" {
		if strings.ContainsRune(flags, f) {
			if b.Len() == 0 {
				b.WriteString("(?")
			}
			b.WriteRune(f)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	b.WriteString(")")
	return b.String()
}

func validCardinality(min, max int) bool {
	if min < 0 {
		return false
	}
	return max == Unbounded || min <= max
}

// HasBindings reports whether pat or any of its descendants introduces a
// name binding (SBind, GroupBind, or a bare GroupBindTerm). The evaluator
// uses this to decide whether a zero-width assertion needs to enumerate
// every solution or can stop after the first (spec §4.3(e), §4.5 Look).
// Computed on demand rather than cached on the AST: the AST is plain
// value types with slice fields, which aren't valid map keys, so there is
// no cheap place to memoize this without turning every node into a
// pointer — not worth it for a tree walked once per match attempt.
func HasBindings(pat Node) bool {
	found := false
	walk(pat, func(n Node) {
		switch n.(type) {
		case SBind, GroupBind:
			found = true
		}
	}, func(t Term) {
		if _, ok := t.(GroupBindTerm); ok {
			found = true
		}
	})
	return found
}

// HasGuards reports whether pat carries any guard clause (a Guarded
// wrapper or an SBind with an attached guard). The object matcher treats
// a guarded term like a binding term: its per-key matches can leave
// pending guards behind, so each slice key must keep its own branch.
func HasGuards(pat Node) bool {
	found := false
	walk(pat, func(n Node) {
		switch x := n.(type) {
		case Guarded:
			found = true
		case SBind:
			if x.Guard != "" {
				found = true
			}
		}
	}, func(Term) {})
	return found
}

// HasFlow reports whether pat contains a Flow/Collecting directive. The
// object matcher merges the bucket contributions of a flowing term's
// per-key matches into one shared view before branching (spec §4.5:
// bucket levels are merged on finalize, not forked per branch).
func HasFlow(pat Node) bool {
	found := false
	walk(pat, func(n Node) {
		switch n.(type) {
		case Flow, Collecting:
			found = true
		}
	}, func(t Term) {
		switch t.(type) {
		case Flow, Collecting:
			found = true
		}
	})
	return found
}

// walk visits every Node and Term reachable from root, depth-first.
func walk(root Node, visitNode func(Node), visitTerm func(Term)) {
	if root == nil {
		return
	}
	visitNode(root)
	switch x := root.(type) {
	case Alt:
		for _, b := range x.Branches {
			walk(b, visitNode, visitTerm)
		}
	case Seq:
		for _, it := range x.Items {
			walk(it, visitNode, visitTerm)
		}
	case Paren:
		walk(x.Inner, visitNode, visitTerm)
	case Group:
		walk(x.Inner, visitNode, visitTerm)
	case Quant:
		walk(x.Sub, visitNode, visitTerm)
	case Arr:
		for _, it := range x.Items {
			walk(it, visitNode, visitTerm)
		}
	case Obj:
		for _, t := range x.Terms {
			walkTerm(t, visitNode, visitTerm)
		}
	case SBind:
		walk(x.Pat, visitNode, visitTerm)
	case GroupBind:
		walk(x.Sub, visitNode, visitTerm)
	case Look:
		walk(x.Pat, visitNode, visitTerm)
	case Guarded:
		walk(x.Pat, visitNode, visitTerm)
	case Flow:
		walk(x.Pat, visitNode, visitTerm)
	case Collecting:
		walk(x.Pat, visitNode, visitTerm)
	case Replace:
		walk(x.Pat, visitNode, visitTerm)
	}
}

func walkTerm(t Term, visitNode func(Node), visitTerm func(Term)) {
	if t == nil {
		return
	}
	visitTerm(t)
	switch x := t.(type) {
	case OTerm:
		walk(x.Key, visitNode, visitTerm)
		walk(x.Val, visitNode, visitTerm)
		if x.Quant != nil {
			walk(*x.Quant, visitNode, visitTerm)
		}
		for _, bc := range x.Breadcrumbs {
			if bc.Index != nil {
				walk(bc.Index, visitNode, visitTerm)
			}
		}
	case OGroupTerm:
		for _, it := range x.Terms {
			walkTerm(it, visitNode, visitTerm)
		}
	case OLookTerm:
		walk(x.Pat, visitNode, visitTerm)
	case GroupBindTerm:
		if x.Sub != nil {
			walk(x.Sub, visitNode, visitTerm)
		}
	case Flow:
		walk(x.Pat, visitNode, visitTerm)
	case Collecting:
		walk(x.Pat, visitNode, visitTerm)
	}
}
