package eval

import (
	"regexp"
	"strings"

	"github.com/tendril-lang/tendril/internal/past"
	"github.com/tendril-lang/tendril/internal/perr"
	"github.com/tendril-lang/tendril/internal/value"
)

// matchItem is the evaluator's central dispatch (spec §4.5): match pat
// against node, found at path within the overall input, extending sol and
// calling emit once per solution. The bool return mirrors emit's own
// stop signal so callers can short-circuit enumeration early.
func (ctx *Ctx) matchItem(pat past.Node, node value.Value, path value.Path, sol *Solution, emit Emit) (bool, error) {
	if err := ctx.step(); err != nil {
		return false, err
	}
	if ctx.debug != nil {
		if ctx.debug.OnEnter != nil {
			ctx.debug.OnEnter(pat, node, path)
		}
		if ctx.debug.OnExit != nil {
			matched := false
			inner := emit
			emit = func(s *Solution) (bool, error) {
				matched = true
				return inner(s)
			}
			defer func() { ctx.debug.OnExit(pat, matched) }()
		}
	}
	switch x := pat.(type) {
	case past.Any:
		return emit(sol)

	case past.TypedAny:
		if !typedAnyMatches(x.Kind, node) {
			return false, nil
		}
		return emit(sol)

	case past.Lit:
		if !value.DeepEqual(x.Value, node) {
			return false, nil
		}
		return emit(sol)

	case past.NullPat:
		if !node.IsNull() {
			return false, nil
		}
		return emit(sol)

	case past.Fail:
		return false, nil

	case past.StringPattern:
		if !stringPatternMatches(x, node) {
			return false, nil
		}
		return emit(sol)

	case past.Seq:
		// A Seq only has meaning as part of an array item stream or a
		// GroupBind/SBind sub-pattern; matched against a single node it
		// can never succeed (spec invariant: scalar binding over a Seq
		// always fails).
		return false, nil

	case past.Paren:
		return ctx.matchItem(x.Inner, node, path, sol, emit)

	case past.Group:
		return ctx.matchItem(x.Inner, node, path, sol, emit)

	case past.Replace:
		// Replacement text is uninterpreted for matching; a Replace node
		// matches exactly as its wrapped pattern would (spec §14.2).
		return ctx.matchItem(x.Pat, node, path, sol, emit)

	case past.Alt:
		return ctx.matchAlt(x, node, path, sol, emit)

	case past.Quant:
		if x.Min > 1 || (x.Max != past.Unbounded && x.Max < 1) {
			return false, nil
		}
		return ctx.matchItem(x.Sub, node, path, sol, emit)

	case past.SBind:
		return ctx.matchSBind(x, node, path, sol, emit)

	case past.GroupBind:
		return false, &perr.PatternEvaluate{Msg: "group binding is only meaningful inside an array or object pattern"}

	case past.Look:
		return ctx.matchLook(x, node, path, sol, emit)

	case past.Guarded:
		return ctx.matchGuarded(x, node, path, sol, emit)

	case past.Arr:
		if node.Kind() != value.KindArray {
			return false, nil
		}
		return ctx.matchLabeledArr(x, node, path, sol, emit)

	case past.Obj:
		if node.Kind() != value.KindObject {
			return false, nil
		}
		return ctx.matchLabeledObj(x, node, path, sol, emit)

	case past.Flow:
		return ctx.matchValueFlow(x, node, path, sol, emit)

	case past.Collecting:
		return ctx.matchValueFlow(x, node, path, sol, emit)

	default:
		return false, &perr.PatternEvaluate{Msg: "unhandled pattern node"}
	}
}

func typedAnyMatches(kind past.AnyKind, node value.Value) bool {
	switch kind {
	case past.AnyString:
		return node.Kind() == value.KindString
	case past.AnyNumber:
		return node.Kind() == value.KindNumber
	case past.AnyBoolean:
		return node.Kind() == value.KindBool
	default:
		return false
	}
}

func stringPatternMatches(x past.StringPattern, node value.Value) bool {
	if node.Kind() != value.KindString {
		return false
	}
	if x.Regexp != nil {
		re := x.Regexp.Compiled
		if re == nil {
			// Validate normally precompiles; tolerate an unvalidated AST.
			flags := ""
			if strings.Contains(x.Regexp.Flags, "i") {
				flags = "(?i)"
			}
			var err error
			re, err = regexp.Compile(flags + x.Regexp.Source)
			if err != nil {
				return false
			}
		}
		return re.MatchString(node.Str())
	}
	if x.CaseInsensitive {
		return strings.EqualFold(node.Str(), x.Lowered) || strings.ToLower(node.Str()) == x.Lowered
	}
	return false
}

func (ctx *Ctx) matchAlt(x past.Alt, node value.Value, path value.Path, sol *Solution, emit Emit) (bool, error) {
	if x.Prioritized {
		for _, b := range x.Branches {
			emitted := false
			stop, err := ctx.matchItem(b, node, path, sol, func(s *Solution) (bool, error) {
				emitted = true
				return emit(s)
			})
			if err != nil {
				return false, err
			}
			if emitted || stop {
				return stop, nil
			}
		}
		return false, nil
	}
	for _, b := range x.Branches {
		stop, err := ctx.matchItem(b, node, path, sol, emit)
		if err != nil || stop {
			return stop, err
		}
	}
	return false, nil
}

func (ctx *Ctx) matchSBind(x past.SBind, node value.Value, path value.Path, sol *Solution, emit Emit) (bool, error) {
	if isSeqPattern(x.Pat) {
		// A scalar binding can never wrap a Seq (it has no single width
		// outside an array item stream).
		return false, nil
	}
	return ctx.matchItem(x.Pat, node, path, sol, func(inner *Solution) (bool, error) {
		c := inner.Clone()
		site := Site{Kind: SiteScalar, Path: path}
		if !c.bindScalar(x.Name, node, site) {
			return false, nil
		}
		free, err := guardFreeVars(x.Guard)
		if err != nil {
			return false, err
		}
		c.pushGuard(x.Guard, free, node, true)
		ok, err := checkClosedGuards(c)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		return emit(c)
	})
}

func (ctx *Ctx) matchLook(x past.Look, node value.Value, path value.Path, sol *Solution, emit Emit) (bool, error) {
	if x.Neg {
		any := false
		_, err := ctx.matchItem(x.Pat, node, path, sol, func(*Solution) (bool, error) {
			any = true
			return true, nil
		})
		if err != nil {
			return false, err
		}
		if any {
			return false, nil
		}
		return emit(sol)
	}
	hasBindings := past.HasBindings(x.Pat)
	return ctx.matchItem(x.Pat, node, path, sol, func(inner *Solution) (bool, error) {
		stop, err := emit(inner)
		if err != nil || stop {
			return stop, err
		}
		if !hasBindings {
			return true, nil
		}
		return false, nil
	})
}

func (ctx *Ctx) matchGuarded(x past.Guarded, node value.Value, path value.Path, sol *Solution, emit Emit) (bool, error) {
	return ctx.matchItem(x.Pat, node, path, sol, func(inner *Solution) (bool, error) {
		c := inner.Clone()
		free, err := guardFreeVars(x.Guard)
		if err != nil {
			return false, err
		}
		c.pushGuard(x.Guard, free, node, true)
		ok, err := checkClosedGuards(c)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		return emit(c)
	})
}

func (ctx *Ctx) matchLabeledArr(x past.Arr, node value.Value, path value.Path, sol *Solution, emit Emit) (bool, error) {
	if x.Label == "" {
		return ctx.matchArray(x.Items, node.Array(), path, sol, emit)
	}
	pushed := sol.Clone()
	pushed.pushBucket(x.Label)
	return ctx.matchArray(x.Items, node.Array(), path, pushed, func(inner *Solution) (bool, error) {
		final, ok := inner.popBucket(x.Label)
		if !ok {
			return false, nil
		}
		return emit(final)
	})
}

func (ctx *Ctx) matchLabeledObj(x past.Obj, node value.Value, path value.Path, sol *Solution, emit Emit) (bool, error) {
	if x.Label == "" {
		return ctx.matchObject(x, node.Object(), path, sol, emit)
	}
	pushed := sol.Clone()
	pushed.pushBucket(x.Label)
	return ctx.matchObject(x, node.Object(), path, pushed, func(inner *Solution) (bool, error) {
		final, ok := inner.popBucket(x.Label)
		if !ok {
			return false, nil
		}
		return emit(final)
	})
}
