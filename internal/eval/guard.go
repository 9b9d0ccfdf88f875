package eval

import (
	"github.com/tendril-lang/tendril/internal/expr"
	"github.com/tendril-lang/tendril/internal/perr"
	"github.com/tendril-lang/tendril/internal/value"
)

// evalGuard compiles and evaluates one closed guard's raw source against
// sol's bindings. A syntax error in a guard is a PatternEvaluate (caught
// lazily, per spec §7, not at pattern compile time) since guard text is
// opaque to the parser until this point.
func evalGuard(g pendingGuard, sol *Solution) (bool, error) {
	parsed, err := expr.Parse(g.text)
	if err != nil {
		return false, &perr.PatternEvaluate{Msg: "invalid guard expression: " + g.text}
	}
	bindings := make(map[string]value.Value, len(sol.Bindings))
	for name, b := range sol.Bindings {
		bindings[name] = b.AsValue()
	}
	env := expr.Env{Bindings: bindings, Current: g.current, HasCurrent: g.hasCurrent}
	return expr.Bool(expr.Eval(parsed, env)), nil
}

// guardFreeVars returns the free-variable set of guard source text,
// caching nothing: guard text is short and compiled once per closure
// check, which happens at most once per variable binding.
func guardFreeVars(text string) ([]string, error) {
	if text == "" {
		return nil, nil
	}
	parsed, err := expr.Parse(text)
	if err != nil {
		return nil, &perr.PatternEvaluate{Msg: "invalid guard expression: " + text}
	}
	return expr.FreeVars(parsed), nil
}

// checkClosedGuards evaluates every guard in sol that has just become
// closed, returning false if any evaluates to false (the branch dies).
func checkClosedGuards(sol *Solution) (bool, error) {
	for _, g := range sol.closedGuards() {
		ok, err := evalGuard(g, sol)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
