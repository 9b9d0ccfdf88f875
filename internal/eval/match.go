package eval

import (
	"github.com/tendril-lang/tendril/internal/past"
	"github.com/tendril-lang/tendril/internal/perr"
	"github.com/tendril-lang/tendril/internal/value"
)

// Emit is the evaluator's continuation: called once per solution a
// sub-match produces. Returning stop=true tells the caller to abandon
// further enumeration (used for Exists/First short-circuiting).
type Emit func(*Solution) (bool, error)

// Options configures a match/scan attempt (spec §4.5 "Termination and
// resource budget", §6).
type Options struct {
	MaxSteps int    // 0 => DefaultMaxSteps
	Debug    *Debug // optional trace hooks; nil disables tracing
}

const DefaultMaxSteps = 2_000_000

// Ctx threads the step counter through one match/scan attempt. A fresh
// Ctx is created per top-level call; it is never shared across attempts.
type Ctx struct {
	root     value.Value
	steps    int
	maxSteps int
	debug    *Debug
}

func newCtx(root value.Value, opts Options) *Ctx {
	max := opts.MaxSteps
	if max <= 0 {
		max = DefaultMaxSteps
	}
	return &Ctx{root: root, maxSteps: max, debug: opts.Debug}
}

func (ctx *Ctx) step() error {
	ctx.steps++
	if ctx.steps > ctx.maxSteps {
		return &perr.PatternAmbiguous{Msg: "step budget exceeded"}
	}
	return nil
}

// Match runs pat against root once, anchored at the root, collecting
// every solution unless stop is returned early by onSolution.
func Match(pat past.Node, root value.Value, opts Options, onSolution func(*Solution) (bool, error)) error {
	ctx := newCtx(root, opts)
	sol := NewSolution()
	sol.debug = ctx.debug
	_, err := ctx.matchItem(pat, root, nil, sol, func(s *Solution) (bool, error) {
		if !s.allGuardsClosed() {
			return false, nil
		}
		return onSolution(s)
	})
	return err
}

// MatchExists reports whether pat matches root at least once.
func MatchExists(pat past.Node, root value.Value, opts Options) (bool, error) {
	found := false
	err := Match(pat, root, opts, func(*Solution) (bool, error) {
		found = true
		return true, nil
	})
	return found, err
}

// MatchFirst returns the first solution pat produces against root, if any.
func MatchFirst(pat past.Node, root value.Value, opts Options) (*Solution, error) {
	var first *Solution
	err := Match(pat, root, opts, func(s *Solution) (bool, error) {
		first = s
		return true, nil
	})
	return first, err
}

// Scan walks root pre-order (arrays by index, objects by insertion order,
// the root itself first) and runs pat anchored at every node visited,
// collecting every solution from every site unless onSolution stops early.
func Scan(pat past.Node, root value.Value, opts Options, onSolution func(value.Path, *Solution) (bool, error)) error {
	ctx := newCtx(root, opts)
	_, err := ctx.scanNode(pat, root, nil, onSolution)
	return err
}

func (ctx *Ctx) scanNode(pat past.Node, node value.Value, path value.Path, onSolution func(value.Path, *Solution) (bool, error)) (bool, error) {
	if err := ctx.step(); err != nil {
		return false, err
	}
	sol := NewSolution()
	sol.debug = ctx.debug
	stop, err := ctx.matchItem(pat, node, path, sol, func(s *Solution) (bool, error) {
		if !s.allGuardsClosed() {
			return false, nil
		}
		return onSolution(path, s)
	})
	if err != nil || stop {
		return stop, err
	}
	switch node.Kind() {
	case value.KindArray:
		for i, e := range node.Array() {
			stop, err := ctx.scanNode(pat, e, path.Append(value.IndexElem(i)), onSolution)
			if err != nil || stop {
				return stop, err
			}
		}
	case value.KindObject:
		obj := node.Object()
		if obj == nil {
			return false, nil
		}
		for _, k := range obj.Keys() {
			v, _ := obj.Get(k)
			stop, err := ctx.scanNode(pat, v, path.Append(value.KeyElem(k)), onSolution)
			if err != nil || stop {
				return stop, err
			}
		}
	}
	return false, nil
}

// ScanExists reports whether pat matches anywhere in root.
func ScanExists(pat past.Node, root value.Value, opts Options) (bool, error) {
	found := false
	err := Scan(pat, root, opts, func(value.Path, *Solution) (bool, error) {
		found = true
		return true, nil
	})
	return found, err
}

// ScanFirst returns the path and first solution of the first scan site
// that matches, if any.
func ScanFirst(pat past.Node, root value.Value, opts Options) (value.Path, *Solution, error) {
	var firstPath value.Path
	var firstSol *Solution
	err := Scan(pat, root, opts, func(p value.Path, s *Solution) (bool, error) {
		firstPath, firstSol = p, s
		return true, nil
	})
	return firstPath, firstSol, err
}
