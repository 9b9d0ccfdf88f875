// Package eval implements Tendril's backtracking evaluator (spec §4.5,
// §5): cooperative solution enumeration over arrays, objects, scalars,
// quantifiers, alternation, lookaheads, bucket/flow aggregation, and
// guard expressions.
//
// Grounded on gokando's Stream/Goal cooperative-producer model
// (pkg/minikanren/core.go): matchItem plays the role of a goal, emit the
// role of a continuation that gokando's Bind/MPlus compose; unification
// against an existing binding (SBind re-reference) mirrors gokando's
// unify-against-substitution walk. The teacher's own executor.go (a
// single-pass, non-backtracking matcher) has no equivalent backtracking
// structure, so this package leans on gokando rather than the teacher
// for its control flow, while keeping the teacher's plain-struct,
// no-generics style.
package eval

import (
	"github.com/tendril-lang/tendril/internal/past"
	"github.com/tendril-lang/tendril/internal/value"
)

// Debug is the optional trace hook set (spec §6 "opts.debug"). Hooks are
// invoked synchronously on the evaluator's own stack; a nil Debug or a
// nil individual hook costs nothing.
type Debug struct {
	// OnEnter fires at every matchItem dispatch.
	OnEnter func(pat past.Node, node value.Value, path value.Path)
	// OnExit fires when that dispatch finishes; matched reports whether
	// it emitted at least one solution.
	OnExit func(pat past.Node, matched bool)
	// OnBind fires when a variable is bound for the first time in some
	// branch (re-references that merely unify do not fire it).
	OnBind func(name string, v value.Value)
}

// BindingKind distinguishes a scalar binding from the two group-binding
// shapes.
type BindingKind int

const (
	BindScalar BindingKind = iota
	BindArrayGroup
	BindObjectGroup
)

// Binding is a solution-local variable binding. Exactly one of Scalar,
// Array, or Object is meaningful, selected by Kind.
type Binding struct {
	Kind   BindingKind
	Scalar value.Value
	Array  []value.Value
	Object *value.Object
}

// AsValue renders a binding the way a Solution exposes it to callers:
// scalar bindings as-is, group bindings as plain arrays/objects.
func (b Binding) AsValue() value.Value {
	switch b.Kind {
	case BindArrayGroup:
		return value.ArrayFrom(b.Array)
	case BindObjectGroup:
		return value.ObjectValue(b.Object)
	default:
		return b.Scalar
	}
}

// SiteKind distinguishes the three site shapes of spec §3.
type SiteKind int

const (
	SiteScalar SiteKind = iota
	SiteArrayGroup
	SiteObjectGroup
)

// Site records where a binding's value was taken from in the input, for
// CAS-based replacement.
type Site struct {
	Kind  SiteKind
	Path  value.Path // path to the containing array/object (group sites) or to the value itself (scalar sites)
	Start int        // array group: half-open start index
	End   int        // array group: half-open end index
	Keys  []string   // object group: captured keys, insertion order
}

// pendingGuard is a guard expression whose free variables are not all
// bound yet. Guards fire (and are removed from this list) as soon as
// their last free variable becomes bound.
type pendingGuard struct {
	text       string
	free       []string
	current    value.Value
	hasCurrent bool
}

// bucketLevel is one entry of a Solution's bucket stack, pushed when
// evaluation enters a labeled Arr/Obj scope and popped (finalized into a
// group binding) on scope exit.
type bucketLevel struct {
	label         string
	arrayBuckets  map[string][]value.Value
	objectKeys    map[string][]string
	objectValues  map[string]map[string]value.Value
	currentKey    string
	hasCurrentKey bool
}

// Solution is the evaluator's working state: bindings, their sites,
// guards awaiting closure, and the bucket/label stack for Flow. Every
// branching step clones a Solution; matchItem never mutates the caller's
// copy.
type Solution struct {
	Bindings map[string]Binding
	Sites    map[string][]Site
	guards   []pendingGuard
	buckets  []bucketLevel
	labels   map[string]int // label name -> index into buckets
	debug    *Debug         // shared across clones, never mutated
}

// NewSolution returns an empty solution to seed a match/scan attempt.
func NewSolution() *Solution {
	return &Solution{
		Bindings: map[string]Binding{},
		Sites:    map[string][]Site{},
		labels:   map[string]int{},
	}
}

// Clone returns a deep-enough copy for independent branching: bindings,
// sites, guards, buckets, and labels are all copied so that mutating the
// clone never affects the original.
func (s *Solution) Clone() *Solution {
	c := &Solution{
		Bindings: make(map[string]Binding, len(s.Bindings)),
		Sites:    make(map[string][]Site, len(s.Sites)),
		labels:   make(map[string]int, len(s.labels)),
		debug:    s.debug,
	}
	for k, v := range s.Bindings {
		c.Bindings[k] = v
	}
	for k, v := range s.Sites {
		c.Sites[k] = append([]Site(nil), v...)
	}
	for k, v := range s.labels {
		c.labels[k] = v
	}
	c.guards = append([]pendingGuard(nil), s.guards...)
	c.buckets = cloneBuckets(s.buckets)
	return c
}

func cloneBuckets(buckets []bucketLevel) []bucketLevel {
	out := make([]bucketLevel, len(buckets))
	for i, b := range buckets {
		nb := bucketLevel{label: b.label, currentKey: b.currentKey, hasCurrentKey: b.hasCurrentKey}
		if b.arrayBuckets != nil {
			nb.arrayBuckets = make(map[string][]value.Value, len(b.arrayBuckets))
			for k, v := range b.arrayBuckets {
				nb.arrayBuckets[k] = append([]value.Value(nil), v...)
			}
		}
		if b.objectKeys != nil {
			nb.objectKeys = make(map[string][]string, len(b.objectKeys))
			for k, v := range b.objectKeys {
				nb.objectKeys[k] = append([]string(nil), v...)
			}
		}
		if b.objectValues != nil {
			nb.objectValues = make(map[string]map[string]value.Value, len(b.objectValues))
			for k, v := range b.objectValues {
				m := make(map[string]value.Value, len(v))
				for kk, vv := range v {
					m[kk] = vv
				}
				nb.objectValues[k] = m
			}
		}
		out[i] = nb
	}
	return out
}

// bindScalar unifies name with v: if unbound, binds it and records site;
// if already bound, succeeds only when the existing value is deep-equal.
func (s *Solution) bindScalar(name string, v value.Value, site Site) bool {
	if b, ok := s.Bindings[name]; ok {
		if b.Kind != BindScalar {
			return false
		}
		return value.DeepEqual(b.Scalar, v)
	}
	s.Bindings[name] = Binding{Kind: BindScalar, Scalar: v}
	s.Sites[name] = append(s.Sites[name], site)
	s.traceBind(name, v)
	return true
}

func (s *Solution) traceBind(name string, v value.Value) {
	if s.debug != nil && s.debug.OnBind != nil {
		s.debug.OnBind(name, v)
	}
}

func (s *Solution) bindArrayGroup(name string, items []value.Value, site Site) bool {
	if b, ok := s.Bindings[name]; ok {
		if b.Kind != BindArrayGroup {
			return false
		}
		return value.DeepEqual(value.ArrayFrom(b.Array), value.ArrayFrom(items))
	}
	s.Bindings[name] = Binding{Kind: BindArrayGroup, Array: items}
	s.Sites[name] = append(s.Sites[name], site)
	s.traceBind(name, value.ArrayFrom(items))
	return true
}

func (s *Solution) bindObjectGroup(name string, obj *value.Object, site Site) bool {
	if b, ok := s.Bindings[name]; ok {
		if b.Kind != BindObjectGroup {
			return false
		}
		return value.DeepEqual(value.ObjectValue(b.Object), value.ObjectValue(obj))
	}
	s.Bindings[name] = Binding{Kind: BindObjectGroup, Object: obj}
	s.Sites[name] = append(s.Sites[name], site)
	s.traceBind(name, value.ObjectValue(obj))
	return true
}

// dropBinding removes an iteration-scoped binding (a Collecting term's
// KeyVar/ValueVar) so the next iteration can rebind it.
func (s *Solution) dropBinding(name string) {
	delete(s.Bindings, name)
	delete(s.Sites, name)
}

func (s *Solution) pushGuard(text string, free []string, current value.Value, hasCurrent bool) {
	if text == "" {
		return
	}
	s.guards = append(s.guards, pendingGuard{text: text, free: free, current: current, hasCurrent: hasCurrent})
}

// closedGuards reports the guards whose every free variable is now
// bound, removing them from the pending list.
func (s *Solution) closedGuards() []pendingGuard {
	var closed []pendingGuard
	var still []pendingGuard
	for _, g := range s.guards {
		ready := true
		for _, name := range g.free {
			if _, ok := s.Bindings[name]; !ok {
				ready = false
				break
			}
		}
		if ready {
			closed = append(closed, g)
		} else {
			still = append(still, g)
		}
	}
	s.guards = still
	return closed
}

// allGuardsClosed reports whether every remaining guard's free variables
// are bound — used by match/scan to reject solutions left with guards
// that never closed (a reference to an unbound, never-introduced name).
func (s *Solution) allGuardsClosed() bool {
	return len(s.guards) == 0
}
