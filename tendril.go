package tendril

import (
	"strconv"
	"strings"

	"github.com/tendril-lang/tendril/internal/cache"
	"github.com/tendril-lang/tendril/internal/edit"
	"github.com/tendril-lang/tendril/internal/eval"
	"github.com/tendril-lang/tendril/internal/past"
	"github.com/tendril-lang/tendril/internal/perr"
	"github.com/tendril-lang/tendril/internal/value"
)

// Value is the JSON-like domain every pattern matches against: null,
// bool, number, string, array, or object.
type Value = value.Value

// Object is an insertion-ordered, string-keyed map used for object Values.
type Object = value.Object

// Path is a sequence of array indices and/or object keys from a matched
// root down to a binding site.
type Path = value.Path

// PathElem is one step of a Path.
type PathElem = value.PathElem

var (
	Null               = value.Null
	Bool               = value.Bool
	Number             = value.Number
	String             = value.String
	Array              = value.Array
	ArrayFrom          = value.ArrayFrom
	NewObject          = value.NewObject
	ObjectValue        = value.ObjectValue
	DeepEqual          = value.DeepEqual
	IndexElem          = value.IndexElem
	KeyElem            = value.KeyElem
)

// Error types re-exported from the internal taxonomy (spec §7) so callers
// never need to import an internal path to type-assert on them.
type (
	PatternSyntax    = perr.PatternSyntax
	PatternEvaluate  = perr.PatternEvaluate
	PatternAmbiguous = perr.PatternAmbiguous
)

// Site records where a binding's value was read from in the input, so it
// can be fed back into CollectEdits/ApplyEdits (spec §3, §6).
type Site = eval.Site

// SiteKind distinguishes the three Site shapes.
type SiteKind = eval.SiteKind

const (
	SiteScalar      = eval.SiteScalar
	SiteArrayGroup  = eval.SiteArrayGroup
	SiteObjectGroup = eval.SiteObjectGroup
)

// Pattern is a compiled, validated pattern, ready to run against any
// number of inputs.
type Pattern struct {
	source string
	ast    past.Node
}

// Source returns the text Pattern was compiled from.
func (p *Pattern) Source() string { return p.source }

// defaultCache is the package-level compile cache (spec §4.1: "compile
// caches by source string"). Its capacity is generous but bounded so a
// long-running process that compiles many distinct one-off patterns
// doesn't grow it unboundedly.
var defaultCache = cache.New(512)

// Compile parses and validates source into a reusable Pattern, memoizing
// by exact source text in a package-level LRU. A caller that wants a
// private, differently-sized cache (or no caching at all) should use
// NewCompiler.
func Compile(source string) (*Pattern, error) {
	return compileCached(source, defaultCache)
}

// Compiler is a Compile with its own private LRU cache, for callers who
// don't want to share the package-level default (tests, or a long-lived
// server handling many tenants' patterns).
type Compiler struct {
	cache *cache.LRU
}

// NewCompiler returns a Compiler backed by a private cache of the given
// capacity.
func NewCompiler(capacity int) *Compiler {
	return &Compiler{cache: cache.New(capacity)}
}

// Compile parses and validates source, consulting and populating c's
// private cache.
func (c *Compiler) Compile(source string) (*Pattern, error) {
	return compileCached(source, c.cache)
}

func compileCached(source string, c *cache.LRU) (*Pattern, error) {
	if cached, ok := c.Get(source); ok {
		return cached.(*Pattern), nil
	}
	p, err := compileUncached(source)
	if err != nil {
		return nil, err
	}
	c.Put(source, p)
	return p, nil
}

func compileUncached(source string) (*Pattern, error) {
	root, err := past.Parse(source)
	if err != nil {
		return nil, err
	}
	if err := past.Validate(root); err != nil {
		return nil, err
	}
	return &Pattern{source: source, ast: root}, nil
}

// Options configures a single match/scan/apply attempt.
type Options struct {
	// MaxSteps bounds the evaluator's work (spec §4.5); 0 means the
	// evaluator's own default.
	MaxSteps int

	// Mutate selects in-place edit application (spec §6 "opts.mutate")
	// for ApplyEdits/(*Pattern).ApplyEdits: the containing object is
	// written to directly rather than a cloned spine being rebuilt. See
	// internal/edit.ApplyWithPolicy's doc comment for the identity
	// guarantees this can and cannot make.
	Mutate bool

	// OnCASFailure is consulted when an edit's recorded site no longer
	// matches the live value there; nil always skips (spec §6's default
	// "skip").
	OnCASFailure func(name, reason string) Decision

	// Debug installs the evaluator's trace hooks (spec §6 "opts.debug");
	// nil disables tracing entirely.
	Debug *Debug
}

// Debug is the evaluator's trace hook set: OnEnter/OnExit around every
// pattern dispatch, OnBind on every fresh variable binding.
type Debug = eval.Debug

func (o Options) evalOptions() eval.Options {
	return eval.Options{MaxSteps: o.MaxSteps, Debug: o.Debug}
}

// Decision is the caller's answer to an OnCASFailure callback.
type Decision int

const (
	Skip Decision = iota
	Force
)

// Solution is one way a pattern matched: the variable bindings it
// produced, and the input site each binding was read from.
type Solution struct {
	inner *eval.Solution
}

// Bindings returns every bound variable's value, by name without its
// sigil ($ or %).
func (s *Solution) Bindings() map[string]Value {
	out := make(map[string]Value, len(s.inner.Bindings))
	for name, b := range s.inner.Bindings {
		out[name] = b.AsValue()
	}
	return out
}

// Binding returns a single bound variable's value.
func (s *Solution) Binding(name string) (Value, bool) {
	b, ok := s.inner.Bindings[name]
	if !ok {
		return Value{}, false
	}
	return b.AsValue(), true
}

// Sites returns, for every bound variable, the input location(s) its
// value was read from — the raw material ApplyEdits needs to write a
// replacement back.
func (s *Solution) Sites() map[string][]Site {
	out := make(map[string][]Site, len(s.inner.Sites))
	for name, sites := range s.inner.Sites {
		out[name] = append([]Site(nil), sites...)
	}
	return out
}

// Match runs p anchored at root's top level, collecting every solution.
func (p *Pattern) Match(root Value, opts Options) ([]*Solution, error) {
	var out []*Solution
	err := eval.Match(p.ast, root, opts.evalOptions(), func(s *eval.Solution) (bool, error) {
		out = append(out, &Solution{inner: s})
		return false, nil
	})
	return out, err
}

// MatchExists reports whether p matches root at least once.
func (p *Pattern) MatchExists(root Value, opts Options) (bool, error) {
	return eval.MatchExists(p.ast, root, opts.evalOptions())
}

// MatchFirst returns p's first solution against root, if any.
func (p *Pattern) MatchFirst(root Value, opts Options) (*Solution, bool, error) {
	sol, err := eval.MatchFirst(p.ast, root, opts.evalOptions())
	if err != nil || sol == nil {
		return nil, false, err
	}
	return &Solution{inner: sol}, true, nil
}

// ScanResult pairs a recursive Scan hit with the path it was found at.
type ScanResult struct {
	Path     Path
	Solution *Solution
}

// Scan walks root pre-order (root first, then arrays by index and
// objects by insertion order) and collects every solution p produces at
// every node visited.
func (p *Pattern) Scan(root Value, opts Options) ([]ScanResult, error) {
	var out []ScanResult
	err := eval.Scan(p.ast, root, opts.evalOptions(), func(path Path, s *eval.Solution) (bool, error) {
		out = append(out, ScanResult{Path: path, Solution: &Solution{inner: s}})
		return false, nil
	})
	return out, err
}

// ScanExists reports whether p matches anywhere under root.
func (p *Pattern) ScanExists(root Value, opts Options) (bool, error) {
	return eval.ScanExists(p.ast, root, opts.evalOptions())
}

// ScanFirst returns the first scan hit, if any.
func (p *Pattern) ScanFirst(root Value, opts Options) (ScanResult, bool, error) {
	path, sol, err := eval.ScanFirst(p.ast, root, opts.evalOptions())
	if err != nil || sol == nil {
		return ScanResult{}, false, err
	}
	return ScanResult{Path: path, Solution: &Solution{inner: sol}}, true, nil
}

// Matches compiles patternSrc and reports whether it matches root at
// least once, anchored at the top level. A one-shot convenience over
// Compile + (*Pattern).MatchExists.
func Matches(patternSrc string, root Value) (bool, error) {
	p, err := Compile(patternSrc)
	if err != nil {
		return false, err
	}
	return p.MatchExists(root, Options{})
}

// Extract compiles patternSrc, matches it once against root, and returns
// the first solution's bindings directly. The second return value is
// false when the pattern never matches.
func Extract(patternSrc string, root Value) (map[string]Value, bool, error) {
	p, err := Compile(patternSrc)
	if err != nil {
		return nil, false, err
	}
	sol, ok, err := p.MatchFirst(root, Options{})
	if err != nil || !ok {
		return nil, false, err
	}
	return sol.Bindings(), true, nil
}

// Fluent is the compiled-pattern-plus-error wrapper Tendril returns,
// following SPEC_FULL's decision (open question #3) to keep the core's
// raw []Solution rather than a combinator algebra: Fluent's own methods
// are small reducers over that raw slice, not a query language.
type Fluent struct {
	pattern *Pattern
	err     error
}

// Tendril compiles pat and returns a Fluent wrapper. Compile errors are
// captured rather than returned immediately, so a chain like
// Tendril(pat).Matches(v) reads naturally; the error surfaces the moment
// any method that can fail is called.
func Tendril(pat string) *Fluent {
	p, err := Compile(pat)
	return &Fluent{pattern: p, err: err}
}

// Err returns the compile error, if Tendril's pattern failed to compile.
func (f *Fluent) Err() error { return f.err }

// Matches reports whether the wrapped pattern matches root.
func (f *Fluent) Matches(root Value) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.pattern.MatchExists(root, Options{})
}

// First returns the wrapped pattern's first solution against root.
func (f *Fluent) First(root Value) (*Solution, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	return f.pattern.MatchFirst(root, Options{})
}

// All returns every solution the wrapped pattern produces against root.
func (f *Fluent) All(root Value) ([]*Solution, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pattern.Match(root, Options{})
}

// Scan runs the wrapped pattern recursively over root.
func (f *Fluent) Scan(root Value) ([]ScanResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pattern.Scan(root, Options{})
}

// --- Edit surface (spec §6) ---

// Edit is one pending replacement, ready for ApplyEdits.
type Edit = edit.Edit

// EditFailure records a replacement request that never became an Edit
// (the name was never bound, or never recorded a site).
type EditFailure = edit.Failure

// EditConflict records two edits whose recorded sites overlap.
type EditConflict = edit.Conflict

// CASFailure records an edit whose site no longer matched the live value
// there at apply time.
type CASFailure = edit.CASFailure

// cleanName strips a leading binding sigil ($, @, or %) from a plan key,
// so callers can write either {"x": ...} or {"$x": ...} (spec §6).
func cleanName(name string) string {
	return strings.TrimLeft(name, "$@%")
}

// CollectEdits turns sol's bindings plus a replacement plan into a
// concrete edit list, using the exact names the plan supplies (sigils
// optional).
func CollectEdits(sol *Solution, plan map[string]Value) ([]Edit, []EditFailure) {
	cleaned := make(map[string]Value, len(plan))
	for k, v := range plan {
		cleaned[cleanName(k)] = v
	}
	return edit.Collect(sol.inner, cleaned)
}

// CollectEditsAll runs CollectEdits over every solution in sols, calling
// plan once per solution to get that occurrence's replacements. Edits
// that land on the exact same site across different solutions (the same
// array/object captured at the same path and range/keys) are merged into
// one, per spec §6's "per: 'site'" dedup; a later occurrence disagreeing
// with an earlier one's replacement value is reported as a conflict
// rather than silently overwritten.
func CollectEditsAll(sols []*Solution, plan func(*Solution) map[string]Value) ([]Edit, []EditFailure, []EditConflict) {
	var failures []EditFailure
	bySite := map[string]Edit{}
	var order []string
	var conflicts []EditConflict
	for _, sol := range sols {
		edits, fails := CollectEdits(sol, plan(sol))
		failures = append(failures, fails...)
		for _, e := range edits {
			key := siteKey(e)
			if existing, ok := bySite[key]; ok {
				if !value.DeepEqual(existing.New, e.New) {
					conflicts = append(conflicts, EditConflict{A: existing.Name, B: e.Name})
				}
				continue
			}
			bySite[key] = e
			order = append(order, key)
		}
	}
	out := make([]Edit, 0, len(order))
	for _, k := range order {
		out = append(out, bySite[k])
	}
	return out, failures, conflicts
}

func siteKey(e Edit) string {
	var b strings.Builder
	b.WriteString(e.Site.Path.String())
	switch e.Site.Kind {
	case eval.SiteScalar:
		b.WriteString("#s")
	case eval.SiteArrayGroup:
		b.WriteString("#a:")
		b.WriteString(strconv.Itoa(e.Site.Start))
		b.WriteString(",")
		b.WriteString(strconv.Itoa(e.Site.End))
	case eval.SiteObjectGroup:
		b.WriteString("#o:")
		for _, k := range e.Site.Keys {
			b.WriteString(k)
			b.WriteString(",")
		}
	}
	return b.String()
}

// DetectConflicts reports edit pairs whose sites overlap.
func DetectConflicts(edits []Edit) []EditConflict {
	return edit.DetectConflicts(edits)
}

// ApplyEdits folds edits into root, honoring opts.Mutate and
// opts.OnCASFailure, and returns the (possibly new) root plus any edits
// that failed their CAS check and were skipped.
func ApplyEdits(root Value, edits []Edit, opts Options) (Value, []CASFailure) {
	var onFailure func(edit.Edit, string) edit.Policy
	if opts.OnCASFailure != nil {
		onFailure = func(e edit.Edit, reason string) edit.Policy {
			if opts.OnCASFailure(e.Name, reason) == Force {
				return edit.Force
			}
			return edit.Skip
		}
	}
	return edit.ApplyWithPolicy(root, edits, opts.Mutate, onFailure)
}

// ApplyEdits is a (*Pattern) convenience: match once, build the edit plan
// from the first solution's bindings, and apply it in one call.
func (p *Pattern) ApplyEdits(root Value, plan map[string]Value, opts Options) (Value, []EditFailure, []CASFailure, error) {
	sol, ok, err := p.MatchFirst(root, opts)
	if err != nil {
		return root, nil, nil, err
	}
	if !ok {
		return root, nil, nil, nil
	}
	edits, failures := CollectEdits(sol, plan)
	result, casFails := ApplyEdits(root, edits, opts)
	return result, failures, casFails, nil
}
