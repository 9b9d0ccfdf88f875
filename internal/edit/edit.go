// Package edit implements Tendril's CAS-based edit applier (spec §6):
// turning a solution's recorded binding sites plus a caller-supplied
// replacement value per binding name into a new root value, verifying
// (compare-and-swap style) that nothing at a site moved between match
// and apply.
//
// Per the expanded specification's decision on replacement syntax
// (SPEC_FULL §14.2): the parsed ">> pat <<" replacement text is never
// interpreted here — the only supported edit form is the site-based one,
// where the caller supplies new values for named bindings directly.
package edit

import (
	"github.com/tendril-lang/tendril/internal/eval"
	"github.com/tendril-lang/tendril/internal/value"
)

// Edit is one pending replacement: the bound variable name, the site it
// was recorded at, the value read from that site at match time (for the
// CAS check), and the value to write.
type Edit struct {
	Name string
	Site eval.Site
	Old  value.Value
	New  value.Value
}

// Failure records a replacement request that could not become an Edit.
type Failure struct {
	Name   string
	Reason string
}

// Conflict records two edits whose sites overlap.
type Conflict struct {
	A, B string
}

// CASFailure records an edit whose site no longer matches what was
// recorded at match time.
type CASFailure struct {
	Name   string
	Reason string
}

// Collect turns a solution and a name -> new-value replacement map into
// a concrete edit plan. A name the solution never bound (or bound but
// never recorded a site for, which should not happen in practice) is
// reported as a Failure rather than silently skipped.
func Collect(sol *eval.Solution, replacements map[string]value.Value) ([]Edit, []Failure) {
	var edits []Edit
	var failures []Failure
	for name, nv := range replacements {
		b, ok := sol.Bindings[name]
		sites := sol.Sites[name]
		if !ok || len(sites) == 0 {
			failures = append(failures, Failure{Name: name, Reason: "no recorded site for binding " + name})
			continue
		}
		edits = append(edits, Edit{Name: name, Site: sites[0], Old: b.AsValue(), New: nv})
	}
	return edits, failures
}

// DetectConflicts reports edit pairs whose sites overlap: applying both
// would be ambiguous about which wins.
func DetectConflicts(edits []Edit) []Conflict {
	var conflicts []Conflict
	for i := 0; i < len(edits); i++ {
		for j := i + 1; j < len(edits); j++ {
			if overlaps(edits[i].Site, edits[j].Site) {
				conflicts = append(conflicts, Conflict{A: edits[i].Name, B: edits[j].Name})
			}
		}
	}
	return conflicts
}

func overlaps(a, b eval.Site) bool {
	if a.Kind != b.Kind || !pathEqual(a.Path, b.Path) {
		return false
	}
	switch a.Kind {
	case eval.SiteScalar:
		return true
	case eval.SiteArrayGroup:
		return a.Start < b.End && b.Start < a.End
	case eval.SiteObjectGroup:
		seen := make(map[string]bool, len(a.Keys))
		for _, k := range a.Keys {
			seen[k] = true
		}
		for _, k := range b.Keys {
			if seen[k] {
				return true
			}
		}
	}
	return false
}

// spliceElements returns the elements a replacement value contributes to
// an array-group splice (spec §4.6): a plain array spreads its own
// elements; any other value is wrapped as a single-element slice.
func spliceElements(v value.Value) []value.Value {
	if v.Kind() == value.KindArray {
		return v.Array()
	}
	return []value.Value{v}
}

func pathEqual(p, q value.Path) bool {
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// Policy is the caller's decision when an edit's CAS check fails (spec
// §6 "opts.onCASFailure returning 'skip' | 'force'").
type Policy int

const (
	Skip Policy = iota
	Force
)

// Apply folds every edit into root in order, skipping (as a CASFailure)
// any whose recorded site no longer matches the live value there.
// Callers that care about determinism should run DetectConflicts first
// and resolve or reject conflicting edits before calling Apply.
func Apply(root value.Value, edits []Edit) (value.Value, []CASFailure) {
	return ApplyWithPolicy(root, edits, false, nil)
}

// ApplyWithPolicy is Apply with the two knobs the façade's Options expose:
// mutate (spec §6 opts.mutate — edit the containing object/array in place
// rather than rebuilding a cloned spine) and onFailure (spec's
// opts.onCASFailure — default behavior, nil, is "skip" for every
// mismatch).
//
// mutate is only able to preserve identity where Go's own value semantics
// allow it: internal/value.Object is already a pointer, so object-group
// edits and scalar/array writes that land inside an object mutate that
// object's map directly, in place, at any depth. A bare array has no such
// indirection; a length-changing array-group splice whose containing path
// is empty (the array itself is the root) cannot preserve identity and
// still returns a new root, the same as pure mode. This is a consequence
// of Go slices having no shared mutable header, not a deliberately
// incomplete feature.
func ApplyWithPolicy(root value.Value, edits []Edit, mutate bool, onFailure func(Edit, string) Policy) (value.Value, []CASFailure) {
	result := root
	var fails []CASFailure
	for _, e := range edits {
		var next value.Value
		var reason string
		var ok bool
		if mutate {
			next, reason, ok = applyOneMutate(result, e)
		} else {
			next, reason, ok = applyOne(result, e)
		}
		if !ok {
			policy := Skip
			if onFailure != nil {
				policy = onFailure(e, reason)
			}
			if policy == Force {
				forced, fok := forceApply(result, e, mutate)
				if fok {
					result = forced
					continue
				}
			}
			fails = append(fails, CASFailure{Name: e.Name, Reason: reason})
			continue
		}
		result = next
	}
	return result, fails
}

// forceApply applies e's replacement without the CAS equality check,
// used when the caller's onCASFailure policy returns Force.
func forceApply(root value.Value, e Edit, mutate bool) (value.Value, bool) {
	forced := e
	switch e.Site.Kind {
	case eval.SiteScalar:
		cur, ok := value.Get(root, e.Site.Path)
		if !ok {
			return root, false
		}
		forced.Old = cur
	case eval.SiteArrayGroup:
		container, ok := value.Get(root, e.Site.Path)
		if !ok || container.Kind() != value.KindArray {
			return root, false
		}
		arr := container.Array()
		if e.Site.Start < 0 || e.Site.End > len(arr) || e.Site.Start > e.Site.End {
			return root, false
		}
		forced.Old = value.ArrayFrom(append([]value.Value(nil), arr[e.Site.Start:e.Site.End]...))
	case eval.SiteObjectGroup:
		container, ok := value.Get(root, e.Site.Path)
		if !ok || container.Kind() != value.KindObject || container.Object() == nil {
			return root, false
		}
		curObj := value.NewObject()
		for _, k := range e.Site.Keys {
			v, ok := container.Object().Get(k)
			if !ok {
				continue
			}
			curObj.Set(k, v)
		}
		forced.Old = value.ObjectValue(curObj)
	}
	var next value.Value
	var ok bool
	if mutate {
		next, _, ok = applyOneMutate(root, forced)
	} else {
		next, _, ok = applyOne(root, forced)
	}
	return next, ok
}

// applyOneMutate is applyOne's in-place counterpart: it mutates the
// containing *value.Object directly (a pointer, so this is visible to
// every other Value that shares it) instead of cloning the spine. Array
// writes mutate the backing array in place when the replacement has the
// same length as the original site; otherwise it falls back to rebuilding
// just that array and writing it back into its parent (still in place one
// level up, if the parent is an object).
func applyOneMutate(root value.Value, e Edit) (value.Value, string, bool) {
	switch e.Site.Kind {
	case eval.SiteScalar:
		cur, ok := value.Get(root, e.Site.Path)
		if !ok {
			return root, "site path no longer resolves", false
		}
		if !value.DeepEqual(cur, e.Old) {
			return root, "value changed since match", false
		}
		if !mutateSet(root, e.Site.Path, e.New) {
			return root, "failed to set value at path", false
		}
		return rootAfterMutate(root, e.Site.Path, e.New), "", true

	case eval.SiteArrayGroup:
		container, ok := value.Get(root, e.Site.Path)
		if !ok || container.Kind() != value.KindArray {
			return root, "containing array no longer resolves", false
		}
		arr := container.Array()
		if e.Site.Start < 0 || e.Site.End > len(arr) || e.Site.Start > e.Site.End {
			return root, "array group range out of bounds", false
		}
		cur := value.ArrayFrom(append([]value.Value(nil), arr[e.Site.Start:e.Site.End]...))
		if !value.DeepEqual(cur, e.Old) {
			return root, "array slice changed since match", false
		}
		newItems := spliceElements(e.New)
		if len(newItems) == e.Site.End-e.Site.Start {
			copy(arr[e.Site.Start:e.Site.End], newItems)
			return root, "", true
		}
		var newArr []value.Value
		newArr = append(newArr, arr[:e.Site.Start]...)
		newArr = append(newArr, newItems...)
		newArr = append(newArr, arr[e.Site.End:]...)
		newArrVal := value.ArrayFrom(newArr)
		if !mutateSet(root, e.Site.Path, newArrVal) {
			return root, "failed to set array at path", false
		}
		return rootAfterMutate(root, e.Site.Path, newArrVal), "", true

	case eval.SiteObjectGroup:
		container, ok := value.Get(root, e.Site.Path)
		if !ok || container.Kind() != value.KindObject || container.Object() == nil {
			return root, "containing object no longer resolves", false
		}
		curObj := value.NewObject()
		for _, k := range e.Site.Keys {
			v, ok := container.Object().Get(k)
			if !ok {
				return root, "object group key missing since match", false
			}
			curObj.Set(k, v)
		}
		if !value.DeepEqual(value.ObjectValue(curObj), e.Old) {
			return root, "object group changed since match", false
		}
		obj := container.Object()
		for _, k := range e.Site.Keys {
			obj.Delete(k)
		}
		if e.New.Kind() == value.KindObject && e.New.Object() != nil {
			for _, k := range e.New.Object().Keys() {
				v, _ := e.New.Object().Get(k)
				obj.Set(k, v)
			}
		}
		return root, "", true

	default:
		return root, "unknown site kind", false
	}
}

// mutateSet writes newVal at path by mutating the existing container in
// place (Object.Set, or a direct slice index assignment into a shared
// backing array), without cloning any ancestor. It reports whether the
// in-place write was possible. An empty path (a scalar or array-group edit
// at the root) has no container to mutate: it reports true and leaves the
// replacement to the caller, via rootAfterMutate.
func mutateSet(root value.Value, path value.Path, newVal value.Value) bool {
	if len(path) == 0 {
		return true // the caller returns newVal as the new root
	}
	parent, ok := value.Get(root, path[:len(path)-1])
	if !ok {
		return false
	}
	last := path[len(path)-1]
	if last.IsIndex {
		if parent.Kind() != value.KindArray || last.Index < 0 || last.Index >= len(parent.Array()) {
			return false
		}
		parent.Array()[last.Index] = newVal
		return true
	}
	if parent.Kind() != value.KindObject || parent.Object() == nil {
		return false
	}
	parent.Object().Set(last.Key, newVal)
	return true
}

// rootAfterMutate returns the Value the caller should treat as the
// (possibly) new root: when path is non-empty, the edit already landed in
// a pointer-backed container in place, so root's own identity is
// unchanged. When path is empty, the edit replaced the root itself (no
// pointer indirection exists at that level in Go), so the new value is
// what the caller must use going forward.
func rootAfterMutate(root value.Value, path value.Path, newVal value.Value) value.Value {
	if len(path) == 0 {
		return newVal
	}
	return root
}

func applyOne(root value.Value, e Edit) (value.Value, string, bool) {
	switch e.Site.Kind {
	case eval.SiteScalar:
		cur, ok := value.Get(root, e.Site.Path)
		if !ok {
			return root, "site path no longer resolves", false
		}
		if !value.DeepEqual(cur, e.Old) {
			return root, "value changed since match", false
		}
		next, ok := setAtPath(root, e.Site.Path, e.New)
		if !ok {
			return root, "failed to set value at path", false
		}
		return next, "", true

	case eval.SiteArrayGroup:
		container, ok := value.Get(root, e.Site.Path)
		if !ok || container.Kind() != value.KindArray {
			return root, "containing array no longer resolves", false
		}
		arr := container.Array()
		if e.Site.Start < 0 || e.Site.End > len(arr) || e.Site.Start > e.Site.End {
			return root, "array group range out of bounds", false
		}
		cur := value.ArrayFrom(append([]value.Value(nil), arr[e.Site.Start:e.Site.End]...))
		if !value.DeepEqual(cur, e.Old) {
			return root, "array slice changed since match", false
		}
		var newArr []value.Value
		newArr = append(newArr, arr[:e.Site.Start]...)
		newArr = append(newArr, spliceElements(e.New)...)
		newArr = append(newArr, arr[e.Site.End:]...)
		next, ok := setAtPath(root, e.Site.Path, value.ArrayFrom(newArr))
		if !ok {
			return root, "failed to set array at path", false
		}
		return next, "", true

	case eval.SiteObjectGroup:
		container, ok := value.Get(root, e.Site.Path)
		if !ok || container.Kind() != value.KindObject || container.Object() == nil {
			return root, "containing object no longer resolves", false
		}
		curObj := value.NewObject()
		for _, k := range e.Site.Keys {
			v, ok := container.Object().Get(k)
			if !ok {
				return root, "object group key missing since match", false
			}
			curObj.Set(k, v)
		}
		if !value.DeepEqual(value.ObjectValue(curObj), e.Old) {
			return root, "object group changed since match", false
		}
		newObj := container.Object().Clone()
		for _, k := range e.Site.Keys {
			newObj.Delete(k)
		}
		if e.New.Kind() == value.KindObject && e.New.Object() != nil {
			for _, k := range e.New.Object().Keys() {
				v, _ := e.New.Object().Get(k)
				newObj.Set(k, v)
			}
		}
		next, ok := setAtPath(root, e.Site.Path, value.ObjectValue(newObj))
		if !ok {
			return root, "failed to set object at path", false
		}
		return next, "", true

	default:
		return root, "unknown site kind", false
	}
}

// setAtPath rebuilds the spine from root to path, replacing the value
// found there with newVal; siblings are shared, not copied, beyond the
// one array/object cloned at each spine level.
func setAtPath(root value.Value, path value.Path, newVal value.Value) (value.Value, bool) {
	if len(path) == 0 {
		return newVal, true
	}
	e := path[0]
	if e.IsIndex {
		if root.Kind() != value.KindArray || e.Index < 0 || e.Index >= len(root.Array()) {
			return value.Value{}, false
		}
		out := append([]value.Value(nil), root.Array()...)
		updated, ok := setAtPath(out[e.Index], path[1:], newVal)
		if !ok {
			return value.Value{}, false
		}
		out[e.Index] = updated
		return value.ArrayFrom(out), true
	}
	if root.Kind() != value.KindObject || root.Object() == nil {
		return value.Value{}, false
	}
	cur, ok := root.Object().Get(e.Key)
	if !ok {
		return value.Value{}, false
	}
	updated, ok := setAtPath(cur, path[1:], newVal)
	if !ok {
		return value.Value{}, false
	}
	newObj := root.Object().Clone()
	newObj.Set(e.Key, updated)
	return value.ObjectValue(newObj), true
}
