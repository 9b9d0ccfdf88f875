package eval

import (
	"github.com/tendril-lang/tendril/internal/past"
	"github.com/tendril-lang/tendril/internal/value"
)

// objState is one thread of the object matcher: a candidate solution
// plus the set of keys covered so far. Covered keys (spec glossary: any
// key whose key-pattern matched, slice and bad alike) feed the remainder
// computation at the end of the term list; each state owns its map.
type objState struct {
	sol     *Solution
	covered map[string]bool
}

func cloneCovered(m map[string]bool) map[string]bool {
	c := make(map[string]bool, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// matchObject is the Obj dispatch entry point (spec §4.5 "Object
// matching"): terms are resolved in written order, each mapping the
// current state list to its successors; OGroupTerm nests are flattened
// first. A k:v term whose key or value pattern captures state fans out
// into one successor per slice key, so `{$k: $v}` over a two-key object
// yields two solutions. Terms are not permuted in search of an alternate
// covering — each is tried once, against whatever the states carry when
// its turn comes.
func (ctx *Ctx) matchObject(x past.Obj, obj *value.Object, path value.Path, sol *Solution, emit Emit) (bool, error) {
	if obj == nil {
		obj = value.NewObject()
	}
	terms := flattenObjTerms(x.Terms)
	states := []objState{{sol: sol, covered: map[string]bool{}}}
	for _, t := range terms {
		var next []objState
		for _, st := range states {
			succ, err := ctx.applyObjectTerm(t, x.Label, obj, path, st)
			if err != nil {
				return false, err
			}
			next = append(next, succ...)
		}
		if len(next) == 0 {
			return false, nil
		}
		states = next
	}
	for _, st := range states {
		stop, err := ctx.finishObject(x, obj, path, st, emit)
		if err != nil || stop {
			return stop, err
		}
	}
	return false, nil
}

// finishObject applies the remainder rules (spec §4.5 "After all
// terms") to one surviving state and emits it if the residual key set
// satisfies the declared spread (or closure, when none is declared).
func (ctx *Ctx) finishObject(x past.Obj, obj *value.Object, path value.Path, st objState, emit Emit) (bool, error) {
	var residualKeys []string
	for _, k := range obj.Keys() {
		if !st.covered[k] {
			residualKeys = append(residualKeys, k)
		}
	}
	cur := st.sol
	if x.Spread == nil {
		if len(residualKeys) > 0 {
			return false, nil
		}
		return emit(cur)
	}
	sp := *x.Spread
	switch {
	case sp.GroupName != "":
		residual := value.NewObject()
		for _, k := range residualKeys {
			v, _ := obj.Get(k)
			residual.Set(k, v)
		}
		c := cur.Clone()
		site := Site{Kind: SiteObjectGroup, Path: path, Keys: residualKeys}
		if !c.bindObjectGroup(sp.GroupName, residual, site) {
			return false, nil
		}
		cur = c
	case sp.RequireNonEmpty:
		if len(residualKeys) == 0 {
			return false, nil
		}
	case sp.Closed:
		if len(residualKeys) > 0 {
			return false, nil
		}
	case sp.Bare:
		n := len(residualKeys)
		if n < sp.Min {
			return false, nil
		}
		if sp.Max != past.Unbounded && n > sp.Max {
			return false, nil
		}
	}
	return emit(cur)
}

func flattenObjTerms(terms []past.Term) []past.Term {
	var out []past.Term
	for _, t := range terms {
		if g, ok := t.(past.OGroupTerm); ok {
			out = append(out, flattenObjTerms(g.Terms)...)
		} else {
			out = append(out, t)
		}
	}
	return out
}

func (ctx *Ctx) applyObjectTerm(t past.Term, label string, obj *value.Object, path value.Path, st objState) ([]objState, error) {
	switch x := t.(type) {
	case past.OTerm:
		return ctx.applyOTerm(x, label, obj, path, st)
	case past.GroupBindTerm:
		return ctx.applyGroupBindTerm(x, obj, path, st)
	case past.OLookTerm:
		return ctx.applyOLookTerm(x, obj, path, st)
	case past.Flow:
		return ctx.applyFlowTerm(x, obj, path, st)
	case past.Collecting:
		return ctx.applyFlowTerm(x, obj, path, st)
	default:
		return nil, nil
	}
}

// applyOTerm resolves one "key: value" term against one state (spec
// §4.5): every uncovered key is tested against Key, the survivors
// partitioned into slice (Val matched after breadcrumb navigation) and
// bad, the slice checked against the term's cardinality, and — when the
// term captures anything — one successor state produced per slice key. A
// plain term tolerates bad entries; an "each" (Strong) term treats any
// bad entry as a hard failure.
func (ctx *Ctx) applyOTerm(x past.OTerm, label string, obj *value.Object, path value.Path, st objState) ([]objState, error) {
	type sliceEntry struct {
		key string
		sol *Solution
	}
	var slice []sliceEntry
	badCount := 0
	keyCovered := map[string]bool{}

	// Fast path (spec §4.5 step 1): a key pattern referencing an
	// already-bound string variable needs no enumeration.
	candidates := obj.Keys()
	if name, ok := boundStringKey(x.Key, st.sol); ok {
		candidates = nil
		if _, present := obj.Get(name); present {
			candidates = []string{name}
		}
	}

	for _, k := range candidates {
		if st.covered[k] {
			continue
		}
		vK, _ := obj.Get(k)
		cand := st.sol.Clone()
		keyMatched := false
		if _, err := ctx.matchItem(x.Key, value.String(k), path, cand, func(inner *Solution) (bool, error) {
			keyMatched = true
			cand = inner
			return true, nil
		}); err != nil {
			return nil, err
		}
		if !keyMatched {
			continue
		}
		keyCovered[k] = true
		if label != "" {
			cand.setCurrentKey(label, k)
		}
		target, targetPath, ok, err := ctx.navigateBreadcrumbs(x.Breadcrumbs, vK, path.Append(value.KeyElem(k)), cand)
		if err != nil {
			return nil, err
		}
		if !ok {
			badCount++
			continue
		}
		valMatched := false
		if _, err := ctx.matchItem(x.Val, target, targetPath, cand, func(inner *Solution) (bool, error) {
			valMatched = true
			cand = inner
			return true, nil
		}); err != nil {
			return nil, err
		}
		if !valMatched {
			badCount++
			continue
		}
		slice = append(slice, sliceEntry{key: k, sol: cand})
	}

	if x.Strong && badCount > 0 {
		return nil, nil
	}
	min, max := 1, past.Unbounded
	if x.Optional {
		min = 0
	}
	if x.Quant != nil {
		min, max = x.Quant.Min, x.Quant.Max
	}
	if len(slice) < min {
		return nil, nil
	}
	if max != past.Unbounded && len(slice) > max {
		return nil, nil
	}

	covered := cloneCovered(st.covered)
	for k := range keyCovered {
		covered[k] = true
	}
	branchy := past.HasBindings(x.Key) || past.HasBindings(x.Val) || past.HasGuards(x.Val)
	flowy := past.HasFlow(x.Key) || past.HasFlow(x.Val)
	if len(slice) == 0 || (!branchy && !flowy) {
		// Nothing distinguishes the per-key matches: one state stands
		// for all of them.
		return []objState{{sol: st.sol, covered: covered}}, nil
	}
	if flowy {
		// Bucket contributions aggregate across the whole slice; fold
		// every key's contributions into one shared view so no branch
		// sees only its own.
		entrySols := make([]*Solution, len(slice))
		for i, e := range slice {
			entrySols[i] = e.sol
		}
		merged, ok := mergedBuckets(st.sol, entrySols)
		if !ok {
			return nil, nil
		}
		if !branchy {
			one := slice[0].sol
			one.buckets = merged
			return []objState{{sol: one, covered: covered}}, nil
		}
		for _, e := range slice {
			e.sol.buckets = cloneBuckets(merged)
		}
	}
	out := make([]objState, 0, len(slice))
	for _, e := range slice {
		out = append(out, objState{sol: e.sol, covered: covered})
	}
	return out, nil
}

// mergedBuckets rebuilds base's bucket stack with every entry solution's
// contributions (the suffix each added on top of base) appended, in
// slice order. It reports failure when two entries contributed the same
// object-bucket key with unequal values (spec §4.5: bucket collision
// fails the branch).
func mergedBuckets(base *Solution, entries []*Solution) ([]bucketLevel, bool) {
	out := cloneBuckets(base.buckets)
	for _, e := range entries {
		for i := range out {
			if i >= len(e.buckets) {
				break
			}
			eb := e.buckets[i]
			ob := &out[i]
			for name, items := range eb.arrayBuckets {
				baseLen := 0
				if i < len(base.buckets) {
					baseLen = len(base.buckets[i].arrayBuckets[name])
				}
				if ob.arrayBuckets == nil {
					ob.arrayBuckets = map[string][]value.Value{}
				}
				ob.arrayBuckets[name] = append(ob.arrayBuckets[name], items[baseLen:]...)
			}
			for name, keys := range eb.objectKeys {
				baseLen := 0
				if i < len(base.buckets) {
					baseLen = len(base.buckets[i].objectKeys[name])
				}
				if ob.objectValues == nil {
					ob.objectValues = map[string]map[string]value.Value{}
				}
				if ob.objectValues[name] == nil {
					ob.objectValues[name] = map[string]value.Value{}
				}
				if ob.objectKeys == nil {
					ob.objectKeys = map[string][]string{}
				}
				for _, k := range keys[baseLen:] {
					v := eb.objectValues[name][k]
					if existing, exists := ob.objectValues[name][k]; exists {
						if !value.DeepEqual(existing, v) {
							return nil, false
						}
						continue
					}
					ob.objectValues[name][k] = v
					ob.objectKeys[name] = append(ob.objectKeys[name], k)
				}
			}
		}
	}
	return out, true
}

// boundStringKey reports whether keyPat is a binding reference whose
// variable is already bound to a string in sol.
func boundStringKey(keyPat past.Node, sol *Solution) (string, bool) {
	sb, ok := unwrapParen(keyPat).(past.SBind)
	if !ok {
		return "", false
	}
	if _, isAny := unwrapParen(sb.Pat).(past.Any); !isAny {
		return "", false
	}
	b, ok := sol.Bindings[sb.Name]
	if !ok || b.Kind != BindScalar || b.Scalar.Kind() != value.KindString {
		return "", false
	}
	return b.Scalar.Str(), true
}

func (ctx *Ctx) applyGroupBindTerm(x past.GroupBindTerm, obj *value.Object, path value.Path, st objState) ([]objState, error) {
	residual := value.NewObject()
	var keys []string
	for _, k := range obj.Keys() {
		if st.covered[k] {
			continue
		}
		v, _ := obj.Get(k)
		if x.Sub != nil {
			matched := false
			if _, err := ctx.matchItem(x.Sub, v, path.Append(value.KeyElem(k)), st.sol, func(*Solution) (bool, error) {
				matched = true
				return true, nil
			}); err != nil {
				return nil, err
			}
			if !matched {
				continue
			}
		}
		residual.Set(k, v)
		keys = append(keys, k)
	}
	c := st.sol.Clone()
	site := Site{Kind: SiteObjectGroup, Path: path, Keys: keys}
	if !c.bindObjectGroup(x.Name, residual, site) {
		return nil, nil
	}
	covered := cloneCovered(st.covered)
	for _, k := range keys {
		covered[k] = true
	}
	return []objState{{sol: c, covered: covered}}, nil
}

// applyOLookTerm is a zero-width assertion against the whole object
// value, consuming no keys. Used both for plain "(?pat)"/"(!pat)" object
// terms and the "closed object" idiom (a negative assertion over the
// object's own remainder shape).
func (ctx *Ctx) applyOLookTerm(x past.OLookTerm, obj *value.Object, path value.Path, st objState) ([]objState, error) {
	whole := value.ObjectValue(obj)
	if x.Neg {
		any := false
		if _, err := ctx.matchItem(x.Pat, whole, path, st.sol, func(*Solution) (bool, error) {
			any = true
			return true, nil
		}); err != nil {
			return nil, err
		}
		if any {
			return nil, nil
		}
		return []objState{st}, nil
	}
	var result *Solution
	if _, err := ctx.matchItem(x.Pat, whole, path, st.sol, func(inner *Solution) (bool, error) {
		result = inner.Clone()
		return true, nil
	}); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return []objState{{sol: result, covered: st.covered}}, nil
}

// applyFlowTerm is always optional: it tries every currently uncovered
// key against the Flow/Collecting pattern, covering and contributing
// whichever ones match, in key order.
func (ctx *Ctx) applyFlowTerm(t past.Term, obj *value.Object, path value.Path, st objState) ([]objState, error) {
	cur := st.sol
	covered := cloneCovered(st.covered)
	for _, k := range obj.Keys() {
		if covered[k] {
			continue
		}
		v, _ := obj.Get(k)
		next, matched, err := ctx.matchObjectFlowTerm(t, k, v, path.Append(value.KeyElem(k)), cur)
		if err != nil {
			return nil, err
		}
		if matched {
			cur = next
			covered[k] = true
		}
	}
	return []objState{{sol: cur, covered: covered}}, nil
}

// navigateBreadcrumbs walks an OTerm's "a.b[0]..c" path spec from node,
// returning the value and path the term's Val pattern is actually
// matched against.
func (ctx *Ctx) navigateBreadcrumbs(bcs []past.Breadcrumb, node value.Value, path value.Path, sol *Solution) (value.Value, value.Path, bool, error) {
	cur, curPath := node, path
	for _, bc := range bcs {
		if err := ctx.step(); err != nil {
			return value.Value{}, nil, false, err
		}
		switch bc.Kind {
		case past.BDot:
			if cur.Kind() != value.KindObject || cur.Object() == nil {
				return value.Value{}, nil, false, nil
			}
			v, ok := cur.Object().Get(bc.Key)
			if !ok {
				return value.Value{}, nil, false, nil
			}
			cur = v
			curPath = curPath.Append(value.KeyElem(bc.Key))
		case past.BBracket:
			if cur.Kind() != value.KindArray {
				return value.Value{}, nil, false, nil
			}
			idx, ok, err := ctx.resolveBracketIndex(bc.Index, sol)
			if err != nil {
				return value.Value{}, nil, false, err
			}
			if !ok || idx < 0 || idx >= len(cur.Array()) {
				return value.Value{}, nil, false, nil
			}
			cur = cur.Array()[idx]
			curPath = curPath.Append(value.IndexElem(idx))
		case past.BSkip:
			found, foundPath, ok := findKeyAnyDepth(cur, bc.Key, curPath)
			if !ok {
				return value.Value{}, nil, false, nil
			}
			cur, curPath = found, foundPath
		}
	}
	return cur, curPath, true, nil
}

// resolveBracketIndex supports a literal numeric index in a breadcrumb
// bracket ("a[0]") and a reference to an already-bound numeric variable;
// a computed or wildcard index is not resolved here (documented gap: full
// backtracking over candidate indices is not implemented for breadcrumb
// navigation).
func (ctx *Ctx) resolveBracketIndex(idxPat past.Node, sol *Solution) (int, bool, error) {
	switch x := unwrapParen(idxPat).(type) {
	case past.Lit:
		if x.Value.Kind() == value.KindNumber {
			return int(x.Value.Number()), true, nil
		}
	case past.SBind:
		if b, ok := sol.Bindings[x.Name]; ok && b.Kind == BindScalar && b.Scalar.Kind() == value.KindNumber {
			return int(b.Scalar.Number()), true, nil
		}
	}
	return 0, false, nil
}

// findKeyAnyDepth implements "a..b": a pre-order search under node (node
// included) for the first object carrying key, used by BSkip
// breadcrumbs. It returns only the first hit, not every reachable one.
func findKeyAnyDepth(node value.Value, key string, basePath value.Path) (value.Value, value.Path, bool) {
	switch node.Kind() {
	case value.KindObject:
		if node.Object() == nil {
			return value.Value{}, nil, false
		}
		if v, ok := node.Object().Get(key); ok {
			return v, basePath.Append(value.KeyElem(key)), true
		}
		for _, k := range node.Object().Keys() {
			v, _ := node.Object().Get(k)
			if found, p, ok := findKeyAnyDepth(v, key, basePath.Append(value.KeyElem(k))); ok {
				return found, p, true
			}
		}
	case value.KindArray:
		for i, e := range node.Array() {
			if found, p, ok := findKeyAnyDepth(e, key, basePath.Append(value.IndexElem(i))); ok {
				return found, p, true
			}
		}
	}
	return value.Value{}, nil, false
}
