package eval

import (
	"github.com/tendril-lang/tendril/internal/past"
	"github.com/tendril-lang/tendril/internal/perr"
	"github.com/tendril-lang/tendril/internal/value"
)

// pushBucket enters a labeled Arr/Obj scope: a new bucket level is pushed
// so any Flow/Collecting term inside (at any depth, until the matching
// label is closed or shadowed) has somewhere to accumulate into.
func (s *Solution) pushBucket(label string) {
	s.buckets = append(s.buckets, bucketLevel{
		label:        label,
		arrayBuckets: map[string][]value.Value{},
		objectKeys:   map[string][]string{},
		objectValues: map[string]map[string]value.Value{},
	})
	s.labels[label] = len(s.buckets) - 1
}

// popBucket closes the top bucket level, finalizing every named bucket
// accumulated into it as a group binding (array or object), and returns
// the solution with that level removed. It fails (ok=false) if a
// finalized binding collides with an existing incompatible binding of
// the same name.
func (s *Solution) popBucket(label string) (*Solution, bool) {
	if len(s.buckets) == 0 {
		return s, false
	}
	top := s.buckets[len(s.buckets)-1]
	if top.label != label {
		return s, false
	}
	s.buckets = s.buckets[:len(s.buckets)-1]
	delete(s.labels, label)

	for name, items := range top.arrayBuckets {
		site := Site{Kind: SiteArrayGroup}
		if !s.bindArrayGroup(name, items, site) {
			return s, false
		}
	}
	for name, keys := range top.objectKeys {
		obj := value.NewObject()
		for _, k := range keys {
			obj.Set(k, top.objectValues[name][k])
		}
		site := Site{Kind: SiteObjectGroup, Keys: append([]string(nil), keys...)}
		if !s.bindObjectGroup(name, obj, site) {
			return s, false
		}
	}
	return s, true
}

// setCurrentKey records the key a labeled object's k:v term is currently
// iterating, so Flow/Collecting nodes nested inside the term's value
// pattern can address it (spec §4.5: "record the current iteration key
// in the label table").
func (s *Solution) setCurrentKey(label, key string) {
	if idx, ok := s.labels[label]; ok {
		s.buckets[idx].currentKey = key
		s.buckets[idx].hasCurrentKey = true
	}
}

// flowKey resolves the bucket key an object-kind contribution should use:
// the value of an already-bound string variable named by Collecting, or
// the target level's current iteration key.
func (s *Solution) flowKey(labelRef, keyVar string) (string, bool) {
	if keyVar != "" {
		b, ok := s.Bindings[keyVar]
		if !ok || b.Kind != BindScalar || b.Scalar.Kind() != value.KindString {
			return "", false
		}
		return b.Scalar.Str(), true
	}
	idx, ok := s.targetBucket(labelRef)
	if !ok || !s.buckets[idx].hasCurrentKey {
		return "", false
	}
	return s.buckets[idx].currentKey, true
}

// targetBucket resolves the bucket level a Flow/Collecting node
// contributes into: the named ancestor if labelRef is set, otherwise the
// innermost (top-of-stack) level.
func (s *Solution) targetBucket(labelRef string) (int, bool) {
	if labelRef != "" {
		idx, ok := s.labels[labelRef]
		return idx, ok
	}
	if len(s.buckets) == 0 {
		return 0, false
	}
	return len(s.buckets) - 1, true
}

// contributeArray appends v into the named array bucket. Array buckets
// never reject a contribution: repeats are fine (spec: no-collision
// append).
func (s *Solution) contributeArray(labelRef, bucket string, v value.Value) bool {
	idx, ok := s.targetBucket(labelRef)
	if !ok {
		return false
	}
	s.buckets[idx].arrayBuckets[bucket] = append(s.buckets[idx].arrayBuckets[bucket], v)
	return true
}

// contributeObject sets key=v in the named object bucket. A second
// contribution under the same key with a different value fails the
// branch (spec: object bucket same-key-unequal-value fails branch).
func (s *Solution) contributeObject(labelRef, bucket, key string, v value.Value) bool {
	idx, ok := s.targetBucket(labelRef)
	if !ok {
		return false
	}
	level := &s.buckets[idx]
	if level.objectValues[bucket] == nil {
		level.objectValues[bucket] = map[string]value.Value{}
	}
	if existing, ok := level.objectValues[bucket][key]; ok {
		return value.DeepEqual(existing, v)
	}
	level.objectValues[bucket][key] = v
	level.objectKeys[bucket] = append(level.objectKeys[bucket], key)
	return true
}

func flowParts(node past.Node) (pat past.Node, labelRef, bucket, keyVar, valueVar string) {
	switch f := node.(type) {
	case past.Flow:
		return f.Pat, f.LabelRef, f.Bucket, "", ""
	case past.Collecting:
		return f.Pat, f.LabelRef, f.Bucket, f.KeyVar, f.ValueVar
	default:
		return nil, "", "", "", ""
	}
}

func flowArrayKind(node past.Node) bool {
	switch f := node.(type) {
	case past.Flow:
		return f.ArrayKind
	case past.Collecting:
		return f.ArrayKind
	default:
		return false
	}
}

// matchValueFlow handles a Flow/Collecting node in value position (spec
// §4.5: nested anywhere under a labeled scope, typically inside a k:v
// term's value pattern). The inner pattern must match the node; an
// array-kind (@) bucket appends the node, an object-kind (%) bucket keys
// it by Collecting's named source variable or by the enclosing labeled
// object's current iteration key.
func (ctx *Ctx) matchValueFlow(node past.Node, v value.Value, path value.Path, sol *Solution, emit Emit) (bool, error) {
	pat, labelRef, bucket, keyVar, valueVar := flowParts(node)
	if _, ok := sol.targetBucket(labelRef); !ok {
		if labelRef != "" {
			return false, &perr.PatternEvaluate{Msg: "flow references undeclared label " + labelRef}
		}
		return false, &perr.PatternEvaluate{Msg: "flow (@/% bucket) outside a labeled scope"}
	}
	return ctx.matchItem(pat, v, path, sol, func(inner *Solution) (bool, error) {
		c := inner.Clone()
		contributed := v
		if valueVar != "" {
			b, ok := c.Bindings[valueVar]
			if !ok {
				return false, nil
			}
			contributed = b.AsValue()
		}
		if flowArrayKind(node) {
			if !c.contributeArray(labelRef, bucket, contributed) {
				return false, nil
			}
			return emit(c)
		}
		key, ok := c.flowKey(labelRef, keyVar)
		if !ok {
			return false, &perr.PatternEvaluate{Msg: "object-bucket flow outside a k:v context"}
		}
		if !c.contributeObject(labelRef, bucket, key, contributed) {
			return false, nil
		}
		return emit(c)
	})
}

// matchArrayFlowItem handles a Flow/Collecting node appearing directly as
// an array item (spec: "@bucket(pat)"/"@bucket<$v>(pat)"): it consumes
// exactly one array element, testing it against Pat and, on success,
// contributing the (possibly $v-renamed) element into the named bucket.
func (ctx *Ctx) matchArrayFlowItem(items []past.Node, idx int, node past.Node, arr []value.Value, pos int, arrPath value.Path, sol *Solution, done onArrayDone) (bool, error) {
	if pos >= len(arr) {
		return false, nil
	}
	pat, labelRef, bucket, keyVar, valueVar := flowParts(node)
	elem := arr[pos]
	elemPath := arrPath.Append(value.IndexElem(pos))
	base := sol
	valueVarScoped := false
	if valueVar != "" {
		base = sol.Clone()
		_, bound := base.Bindings[valueVar]
		valueVarScoped = !bound
		if !base.bindScalar(valueVar, elem, Site{Kind: SiteScalar, Path: elemPath}) {
			return false, nil
		}
	}
	return ctx.matchItem(pat, elem, elemPath, base, func(inner *Solution) (bool, error) {
		c := inner.Clone()
		if flowArrayKind(node) {
			if !c.contributeArray(labelRef, bucket, elem) {
				return false, nil
			}
		} else {
			key, ok := c.flowKey(labelRef, keyVar)
			if !ok {
				return false, &perr.PatternEvaluate{Msg: "object-bucket flow outside a k:v context"}
			}
			if !c.contributeObject(labelRef, bucket, key, elem) {
				return false, nil
			}
		}
		if valueVarScoped {
			c.dropBinding(valueVar)
		}
		return ctx.matchArrayPrefixFrom(items, idx+1, arr, pos+1, arrPath, c, done)
	})
}

// matchObjectFlowTerm tests whether a Flow/Collecting object term accepts
// the given key/value pair: it binds KeyVar/ValueVar (if named) before
// matching Pat against val, so Pat's own guard clauses may reference
// them, then contributes key/val into the named bucket on success.
// KeyVar/ValueVar are iteration-scoped — they are dropped again before
// the accumulating solution moves to the next key, so every key of the
// bucket gets its own pair.
func (ctx *Ctx) matchObjectFlowTerm(term past.Term, key string, val value.Value, valPath value.Path, sol *Solution) (*Solution, bool, error) {
	node, _ := term.(past.Node)
	if node == nil {
		return sol, false, nil
	}
	pat, labelRef, bucket, keyVar, valueVar := flowParts(node)
	base := sol.Clone()
	var scoped []string
	if keyVar != "" {
		if _, bound := base.Bindings[keyVar]; !bound {
			scoped = append(scoped, keyVar)
		}
		if !base.bindScalar(keyVar, value.String(key), Site{Kind: SiteScalar, Path: valPath}) {
			return sol, false, nil
		}
	}
	if valueVar != "" {
		if _, bound := base.Bindings[valueVar]; !bound {
			scoped = append(scoped, valueVar)
		}
		if !base.bindScalar(valueVar, val, Site{Kind: SiteScalar, Path: valPath}) {
			return sol, false, nil
		}
	}
	var result *Solution
	_, err := ctx.matchItem(pat, val, valPath, base, func(inner *Solution) (bool, error) {
		result = inner.Clone()
		return true, nil
	})
	if err != nil {
		return sol, false, err
	}
	if result == nil {
		return sol, false, nil
	}
	if flowArrayKind(node) {
		if !result.contributeArray(labelRef, bucket, val) {
			return sol, false, nil
		}
	} else if !result.contributeObject(labelRef, bucket, key, val) {
		return sol, false, nil
	}
	for _, name := range scoped {
		result.dropBinding(name)
	}
	return result, true, nil
}
