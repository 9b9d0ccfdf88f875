package eval

import (
	"github.com/tendril-lang/tendril/internal/past"
	"github.com/tendril-lang/tendril/internal/value"
)

// onArrayDone is invoked once an array item list is exhausted; pos is how
// far into arr the list's items consumed. The anchored top-level caller
// (Arr dispatch) only accepts pos == len(arr); the unanchored prefix uses
// inside GroupBind/SBind-over-Seq/lookahead accept any pos.
type onArrayDone func(pos int, sol *Solution) (bool, error)

// matchArrayPrefixFrom is the array item-list engine (spec §4.5 "Array
// matching"). It threads a running array index alongside the item-list
// index and dispatches on each item's dynamic type; reaching the end of
// items calls done with however much of arr was consumed.
func (ctx *Ctx) matchArrayPrefixFrom(items []past.Node, idx int, arr []value.Value, pos int, arrPath value.Path, sol *Solution, done onArrayDone) (bool, error) {
	if err := ctx.step(); err != nil {
		return false, err
	}
	if idx == len(items) {
		return done(pos, sol)
	}
	switch x := items[idx].(type) {
	case past.Spread:
		return ctx.matchArraySpreadItem(items, idx, x, arr, pos, arrPath, sol, done)
	case past.Quant:
		return ctx.matchArrayQuantItem(items, idx, x, arr, pos, arrPath, sol, done)
	case past.GroupBind:
		return ctx.matchArrayGroupBindItem(items, idx, x, arr, pos, arrPath, sol, done)
	case past.Alt:
		return ctx.matchArrayAltItem(items, idx, x, arr, pos, arrPath, sol, done)
	case past.Look:
		return ctx.matchArrayLookItem(items, idx, x, arr, pos, arrPath, sol, done)
	case past.Flow:
		return ctx.matchArrayFlowItem(items, idx, x, arr, pos, arrPath, sol, done)
	case past.Collecting:
		return ctx.matchArrayFlowItem(items, idx, x, arr, pos, arrPath, sol, done)
	case past.SBind:
		if isSeqPattern(x.Pat) {
			return ctx.matchArraySBindSeqItem(items, idx, x, arr, pos, arrPath, sol, done)
		}
		return ctx.matchArraySingleItem(items, idx, x, arr, pos, arrPath, sol, done)
	default:
		return ctx.matchArraySingleItem(items, idx, x, arr, pos, arrPath, sol, done)
	}
}

// matchArray is the Arr dispatch entry point: anchored unless the last
// item is a bare (unquantified) Spread, which the spec elides into an
// open tail before matching.
func (ctx *Ctx) matchArray(items []past.Node, arr []value.Value, arrPath value.Path, sol *Solution, emit Emit) (bool, error) {
	effective := items
	elided := false
	if n := len(items); n > 0 {
		if sp, ok := items[n-1].(past.Spread); ok && sp.Min == 0 && sp.Max == past.Unbounded {
			effective = items[:n-1]
			elided = true
		}
	}
	return ctx.matchArrayPrefixFrom(effective, 0, arr, 0, arrPath, sol, func(pos int, s *Solution) (bool, error) {
		if !elided && pos != len(arr) {
			return false, nil
		}
		return emit(s)
	})
}

func (ctx *Ctx) matchArraySpreadItem(items []past.Node, idx int, x past.Spread, arr []value.Value, pos int, arrPath value.Path, sol *Solution, done onArrayDone) (bool, error) {
	remaining := len(arr) - pos
	capMax := x.Max
	if capMax == past.Unbounded || capMax > remaining {
		capMax = remaining
	}
	for k := x.Min; k <= capMax; k++ {
		stop, err := ctx.matchArrayPrefixFrom(items, idx+1, arr, pos+k, arrPath, sol, done)
		if err != nil || stop {
			return stop, err
		}
	}
	return false, nil
}

func (ctx *Ctx) matchArrayQuantItem(items []past.Node, idx int, q past.Quant, arr []value.Value, pos int, arrPath value.Path, sol *Solution, done onArrayDone) (bool, error) {
	lengths, solAt, err := ctx.repetitionLengths(q.Sub, arr, pos, q.Min, q.Max, q.Mode, arrPath, sol)
	if err != nil {
		return false, err
	}
	for _, l := range lengths {
		stop, err := ctx.matchArrayPrefixFrom(items, idx+1, arr, pos+l, arrPath, solAt[l], done)
		if err != nil || stop {
			return stop, err
		}
	}
	return false, nil
}

// repetitionLengths drives a frontier expansion of sub over consecutive
// array elements starting at pos: at each step it takes the first
// solution sub produces against the next element (a documented
// simplification — a sub-pattern with multiple independently viable
// solutions per repetition is not explored combinatorially here) and
// stops at the first failure or at max. It returns the reachable lengths
// in the order the quantifier mode calls for.
func (ctx *Ctx) repetitionLengths(sub past.Node, arr []value.Value, pos, min, max int, mode past.QuantMode, arrPath value.Path, sol *Solution) ([]int, map[int]*Solution, error) {
	capMax := max
	if capMax == past.Unbounded || capMax > len(arr)-pos {
		capMax = len(arr) - pos
	}
	solAt := map[int]*Solution{0: sol}
	reachable := 0
	cur := sol
	for reachable < capMax {
		elem := arr[pos+reachable]
		elemPath := arrPath.Append(value.IndexElem(pos + reachable))
		var next *Solution
		_, err := ctx.matchItem(sub, elem, elemPath, cur, func(inner *Solution) (bool, error) {
			next = inner
			return true, nil
		})
		if err != nil {
			return nil, nil, err
		}
		if next == nil {
			break
		}
		reachable++
		solAt[reachable] = next
		cur = next
	}
	if reachable < min {
		return nil, solAt, nil
	}
	var lengths []int
	switch mode {
	case past.Possessive:
		lengths = []int{reachable}
	case past.Lazy:
		for l := min; l <= reachable; l++ {
			lengths = append(lengths, l)
		}
	default:
		for l := reachable; l >= min; l-- {
			lengths = append(lengths, l)
		}
	}
	return lengths, solAt, nil
}

func unwrapParen(n past.Node) past.Node {
	for {
		p, ok := n.(past.Paren)
		if !ok {
			return n
		}
		n = p.Inner
	}
}

func isSeqPattern(n past.Node) bool {
	_, ok := unwrapParen(n).(past.Seq)
	return ok
}

func (ctx *Ctx) matchArrayGroupBindItem(items []past.Node, idx int, gb past.GroupBind, arr []value.Value, pos int, arrPath value.Path, sol *Solution, done onArrayDone) (bool, error) {
	sub := unwrapParen(gb.Sub)
	switch x := sub.(type) {
	case past.Spread:
		remaining := len(arr) - pos
		capMax := x.Max
		if capMax == past.Unbounded || capMax > remaining {
			capMax = remaining
		}
		for l := x.Min; l <= capMax; l++ {
			stop, err := ctx.bindArrayGroupSlice(items, idx, gb.Name, arr, pos, l, arrPath, sol, done)
			if err != nil || stop {
				return stop, err
			}
		}
		return false, nil
	case past.Quant:
		lengths, solAt, err := ctx.repetitionLengths(x.Sub, arr, pos, x.Min, x.Max, x.Mode, arrPath, sol)
		if err != nil {
			return false, err
		}
		for _, l := range lengths {
			stop, err := ctx.bindArrayGroupSlice(items, idx, gb.Name, arr, pos, l, arrPath, solAt[l], done)
			if err != nil || stop {
				return stop, err
			}
		}
		return false, nil
	case past.Seq:
		n := len(x.Items)
		if pos+n > len(arr) {
			return false, nil
		}
		return ctx.matchArrayPrefixFrom(x.Items, 0, arr, pos, arrPath, sol, func(consumed int, inner *Solution) (bool, error) {
			if consumed != pos+n {
				return false, nil
			}
			return ctx.bindArrayGroupSlice(items, idx, gb.Name, arr, pos, n, arrPath, inner, done)
		})
	default:
		lengths, solAt, err := ctx.repetitionLengths(sub, arr, pos, 1, 1, past.Greedy, arrPath, sol)
		if err != nil {
			return false, err
		}
		for _, l := range lengths {
			stop, err := ctx.bindArrayGroupSlice(items, idx, gb.Name, arr, pos, l, arrPath, solAt[l], done)
			if err != nil || stop {
				return stop, err
			}
		}
		return false, nil
	}
}

func (ctx *Ctx) bindArrayGroupSlice(items []past.Node, idx int, name string, arr []value.Value, pos, length int, arrPath value.Path, sol *Solution, done onArrayDone) (bool, error) {
	c := sol.Clone()
	slice := append([]value.Value(nil), arr[pos:pos+length]...)
	site := Site{Kind: SiteArrayGroup, Path: arrPath, Start: pos, End: pos + length}
	if !c.bindArrayGroup(name, slice, site) {
		return false, nil
	}
	ok, err := checkClosedGuards(c)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return ctx.matchArrayPrefixFrom(items, idx+1, arr, pos+length, arrPath, c, done)
}

func (ctx *Ctx) matchArrayAltItem(items []past.Node, idx int, alt past.Alt, arr []value.Value, pos int, arrPath value.Path, sol *Solution, done onArrayDone) (bool, error) {
	replaced := make([]past.Node, len(items))
	copy(replaced, items)
	if alt.Prioritized {
		for _, b := range alt.Branches {
			replaced[idx] = b
			emitted := false
			stop, err := ctx.matchArrayPrefixFrom(replaced, idx, arr, pos, arrPath, sol, func(p int, s *Solution) (bool, error) {
				emitted = true
				return done(p, s)
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
	for _, b := range alt.Branches {
		replaced[idx] = b
		stop, err := ctx.matchArrayPrefixFrom(replaced, idx, arr, pos, arrPath, sol, done)
		if err != nil || stop {
			return stop, err
		}
	}
	return false, nil
}

// matchArrayLookItem implements the zero-width array-tail assertion:
// the sub-pattern is matched against the unconsumed tail as a value in
// its own right (so an Arr sub-pattern with its own trailing spread is
// "implicitly unanchored" for free). Bindings from a positive assertion
// escape into the continuation; a negative assertion only tests
// existence and contributes no bindings.
func (ctx *Ctx) matchArrayLookItem(items []past.Node, idx int, lk past.Look, arr []value.Value, pos int, arrPath value.Path, sol *Solution, done onArrayDone) (bool, error) {
	tail := value.ArrayFrom(append([]value.Value(nil), arr[pos:]...))
	if lk.Neg {
		any := false
		_, err := ctx.matchItem(lk.Pat, tail, arrPath, sol, func(*Solution) (bool, error) {
			any = true
			return true, nil
		})
		if err != nil {
			return false, err
		}
		if any {
			return false, nil
		}
		return ctx.matchArrayPrefixFrom(items, idx+1, arr, pos, arrPath, sol, done)
	}
	hasBindings := past.HasBindings(lk.Pat)
	return ctx.matchItem(lk.Pat, tail, arrPath, sol, func(inner *Solution) (bool, error) {
		stop, err := ctx.matchArrayPrefixFrom(items, idx+1, arr, pos, arrPath, inner, done)
		if err != nil || stop {
			return stop, err
		}
		if !hasBindings {
			return true, nil
		}
		return false, nil
	})
}

// matchArraySBindSeqItem handles "$name=(...)" where the parenthesized
// pattern is a Seq: it only binds (as a scalar) when the sequence
// happens to consume exactly one array element (spec concrete scenario
// in §8: "($x=(1 2))" over a two-element array yields zero).
func (ctx *Ctx) matchArraySBindSeqItem(items []past.Node, idx int, sb past.SBind, arr []value.Value, pos int, arrPath value.Path, sol *Solution, done onArrayDone) (bool, error) {
	seq := unwrapParen(sb.Pat).(past.Seq)
	return ctx.matchArrayPrefixFrom(seq.Items, 0, arr, pos, arrPath, sol, func(consumed int, inner *Solution) (bool, error) {
		if consumed-pos != 1 {
			return false, nil
		}
		c := inner.Clone()
		site := Site{Kind: SiteScalar, Path: arrPath.Append(value.IndexElem(pos))}
		if !c.bindScalar(sb.Name, arr[pos], site) {
			return false, nil
		}
		free, err := guardFreeVars(sb.Guard)
		if err != nil {
			return false, err
		}
		c.pushGuard(sb.Guard, free, arr[pos], true)
		ok, err := checkClosedGuards(c)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		return ctx.matchArrayPrefixFrom(items, idx+1, arr, consumed, arrPath, c, done)
	})
}

func (ctx *Ctx) matchArraySingleItem(items []past.Node, idx int, item past.Node, arr []value.Value, pos int, arrPath value.Path, sol *Solution, done onArrayDone) (bool, error) {
	if pos >= len(arr) {
		return false, nil
	}
	elem := arr[pos]
	elemPath := arrPath.Append(value.IndexElem(pos))
	return ctx.matchItem(item, elem, elemPath, sol, func(inner *Solution) (bool, error) {
		return ctx.matchArrayPrefixFrom(items, idx+1, arr, pos+1, arrPath, inner, done)
	})
}
