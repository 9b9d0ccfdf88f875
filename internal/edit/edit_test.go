package edit

import (
	"testing"

	"github.com/tendril-lang/tendril/internal/eval"
	"github.com/tendril-lang/tendril/internal/value"
)

func scalarSolution(name string, v value.Value, path value.Path) *eval.Solution {
	sol := eval.NewSolution()
	Match(sol, name, v, path)
	return sol
}

// Match is a tiny test helper that pokes a scalar binding + site directly
// into a Solution, bypassing the evaluator (these tests exercise edit.go
// in isolation from match.go).
func Match(sol *eval.Solution, name string, v value.Value, path value.Path) {
	sol.Bindings[name] = eval.Binding{Kind: eval.BindScalar, Scalar: v}
	sol.Sites[name] = []eval.Site{{Kind: eval.SiteScalar, Path: path}}
}

func TestCollectScalarEdit(t *testing.T) {
	sol := scalarSolution("x", value.Number(1), value.Path{value.KeyElem("x")})
	edits, failures := Collect(sol, map[string]value.Value{"x": value.Number(99)})
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %+v", failures)
	}
	if len(edits) != 1 || edits[0].Name != "x" || edits[0].New.Number() != 99 {
		t.Fatalf("unexpected edits: %+v", edits)
	}
}

func TestCollectReportsFailureForUnboundName(t *testing.T) {
	sol := eval.NewSolution()
	_, failures := Collect(sol, map[string]value.Value{"ghost": value.Number(1)})
	if len(failures) != 1 || failures[0].Name != "ghost" {
		t.Fatalf("expected a failure for ghost, got %+v", failures)
	}
}

func TestApplyScalarEditRebuildsSpine(t *testing.T) {
	obj := value.NewObject()
	obj.Set("x", value.Number(1))
	obj.Set("y", value.Number(2))
	root := value.ObjectValue(obj)

	edits := []Edit{{
		Name: "x",
		Site: eval.Site{Kind: eval.SiteScalar, Path: value.Path{value.KeyElem("x")}},
		Old:  value.Number(1),
		New:  value.Number(100),
	}}
	next, fails := Apply(root, edits)
	if len(fails) != 0 {
		t.Fatalf("unexpected failures: %+v", fails)
	}
	got, _ := next.Object().Get("x")
	if got.Number() != 100 {
		t.Fatalf("expected x=100, got %v", got.Number())
	}
	orig, _ := root.Object().Get("x")
	if orig.Number() != 1 {
		t.Fatalf("pure Apply must not mutate the input, got x=%v", orig.Number())
	}
	untouched, _ := next.Object().Get("y")
	if untouched.Number() != 2 {
		t.Fatalf("unrelated sibling y must be preserved, got %v", untouched.Number())
	}
}

func TestApplyScalarEditCASFailsOnStaleValue(t *testing.T) {
	obj := value.NewObject()
	obj.Set("x", value.Number(2)) // live value differs from the recorded Old
	root := value.ObjectValue(obj)

	edits := []Edit{{
		Name: "x",
		Site: eval.Site{Kind: eval.SiteScalar, Path: value.Path{value.KeyElem("x")}},
		Old:  value.Number(1),
		New:  value.Number(99),
	}}
	_, fails := Apply(root, edits)
	if len(fails) != 1 {
		t.Fatalf("expected one CAS failure, got %d", len(fails))
	}
}

func TestApplyArrayGroupEditSplicesRange(t *testing.T) {
	arr := value.Array(value.Number(1), value.Number(2), value.Number(3), value.Number(4))
	obj := value.NewObject()
	obj.Set("items", arr)
	root := value.ObjectValue(obj)

	edits := []Edit{{
		Name: "tail",
		Site: eval.Site{Kind: eval.SiteArrayGroup, Path: value.Path{value.KeyElem("items")}, Start: 2, End: 4},
		Old:  value.Array(value.Number(3), value.Number(4)),
		New:  value.Array(value.Number(30), value.Number(40), value.Number(50)),
	}}
	next, fails := Apply(root, edits)
	if len(fails) != 0 {
		t.Fatalf("unexpected failures: %+v", fails)
	}
	got, _ := next.Object().Get("items")
	items := got.Array()
	if len(items) != 5 {
		t.Fatalf("expected 5 items after splice, got %d", len(items))
	}
	if items[0].Number() != 1 || items[1].Number() != 2 || items[2].Number() != 30 || items[4].Number() != 50 {
		t.Fatalf("unexpected spliced array: %+v", items)
	}
}

func TestApplyArrayGroupEditWrapsNonArrayReplacement(t *testing.T) {
	arr := value.Array(value.Number(1), value.Number(2), value.Number(3))
	obj := value.NewObject()
	obj.Set("items", arr)
	root := value.ObjectValue(obj)

	edits := []Edit{{
		Name: "tail",
		Site: eval.Site{Kind: eval.SiteArrayGroup, Path: value.Path{value.KeyElem("items")}, Start: 1, End: 3},
		Old:  value.Array(value.Number(2), value.Number(3)),
		New:  value.Number(99),
	}}
	next, fails := Apply(root, edits)
	if len(fails) != 0 {
		t.Fatalf("unexpected failures: %+v", fails)
	}
	got, _ := next.Object().Get("items")
	items := got.Array()
	if len(items) != 2 || items[0].Number() != 1 || items[1].Number() != 99 {
		t.Fatalf("expected non-array replacement wrapped as single element, got %+v", items)
	}
}

func TestApplyObjectGroupEditReplacesResidual(t *testing.T) {
	inner := value.NewObject()
	inner.Set("a", value.Number(1))
	inner.Set("b", value.Number(2))
	obj := value.NewObject()
	obj.Set("rest", value.ObjectValue(inner))
	root := value.ObjectValue(obj)

	newRest := value.NewObject()
	newRest.Set("c", value.Number(3))
	oldRest := value.NewObject()
	oldRest.Set("a", value.Number(1))
	oldRest.Set("b", value.Number(2))

	edits := []Edit{{
		Name: "rest",
		Site: eval.Site{Kind: eval.SiteObjectGroup, Path: value.Path{value.KeyElem("rest")}, Keys: []string{"a", "b"}},
		Old:  value.ObjectValue(oldRest),
		New:  value.ObjectValue(newRest),
	}}
	next, fails := Apply(root, edits)
	if len(fails) != 0 {
		t.Fatalf("unexpected failures: %+v", fails)
	}
	got, _ := next.Object().Get("rest")
	if got.Object().Len() != 1 {
		t.Fatalf("expected residual object replaced with exactly {c:3}, got %+v", got.Object().Keys())
	}
	c, ok := got.Object().Get("c")
	if !ok || c.Number() != 3 {
		t.Fatalf("expected c=3, got %+v (ok=%v)", c, ok)
	}
}

func TestApplyMutateInPlaceForScalarInsideObject(t *testing.T) {
	obj := value.NewObject()
	obj.Set("x", value.Number(1))
	root := value.ObjectValue(obj)

	edits := []Edit{{
		Name: "x",
		Site: eval.Site{Kind: eval.SiteScalar, Path: value.Path{value.KeyElem("x")}},
		Old:  value.Number(1),
		New:  value.Number(42),
	}}
	_, fails := ApplyWithPolicy(root, edits, true, nil)
	if len(fails) != 0 {
		t.Fatalf("unexpected failures: %+v", fails)
	}
	got, _ := obj.Get("x")
	if got.Number() != 42 {
		t.Fatalf("expected the original object mutated to x=42, got %v", got.Number())
	}
}

func TestApplyMutateArrayGroupSameLengthInPlace(t *testing.T) {
	backing := []value.Value{value.Number(1), value.Number(2), value.Number(3)}
	obj := value.NewObject()
	obj.Set("items", value.ArrayFrom(backing))
	root := value.ObjectValue(obj)

	edits := []Edit{{
		Name: "mid",
		Site: eval.Site{Kind: eval.SiteArrayGroup, Path: value.Path{value.KeyElem("items")}, Start: 1, End: 2},
		Old:  value.Array(value.Number(2)),
		New:  value.Array(value.Number(99)),
	}}
	_, fails := ApplyWithPolicy(root, edits, true, nil)
	if len(fails) != 0 {
		t.Fatalf("unexpected failures: %+v", fails)
	}
	if backing[1].Number() != 99 {
		t.Fatalf("expected the backing array mutated in place at index 1, got %v", backing[1].Number())
	}
}

func TestApplyOnCASFailureSkipByDefault(t *testing.T) {
	obj := value.NewObject()
	obj.Set("x", value.Number(2))
	root := value.ObjectValue(obj)
	edits := []Edit{{
		Name: "x",
		Site: eval.Site{Kind: eval.SiteScalar, Path: value.Path{value.KeyElem("x")}},
		Old:  value.Number(1),
		New:  value.Number(99),
	}}
	next, fails := ApplyWithPolicy(root, edits, false, nil)
	if len(fails) != 1 {
		t.Fatalf("expected 1 CAS failure, got %d", len(fails))
	}
	got, _ := next.Object().Get("x")
	if got.Number() != 2 {
		t.Fatalf("a skipped edit must leave the live value untouched, got %v", got.Number())
	}
}

func TestApplyOnCASFailureForceOverridesStaleValue(t *testing.T) {
	obj := value.NewObject()
	obj.Set("x", value.Number(2)) // moved since match
	root := value.ObjectValue(obj)
	edits := []Edit{{
		Name: "x",
		Site: eval.Site{Kind: eval.SiteScalar, Path: value.Path{value.KeyElem("x")}},
		Old:  value.Number(1),
		New:  value.Number(99),
	}}
	next, fails := ApplyWithPolicy(root, edits, false, func(Edit, string) Policy { return Force })
	if len(fails) != 0 {
		t.Fatalf("expected force to clear the CAS failure, got %+v", fails)
	}
	got, _ := next.Object().Get("x")
	if got.Number() != 99 {
		t.Fatalf("expected forced edit to win, got %v", got.Number())
	}
}

func TestDetectConflictsOverlappingScalarSites(t *testing.T) {
	edits := []Edit{
		{Name: "a", Site: eval.Site{Kind: eval.SiteScalar, Path: value.Path{value.KeyElem("x")}}},
		{Name: "b", Site: eval.Site{Kind: eval.SiteScalar, Path: value.Path{value.KeyElem("x")}}},
	}
	conflicts := DetectConflicts(edits)
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(conflicts))
	}
}

func TestDetectConflictsOverlappingArrayRanges(t *testing.T) {
	path := value.Path{value.KeyElem("items")}
	edits := []Edit{
		{Name: "a", Site: eval.Site{Kind: eval.SiteArrayGroup, Path: path, Start: 0, End: 3}},
		{Name: "b", Site: eval.Site{Kind: eval.SiteArrayGroup, Path: path, Start: 2, End: 5}},
	}
	conflicts := DetectConflicts(edits)
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict for overlapping ranges, got %d", len(conflicts))
	}
}

func TestDetectConflictsNonOverlappingArrayRanges(t *testing.T) {
	path := value.Path{value.KeyElem("items")}
	edits := []Edit{
		{Name: "a", Site: eval.Site{Kind: eval.SiteArrayGroup, Path: path, Start: 0, End: 2}},
		{Name: "b", Site: eval.Site{Kind: eval.SiteArrayGroup, Path: path, Start: 2, End: 4}},
	}
	conflicts := DetectConflicts(edits)
	if len(conflicts) != 0 {
		t.Fatalf("expected no conflicts for adjacent, non-overlapping ranges, got %d", len(conflicts))
	}
}
