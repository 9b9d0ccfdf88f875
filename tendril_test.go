package tendril

import "testing"

func mustCompile(t *testing.T, src string) *Pattern {
	t.Helper()
	p, err := Compile(src)
	if err != nil {
		t.Fatalf("compile(%q): %v", src, err)
	}
	return p
}

func TestMatchRepeatedVariableUnifies(t *testing.T) {
	pat := mustCompile(t, "[$x, $x]")

	sols, err := pat.Match(Array(Number(3), Number(3)), Options{})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(sols) != 1 {
		t.Fatalf("expected 1 solution, got %d", len(sols))
	}
	v, ok := sols[0].Binding("x")
	if !ok || v.Number() != 3 {
		t.Fatalf("expected $x bound to 3, got %+v (ok=%v)", v, ok)
	}

	sols, err = pat.Match(Array(Number(3), Number(4)), Options{})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(sols) != 0 {
		t.Fatalf("expected no solutions for [3,4], got %d", len(sols))
	}
}

func TestMatchArrayGroupBind(t *testing.T) {
	pat := mustCompile(t, "[_, _, $tail...]")
	sols, err := pat.Match(Array(Number(1), Number(2), Number(3), Number(4)), Options{})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(sols) != 1 {
		t.Fatalf("expected 1 solution, got %d", len(sols))
	}
	tail, ok := sols[0].Binding("tail")
	if !ok {
		t.Fatalf("expected $tail to be bound")
	}
	if got := tail.Array(); len(got) != 2 || got[0].Number() != 3 || got[1].Number() != 4 {
		t.Fatalf("unexpected $tail: %+v", got)
	}
}

func TestMatchGuard(t *testing.T) {
	pat := mustCompile(t, "$a where $a >= 18")

	ok, err := pat.MatchExists(Number(21), Options{})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if !ok {
		t.Fatalf("expected 21 to satisfy guard >= 18")
	}

	ok, err = pat.MatchExists(Number(10), Options{})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if ok {
		t.Fatalf("expected 10 to fail guard >= 18")
	}
}

func TestMatchVerticalKeyPath(t *testing.T) {
	pat := mustCompile(t, "{user.email: $e}")
	obj := NewObject()
	user := NewObject()
	user.Set("email", String("a@example.com"))
	obj.Set("user", ObjectValue(user))

	sol, ok, err := pat.MatchFirst(ObjectValue(obj), Options{})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if !ok {
		t.Fatalf("expected a match")
	}
	e, ok := sol.Binding("e")
	if !ok || e.Str() != "a@example.com" {
		t.Fatalf("expected $e = a@example.com, got %+v (ok=%v)", e, ok)
	}
}

func TestScanFindsEveryMatch(t *testing.T) {
	pat := mustCompile(t, "{email: $e, ...}")

	alice := NewObject()
	alice.Set("name", String("Alice"))
	alice.Set("email", String("alice@example.com"))
	bob := NewObject()
	bob.Set("name", String("Bob"))
	bob.Set("email", String("bob@example.com"))
	carol := NewObject()
	carol.Set("name", String("Carol"))

	root := Array(ObjectValue(alice), ObjectValue(bob), ObjectValue(carol))

	results, err := pat.Scan(root, Options{})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 scan hits, got %d", len(results))
	}
	for _, r := range results {
		if _, ok := r.Solution.Binding("e"); !ok {
			t.Fatalf("expected $e bound at %v", r.Path)
		}
	}
}

func TestScanKeyValueBranchesPerKey(t *testing.T) {
	inner := NewObject()
	inner.Set("a", Number(2))
	root := NewObject()
	root.Set("a", Number(1))
	root.Set("b", ObjectValue(inner))

	results, err := mustCompile(t, "{$k: $v, ...}").Scan(ObjectValue(root), Options{})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	// The root object yields one solution per key; the nested object
	// yields one more, at a deeper path.
	if len(results) < 2 {
		t.Fatalf("expected at least 2 scan hits, got %d", len(results))
	}
	paths := map[string]bool{}
	for _, r := range results {
		paths[r.Path.String()] = true
	}
	if len(paths) < 2 {
		t.Fatalf("expected hits at distinct paths, got %v", paths)
	}
}

func TestScalarBindingNeverWrapsSeq(t *testing.T) {
	pat := mustCompile(t, "[($x=(1 2))]")
	ok, err := pat.MatchExists(Array(Number(1), Number(2)), Options{})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if ok {
		t.Fatalf("expected a scalar binding over a two-element Seq to fail to match")
	}
}

func TestApplyEditsReplacesScalarSite(t *testing.T) {
	pat := mustCompile(t, "{x: $x}")
	obj := NewObject()
	obj.Set("x", Number(1))
	root := ObjectValue(obj)

	sol, ok, err := pat.MatchFirst(root, Options{})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if !ok {
		t.Fatalf("expected a match")
	}

	edits, failures := CollectEdits(sol, map[string]Value{"x": Number(99)})
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %+v", failures)
	}
	result, casFailures := ApplyEdits(root, edits, Options{})
	if len(casFailures) != 0 {
		t.Fatalf("unexpected CAS failures: %+v", casFailures)
	}

	got, ok := result.Object().Get("x")
	if !ok || got.Number() != 99 {
		t.Fatalf("expected x=99, got %+v (ok=%v)", got, ok)
	}
	// the input itself must be untouched (pure mode).
	orig, _ := root.Object().Get("x")
	if orig.Number() != 1 {
		t.Fatalf("pure ApplyEdits must not mutate the input, got x=%v", orig.Number())
	}
}

func TestApplyEditsMutateInPlace(t *testing.T) {
	pat := mustCompile(t, "{x: $x}")
	obj := NewObject()
	obj.Set("x", Number(1))
	root := ObjectValue(obj)

	sol, ok, err := pat.MatchFirst(root, Options{})
	if err != nil || !ok {
		t.Fatalf("match: ok=%v err=%v", ok, err)
	}
	edits, _ := CollectEdits(sol, map[string]Value{"x": Number(99)})
	_, casFailures := ApplyEdits(root, edits, Options{Mutate: true})
	if len(casFailures) != 0 {
		t.Fatalf("unexpected CAS failures: %+v", casFailures)
	}
	got, _ := obj.Get("x")
	if got.Number() != 99 {
		t.Fatalf("expected the original object to be mutated in place to 99, got %v", got.Number())
	}
}

func TestApplyEditsCASFailureSkipsByDefault(t *testing.T) {
	pat := mustCompile(t, "{x: $x}")
	obj := NewObject()
	obj.Set("x", Number(1))
	root := ObjectValue(obj)

	sol, ok, err := pat.MatchFirst(root, Options{})
	if err != nil || !ok {
		t.Fatalf("match: ok=%v err=%v", ok, err)
	}
	edits, _ := CollectEdits(sol, map[string]Value{"x": Number(99)})

	// Simulate the site moving between match and apply.
	staleObj := NewObject()
	staleObj.Set("x", Number(2))
	staleRoot := ObjectValue(staleObj)

	_, casFailures := ApplyEdits(staleRoot, edits, Options{})
	if len(casFailures) != 1 {
		t.Fatalf("expected exactly one CAS failure, got %d", len(casFailures))
	}
}

func TestMatchesAndExtractConvenience(t *testing.T) {
	obj := NewObject()
	obj.Set("age", Number(21))
	obj.Set("name", String("Alice"))
	root := ObjectValue(obj)

	ok, err := Matches("{age: $age where $age >= 18, name: $name}", root)
	if err != nil {
		t.Fatalf("matches: %v", err)
	}
	if !ok {
		t.Fatalf("expected Matches to succeed")
	}

	bindings, ok, err := Extract("{age: $age where $age >= 18, name: $name}", root)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !ok {
		t.Fatalf("expected Extract to find a solution")
	}
	if bindings["name"].Str() != "Alice" {
		t.Fatalf("expected name=Alice, got %+v", bindings["name"])
	}
}

func TestFluentWrapper(t *testing.T) {
	root := Array(Number(3), Number(3))
	f := Tendril("[$x, $x]")
	if err := f.Err(); err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	ok, err := f.Matches(root)
	if err != nil {
		t.Fatalf("matches: %v", err)
	}
	if !ok {
		t.Fatalf("expected fluent Matches to succeed")
	}
	sol, ok, err := f.First(root)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if !ok {
		t.Fatalf("expected a first solution")
	}
	if v, _ := sol.Binding("x"); v.Number() != 3 {
		t.Fatalf("expected $x=3, got %v", v.Number())
	}
}

func TestCompileCachesBySourceText(t *testing.T) {
	c := NewCompiler(2)
	p1, err := c.Compile("$x")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	p2, err := c.Compile("$x")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if p1 != p2 {
		t.Fatalf("expected the same *Pattern instance to be returned from cache")
	}
}

func TestCompileRejectsBadSyntax(t *testing.T) {
	_, err := Compile("{x:")
	if err == nil {
		t.Fatalf("expected a syntax error")
	}
	if _, ok := err.(*PatternSyntax); !ok {
		t.Fatalf("expected *PatternSyntax, got %T", err)
	}
}

func TestFromJSONToJSONRoundTrip(t *testing.T) {
	src := []byte(`{"b": 2, "a": 1, "list": [1, 2, 3]}`)
	v, err := FromJSON(src)
	if err != nil {
		t.Fatalf("fromJSON: %v", err)
	}
	if v.Object().Keys()[0] != "b" {
		t.Fatalf("expected key order to be preserved (b before a), got %v", v.Object().Keys())
	}
	out, err := ToJSON(v)
	if err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	v2, err := FromJSON(out)
	if err != nil {
		t.Fatalf("fromJSON(round trip): %v", err)
	}
	if !DeepEqual(v, v2) {
		t.Fatalf("round trip changed value: %+v vs %+v", v, v2)
	}
}
