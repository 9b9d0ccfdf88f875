package past

import "testing"

func mustParse(t *testing.T, src string) Node {
	t.Helper()
	n, err := Parse(src)
	if err != nil {
		t.Fatalf("parse(%q): %v", src, err)
	}
	return n
}

func TestParseLiterals(t *testing.T) {
	n := mustParse(t, "42")
	lit, ok := n.(Lit)
	if !ok || lit.Value.Number() != 42 {
		t.Fatalf("expected Lit(42), got %+v", n)
	}

	n = mustParse(t, `"hi"`)
	lit, ok = n.(Lit)
	if !ok || lit.Value.Str() != "hi" {
		t.Fatalf("expected Lit(hi), got %+v", n)
	}

	n = mustParse(t, "true")
	if lit, ok := n.(Lit); !ok || !lit.Value.Bool() {
		t.Fatalf("expected Lit(true), got %+v", n)
	}

	if _, ok := mustParse(t, "null").(NullPat); !ok {
		t.Fatalf("expected NullPat")
	}
}

func TestParseWildcards(t *testing.T) {
	if _, ok := mustParse(t, "_").(Any); !ok {
		t.Fatalf("expected Any")
	}
	ta, ok := mustParse(t, "_string").(TypedAny)
	if !ok || ta.Kind != AnyString {
		t.Fatalf("expected TypedAny(AnyString), got %+v", ta)
	}
	ta, ok = mustParse(t, "_number").(TypedAny)
	if !ok || ta.Kind != AnyNumber {
		t.Fatalf("expected TypedAny(AnyNumber)")
	}
}

func TestParseBindingPlain(t *testing.T) {
	sb, ok := mustParse(t, "$x").(SBind)
	if !ok || sb.Name != "x" {
		t.Fatalf("expected SBind(x), got %+v", mustParse(t, "$x"))
	}
	if _, ok := sb.Pat.(Any); !ok {
		t.Fatalf("expected default SBind pattern to be Any, got %+v", sb.Pat)
	}
}

func TestParseBindingWithSubPattern(t *testing.T) {
	sb, ok := mustParse(t, "$x=42").(SBind)
	if !ok {
		t.Fatalf("expected SBind, got %+v", mustParse(t, "$x=42"))
	}
	lit, ok := sb.Pat.(Lit)
	if !ok || lit.Value.Number() != 42 {
		t.Fatalf("expected sub-pattern Lit(42), got %+v", sb.Pat)
	}
}

func TestParseBindingWithGuard(t *testing.T) {
	sb, ok := mustParse(t, "$age where $age >= 18").(SBind)
	if !ok {
		t.Fatalf("expected SBind, got %+v", mustParse(t, "$age where $age >= 18"))
	}
	if sb.Guard != "$age >= 18" {
		t.Fatalf("expected guard %q, got %q", "$age >= 18", sb.Guard)
	}
}

func TestParseGuardOnNonBindingWrapsInGuarded(t *testing.T) {
	n := mustParse(t, "_ where true")
	g, ok := n.(Guarded)
	if !ok {
		t.Fatalf("expected Guarded, got %+v", n)
	}
	if _, ok := g.Pat.(Any); !ok {
		t.Fatalf("expected wrapped Any, got %+v", g.Pat)
	}
}

func TestParseGroupBind(t *testing.T) {
	gb, ok := mustParse(t, "$tail...").(GroupBind)
	if !ok {
		t.Fatalf("expected GroupBind, got %+v", mustParse(t, "$tail..."))
	}
	if gb.Name != "tail" {
		t.Fatalf("expected name tail, got %q", gb.Name)
	}
}

func TestParseQuantifierSuffixes(t *testing.T) {
	cases := []struct {
		src      string
		min, max int
		mode     QuantMode
	}{
		{"_?", 0, 1, Greedy},
		{"_??", 0, 1, Lazy},
		{"_?+", 0, 1, Possessive},
		{"_+", 1, Unbounded, Greedy},
		{"_+?", 1, Unbounded, Lazy},
		{"_++", 1, Unbounded, Possessive},
		{"_*", 0, Unbounded, Greedy},
		{"_*?", 0, Unbounded, Lazy},
		{"_*+", 0, Unbounded, Possessive},
	}
	for _, c := range cases {
		q, ok := mustParse(t, c.src).(Quant)
		if !ok {
			t.Fatalf("%q: expected Quant, got %+v", c.src, mustParse(t, c.src))
		}
		if q.Min != c.min || q.Max != c.max || q.Mode != c.mode {
			t.Fatalf("%q: expected {%d,%d,%v}, got {%d,%d,%v}", c.src, c.min, c.max, c.mode, q.Min, q.Max, q.Mode)
		}
	}
}

func TestParseExplicitCardinality(t *testing.T) {
	q, ok := mustParse(t, "_#{2,4}").(Quant)
	if !ok || q.Min != 2 || q.Max != 4 {
		t.Fatalf("expected Quant{2,4}, got %+v", mustParse(t, "_#{2,4}"))
	}
	q, ok = mustParse(t, "_#{3}").(Quant)
	if !ok || q.Min != 3 || q.Max != 3 {
		t.Fatalf("expected Quant{3,3}, got %+v", mustParse(t, "_#{3}"))
	}
	q, ok = mustParse(t, "_#{2,}").(Quant)
	if !ok || q.Min != 2 || q.Max != Unbounded {
		t.Fatalf("expected Quant{2,Unbounded}, got %+v", mustParse(t, "_#{2,}"))
	}
}

func TestParseAlternation(t *testing.T) {
	alt, ok := mustParse(t, "1 | 2 | 3").(Alt)
	if !ok {
		t.Fatalf("expected Alt, got %+v", mustParse(t, "1 | 2 | 3"))
	}
	if len(alt.Branches) != 3 {
		t.Fatalf("expected 3 branches, got %d", len(alt.Branches))
	}
	if !alt.Prioritized {
		t.Fatalf("expected Prioritized alternation")
	}
}

func TestParseSequenceByAdjacency(t *testing.T) {
	seq, ok := mustParse(t, "1 2 3").(Seq)
	if !ok {
		t.Fatalf("expected Seq, got %+v", mustParse(t, "1 2 3"))
	}
	if len(seq.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(seq.Items))
	}
}

func TestParseParenGrouping(t *testing.T) {
	par, ok := mustParse(t, "(1 2)").(Paren)
	if !ok {
		t.Fatalf("expected Paren, got %+v", mustParse(t, "(1 2)"))
	}
	if _, ok := par.Inner.(Seq); !ok {
		t.Fatalf("expected inner Seq, got %+v", par.Inner)
	}
}

func TestParseLookahead(t *testing.T) {
	lk, ok := mustParse(t, "(? 1)").(Look)
	if !ok || lk.Neg {
		t.Fatalf("expected positive Look, got %+v", mustParse(t, "(? 1)"))
	}
	lk, ok = mustParse(t, "(! 1)").(Look)
	if !ok || !lk.Neg {
		t.Fatalf("expected negative Look, got %+v", mustParse(t, "(! 1)"))
	}
}

func TestParseArrayWithSpreadAndGroupBind(t *testing.T) {
	arr, ok := mustParse(t, "[_, _, $tail...]").(Arr)
	if !ok {
		t.Fatalf("expected Arr, got %+v", mustParse(t, "[_, _, $tail...]"))
	}
	if len(arr.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(arr.Items))
	}
	if _, ok := arr.Items[2].(GroupBind); !ok {
		t.Fatalf("expected last item to be GroupBind, got %+v", arr.Items[2])
	}
}

func TestParseLabeledArray(t *testing.T) {
	arr, ok := mustParse(t, "rows->[1, 2]").(Arr)
	if !ok || arr.Label != "rows" {
		t.Fatalf("expected labeled Arr(rows), got %+v", mustParse(t, "rows->[1, 2]"))
	}
}

func TestParseObjectBasic(t *testing.T) {
	obj, ok := mustParse(t, "{x: 1, y: 2}").(Obj)
	if !ok {
		t.Fatalf("expected Obj, got %+v", mustParse(t, "{x: 1, y: 2}"))
	}
	if len(obj.Terms) != 2 {
		t.Fatalf("expected 2 terms, got %d", len(obj.Terms))
	}
	if obj.Spread != nil {
		t.Fatalf("expected a closed object (nil Spread), got %+v", obj.Spread)
	}
}

func TestParseObjectRemainderMarkers(t *testing.T) {
	obj, ok := mustParse(t, "{email: $e, ...}").(Obj)
	if !ok {
		t.Fatalf("expected Obj, got %+v", mustParse(t, "{email: $e, ...}"))
	}
	if obj.Spread == nil || !obj.Spread.Bare {
		t.Fatalf("expected an open ... remainder, got %+v", obj.Spread)
	}
	if obj.Spread.Min != 0 || obj.Spread.Max != Unbounded {
		t.Fatalf("expected unconstrained residual bounds, got %d..%d", obj.Spread.Min, obj.Spread.Max)
	}

	obj = mustParse(t, "{email: $e, $}").(Obj)
	if obj.Spread == nil || !obj.Spread.Closed {
		t.Fatalf("expected a closed-remainder $ marker, got %+v", obj.Spread)
	}

	obj = mustParse(t, "{email: $e, %}").(Obj)
	if obj.Spread == nil || !obj.Spread.RequireNonEmpty {
		t.Fatalf("expected a non-empty-remainder %% marker, got %+v", obj.Spread)
	}

	obj = mustParse(t, "{email: $e, ...#{1,3}}").(Obj)
	if obj.Spread == nil || !obj.Spread.Bare || obj.Spread.Min != 1 || obj.Spread.Max != 3 {
		t.Fatalf("expected residual bounds 1..3, got %+v", obj.Spread)
	}
}

func TestParseObjectVerticalKeyPath(t *testing.T) {
	obj, ok := mustParse(t, "{user.email: $e}").(Obj)
	if !ok {
		t.Fatalf("expected Obj, got %+v", mustParse(t, "{user.email: $e}"))
	}
	ot, ok := obj.Terms[0].(OTerm)
	if !ok {
		t.Fatalf("expected OTerm, got %+v", obj.Terms[0])
	}
	if len(ot.Breadcrumbs) != 1 || ot.Breadcrumbs[0].Kind != BDot || ot.Breadcrumbs[0].Key != "email" {
		t.Fatalf("expected one dot breadcrumb to email, got %+v", ot.Breadcrumbs)
	}
}

func TestParseLabeledObject(t *testing.T) {
	obj, ok := mustParse(t, "user->{name: $n}").(Obj)
	if !ok || obj.Label != "user" {
		t.Fatalf("expected labeled Obj(user), got %+v", mustParse(t, "user->{name: $n}"))
	}
}

func TestParseReplace(t *testing.T) {
	rep, ok := mustParse(t, ">> $x <<").(Replace)
	if !ok {
		t.Fatalf("expected Replace, got %+v", mustParse(t, ">> $x <<"))
	}
	if _, ok := rep.Pat.(SBind); !ok {
		t.Fatalf("expected wrapped SBind, got %+v", rep.Pat)
	}
}

func TestParseFlowArrayBucket(t *testing.T) {
	flow, ok := mustParse(t, "@bucket(1)").(Flow)
	if !ok || !flow.ArrayKind || flow.Bucket != "bucket" {
		t.Fatalf("expected array Flow(bucket), got %+v", mustParse(t, "@bucket(1)"))
	}
}

func TestParseFlowObjectBucket(t *testing.T) {
	flow, ok := mustParse(t, "%bucket(1)").(Flow)
	if !ok || flow.ArrayKind || flow.Bucket != "bucket" {
		t.Fatalf("expected object Flow(bucket), got %+v", mustParse(t, "%bucket(1)"))
	}
}

func TestParseRegexLiteral(t *testing.T) {
	sp, ok := mustParse(t, "/ab+c/").(StringPattern)
	if !ok || sp.Regexp == nil || sp.Regexp.Source != "ab+c" {
		t.Fatalf("expected regex pattern ab+c, got %+v", mustParse(t, "/ab+c/"))
	}
}

func TestParseCaseInsensitiveLiteral(t *testing.T) {
	sp, ok := mustParse(t, `"Hello"/i`).(StringPattern)
	if !ok || !sp.CaseInsensitive || sp.Lowered != "hello" {
		t.Fatalf("expected case-insensitive hello, got %+v", mustParse(t, `"Hello"/i`))
	}
}

func TestParseRejectsTrailingGarbage(t *testing.T) {
	if _, err := Parse("1 2 ]"); err == nil {
		t.Fatalf("expected a syntax error for trailing ]")
	}
}

func TestParseRejectsUnterminatedObject(t *testing.T) {
	if _, err := Parse("{x: 1"); err == nil {
		t.Fatalf("expected a syntax error for unterminated object")
	}
}

func TestValidateRejectsMultipleReplaceTargets(t *testing.T) {
	n := mustParse(t, "[>> $x <<, >> $y <<]")
	if err := Validate(n); err == nil {
		t.Fatalf("expected an error for more than one replacement target")
	}
}

func TestValidateAcceptsSingleReplaceTarget(t *testing.T) {
	n := mustParse(t, "[>> $x <<, $y]")
	if err := Validate(n); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidateRejectsBadCardinality(t *testing.T) {
	n := mustParse(t, "_#{4,2}")
	if err := Validate(n); err == nil {
		t.Fatalf("expected an error for min > max cardinality")
	}
}

func TestHasBindingsDetectsSBind(t *testing.T) {
	if !HasBindings(mustParse(t, "[$x, 2]")) {
		t.Fatalf("expected HasBindings to find $x")
	}
	if HasBindings(mustParse(t, "[1, 2]")) {
		t.Fatalf("expected HasBindings to find nothing in a literal-only pattern")
	}
}

func TestHasBindingsDetectsGroupBindTerm(t *testing.T) {
	if !HasBindings(mustParse(t, "{$rest}")) {
		t.Fatalf("expected HasBindings to find the bare object group-bind term")
	}
}
