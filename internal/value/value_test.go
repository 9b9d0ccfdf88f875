package value

import "testing"

func TestObjectPreservesInsertionOrder(t *testing.T) {
	o := NewObject()
	o.Set("z", Number(1))
	o.Set("a", Number(2))
	o.Set("m", Number(3))
	want := []string{"z", "a", "m"}
	got := o.Keys()
	if len(got) != len(want) {
		t.Fatalf("expected %d keys, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("key[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestObjectSetOnExistingKeyDoesNotReorder(t *testing.T) {
	o := NewObject()
	o.Set("a", Number(1))
	o.Set("b", Number(2))
	o.Set("a", Number(99))
	want := []string{"a", "b"}
	got := o.Keys()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
	v, _ := o.Get("a")
	if v.Number() != 99 {
		t.Fatalf("expected updated value 99, got %v", v.Number())
	}
}

func TestObjectDeletePreservesRemainingOrder(t *testing.T) {
	o := NewObject()
	o.Set("a", Number(1))
	o.Set("b", Number(2))
	o.Set("c", Number(3))
	o.Delete("b")
	want := []string{"a", "c"}
	got := o.Keys()
	if len(got) != 2 {
		t.Fatalf("expected 2 keys after delete, got %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
	if _, ok := o.Get("b"); ok {
		t.Fatalf("expected b to be gone")
	}
}

func TestObjectDeleteMissingKeyIsNoop(t *testing.T) {
	o := NewObject()
	o.Set("a", Number(1))
	o.Delete("ghost")
	if o.Len() != 1 {
		t.Fatalf("expected deleting a missing key to be a no-op, len=%d", o.Len())
	}
}

func TestCloneDeepCopiesArraysAndObjects(t *testing.T) {
	inner := NewObject()
	inner.Set("x", Number(1))
	orig := Array(ObjectValue(inner), Number(2))

	clone := Clone(orig)
	clonedInner := clone.Array()[0].Object()
	clonedInner.Set("x", Number(999))

	origInner, _ := orig.Array()[0].Object().Get("x")
	if origInner.Number() != 1 {
		t.Fatalf("expected clone mutation not to affect original, got %v", origInner.Number())
	}
}

func TestCloneOfScalarIsIdentityInValue(t *testing.T) {
	v := Clone(Number(5))
	if v.Number() != 5 {
		t.Fatalf("expected clone of scalar to preserve value, got %v", v.Number())
	}
}

func TestSameValueZeroHandlesNaNAndSignedZero(t *testing.T) {
	nan := 0.0
	nan = nan / nan // NaN via 0/0 without importing math
	if !SameValueZero(nan, nan) {
		t.Fatalf("expected NaN to equal NaN under SameValueZero")
	}
	if !SameValueZero(0.0, -0.0) {
		t.Fatalf("expected +0 to equal -0 under SameValueZero")
	}
	if SameValueZero(1, 2) {
		t.Fatalf("expected 1 != 2")
	}
}

func TestDeepEqualAcrossKinds(t *testing.T) {
	if DeepEqual(Number(1), String("1")) {
		t.Fatalf("expected a number and a string not to be deep-equal")
	}
	if !DeepEqual(Null(), Null()) {
		t.Fatalf("expected null to equal null")
	}
	a := Array(Number(1), Number(2))
	b := Array(Number(1), Number(2))
	c := Array(Number(1), Number(3))
	if !DeepEqual(a, b) {
		t.Fatalf("expected equal arrays to be deep-equal")
	}
	if DeepEqual(a, c) {
		t.Fatalf("expected differing arrays not to be deep-equal")
	}
}

func TestDeepEqualObjectsIgnoresKeyOrder(t *testing.T) {
	o1 := NewObject()
	o1.Set("a", Number(1))
	o1.Set("b", Number(2))
	o2 := NewObject()
	o2.Set("b", Number(2))
	o2.Set("a", Number(1))
	if !DeepEqual(ObjectValue(o1), ObjectValue(o2)) {
		t.Fatalf("expected objects with the same keys in different order to be deep-equal")
	}
}

func TestGetNavigatesNestedPath(t *testing.T) {
	inner := NewObject()
	inner.Set("y", Number(42))
	outer := NewObject()
	outer.Set("x", Array(ObjectValue(inner)))
	root := ObjectValue(outer)

	got, ok := Get(root, Path{KeyElem("x"), IndexElem(0), KeyElem("y")})
	if !ok || got.Number() != 42 {
		t.Fatalf("expected to resolve nested path to 42, got %v (ok=%v)", got, ok)
	}
}

func TestGetReportsFalseOnMissingPath(t *testing.T) {
	root := ObjectValue(NewObject())
	if _, ok := Get(root, Path{KeyElem("missing")}); ok {
		t.Fatalf("expected a missing key to report not-ok")
	}
	if _, ok := Get(Array(Number(1)), Path{IndexElem(5)}); ok {
		t.Fatalf("expected an out-of-range index to report not-ok")
	}
}

func TestPathStringFormatsIndicesAndKeys(t *testing.T) {
	p := Path{KeyElem("users"), IndexElem(0), KeyElem("name")}
	want := ".users[0].name"
	if p.String() != want {
		t.Fatalf("expected %q, got %q", want, p.String())
	}
}
