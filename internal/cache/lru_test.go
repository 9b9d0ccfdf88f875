package cache

import "testing"

func TestLRUGetMissOnEmpty(t *testing.T) {
	l := New(2)
	if _, ok := l.Get("a"); ok {
		t.Fatalf("expected a miss on an empty cache")
	}
}

func TestLRUPutThenGet(t *testing.T) {
	l := New(2)
	l.Put("a", 1)
	v, ok := l.Get("a")
	if !ok || v.(int) != 1 {
		t.Fatalf("expected a=1, got %v (ok=%v)", v, ok)
	}
}

func TestLRUPutUpdatesExistingKey(t *testing.T) {
	l := New(2)
	l.Put("a", 1)
	l.Put("a", 2)
	if l.Len() != 1 {
		t.Fatalf("expected updating a key not to grow the cache, len=%d", l.Len())
	}
	v, _ := l.Get("a")
	if v.(int) != 2 {
		t.Fatalf("expected updated value 2, got %v", v)
	}
}

func TestLRUEvictsLeastRecentlyUsedOnOverflow(t *testing.T) {
	l := New(2)
	l.Put("a", 1)
	l.Put("b", 2)
	l.Put("c", 3) // capacity 2: evicts "a", the least recently used
	if _, ok := l.Get("a"); ok {
		t.Fatalf("expected a to have been evicted")
	}
	if _, ok := l.Get("b"); !ok {
		t.Fatalf("expected b to survive eviction")
	}
	if _, ok := l.Get("c"); !ok {
		t.Fatalf("expected c to survive eviction")
	}
	if l.Len() != 2 {
		t.Fatalf("expected len 2 after eviction, got %d", l.Len())
	}
}

func TestLRUGetPromotesToMostRecentlyUsed(t *testing.T) {
	l := New(2)
	l.Put("a", 1)
	l.Put("b", 2)
	l.Get("a")       // promotes a, so b becomes the least recently used
	l.Put("c", 3)     // evicts b, not a
	if _, ok := l.Get("b"); ok {
		t.Fatalf("expected b to be evicted after a was promoted by Get")
	}
	if _, ok := l.Get("a"); !ok {
		t.Fatalf("expected a to survive since it was promoted")
	}
	if _, ok := l.Get("c"); !ok {
		t.Fatalf("expected c to be present")
	}
}

func TestLRUZeroOrNegativeCapacityTreatedAsOne(t *testing.T) {
	l := New(0)
	l.Put("a", 1)
	l.Put("b", 2)
	if l.Len() != 1 {
		t.Fatalf("expected capacity-0 cache to behave as capacity 1, len=%d", l.Len())
	}
	if _, ok := l.Get("a"); ok {
		t.Fatalf("expected a to have been evicted immediately")
	}
	if _, ok := l.Get("b"); !ok {
		t.Fatalf("expected b to be the sole surviving entry")
	}
}

func TestLRULenTracksInsertionsAndEvictions(t *testing.T) {
	l := New(3)
	if l.Len() != 0 {
		t.Fatalf("expected empty cache to have len 0")
	}
	l.Put("a", 1)
	l.Put("b", 2)
	if l.Len() != 2 {
		t.Fatalf("expected len 2, got %d", l.Len())
	}
	l.Put("c", 3)
	l.Put("d", 4) // evicts a, over capacity 3
	if l.Len() != 3 {
		t.Fatalf("expected len capped at capacity 3, got %d", l.Len())
	}
}
