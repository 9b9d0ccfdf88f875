package value

import "strconv"

// PathElem is one step of a Path: either an array index or an object key.
type PathElem struct {
	Key      string
	Index    int
	IsIndex  bool
}

// Path is an ordered sequence of steps from the matched root to a site.
type Path []PathElem

func IndexElem(i int) PathElem  { return PathElem{Index: i, IsIndex: true} }
func KeyElem(k string) PathElem { return PathElem{Key: k} }

// Append returns a new path with elem appended, never mutating p's backing
// array (paths are shared across solution clones).
func (p Path) Append(elem PathElem) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = elem
	return out
}

func (p Path) String() string {
	s := ""
	for _, e := range p {
		if e.IsIndex {
			s += "[" + strconv.Itoa(e.Index) + "]"
		} else {
			s += "." + e.Key
		}
	}
	return s
}

// Get navigates root along p, returning the value found there and whether
// every step resolved.
func Get(root Value, p Path) (Value, bool) {
	cur := root
	for _, e := range p {
		if e.IsIndex {
			if cur.Kind() != KindArray || e.Index < 0 || e.Index >= len(cur.arr) {
				return Value{}, false
			}
			cur = cur.arr[e.Index]
		} else {
			if cur.Kind() != KindObject || cur.obj == nil {
				return Value{}, false
			}
			v, ok := cur.obj.Get(e.Key)
			if !ok {
				return Value{}, false
			}
			cur = v
		}
	}
	return cur, true
}
