package index

import "slices"

// node is one arena slot. A leaf carries one bucket per key; an internal
// node carries len(keys)+1 children, addressed by arena handle.
type node struct {
	leaf     bool
	keys     []any
	buckets  []Bucket // leaf only
	children []int    // internal only
}

// add stores value under key in leaf id, keeping keys strictly
// increasing. It reports whether key was new. There is no bound check;
// callers test isFull afterwards.
func (t *Tree) add(id int, key, value any) bool {
	n := &t.nodes[id]
	if len(n.keys) == 0 {
		n.keys = append(n.keys, key)
		n.buckets = append(n.buckets, Bucket{value})
		return true
	}

	for i, k := range n.keys {
		c := t.cmp(key, k)
		if c == 0 {
			n.buckets[i] = append(n.buckets[i], value)
			return false
		}
		if c < 0 {
			n.keys = slices.Insert(n.keys, i, key)
			n.buckets = slices.Insert(n.buckets, i, Bucket{value})
			return true
		}
	}
	n.keys = append(n.keys, key)
	n.buckets = append(n.buckets, Bucket{value})
	return true
}

// isFull reports whether node id holds exactly order keys.
func (t *Tree) isFull(id int) bool {
	return len(t.nodes[id].keys) == t.order
}

// overflows reports whether node id holds more keys than order allows.
func (t *Tree) overflows(id int) bool {
	return len(t.nodes[id].keys) > t.order
}

// split divides node id into two fresh halves and overwrites the slot in
// place with an internal node holding the pivot and both halves. Every
// handle that pointed at id, the root handle included, now reaches the
// new internal node without relinking.
//
// A full leaf splits at order/2 and the pivot is copied from the first
// key of the right half. An overflowing internal node splits around its
// middle key, which is lifted out of both halves.
func (t *Tree) split(id int) {
	n := t.nodes[id]

	var left, right node
	var pivot any
	if n.leaf {
		if !t.isFull(id) {
			panic("index: split of a leaf that is not full")
		}
		mid := t.order / 2
		left = node{leaf: true, keys: slices.Clone(n.keys[:mid]), buckets: slices.Clone(n.buckets[:mid])}
		right = node{leaf: true, keys: slices.Clone(n.keys[mid:]), buckets: slices.Clone(n.buckets[mid:])}
		pivot = right.keys[0]
	} else {
		if !t.overflows(id) {
			panic("index: split of an internal node that does not overflow")
		}
		mid := len(n.keys) / 2
		pivot = n.keys[mid]
		left = node{keys: slices.Clone(n.keys[:mid]), children: slices.Clone(n.children[:mid+1])}
		right = node{keys: slices.Clone(n.keys[mid+1:]), children: slices.Clone(n.children[mid+1:])}
	}

	l := t.alloc(left)
	r := t.alloc(right)
	t.nodes[id] = node{keys: []any{pivot}, children: []int{l, r}}
}

// merge folds a freshly split child into its parent: the child's slot at
// index is removed, its pivot is inserted before the first greater parent
// key and its two halves take the child's place. The child's arena slot
// is released afterwards.
func (t *Tree) merge(parent, child, index int) {
	c := t.nodes[child]
	if c.leaf || len(c.keys) != 1 || len(c.children) != 2 {
		panic("index: merge of a child that was not just split")
	}

	p := &t.nodes[parent]
	p.children = slices.Delete(p.children, index, index+1)
	pivot := c.keys[0]

	pos := len(p.keys)
	for i, k := range p.keys {
		if t.cmp(pivot, k) < 0 {
			pos = i
			break
		}
	}
	p.keys = slices.Insert(p.keys, pos, pivot)
	p.children = slices.Insert(p.children, pos, c.children...)

	t.release(child)
}

// alloc places n in a recycled slot if one is available, otherwise at
// the end of the arena.
func (t *Tree) alloc(n node) int {
	if k := len(t.free); k > 0 {
		id := t.free[k-1]
		t.free = t.free[:k-1]
		t.nodes[id] = n
		return id
	}
	t.nodes = append(t.nodes, n)
	return len(t.nodes) - 1
}

// release clears slot id and makes it available to alloc. The root slot
// is never released.
func (t *Tree) release(id int) {
	if id == rootID {
		panic("index: release of the root slot")
	}
	t.nodes[id] = node{}
	t.free = append(t.free, id)
}
