package index

import (
	"fmt"
	"io"
	"slices"
)

// DefaultOrder is the order used when a table does not configure one.
const DefaultOrder = 8

// rootID is the arena handle of the root. It never changes: a root split
// rewrites slot 0 in place.
const rootID = 0

// Tree is an in-memory B+ tree mapping keys to buckets of values.
//
// Nodes live in an arena addressed by integer handles. A node that fills
// up is split in place, so the handle that reached it keeps reaching the
// same logical position in the tree; the split is then folded into the
// parent, and the check repeats upward until a node has room or the root
// has been split.
//
// A Tree is not safe for concurrent use.
type Tree struct {
	order int
	cmp   Compare
	nodes []node
	free  []int
	size  int // distinct keys, tombstones included
}

// New creates an empty tree whose nodes split once they hold order keys.
// It panics if order is less than 2.
func New(order int, cmp Compare) *Tree {
	if order < 2 {
		panic(fmt.Sprintf("index: order must be at least 2, got %d", order))
	}
	return &Tree{
		order: order,
		cmp:   cmp,
		nodes: []node{{leaf: true}},
	}
}

// Order returns the maximum number of keys a node holds before it splits.
func (t *Tree) Order() int {
	return t.order
}

// Len returns the number of distinct keys in the tree. Deleted keys are
// counted: deletion only replaces their bucket with a tombstone.
func (t *Tree) Len() int {
	return t.size
}

// Height returns the number of levels, 1 for a tree that is a single leaf.
func (t *Tree) Height() int {
	h := 1
	for id := rootID; !t.nodes[id].leaf; id = t.nodes[id].children[0] {
		h++
	}
	return h
}

// step records one level of a descent: the internal node visited and the
// child position taken from it.
type step struct {
	node  int
	index int
}

// find returns the child of internal node id that covers key, and its
// position: the child left of the first key strictly greater than key,
// or the last child. Calling find on a leaf is a broken invariant.
func (t *Tree) find(id int, key any) (child, index int) {
	n := &t.nodes[id]
	if n.leaf {
		panic("index: find called on a leaf node")
	}
	for i, k := range n.keys {
		if t.cmp(key, k) < 0 {
			return n.children[i], i
		}
	}
	last := len(n.children) - 1
	return n.children[last], last
}

// descend walks from the root to the leaf covering key and returns it
// together with the path taken.
func (t *Tree) descend(key any) (leaf int, path []step) {
	id := rootID
	for !t.nodes[id].leaf {
		child, i := t.find(id, key)
		path = append(path, step{node: id, index: i})
		id = child
	}
	return id, path
}

// Insert adds value to the bucket stored under key, creating the key if
// needed. A leaf that becomes full is split and folded into its parent;
// any ancestor pushed past order keys by the fold is split the same way,
// up to the root.
func (t *Tree) Insert(key, value any) {
	leaf, path := t.descend(key)
	if t.add(leaf, key, value) {
		t.size++
	}

	if t.isFull(leaf) {
		t.split(leaf)
		child := leaf
		for i := len(path) - 1; i >= 0; i-- {
			parent := path[i]
			t.merge(parent.node, child, parent.index)
			if !t.overflows(parent.node) {
				break
			}
			t.split(parent.node)
			child = parent.node
		}
	}

	for _, s := range path {
		t.assertBounded(s.node)
	}
	t.assertBounded(leaf)
}

// Search returns a copy of the bucket stored under key. The bucket is nil
// when the key was deleted. ok is false when the key was never inserted.
func (t *Tree) Search(key any) (b Bucket, ok bool) {
	leaf, _ := t.descend(key)
	n := &t.nodes[leaf]
	for i, k := range n.keys {
		if t.cmp(key, k) == 0 {
			return slices.Clone(n.buckets[i]), true
		}
	}
	return nil, false
}

// Update replaces the whole bucket stored under key with b. It returns
// false, changing nothing, when key is not in the tree.
func (t *Tree) Update(key any, b Bucket) bool {
	leaf, _ := t.descend(key)
	n := &t.nodes[leaf]
	for i, k := range n.keys {
		if t.cmp(key, k) == 0 {
			n.buckets[i] = slices.Clone(b)
			return true
		}
	}
	return false
}

// Delete replaces the bucket under key with a tombstone. The key stays in
// the tree. Deleting a missing key is a no-op.
func (t *Tree) Delete(key any) {
	t.Update(key, nil)
}

// Scan calls fn for every live key in [lo, hi] in ascending order, until
// fn returns false. A nil bound is open. Tombstoned keys are skipped.
func (t *Tree) Scan(lo, hi any, fn func(key any, b Bucket) bool) {
	t.scan(rootID, lo, hi, fn)
}

func (t *Tree) scan(id int, lo, hi any, fn func(key any, b Bucket) bool) bool {
	n := &t.nodes[id]
	if n.leaf {
		for i, k := range n.keys {
			if lo != nil && t.cmp(k, lo) < 0 {
				continue
			}
			if hi != nil && t.cmp(k, hi) > 0 {
				return false
			}
			if n.buckets[i].IsTombstone() {
				continue
			}
			if !fn(k, slices.Clone(n.buckets[i])) {
				return false
			}
		}
		return true
	}

	// Child i holds keys in [keys[i-1], keys[i]).
	for i, c := range n.children {
		if i < len(n.keys) && lo != nil && t.cmp(n.keys[i], lo) <= 0 {
			continue
		}
		if i > 0 && hi != nil && t.cmp(n.keys[i-1], hi) > 0 {
			return false
		}
		if !t.scan(c, lo, hi, fn) {
			return false
		}
	}
	return true
}

// Walk visits every node in pre-order and passes its depth (0 for the
// root) and its keys.
func (t *Tree) Walk(fn func(depth int, keys []any)) {
	t.walk(rootID, 0, fn)
}

func (t *Tree) walk(id, depth int, fn func(depth int, keys []any)) {
	n := &t.nodes[id]
	fn(depth, slices.Clone(n.keys))
	for _, c := range n.children {
		t.walk(c, depth+1, fn)
	}
}

// Print writes one "depth [keys]" line per node in pre-order.
func (t *Tree) Print(w io.Writer) error {
	var err error
	t.Walk(func(depth int, keys []any) {
		if err == nil {
			_, err = fmt.Fprintf(w, "%d %v\n", depth, keys)
		}
	})
	return err
}

// assertBounded panics if node id holds more than order keys.
func (t *Tree) assertBounded(id int) {
	if n := len(t.nodes[id].keys); n > t.order {
		panic(fmt.Sprintf("index: node %d holds %d keys, order is %d", id, n, t.order))
	}
}
