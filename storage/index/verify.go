package index

import "fmt"

// Verify checks the structural invariants of the whole tree: every node
// is reachable exactly once, keys are strictly increasing and fall inside
// the range their parent assigns, no internal node holds more than order
// keys, no leaf holds order keys (a leaf splits as soon as it fills),
// every leaf sits at the same depth, and the key count matches Len.
func (t *Tree) Verify() error {
	v := &verifier{t: t, seen: make(map[int]bool), leafDepth: -1}
	if err := v.node(rootID, 0, nil, nil); err != nil {
		return err
	}
	if v.keys != t.size {
		return fmt.Errorf("tree reports %d keys, leaves hold %d", t.size, v.keys)
	}
	return nil
}

type verifier struct {
	t         *Tree
	seen      map[int]bool
	leafDepth int
	keys      int
}

// node checks id and its subtree. Keys must satisfy lo <= key < hi; a nil
// bound is open.
func (v *verifier) node(id, depth int, lo, hi any) error {
	t := v.t
	if id < 0 || id >= len(t.nodes) {
		return fmt.Errorf("node handle %d out of range", id)
	}
	if v.seen[id] {
		return fmt.Errorf("node %d reachable more than once", id)
	}
	v.seen[id] = true

	n := &t.nodes[id]
	if len(n.keys) > t.order {
		return fmt.Errorf("node %d holds %d keys, order is %d", id, len(n.keys), t.order)
	}
	for i, k := range n.keys {
		if i > 0 && t.cmp(n.keys[i-1], k) >= 0 {
			return fmt.Errorf("node %d: keys not strictly increasing at position %d", id, i)
		}
		if lo != nil && t.cmp(k, lo) < 0 {
			return fmt.Errorf("node %d: key %v below lower bound %v", id, k, lo)
		}
		if hi != nil && t.cmp(k, hi) >= 0 {
			return fmt.Errorf("node %d: key %v not below upper bound %v", id, k, hi)
		}
	}

	if n.leaf {
		if len(n.children) != 0 {
			return fmt.Errorf("leaf %d has children", id)
		}
		if len(n.buckets) != len(n.keys) {
			return fmt.Errorf("leaf %d has %d keys but %d buckets", id, len(n.keys), len(n.buckets))
		}
		if len(n.keys) >= t.order {
			return fmt.Errorf("leaf %d holds %d keys, a leaf splits at order %d", id, len(n.keys), t.order)
		}
		if id != rootID && len(n.keys) == 0 {
			return fmt.Errorf("leaf %d is empty", id)
		}
		if v.leafDepth < 0 {
			v.leafDepth = depth
		} else if v.leafDepth != depth {
			return fmt.Errorf("leaf %d at depth %d, expected %d", id, depth, v.leafDepth)
		}
		v.keys += len(n.keys)
		return nil
	}

	if len(n.buckets) != 0 {
		return fmt.Errorf("internal node %d has buckets", id)
	}
	if len(n.children) != len(n.keys)+1 {
		return fmt.Errorf("internal node %d has %d keys but %d children", id, len(n.keys), len(n.children))
	}
	for i, c := range n.children {
		clo, chi := lo, hi
		if i > 0 {
			clo = n.keys[i-1]
		}
		if i < len(n.keys) {
			chi = n.keys[i]
		}
		if err := v.node(c, depth+1, clo, chi); err != nil {
			return err
		}
	}
	return nil
}
