package index

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidSnapshot is returned when a snapshot does not describe a
// well-formed tree.
var ErrInvalidSnapshot = errors.New("invalid index snapshot")

// Snapshot is a self-describing copy of a tree. Nodes are listed in
// pre-order, so the root is always at position 0; internal nodes name
// their children by position in Nodes.
type Snapshot struct {
	Order int
	Nodes []NodeSnapshot
}

// NodeSnapshot describes one node of a Snapshot.
type NodeSnapshot struct {
	Leaf     bool
	Keys     []any
	Buckets  []Bucket // leaf only; a nil bucket is a tombstone
	Children []int    // internal only
}

// Snapshot returns a copy of the reachable tree. Recycled arena slots are
// not included.
func (t *Tree) Snapshot() Snapshot {
	s := Snapshot{Order: t.order}
	t.snapshot(rootID, &s)
	return s
}

func (t *Tree) snapshot(id int, s *Snapshot) int {
	n := &t.nodes[id]
	pos := len(s.Nodes)
	s.Nodes = append(s.Nodes, NodeSnapshot{
		Leaf: n.leaf,
		Keys: slices.Clone(n.keys),
	})

	if n.leaf {
		buckets := make([]Bucket, len(n.buckets))
		for i, b := range n.buckets {
			buckets[i] = slices.Clone(b)
		}
		s.Nodes[pos].Buckets = buckets
		return pos
	}

	children := make([]int, len(n.children))
	for i, c := range n.children {
		children[i] = t.snapshot(c, s)
	}
	s.Nodes[pos].Children = children
	return pos
}

// FromSnapshot rebuilds a tree from s, ordering keys with cmp. The result
// is verified before it is returned.
func FromSnapshot(s Snapshot, cmp Compare) (*Tree, error) {
	if s.Order < 2 {
		return nil, fmt.Errorf("%w: order %d", ErrInvalidSnapshot, s.Order)
	}
	if len(s.Nodes) == 0 {
		return nil, fmt.Errorf("%w: no root node", ErrInvalidSnapshot)
	}

	t := &Tree{
		order: s.Order,
		cmp:   cmp,
		nodes: make([]node, len(s.Nodes)),
	}
	for i, ns := range s.Nodes {
		n := node{leaf: ns.Leaf, keys: slices.Clone(ns.Keys)}
		if ns.Leaf {
			if len(ns.Children) != 0 {
				return nil, fmt.Errorf("%w: leaf %d has children", ErrInvalidSnapshot, i)
			}
			if len(ns.Buckets) != len(ns.Keys) {
				return nil, fmt.Errorf("%w: leaf %d has %d keys but %d buckets", ErrInvalidSnapshot, i, len(ns.Keys), len(ns.Buckets))
			}
			n.buckets = make([]Bucket, len(ns.Buckets))
			for j, b := range ns.Buckets {
				n.buckets[j] = slices.Clone(b)
			}
			t.size += len(ns.Keys)
		} else {
			if len(ns.Buckets) != 0 {
				return nil, fmt.Errorf("%w: internal node %d has buckets", ErrInvalidSnapshot, i)
			}
			for _, c := range ns.Children {
				if c <= rootID || c >= len(s.Nodes) {
					return nil, fmt.Errorf("%w: node %d names child %d", ErrInvalidSnapshot, i, c)
				}
			}
			n.children = slices.Clone(ns.Children)
		}
		t.nodes[i] = n
	}

	if err := t.Verify(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	// Verify does not notice slots nothing points at.
	if reachable := t.reachable(); reachable != len(t.nodes) {
		return nil, fmt.Errorf("%w: %d of %d nodes unreachable", ErrInvalidSnapshot, len(t.nodes)-reachable, len(t.nodes))
	}
	return t, nil
}

// reachable counts the nodes reachable from the root.
func (t *Tree) reachable() int {
	count := 0
	t.Walk(func(int, []any) { count++ })
	return count
}
