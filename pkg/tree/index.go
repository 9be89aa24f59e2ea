package tree

import (
	"strconv"

	"github.com/yumyai/treesplit/pkg/errs"
)

// An Index is a read-only pre-order arena over a tree.
//
// Nodes are numbered in pre-order (children left to right), so the
// descendants of node i are exactly the nodes i+1 .. i+Size(i)-1 and the
// leaves under i occupy the contiguous leaf positions
// First(i) .. First(i)+Count(i)-1.
type Index struct {
	tree    *Tree
	nodes   []*Node
	parent  []int
	depth   []int
	size    []int // nodes in subtree
	first   []int // leaf position of the leftmost leaf
	count   []int // leaves in subtree
	leaves  []int // node index of each leaf position
	byLabel map[string]int
}

// NewIndex builds the arena. It fails if two leaves share a label.
func NewIndex(t *Tree) (*Index, error) {
	idx := &Index{tree: t, byLabel: make(map[string]int)}
	if t == nil || t.Root == nil {
		return idx, nil
	}

	// Phase 1: pre-order numbering, parent and depth.
	type frame struct {
		n      *Node
		parent int
		depth  int
	}
	stack := []frame{{t.Root, -1, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		i := len(idx.nodes)
		idx.nodes = append(idx.nodes, f.n)
		idx.parent = append(idx.parent, f.parent)
		idx.depth = append(idx.depth, f.depth)
		idx.size = append(idx.size, 1)
		if f.n.IsLeaf() {
			if _, dup := idx.byLabel[f.n.Label]; dup {
				return nil, &errs.ParseError{Offset: -1, Msg: "duplicate leaf label " + strconv.Quote(f.n.Label)}
			}
			idx.byLabel[f.n.Label] = len(idx.leaves)
			idx.first = append(idx.first, len(idx.leaves))
			idx.count = append(idx.count, 1)
			idx.leaves = append(idx.leaves, i)
			continue
		}
		idx.first = append(idx.first, -1)
		idx.count = append(idx.count, 0)
		for c := len(f.n.Children) - 1; c >= 0; c-- {
			stack = append(stack, frame{f.n.Children[c], i, f.depth + 1})
		}
	}

	// Phase 2: reverse pre-order visits every child before its parent.
	for i := len(idx.nodes) - 1; i > 0; i-- {
		p := idx.parent[i]
		idx.size[p] += idx.size[i]
		idx.count[p] += idx.count[i]
		if p == i-1 {
			// first child
			idx.first[p] = idx.first[i]
		}
	}
	return idx, nil
}

// Tree returns the indexed tree.
func (idx *Index) Tree() *Tree { return idx.tree }

// Len returns the number of nodes.
func (idx *Index) Len() int { return len(idx.nodes) }

// LeafCount returns the number of leaves.
func (idx *Index) LeafCount() int { return len(idx.leaves) }

// Node returns node i.
func (idx *Index) Node(i int) *Node { return idx.nodes[i] }

// Parent returns the parent of node i, -1 for the root.
func (idx *Index) Parent(i int) int { return idx.parent[i] }

// Depth returns the number of edges between node i and the root.
func (idx *Index) Depth(i int) int { return idx.depth[i] }

// Size returns the number of nodes in the subtree of node i.
func (idx *Index) Size(i int) int { return idx.size[i] }

// First returns the leaf position of the leftmost leaf under node i.
func (idx *Index) First(i int) int { return idx.first[i] }

// Count returns the number of leaves under node i.
func (idx *Index) Count(i int) int { return idx.count[i] }

// Children returns the children of node i, left to right.
func (idx *Index) Children(i int) []int {
	var kids []int
	for c := i + 1; c < i+idx.size[i]; c += idx.size[c] {
		kids = append(kids, c)
	}
	return kids
}

// LeafNode returns the node index of the leaf at position pos.
func (idx *Index) LeafNode(pos int) int { return idx.leaves[pos] }

// LeafLabel returns the label of the leaf at position pos.
func (idx *Index) LeafLabel(pos int) string { return idx.nodes[idx.leaves[pos]].Label }

// LeafPosition returns the position of the leaf with the given label.
func (idx *Index) LeafPosition(label string) (int, bool) {
	pos, ok := idx.byLabel[label]
	return pos, ok
}

// LeafLabels returns the labels of the leaves at positions [from, to).
func (idx *Index) LeafLabels(from, to int) []string {
	labels := make([]string, 0, to-from)
	for pos := from; pos < to; pos++ {
		labels = append(labels, idx.LeafLabel(pos))
	}
	return labels
}

// SplitDepth returns the depth of the lowest common ancestor of the leaves
// at positions pos-1 and pos, for 0 < pos < LeafCount().
func (idx *Index) SplitDepth(pos int) int {
	// In pre-order the node right after a leaf is a child of the lowest
	// common ancestor of that leaf and the next one.
	return idx.depth[idx.leaves[pos-1]+1] - 1
}

// PathLength returns the sum of branch lengths on the path between two
// leaves.
func (idx *Index) PathLength(a, b string) (float64, error) {
	pa, ok := idx.byLabel[a]
	if !ok {
		return 0, &errs.MissingLabelError{Label: a, In: "tree"}
	}
	pb, ok := idx.byLabel[b]
	if !ok {
		return 0, &errs.MissingLabelError{Label: b, In: "tree"}
	}
	u, v := idx.leaves[pa], idx.leaves[pb]
	var d float64
	for u != v {
		if idx.depth[u] >= idx.depth[v] {
			d += idx.nodes[u].Length
			u = idx.parent[u]
		} else {
			d += idx.nodes[v].Length
			v = idx.parent[v]
		}
	}
	return d, nil
}
