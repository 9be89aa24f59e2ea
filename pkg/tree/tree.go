// Package tree is an in-memory rooted phylogenetic tree with branch lengths
// and leaf labels.
//
// Trees with hundreds of thousands of tips can be caterpillar-shaped, so no
// function in this package recurses along the depth of the tree: every
// traversal runs on an explicit stack.
package tree

// A Node is a node of a phylogenetic tree.
type Node struct {
	Label     string  // non-empty on leaves, optional on internal nodes
	Length    float64 // branch length to the parent
	HasLength bool    // false when no length was given
	Children  []*Node
}

// IsLeaf reports whether the node is a terminal.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// A Tree is a rooted phylogenetic tree.
type Tree struct {
	Root *Node
}

// Walk visits the nodes in pre-order, children left to right. Returning
// false from fn skips the node's descendants.
func (t *Tree) Walk(fn func(n *Node, depth int) bool) {
	if t == nil || t.Root == nil {
		return
	}
	type frame struct {
		n     *Node
		depth int
	}
	stack := []frame{{t.Root, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(f.n, f.depth) {
			continue
		}
		for i := len(f.n.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{f.n.Children[i], f.depth + 1})
		}
	}
}

// Leaves returns the terminals in pre-order.
func (t *Tree) Leaves() []*Node {
	var leaves []*Node
	t.Walk(func(n *Node, _ int) bool {
		if n.IsLeaf() {
			leaves = append(leaves, n)
		}
		return true
	})
	return leaves
}

// LeafLabels returns the terminal labels in pre-order.
func (t *Tree) LeafLabels() []string {
	leaves := t.Leaves()
	labels := make([]string, len(leaves))
	for i, n := range leaves {
		labels[i] = n.Label
	}
	return labels
}

// LeafCount returns the number of terminals.
func (t *Tree) LeafCount() int {
	c := 0
	t.Walk(func(n *Node, _ int) bool {
		if n.IsLeaf() {
			c++
		}
		return true
	})
	return c
}

