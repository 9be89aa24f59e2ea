package tree

import (
	"sort"

	"github.com/yumyai/treesplit/pkg/errs"
)

// Prune returns the minimal tree connecting exactly the given leaves.
//
// Retained edges keep their lengths. Internal nodes left with a single
// child are removed and their length is added to the child, so the path
// length between any two retained leaves is unchanged. The pruned root
// keeps its branch length only when it is the original root. Duplicated
// labels are ignored; an unknown label is a *errs.MissingLabelError.
//
// The input tree is never modified. To prune the same tree many times,
// build an Index once and call its Prune method.
func Prune(t *Tree, labels []string) (*Tree, error) {
	idx, err := NewIndex(t)
	if err != nil {
		return nil, err
	}
	return idx.Prune(labels)
}

// Prune is like the package level Prune. It visits only the nodes on the
// paths between the retained leaves and their lowest common ancestor.
func (idx *Index) Prune(labels []string) (*Tree, error) {
	if len(labels) == 0 {
		return nil, errs.NewConfigurationError("labels", "empty leaf set")
	}
	pos := make([]int, 0, len(labels))
	for _, l := range labels {
		p, ok := idx.byLabel[l]
		if !ok {
			return nil, &errs.MissingLabelError{Label: l, In: "tree"}
		}
		pos = append(pos, p)
	}
	sort.Ints(pos)
	pos = dedupe(pos)

	// Lowest common ancestor of the retained leaves.
	lca := idx.leaves[pos[0]]
	last := pos[len(pos)-1]
	for idx.first[lca]+idx.count[lca] <= last {
		lca = idx.parent[lca]
	}

	// Walk up from every retained leaf until a node already on a path.
	// Leaves come in position order, so children are recorded left to right.
	kids := make(map[int][]int)
	marked := map[int]bool{lca: true}
	for _, p := range pos {
		for c := idx.leaves[p]; !marked[c]; c = idx.parent[c] {
			marked[c] = true
			kids[idx.parent[c]] = append(kids[idx.parent[c]], c)
		}
	}

	// Reverse pre-order builds every child before its parent.
	order := make([]int, 0, len(marked))
	for i := range marked {
		order = append(order, i)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(order)))

	built := make(map[int]*Node, len(order))
	for _, i := range order {
		src := idx.nodes[i]
		ks := kids[i]
		switch len(ks) {
		case 0:
			built[i] = &Node{Label: src.Label, Length: src.Length, HasLength: src.HasLength}
		case 1:
			only := built[ks[0]]
			if src.HasLength {
				only.Length += src.Length
				only.HasLength = true
			}
			built[i] = only
		default:
			children := make([]*Node, len(ks))
			for j, c := range ks {
				children[j] = built[c]
			}
			built[i] = &Node{Label: src.Label, Length: src.Length, HasLength: src.HasLength, Children: children}
		}
	}

	root := built[lca]
	if lca != 0 {
		root.Length, root.HasLength = 0, false
	}
	return &Tree{Root: root}, nil
}

func dedupe(sorted []int) []int {
	if len(sorted) < 2 {
		return sorted
	}
	out := sorted[:1]
	for _, v := range sorted[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
