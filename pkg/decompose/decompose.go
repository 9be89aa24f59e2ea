// Package decompose partitions the leaves of a tree into ordered groups of
// at most M leaves.
//
// Leaves are numbered in pre-order, so every clade is a contiguous run of
// leaf positions. Both strategies emit contiguous runs: subset i+1 always
// starts right after the last leaf of subset i.
package decompose

import (
	"strings"

	"github.com/yumyai/treesplit/pkg/errs"
	"github.com/yumyai/treesplit/pkg/tree"
)

// Strategy selects how leaves are grouped.
type Strategy string

const (
	// StrategyPack uses the fewest subsets, then cuts the tree as close to
	// the root as possible.
	StrategyPack Strategy = "pack"
	// StrategyClade descends from the root, emitting whole clades and
	// packing sibling clades left to right.
	StrategyClade Strategy = "clade"
)

// Strategies lists the accepted strategy names.
var Strategies = []Strategy{StrategyPack, StrategyClade}

// ParseStrategy maps a name to a Strategy. The empty string is
// StrategyPack.
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(name))); s {
	case "":
		return StrategyPack, nil
	case StrategyPack, StrategyClade:
		return s, nil
	}
	return "", errs.NewConfigurationError("strategy", "unknown strategy %q (want pack or clade)", name)
}

// Options configures a decomposition.
type Options struct {
	MaxSize  int
	Strategy Strategy
}

// Subset is one group of leaves. Index is 1-based.
type Subset struct {
	Index  int
	Labels []string
}

// Len returns the number of leaves in the subset.
func (s Subset) Len() int { return len(s.Labels) }

// Decompose partitions the leaves of t.
func Decompose(t *tree.Tree, opts Options) ([]Subset, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	idx, err := tree.NewIndex(t)
	if err != nil {
		return nil, err
	}
	return DecomposeIndex(idx, opts)
}

// DecomposeIndex is Decompose on an already indexed tree.
func DecomposeIndex(idx *tree.Index, opts Options) ([]Subset, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	n := idx.LeafCount()
	if n == 0 {
		return nil, errs.NewConfigurationError("tree", "tree has no leaves")
	}

	var spans []span
	switch {
	case opts.MaxSize >= n:
		spans = []span{{0, n}}
	case opts.strategy() == StrategyClade:
		spans = cladeSpans(idx, opts.MaxSize)
	default:
		spans = packSpans(idx, opts.MaxSize)
	}

	subsets := make([]Subset, len(spans))
	for i, s := range spans {
		subsets[i] = Subset{Index: i + 1, Labels: idx.LeafLabels(s.from, s.to)}
	}
	return subsets, nil
}

func (o Options) validate() error {
	if o.MaxSize < 1 {
		return errs.NewConfigurationError("max_size", "must be at least 1, got %d", o.MaxSize)
	}
	if _, err := ParseStrategy(string(o.Strategy)); err != nil {
		return err
	}
	return nil
}

func (o Options) strategy() Strategy {
	s, _ := ParseStrategy(string(o.Strategy))
	return s
}

// span is the half-open run of leaf positions [from, to).
type span struct{ from, to int }

// score orders partial solutions: fewer parts first, then lower cut cost.
type score struct {
	parts int
	cost  int64
}

func (a score) less(b score) bool {
	if a.parts != b.parts {
		return a.parts < b.parts
	}
	return a.cost < b.cost
}

// packSpans cuts the leaf sequence into runs of at most m leaves. Cutting
// between positions j-1 and j costs SplitDepth(j). f[i] is the best score
// for positions [i, n), computed right to left:
//
//	f[i] = (1, 0) + min over i < j <= min(i+m, n) of f[j] + (0, SplitDepth(j))
//
// with no cost for j == n. The window minimum is kept in a monotonic deque.
func packSpans(idx *tree.Index, m int) []span {
	n := idx.LeafCount()
	f := make([]score, n+1)
	next := make([]int, n)

	g := func(j int) score {
		if j == n {
			return f[n]
		}
		return score{f[j].parts, f[j].cost + int64(idx.SplitDepth(j))}
	}

	// deque holds candidate ends j in decreasing order with increasing g.
	deque := make([]int, 0, m+1)
	head := 0
	for i := n - 1; i >= 0; i-- {
		j := i + 1
		gj := g(j)
		// Equal scores keep the larger j, which makes the earlier run longer.
		for len(deque) > head && gj.less(g(deque[len(deque)-1])) {
			deque = deque[:len(deque)-1]
		}
		deque = append(deque, j)
		for deque[head] > i+m {
			head++
		}
		best := deque[head]
		bs := g(best)
		f[i] = score{bs.parts + 1, bs.cost}
		next[i] = best

		if head > m && head*2 > len(deque) {
			deque = append(deque[:0], deque[head:]...)
			head = 0
		}
	}

	var spans []span
	for i := 0; i < n; i = next[i] {
		spans = append(spans, span{i, next[i]})
	}
	return spans
}

// cladeSpans runs the top-down decomposition on a work stack.
func cladeSpans(idx *tree.Index, m int) []span {
	type item struct {
		node int  // node to descend into
		emit bool // emit s instead of descending
		s    span
	}

	var spans []span
	stack := []item{{node: 0}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if it.emit {
			spans = append(spans, it.s)
			continue
		}

		from, count := idx.First(it.node), idx.Count(it.node)
		if count <= m {
			spans = append(spans, span{from, from + count})
			continue
		}

		var (
			items []item
			bin   = span{-1, -1}
		)
		flush := func() {
			if bin.from >= 0 {
				items = append(items, item{emit: true, s: bin})
				bin = span{-1, -1}
			}
		}
		for _, c := range idx.Children(it.node) {
			cf, cc := idx.First(c), idx.Count(c)
			switch {
			case cc > m:
				flush()
				items = append(items, item{node: c})
			case bin.from >= 0 && bin.to-bin.from+cc > m:
				flush()
				bin = span{cf, cf + cc}
			case bin.from >= 0:
				bin.to = cf + cc
			default:
				bin = span{cf, cf + cc}
			}
		}
		flush()

		for k := len(items) - 1; k >= 0; k-- {
			stack = append(stack, items[k])
		}
	}
	return spans
}
