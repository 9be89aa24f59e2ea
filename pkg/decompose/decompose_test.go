package decompose

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yumyai/treesplit/pkg/errs"
	"github.com/yumyai/treesplit/pkg/tree"
)

const balanced8 = "(((A:1,B:1):1,(C:1,D:1):1):1,((E:1,F:1):1,(G:1,H:1):1):1);"

func mustParse(t *testing.T, s string) *tree.Tree {
	t.Helper()
	tr, err := tree.ParseString(s)
	require.NoError(t, err)
	return tr
}

func labelsOf(subsets []Subset) [][]string {
	out := make([][]string, len(subsets))
	for i, s := range subsets {
		out[i] = s.Labels
	}
	return out
}

// randomTree builds a random tree whose internal nodes have 2 to 4
// children.
func randomTree(seed int64, n int) *tree.Tree {
	rng := rand.New(rand.NewSource(seed))
	pool := make([]*tree.Node, n)
	for i := range pool {
		pool[i] = &tree.Node{Label: fmt.Sprintf("t%d", i), Length: 1, HasLength: true}
	}
	for len(pool) > 1 {
		k := 2 + rng.Intn(3)
		if k > len(pool) {
			k = len(pool)
		}
		parent := &tree.Node{Length: 1, HasLength: true}
		for c := 0; c < k; c++ {
			i := rng.Intn(len(pool))
			parent.Children = append(parent.Children, pool[i])
			pool = append(pool[:i], pool[i+1:]...)
		}
		pool = append(pool, parent)
	}
	return &tree.Tree{Root: pool[0]}
}

func TestBalancedScenario(t *testing.T) {
	tr := mustParse(t, balanced8)

	tests := []struct {
		strategy Strategy
		want     [][]string
	}{
		{StrategyPack, [][]string{{"A", "B", "C"}, {"D", "E", "F"}, {"G", "H"}}},
		{"", [][]string{{"A", "B", "C"}, {"D", "E", "F"}, {"G", "H"}}},
		{StrategyClade, [][]string{{"A", "B"}, {"C", "D"}, {"E", "F"}, {"G", "H"}}},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			subsets, err := Decompose(tr, Options{MaxSize: 3, Strategy: tt.strategy})
			require.NoError(t, err)
			assert.Equal(t, tt.want, labelsOf(subsets))
			for i, s := range subsets {
				assert.Equal(t, i+1, s.Index)
			}
		})
	}
}

func TestSingletons(t *testing.T) {
	tr := mustParse(t, balanced8)
	for _, s := range Strategies {
		subsets, err := Decompose(tr, Options{MaxSize: 1, Strategy: s})
		require.NoError(t, err)
		require.Len(t, subsets, 8)
		for i, sub := range subsets {
			assert.Equal(t, []string{string(rune('A' + i))}, sub.Labels)
		}
	}
}

func TestWholeTree(t *testing.T) {
	tr := mustParse(t, balanced8)
	for _, m := range []int{8, 9, 1000} {
		for _, s := range Strategies {
			subsets, err := Decompose(tr, Options{MaxSize: m, Strategy: s})
			require.NoError(t, err)
			require.Len(t, subsets, 1)
			assert.Equal(t, tr.LeafLabels(), subsets[0].Labels)
			assert.Equal(t, 1, subsets[0].Index)
		}
	}
}

func TestInvalidOptions(t *testing.T) {
	tr := mustParse(t, balanced8)

	for _, m := range []int{0, -3} {
		_, err := Decompose(tr, Options{MaxSize: m})
		assert.True(t, errors.Is(err, errs.ErrConfiguration))
		assert.Equal(t, errs.ExitArgs, errs.ExitCode(err))
	}

	_, err := Decompose(tr, Options{MaxSize: 3, Strategy: "greedy"})
	assert.True(t, errors.Is(err, errs.ErrConfiguration))
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy(" Clade ")
	require.NoError(t, err)
	assert.Equal(t, StrategyClade, s)

	s, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyPack, s)

	_, err = ParseStrategy("bisect")
	assert.Error(t, err)
}

func TestMultifurcation(t *testing.T) {
	// The root's children have 1, 2, 1, 5 and 1 leaves.
	tr := mustParse(t, "(A,(B,C),D,(E,F,G,H,I),J);")

	subsets, err := Decompose(tr, Options{MaxSize: 3, Strategy: StrategyClade})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"A", "B", "C"}, {"D"}, {"E", "F", "G"}, {"H", "I"}, {"J"}}, labelsOf(subsets))

	subsets, err = Decompose(tr, Options{MaxSize: 3, Strategy: StrategyPack})
	require.NoError(t, err)
	assert.Len(t, subsets, 4)
}

func TestPartitionProperties(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		tr := randomTree(seed, 300)
		all := tr.LeafLabels()
		for _, m := range []int{1, 2, 7, 50, 299, 300} {
			for _, s := range Strategies {
				name := fmt.Sprintf("seed%d/m%d/%s", seed, m, s)
				subsets, err := Decompose(tr, Options{MaxSize: m, Strategy: s})
				require.NoError(t, err, name)

				var got []string
				for i, sub := range subsets {
					require.NotEmpty(t, sub.Labels, name)
					require.LessOrEqual(t, sub.Len(), m, name)
					require.Equal(t, i+1, sub.Index, name)
					got = append(got, sub.Labels...)
				}
				// Contiguous runs in leaf order cover every leaf once.
				require.Equal(t, all, got, name)

				if s == StrategyPack {
					require.Equal(t, (len(all)+m-1)/m, len(subsets), name)
				}
			}
		}
	}
}

func TestCladeSubsetsAreSiblingClades(t *testing.T) {
	tr := randomTree(42, 500)
	idx, err := tree.NewIndex(tr)
	require.NoError(t, err)

	subsets, err := DecomposeIndex(idx, Options{MaxSize: 20, Strategy: StrategyClade})
	require.NoError(t, err)

	// The leaves of a clade subset share a parent clade that is more than
	// M leaves wide or is the subset itself.
	for _, sub := range subsets {
		first, _ := idx.LeafPosition(sub.Labels[0])
		last, _ := idx.LeafPosition(sub.Labels[len(sub.Labels)-1])
		node := idx.LeafNode(first)
		for idx.First(node)+idx.Count(node) <= last {
			node = idx.Parent(node)
		}
		assert.True(t, idx.Count(node) == sub.Len() || idx.Count(node) > 20)
	}
}

func TestPackMinimizesCutDepth(t *testing.T) {
	// Brute force over every cut set on small trees.
	for seed := int64(1); seed <= 30; seed++ {
		tr := randomTree(seed, 12)
		idx, err := tree.NewIndex(tr)
		require.NoError(t, err)
		n := idx.LeafCount()

		for m := 2; m <= 5; m++ {
			subsets, err := DecomposeIndex(idx, Options{MaxSize: m})
			require.NoError(t, err)
			cost := 0
			pos := 0
			for _, sub := range subsets[:len(subsets)-1] {
				pos += sub.Len()
				cost += idx.SplitDepth(pos)
			}

			best := -1
			parts := (n + m - 1) / m
			for mask := 0; mask < 1<<(n-1); mask++ {
				cuts, c, prev, ok := 0, 0, 0, true
				for p := 1; p < n && ok; p++ {
					if mask&(1<<(p-1)) != 0 {
						ok = p-prev <= m
						cuts++
						c += idx.SplitDepth(p)
						prev = p
					}
				}
				if !ok || n-prev > m || cuts+1 != parts {
					continue
				}
				if best < 0 || c < best {
					best = c
				}
			}
			assert.Equal(t, best, cost, "seed %d m %d", seed, m)
		}
	}
}

func TestDeepCaterpillar(t *testing.T) {
	const n = 100000
	var b strings.Builder
	b.WriteString(strings.Repeat("(", n-1))
	b.WriteString("L0")
	for i := 1; i < n; i++ {
		fmt.Fprintf(&b, ",L%d)", i)
	}
	b.WriteString(";")
	tr := mustParse(t, b.String())

	for _, s := range Strategies {
		subsets, err := Decompose(tr, Options{MaxSize: 1000, Strategy: s})
		require.NoError(t, err)
		total := 0
		for _, sub := range subsets {
			require.LessOrEqual(t, sub.Len(), 1000)
			total += sub.Len()
		}
		assert.Equal(t, n, total)
		if s == StrategyPack {
			assert.Len(t, subsets, 100)
		}
	}
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))

	one := Summarize([]Subset{{Index: 1, Labels: []string{"A", "B"}}})
	assert.Equal(t, Summary{Count: 1, Leaves: 2, Min: 2, Max: 2, Mean: 2}, one)

	tr := mustParse(t, balanced8)
	subsets, err := Decompose(tr, Options{MaxSize: 3})
	require.NoError(t, err)
	s := Summarize(subsets)
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 8, s.Leaves)
	assert.Equal(t, 2, s.Min)
	assert.Equal(t, 3, s.Max)
	assert.InDelta(t, 8.0/3, s.Mean, 1e-12)
	assert.InDelta(t, 0.57735026918962, s.StdDev, 1e-9)
}
