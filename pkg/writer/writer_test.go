package writer

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yumyai/treesplit/pkg/alignment"
	"github.com/yumyai/treesplit/pkg/decompose"
	"github.com/yumyai/treesplit/pkg/errs"
	"github.com/yumyai/treesplit/pkg/tree"
)

const balanced8 = "(((A:1,B:1):1,(C:1,D:1):1):1,((E:1,F:1):1,(G:1,H:1):1):1);"

func fixture(t *testing.T) (*tree.Tree, *alignment.Alignment) {
	t.Helper()
	tr, err := tree.ParseString(balanced8)
	require.NoError(t, err)

	var b strings.Builder
	for _, l := range []string{"H", "G", "F", "E", "D", "C", "B", "A"} {
		b.WriteString(">" + l + "\n" + strings.Repeat(l, 6) + "\n")
	}
	aln, err := alignment.Parse(strings.NewReader(b.String()))
	require.NoError(t, err)
	return tr, aln
}

func TestWriteAll(t *testing.T) {
	tr, aln := fixture(t)
	subsets, err := decompose.Decompose(tr, decompose.Options{MaxSize: 3})
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "nested", "out")
	w := &Writer{Dir: dir}
	written, err := w.WriteAll(tr, aln, subsets)
	require.NoError(t, err)
	require.Len(t, written, 3)

	wantTrees := []string{"((A:1,B:1):1,C:2);\n", "(D:3,(E:1,F:1):2);\n", "(G:1,H:1);\n"}
	for i, wr := range written {
		assert.Equal(t, i+1, wr.Index)
		assert.Equal(t, filepath.Join(dir, TreeFileName(i+1)), wr.TreeFile)

		data, err := os.ReadFile(wr.TreeFile)
		require.NoError(t, err)
		assert.Equal(t, wantTrees[i], string(data))

		sub, err := tree.ReadFile(wr.TreeFile)
		require.NoError(t, err)
		subAln, err := alignment.ReadFile(wr.AlignmentFile)
		require.NoError(t, err)

		leaves := sub.LeafLabels()
		labels := subAln.Labels()
		sort.Strings(leaves)
		sort.Strings(labels)
		assert.Equal(t, leaves, labels)
		assert.Equal(t, wr.Leaves, len(labels))
	}

	// sequences keep their input order
	a1, err := alignment.ReadFile(written[0].AlignmentFile)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B", "A"}, a1.Labels())

	names, err := w.Existing()
	require.NoError(t, err)
	assert.Len(t, names, 6)
}

func TestWriteSingletons(t *testing.T) {
	tr, aln := fixture(t)
	subsets, err := decompose.Decompose(tr, decompose.Options{MaxSize: 1})
	require.NoError(t, err)

	w := &Writer{Dir: t.TempDir()}
	written, err := w.WriteAll(tr, aln, subsets)
	require.NoError(t, err)
	require.Len(t, written, 8)

	data, err := os.ReadFile(written[0].TreeFile)
	require.NoError(t, err)
	assert.Equal(t, "A;\n", string(data))

	data, err = os.ReadFile(written[7].AlignmentFile)
	require.NoError(t, err)
	assert.Equal(t, ">H\nHHHHHH\n", string(data))
}

func TestStaleFiles(t *testing.T) {
	tr, aln := fixture(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "subset_9.tre"), []byte("(X,Y);\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o644))

	subsets, err := decompose.Decompose(tr, decompose.Options{MaxSize: 4})
	require.NoError(t, err)

	_, err = (&Writer{Dir: dir}).WriteAll(tr, aln, subsets)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutputNotEmpty))
	assert.Equal(t, errs.ExitOut, errs.ExitCode(err))

	_, err = (&Writer{Dir: dir, Overwrite: true}).WriteAll(tr, aln, subsets)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "subset_9.tre"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "notes.txt"))
	assert.NoError(t, err)
}

func TestLineWidth(t *testing.T) {
	tr, aln := fixture(t)
	subsets := []decompose.Subset{{Index: 1, Labels: []string{"A"}}}

	w := &Writer{Dir: t.TempDir(), LineWidth: 4}
	written, err := w.WriteAll(tr, aln, subsets)
	require.NoError(t, err)

	data, err := os.ReadFile(written[0].AlignmentFile)
	require.NoError(t, err)
	assert.Equal(t, ">A\nAAAA\nAA\n", string(data))
}

func TestMissingSequence(t *testing.T) {
	tr, err := tree.ParseString("(A,(B,Z));")
	require.NoError(t, err)
	_, aln := fixture(t)

	subsets := []decompose.Subset{{Index: 1, Labels: []string{"A", "B", "Z"}}}
	_, err = (&Writer{Dir: t.TempDir()}).WriteAll(tr, aln, subsets)
	assert.True(t, errors.Is(err, errs.ErrMissingLabel))
}

func TestUnwritableDirectory(t *testing.T) {
	tr, aln := fixture(t)
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	subsets := []decompose.Subset{{Index: 1, Labels: []string{"A"}}}
	_, err := (&Writer{Dir: filepath.Join(file, "out")}).WriteAll(tr, aln, subsets)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrIO))
}

func TestPairLabelSets(t *testing.T) {
	sub, err := tree.ParseString("(A:1,B:1);")
	require.NoError(t, err)
	aln, err := alignment.Parse(strings.NewReader(">A\nAC\n>C\nGT\n"))
	require.NoError(t, err)

	// same size, different labels
	err = checkPair(4, sub, aln)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subset 4")
	var cerr *errs.ConsistencyError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []string{"B"}, cerr.MissingSequences)
	assert.Equal(t, []string{"C"}, cerr.ExtraSequences)

	aln, err = alignment.Parse(strings.NewReader(">B\nAC\n>A\nGT\n"))
	require.NoError(t, err)
	assert.NoError(t, checkPair(4, sub, aln))
}
