// Package writer serializes each subset as a numbered pair of tree and
// alignment files.
package writer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/yumyai/treesplit/internal/util"
	"github.com/yumyai/treesplit/logger"
	"github.com/yumyai/treesplit/pkg/alignment"
	"github.com/yumyai/treesplit/pkg/decompose"
	"github.com/yumyai/treesplit/pkg/errs"
	"github.com/yumyai/treesplit/pkg/tree"
)

// ErrOutputNotEmpty is wrapped when the output directory already holds
// subset files and overwriting was not requested.
var ErrOutputNotEmpty = errors.New("output directory already contains subset files")

const filePrefix = "subset_"

// TreeFileName returns the tree file name of subset i.
func TreeFileName(i int) string { return fmt.Sprintf("%s%d.tre", filePrefix, i) }

// AlignmentFileName returns the alignment file name of subset i.
func AlignmentFileName(i int) string { return fmt.Sprintf("%s%d.fasta", filePrefix, i) }

// Writer writes subsets into Dir.
type Writer struct {
	Dir       string
	LineWidth int  // FASTA line width, <= 0 for unwrapped sequences
	Overwrite bool // replace subset files left by an earlier run
}

// Written describes the files of one subset.
type Written struct {
	Index         int
	Leaves        int
	TreeFile      string
	AlignmentFile string
}

// WriteAll prunes t and restricts a to every subset and writes the pairs.
// Each file appears under its final name only once it is complete.
func (w *Writer) WriteAll(t *tree.Tree, a *alignment.Alignment, subsets []decompose.Subset) ([]Written, error) {
	idx, err := tree.NewIndex(t)
	if err != nil {
		return nil, err
	}
	return w.WriteIndexed(idx, a, subsets)
}

// WriteIndexed is WriteAll on an already indexed tree.
func (w *Writer) WriteIndexed(idx *tree.Index, a *alignment.Alignment, subsets []decompose.Subset) ([]Written, error) {
	if err := w.prepare(); err != nil {
		return nil, err
	}

	out := make([]Written, 0, len(subsets))
	for _, s := range subsets {
		written, err := w.writeSubset(idx, a, s)
		if err != nil {
			return out, err
		}
		logger.Debug("Subset written",
			zap.Int("index", s.Index),
			zap.Int("leaves", written.Leaves),
			zap.String("tree", written.TreeFile),
		)
		out = append(out, written)
	}
	return out, nil
}

// prepare creates the directory and deals with stale subset files.
func (w *Writer) prepare() error {
	if w.Dir == "" {
		return errs.NewConfigurationError("out", "output directory is required")
	}
	if !util.DirExists(w.Dir) {
		if err := os.MkdirAll(w.Dir, 0o755); err != nil {
			return &errs.IOError{Op: "create", Path: w.Dir, Err: err}
		}
		logger.Debug("Created output directory", zap.String("dir", w.Dir))
		return nil
	}

	stale, err := w.Existing()
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}
	if !w.Overwrite {
		return &errs.IOError{Op: "write", Path: w.Dir, Err: fmt.Errorf("%w (%d files, e.g. %s)", ErrOutputNotEmpty, len(stale), stale[0])}
	}
	for _, name := range stale {
		p := filepath.Join(w.Dir, name)
		if err := os.Remove(p); err != nil {
			return &errs.IOError{Op: "remove", Path: p, Err: err}
		}
	}
	logger.Info("Removed stale subset files", zap.String("dir", w.Dir), zap.Int("files", len(stale)))
	return nil
}

// Existing lists the subset file names present in Dir.
func (w *Writer) Existing() ([]string, error) {
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		return nil, &errs.IOError{Op: "read", Path: w.Dir, Err: err}
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) {
			continue
		}
		if strings.HasSuffix(name, ".tre") || strings.HasSuffix(name, ".fasta") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (w *Writer) writeSubset(idx *tree.Index, a *alignment.Alignment, s decompose.Subset) (Written, error) {
	sub, err := idx.Prune(s.Labels)
	if err != nil {
		return Written{}, fmt.Errorf("subset %d: %w", s.Index, err)
	}
	aln, err := a.Restrict(s.Labels)
	if err != nil {
		return Written{}, fmt.Errorf("subset %d: %w", s.Index, err)
	}
	if err := checkPair(s.Index, sub, aln); err != nil {
		return Written{}, err
	}

	res := Written{
		Index:         s.Index,
		Leaves:        aln.Len(),
		TreeFile:      filepath.Join(w.Dir, TreeFileName(s.Index)),
		AlignmentFile: filepath.Join(w.Dir, AlignmentFileName(s.Index)),
	}
	if err := util.WriteAtomic(res.TreeFile, func(out io.Writer) error {
		return tree.Write(out, sub)
	}); err != nil {
		return Written{}, &errs.IOError{Op: "write", Path: res.TreeFile, Err: err}
	}
	if err := util.WriteAtomic(res.AlignmentFile, func(out io.Writer) error {
		return alignment.Write(out, aln, w.LineWidth)
	}); err != nil {
		// keep the pair consistent
		os.Remove(res.TreeFile)
		return Written{}, &errs.IOError{Op: "write", Path: res.AlignmentFile, Err: err}
	}
	return res, nil
}

// checkPair requires the pruned tree and the restricted alignment to carry
// the same labels.
func checkPair(index int, sub *tree.Tree, aln *alignment.Alignment) error {
	if err := alignment.CheckCorrespondence(sub.LeafLabels(), aln, false); err != nil {
		return fmt.Errorf("subset %d: %w", index, err)
	}
	return nil
}
