// Package alignment is an in-memory multiple sequence alignment read from
// and written to FASTA.
package alignment

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/yumyai/treesplit/pkg/errs"
)

// Sequence is one aligned record.
type Sequence struct {
	Label    string
	Residues []byte
}

// Alignment is a set of equally long sequences with unique labels, kept
// in the order they were read.
type Alignment struct {
	seqs    []Sequence
	index   map[string]int
	columns int
}

func (a *Alignment) add(s Sequence) error {
	if s.Label == "" {
		return errors.New("empty label")
	}
	if _, dup := a.index[s.Label]; dup {
		return fmt.Errorf("duplicate label %s", strconv.Quote(s.Label))
	}
	if len(a.seqs) == 0 {
		a.columns = len(s.Residues)
	} else if len(s.Residues) != a.columns {
		return fmt.Errorf("sequence %s has %d columns, expected %d", strconv.Quote(s.Label), len(s.Residues), a.columns)
	}
	a.index[s.Label] = len(a.seqs)
	a.seqs = append(a.seqs, s)
	return nil
}

// Len returns the number of sequences.
func (a *Alignment) Len() int { return len(a.seqs) }

// Columns returns the alignment length.
func (a *Alignment) Columns() int { return a.columns }

// Sequences returns the records in input order. The slice must not be
// modified.
func (a *Alignment) Sequences() []Sequence { return a.seqs }

// Get returns the sequence with the given label.
func (a *Alignment) Get(label string) (Sequence, bool) {
	i, ok := a.index[label]
	if !ok {
		return Sequence{}, false
	}
	return a.seqs[i], true
}

// Labels returns the labels in input order.
func (a *Alignment) Labels() []string {
	labels := make([]string, len(a.seqs))
	for i, s := range a.seqs {
		labels[i] = s.Label
	}
	return labels
}

// Restrict returns the sequences whose labels are given, in their original
// order. Residues are shared with the receiver. An unknown label is a
// *errs.MissingLabelError.
func (a *Alignment) Restrict(labels []string) (*Alignment, error) {
	pos := make([]int, 0, len(labels))
	seen := make(map[int]struct{}, len(labels))
	for _, l := range labels {
		i, ok := a.index[l]
		if !ok {
			return nil, &errs.MissingLabelError{Label: l, In: "alignment"}
		}
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}
		pos = append(pos, i)
	}
	sort.Ints(pos)

	sub := &Alignment{
		seqs:    make([]Sequence, len(pos)),
		index:   make(map[string]int, len(pos)),
		columns: a.columns,
	}
	for j, i := range pos {
		sub.seqs[j] = a.seqs[i]
		sub.index[a.seqs[i].Label] = j
	}
	return sub, nil
}

// CheckCorrespondence verifies that every tree leaf has a sequence. With
// allowExtra false, every sequence must also have a leaf.
func CheckCorrespondence(leaves []string, a *Alignment, allowExtra bool) error {
	var cerr errs.ConsistencyError
	inTree := make(map[string]struct{}, len(leaves))
	for _, l := range leaves {
		inTree[l] = struct{}{}
		if _, ok := a.index[l]; !ok {
			cerr.MissingSequences = append(cerr.MissingSequences, l)
		}
	}
	if !allowExtra {
		for _, s := range a.seqs {
			if _, ok := inTree[s.Label]; !ok {
				cerr.ExtraSequences = append(cerr.ExtraSequences, s.Label)
			}
		}
	}
	if len(cerr.MissingSequences) > 0 || len(cerr.ExtraSequences) > 0 {
		return &cerr
	}
	return nil
}

// Parse reads a FASTA alignment. A label is the whole header line after
// '>', trimmed of surrounding white space. Blank lines and white space
// inside sequence lines are ignored.
func Parse(r io.Reader) (*Alignment, error) {
	br := bufio.NewReaderSize(r, 1<<16)
	a := &Alignment{index: make(map[string]int)}

	var (
		label   string
		header  int // line of the current header
		residue []byte
		open    bool
	)
	flush := func() error {
		if !open {
			return nil
		}
		if err := a.add(Sequence{Label: label, Residues: residue}); err != nil {
			return &errs.ParseError{Line: header, Offset: -1, Msg: err.Error()}
		}
		return nil
	}

	for line := 1; ; line++ {
		raw, err := br.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, &errs.IOError{Op: "read", Path: "alignment", Err: err}
		}
		text := bytes.TrimSpace(raw)
		switch {
		case len(text) == 0:
		case text[0] == '>':
			if ferr := flush(); ferr != nil {
				return nil, ferr
			}
			label = string(bytes.TrimSpace(text[1:]))
			if label == "" {
				return nil, &errs.ParseError{Line: line, Offset: -1, Msg: "empty label"}
			}
			header, residue, open = line, nil, true
		default:
			if !open {
				return nil, &errs.ParseError{Line: line, Offset: -1, Msg: "sequence data before the first header"}
			}
			residue = appendResidues(residue, text)
		}
		if err == io.EOF {
			break
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(a.seqs) == 0 {
		return nil, &errs.ParseError{Offset: -1, Msg: "no sequences"}
	}
	return a, nil
}

func appendResidues(dst, line []byte) []byte {
	for _, c := range line {
		if c == ' ' || c == '\t' || c == '\r' {
			continue
		}
		dst = append(dst, c)
	}
	return dst
}

// ReadFile parses the FASTA alignment stored in a file.
func ReadFile(path string) (*Alignment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &errs.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()
	a, err := Parse(f)
	if err != nil {
		var ioErr *errs.IOError
		if errors.As(err, &ioErr) {
			ioErr.Path = path
		}
		return nil, errs.WithSource(err, path)
	}
	return a, nil
}

// Write writes the alignment as FASTA. With width <= 0 each sequence is on
// a single line, which makes Write the exact inverse of Parse; otherwise
// sequence lines are wrapped at width columns.
func Write(out io.Writer, a *Alignment, width int) error {
	w := bufio.NewWriter(out)
	for _, s := range a.seqs {
		w.WriteByte('>')
		w.WriteString(s.Label)
		w.WriteByte('\n')
		if width <= 0 || len(s.Residues) <= width {
			w.Write(s.Residues)
			w.WriteByte('\n')
			continue
		}
		for i := 0; i < len(s.Residues); i += width {
			end := i + width
			if end > len(s.Residues) {
				end = len(s.Residues)
			}
			w.Write(s.Residues[i:end])
			w.WriteByte('\n')
		}
	}
	return w.Flush()
}
