package taxon

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/yumyai/treesplit/pkg/errs"
)

// Column names read and written by CleanCSV.
const (
	ColumnSpecies    = "species"
	ColumnGenus      = "genus"
	ColumnSuffix     = "species_suffix"
	ColumnSubspecies = "subspecies"
)

// maxExamples caps the examples kept per category in a Report.
const maxExamples = 10

// Change is one rewritten species value.
type Change struct {
	Original string
	Name     Name
}

// Report summarizes a cleaning pass.
type Report struct {
	Total       int // data rows
	Empty       int // rows without a species value
	Invalid     int // no binomial could be extracted
	WithSuffix  int // valid binomial with a suffix
	Trinomials  int // valid trinomial without a suffix
	Clean       int // already a clean binomial
	Modified    int // species values that changed
	Invalidated int // species values cleared, suffix kept

	InvalidExamples   []string
	SuffixExamples    []Change
	TrinomialExamples []Change
}

func (r *Report) add(original string, n Name) {
	switch {
	case !n.Valid():
		r.Invalid++
		if n.Suffix != "" {
			r.Invalidated++
		}
		if len(r.InvalidExamples) < maxExamples {
			r.InvalidExamples = append(r.InvalidExamples, original)
		}
	case n.Suffix != "":
		r.WithSuffix++
		if len(r.SuffixExamples) < maxExamples {
			r.SuffixExamples = append(r.SuffixExamples, Change{original, n})
		}
	case n.Trinomial != "":
		r.Trinomials++
		if len(r.TrinomialExamples) < maxExamples {
			r.TrinomialExamples = append(r.TrinomialExamples, Change{original, n})
		}
	default:
		r.Clean++
	}
	if n.Binomial != original {
		r.Modified++
	}
}

// CleanCSV cleans the species column of a metadata table. The output has
// the input columns plus species_suffix and subspecies when they were
// missing. The species column receives the binomial (empty when invalid);
// suffix and subspecies are only overwritten when a value was extracted.
// With dryRun nothing is written and w may be nil.
func CleanCSV(r io.Reader, w io.Writer, dryRun bool) (Report, error) {
	var rep Report
	in := csv.NewReader(r)
	in.FieldsPerRecord = -1

	header, err := in.Read()
	if errors.Is(err, io.EOF) {
		return rep, &errs.ParseError{Line: 1, Offset: -1, Msg: "empty table"}
	}
	if err != nil {
		return rep, &errs.ParseError{Offset: -1, Msg: "read header", Err: err}
	}
	header = append([]string(nil), header...)
	width := len(header)

	col := func(name string) int {
		for i, h := range header {
			if h == name {
				return i
			}
		}
		return -1
	}
	species, genus := col(ColumnSpecies), col(ColumnGenus)
	if species < 0 {
		return rep, &errs.ParseError{Line: 1, Offset: -1, Msg: fmt.Sprintf("no %q column", ColumnSpecies)}
	}
	suffix := col(ColumnSuffix)
	if suffix < 0 {
		header = append(header, ColumnSuffix)
		suffix = len(header) - 1
	}
	sub := col(ColumnSubspecies)
	if sub < 0 {
		header = append(header, ColumnSubspecies)
		sub = len(header) - 1
	}

	var out *csv.Writer
	if !dryRun {
		out = csv.NewWriter(w)
		if err := out.Write(header); err != nil {
			return rep, &errs.IOError{Op: "write", Path: "csv", Err: err}
		}
	}

	for {
		rec, err := in.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rep, &errs.ParseError{Offset: -1, Msg: "read record", Err: err}
		}
		if len(rec) != width {
			line, _ := in.FieldPos(0)
			return rep, &errs.ParseError{Line: line, Offset: -1, Msg: fmt.Sprintf("record has %d fields, header has %d", len(rec), width)}
		}
		row := make([]string, len(header))
		copy(row, rec)
		rep.Total++

		if row[species] == "" {
			rep.Empty++
		} else {
			g := ""
			if genus >= 0 {
				g = row[genus]
			}
			n := Clean(row[species], g)
			rep.add(row[species], n)

			row[species] = n.Binomial
			if n.Suffix != "" {
				row[suffix] = n.Suffix
			}
			if n.Trinomial != "" {
				row[sub] = n.Trinomial
			}
		}

		if out != nil {
			if err := out.Write(row); err != nil {
				return rep, &errs.IOError{Op: "write", Path: "csv", Err: err}
			}
		}
	}
	if out != nil {
		out.Flush()
		if err := out.Error(); err != nil {
			return rep, &errs.IOError{Op: "write", Path: "csv", Err: err}
		}
	}
	return rep, nil
}
