package alignment

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yumyai/treesplit/pkg/errs"
)

const sample = ">A\nACGT\n>B\nAC-T\n>C\nTTGA\n"

func TestParse(t *testing.T) {
	a, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, 3, a.Len())
	assert.Equal(t, 4, a.Columns())
	assert.Equal(t, []string{"A", "B", "C"}, a.Labels())

	s, ok := a.Get("B")
	require.True(t, ok)
	assert.Equal(t, "AC-T", string(s.Residues))

	_, ok = a.Get("Z")
	assert.False(t, ok)
}

func TestParseLenient(t *testing.T) {
	input := "\r\n>Homo sapiens  \r\nAC GT\r\nAC\n\n>B\n\tACGTAC\n"
	a, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"Homo sapiens", "B"}, a.Labels())
	assert.Equal(t, 6, a.Columns())
	s, _ := a.Get("Homo sapiens")
	assert.Equal(t, "ACGTAC", string(s.Residues))
}

func TestParseLongLine(t *testing.T) {
	long := strings.Repeat("ACGT", 1<<18)
	a, err := Parse(strings.NewReader(">A\n" + long + "\n>B\n" + long))
	require.NoError(t, err)
	assert.Equal(t, len(long), a.Columns())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		msg   string
		line  int
	}{
		{"Empty", "", "no sequences", 0},
		{"BlankOnly", "\n\n", "no sequences", 0},
		{"DataBeforeHeader", "ACGT\n>A\nACGT\n", "before the first header", 1},
		{"EmptyLabel", ">A\nAC\n>  \nAC\n", "empty label", 3},
		{"Duplicate", ">A\nAC\n>A\nAC\n", "duplicate label", 3},
		{"Ragged", ">A\nACGT\n>B\nACG\n", "has 3 columns, expected 4", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrParse))
			assert.Contains(t, err.Error(), tt.msg)

			var pe *errs.ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.line, pe.Line)
		})
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aln.fasta")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	a, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, a.Len())

	bad := filepath.Join(dir, "bad.fasta")
	require.NoError(t, os.WriteFile(bad, []byte(">A\nAC\n>A\nAC\n"), 0o644))
	_, err = ReadFile(bad)
	var pe *errs.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, bad, pe.Source)

	_, err = ReadFile(filepath.Join(dir, "missing.fasta"))
	assert.True(t, errors.Is(err, errs.ErrIO))
	assert.Equal(t, errs.ExitIn, errs.ExitCode(err))
}

func TestWriteRoundTrip(t *testing.T) {
	a, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, a, 0))
	assert.Equal(t, sample, buf.String())

	buf.Reset()
	require.NoError(t, Write(&buf, a, 3))
	assert.Equal(t, ">A\nACG\nT\n>B\nAC-\nT\n>C\nTTG\nA\n", buf.String())

	again, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, a.Sequences(), again.Sequences())
}

func TestRestrict(t *testing.T) {
	a, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	sub, err := a.Restrict([]string{"C", "A", "C"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, sub.Labels())
	assert.Equal(t, 4, sub.Columns())
	assert.Equal(t, 3, a.Len(), "receiver must not change")

	_, err = a.Restrict([]string{"A", "Q"})
	var missing *errs.MissingLabelError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "Q", missing.Label)
	assert.Equal(t, "alignment", missing.In)
}

func TestCheckCorrespondence(t *testing.T) {
	a, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	assert.NoError(t, CheckCorrespondence([]string{"C", "B", "A"}, a, false))

	err = CheckCorrespondence([]string{"A", "B", "C", "D"}, a, true)
	var cerr *errs.ConsistencyError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []string{"D"}, cerr.MissingSequences)
	assert.Empty(t, cerr.ExtraSequences)

	err = CheckCorrespondence([]string{"A", "B"}, a, false)
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []string{"C"}, cerr.ExtraSequences)
	assert.Equal(t, errs.ExitIn, errs.ExitCode(err))

	assert.NoError(t, CheckCorrespondence([]string{"A", "B"}, a, true))
}
