package tree

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/yumyai/treesplit/pkg/errs"
)

// Parse reads a single rooted tree in Newick (parenthetic) format.
//
// Labels may be unquoted or single-quoted ('' is an escaped quote) and are
// kept verbatim: underscores are not turned into spaces. Bracketed
// comments are skipped. The tree must end with ';'.
func Parse(r io.Reader) (*Tree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &errs.IOError{Op: "read", Path: "tree", Err: err}
	}
	p := &parser{data: data}
	return p.parse()
}

// ParseString parses a tree from a string.
func ParseString(s string) (*Tree, error) {
	return Parse(strings.NewReader(s))
}

// ReadFile parses the tree stored in a file.
func ReadFile(path string) (*Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &errs.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()
	t, err := Parse(f)
	if err != nil {
		var ioErr *errs.IOError
		if errors.As(err, &ioErr) {
			ioErr.Path = path
		}
		return nil, errs.WithSource(err, path)
	}
	return t, nil
}

type parser struct {
	data []byte
	pos  int
}

func (p *parser) fail(msg string) error {
	return &errs.ParseError{Offset: p.pos, Msg: msg}
}

// skip moves past white space and bracketed comments.
func (p *parser) skip() error {
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		switch {
		case isSpace(c):
			p.pos++
		case c == '[':
			end := bytes.IndexByte(p.data[p.pos:], ']')
			if end < 0 {
				return p.fail("unterminated comment")
			}
			p.pos += end + 1
		default:
			return nil
		}
	}
	return nil
}

func (p *parser) parse() (*Tree, error) {
	var (
		root  *Node
		open  []*Node // internal nodes whose ')' is pending
		cur   *Node   // last completed node, still open to a label or length
		named bool    // cur already carries a label
		seen  = make(map[string]struct{})
	)

	// attach places a new node under the innermost open node, or makes it
	// the root.
	attach := func(n *Node) error {
		if len(open) > 0 {
			parent := open[len(open)-1]
			parent.Children = append(parent.Children, n)
			return nil
		}
		if root != nil {
			return p.fail("unexpected content after tree")
		}
		root = n
		return nil
	}

	for {
		if err := p.skip(); err != nil {
			return nil, err
		}
		if p.pos >= len(p.data) {
			switch {
			case root == nil:
				return nil, p.fail("empty tree")
			case len(open) > 0:
				return nil, p.fail("unbalanced parentheses: missing ')'")
			}
			return nil, p.fail("missing ';'")
		}
		c := p.data[p.pos]
		switch c {
		case '(':
			if cur != nil {
				return nil, p.fail("unexpected '('")
			}
			n := &Node{}
			if err := attach(n); err != nil {
				return nil, err
			}
			open = append(open, n)
			p.pos++
		case ',':
			if len(open) == 0 {
				return nil, p.fail("unexpected ','")
			}
			if cur == nil {
				return nil, p.fail("unlabeled leaf")
			}
			cur, named = nil, false
			p.pos++
		case ')':
			if len(open) == 0 {
				return nil, p.fail("unbalanced parentheses: unexpected ')'")
			}
			if cur == nil {
				return nil, p.fail("unlabeled leaf")
			}
			cur, named = open[len(open)-1], false
			open = open[:len(open)-1]
			p.pos++
		case ':':
			if cur == nil {
				return nil, p.fail("unexpected branch length")
			}
			if cur.HasLength {
				return nil, p.fail("repeated branch length")
			}
			p.pos++
			v, err := p.readLength()
			if err != nil {
				return nil, err
			}
			cur.Length, cur.HasLength = v, true
		case ';':
			if len(open) > 0 {
				return nil, p.fail("unbalanced parentheses: missing ')'")
			}
			if cur == nil {
				return nil, p.fail("empty tree")
			}
			p.pos++
			if err := p.skip(); err != nil {
				return nil, err
			}
			if p.pos < len(p.data) {
				return nil, p.fail("unexpected content after ';'")
			}
			return &Tree{Root: root}, nil
		case ']':
			return nil, p.fail("unexpected ']'")
		default:
			start := p.pos
			label, err := p.readLabel()
			if err != nil {
				return nil, err
			}
			if cur != nil {
				// label of a just-closed internal node
				if cur.IsLeaf() || named || cur.HasLength {
					p.pos = start
					return nil, p.fail("unexpected label")
				}
				cur.Label, named = label, true
				continue
			}
			if label == "" {
				p.pos = start
				return nil, p.fail("unlabeled leaf")
			}
			if _, dup := seen[label]; dup {
				p.pos = start
				return nil, p.fail("duplicate leaf label " + strconv.Quote(label))
			}
			seen[label] = struct{}{}
			n := &Node{Label: label}
			if err := attach(n); err != nil {
				return nil, err
			}
			cur, named = n, true
		}
	}
}

func (p *parser) readLabel() (string, error) {
	if p.data[p.pos] != '\'' {
		start := p.pos
		for p.pos < len(p.data) && !isDelim(p.data[p.pos]) {
			p.pos++
		}
		return string(p.data[start:p.pos]), nil
	}
	p.pos++
	var b strings.Builder
	for {
		if p.pos >= len(p.data) {
			return "", p.fail("unterminated quoted label")
		}
		c := p.data[p.pos]
		p.pos++
		if c != '\'' {
			b.WriteByte(c)
			continue
		}
		if p.pos < len(p.data) && p.data[p.pos] == '\'' {
			b.WriteByte('\'')
			p.pos++
			continue
		}
		return b.String(), nil
	}
}

func (p *parser) readLength() (float64, error) {
	if err := p.skip(); err != nil {
		return 0, err
	}
	start := p.pos
	for p.pos < len(p.data) && !isDelim(p.data[p.pos]) {
		p.pos++
	}
	s := string(p.data[start:p.pos])
	if s == "" {
		return 0, p.fail("missing branch length")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.pos = start
		return 0, &errs.ParseError{Offset: start, Msg: "invalid branch length " + strconv.Quote(s), Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &errs.ParseError{Offset: start, Msg: "invalid branch length " + strconv.Quote(s)}
	}
	if v < 0 {
		return 0, &errs.ParseError{Offset: start, Msg: "negative branch length " + s}
	}
	return v, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '[', ']', '\'', ':', ';', ',':
		return true
	}
	return isSpace(c)
}

// needsQuote reports whether a label must be single-quoted to survive a
// round trip.
func needsQuote(s string) bool {
	for i := 0; i < len(s); i++ {
		if isDelim(s[i]) {
			return true
		}
	}
	return false
}

func writeLabel(w *bufio.Writer, s string) {
	if !needsQuote(s) {
		w.WriteString(s)
		return
	}
	w.WriteByte('\'')
	w.WriteString(strings.ReplaceAll(s, "'", "''"))
	w.WriteByte('\'')
}

// FormatLength formats a branch length with the shortest representation
// that parses back to the same float64.
func FormatLength(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeTail(w *bufio.Writer, n *Node) {
	if n.Label != "" {
		writeLabel(w, n.Label)
	}
	if n.HasLength {
		w.WriteByte(':')
		w.WriteString(FormatLength(n.Length))
	}
}

// Write writes the tree in Newick format followed by ";\n".
func Write(out io.Writer, t *Tree) error {
	w := bufio.NewWriter(out)
	if t != nil && t.Root != nil {
		type frame struct {
			n    *Node
			next int
		}
		var stack []frame
		if t.Root.IsLeaf() {
			writeTail(w, t.Root)
		} else {
			w.WriteByte('(')
			stack = append(stack, frame{n: t.Root})
		}
		for len(stack) > 0 {
			f := &stack[len(stack)-1]
			if f.next == len(f.n.Children) {
				w.WriteByte(')')
				writeTail(w, f.n)
				stack = stack[:len(stack)-1]
				continue
			}
			if f.next > 0 {
				w.WriteByte(',')
			}
			c := f.n.Children[f.next]
			f.next++
			if c.IsLeaf() {
				writeTail(w, c)
				continue
			}
			w.WriteByte('(')
			stack = append(stack, frame{n: c})
		}
	}
	w.WriteString(";\n")
	return w.Flush()
}

// String returns the Newick representation of the tree, without the
// trailing newline.
func (t *Tree) String() string {
	var b strings.Builder
	_ = Write(&b, t)
	return strings.TrimSuffix(b.String(), "\n")
}
