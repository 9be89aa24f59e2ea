// Package errs holds the error kinds shared by the tree, alignment,
// decomposition and writer packages.
//
// Every error type matches its sentinel through errors.Is, so callers can
// classify without type assertions:
//
//	if errors.Is(err, errs.ErrParse) { ... }
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Defining possible error
var (
	ErrParse         = errors.New("parse error")
	ErrConfiguration = errors.New("configuration error")
	ErrConsistency   = errors.New("consistency error")
	ErrMissingLabel  = errors.New("missing label")
	ErrIO            = errors.New("i/o error")
)

// Process exit codes.
const (
	ExitOk   = iota // success
	ExitErr         // any processing error
	ExitArgs        // invalid arguments or configuration
	ExitIn          // error while reading input
	ExitOut         // error while writing output
)

// ParseError reports malformed tree or alignment text.
type ParseError struct {
	Source string // file name, empty for in-memory input
	Line   int    // 1-based line, 0 when unknown
	Offset int    // byte offset, -1 when unknown
	Msg    string
	Err    error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse")
	if e.Source != "" {
		fmt.Fprintf(&b, " %s", e.Source)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " line %d", e.Line)
	}
	if e.Offset >= 0 {
		fmt.Fprintf(&b, " offset %d", e.Offset)
	}
	fmt.Fprintf(&b, ": %s", e.Msg)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ParseError) Unwrap() error        { return e.Err }
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// WithSource sets the file name on a ParseError found in err's chain.
// Other errors are returned unchanged.
func WithSource(err error, source string) error {
	var pe *ParseError
	if errors.As(err, &pe) && pe.Source == "" {
		pe.Source = source
	}
	return err
}

// ConfigurationError reports a missing or invalid parameter.
type ConfigurationError struct {
	Field string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration: %s", e.Msg)
	}
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Msg)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// NewConfigurationError is a shorthand used by validators.
func NewConfigurationError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// ConsistencyError reports tree leaves and alignment labels that do not
// correspond.
type ConsistencyError struct {
	MissingSequences []string // leaves without a sequence
	ExtraSequences   []string // sequences without a leaf
}

// maxListed caps the labels quoted in a ConsistencyError message.
const maxListed = 5

func (e *ConsistencyError) Error() string {
	var parts []string
	if n := len(e.MissingSequences); n > 0 {
		parts = append(parts, fmt.Sprintf("%d tree leaves without sequence (%s)", n, listLabels(e.MissingSequences)))
	}
	if n := len(e.ExtraSequences); n > 0 {
		parts = append(parts, fmt.Sprintf("%d sequences without tree leaf (%s)", n, listLabels(e.ExtraSequences)))
	}
	return "consistency: " + strings.Join(parts, "; ")
}

func (e *ConsistencyError) Is(target error) bool { return target == ErrConsistency }

func listLabels(labels []string) string {
	if len(labels) <= maxListed {
		return strings.Join(labels, ", ")
	}
	return strings.Join(labels[:maxListed], ", ") + ", ..."
}

// MissingLabelError reports a requested label that does not exist.
type MissingLabelError struct {
	Label string
	In    string // "tree" or "alignment"
}

func (e *MissingLabelError) Error() string {
	return fmt.Sprintf("label %q not found in %s", e.Label, e.In)
}

func (e *MissingLabelError) Is(target error) bool { return target == ErrMissingLabel }

// IOError reports a file that cannot be read or written.
type IOError struct {
	Op   string // "read", "write", "create", ...
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error        { return e.Err }
func (e *IOError) Is(target error) bool { return target == ErrIO }

// Reading reports whether the failed operation was on the input side.
func (e *IOError) Reading() bool {
	return e.Op == "read" || e.Op == "open"
}

// ExitCode classifies err into a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOk
	}
	var ioErr *IOError
	switch {
	case errors.Is(err, ErrConfiguration):
		return ExitArgs
	case errors.Is(err, ErrParse), errors.Is(err, ErrConsistency), errors.Is(err, ErrMissingLabel):
		return ExitIn
	case errors.As(err, &ioErr):
		if ioErr.Reading() {
			return ExitIn
		}
		return ExitOut
	}
	return ExitErr
}
