// Package errors defines the error type shared by every synth package.
package errors

import (
	"fmt"
	"log/slog"
	"strings"
)

// ErrorKind describes the category of an error.
//
// ErrorKind implements error so that a kind can be used directly as the
// target of errors.Is:
//
//	if errors.Is(err, synth.ErrMissingLibrary) { ... }
type ErrorKind int

const (
	ErrParse ErrorKind = iota
	ErrUnsupportedOperation
	ErrConversion
	ErrMissingVariable
	ErrMissingAttribute
	ErrMissingKey
	ErrMissingLibrary
	ErrMissingTag
	ErrMissingFilter
	ErrNotInDerivedTemplate
	ErrNotInDerivedBlock
	ErrMissingTemplate
	ErrInvalidArgument
	ErrRecursionLimit
)

func (k ErrorKind) String() string {
	switch k {
	case ErrParse:
		return "parse error"
	case ErrUnsupportedOperation:
		return "unsupported operation"
	case ErrConversion:
		return "conversion error"
	case ErrMissingVariable:
		return "missing variable"
	case ErrMissingAttribute:
		return "missing attribute"
	case ErrMissingKey:
		return "missing key"
	case ErrMissingLibrary:
		return "missing library"
	case ErrMissingTag:
		return "missing tag"
	case ErrMissingFilter:
		return "missing filter"
	case ErrNotInDerivedTemplate:
		return "not in derived template"
	case ErrNotInDerivedBlock:
		return "not in derived block"
	case ErrMissingTemplate:
		return "missing template"
	case ErrInvalidArgument:
		return "invalid argument"
	case ErrRecursionLimit:
		return "recursion limit exceeded"
	default:
		return "error"
	}
}

func (k ErrorKind) Error() string { return k.String() }

// Error is an error raised while parsing or rendering a template.
type Error struct {
	Kind    ErrorKind
	Message string

	// Name is the template name, if known.
	Name string

	// Position of the error in the template source. Line and Column are
	// 1-based and zero when unknown.
	Offset int
	Line   int
	Column int

	// Preview is a bounded excerpt of the source at the error position.
	Preview string

	// Suggestions lists known names close to a missing one.
	Suggestions []string

	Err error
}

// New creates an error of the given kind.
func New(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind caused by err.
func Wrap(kind ErrorKind, err error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&b, " (did you mean %s?)", strings.Join(quoteAll(e.Suggestions), ", "))
	}
	switch {
	case e.Name != "" && e.Line > 0:
		fmt.Fprintf(&b, " (at %s line %d column %d)", e.Name, e.Line, e.Column)
	case e.Line > 0:
		fmt.Fprintf(&b, " (at line %d column %d)", e.Line, e.Column)
	case e.Name != "":
		fmt.Fprintf(&b, " (in %s)", e.Name)
	}
	if e.Preview != "" {
		fmt.Fprintf(&b, ": %q", e.Preview)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is this error's kind or an *Error of the same
// kind.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case ErrorKind:
		return e.Kind == t
	case *Error:
		return t != nil && e.Kind == t.Kind && (t.Message == "" || t.Message == e.Message)
	}
	return false
}

// WithName sets the template name unless one is already present.
func (e *Error) WithName(name string) *Error {
	if e.Name == "" {
		e.Name = name
	}
	return e
}

// WithPosition records the byte offset of the error and derives line and
// column from src. An existing position is kept.
func (e *Error) WithPosition(src string, offset int) *Error {
	if e.Line > 0 {
		return e
	}
	if offset > len(src) {
		offset = len(src)
	}
	if offset < 0 {
		offset = 0
	}
	e.Offset = offset
	e.Line, e.Column = LineColumn(src, offset)
	return e
}

// WithSuggestions attaches candidate names for a missing one.
func (e *Error) WithSuggestions(names ...string) *Error {
	e.Suggestions = names
	return e
}

// WithCause records the error that caused e.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// LogValue implements slog.LogValuer.
func (e *Error) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("kind", e.Kind.String()),
		slog.String("msg", e.Message),
	}
	if e.Name != "" {
		attrs = append(attrs, slog.String("template", e.Name))
	}
	if e.Line > 0 {
		attrs = append(attrs, slog.Int("line", e.Line), slog.Int("column", e.Column))
	}
	if len(e.Suggestions) > 0 {
		attrs = append(attrs, slog.Any("suggestions", e.Suggestions))
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("cause", e.Err.Error()))
	}
	return slog.GroupValue(attrs...)
}

// LineColumn returns the 1-based line and column of offset in src.
func LineColumn(src string, offset int) (line, col int) {
	line = 1 + strings.Count(src[:offset], "\n")
	start := strings.LastIndexByte(src[:offset], '\n') + 1
	col = 1 + len([]rune(src[start:offset]))
	return line, col
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = fmt.Sprintf("%q", n)
	}
	return out
}
