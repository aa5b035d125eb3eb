// Package synth is a template engine that speaks several template dialects
// through one parsing and rendering kernel.
//
// # Quick Start
//
//	engine := synth.New(django.Dialect())
//	tmpl, err := engine.Parse("Hello {{ name|upper }}!")
//	if err != nil {
//	    return err
//	}
//	out, err := tmpl.Render(synth.NewContext(map[string]any{"name": "World"}), nil)
//	// out == "Hello WORLD!"
//
// # Dialects
//
// A Dialect bundles a grammar, one Handler per tag the grammar recognizes and
// a failure policy. The django, ssi and tmpl packages provide ready-made
// dialects; a new one needs nothing beyond this package and the grammar
// package.
//
// Parsing produces a Template holding an immutable match tree. Rendering
// walks the tree: text is copied to the output, tags are dispatched to their
// handlers, which in turn may render nested bodies.
//
// # Failure policy
//
// When Dialect.FailSoft is false, the first error aborts the render and is
// returned; whatever was written before stays in the output. When it is
// true, a failing tag is replaced by Options.ErrorValue, the error is logged
// and rendering continues with the next node.
//
// # Libraries
//
// Tags and filters come in Libraries. Options.Builtins are always
// available; other libraries are imported by name through Options.Load,
// which consults Options.Libraries and then every Loader in order.
//
// # Errors
//
// Every error raised by the kernel is an *Error. Its Kind can be matched
// with errors.Is:
//
//	if errors.Is(err, synth.ErrMissingLibrary) { ... }
package synth

import (
	serrors "github.com/ajg/synth/internal/errors"
	"github.com/ajg/synth/value"
)

// Error is an error raised while parsing or rendering a template.
type Error = serrors.Error

// ErrorKind describes the category of an Error.
type ErrorKind = serrors.ErrorKind

const (
	ErrParse                = serrors.ErrParse
	ErrUnsupportedOperation = serrors.ErrUnsupportedOperation
	ErrConversion           = serrors.ErrConversion
	ErrMissingVariable      = serrors.ErrMissingVariable
	ErrMissingAttribute     = serrors.ErrMissingAttribute
	ErrMissingKey           = serrors.ErrMissingKey
	ErrMissingLibrary       = serrors.ErrMissingLibrary
	ErrMissingTag           = serrors.ErrMissingTag
	ErrMissingFilter        = serrors.ErrMissingFilter
	ErrNotInDerivedTemplate = serrors.ErrNotInDerivedTemplate
	ErrNotInDerivedBlock    = serrors.ErrNotInDerivedBlock
	ErrMissingTemplate      = serrors.ErrMissingTemplate
	ErrInvalidArgument      = serrors.ErrInvalidArgument
	ErrRecursionLimit       = serrors.ErrRecursionLimit
)

// NewError creates an error of the given kind.
func NewError(kind ErrorKind, msg string) *Error {
	return serrors.New(kind, msg)
}

// Errorf creates an error of the given kind with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return serrors.Newf(kind, format, args...)
}

// Value is a dynamically typed template value.
type Value = value.Value
