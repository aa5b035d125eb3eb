package value

import (
	"io"
	"reflect"
	"time"
)

// Adapter is the per-type strategy behind a Value.
//
// Every Value wraps exactly one Adapter. The built-in adapters cover Go's
// scalar types, time.Time, slices, arrays, maps, structs and the Pair and
// Tuple types of this package; downstream code can adapt its own types by
// implementing Adapter and wrapping it with FromAdapter.
//
// Type is the runtime identity of the adapter: two Values share an adapter
// type exactly when their Type results are identical. Comparisons use this
// identity to decide whether the native comparator applies.
//
// Everything beyond identity is optional. An adapter advertises an operation
// by implementing the matching capability interface (Truther, Numberer,
// Texter, ...). Callers probe capabilities with type assertions, so
// "unsupported" is a property of the adapter type rather than an error
// raised by calling into it.
type Adapter interface {
	// Type returns the identity token of the adapted host type.
	Type() reflect.Type

	// Kind returns the broad category of the adapted value.
	Kind() Kind

	// Interface returns the adapted host value.
	Interface() any
}

// Truther is implemented by adapters that have a truth value.
type Truther interface {
	Truth() bool
}

// Numberer is implemented by adapters that can be coerced to a number.
// The boolean result is false when this particular datum does not convert
// (for example a string that is not numeric).
type Numberer interface {
	Number() (float64, bool)
}

// Integral is implemented by adapters that can produce an exact integer.
type Integral interface {
	Int() (int64, bool)
}

// Texter is implemented by adapters that have a textual form.
type Texter interface {
	Text() string
}

// Timer is implemented by adapters that can be coerced to a time.
type Timer interface {
	Time() (time.Time, bool)
}

// Equaler is implemented by adapters with a native equality. The other
// adapter always has the same Type.
type Equaler interface {
	Equal(other Adapter) bool
}

// Orderer is implemented by adapters with a native strict ordering. The
// other adapter always has the same Type.
type Orderer interface {
	Less(other Adapter) bool
}

// Iterable is implemented by adapters that can be traversed. The boolean
// result is false when the particular datum is not traversable.
type Iterable interface {
	Cursor() (Cursor, bool)
}

// Lener is implemented by iterable adapters that know their length without
// walking.
type Lener interface {
	Len() int
}

// Attributer is implemented by adapters with named attributes.
type Attributer interface {
	Attribute(key Value) (Value, bool)
}

// AttributeSetter is implemented by adapters that can produce a copy of
// themselves with one attribute replaced. An empty val deletes the
// attribute.
type AttributeSetter interface {
	WithAttribute(key, val Value) (Adapter, error)
}

// Indexer is implemented by adapters that support container[key] lookup.
type Indexer interface {
	Index(key Value) (Value, bool)
}

// Methoder is implemented by adapters that can call a zero-argument method
// by name.
type Methoder interface {
	Method(name string) (Value, bool)
}

// Formatter is implemented by adapters that write themselves to a stream
// differently from their Text.
type Formatter interface {
	Format(w io.Writer) error
}

// Scanner is implemented by adapters that can parse a new datum of their
// own type from text.
type Scanner interface {
	Scan(text string) (Adapter, error)
}

// Safer is implemented by adapters carrying an "already escaped" marker.
type Safer interface {
	Safe() bool
}

// Forwarder is implemented by optional-like host types. Of resolves a
// Forwarder to the wrapped value, or to the empty Value when ok is false.
type Forwarder interface {
	Forward() (v any, ok bool)
}
