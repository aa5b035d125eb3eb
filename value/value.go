// Package value provides the dynamic value type used by synth templates.
//
// Templates manipulate host data without knowing its Go type. A Value wraps
// one Adapter, a small strategy object that knows how to treat a particular
// Go type as a boolean, a number, text, a time, a sequence or a mapping.
//
// # Constructing values
//
// Of adapts any Go value:
//
//	v := value.Of(map[string]any{
//	    "name":  "World",
//	    "items": []int{1, 2, 3},
//	})
//
// Pointers, interfaces, driver.Valuer implementations (sql.NullString and
// friends) and Forwarder implementations are resolved when the Value is
// built: a Value never wraps a pointer, it wraps what the pointer points to,
// or nothing at all.
//
// # Capabilities
//
// Operations return an error when the adapter lacks the capability:
//
//	n, err := v.Number()
//	if errors.Is(err, synth.ErrUnsupportedOperation) { ... }
//
// Lookups return a boolean instead:
//
//	name, ok := v.Attribute(value.Of("name"))
//
// # Comparison
//
// Equal and Less use the adapter's native comparator when both operands
// share an adapter type. Otherwise they fall back to boolean, numeric,
// string and sequence comparison, and finally order values by Kind.
package value

import (
	"database/sql/driver"
	"fmt"
	"iter"
	"reflect"
	"strings"
	"time"

	serrors "github.com/ajg/synth/internal/errors"
)

// Kind is the broad category of a Value. Kinds are declared in the order
// used to rank values of unrelated types.
type Kind int

const (
	// KindNone is the empty Value.
	KindNone Kind = iota
	KindBool
	KindNumber
	KindString
	KindTime
	KindPair
	KindSeq
	KindMap
	KindRecord
	KindObject
	// KindOpaque covers values without a textual form, such as funcs,
	// channels and raw pointers.
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	case KindPair:
		return "pair"
	case KindSeq:
		return "sequence"
	case KindMap:
		return "map"
	case KindRecord:
		return "record"
	case KindObject:
		return "object"
	case KindOpaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// Value is a dynamically typed template value.
//
// The zero Value is empty: it wraps no adapter and stands for an absent
// value. Values are immutable and cheap to copy; copies share the adapter.
type Value struct {
	a Adapter
}

// None returns the empty Value.
func None() Value { return Value{} }

// FromAdapter wraps a custom adapter. A nil adapter yields the empty Value.
func FromAdapter(a Adapter) Value { return Value{a: a} }

// Safe returns a string Value marked as already escaped.
func Safe(s string) Value {
	return Value{a: stringAdapter{t: typeString, s: s, safe: true}}
}

// Of adapts a Go value.
func Of(x any) Value {
	switch v := x.(type) {
	case nil:
		return Value{}
	case Value:
		return v
	case Adapter:
		return Value{a: v}
	case string:
		return Value{a: stringAdapter{t: typeString, s: v}}
	case bool:
		return Value{a: boolAdapter{t: typeBool, v: v}}
	case int:
		return Value{a: intAdapter{t: typeInt, v: int64(v)}}
	case int64:
		return Value{a: intAdapter{t: typeInt64, v: v}}
	case float64:
		return Value{a: floatAdapter{t: typeFloat64, v: v}}
	case time.Time:
		return Value{a: timeAdapter{v: v}}
	case Pair:
		return Value{a: pairAdapter{p: v}}
	case Tuple:
		return Value{a: tupleAdapter{items: v}}
	case Forwarder:
		if isNilPointer(x) {
			return Value{}
		}
		inner, ok := v.Forward()
		if !ok {
			return Value{}
		}
		return Of(inner)
	case driver.Valuer:
		if isNilPointer(x) {
			return Value{}
		}
		inner, err := v.Value()
		if err != nil || inner == nil {
			return Value{}
		}
		return Of(inner)
	case Object:
		if isNilPointer(x) {
			return Value{}
		}
		return Value{a: objectAdapter{o: v}}
	}
	return ofReflect(reflect.ValueOf(x))
}

func ofReflect(rv reflect.Value) Value {
	switch rv.Kind() {
	case reflect.Invalid:
		return Value{}
	case reflect.Pointer:
		if rv.IsNil() {
			return Value{}
		}
		if rv.Elem().Kind() == reflect.Struct && rv.Elem().Type() != typeTime {
			return Value{a: newRecordAdapter(rv)}
		}
		return Of(rv.Elem().Interface())
	case reflect.Interface:
		if rv.IsNil() {
			return Value{}
		}
		return Of(rv.Elem().Interface())
	case reflect.Bool:
		return Value{a: boolAdapter{t: rv.Type(), v: rv.Bool()}}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Value{a: intAdapter{t: rv.Type(), v: rv.Int()}}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Value{a: uintAdapter{t: rv.Type(), v: rv.Uint()}}
	case reflect.Float32, reflect.Float64:
		return Value{a: floatAdapter{t: rv.Type(), v: rv.Float()}}
	case reflect.String:
		return Value{a: stringAdapter{t: rv.Type(), s: rv.String()}}
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return Value{a: stringAdapter{t: rv.Type(), s: string(rv.Bytes())}}
		}
		return Value{a: seqAdapter{rv: rv}}
	case reflect.Array:
		return Value{a: seqAdapter{rv: rv}}
	case reflect.Map:
		return Value{a: newMapAdapter(rv)}
	case reflect.Struct:
		if rv.Type() == typeTime {
			return Value{a: timeAdapter{v: rv.Interface().(time.Time)}}
		}
		return Value{a: newRecordAdapter(rv)}
	default:
		return Value{a: opaqueAdapter{rv: rv}}
	}
}

func isNilPointer(x any) bool {
	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// Adapter returns the wrapped adapter, or nil for the empty Value.
func (v Value) Adapter() Adapter { return v.a }

// Kind returns the category of the value.
func (v Value) Kind() Kind {
	if v.a == nil {
		return KindNone
	}
	return v.a.Kind()
}

// Type returns the adapter identity, or nil for the empty Value.
func (v Value) Type() reflect.Type {
	if v.a == nil {
		return nil
	}
	return v.a.Type()
}

// SameType reports whether v and other share an adapter type.
func (v Value) SameType(other Value) bool {
	return v.Type() == other.Type()
}

// Interface returns the adapted Go value, or nil for the empty Value.
func (v Value) Interface() any {
	if v.a == nil {
		return nil
	}
	return v.a.Interface()
}

// IsNone reports whether v is empty.
func (v Value) IsNone() bool { return v.a == nil }

// IsBool reports whether v adapts a boolean.
func (v Value) IsBool() bool { return v.Kind() == KindBool }

// IsNumeric reports whether v adapts a number.
func (v Value) IsNumeric() bool { return v.Kind() == KindNumber }

// IsString reports whether v adapts a string.
func (v Value) IsString() bool { return v.Kind() == KindString }

// IsTime reports whether v adapts a time.
func (v Value) IsTime() bool { return v.Kind() == KindTime }

// IsIterable reports whether v can be traversed. The empty Value is
// iterable and yields nothing.
func (v Value) IsIterable() bool {
	if v.a == nil {
		return true
	}
	_, ok := v.cursor()
	return ok
}

// IsSafe reports whether v is a string marked as already escaped.
func (v Value) IsSafe() bool {
	s, ok := v.a.(Safer)
	return ok && s.Safe()
}

// Bool returns the truth value of v. The empty Value is false.
func (v Value) Bool() (bool, error) {
	if v.a == nil {
		return false, nil
	}
	if t, ok := v.a.(Truther); ok {
		return t.Truth(), nil
	}
	return false, unsupported("to_boolean", v)
}

// Truth is Bool with unsupported values treated as true.
func (v Value) Truth() bool {
	if v.a == nil {
		return false
	}
	b, err := v.Bool()
	if err != nil {
		return true
	}
	return b
}

// Number coerces v to a float64.
func (v Value) Number() (float64, error) {
	n, ok := v.a.(Numberer)
	if !ok {
		return 0, unsupported("to_number", v)
	}
	f, ok := n.Number()
	if !ok {
		return 0, conversion("number", v)
	}
	return f, nil
}

// Int coerces v to an int64, truncating non-integral numbers.
func (v Value) Int() (int64, error) {
	if n, ok := v.a.(Integral); ok {
		if i, ok := n.Int(); ok {
			return i, nil
		}
	}
	f, err := v.Number()
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

// Text coerces v to a string. The empty Value is the empty string.
func (v Value) Text() (string, error) {
	if v.a == nil {
		return "", nil
	}
	t, ok := v.a.(Texter)
	if !ok {
		return "", unsupported("to_string", v)
	}
	return t.Text(), nil
}

// String implements fmt.Stringer. Values without a textual form render as
// their type in angle brackets.
func (v Value) String() string {
	s, err := v.Text()
	if err != nil {
		return "<" + v.Type().String() + ">"
	}
	return s
}

// Time coerces v to a time.Time.
func (v Value) Time() (time.Time, error) {
	t, ok := v.a.(Timer)
	if !ok {
		return time.Time{}, unsupported("to_datetime", v)
	}
	tm, ok := t.Time()
	if !ok {
		return time.Time{}, conversion("time", v)
	}
	return tm, nil
}

// Len returns the number of elements of an iterable value.
func (v Value) Len() (int, error) {
	if v.a == nil {
		return 0, nil
	}
	if l, ok := v.a.(Lener); ok {
		return l.Len(), nil
	}
	begin, err := v.Begin()
	if err != nil {
		return 0, err
	}
	end, _ := v.End()
	return Distance(begin, end), nil
}

// Empty reports whether an iterable value has no elements.
func (v Value) Empty() (bool, error) {
	n, err := v.Len()
	return n == 0, err
}

func (v Value) cursor() (Cursor, bool) {
	it, ok := v.a.(Iterable)
	if !ok {
		return nil, false
	}
	return it.Cursor()
}

// Begin returns an iterator positioned at the first element.
func (v Value) Begin() (Iterator, error) {
	if v.a == nil {
		return Iterator{}, nil
	}
	c, ok := v.cursor()
	if !ok {
		return Iterator{}, unsupported("iterate", v)
	}
	return NewIterator(c), nil
}

// End returns an exhausted iterator over v.
func (v Value) End() (Iterator, error) {
	if v.a == nil {
		return Iterator{}, nil
	}
	c, ok := v.cursor()
	if !ok {
		return Iterator{}, unsupported("iterate", v)
	}
	return NewIterator(exhausted(c)), nil
}

// All returns a sequence over the elements of v. Non-iterable values yield
// nothing.
func (v Value) All() iter.Seq[Value] {
	return func(yield func(Value) bool) {
		it, err := v.Begin()
		if err != nil {
			return
		}
		for ; !it.Done(); it.Next() {
			if !yield(it.Value()) {
				return
			}
		}
	}
}

// Items collects the elements of v.
func (v Value) Items() ([]Value, error) {
	it, err := v.Begin()
	if err != nil {
		return nil, err
	}
	var out []Value
	for ; !it.Done(); it.Next() {
		out = append(out, it.Value())
	}
	return out, nil
}

// Attribute looks up a named attribute: a map key, a record field or an
// object attribute.
func (v Value) Attribute(key Value) (Value, bool) {
	a, ok := v.a.(Attributer)
	if !ok {
		return Value{}, false
	}
	return a.Attribute(key)
}

// Attr is Attribute with a string key.
func (v Value) Attr(name string) (Value, bool) {
	return v.Attribute(Of(name))
}

// WithAttribute returns a copy of v with the attribute key set to val. An
// empty val deletes the attribute.
func (v Value) WithAttribute(key, val Value) (Value, error) {
	s, ok := v.a.(AttributeSetter)
	if !ok {
		return v, unsupported("set_attribute", v)
	}
	a, err := s.WithAttribute(key, val)
	if err != nil {
		return v, err
	}
	return Value{a: a}, nil
}

// Index looks up container[key].
func (v Value) Index(key Value) (Value, bool) {
	ix, ok := v.a.(Indexer)
	if !ok {
		return Value{}, false
	}
	return ix.Index(key)
}

// Method calls a zero-argument method by name.
func (v Value) Method(name string) (Value, bool) {
	m, ok := v.a.(Methoder)
	if !ok {
		return Value{}, false
	}
	return m.Method(name)
}

// Resolve looks name up as an attribute, then as a zero-argument method,
// then as a numeric index.
func (v Value) Resolve(name string) (Value, bool) {
	if r, ok := v.Attr(name); ok {
		return r, true
	}
	if r, ok := v.Method(name); ok {
		return r, true
	}
	if n, ok := parseIndex(name); ok {
		return v.Index(Of(n))
	}
	return Value{}, false
}

// Repr returns a debugging representation of v with strings quoted.
func (v Value) Repr() string {
	switch v.Kind() {
	case KindNone:
		return "None"
	case KindString:
		s, _ := v.Text()
		return quote(s)
	case KindTime, KindOpaque:
		return v.String()
	}
	if t, ok := v.a.(Texter); ok {
		return t.Text()
	}
	return v.String()
}

// GoString implements fmt.GoStringer.
func (v Value) GoString() string {
	return fmt.Sprintf("value.Value{%s: %s}", v.Kind(), v.Repr())
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), "'", `\'`) + "'"
}

func unsupported(op string, v Value) error {
	return serrors.Newf(serrors.ErrUnsupportedOperation, "%s is not supported by %s", op, describe(v))
}

func conversion(to string, v Value) error {
	return serrors.Newf(serrors.ErrConversion, "cannot convert %s to %s", describe(v), to)
}

func describe(v Value) string {
	if v.a == nil {
		return "none"
	}
	return fmt.Sprintf("%s (%s)", v.Kind(), v.Type())
}
