package value

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	serrors "github.com/ajg/synth/internal/errors"
)

// Pair is a two-element value. Iterating a map yields one Pair per entry.
type Pair struct {
	First, Second Value
}

// NewPair builds a Pair Value.
func NewPair(first, second any) Value {
	return Value{a: pairAdapter{p: Pair{First: Of(first), Second: Of(second)}}}
}

// Tuple is a fixed, heterogeneous sequence of values.
type Tuple []Value

// NewTuple builds a Tuple Value.
func NewTuple(items ...any) Value {
	t := make(Tuple, len(items))
	for i, x := range items {
		t[i] = Of(x)
	}
	return Value{a: tupleAdapter{items: t}}
}

var (
	typePair  = reflect.TypeFor[Pair]()
	typeTuple = reflect.TypeFor[Tuple]()
)

func parseIndex(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

// position resolves key as a possibly negative index into n elements.
func position(key Value, n int) (int, bool) {
	if !key.IsNumeric() && !key.IsString() {
		return 0, false
	}
	i, err := key.Int()
	if err != nil {
		return 0, false
	}
	if i < 0 {
		i += int64(n)
	}
	if i < 0 || i >= int64(n) {
		return 0, false
	}
	return int(i), true
}

func joinRepr(open, close string, items []Value) string {
	parts := make([]string, len(items))
	for i, v := range items {
		parts[i] = v.Repr()
	}
	return open + strings.Join(parts, ", ") + close
}

func equalItems(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func lessItems(a, b []Value) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c < 0
		}
	}
	return len(a) < len(b)
}

// ----------------------------------------------------------------------------
// slices and arrays
// ----------------------------------------------------------------------------

type seqAdapter struct {
	rv reflect.Value
}

func (a seqAdapter) Type() reflect.Type { return a.rv.Type() }
func (a seqAdapter) Kind() Kind         { return KindSeq }
func (a seqAdapter) Interface() any     { return a.rv.Interface() }
func (a seqAdapter) Len() int           { return a.rv.Len() }
func (a seqAdapter) Truth() bool        { return a.rv.Len() > 0 }
func (a seqAdapter) item(i int) Value   { return Of(a.rv.Index(i).Interface()) }

func (a seqAdapter) items() []Value {
	out := make([]Value, a.rv.Len())
	for i := range out {
		out[i] = a.item(i)
	}
	return out
}

func (a seqAdapter) Cursor() (Cursor, bool) {
	return IndexCursor(a.rv.Len(), a.item), true
}

func (a seqAdapter) Index(key Value) (Value, bool) {
	i, ok := position(key, a.rv.Len())
	if !ok {
		return Value{}, false
	}
	return a.item(i), true
}

func (a seqAdapter) Text() string { return joinRepr("[", "]", a.items()) }

func (a seqAdapter) Equal(o Adapter) bool {
	b, ok := o.(seqAdapter)
	return ok && equalItems(a.items(), b.items())
}

func (a seqAdapter) Less(o Adapter) bool {
	b, ok := o.(seqAdapter)
	return ok && lessItems(a.items(), b.items())
}

// ----------------------------------------------------------------------------
// Tuple
// ----------------------------------------------------------------------------

type tupleAdapter struct {
	items Tuple
}

func (a tupleAdapter) Type() reflect.Type { return typeTuple }
func (a tupleAdapter) Kind() Kind         { return KindSeq }
func (a tupleAdapter) Interface() any     { return a.items }
func (a tupleAdapter) Len() int           { return len(a.items) }
func (a tupleAdapter) Truth() bool        { return len(a.items) > 0 }
func (a tupleAdapter) Text() string       { return joinRepr("(", ")", a.items) }

func (a tupleAdapter) Cursor() (Cursor, bool) {
	return IndexCursor(len(a.items), func(i int) Value { return a.items[i] }), true
}

func (a tupleAdapter) Index(key Value) (Value, bool) {
	i, ok := position(key, len(a.items))
	if !ok {
		return Value{}, false
	}
	return a.items[i], true
}

func (a tupleAdapter) Equal(o Adapter) bool {
	b, ok := o.(tupleAdapter)
	return ok && equalItems(a.items, b.items)
}

func (a tupleAdapter) Less(o Adapter) bool {
	b, ok := o.(tupleAdapter)
	return ok && lessItems(a.items, b.items)
}

// ----------------------------------------------------------------------------
// Pair
// ----------------------------------------------------------------------------

type pairAdapter struct {
	p Pair
}

func (a pairAdapter) Type() reflect.Type { return typePair }
func (a pairAdapter) Kind() Kind         { return KindPair }
func (a pairAdapter) Interface() any     { return a.p }
func (a pairAdapter) Len() int           { return 2 }
func (a pairAdapter) Truth() bool        { return true }
func (a pairAdapter) slice() []Value     { return []Value{a.p.First, a.p.Second} }

func (a pairAdapter) Text() string { return joinRepr("(", ")", a.slice()) }

func (a pairAdapter) Cursor() (Cursor, bool) {
	items := a.slice()
	return IndexCursor(2, func(i int) Value { return items[i] }), true
}

func (a pairAdapter) Attribute(key Value) (Value, bool) {
	switch key.String() {
	case "first", "key":
		return a.p.First, true
	case "second", "value":
		return a.p.Second, true
	}
	return Value{}, false
}

func (a pairAdapter) Index(key Value) (Value, bool) {
	i, ok := position(key, 2)
	if !ok {
		return Value{}, false
	}
	return a.slice()[i], true
}

func (a pairAdapter) Equal(o Adapter) bool {
	b, ok := o.(pairAdapter)
	return ok && equalItems(a.slice(), b.slice())
}

func (a pairAdapter) Less(o Adapter) bool {
	b, ok := o.(pairAdapter)
	return ok && lessItems(a.slice(), b.slice())
}

// ----------------------------------------------------------------------------
// maps
// ----------------------------------------------------------------------------

// mapAdapter iterates entries in ascending key order. The order is computed
// once when the Value is built.
type mapAdapter struct {
	rv   reflect.Value
	keys []reflect.Value
}

func newMapAdapter(rv reflect.Value) mapAdapter {
	keys := rv.MapKeys()
	slices.SortFunc(keys, func(x, y reflect.Value) int {
		return Compare(Of(x.Interface()), Of(y.Interface()))
	})
	return mapAdapter{rv: rv, keys: keys}
}

func (a mapAdapter) Type() reflect.Type { return a.rv.Type() }
func (a mapAdapter) Kind() Kind         { return KindMap }
func (a mapAdapter) Interface() any     { return a.rv.Interface() }
func (a mapAdapter) Len() int           { return len(a.keys) }
func (a mapAdapter) Truth() bool        { return len(a.keys) > 0 }

func (a mapAdapter) entry(i int) Value {
	k := a.keys[i]
	return Value{a: pairAdapter{p: Pair{
		First:  Of(k.Interface()),
		Second: Of(a.rv.MapIndex(k).Interface()),
	}}}
}

func (a mapAdapter) Cursor() (Cursor, bool) {
	return IndexCursor(len(a.keys), a.entry), true
}

// Keys returns the map keys in iteration order.
func (a mapAdapter) Keys() []Value {
	out := make([]Value, len(a.keys))
	for i, k := range a.keys {
		out[i] = Of(k.Interface())
	}
	return out
}

func (a mapAdapter) Attribute(key Value) (Value, bool) {
	if a.rv.IsNil() {
		return Value{}, false
	}
	k, ok := toReflect(key, a.rv.Type().Key())
	if !ok {
		return Value{}, false
	}
	v := a.rv.MapIndex(k)
	if !v.IsValid() {
		return Value{}, false
	}
	return Of(v.Interface()), true
}

func (a mapAdapter) Index(key Value) (Value, bool) {
	return a.Attribute(key)
}

func (a mapAdapter) WithAttribute(key, val Value) (Adapter, error) {
	t := a.rv.Type()
	k, ok := toReflect(key, t.Key())
	if !ok {
		return nil, serrors.Newf(serrors.ErrConversion, "cannot use %s as a key of %s", key.Repr(), t)
	}
	m := reflect.MakeMapWithSize(t, a.rv.Len()+1)
	iter := a.rv.MapRange()
	for iter.Next() {
		m.SetMapIndex(iter.Key(), iter.Value())
	}
	if val.IsNone() {
		m.SetMapIndex(k, reflect.Value{})
	} else {
		v, ok := toReflect(val, t.Elem())
		if !ok {
			return nil, serrors.Newf(serrors.ErrConversion, "cannot store %s in %s", val.Repr(), t)
		}
		m.SetMapIndex(k, v)
	}
	return newMapAdapter(m), nil
}

func (a mapAdapter) Text() string {
	parts := make([]string, len(a.keys))
	for i := range a.keys {
		p := a.entry(i).a.(pairAdapter).p
		parts[i] = p.First.Repr() + ": " + p.Second.Repr()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (a mapAdapter) Equal(o Adapter) bool {
	b, ok := o.(mapAdapter)
	if !ok || len(a.keys) != len(b.keys) {
		return false
	}
	for i := range a.keys {
		if !Equal(a.entry(i), b.entry(i)) {
			return false
		}
	}
	return true
}

// toReflect converts v to a reflect.Value assignable to t.
func toReflect(v Value, t reflect.Type) (reflect.Value, bool) {
	if t == reflect.TypeFor[Value]() {
		return reflect.ValueOf(v), true
	}
	if v.IsNone() {
		return reflect.Zero(t), true
	}
	x := v.Interface()
	if x == nil {
		return reflect.Zero(t), true
	}
	rv := reflect.ValueOf(x)
	if rv.Type().AssignableTo(t) {
		return rv, true
	}
	switch t.Kind() {
	case reflect.String:
		s, err := v.Text()
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(s).Convert(t), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := v.Int()
		if err != nil {
			return reflect.Value{}, false
		}
		out := reflect.New(t).Elem()
		if out.OverflowInt(i) {
			return reflect.Value{}, false
		}
		out.SetInt(i)
		return out, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		i, err := v.Int()
		if err != nil || i < 0 {
			return reflect.Value{}, false
		}
		out := reflect.New(t).Elem()
		if out.OverflowUint(uint64(i)) {
			return reflect.Value{}, false
		}
		out.SetUint(uint64(i))
		return out, true
	case reflect.Float32, reflect.Float64:
		f, err := v.Number()
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(f).Convert(t), true
	case reflect.Bool:
		b, err := v.Bool()
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(b).Convert(t), true
	}
	if rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), true
	}
	return reflect.Value{}, false
}

// MapOf builds a map Value from a Go map keyed by strings. It is a
// convenience for constructing template data in Go code.
func MapOf(entries map[string]any) Value {
	m := make(map[string]Value, len(entries))
	for k, v := range entries {
		m[k] = Of(v)
	}
	return Of(m)
}

// SeqOf builds a sequence Value from its elements.
func SeqOf(items ...any) Value {
	s := make([]Value, len(items))
	for i, x := range items {
		s[i] = Of(x)
	}
	return Of(s)
}

func (p Pair) String() string {
	return fmt.Sprintf("(%s, %s)", p.First.Repr(), p.Second.Repr())
}
