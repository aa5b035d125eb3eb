package value

import (
	"fmt"
	"iter"
	"reflect"
	"slices"
	"strings"
	"sync"
	"unicode"

	serrors "github.com/ajg/synth/internal/errors"
)

// Object is implemented by host types that expose attributes dynamically.
//
// Example implementation:
//
//	type User struct {
//	    name string
//	}
//
//	func (u *User) Attribute(name string) (value.Value, bool) {
//	    if name == "name" {
//	        return value.Of(u.name), true
//	    }
//	    return value.None(), false
//	}
//
// An Object may additionally implement any of the following to unlock more
// template operations:
//
//   - fmt.Stringer for its textual form
//   - MethodObject to serve zero-argument method calls
//   - SeqObject or IterObject to be iterable
//   - Truther for a custom truth value
type Object interface {
	Attribute(name string) (Value, bool)
}

// MethodObject serves zero-argument method calls by name.
type MethodObject interface {
	Object
	Method(name string) (Value, bool)
}

// SeqObject behaves like an indexed sequence.
type SeqObject interface {
	Object
	Len() int
	Item(i int) Value
}

// IterObject produces its elements as a sequence.
type IterObject interface {
	Object
	Iterate() iter.Seq[Value]
}

// ----------------------------------------------------------------------------
// foreign objects
// ----------------------------------------------------------------------------

type objectAdapter struct {
	o Object
}

func (a objectAdapter) Type() reflect.Type { return reflect.TypeOf(a.o) }
func (a objectAdapter) Kind() Kind         { return KindObject }
func (a objectAdapter) Interface() any     { return a.o }

func (a objectAdapter) Truth() bool {
	if t, ok := a.o.(Truther); ok {
		return t.Truth()
	}
	if s, ok := a.o.(SeqObject); ok {
		return s.Len() > 0
	}
	return true
}

func (a objectAdapter) Text() string {
	if s, ok := a.o.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("<%s>", reflect.TypeOf(a.o))
}

func (a objectAdapter) Attribute(key Value) (Value, bool) {
	name, err := key.Text()
	if err != nil {
		return Value{}, false
	}
	return a.o.Attribute(name)
}

func (a objectAdapter) Method(name string) (Value, bool) {
	if m, ok := a.o.(MethodObject); ok {
		return m.Method(name)
	}
	return callMethod(reflect.ValueOf(a.o), name)
}

func (a objectAdapter) Cursor() (Cursor, bool) {
	switch o := a.o.(type) {
	case SeqObject:
		return IndexCursor(o.Len(), o.Item), true
	case IterObject:
		items := slices.Collect(o.Iterate())
		return IndexCursor(len(items), func(i int) Value { return items[i] }), true
	}
	return nil, false
}

func (a objectAdapter) Index(key Value) (Value, bool) {
	if s, ok := a.o.(SeqObject); ok {
		i, ok := position(key, s.Len())
		if !ok {
			return Value{}, false
		}
		return s.Item(i), true
	}
	return a.Attribute(key)
}

func (a objectAdapter) Equal(o Adapter) bool {
	b, ok := o.(objectAdapter)
	if !ok {
		return false
	}
	if reflect.TypeOf(a.o).Comparable() {
		return a.o == b.o
	}
	return reflect.DeepEqual(a.o, b.o)
}

// ----------------------------------------------------------------------------
// records (structs)
// ----------------------------------------------------------------------------

type field struct {
	name  string
	index []int
}

// fieldCache maps a struct type to its exported fields.
var fieldCache sync.Map

func fieldsOf(t reflect.Type) []field {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]field)
	}
	var fields []field
	for _, sf := range reflect.VisibleFields(t) {
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		name := sf.Name
		if tag, ok := sf.Tag.Lookup("synth"); ok {
			name = tagName(tag, name)
		} else if tag, ok := sf.Tag.Lookup("json"); ok {
			name = tagName(tag, name)
		}
		if name == "-" {
			continue
		}
		fields = append(fields, field{name: name, index: sf.Index})
	}
	actual, _ := fieldCache.LoadOrStore(t, fields)
	return actual.([]field)
}

func tagName(tag, fallback string) string {
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return fallback
	}
	return name
}

// recordAdapter adapts a struct. ptr is set when the struct was reached
// through a pointer, so that pointer-receiver methods stay callable.
type recordAdapter struct {
	rv  reflect.Value
	ptr reflect.Value
}

func newRecordAdapter(rv reflect.Value) recordAdapter {
	if rv.Kind() == reflect.Pointer {
		return recordAdapter{rv: rv.Elem(), ptr: rv}
	}
	return recordAdapter{rv: rv}
}

func (a recordAdapter) Type() reflect.Type { return a.rv.Type() }
func (a recordAdapter) Kind() Kind         { return KindRecord }
func (a recordAdapter) Truth() bool        { return true }

func (a recordAdapter) Interface() any {
	if a.ptr.IsValid() {
		return a.ptr.Interface()
	}
	return a.rv.Interface()
}

func (a recordAdapter) Text() string {
	if s, ok := a.Interface().(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%+v", a.rv.Interface())
}

func (a recordAdapter) lookup(name string) (field, bool) {
	fields := fieldsOf(a.rv.Type())
	for _, f := range fields {
		if f.name == name {
			return f, true
		}
	}
	for _, f := range fields {
		if strings.EqualFold(f.name, name) {
			return f, true
		}
	}
	return field{}, false
}

func (a recordAdapter) Attribute(key Value) (Value, bool) {
	name, err := key.Text()
	if err != nil {
		return Value{}, false
	}
	f, ok := a.lookup(name)
	if !ok {
		return Value{}, false
	}
	fv, err := a.rv.FieldByIndexErr(f.index)
	if err != nil {
		return Value{}, false
	}
	return Of(fv.Interface()), true
}

func (a recordAdapter) Index(key Value) (Value, bool) {
	return a.Attribute(key)
}

func (a recordAdapter) Len() int { return len(fieldsOf(a.rv.Type())) }

// Cursor yields one Pair of field name and field value per exported field.
func (a recordAdapter) Cursor() (Cursor, bool) {
	fields := fieldsOf(a.rv.Type())
	return IndexCursor(len(fields), func(i int) Value {
		fv, err := a.rv.FieldByIndexErr(fields[i].index)
		if err != nil {
			return NewPair(fields[i].name, nil)
		}
		return NewPair(fields[i].name, fv.Interface())
	}), true
}

func (a recordAdapter) Method(name string) (Value, bool) {
	if a.ptr.IsValid() {
		if v, ok := callMethod(a.ptr, name); ok {
			return v, true
		}
	}
	return callMethod(a.rv, name)
}

func (a recordAdapter) WithAttribute(key, val Value) (Adapter, error) {
	name, err := key.Text()
	if err != nil {
		return nil, err
	}
	f, ok := a.lookup(name)
	if !ok {
		return nil, serrors.Newf(serrors.ErrMissingAttribute, "%s has no field %q", a.rv.Type(), name)
	}
	cp := reflect.New(a.rv.Type())
	cp.Elem().Set(a.rv)
	dst, err := cp.Elem().FieldByIndexErr(f.index)
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrMissingAttribute, err, name)
	}
	src, ok := toReflect(val, dst.Type())
	if !ok {
		return nil, serrors.Newf(serrors.ErrConversion, "cannot store %s in field %q", val.Repr(), name)
	}
	dst.Set(src)
	if a.ptr.IsValid() {
		return recordAdapter{rv: cp.Elem(), ptr: cp}, nil
	}
	return recordAdapter{rv: cp.Elem()}, nil
}

func (a recordAdapter) Equal(o Adapter) bool {
	b, ok := o.(recordAdapter)
	return ok && reflect.DeepEqual(a.rv.Interface(), b.rv.Interface())
}

// callMethod calls a zero-argument method named name, or its exported
// CamelCase spelling (get_name becomes GetName). The method must return one
// value, or a value and an error.
func callMethod(rv reflect.Value, name string) (Value, bool) {
	if !rv.IsValid() {
		return Value{}, false
	}
	m := rv.MethodByName(name)
	if !m.IsValid() {
		m = rv.MethodByName(exportedName(name))
	}
	if !m.IsValid() {
		return Value{}, false
	}
	mt := m.Type()
	if mt.NumIn() != 0 {
		return Value{}, false
	}
	switch mt.NumOut() {
	case 1:
		return Of(m.Call(nil)[0].Interface()), true
	case 2:
		if !mt.Out(1).Implements(reflect.TypeFor[error]()) {
			return Value{}, false
		}
		out := m.Call(nil)
		if !out[1].IsNil() {
			return Value{}, false
		}
		return Of(out[0].Interface()), true
	}
	return Value{}, false
}

func exportedName(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		if r == '_' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
