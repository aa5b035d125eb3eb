package value

import (
	"bytes"
	"database/sql"
	"errors"
	"math"
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"

	serrors "github.com/ajg/synth/internal/errors"
)

// -----------------------------------------------------------------------------
// Construction
// -----------------------------------------------------------------------------

func TestOfKinds(t *testing.T) {
	var nilPtr *int
	n := 5
	tests := []struct {
		name string
		in   any
		want Kind
	}{
		{"nil", nil, KindNone},
		{"nil pointer", nilPtr, KindNone},
		{"pointer", &n, KindNumber},
		{"bool", true, KindBool},
		{"int", 42, KindNumber},
		{"int8", int8(4), KindNumber},
		{"uint", uint(7), KindNumber},
		{"float", 1.5, KindNumber},
		{"string", "hi", KindString},
		{"bytes", []byte("hi"), KindString},
		{"time", time.Unix(0, 0), KindTime},
		{"slice", []int{1, 2}, KindSeq},
		{"array", [2]string{"a", "b"}, KindSeq},
		{"tuple", Tuple{Of(1)}, KindSeq},
		{"pair", Pair{Of(1), Of(2)}, KindPair},
		{"map", map[string]int{"a": 1}, KindMap},
		{"struct", struct{ A int }{1}, KindRecord},
		{"func", func() {}, KindOpaque},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Of(tt.in).Kind(); got != tt.want {
				t.Errorf("Of(%v).Kind() = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

type maybe struct {
	v  any
	ok bool
}

func (m maybe) Forward() (any, bool) { return m.v, m.ok }

func TestForwarding(t *testing.T) {
	if v := Of(sql.NullString{}); !v.IsNone() {
		t.Errorf("invalid NullString = %#v, want none", v)
	}
	if v := Of(sql.NullString{String: "x", Valid: true}); v.String() != "x" {
		t.Errorf("valid NullString = %q, want %q", v.String(), "x")
	}
	if v := Of(sql.NullInt64{Int64: 3, Valid: true}); !v.IsNumeric() {
		t.Errorf("valid NullInt64 kind = %s, want number", v.Kind())
	}
	if v := Of(maybe{}); !v.IsNone() {
		t.Errorf("empty forwarder = %#v, want none", v)
	}
	if v := Of(maybe{v: "in", ok: true}); v.String() != "in" {
		t.Errorf("forwarder = %q, want %q", v.String(), "in")
	}
	var iface any = 7
	if v := Of(&iface); !v.IsNumeric() {
		t.Errorf("pointer to interface kind = %s, want number", v.Kind())
	}
}

// -----------------------------------------------------------------------------
// Coercion
// -----------------------------------------------------------------------------

func TestText(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{true, "true"},
		{false, "false"},
		{42, "42"},
		{2.0, "2.0"},
		{2.5, "2.5"},
		{"s", "s"},
		{[]int{1, 2}, "[1, 2]"},
		{[]string{"a"}, "['a']"},
		{map[string]int{"b": 2, "a": 1}, "{'a': 1, 'b': 2}"},
		{NewPair("k", 1), "('k', 1)"},
		{NewTuple(1, "x"), "(1, 'x')"},
	}
	for _, tt := range tests {
		got, err := Of(tt.in).Text()
		if err != nil {
			t.Errorf("Of(%v).Text() error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Of(%v).Text() = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUnsupported(t *testing.T) {
	v := Of(func() {})
	if _, err := v.Text(); !errors.Is(err, serrors.ErrUnsupportedOperation) {
		t.Errorf("Text() error = %v, want unsupported operation", err)
	}
	if _, err := Of(true).Time(); !errors.Is(err, serrors.ErrUnsupportedOperation) {
		t.Errorf("Time() error = %v, want unsupported operation", err)
	}
	if _, err := Of(1).Begin(); !errors.Is(err, serrors.ErrUnsupportedOperation) {
		t.Errorf("Begin() error = %v, want unsupported operation", err)
	}
	if _, err := Of("abc").Number(); !errors.Is(err, serrors.ErrConversion) {
		t.Errorf("Number() error = %v, want conversion error", err)
	}
}

func TestNumberAndInt(t *testing.T) {
	if f, err := Of(" 2.5 ").Number(); err != nil || f != 2.5 {
		t.Errorf("Number() = %v, %v, want 2.5", f, err)
	}
	if i, err := Of(3.9).Int(); err != nil || i != 3 {
		t.Errorf("Int() = %v, %v, want 3", i, err)
	}
	if i, err := Of(uint16(9)).Int(); err != nil || i != 9 {
		t.Errorf("Int() = %v, %v, want 9", i, err)
	}
}

func TestTruth(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{nil, false},
		{0, false},
		{1, true},
		{"", false},
		{"x", true},
		{[]int{}, false},
		{[]int{1}, true},
		{map[string]int{}, false},
		{time.Time{}, false},
		{struct{}{}, true},
	}
	for _, tt := range tests {
		if got := Of(tt.in).Truth(); got != tt.want {
			t.Errorf("Of(%v).Truth() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// -----------------------------------------------------------------------------
// Comparison
// -----------------------------------------------------------------------------

func TestEqual(t *testing.T) {
	tests := []struct {
		a, b any
		want bool
	}{
		{nil, nil, true},
		{nil, 0, false},
		{1, 1, true},
		{1, 1.0, true},
		{int8(3), 3, true},
		{1, "1", false},
		{"a", "a", true},
		{true, true, true},
		{true, 1, false},
		{[]int{1, 2}, []int{1, 2}, true},
		{[]int{1, 2}, []any{1, 2}, true},
		{[]int{1, 2}, []int{2, 1}, false},
		{map[string]int{"a": 1}, map[string]int{"a": 1}, true},
		{map[string]int{"a": 1}, map[string]int{"a": 2}, false},
	}
	for _, tt := range tests {
		if got := Equal(Of(tt.a), Of(tt.b)); got != tt.want {
			t.Errorf("Equal(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestLess(t *testing.T) {
	tests := []struct {
		a, b any
		want bool
	}{
		{1, 2, true},
		{2, 1, false},
		{1, 1.5, true},
		{"a", "b", true},
		{false, true, true},
		{nil, false, true},
		{true, 0, true},
		{99, "0", true},
		{"z", time.Time{}, true},
		{[]int{1}, []int{1, 0}, true},
		{[]int{1, 2}, []int{1, 3}, true},
	}
	for _, tt := range tests {
		if got := Less(Of(tt.a), Of(tt.b)); got != tt.want {
			t.Errorf("Less(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCompareIsTotal(t *testing.T) {
	vals := []Value{
		Of("b"), Of(3), None(), Of(true), Of([]int{2}), Of(1.5),
		Of("a"), Of(map[string]int{"x": 1}), Of(false), Of([]int{1, 9}),
		Of(struct{ A int }{1}), Of(time.Unix(10, 0)), Of(-1),
	}
	slices.SortFunc(vals, Compare)
	for i := range vals {
		for j := i + 1; j < len(vals); j++ {
			if c := Compare(vals[i], vals[j]); c > 0 {
				t.Fatalf("Compare(%#v, %#v) = %d after sorting", vals[i], vals[j], c)
			}
			if Less(vals[j], vals[i]) {
				t.Fatalf("Less(%#v, %#v) = true after sorting", vals[j], vals[i])
			}
		}
	}
	if !vals[0].IsNone() {
		t.Errorf("first sorted value = %#v, want none", vals[0])
	}
}

func TestCompareWithoutNativeOrder(t *testing.T) {
	type rec struct{ A int }
	tests := []struct {
		name string
		a, b Value
		want int
	}{
		{"map by item", Of(map[string]int{"x": 1}), Of(map[string]int{"x": 2}), -1},
		{"map by size", Of(map[string]int{"x": 9}), Of(map[string]int{"x": 1, "y": 0}), -1},
		{"equal maps", Of(map[string]int{"x": 1}), Of(map[string]int{"x": 1}), 0},
		{"record by field", Of(rec{2}), Of(rec{1}), 1},
		{"equal records", Of(rec{1}), Of(rec{1}), 0},
		{"nan before number", Of(math.NaN()), Of(1.0), -1},
		{"number after nan", Of(1.0), Of(math.NaN()), 1},
		{"nan with nan", Of(math.NaN()), Of(math.NaN()), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare = %d, want %d", got, tt.want)
			}
			if got := Compare(tt.b, tt.a); got != -tt.want {
				t.Errorf("reversed Compare = %d, want %d", got, -tt.want)
			}
			if tt.want != 0 && Equal(tt.a, tt.b) {
				t.Error("Equal reports true for values that order apart")
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Iteration
// -----------------------------------------------------------------------------

func TestIteratorCopiesAreIndependent(t *testing.T) {
	it, err := Of([]string{"a", "b", "c"}).Begin()
	if err != nil {
		t.Fatal(err)
	}
	saved := it
	it.Next()
	if got := saved.Value().String(); got != "a" {
		t.Errorf("saved.Value() = %q, want %q", got, "a")
	}
	if got := it.Value().String(); got != "b" {
		t.Errorf("it.Value() = %q, want %q", got, "b")
	}
	if saved.Equal(it) {
		t.Error("iterators at different positions compare equal")
	}
	saved.Next()
	if !saved.Equal(it) {
		t.Error("iterators at the same position compare unequal")
	}
}

func TestDistanceAndEnd(t *testing.T) {
	v := Of([]int{1, 2, 3})
	begin, _ := v.Begin()
	end, _ := v.End()
	if n := Distance(begin, end); n != 3 {
		t.Errorf("Distance() = %d, want 3", n)
	}
	if !end.Equal(Iterator{}) {
		t.Error("end iterator does not equal the sentinel")
	}
	if n := Distance(begin, Iterator{}); n != 3 {
		t.Errorf("Distance(begin, sentinel) = %d, want 3", n)
	}
	if n, _ := None().Len(); n != 0 {
		t.Errorf("None().Len() = %d, want 0", n)
	}
}

func TestIterationIsStable(t *testing.T) {
	v := Of(map[string]int{"c": 3, "a": 1, "b": 2})
	var first, second []string
	for p := range v.All() {
		k, _ := p.Attr("key")
		first = append(first, k.String())
	}
	for p := range v.All() {
		k, _ := p.Attr("key")
		second = append(second, k.String())
	}
	want := []string{"a", "b", "c"}
	if !slices.Equal(first, want) || !slices.Equal(second, want) {
		t.Errorf("map iteration = %v then %v, want %v", first, second, want)
	}
}

type listCursor struct {
	items []int
	i     int
}

func (c listCursor) Done() bool         { return c.i >= len(c.items) }
func (c listCursor) Value() Value       { return Of(c.items[c.i]) }
func (c listCursor) Next() Cursor       { return listCursor{c.items, c.i + 1} }
func (c listCursor) Same(o Cursor) bool { return c.i == o.(listCursor).i }

func TestIteratorEqualAcrossRepresentationsPanics(t *testing.T) {
	a := NewIterator(listCursor{items: []int{1}})
	b, _ := Of([]int{1}).Begin()
	defer func() {
		if recover() == nil {
			t.Error("Equal across representations did not panic")
		}
	}()
	a.Equal(b)
}

func TestStringIteration(t *testing.T) {
	items, err := Of("héllo").Items()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 5 || items[1].String() != "é" {
		t.Errorf("Items() = %v, want 5 runes with é second", items)
	}
}

// -----------------------------------------------------------------------------
// Lookup
// -----------------------------------------------------------------------------

type user struct {
	Name   string
	Age    int `json:"age"`
	Hidden string `json:"-"`
	secret string
}

func (u user) Greeting() string { return "hi " + u.Name }

func (u *user) Shout() (string, error) { return strings.ToUpper(u.Name), nil }

func TestRecord(t *testing.T) {
	u := user{Name: "ann", Age: 30, Hidden: "h", secret: "s"}
	v := Of(u)
	if got, ok := v.Attr("Name"); !ok || got.String() != "ann" {
		t.Errorf("Attr(Name) = %v, %v", got, ok)
	}
	if got, ok := v.Attr("name"); !ok || got.String() != "ann" {
		t.Errorf("Attr(name) = %v, %v", got, ok)
	}
	if got, ok := v.Attr("age"); !ok || got.String() != "30" {
		t.Errorf("Attr(age) = %v, %v", got, ok)
	}
	for _, name := range []string{"Hidden", "secret"} {
		if _, ok := v.Attr(name); ok {
			t.Errorf("Attr(%s) found, want hidden", name)
		}
	}
	if n, _ := v.Len(); n != 2 {
		t.Errorf("Len() = %d, want 2", n)
	}
	if got, ok := v.Resolve("greeting"); !ok || got.String() != "hi ann" {
		t.Errorf("Resolve(greeting) = %v, %v", got, ok)
	}
	if _, ok := v.Method("shout"); ok {
		t.Error("pointer method callable on a record held by value")
	}
	if got, ok := Of(&u).Method("shout"); !ok || got.String() != "ANN" {
		t.Errorf("Method(shout) = %v, %v", got, ok)
	}
}

func TestRecordWithAttribute(t *testing.T) {
	v := Of(user{Name: "ann"})
	w, err := v.WithAttribute(Of("age"), Of("41"))
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := w.Attr("age"); got.String() != "41" {
		t.Errorf("updated age = %v, want 41", got)
	}
	if got, _ := v.Attr("age"); got.String() != "0" {
		t.Errorf("original age = %v, want 0", got)
	}
	if _, err := v.WithAttribute(Of("nope"), Of(1)); !errors.Is(err, serrors.ErrMissingAttribute) {
		t.Errorf("WithAttribute(nope) error = %v, want missing attribute", err)
	}
}

func TestMapLookupAndUpdate(t *testing.T) {
	m := map[string]int{"a": 1}
	v := Of(m)
	w, err := v.WithAttribute(Of("b"), Of(2))
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := w.Attr("b"); !ok || got.String() != "2" {
		t.Errorf("Attr(b) = %v, %v", got, ok)
	}
	if _, ok := m["b"]; ok {
		t.Error("WithAttribute modified the host map")
	}
	d, err := w.WithAttribute(Of("a"), None())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := d.Attr("a"); ok {
		t.Error("deleting with an empty value left the key")
	}
	if got, ok := Of(map[int]string{3: "x"}).Index(Of("3")); !ok || got.String() != "x" {
		t.Errorf("Index(\"3\") = %v, %v", got, ok)
	}
}

// hollow is an adapter whose Interface is nil.
type hollow struct{}

func (hollow) Type() reflect.Type { return reflect.TypeFor[hollow]() }
func (hollow) Kind() Kind         { return KindOpaque }
func (hollow) Interface() any     { return nil }

func TestWithAttributeNilInterface(t *testing.T) {
	v := Of(map[string]any{"a": 1})
	w, err := v.WithAttribute(Of("b"), FromAdapter(hollow{}))
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := w.Attr("b"); !ok || !got.IsNone() {
		t.Errorf("Attr(b) = %v, %v, want none", got, ok)
	}
	if _, err := Of(map[string]int{}).WithAttribute(Of("n"), FromAdapter(hollow{})); err != nil {
		t.Errorf("storing into map[string]int: %v", err)
	}
}

func TestSequenceIndex(t *testing.T) {
	v := Of([]string{"a", "b", "c"})
	tests := []struct {
		key  any
		want string
		ok   bool
	}{
		{0, "a", true},
		{-1, "c", true},
		{"1", "b", true},
		{3, "", false},
		{"x", "", false},
	}
	for _, tt := range tests {
		got, ok := v.Index(Of(tt.key))
		if ok != tt.ok || (ok && got.String() != tt.want) {
			t.Errorf("Index(%v) = %v, %v, want %q, %v", tt.key, got, ok, tt.want, tt.ok)
		}
	}
	if got, ok := v.Resolve("2"); !ok || got.String() != "c" {
		t.Errorf("Resolve(2) = %v, %v", got, ok)
	}
}

type counter struct{ n int }

func (c *counter) Attribute(name string) (Value, bool) {
	if name == "n" {
		return Of(c.n), true
	}
	return None(), false
}

func (c *counter) Len() int         { return c.n }
func (c *counter) Item(i int) Value { return Of(i * 10) }

func TestObject(t *testing.T) {
	v := Of(&counter{n: 3})
	if v.Kind() != KindObject {
		t.Fatalf("Kind() = %s, want object", v.Kind())
	}
	if got, ok := v.Attr("n"); !ok || got.String() != "3" {
		t.Errorf("Attr(n) = %v, %v", got, ok)
	}
	items, err := v.Items()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 || items[2].String() != "20" {
		t.Errorf("Items() = %v", items)
	}
	var nilCounter *counter
	if !Of(nilCounter).IsNone() {
		t.Error("nil object pointer is not none")
	}
}

// -----------------------------------------------------------------------------
// Operations
// -----------------------------------------------------------------------------

func TestContains(t *testing.T) {
	tests := []struct {
		container, item any
		want            bool
	}{
		{"hello", "ell", true},
		{"hello", "xyz", false},
		{[]int{1, 2}, 2, true},
		{[]int{1, 2}, 3, false},
		{map[string]int{"a": 1}, "a", true},
		{map[string]int{"a": 1}, "b", false},
		{nil, 1, false},
	}
	for _, tt := range tests {
		got, err := Contains(Of(tt.container), Of(tt.item))
		if err != nil {
			t.Errorf("Contains(%v, %v) error: %v", tt.container, tt.item, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Contains(%v, %v) = %v, want %v", tt.container, tt.item, got, tt.want)
		}
	}
}

func TestAdd(t *testing.T) {
	if v, err := Add(Of(1), Of(2)); err != nil || v.String() != "3" {
		t.Errorf("Add(1, 2) = %v, %v", v, err)
	}
	if v, err := Add(Of(1), Of(0.5)); err != nil || v.String() != "1.5" {
		t.Errorf("Add(1, 0.5) = %v, %v", v, err)
	}
	if v, err := Add(Of("a"), Of("b")); err != nil || v.String() != "ab" {
		t.Errorf("Add(a, b) = %v, %v", v, err)
	}
	if v, err := Add(Of([]int{1}), Of([]int{2})); err != nil || v.String() != "[1, 2]" {
		t.Errorf("Add([1], [2]) = %v, %v", v, err)
	}
	if _, err := Add(Of(true), Of(map[string]int{})); !errors.Is(err, serrors.ErrUnsupportedOperation) {
		t.Errorf("Add(bool, map) error = %v", err)
	}
}

func TestOutputAndInput(t *testing.T) {
	var buf bytes.Buffer
	for _, v := range []Value{Of("a"), None(), Of(1), Of(true)} {
		if err := Output(&buf, v); err != nil {
			t.Fatal(err)
		}
	}
	if got := buf.String(); got != "a1true" {
		t.Errorf("Output = %q, want %q", got, "a1true")
	}
	if err := Output(&buf, Of(func() {})); !errors.Is(err, serrors.ErrUnsupportedOperation) {
		t.Errorf("Output(func) error = %v", err)
	}

	v, err := Input(strings.NewReader("42\n"), Of(0))
	if err != nil {
		t.Fatal(err)
	}
	if i, _ := v.Int(); i != 42 || v.Type() != Of(0).Type() {
		t.Errorf("Input = %#v, want int 42", v)
	}
	if _, err := Input(strings.NewReader("x"), Of(0)); !errors.Is(err, serrors.ErrConversion) {
		t.Errorf("Input(x) error = %v, want conversion error", err)
	}
}

func TestSafe(t *testing.T) {
	if !Safe("<b>").IsSafe() {
		t.Error("Safe() value is not safe")
	}
	if Of("<b>").IsSafe() {
		t.Error("plain string is safe")
	}
	if !Equal(Safe("x"), Of("x")) {
		t.Error("safe and plain strings with equal text differ")
	}
}
