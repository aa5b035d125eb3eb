package value

import (
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	serrors "github.com/ajg/synth/internal/errors"
)

var (
	typeBool    = reflect.TypeFor[bool]()
	typeInt     = reflect.TypeFor[int]()
	typeInt64   = reflect.TypeFor[int64]()
	typeFloat64 = reflect.TypeFor[float64]()
	typeString  = reflect.TypeFor[string]()
	typeTime    = reflect.TypeFor[time.Time]()
)

// timeLayouts are tried in order when text is coerced to a time.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

func convertTo(x any, t reflect.Type) any {
	rv := reflect.ValueOf(x)
	if rv.Type() == t {
		return x
	}
	return rv.Convert(t).Interface()
}

// ----------------------------------------------------------------------------
// bool
// ----------------------------------------------------------------------------

type boolAdapter struct {
	t reflect.Type
	v bool
}

func (a boolAdapter) Type() reflect.Type { return a.t }
func (a boolAdapter) Kind() Kind         { return KindBool }
func (a boolAdapter) Interface() any     { return convertTo(a.v, a.t) }
func (a boolAdapter) Truth() bool        { return a.v }

func (a boolAdapter) Number() (float64, bool) {
	if a.v {
		return 1, true
	}
	return 0, true
}

func (a boolAdapter) Text() string { return strconv.FormatBool(a.v) }

func (a boolAdapter) Equal(o Adapter) bool {
	b, ok := o.(boolAdapter)
	return ok && a.v == b.v
}

func (a boolAdapter) Less(o Adapter) bool {
	b, ok := o.(boolAdapter)
	return ok && !a.v && b.v
}

func (a boolAdapter) Scan(text string) (Adapter, error) {
	v, err := strconv.ParseBool(strings.TrimSpace(text))
	if err != nil {
		return nil, scanError(text, a.t, err)
	}
	return boolAdapter{t: a.t, v: v}, nil
}

// ----------------------------------------------------------------------------
// signed integers
// ----------------------------------------------------------------------------

type intAdapter struct {
	t reflect.Type
	v int64
}

func (a intAdapter) Type() reflect.Type      { return a.t }
func (a intAdapter) Kind() Kind              { return KindNumber }
func (a intAdapter) Interface() any          { return convertTo(a.v, a.t) }
func (a intAdapter) Truth() bool             { return a.v != 0 }
func (a intAdapter) Number() (float64, bool) { return float64(a.v), true }
func (a intAdapter) Int() (int64, bool)      { return a.v, true }
func (a intAdapter) Text() string            { return strconv.FormatInt(a.v, 10) }

func (a intAdapter) Time() (time.Time, bool) {
	return time.Unix(a.v, 0), true
}

func (a intAdapter) Equal(o Adapter) bool {
	b, ok := o.(intAdapter)
	return ok && a.v == b.v
}

func (a intAdapter) Less(o Adapter) bool {
	b, ok := o.(intAdapter)
	return ok && a.v < b.v
}

func (a intAdapter) Scan(text string) (Adapter, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(text), 10, a.t.Bits())
	if err != nil {
		return nil, scanError(text, a.t, err)
	}
	return intAdapter{t: a.t, v: v}, nil
}

// ----------------------------------------------------------------------------
// unsigned integers
// ----------------------------------------------------------------------------

type uintAdapter struct {
	t reflect.Type
	v uint64
}

func (a uintAdapter) Type() reflect.Type      { return a.t }
func (a uintAdapter) Kind() Kind              { return KindNumber }
func (a uintAdapter) Interface() any          { return convertTo(a.v, a.t) }
func (a uintAdapter) Truth() bool             { return a.v != 0 }
func (a uintAdapter) Number() (float64, bool) { return float64(a.v), true }
func (a uintAdapter) Text() string            { return strconv.FormatUint(a.v, 10) }

func (a uintAdapter) Int() (int64, bool) {
	if a.v > math.MaxInt64 {
		return 0, false
	}
	return int64(a.v), true
}

func (a uintAdapter) Equal(o Adapter) bool {
	b, ok := o.(uintAdapter)
	return ok && a.v == b.v
}

func (a uintAdapter) Less(o Adapter) bool {
	b, ok := o.(uintAdapter)
	return ok && a.v < b.v
}

func (a uintAdapter) Scan(text string) (Adapter, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(text), 10, a.t.Bits())
	if err != nil {
		return nil, scanError(text, a.t, err)
	}
	return uintAdapter{t: a.t, v: v}, nil
}

// ----------------------------------------------------------------------------
// floating point
// ----------------------------------------------------------------------------

type floatAdapter struct {
	t reflect.Type
	v float64
}

func (a floatAdapter) Type() reflect.Type      { return a.t }
func (a floatAdapter) Kind() Kind              { return KindNumber }
func (a floatAdapter) Interface() any          { return convertTo(a.v, a.t) }
func (a floatAdapter) Truth() bool             { return a.v != 0 }
func (a floatAdapter) Number() (float64, bool) { return a.v, true }

func (a floatAdapter) Int() (int64, bool) {
	if a.v != math.Trunc(a.v) || math.IsInf(a.v, 0) || a.v > math.MaxInt64 || a.v < math.MinInt64 {
		return 0, false
	}
	return int64(a.v), true
}

// Text renders integral floats with a trailing ".0" so that they stay
// distinguishable from integers.
func (a floatAdapter) Text() string {
	s := strconv.FormatFloat(a.v, 'g', -1, a.t.Bits())
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

func (a floatAdapter) Equal(o Adapter) bool {
	b, ok := o.(floatAdapter)
	return ok && a.v == b.v
}

func (a floatAdapter) Less(o Adapter) bool {
	b, ok := o.(floatAdapter)
	return ok && a.v < b.v
}

func (a floatAdapter) Scan(text string) (Adapter, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), a.t.Bits())
	if err != nil {
		return nil, scanError(text, a.t, err)
	}
	return floatAdapter{t: a.t, v: v}, nil
}

// ----------------------------------------------------------------------------
// strings
// ----------------------------------------------------------------------------

type stringAdapter struct {
	t    reflect.Type
	s    string
	safe bool
}

func (a stringAdapter) Type() reflect.Type { return a.t }
func (a stringAdapter) Kind() Kind         { return KindString }
func (a stringAdapter) Interface() any     { return convertTo(a.s, a.t) }
func (a stringAdapter) Truth() bool        { return a.s != "" }
func (a stringAdapter) Text() string       { return a.s }
func (a stringAdapter) Safe() bool         { return a.safe }
func (a stringAdapter) Len() int           { return utf8.RuneCountInString(a.s) }

func (a stringAdapter) Number() (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(a.s), 64)
	return f, err == nil
}

func (a stringAdapter) Int() (int64, bool) {
	i, err := strconv.ParseInt(strings.TrimSpace(a.s), 10, 64)
	return i, err == nil
}

func (a stringAdapter) Time() (time.Time, bool) {
	s := strings.TrimSpace(a.s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (a stringAdapter) Equal(o Adapter) bool {
	b, ok := o.(stringAdapter)
	return ok && a.s == b.s
}

func (a stringAdapter) Less(o Adapter) bool {
	b, ok := o.(stringAdapter)
	return ok && a.s < b.s
}

func (a stringAdapter) Cursor() (Cursor, bool) {
	runes := []rune(a.s)
	return &indexCursor{n: len(runes), at: func(i int) Value {
		return Of(string(runes[i]))
	}}, true
}

func (a stringAdapter) Index(key Value) (Value, bool) {
	i, err := key.Int()
	if err != nil {
		return Value{}, false
	}
	runes := []rune(a.s)
	if i < 0 {
		i += int64(len(runes))
	}
	if i < 0 || i >= int64(len(runes)) {
		return Value{}, false
	}
	return Of(string(runes[i])), true
}

func (a stringAdapter) Scan(text string) (Adapter, error) {
	return stringAdapter{t: a.t, s: text}, nil
}

// ----------------------------------------------------------------------------
// time.Time
// ----------------------------------------------------------------------------

type timeAdapter struct {
	v time.Time
}

func (a timeAdapter) Type() reflect.Type      { return typeTime }
func (a timeAdapter) Kind() Kind              { return KindTime }
func (a timeAdapter) Interface() any          { return a.v }
func (a timeAdapter) Truth() bool             { return !a.v.IsZero() }
func (a timeAdapter) Time() (time.Time, bool) { return a.v, true }
func (a timeAdapter) Text() string            { return a.v.Format(time.RFC3339Nano) }

func (a timeAdapter) Number() (float64, bool) {
	return float64(a.v.UnixNano()) / float64(time.Second), true
}

func (a timeAdapter) Equal(o Adapter) bool {
	b, ok := o.(timeAdapter)
	return ok && a.v.Equal(b.v)
}

func (a timeAdapter) Less(o Adapter) bool {
	b, ok := o.(timeAdapter)
	return ok && a.v.Before(b.v)
}

func (a timeAdapter) Attribute(key Value) (Value, bool) {
	name, err := key.Text()
	if err != nil {
		return Value{}, false
	}
	switch name {
	case "year":
		return Of(a.v.Year()), true
	case "month":
		return Of(int(a.v.Month())), true
	case "day":
		return Of(a.v.Day()), true
	case "hour":
		return Of(a.v.Hour()), true
	case "minute":
		return Of(a.v.Minute()), true
	case "second":
		return Of(a.v.Second()), true
	case "weekday":
		return Of(int(a.v.Weekday())), true
	case "yearday":
		return Of(a.v.YearDay()), true
	}
	return Value{}, false
}

func (a timeAdapter) Scan(text string) (Adapter, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(text))
	if err != nil {
		return nil, scanError(text, typeTime, err)
	}
	return timeAdapter{v: t}, nil
}

// ----------------------------------------------------------------------------
// opaque values
// ----------------------------------------------------------------------------

// opaqueAdapter holds values that have identity but no textual form.
type opaqueAdapter struct {
	rv reflect.Value
}

func (a opaqueAdapter) Type() reflect.Type { return a.rv.Type() }
func (a opaqueAdapter) Kind() Kind         { return KindOpaque }
func (a opaqueAdapter) Interface() any     { return a.rv.Interface() }

func (a opaqueAdapter) Truth() bool {
	switch a.rv.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return !a.rv.IsNil()
	case reflect.Uintptr:
		return a.rv.Uint() != 0
	case reflect.Complex64, reflect.Complex128:
		return a.rv.Complex() != 0
	}
	return true
}

func (a opaqueAdapter) Equal(o Adapter) bool {
	b, ok := o.(opaqueAdapter)
	if !ok {
		return false
	}
	switch a.rv.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return a.rv.Pointer() == b.rv.Pointer()
	case reflect.Uintptr:
		return a.rv.Uint() == b.rv.Uint()
	case reflect.Complex64, reflect.Complex128:
		return a.rv.Complex() == b.rv.Complex()
	}
	return false
}

func scanError(text string, t reflect.Type, err error) error {
	return serrors.Wrap(serrors.ErrConversion, err, fmt.Sprintf("cannot parse %q as %s", text, t))
}

func writeText(w io.Writer, s string) error {
	_, err := io.WriteString(w, s)
	return err
}
