package value

import (
	"cmp"
	"fmt"
	"strings"

	serrors "github.com/ajg/synth/internal/errors"
)

// Equal reports whether a and b are equal.
//
// Values sharing an adapter type use the adapter's native equality. Other
// pairs are compared as booleans, numbers, strings or sequences when both
// sides belong to the same category; otherwise they are unequal.
func Equal(a, b Value) bool {
	if a.a == nil || b.a == nil {
		return a.a == nil && b.a == nil
	}
	if a.Type() == b.Type() {
		if eq, ok := a.a.(Equaler); ok {
			return eq.Equal(b.a)
		}
	}
	if c, ok := fallback(a, b); ok {
		return c == 0
	}
	return false
}

// Less reports whether a orders before b.
//
// Values sharing an adapter type with a native ordering use it. Booleans,
// numbers, strings and sequences compare by their coerced values. Anything
// else orders by Kind, then by type name.
func Less(a, b Value) bool {
	return Compare(a, b) < 0
}

// Compare returns -1, 0 or +1 depending on whether a orders before, equal
// to or after b. It is a total order: distinct values of a type without a
// native ordering, such as maps and records, order by size, then item by
// item, then by text. NaN orders before every other number and compares
// equal to NaN, as in cmp.Compare, although Equal reports false for it.
func Compare(a, b Value) int {
	if a.a == nil || b.a == nil {
		return cmp.Compare(a.Kind(), b.Kind())
	}
	if a.Type() == b.Type() {
		if ord, ok := a.a.(Orderer); ok {
			switch {
			case ord.Less(b.a):
				return -1
			case b.a.(Orderer).Less(a.a):
				return 1
			}
			if !a.IsNumeric() {
				return 0
			}
		} else if eq, ok := a.a.(Equaler); ok && eq.Equal(b.a) {
			return 0
		}
	}
	if c, ok := fallback(a, b); ok {
		return c
	}
	if c := cmp.Compare(a.Kind(), b.Kind()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Type().String(), b.Type().String()); c != 0 {
		return c
	}
	return tiebreak(a, b)
}

// tiebreak orders two values of one type that has no native ordering.
func tiebreak(a, b Value) int {
	if Equal(a, b) {
		return 0
	}
	x, errX := a.Items()
	y, errY := b.Items()
	if errX == nil && errY == nil {
		if c := cmp.Compare(len(x), len(y)); c != 0 {
			return c
		}
		for i := range x {
			if c := Compare(x[i], y[i]); c != 0 {
				return c
			}
		}
	}
	return strings.Compare(a.String(), b.String())
}

// fallback compares values of different adapter types that belong to the
// same comparable category.
func fallback(a, b Value) (int, bool) {
	switch {
	case a.IsBool() && b.IsBool():
		x, _ := a.Bool()
		y, _ := b.Bool()
		return cmpBool(x, y), true
	case a.IsNumeric() && b.IsNumeric():
		if x, ok := a.a.(Integral); ok {
			if y, ok := b.a.(Integral); ok {
				xi, xok := x.Int()
				yi, yok := y.Int()
				if xok && yok {
					return cmp.Compare(xi, yi), true
				}
			}
		}
		x, errX := a.Number()
		y, errY := b.Number()
		if errX != nil || errY != nil {
			return 0, false
		}
		return cmp.Compare(x, y), true
	case a.IsString() && b.IsString():
		x, _ := a.Text()
		y, _ := b.Text()
		return strings.Compare(x, y), true
	case a.Kind() == KindSeq && b.Kind() == KindSeq:
		x, errX := a.Items()
		y, errY := b.Items()
		if errX != nil || errY != nil {
			return 0, false
		}
		switch {
		case equalItems(x, y):
			return 0, true
		case lessItems(x, y):
			return -1, true
		}
		return 1, true
	case a.IsTime() && b.IsTime():
		x, _ := a.Time()
		y, _ := b.Time()
		return x.Compare(y), true
	}
	return 0, false
}

func cmpBool(x, y bool) int {
	switch {
	case x == y:
		return 0
	case !x:
		return -1
	}
	return 1
}

// Equal reports whether v equals other. See the package-level Equal.
func (v Value) Equal(other Value) bool { return Equal(v, other) }

// Less reports whether v orders before other. See the package-level Less.
func (v Value) Less(other Value) bool { return Less(v, other) }

// Contains reports whether item is in container: a substring of a string,
// a key of a map or record, or an element of any other iterable.
func Contains(container, item Value) (bool, error) {
	switch container.Kind() {
	case KindString:
		s, _ := container.Text()
		sub, err := item.Text()
		if err != nil {
			return false, err
		}
		return strings.Contains(s, sub), nil
	case KindMap, KindRecord:
		_, ok := container.Attribute(item)
		return ok, nil
	}
	it, err := container.Begin()
	if err != nil {
		return false, err
	}
	for ; !it.Done(); it.Next() {
		if Equal(it.Value(), item) {
			return true, nil
		}
	}
	return false, nil
}

// Add adds two numbers, concatenates two strings or concatenates two
// sequences.
func Add(a, b Value) (Value, error) {
	if a.IsNumeric() && b.IsNumeric() {
		if x, err := a.Int(); err == nil && isIntegral(a) {
			if y, err := b.Int(); err == nil && isIntegral(b) {
				return Of(x + y), nil
			}
		}
		x, _ := a.Number()
		y, _ := b.Number()
		return Of(x + y), nil
	}
	if a.IsString() && b.IsString() {
		x, _ := a.Text()
		y, _ := b.Text()
		if a.IsSafe() && b.IsSafe() {
			return Safe(x + y), nil
		}
		return Of(x + y), nil
	}
	if a.Kind() == KindSeq && b.Kind() == KindSeq {
		x, _ := a.Items()
		y, _ := b.Items()
		out := make([]Value, 0, len(x)+len(y))
		return Of(append(append(out, x...), y...)), nil
	}
	return Value{}, serrors.Newf(serrors.ErrUnsupportedOperation, "cannot add %s and %s", a.Kind(), b.Kind())
}

func isIntegral(v Value) bool {
	switch v.a.(type) {
	case intAdapter, uintAdapter:
		return true
	}
	return false
}

// Sprint renders values separated by spaces, like fmt.Sprint.
func Sprint(vals ...Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, " ")
}
