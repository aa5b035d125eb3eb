package value

import (
	"fmt"
	"iter"
	"reflect"
)

// Cursor is a concrete forward position inside one container
// representation. Adapters return cursors from Iterable.Cursor; Iterator
// erases their type.
//
// Next returns the advanced position and leaves the receiver untouched, so
// copying an Iterator copies its position. Same compares positions of two
// cursors of the same concrete type.
type Cursor interface {
	Done() bool
	Value() Value
	Next() Cursor
	Same(other Cursor) bool
}

// ender is implemented by cursors that can jump to their end position.
type ender interface {
	End() Cursor
}

// Iterator is a type-erased forward iterator producing Values.
//
// The zero Iterator is the sentinel: it is done, and it compares equal to
// other sentinels and to exhausted iterators.
type Iterator struct {
	c Cursor
}

// NewIterator wraps a concrete cursor.
func NewIterator(c Cursor) Iterator {
	return Iterator{c: c}
}

// Done reports whether the iterator has no current element.
func (it Iterator) Done() bool {
	return it.c == nil || it.c.Done()
}

// Value returns the current element by value. It returns the empty Value
// when the iterator is done.
func (it Iterator) Value() Value {
	if it.Done() {
		return Value{}
	}
	return it.c.Value()
}

// Next advances the iterator.
func (it *Iterator) Next() {
	if it.Done() {
		return
	}
	it.c = it.c.Next()
}

// Equal compares two iterators. Iterators over different representations
// are not comparable and Equal panics on them.
func (it Iterator) Equal(other Iterator) bool {
	if it.c == nil || other.c == nil {
		return it.Done() && other.Done()
	}
	if reflect.TypeOf(it.c) != reflect.TypeOf(other.c) {
		panic(fmt.Sprintf("value: comparing iterators over %T and %T", it.c, other.c))
	}
	if it.c.Done() || other.c.Done() {
		return it.c.Done() && other.c.Done()
	}
	return it.c.Same(other.c)
}

// Seq adapts the remaining elements of the iterator to a range-over-func
// sequence.
func (it Iterator) Seq() iter.Seq[Value] {
	return func(yield func(Value) bool) {
		for ; !it.Done(); it.Next() {
			if !yield(it.Value()) {
				return
			}
		}
	}
}

// Distance counts the increments needed to move begin to end.
func Distance(begin, end Iterator) int {
	n := 0
	for !begin.Equal(end) {
		if begin.Done() {
			break
		}
		begin.Next()
		n++
	}
	return n
}

func exhausted(c Cursor) Cursor {
	if e, ok := c.(ender); ok {
		return e.End()
	}
	for !c.Done() {
		c = c.Next()
	}
	return c
}

// ----------------------------------------------------------------------------
// Cursor implementations
// ----------------------------------------------------------------------------

// indexCursor walks positions 0..n-1 and synthesizes each element on
// dereference.
type indexCursor struct {
	n  int
	i  int
	at func(int) Value
}

func (c *indexCursor) Done() bool   { return c.i >= c.n }
func (c *indexCursor) Value() Value { return c.at(c.i) }

func (c *indexCursor) Next() Cursor {
	return &indexCursor{n: c.n, i: c.i + 1, at: c.at}
}

func (c *indexCursor) End() Cursor {
	return &indexCursor{n: c.n, i: c.n, at: c.at}
}

func (c *indexCursor) Same(other Cursor) bool {
	return c.i == other.(*indexCursor).i
}

// IndexCursor returns a cursor over positions 0..n-1 whose elements are
// produced by at. Custom adapters use it to expose indexed containers.
func IndexCursor(n int, at func(int) Value) Cursor {
	return &indexCursor{n: n, at: at}
}
