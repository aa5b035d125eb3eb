package value

import (
	"io"
)

// Output writes v to w. Adapters implementing Formatter write themselves;
// otherwise the textual form is written. The empty Value writes nothing.
func Output(w io.Writer, v Value) error {
	if v.a == nil {
		return nil
	}
	if f, ok := v.a.(Formatter); ok {
		return f.Format(w)
	}
	t, ok := v.a.(Texter)
	if !ok {
		return unsupported("output", v)
	}
	return writeText(w, t.Text())
}

// Input reads all of r and parses it as a new datum of the same adapter
// type as like.
func Input(r io.Reader, like Value) (Value, error) {
	s, ok := like.a.(Scanner)
	if !ok {
		return like, unsupported("input", like)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return like, err
	}
	a, err := s.Scan(string(b))
	if err != nil {
		return like, err
	}
	return Value{a: a}, nil
}
