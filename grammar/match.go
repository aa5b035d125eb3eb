package grammar

import (
	"fmt"
	"io"
	"iter"
	"strings"
)

// Match is a span of source matched by a captured rule.
type Match struct {
	ID         string
	Start, End int
	Nested     []*Match
}

// Text returns the source covered by m.
func (m *Match) Text(src string) string {
	return src[m.Start:m.End]
}

// Child returns the first directly nested match with the given ID.
func (m *Match) Child(id string) *Match {
	for _, n := range m.Nested {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// All yields the directly nested matches with the given ID.
func (m *Match) All(id string) iter.Seq[*Match] {
	return func(yield func(*Match) bool) {
		for _, n := range m.Nested {
			if n.ID == id && !yield(n) {
				return
			}
		}
	}
}

// Find returns the first match with the given ID in a depth-first walk of
// m's descendants.
func (m *Match) Find(id string) *Match {
	for _, n := range m.Nested {
		if n.ID == id {
			return n
		}
		if f := n.Find(id); f != nil {
			return f
		}
	}
	return nil
}

// Tree is a parsed template source.
type Tree struct {
	Name   string
	Source string
	Root   *Match
}

// Text returns the source covered by m.
func (t *Tree) Text(m *Match) string {
	if m == nil {
		return ""
	}
	return m.Text(t.Source)
}

// Dump writes an indented outline of the tree, one match per line.
func (t *Tree) Dump(w io.Writer) error {
	return dump(w, t.Source, t.Root, 0)
}

func dump(w io.Writer, src string, m *Match, depth int) error {
	text := m.Text(src)
	if len(m.Nested) > 0 || len(text) > PreviewLimit {
		text = Preview(src, m.Start)
	}
	if _, err := fmt.Fprintf(w, "%s%s [%d:%d] %q\n", strings.Repeat("  ", depth), m.ID, m.Start, m.End, text); err != nil {
		return err
	}
	for _, n := range m.Nested {
		if err := dump(w, src, n, depth+1); err != nil {
			return err
		}
	}
	return nil
}
