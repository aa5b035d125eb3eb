package tmpl

import (
	"io"
	"net/url"
	"slices"
	"strings"
	"text/template"

	"github.com/ajg/synth"
	"github.com/ajg/synth/django"
	g "github.com/ajg/synth/grammar"
	"github.com/ajg/synth/value"
)

// params are the attributes of a tag. The unnamed attribute is stored under
// "name".
type params map[string]string

func paramsOf(n synth.Node, allowed ...string) (params, error) {
	ps := make(params)
	for a := range n.All(idAttr) {
		k := strings.ToLower(a.ChildText(idKey))
		if k == "" {
			k = "name"
		}
		if !slices.Contains(allowed, k) {
			return nil, n.Errorf(synth.ErrInvalidArgument, "TMPL_%s does not take %s", strings.ToUpper(n.ID()), strings.ToUpper(k))
		}
		if _, dup := ps[k]; dup {
			return nil, n.Errorf(synth.ErrInvalidArgument, "TMPL_%s has %s twice", strings.ToUpper(n.ID()), strings.ToUpper(k))
		}
		v := a.ChildText(idValue)
		if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') {
			v = v[1 : len(v)-1]
		}
		ps[k] = v
	}
	if ps["name"] == "" {
		return nil, n.Errorf(synth.ErrInvalidArgument, "TMPL_%s requires NAME", strings.ToUpper(n.ID()))
	}
	return ps, nil
}

// lookup resolves a variable name. Dots descend into maps and records.
func lookup(name string, ctx *synth.Context) (value.Value, bool) {
	head, rest, _ := strings.Cut(name, ".")
	v, ok := ctx.Get(head)
	for ok && rest != "" {
		head, rest, _ = strings.Cut(rest, ".")
		v, ok = v.Resolve(head)
	}
	return v, ok
}

// ----------------------------------------------------------------------------
// TMPL_VAR
// ----------------------------------------------------------------------------

func renderVar(n synth.Node, w io.Writer, ctx *synth.Context, opts *synth.Options) error {
	ps, err := paramsOf(n, "name", "escape", "default")
	if err != nil {
		return err
	}
	v, ok := lookup(ps["name"], ctx)
	if !ok || v.IsNone() {
		if d, has := ps["default"]; has {
			v = value.Of(d)
		} else {
			return value.Output(w, opts.DefaultValue)
		}
	}
	s, err := v.Text()
	if err != nil {
		return n.Errorf(synth.ErrConversion, "TMPL_VAR %s cannot be printed", ps["name"]).WithCause(err)
	}

	mode, has := ps["escape"]
	if !has && opts.AutoEscape {
		mode = "html"
	}
	switch strings.ToLower(mode) {
	case "", "0", "none":
	case "1", "html":
		s = django.Escape(s)
	case "url":
		s = url.QueryEscape(s)
	case "js":
		s = template.JSEscapeString(s)
	default:
		return n.Errorf(synth.ErrInvalidArgument, "unknown ESCAPE %q", mode)
	}
	_, err = io.WriteString(w, s)
	return err
}

// ----------------------------------------------------------------------------
// TMPL_IF, TMPL_UNLESS
// ----------------------------------------------------------------------------

func renderIf(n synth.Node, w io.Writer, ctx *synth.Context, opts *synth.Options) error {
	ps, err := paramsOf(n, "name")
	if err != nil {
		return err
	}
	v, _ := lookup(ps["name"], ctx)
	if v.Truth() == (n.ID() == idIf) {
		return body(n).Render(w, ctx, opts)
	}
	if e, ok := n.Child(idElse); ok {
		return body(e).Render(w, ctx, opts)
	}
	return nil
}

// ----------------------------------------------------------------------------
// TMPL_LOOP
// ----------------------------------------------------------------------------

func renderLoop(n synth.Node, w io.Writer, ctx *synth.Context, opts *synth.Options) error {
	ps, err := paramsOf(n, "name")
	if err != nil {
		return err
	}
	v, ok := lookup(ps["name"], ctx)
	if !ok || v.IsNone() {
		return nil
	}
	rows, err := v.Items()
	if err != nil {
		return n.Errorf(synth.ErrInvalidArgument, "TMPL_LOOP %s is not a list", ps["name"]).WithCause(err)
	}
	b := body(n)
	for i, row := range rows {
		bindings, err := fields(row)
		if err != nil {
			return n.Errorf(synth.ErrInvalidArgument, "row %d of TMPL_LOOP %s: %s", i+1, ps["name"], err)
		}
		first, last := i == 0, i == len(rows)-1
		bindings["__first__"] = value.Of(first)
		bindings["__last__"] = value.Of(last)
		bindings["__inner__"] = value.Of(!first && !last)
		bindings["__odd__"] = value.Of(i%2 == 0)
		bindings["__even__"] = value.Of(i%2 == 1)
		bindings["__counter__"] = value.Of(i + 1)
		if err := ctx.Scope(bindings, func() error { return b.Render(w, ctx, opts) }); err != nil {
			return err
		}
	}
	return nil
}

// fields returns the entries of a loop row.
func fields(row value.Value) (map[string]value.Value, error) {
	switch row.Kind() {
	case value.KindMap, value.KindRecord:
	default:
		return nil, synth.Errorf(synth.ErrInvalidArgument, "%s is not a map", row.Kind())
	}
	out := make(map[string]value.Value)
	for e := range row.All() {
		p, ok := e.Interface().(value.Pair)
		if !ok {
			continue
		}
		out[p.First.String()] = p.Second
	}
	return out, nil
}

// ----------------------------------------------------------------------------
// TMPL_INCLUDE
// ----------------------------------------------------------------------------

func renderInclude(n synth.Node, w io.Writer, ctx *synth.Context, opts *synth.Options) error {
	ps, err := paramsOf(n, "name")
	if err != nil {
		return err
	}
	t, err := n.Template().Engine().Load(ps["name"], opts)
	if err != nil {
		return err
	}
	return t.Include(w, ctx, opts)
}

func body(n synth.Node) synth.Node {
	b, _ := n.Child(g.BlockID)
	return b
}
