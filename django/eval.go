package django

import (
	"io"
	"strconv"
	"strings"

	"github.com/ajg/synth"
	g "github.com/ajg/synth/grammar"
	"github.com/ajg/synth/value"
)

// eval evaluates an expression node: an atom followed by filters.
func eval(n synth.Node, ctx *synth.Context, opts *synth.Options) (value.Value, error) {
	var (
		v     value.Value
		calls []synth.FilterCall
	)
	for i, c := range n.Nested() {
		if c.ID() == idPipe {
			call, err := pipe(c, ctx, opts)
			if err != nil {
				return value.None(), err
			}
			calls = append(calls, call)
			continue
		}
		if i == 0 {
			var err error
			if v, err = atom(c, ctx, opts); err != nil {
				return value.None(), err
			}
		}
	}
	if len(calls) == 0 {
		return v, nil
	}
	return opts.ApplyFilters(v, calls, ctx)
}

// pipe evaluates the name and argument of one filter step.
func pipe(n synth.Node, ctx *synth.Context, opts *synth.Options) (synth.FilterCall, error) {
	call := synth.FilterCall{Name: n.ChildText(idName)}
	for _, c := range n.Nested() {
		if c.ID() == idName {
			continue
		}
		arg, err := atom(c, ctx, opts)
		if err != nil {
			return call, err
		}
		call.Args = append(call.Args, arg)
	}
	return call, nil
}

// atom evaluates a literal, a variable path or a translation call.
func atom(n synth.Node, ctx *synth.Context, opts *synth.Options) (value.Value, error) {
	switch n.ID() {
	case idString:
		return value.Of(unquote(n.Text())), nil
	case idCall:
		s, _ := n.Child(idString)
		return value.Of(unquote(s.Text())), nil
	case idNumber:
		return numberLit(n.Text()), nil
	case idPath:
		return lookup(n.Text(), ctx, opts)
	case idExpr:
		return eval(n, ctx, opts)
	}
	panic("django: unexpected atom " + n.ID())
}

func numberLit(s string) value.Value {
	if !strings.Contains(s, ".") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return value.Of(i)
		}
	}
	f, _ := strconv.ParseFloat(s, 64)
	return value.Of(f)
}

func unquote(s string) string {
	s = s[1 : len(s)-1]
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(s[i])
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// lookup resolves a dotted variable path. Missing variables evaluate to
// Options.DefaultValue.
func lookup(path string, ctx *synth.Context, opts *synth.Options) (value.Value, error) {
	switch path {
	case "True":
		return value.Of(true), nil
	case "False":
		return value.Of(false), nil
	case "None":
		return value.None(), nil
	case "block.super":
		if !ctx.Has("block") {
			return super(ctx, opts)
		}
	}

	parts := strings.Split(path, ".")
	v, ok := ctx.Get(parts[0])
	if !ok {
		return opts.DefaultValue, nil
	}
	for _, p := range parts[1:] {
		if v, ok = v.Resolve(p); !ok {
			return opts.DefaultValue, nil
		}
	}
	return v, nil
}

// super renders the definition the current block overrides.
func super(ctx *synth.Context, opts *synth.Options) (value.Value, error) {
	base, leave, err := ctx.EnterBase()
	if err != nil {
		return value.None(), err
	}
	defer leave()
	body, _ := base.Child(g.BlockID)
	var b strings.Builder
	if err := body.Render(&b, ctx, opts); err != nil {
		return value.None(), err
	}
	return value.Safe(b.String()), nil
}

// ----------------------------------------------------------------------------
// conditions
// ----------------------------------------------------------------------------

// test evaluates a condition node to a boolean.
func test(n synth.Node, ctx *synth.Context, opts *synth.Options) (bool, error) {
	switch n.ID() {
	case idOr:
		for c := range n.All(idAnd) {
			ok, err := test(c, ctx, opts)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	case idAnd:
		for _, c := range n.Nested() {
			ok, err := test(c, ctx, opts)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case idNot:
		c := n.Nested()[0]
		ok, err := test(c, ctx, opts)
		return !ok, err
	case idCmp:
		return compare(n, ctx, opts)
	}
	panic("django: unexpected condition " + n.ID())
}

func operand(n synth.Node, ctx *synth.Context, opts *synth.Options) (value.Value, error) {
	if n.ID() == idGroup {
		or, _ := n.Child(idOr)
		ok, err := test(or, ctx, opts)
		return value.Of(ok), err
	}
	return eval(n, ctx, opts)
}

func compare(n synth.Node, ctx *synth.Context, opts *synth.Options) (bool, error) {
	var (
		vals []value.Value
		op   string
	)
	for _, c := range n.Nested() {
		if c.ID() == idOp {
			op = strings.Join(strings.Fields(c.Text()), " ")
			continue
		}
		v, err := operand(c, ctx, opts)
		if err != nil {
			return false, err
		}
		vals = append(vals, v)
	}
	if op == "" {
		return vals[0].Truth(), nil
	}
	a, b := vals[0], vals[1]
	switch op {
	case "==":
		return value.Equal(a, b), nil
	case "!=":
		return !value.Equal(a, b), nil
	case "<":
		return value.Less(a, b), nil
	case ">":
		return value.Less(b, a), nil
	case "<=":
		return !value.Less(b, a), nil
	case ">=":
		return !value.Less(a, b), nil
	case "in":
		return contains(b, a), nil
	case "not in":
		return !contains(b, a), nil
	}
	panic("django: unexpected operator " + op)
}

// contains treats an unsupported container as not containing anything.
func contains(container, item value.Value) bool {
	ok, err := value.Contains(container, item)
	return err == nil && ok
}

// ----------------------------------------------------------------------------
// output
// ----------------------------------------------------------------------------

// write outputs v, escaping it when autoescaping is on and v is not safe.
func write(w io.Writer, v value.Value, opts *synth.Options) error {
	if v.IsNone() {
		return nil
	}
	if !opts.AutoEscape || v.IsSafe() {
		return value.Output(w, v)
	}
	s, err := v.Text()
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, Escape(s))
	return err
}

// Escape escapes s for HTML.
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '&':
			b.WriteString("&amp;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&#x27;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
