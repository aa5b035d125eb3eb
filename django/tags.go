package django

import (
	"fmt"
	"io"
	"math"
	"regexp"
	"slices"
	"strings"

	"github.com/ajg/synth"
	g "github.com/ajg/synth/grammar"
	"github.com/ajg/synth/value"
)

var handlers = map[string]synth.Handler{
	idVariable:    renderVariable,
	idNote:        renderNothing,
	idComment:     renderNothing,
	idVerbatim:    renderVerbatim,
	idIf:          renderIf,
	idIfEqual:     renderIfEqual,
	idIfNotEqual:  renderIfEqual,
	idFor:         renderFor,
	idWith:        renderWith,
	idBlock:       renderBlock,
	idExtends:     renderExtends,
	idInclude:     renderInclude,
	idLoad:        renderLoad,
	idCycle:       renderCycle,
	idFirstOf:     renderFirstOf,
	idNow:         renderNow,
	idURL:         renderURL,
	idTemplateTag: renderTemplateTag,
	idSpaceless:   renderSpaceless,
	idAutoEscape:  renderAutoEscape,
	idFilter:      renderFilter,
	idWidthRatio:  renderWidthRatio,
	idDebug:       renderDebug,
	idTag:         renderTag,
}

func body(n synth.Node) synth.Node {
	b, _ := n.Child(g.BlockID)
	return b
}

func exprs(n synth.Node) []synth.Node {
	return slices.Collect(n.All(idExpr))
}

func renderNothing(synth.Node, io.Writer, *synth.Context, *synth.Options) error {
	return nil
}

func renderVariable(n synth.Node, w io.Writer, ctx *synth.Context, opts *synth.Options) error {
	e, _ := n.Child(idExpr)
	v, err := eval(e, ctx, opts)
	if err != nil {
		return err
	}
	return write(w, v, opts)
}

func renderVerbatim(n synth.Node, w io.Writer, _ *synth.Context, _ *synth.Options) error {
	_, err := io.WriteString(w, n.ChildText(idRaw))
	return err
}

// ----------------------------------------------------------------------------
// control flow
// ----------------------------------------------------------------------------

func renderIf(n synth.Node, w io.Writer, ctx *synth.Context, opts *synth.Options) error {
	cond, _ := n.Child(idOr)
	ok, err := test(cond, ctx, opts)
	if err != nil {
		return err
	}
	if ok {
		return body(n).Render(w, ctx, opts)
	}
	for elif := range n.All(idElif) {
		cond, _ := elif.Child(idOr)
		ok, err := test(cond, ctx, opts)
		if err != nil {
			return err
		}
		if ok {
			return body(elif).Render(w, ctx, opts)
		}
	}
	if e, ok := n.Child(idElse); ok {
		return body(e).Render(w, ctx, opts)
	}
	return nil
}

func renderIfEqual(n synth.Node, w io.Writer, ctx *synth.Context, opts *synth.Options) error {
	args := exprs(n)
	a, err := eval(args[0], ctx, opts)
	if err != nil {
		return err
	}
	b, err := eval(args[1], ctx, opts)
	if err != nil {
		return err
	}
	if value.Equal(a, b) == (n.ID() == idIfEqual) {
		return body(n).Render(w, ctx, opts)
	}
	if e, ok := n.Child(idElse); ok {
		return body(e).Render(w, ctx, opts)
	}
	return nil
}

func renderFor(n synth.Node, w io.Writer, ctx *synth.Context, opts *synth.Options) error {
	e, _ := n.Child(idExpr)
	seq, err := eval(e, ctx, opts)
	if err != nil {
		return err
	}
	items, err := seq.Items()
	if err != nil {
		return err
	}
	var names []string
	for name := range n.All(idName) {
		names = append(names, name.Text())
	}
	if seq.Kind() == value.KindMap && len(names) == 1 {
		for i, item := range items {
			items[i], _ = item.Attr("key")
		}
	}
	if _, ok := n.Child(idReversed); ok {
		slices.Reverse(items)
	}
	if len(items) == 0 {
		if empty, ok := n.Child(idEmpty); ok {
			return body(empty).Render(w, ctx, opts)
		}
		return nil
	}

	parent := ctx.Lookup("forloop")
	for i, item := range items {
		bindings := map[string]value.Value{
			"forloop": value.MapOf(map[string]any{
				"counter":     i + 1,
				"counter0":    i,
				"revcounter":  len(items) - i,
				"revcounter0": len(items) - i - 1,
				"first":       i == 0,
				"last":        i == len(items)-1,
				"parentloop":  parent,
			}),
		}
		if err := unpack(bindings, names, item); err != nil {
			return err
		}
		err := ctx.Scope(bindings, func() error {
			return body(n).Render(w, ctx, opts)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func unpack(bindings map[string]value.Value, names []string, item value.Value) error {
	if len(names) == 1 {
		bindings[names[0]] = item
		return nil
	}
	parts, err := item.Items()
	if err != nil {
		return err
	}
	if len(parts) != len(names) {
		return synth.Errorf(synth.ErrInvalidArgument, "cannot unpack %d values into %d names", len(parts), len(names))
	}
	for i, name := range names {
		bindings[name] = parts[i]
	}
	return nil
}

func binds(n synth.Node, ctx *synth.Context, opts *synth.Options) (map[string]value.Value, error) {
	out := make(map[string]value.Value)
	for b := range n.All(idBind) {
		e, _ := b.Child(idExpr)
		v, err := eval(e, ctx, opts)
		if err != nil {
			return nil, err
		}
		out[b.ChildText(idName)] = v
	}
	return out, nil
}

func renderWith(n synth.Node, w io.Writer, ctx *synth.Context, opts *synth.Options) error {
	bindings, err := binds(n, ctx, opts)
	if err != nil {
		return err
	}
	return ctx.Scope(bindings, func() error {
		return body(n).Render(w, ctx, opts)
	})
}

// ----------------------------------------------------------------------------
// templates
// ----------------------------------------------------------------------------

func load(n synth.Node, ctx *synth.Context, opts *synth.Options) (*synth.Template, error) {
	e, _ := n.Child(idExpr)
	name, err := eval(e, ctx, opts)
	if err != nil {
		return nil, err
	}
	if t, ok := name.Interface().(*synth.Template); ok {
		return t, nil
	}
	return n.Template().Engine().Load(name.String(), opts)
}

// collect records the first block of each name under n.
func collect(n synth.Node, into map[string]synth.Node) {
	for _, c := range n.Nested() {
		if c.ID() == idBlock {
			name := c.ChildText(idName)
			if _, ok := into[name]; !ok {
				into[name] = c
			}
		}
		collect(c, into)
	}
}

// renderExtends renders the parent template with the blocks of this one
// layered over it, then halts the rendering of this template.
func renderExtends(n synth.Node, w io.Writer, ctx *synth.Context, opts *synth.Options) error {
	parent, err := load(n, ctx, opts)
	if err != nil {
		return err
	}
	own := make(map[string]synth.Node)
	collect(n.Template().Root(), own)

	table := make(synth.BlockTable)
	if existing, ok := ctx.Blocks(); ok {
		for name, layers := range existing {
			table[name] = slices.Clone(layers)
		}
	}
	for name, b := range own {
		table[name] = append(table[name], b)
	}

	exit := ctx.WithBlocks(table)
	defer exit()
	if err := parent.Include(w, ctx, opts); err != nil {
		return err
	}
	return synth.Halt
}

func renderBlock(n synth.Node, w io.Writer, ctx *synth.Context, opts *synth.Options) error {
	name := n.ChildText(idName)
	layers, err := ctx.Block(name)
	if err != nil {
		layers = nil
	}
	if !slices.Contains(layers, n) {
		layers = append(slices.Clone(layers), n)
	}
	exit := ctx.EnterBlock(name, layers)
	defer exit()
	return body(layers[0]).Render(w, ctx, opts)
}

func renderInclude(n synth.Node, w io.Writer, ctx *synth.Context, opts *synth.Options) error {
	t, err := load(n, ctx, opts)
	if err != nil {
		return err
	}
	bindings, err := binds(n, ctx, opts)
	if err != nil {
		return err
	}
	if _, only := n.Child(idOnly); only {
		return t.Include(w, ctx.Isolated(bindings), opts)
	}
	exit := ctx.WithBlocks(nil)
	defer exit()
	return ctx.Scope(bindings, func() error {
		return t.Include(w, ctx, opts)
	})
}

func renderLoad(n synth.Node, _ io.Writer, _ *synth.Context, opts *synth.Options) error {
	var names []string
	for c := range n.All(idName) {
		names = append(names, c.Text())
	}
	if lib, ok := n.Child(idLibrary); ok {
		return opts.Load(lib.Text(), names...)
	}
	for _, name := range names {
		if err := opts.Load(name); err != nil {
			return err
		}
	}
	return nil
}

// ----------------------------------------------------------------------------
// values
// ----------------------------------------------------------------------------

func renderCycle(n synth.Node, w io.Writer, ctx *synth.Context, opts *synth.Options) error {
	args := exprs(n)
	i := ctx.NextCycle(n, len(args))
	v, err := eval(args[i], ctx, opts)
	if err != nil {
		return err
	}
	if as, ok := n.Child(idAs); ok {
		ctx.Set(as.Text(), v)
		if _, silent := n.Child(idSilent); silent {
			return nil
		}
	}
	return write(w, v, opts)
}

func renderFirstOf(n synth.Node, w io.Writer, ctx *synth.Context, opts *synth.Options) error {
	for _, e := range exprs(n) {
		v, err := eval(e, ctx, opts)
		if err != nil {
			return err
		}
		if v.Truth() {
			return write(w, v, opts)
		}
	}
	return nil
}

// assign binds v to the name after "as", or writes it.
func assign(n synth.Node, w io.Writer, v value.Value, ctx *synth.Context, opts *synth.Options) error {
	if as, ok := n.Child(idAs); ok {
		ctx.Set(as.Text(), v)
		return nil
	}
	return write(w, v, opts)
}

func renderNow(n synth.Node, w io.Writer, ctx *synth.Context, opts *synth.Options) error {
	e, _ := n.Child(idExpr)
	f, err := eval(e, ctx, opts)
	if err != nil {
		return err
	}
	layout := opts.Format(f.String(), f.String())
	return assign(n, w, value.Of(FormatDate(opts.Time(), layout, opts.Locale)), ctx, opts)
}

func renderURL(n synth.Node, w io.Writer, ctx *synth.Context, opts *synth.Options) error {
	var vals []value.Value
	for _, e := range exprs(n) {
		v, err := eval(e, ctx, opts)
		if err != nil {
			return err
		}
		vals = append(vals, v)
	}
	name := vals[0].String()
	u, ok := opts.Reverse(name, vals[1:], ctx)
	if !ok {
		if _, as := n.Child(idAs); as {
			u = ""
		} else {
			return synth.Errorf(synth.ErrMissingKey, "no route %q taking %d arguments", name, len(vals)-1)
		}
	}
	return assign(n, w, value.Of(u), ctx, opts)
}

var templateTags = map[string]string{
	"openblock":     "{%",
	"closeblock":    "%}",
	"openvariable":  "{{",
	"closevariable": "}}",
	"openbrace":     "{",
	"closebrace":    "}",
	"opencomment":   "{#",
	"closecomment":  "#}",
}

func renderTemplateTag(n synth.Node, w io.Writer, _ *synth.Context, _ *synth.Options) error {
	name := n.ChildText(idName)
	s, ok := templateTags[name]
	if !ok {
		return synth.Errorf(synth.ErrInvalidArgument, "unknown templatetag %q", name)
	}
	_, err := io.WriteString(w, s)
	return err
}

func renderWidthRatio(n synth.Node, w io.Writer, ctx *synth.Context, opts *synth.Options) error {
	var nums [3]float64
	for i, e := range exprs(n) {
		v, err := eval(e, ctx, opts)
		if err != nil {
			return err
		}
		if nums[i], err = v.Number(); err != nil {
			return err
		}
	}
	ratio := int64(0)
	if nums[1] != 0 {
		r := math.Round(nums[0] / nums[1] * nums[2])
		if !math.IsNaN(r) && r >= math.MinInt64 && r < math.MaxInt64 {
			ratio = int64(r)
		}
	}
	return assign(n, w, value.Of(ratio), ctx, opts)
}

func renderDebug(_ synth.Node, w io.Writer, ctx *synth.Context, opts *synth.Options) error {
	var b strings.Builder
	for _, k := range ctx.Keys() {
		fmt.Fprintf(&b, "%s: %s\n", k, ctx.Lookup(k).Repr())
	}
	return write(w, value.Of(b.String()), opts)
}

// ----------------------------------------------------------------------------
// output transformations
// ----------------------------------------------------------------------------

var betweenTags = regexp.MustCompile(`>\s+<`)

func renderSpaceless(n synth.Node, w io.Writer, ctx *synth.Context, opts *synth.Options) error {
	var b strings.Builder
	if err := body(n).Render(&b, ctx, opts); err != nil {
		return err
	}
	_, err := io.WriteString(w, betweenTags.ReplaceAllString(strings.TrimSpace(b.String()), "><"))
	return err
}

func renderAutoEscape(n synth.Node, w io.Writer, ctx *synth.Context, opts *synth.Options) error {
	prev := opts.AutoEscape
	opts.AutoEscape = n.ChildText(idMode) == "on"
	defer func() { opts.AutoEscape = prev }()
	return body(n).Render(w, ctx, opts)
}

func renderFilter(n synth.Node, w io.Writer, ctx *synth.Context, opts *synth.Options) error {
	chain, _ := n.Child(idChain)
	var calls []synth.FilterCall
	for c := range chain.All(idPipe) {
		call, err := pipe(c, ctx, opts)
		if err != nil {
			return err
		}
		calls = append(calls, call)
	}
	var b strings.Builder
	if err := body(n).Render(&b, ctx, opts); err != nil {
		return err
	}
	v, err := opts.ApplyFilters(value.Safe(b.String()), calls, ctx)
	if err != nil {
		return err
	}
	return write(w, v, opts)
}

// renderTag runs a tag imported from a library.
func renderTag(n synth.Node, w io.Writer, ctx *synth.Context, opts *synth.Options) error {
	name := n.ChildText(idName)
	tag, err := opts.LookupTag(name)
	if err != nil {
		return err
	}
	var args []value.Value
	for _, e := range exprs(n) {
		v, err := eval(e, ctx, opts)
		if err != nil {
			return err
		}
		args = append(args, v)
	}
	return tag(w, args, nil, ctx, opts)
}
