package synth

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/ajg/synth/grammar"
	"github.com/ajg/synth/value"
)

// Handler renders one kind of tag. It is called with the node the grammar
// captured for the tag.
type Handler func(n Node, w io.Writer, ctx *Context, opts *Options) error

// Halt stops a render without failing it. Output written so far is kept.
// Halt is never replaced by Options.ErrorValue.
var Halt = errors.New("synth: halt")

// Dialect describes a template language.
type Dialect struct {
	Name string

	// Grammar parses template sources.
	Grammar *grammar.Grammar
	// Handlers maps every capture ID the grammar emits at tag level to the
	// function rendering it.
	Handlers map[string]Handler

	// FailSoft replaces failed tags with Options.ErrorValue and continues.
	FailSoft bool
	// CaseInsensitive makes variable names match regardless of case.
	CaseInsensitive bool

	// Builtins are always searched for tags and filters, after any builtins
	// set on the Options of a render.
	Builtins []Library
	// Options are the defaults applied by Engine.NewOptions.
	Options []Option
}

// TemplateLoader returns the source of the named template. It returns an
// error wrapping fs.ErrNotExist when it does not know name.
type TemplateLoader func(name string) (string, error)

// Engine parses and stores templates of one dialect. It is safe for
// concurrent use.
type Engine struct {
	dialect *Dialect

	mu        sync.RWMutex
	templates map[string]*Template
	loader    TemplateLoader
}

// New creates an engine for d. It panics when d has a handler for one of
// the reserved IDs grammar.RootID, grammar.BlockID or grammar.TextID.
func New(d *Dialect) *Engine {
	for _, id := range []string{grammar.RootID, grammar.BlockID, grammar.TextID} {
		if _, ok := d.Handlers[id]; ok {
			panic(fmt.Sprintf("synth: dialect %q has a handler for reserved ID %q", d.Name, id))
		}
	}
	return &Engine{
		dialect:   d,
		templates: make(map[string]*Template),
	}
}

// Dialect returns the dialect of e.
func (e *Engine) Dialect() *Dialect {
	return e.dialect
}

// NewOptions returns Options holding the dialect defaults followed by opts.
func (e *Engine) NewOptions(opts ...Option) *Options {
	all := slices.Concat(e.dialect.Options, opts)
	return NewOptions(all...)
}

// Parse parses src as an anonymous template.
func (e *Engine) Parse(src string) (*Template, error) {
	return e.ParseNamed("<string>", src)
}

// ParseNamed parses src as a template called name without storing it.
func (e *Engine) ParseNamed(name, src string) (*Template, error) {
	tree, err := e.dialect.Grammar.Parse(name, src)
	if err != nil {
		return nil, err
	}
	return &Template{name: name, tree: tree, engine: e}, nil
}

// ParseFile parses the template stored at path.
func (e *Engine) ParseFile(path string) (*Template, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return e.ParseNamed(path, string(src))
}

// AddTemplate parses src and stores it as name.
func (e *Engine) AddTemplate(name, src string) error {
	t, err := e.ParseNamed(name, src)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.templates[name] = t
	e.mu.Unlock()
	return nil
}

// SetLoader sets the loader consulted for templates that are neither stored
// nor found in a directory.
func (e *Engine) SetLoader(l TemplateLoader) {
	e.mu.Lock()
	e.loader = l
	e.mu.Unlock()
}

// Load returns the template called name. Stored templates come first, then
// files under opts.Directories in order, then the loader. Templates returned
// by the loader are stored. It fails with ErrMissingTemplate.
func (e *Engine) Load(name string, opts *Options) (*Template, error) {
	e.mu.RLock()
	t, ok := e.templates[name]
	loader := e.loader
	e.mu.RUnlock()
	if ok {
		return t, nil
	}

	if opts != nil && filepath.IsLocal(filepath.FromSlash(name)) {
		for _, dir := range opts.Directories {
			path := filepath.Join(dir, filepath.FromSlash(name))
			src, err := os.ReadFile(path)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, err
			}
			opts.Log().Debug("template loaded", slog.String("template", name), slog.String("path", path))
			return e.ParseNamed(name, string(src))
		}
	}

	if loader != nil {
		src, err := loader(name)
		switch {
		case err == nil:
			if err := e.AddTemplate(name, src); err != nil {
				return nil, err
			}
			if opts != nil {
				opts.Log().Debug("template loaded", slog.String("template", name), slog.String("loader", "custom"))
			}
			e.mu.RLock()
			t = e.templates[name]
			e.mu.RUnlock()
			return t, nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, err
		}
	}
	return nil, Errorf(ErrMissingTemplate, "template %q not found", name)
}

// ----------------------------------------------------------------------------
// Template
// ----------------------------------------------------------------------------

// Template is a parsed template. It is immutable and may be rendered by
// several goroutines at once.
type Template struct {
	name   string
	tree   *grammar.Tree
	engine *Engine
}

// Name returns the template name.
func (t *Template) Name() string {
	return t.name
}

// Source returns the template source.
func (t *Template) Source() string {
	return t.tree.Source
}

// Tree returns the match tree.
func (t *Template) Tree() *grammar.Tree {
	return t.tree
}

// Engine returns the engine that parsed t.
func (t *Template) Engine() *Engine {
	return t.engine
}

// Root returns the node spanning the whole template.
func (t *Template) Root() Node {
	return Node{t: t, m: t.tree.Root}
}

// Render renders t and returns the output. A nil ctx renders against an
// empty context; nil opts means the engine defaults.
func (t *Template) Render(ctx *Context, opts *Options) (string, error) {
	var b strings.Builder
	err := t.RenderTo(&b, ctx, opts)
	return b.String(), err
}

// RenderTo renders t to w. The caller's opts are never modified, and ctx
// keeps its case sensitivity once the render is over.
func (t *Template) RenderTo(w io.Writer, ctx *Context, opts *Options) error {
	if ctx == nil {
		ctx = NewContext(nil)
	}
	if opts == nil {
		opts = t.engine.NewOptions()
	} else {
		opts = opts.Clone()
	}
	d := t.engine.dialect
	opts.Builtins = append(opts.Builtins, d.Builtins...)
	if d.CaseInsensitive && !ctx.CaseInsensitive() {
		ctx.SetCaseInsensitive(true)
		defer ctx.SetCaseInsensitive(false)
	}
	return t.Include(w, ctx, opts)
}

// RenderToPath renders t into the file at path, replacing its contents.
func (t *Template) RenderToPath(path string, ctx *Context, opts *Options) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	bw := bufio.NewWriter(f)
	if err := t.RenderTo(bw, ctx, opts); err != nil {
		return err
	}
	return bw.Flush()
}

// Include renders t against the context and options of a render already in
// progress. Tags rendering other templates use it.
func (t *Template) Include(w io.Writer, ctx *Context, opts *Options) error {
	exit, err := ctx.nest(opts.MaxDepth)
	if err != nil {
		return err
	}
	defer exit()
	err = t.Root().Render(w, ctx, opts)
	if errors.Is(err, Halt) {
		return nil
	}
	return err
}

// ----------------------------------------------------------------------------
// Node
// ----------------------------------------------------------------------------

// Node is a match of a template's tree.
type Node struct {
	t *Template
	m *grammar.Match
}

// Valid reports whether n refers to a match.
func (n Node) Valid() bool {
	return n.m != nil
}

// ID returns the capture ID of n.
func (n Node) ID() string {
	return n.m.ID
}

// Text returns the source covered by n.
func (n Node) Text() string {
	return n.m.Text(n.t.tree.Source)
}

// Offset returns the byte offset of n in the template source.
func (n Node) Offset() int {
	return n.m.Start
}

// Template returns the template n belongs to.
func (n Node) Template() *Template {
	return n.t
}

// Child returns the first directly nested node with the given ID.
func (n Node) Child(id string) (Node, bool) {
	m := n.m.Child(id)
	return Node{t: n.t, m: m}, m != nil
}

// ChildText returns the text of the first directly nested node with the
// given ID, or "".
func (n Node) ChildText(id string) string {
	if c, ok := n.Child(id); ok {
		return c.Text()
	}
	return ""
}

// All yields the directly nested nodes with the given ID.
func (n Node) All(id string) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		for m := range n.m.All(id) {
			if !yield(Node{t: n.t, m: m}) {
				return
			}
		}
	}
}

// Nested returns the directly nested nodes.
func (n Node) Nested() []Node {
	out := make([]Node, len(n.m.Nested))
	for i, m := range n.m.Nested {
		out[i] = Node{t: n.t, m: m}
	}
	return out
}

// Body returns a Body rendering n.
func (n Node) Body() Body {
	return n.Render
}

// Errorf creates an error of the given kind positioned at n.
func (n Node) Errorf(kind ErrorKind, format string, args ...any) *Error {
	return Errorf(kind, format, args...).WithName(n.t.name).WithPosition(n.t.tree.Source, n.m.Start)
}

// Render renders n. Text is copied verbatim, blocks render their children
// in order and tags are passed to the dialect handler registered for their
// ID. A tag without a handler is a bug in the dialect and panics.
//
// Tag IDs must differ from the reserved IDs of package grammar: a tag
// captured as grammar.BlockID would be rendered as a plain sequence.
func (n Node) Render(w io.Writer, ctx *Context, opts *Options) error {
	switch n.m.ID {
	case grammar.TextID:
		_, err := io.WriteString(w, n.Text())
		return err
	case grammar.RootID, grammar.BlockID:
		for _, m := range n.m.Nested {
			if err := (Node{t: n.t, m: m}).Render(w, ctx, opts); err != nil {
				return err
			}
		}
		return nil
	}
	h, ok := n.t.engine.dialect.Handlers[n.m.ID]
	if !ok {
		panic(fmt.Sprintf("synth: dialect %q has no handler for %q", n.t.engine.dialect.Name, n.m.ID))
	}
	return n.fail(h(n, w, ctx, opts), w, opts)
}

// fail applies the failure policy of the dialect to the error of a tag.
func (n Node) fail(err error, w io.Writer, opts *Options) error {
	if err == nil || errors.Is(err, Halt) {
		return err
	}
	var e *Error
	if errors.As(err, &e) {
		e.WithName(n.t.name).WithPosition(n.t.tree.Source, n.m.Start)
	}
	if !n.t.engine.dialect.FailSoft {
		return err
	}
	opts.Log().Warn("tag failed",
		slog.String("template", n.t.name),
		slog.String("tag", n.m.ID),
		slog.Any("error", err))
	return value.Output(w, opts.ErrorValue)
}
