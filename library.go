package synth

import (
	"io"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/ajg/synth/value"
)

// Body renders a nested template body.
type Body func(w io.Writer, ctx *Context, opts *Options) error

// Tag is a library tag. It receives its evaluated arguments and the bodies
// it encloses, and may change ctx for the tags that follow it.
type Tag func(w io.Writer, args []value.Value, bodies []Body, ctx *Context, opts *Options) error

// Filter transforms a value.
type Filter func(in value.Value, args []value.Value, ctx *Context, opts *Options) (value.Value, error)

// Library is a named bundle of tags and filters.
type Library interface {
	HasTag(name string) bool
	HasFilter(name string) bool
	Tags() []string
	Filters() []string
	Tag(name string) (Tag, bool)
	Filter(name string) (Filter, bool)
}

// Bundle is a Library backed by maps.
type Bundle struct {
	tags    map[string]Tag
	filters map[string]Filter
}

// NewBundle returns a Bundle holding tags and filters. Either map may be
// nil.
func NewBundle(tags map[string]Tag, filters map[string]Filter) *Bundle {
	b := &Bundle{
		tags:    make(map[string]Tag, len(tags)),
		filters: make(map[string]Filter, len(filters)),
	}
	maps.Copy(b.tags, tags)
	maps.Copy(b.filters, filters)
	return b
}

// AddTag registers a tag.
func (b *Bundle) AddTag(name string, t Tag) *Bundle {
	b.tags[name] = t
	return b
}

// AddFilter registers a filter.
func (b *Bundle) AddFilter(name string, f Filter) *Bundle {
	b.filters[name] = f
	return b
}

func (b *Bundle) HasTag(name string) bool {
	_, ok := b.tags[name]
	return ok
}

func (b *Bundle) HasFilter(name string) bool {
	_, ok := b.filters[name]
	return ok
}

func (b *Bundle) Tags() []string    { return slices.Sorted(maps.Keys(b.tags)) }
func (b *Bundle) Filters() []string { return slices.Sorted(maps.Keys(b.filters)) }

func (b *Bundle) Tag(name string) (Tag, bool) {
	t, ok := b.tags[name]
	return t, ok
}

func (b *Bundle) Filter(name string) (Filter, bool) {
	f, ok := b.filters[name]
	return f, ok
}

// Loader materializes libraries by name. Load returns a nil Library when it
// does not know name.
type Loader interface {
	Load(name string, opts *Options) (Library, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(name string, opts *Options) (Library, error)

func (f LoaderFunc) Load(name string, opts *Options) (Library, error) {
	return f(name, opts)
}

// suggest returns up to three candidates close to name.
func suggest(name string, candidates []string) []string {
	var out []string
	for _, m := range fuzzy.Find(name, candidates) {
		if len(out) == 3 {
			break
		}
		out = append(out, m.Str)
	}
	return out
}

// ----------------------------------------------------------------------------
// resolvers
// ----------------------------------------------------------------------------

// Resolver maps between paths, route names and URLs.
type Resolver interface {
	Resolve(path string, ctx *Context, opts *Options) (string, bool)
	Reverse(name string, args []value.Value, ctx *Context, opts *Options) (string, bool)
}

// Route is a named URL pattern. Segments written as {name} match any
// non-empty path segment and are filled from arguments in order.
type Route struct {
	Name    string
	Pattern string
}

// Routes is a Resolver over a list of routes. Earlier routes win.
type Routes struct {
	routes []compiledRoute
}

type compiledRoute struct {
	Route
	match *regexp.Regexp
	holes [][]int
}

var placeholder = regexp.MustCompile(`\{[^/{}]*\}`)

// NewRoutes returns Routes holding routes, in order.
func NewRoutes(routes ...Route) *Routes {
	rs := &Routes{}
	for _, r := range routes {
		rs.Add(r)
	}
	return rs
}

// Add appends r. Its pattern is compiled once, here.
func (rs *Routes) Add(r Route) *Routes {
	parts := placeholder.Split(r.Pattern, -1)
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	rs.routes = append(rs.routes, compiledRoute{
		Route: r,
		match: regexp.MustCompile("^" + strings.Join(parts, `[^/]+`) + "$"),
		holes: placeholder.FindAllStringIndex(r.Pattern, -1),
	})
	return rs
}

// Resolve returns path when some route pattern matches it.
func (rs *Routes) Resolve(path string, _ *Context, _ *Options) (string, bool) {
	for _, r := range rs.routes {
		if r.match.MatchString(path) {
			return path, true
		}
	}
	return "", false
}

// Reverse fills the placeholders of the named route with args.
func (rs *Routes) Reverse(name string, args []value.Value, _ *Context, _ *Options) (string, bool) {
	for _, r := range rs.routes {
		if r.Name != name {
			continue
		}
		if len(r.holes) != len(args) {
			return "", false
		}
		var b strings.Builder
		last := 0
		for i, h := range r.holes {
			b.WriteString(r.Pattern[last:h[0]])
			b.WriteString(args[i].String())
			last = h[1]
		}
		b.WriteString(r.Pattern[last:])
		return b.String(), true
	}
	return "", false
}
