package synth

import (
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/goodsign/monday"

	"github.com/ajg/synth/log"
	"github.com/ajg/synth/value"
)

// Options configures a render.
//
// Templates never modify the Options passed to them: every render works on
// a Clone, and tags that reconfigure the render (such as an SSI config
// directive) change only that clone. Options built with NewOptions may be
// shared by concurrent renders.
type Options struct {
	// DefaultValue replaces missing variables.
	DefaultValue value.Value
	// ErrorValue replaces failed tags in fail-soft dialects.
	ErrorValue value.Value

	// Formats holds named format strings, such as DATE_FORMAT.
	Formats map[string]string
	// Directories are searched in order for template files.
	Directories []string

	// Libraries are importable by name.
	Libraries map[string]Library
	// Loaders materialize libraries missing from Libraries, in order.
	Loaders []Loader
	// Builtins are always available without an import.
	Builtins []Library
	// Resolvers are consulted in order for URL lookups.
	Resolvers []Resolver

	AutoEscape bool
	Locale     monday.Locale
	Now        func() time.Time
	Logger     log.Logger

	// MaxDepth bounds nested template renders. Zero means DefaultMaxDepth.
	MaxDepth int

	cache *cache
}

type cache struct {
	mu        sync.Mutex
	libraries map[string]Library
	tags      map[string]Tag
	filters   map[string]Filter
}

func newCache() *cache {
	return &cache{
		libraries: make(map[string]Library),
		tags:      make(map[string]Tag),
		filters:   make(map[string]Filter),
	}
}

func (c *cache) clone() *cache {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &cache{
		libraries: maps.Clone(c.libraries),
		tags:      maps.Clone(c.tags),
		filters:   maps.Clone(c.filters),
	}
}

// Option configures Options.
type Option func(*Options)

// NewOptions returns Options with defaults applied, then opts.
func NewOptions(opts ...Option) *Options {
	o := &Options{
		Formats:    make(map[string]string),
		Libraries:  make(map[string]Library),
		AutoEscape: true,
		Locale:     monday.LocaleEnUS,
		Now:        time.Now,
		cache:      newCache(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithDefaultValue sets the value of missing variables.
func WithDefaultValue(v any) Option {
	return func(o *Options) { o.DefaultValue = value.Of(v) }
}

// WithErrorValue sets the replacement of failed tags.
func WithErrorValue(v any) Option {
	return func(o *Options) { o.ErrorValue = value.Of(v) }
}

// WithFormat sets a named format string.
func WithFormat(name, format string) Option {
	return func(o *Options) {
		if o.Formats == nil {
			o.Formats = make(map[string]string)
		}
		o.Formats[name] = format
	}
}

// WithDirectories appends template directories.
func WithDirectories(dirs ...string) Option {
	return func(o *Options) { o.Directories = append(o.Directories, dirs...) }
}

// WithLibrary makes lib importable as name.
func WithLibrary(name string, lib Library) Option {
	return func(o *Options) {
		if o.Libraries == nil {
			o.Libraries = make(map[string]Library)
		}
		o.Libraries[name] = lib
	}
}

// WithLoader appends a library loader.
func WithLoader(l Loader) Option {
	return func(o *Options) { o.Loaders = append(o.Loaders, l) }
}

// WithBuiltins appends always-available libraries.
func WithBuiltins(libs ...Library) Option {
	return func(o *Options) { o.Builtins = append(o.Builtins, libs...) }
}

// WithResolver appends a URL resolver.
func WithResolver(r Resolver) Option {
	return func(o *Options) { o.Resolvers = append(o.Resolvers, r) }
}

// WithAutoEscape controls HTML escaping of substituted values in dialects
// that support it.
func WithAutoEscape(b bool) Option {
	return func(o *Options) { o.AutoEscape = b }
}

// WithLocale sets the locale of month and day names.
func WithLocale(l monday.Locale) Option {
	return func(o *Options) { o.Locale = l }
}

// WithNow sets the clock.
func WithNow(now func() time.Time) Option {
	return func(o *Options) { o.Now = now }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithMaxDepth bounds nested template renders.
func WithMaxDepth(n int) Option {
	return func(o *Options) { o.MaxDepth = n }
}

// Clone returns a copy of o that can be changed without affecting o. The
// copy starts with the libraries, tags and filters o has already loaded.
func (o *Options) Clone() *Options {
	cp := *o
	cp.Formats = maps.Clone(o.Formats)
	cp.Directories = slices.Clone(o.Directories)
	cp.Libraries = maps.Clone(o.Libraries)
	cp.Loaders = slices.Clone(o.Loaders)
	cp.Builtins = slices.Clone(o.Builtins)
	cp.Resolvers = slices.Clone(o.Resolvers)
	if o.cache != nil {
		cp.cache = o.cache.clone()
	} else {
		cp.cache = newCache()
	}
	return &cp
}

func (o *Options) c() *cache {
	if o.cache == nil {
		o.cache = newCache()
	}
	return o.cache
}

// Log returns the configured logger, or the package default.
func (o *Options) Log() log.Logger {
	if o.Logger.Logger == nil {
		return log.Default()
	}
	return o.Logger
}

// Time returns the current time according to the configured clock.
func (o *Options) Time() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// Format returns the named format, or fallback when it is not set.
func (o *Options) Format(name, fallback string) string {
	if f, ok := o.Formats[name]; ok {
		return f
	}
	return fallback
}

// ----------------------------------------------------------------------------
// libraries
// ----------------------------------------------------------------------------

// Library returns the library called name. It is looked up among the
// libraries already loaded, then in Libraries, then requested from each
// Loader in order. The result is cached, so loaders run at most once per
// name. It fails with ErrMissingLibrary when nothing provides name.
func (o *Options) Library(name string) (Library, error) {
	c := o.c()
	c.mu.Lock()
	lib, ok := c.libraries[name]
	c.mu.Unlock()
	if ok {
		o.Log().Trace("library cache hit", slog.String("library", name))
		return lib, nil
	}

	lib, ok = o.Libraries[name]
	if !ok {
		for _, l := range o.Loaders {
			found, err := l.Load(name, o)
			if err != nil {
				return nil, err
			}
			if found != nil {
				lib = found
				break
			}
		}
	}
	if lib == nil {
		return nil, Errorf(ErrMissingLibrary, "no library named %q", name).
			WithSuggestions(suggest(name, slices.Sorted(maps.Keys(o.Libraries)))...)
	}

	c.mu.Lock()
	if cached, ok := c.libraries[name]; ok {
		lib = cached
	} else {
		c.libraries[name] = lib
	}
	c.mu.Unlock()
	o.Log().Debug("library loaded",
		slog.String("library", name),
		slog.Int("tags", len(lib.Tags())),
		slog.Int("filters", len(lib.Filters())))
	return lib, nil
}

// Load imports tags and filters from the library called name. With names,
// only those are imported and each must be a tag or filter of the library
// (ErrMissingKey otherwise). Without names, every tag and filter the
// library lists is imported; a listed name the library cannot produce
// fails with ErrMissingTag or ErrMissingFilter.
func (o *Options) Load(name string, names ...string) error {
	lib, err := o.Library(name)
	if err != nil {
		return err
	}
	tags := make(map[string]Tag)
	filters := make(map[string]Filter)

	if len(names) > 0 {
		for _, n := range names {
			isTag, isFilter := lib.HasTag(n), lib.HasFilter(n)
			if !isTag && !isFilter {
				return Errorf(ErrMissingKey, "library %q has no tag or filter %q", name, n).
					WithSuggestions(suggest(n, append(lib.Tags(), lib.Filters()...))...)
			}
			if isTag {
				t, ok := lib.Tag(n)
				if !ok {
					return Errorf(ErrMissingTag, "library %q lists tag %q but does not provide it", name, n)
				}
				tags[n] = t
			}
			if isFilter {
				f, ok := lib.Filter(n)
				if !ok {
					return Errorf(ErrMissingFilter, "library %q lists filter %q but does not provide it", name, n)
				}
				filters[n] = f
			}
		}
	} else {
		for _, n := range lib.Tags() {
			t, ok := lib.Tag(n)
			if !ok {
				return Errorf(ErrMissingTag, "library %q lists tag %q but does not provide it", name, n)
			}
			tags[n] = t
		}
		for _, n := range lib.Filters() {
			f, ok := lib.Filter(n)
			if !ok {
				return Errorf(ErrMissingFilter, "library %q lists filter %q but does not provide it", name, n)
			}
			filters[n] = f
		}
	}

	c := o.c()
	c.mu.Lock()
	maps.Copy(c.tags, tags)
	maps.Copy(c.filters, filters)
	c.mu.Unlock()
	return nil
}

// LookupTag returns the tag called name from the imported tags or the
// builtins. It fails with ErrMissingTag.
func (o *Options) LookupTag(name string) (Tag, error) {
	c := o.c()
	c.mu.Lock()
	t, ok := c.tags[name]
	c.mu.Unlock()
	if ok {
		o.Log().Trace("tag cache hit", slog.String("tag", name))
		return t, nil
	}
	for _, lib := range o.Builtins {
		if !lib.HasTag(name) {
			continue
		}
		if t, ok := lib.Tag(name); ok {
			c.mu.Lock()
			c.tags[name] = t
			c.mu.Unlock()
			return t, nil
		}
	}
	return nil, Errorf(ErrMissingTag, "unknown tag %q", name).
		WithSuggestions(suggest(name, o.known(func(l Library) []string { return l.Tags() }, c.tags))...)
}

// LookupFilter returns the filter called name from the imported filters or
// the builtins. It fails with ErrMissingFilter.
func (o *Options) LookupFilter(name string) (Filter, error) {
	c := o.c()
	c.mu.Lock()
	f, ok := c.filters[name]
	c.mu.Unlock()
	if ok {
		o.Log().Trace("filter cache hit", slog.String("filter", name))
		return f, nil
	}
	for _, lib := range o.Builtins {
		if !lib.HasFilter(name) {
			continue
		}
		if f, ok := lib.Filter(name); ok {
			c.mu.Lock()
			c.filters[name] = f
			c.mu.Unlock()
			return f, nil
		}
	}
	return nil, Errorf(ErrMissingFilter, "unknown filter %q", name).
		WithSuggestions(suggest(name, o.known(func(l Library) []string { return l.Filters() }, c.filters))...)
}

func (o *Options) known(list func(Library) []string, loaded any) []string {
	var names []string
	for _, lib := range o.Builtins {
		names = append(names, list(lib)...)
	}
	c := o.c()
	c.mu.Lock()
	switch m := loaded.(type) {
	case map[string]Tag:
		names = slices.AppendSeq(names, maps.Keys(m))
	case map[string]Filter:
		names = slices.AppendSeq(names, maps.Keys(m))
	}
	c.mu.Unlock()
	slices.Sort(names)
	return slices.Compact(names)
}

// FilterCall is one step of a filter chain.
type FilterCall struct {
	Name string
	Args []value.Value
}

// ApplyFilter runs the filter called name.
func (o *Options) ApplyFilter(name string, in value.Value, args []value.Value, ctx *Context) (value.Value, error) {
	f, err := o.LookupFilter(name)
	if err != nil {
		return value.None(), err
	}
	return f(in, args, ctx, o)
}

// ApplyFilters runs a filter chain from left to right.
func (o *Options) ApplyFilters(in value.Value, chain []FilterCall, ctx *Context) (value.Value, error) {
	v := in
	for _, call := range chain {
		var err error
		if v, err = o.ApplyFilter(call.Name, v, call.Args, ctx); err != nil {
			return value.None(), err
		}
	}
	return v, nil
}

// ----------------------------------------------------------------------------
// resolvers
// ----------------------------------------------------------------------------

// Resolve asks each resolver in order for the URL of path.
func (o *Options) Resolve(path string, ctx *Context) (string, bool) {
	for _, r := range o.Resolvers {
		if u, ok := r.Resolve(path, ctx, o); ok {
			return u, true
		}
	}
	return "", false
}

// Reverse asks each resolver in order for the URL of the named route.
func (o *Options) Reverse(name string, args []value.Value, ctx *Context) (string, bool) {
	for _, r := range o.Resolvers {
		if u, ok := r.Reverse(name, args, ctx, o); ok {
			return u, true
		}
	}
	return "", false
}
