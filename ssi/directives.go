package ssi

import (
	"fmt"
	"html"
	"io"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ajg/synth"
	g "github.com/ajg/synth/grammar"
	"github.com/ajg/synth/value"
)

type attr struct {
	key, value string
}

// attrs returns the attributes of a directive in source order.
func attrs(n synth.Node) []attr {
	var out []attr
	for a := range n.All(idAttr) {
		out = append(out, attr{
			key:   strings.ToLower(a.ChildText(idKey)),
			value: unquote(a.ChildText(idValue)),
		})
	}
	return out
}

func unquote(s string) string {
	s = s[1 : len(s)-1]
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && (s[i+1] == '"' || s[i+1] == '\'' || s[i+1] == '\\') {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// single returns the only attribute of a directive that takes exactly one.
func single(n synth.Node, keys ...string) (attr, error) {
	as := attrs(n)
	if len(as) != 1 {
		return attr{}, n.Errorf(synth.ErrInvalidArgument, "%s takes one of %s", n.ID(), strings.Join(keys, ", "))
	}
	for _, k := range keys {
		if as[0].key == k {
			return as[0], nil
		}
	}
	return attr{}, n.Errorf(synth.ErrInvalidArgument, "%s does not take %q", n.ID(), as[0].key)
}

// lookup returns the variable called name, or one of the variables every
// document has.
func lookup(name string, n synth.Node, ctx *synth.Context, opts *synth.Options) (value.Value, bool) {
	if v, ok := ctx.Get(name); ok {
		return v, true
	}
	switch name {
	case "DATE_LOCAL":
		return value.Of(Strftime(opts.Time().Local(), opts.Format(TimeFormat, DefaultTimeFormat), opts.Locale)), true
	case "DATE_GMT":
		return value.Of(Strftime(opts.Time().UTC(), opts.Format(TimeFormat, DefaultTimeFormat), opts.Locale)), true
	case "DOCUMENT_NAME":
		return value.Of(filepath.Base(n.Template().Name())), true
	case "DOCUMENT_URI":
		return value.Of(n.Template().Name()), true
	}
	return value.None(), false
}

// ----------------------------------------------------------------------------
// variables
// ----------------------------------------------------------------------------

func renderEcho(n synth.Node, w io.Writer, ctx *synth.Context, opts *synth.Options) error {
	var (
		name     string
		encoding = "entity"
	)
	for _, a := range attrs(n) {
		switch a.key {
		case "var":
			name = a.value
		case "encoding":
			encoding = strings.ToLower(a.value)
		default:
			return n.Errorf(synth.ErrInvalidArgument, "echo does not take %q", a.key)
		}
	}
	if name == "" {
		return n.Errorf(synth.ErrInvalidArgument, "echo requires var")
	}

	v, ok := lookup(name, n, ctx, opts)
	if !ok {
		return value.Output(w, opts.DefaultValue)
	}
	s, err := v.Text()
	if err != nil {
		return err
	}
	switch encoding {
	case "none":
	case "entity":
		s = html.EscapeString(s)
	case "url":
		s = url.QueryEscape(s)
	default:
		return n.Errorf(synth.ErrInvalidArgument, "unknown encoding %q", encoding)
	}
	_, err = io.WriteString(w, s)
	return err
}

func renderSet(n synth.Node, _ io.Writer, ctx *synth.Context, opts *synth.Options) error {
	var name, val string
	var hasValue bool
	for _, a := range attrs(n) {
		switch a.key {
		case "var":
			name = a.value
		case "value":
			val, hasValue = a.value, true
		default:
			return n.Errorf(synth.ErrInvalidArgument, "set does not take %q", a.key)
		}
	}
	if name == "" || !hasValue {
		return n.Errorf(synth.ErrInvalidArgument, "set requires var and value")
	}
	ctx.Set(name, value.Of(interpolate(val, n, ctx, opts)))
	return nil
}

func renderPrintEnv(n synth.Node, w io.Writer, ctx *synth.Context, _ *synth.Options) error {
	if len(attrs(n)) > 0 {
		return n.Errorf(synth.ErrInvalidArgument, "printenv takes no attributes")
	}
	for _, k := range ctx.Keys() {
		if _, err := fmt.Fprintf(w, "%s=%s\n", k, html.EscapeString(ctx.Lookup(k).String())); err != nil {
			return err
		}
	}
	return nil
}

// interpolate substitutes $name and ${name} in s. A backslash before a
// dollar sign keeps it literal; unknown variables are empty.
func interpolate(s string, n synth.Node, ctx *synth.Context, opts *synth.Options) string {
	if !strings.Contains(s, "$") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s) && s[i+1] == '$':
			b.WriteByte('$')
			i++
			continue
		case c != '$':
			b.WriteByte(c)
			continue
		}
		name, width := variable(s[i+1:])
		if width == 0 {
			b.WriteByte(c)
			continue
		}
		if v, ok := lookup(name, n, ctx, opts); ok {
			b.WriteString(v.String())
		}
		i += width
	}
	return b.String()
}

// variable parses the name following a dollar sign and returns it with the
// number of bytes it spans.
func variable(s string) (string, int) {
	if strings.HasPrefix(s, "{") {
		end := strings.IndexByte(s, '}')
		if end < 2 {
			return "", 0
		}
		return s[1:end], end + 1
	}
	i := 0
	for i < len(s) && (s[i] == '_' || isAlnum(s[i])) {
		i++
	}
	return s[:i], i
}

func isAlnum(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9'
}

// ----------------------------------------------------------------------------
// files
// ----------------------------------------------------------------------------

// path resolves a file, virtual or cgi attribute against the template
// directories.
func path(a attr, n synth.Node, ctx *synth.Context, opts *synth.Options) (string, error) {
	name := interpolate(a.value, n, ctx, opts)
	if a.key != "file" {
		name = strings.TrimPrefix(name, "/")
	}
	name = filepath.FromSlash(name)
	if !filepath.IsLocal(name) {
		return "", n.Errorf(synth.ErrInvalidArgument, "%s %q leaves the document tree", a.key, a.value)
	}
	if len(opts.Directories) == 0 {
		return name, nil
	}
	for _, dir := range opts.Directories {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", n.Errorf(synth.ErrMissingTemplate, "%s %q not found", a.key, a.value)
}

func stat(n synth.Node, ctx *synth.Context, opts *synth.Options) (os.FileInfo, error) {
	a, err := single(n, "file", "virtual")
	if err != nil {
		return nil, err
	}
	p, err := path(a, n, ctx, opts)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(p)
	if err != nil {
		return nil, n.Errorf(synth.ErrMissingTemplate, "cannot stat %s", p).WithCause(err)
	}
	return fi, nil
}

func renderInclude(n synth.Node, w io.Writer, ctx *synth.Context, opts *synth.Options) error {
	a, err := single(n, "file", "virtual")
	if err != nil {
		return err
	}
	name := interpolate(a.value, n, ctx, opts)
	if a.key == "virtual" {
		name = strings.TrimPrefix(name, "/")
	}
	t, err := n.Template().Engine().Load(name, opts)
	if err != nil {
		return err
	}
	return t.Include(w, ctx, opts)
}

func renderFSize(n synth.Node, w io.Writer, ctx *synth.Context, opts *synth.Options) error {
	fi, err := stat(n, ctx, opts)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, FormatSize(fi.Size(), opts.Format(SizeFormat, DefaultSizeFormat)))
	return err
}

func renderFLastMod(n synth.Node, w io.Writer, ctx *synth.Context, opts *synth.Options) error {
	fi, err := stat(n, ctx, opts)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, Strftime(fi.ModTime(), opts.Format(TimeFormat, DefaultTimeFormat), opts.Locale))
	return err
}

var printer = message.NewPrinter(language.English)

// FormatSize formats a file size. The "bytes" format groups the digits of
// the exact count; "abbrev" rounds to kilobytes or megabytes.
func FormatSize(size int64, format string) string {
	if format != "abbrev" {
		return printer.Sprintf("%d", size)
	}
	switch {
	case size <= 0:
		return "0k"
	case size < 1024*1024:
		return fmt.Sprintf("%dk", max((size+512)/1024, 1))
	}
	return fmt.Sprintf("%.1fM", float64(size)/(1024*1024))
}

// ----------------------------------------------------------------------------
// configuration
// ----------------------------------------------------------------------------

func renderConfig(n synth.Node, _ io.Writer, ctx *synth.Context, opts *synth.Options) error {
	as := attrs(n)
	if len(as) == 0 {
		return n.Errorf(synth.ErrInvalidArgument, "config requires an attribute")
	}
	if opts.Formats == nil {
		opts.Formats = make(map[string]string)
	}
	for _, a := range as {
		v := interpolate(a.value, n, ctx, opts)
		switch a.key {
		case "errmsg":
			opts.ErrorValue = value.Of(v)
		case "echomsg":
			opts.DefaultValue = value.Of(v)
		case "timefmt":
			opts.Formats[TimeFormat] = v
		case "sizefmt":
			if v != "bytes" && v != "abbrev" {
				return n.Errorf(synth.ErrInvalidArgument, "unknown sizefmt %q", v)
			}
			opts.Formats[SizeFormat] = v
		default:
			return n.Errorf(synth.ErrInvalidArgument, "config does not take %q", a.key)
		}
	}
	return nil
}

// ----------------------------------------------------------------------------
// commands
// ----------------------------------------------------------------------------

func execHandler(allowed bool) synth.Handler {
	return func(n synth.Node, w io.Writer, ctx *synth.Context, opts *synth.Options) error {
		a, err := single(n, "cmd", "cgi")
		if err != nil {
			return err
		}
		if !allowed {
			return n.Errorf(synth.ErrUnsupportedOperation, "exec is disabled")
		}
		var cmd *exec.Cmd
		switch a.key {
		case "cmd":
			cmd = exec.Command("/bin/sh", "-c", interpolate(a.value, n, ctx, opts))
		case "cgi":
			p, err := path(a, n, ctx, opts)
			if err != nil {
				return err
			}
			cmd = exec.Command(p)
		}
		cmd.Env = environ(ctx)
		out, err := cmd.Output()
		if err != nil {
			return n.Errorf(synth.ErrInvalidArgument, "exec %s failed", a.key).WithCause(err)
		}
		_, err = w.Write(out)
		return err
	}
}

// environ exports the string variables of ctx to a command.
func environ(ctx *synth.Context) []string {
	env := os.Environ()
	for _, k := range ctx.Keys() {
		if v := ctx.Lookup(k); v.IsString() || v.IsNumeric() {
			env = append(env, k+"="+v.String())
		}
	}
	return env
}

// ----------------------------------------------------------------------------
// conditionals
// ----------------------------------------------------------------------------

// condition evaluates the expr attribute of an if or elif directive.
func condition(n synth.Node, ctx *synth.Context, opts *synth.Options) (bool, error) {
	a, err := single(n, "expr")
	if err != nil {
		return false, err
	}
	return Eval(a.value, func(name string) (value.Value, bool) {
		return lookup(name, n, ctx, opts)
	})
}

func renderIf(n synth.Node, w io.Writer, ctx *synth.Context, opts *synth.Options) error {
	ok, err := condition(n, ctx, opts)
	if err != nil {
		return err
	}
	if ok {
		return body(n).Render(w, ctx, opts)
	}
	for elif := range n.All(idElif) {
		ok, err := condition(elif, ctx, opts)
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

// ----------------------------------------------------------------------------
// library directives
// ----------------------------------------------------------------------------

// renderDirective runs a library tag. Each attribute is passed as a pair
// of its name and interpolated value.
func renderDirective(n synth.Node, w io.Writer, ctx *synth.Context, opts *synth.Options) error {
	tag, err := opts.LookupTag(strings.ToLower(n.ChildText(idName)))
	if err != nil {
		return err
	}
	var args []value.Value
	for _, a := range attrs(n) {
		args = append(args, value.NewPair(a.key, interpolate(a.value, n, ctx, opts)))
	}
	return tag(w, args, nil, ctx, opts)
}

func body(n synth.Node) synth.Node {
	b, _ := n.Child(g.BlockID)
	return b
}
