package django

import (
	"errors"
	"io"
	"math"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/ajg/synth"
	"github.com/ajg/synth/value"
)

var moment = time.Date(2024, time.March, 5, 14, 30, 0, 0, time.UTC)

func newEngine(t *testing.T, templates map[string]string) *synth.Engine {
	t.Helper()
	e := synth.New(Dialect())
	for name, src := range templates {
		if err := e.AddTemplate(name, src); err != nil {
			t.Fatalf("AddTemplate(%q): %v", name, err)
		}
	}
	return e
}

func renderString(t *testing.T, e *synth.Engine, src string, vars map[string]any, opts ...synth.Option) (string, error) {
	t.Helper()
	tmpl, err := e.Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return tmpl.Render(synth.NewContext(vars), e.NewOptions(opts...))
}

func render(t *testing.T, src string, vars map[string]any, opts ...synth.Option) string {
	t.Helper()
	out, err := renderString(t, newEngine(t, nil), src, vars, opts...)
	if err != nil {
		t.Fatalf("Render(%q): %v", src, err)
	}
	return out
}

type renderCase struct {
	name string
	src  string
	vars map[string]any
	want string
}

func runCases(t *testing.T, cases []renderCase, opts ...synth.Option) {
	t.Helper()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := render(t, tc.src, tc.vars, opts...); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// tags
// ----------------------------------------------------------------------------

func TestVariables(t *testing.T) {
	runCases(t, []renderCase{
		{"plain", "Hello {{ name }}!", map[string]any{"name": "World"}, "Hello World!"},
		{"escaped", "{{ s }}", map[string]any{"s": "<b>"}, "&lt;b&gt;"},
		{"safe", "{{ s|safe }}", map[string]any{"s": "<b>"}, "<b>"},
		{"missing", "[{{ missing }}]", nil, "[]"},
		{"missing default", "{{ missing|default:'x' }}", nil, "x"},
		{"attribute", "{{ user.name }}", map[string]any{"user": map[string]any{"name": "ann"}}, "ann"},
		{"index", "{{ items.1 }}", map[string]any{"items": []string{"a", "b"}}, "b"},
		{"chain", "{{ 'abc'|upper|cut:'B' }}", nil, "AC"},
		{"translation", "{{ _('hi') }}", nil, "hi"},
		{"comment", "a{# x #}b{% comment 'why' %}{{ zzz }}{% endcomment %}c", nil, "abc"},
		{"verbatim", "{% verbatim %}{{ x }}{% endverbatim %}", nil, "{{ x }}"},
		{"templatetag", "{% templatetag openblock %} x {% templatetag closeblock %}", nil, "{% x %}"},
	})
}

func TestIf(t *testing.T) {
	const src = "{% if n > 2 %}big{% elif n == 2 %}two{% else %}small{% endif %}"
	runCases(t, []renderCase{
		{"if", src, map[string]any{"n": 3}, "big"},
		{"elif", src, map[string]any{"n": 2}, "two"},
		{"else", src, map[string]any{"n": 1}, "small"},
		{"and", "{% if a and b %}y{% else %}n{% endif %}", map[string]any{"a": true, "b": false}, "n"},
		{"or", "{% if a or b %}y{% endif %}", map[string]any{"a": false, "b": 1}, "y"},
		{"not", "{% if not a %}y{% endif %}", map[string]any{"a": ""}, "y"},
		{"in", "{% if 'b' in items %}y{% endif %}", map[string]any{"items": []string{"a", "b"}}, "y"},
		{"not in", "{% if 'c' not in items %}y{% endif %}", map[string]any{"items": []string{"a"}}, "y"},
		{"group", "{% if (a or b) and c %}y{% else %}n{% endif %}", map[string]any{"a": true, "c": false}, "n"},
		{"filtered", "{% if items|length >= 2 %}y{% endif %}", map[string]any{"items": []int{1, 2}}, "y"},
		{"ifequal", "{% ifequal a b %}same{% else %}diff{% endifequal %}", map[string]any{"a": 1, "b": 1}, "same"},
		{"ifnotequal", "{% ifnotequal a 'x' %}diff{% endifnotequal %}", map[string]any{"a": "y"}, "diff"},
	})
}

func TestFor(t *testing.T) {
	items := map[string]any{"items": []string{"a", "b", "c"}}
	runCases(t, []renderCase{
		{"loop", "{% for x in items %}{{ forloop.counter }}:{{ x }}{% if not forloop.last %},{% endif %}{% endfor %}", items, "1:a,2:b,3:c"},
		{"counters", "{% for x in items %}{{ forloop.counter0 }}{{ forloop.revcounter }}{{ forloop.revcounter0 }}{% endfor %}", items, "032121210"},
		{"first", "{% for x in items %}{% if forloop.first %}{{ x }}{% endif %}{% endfor %}", items, "a"},
		{"reversed", "{% for x in items reversed %}{{ x }}{% endfor %}", items, "cba"},
		{"empty", "{% for x in items %}{{ x }}{% empty %}none{% endfor %}", map[string]any{"items": []string{}}, "none"},
		{"keys", "{% for k in m %}{{ k }}{% endfor %}", map[string]any{"m": map[string]int{"b": 2, "a": 1}}, "ab"},
		{"pairs", "{% for k, v in m %}{{ k }}={{ v }};{% endfor %}", map[string]any{"m": map[string]int{"b": 2, "a": 1}}, "a=1;b=2;"},
		{"parentloop", "{% for x in items %}{% for y in items %}{% if forloop.first %}{{ forloop.parentloop.counter }}{% endif %}{% endfor %}{% endfor %}", items, "123"},
		{"scoped", "{% for x in items %}{% endfor %}[{{ x }}]", items, "[]"},
		{"cycle", "{% for x in items %}{% cycle 'odd' 'even' %}{% endfor %}", items, "oddevenodd"},
		{"cycle as", "{% for x in items %}{% cycle 'r' 'g' as c silent %}{{ c }}{% endfor %}", items, "rgr"},
	})
}

func TestWith(t *testing.T) {
	runCases(t, []renderCase{
		{"bindings", "{% with a=1 b='x' %}{{ a }}{{ b }}{% endwith %}[{{ a }}]", nil, "1x[]"},
		{"as", "{% with name|upper as n %}{{ n }}{% endwith %}", map[string]any{"name": "bo"}, "BO"},
		{"shadow", "{% with a=2 %}{{ a }}{% endwith %}{{ a }}", map[string]any{"a": 1}, "21"},
	})
}

func TestValueTags(t *testing.T) {
	runCases(t, []renderCase{
		{"firstof", "{% firstof a b 'c' %}", map[string]any{"a": "", "b": 0}, "c"},
		{"firstof none", "[{% firstof a b %}]", nil, "[]"},
		{"widthratio", "{% widthratio 175 200 100 %}", nil, "88"},
		{"widthratio as", "{% widthratio 1 0 100 as w %}[{{ w }}]", nil, "[0]"},
		{"widthratio infinite", "{% widthratio x 1 100 %}", map[string]any{"x": math.Inf(1)}, "0"},
		{"widthratio nan", "{% widthratio x 1 100 %}", map[string]any{"x": math.NaN()}, "0"},
		{"now", "{% now 'Y-m-d H:i' %}", nil, "2024-03-05 14:30"},
		{"now named", "{% now 'DATE_FORMAT' %}", nil, "March 5, 2024"},
		{"now as", "{% now 'Y' as year %}<{{ year }}>", nil, "<2024>"},
	}, synth.WithNow(func() time.Time { return moment }))
}

func TestOutputTags(t *testing.T) {
	runCases(t, []renderCase{
		{"spaceless", "{% spaceless %}\n<p>\n  <a>x</a>\n</p>\n{% endspaceless %}", nil, "<p><a>x</a></p>"},
		{"autoescape off", "{% autoescape off %}{{ s }}{% endautoescape %}{{ s }}", map[string]any{"s": "<b>"}, "<b>&lt;b&gt;"},
		{"autoescape on", "{% autoescape on %}{{ s }}{% endautoescape %}", map[string]any{"s": "&"}, "&amp;"},
		{"filter", "{% filter upper %}hi {{ name }}{% endfilter %}", map[string]any{"name": "bob"}, "HI BOB"},
		{"filter chain", "{% filter lower|capfirst %}HELLO{% endfilter %}", nil, "Hello"},
	})
}

func TestURL(t *testing.T) {
	routes := synth.WithResolver(synth.NewRoutes(
		synth.Route{Name: "home", Pattern: "/"},
		synth.Route{Name: "user", Pattern: "/users/{id}/"},
	))
	runCases(t, []renderCase{
		{"plain", "{% url 'home' %}", nil, "/"},
		{"args", "{% url 'user' id %}", map[string]any{"id": 7}, "/users/7/"},
		{"as", "{% url 'user' 3 as u %}<a href='{{ u }}'>", nil, "<a href='/users/3/'>"},
		{"missing as", "[{% url 'nope' as u %}{{ u }}]", nil, "[]"},
	}, routes)

	_, err := renderString(t, newEngine(t, nil), "{% url 'nope' %}", nil, routes)
	if !errors.Is(err, synth.ErrMissingKey) {
		t.Errorf("got %v, want ErrMissingKey", err)
	}
}

func TestDebug(t *testing.T) {
	out := render(t, "{% debug %}", map[string]any{"a": 1})
	if !strings.Contains(out, "a: 1") {
		t.Errorf("got %q, want it to mention a", out)
	}
}

// ----------------------------------------------------------------------------
// templates
// ----------------------------------------------------------------------------

func TestInclude(t *testing.T) {
	e := newEngine(t, map[string]string{
		"item": "<{{ x }}{{ y }}>",
	})
	cases := []renderCase{
		{"shared", "{% include 'item' %}", map[string]any{"x": 1, "y": 2}, "<12>"},
		{"with", "{% include 'item' with x=3 %}", map[string]any{"x": 1, "y": 2}, "<32>"},
		{"only", "{% include 'item' with x=3 only %}", map[string]any{"x": 1, "y": 2}, "<3>"},
		{"variable name", "{% include name %}", map[string]any{"name": "item", "x": 0}, "<0>"},
		{"restores", "{% include 'item' with x=3 %}{{ x }}", map[string]any{"x": 1}, "<3>1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := renderString(t, e, tc.src, tc.vars)
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}

	if _, err := renderString(t, e, "{% include 'nope' %}", nil); !errors.Is(err, synth.ErrMissingTemplate) {
		t.Errorf("got %v, want ErrMissingTemplate", err)
	}
}

func TestCycleInInclude(t *testing.T) {
	e := newEngine(t, map[string]string{
		"inc": "{% cycle 'x' 'y' %}",
	})
	got, err := renderString(t, e, "{% for i in items %}{% cycle 'a' 'b' %}{% include 'inc' %}{% endfor %}", map[string]any{"items": []int{1, 2}})
	if err != nil {
		t.Fatal(err)
	}
	if want := "axby"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtends(t *testing.T) {
	e := newEngine(t, map[string]string{
		"base":  "<title>{% block title %}Base{% endblock %}</title>{% block body %}{% endblock body %}",
		"mid":   "{% extends 'base' %}{% block body %}mid{% endblock %}",
		"child": "{% extends 'mid' %}{% block body %}[{{ block.super }}]{% endblock %}",
	})
	cases := []renderCase{
		{"override", "{% extends 'base' %}{% block title %}Child{% endblock %}", nil, "<title>Child</title>"},
		{"super", "{% extends 'base' %}{% block title %}{{ block.super }} - {{ x }}{% endblock %}", map[string]any{"x": "<i>"}, "<title>Base - &lt;i&gt;</title>"},
		{"ignores outside blocks", "{% extends 'base' %}junk{% block body %}b{% endblock %}junk", nil, "<title>Base</title>b"},
		{"chain", "{% extends 'child' %}", nil, "<title>Base</title>[mid]"},
		{"three levels", "{% extends 'child' %}{% block title %}T{% endblock %}", nil, "<title>T</title>[mid]"},
		{"nested super", "{% extends 'child' %}{% block body %}({{ block.super }}){% endblock %}", nil, "<title>Base</title>([mid])"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := renderString(t, e, tc.src, tc.vars)
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSuperOutsideDerivedBlock(t *testing.T) {
	_, err := renderString(t, newEngine(t, nil), "{% block a %}{{ block.super }}{% endblock %}", nil)
	if !errors.Is(err, synth.ErrNotInDerivedBlock) {
		t.Errorf("got %v, want ErrNotInDerivedBlock", err)
	}
}

func TestBlockOutsideDerivedTemplate(t *testing.T) {
	if got := render(t, "a{% block b %}b{% endblock %}c", nil); got != "abc" {
		t.Errorf("got %q, want %q", got, "abc")
	}
}

// ----------------------------------------------------------------------------
// libraries
// ----------------------------------------------------------------------------

func TestLoad(t *testing.T) {
	runCases(t, []renderCase{
		{"humanize", "{% load humanize %}{{ n|intcomma }}", map[string]any{"n": 1234567}, "1,234,567"},
		{"from", "{% load intcomma ordinal from humanize %}{{ 1000|intcomma }} {{ 2|ordinal }}", nil, "1,000 2nd"},
		{"markup", "{% load markup %}{{ s|markdown }}", map[string]any{"s": "# Hi"}, "<h1>Hi</h1>\n"},
		{"several", "{% load markup humanize %}{{ 3|apnumber }}", nil, "three"},
	})
}

func TestLoadErrors(t *testing.T) {
	e := newEngine(t, nil)
	cases := []struct {
		name string
		src  string
		kind synth.ErrorKind
	}{
		{"library", "{% load nope %}", synth.ErrMissingLibrary},
		{"name", "{% load nope from humanize %}", synth.ErrMissingKey},
		{"not loaded", "{{ 1000|intcomma }}", synth.ErrMissingFilter},
		{"unknown tag", "{% frobnicate %}", synth.ErrMissingTag},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := renderString(t, e, tc.src, nil); !errors.Is(err, tc.kind) {
				t.Errorf("got %v, want %v", err, tc.kind)
			}
		})
	}
}

func TestFilterSuggestions(t *testing.T) {
	_, err := renderString(t, newEngine(t, nil), "{{ x|uper }}", nil)
	var e *synth.Error
	if !errors.As(err, &e) {
		t.Fatalf("got %v, want *synth.Error", err)
	}
	if !slices.Contains(e.Suggestions, "upper") {
		t.Errorf("suggestions %v do not include upper", e.Suggestions)
	}
	if e.Line != 1 || e.Column != 1 {
		t.Errorf("position %d:%d, want 1:1", e.Line, e.Column)
	}
}

func TestLibraryTag(t *testing.T) {
	greet := func(w io.Writer, args []value.Value, _ []synth.Body, ctx *synth.Context, _ *synth.Options) error {
		ctx.Set("greeted", value.Of(true))
		_, err := io.WriteString(w, "hello "+value.Sprint(args...))
		return err
	}
	lib := synth.NewBundle(map[string]synth.Tag{"greet": greet}, nil)
	got := render(t, "{% load greetings %}{% greet 'bob' n %}{% if greeted %}!{% endif %}",
		map[string]any{"n": 2}, synth.WithLibrary("greetings", lib))
	if got != "hello bob 2!" {
		t.Errorf("got %q, want %q", got, "hello bob 2!")
	}
}

// ----------------------------------------------------------------------------
// errors
// ----------------------------------------------------------------------------

func TestParseErrors(t *testing.T) {
	e := newEngine(t, nil)
	for _, src := range []string{
		"{% if x %}oops",
		"{% for x in %}{% endfor %}",
		"{{ }}",
		"{% endif %}",
		"{% block a %}{% endfor %}",
	} {
		if _, err := e.Parse(src); !errors.Is(err, synth.ErrParse) {
			t.Errorf("Parse(%q) = %v, want ErrParse", src, err)
		}
	}
}

func TestAbortKeepsPartialOutput(t *testing.T) {
	out, err := renderString(t, newEngine(t, nil), "ab{{ x|nope }}cd", nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if out != "ab" {
		t.Errorf("got %q, want %q", out, "ab")
	}
}
