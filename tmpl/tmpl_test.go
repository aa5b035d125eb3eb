package tmpl

import (
	"errors"
	"testing"

	"github.com/ajg/synth"
)

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

func renderWith(t *testing.T, e *synth.Engine, src string, vars map[string]any, opts ...synth.Option) (string, error) {
	t.Helper()
	tmpl, err := e.Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return tmpl.Render(synth.NewContext(vars), e.NewOptions(opts...))
}

type renderCase struct {
	name string
	src  string
	vars map[string]any
	want string
}

func runCases(t *testing.T, e *synth.Engine, cases []renderCase, opts ...synth.Option) {
	t.Helper()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := renderWith(t, e, tc.src, tc.vars, opts...)
			if err != nil {
				t.Fatalf("Render(%q): %v", tc.src, err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// tags
// ----------------------------------------------------------------------------

func TestVar(t *testing.T) {
	vars := map[string]any{
		"name": "World",
		"html": `<a href="x">`,
		"q":    "a b&c",
		"js":   `say "hi"`,
		"user": map[string]any{"first": "Ann"},
	}
	runCases(t, newEngine(t, nil), []renderCase{
		{"bare", "Hello <TMPL_VAR name>!", vars, "Hello World!"},
		{"named", `<TMPL_VAR NAME="name">`, vars, "World"},
		{"single quoted", `<TMPL_VAR NAME='name'>`, vars, "World"},
		{"comment form", "<!-- TMPL_VAR name -->", vars, "World"},
		{"self closing", "<TMPL_VAR name />", vars, "World"},
		{"self closing tight", "<TMPL_VAR name/>", vars, "World"},
		{"self closing named", "<TMPL_VAR NAME=name ESCAPE=html />", vars, "World"},
		{"case insensitive tag", "<tmpl_var Name=name>", vars, "World"},
		{"case insensitive name", "<TMPL_VAR NAME>", vars, "World"},
		{"unescaped", "<TMPL_VAR html>", vars, `<a href="x">`},
		{"escape html", "<TMPL_VAR html ESCAPE=HTML>", vars, "&lt;a href=&quot;x&quot;&gt;"},
		{"escape 1", "<TMPL_VAR html ESCAPE=1>", vars, "&lt;a href=&quot;x&quot;&gt;"},
		{"escape 0", "<TMPL_VAR html ESCAPE=0>", vars, `<a href="x">`},
		{"escape url", "<TMPL_VAR q ESCAPE=URL>", vars, "a+b%26c"},
		{"escape js", "<TMPL_VAR js ESCAPE=JS>", vars, `say \"hi\"`},
		{"default", `<TMPL_VAR nope DEFAULT="none">`, vars, "none"},
		{"default unused", `<TMPL_VAR name DEFAULT="none">`, vars, "World"},
		{"missing", "[<TMPL_VAR nope>]", vars, "[]"},
		{"dotted", "<TMPL_VAR user.first>", vars, "Ann"},
		{"number", "<TMPL_VAR n>", map[string]any{"n": 42}, "42"},
	})
}

func TestAutoEscape(t *testing.T) {
	runCases(t, newEngine(t, nil), []renderCase{
		{"default", "<TMPL_VAR s>", map[string]any{"s": "<b>"}, "&lt;b&gt;"},
		{"off", "<TMPL_VAR s ESCAPE=NONE>", map[string]any{"s": "<b>"}, "<b>"},
	}, synth.WithAutoEscape(true))
}

func TestIf(t *testing.T) {
	const src = "<TMPL_IF ok>yes<TMPL_ELSE>no</TMPL_IF>"
	runCases(t, newEngine(t, nil), []renderCase{
		{"true", src, map[string]any{"ok": true}, "yes"},
		{"false", src, map[string]any{"ok": false}, "no"},
		{"missing", src, nil, "no"},
		{"empty list", src, map[string]any{"ok": []int{}}, "no"},
		{"list", src, map[string]any{"ok": []int{1}}, "yes"},
		{"no else", "<TMPL_IF ok>yes</TMPL_IF>", nil, ""},
		{"unless", "<TMPL_UNLESS ok>no<TMPL_ELSE>yes</TMPL_UNLESS>", map[string]any{"ok": 1}, "yes"},
		{"unless false", "<TMPL_UNLESS ok>no</TMPL_UNLESS>", nil, "no"},
		{"comment form", "<!-- TMPL_IF ok -->yes<!-- TMPL_ELSE -->no<!-- /TMPL_IF -->", map[string]any{"ok": "x"}, "yes"},
		{"nested", "<TMPL_IF a><TMPL_IF b>ab<TMPL_ELSE>a</TMPL_IF></TMPL_IF>", map[string]any{"a": 1}, "a"},
	})
}

func TestLoop(t *testing.T) {
	rows := map[string]any{
		"title": "T",
		"rows": []map[string]any{
			{"name": "a"},
			{"name": "b"},
			{"name": "c"},
		},
	}
	type row struct{ Name string }
	runCases(t, newEngine(t, nil), []renderCase{
		{"rows", "<TMPL_LOOP rows><TMPL_VAR name></TMPL_LOOP>", rows, "abc"},
		{"counter", "<TMPL_LOOP rows><TMPL_VAR __counter__>.<TMPL_VAR name> </TMPL_LOOP>", rows, "1.a 2.b 3.c "},
		{"first last", "<TMPL_LOOP rows><TMPL_IF __first__>[</TMPL_IF><TMPL_VAR name><TMPL_IF __last__>]<TMPL_ELSE>,</TMPL_IF></TMPL_LOOP>", rows, "[a,b,c]"},
		{"inner", "<TMPL_LOOP rows><TMPL_IF __inner__><TMPL_VAR name></TMPL_IF></TMPL_LOOP>", rows, "b"},
		{"odd even", "<TMPL_LOOP rows><TMPL_IF __odd__>o</TMPL_IF><TMPL_IF __even__>e</TMPL_IF></TMPL_LOOP>", rows, "oeo"},
		{"outer visible", "<TMPL_LOOP rows><TMPL_VAR title></TMPL_LOOP>", rows, "TTT"},
		{"scope closed", "<TMPL_LOOP rows></TMPL_LOOP>[<TMPL_VAR name>]", rows, "[]"},
		{"missing", "<TMPL_LOOP nope>x</TMPL_LOOP>", nil, ""},
		{"records", "<TMPL_LOOP rows><TMPL_VAR name></TMPL_LOOP>", map[string]any{"rows": []row{{"x"}, {"y"}}}, "xy"},
		{"nested", "<TMPL_LOOP outer><TMPL_LOOP inner><TMPL_VAR v></TMPL_LOOP>;</TMPL_LOOP>", map[string]any{
			"outer": []map[string]any{
				{"inner": []map[string]any{{"v": 1}, {"v": 2}}},
				{"inner": []map[string]any{{"v": 3}}},
			},
		}, "12;3;"},
		{"comment form", "<!-- TMPL_LOOP rows --><TMPL_VAR name><!-- /TMPL_LOOP -->", rows, "abc"},
	})
}

func TestInclude(t *testing.T) {
	e := newEngine(t, map[string]string{
		"header.tmpl":       "<h1><TMPL_VAR title></h1>",
		"parts/footer.tmpl": "<p>end</p>",
	})
	runCases(t, e, []renderCase{
		{"bare", "<TMPL_INCLUDE header.tmpl>", map[string]any{"title": "T"}, "<h1>T</h1>"},
		{"named", `<!-- TMPL_INCLUDE NAME="header.tmpl" -->`, map[string]any{"title": "T"}, "<h1>T</h1>"},
		{"path", "<TMPL_INCLUDE parts/footer.tmpl>", nil, "<p>end</p>"},
		{"path self closing", "<TMPL_INCLUDE parts/footer.tmpl />", nil, "<p>end</p>"},
	})
}

func TestPlainText(t *testing.T) {
	const src = "<html><!-- comment --><p>{{ x }} $y</p></html>"
	runCases(t, newEngine(t, nil), []renderCase{{"verbatim", src, nil, src}})
}

// ----------------------------------------------------------------------------
// failures
// ----------------------------------------------------------------------------

func TestRenderErrors(t *testing.T) {
	e := newEngine(t, nil)
	cases := []struct {
		name    string
		src     string
		vars    map[string]any
		kind    synth.ErrorKind
		partial string
	}{
		{"unknown attribute", "a<TMPL_VAR x COLOUR=red>b", nil, synth.ErrInvalidArgument, "a"},
		{"no name", "<TMPL_VAR>", nil, synth.ErrInvalidArgument, ""},
		{"duplicate", "<TMPL_VAR x NAME=y>", nil, synth.ErrInvalidArgument, ""},
		{"bad escape", "<TMPL_VAR x ESCAPE=rot13>", map[string]any{"x": 1}, synth.ErrInvalidArgument, ""},
		{"missing include", "x<TMPL_INCLUDE nope.tmpl>", nil, synth.ErrMissingTemplate, "x"},
		{"loop over scalar", "<TMPL_LOOP n></TMPL_LOOP>", map[string]any{"n": 3}, synth.ErrInvalidArgument, ""},
		{"loop over scalars", "<TMPL_LOOP n></TMPL_LOOP>", map[string]any{"n": []int{3}}, synth.ErrInvalidArgument, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := renderWith(t, e, tc.src, tc.vars)
			if !errors.Is(err, synth.NewError(tc.kind, "")) {
				t.Fatalf("err = %v, want %v", err, tc.kind)
			}
			if out != tc.partial {
				t.Errorf("partial output = %q, want %q", out, tc.partial)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{
		"<TMPL_IF x>open",
		"</TMPL_IF>",
		"<TMPL_LOOP x></TMPL_IF>",
		"<TMPL_NOPE x>",
		`<TMPL_VAR NAME="x>`,
	} {
		t.Run(src, func(t *testing.T) {
			_, err := synth.New(Dialect()).Parse(src)
			if !errors.Is(err, synth.NewError(synth.ErrParse, "")) {
				t.Errorf("err = %v, want ErrParse", err)
			}
		})
	}
}
