package grammar

import (
	"errors"
	"strings"
	"testing"

	serrors "github.com/ajg/synth/internal/errors"
)

// testGrammar recognizes {{ name }} and {% for name %}...{% end %}.
func testGrammar() *Grammar {
	ident := Re(`[A-Za-z_][A-Za-z0-9_]*`)
	ws := Re(`\s*`)
	body := Forward()
	echo := Capture("echo", Seq(Lit("{{"), ws, Capture("name", ident), ws, Lit("}}")))
	loop := Capture("loop", Seq(
		Lit("{%"), ws, Lit("for"), ws, Capture("name", ident), ws, Lit("%}"),
		body,
		Lit("{%"), ws, Lit("end"), ws, Lit("%}"),
	))
	body.Set(Block(Text(`\{[{%]`), echo, loop))
	return New(body)
}

func mustParse(t *testing.T, g *Grammar, src string) *Tree {
	t.Helper()
	tree, err := g.Parse("test", src)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", src, err)
	}
	return tree
}

func ids(ms []*Match) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}

// -----------------------------------------------------------------------------
// Successful parses
// -----------------------------------------------------------------------------

func TestParseEmpty(t *testing.T) {
	tree := mustParse(t, testGrammar(), "")
	if tree.Root.ID != RootID || tree.Root.End != 0 {
		t.Fatalf("root = %+v", tree.Root)
	}
	block := tree.Root.Child(BlockID)
	if block == nil || len(block.Nested) != 0 {
		t.Fatalf("block = %+v, want empty block", block)
	}
}

func TestParseTextAndTags(t *testing.T) {
	src := "a {{ x }} b"
	tree := mustParse(t, testGrammar(), src)
	block := tree.Root.Child(BlockID)
	got := strings.Join(ids(block.Nested), ",")
	if got != "text,echo,text" {
		t.Fatalf("block children = %s, want text,echo,text", got)
	}
	if s := tree.Text(block.Nested[0]); s != "a " {
		t.Errorf("first text = %q", s)
	}
	if s := tree.Text(block.Nested[1].Child("name")); s != "x" {
		t.Errorf("echo name = %q", s)
	}
	if s := tree.Text(block.Nested[2]); s != " b" {
		t.Errorf("last text = %q", s)
	}
}

func TestParseNested(t *testing.T) {
	src := "{% for x %}[{{ x }}]{% end %}!"
	tree := mustParse(t, testGrammar(), src)
	loop := tree.Root.Find("loop")
	if loop == nil {
		t.Fatal("no loop match")
	}
	if s := tree.Text(loop.Child("name")); s != "x" {
		t.Errorf("loop name = %q", s)
	}
	body := loop.Child(BlockID)
	if got := strings.Join(ids(body.Nested), ","); got != "text,echo,text" {
		t.Errorf("loop body = %s", got)
	}
	var texts []string
	for m := range tree.Root.Child(BlockID).All(TextID) {
		texts = append(texts, tree.Text(m))
	}
	if len(texts) != 1 || texts[0] != "!" {
		t.Errorf("top-level texts = %q", texts)
	}
}

func TestFoldAndUntil(t *testing.T) {
	g := New(Seq(Fold("<tmpl_var"), EOF()))
	if _, err := g.Parse("fold", "<TMPL_Var"); err != nil {
		t.Errorf("Fold: %v", err)
	}

	comment := Seq(Lit("{#"), Capture("c", Until(Lit("#}"))), Lit("#}"))
	tree := mustParse(t, New(comment), "{# hi #}")
	if s := tree.Text(tree.Root.Child("c")); s != " hi " {
		t.Errorf("Until captured %q", s)
	}
	if _, err := New(comment).Parse("open", "{# never closed"); err == nil {
		t.Error("Until matched without a terminator")
	}
}

func TestLookahead(t *testing.T) {
	notX := New(Plus(Seq(Not(Lit("x")), Re(`.`))))
	if _, err := notX.Parse("", "abc"); err != nil {
		t.Errorf("Not: %v", err)
	}
	if _, err := notX.Parse("", "abx"); err == nil {
		t.Error("Not let x through")
	}
	ahead := New(Seq(Ahead(Lit("ab")), Re(`a`), Lit("b")))
	if _, err := ahead.Parse("", "ab"); err != nil {
		t.Errorf("Ahead: %v", err)
	}
}

func TestForwardUnsetPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("unset forward rule did not panic")
		}
	}()
	New(Forward()).Parse("", "x")
}

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

func parseErr(t *testing.T, g *Grammar, src string) *serrors.Error {
	t.Helper()
	_, err := g.Parse("test", src)
	if err == nil {
		t.Fatalf("Parse(%q) succeeded", src)
	}
	if !errors.Is(err, serrors.ErrParse) {
		t.Fatalf("Parse(%q) error = %v, want parse error", src, err)
	}
	var e *serrors.Error
	if !errors.As(err, &e) {
		t.Fatalf("error %T is not *errors.Error", err)
	}
	return e
}

func TestFurthestPosition(t *testing.T) {
	src := "ab {% bad %} cd"
	e := parseErr(t, testGrammar(), src)
	first := strings.Index(src, "bad")
	if e.Offset > first {
		t.Errorf("offset = %d, past first unmatched character %d", e.Offset, first)
	}
	if e.Offset != first {
		t.Errorf("offset = %d, want %d", e.Offset, first)
	}
	if e.Preview != "bad %} cd" {
		t.Errorf("preview = %q", e.Preview)
	}
	if e.Line != 1 || e.Column != first+1 {
		t.Errorf("position = %d:%d", e.Line, e.Column)
	}
	if e.Name != "test" {
		t.Errorf("name = %q", e.Name)
	}
}

func TestFurthestPositionMultiline(t *testing.T) {
	e := parseErr(t, testGrammar(), "line1\n{% bad\nmore")
	if e.Line != 2 || e.Column != 4 {
		t.Errorf("position = %d:%d, want 2:4", e.Line, e.Column)
	}
	if e.Preview != "bad" {
		t.Errorf("preview = %q, want %q", e.Preview, "bad")
	}
}

func TestLookaheadDoesNotAdvanceFurthest(t *testing.T) {
	g := New(Seq(Ahead(Lit("abc")), Lit("z")))
	e := parseErr(t, g, "abc")
	if e.Offset != 0 {
		t.Errorf("offset = %d, want 0", e.Offset)
	}
}

func TestPreview(t *testing.T) {
	long := strings.Repeat("é", 100)
	if got := Preview(long, 0); len([]rune(got)) != PreviewLimit {
		t.Errorf("preview has %d runes, want %d", len([]rune(got)), PreviewLimit)
	}
	if got := Preview("ab\ncd", 1); got != "b" {
		t.Errorf("Preview = %q, want %q", got, "b")
	}
	if got := Preview("ab", 2); got != "" {
		t.Errorf("Preview at end = %q", got)
	}
}

func TestDump(t *testing.T) {
	tree := mustParse(t, testGrammar(), "a {{ x }}")
	var b strings.Builder
	if err := tree.Dump(&b); err != nil {
		t.Fatal(err)
	}
	out := b.String()
	for _, want := range []string{"root [0:9]", "  block", "    echo [2:9]", "      name [5:6] \"x\""} {
		if !strings.Contains(out, want) {
			t.Errorf("dump missing %q:\n%s", want, out)
		}
	}
}
