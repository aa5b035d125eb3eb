package synth

import (
	"errors"
	"slices"
	"testing"

	"github.com/ajg/synth/grammar"
	"github.com/ajg/synth/value"
)

func assertVar(t *testing.T, ctx *Context, name string, want any) {
	t.Helper()
	got, ok := ctx.Get(name)
	if want == nil {
		if ok {
			t.Errorf("%s = %s, want unbound", name, got.Repr())
		}
		return
	}
	if !ok {
		t.Errorf("%s is unbound, want %v", name, want)
		return
	}
	if !got.Equal(value.Of(want)) {
		t.Errorf("%s = %s, want %v", name, got.Repr(), want)
	}
}

// -----------------------------------------------------------------------------
// Variables
// -----------------------------------------------------------------------------

func TestContextGetSet(t *testing.T) {
	ctx := NewContext(map[string]any{"a": 1, "b": "two"})
	assertVar(t, ctx, "a", 1)
	assertVar(t, ctx, "b", "two")
	assertVar(t, ctx, "c", nil)

	ctx.Set("c", value.Of(true))
	ctx.Unset("a")
	assertVar(t, ctx, "a", nil)
	assertVar(t, ctx, "c", true)

	if got := ctx.Keys(); !slices.Equal(got, []string{"b", "c"}) {
		t.Errorf("Keys() = %v", got)
	}
	if ctx.Len() != 2 {
		t.Errorf("Len() = %d", ctx.Len())
	}
	if !ctx.Lookup("missing").IsNone() {
		t.Error("Lookup of a missing name is not empty")
	}
}

func TestContextZeroValue(t *testing.T) {
	var ctx Context
	ctx.Set("x", value.Of(1))
	assertVar(t, &ctx, "x", 1)
}

func TestContextCaseInsensitive(t *testing.T) {
	ctx := NewContext(map[string]any{"Name": "x"})
	if ctx.Has("name") {
		t.Fatal("case-sensitive context matched a different case")
	}
	ctx.SetCaseInsensitive(true)
	assertVar(t, ctx, "NAME", "x")

	ctx.Set("nAmE", value.Of("y"))
	if ctx.Len() != 1 {
		t.Errorf("Set created a second spelling: %v", ctx.Keys())
	}
	assertVar(t, ctx, "Name", "y")
}

func TestContextUpdate(t *testing.T) {
	ctx := NewContext(nil)
	if err := ctx.Update(value.MapOf(map[string]any{"k": 1, "v": "x"})); err != nil {
		t.Fatal(err)
	}
	assertVar(t, ctx, "k", 1)
	assertVar(t, ctx, "v", "x")

	err := ctx.Update(value.SeqOf(1, 2))
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Update(seq) error = %v", err)
	}
}

// -----------------------------------------------------------------------------
// Scopes
// -----------------------------------------------------------------------------

func TestEnterRestores(t *testing.T) {
	ctx := NewContext(map[string]any{"a": 1, "b": 2})
	exit := ctx.Enter(map[string]value.Value{"a": value.Of(10), "n": value.Of("new")})
	ctx.Set("b", value.Of(20))
	ctx.Unset("b")
	ctx.Set("c", value.Of(3))
	assertVar(t, ctx, "a", 10)
	assertVar(t, ctx, "b", nil)
	exit()

	assertVar(t, ctx, "a", 1)
	assertVar(t, ctx, "b", 2)
	assertVar(t, ctx, "c", nil)
	assertVar(t, ctx, "n", nil)
}

func TestEnterNested(t *testing.T) {
	ctx := NewContext(map[string]any{"x": 0})
	outer := ctx.Enter(map[string]value.Value{"x": value.Of(1)})
	inner := ctx.Enter(map[string]value.Value{"x": value.Of(2)})
	assertVar(t, ctx, "x", 2)
	inner()
	assertVar(t, ctx, "x", 1)
	outer()
	assertVar(t, ctx, "x", 0)
}

func TestExitClosesInnerScopes(t *testing.T) {
	ctx := NewContext(map[string]any{"x": 0})
	outer := ctx.Enter(nil)
	ctx.Set("x", value.Of(1))
	_ = ctx.Enter(map[string]value.Value{"y": value.Of(2)})
	outer()
	assertVar(t, ctx, "x", 0)
	assertVar(t, ctx, "y", nil)

	outer()
	assertVar(t, ctx, "x", 0)
}

func TestScopeRestoresOnError(t *testing.T) {
	ctx := NewContext(map[string]any{"x": 0})
	boom := errors.New("boom")
	err := ctx.Scope(map[string]value.Value{"x": value.Of(1)}, func() error {
		ctx.Set("y", value.Of(2))
		return boom
	})
	if err != boom {
		t.Fatalf("Scope() = %v", err)
	}
	assertVar(t, ctx, "x", 0)
	assertVar(t, ctx, "y", nil)
}

func TestSetOutsideScopeIsPermanent(t *testing.T) {
	ctx := NewContext(nil)
	ctx.Set("x", value.Of(1))
	exit := ctx.Enter(nil)
	exit()
	assertVar(t, ctx, "x", 1)
}

// -----------------------------------------------------------------------------
// Blocks and cycles
// -----------------------------------------------------------------------------

func TestBlocksOutsideDerivedTemplate(t *testing.T) {
	ctx := NewContext(nil)
	if _, err := ctx.Block("content"); !errors.Is(err, ErrNotInDerivedTemplate) {
		t.Errorf("Block() error = %v", err)
	}
	if _, err := ctx.BaseBlock(); !errors.Is(err, ErrNotInDerivedBlock) {
		t.Errorf("BaseBlock() error = %v", err)
	}
	if _, ok := ctx.CurrentBlock(); ok {
		t.Error("CurrentBlock() reported a block")
	}
}

func TestBlockChain(t *testing.T) {
	tmpl := mustParse(t, newTestEngine(false), "{{ a }}{{ b }}{{ c }}")
	layers := tmpl.Root().Nested()[0].Nested()

	ctx := NewContext(nil)
	exitBlocks := ctx.WithBlocks(BlockTable{"content": layers})
	got, err := ctx.Block("content")
	if err != nil || len(got) != 3 {
		t.Fatalf("Block() = %d layers, %v", len(got), err)
	}
	if none, err := ctx.Block("other"); err != nil || none != nil {
		t.Errorf("Block(other) = %v, %v", none, err)
	}

	exitBlock := ctx.EnterBlock("content", layers)
	if name, ok := ctx.CurrentBlock(); !ok || name != "content" {
		t.Errorf("CurrentBlock() = %q, %v", name, ok)
	}
	base, leave, err := ctx.EnterBase()
	if err != nil || base.Offset() != layers[1].Offset() {
		t.Fatalf("EnterBase() = %v, %v", base.Offset(), err)
	}
	next, err := ctx.BaseBlock()
	if err != nil || next.Offset() != layers[2].Offset() {
		t.Fatalf("BaseBlock() inside base = %v, %v", next.Offset(), err)
	}
	_, leaveTop, _ := ctx.EnterBase()
	if _, err := ctx.BaseBlock(); !errors.Is(err, ErrNotInDerivedBlock) {
		t.Errorf("BaseBlock() past the chain error = %v", err)
	}
	leaveTop()
	leave()
	again, _ := ctx.BaseBlock()
	if again.Offset() != layers[1].Offset() {
		t.Error("leaving the base did not rewind the chain")
	}
	exitBlock()
	exitBlocks()
	if _, ok := ctx.Blocks(); ok {
		t.Error("block table still attached")
	}
}

func cycleTag(template string, offset int) Node {
	return Node{t: &Template{name: template}, m: &grammar.Match{ID: "cycle", Start: offset}}
}

func TestCycles(t *testing.T) {
	ctx := NewContext(nil)
	a, b := cycleTag("page", 7), cycleTag("page", 8)
	var got []int
	for range 5 {
		got = append(got, ctx.NextCycle(a, 3))
	}
	if !slices.Equal(got, []int{0, 1, 2, 0, 1}) {
		t.Errorf("cycle = %v", got)
	}
	if ctx.NextCycle(b, 2) != 0 {
		t.Error("cycles with different offsets are not independent")
	}
	ctx.ResetCycle(a)
	if ctx.NextCycle(a, 3) != 0 {
		t.Error("ResetCycle did not rewind")
	}
	if ctx.NextCycle(cycleTag("page", 9), 0) != 0 {
		t.Error("empty cycle")
	}
}

func TestCyclesPerTemplate(t *testing.T) {
	ctx := NewContext(nil)
	outer, inner := cycleTag("page", 0), cycleTag("partial", 0)
	if ctx.NextCycle(outer, 2) != 0 {
		t.Fatal("first cycle did not start at 0")
	}
	if got := ctx.NextCycle(inner, 2); got != 0 {
		t.Errorf("cycle at the same offset of another template = %d, want 0", got)
	}
	if got := ctx.NextCycle(cycleTag("page", 0), 2); got != 1 {
		t.Errorf("cycle of the first template = %d, want 1", got)
	}
}
