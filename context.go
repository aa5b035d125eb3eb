package synth

import (
	"maps"
	"slices"
	"strings"

	"github.com/ajg/synth/value"
)

// Context is the scoped variable environment of a render.
//
// Scopes are opened with Enter. While at least one scope is open, every Set
// and Unset records the previous state of the name in an undo log; leaving a
// scope replays the log in reverse, so the variables look exactly as they
// did when the scope was entered.
//
// A Context is not safe for concurrent use. Each render owns its Context.
type Context struct {
	vars            map[string]value.Value
	caseInsensitive bool

	undo   []undoEntry
	frames []int

	blocks BlockTable
	block  *blockFrame

	cycles map[cycleKey]int
	depth  int
}

type undoEntry struct {
	name    string
	prev    value.Value
	existed bool
}

// BlockTable maps a block name to its definitions, most derived first.
type BlockTable map[string][]Node

type blockFrame struct {
	name   string
	layers []Node
	index  int
}

// NewContext returns a Context holding vars.
func NewContext(vars map[string]any) *Context {
	c := &Context{vars: make(map[string]value.Value, len(vars))}
	for k, v := range vars {
		c.vars[k] = value.Of(v)
	}
	return c
}

// Isolated returns a Context holding only vars. It keeps the nesting depth
// and case sensitivity of c but no scopes, blocks or cycles.
func (c *Context) Isolated(vars map[string]value.Value) *Context {
	return &Context{
		vars:            maps.Clone(vars),
		caseInsensitive: c.caseInsensitive,
		depth:           c.depth,
	}
}

// Update copies every entry of v, a map or a record, into c.
func (c *Context) Update(v value.Value) error {
	items, err := v.Items()
	if err != nil {
		return err
	}
	for _, item := range items {
		k, ok := item.Attr("key")
		if !ok {
			return Errorf(ErrInvalidArgument, "cannot bind %s in a context", item.Repr())
		}
		val, _ := item.Attr("value")
		c.Set(k.String(), val)
	}
	return nil
}

// SetCaseInsensitive controls whether names match regardless of case.
// Case-insensitive lookups scan every name and are linear in the size of
// the context.
func (c *Context) SetCaseInsensitive(b bool) {
	c.caseInsensitive = b
}

// CaseInsensitive reports whether names match regardless of case.
func (c *Context) CaseInsensitive() bool {
	return c.caseInsensitive
}

// key returns the stored spelling of name.
func (c *Context) key(name string) (string, bool) {
	if _, ok := c.vars[name]; ok {
		return name, true
	}
	if c.caseInsensitive {
		for k := range c.vars {
			if strings.EqualFold(k, name) {
				return k, true
			}
		}
	}
	return name, false
}

// Get returns the value bound to name.
func (c *Context) Get(name string) (value.Value, bool) {
	k, ok := c.key(name)
	if !ok {
		return value.None(), false
	}
	return c.vars[k], true
}

// Lookup returns the value bound to name, or the empty Value.
func (c *Context) Lookup(name string) value.Value {
	v, _ := c.Get(name)
	return v
}

// Has reports whether name is bound.
func (c *Context) Has(name string) bool {
	_, ok := c.key(name)
	return ok
}

// Set binds name to v.
func (c *Context) Set(name string, v value.Value) {
	if c.vars == nil {
		c.vars = make(map[string]value.Value)
	}
	k, _ := c.key(name)
	c.record(k)
	c.vars[k] = v
}

// Unset removes name.
func (c *Context) Unset(name string) {
	k, ok := c.key(name)
	if !ok {
		return
	}
	c.record(k)
	delete(c.vars, k)
}

func (c *Context) record(k string) {
	if len(c.frames) == 0 {
		return
	}
	prev, existed := c.vars[k]
	c.undo = append(c.undo, undoEntry{name: k, prev: prev, existed: existed})
}

// Keys returns the bound names in ascending order.
func (c *Context) Keys() []string {
	return slices.Sorted(maps.Keys(c.vars))
}

// Len returns the number of bound names.
func (c *Context) Len() int {
	return len(c.vars)
}

// Enter opens a scope and binds bindings inside it. The returned function
// closes the scope along with any scope opened inside it and left open;
// calling it more than once has no further effect.
func (c *Context) Enter(bindings map[string]value.Value) (exit func()) {
	c.frames = append(c.frames, len(c.undo))
	for _, k := range slices.Sorted(maps.Keys(bindings)) {
		c.Set(k, bindings[k])
	}
	depth := len(c.frames)
	done := false
	return func() {
		if done {
			return
		}
		done = true
		for len(c.frames) >= depth {
			c.leave()
		}
	}
}

func (c *Context) leave() {
	mark := c.frames[len(c.frames)-1]
	c.frames = c.frames[:len(c.frames)-1]
	for i := len(c.undo) - 1; i >= mark; i-- {
		u := c.undo[i]
		if u.existed {
			c.vars[u.name] = u.prev
		} else {
			delete(c.vars, u.name)
		}
	}
	clear(c.undo[mark:])
	c.undo = c.undo[:mark]
}

// Scope runs fn inside a scope holding bindings. The scope is closed when
// fn returns, whether or not it fails.
func (c *Context) Scope(bindings map[string]value.Value, fn func() error) error {
	exit := c.Enter(bindings)
	defer exit()
	return fn()
}

// ----------------------------------------------------------------------------
// template inheritance
// ----------------------------------------------------------------------------

// WithBlocks attaches a block table for the duration of a derived render.
func (c *Context) WithBlocks(t BlockTable) (exit func()) {
	prev := c.blocks
	c.blocks = t
	return func() { c.blocks = prev }
}

// Blocks returns the attached block table.
func (c *Context) Blocks() (BlockTable, bool) {
	return c.blocks, c.blocks != nil
}

// Block returns the definitions of the named block, most derived first. It
// fails with ErrNotInDerivedTemplate when no block table is attached.
func (c *Context) Block(name string) ([]Node, error) {
	if c.blocks == nil {
		return nil, Errorf(ErrNotInDerivedTemplate, "block %q requested outside a derived template", name)
	}
	return c.blocks[name], nil
}

// EnterBlock makes name the current block, rendered from the first of
// layers.
func (c *Context) EnterBlock(name string, layers []Node) (exit func()) {
	prev := c.block
	c.block = &blockFrame{name: name, layers: layers}
	return func() { c.block = prev }
}

// CurrentBlock returns the name of the block being rendered.
func (c *Context) CurrentBlock() (string, bool) {
	if c.block == nil {
		return "", false
	}
	return c.block.name, true
}

// BaseBlock returns the definition the current block overrides. It fails
// with ErrNotInDerivedBlock outside a block or when the block overrides
// nothing.
func (c *Context) BaseBlock() (Node, error) {
	if c.block == nil {
		return Node{}, NewError(ErrNotInDerivedBlock, "no current block")
	}
	next := c.block.index + 1
	if next >= len(c.block.layers) {
		return Node{}, Errorf(ErrNotInDerivedBlock, "block %q has no parent definition", c.block.name)
	}
	return c.block.layers[next], nil
}

// EnterBase returns the definition the current block overrides and makes
// it current, so that nested references reach further up the chain.
func (c *Context) EnterBase() (Node, func(), error) {
	n, err := c.BaseBlock()
	if err != nil {
		return Node{}, func() {}, err
	}
	c.block.index++
	frame := c.block
	return n, func() { frame.index-- }, nil
}

// ----------------------------------------------------------------------------
// cycles
// ----------------------------------------------------------------------------

// cycleKey identifies a cycle tag by template and position, so that tags
// at the same offset of different templates advance separately.
type cycleKey struct {
	template string
	offset   int
}

func keyOf(tag Node) cycleKey {
	if tag.t == nil || tag.m == nil {
		return cycleKey{}
	}
	return cycleKey{template: tag.t.name, offset: tag.m.Start}
}

// NextCycle returns the position of the cycle of tag among n choices and
// advances it.
func (c *Context) NextCycle(tag Node, n int) int {
	if n <= 0 {
		return 0
	}
	if c.cycles == nil {
		c.cycles = make(map[cycleKey]int)
	}
	k := keyOf(tag)
	i := c.cycles[k] % n
	c.cycles[k] = i + 1
	return i
}

// ResetCycle rewinds the cycle of tag.
func (c *Context) ResetCycle(tag Node) {
	delete(c.cycles, keyOf(tag))
}

// ----------------------------------------------------------------------------
// nesting
// ----------------------------------------------------------------------------

// DefaultMaxDepth bounds nested template renders when Options.MaxDepth is
// zero.
const DefaultMaxDepth = 64

// nest guards recursive template renders.
func (c *Context) nest(limit int) (exit func(), err error) {
	if limit <= 0 {
		limit = DefaultMaxDepth
	}
	if c.depth >= limit {
		return func() {}, Errorf(ErrRecursionLimit, "templates nested more than %d deep", limit)
	}
	c.depth++
	return func() { c.depth-- }, nil
}
