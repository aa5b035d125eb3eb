// Package grammar implements the parsing kernel shared by every synth
// dialect.
//
// A dialect describes its syntax as a tree of Rules built from a handful of
// combinators: literals, regular expressions, sequences, ordered choice,
// repetition and lookahead. Capture turns the span matched by a rule into a
// Match node with an ID, and the resulting tree of Matches is what templates
// keep after parsing.
//
// A typical dialect grammar looks like this:
//
//	body := grammar.Forward()
//	echo := grammar.Capture("echo", grammar.Seq(
//	    grammar.Lit("{{"), ws, grammar.Capture("name", ident), ws, grammar.Lit("}}"),
//	))
//	body.Set(grammar.Block(grammar.Text(`\{\{`), echo))
//	g := grammar.New(body)
//
// Parsing is a plain recursive descent with backtracking. While it runs the
// parser remembers the furthest position reached by any terminal so that a
// failed parse can point at the place where the input stopped making sense.
package grammar

import (
	"regexp"
	"strings"
	"unicode/utf8"

	serrors "github.com/ajg/synth/internal/errors"
)

// Reserved match IDs.
const (
	// RootID is the ID of the match spanning the whole template.
	RootID = "root"
	// BlockID is the ID of a sequence of tags and text.
	BlockID = "block"
	// TextID is the ID of a run of plain text.
	TextID = "text"
)

// PreviewLimit bounds the number of runes quoted from the source in a parse
// error.
const PreviewLimit = 40

// Rule matches input at a position.
type Rule interface {
	match(p *parser, pos int) (end int, ms []*Match, ok bool)
}

type ruleFunc func(p *parser, pos int) (int, []*Match, bool)

func (f ruleFunc) match(p *parser, pos int) (int, []*Match, bool) { return f(p, pos) }

// parser holds the state of one parse.
type parser struct {
	src      string
	furthest int
	look     int
}

// reach records a successful terminal match ending at end.
func (p *parser) reach(end int) {
	if p.look == 0 && end > p.furthest {
		p.furthest = end
	}
}

// ----------------------------------------------------------------------------
// terminals
// ----------------------------------------------------------------------------

// Lit matches s exactly.
func Lit(s string) Rule {
	return ruleFunc(func(p *parser, pos int) (int, []*Match, bool) {
		if !strings.HasPrefix(p.src[pos:], s) {
			return pos, nil, false
		}
		p.reach(pos + len(s))
		return pos + len(s), nil, true
	})
}

// Fold matches s ignoring case.
func Fold(s string) Rule {
	return ruleFunc(func(p *parser, pos int) (int, []*Match, bool) {
		end := pos + len(s)
		if end > len(p.src) || !strings.EqualFold(p.src[pos:end], s) {
			return pos, nil, false
		}
		p.reach(end)
		return end, nil, true
	})
}

// Re matches the regular expression pattern anchored at the current
// position. It panics if pattern does not compile.
func Re(pattern string) Rule {
	re := regexp.MustCompile(`^(?:` + pattern + `)`)
	return ruleFunc(func(p *parser, pos int) (int, []*Match, bool) {
		loc := re.FindStringIndex(p.src[pos:])
		if loc == nil {
			return pos, nil, false
		}
		p.reach(pos + loc[1])
		return pos + loc[1], nil, true
	})
}

// Text matches a non-empty run of plain text and captures it as a TextID
// match. The run stops before the first position where stop matches, or at
// the end of input.
func Text(stop string) Rule {
	re := regexp.MustCompile(stop)
	return ruleFunc(func(p *parser, pos int) (int, []*Match, bool) {
		end := len(p.src)
		if loc := re.FindStringIndex(p.src[pos:]); loc != nil {
			end = pos + loc[0]
		}
		if end == pos {
			return pos, nil, false
		}
		p.reach(end)
		return end, []*Match{{ID: TextID, Start: pos, End: end}}, true
	})
}

// Until matches everything up to, but not including, the first position
// where stop matches. It fails when stop never matches.
func Until(stop Rule) Rule {
	return ruleFunc(func(p *parser, pos int) (int, []*Match, bool) {
		for i := pos; i <= len(p.src); {
			p.look++
			_, _, ok := stop.match(p, i)
			p.look--
			if ok {
				p.reach(i)
				return i, nil, true
			}
			if i == len(p.src) {
				break
			}
			_, size := utf8.DecodeRuneInString(p.src[i:])
			i += size
		}
		return pos, nil, false
	})
}

// EOF matches the end of input.
func EOF() Rule {
	return ruleFunc(func(p *parser, pos int) (int, []*Match, bool) {
		return pos, nil, pos == len(p.src)
	})
}

// ----------------------------------------------------------------------------
// combinators
// ----------------------------------------------------------------------------

// Seq matches rules one after the other.
func Seq(rules ...Rule) Rule {
	return ruleFunc(func(p *parser, pos int) (int, []*Match, bool) {
		var out []*Match
		cur := pos
		for _, r := range rules {
			end, ms, ok := r.match(p, cur)
			if !ok {
				return pos, nil, false
			}
			out = append(out, ms...)
			cur = end
		}
		return cur, out, true
	})
}

// Alt tries rules in order and returns the first that matches.
func Alt(rules ...Rule) Rule {
	return ruleFunc(func(p *parser, pos int) (int, []*Match, bool) {
		for _, r := range rules {
			if end, ms, ok := r.match(p, pos); ok {
				return end, ms, true
			}
		}
		return pos, nil, false
	})
}

// Opt matches rule or nothing.
func Opt(rule Rule) Rule {
	return ruleFunc(func(p *parser, pos int) (int, []*Match, bool) {
		if end, ms, ok := rule.match(p, pos); ok {
			return end, ms, true
		}
		return pos, nil, true
	})
}

// Star matches rule zero or more times. Repetition stops when rule fails or
// stops consuming input.
func Star(rule Rule) Rule {
	return ruleFunc(func(p *parser, pos int) (int, []*Match, bool) {
		var out []*Match
		cur := pos
		for {
			end, ms, ok := rule.match(p, cur)
			if !ok || end == cur {
				return cur, out, true
			}
			out = append(out, ms...)
			cur = end
		}
	})
}

// Plus matches rule one or more times.
func Plus(rule Rule) Rule {
	return Seq(rule, Star(rule))
}

// Capture wraps whatever rule matches in a single Match with the given ID.
func Capture(id string, rule Rule) Rule {
	return ruleFunc(func(p *parser, pos int) (int, []*Match, bool) {
		end, ms, ok := rule.match(p, pos)
		if !ok {
			return pos, nil, false
		}
		return end, []*Match{{ID: id, Start: pos, End: end, Nested: ms}}, true
	})
}

// Not succeeds without consuming input when rule does not match.
func Not(rule Rule) Rule {
	return ruleFunc(func(p *parser, pos int) (int, []*Match, bool) {
		p.look++
		_, _, ok := rule.match(p, pos)
		p.look--
		return pos, nil, !ok
	})
}

// Ahead succeeds without consuming input when rule matches.
func Ahead(rule Rule) Rule {
	return ruleFunc(func(p *parser, pos int) (int, []*Match, bool) {
		p.look++
		_, _, ok := rule.match(p, pos)
		p.look--
		return pos, nil, ok
	})
}

// Block matches a sequence of tags and text and captures it as a BlockID
// match. Tags are tried in order before text.
func Block(text Rule, tags ...Rule) Rule {
	alts := make([]Rule, 0, len(tags)+1)
	alts = append(alts, tags...)
	alts = append(alts, text)
	return Capture(BlockID, Star(Alt(alts...)))
}

// Ref is a rule defined after it is first referenced, which allows
// recursive grammars.
type Ref struct {
	rule Rule
}

// Forward returns an unset Ref.
func Forward() *Ref {
	return &Ref{}
}

// Set defines the rule behind r.
func (r *Ref) Set(rule Rule) {
	r.rule = rule
}

func (r *Ref) match(p *parser, pos int) (int, []*Match, bool) {
	if r.rule == nil {
		panic("grammar: forward rule used before Set")
	}
	return r.rule.match(p, pos)
}

// ----------------------------------------------------------------------------
// Grammar
// ----------------------------------------------------------------------------

// Grammar parses complete templates.
type Grammar struct {
	root Rule
}

// New returns a Grammar whose templates must match root in full.
func New(root Rule) *Grammar {
	return &Grammar{root: root}
}

// Parse matches src against the grammar. The returned Tree has a RootID
// match spanning all of src. On failure the error is an ErrParse carrying
// the furthest position reached and a preview of the source there.
func (g *Grammar) Parse(name, src string) (*Tree, error) {
	p := &parser{src: src}
	end, ms, ok := g.root.match(p, 0)
	if ok && end == len(src) {
		return &Tree{
			Name:   name,
			Source: src,
			Root:   &Match{ID: RootID, Start: 0, End: len(src), Nested: ms},
		}, nil
	}
	at := max(p.furthest, end)
	if !ok {
		at = p.furthest
	}
	return nil, parseError(name, src, at)
}

func parseError(name, src string, at int) error {
	preview := Preview(src, at)
	e := serrors.New(serrors.ErrParse, "unexpected input")
	if preview == "" {
		e.Message = "unexpected end of input"
	}
	e.Preview = preview
	return e.WithName(name).WithPosition(src, at)
}

// Preview returns the rest of the line starting at offset, truncated to
// PreviewLimit runes.
func Preview(src string, offset int) string {
	if offset >= len(src) {
		return ""
	}
	line, _, _ := strings.Cut(src[offset:], "\n")
	line = strings.TrimSuffix(line, "\r")
	n := 0
	for i := range line {
		if n == PreviewLimit {
			return line[:i]
		}
		n++
	}
	return line
}
