package django

import (
	"strings"
	"sync"

	g "github.com/ajg/synth/grammar"
)

// Capture IDs of the tags. Every one of them has a handler.
const (
	idVariable    = "variable"
	idNote        = "note"
	idComment     = "comment"
	idVerbatim    = "verbatim"
	idIf          = "if"
	idIfEqual     = "ifequal"
	idIfNotEqual  = "ifnotequal"
	idFor         = "for"
	idWith        = "with"
	idBlock       = "blocktag"
	idExtends     = "extends"
	idInclude     = "include"
	idLoad        = "load"
	idCycle       = "cycle"
	idFirstOf     = "firstof"
	idNow         = "now"
	idURL         = "url"
	idTemplateTag = "templatetag"
	idSpaceless   = "spaceless"
	idAutoEscape  = "autoescape"
	idFilter      = "filter"
	idWidthRatio  = "widthratio"
	idDebug       = "debug"
	idTag         = "tag"
)

// Capture IDs inside tags.
const (
	idExpr     = "expr"
	idString   = "string"
	idNumber   = "number"
	idPath     = "path"
	idCall     = "call"
	idName     = "name"
	idOr       = "or"
	idAnd      = "and"
	idNot      = "not"
	idCmp      = "cmp"
	idOp       = "op"
	idGroup    = "group"
	idElif     = "elif"
	idElse     = "else"
	idEmpty    = "empty"
	idReversed = "reversed"
	idBind     = "bind"
	idOnly     = "only"
	idLibrary  = "library"
	idAs       = "as"
	idSilent   = "silent"
	idRaw      = "raw"
	idMode     = "mode"
	idChain    = "chain"
	idPipe     = "pipe"
)

// builtin lists the tag keywords that never name a library tag.
var builtin = []string{
	"if", "elif", "else", "ifequal", "ifnotequal", "for", "empty", "with",
	"block", "extends", "include", "load", "cycle", "firstof", "now", "url",
	"templatetag", "spaceless", "autoescape", "filter", "widthratio",
	"debug", "comment", "verbatim",
}

var (
	ws    = g.Re(`\s*`)
	ws1   = g.Re(`\s+`)
	ident = g.Re(`[A-Za-z_]\w*`)
)

func kw(word string) g.Rule {
	return g.Re(word + `\b`)
}

// open matches {% word ... %}.
func open(word string, rest ...g.Rule) g.Rule {
	parts := []g.Rule{g.Lit("{%"), ws, kw(word)}
	parts = append(parts, rest...)
	parts = append(parts, ws, g.Lit("%}"))
	return g.Seq(parts...)
}

// end matches {% word %}, optionally followed by a name.
func end(word string) g.Rule {
	return g.Seq(g.Lit("{%"), ws, kw(word), g.Opt(g.Seq(ws1, ident)), ws, g.Lit("%}"))
}

var parser = sync.OnceValue(newGrammar)

func newGrammar() *g.Grammar {
	// Expressions.
	str := g.Capture(idString, g.Re(`"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'`))
	num := g.Capture(idNumber, g.Re(`-?\d+(?:\.\d+)?`))
	path := g.Capture(idPath, g.Re(`[A-Za-z_]\w*(?:\.\w+)*`))
	call := g.Capture(idCall, g.Seq(g.Lit("_("), ws, str, ws, g.Lit(")")))
	atom := g.Alt(call, str, num, path)
	filter := g.Capture(idPipe, g.Seq(
		ws, g.Lit("|"), ws, g.Capture(idName, ident), g.Opt(g.Seq(g.Lit(":"), atom)),
	))
	expr := g.Capture(idExpr, g.Seq(atom, g.Star(filter)))
	chain := g.Capture(idChain, g.Seq(
		g.Capture(idPipe, g.Seq(g.Capture(idName, ident), g.Opt(g.Seq(g.Lit(":"), atom)))),
		g.Star(filter),
	))

	// Conditions.
	or := g.Forward()
	not := g.Forward()
	operand := g.Alt(g.Capture(idGroup, g.Seq(g.Lit("("), ws, or, ws, g.Lit(")"))), expr)
	cmp := g.Capture(idCmp, g.Seq(operand, g.Opt(g.Seq(
		ws, g.Capture(idOp, g.Re(`==|!=|<=|>=|<|>|not\s+in\b|in\b`)), ws, operand,
	))))
	not.Set(g.Alt(g.Capture(idNot, g.Seq(kw("not"), ws, not)), cmp))
	and := g.Capture(idAnd, g.Seq(not, g.Star(g.Seq(ws, kw("and"), ws, not))))
	or.Set(g.Capture(idOr, g.Seq(and, g.Star(g.Seq(ws, kw("or"), ws, and)))))

	// Arguments.
	bind := g.Capture(idBind, g.Seq(g.Capture(idName, ident), ws, g.Lit("="), ws, expr))
	as := g.Seq(ws1, kw("as"), ws1, g.Capture(idAs, ident))
	arg := g.Seq(ws1, g.Not(kw("as")), expr)
	libname := g.Re(`[\w.]+`)
	loadName := g.Seq(g.Not(kw("from")), g.Capture(idName, libname))

	body := g.Forward()
	elseBranch := g.Capture(idElse, g.Seq(open("else"), body))

	variable := g.Capture(idVariable, g.Seq(g.Lit("{{"), ws, expr, ws, g.Lit("}}")))
	note := g.Capture(idNote, g.Seq(g.Lit("{#"), g.Until(g.Lit("#}")), g.Lit("#}")))
	comment := g.Capture(idComment, g.Seq(
		g.Lit("{%"), ws, kw("comment"), g.Until(g.Lit("%}")), g.Lit("%}"),
		g.Until(end("endcomment")), end("endcomment"),
	))
	verbatim := g.Capture(idVerbatim, g.Seq(
		open("verbatim", g.Opt(g.Seq(ws1, ident))),
		g.Capture(idRaw, g.Until(end("endverbatim"))),
		end("endverbatim"),
	))
	ifTag := g.Capture(idIf, g.Seq(
		open("if", ws1, or), body,
		g.Star(g.Capture(idElif, g.Seq(open("elif", ws1, or), body))),
		g.Opt(elseBranch),
		end("endif"),
	))
	ifEqual := g.Capture(idIfEqual, g.Seq(
		open("ifequal", ws1, expr, ws1, expr), body, g.Opt(elseBranch), end("endifequal"),
	))
	ifNotEqual := g.Capture(idIfNotEqual, g.Seq(
		open("ifnotequal", ws1, expr, ws1, expr), body, g.Opt(elseBranch), end("endifnotequal"),
	))
	forTag := g.Capture(idFor, g.Seq(
		open("for", ws1,
			g.Capture(idName, ident), g.Star(g.Seq(ws, g.Lit(","), ws, g.Capture(idName, ident))),
			ws1, kw("in"), ws1, expr,
			g.Opt(g.Seq(ws1, g.Capture(idReversed, kw("reversed")))),
		),
		body,
		g.Opt(g.Capture(idEmpty, g.Seq(open("empty"), body))),
		end("endfor"),
	))
	with := g.Capture(idWith, g.Seq(
		open("with", ws1, g.Alt(
			g.Seq(bind, g.Star(g.Seq(ws1, bind))),
			g.Capture(idBind, g.Seq(expr, ws1, kw("as"), ws1, g.Capture(idName, ident))),
		)),
		body,
		end("endwith"),
	))
	block := g.Capture(idBlock, g.Seq(open("block", ws1, g.Capture(idName, ident)), body, end("endblock")))
	extends := g.Capture(idExtends, open("extends", ws1, expr))
	include := g.Capture(idInclude, open("include", ws1, expr,
		g.Opt(g.Seq(ws1, kw("with"), g.Plus(g.Seq(ws1, bind)))),
		g.Opt(g.Seq(ws1, g.Capture(idOnly, kw("only")))),
	))
	load := g.Capture(idLoad, open("load", ws1,
		loadName, g.Star(g.Seq(ws1, loadName)),
		g.Opt(g.Seq(ws1, kw("from"), ws1, g.Capture(idLibrary, libname))),
	))
	cycle := g.Capture(idCycle, open("cycle", g.Plus(arg), g.Opt(g.Seq(as,
		g.Opt(g.Seq(ws1, g.Capture(idSilent, kw("silent")))),
	))))
	firstOf := g.Capture(idFirstOf, open("firstof", g.Plus(arg)))
	now := g.Capture(idNow, open("now", ws1, expr, g.Opt(as)))
	url := g.Capture(idURL, open("url", ws1, expr, g.Star(arg), g.Opt(as)))
	templateTag := g.Capture(idTemplateTag, open("templatetag", ws1, g.Capture(idName, ident)))
	spaceless := g.Capture(idSpaceless, g.Seq(open("spaceless"), body, end("endspaceless")))
	autoEscape := g.Capture(idAutoEscape, g.Seq(
		open("autoescape", ws1, g.Capture(idMode, g.Re(`on\b|off\b`))), body, end("endautoescape"),
	))
	filterTag := g.Capture(idFilter, g.Seq(open("filter", ws1, chain), body, end("endfilter")))
	widthRatio := g.Capture(idWidthRatio, open("widthratio", arg, arg, arg, g.Opt(as)))
	debug := g.Capture(idDebug, open("debug"))

	reserved := g.Re(`(?:end\w*|` + strings.Join(builtin, "|") + `)\b`)
	tag := g.Capture(idTag, g.Seq(
		g.Lit("{%"), ws, g.Not(reserved), g.Capture(idName, ident), g.Star(arg), ws, g.Lit("%}"),
	))

	body.Set(g.Block(g.Text(`\{[{%#]`),
		variable, note, comment, verbatim,
		ifTag, ifEqual, ifNotEqual, forTag, with,
		block, extends, include, load,
		cycle, firstOf, now, url, templateTag,
		spaceless, autoEscape, filterTag, widthRatio, debug,
		tag,
	))
	return g.New(body)
}
