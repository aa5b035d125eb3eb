/*
Package tmpl implements a dialect in the style of Perl's HTML::Template.

Tags look like HTML elements or HTML comments, and their names are not case
sensitive:

	<TMPL_VAR NAME="title" ESCAPE=HTML>
	<!-- TMPL_VAR title -->

	<TMPL_LOOP NAME=rows>
		<tr class="<TMPL_IF __odd__>odd<TMPL_ELSE>even</TMPL_IF>">
			<td><TMPL_VAR __counter__></td><td><TMPL_VAR name></td>
		</tr>
	</TMPL_LOOP>

	<TMPL_UNLESS items>nothing here</TMPL_UNLESS>
	<TMPL_INCLUDE NAME="footer.tmpl">

Variable names are case insensitive too. Inside a loop every field of the
current row is visible along with the outer variables and the loop
variables __first__, __last__, __inner__, __odd__, __even__ and
__counter__.

Any failing tag aborts the render.
*/
package tmpl

import (
	"sync"

	"github.com/ajg/synth"
	g "github.com/ajg/synth/grammar"
)

// Dialect returns the tmpl dialect.
func Dialect() *synth.Dialect {
	return &synth.Dialect{
		Name:    "tmpl",
		Grammar: parser(),
		Handlers: map[string]synth.Handler{
			idVar:     renderVar,
			idIf:      renderIf,
			idUnless:  renderIf,
			idLoop:    renderLoop,
			idInclude: renderInclude,
		},
		CaseInsensitive: true,
		Options: []synth.Option{
			synth.WithAutoEscape(false),
		},
	}
}

const (
	idVar     = "var"
	idIf      = "if"
	idUnless  = "unless"
	idLoop    = "loop"
	idInclude = "include"

	idElse  = "else"
	idAttr  = "attr"
	idKey   = "key"
	idValue = "value"
)

var parser = sync.OnceValue(func() *g.Grammar {
	ws := g.Re(`\s*`)
	ws1 := g.Re(`\s+`)
	quoted := g.Re(`"[^"]*"|'[^']*'`)
	bare := g.Re(`[\w.:/-]*[\w.:]`)
	attr := g.Capture(idAttr, g.Seq(
		g.Opt(g.Seq(g.Capture(idKey, g.Re(`[A-Za-z_]\w*`)), ws, g.Lit("="), ws)),
		g.Capture(idValue, g.Alt(quoted, bare)),
	))
	attrs := g.Star(g.Seq(ws1, attr))

	name := func(tag string) g.Rule {
		return g.Seq(g.Fold("TMPL_"+tag), g.Not(g.Re(`\w`)))
	}
	open := func(tag string) g.Rule {
		return g.Alt(
			g.Seq(g.Lit("<"), name(tag), attrs, ws, g.Opt(g.Lit("/")), g.Lit(">")),
			g.Seq(g.Lit("<!--"), ws, name(tag), attrs, ws, g.Lit("-->")),
		)
	}
	closing := func(tag string) g.Rule {
		return g.Alt(
			g.Seq(g.Lit("</"), name(tag), ws, g.Lit(">")),
			g.Seq(g.Lit("<!--"), ws, g.Lit("/"), name(tag), ws, g.Lit("-->")),
		)
	}

	body := g.Forward()
	conditional := func(id, tag string) g.Rule {
		return g.Capture(id, g.Seq(
			open(tag), body,
			g.Opt(g.Capture(idElse, g.Seq(open("ELSE"), body))),
			closing(tag),
		))
	}

	body.Set(g.Block(g.Text(`(?i)<(?:!--\s*)?/?tmpl_`),
		g.Capture(idVar, open("VAR")),
		g.Capture(idInclude, open("INCLUDE")),
		conditional(idIf, "IF"),
		conditional(idUnless, "UNLESS"),
		g.Capture(idLoop, g.Seq(open("LOOP"), body, closing("LOOP"))),
	))
	return g.New(body)
})
