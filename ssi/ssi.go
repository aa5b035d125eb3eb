// Package ssi implements the server-side include directive language.
//
// Directives are HTML comments of the form
//
//	<!--#name attribute="value" ... -->
//
// Everything else is copied verbatim. A directive that fails is replaced
// by the configured error message and rendering goes on.
//
// Supported directives are echo, set, include, config, fsize, flastmod,
// printenv, exec and the if, elif, else and endif conditionals. Any other
// directive name is looked up as a library tag and receives its attributes
// as key/value pairs.
package ssi

import (
	"sync"

	"github.com/ajg/synth"
	g "github.com/ajg/synth/grammar"
)

// Defaults of the configurable settings.
const (
	DefaultErrorMessage = "[an error occurred while processing this directive]"
	DefaultEchoMessage  = "(none)"
	DefaultTimeFormat   = "%A, %d-%b-%Y %H:%M:%S %Z"
	DefaultSizeFormat   = "bytes"
)

// Names of the formats the config directive sets.
const (
	TimeFormat = "timefmt"
	SizeFormat = "sizefmt"
)

// Config controls the directives that reach outside the template.
type Config struct {
	// AllowExec enables the exec directive.
	AllowExec bool
}

// Dialect returns the ssi dialect with exec disabled.
func Dialect() *synth.Dialect {
	return New(Config{})
}

// New returns the ssi dialect configured by cfg.
func New(cfg Config) *synth.Dialect {
	handlers := map[string]synth.Handler{
		idEcho:      renderEcho,
		idSet:       renderSet,
		idInclude:   renderInclude,
		idConfig:    renderConfig,
		idFSize:     renderFSize,
		idFLastMod:  renderFLastMod,
		idPrintEnv:  renderPrintEnv,
		idExec:      execHandler(cfg.AllowExec),
		idIf:        renderIf,
		idDirective: renderDirective,
	}
	return &synth.Dialect{
		Name:     "ssi",
		Grammar:  parser(),
		Handlers: handlers,
		FailSoft: true,
		Options: []synth.Option{
			synth.WithAutoEscape(false),
			synth.WithErrorValue(DefaultErrorMessage),
			synth.WithDefaultValue(DefaultEchoMessage),
			synth.WithFormat(TimeFormat, DefaultTimeFormat),
			synth.WithFormat(SizeFormat, DefaultSizeFormat),
		},
	}
}

const (
	idEcho      = "echo"
	idSet       = "set"
	idInclude   = "include"
	idConfig    = "config"
	idFSize     = "fsize"
	idFLastMod  = "flastmod"
	idPrintEnv  = "printenv"
	idExec      = "exec"
	idIf        = "if"
	idDirective = "directive"

	idElif  = "elif"
	idElse  = "else"
	idAttr  = "attr"
	idKey   = "key"
	idValue = "value"
	idName  = "name"
)

var parser = sync.OnceValue(func() *g.Grammar {
	ws := g.Re(`\s*`)
	ws1 := g.Re(`\s+`)
	ident := g.Re(`[A-Za-z_][\w-]*`)
	quoted := g.Re("\"(?:[^\"\\\\]|\\\\.)*\"|'(?:[^'\\\\]|\\\\.)*'|`[^`]*`")
	attr := g.Capture(idAttr, g.Seq(
		g.Capture(idKey, ident), ws, g.Lit("="), ws, g.Capture(idValue, quoted),
	))
	attrs := g.Star(g.Seq(ws1, attr))

	open := func(name string) g.Rule {
		return g.Seq(g.Lit("<!--#"), ws, g.Fold(name), g.Not(g.Re(`[\w-]`)), attrs, ws, g.Lit("-->"))
	}
	directive := func(id string) g.Rule {
		return g.Capture(id, open(id))
	}

	body := g.Forward()
	ifDirective := g.Capture(idIf, g.Seq(
		open("if"), body,
		g.Star(g.Capture(idElif, g.Seq(open("elif"), body))),
		g.Opt(g.Capture(idElse, g.Seq(open("else"), body))),
		open("endif"),
	))
	reserved := g.Re(`(?i:echo|set|include|config|fsize|flastmod|printenv|exec|if|elif|else|endif)\b`)
	generic := g.Capture(idDirective, g.Seq(
		g.Lit("<!--#"), ws, g.Not(reserved), g.Capture(idName, ident), attrs, ws, g.Lit("-->"),
	))

	body.Set(g.Block(g.Text(`<!--#`),
		directive(idEcho), directive(idSet), directive(idInclude),
		directive(idConfig), directive(idFSize), directive(idFLastMod),
		directive(idPrintEnv), directive(idExec),
		ifDirective,
		generic,
	))
	return g.New(body)
})
