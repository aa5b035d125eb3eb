// Package django implements a Django-like template dialect.
//
//	engine := synth.New(django.Dialect())
//	tmpl, _ := engine.Parse(`{% for x in items %}{{ x|upper }}{% empty %}none{% endfor %}`)
//	out, _ := tmpl.Render(synth.NewContext(map[string]any{"items": []string{"a", "b"}}), nil)
//	// out == "AB"
//
// Rendering stops at the first error. Output is HTML-escaped unless a value
// is marked safe or autoescaping is turned off.
//
// Besides the builtin filters, two libraries can be loaded by name:
// "markup" provides markdown and "humanize" provides intcomma, ordinal and
// apnumber. Both are only found through Options built with
// Engine.NewOptions, which installs Loader.
package django

import (
	"github.com/ajg/synth"
)

// Loader materializes the optional libraries of the dialect.
var Loader = synth.LoaderFunc(func(name string, _ *synth.Options) (synth.Library, error) {
	switch name {
	case "markup":
		return Markup(), nil
	case "humanize":
		return Humanize(), nil
	}
	return nil, nil
})

// Dialect returns the django dialect.
func Dialect() *synth.Dialect {
	return &synth.Dialect{
		Name:     "django",
		Grammar:  parser(),
		Handlers: handlers,
		Builtins: []synth.Library{Builtins()},
		Options: []synth.Option{
			synth.WithAutoEscape(true),
			synth.WithFormat("DATE_FORMAT", DefaultDateFormat),
			synth.WithFormat("DATETIME_FORMAT", DefaultDateTimeFormat),
			synth.WithFormat("TIME_FORMAT", DefaultTimeFormat),
			synth.WithFormat("SHORT_DATE_FORMAT", DefaultShortDateFormat),
			synth.WithLoader(Loader),
		},
	}
}
