package django

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ajg/synth"
	"github.com/ajg/synth/value"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Markup returns the library loaded by {% load markup %}.
func Markup() synth.Library {
	return synth.NewBundle(nil, map[string]synth.Filter{
		"markdown": filterMarkdown,
	})
}

// filterMarkdown converts Markdown to HTML. Raw HTML in the input is
// omitted.
func filterMarkdown(in value.Value, _ []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	var b bytes.Buffer
	if err := markdown.Convert([]byte(in.String()), &b); err != nil {
		return value.None(), synth.Errorf(synth.ErrInvalidArgument, "markdown: %v", err)
	}
	return value.Safe(b.String()), nil
}
