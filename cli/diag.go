package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ajg/synth"
)

var (
	locationStyle   = lipgloss.NewStyle().Bold(true)
	kindStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	sourceStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	caretStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	suggestionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	hintStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// diagnostic formats err for a terminal:
//
//	page.html:3:7: parse error: unexpected input
//	  3 | {% if x %
//	    |       ^
//
// src is the template source, used to show the failing line.
func diagnostic(err error, src string) string {
	var e *synth.Error
	if !errors.As(err, &e) {
		return kindStyle.Render("error") + ": " + err.Error() + "\n"
	}

	var b strings.Builder
	loc := e.Name
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", e.Name, e.Line, e.Column)
	}
	msg := e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	fmt.Fprintf(&b, "%s: %s: %s\n", locationStyle.Render(loc), kindStyle.Render(e.Kind.String()), msg)

	if line, ok := sourceLine(src, e.Line); ok {
		gutter := fmt.Sprintf("%4d | ", e.Line)
		fmt.Fprintf(&b, "%s%s\n", hintStyle.Render(gutter), sourceStyle.Render(line))
		pad := strings.Repeat(" ", max(e.Column-1, 0))
		fmt.Fprintf(&b, "%s%s%s\n", hintStyle.Render("     | "), pad, caretStyle.Render("^"))
	}
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&b, "%s %s\n", hintStyle.Render("did you mean:"), suggestionStyle.Render(strings.Join(e.Suggestions, ", ")))
	}
	return b.String()
}

// sourceLine returns the 1-based line n of src with tabs expanded.
func sourceLine(src string, n int) (string, bool) {
	if n <= 0 || src == "" {
		return "", false
	}
	lines := strings.Split(src, "\n")
	if n > len(lines) {
		return "", false
	}
	return strings.ReplaceAll(strings.TrimRight(lines[n-1], "\r"), "\t", " "), true
}
