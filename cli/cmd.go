package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/goodsign/monday"

	"github.com/ajg/synth"
	"github.com/ajg/synth/django"
	"github.com/ajg/synth/log"
	"github.com/ajg/synth/ssi"
	"github.com/ajg/synth/tmpl"
)

// dialectFlags select and configure a dialect.
type dialectFlags struct {
	Dialect   string `default:"django" enum:"django,ssi,tmpl" help:"Template dialect (${enum})." short:"d"`
	AllowExec bool   `help:"Let SSI templates run commands with exec."`
}

func (f dialectFlags) dialect() *synth.Dialect {
	switch f.Dialect {
	case "ssi":
		return ssi.New(ssi.Config{AllowExec: f.AllowExec})
	case "tmpl":
		return tmpl.Dialect()
	}
	return django.Dialect()
}

// Render renders one template.
type Render struct {
	Flags dialectFlags `embed:""`

	Context  []string          `help:"Context file (.json, .yaml, .yml or .toml); may repeat." short:"c" type:"existingfile"`
	Dir      []string          `help:"Directory searched for included templates; may repeat." type:"existingdir"`
	Var      map[string]string `help:"Set a string variable as key=value; may repeat."`
	Locale   string            `help:"Locale of dates and numbers, such as de_DE."`
	Output   string            `help:"Write the output to a file instead of stdout." short:"o" type:"path"`
	Template string            `arg:"" help:"Template file." type:"existingfile"`
}

// Run executes the render command.
func (r *Render) Run(ctx context.Context, s *streams) error {
	vars, err := loadContext(r.Context, r.Var)
	if err != nil {
		return err
	}
	e := synth.New(r.Flags.dialect())
	t, err := e.ParseFile(r.Template)
	if err != nil {
		return err
	}

	opts := []synth.Option{
		synth.WithDirectories(append(r.Dir, filepath.Dir(r.Template))...),
		synth.WithLogger(log.Default()),
	}
	if r.Locale != "" {
		opts = append(opts, synth.WithLocale(monday.Locale(r.Locale)))
	}
	log.Debug("render",
		slog.String("dialect", r.Flags.Dialect),
		slog.String("template", r.Template),
		slog.Int("vars", len(vars)))

	c := synth.NewContext(vars)
	if r.Output != "" {
		return t.RenderToPath(r.Output, c, e.NewOptions(opts...))
	}
	return t.RenderTo(s.out, c, e.NewOptions(opts...))
}

// ErrCheckFailed is returned by check when a template does not parse.
var ErrCheckFailed = errors.New("check failed")

// Check parses templates without rendering them.
type Check struct {
	Flags dialectFlags `embed:""`

	Files []string `arg:"" help:"Template files." type:"existingfile"`
}

// Run executes the check command.
func (c *Check) Run(ctx context.Context, s *streams) error {
	e := synth.New(c.Flags.dialect())
	failed := 0
	for _, path := range c.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := e.ParseFile(path)
		if err == nil {
			log.Debug("template ok", slog.String("template", path))
			continue
		}
		failed++
		src, _ := os.ReadFile(path)
		if _, werr := io.WriteString(s.err, diagnostic(err, string(src))); werr != nil {
			return werr
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d templates", ErrCheckFailed, failed, len(c.Files))
	}
	return nil
}
