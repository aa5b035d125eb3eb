// Package cli implements the synth command line.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/alecthomas/kong"
)

const (
	name        = "synth"
	description = "Render Django, SSI and TMPL templates"
)

// CLI is the top-level command-line interface.
type CLI struct {
	Log   logConfig   `embed:"" group:"log"   prefix:"log-"`
	Pprof pprofConfig `embed:"" group:"pprof" prefix:"pprof-"`

	Render Render `cmd:"" help:"Render a template"`
	Check  Check  `cmd:"" help:"Parse templates and report errors"`
}

// streams are the standard output and error of a command.
type streams struct {
	out, err io.Writer
}

// Run executes the command line args. exit is called when kong exits early,
// for instance after printing help.
func Run(ctx context.Context, exit func(code int), args ...string) error {
	return run(ctx, exit, os.Stdout, os.Stderr, args)
}

func run(ctx context.Context, exit func(int), stdout, stderr io.Writer, args []string) error {
	var cli CLI

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Logger flags take effect before parsing so that parse errors are
	// logged the way the user asked.
	cli.Log.scan(args)

	parser, err := kong.New(&cli,
		kong.Name(name),
		kong.Description(description),
		kong.UsageOnError(),
		kong.Exit(exit),
		kong.Writers(stdout, stderr),
		kong.ExplicitGroups(append([]kong.Group{cli.Log.group()}, cli.Pprof.groups()...)),
		kong.BindSingletonProvider(func() context.Context {
			return ctx
		}),
		kong.Bind(&streams{out: stdout, err: stderr}),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			Summary:             true,
			NoExpandSubcommands: true,
		}),
		kong.Configuration(kong.JSON, configPath("config.json")),
		cli.Pprof.vars(),
	)
	if err != nil {
		return err
	}

	ktx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	cli.Log.start(stderr)
	defer cli.Pprof.start(ctx)()

	return ktx.Run()
}
