//go:build pprof

package cli

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/ajg/synth/internal/profile"
	"github.com/ajg/synth/log"
)

type pprofConfig struct {
	Mode string `default:""            enum:",${pprofModeEnum}" help:"Enable profiling." placeholder:"${enum}"`
	Dir  string `default:"${pprofDir}"                          help:"Profile output directory." type:"path"`
}

func (pprofConfig) vars() kong.Vars {
	return kong.Vars{
		"pprofModeEnum": strings.Join(profile.Modes(), ","),
		"pprofDir":      filepath.Join(cacheDir(), profile.Tag),
	}
}

func (pprofConfig) groups() []kong.Group {
	return []kong.Group{{Key: "pprof", Title: "Profiling (pprof)"}}
}

// start starts profiling if a mode is set.
func (f pprofConfig) start(context.Context) (stop func()) {
	if f.Mode == "" {
		return func() {}
	}
	log.Debug("pprof start", slog.String("mode", f.Mode), slog.String("dir", f.Dir))

	var cfg profile.Config = func() (string, string) { return "", "" }
	cfg = profile.WithMode(f.Mode)(cfg)
	cfg = profile.WithPath(f.Dir)(cfg)
	p := cfg.Start()

	return func() {
		log.Debug("pprof stop", slog.String("mode", f.Mode), slog.String("dir", f.Dir))
		p.Stop()
	}
}
