// Package profile starts runtime profiling for the synth command.
//
// Profiling is compiled in only with the pprof build tag:
//
//	go build -tags pprof ./cmd/synth
//	synth --pprof-mode cpu --pprof-dir ./profiles render page.html
//
// Without the tag every function here is a no-op.
package profile

// Tag is the build tag enabling profiling, also used as the name of the
// default output directory.
const Tag = "pprof"

// Config returns the profiling parameters.
type Config func() (mode, path string)

// Start starts the profiler. It returns a no-op when mode is empty or the
// binary was built without the pprof tag. Stop is always safe to call.
func (c Config) Start() interface{ Stop() } {
	mode, path := c()
	if mode == "" {
		return ignore{}
	}
	return start(mode, path)
}

// WithMode sets the profiling mode.
func WithMode(mode string) func(Config) Config {
	return func(c Config) Config {
		_, path := c()
		return func() (string, string) { return mode, path }
	}
}

// WithPath sets the output directory.
func WithPath(path string) func(Config) Config {
	return func(c Config) Config {
		mode, _ := c()
		return func() (string, string) { return mode, path }
	}
}

type ignore struct{}

func (ignore) Stop() {}
