// Command synth renders and checks templates.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/ajg/synth/cli"
	"github.com/ajg/synth/log"
)

func main() {
	err := cli.Run(context.Background(), os.Exit, os.Args[1:]...)
	if err != nil {
		// check has already reported each failure.
		if !errors.Is(err, cli.ErrCheckFailed) {
			log.Error("run failed", slog.Any("error", err))
		}
		os.Exit(1)
	}
}
