// Command crossx-server is the entrypoint: load configuration, assemble
// the fx application, run until SIGINT/SIGTERM, graceful-shutdown
// through fx.App.Stop. Mirrors the signal-handling shape of the teacher's
// cmd/server/main.go, rebuilt around fx.App.Run's own signal handling
// rather than a hand-rolled signal channel.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/crossx-exchange/crossx/internal/app"
	"github.com/crossx-exchange/crossx/internal/config"
)

func main() {
	configPath := flag.String("config", "", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "crossx-server: failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	app.New(cfg).Run()
}
