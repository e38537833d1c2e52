// smartctl runs the Gray Logic smart controllers: ceiling fans driven by a
// comfort index, humidity-driven exhaust fans, lights following presence
// and daylight, and "wasp in a box" occupancy zones.
//
// Controllers read entity state from MQTT, command actuators over MQTT and
// publish their own state retained for presentation layers.
//
//	smartctl run                  # run every configured controller
//	smartctl validate             # check config.yaml and exit
//	smartctl history hall-light   # recent transitions of one controller
//	smartctl migrate status       # schema migration state
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/gray-logic-smartctl/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
