// Command worker loads a user MapReduce application from a Go plugin
// and loops executing tasks assigned by the coordinator until told to
// exit.
//
// Usage: worker <user_app_path>
package main

import (
	"fmt"
	"os"
	"time"

	"mapreduce/mr"

	"github.com/rs/zerolog/log"
)

func main() {
	mr.InitLogging(false)

	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: worker <user_app_path>\n")
		os.Exit(1)
	}

	app, err := mr.LoadApp(os.Args[1])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load user application")
	}

	addr, err := mr.DiscoverCoordinator(10 * time.Second)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to discover coordinator")
	}

	if err := mr.ConnectWithBackoff(addr, 10*time.Second); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to coordinator")
	}

	cfg := mr.LoadConfig()
	w := mr.NewWorker(addr, app, cfg)
	if err := w.Run(); err != nil {
		log.Fatal().Err(err).Msg("worker exited with error")
	}
}
