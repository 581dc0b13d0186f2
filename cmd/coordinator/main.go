// Command coordinator runs the MapReduce coordination core: it
// partitions input files into map tasks, waits for all of them to
// complete, runs the reduce phase, and exits once every mr-out-{r}
// file has been published.
//
// Usage: coordinator <R> <input_file>...
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"mapreduce/mr"

	"github.com/rs/zerolog/log"
)

func main() {
	mr.InitLogging(false)

	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "usage: coordinator <R> <input_file>...\n")
		os.Exit(1)
	}

	r, err := strconv.Atoi(os.Args[1])
	if err != nil || r < 1 {
		fmt.Fprintf(os.Stderr, "R must be a positive integer, got %q\n", os.Args[1])
		os.Exit(1)
	}

	files := os.Args[2:]
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			fmt.Fprintf(os.Stderr, "input file not found: %s\n", f)
			os.Exit(1)
		}
	}

	cfg := mr.LoadConfig()
	c, err := mr.MakeCoordinator(files, r, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start coordinator")
	}

	for !c.Done() {
		time.Sleep(cfg.PollInterval)
	}

	// Grace delay so in-flight workers have a chance to observe EXIT
	// before the rendezvous file disappears out from under them.
	time.Sleep(time.Second)
	c.Shutdown()

	log.Info().Msgf("mapreduce job complete (%d workers seen)", c.WorkerCount())
}
