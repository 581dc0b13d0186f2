package mr

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultTaskTimeout  = 10 * time.Second
	defaultPollInterval = 200 * time.Millisecond
	maxPollInterval     = 1 * time.Second
)

// Config holds the two tunables spec.md §6 allows to be overridden
// via environment variables.
type Config struct {
	// TaskTimeout is how long an IN_PROGRESS task may run before the
	// timeout monitor reclaims it.
	TaskTimeout time.Duration
	// PollInterval is both the worker's WAIT backoff and the timeout
	// monitor's tick cadence; clamped to maxPollInterval so the
	// monitor's cadence stays within spec.md §4.1's "≤1s" bound.
	PollInterval time.Duration
}

// LoadConfig reads MR_TASK_TIMEOUT_MS and MR_POLL_INTERVAL_MS from the
// environment, falling back to the documented defaults on absence or
// malformed values.
func LoadConfig() Config {
	cfg := Config{
		TaskTimeout:  defaultTaskTimeout,
		PollInterval: defaultPollInterval,
	}

	if ms, ok := readMillis("MR_TASK_TIMEOUT_MS"); ok {
		cfg.TaskTimeout = time.Duration(ms) * time.Millisecond
	}
	if ms, ok := readMillis("MR_POLL_INTERVAL_MS"); ok {
		interval := time.Duration(ms) * time.Millisecond
		if interval > maxPollInterval {
			log.Warn().Msgf("MR_POLL_INTERVAL_MS=%dms exceeds %s, clamping", ms, maxPollInterval)
			interval = maxPollInterval
		}
		cfg.PollInterval = interval
	}

	return cfg
}

func readMillis(name string) (int64, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		log.Warn().Msgf("invalid %s=%q, using default", name, raw)
		return 0, false
	}
	return ms, true
}
