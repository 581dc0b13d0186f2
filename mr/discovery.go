package mr

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// rendezvousFile is the well-known file name workers read to find the
// coordinator (spec.md §4.4/§6).
const rendezvousFile = "coordinator_info.txt"

// publishRendezvous writes addr ("host:port") to the rendezvous file.
func publishRendezvous(addr string) error {
	if err := os.WriteFile(rendezvousFile, []byte(addr+"\n"), 0644); err != nil {
		return fmt.Errorf("write %s: %w", rendezvousFile, err)
	}
	return nil
}

// removeRendezvous deletes the rendezvous file on clean shutdown.
func removeRendezvous() {
	if err := os.Remove(rendezvousFile); err != nil && !os.IsNotExist(err) {
		// best-effort cleanup; nothing useful to do if this fails
		_ = err
	}
}

// DiscoverCoordinator reads the rendezvous file, retrying with a
// short backoff to tolerate a coordinator that is still starting.
func DiscoverCoordinator(timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	backoff := 50 * time.Millisecond
	for {
		data, err := os.ReadFile(rendezvousFile)
		if err == nil {
			addr := strings.TrimSpace(string(data))
			if addr != "" {
				return addr, nil
			}
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("no coordinator found at %s after %s", rendezvousFile, timeout)
		}
		time.Sleep(backoff)
		if backoff < time.Second {
			backoff *= 2
		}
	}
}
