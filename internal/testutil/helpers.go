// Package testutil provides shared test helpers.
package testutil

import (
	"testing"
	"time"
)

// WaitFor polls cond until it returns true or the timeout passes.
// Fails the test on timeout.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}
