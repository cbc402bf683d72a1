// Package testutil provides testing utilities for hyperteam tests.
package testutil

import (
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

// SkipIfNoTmux skips the test if tmux is not available.
func SkipIfNoTmux(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tmux"); err != nil {
		t.Skip("tmux not available")
	}
}

// Workspace returns a fresh base directory laid out like ~/.hyperteam.
// It is removed when the test completes.
func Workspace(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), ".hyperteam")
}

// Eventually polls cond every few milliseconds until it returns true or
// timeout elapses, then fails the test with msg.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %v: %s", timeout, msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
