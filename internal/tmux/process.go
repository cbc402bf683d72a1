package tmux

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// DefaultGracefulStopTimeout is how long GracefulStop waits after Ctrl+C
// before killing the session.
const DefaultGracefulStopTimeout = 500 * time.Millisecond

// DescendantPIDs returns every descendant of pid, parents before children.
func DescendantPIDs(ctx context.Context, pid int) []int {
	if pid <= 0 {
		return nil
	}
	out, err := exec.CommandContext(ctx, "pgrep", "-P", strconv.Itoa(pid)).Output()
	if err != nil {
		return nil
	}

	var pids []int
	for _, field := range strings.Fields(string(out)) {
		child, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		pids = append(pids, child)
		pids = append(pids, DescendantPIDs(ctx, child)...)
	}
	return pids
}

// IsProcessAlive reports whether a process with pid exists.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}

// KillProcessTree sends SIGKILL to the deepest descendants first, then pid.
func KillProcessTree(ctx context.Context, pid int) {
	if pid <= 0 {
		return
	}
	tree := DescendantPIDs(ctx, pid)
	for i := len(tree) - 1; i >= 0; i-- {
		if IsProcessAlive(tree[i]) {
			_ = syscall.Kill(tree[i], syscall.SIGKILL)
		}
	}
	if IsProcessAlive(pid) {
		_ = syscall.Kill(pid, syscall.SIGKILL)
	}
}

// WaitForExit polls until pid exits, timeout elapses, or ctx is done.
// Returns true if the process is gone.
func WaitForExit(ctx context.Context, pid int, timeout time.Duration) bool {
	if !IsProcessAlive(pid) {
		return true
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return !IsProcessAlive(pid)
		case <-deadline.C:
			return !IsProcessAlive(pid)
		case <-ticker.C:
			if !IsProcessAlive(pid) {
				return true
			}
		}
	}
}

// GracefulStop shuts a session down: it records the pane's process tree,
// sends Ctrl+C, waits up to timeout for the pane process to exit, kills the
// session, then SIGKILLs any recorded process still alive. The socket's
// server is left running for the other sessions on it.
func (c *Client) GracefulStop(ctx context.Context, session string, timeout time.Duration) error {
	var tree []int
	if pid, err := c.PanePID(ctx, session); err == nil && pid > 0 {
		tree = append([]int{pid}, DescendantPIDs(ctx, pid)...)
	}

	if err := c.SendKeys(ctx, session, "C-c"); err != nil && !IsNoServer(err) && !IsSessionMissing(err) {
		return err
	}
	if len(tree) > 0 {
		WaitForExit(ctx, tree[0], timeout)
	}
	if err := c.KillSession(ctx, session); err != nil {
		return err
	}

	for _, pid := range tree {
		if IsProcessAlive(pid) {
			KillProcessTree(ctx, pid)
		}
	}
	return nil
}
