// Package process defines how member agents are started and stopped.
//
// A [Manager] owns one pane per member. The lifecycle coordinator only sees
// the [Handle] returned by Spawn, records it on the member as its backend
// reference, and hands it back for liveness checks and termination.
// [TmuxManager] is the production implementation; tests use the fake in
// internal/testutil.
package process
