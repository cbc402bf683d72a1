// Package lifecycle drives members of a team through spawn, the two-phase
// shutdown handshake, and team teardown.
//
// The [Coordinator] is the only component that touches the registry, the
// message store, the task graph and the process manager together, so the
// cross-component invariants live here:
//
//   - a member that fails to spawn leaves no registry record behind
//   - a message is never appended for a deactivated recipient
//   - a team is deleted only after every member finished the handshake
//
// # Member States
//
// Each member moves through its own state machine:
//
//	Requested -> Spawning -> Active -> ShutdownRequested -> ShutdownApproved -> Terminated
//	Requested | Spawning -> SpawnFailed
//
// A denied shutdown returns the member from ShutdownRequested to Active.
// Every transition publishes an event.MemberStateChangedEvent.
//
// # Shutdown Handshake
//
// [Coordinator.RequestShutdown] appends a shutdown request to the member's
// inbox. The member answers in the lead's inbox, and
// [Coordinator.ProcessInbox] dispatches the answer to
// [Coordinator.HandleShutdownResponse]. [Coordinator.AwaitShutdown] bounds
// the wait and reports a timeout rather than leaving the member parked in
// ShutdownRequested.
package lifecycle
