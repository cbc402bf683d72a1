// Package event provides a pub-sub event bus used to observe a team's
// lifecycle without coupling observers to the components that drive it.
//
// The registry, mailbox, task graph and lifecycle coordinator publish events
// on a shared [Bus]; the monitor TUI and the coordinator log subscribe to
// them.
//
// # Event Types
//
// Event types follow the "category.action" convention:
//
//   - team.created, team.deleted
//   - member.joined, member.left, member.removed, member.state_changed
//   - mailbox.message
//   - task.created, task.status_changed, task.edge_changed
//
// # Subscriptions
//
// A subscription pattern is either an exact event type, "*" for every
// event, or a glob such as "member.*" (the "." separator is respected, so
// "member.*" does not match "member.state_changed.extra").
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Handlers run synchronously on the
// publishing goroutine; a panicking handler is recovered and logged so it
// cannot block delivery to the others.
package event
