// Package mailbox is the Message Store: one append-only, ordered inbox per
// (team, recipient).
//
// # Storage
//
// Each inbox is a JSONL file at {base}/teams/{team}/inboxes/{recipient}.jsonl
// holding one message per line in append order. Message lines are never
// rewritten. Read state lives in a sibling ledger {recipient}.read that
// records read message IDs one per line, so marking a message read is also
// an append.
//
// Appends and ledger writes happen under the team's write lock (see
// registry.Registry.WithTeamLock), which makes them atomic with respect to
// each other and to team deletion. Reads take no lock.
//
// # Payloads
//
// Every message carries a typed [Payload]: [PlainMessage], [BroadcastMessage],
// [ShutdownRequest], [ShutdownResponse], [IdleNotification],
// [PlanApprovalRequest] or [PlanApprovalResponse]. On disk the variant is
// identified by the "type" field; a type this build does not know decodes
// as [UnknownPayload] instead of failing the whole inbox.
//
// # Delivery
//
// Members poll their inbox. [Store.Watch] polls at the configured interval,
// backing off exponentially while the inbox stays quiet, and wakes early on
// fsnotify write events when the platform supports them.
package mailbox
