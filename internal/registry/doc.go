// Package registry is the durable store of teams and their members.
//
// Each team lives in its own directory under {base}/teams/{team}: the team
// record in config.json and the member inboxes under inboxes/. Every
// mutation is a read-modify-write performed while holding the team's write
// lock (an in-process mutex plus a flock on {base}/teams/.locks/{team}.lock),
// and the record is replaced atomically, so concurrent spawns and shutdowns
// against one team never lose updates. Reads take no lock and see a
// complete snapshot.
//
// All validation and invariant checks run before anything is written; a
// rejected mutation leaves the record untouched.
//
// The Message Store shares the team lock through [Registry.WithTeamLock] so
// that appends and team deletion are serialized.
package registry
