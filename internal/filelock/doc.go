// Package filelock provides the write discipline shared by every on-disk
// store in hyperteam: advisory flock(2) locks for cross-process exclusion,
// a keyed in-process mutex so goroutines in one process queue up before
// touching the file lock, and atomic whole-file replacement.
//
// Reads never take these locks. Writers either replace a file atomically
// (temp file + rename) or append with O_APPEND while holding the lock, so a
// concurrent reader sees a complete snapshot.
package filelock
