// Package logging provides structured logging for the hyperteam coordinator
// and member agents.
//
// It wraps Go's log/slog with a JSON handler. Child loggers carry the team,
// member and task identifiers so every line emitted while driving a protocol
// step can be traced back to the objects it touched.
//
// # Thread Safety
//
// [Logger] and [RotatingWriter] are safe for concurrent use. Child loggers
// created via the With* methods share the underlying writer.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/path/to/logs", "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.WithTeam("alpha").WithMember("worker-1").Info("member active", "pane", pane)
//
// # Reading Logs Back
//
// [ReadEntries] parses a log file written by this package and [FilterEntries]
// narrows it down by level, team, member or message text. The CLI uses both
// for `hyperteam logs`.
//
// # Testing
//
// Use [NopLogger] in tests to discard all output.
package logging
