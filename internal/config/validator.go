package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "mailbox.poll_interval_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// socketNameRegex limits tmux socket names to characters safe in a path
var socketNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, c.validateLogging()...)
	errs = append(errs, c.validateMailbox()...)
	errs = append(errs, c.validateLifecycle()...)
	errs = append(errs, c.validateProcess()...)
	errs = append(errs, c.validateTasks()...)
	errs = append(errs, c.validateTeam()...)
	errs = append(errs, c.validateMonitor()...)
	return errs
}

func positive(field string, v int) []ValidationError {
	if v <= 0 {
		return []ValidationError{{Field: field, Value: v, Message: "must be positive"}}
	}
	return nil
}

func nonNegative(field string, v int) []ValidationError {
	if v < 0 {
		return []ValidationError{{Field: field, Value: v, Message: "must be non-negative"}}
	}
	return nil
}

func (c *Config) validateLogging() []ValidationError {
	var errs []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}
	errs = append(errs, nonNegative("logging.max_size_mb", c.Logging.MaxSizeMB)...)
	errs = append(errs, nonNegative("logging.max_backups", c.Logging.MaxBackups)...)
	return errs
}

func (c *Config) validateMailbox() []ValidationError {
	var errs []ValidationError

	const minPollMs = 10
	if c.Mailbox.PollIntervalMs < minPollMs {
		errs = append(errs, ValidationError{
			Field:   "mailbox.poll_interval_ms",
			Value:   c.Mailbox.PollIntervalMs,
			Message: fmt.Sprintf("must be at least %dms", minPollMs),
		})
	}
	if c.Mailbox.MaxBackoffMs < c.Mailbox.PollIntervalMs {
		errs = append(errs, ValidationError{
			Field:   "mailbox.max_backoff_ms",
			Value:   c.Mailbox.MaxBackoffMs,
			Message: "must not be less than mailbox.poll_interval_ms",
		})
	}
	return errs
}

func (c *Config) validateLifecycle() []ValidationError {
	var errs []ValidationError
	errs = append(errs, positive("lifecycle.spawn_timeout_ms", c.Lifecycle.SpawnTimeoutMs)...)
	errs = append(errs, positive("lifecycle.shutdown_wait_seconds", c.Lifecycle.ShutdownWaitSeconds)...)
	errs = append(errs, positive("lifecycle.shutdown_attempts", c.Lifecycle.ShutdownAttempts)...)
	errs = append(errs, positive("lifecycle.retry_attempts", c.Lifecycle.RetryAttempts)...)
	errs = append(errs, nonNegative("lifecycle.retry_backoff_ms", c.Lifecycle.RetryBackoffMs)...)
	errs = append(errs, positive("lifecycle.max_parallel_shutdowns", c.Lifecycle.MaxParallelShutdowns)...)
	return errs
}

func (c *Config) validateProcess() []ValidationError {
	var errs []ValidationError

	if !socketNameRegex.MatchString(c.Process.Socket) {
		errs = append(errs, ValidationError{
			Field:   "process.socket",
			Value:   c.Process.Socket,
			Message: "must start with alphanumeric and contain only alphanumeric, hyphen, underscore",
		})
	}
	if strings.TrimSpace(c.Process.AgentCommand) == "" {
		errs = append(errs, ValidationError{
			Field:   "process.agent_command",
			Value:   c.Process.AgentCommand,
			Message: "must not be empty",
		})
	}

	const minWidth, minHeight = 20, 5
	if c.Process.Width < minWidth {
		errs = append(errs, ValidationError{
			Field:   "process.width",
			Value:   c.Process.Width,
			Message: fmt.Sprintf("must be at least %d columns", minWidth),
		})
	}
	if c.Process.Height < minHeight {
		errs = append(errs, ValidationError{
			Field:   "process.height",
			Value:   c.Process.Height,
			Message: fmt.Sprintf("must be at least %d rows", minHeight),
		})
	}
	return errs
}

func (c *Config) validateTasks() []ValidationError {
	if !slices.Contains(ValidTaskBackends(), c.Tasks.Backend) {
		return []ValidationError{{
			Field:   "tasks.backend",
			Value:   c.Tasks.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidTaskBackends(), ", ")),
		}}
	}
	return nil
}

func (c *Config) validateTeam() []ValidationError {
	var errs []ValidationError
	errs = append(errs, nonNegative("team.max_concurrent_tasks", c.Team.MaxConcurrentTasks)...)
	errs = append(errs, nonNegative("team.timeout_minutes", c.Team.TimeoutMinutes)...)
	return errs
}

func (c *Config) validateMonitor() []ValidationError {
	const minRefreshMs = 100
	if c.Monitor.RefreshMs < minRefreshMs {
		return []ValidationError{{
			Field:   "monitor.refresh_ms",
			Value:   c.Monitor.RefreshMs,
			Message: fmt.Sprintf("must be at least %dms", minRefreshMs),
		}}
	}
	return nil
}
