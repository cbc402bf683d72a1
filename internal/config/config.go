package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete hyperteam configuration
type Config struct {
	Paths     PathsConfig     `mapstructure:"paths"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Mailbox   MailboxConfig   `mapstructure:"mailbox"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Process   ProcessConfig   `mapstructure:"process"`
	Tasks     TasksConfig     `mapstructure:"tasks"`
	Team      TeamConfig      `mapstructure:"team"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
}

// PathsConfig controls where shared state lives
type PathsConfig struct {
	// BaseDir is the workspace root holding teams/, tasks/ and logs/.
	// Supports ~ expansion. Empty means ~/.hyperteam.
	BaseDir string `mapstructure:"base_dir"`
}

// LoggingConfig controls the coordinator log file
type LoggingConfig struct {
	// Enabled writes logs to {base}/logs/hyperteam.log (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is one of debug, info, warn, error (default: info)
	Level string `mapstructure:"level"`
	// MaxSizeMB is the size at which the log rotates (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is how many rotated files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated files (default: false)
	Compress bool `mapstructure:"compress"`
}

// MailboxConfig controls member-side inbox polling
type MailboxConfig struct {
	// PollIntervalMs is the initial inbox poll interval (default: 1000)
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
	// MaxBackoffMs caps the exponential idle backoff (default: 60000)
	MaxBackoffMs int `mapstructure:"max_backoff_ms"`
	// UseFSNotify wakes watchers early on inbox writes when supported (default: true)
	UseFSNotify bool `mapstructure:"use_fsnotify"`
}

// LifecycleConfig controls spawn and shutdown timing
type LifecycleConfig struct {
	// SpawnTimeoutMs bounds the liveness confirmation after spawn (default: 5000)
	SpawnTimeoutMs int `mapstructure:"spawn_timeout_ms"`
	// ShutdownWaitSeconds bounds each wait for a shutdown response (default: 30)
	ShutdownWaitSeconds int `mapstructure:"shutdown_wait_seconds"`
	// ShutdownAttempts is how many shutdown requests are sent before giving up (default: 3)
	ShutdownAttempts int `mapstructure:"shutdown_attempts"`
	// RetryAttempts bounds retries of transient process manager failures (default: 3)
	RetryAttempts int `mapstructure:"retry_attempts"`
	// RetryBackoffMs is the first retry delay, doubled per attempt (default: 500)
	RetryBackoffMs int `mapstructure:"retry_backoff_ms"`
	// MaxParallelShutdowns bounds concurrent member teardown in DeleteTeam (default: 4)
	MaxParallelShutdowns int `mapstructure:"max_parallel_shutdowns"`
}

// ProcessConfig controls the pane manager
type ProcessConfig struct {
	// Socket is the tmux socket name (default: "hyperteam")
	Socket string `mapstructure:"socket"`
	// AgentCommand is the command started inside each member pane (default: "claude")
	AgentCommand string `mapstructure:"agent_command"`
	// Width and Height size new panes (default: 200x50)
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

// TasksConfig controls task graph persistence
type TasksConfig struct {
	// Backend is "json" or "sqlite" (default: "json")
	Backend string `mapstructure:"backend"`
}

// TeamConfig holds the default settings stamped on new teams
type TeamConfig struct {
	MaxConcurrentTasks int    `mapstructure:"max_concurrent_tasks"`
	DefaultModel       string `mapstructure:"default_model"`
	TimeoutMinutes     int    `mapstructure:"timeout_minutes"`
}

// MonitorConfig controls the team monitor
type MonitorConfig struct {
	// RefreshMs is the monitor refresh interval (default: 1000)
	RefreshMs int `mapstructure:"refresh_ms"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Mailbox: MailboxConfig{
			PollIntervalMs: 1000,
			MaxBackoffMs:   60000,
			UseFSNotify:    true,
		},
		Lifecycle: LifecycleConfig{
			SpawnTimeoutMs:       5000,
			ShutdownWaitSeconds:  30,
			ShutdownAttempts:     3,
			RetryAttempts:        3,
			RetryBackoffMs:       500,
			MaxParallelShutdowns: 4,
		},
		Process: ProcessConfig{
			Socket:       "hyperteam",
			AgentCommand: "claude",
			Width:        200,
			Height:       50,
		},
		Tasks: TasksConfig{
			Backend: "json",
		},
		Team: TeamConfig{
			MaxConcurrentTasks: 5,
			TimeoutMinutes:     60,
		},
		Monitor: MonitorConfig{
			RefreshMs: 1000,
		},
	}
}

// PollInterval returns the initial inbox poll interval
func (c *MailboxConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// MaxBackoff returns the idle backoff cap
func (c *MailboxConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffMs) * time.Millisecond
}

// SpawnTimeout returns the spawn liveness timeout
func (c *LifecycleConfig) SpawnTimeout() time.Duration {
	return time.Duration(c.SpawnTimeoutMs) * time.Millisecond
}

// ShutdownWait returns the per-attempt shutdown response wait
func (c *LifecycleConfig) ShutdownWait() time.Duration {
	return time.Duration(c.ShutdownWaitSeconds) * time.Second
}

// RetryBackoff returns the initial retry delay
func (c *LifecycleConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMs) * time.Millisecond
}

// Timeout returns the default team timeout (0 means none)
func (c *TeamConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// RefreshInterval returns the monitor refresh interval
func (c *MonitorConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshMs) * time.Millisecond
}

// ResolveBaseDir returns the absolute workspace root.
// ~ is expanded to the user's home directory and an empty value falls back
// to ~/.hyperteam.
func (p *PathsConfig) ResolveBaseDir() string {
	path := p.BaseDir
	home, homeErr := os.UserHomeDir()

	switch {
	case path == "":
		if homeErr != nil {
			return ".hyperteam"
		}
		return filepath.Join(home, ".hyperteam")
	case path == "~":
		if homeErr == nil {
			path = home
		}
	case strings.HasPrefix(path, "~/"):
		if homeErr == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// LogDir returns {base}/logs
func (c *Config) LogDir() string {
	return filepath.Join(c.Paths.ResolveBaseDir(), "logs")
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("paths.base_dir", defaults.Paths.BaseDir)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	viper.SetDefault("mailbox.poll_interval_ms", defaults.Mailbox.PollIntervalMs)
	viper.SetDefault("mailbox.max_backoff_ms", defaults.Mailbox.MaxBackoffMs)
	viper.SetDefault("mailbox.use_fsnotify", defaults.Mailbox.UseFSNotify)

	viper.SetDefault("lifecycle.spawn_timeout_ms", defaults.Lifecycle.SpawnTimeoutMs)
	viper.SetDefault("lifecycle.shutdown_wait_seconds", defaults.Lifecycle.ShutdownWaitSeconds)
	viper.SetDefault("lifecycle.shutdown_attempts", defaults.Lifecycle.ShutdownAttempts)
	viper.SetDefault("lifecycle.retry_attempts", defaults.Lifecycle.RetryAttempts)
	viper.SetDefault("lifecycle.retry_backoff_ms", defaults.Lifecycle.RetryBackoffMs)
	viper.SetDefault("lifecycle.max_parallel_shutdowns", defaults.Lifecycle.MaxParallelShutdowns)

	viper.SetDefault("process.socket", defaults.Process.Socket)
	viper.SetDefault("process.agent_command", defaults.Process.AgentCommand)
	viper.SetDefault("process.width", defaults.Process.Width)
	viper.SetDefault("process.height", defaults.Process.Height)

	viper.SetDefault("tasks.backend", defaults.Tasks.Backend)

	viper.SetDefault("team.max_concurrent_tasks", defaults.Team.MaxConcurrentTasks)
	viper.SetDefault("team.default_model", defaults.Team.DefaultModel)
	viper.SetDefault("team.timeout_minutes", defaults.Team.TimeoutMinutes)

	viper.SetDefault("monitor.refresh_ms", defaults.Monitor.RefreshMs)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults when the
// loaded configuration is invalid
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "hyperteam")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hyperteam"
	}
	return filepath.Join(home, ".config", "hyperteam")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidTaskBackends returns the supported task graph stores
func ValidTaskBackends() []string {
	return []string{"json", "sqlite"}
}
