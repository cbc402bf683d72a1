// Package config provides CLI commands for managing hyperteam configuration.
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	appconfig "github.com/de-monkey-v/hyper-team-sub000/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify hyperteam configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  hyperteam config set lifecycle.shutdown_wait_seconds 60
  hyperteam config set tasks.backend sqlite
  hyperteam config set mailbox.use_fsnotify false

The new configuration is validated before it is written.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show where configuration is read from",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

// Register adds all config-related commands to the given parent command.
func Register(parent *cobra.Command) {
	parent.AddCommand(configCmd)
}

// keyTypes lists the settable keys and how their values parse.
var keyTypes = map[string]string{
	"paths.base_dir":                   "string",
	"logging.enabled":                  "bool",
	"logging.level":                    "string",
	"logging.max_size_mb":              "int",
	"logging.max_backups":              "int",
	"logging.compress":                 "bool",
	"mailbox.poll_interval_ms":         "int",
	"mailbox.max_backoff_ms":           "int",
	"mailbox.use_fsnotify":             "bool",
	"lifecycle.spawn_timeout_ms":       "int",
	"lifecycle.shutdown_wait_seconds":  "int",
	"lifecycle.shutdown_attempts":      "int",
	"lifecycle.retry_attempts":         "int",
	"lifecycle.retry_backoff_ms":       "int",
	"lifecycle.max_parallel_shutdowns": "int",
	"process.socket":                   "string",
	"process.agent_command":            "string",
	"process.width":                    "int",
	"process.height":                   "int",
	"tasks.backend":                    "string",
	"team.max_concurrent_tasks":        "int",
	"team.default_model":               "string",
	"team.timeout_minutes":             "int",
	"monitor.refresh_ms":               "int",
}

// Keys returns the settable configuration keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(keyTypes))
	for k := range keyTypes {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func parseValue(key, value string) (any, error) {
	kind, ok := keyTypes[key]
	if !ok {
		return nil, fmt.Errorf("unknown configuration key: %s\nValid keys: %s", key, strings.Join(Keys(), ", "))
	}
	switch kind {
	case "bool":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return b, nil
	case "int":
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		return n, nil
	default:
		return value, nil
	}
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "# Config file: %s\n", used)
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}

	settings := viper.AllSettings()
	delete(settings, "config")
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, raw := args[0], args[1]
	value, err := parseValue(key, raw)
	if err != nil {
		return err
	}

	if err := validateWith(key, value); err != nil {
		return err
	}
	viper.Set(key, value)

	if err := os.MkdirAll(appconfig.ConfigDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	configFile := appconfig.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, value)
	fmt.Fprintf(cmd.OutOrStdout(), "Config saved to %s\n", configFile)
	return nil
}

// validateWith checks the effective configuration with key set to value,
// without touching the global settings.
func validateWith(key string, value any) error {
	v := viper.New()
	if err := v.MergeConfigMap(viper.AllSettings()); err != nil {
		return err
	}
	v.Set(key, value)
	var cfg appconfig.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return appconfig.ValidationErrors(errs)
	}
	return nil
}

const defaultConfigFile = `# hyperteam configuration

paths:
  # Workspace root for teams, inboxes, tasks and logs (default ~/.hyperteam)
  base_dir: ""

logging:
  enabled: true
  # debug, info, warn or error
  level: info
  max_size_mb: 10
  max_backups: 3
  compress: false

mailbox:
  # Inbox poll interval while messages are flowing
  poll_interval_ms: 1000
  # Poll interval ceiling while idle
  max_backoff_ms: 60000
  # Wake watchers on file changes instead of waiting for the next poll
  use_fsnotify: true

lifecycle:
  # How long a new pane has to come alive
  spawn_timeout_ms: 5000
  # How long to wait for each shutdown response
  shutdown_wait_seconds: 30
  shutdown_attempts: 3
  # Retries for transient pane manager failures
  retry_attempts: 3
  retry_backoff_ms: 500
  max_parallel_shutdowns: 4

process:
  # tmux socket shared by every member pane
  socket: hyperteam
  agent_command: claude
  width: 200
  height: 50

tasks:
  # json or sqlite
  backend: json

team:
  max_concurrent_tasks: 5
  default_model: ""
  timeout_minutes: 60

monitor:
  refresh_ms: 1000
`

func runConfigInit(cmd *cobra.Command, _ []string) error {
	configFile := appconfig.ConfigFile()
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'hyperteam config set' to modify values", configFile)
	}
	if err := os.MkdirAll(appconfig.ConfigDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configFile, []byte(defaultConfigFile), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "Active config: %s\n", used)
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", appconfig.ConfigFile())
	}
	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", appconfig.ConfigFile())
	fmt.Fprintln(out, "  2. ./config.yaml (current directory)")
	fmt.Fprintln(out, "\nEnvironment variables: HYPERTEAM_* (e.g., HYPERTEAM_TASKS_BACKEND)")
	return nil
}
