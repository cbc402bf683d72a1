package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.Mailbox.PollInterval() != time.Second {
		t.Errorf("Mailbox.PollInterval() = %v, want 1s", cfg.Mailbox.PollInterval())
	}
	if cfg.Mailbox.MaxBackoff() != time.Minute {
		t.Errorf("Mailbox.MaxBackoff() = %v, want 1m", cfg.Mailbox.MaxBackoff())
	}
	if !cfg.Mailbox.UseFSNotify {
		t.Error("Mailbox.UseFSNotify should be true by default")
	}

	if cfg.Lifecycle.SpawnTimeout() != 5*time.Second {
		t.Errorf("Lifecycle.SpawnTimeout() = %v, want 5s", cfg.Lifecycle.SpawnTimeout())
	}
	if cfg.Lifecycle.ShutdownWait() != 30*time.Second {
		t.Errorf("Lifecycle.ShutdownWait() = %v, want 30s", cfg.Lifecycle.ShutdownWait())
	}
	if cfg.Lifecycle.ShutdownAttempts != 3 {
		t.Errorf("Lifecycle.ShutdownAttempts = %d, want 3", cfg.Lifecycle.ShutdownAttempts)
	}
	if cfg.Lifecycle.RetryBackoff() != 500*time.Millisecond {
		t.Errorf("Lifecycle.RetryBackoff() = %v, want 500ms", cfg.Lifecycle.RetryBackoff())
	}

	if cfg.Process.Socket != "hyperteam" {
		t.Errorf("Process.Socket = %q, want %q", cfg.Process.Socket, "hyperteam")
	}
	if cfg.Tasks.Backend != "json" {
		t.Errorf("Tasks.Backend = %q, want %q", cfg.Tasks.Backend, "json")
	}
	if cfg.Team.Timeout() != time.Hour {
		t.Errorf("Team.Timeout() = %v, want 1h", cfg.Team.Timeout())
	}
	if cfg.Monitor.RefreshInterval() != time.Second {
		t.Errorf("Monitor.RefreshInterval() = %v, want 1s", cfg.Monitor.RefreshInterval())
	}
}

func TestPathsConfig_ResolveBaseDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		name    string
		baseDir string
		want    string
	}{
		{"empty uses default", "", filepath.Join(home, ".hyperteam")},
		{"tilde", "~", home},
		{"tilde prefix", "~/work/teams", filepath.Join(home, "work", "teams")},
		{"absolute", "/var/lib/hyperteam", "/var/lib/hyperteam"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PathsConfig{BaseDir: tt.baseDir}
			if got := p.ResolveBaseDir(); got != tt.want {
				t.Errorf("ResolveBaseDir() = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("relative is made absolute", func(t *testing.T) {
		p := PathsConfig{BaseDir: "rel"}
		if got := p.ResolveBaseDir(); !filepath.IsAbs(got) {
			t.Errorf("ResolveBaseDir() = %q, want absolute path", got)
		}
	})
}

func TestConfig_LogDir(t *testing.T) {
	cfg := Default()
	cfg.Paths.BaseDir = "/srv/ht"
	if got := cfg.LogDir(); got != "/srv/ht/logs" {
		t.Errorf("LogDir() = %q, want /srv/ht/logs", got)
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		if got := ConfigDir(); got != "/custom/config/hyperteam" {
			t.Errorf("ConfigDir() = %q, want %q", got, "/custom/config/hyperteam")
		}
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		home, _ := os.UserHomeDir()
		want := filepath.Join(home, ".config", "hyperteam")
		if got := ConfigDir(); got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
	})
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got := ConfigFile(); got != "/custom/config/hyperteam/config.yaml" {
		t.Errorf("ConfigFile() = %q", got)
	}
}

func TestGet(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()

	cfg := Get()
	if cfg == nil {
		t.Fatal("Get() returned nil")
	}
	if cfg.Lifecycle.ShutdownAttempts != 3 {
		t.Errorf("Get().Lifecycle.ShutdownAttempts = %d, want 3", cfg.Lifecycle.ShutdownAttempts)
	}
}

func TestLoad_Overrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()

	viper.Set("tasks.backend", "sqlite")
	viper.Set("mailbox.poll_interval_ms", 250)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Tasks.Backend != "sqlite" {
		t.Errorf("Tasks.Backend = %q, want sqlite", cfg.Tasks.Backend)
	}
	if cfg.Mailbox.PollInterval() != 250*time.Millisecond {
		t.Errorf("PollInterval() = %v, want 250ms", cfg.Mailbox.PollInterval())
	}
}

func TestLoad_Invalid(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()

	viper.Set("tasks.backend", "postgres")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject an unknown task backend")
	}
	if cfg := Get(); cfg.Tasks.Backend != "json" {
		t.Errorf("Get() should fall back to defaults, got backend %q", cfg.Tasks.Backend)
	}
}
