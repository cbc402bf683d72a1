package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	appconfig "github.com/de-monkey-v/hyper-team-sub000/internal/config"
)

func setupViper(t *testing.T) string {
	t.Helper()
	viper.Reset()
	appconfig.SetDefaults()
	t.Cleanup(viper.Reset)
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, "hyperteam", "config.yaml")
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		key, value string
		want       any
		wantErr    bool
	}{
		{"mailbox.use_fsnotify", "false", false, false},
		{"mailbox.use_fsnotify", "maybe", nil, true},
		{"lifecycle.shutdown_attempts", "5", 5, false},
		{"lifecycle.shutdown_attempts", "five", nil, true},
		{"tasks.backend", "sqlite", "sqlite", false},
		{"no.such.key", "x", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			got, err := parseValue(tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseValue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKeys_CoverDefaults(t *testing.T) {
	setupViper(t)
	for _, k := range Keys() {
		if !viper.IsSet(k) {
			t.Errorf("key %q has no default", k)
		}
	}
}

func TestConfigSet_WritesValidValue(t *testing.T) {
	path := setupViper(t)

	var out bytes.Buffer
	configSetCmd.SetOut(&out)
	if err := runConfigSet(configSetCmd, []string{"tasks.backend", "sqlite"}); err != nil {
		t.Fatalf("runConfigSet() error = %v", err)
	}
	if !strings.Contains(out.String(), "Set tasks.backend = sqlite") {
		t.Errorf("output = %q", out.String())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("written config is not YAML: %v", err)
	}
	tasks, _ := doc["tasks"].(map[string]any)
	if tasks["backend"] != "sqlite" {
		t.Errorf("tasks.backend in file = %v", tasks["backend"])
	}
}

func TestConfigSet_RejectsInvalidValue(t *testing.T) {
	path := setupViper(t)

	err := runConfigSet(configSetCmd, []string{"tasks.backend", "postgres"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "tasks.backend") {
		t.Errorf("error = %v", err)
	}
	if viper.GetString("tasks.backend") != "json" {
		t.Errorf("rejected value leaked into settings: %q", viper.GetString("tasks.backend"))
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("config file should not be written on validation failure")
	}
}

func TestConfigInit(t *testing.T) {
	path := setupViper(t)

	var out bytes.Buffer
	configInitCmd.SetOut(&out)
	if err := runConfigInit(configInitCmd, nil); err != nil {
		t.Fatalf("runConfigInit() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	// The template must load to a valid configuration.
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("template does not parse: %v\n%s", err, data)
	}
	if _, err := appconfig.Load(); err != nil {
		t.Errorf("template is invalid: %v", err)
	}

	if err := runConfigInit(configInitCmd, nil); err == nil {
		t.Error("second init should fail")
	}
}

func TestConfigShow(t *testing.T) {
	setupViper(t)
	var out bytes.Buffer
	configShowCmd.SetOut(&out)
	if err := runConfigShow(configShowCmd, nil); err != nil {
		t.Fatalf("runConfigShow() error = %v", err)
	}
	for _, want := range []string{"(none - using defaults)", "lifecycle:", "shutdown_wait_seconds: 30"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}
