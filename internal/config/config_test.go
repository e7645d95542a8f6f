package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("TASKDECK_HOME", "/tmp/td-home")
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
	if cfg.CheckInterval() != 30*time.Second {
		t.Errorf("check interval = %v", cfg.CheckInterval())
	}
	if cfg.RetryDelay() != 5*time.Minute || cfg.Reminder.MaxRetryAttempts != 3 {
		t.Errorf("retry = %v x%d", cfg.RetryDelay(), cfg.Reminder.MaxRetryAttempts)
	}
	if cfg.ReminderAdvance() != 15*time.Minute || cfg.EmailTimeout() != 30*time.Second {
		t.Errorf("advance %v timeout %v", cfg.ReminderAdvance(), cfg.EmailTimeout())
	}
	if cfg.TasksPath() != filepath.Join("/tmp/td-home", "data", "tasks.json") {
		t.Errorf("tasks path = %s", cfg.TasksPath())
	}
	if cfg.RPCAddr() != "127.0.0.1:18791" {
		t.Errorf("rpc addr = %s", cfg.RPCAddr())
	}
}

func TestLoadConfigFrom_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TASKDECK_HOME", dir)
	path := filepath.Join(dir, "config.json")
	content := `{
  "reminder": {"check_interval_seconds": 60},
  "logging": {"level": "debug"},
  "notify": {"telegram": {"enabled": true, "token": "file-token", "chat_id": 1}}
}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TASKDECK_TELEGRAM_TOKEN", "env-token")
	t.Setenv("TASKDECK_TELEGRAM_CHAT_ID", "-100123")
	t.Setenv("TASKDECK_DATA_DIR", filepath.Join(dir, "elsewhere"))
	t.Setenv("TASKDECK_LOG_LEVEL", "WARNING")

	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatalf("LoadConfigFrom: %v", err)
	}
	if cfg.Reminder.CheckIntervalSeconds != 60 {
		t.Errorf("interval = %d, want 60", cfg.Reminder.CheckIntervalSeconds)
	}
	// Untouched keys keep their defaults.
	if cfg.Reminder.MaxRetryAttempts != DefaultMaxRetries || cfg.Gateway.Port != DefaultPort {
		t.Errorf("defaults lost: %+v %+v", cfg.Reminder, cfg.Gateway)
	}
	if cfg.Notify.Telegram.Token != "env-token" || cfg.Notify.Telegram.ChatID != -100123 {
		t.Errorf("telegram = %+v", cfg.Notify.Telegram)
	}
	if cfg.Data.Dir != filepath.Join(dir, "elsewhere") || cfg.Logging.Level != "warning" {
		t.Errorf("data dir %s level %s", cfg.Data.Dir, cfg.Logging.Level)
	}
}

func TestLoadConfigFrom_Missing(t *testing.T) {
	t.Setenv("TASKDECK_HOME", t.TempDir())
	cfg, err := LoadConfigFrom(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("missing file should load defaults: %v", err)
	}
	if cfg.Reminder.CheckIntervalSeconds != DefaultCheckInterval {
		t.Errorf("interval = %d", cfg.Reminder.CheckIntervalSeconds)
	}
}

func TestLoadConfigFrom_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(bad, []byte("{"), 0644)
	if _, err := LoadConfigFrom(bad); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Errorf("err = %v", err)
	}

	t.Setenv("TASKDECK_TELEGRAM_CHAT_ID", "not-a-number")
	if _, err := LoadConfigFrom(filepath.Join(dir, "none.json")); err == nil {
		t.Error("invalid chat id accepted")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"interval below minimum", func(c *Config) { c.Reminder.CheckIntervalSeconds = 5 }},
		{"no retries", func(c *Config) { c.Reminder.MaxRetryAttempts = 0 }},
		{"negative delay", func(c *Config) { c.Reminder.RetryDelaySeconds = -1 }},
		{"zero timeout", func(c *Config) { c.Reminder.EmailTimeoutSeconds = 0 }},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"digest interval", func(c *Config) { c.Digest.IntervalMinutes = 0 }},
		{"telegram without token", func(c *Config) { c.Notify.Telegram.Enabled = true }},
		{"port", func(c *Config) { c.Gateway.Port = 70000 }},
		{"data dir", func(c *Config) { c.Data.Dir = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSaveConfigTo_RoundTrip(t *testing.T) {
	t.Setenv("TASKDECK_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := DefaultConfig()
	cfg.Digest.Enabled = false
	cfg.Notify.Desktop.AppIcon = "calendar"
	if err := SaveConfigTo(path, cfg); err != nil {
		t.Fatalf("SaveConfigTo: %v", err)
	}
	got, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatalf("LoadConfigFrom: %v", err)
	}
	if got.Digest.Enabled || got.Notify.Desktop.AppIcon != "calendar" {
		t.Errorf("round trip lost fields: %+v", got)
	}
}
