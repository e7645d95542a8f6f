package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultCheckInterval   = 30
	MinCheckInterval       = 10
	DefaultMaxRetries      = 3
	DefaultRetryDelay      = 300
	DefaultReminderAdvance = 15
	DefaultEmailTimeout    = 30
	DefaultLogLevel        = "info"
	DefaultMaxLogFiles     = 7
	DefaultRotationHours   = 24
	DefaultDigestInterval  = 60
	DefaultHost            = "127.0.0.1"
	DefaultPort            = 18791
	DefaultBufSize         = 100

	TasksFile = "tasks.json"
)

type Config struct {
	Data     DataConfig     `json:"data"`
	Reminder ReminderConfig `json:"reminder"`
	Logging  LoggingConfig  `json:"logging"`
	Notify   NotifyConfig   `json:"notify"`
	Digest   DigestConfig   `json:"digest"`
	Gateway  GatewayConfig  `json:"gateway"`
}

type DataConfig struct {
	// Dir holds tasks.json and the e-mail/SMS settings files.
	Dir string `json:"dir"`
}

type ReminderConfig struct {
	CheckIntervalSeconds  int `json:"check_interval_seconds"`
	MaxRetryAttempts      int `json:"max_retry_attempts"`
	RetryDelaySeconds     int `json:"retry_delay_seconds"`
	DefaultAdvanceMinutes int `json:"default_reminder_advance_minutes"`
	EmailTimeoutSeconds   int `json:"email_timeout_seconds"`
}

type LoggingConfig struct {
	Level string `json:"level"` // debug | info | warning | error
	// Console mirrors log lines to stdout.
	Console       bool `json:"console"`
	MaxFiles      int  `json:"max_files"`
	RotationHours int  `json:"rotation_hours"`
}

type NotifyConfig struct {
	Desktop  DesktopConfig  `json:"desktop"`
	Telegram TelegramConfig `json:"telegram"`
}

type DesktopConfig struct {
	Enabled bool   `json:"enabled"`
	AppIcon string `json:"app_icon,omitempty"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	// ChatID receives reminder notices.
	ChatID int64 `json:"chat_id"`
	// AllowFrom limits who may use chat commands; empty allows everyone.
	AllowFrom []string `json:"allow_from,omitempty"`
	Proxy     string   `json:"proxy,omitempty"`
}

type DigestConfig struct {
	Enabled         bool `json:"enabled"`
	IntervalMinutes int  `json:"interval_minutes"`
}

type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{Dir: filepath.Join(ConfigDir(), "data")},
		Reminder: ReminderConfig{
			CheckIntervalSeconds:  DefaultCheckInterval,
			MaxRetryAttempts:      DefaultMaxRetries,
			RetryDelaySeconds:     DefaultRetryDelay,
			DefaultAdvanceMinutes: DefaultReminderAdvance,
			EmailTimeoutSeconds:   DefaultEmailTimeout,
		},
		Logging: LoggingConfig{
			Level:         DefaultLogLevel,
			Console:       true,
			MaxFiles:      DefaultMaxLogFiles,
			RotationHours: DefaultRotationHours,
		},
		Notify: NotifyConfig{
			Desktop: DesktopConfig{Enabled: true},
		},
		Digest: DigestConfig{
			Enabled:         true,
			IntervalMinutes: DefaultDigestInterval,
		},
		Gateway: GatewayConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
	}
}

// ConfigDir is $TASKDECK_HOME or ~/.taskdeck.
func ConfigDir() string {
	if dir := os.Getenv("TASKDECK_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".taskdeck")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func (c *Config) TasksPath() string {
	return filepath.Join(c.Data.Dir, TasksFile)
}

func (c *Config) LogDir() string {
	return filepath.Join(ConfigDir(), "logs")
}

func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Reminder.CheckIntervalSeconds) * time.Second
}

func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Reminder.RetryDelaySeconds) * time.Second
}

func (c *Config) EmailTimeout() time.Duration {
	return time.Duration(c.Reminder.EmailTimeoutSeconds) * time.Second
}

func (c *Config) ReminderAdvance() time.Duration {
	return time.Duration(c.Reminder.DefaultAdvanceMinutes) * time.Minute
}

func (c *Config) DigestInterval() time.Duration {
	return time.Duration(c.Digest.IntervalMinutes) * time.Minute
}

// RPCAddr is the "host:port" the daemon listens on for local clients.
func (c *Config) RPCAddr() string {
	return net.JoinHostPort(c.Gateway.Host, strconv.Itoa(c.Gateway.Port))
}

func (c *Config) Validate() error {
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir must be set")
	}
	if c.Reminder.CheckIntervalSeconds < MinCheckInterval {
		return fmt.Errorf("reminder.check_interval_seconds must be at least %d, got %d", MinCheckInterval, c.Reminder.CheckIntervalSeconds)
	}
	if c.Reminder.MaxRetryAttempts < 1 {
		return fmt.Errorf("reminder.max_retry_attempts must be positive, got %d", c.Reminder.MaxRetryAttempts)
	}
	if c.Reminder.RetryDelaySeconds < 0 {
		return fmt.Errorf("reminder.retry_delay_seconds must not be negative, got %d", c.Reminder.RetryDelaySeconds)
	}
	if c.Reminder.EmailTimeoutSeconds < 1 {
		return fmt.Errorf("reminder.email_timeout_seconds must be positive, got %d", c.Reminder.EmailTimeoutSeconds)
	}
	switch c.Logging.Level {
	case "debug", "info", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warning or error, got %q", c.Logging.Level)
	}
	if c.Digest.Enabled && c.Digest.IntervalMinutes < 1 {
		return fmt.Errorf("digest.interval_minutes must be positive, got %d", c.Digest.IntervalMinutes)
	}
	if c.Notify.Telegram.Enabled && c.Notify.Telegram.Token == "" {
		return fmt.Errorf("notify.telegram.token is required when telegram is enabled")
	}
	if c.Gateway.Port < 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port out of range: %d", c.Gateway.Port)
	}
	return nil
}

func LoadConfig() (*Config, error) {
	return LoadConfigFrom(ConfigPath())
}

// LoadConfigFrom fills defaults, then the file at path if present, then
// environment overrides.
func LoadConfigFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if dir := os.Getenv("TASKDECK_DATA_DIR"); dir != "" {
		cfg.Data.Dir = dir
	}
	if token := os.Getenv("TASKDECK_TELEGRAM_TOKEN"); token != "" {
		cfg.Notify.Telegram.Token = token
	}
	if chat := os.Getenv("TASKDECK_TELEGRAM_CHAT_ID"); chat != "" {
		id, err := strconv.ParseInt(chat, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse TASKDECK_TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.Notify.Telegram.ChatID = id
	}
	if level := os.Getenv("TASKDECK_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = strings.ToLower(level)
	}

	if cfg.Data.Dir == "" {
		cfg.Data.Dir = DefaultConfig().Data.Dir
	}
	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	return SaveConfigTo(ConfigPath(), cfg)
}

func SaveConfigTo(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}
