package delivery

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultSMTPPort      = 587
	DefaultRetryAttempts = 3
	DefaultRetryDelaySec = 5
)

// ErrConfig is matched by every *ConfigError.
var ErrConfig = errors.New("configuration error")

// ConfigError reports missing or unusable e-mail/SMS settings. It is
// returned at the point of use, never at load time.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

func (e *ConfigError) Unwrap() error { return ErrConfig }

func configErrorf(format string, args ...any) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

type EmailConfig struct {
	Email             string `json:"email"`
	SMTPServer        string `json:"smtp_server"`
	SMTPPort          int    `json:"smtp_port"`
	Username          string `json:"username"`
	Password          string `json:"password"`
	RetryAttempts     int    `json:"retry_attempts"`
	RetryDelaySeconds int    `json:"retry_delay_seconds"`
}

func DefaultEmailConfig() EmailConfig {
	return EmailConfig{
		SMTPPort:          DefaultSMTPPort,
		RetryAttempts:     DefaultRetryAttempts,
		RetryDelaySeconds: DefaultRetryDelaySec,
	}
}

// Validate checks the fields required to open an authenticated session.
func (c EmailConfig) Validate() error {
	if strings.TrimSpace(c.Email) == "" || strings.TrimSpace(c.SMTPServer) == "" || strings.TrimSpace(c.Username) == "" {
		return configErrorf("email configuration is incomplete: email, smtp_server and username are required")
	}
	if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
		return configErrorf("invalid smtp port %d", c.SMTPPort)
	}
	if _, err := ParseAddress(c.Email); err != nil {
		return configErrorf("invalid email address %q: %v", c.Email, err)
	}
	return nil
}

// String masks the password so the config can be logged.
func (c EmailConfig) String() string {
	pw := "<empty>"
	if c.Password != "" {
		pw = "******"
	}
	return fmt.Sprintf("email=%s server=%s:%d user=%s password=%s", c.Email, c.SMTPServer, c.SMTPPort, c.Username, pw)
}

type SmsConfig struct {
	PhoneNumber string `json:"phone_number"`
	Carrier     string `json:"carrier"`
	Enabled     bool   `json:"enabled"`
}
