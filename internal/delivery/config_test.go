package delivery

import (
	"errors"
	"strings"
	"testing"
)

func validEmailConfig() EmailConfig {
	cfg := DefaultEmailConfig()
	cfg.Email = "me@example.com"
	cfg.SMTPServer = "smtp.example.com"
	cfg.Username = "me@example.com"
	cfg.Password = "hunter2"
	return cfg
}

func TestDefaultEmailConfig(t *testing.T) {
	cfg := DefaultEmailConfig()
	if cfg.SMTPPort != 587 || cfg.RetryAttempts != 3 || cfg.RetryDelaySeconds != 5 {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestEmailConfigValidate(t *testing.T) {
	if err := validEmailConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*EmailConfig)
	}{
		{"missing email", func(c *EmailConfig) { c.Email = "" }},
		{"missing server", func(c *EmailConfig) { c.SMTPServer = " " }},
		{"missing username", func(c *EmailConfig) { c.Username = "" }},
		{"zero port", func(c *EmailConfig) { c.SMTPPort = 0 }},
		{"port too large", func(c *EmailConfig) { c.SMTPPort = 70000 }},
		{"bad address", func(c *EmailConfig) { c.Email = "not-an-address" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validEmailConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrConfig) {
				t.Fatalf("err = %v, want ErrConfig", err)
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Errorf("err %T is not *ConfigError", err)
			}
		})
	}
}

func TestEmailConfigStringMasksPassword(t *testing.T) {
	s := validEmailConfig().String()
	if strings.Contains(s, "hunter2") {
		t.Errorf("password leaked: %s", s)
	}
	if !strings.Contains(s, "smtp.example.com:587") {
		t.Errorf("String() = %s", s)
	}
}
