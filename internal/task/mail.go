package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/riverfjs/taskdeck/internal/delivery"
)

const (
	emailConfigFile = "email_config.json"
	smsConfigFile   = "sms_config.json"

	reminderSender = "Task Scheduler"
	smsSender      = "Task Reminder"
)

func (s *Store) configPath(name string) string {
	return filepath.Join(filepath.Dir(s.path), name)
}

func (s *Store) loadDeliveryConfig() {
	var email delivery.EmailConfig
	if ok, err := readJSON(s.configPath(emailConfigFile), &email); err != nil {
		s.logger.Warnf("[store] ignoring %s: %v", emailConfigFile, err)
	} else if ok {
		s.email = &email
	}
	var sms delivery.SmsConfig
	if ok, err := readJSON(s.configPath(smsConfigFile), &sms); err != nil {
		s.logger.Warnf("[store] ignoring %s: %v", smsConfigFile, err)
	} else if ok {
		s.sms = &sms
	}
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

// SetEmailConfig replaces and persists the e-mail settings. Zero retry
// settings are filled with defaults.
func (s *Store) SetEmailConfig(cfg delivery.EmailConfig) error {
	def := delivery.DefaultEmailConfig()
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = def.SMTPPort
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = def.RetryAttempts
	}
	if cfg.RetryDelaySeconds == 0 {
		cfg.RetryDelaySeconds = def.RetryDelaySeconds
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.email = &cfg
	s.logger.Infof("[store] email config set: %s", cfg)
	return writeJSON(s.configPath(emailConfigFile), cfg)
}

func (s *Store) SetSmsConfig(cfg delivery.SmsConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sms = &cfg
	return writeJSON(s.configPath(smsConfigFile), cfg)
}

func (s *Store) EmailConfig() (delivery.EmailConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.email == nil {
		return delivery.EmailConfig{}, false
	}
	return *s.email, true
}

func (s *Store) SmsConfig() (delivery.SmsConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sms == nil {
		return delivery.SmsConfig{}, false
	}
	return *s.sms, true
}

// TestEmailConfig sends one test message to the configured address.
func (s *Store) TestEmailConfig(ctx context.Context) error {
	cfg, ok := s.EmailConfig()
	if !ok {
		return &delivery.ConfigError{Msg: "email configuration not set"}
	}
	msg := delivery.Message{
		FromName: reminderSender,
		From:     cfg.Email,
		To:       cfg.Email,
		Subject:  "Test Email from Task Scheduler",
		Body:     "This is a test email to verify your email configuration is working correctly.",
	}
	return s.send(ctx, cfg, msg)
}

// SendReminderEmail mails the reminder for task id to the configured
// address. It does not mark the reminder.
func (s *Store) SendReminderEmail(ctx context.Context, id uint32) error {
	s.mu.Lock()
	t, ok := s.tasks[id]
	var snap Task
	if ok {
		snap = t.clone()
	}
	cfg := s.email
	s.mu.Unlock()

	if !ok {
		return taskNotFound(id)
	}
	if cfg == nil {
		return &delivery.ConfigError{Msg: "email configuration not set"}
	}
	return s.send(ctx, *cfg, reminderMessage(snap, cfg.Email))
}

// reminderMessage composes the reminder mail for t.
func reminderMessage(t Task, addr string) delivery.Message {
	return delivery.Message{
		FromName: reminderSender,
		From:     addr,
		To:       addr,
		Subject:  "Reminder: " + t.Title,
		Body: fmt.Sprintf("This is a reminder for your task: %s\n\nDescription: %s\n\nDue: %s\n\nPriority: %s",
			t.Title, t.Description, FormatTime(t.DueDate), t.Priority),
	}
}

// SendSmsReminder sends message to the configured phone through its
// carrier's e-mail gateway, reusing the e-mail account.
func (s *Store) SendSmsReminder(ctx context.Context, id uint32, message string) error {
	s.mu.Lock()
	_, ok := s.tasks[id]
	email, sms := s.email, s.sms
	s.mu.Unlock()

	if !ok {
		return taskNotFound(id)
	}
	if sms == nil {
		return &delivery.ConfigError{Msg: "sms configuration not set"}
	}
	if !sms.Enabled {
		return &delivery.ConfigError{Msg: "sms is disabled in configuration"}
	}
	if email == nil {
		return &delivery.ConfigError{Msg: "email configuration required for sms (uses email-to-sms gateway)"}
	}
	to, known := delivery.GatewayAddress(sms.PhoneNumber, sms.Carrier)
	if !known {
		return &delivery.ConfigError{Msg: fmt.Sprintf("unsupported carrier %q or invalid phone number", sms.Carrier)}
	}
	s.logger.Debugf("[sms] sending task %d via %s gateway", id, sms.Carrier)
	msg := delivery.Message{
		FromName: smsSender,
		From:     email.Email,
		To:       to,
		Body:     delivery.TruncateSMS(message),
	}
	return s.send(ctx, *email, msg)
}

// send delivers msg and attaches the provider hint to transport failures.
func (s *Store) send(ctx context.Context, cfg delivery.EmailConfig, msg delivery.Message) error {
	if s.Mailer == nil {
		return errors.New("no mailer configured")
	}
	err := s.Mailer.Send(ctx, cfg, msg)
	if err == nil || errors.Is(err, delivery.ErrConfig) {
		return err
	}
	if hint := delivery.TransportFor(cfg.SMTPServer).Hint; hint != "" {
		return fmt.Errorf("%w (%s)", err, hint)
	}
	return err
}
