package rpc

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/riverfjs/taskdeck/internal/delivery"
)

// ConfigStore is the part of task.Store holding delivery settings.
type ConfigStore interface {
	EmailConfig() (delivery.EmailConfig, bool)
	SmsConfig() (delivery.SmsConfig, bool)
	SetEmailConfig(cfg delivery.EmailConfig) error
	SetSmsConfig(cfg delivery.SmsConfig) error
	TestEmailConfig(ctx context.Context) error
}

// DeliveryConfig is what config.get returns. The password is masked.
type DeliveryConfig struct {
	Email *delivery.EmailConfig `json:"email,omitempty"`
	Sms   *delivery.SmsConfig   `json:"sms,omitempty"`
}

// EmailUpdate is the config.email.set request; nil fields keep their value.
type EmailUpdate struct {
	Email      *string `json:"email,omitempty"`
	SMTPServer *string `json:"smtp_server,omitempty"`
	SMTPPort   *int    `json:"smtp_port,omitempty"`
	Username   *string `json:"username,omitempty"`
	Password   *string `json:"password,omitempty"`
}

// SmsUpdate is the config.sms.set request; nil fields keep their value.
type SmsUpdate struct {
	PhoneNumber *string `json:"phone_number,omitempty"`
	Carrier     *string `json:"carrier,omitempty"`
	Enabled     bool    `json:"enabled"`
}

// SmsSaved is the config.sms.set response.
type SmsSaved struct {
	Sms             delivery.SmsConfig `json:"sms"`
	Address         string             `json:"address"`
	EmailConfigured bool               `json:"email_configured"`
}

// ConfigHandlers implements the config.* and email.test methods.
type ConfigHandlers struct {
	Store ConfigStore
	// Timeout bounds email.test.
	Timeout time.Duration
}

func masked(c delivery.EmailConfig) *delivery.EmailConfig {
	if c.Password != "" {
		c.Password = "******"
	}
	return &c
}

// RegisterConfigHandlers registers the delivery settings methods on s.
func RegisterConfigHandlers(s *Server, h *ConfigHandlers) {
	s.Register("config.get", func(_ context.Context, _ json.RawMessage, respond RespondFn) {
		var out DeliveryConfig
		if c, ok := h.Store.EmailConfig(); ok {
			out.Email = masked(c)
		}
		if c, ok := h.Store.SmsConfig(); ok {
			out.Sms = &c
		}
		respond(out, nil)
	})

	// params: EmailUpdate; username defaults to the address.
	s.Register("config.email.set", func(_ context.Context, params json.RawMessage, respond RespondFn) {
		var p EmailUpdate
		if err := decode(params, &p); err != nil {
			respond(nil, err)
			return
		}
		cur, ok := h.Store.EmailConfig()
		if !ok {
			cur = delivery.DefaultEmailConfig()
		}
		if p.Email != nil {
			cur.Email = *p.Email
		}
		if p.SMTPServer != nil {
			cur.SMTPServer = *p.SMTPServer
		}
		if p.SMTPPort != nil {
			cur.SMTPPort = *p.SMTPPort
		}
		if p.Username != nil {
			cur.Username = *p.Username
		}
		if p.Password != nil {
			cur.Password = *p.Password
		}
		if cur.Username == "" {
			cur.Username = cur.Email
		}
		if err := cur.Validate(); err != nil {
			respond(nil, invalidParams("%v", err))
			return
		}
		if err := h.Store.SetEmailConfig(cur); err != nil {
			respond(nil, err)
			return
		}
		respond(masked(cur), nil)
	})

	// params: SmsUpdate
	s.Register("config.sms.set", func(_ context.Context, params json.RawMessage, respond RespondFn) {
		var p SmsUpdate
		if err := decode(params, &p); err != nil {
			respond(nil, err)
			return
		}
		cur, _ := h.Store.SmsConfig()
		if p.PhoneNumber != nil {
			cur.PhoneNumber = *p.PhoneNumber
		}
		if p.Carrier != nil {
			cur.Carrier = *p.Carrier
		}
		cur.Enabled = p.Enabled

		addr, ok := delivery.GatewayAddress(cur.PhoneNumber, cur.Carrier)
		if !ok {
			respond(nil, invalidParams("cannot build an SMS gateway address from phone %q and carrier %q (carriers: %s)",
				cur.PhoneNumber, cur.Carrier, strings.Join(delivery.Carriers(), ", ")))
			return
		}
		if err := h.Store.SetSmsConfig(cur); err != nil {
			respond(nil, err)
			return
		}
		_, hasEmail := h.Store.EmailConfig()
		respond(SmsSaved{Sms: cur, Address: addr, EmailConfigured: hasEmail}, nil)
	})

	s.Register("email.test", func(ctx context.Context, _ json.RawMessage, respond RespondFn) {
		if h.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, h.Timeout)
			defer cancel()
		}
		if err := h.Store.TestEmailConfig(ctx); err != nil {
			respond(nil, err)
			return
		}
		c, _ := h.Store.EmailConfig()
		respond(map[string]any{"ok": true, "to": c.Email}, nil)
	})
}

