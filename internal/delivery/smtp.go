package delivery

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// DefaultTimeout bounds connect and every SMTP command.
const DefaultTimeout = 30 * time.Second

// Mailer delivers one composed message with the given account settings.
type Mailer interface {
	Send(ctx context.Context, cfg EmailConfig, msg Message) error
}

// SMTPMailer picks the TLS mode and auth mechanism from the provider table.
type SMTPMailer struct {
	Timeout time.Duration
	// TLSConfig is cloned per connection; ServerName is filled in when empty.
	TLSConfig *tls.Config
}

func NewSMTPMailer(timeout time.Duration) *SMTPMailer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &SMTPMailer{Timeout: timeout}
}

func (m *SMTPMailer) Send(ctx context.Context, cfg EmailConfig, msg Message) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := msg.Compose(time.Now())
	if err != nil {
		return err
	}
	from, _ := ParseAddress(msg.From)
	to, _ := ParseAddress(msg.To)

	tr := TransportFor(cfg.SMTPServer)
	c, release, err := m.dial(ctx, cfg, tr)
	if err != nil {
		return fmt.Errorf("connect %s:%d (%s): %w", cfg.SMTPServer, cfg.SMTPPort, tr.TLS, err)
	}
	defer release()
	defer c.Close()

	if err := m.auth(c, cfg, tr); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.SendMail(from.Address, []string{to.Address}, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	// The message is already accepted once DATA succeeds.
	_ = c.Quit()
	return nil
}

func (m *SMTPMailer) timeout() time.Duration {
	if m.Timeout <= 0 {
		return DefaultTimeout
	}
	return m.Timeout
}

func (m *SMTPMailer) tlsConfig(host string) *tls.Config {
	var cfg *tls.Config
	if m.TLSConfig != nil {
		cfg = m.TLSConfig.Clone()
	} else {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	return cfg
}

func (m *SMTPMailer) dial(ctx context.Context, cfg EmailConfig, tr Transport) (*smtp.Client, func(), error) {
	addr := net.JoinHostPort(cfg.SMTPServer, strconv.Itoa(cfg.SMTPPort))

	dialCtx, cancel := context.WithTimeout(ctx, m.timeout())
	defer cancel()

	d := net.Dialer{Timeout: m.timeout()}
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	// Closing the socket is the only way to abort a blocked SMTP command.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	var c *smtp.Client
	switch tr.TLS {
	case TLSStartTLS:
		_ = conn.SetDeadline(time.Now().Add(m.timeout()))
		c, err = smtp.NewClientStartTLS(conn, m.tlsConfig(cfg.SMTPServer))
		if err != nil {
			stop()
			_ = conn.Close()
			return nil, nil, err
		}
	default:
		tc := tls.Client(conn, m.tlsConfig(cfg.SMTPServer))
		if err := tc.HandshakeContext(dialCtx); err != nil {
			stop()
			_ = conn.Close()
			return nil, nil, err
		}
		c = smtp.NewClient(tc)
	}
	c.CommandTimeout = m.timeout()
	c.SubmissionTimeout = m.timeout()
	return c, func() { stop() }, nil
}

func (m *SMTPMailer) auth(c *smtp.Client, cfg EmailConfig, tr Transport) error {
	var a sasl.Client
	if tr.ForcePlain {
		a = sasl.NewPlainClient("", cfg.Username, cfg.Password)
	} else {
		ok, mechs := c.Extension("AUTH")
		if !ok {
			return fmt.Errorf("server %s does not advertise AUTH", cfg.SMTPServer)
		}
		switch {
		case hasMechanism(mechs, sasl.Plain):
			a = sasl.NewPlainClient("", cfg.Username, cfg.Password)
		case hasMechanism(mechs, sasl.Login):
			a = sasl.NewLoginClient(cfg.Username, cfg.Password)
		default:
			return fmt.Errorf("no supported auth mechanism in %q", mechs)
		}
	}
	return c.Auth(a)
}

func hasMechanism(list, mech string) bool {
	for _, f := range strings.Fields(list) {
		if strings.EqualFold(f, mech) {
			return true
		}
	}
	return false
}
