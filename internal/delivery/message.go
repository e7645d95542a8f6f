package delivery

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/mail"
)

// Message is a single plain-text mail.
type Message struct {
	FromName string
	From     string
	To       string
	Subject  string
	Body     string
}

// ParseAddress validates a bare or display-name e-mail address.
func ParseAddress(s string) (*mail.Address, error) {
	return mail.ParseAddress(s)
}

// Compose renders the message as RFC 5322 bytes. Address errors are
// configuration errors since both ends come from user settings.
func (m Message) Compose(now time.Time) ([]byte, error) {
	from, err := mail.ParseAddress(m.From)
	if err != nil {
		return nil, configErrorf("invalid sender email %q: %v", m.From, err)
	}
	if m.FromName != "" {
		from.Name = m.FromName
	}
	to, err := mail.ParseAddress(m.To)
	if err != nil {
		return nil, configErrorf("invalid recipient email %q: %v", m.To, err)
	}

	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", []*mail.Address{to})
	// SMS gateways tend to drop or prepend the subject, so it is left out when empty.
	if m.Subject != "" {
		h.SetSubject(m.Subject)
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create message writer: %w", err)
	}
	if _, err := io.WriteString(w, m.Body); err != nil {
		return nil, fmt.Errorf("write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close message writer: %w", err)
	}
	return buf.Bytes(), nil
}
