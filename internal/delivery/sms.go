package delivery

import (
	"strings"
	"unicode"
)

// MaxSMSLength is the body limit enforced before handing a text to a gateway.
const MaxSMSLength = 160

var carrierGateways = map[string]string{
	"att":        "txt.att.net",
	"at&t":       "txt.att.net",
	"verizon":    "vtext.com",
	"tmobile":    "tmomail.net",
	"t-mobile":   "tmomail.net",
	"sprint":     "messaging.sprintpcs.com",
	"boost":      "myboostmobile.com",
	"cricket":    "sms.cricketwireless.net",
	"metropcs":   "mymetropcs.com",
	"virgin":     "vmobl.com",
	"uscellular": "email.uscc.net",
}

// GatewayAddress resolves the e-mail-to-SMS address for a phone number.
// ok is false for unknown carriers or numbers without digits.
func GatewayAddress(phone, carrier string) (addr string, ok bool) {
	domain, known := carrierGateways[strings.ToLower(strings.TrimSpace(carrier))]
	if !known {
		return "", false
	}
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
	if digits == "" {
		return "", false
	}
	return digits + "@" + domain, true
}

// Carriers lists the supported carrier identifiers.
func Carriers() []string {
	return []string{"att", "verizon", "tmobile", "sprint", "boost", "cricket", "metropcs", "virgin", "uscellular"}
}

// TruncateSMS shortens msg to MaxSMSLength characters, ending in "..." when cut.
func TruncateSMS(msg string) string {
	r := []rune(msg)
	if len(r) <= MaxSMSLength {
		return msg
	}
	return string(r[:MaxSMSLength-3]) + "..."
}
