package delivery

import "strings"

// Provider identifies a mail provider family by its SMTP host name.
type Provider string

const (
	ProviderGmail   Provider = "gmail"
	ProviderOutlook Provider = "outlook"
	ProviderYahoo   Provider = "yahoo"
	ProviderGeneric Provider = "generic"
)

// TLSMode selects how the SMTP connection is secured.
type TLSMode int

const (
	// TLSImplicit wraps the TCP connection in TLS before the greeting.
	TLSImplicit TLSMode = iota
	// TLSStartTLS upgrades a plaintext session with STARTTLS.
	TLSStartTLS
)

func (m TLSMode) String() string {
	if m == TLSStartTLS {
		return "starttls"
	}
	return "implicit-tls"
}

// Transport is the per-provider connection strategy.
type Transport struct {
	Provider   Provider
	TLS        TLSMode
	ForcePlain bool
	Hint       string
}

var transports = map[Provider]Transport{
	ProviderGmail: {
		Provider:   ProviderGmail,
		TLS:        TLSStartTLS,
		ForcePlain: true,
		Hint: "gmail: accounts with 2FA need an App Password (https://myaccount.google.com/apppasswords); " +
			"check the inbox for blocked sign-in alerts",
	},
	ProviderOutlook: {
		Provider: ProviderOutlook,
		TLS:      TLSStartTLS,
		Hint:     "outlook: use the full address as username, smtp-mail.outlook.com port 587, app password when 2FA is on",
	},
	ProviderYahoo: {
		Provider: ProviderYahoo,
		TLS:      TLSImplicit,
		Hint:     "yahoo: use the full address as username, smtp.mail.yahoo.com port 465, app password when 2FA is on",
	},
	ProviderGeneric: {
		Provider: ProviderGeneric,
		TLS:      TLSImplicit,
	},
}

// ClassifyProvider maps an SMTP host name to its provider family.
func ClassifyProvider(host string) Provider {
	h := strings.ToLower(host)
	switch {
	case strings.Contains(h, "gmail"):
		return ProviderGmail
	case strings.Contains(h, "outlook"), strings.Contains(h, "hotmail"):
		return ProviderOutlook
	case strings.Contains(h, "yahoo"):
		return ProviderYahoo
	default:
		return ProviderGeneric
	}
}

// TransportFor returns the connection strategy for an SMTP host.
func TransportFor(host string) Transport {
	return transports[ClassifyProvider(host)]
}
