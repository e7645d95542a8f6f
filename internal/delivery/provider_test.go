package delivery

import "testing"

func TestClassifyProvider(t *testing.T) {
	tests := []struct {
		host string
		want Provider
	}{
		{"smtp.gmail.com", ProviderGmail},
		{"SMTP.GMAIL.COM", ProviderGmail},
		{"smtp-mail.outlook.com", ProviderOutlook},
		{"smtp.hotmail.com", ProviderOutlook},
		{"smtp.mail.yahoo.com", ProviderYahoo},
		{"mail.example.org", ProviderGeneric},
		{"", ProviderGeneric},
	}
	for _, tt := range tests {
		if got := ClassifyProvider(tt.host); got != tt.want {
			t.Errorf("ClassifyProvider(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}

func TestTransportFor(t *testing.T) {
	gm := TransportFor("smtp.gmail.com")
	if gm.TLS != TLSStartTLS || !gm.ForcePlain {
		t.Errorf("gmail transport = %+v, want starttls with forced PLAIN", gm)
	}
	if gm.Hint == "" {
		t.Error("gmail transport should carry a troubleshooting hint")
	}

	ol := TransportFor("smtp-mail.outlook.com")
	if ol.TLS != TLSStartTLS || ol.ForcePlain {
		t.Errorf("outlook transport = %+v", ol)
	}

	yh := TransportFor("smtp.mail.yahoo.com")
	if yh.TLS != TLSImplicit {
		t.Errorf("yahoo tls = %s, want implicit-tls", yh.TLS)
	}

	gen := TransportFor("mail.example.org")
	if gen.Provider != ProviderGeneric || gen.TLS != TLSImplicit || gen.Hint != "" {
		t.Errorf("generic transport = %+v", gen)
	}
}
