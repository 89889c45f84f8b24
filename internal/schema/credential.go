package schema

import "strings"

// Credential holds one exchange API credential set. Immutable after
// construction; absence (zero value) means public-only mode: no
// authenticated REST calls and no private stream subscriptions.
type Credential struct {
	APIKey     string
	APISecret  string
	Passphrase string
}

// NewCredential constructs a trimmed credential set.
func NewCredential(apiKey, apiSecret, passphrase string) Credential {
	return Credential{
		APIKey:     strings.TrimSpace(apiKey),
		APISecret:  strings.TrimSpace(apiSecret),
		Passphrase: strings.TrimSpace(passphrase),
	}
}

// IsZero reports whether no credential is configured.
func (c Credential) IsZero() bool {
	return c.APIKey == "" && c.APISecret == ""
}
