package provision

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

// Credentials are the backing-store identity generated for one site. Name and
// user derive deterministically from the domain; the password is random.
type Credentials struct {
	Name     string
	User     string
	Password string
}

// MySQL usernames are capped at 32 characters.
const maxIdentifierLen = 32

func NewCredentials(domain string) (Credentials, error) {
	password, err := randomPassword()
	if err != nil {
		return Credentials{}, err
	}

	ident := databaseIdentifier(domain)
	return Credentials{
		Name:     ident,
		User:     ident,
		Password: password,
	}, nil
}

// databaseIdentifier maps a domain to a safe MySQL identifier: lowercased,
// "cp_" prefixed, with anything outside [a-z0-9] folded to underscores.
func databaseIdentifier(domain string) string {
	var b strings.Builder
	b.WriteString("cp_")
	for _, r := range strings.ToLower(domain) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}

	ident := b.String()
	if len(ident) > maxIdentifierLen {
		ident = ident[:maxIdentifierLen]
	}
	return ident
}

func randomPassword() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate random password bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
