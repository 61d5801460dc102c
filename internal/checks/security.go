package checks

import (
	"context"
	"encoding/base64"
	"fmt"
	"slices"

	"golang.org/x/crypto/chacha20poly1305"

	"custodia/internal/platform/config"
	"custodia/internal/platform/password"
)

// EncryptionKey verifies the column-encryption key is present and usable.
type EncryptionKey struct{}

func (EncryptionKey) ID() string       { return "security.encryption-key" }
func (EncryptionKey) DeployOnly() bool { return false }

func (c EncryptionKey) Run(_ context.Context, cfg config.Config) []Finding {
	key := cfg.Security.EncryptionKey
	if key == "" {
		return []Finding{{
			CheckID:  c.ID(),
			Severity: SeverityError,
			Message:  "no column-encryption key configured",
			Hint:     "set CUSTODIA_SECURITY_ENCRYPTION_KEY to a urlsafe-base64 32-byte key",
		}}
	}

	raw, err := decodeKey(key)
	if err != nil {
		return []Finding{{
			CheckID:  c.ID(),
			Severity: SeverityError,
			Message:  "encryption key is not valid urlsafe base64",
			Hint:     "generate one with: head -c32 /dev/urandom | base64 | tr '+/' '-_'",
		}}
	}

	// Constructing the AEAD is the authoritative size check.
	if _, err := chacha20poly1305.New(raw); err != nil {
		return []Finding{{
			CheckID:  c.ID(),
			Severity: SeverityError,
			Message:  fmt.Sprintf("encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(raw)),
			Hint:     "generate one with: head -c32 /dev/urandom | base64 | tr '+/' '-_'",
		}}
	}
	return nil
}

func decodeKey(key string) ([]byte, error) {
	if raw, err := base64.URLEncoding.DecodeString(key); err == nil {
		return raw, nil
	}
	return base64.RawURLEncoding.DecodeString(key)
}

// requiredMiddleware lists the chain entries that must be present for the
// system to be auditable at all.
var requiredMiddleware = []string{"access-control", "audit-log"}

// Middleware verifies the required entries are in the configured chain.
type Middleware struct{}

func (Middleware) ID() string       { return "security.middleware" }
func (Middleware) DeployOnly() bool { return false }

func (c Middleware) Run(_ context.Context, cfg config.Config) []Finding {
	entries := cfg.HTTP.MiddlewareEntries()

	var findings []Finding
	for _, required := range requiredMiddleware {
		if slices.Contains(entries, required) {
			continue
		}
		findings = append(findings, Finding{
			CheckID:  c.ID(),
			Severity: SeverityError,
			Message:  fmt.Sprintf("required middleware %q is missing from the chain", required),
			Hint:     "add it to CUSTODIA_HTTP_MIDDLEWARE_CHAIN",
		})
	}
	return findings
}

// PasswordHashers warns when the strongest configured hasher does not hash
// new passwords.
type PasswordHashers struct{}

func (PasswordHashers) ID() string       { return "security.password-hashers" }
func (PasswordHashers) DeployOnly() bool { return false }

func (c PasswordHashers) Run(_ context.Context, cfg config.Config) []Finding {
	order := cfg.Security.HasherOrder()
	strongest, ok := password.Strongest(order)
	if !ok {
		return nil
	}

	first := order[0]
	if rank, known := password.Rank(first); known {
		if strongestRank, _ := password.Rank(strongest); rank <= strongestRank {
			return nil
		}
	}
	return []Finding{{
		CheckID:  c.ID(),
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("strongest configured password hasher %q is not first (first is %q)", strongest, first),
		Hint:     "reorder CUSTODIA_SECURITY_PASSWORD_HASHERS so new passwords use the strongest algorithm",
	}}
}
