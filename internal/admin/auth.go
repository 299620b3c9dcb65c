package admin

import (
	"crypto/sha256"
	"crypto/subtle"
	"strings"

	"tinytales/internal/services"
)

// Gate checks the shared admin password.
type Gate struct {
	digest [32]byte
	set    bool
}

// NewGate returns a gate for password. An empty password locks the admin
// surface entirely.
func NewGate(password string) Gate {
	password = strings.TrimSpace(password)
	if password == "" {
		return Gate{}
	}
	return Gate{digest: sha256.Sum256([]byte(password)), set: true}
}

// Check compares input against the password in constant time.
func (g Gate) Check(input string) bool {
	if !g.set {
		return false
	}
	got := sha256.Sum256([]byte(input))
	return subtle.ConstantTimeCompare(got[:], g.digest[:]) == 1
}

// Authorize returns a validation error unless input matches.
func (g Gate) Authorize(input string) error {
	if !g.set {
		return services.Wrap(services.ErrConfiguration, "admin", "authorize", "admin password is not configured", nil)
	}
	if !g.Check(input) {
		return services.Wrap(services.ErrValidation, "admin", "authorize", "incorrect password", nil)
	}
	return nil
}
