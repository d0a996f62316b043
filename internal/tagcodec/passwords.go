package tagcodec

import (
	"fmt"
	"log/slog"
	"strings"
)

// placeholderSecret is returned for any password-registry key with no
// configured value. It deliberately contains the CHANGE-ME substring so
// that both missing and accidentally-placeholder configuration values are
// caught by the same check.
const placeholderSecret = "CHANGE-ME-this-is-not-a-real-secret"

// Role names used in password-registry keys.
const (
	RoleAccess = "access"
	RoleKill   = "kill"
	RoleSecret = "secret"
)

// PasswordRegistry is a flat, read-only mapping from
// "<FormatName>.<Role>" keys to secret strings, installed once at
// startup.
type PasswordRegistry struct {
	values map[string]string
}

// NewPasswordRegistry installs values as the registry's contents,
// logging a warning for every entry that is already a CHANGE-ME
// placeholder.
func NewPasswordRegistry(values map[string]string, logger *slog.Logger) *PasswordRegistry {
	cloned := make(map[string]string, len(values))
	for k, v := range values {
		cloned[k] = v
		if strings.Contains(v, "CHANGE-ME") {
			logger.Warn("password registry entry is a placeholder secret", "key", k)
		}
	}
	return &PasswordRegistry{values: cloned}
}

// Key formats a password-registry lookup key from a tag kind and role.
// DE290F and CD290 share DE290's password configuration, so both
// resolve to the DE290 key before formatting.
func Key(kind Kind, role string) string {
	switch kind {
	case KindDE290F, KindCD290:
		kind = KindDE290
	}
	return fmt.Sprintf("%s.%s", kind, role)
}

// Lookup returns the configured secret for kind/role, or the placeholder
// sentinel if none was configured. logger receives a warning in the
// placeholder case.
func (r *PasswordRegistry) Lookup(kind Kind, role string, logger *slog.Logger) string {
	key := Key(kind, role)
	v, ok := r.values[key]
	if !ok {
		logger.Warn("password registry has no entry for key, using placeholder", "key", key)
		return placeholderSecret
	}
	return v
}
