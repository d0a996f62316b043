package tagcodec

import (
	"io"
	"log/slog"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestKeyResolvesSharedVariantsToDE290(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind Kind
		want string
	}{
		{KindDE290, "DE290Tag.access"},
		{KindDE290F, "DE290Tag.access"},
		{KindCD290, "DE290Tag.access"},
		{KindDE386, "DE386Tag.access"},
	}

	for _, tt := range tests {
		if got := Key(tt.kind, RoleAccess); got != tt.want {
			t.Errorf("Key(%v, access) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestLookupResolvesSharedVariantsToDE290(t *testing.T) {
	t.Parallel()

	registry := NewPasswordRegistry(map[string]string{
		"DE290Tag.access": "shared-secret",
	}, discardLogger())

	for _, kind := range []Kind{KindDE290, KindDE290F, KindCD290} {
		if got := registry.Lookup(kind, RoleAccess, discardLogger()); got != "shared-secret" {
			t.Errorf("Lookup(%v, access) = %q, want shared-secret", kind, got)
		}
	}
}
