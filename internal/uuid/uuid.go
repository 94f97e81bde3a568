// Package uuid generates identifiers for IPC connections and event
// subscribers.
package uuid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// New generates a random (v4) UUID string.
func New() string {
	return uuid.New().String()
}

// NewPrefixed returns "<prefix>-<uuid>", e.g. "conn-6f1c...".
func NewPrefixed(prefix string) string {
	return prefix + "-" + New()
}

// Split separates a prefixed id into its prefix and UUID.
func Split(id string) (prefix string, u uuid.UUID, err error) {
	if len(id) < 36 {
		return "", uuid.Nil, fmt.Errorf("invalid id %q", id)
	}
	raw := id[len(id)-36:]
	prefix = strings.TrimSuffix(id[:len(id)-36], "-")
	u, err = uuid.Parse(raw)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("invalid id %q: %w", id, err)
	}
	if u.Version() != 4 {
		return "", uuid.Nil, fmt.Errorf("expected UUID v4 in %q, got v%d", id, u.Version())
	}
	return prefix, u, nil
}

// Short returns the first eight hex digits of the UUID part, for log lines.
func Short(id string) string {
	_, u, err := Split(id)
	if err != nil {
		return id
	}
	return u.String()[:8]
}
