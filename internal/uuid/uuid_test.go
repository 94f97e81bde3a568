// Package uuid provides unit tests for identifier generation.
package uuid

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var v4 = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// TestNew tests that New() generates valid UUID v4 strings.
func TestNew(t *testing.T) {
	assert.Regexp(t, v4, New())
}

// TestNewUniqueness tests that New() generates unique IDs.
func TestNewUniqueness(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		require.False(t, ids[id], "duplicate UUID generated: %s", id)
		ids[id] = true
	}
}

func TestNewPrefixed_roundTrip(t *testing.T) {
	id := NewPrefixed("conn")
	require.True(t, strings.HasPrefix(id, "conn-"))

	prefix, u, err := Split(id)
	require.NoError(t, err)
	assert.Equal(t, "conn", prefix)
	assert.Equal(t, id[len("conn-"):], u.String())
}

func TestSplit_invalid(t *testing.T) {
	for _, id := range []string{"", "conn-1234", "conn-zzzzzzzz-zzzz-4zzz-8zzz-zzzzzzzzzzzz"} {
		_, _, err := Split(id)
		assert.Error(t, err, "input %q", id)
	}
}

func TestShort(t *testing.T) {
	id := NewPrefixed("ws")
	assert.Len(t, Short(id), 8)
	assert.Equal(t, "not-an-id", Short("not-an-id"))
}
