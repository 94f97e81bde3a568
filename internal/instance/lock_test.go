package instance

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_exclusive(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	first, err := Acquire(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, LockName), first.Path())

	_, err = Acquire(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyRunning))

	require.NoError(t, first.Release())

	second, err := Acquire(dir)
	require.NoError(t, err)
	require.NoError(t, second.Release())
}
