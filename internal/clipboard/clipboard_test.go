// Package clipboard tests for MIME selection, change detection and the
// wl-clipboard capability.
package clipboard

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kimhsiao/memoria/internal/errors"
)

func TestSelectMIME(t *testing.T) {
	tests := []struct {
		name       string
		advertised []string
		want       string
	}{
		{"image preferred over text", []string{"text/plain", "image/png"}, "image/png"},
		{"png before jpeg", []string{"image/jpeg", "image/png"}, "image/png"},
		{"any image when no preferred", []string{"text/plain", "image/gif"}, "image/gif"},
		{"text variant", []string{"text/html", "text/plain;charset=utf-8"}, "text/plain;charset=utf-8"},
		{"x11 string atom", []string{"TARGETS", "UTF8_STRING"}, "UTF8_STRING"},
		{"first advertised fallback", []string{"application/x-thing", "text/html"}, "application/x-thing"},
		{"nothing", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectMIME(tt.advertised))
		})
	}
}

func TestSelectImageMIME_none(t *testing.T) {
	assert.Equal(t, "", SelectImageMIME([]string{"text/plain"}))
}

func TestObserve(t *testing.T) {
	var ch Channel

	ch, hash, changed := Observe(ch, []byte("a"))
	assert.True(t, changed)
	assert.Equal(t, Hash([]byte("a")), hash)
	assert.Equal(t, hash, ch.LastSeenHash)

	ch, _, changed = Observe(ch, []byte("a"))
	assert.False(t, changed, "same content still on the clipboard")

	ch, _, changed = Observe(ch, nil)
	assert.False(t, changed)
	assert.Equal(t, "", ch.LastSeenHash, "empty sample resets the channel")

	_, _, changed = Observe(ch, []byte("a"))
	assert.True(t, changed, "reappearance after an empty sample is new")
}

func TestHash(t *testing.T) {
	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		Hash([]byte("abc")))
}

func TestFake(t *testing.T) {
	ctx := context.Background()
	f := NewFake()

	types, err := f.Types(ctx)
	require.NoError(t, err)
	assert.Empty(t, types)

	f.Set(Offer{MIME: "text/plain", Data: []byte("t")}, Offer{MIME: "image/png", Data: []byte{1}})
	types, err = f.Types(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"text/plain", "image/png"}, types)

	require.NoError(t, f.Write(ctx, "image/jpeg", []byte{2}))
	data, err := f.Read(ctx, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, data)
	data, err = f.Read(ctx, "text/plain")
	require.NoError(t, err)
	assert.Empty(t, data, "write replaces previous offers")
	assert.Len(t, f.Writes(), 1)
}

// writeScript installs an executable shell script named name in dir.
func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"+body), 0o755))
}

// setupFakeTools puts stub wl-paste and wl-copy first on PATH.
func setupFakeTools(t *testing.T, pasteBody, copyBody string) string {
	t.Helper()
	dir := t.TempDir()
	writeScript(t, dir, "wl-paste", pasteBody)
	writeScript(t, dir, "wl-copy", copyBody)
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	t.Setenv("WAYLAND_DISPLAY", "wayland-test")
	return dir
}

const pasteScript = `case "$1" in
--list-types) printf 'text/plain\nimage/png\n' ;;
--no-newline)
	case "$3" in
	text/plain) printf 'hello' ;;
	*) echo "no such type" >&2; exit 1 ;;
	esac ;;
esac
`

func TestWayland_readAndTypes(t *testing.T) {
	setupFakeTools(t, pasteScript, "cat >/dev/null\n")
	ctx := context.Background()
	w := NewWayland(2 * time.Second)

	require.NoError(t, w.CheckPrerequisites(ctx))

	types, err := w.Types(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"text/plain", "image/png"}, types)

	data, err := w.Read(ctx, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	data, err = w.Read(ctx, "image/png")
	require.NoError(t, err, "non-zero exit means nothing offered")
	assert.Empty(t, data)
}

func TestWayland_write(t *testing.T) {
	out := filepath.Join(t.TempDir(), "copied")
	setupFakeTools(t, pasteScript, `cat >"`+out+`"`+"\n")

	w := NewWayland(2 * time.Second)
	require.NoError(t, w.Write(context.Background(), "text/plain", []byte("payload")))

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
}

func TestWayland_writeReturnsWhileSelectionServerRuns(t *testing.T) {
	// wl-copy exits once a background child has taken over the selection.
	setupFakeTools(t, pasteScript, "cat >/dev/null\n(sleep 4) &\nexit 0\n")

	start := time.Now()
	err := NewWayland(time.Second).Write(context.Background(), "text/plain", []byte("x"))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestWayland_writeFailure(t *testing.T) {
	setupFakeTools(t, pasteScript, "cat >/dev/null\nexit 3\n")

	err := NewWayland(2*time.Second).Write(context.Background(), "text/plain", []byte("x"))
	assert.True(t, apperrors.Is(err, apperrors.ErrExternalTool), "got %v", err)
}

func TestWayland_timeout(t *testing.T) {
	setupFakeTools(t, "exec sleep 5\n", "cat >/dev/null\n")

	start := time.Now()
	_, err := NewWayland(100*time.Millisecond).Read(context.Background(), "text/plain")
	assert.True(t, apperrors.Is(err, apperrors.ErrExternalTool), "got %v", err)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestWayland_prerequisites(t *testing.T) {
	t.Run("missing tools", func(t *testing.T) {
		t.Setenv("PATH", t.TempDir())
		t.Setenv("WAYLAND_DISPLAY", "wayland-test")
		err := NewWayland(0).CheckPrerequisites(context.Background())
		assert.True(t, apperrors.Is(err, apperrors.ErrExternalTool))
	})

	t.Run("no wayland session", func(t *testing.T) {
		setupFakeTools(t, pasteScript, "cat >/dev/null\n")
		t.Setenv("WAYLAND_DISPLAY", "")
		err := NewWayland(0).CheckPrerequisites(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "WAYLAND_DISPLAY")
	})
}
