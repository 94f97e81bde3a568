package db

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kimhsiao/memoria/internal/errors"
)

// testClock is a settable clock for deterministic timestamps.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// setupTestStore opens a fresh store in a temp dir.
func setupTestStore(t *testing.T, opts ...Option) (*Store, *testClock) {
	t.Helper()
	database, err := Open(context.Background(), t.TempDir())
	require.NoError(t, err)
	clock := newTestClock()
	store := NewStore(database, append([]Option{WithClock(clock.Now)}, opts...)...)
	t.Cleanup(func() { store.Close() })
	return store, clock
}

func TestInsertText(t *testing.T) {
	ctx := context.Background()
	store, clock := setupTestStore(t)

	id, err := store.InsertText(ctx, "first line\nsecond line", "h1")
	require.NoError(t, err)

	item, err := store.GetItem(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "first line", item.Title)
	assert.Equal(t, "first line\nsecond line", item.Body)
	assert.Equal(t, "h1", item.Hash)
	assert.False(t, item.Starred)
	assert.Equal(t, clock.Now().Unix(), item.CreatedAt)
	assert.Equal(t, item.CreatedAt, item.LastUsed)
}

func TestInsertText_conflictWhenDedup(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)

	_, err := store.InsertText(ctx, "same", "dup")
	require.NoError(t, err)

	_, err = store.InsertText(ctx, "same", "dup")
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict), "got %v", err)
}

func TestInsertText_duplicatesWithoutDedup(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t, WithDedup(false))

	a, err := store.InsertText(ctx, "same", "dup")
	require.NoError(t, err)
	b, err := store.InsertText(ctx, "same", "dup")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Items)
}

func TestInsertImage(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)

	id, err := store.InsertImage(ctx, "image/png", []byte{1, 2, 3}, "imghash")
	require.NoError(t, err)

	item, err := store.GetItem(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Image: imghash", item.Title)
	assert.Equal(t, "", item.Body)

	mime, data, err := store.CopyPayload(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, []byte{1, 2, 3}, data)
}

func TestInsertImage_conflictRollsBack(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)

	_, err := store.InsertImage(ctx, "image/png", []byte{1}, "h")
	require.NoError(t, err)
	_, err = store.InsertImage(ctx, "image/png", []byte{1}, "h")
	require.True(t, apperrors.Is(err, apperrors.ErrConflict))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Items)
	assert.Equal(t, int64(1), stats.Images)
}

func TestTouchLastUsed(t *testing.T) {
	ctx := context.Background()
	store, clock := setupTestStore(t)

	id, err := store.InsertText(ctx, "body", "h")
	require.NoError(t, err)
	before, err := store.GetItem(ctx, id)
	require.NoError(t, err)

	clock.Advance(5 * time.Second)
	require.NoError(t, store.TouchLastUsed(ctx, id, clock.Now()))

	after, err := store.GetItem(ctx, id)
	require.NoError(t, err)
	assert.Greater(t, after.LastUsed, before.LastUsed)
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)

	err = store.TouchLastUsed(ctx, 9999, clock.Now())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestFindByHash(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)

	_, found, err := store.FindByHash(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	id, err := store.InsertText(ctx, "x", "present")
	require.NoError(t, err)
	got, found, err := store.FindByHash(ctx, "present")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, id, got)
}

func TestSetStarred(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)

	id, err := store.InsertText(ctx, "x", "h")
	require.NoError(t, err)

	n, err := store.SetStarred(ctx, id, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	item, err := store.GetItem(ctx, id)
	require.NoError(t, err)
	assert.True(t, item.Starred)

	n, err = store.SetStarred(ctx, 424242, true)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyPayload(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)

	id, err := store.InsertText(ctx, "héllo", "h")
	require.NoError(t, err)
	mime, data, err := store.CopyPayload(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, TextMIME, mime)
	assert.Equal(t, "héllo", string(data))

	emptyID, err := store.InsertText(ctx, "", "empty")
	require.NoError(t, err)
	_, _, err = store.CopyPayload(ctx, emptyID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	_, _, err = store.CopyPayload(ctx, 777)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestHashReferenced(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)

	ok, err := store.HashReferenced(ctx, "h")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.InsertText(ctx, "x", "h")
	require.NoError(t, err)
	ok, err = store.HashReferenced(ctx, "h")
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestStore_concurrentInsertsSerialize verifies that racing inserts of the
// same hash settle on exactly one row when dedup is on.
func TestStore_concurrentInsertsSerialize(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.InsertText(ctx, "race", "race-hash")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, apperrors.Is(err, apperrors.ErrConflict), "unexpected error %v", err)
	}
	assert.Equal(t, 1, succeeded)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Items)
}
