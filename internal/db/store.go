package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/kimhsiao/memoria/internal/errors"
	"github.com/kimhsiao/memoria/internal/models"
)

// TextMIME is the MIME type reported for text payloads.
const TextMIME = "text/plain;charset=utf-8"

// Store is the serialized content store. Every exported method holds the
// store mutex for its whole duration, so two operations never interleave.
type Store struct {
	mu    sync.Mutex
	db    *sqlx.DB
	dedup bool
	now   func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithDedup toggles hash-based deduplication. Enabled by default.
func WithDedup(enabled bool) Option {
	return func(s *Store) { s.dedup = enabled }
}

// WithClock overrides the clock used for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Stats holds row counts reported by get_stats.
type Stats struct {
	Items   int64 `db:"items" json:"items"`
	Images  int64 `db:"images" json:"images"`
	Starred int64 `db:"starred" json:"starred"`
}

// NewStore wraps an open database.
func NewStore(database *DB, opts ...Option) *Store {
	s := &Store{
		db:    sqlx.NewDb(database.DB, "sqlite"),
		dedup: true,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dedup reports whether deduplication is enabled.
func (s *Store) Dedup() bool {
	return s.dedup
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// withTx runs fn in a transaction. The caller must hold s.mu.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStore, "failed to begin transaction", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrStore, "failed to commit transaction", err)
	}
	return nil
}

func hashExists(ctx context.Context, q sqlx.QueryerContext, hash string) (bool, error) {
	var exists bool
	if err := sqlx.GetContext(ctx, q, &exists, `SELECT EXISTS(SELECT 1 FROM items WHERE hash = ?)`, hash); err != nil {
		return false, apperrors.Wrap(apperrors.ErrStore, "failed to look up hash", err)
	}
	return exists, nil
}

func (s *Store) insertItem(ctx context.Context, tx *sqlx.Tx, title, body, hash string, now int64) (int64, error) {
	if s.dedup {
		exists, err := hashExists(ctx, tx, hash)
		if err != nil {
			return 0, err
		}
		if exists {
			return 0, apperrors.Newf(apperrors.ErrConflict, "hash %s already stored", hash)
		}
	}

	res, err := tx.ExecContext(ctx, `
	INSERT INTO items (created_at, updated_at, last_used, starred, title, body, hash)
	VALUES (?, ?, ?, 0, ?, ?, ?)
	`, now, now, now, title, body, hash)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStore, "failed to insert item", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStore, "failed to read item id", err)
	}
	return id, nil
}

// InsertText stores a text item. The title is the first line of body.
// Returns Conflict when dedup is enabled and hash is already stored.
func (s *Store) InsertText(ctx context.Context, body, hash string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().Unix()
	var id int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		id, err = s.insertItem(ctx, tx, models.TextTitle(body), body, hash, now)
		return err
	})
	return id, err
}

// InsertImage stores an image item and its image row atomically.
func (s *Store) InsertImage(ctx context.Context, mime string, data []byte, hash string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().Unix()
	var id int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		id, err = s.insertItem(ctx, tx, models.ImageTitle(hash), "", hash, now)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO images (item_id, created_at, mime, bytes) VALUES (?, ?, ?, ?)`,
			id, now, mime, data); err != nil {
			return apperrors.Wrap(apperrors.ErrStore, "failed to insert image", err)
		}
		return nil
	})
	return id, err
}

// FindByHash returns the id of the oldest item with the given hash.
func (s *Store) FindByHash(ctx context.Context, hash string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	err := s.db.GetContext(ctx, &id, `SELECT id FROM items WHERE hash = ? ORDER BY id LIMIT 1`, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, apperrors.Wrap(apperrors.ErrStore, "failed to find item by hash", err)
	}
	return id, true, nil
}

// TouchLastUsed sets last_used of the item to now. Nothing else changes.
func (s *Store) TouchLastUsed(ctx context.Context, id int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE items SET last_used = ? WHERE id = ?`, now.Unix(), id)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStore, "failed to touch item", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStore, "failed to touch item", err)
	}
	if n == 0 {
		return apperrors.Newf(apperrors.ErrNotFound, "item %d not found", id)
	}
	return nil
}

// SetStarred pins or unpins an item and returns the number of rows changed.
func (s *Store) SetStarred(ctx context.Context, id int64, value bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE items SET starred = ?, updated_at = ? WHERE id = ?`,
		value, s.now().Unix(), id)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStore, "failed to set starred", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStore, "failed to set starred", err)
	}
	return n, nil
}

// GetItem retrieves one item by id.
func (s *Store) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var item models.Item
	err := s.db.GetContext(ctx, &item, `
	SELECT id, created_at, updated_at, last_used, starred, title, body, hash
	FROM items WHERE id = ?
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "item %d not found", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStore, "failed to get item", err)
	}
	return &item, nil
}

// CopyPayload returns what copying the item puts on the clipboard: the
// image bytes when the item owns an image, otherwise the text body.
func (s *Store) CopyPayload(ctx context.Context, id int64) (string, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var body string
	err := s.db.GetContext(ctx, &body, `SELECT body FROM items WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, apperrors.Newf(apperrors.ErrNotFound, "item %d not found", id)
	}
	if err != nil {
		return "", nil, apperrors.Wrap(apperrors.ErrStore, "failed to load item", err)
	}

	var img models.Image
	err = s.db.GetContext(ctx, &img,
		`SELECT id, item_id, created_at, mime, bytes FROM images WHERE item_id = ? ORDER BY id LIMIT 1`, id)
	switch {
	case err == nil:
		return img.MIME, img.Bytes, nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", nil, apperrors.Wrap(apperrors.ErrStore, "failed to load image", err)
	}

	if body == "" {
		return "", nil, apperrors.Newf(apperrors.ErrNotFound, "item %d has no content", id)
	}
	return TextMIME, []byte(body), nil
}

// HashReferenced reports whether any item still carries hash.
func (s *Store) HashReferenced(ctx context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return hashExists(ctx, s.db, hash)
}

// Stats returns item, image and starred counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Stats
	err := s.db.GetContext(ctx, &st, `
	SELECT
		(SELECT COUNT(*) FROM items) AS items,
		(SELECT COUNT(*) FROM images) AS images,
		(SELECT COUNT(*) FROM items WHERE starred = 1) AS starred
	`)
	if err != nil {
		return Stats{}, apperrors.Wrap(apperrors.ErrStore, "failed to count items", err)
	}
	return st, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	return nil
}
