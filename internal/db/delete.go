package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/kimhsiao/memoria/internal/errors"
)

// DeleteResult reports a delete by id set.
// Hashes lists content hashes no longer referenced by any item, whose
// artifacts may be removed.
type DeleteResult struct {
	Deleted int64
	Hashes  []string
}

// DeleteAllResult reports a bulk delete of unstarred items.
type DeleteAllResult struct {
	DeletedItems  int64
	DeletedImages int64
	Hashes        []string
}

type idHash struct {
	ID   int64  `db:"id"`
	Hash string `db:"hash"`
}

// orphaned filters hashes down to those no item references anymore.
func orphaned(ctx context.Context, tx *sqlx.Tx, hashes []string) ([]string, error) {
	seen := make(map[string]struct{}, len(hashes))
	out := []string{}
	for _, h := range hashes {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		exists, err := hashExists(ctx, tx, h)
		if err != nil {
			return nil, err
		}
		if !exists {
			out = append(out, h)
		}
	}
	return out, nil
}

// DeleteIDs deletes the unstarred items among ids in one transaction.
// Starred ids are skipped silently.
func (s *Store) DeleteIDs(ctx context.Context, ids []int64) (DeleteResult, error) {
	if len(ids) == 0 {
		return DeleteResult{}, apperrors.New(apperrors.ErrInvalidArgument, "ids must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var result DeleteResult
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		query, args, err := sqlx.In(`SELECT id, hash FROM items WHERE starred = 0 AND id IN (?)`, ids)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrStore, "failed to build delete query", err)
		}
		var victims []idHash
		if err := tx.SelectContext(ctx, &victims, tx.Rebind(query), args...); err != nil {
			return apperrors.Wrap(apperrors.ErrStore, "failed to select items for delete", err)
		}
		if len(victims) == 0 {
			result.Hashes = []string{}
			return nil
		}

		victimIDs := make([]int64, len(victims))
		hashes := make([]string, len(victims))
		for i, v := range victims {
			victimIDs[i] = v.ID
			hashes[i] = v.Hash
		}

		query, args, err = sqlx.In(`DELETE FROM items WHERE starred = 0 AND id IN (?)`, victimIDs)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrStore, "failed to build delete query", err)
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrStore, "failed to delete items", err)
		}
		if result.Deleted, err = res.RowsAffected(); err != nil {
			return apperrors.Wrap(apperrors.ErrStore, "failed to delete items", err)
		}

		result.Hashes, err = orphaned(ctx, tx, hashes)
		return err
	})
	if err != nil {
		return DeleteResult{}, err
	}
	return result, nil
}

// DeleteAllExceptStarred removes every unstarred item and its image rows.
func (s *Store) DeleteAllExceptStarred(ctx context.Context) (DeleteAllResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result DeleteAllResult
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var hashes []string
		if err := tx.SelectContext(ctx, &hashes, `SELECT hash FROM items WHERE starred = 0`); err != nil {
			return apperrors.Wrap(apperrors.ErrStore, "failed to select unstarred items", err)
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM images WHERE item_id IN (SELECT id FROM items WHERE starred = 0)`)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrStore, "failed to delete images", err)
		}
		if result.DeletedImages, err = res.RowsAffected(); err != nil {
			return apperrors.Wrap(apperrors.ErrStore, "failed to delete images", err)
		}

		res, err = tx.ExecContext(ctx, `DELETE FROM items WHERE starred = 0`)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrStore, "failed to delete items", err)
		}
		if result.DeletedItems, err = res.RowsAffected(); err != nil {
			return apperrors.Wrap(apperrors.ErrStore, "failed to delete items", err)
		}

		result.Hashes, err = orphaned(ctx, tx, hashes)
		return err
	})
	if err != nil {
		return DeleteAllResult{}, err
	}
	return result, nil
}

// DeleteItem deletes a single item regardless of its star. It returns the
// item's hash and whether that hash is now unreferenced.
func (s *Store) DeleteItem(ctx context.Context, id int64) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		hash   string
		orphan bool
	)
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &hash, `SELECT hash FROM items WHERE id = ?`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.Newf(apperrors.ErrNotFound, "item %d not found", id)
		}
		if err != nil {
			return apperrors.Wrap(apperrors.ErrStore, "failed to load item", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
			return apperrors.Wrap(apperrors.ErrStore, "failed to delete item", err)
		}
		exists, err := hashExists(ctx, tx, hash)
		if err != nil {
			return err
		}
		orphan = !exists
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return hash, orphan, nil
}

// ExpiredIDs returns ids of items created before cutoff. With unstarredOnly
// starred items are excluded.
func (s *Store) ExpiredIDs(ctx context.Context, cutoff time.Time, unstarredOnly bool) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT id FROM items WHERE created_at < ? ORDER BY id`
	if unstarredOnly {
		query = `SELECT id FROM items WHERE created_at < ? AND starred = 0 ORDER BY id`
	}
	ids := []int64{}
	if err := s.db.SelectContext(ctx, &ids, query, cutoff.Unix()); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStore, "failed to select expired items", err)
	}
	return ids, nil
}
