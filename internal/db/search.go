package db

import (
	"context"
	"strings"

	apperrors "github.com/kimhsiao/memoria/internal/errors"
	"github.com/kimhsiao/memoria/internal/models"
)

// MaxQueryTokens caps the number of terms BuildFTSQuery emits.
const MaxQueryTokens = 12

const summaryColumns = `
	i.id, i.title, i.body, i.created_at, i.updated_at, i.last_used, i.starred, i.hash,
	EXISTS(SELECT 1 FROM images m WHERE m.item_id = i.id) AS has_image`

// BuildFTSQuery turns free text into an FTS5 prefix query.
// ASCII letters, digits, '_' and '-' are kept (lower-cased); any other
// character ends the current token. Each token becomes tok*; a token
// containing '-' becomes the phrase prefix "tok"* since FTS5 barewords
// cannot hold '-'. Tokens without a letter or digit are dropped.
// An empty result means "no results", never "match everything".
func BuildFTSQuery(input string) string {
	var (
		tokens []string
		cur    strings.Builder
	)
	flush := func() {
		tok := cur.String()
		cur.Reset()
		if len(tokens) >= MaxQueryTokens || strings.Trim(tok, "_-") == "" {
			return
		}
		if strings.Contains(tok, "-") {
			tokens = append(tokens, `"`+tok+`"*`)
			return
		}
		tokens = append(tokens, tok+"*")
	}

	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			cur.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			cur.WriteRune(r + ('a' - 'A'))
		default:
			flush()
		}
	}
	flush()

	return strings.Join(tokens, " ")
}

func checkLimit(limit int) error {
	if limit < 0 {
		return apperrors.Newf(apperrors.ErrInvalidArgument, "limit must not be negative, got %d", limit)
	}
	return nil
}

// List returns summaries, starred first then most recently used.
// With starredOnly only pinned items are returned, most recently used first.
func (s *Store) List(ctx context.Context, limit int, starredOnly bool) ([]models.ItemSummary, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	if limit == 0 {
		return []models.ItemSummary{}, nil
	}

	query := `SELECT ` + summaryColumns + ` FROM items i ORDER BY i.starred DESC, i.last_used DESC, i.id DESC LIMIT ?`
	if starredOnly {
		query = `SELECT ` + summaryColumns + ` FROM items i WHERE i.starred = 1 ORDER BY i.last_used DESC, i.id DESC LIMIT ?`
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items := []models.ItemSummary{}
	if err := s.db.SelectContext(ctx, &items, query, limit); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStore, "failed to list items", err)
	}
	return items, nil
}

// Search runs a ranked prefix match over title and body.
func (s *Store) Search(ctx context.Context, text string, limit int) ([]models.ItemSummary, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	match := BuildFTSQuery(text)
	if match == "" || limit == 0 {
		return []models.ItemSummary{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items := []models.ItemSummary{}
	err := s.db.SelectContext(ctx, &items, `
	SELECT `+summaryColumns+`
	FROM items_fts
	JOIN items i ON i.id = items_fts.rowid
	WHERE items_fts MATCH ?
	ORDER BY items_fts.rank
	LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStore, "failed to search items", err)
	}
	return items, nil
}

// Gallery returns items that own an image, most recently used first.
func (s *Store) Gallery(ctx context.Context, limit int) ([]models.ItemSummary, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	if limit == 0 {
		return []models.ItemSummary{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items := []models.ItemSummary{}
	err := s.db.SelectContext(ctx, &items, `
	SELECT `+summaryColumns+`
	FROM items i
	WHERE EXISTS(SELECT 1 FROM images m WHERE m.item_id = i.id)
	ORDER BY i.last_used DESC, i.id DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStore, "failed to list gallery", err)
	}
	return items, nil
}
