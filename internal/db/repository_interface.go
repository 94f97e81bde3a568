package db

import (
	"context"
	"time"

	"github.com/kimhsiao/memoria/internal/models"
)

// ItemWriter is the insert path used by the capture pipeline.
type ItemWriter interface {
	InsertText(ctx context.Context, body, hash string) (int64, error)
	InsertImage(ctx context.Context, mime string, data []byte, hash string) (int64, error)
	FindByHash(ctx context.Context, hash string) (int64, bool, error)
	TouchLastUsed(ctx context.Context, id int64, now time.Time) error
	HashReferenced(ctx context.Context, hash string) (bool, error)
	Dedup() bool
	Now() time.Time
}

// ItemReader serves queries from the command service.
type ItemReader interface {
	List(ctx context.Context, limit int, starredOnly bool) ([]models.ItemSummary, error)
	Search(ctx context.Context, text string, limit int) ([]models.ItemSummary, error)
	Gallery(ctx context.Context, limit int) ([]models.ItemSummary, error)
	CopyPayload(ctx context.Context, id int64) (string, []byte, error)
	Stats(ctx context.Context) (Stats, error)
}

// ItemMutator serves mutating commands.
type ItemMutator interface {
	SetStarred(ctx context.Context, id int64, value bool) (int64, error)
	DeleteIDs(ctx context.Context, ids []int64) (DeleteResult, error)
	DeleteAllExceptStarred(ctx context.Context) (DeleteAllResult, error)
	DeleteItem(ctx context.Context, id int64) (string, bool, error)
}

// Expirer is the slice of the store the retention sweeper needs.
type Expirer interface {
	ExpiredIDs(ctx context.Context, cutoff time.Time, unstarredOnly bool) ([]int64, error)
	DeleteItem(ctx context.Context, id int64) (string, bool, error)
}

// Compile-time interface verification.
var (
	_ ItemWriter  = (*Store)(nil)
	_ ItemReader  = (*Store)(nil)
	_ ItemMutator = (*Store)(nil)
	_ Expirer     = (*Store)(nil)
)
