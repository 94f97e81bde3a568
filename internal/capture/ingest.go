// Package capture watches the clipboard and persists new content.
package capture

import (
	"context"
	"strings"
	"time"

	"github.com/kimhsiao/memoria/internal/artifacts"
	"github.com/kimhsiao/memoria/internal/db"
	apperrors "github.com/kimhsiao/memoria/internal/errors"
	"github.com/kimhsiao/memoria/internal/events"
	"github.com/kimhsiao/memoria/internal/logging"
	"github.com/kimhsiao/memoria/internal/media"
)

// Entry is one changed clipboard sample.
type Entry struct {
	MIME string
	Data []byte
	Hash string
}

// Outcome describes what Ingest did with an entry.
type Outcome int

const (
	// Inserted means a new item row was created.
	Inserted Outcome = iota
	// Touched means an existing item with the same hash had last_used refreshed.
	Touched
)

func (o Outcome) String() string {
	if o == Touched {
		return "touched"
	}
	return "inserted"
}

// Result reports the item an entry landed on.
type Result struct {
	Outcome Outcome
	ID      int64
	Kind    string
}

// Ingestor is the insert path: dedup gate, artifacts, then the store.
type Ingestor struct {
	store     db.ItemWriter
	artifacts *artifacts.Manager
	publisher events.Publisher
	thumbSize int
}

// NewIngestor wires the insert path. A nil publisher discards events.
func NewIngestor(store db.ItemWriter, am *artifacts.Manager, pub events.Publisher) *Ingestor {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Ingestor{store: store, artifacts: am, publisher: pub, thumbSize: media.ThumbnailSize}
}

// classify resolves the MIME an entry is stored under. Labels outside
// image/* and text/* are replaced by content sniffing.
func classify(e Entry) (mime string, isImage bool) {
	switch {
	case media.IsImageMIME(e.MIME):
		return e.MIME, true
	case media.IsTextMIME(e.MIME):
		return e.MIME, false
	}
	sniffed := media.Sniff(e.Data)
	return sniffed, media.IsImageMIME(sniffed)
}

// Ingest stores entry, or refreshes the existing row when dedup is on and
// the hash is already known.
func (in *Ingestor) Ingest(ctx context.Context, e Entry) (Result, error) {
	if len(e.Data) == 0 {
		return Result{}, apperrors.New(apperrors.ErrInvalidArgument, "empty clipboard entry")
	}

	mime, isImage := classify(e)
	kind := "text"
	if isImage {
		kind = "image"
	}

	if in.store.Dedup() {
		id, found, err := in.store.FindByHash(ctx, e.Hash)
		if err != nil {
			return Result{}, err
		}
		if found {
			return in.touch(ctx, id, e.Hash, kind)
		}
	}

	var (
		id  int64
		err error
	)
	if isImage {
		id, err = in.insertImage(ctx, mime, e)
	} else {
		id, err = in.store.InsertText(ctx, strings.ToValidUTF8(string(e.Data), "�"), e.Hash)
	}

	if apperrors.Is(err, apperrors.ErrConflict) {
		// Another capture of the same content committed first.
		winner, found, ferr := in.store.FindByHash(ctx, e.Hash)
		if ferr != nil {
			return Result{}, ferr
		}
		if found {
			return in.touch(ctx, winner, e.Hash, kind)
		}
	}
	if err != nil {
		return Result{}, err
	}

	logging.Info("captured clipboard item", map[string]interface{}{"id": id, "kind": kind, "mime": mime, "hash": e.Hash})
	in.publisher.Publish(events.ItemCaptured, map[string]interface{}{"id": id, "kind": kind, "hash": e.Hash})
	return Result{Outcome: Inserted, ID: id, Kind: kind}, nil
}

func (in *Ingestor) touch(ctx context.Context, id int64, hash, kind string) (Result, error) {
	now := in.store.Now()
	if err := in.store.TouchLastUsed(ctx, id, now); err != nil {
		return Result{}, err
	}
	logging.Debug("duplicate capture, refreshed last_used", map[string]interface{}{"id": id, "hash": hash})
	in.publisher.Publish(events.ItemTouched, map[string]interface{}{"id": id, "last_used": now.Unix()})
	return Result{Outcome: Touched, ID: id, Kind: kind}, nil
}

// insertImage builds the thumbnail first, writes both artifacts, and only
// then inserts the rows, so a committed image row always has its files.
func (in *Ingestor) insertImage(ctx context.Context, mime string, e Entry) (int64, error) {
	start := time.Now()
	thumb, err := media.Thumbnail(e.Data, in.thumbSize)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrArtifact, "failed to generate thumbnail", err)
	}

	if _, err := in.artifacts.SaveOriginal(e.Hash, media.ExtensionForMIME(mime), e.Data); err != nil {
		in.cleanup(ctx, e.Hash)
		return 0, err
	}
	if _, err := in.artifacts.SaveThumbnail(e.Hash, thumb); err != nil {
		in.cleanup(ctx, e.Hash)
		return 0, err
	}

	id, err := in.store.InsertImage(ctx, mime, e.Data, e.Hash)
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrConflict) {
			in.cleanup(ctx, e.Hash)
		}
		return 0, err
	}

	logging.Debug("stored image artifacts", map[string]interface{}{
		"hash":        e.Hash,
		"original":    in.artifacts.OriginalPath(e.Hash, media.ExtensionForMIME(mime)),
		"thumbnail":   in.artifacts.ThumbnailPath(e.Hash),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return id, nil
}

// cleanup removes artifacts for hash unless some row still references it.
func (in *Ingestor) cleanup(ctx context.Context, hash string) {
	referenced, err := in.store.HashReferenced(ctx, hash)
	if err != nil {
		logging.Warn("failed to check artifact references, keeping files", map[string]interface{}{"hash": hash, "error": err.Error()})
		return
	}
	if !referenced {
		in.artifacts.RemoveForHash(hash)
	}
}
