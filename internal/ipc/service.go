package ipc

import (
	"context"
	"sort"

	"github.com/kimhsiao/memoria/internal/artifacts"
	"github.com/kimhsiao/memoria/internal/config"
	"github.com/kimhsiao/memoria/internal/db"
	apperrors "github.com/kimhsiao/memoria/internal/errors"
	"github.com/kimhsiao/memoria/internal/events"
	"github.com/kimhsiao/memoria/internal/logging"
	"github.com/kimhsiao/memoria/internal/models"
	"github.com/kimhsiao/memoria/internal/telemetry"
)

// Store is the part of the content store the command service uses.
type Store interface {
	db.ItemReader
	db.ItemMutator
}

// ClipboardWriter places bytes on the system clipboard.
type ClipboardWriter interface {
	Write(ctx context.Context, mime string, data []byte) error
}

type handlerFunc func(ctx context.Context, req *Request) (interface{}, error)

// Service dispatches parsed requests to handlers.
type Service struct {
	store     Store
	artifacts *artifacts.Manager
	clipboard ClipboardWriter
	settings  config.Settings
	publisher events.Publisher
	activity  *telemetry.Counters
	handlers  map[string]handlerFunc
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithActivity reports c under "activity" in get_stats.
func WithActivity(c *telemetry.Counters) ServiceOption {
	return func(s *Service) { s.activity = c }
}

// NewService wires the command handlers. A nil publisher discards events.
func NewService(store Store, am *artifacts.Manager, cb ClipboardWriter, settings config.Settings, pub events.Publisher, opts ...ServiceOption) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	s := &Service{
		store:     store,
		artifacts: am,
		clipboard: cb,
		settings:  settings,
		publisher: pub,
	}
	s.handlers = map[string]handlerFunc{
		"list":                      s.list,
		"search":                    s.search,
		"gallery":                   s.gallery,
		"star":                      s.star,
		"copy":                      s.copy,
		"delete":                    s.delete,
		"delete_all_except_starred": s.deleteAllExceptStarred,
		"delete_items":              s.deleteItems,
		"get_settings":              s.getSettings,
		"get_stats":                 s.getStats,
		"ping":                      s.ping,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Commands lists the recognized command names.
func (s *Service) Commands() []string {
	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HandleLine parses and executes one request line.
func (s *Service) HandleLine(ctx context.Context, line []byte) Response {
	req, err := ParseRequest(line)
	if err != nil {
		return Failure(err)
	}
	return s.Dispatch(ctx, req)
}

// Dispatch executes req. Every failure becomes an error response.
func (s *Service) Dispatch(ctx context.Context, req *Request) Response {
	h, ok := s.handlers[req.Cmd]
	if !ok {
		return Failure(apperrors.Newf(apperrors.ErrInvalidArgument, "unknown cmd: %s", req.Cmd))
	}
	data, err := h(ctx, req)
	if err != nil {
		logging.Debug("command failed", map[string]interface{}{"cmd": req.Cmd, "code": string(apperrors.CodeOf(err)), "error": err.Error()})
		return Failure(err)
	}
	return Success(data)
}

// withThumbnails fills thumbnail paths for image summaries.
func (s *Service) withThumbnails(items []models.ItemSummary) []models.ItemSummary {
	for i := range items {
		if items[i].HasImage && items[i].Hash != "" {
			items[i].ThumbnailPath = s.artifacts.ThumbnailPath(items[i].Hash)
		}
	}
	return items
}

func (s *Service) list(ctx context.Context, req *Request) (interface{}, error) {
	limit, err := req.Limit()
	if err != nil {
		return nil, err
	}
	starredOnly, _, err := req.Bool("starred_only")
	if err != nil {
		return nil, err
	}
	items, err := s.store.List(ctx, limit, starredOnly)
	if err != nil {
		return nil, err
	}
	return s.withThumbnails(items), nil
}

func (s *Service) search(ctx context.Context, req *Request) (interface{}, error) {
	query, ok, err := req.String("query")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.New(apperrors.ErrInvalidArgument, "search requires query")
	}
	limit, err := req.Limit()
	if err != nil {
		return nil, err
	}
	items, err := s.store.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return s.withThumbnails(items), nil
}

func (s *Service) gallery(ctx context.Context, req *Request) (interface{}, error) {
	limit, err := req.Limit()
	if err != nil {
		return nil, err
	}
	items, err := s.store.Gallery(ctx, limit)
	if err != nil {
		return nil, err
	}
	return s.withThumbnails(items), nil
}

func (s *Service) star(ctx context.Context, req *Request) (interface{}, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return nil, err
	}
	value, ok, err := req.Bool("value")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.New(apperrors.ErrInvalidArgument, "star requires value")
	}

	updated, err := s.store.SetStarred(ctx, id, value)
	if err != nil {
		return nil, err
	}
	if updated > 0 {
		s.publisher.Publish(events.ItemStarred, map[string]interface{}{"id": id, "starred": value})
	}
	return map[string]interface{}{"updated": updated}, nil
}

// copy reads the payload under the store lock and writes it to the
// clipboard after the lock is released.
func (s *Service) copy(ctx context.Context, req *Request) (interface{}, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return nil, err
	}
	mime, data, err := s.store.CopyPayload(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.clipboard.Write(ctx, mime, data); err != nil {
		if apperrors.CodeOf(err) == "" {
			err = apperrors.Wrap(apperrors.ErrExternalTool, "failed to write clipboard", err)
		}
		return nil, err
	}
	logging.Info("copied item to clipboard", map[string]interface{}{"id": id, "mime": mime, "bytes": len(data)})
	return map[string]interface{}{"copied": true}, nil
}

func (s *Service) removeArtifacts(hashes []string) int {
	removed := 0
	for _, h := range hashes {
		removed += s.artifacts.RemoveForHash(h)
	}
	return removed
}

func (s *Service) delete(ctx context.Context, req *Request) (interface{}, error) {
	ids, err := req.IDs()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidArgument, "ids array cannot be empty")
	}

	res, err := s.store.DeleteIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	files := s.removeArtifacts(res.Hashes)
	if res.Deleted > 0 {
		s.publisher.Publish(events.ItemsDeleted, map[string]interface{}{"count": res.Deleted, "cmd": req.Cmd})
	}
	logging.Info("deleted items", map[string]interface{}{"requested": len(ids), "deleted": res.Deleted, "files_removed": files})
	return map[string]interface{}{"deleted": res.Deleted}, nil
}

func (s *Service) deleteAllExceptStarred(ctx context.Context, req *Request) (interface{}, error) {
	res, err := s.store.DeleteAllExceptStarred(ctx)
	if err != nil {
		return nil, err
	}
	files := s.removeArtifacts(res.Hashes)
	if res.DeletedItems > 0 {
		s.publisher.Publish(events.ItemsDeleted, map[string]interface{}{"count": res.DeletedItems, "cmd": req.Cmd})
	}
	logging.Info("deleted all unstarred items", map[string]interface{}{
		"deleted_items":  res.DeletedItems,
		"deleted_images": res.DeletedImages,
		"files_removed":  files,
	})
	return map[string]interface{}{
		"deleted_items":  res.DeletedItems,
		"deleted_images": res.DeletedImages,
	}, nil
}

// deleteItems removes each id regardless of its star. Failures are logged
// and the remaining ids are still attempted.
func (s *Service) deleteItems(ctx context.Context, req *Request) (interface{}, error) {
	ids, err := req.IDs()
	if err != nil {
		return nil, err
	}

	var count int64
	for _, id := range ids {
		hash, orphan, err := s.store.DeleteItem(ctx, id)
		if err != nil {
			logging.Warn("failed to delete item by id", map[string]interface{}{"id": id, "error": err.Error()})
			continue
		}
		count++
		if orphan {
			s.artifacts.RemoveForHash(hash)
		}
	}
	if count > 0 {
		s.publisher.Publish(events.ItemsDeleted, map[string]interface{}{"count": count, "cmd": req.Cmd})
	}
	return map[string]interface{}{"deleted_count": count}, nil
}

func (s *Service) getSettings(context.Context, *Request) (interface{}, error) {
	return s.settings, nil
}

func (s *Service) getStats(ctx context.Context, _ *Request) (interface{}, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	usage, err := s.artifacts.Usage()
	if err != nil {
		return nil, err
	}
	out := map[string]interface{}{
		"items":     stats.Items,
		"images":    stats.Images,
		"starred":   stats.Starred,
		"artifacts": usage,
	}
	if s.activity != nil {
		out["activity"] = s.activity.Snapshot()
	}
	return out, nil
}

func (s *Service) ping(context.Context, *Request) (interface{}, error) {
	return map[string]interface{}{"pong": true}, nil
}
