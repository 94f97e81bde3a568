// Package retention expires old clipboard items on a schedule.
package retention

import (
	"context"
	"sync"
	"time"

	"github.com/kimhsiao/memoria/internal/db"
	"github.com/kimhsiao/memoria/internal/events"
	"github.com/kimhsiao/memoria/internal/logging"
)

// DefaultInterval is the time between scheduled sweeps.
const DefaultInterval = 24 * time.Hour

const secondsPerDay = 86400

// Policy decides which items expire.
type Policy struct {
	// Days is the maximum item age. Zero disables expiry.
	Days int
	// UnstarredOnly keeps starred items regardless of age.
	UnstarredOnly bool
}

// Cutoff returns the instant before which items are expired.
func (p Policy) Cutoff(now time.Time) time.Time {
	return time.Unix(now.Unix()-int64(p.Days)*secondsPerDay, 0)
}

// Enabled reports whether the policy expires anything.
func (p Policy) Enabled() bool {
	return p.Days > 0
}

// ArtifactRemover deletes on-disk files for a content hash.
type ArtifactRemover interface {
	RemoveForHash(hash string) int
}

// Report summarizes one sweep.
type Report struct {
	Candidates int
	Deleted    int
	Failed     int
	Files      int
	Cutoff     time.Time
}

// Sweeper deletes expired items and their artifacts.
type Sweeper struct {
	store     db.Expirer
	artifacts ArtifactRemover
	publisher events.Publisher
	policy    Policy
	interval  time.Duration
	now       func() time.Time

	mu        sync.Mutex
	isRunning bool
	stopCh    chan struct{}
	done      chan struct{}
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithInterval overrides the 24 hour schedule.
func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) { s.interval = d }
}

// WithClock overrides the clock used to compute the cutoff.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// WithPublisher sets where retention.swept events go.
func WithPublisher(p events.Publisher) Option {
	return func(s *Sweeper) { s.publisher = p }
}

// NewSweeper creates a sweeper for policy.
func NewSweeper(store db.Expirer, am ArtifactRemover, policy Policy, opts ...Option) *Sweeper {
	s := &Sweeper{
		store:     store,
		artifacts: am,
		publisher: events.Nop{},
		policy:    policy,
		interval:  DefaultInterval,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep runs one retention pass. Per-item failures are logged and counted;
// only failing to select candidates aborts the pass.
func (s *Sweeper) Sweep(ctx context.Context) (Report, error) {
	cutoff := s.policy.Cutoff(s.now())
	report := Report{Cutoff: cutoff}

	ids, err := s.store.ExpiredIDs(ctx, cutoff, s.policy.UnstarredOnly)
	if err != nil {
		return report, err
	}
	report.Candidates = len(ids)
	if len(ids) == 0 {
		logging.Info("retention: no items to delete", map[string]interface{}{"cutoff": cutoff.Unix()})
		return report, nil
	}

	for _, id := range ids {
		hash, orphaned, err := s.store.DeleteItem(ctx, id)
		if err != nil {
			report.Failed++
			logging.Warn("retention: failed to delete item", map[string]interface{}{"id": id, "error": err.Error()})
			continue
		}
		report.Deleted++
		if orphaned {
			report.Files += s.artifacts.RemoveForHash(hash)
		}
	}

	logging.Info("retention sweep completed", map[string]interface{}{
		"deleted":        report.Deleted,
		"failed":         report.Failed,
		"files_removed":  report.Files,
		"retention_days": s.policy.Days,
		"unstarred_only": s.policy.UnstarredOnly,
		"cutoff":         cutoff.Unix(),
	})
	s.publisher.Publish(events.RetentionSwept, map[string]interface{}{
		"deleted": report.Deleted,
		"cutoff":  cutoff.Unix(),
	})
	return report, nil
}

// Start runs a sweep immediately, then on every interval tick. time.Ticker
// drops ticks the loop was too slow to receive, so a suspended process
// sweeps once on wake rather than once per missed interval.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	if !s.policy.Enabled() {
		logging.Info("retention disabled", map[string]interface{}{"retention_days": s.policy.Days})
		return
	}

	s.isRunning = true
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})

	logging.Info("retention sweeper started", map[string]interface{}{
		"retention_days": s.policy.Days,
		"unstarred_only": s.policy.UnstarredOnly,
		"interval":       s.interval.String(),
	})
	go s.loop(ctx, s.stopCh, s.done)
}

func (s *Sweeper) loop(ctx context.Context, stopCh, done chan struct{}) {
	defer close(done)

	if _, err := s.Sweep(ctx); err != nil {
		logging.Error("initial retention sweep failed", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				logging.Error("scheduled retention sweep failed", err)
			}
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopCh)
	done := s.done
	s.mu.Unlock()

	<-done
	logging.Info("retention sweeper stopped")
}
