package capture

import (
	"context"
	"sync"
	"time"

	"github.com/kimhsiao/memoria/internal/clipboard"
	"github.com/kimhsiao/memoria/internal/logging"
)

// DefaultPollInterval is the clipboard sampling cadence.
const DefaultPollInterval = 300 * time.Millisecond

// Sink consumes changed clipboard entries.
type Sink interface {
	Ingest(ctx context.Context, e Entry) (Result, error)
}

// Watcher samples the clipboard on a fixed cadence and hands changed
// content to a Sink. Text and image content are tracked as separate
// channels so copying an image does not hide a later text copy.
type Watcher struct {
	cap      clipboard.Capability
	sink     Sink
	interval time.Duration

	text  clipboard.Channel
	image clipboard.Channel

	mu        sync.Mutex
	isRunning bool
	stopCh    chan struct{}
	done      chan struct{}
}

// NewWatcher creates a watcher. A non-positive interval uses DefaultPollInterval.
func NewWatcher(capability clipboard.Capability, sink Sink, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{cap: capability, sink: sink, interval: interval}
}

// Start checks prerequisites and launches the polling loop. When the
// clipboard capability is unavailable the watcher stays disabled for the
// rest of the run and the error is returned.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return nil
	}

	if err := w.cap.CheckPrerequisites(ctx); err != nil {
		logging.Error("clipboard monitoring disabled", err)
		return err
	}

	w.isRunning = true
	w.stopCh = make(chan struct{})
	w.done = make(chan struct{})
	go w.loop(ctx, w.stopCh, w.done)

	logging.Info("clipboard watcher started", map[string]interface{}{"interval_ms": w.interval.Milliseconds()})
	return nil
}

// Stop ends the loop and waits for an in-flight poll to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = false
	close(w.stopCh)
	done := w.done
	w.mu.Unlock()

	<-done
	logging.Info("clipboard watcher stopped")
}

func (w *Watcher) loop(ctx context.Context, stopCh, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll samples both channels once. Failures are logged and the poll is
// skipped; channel state only changes on a successful sample.
func (w *Watcher) Poll(ctx context.Context) {
	types, err := w.cap.Types(ctx)
	if err != nil {
		logging.Debug("failed to list clipboard types", map[string]interface{}{"error": err.Error()})
		return
	}

	imageMIME := clipboard.SelectImageMIME(types)
	textMIME := clipboard.SelectTextMIME(types)
	if imageMIME == "" && textMIME == "" {
		// Neither class offered: fall back to whatever comes first.
		textMIME = clipboard.SelectMIME(types)
	}

	w.text = w.sample(ctx, w.text, textMIME, "text")
	w.image = w.sample(ctx, w.image, imageMIME, "image")
}

func (w *Watcher) sample(ctx context.Context, ch clipboard.Channel, mime, channel string) clipboard.Channel {
	var data []byte
	if mime != "" {
		var err error
		data, err = w.cap.Read(ctx, mime)
		if err != nil {
			logging.Debug("failed to read clipboard", map[string]interface{}{"channel": channel, "mime": mime, "error": err.Error()})
			return ch
		}
	}

	next, hash, changed := clipboard.Observe(ch, data)
	if !changed {
		return next
	}

	logging.Debug("clipboard changed", map[string]interface{}{"channel": channel, "mime": mime, "hash": hash})
	if _, err := w.sink.Ingest(ctx, Entry{MIME: mime, Data: data, Hash: hash}); err != nil {
		logging.Warn("failed to process clipboard entry", map[string]interface{}{"channel": channel, "hash": hash, "error": err.Error()})
	}
	return next
}
