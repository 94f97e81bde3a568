// Package main runs the memoria clipboard history daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kimhsiao/memoria/internal/artifacts"
	"github.com/kimhsiao/memoria/internal/capture"
	"github.com/kimhsiao/memoria/internal/clipboard"
	"github.com/kimhsiao/memoria/internal/config"
	"github.com/kimhsiao/memoria/internal/db"
	"github.com/kimhsiao/memoria/internal/events"
	"github.com/kimhsiao/memoria/internal/instance"
	"github.com/kimhsiao/memoria/internal/ipc"
	"github.com/kimhsiao/memoria/internal/logging"
	"github.com/kimhsiao/memoria/internal/retention"
	"github.com/kimhsiao/memoria/internal/telemetry"
)

// Version is set at build time.
var Version = "0.1.0"

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr, clipboard.NewWayland(0)); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "memoriad: %v\n", err)
		os.Exit(1)
	}
}

// run starts every component and blocks until ctx is cancelled. The
// capability is injected so tests can run without a Wayland session.
func run(ctx context.Context, args []string, stderr io.Writer, cb clipboard.Capability) error {
	flags, err := config.ParseFlags("memoriad", args, stderr)
	if err != nil {
		return err
	}
	cfg, cfgPath, err := config.LoadWithFlags(flags)
	if err != nil {
		return err
	}

	logging.Init(stderr, logging.ParseLevel(cfg.Daemon.LogLevel))
	logging.Info("memoriad starting", map[string]interface{}{
		"version":  Version,
		"config":   cfgPath,
		"data_dir": cfg.Daemon.DataDir,
	})

	lock, err := instance.Acquire(cfg.Daemon.DataDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logging.Warn("failed to release instance lock", map[string]interface{}{"error": err.Error()})
		}
	}()

	database, err := db.Open(ctx, cfg.Daemon.DataDir)
	if err != nil {
		return err
	}
	store := db.NewStore(database, db.WithDedup(cfg.Behavior.Dedupe))
	defer store.Close()
	logging.Info("database ready", map[string]interface{}{"path": database.Path})

	am, err := artifacts.New(cfg.Daemon.DataDir)
	if err != nil {
		return err
	}

	activity := telemetry.New()
	var publisher events.Publisher = activity
	var eventServer *events.Server
	if cfg.Events.Enabled {
		hub := events.NewHub()
		eventServer, err = events.Listen(hub, cfg.Events.SocketPath)
		if err != nil {
			hub.Close()
			return err
		}
		publisher = events.Multi{activity, hub}
		go func() {
			if err := eventServer.Serve(); err != nil {
				logging.Error("event stream stopped", err)
			}
		}()
	}

	if w, ok := cb.(*clipboard.Wayland); ok {
		w.Timeout = cfg.ToolTimeout()
	}

	ingestor := capture.NewIngestor(store, am, publisher)
	watcher := capture.NewWatcher(cb, ingestor, cfg.PollInterval())
	if err := watcher.Start(ctx); err != nil {
		// Queries and commands keep working without capture.
		logging.Warn("continuing without clipboard capture", map[string]interface{}{"error": err.Error()})
	}

	sweeper := retention.NewSweeper(store, am, retention.Policy{
		Days:          cfg.Retention.Days,
		UnstarredOnly: cfg.Retention.DeleteUnstarredOnly,
	}, retention.WithPublisher(publisher))
	sweeper.Start(ctx)

	service := ipc.NewService(store, am, cb, cfg.Settings(), publisher, ipc.WithActivity(activity))
	server, err := ipc.Listen(service, cfg.Daemon.SocketPath)
	if err != nil {
		watcher.Stop()
		sweeper.Stop()
		shutdownEvents(eventServer)
		return err
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve() }()

	select {
	case <-ctx.Done():
		logging.Info("shutdown signal received")
	case err = <-serveErr:
		if err != nil {
			logging.Error("command server stopped", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := server.Shutdown(shutdownCtx); serr != nil {
		logging.Warn("command server shutdown incomplete", map[string]interface{}{"error": serr.Error()})
	}
	watcher.Stop()
	sweeper.Stop()
	shutdownEvents(eventServer)

	logging.Info("memoriad stopped")
	return err
}

func shutdownEvents(s *events.Server) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		logging.Warn("event stream shutdown incomplete", map[string]interface{}{"error": err.Error()})
	}
}
