package events

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/kimhsiao/memoria/internal/logging"
)

// Path is the HTTP path subscribers connect to.
const Path = "/events"

// Server exposes a Hub over HTTP on a Unix socket.
type Server struct {
	hub        *Hub
	socketPath string
	listener   net.Listener
	httpServer *http.Server
}

// Listen binds socketPath, replacing a stale socket file, and restricts it
// to the owning user.
func Listen(hub *Hub, socketPath string) (*Server, error) {
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove stale event socket: %w", err)
	}
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to bind event socket: %w", err)
	}
	if err := os.Chmod(socketPath, 0o600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("failed to restrict event socket: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(Path, hub)

	return &Server{
		hub:        hub,
		socketPath: socketPath,
		listener:   ln,
		httpServer: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// SocketPath returns the bound socket path.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Serve accepts connections until Shutdown is called.
func (s *Server) Serve() error {
	logging.Info("event stream listening", map[string]interface{}{"socket": s.socketPath, "path": Path})
	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("event server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting, disconnects subscribers and removes the socket.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.hub.Close()
	if rmErr := os.Remove(s.socketPath); rmErr != nil && !os.IsNotExist(rmErr) {
		logging.Warn("failed to remove event socket", map[string]interface{}{"socket": s.socketPath, "error": rmErr.Error()})
	}
	return err
}
