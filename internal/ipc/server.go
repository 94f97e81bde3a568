package ipc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	apperrors "github.com/kimhsiao/memoria/internal/errors"
	"github.com/kimhsiao/memoria/internal/logging"
	"github.com/kimhsiao/memoria/internal/uuid"
)

// MaxLineSize bounds a single request line.
const MaxLineSize = 4 << 20

// Handler answers one request line.
type Handler interface {
	HandleLine(ctx context.Context, line []byte) Response
}

// Server accepts command connections on a Unix socket.
type Server struct {
	handler    Handler
	socketPath string
	listener   net.Listener

	mu       sync.Mutex
	conns    map[string]net.Conn
	closing  bool
	wg       sync.WaitGroup
	baseCtx  context.Context
	cancelFn context.CancelFunc
}

// Listen binds socketPath, replacing a stale socket file, and restricts it
// to the owning user.
func Listen(handler Handler, socketPath string) (*Server, error) {
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove stale socket: %w", err)
	}
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to bind socket: %w", err)
	}
	if err := os.Chmod(socketPath, 0o600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("failed to restrict socket: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		handler:    handler,
		socketPath: socketPath,
		listener:   ln,
		conns:      make(map[string]net.Conn),
		baseCtx:    ctx,
		cancelFn:   cancel,
	}, nil
}

// SocketPath returns the bound socket path.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Serve accepts connections until Shutdown is called.
func (s *Server) Serve() error {
	logging.Info("command socket listening", map[string]interface{}{"socket": s.socketPath})
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			s.mu.Unlock()
			if closing || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logging.Warn("accept failed", map[string]interface{}{"error": err.Error()})
			time.Sleep(50 * time.Millisecond)
			continue
		}

		id := uuid.NewPrefixed("conn")
		s.mu.Lock()
		if s.closing {
			s.mu.Unlock()
			conn.Close()
			return nil
		}
		s.conns[id] = conn
		s.wg.Add(1)
		s.mu.Unlock()

		go s.serveConn(id, conn)
	}
}

func (s *Server) serveConn(id string, conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, id)
		s.mu.Unlock()
		conn.Close()
	}()

	logging.Debug("client connected", map[string]interface{}{"conn": id})

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), MaxLineSize)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		resp := s.handler.HandleLine(s.baseCtx, line)
		if err := enc.Encode(resp); err != nil {
			logging.Warn("failed to write response", map[string]interface{}{"conn": id, "error": err.Error()})
			return
		}
	}
	switch err := scanner.Err(); {
	case err == nil, errors.Is(err, os.ErrDeadlineExceeded), errors.Is(err, net.ErrClosed):
	case errors.Is(err, bufio.ErrTooLong):
		// The rest of the oversized line cannot be resynchronized.
		enc.Encode(Failure(apperrors.Newf(apperrors.ErrInvalidArgument, "request line exceeds %d bytes", MaxLineSize)))
	default:
		logging.Warn("connection read failed", map[string]interface{}{"conn": id, "error": err.Error()})
	}
	logging.Debug("client disconnected", map[string]interface{}{"conn": id})
}

// ActiveConnections returns the number of open client connections.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Shutdown stops accepting, lets in-flight requests finish and removes the
// socket. Idle connections are closed by expiring their reads. When ctx
// ends first the remaining connections are closed forcibly.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.listener.Close()
	for _, c := range s.conns {
		c.SetReadDeadline(time.Now())
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		s.cancelFn()
		s.mu.Lock()
		for _, c := range s.conns {
			c.Close()
		}
		s.mu.Unlock()
		<-done
	}
	s.cancelFn()

	if rmErr := os.Remove(s.socketPath); rmErr != nil && !os.IsNotExist(rmErr) {
		logging.Warn("failed to remove socket", map[string]interface{}{"socket": s.socketPath, "error": rmErr.Error()})
	}
	logging.Info("command socket closed", map[string]interface{}{"socket": s.socketPath})
	return err
}
