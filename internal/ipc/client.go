package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

// DefaultClientTimeout bounds one round trip.
const DefaultClientTimeout = 5 * time.Second

// Reply is a decoded response with data left raw for the caller.
type Reply struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Client performs single request/response round trips.
type Client struct {
	SocketPath string
	Timeout    time.Duration
}

// NewClient creates a client for socketPath.
func NewClient(socketPath string) *Client {
	return &Client{SocketPath: socketPath, Timeout: DefaultClientTimeout}
}

// RoundTrip sends line and returns the raw response line without the
// trailing newline.
func (c *Client) RoundTrip(ctx context.Context, line []byte) ([]byte, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultClientTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.SocketPath, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if _, err := conn.Write(append(append([]byte(nil), line...), '\n')); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	reader := bufio.NewReaderSize(conn, 64*1024)
	resp, err := reader.ReadBytes('\n')
	if err != nil && len(resp) == 0 {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if n := len(resp); n > 0 && resp[n-1] == '\n' {
		resp = resp[:n-1]
	}
	return resp, nil
}

// Call sends cmd with args and decodes the reply. A response with ok=false
// is returned as an error carrying the server's message.
func (c *Client) Call(ctx context.Context, cmd string, args map[string]interface{}) (json.RawMessage, error) {
	line, err := json.Marshal(map[string]interface{}{"cmd": cmd, "args": args})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	raw, err := c.RoundTrip(ctx, line)
	if err != nil {
		return nil, err
	}
	var reply Reply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("invalid response: %w", err)
	}
	if !reply.OK {
		return nil, errors.New(reply.Error)
	}
	return reply.Data, nil
}
