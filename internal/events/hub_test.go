// Package events tests for the websocket event hub.
package events

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServer runs a hub on a temp Unix socket and returns a dialer for it.
func startServer(t *testing.T) (*Hub, *websocket.Dialer, string) {
	t.Helper()
	hub := NewHub()
	sock := filepath.Join(t.TempDir(), "events.sock")

	srv, err := Listen(hub, sock)
	require.NoError(t, err)
	go srv.Serve()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	dialer := &websocket.Dialer{
		NetDialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", sock)
		},
		HandshakeTimeout: 2 * time.Second,
	}
	return hub, dialer, sock
}

func connect(t *testing.T, hub *Hub, dialer *websocket.Dialer) *websocket.Conn {
	t.Helper()
	before := hub.ClientCount()
	conn, _, err := dialer.Dial("ws://memoria"+Path, http.Header{})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return hub.ClientCount() > before }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHub_broadcast(t *testing.T) {
	hub, dialer, _ := startServer(t)
	conn := connect(t, hub, dialer)

	hub.Publish(ItemCaptured, map[string]interface{}{"id": 7, "kind": "text"})

	msg := readJSON(t, conn)
	assert.Equal(t, ItemCaptured, msg["type"])
	data := msg["data"].(map[string]interface{})
	assert.Equal(t, float64(7), data["id"])
	assert.NotZero(t, msg["timestamp"])
}

func TestHub_subscriptionFilters(t *testing.T) {
	hub, dialer, _ := startServer(t)
	conn := connect(t, hub, dialer)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"action": "subscribe",
		"events": []string{ItemsDeleted},
	}))
	ack := readJSON(t, conn)
	assert.Equal(t, "subscribe_ack", ack["action"])

	hub.Publish(ItemCaptured, nil)
	hub.Publish(ItemsDeleted, map[string]interface{}{"count": 2})

	msg := readJSON(t, conn)
	assert.Equal(t, ItemsDeleted, msg["type"], "unsubscribed events are filtered")
}

func TestHub_ping(t *testing.T) {
	hub, dialer, _ := startServer(t)
	conn := connect(t, hub, dialer)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "ping"}))
	msg := readJSON(t, conn)
	assert.Equal(t, "pong", msg["action"])
}

func TestHub_closeDisconnects(t *testing.T) {
	hub, dialer, _ := startServer(t)
	conn := connect(t, hub, dialer)

	hub.Close()
	assert.Equal(t, 0, hub.ClientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	// Publishing after close must not block or panic.
	hub.Publish(RetentionSwept, nil)
}

func TestEnvelope_JSON(t *testing.T) {
	raw, err := json.Marshal(Envelope{Type: ItemStarred, Data: map[string]interface{}{"id": 1}, Timestamp: 5})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"item.starred","data":{"id":1},"timestamp":5}`, string(raw))
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	p.Publish(ItemTouched, nil)
}

type countingPublisher struct{ n int }

func (c *countingPublisher) Publish(string, map[string]interface{}) { c.n++ }

func TestMulti(t *testing.T) {
	a, b := &countingPublisher{}, &countingPublisher{}
	m := Multi{a, Nop{}, b}
	m.Publish(ItemCaptured, nil)
	m.Publish(ItemTouched, nil)
	assert.Equal(t, 2, a.n)
	assert.Equal(t, 2, b.n)
}
