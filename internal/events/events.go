// Package events broadcasts store changes to websocket subscribers.
package events

// Event types published by the daemon.
const (
	ItemCaptured   = "item.captured"
	ItemTouched    = "item.touched"
	ItemStarred    = "item.starred"
	ItemsDeleted   = "items.deleted"
	RetentionSwept = "retention.swept"
)

// Publisher receives daemon events. Implementations must not block.
type Publisher interface {
	Publish(eventType string, data map[string]interface{})
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(string, map[string]interface{}) {}

// Envelope wraps every message sent to subscribers.
type Envelope struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

// Multi fans every event out to each publisher in order.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(eventType string, data map[string]interface{}) {
	for _, p := range m {
		p.Publish(eventType, data)
	}
}
