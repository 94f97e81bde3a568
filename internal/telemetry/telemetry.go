// Package telemetry keeps local activity counters for the daemon.
//
// Counters never leave the process: they are only reported through the
// get_stats command. Counters is an events.Publisher so it can be attached
// next to the websocket hub.
package telemetry

import (
	"sync"
	"time"
)

// Counters tallies published events by type.
type Counters struct {
	mu      sync.Mutex
	started time.Time
	events  map[string]int64
	items   map[string]int64
	now     func() time.Time
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	UptimeSeconds int64            `json:"uptime_seconds"`
	Events        map[string]int64 `json:"events"`
	// Items sums the "count" or "deleted" field of bulk events.
	Items map[string]int64 `json:"items"`
}

// New starts counting from now.
func New() *Counters {
	return newWithClock(time.Now)
}

func newWithClock(now func() time.Time) *Counters {
	return &Counters{
		started: now(),
		events:  map[string]int64{},
		items:   map[string]int64{},
		now:     now,
	}
}

// Publish implements events.Publisher.
func (c *Counters) Publish(eventType string, data map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events[eventType]++
	for _, key := range []string{"count", "deleted"} {
		if n, ok := toInt64(data[key]); ok {
			c.items[eventType] += n
			break
		}
	}
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}

// Snapshot copies the current counts.
func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		UptimeSeconds: int64(c.now().Sub(c.started) / time.Second),
		Events:        make(map[string]int64, len(c.events)),
		Items:         make(map[string]int64, len(c.items)),
	}
	for k, v := range c.events {
		s.Events[k] = v
	}
	for k, v := range c.items {
		s.Items[k] = v
	}
	return s
}
