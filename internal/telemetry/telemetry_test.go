package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kimhsiao/memoria/internal/events"
)

var _ events.Publisher = (*Counters)(nil)

func TestCounters_countsByType(t *testing.T) {
	c := New()
	c.Publish(events.ItemCaptured, map[string]interface{}{"id": 1})
	c.Publish(events.ItemCaptured, nil)
	c.Publish(events.ItemsDeleted, map[string]interface{}{"count": int64(3)})
	c.Publish(events.RetentionSwept, map[string]interface{}{"deleted": 2})

	s := c.Snapshot()
	assert.Equal(t, int64(2), s.Events[events.ItemCaptured])
	assert.Equal(t, int64(1), s.Events[events.ItemsDeleted])
	assert.Equal(t, int64(3), s.Items[events.ItemsDeleted])
	assert.Equal(t, int64(2), s.Items[events.RetentionSwept])
	_, ok := s.Items[events.ItemCaptured]
	assert.False(t, ok, "events without a count carry no item total")
}

func TestCounters_snapshotIsACopy(t *testing.T) {
	c := New()
	c.Publish(events.ItemTouched, nil)
	s := c.Snapshot()
	s.Events[events.ItemTouched] = 99

	assert.Equal(t, int64(1), c.Snapshot().Events[events.ItemTouched])
}

func TestCounters_uptime(t *testing.T) {
	now := time.Unix(1000, 0)
	c := newWithClock(func() time.Time { return now })
	now = now.Add(90 * time.Second)
	assert.Equal(t, int64(90), c.Snapshot().UptimeSeconds)
}

func TestCounters_concurrent(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Publish(events.ItemCaptured, nil)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(800), c.Snapshot().Events[events.ItemCaptured])
}
