package realtime

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePub struct {
	mu       sync.Mutex
	payloads []string
}

func (f *fakePub) PublishEvent(eventID uuid.UUID, event string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, event+":"+string(payload))
	return nil
}

func (f *fakePub) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

type fakeSub struct {
	mu       sync.Mutex
	subs     int
	cancels  int
	handlers map[uuid.UUID]func(event string, payload []byte)
}

func newFakeSub() *fakeSub {
	return &fakeSub{handlers: make(map[uuid.UUID]func(event string, payload []byte))}
}

func (f *fakeSub) SubscribeEvent(eventID uuid.UUID, handler func(event string, payload []byte)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs++
	f.handlers[eventID] = handler
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.cancels++
	}, nil
}

func testClient(eventID uuid.UUID, buffer int) *Client {
	return &Client{ID: uuid.New().String(), EventID: eventID, send: make(chan WSMessage, buffer)}
}

func receive(t *testing.T, c *Client) WSMessage {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	default:
		t.Fatal("no message delivered")
		return WSMessage{}
	}
}

func TestHubBroadcastDeliversToWatchers(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	eventID := uuid.New()
	watcher := testClient(eventID, 4)
	other := testClient(uuid.New(), 4)
	hub.Register(watcher)
	hub.Register(other)

	hub.BroadcastToEvent(eventID, "capacity_update", map[string]int{"registered_count": 7})

	msg := receive(t, watcher)
	assert.Equal(t, "capacity_update", msg.Event)
	var got map[string]int
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, 7, got["registered_count"])

	// The other event's watcher hears nothing.
	assert.Empty(t, other.send)
}

func TestHubFullBufferDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	eventID := uuid.New()
	slow := testClient(eventID, 1)
	hub.Register(slow)

	hub.BroadcastToEvent(eventID, "capacity_update", 1)
	hub.BroadcastToEvent(eventID, "capacity_update", 2)

	assert.Equal(t, 1, len(slow.send))
}

func TestHubWatcherCountAndUnregister(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	eventID := uuid.New()
	a := testClient(eventID, 1)
	b := testClient(eventID, 1)
	hub.Register(a)
	hub.Register(b)
	assert.Equal(t, 2, hub.WatcherCount(eventID))

	hub.Unregister(a)
	assert.Equal(t, 1, hub.WatcherCount(eventID))
	hub.Unregister(b)
	assert.Equal(t, 0, hub.WatcherCount(eventID))
}

func TestHubRedisSubscriptionLifecycle(t *testing.T) {
	pub := &fakePub{}
	sub := newFakeSub()
	hub := NewHub(nil, pub, sub)
	eventID := uuid.New()

	// One subscription per event, started by the first watcher.
	a := testClient(eventID, 4)
	b := testClient(eventID, 4)
	hub.Register(a)
	hub.Register(b)
	assert.Equal(t, 1, sub.subs)

	// Broadcasts fan out to Redis for other instances.
	hub.BroadcastToEvent(eventID, "capacity_update", "x")
	assert.Equal(t, 1, pub.count())

	// Messages arriving from Redis reach local watchers.
	sub.handlers[eventID]("capacity_update", []byte(`{"registered_count":3}`))
	msg := receive(t, a)
	assert.Equal(t, "capacity_update", msg.Event)
	assert.JSONEq(t, `{"registered_count":3}`, string(msg.Data))

	// The subscription is cancelled when the last watcher leaves.
	hub.Unregister(a)
	assert.Equal(t, 0, sub.cancels)
	hub.Unregister(b)
	assert.Equal(t, 1, sub.cancels)
}

func TestHubSendToClient(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	eventID := uuid.New()
	a := testClient(eventID, 4)
	b := testClient(eventID, 4)
	hub.Register(a)
	hub.Register(b)

	hub.SendToClient(eventID, a.ID, "capacity_snapshot", map[string]int{"registered_count": 12})

	msg := receive(t, a)
	assert.Equal(t, "capacity_snapshot", msg.Event)
	assert.Empty(t, b.send)

	// Unknown clients are a no-op.
	hub.SendToClient(eventID, "missing", "capacity_snapshot", nil)
	hub.SendToClient(uuid.New(), a.ID, "capacity_snapshot", nil)
}
