package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// pipeClient returns a Client backed by a real server-side connection whose
// write pump is not running, so queued frames stay in c.send.
func pipeClient(t *testing.T, roomID string) *Client {
	t.Helper()

	conns := make(chan *websocket.Conn, 1)
	up := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	t.Cleanup(ts.Close)

	peer, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { peer.Close() })

	var conn *websocket.Conn
	select {
	case conn = <-conns:
	case <-time.After(2 * time.Second):
		t.Fatal("server side of websocket never arrived")
	}
	c := newClient(conn, roomID, "user", zap.NewNop().Sugar())
	t.Cleanup(c.close)
	return c
}

func testFrame(event string) frame {
	return frame{Event: event, Data: json.RawMessage(`{}`)}
}

func TestHub_JoinLeaveCount(t *testing.T) {
	h := NewHub()
	a := pipeClient(t, "room-1")
	b := pipeClient(t, "room-1")
	c := pipeClient(t, "room-2")

	h.Join(a)
	h.Join(b)
	h.Join(c)
	assert.Equal(t, 2, h.Count("room-1"))
	assert.Equal(t, 1, h.Count("room-2"))
	assert.Equal(t, 0, h.Count("nope"))

	h.Leave(a)
	h.Leave(a)
	assert.Equal(t, 1, h.Count("room-1"))

	h.Leave(c)
	h.mu.RLock()
	_, exists := h.rooms["room-2"]
	h.mu.RUnlock()
	assert.False(t, exists, "empty room should be dropped")
}

func TestHub_BroadcastSkipsSender(t *testing.T) {
	h := NewHub()
	a := pipeClient(t, "room-1")
	b := pipeClient(t, "room-1")
	other := pipeClient(t, "room-2")
	h.Join(a)
	h.Join(b)
	h.Join(other)

	h.Broadcast("room-1", a, testFrame(EventChatMessage))

	assert.Len(t, a.send, 0)
	require.Len(t, b.send, 1)
	assert.Equal(t, EventChatMessage, (<-b.send).Event)
	assert.Len(t, other.send, 0)
}

func TestHub_BroadcastNilSenderReachesEveryone(t *testing.T) {
	h := NewHub()
	a := pipeClient(t, "room-1")
	b := pipeClient(t, "room-1")
	h.Join(a)
	h.Join(b)

	h.Broadcast("room-1", nil, testFrame(EventSnapshot))
	assert.Len(t, a.send, 1)
	assert.Len(t, b.send, 1)
}

func TestHub_SlowClientDisconnected(t *testing.T) {
	h := NewHub()
	sender := pipeClient(t, "room-1")
	slow := pipeClient(t, "room-1")
	h.Join(sender)
	h.Join(slow)

	for range sendQueueSize {
		h.Broadcast("room-1", sender, testFrame(EventFileContentChanged))
	}
	select {
	case <-slow.done:
		t.Fatal("client closed before its queue was full")
	default:
	}

	h.Broadcast("room-1", sender, testFrame(EventFileContentChanged))
	select {
	case <-slow.done:
	default:
		t.Fatal("expected slow client to be closed")
	}

	// Frames for a closed client are dropped without reporting it again.
	assert.True(t, slow.enqueue(testFrame(EventChatMessage)))
}

func TestHub_CloseAll(t *testing.T) {
	h := NewHub()
	a := pipeClient(t, "room-1")
	b := pipeClient(t, "room-2")
	h.Join(a)
	h.Join(b)

	h.CloseAll()

	for _, c := range []*Client{a, b} {
		select {
		case <-c.done:
		default:
			t.Fatal("expected client to be closed")
		}
	}
	assert.Equal(t, 0, h.Count("room-1"))
	assert.Equal(t, 0, h.Count("room-2"))
}

func TestClient_EncodeLegacyNames(t *testing.T) {
	c := pipeClient(t, "room-1")

	env := c.encode(frame{Event: EventSnapshot})
	assert.Equal(t, EventSnapshot, env.Event)
	assert.JSONEq(t, `null`, string(env.Data))

	c.legacy.Store(true)
	assert.Equal(t, "project-data", c.encode(frame{Event: EventSnapshot}).Event)
	assert.Equal(t, "code-change", c.encode(frame{Event: EventFileContentChanged}).Event)
	assert.Equal(t, "new-message", c.encode(frame{Event: EventChatMessage}).Event)
	assert.Equal(t, EventFileCreated, c.encode(frame{Event: EventFileCreated}).Event)
}
