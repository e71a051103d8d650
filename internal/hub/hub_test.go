package hub

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridscope/internal/session"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h, cancel
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg, ok := <-c.Events():
		require.True(t, ok, "client channel closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestBroadcastReachesSubscribers(t *testing.T) {
	h, _ := startHub(t)

	a, err := h.Subscribe()
	require.NoError(t, err)
	b, err := h.Subscribe()
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, h.ClientCount())

	h.Broadcast(session.Event{Type: session.EventNotice, Payload: session.Notice{Level: "warn", Message: "hi"}})

	for _, c := range []*Client{a, b} {
		msg := receive(t, c)
		assert.Equal(t, "notice", msg.Type)
		var event struct {
			Type    string         `json:"type"`
			Payload session.Notice `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(msg.Data, &event))
		assert.Equal(t, "hi", event.Payload.Message)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h, _ := startHub(t)

	c, err := h.Subscribe()
	require.NoError(t, err)
	h.Unsubscribe(c)

	_, ok := <-c.Events()
	assert.False(t, ok)
	assert.Equal(t, 0, h.ClientCount())
}

func TestStoppedHub(t *testing.T) {
	h, cancel := startHub(t)
	c, err := h.Subscribe()
	require.NoError(t, err)

	cancel()
	_, ok := <-c.Events()
	assert.False(t, ok)

	_, err = h.Subscribe()
	assert.ErrorIs(t, err, ErrStopped)
	h.Unsubscribe(c)
}

func TestForwardRelaysBus(t *testing.T) {
	h, _ := startHub(t)
	bus := session.NewEventBus()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	forwarding := make(chan struct{})
	go func() {
		close(forwarding)
		_ = h.Forward(ctx, bus)
	}()
	<-forwarding

	c, err := h.Subscribe()
	require.NoError(t, err)

	// Forward subscribes asynchronously; publish until something arrives
	deadline := time.After(2 * time.Second)
	for {
		bus.Publish(session.Event{Type: session.EventTopology, Payload: session.TopologyInfo{Case: "case9"}})
		select {
		case msg := <-c.Events():
			assert.Equal(t, "topology_replaced", msg.Type)
			assert.Contains(t, string(msg.Data), `"case":"case9"`)
			return
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatal("event was not forwarded")
		}
	}
}

func TestServeHTTPStreamsEvents(t *testing.T) {
	h, _ := startHub(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, ": connected"))
	_, err = r.ReadString('\n')
	require.NoError(t, err)

	h.Broadcast(session.Event{Type: session.EventFrame, Payload: map[string]int{"seq": 7}})

	line, err = r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: frame\n", line)
	line, err = r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, `data: {"type":"frame","payload":{"seq":7}}`+"\n", line)
}
