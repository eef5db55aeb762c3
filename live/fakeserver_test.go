package live

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/AltairaLabs/geminilive/retry"
)

const testCredential = "test-key"

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// serverConn is the server side of one accepted connection.
type serverConn struct {
	ws  *websocket.Conn
	wmu sync.Mutex

	// received carries every inbound message in order.
	received chan map[string]any
	closed   chan struct{}
}

func (sc *serverConn) sendJSON(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	sc.sendRaw(t, websocket.BinaryMessage, data)
}

func (sc *serverConn) sendRaw(t *testing.T, messageType int, data []byte) {
	t.Helper()
	sc.wmu.Lock()
	defer sc.wmu.Unlock()
	require.NoError(t, sc.ws.WriteMessage(messageType, data))
}

func (sc *serverConn) ackSetup(t *testing.T) {
	t.Helper()
	sc.sendJSON(t, map[string]any{"setupComplete": map[string]any{}})
}

func (sc *serverConn) sendAudio(t *testing.T, chunks ...[]byte) {
	t.Helper()
	parts := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, map[string]any{
			"inlineData": map[string]any{
				"mimeType": "audio/pcm;rate=24000",
				"data":     base64.StdEncoding.EncodeToString(c),
			},
		})
	}
	sc.sendJSON(t, map[string]any{
		"serverContent": map[string]any{"modelTurn": map[string]any{"parts": parts}},
	})
}

func (sc *serverConn) closeWith(t *testing.T, code int, reason string) {
	t.Helper()
	sc.wmu.Lock()
	defer sc.wmu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = sc.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = sc.ws.Close()
}

// next returns the next inbound message or fails after timeout.
func (sc *serverConn) next(t *testing.T) map[string]any {
	t.Helper()
	select {
	case msg := <-sc.received:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client message")
		return nil
	}
}

// expectSilence fails if any message arrives within d.
func (sc *serverConn) expectSilence(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case msg := <-sc.received:
		t.Fatalf("unexpected client message: %v", msg)
	case <-time.After(d):
	}
}

// fakeServer is a minimal live endpoint.
type fakeServer struct {
	srv *httptest.Server

	// autoAck replies to setup with setupComplete.
	autoAck bool

	// reject, when non-zero, fails the upgrade with this status.
	reject atomic.Int32

	dials    atomic.Int32
	accepted chan *serverConn
	lastURL  atomic.Value
}

func newFakeServer(t *testing.T, autoAck bool) *fakeServer {
	t.Helper()
	fs := &fakeServer{
		autoAck:  autoAck,
		accepted: make(chan *serverConn, 8),
	}
	fs.srv = httptest.NewServer(http.HandlerFunc(fs.handle))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	fs.dials.Add(1)
	fs.lastURL.Store(r.URL.String())
	if status := fs.reject.Load(); status != 0 {
		http.Error(w, "rejected", int(status))
		return
	}

	ws, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	sc := &serverConn{
		ws:       ws,
		received: make(chan map[string]any, 64),
		closed:   make(chan struct{}),
	}
	fs.accepted <- sc

	defer close(sc.closed)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if _, ok := msg["setup"]; ok && fs.autoAck {
			sc.wmu.Lock()
			_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"setupComplete":true}`))
			sc.wmu.Unlock()
		}
		sc.received <- msg
	}
}

func (fs *fakeServer) host() string {
	u, _ := url.Parse(fs.srv.URL)
	return u.Host
}

func (fs *fakeServer) requestURL() string {
	s, _ := fs.lastURL.Load().(string)
	return s
}

// accept returns the next accepted connection.
func (fs *fakeServer) accept(t *testing.T) *serverConn {
	t.Helper()
	select {
	case sc := <-fs.accepted:
		return sc
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connection")
		return nil
	}
}

func testConfig(fs *fakeServer) SessionConfig {
	cfg := DefaultSessionConfig()
	cfg.Host = fs.host()
	return cfg
}

func newTestClient(t *testing.T, fs *fakeServer, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithInsecureTransport(),
		WithRetryPolicy(retry.Policy{Attempts: 1}),
	}
	c, err := NewClient(testConfig(fs), append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// nextEvent returns the next event of type T, skipping others.
func nextEvent[T Event](t *testing.T, c *Client) T {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-c.Events():
			if !ok {
				t.Fatal("event channel closed")
			}
			if e, ok := ev.(T); ok {
				return e
			}
		case <-timeout:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

// eventRecorder collects events synchronously through a listener.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) handshakes() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []bool
	for _, ev := range r.events {
		if h, ok := ev.(HandshakeChangedEvent); ok {
			out = append(out, h.Complete)
		}
	}
	return out
}

func (r *eventRecorder) count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if EventType(ev) == kind {
			n++
		}
	}
	return n
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

func mapAt(t *testing.T, m map[string]any, path string) map[string]any {
	t.Helper()
	cur := m
	for _, k := range strings.Split(path, ".") {
		next, ok := cur[k].(map[string]any)
		require.Truef(t, ok, "missing object at %q (key %q)", path, k)
		cur = next
	}
	return cur
}
