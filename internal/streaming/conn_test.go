package streaming

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lerrors "github.com/AltairaLabs/geminilive/errors"
	"github.com/AltairaLabs/geminilive/retry"
)

// wsUpgrader is the test WebSocket upgrader.
var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// echoServer returns a test server that echoes WebSocket messages back.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
}

// wsURL converts an HTTP test server URL to a WebSocket URL.
func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// noSleepPolicy retries without waiting and counts the waits.
func noSleepPolicy(attempts int, waits *int32) retry.Policy {
	p := retry.DefaultPolicy()
	p.Attempts = attempts
	p.Sleep = func(context.Context, time.Duration) error {
		atomic.AddInt32(waits, 1)
		return nil
	}
	return p
}

func TestConn_ConnectAndSendReceive(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	ctx := context.Background()

	require.NoError(t, c.Connect(ctx))
	defer c.Close()

	require.NoError(t, c.Send(map[string]string{"hello": "world"}))

	frame, err := c.Receive(ctx)
	require.NoError(t, err)
	assert.False(t, frame.Binary)

	var got map[string]string
	require.NoError(t, json.Unmarshal(frame.Data, &got))
	assert.Equal(t, "world", got["hello"])
}

func TestConn_ReceiveBinaryFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte(`{"setupComplete":{}}`))
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	frame, err := c.Receive(context.Background())
	require.NoError(t, err)
	assert.True(t, frame.Binary)
	assert.JSONEq(t, `{"setupComplete":{}}`, string(frame.Data))
}

func TestConn_ConnectWithRetry_Success(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	var waits int32
	c := NewConn(&ConnConfig{URL: wsURL(srv), Retry: noSleepPolicy(3, &waits)})

	require.NoError(t, c.ConnectWithRetry(context.Background()))
	defer c.Close()
	assert.Zero(t, atomic.LoadInt32(&waits))
}

func TestConn_ConnectWithRetry_ExhaustsAttempts(t *testing.T) {
	var waits int32
	c := NewConn(&ConnConfig{
		URL:   "ws://localhost:1", // Nothing listening
		Retry: noSleepPolicy(2, &waits),
	})

	err := c.ConnectWithRetry(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, lerrors.ErrTransport)
	assert.Equal(t, int32(1), atomic.LoadInt32(&waits))
}

func TestConn_ConnectWithRetry_UnauthorizedNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "API key not valid", http.StatusUnauthorized)
	}))
	defer srv.Close()

	var waits int32
	c := NewConn(&ConnConfig{URL: wsURL(srv), Retry: noSleepPolicy(3, &waits)})

	err := c.ConnectWithRetry(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, lerrors.StatusCode(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Zero(t, atomic.LoadInt32(&waits))
}

func TestConn_ConnectWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewConn(&ConnConfig{URL: "ws://localhost:1"})

	err := c.ConnectWithRetry(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConn_Close_Idempotent(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, c.IsClosed())
	assert.False(t, c.IsConnected())

	select {
	case <-c.Done():
	default:
		t.Fatal("Done should be closed after Close")
	}
}

func TestConn_Close_WithoutConnect(t *testing.T) {
	c := NewConn(&ConnConfig{URL: "ws://localhost:1"})
	require.NoError(t, c.Close())
	assert.True(t, c.IsClosed())
}

func TestConn_CloseUnblocksReceive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Receive(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, c.Close())

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Receive did not return after Close")
	}
}

func TestConn_SendOnClosed(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Close())

	err := c.SendRaw([]byte("test"))
	require.Error(t, err)
	assert.ErrorIs(t, err, lerrors.ErrTransport)
	assert.Contains(t, err.Error(), "not connected")
}

func TestConn_ReceiveOnClosed(t *testing.T) {
	c := NewConn(&ConnConfig{URL: "ws://localhost:1"})
	_, err := c.Receive(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestConn_ReceiveContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Receive(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConn_RemoteCloseDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "API key not valid")
		_ = conn.WriteMessage(websocket.CloseMessage, msg)
	}))
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	_, err := c.Receive(context.Background())
	require.Error(t, err)
	assert.False(t, IsNormalClose(err))

	code, reason, ok := CloseDetails(err)
	require.True(t, ok)
	assert.Equal(t, websocket.ClosePolicyViolation, code)
	assert.Equal(t, "API key not valid", reason)
}

func TestConn_Heartbeat(t *testing.T) {
	var once sync.Once
	pinged := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetPingHandler(func(string) error {
			once.Do(func() { close(pinged) })
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	defer c.Close()

	c.StartHeartbeat(ctx, 50*time.Millisecond)

	select {
	case <-pinged:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ping")
	}
}

func TestConn_ConnectWhenClosed(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	require.NoError(t, c.Close())

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestConn_SendMarshalError(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := NewConn(&ConnConfig{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	err := c.Send(make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to marshal")
}

func TestConnConfig_Defaults(t *testing.T) {
	cfg := &ConnConfig{}
	cfg.defaults()

	assert.Equal(t, DefaultDialTimeout, cfg.DialTimeout)
	assert.Equal(t, DefaultWriteWait, cfg.WriteWait)
	assert.Equal(t, int64(DefaultMaxMessageSize), cfg.MaxMessageSize)
	assert.Equal(t, DefaultCloseGracePeriod, cfg.CloseGracePeriod)
	assert.NotNil(t, cfg.Logger)
	assert.Equal(t, "x", cfg.Redact("x"))
}

func TestConn_LogsRedactedURL(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	log := &testLogger{}
	c := NewConn(&ConnConfig{
		URL:    wsURL(srv) + "/?key=secret",
		Logger: log,
		Redact: func(s string) string { return strings.ReplaceAll(s, "secret", "[REDACTED]") },
	})

	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	log.mu.Lock()
	defer log.mu.Unlock()
	require.NotEmpty(t, log.messages)
	for _, m := range log.messages {
		assert.NotContains(t, m, "secret")
	}
}

type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) record(level, msg string, kv ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, _ := json.Marshal(kv)
	l.messages = append(l.messages, level+": "+msg+" "+string(b))
}

func (l *testLogger) Debug(msg string, kv ...interface{}) { l.record("DEBUG", msg, kv...) }
func (l *testLogger) Info(msg string, kv ...interface{})  { l.record("INFO", msg, kv...) }
func (l *testLogger) Warn(msg string, kv ...interface{})  { l.record("WARN", msg, kv...) }
func (l *testLogger) Error(msg string, kv ...interface{}) { l.record("ERROR", msg, kv...) }
