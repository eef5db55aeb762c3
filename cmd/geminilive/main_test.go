package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AltairaLabs/geminilive/audio"
	"github.com/AltairaLabs/geminilive/config"
	"github.com/AltairaLabs/geminilive/live"
	"github.com/AltairaLabs/geminilive/retry"
	"github.com/AltairaLabs/geminilive/tools"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configFile = ""
	t.Cleanup(func() { configFile = "" })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "geminilive version")
}

func TestIsRelease(t *testing.T) {
	assert.True(t, isRelease("1.2.3"))
	assert.True(t, isRelease("v0.4.0"))
	assert.False(t, isRelease("dev"))
	assert.False(t, isRelease("1.2"))
	assert.False(t, isRelease(""))
}

func TestVoicesCommand(t *testing.T) {
	out, err := execute(t, "voices")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, len(live.Voices))
	assert.Contains(t, out, "Kore (default)")
}

func TestLanguagesCommand(t *testing.T) {
	out, err := execute(t, "languages")
	require.NoError(t, err)
	assert.Contains(t, out, "en-US (default)")
	assert.Contains(t, out, "te-IN\n")
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`apiVersion: geminilive/v1alpha1
kind: LiveSession
metadata:
  name: demo
spec:
  session:
    voice: Puck
`), 0o600))

	out, err := execute(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "demo is valid")
	assert.Contains(t, out, "voice Puck")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("apiVersion: geminilive/v1alpha1\nkind: Nope\nspec: {}\n"), 0o600))
	_, err = execute(t, "validate", bad)
	assert.Error(t, err)
}

func TestApplyFlags(t *testing.T) {
	cmd := chatCmd
	t.Cleanup(func() {
		chatOpts.metricsAddr = ""
		chatOpts.otlpEndpoint = ""
		for _, name := range []string{"voice", "output-dir"} {
			cmd.Flags().Lookup(name).Changed = false
		}
	})
	require.NoError(t, cmd.Flags().Set("voice", "Puck"))
	require.NoError(t, cmd.Flags().Set("output-dir", "out"))
	chatOpts.metricsAddr = ":9999"
	chatOpts.otlpEndpoint = "http://localhost:4318"

	m := config.Default()
	applyFlags(cmd, m)

	assert.Equal(t, "Puck", m.Spec.Session.Voice)
	assert.Equal(t, live.DefaultLanguage, m.Spec.Session.Language, "unchanged flags keep the manifest")
	assert.Equal(t, "out", m.Spec.OutputDir)
	assert.Equal(t, ":9999", m.Spec.Metrics.Addr)
	assert.Equal(t, "http://localhost:4318", m.Spec.Tracing.Endpoint)
}

func TestDemoTools(t *testing.T) {
	reg := tools.NewRegistry()
	require.NoError(t, registerDemoTools(reg))
	assert.Equal(t, len(demoTools), reg.Len())

	res := reg.Dispatch(context.Background(), tools.Call{ID: "1", Name: "turn_on_the_lights"})
	assert.True(t, res.Handled)
	assert.Equal(t, map[string]any{"lights": "on"}, res.Response)

	res = reg.Dispatch(context.Background(), tools.Call{ID: "2", Name: "schedule_meeting", Args: map[string]any{
		"attendees": []any{"Bob"}, "date": "2024-07-29", "time": "15:00", "topic": "Launch",
	}})
	require.NoError(t, res.Err)
	assert.Equal(t, "Launch on 2024-07-29 at 15:00", res.Response["summary"])

	res = reg.Dispatch(context.Background(), tools.Call{ID: "3", Name: "schedule_meeting", Args: map[string]any{}})
	assert.Error(t, res.Err)
	assert.Contains(t, res.Response, "error")
}

func TestPlaybackSink_RecordsAndTees(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.wav")
	chatOpts.record = path
	t.Cleanup(func() { chatOpts.record = "" })

	speaker := &audio.BufferSink{}
	sink, err := playbackSink(speaker)
	require.NoError(t, err)

	require.NoError(t, sink.Accept([]byte{1, 2, 3, 4}))
	sink.Stop()
	closer, ok := sink.(io.Closer)
	require.True(t, ok)
	require.NoError(t, closer.Close())

	assert.Equal(t, []byte{1, 2, 3, 4}, speaker.Bytes())
	assert.Equal(t, 1, speaker.Stops())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	hdr, err := audio.ParseWAVHeader(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), hdr.DataSize)
	assert.Equal(t, audio.ReceiveFormat.SampleRate, hdr.SampleRate)
}

func TestPlaybackSink_NoRecord(t *testing.T) {
	sink, err := playbackSink(nil)
	require.NoError(t, err)
	assert.Nil(t, sink)
}

// liveStub answers setup, waits for a text turn, then replies with one
// transcribed audio generation.
func liveStub(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			var msg map[string]any
			if json.Unmarshal(data, &msg) != nil {
				continue
			}
			if _, ok := msg["setup"]; ok {
				_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"setupComplete":{}}`))
				continue
			}
			if _, ok := msg["clientContent"]; ok {
				pcm := base64.StdEncoding.EncodeToString([]byte{0, 0, 1, 0})
				_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"serverContent":{
					"outputTranscription":{"text":"hello there"},
					"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/pcm","data":"`+pcm+`"}}]}}}`))
				_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"serverContent":{"turnComplete":true,"generationComplete":true}}`))
			}
		}
	}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return u.Host
}

func TestRunSession_TextPromptOnce(t *testing.T) {
	chatOpts.text = "say hello"
	t.Cleanup(func() { chatOpts.text = "" })

	cfg := live.DefaultSessionConfig()
	cfg.Host = liveStub(t)

	speaker := &audio.BufferSink{}
	client, err := live.NewClient(cfg,
		live.WithInsecureTransport(),
		live.WithRetryPolicy(retry.Policy{Attempts: 1}),
		live.WithPlaybackSink(speaker),
	)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, runSession(ctx, &out, client, &services{}, "key", nil, true))

	assert.Contains(t, out.String(), "● connected")
	assert.Contains(t, out.String(), "gemini: hello there")
	assert.Equal(t, []byte{0, 0, 1, 0}, speaker.Bytes())
	assert.NoError(t, ctx.Err(), "session ended on generation complete, not timeout")
}

func TestRunSession_SetupRejected(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
		msg := websocket.FormatCloseMessage(websocket.CloseInvalidFramePayloadData, "unknown model")
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	cfg := live.DefaultSessionConfig()
	cfg.Host = u.Host
	client, err := live.NewClient(cfg,
		live.WithInsecureTransport(),
		live.WithRetryPolicy(retry.Policy{Attempts: 1}),
	)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out bytes.Buffer
	err = runSession(ctx, &out, client, &services{}, "key", nil, true)

	require.ErrorIs(t, err, live.ErrNotConnected)
	assert.NoError(t, ctx.Err(), "session ended on the rejection, not the timeout")
	assert.NotContains(t, out.String(), "● connected")
}
