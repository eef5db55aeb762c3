// Package live implements a client for the Gemini Live bidirectional
// streaming endpoint.
//
// A Client owns at most one WebSocket connection at a time. Connect dials the
// endpoint, starts the receive loop and sends the setup message; realtime
// traffic (text turns, audio, media, tool responses) is only transmitted after
// the server acknowledges setup. Inbound frames are decoded into Event values
// delivered in order on Events.
package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/AltairaLabs/geminilive/audio"
	lerrors "github.com/AltairaLabs/geminilive/errors"
	"github.com/AltairaLabs/geminilive/internal/streaming"
	"github.com/AltairaLabs/geminilive/logger"
	"github.com/AltairaLabs/geminilive/retry"
	"github.com/AltairaLabs/geminilive/telemetry"
	"github.com/AltairaLabs/geminilive/tools"
	"github.com/AltairaLabs/geminilive/transcript"
)

const component = "GeminiLive"

// DefaultTrailingSilence is appended to synthesized audio so the server's
// activity detection does not end the turn early.
const DefaultTrailingSilence = time.Second

var (
	// ErrHandshakePending is returned when a realtime send is dropped because
	// setup has not been acknowledged on the current connection.
	ErrHandshakePending = errors.New("handshake pending")

	// ErrNotConnected is returned when a send is attempted without a connection.
	ErrNotConnected = errors.New("not connected")

	// ErrClientClosed is returned by Connect after Close.
	ErrClientClosed = errors.New("client closed")
)

// State is the connection state of a Client.
type State int32

// Connection states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// AudioStore persists the WAV produced at each generation completion.
type AudioStore interface {
	SaveWAV(ctx context.Context, sessionID string, wav []byte) (string, error)
}

// TranscriptStore records transcription fragments.
type TranscriptStore interface {
	Append(ctx context.Context, sessionID string, entry transcript.Entry) error
}

// connection is one physical connection. Its handshake(false) notification
// fires at most once, whichever of a local disconnect or a remote close
// happens first.
type connection struct {
	gen        uint64
	id         string
	conn       *streaming.Conn
	done       chan struct{}
	closeOnce  sync.Once
	suppressed atomic.Bool
	cancel     context.CancelFunc

	// dispatching is set while the receive goroutine runs handlers and listeners.
	dispatching atomic.Bool

	spanMu    sync.Mutex
	setupSpan trace.Span
	setupAt   time.Time
	turnSpan  trace.Span
	turnBytes int
}

// lostSignal closes when a connection attempt ends. err is set before ch closes.
type lostSignal struct {
	ch  chan struct{}
	err error
}

func (l *lostSignal) fired() bool {
	select {
	case <-l.ch:
		return true
	default:
		return false
	}
}

// Client is a Gemini Live session client. It is safe for concurrent use.
type Client struct {
	sessionID string
	log       Logger
	tracer    trace.Tracer
	registry  *tools.Registry
	agg       *audio.Aggregator
	gate      handshakeGate
	queue     *eventQueue

	retryPolicy     retry.Policy
	scheme          string
	keepAlive       time.Duration
	audioStore      AudioStore
	transcriptStore TranscriptStore
	listeners       []func(Event)
	sink            audio.Sink
	speechThreshold float64

	muted atomic.Bool

	mu            sync.Mutex
	ready         chan struct{} // closed while the handshake is complete
	readyClosed   bool
	lost          *lostSignal
	cfg           SessionConfig
	state         State
	current       *connection
	nextGen       uint64
	cancelConnect context.CancelFunc
	closed        bool
}

// Option configures a Client.
type Option func(*Client)

// WithLogger replaces the default logger adapter.
func WithLogger(l Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithSessionID sets the id under which audio and transcripts are stored.
// Defaults to a random UUID.
func WithSessionID(id string) Option {
	return func(c *Client) {
		if id != "" {
			c.sessionID = id
		}
	}
}

// WithRetryPolicy sets the policy used when dialing.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) {
		c.retryPolicy = p
	}
}

// WithAudioStore persists each generation's audio as a WAV file.
func WithAudioStore(s AudioStore) Option {
	return func(c *Client) {
		c.audioStore = s
	}
}

// WithTranscriptStore records every transcription fragment under the session id.
func WithTranscriptStore(s TranscriptStore) Option {
	return func(c *Client) {
		c.transcriptStore = s
	}
}

// WithEventListener registers fn to observe every event synchronously, before
// it is queued on Events. Most events arrive on the receive goroutine, but
// connection-loss events fire on whichever goroutine closes the connection,
// so fn must be safe for concurrent use. fn must not block.
func WithEventListener(fn func(Event)) Option {
	return func(c *Client) {
		if fn != nil {
			c.listeners = append(c.listeners, fn)
		}
	}
}

// WithTracerProvider sets the provider for connect, setup and tool spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = telemetry.Tracer(tp)
	}
}

// WithPlaybackSink forwards each received audio chunk to sink. Playback is
// stopped on Disconnect and resumes with audio from the next connection.
func WithPlaybackSink(sink audio.Sink) Option {
	return func(c *Client) {
		c.sink = sink
	}
}

// WithToolRegistry shares an existing registry instead of creating one.
func WithToolRegistry(r *tools.Registry) Option {
	return func(c *Client) {
		if r != nil {
			c.registry = r
		}
	}
}

// WithKeepAlive sends WebSocket pings at interval while connected.
func WithKeepAlive(interval time.Duration) Option {
	return func(c *Client) {
		c.keepAlive = interval
	}
}

// WithSpeechGate makes StreamAudio skip frames whose energy is below threshold.
func WithSpeechGate(threshold float64) Option {
	return func(c *Client) {
		c.speechThreshold = threshold
	}
}

// WithInsecureTransport dials ws:// instead of wss://. Intended for local
// proxies and tests.
func WithInsecureTransport() Option {
	return func(c *Client) {
		c.scheme = SchemeInsecure
	}
}

// NewClient creates a disconnected client for cfg.
func NewClient(cfg SessionConfig, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}

	c := &Client{
		sessionID:   uuid.NewString(),
		log:         loggerAdapter{},
		tracer:      telemetry.Tracer(noop.NewTracerProvider()),
		agg:         audio.NewAggregator(),
		retryPolicy: retry.DefaultPolicy(),
		scheme:      SchemeSecure,
		ready:       make(chan struct{}),
		lost:        &lostSignal{ch: make(chan struct{})},
		cfg:         cfg.clone(),
		state:       StateDisconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = tools.NewRegistry(tools.WithTracer(c.tracer))
	}
	c.queue = newEventQueue()
	return c, nil
}

// SessionID returns the id used for stored audio and transcripts.
func (c *Client) SessionID() string {
	return c.sessionID
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a copy of the session configuration.
func (c *Client) Session() SessionConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.clone()
}

// UpdateSession replaces the session configuration. It takes effect at the
// next Connect; an open connection keeps the setup it was opened with.
func (c *Client) UpdateSession(cfg SessionConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid session config: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg.clone()
	return nil
}

// RegisterTool declares a function the model may call. It is included in the
// setup of every later connection. A nil handler leaves calls to the caller.
func (c *Client) RegisterTool(decl tools.Declaration, handler tools.Handler) error {
	return c.registry.Register(decl, handler)
}

// Events returns the event channel. It is closed by Close.
func (c *Client) Events() <-chan Event {
	return c.queue.out
}

// HandshakeComplete reports whether setup has been acknowledged on the
// current connection.
func (c *Client) HandshakeComplete() bool {
	return c.gate.isComplete()
}

// WaitReady blocks until setup is acknowledged on the current connection or
// ctx ends. It returns ErrNotConnected, wrapping the close cause if there is
// one, when the latest connection attempt ends before the acknowledgement.
func (c *Client) WaitReady(ctx context.Context) error {
	c.mu.Lock()
	ready, lost := c.ready, c.lost
	c.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-lost.ch:
		if lost.err == nil {
			return ErrNotConnected
		}
		return fmt.Errorf("%w: %w", ErrNotConnected, lost.err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// markLost fires the lost signal for gen unless a newer attempt has started.
// c.mu must be held.
func (c *Client) markLost(gen uint64, cause error) {
	if c.nextGen != gen || c.lost.fired() {
		return
	}
	c.lost.err = cause
	close(c.lost.ch)
}

// Connect dials the endpoint with credential and sends the setup message.
// It is a no-op while a connection is open or being opened.
func (c *Client) Connect(ctx context.Context, credential string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if c.state == StateOpen || c.state == StateConnecting {
		state := c.state
		c.mu.Unlock()
		c.log.Debug("connect ignored, connection already active", "state", state.String())
		return nil
	}
	cfg := c.cfg.clone()
	endpoint, err := BuildEndpoint(c.scheme, cfg.Host, cfg.APIVersion, credential)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.nextGen++
	gen := c.nextGen
	if c.lost.fired() {
		c.lost = &lostSignal{ch: make(chan struct{})}
	}
	dialCtx, cancel := context.WithCancel(ctx)
	c.cancelConnect = cancel
	c.state = StateConnecting
	c.gate.arm(gen)
	c.mu.Unlock()
	defer cancel()

	ctx = logger.WithLoggingContext(ctx, &logger.LoggingFields{
		SessionID: c.sessionID,
		Model:     cfg.Model,
		Voice:     cfg.Voice,
	})
	ctx, span := c.tracer.Start(ctx, telemetry.SpanConnect, trace.WithAttributes(
		attribute.String("geminilive.session_id", c.sessionID),
		attribute.String("geminilive.model", cfg.Model),
		attribute.Int64("geminilive.generation", int64(gen)), //nolint:gosec // generation counter never exceeds int64
	))
	defer span.End()

	conn := streaming.NewConn(&streaming.ConnConfig{
		URL:    endpoint,
		Retry:  c.retryPolicy,
		Logger: c.log,
		Redact: logger.RedactSensitiveData,
	})
	if err := conn.ConnectWithRetry(dialCtx); err != nil {
		c.mu.Lock()
		if c.state == StateConnecting && c.nextGen == gen {
			c.state = StateClosed
			c.cancelConnect = nil
		}
		c.markLost(gen, err)
		c.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.Error("connect failed", "error", err)
		return err
	}

	cn := &connection{
		gen:  gen,
		id:   uuid.NewString(),
		conn: conn,
		done: make(chan struct{}),
	}
	loopCtx, loopCancel := context.WithCancel(logger.WithConnectionID(
		context.WithoutCancel(ctx), cn.id))
	cn.cancel = loopCancel

	c.mu.Lock()
	if c.state != StateConnecting || c.nextGen != gen {
		// Disconnected while dialing.
		c.markLost(gen, nil)
		c.mu.Unlock()
		loopCancel()
		_ = conn.Close()
		span.SetStatus(codes.Error, "disconnected while connecting")
		return ErrNotConnected
	}
	c.current = cn
	c.state = StateOpen
	c.cancelConnect = nil
	c.mu.Unlock()

	span.SetAttributes(attribute.String("geminilive.connection_id", cn.id))
	c.log.Info("connected", "connection_id", cn.id)

	if c.keepAlive > 0 {
		conn.StartHeartbeat(loopCtx, c.keepAlive)
	}

	// The receive loop must be running before setup goes out so the
	// acknowledgement cannot be missed.
	go c.receiveLoop(loopCtx, cn)

	if err := c.sendSetup(loopCtx, cn, &cfg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.closeConnection(cn, err)
		return err
	}
	return nil
}

func (c *Client) sendSetup(ctx context.Context, cn *connection, cfg *SessionConfig) error {
	decls := c.registry.Declarations()
	data, err := marshalSetup(cfg, decls)
	if err != nil {
		return err
	}

	_, span := c.tracer.Start(ctx, telemetry.SpanSetup, trace.WithAttributes(
		attribute.Int("geminilive.tool_count", len(decls)),
		attribute.Bool("geminilive.google_search", cfg.EnableGoogleSearch),
	))
	cn.spanMu.Lock()
	cn.setupSpan = span
	cn.setupAt = time.Now()
	cn.spanMu.Unlock()

	logger.Frame(ctx, "send", data)
	if err := cn.conn.SendRaw(data); err != nil {
		c.log.Error("failed to send setup", "error", err)
		c.endSetupSpan(cn, err)
		return err
	}
	c.log.Debug("setup sent", "tool_count", len(decls))
	return nil
}

func (c *Client) endSetupSpan(cn *connection, err error) {
	cn.spanMu.Lock()
	span := cn.setupSpan
	cn.setupSpan = nil
	cn.spanMu.Unlock()
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Disconnect closes the current connection with a normal closure. It is
// idempotent and waits for the receive loop to exit, except when called from
// a tool handler or event listener running on that loop.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	cn := c.current
	cancelConnect := c.cancelConnect
	c.current = nil
	c.cancelConnect = nil
	if c.state == StateOpen || c.state == StateConnecting {
		c.state = StateClosed
	}
	c.mu.Unlock()

	if cancelConnect != nil {
		cancelConnect()
	}
	if c.sink != nil {
		c.sink.Stop()
	}
	if cn == nil {
		return nil
	}

	cn.suppressed.Store(true)
	c.log.Info("disconnecting", "connection_id", cn.id)
	c.closeConnection(cn, nil)
	if !cn.dispatching.Load() {
		<-cn.done
	}
	return nil
}

// Close disconnects and closes the event channel. The client cannot be
// reconnected afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.Disconnect()
	c.queue.close()
	return err
}

// closeConnection tears down cn once. The gate is reset before the socket is
// closed so in-flight realtime sends finish or are refused first.
func (c *Client) closeConnection(cn *connection, cause error) {
	c.mu.Lock()
	if c.current == cn {
		c.current = nil
		if c.state == StateOpen {
			c.state = StateClosed
		}
	}
	if c.nextGen == cn.gen && c.readyClosed {
		c.ready = make(chan struct{})
		c.readyClosed = false
	}
	c.markLost(cn.gen, cause)
	c.mu.Unlock()

	cn.closeOnce.Do(func() {
		c.gate.reset(cn.gen)
		if cn.cancel != nil {
			cn.cancel()
		}
		_ = cn.conn.Close()
		c.endSetupSpan(cn, cause)
		c.endTurn(cn, false, cause)

		switch {
		case cause == nil || cn.suppressed.Load():
			c.log.Debug("connection closed", "connection_id", cn.id)
		case streaming.IsNormalClose(cause):
			code, reason, _ := streaming.CloseDetails(cause)
			c.log.Info("connection closed by server", "connection_id", cn.id, "code", code, "reason", reason)
		default:
			c.log.Error("connection lost", "connection_id", cn.id, "error", cause)
			werr := lerrors.Wrap(lerrors.ErrTransport, component, "Receive", cause)
			if code, reason, ok := streaming.CloseDetails(cause); ok {
				werr = werr.WithDetails(map[string]any{"code": code, "reason": reason})
			}
			c.emit(ErrorEvent{Err: werr})
		}
		c.emit(HandshakeChangedEvent{Complete: false})
	})
}

func (c *Client) receiveLoop(ctx context.Context, cn *connection) {
	defer close(cn.done)

	for {
		frame, err := cn.conn.Receive(ctx)
		if err != nil {
			c.closeConnection(cn, err)
			return
		}
		cn.dispatching.Store(true)
		c.handleFrame(ctx, cn, frame)
		cn.dispatching.Store(false)
	}
}

// handleFrame decodes one frame. A malformed frame is logged and dropped.
func (c *Client) handleFrame(ctx context.Context, cn *connection, frame streaming.Frame) {
	logger.Frame(ctx, "recv", frame.Data)

	events, err := decodeFrame(frame.Data)
	if err != nil {
		c.log.Warn("dropping malformed frame", "error", err, "binary", frame.Binary, "bytes", len(frame.Data))
		return
	}

	for _, ev := range events {
		switch e := ev.(type) {
		case SetupCompleteEvent:
			c.onSetupComplete(cn)
		case AudioChunkEvent:
			c.beginTurn(ctx, cn, len(e.Data))
			c.onAudioChunk(e)
		case ToolCallEvent:
			c.emit(c.dispatchTool(ctx, e))
		case GenerationCompleteEvent:
			c.emit(c.completeGeneration(ctx))
		case OutputTranscriptionEvent:
			c.beginTurn(ctx, cn, 0)
			c.recordTranscript(ctx, transcript.RoleModel, e.Text)
			c.emit(e)
		case InputTranscriptionEvent:
			c.recordTranscript(ctx, transcript.RoleUser, e.Text)
			c.emit(e)
		case InterruptedEvent:
			c.endTurn(cn, true, nil)
			c.emit(e)
		case TurnCompleteEvent:
			c.endTurn(cn, false, nil)
			c.emit(e)
		case GoAwayEvent:
			c.log.Warn("server will close the connection", "time_left", e.TimeLeft)
			c.emit(e)
		default:
			c.emit(e)
		}
	}
}

// beginTurn starts the model turn span on the first output of a turn.
func (c *Client) beginTurn(ctx context.Context, cn *connection, audioBytes int) {
	cn.spanMu.Lock()
	defer cn.spanMu.Unlock()
	if cn.turnSpan == nil {
		_, cn.turnSpan = c.tracer.Start(ctx, telemetry.SpanTurn, trace.WithAttributes(
			attribute.String("geminilive.connection_id", cn.id),
		))
		cn.turnBytes = 0
	}
	cn.turnBytes += audioBytes
}

func (c *Client) endTurn(cn *connection, interrupted bool, err error) {
	cn.spanMu.Lock()
	span, n := cn.turnSpan, cn.turnBytes
	cn.turnSpan = nil
	cn.spanMu.Unlock()
	if span == nil {
		return
	}
	span.SetAttributes(
		attribute.Int("geminilive.audio_bytes", n),
		attribute.Bool("geminilive.interrupted", interrupted),
	)
	if err != nil && !cn.suppressed.Load() {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// onSetupComplete opens the gate. Duplicate acknowledgements are ignored.
func (c *Client) onSetupComplete(cn *connection) {
	if !c.gate.open(cn.gen) {
		c.log.Debug("ignoring duplicate setup acknowledgement")
		return
	}
	cn.spanMu.Lock()
	elapsed := time.Since(cn.setupAt)
	cn.spanMu.Unlock()
	c.endSetupSpan(cn, nil)

	c.log.Info("setup complete", "connection_id", cn.id, "elapsed", elapsed)
	c.emit(SetupCompleteEvent{})
	c.emit(HandshakeChangedEvent{Complete: true})

	c.mu.Lock()
	if !c.readyClosed && c.current == cn {
		close(c.ready)
		c.readyClosed = true
	}
	c.mu.Unlock()
}

func (c *Client) onAudioChunk(e AudioChunkEvent) {
	c.agg.Append(e.Data)
	if c.sink != nil {
		if err := c.sink.Accept(e.Data); err != nil {
			c.log.Debug("playback sink rejected chunk", "error", err)
		}
	}
	c.emit(e)
}

// completeGeneration drains the aggregator into a WAV and persists it.
func (c *Client) completeGeneration(ctx context.Context) GenerationCompleteEvent {
	pcm := c.agg.Drain()
	if len(pcm) == 0 {
		return GenerationCompleteEvent{}
	}

	ev := GenerationCompleteEvent{Audio: audio.EncodeWAV(pcm, audio.ReceiveFormat)}
	if c.audioStore != nil {
		path, err := c.audioStore.SaveWAV(ctx, c.sessionID, ev.Audio)
		if err != nil {
			c.log.Error("failed to save response audio", "error", err)
			ev.SaveErr = err
		} else {
			c.log.Info("saved response audio", "path", path, "bytes", len(pcm))
			ev.File = path
		}
	}
	return ev
}

// dispatchTool runs the registered handler synchronously and sends its
// response. Unhandled calls are surfaced without a response.
func (c *Client) dispatchTool(ctx context.Context, e ToolCallEvent) ToolCallEvent {
	res := c.registry.Dispatch(ctx, tools.Call{ID: e.ID, Name: e.Name, Args: e.Args})
	e.Handled = res.Handled
	e.Err = res.Err
	if !res.Handled {
		c.log.Info("no handler for tool call", "tool", e.Name, "id", e.ID)
		return e
	}
	e.Response = res.Response
	if err := c.SendToolResponse(ctx, e.ID, res.Response); err != nil {
		c.log.Warn("failed to send tool response", "tool", e.Name, "id", e.ID, "error", err)
	}
	return e
}

func (c *Client) recordTranscript(ctx context.Context, role transcript.Role, text string) {
	if c.transcriptStore == nil {
		return
	}
	entry := transcript.Entry{Role: role, Text: text, At: time.Now()}
	if err := c.transcriptStore.Append(ctx, c.sessionID, entry); err != nil {
		c.log.Warn("failed to record transcript", "role", string(role), "error", err)
	}
}

func (c *Client) emit(ev Event) {
	for _, fn := range c.listeners {
		fn(ev)
	}
	c.queue.push(ev)
}

// SendTextPrompt sends a user text turn. turnComplete asks the model to respond.
func (c *Client) SendTextPrompt(ctx context.Context, text string, turnComplete bool) error {
	data, err := encodeTextTurn(text, turnComplete)
	if err != nil {
		return err
	}
	return c.sendRealtime(ctx, "clientContent", data)
}

// SendAudio sends one chunk of 16 kHz PCM16 mono audio. Chunks are dropped
// silently while muted.
func (c *Client) SendAudio(ctx context.Context, pcm []byte) error {
	if c.muted.Load() || len(pcm) == 0 {
		return nil
	}
	data, err := encodeMediaChunk(pcm, MimeTypeCapturedAudio)
	if err != nil {
		return err
	}
	return c.sendRealtime(ctx, "realtimeInput", data)
}

// SendSynthesizedAudio sends 24 kHz PCM16 mono audio followed by trailing
// silence. A negative trailing duration sends none.
func (c *Client) SendSynthesizedAudio(ctx context.Context, pcm []byte, trailing time.Duration) error {
	if c.muted.Load() || len(pcm) == 0 {
		return nil
	}
	if trailing > 0 {
		pcm = audio.PadSilence(pcm, audio.ReceiveFormat, trailing)
	}
	data, err := encodeMediaChunk(pcm, MimeTypeSynthesizedAudio)
	if err != nil {
		return err
	}
	return c.sendRealtime(ctx, "realtimeInput", data)
}

// SendMedia sends an inline media chunk such as a camera frame. An empty
// mimeType means image/jpeg.
func (c *Client) SendMedia(ctx context.Context, data []byte, mimeType string) error {
	if len(data) == 0 {
		return nil
	}
	if mimeType == "" {
		mimeType = MimeTypeDefaultImage
	}
	msg, err := encodeMediaChunk(data, mimeType)
	if err != nil {
		return err
	}
	return c.sendRealtime(ctx, "realtimeInput", msg)
}

// SendToolResponse answers the tool call with id.
func (c *Client) SendToolResponse(ctx context.Context, id string, response map[string]any) error {
	if id == "" {
		return fmt.Errorf("tool response id is required")
	}
	data, err := encodeToolResponse(id, response)
	if err != nil {
		return err
	}
	return c.sendRealtime(ctx, "toolResponse", data)
}

// SetMuted stops or resumes transmission of audio.
func (c *Client) SetMuted(muted bool) {
	c.muted.Store(muted)
}

// Muted reports whether audio transmission is muted.
func (c *Client) Muted() bool {
	return c.muted.Load()
}

// sendRealtime writes data on the current connection while holding the
// handshake gate, so a send racing a disconnect is refused rather than
// written to a stale transport.
func (c *Client) sendRealtime(ctx context.Context, kind string, data []byte) error {
	c.mu.Lock()
	cn := c.current
	c.mu.Unlock()
	if cn == nil {
		c.log.Debug("dropping send, not connected", "kind", kind)
		return ErrNotConnected
	}

	sent, err := c.gate.do(func(gen uint64) error {
		if gen != cn.gen {
			return ErrNotConnected
		}
		logger.Frame(ctx, "send", data)
		return cn.conn.SendRaw(data)
	})
	if !sent {
		c.log.Debug("dropping send, handshake pending", "kind", kind)
		return ErrHandshakePending
	}
	if err != nil {
		c.log.Warn("send failed", "kind", kind, "error", err)
		return err
	}
	return nil
}

// StreamAudio pumps frames from src until ctx ends or src is exhausted.
// Frames are resampled to 16 kHz. Frames sent before the handshake completes
// are dropped.
func (c *Client) StreamAudio(ctx context.Context, src audio.Source) error {
	frames, err := src.Frames(ctx)
	if err != nil {
		return fmt.Errorf("open audio source: %w", err)
	}
	rate := src.SampleRate()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			if c.speechThreshold > 0 && !audio.HasSpeech(frame, c.speechThreshold) {
				continue
			}
			pcm, err := audio.ToInputRate(frame, rate)
			if err != nil {
				return fmt.Errorf("resample capture frame: %w", err)
			}
			err = c.SendAudio(ctx, pcm)
			if err != nil && !errors.Is(err, ErrHandshakePending) && !errors.Is(err, ErrNotConnected) {
				return err
			}
		}
	}
}
