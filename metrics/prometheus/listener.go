package prometheus

import (
	"sync"

	"github.com/AltairaLabs/geminilive/audio"
	"github.com/AltairaLabs/geminilive/live"
)

// Status constants for metric labels.
const (
	statusSuccess   = "success"
	statusError     = "error"
	statusUnhandled = "unhandled"
)

// MetricsListener records live events as Prometheus metrics.
// Register it with live.WithEventListener(l.Handle).
type MetricsListener struct {
	mu    sync.Mutex
	ready bool
}

// NewMetricsListener creates a new MetricsListener.
func NewMetricsListener() *MetricsListener {
	return &MetricsListener{}
}

// Handle processes an event and records relevant metrics.
func (l *MetricsListener) Handle(ev live.Event) {
	RecordEvent(live.EventType(ev))

	switch e := ev.(type) {
	case live.HandshakeChangedEvent:
		l.handleHandshake(e)
	case live.AudioChunkEvent:
		RecordAudioReceived(len(e.Data))
	case live.GenerationCompleteEvent:
		l.handleGenerationComplete(e)
	case live.ToolCallEvent:
		l.handleToolCall(e)
	case live.UsageEvent:
		RecordTokens(e.PromptTokens, e.ResponseTokens)
	case live.ErrorEvent:
		RecordTransportError()
	default:
		// Counted above only
	}
}

// handleHandshake keeps the active gauge balanced: a connection that closes
// before its handshake completes was never counted.
func (l *MetricsListener) handleHandshake(e live.HandshakeChangedEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e.Complete == l.ready {
		return
	}
	l.ready = e.Complete
	RecordHandshake(e.Complete)
}

func (l *MetricsListener) handleGenerationComplete(e live.GenerationCompleteEvent) {
	if len(e.Audio) <= audio.WAVHeaderSize {
		return
	}
	pcm := len(e.Audio) - audio.WAVHeaderSize
	seconds := float64(pcm) / float64(audio.ReceiveFormat.ByteRate())
	RecordGeneration(seconds, e.File != "")
}

func (l *MetricsListener) handleToolCall(e live.ToolCallEvent) {
	status := statusSuccess
	switch {
	case !e.Handled:
		status = statusUnhandled
	case e.Err != nil:
		status = statusError
	}
	RecordToolCall(e.Name, status)
}

// Listener returns a function suitable for live.WithEventListener.
func (l *MetricsListener) Listener() func(live.Event) {
	return l.Handle
}
