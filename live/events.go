package live

import "encoding/json"

// Event is a notification delivered on Client.Events. The set of event types
// is closed; switch on the concrete type.
type Event interface {
	eventType() string
}

// SetupCompleteEvent reports the server's setup acknowledgement.
type SetupCompleteEvent struct{}

// HandshakeChangedEvent reports a transition of the handshake state. Complete
// goes true once per connection after setup is acknowledged and false once
// when that connection ends.
type HandshakeChangedEvent struct {
	Complete bool
}

// OutputTranscriptionEvent carries transcribed model speech.
type OutputTranscriptionEvent struct {
	Text string
}

// InputTranscriptionEvent carries transcribed user speech.
type InputTranscriptionEvent struct {
	Text string
}

// ToolCallEvent reports a model-initiated function call and how it was handled.
type ToolCallEvent struct {
	ID   string
	Name string
	Args map[string]any

	// Handled is false when no handler is registered; no response is sent then
	// and the caller may reply with SendToolResponse.
	Handled bool

	// Response is what was sent back when Handled is true.
	Response map[string]any
	Err      error
}

// AudioChunkEvent carries one decoded chunk of 24 kHz PCM16 model audio.
type AudioChunkEvent struct {
	Data []byte
}

// InterruptedEvent reports that the model's turn was cut off by user activity.
type InterruptedEvent struct{}

// TurnCompleteEvent reports the end of a model turn.
type TurnCompleteEvent struct{}

// GenerationCompleteEvent reports the end of generation. Audio is the WAV of
// everything aggregated since the previous generation; it is nil when no
// audio arrived. File is set when an audio store persisted it.
type GenerationCompleteEvent struct {
	Audio   []byte
	File    string
	SaveErr error
}

// UsageEvent reports token usage.
type UsageEvent struct {
	PromptTokens   int
	ResponseTokens int
	TotalTokens    int
}

// GoAwayEvent reports that the server will close the connection soon.
type GoAwayEvent struct {
	TimeLeft string
}

// ErrorEvent reports an unexpected transport failure.
type ErrorEvent struct {
	Err error
}

// UnknownEvent carries a well-formed frame that matched no known shape.
type UnknownEvent struct {
	Raw json.RawMessage
}

func (SetupCompleteEvent) eventType() string       { return "setup_complete" }
func (HandshakeChangedEvent) eventType() string    { return "handshake_changed" }
func (OutputTranscriptionEvent) eventType() string { return "output_transcription" }
func (InputTranscriptionEvent) eventType() string  { return "input_transcription" }
func (ToolCallEvent) eventType() string            { return "tool_call" }
func (AudioChunkEvent) eventType() string          { return "audio_chunk" }
func (InterruptedEvent) eventType() string         { return "interrupted" }
func (TurnCompleteEvent) eventType() string        { return "turn_complete" }
func (GenerationCompleteEvent) eventType() string  { return "generation_complete" }
func (UsageEvent) eventType() string               { return "usage" }
func (GoAwayEvent) eventType() string              { return "go_away" }
func (ErrorEvent) eventType() string               { return "error" }
func (UnknownEvent) eventType() string             { return "unknown" }

// EventType returns a stable snake_case name for ev, suitable as a metric label.
func EventType(ev Event) string {
	if ev == nil {
		return ""
	}
	return ev.eventType()
}
