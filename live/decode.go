package live

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	lerrors "github.com/AltairaLabs/geminilive/errors"
)

// decodeFrame turns one inbound frame into events. Each recognized member of
// the message is handled independently; audio chunks precede a generation
// completion carried in the same frame so the aggregate includes them.
func decodeFrame(data []byte) ([]Event, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, lerrors.Wrap(lerrors.ErrProtocolDecode, component, "decode",
			fmt.Errorf("frame is not a JSON object"))
	}

	var msg serverMessage
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return nil, lerrors.Wrap(lerrors.ErrProtocolDecode, component, "decode", err)
	}

	var events []Event

	if acknowledged(msg.SetupComplete) {
		events = append(events, SetupCompleteEvent{})
	}

	if msg.ToolCall != nil {
		for _, fc := range msg.ToolCall.FunctionCalls {
			events = append(events, ToolCallEvent{ID: fc.ID, Name: fc.Name, Args: fc.Args})
		}
	}

	if sc := msg.ServerContent; sc != nil {
		events = append(events, decodeServerContent(sc)...)
	}

	if u := msg.UsageMetadata; u != nil {
		events = append(events, UsageEvent{
			PromptTokens:   u.PromptTokenCount,
			ResponseTokens: u.ResponseTokenCount,
			TotalTokens:    u.TotalTokenCount,
		})
	}

	if msg.GoAway != nil {
		events = append(events, GoAwayEvent{TimeLeft: msg.GoAway.TimeLeft})
	}

	if len(events) == 0 {
		events = append(events, UnknownEvent{Raw: json.RawMessage(trimmed)})
	}
	return events, nil
}

func decodeServerContent(sc *serverContent) []Event {
	var events []Event

	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		events = append(events, OutputTranscriptionEvent{Text: sc.OutputTranscription.Text})
	}
	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
		events = append(events, InputTranscriptionEvent{Text: sc.InputTranscription.Text})
	}

	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if chunk, ok := decodeAudioPart(p); ok {
				events = append(events, AudioChunkEvent{Data: chunk})
			}
		}
	}

	if sc.Interrupted {
		events = append(events, InterruptedEvent{})
	}
	if sc.TurnComplete {
		events = append(events, TurnCompleteEvent{})
	}
	if acknowledged(sc.GenerationComplete) {
		events = append(events, GenerationCompleteEvent{})
	}
	return events
}

// decodeAudioPart extracts inline audio. Parts with non-audio MIME types or
// undecodable payloads are skipped.
func decodeAudioPart(p part) ([]byte, bool) {
	if p.InlineData == nil || p.InlineData.Data == "" {
		return nil, false
	}
	if mt := p.InlineData.MimeType; mt != "" && !strings.HasPrefix(mt, "audio/") {
		return nil, false
	}
	chunk, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
	if err != nil || len(chunk) == 0 {
		return nil, false
	}
	return chunk, true
}
