package logger

import (
	"context"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// Context keys for common logging fields.
const (
	// ContextKeySessionID identifies the live client session.
	ContextKeySessionID contextKey = "session_id"

	// ContextKeyConnectionID identifies one physical connection of a session.
	ContextKeyConnectionID contextKey = "connection_id"

	// ContextKeyModel identifies the model being used.
	ContextKeyModel contextKey = "model"

	// ContextKeyVoice identifies the prebuilt voice.
	ContextKeyVoice contextKey = "voice"
)

// allContextKeys lists all context keys that should be extracted for logging.
var allContextKeys = []contextKey{
	ContextKeySessionID,
	ContextKeyConnectionID,
	ContextKeyModel,
	ContextKeyVoice,
}

// WithSessionID returns a new context with the session ID set.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, sessionID)
}

// WithConnectionID returns a new context with the connection ID set.
func WithConnectionID(ctx context.Context, connectionID string) context.Context {
	return context.WithValue(ctx, ContextKeyConnectionID, connectionID)
}

// WithModel returns a new context with the model name set.
func WithModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, ContextKeyModel, model)
}

// WithVoice returns a new context with the voice name set.
func WithVoice(ctx context.Context, voice string) context.Context {
	return context.WithValue(ctx, ContextKeyVoice, voice)
}

// LoggingFields holds the standard logging context fields.
type LoggingFields struct {
	SessionID    string
	ConnectionID string
	Model        string
	Voice        string
}

// WithLoggingContext sets every non-empty field of fields on ctx.
func WithLoggingContext(ctx context.Context, fields *LoggingFields) context.Context {
	if fields == nil {
		return ctx
	}
	if fields.SessionID != "" {
		ctx = WithSessionID(ctx, fields.SessionID)
	}
	if fields.ConnectionID != "" {
		ctx = WithConnectionID(ctx, fields.ConnectionID)
	}
	if fields.Model != "" {
		ctx = WithModel(ctx, fields.Model)
	}
	if fields.Voice != "" {
		ctx = WithVoice(ctx, fields.Voice)
	}
	return ctx
}

// ExtractLoggingFields extracts all logging fields from a context.
func ExtractLoggingFields(ctx context.Context) LoggingFields {
	str := func(k contextKey) string {
		s, _ := ctx.Value(k).(string)
		return s
	}
	return LoggingFields{
		SessionID:    str(ContextKeySessionID),
		ConnectionID: str(ContextKeyConnectionID),
		Model:        str(ContextKeyModel),
		Voice:        str(ContextKeyVoice),
	}
}
