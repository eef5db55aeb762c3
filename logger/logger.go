// Package logger provides structured logging with automatic credential redaction.
//
// This package wraps Go's standard log/slog with convenience functions for:
//   - Wire frame logging for the live stream (truncated, redacted)
//   - Automatic API key and key= query parameter redaction
//   - Contextual logging with session and connection identifiers
//   - Level-based verbosity control
//
// All exported functions use the global DefaultLogger which can be configured
// for different output formats and log levels.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
)

// Log format constants.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// maxFrameLogLength bounds how much of a wire frame is written to debug logs.
const maxFrameLogLength = 2048

var (
	// DefaultLogger is the global structured logger instance.
	// It is safe for concurrent use and initialized with slog.LevelInfo by default.
	DefaultLogger *slog.Logger

	mu           sync.Mutex
	logOutput    io.Writer = os.Stderr
	commonFields []slog.Attr
	useJSON      bool
	currentLevel = new(slog.LevelVar)
)

func init() {
	level := slog.LevelInfo
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		level = ParseLevel(envLevel)
	}
	currentLevel.Set(level)
	rebuild()
}

// ParseLevel converts a level name to a slog.Level. Unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// rebuild replaces DefaultLogger from the current settings.
func rebuild() {
	mu.Lock()
	defer mu.Unlock()

	opts := &slog.HandlerOptions{Level: currentLevel}
	var base slog.Handler
	if useJSON {
		base = slog.NewJSONHandler(logOutput, opts)
	} else {
		base = slog.NewTextHandler(logOutput, opts)
	}
	DefaultLogger = slog.New(NewContextHandler(base, commonFields...))
}

// SetLevel changes the logging level for all subsequent log operations.
func SetLevel(level slog.Level) {
	currentLevel.Set(level)
}

// SetVerbose enables debug-level logging when verbose is true, otherwise sets info-level.
// This is a convenience wrapper around SetLevel for command-line verbose flags.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	logOutput = w
	mu.Unlock()
	rebuild()
}

// LoggingConfigSpec configures the global logger.
type LoggingConfigSpec struct {
	Level        string            `yaml:"level,omitempty" json:"level,omitempty"`
	Format       string            `yaml:"format,omitempty" json:"format,omitempty"` // "json" or "text"
	CommonFields map[string]string `yaml:"commonFields,omitempty" json:"commonFields,omitempty"`
}

// Configure applies a LoggingConfigSpec to the global logger.
func Configure(cfg *LoggingConfigSpec) {
	if cfg == nil {
		return
	}

	fields := make([]slog.Attr, 0, len(cfg.CommonFields))
	for k, v := range cfg.CommonFields {
		fields = append(fields, slog.String(k, v))
	}

	mu.Lock()
	commonFields = fields
	useJSON = cfg.Format == FormatJSON
	mu.Unlock()

	if cfg.Level != "" {
		currentLevel.Set(ParseLevel(cfg.Level))
	}
	rebuild()
}

// Info logs an informational message with structured key-value attributes.
// Args should be provided in key-value pairs: key1, value1, key2, value2, ...
func Info(msg string, args ...any) {
	DefaultLogger.Info(msg, args...)
}

// InfoContext logs an informational message with context fields attached.
func InfoContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.InfoContext(ctx, msg, args...)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	DefaultLogger.Debug(msg, args...)
}

// DebugContext logs a debug message with context fields attached.
func DebugContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.DebugContext(ctx, msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	DefaultLogger.Warn(msg, args...)
}

// WarnContext logs a warning message with context fields attached.
func WarnContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.WarnContext(ctx, msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	DefaultLogger.Error(msg, args...)
}

// ErrorContext logs an error message with context fields attached.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.ErrorContext(ctx, msg, args...)
}

var (
	// apiKeyPatterns contains compiled regular expressions for detecting sensitive data.
	apiKeyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`AIza[a-zA-Z0-9_-]{35}`),   // Google API keys
		regexp.MustCompile(`Bearer\s+[a-zA-Z0-9_-]+`), // Bearer tokens
	}

	// queryKeyPattern matches a key= query parameter value of any shape.
	queryKeyPattern = regexp.MustCompile(`([?&]key=)[^&\s"]+`)

	// inlineDataPattern matches large base64 data fields in frame bodies.
	inlineDataPattern = regexp.MustCompile(`("data"\s*:\s*")([A-Za-z0-9+/=]{64})[A-Za-z0-9+/=]*(")`)
)

// RedactSensitiveData removes API keys and other sensitive information from strings.
// Google keys keep their first 4 characters for debugging context; key= query
// values and bearer tokens are fully replaced.
func RedactSensitiveData(input string) string {
	result := queryKeyPattern.ReplaceAllString(input, "${1}[REDACTED]")

	for _, pattern := range apiKeyPatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			if strings.HasPrefix(match, "Bearer") {
				return "Bearer [REDACTED]"
			}
			return match[:4] + "...[REDACTED]"
		})
	}

	return result
}

// TruncateInlineData shortens base64 payloads in a JSON frame so debug logs stay readable.
func TruncateInlineData(frame string) string {
	return inlineDataPattern.ReplaceAllString(frame, "${1}${2}...[truncated]${3}")
}

// Frame logs a wire frame at debug level. The body is redacted and truncated.
// This function is a no-op when debug logging is disabled.
func Frame(ctx context.Context, direction string, body []byte) {
	if !DefaultLogger.Enabled(ctx, slog.LevelDebug) {
		return
	}

	text := TruncateInlineData(RedactSensitiveData(string(body)))
	if len(text) > maxFrameLogLength {
		text = text[:maxFrameLogLength] + "...[truncated]"
	}

	DefaultLogger.DebugContext(ctx, "live frame",
		"direction", direction,
		"bytes", len(body),
		"body", text,
	)
}
