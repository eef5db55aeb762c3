package live

import "github.com/AltairaLabs/geminilive/logger"

// Logger is the structured logging interface used by the client and its transport.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// loggerAdapter routes to the global logger, tagging records with the component.
type loggerAdapter struct{}

// Debug implements Logger.
func (loggerAdapter) Debug(msg string, keysAndValues ...interface{}) {
	logger.Debug(msg, append([]interface{}{"component", component}, keysAndValues...)...)
}

// Info implements Logger.
func (loggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	logger.Info(msg, append([]interface{}{"component", component}, keysAndValues...)...)
}

// Warn implements Logger.
func (loggerAdapter) Warn(msg string, keysAndValues ...interface{}) {
	logger.Warn(msg, append([]interface{}{"component", component}, keysAndValues...)...)
}

// Error implements Logger.
func (loggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	logger.Error(msg, append([]interface{}{"component", component}, keysAndValues...)...)
}
