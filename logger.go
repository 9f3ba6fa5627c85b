package securenotify

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger is the minimal structured logging interface the client emits to.
// Keys and values alternate in keysAndValues.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// zerologLogger adapts a zerolog.Logger to the Logger interface.
type zerologLogger struct {
	log zerolog.Logger
}

// NewLogger wraps an existing zerolog.Logger.
func NewLogger(log zerolog.Logger) Logger {
	return &zerologLogger{log: log}
}

// NewSimpleLogger returns a console logger writing to stderr, convenient for
// development and examples.
func NewSimpleLogger() Logger {
	out := zerolog.ConsoleWriter{Out: os.Stderr}
	return &zerologLogger{log: zerolog.New(out).With().Timestamp().Logger()}
}

func (l *zerologLogger) Debug(msg string, keysAndValues ...interface{}) {
	emit(l.log.Debug(), msg, keysAndValues)
}

func (l *zerologLogger) Info(msg string, keysAndValues ...interface{}) {
	emit(l.log.Info(), msg, keysAndValues)
}

func (l *zerologLogger) Warn(msg string, keysAndValues ...interface{}) {
	emit(l.log.Warn(), msg, keysAndValues)
}

func (l *zerologLogger) Error(msg string, keysAndValues ...interface{}) {
	emit(l.log.Error(), msg, keysAndValues)
}

func emit(ev *zerolog.Event, msg string, keysAndValues []interface{}) {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, keysAndValues[i+1])
	}
	ev.Msg(msg)
}

// DebugConfig gates per-concern debug logging.
type DebugConfig struct {
	Enabled      bool
	LogRequests  bool
	LogRetries   bool
	LogRateLimit bool
	LogDedup     bool
	LogSSE       bool
	RequestIDGen func() string
}

// DefaultDebugConfig returns a config with everything on but Enabled false;
// flip Enabled (or use WithDebug) to start emitting.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		LogRequests:  true,
		LogRetries:   true,
		LogRateLimit: true,
		LogDedup:     true,
		LogSSE:       true,
		RequestIDGen: defaultRequestID,
	}
}
