package jembatan

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the structured logging interface used by the client. keyvals are
// alternating keys and values.
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Warn(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})
}

// ZerologLogger adapts a zerolog.Logger to Logger.
type ZerologLogger struct {
	logger zerolog.Logger
}

// NewZerologLogger wraps an existing zerolog logger.
func NewZerologLogger(logger zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{logger: logger}
}

// NewSimpleLogger returns a debug level console logger on stderr.
func NewSimpleLogger() *ZerologLogger {
	return NewConsoleLogger(os.Stderr, zerolog.DebugLevel)
}

// NewConsoleLogger returns a human readable logger writing to w.
func NewConsoleLogger(w io.Writer, level zerolog.Level) *ZerologLogger {
	output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return NewZerologLogger(zerolog.New(output).Level(level).With().Timestamp().Str("component", "jembatan").Logger())
}

func (l *ZerologLogger) Debug(msg string, keyvals ...interface{}) {
	l.log(l.logger.Debug(), msg, keyvals)
}

func (l *ZerologLogger) Info(msg string, keyvals ...interface{}) {
	l.log(l.logger.Info(), msg, keyvals)
}

func (l *ZerologLogger) Warn(msg string, keyvals ...interface{}) {
	l.log(l.logger.Warn(), msg, keyvals)
}

func (l *ZerologLogger) Error(msg string, keyvals ...interface{}) {
	l.log(l.logger.Error(), msg, keyvals)
}

func (l *ZerologLogger) log(event *zerolog.Event, msg string, keyvals []interface{}) {
	if event == nil {
		return
	}
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if i+1 >= len(keyvals) {
			event = event.Interface(key, nil)
			break
		}
		event = addField(event, key, keyvals[i+1])
	}
	event.Msg(msg)
}

func addField(event *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return event.Str(key, v)
	case int:
		return event.Int(key, v)
	case int64:
		return event.Int64(key, v)
	case bool:
		return event.Bool(key, v)
	case time.Duration:
		return event.Dur(key, v)
	case error:
		return event.AnErr(key, v)
	case fmt.Stringer:
		return event.Stringer(key, v)
	default:
		return event.Interface(key, v)
	}
}

// NoopLogger discards everything.
type NoopLogger struct{}

func (NoopLogger) Debug(string, ...interface{}) {}
func (NoopLogger) Info(string, ...interface{})  {}
func (NoopLogger) Warn(string, ...interface{})  {}
func (NoopLogger) Error(string, ...interface{}) {}
