// Package logging defines the structured logging abstraction used throughout
// voxrelay. Components depend on the Logger interface, never on a concrete
// implementation, so tests can inject a NoOpLogger and production wires a
// zerolog-backed one.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the injection point every component takes. Mirrors the shape
// used throughout the orchestrator this module grew out of: leveled methods
// accepting a message plus alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// NoOpLogger discards everything. Used as the default so a caller that
// forgets to wire a Logger doesn't panic, and in tests that don't care about
// log output.
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, args ...interface{}) {}
func (n *NoOpLogger) Info(msg string, args ...interface{})  {}
func (n *NoOpLogger) Warn(msg string, args ...interface{})  {}
func (n *NoOpLogger) Error(msg string, args ...interface{}) {}

// ZerologLogger adapts a zerolog.Logger to the Logger interface.
type ZerologLogger struct {
	log zerolog.Logger
}

// New builds a ZerologLogger writing console-formatted output to w at the
// given level ("debug", "info", "warn", "error"; unknown values fall back to
// info).
func New(w io.Writer, level string) *ZerologLogger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	l := zerolog.New(console).Level(lvl).With().Timestamp().Logger()
	return &ZerologLogger{log: l}
}

func fields(e *zerolog.Event, args []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, args[i+1])
	}
	return e
}

func (z *ZerologLogger) Debug(msg string, args ...interface{}) {
	fields(z.log.Debug(), args).Msg(msg)
}

func (z *ZerologLogger) Info(msg string, args ...interface{}) {
	fields(z.log.Info(), args).Msg(msg)
}

func (z *ZerologLogger) Warn(msg string, args ...interface{}) {
	fields(z.log.Warn(), args).Msg(msg)
}

func (z *ZerologLogger) Error(msg string, args ...interface{}) {
	fields(z.log.Error(), args).Msg(msg)
}
