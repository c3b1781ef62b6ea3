// Package log wraps zerolog behind the small facade the ring core logs
// through, the way control/debug.go and control/metrics.go wrap their own
// platform concerns behind narrow interfaces.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the facade every package in this module logs through. It never
// exposes zerolog's *Event chaining API directly so call sites stay
// one-liners: log.Warn("token lost", "ring_id", r.String()).
type Logger struct {
	z zerolog.Logger
}

// New builds a Logger writing NDJSON to w at the given minimum level.
func New(w io.Writer, level zerolog.Level) *Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	z := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &Logger{z: z}
}

// NewConsole builds a Logger with zerolog's human-readable console writer,
// for interactive use (cmd/totemd).
func NewConsole(level zerolog.Level) *Logger {
	cw := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	z := zerolog.New(cw).Level(level).With().Timestamp().Logger()
	return &Logger{z: z}
}

// With returns a child Logger with an additional field attached to every
// subsequent entry, used to scope logs to a ring instance or node id.
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{z: l.z.With().Interface(key, value).Logger()}
}

func (l *Logger) Debug(msg string, kv ...any) { l.log(l.z.Debug(), msg, kv) }
func (l *Logger) Info(msg string, kv ...any)  { l.log(l.z.Info(), msg, kv) }
func (l *Logger) Warn(msg string, kv ...any)  { l.log(l.z.Warn(), msg, kv) }
func (l *Logger) Error(msg string, err error, kv ...any) {
	l.log(l.z.Error().Err(err), msg, kv)
}

func (l *Logger) log(ev *zerolog.Event, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}
