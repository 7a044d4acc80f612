// Package logger implements the pending-log discipline used by the coordinator pipeline. Stages never write to the
// log transport directly: they return slices of Log values together with their result, the coordinator concatenates
// them at stage joins and an Emitter ships the whole ordered stream at the end of the run.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Log levels.
const (
	DEBUG = "DEBUG"
	INFO  = "INFO"
	WARN  = "WARN"
	ERROR = "ERROR"
)

// Log formats accepted by New.
const (
	FormatPlain = "plain"
	FormatJSON  = "json"
)

// Log is a single pending log line produced by a pipeline stage.
type Log struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Err     error  `json:"error,omitempty"`
}

// Pend returns a pending log at the given level.
func Pend(level, message string) Log {
	return Log{Level: level, Message: message}
}

// PendErr returns a pending log carrying an error.
func PendErr(level, message string, err error) Log {
	return Log{Level: level, Message: message, Err: err}
}

// Combine concatenates log slices preserving order.
func Combine(groups ...[]Log) []Log {
	var n int
	for _, g := range groups {
		n += len(g)
	}

	all := make([]Log, 0, n)
	for _, g := range groups {
		all = append(all, g...)
	}

	return all
}

// Emitter ships pending logs to an output stream in plain or JSON format.
type Emitter struct {
	zl zerolog.Logger
}

// New returns an Emitter writing to w. Unknown formats default to plain.
func New(format string, w io.Writer) *Emitter {
	if w == nil {
		w = os.Stdout
	}

	var zl zerolog.Logger
	if format == FormatJSON {
		zl = zerolog.New(w).With().Timestamp().Logger()
	} else {
		zl = zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).With().Timestamp().Logger()
	}

	return &Emitter{zl: zl}
}

// Emit writes the pending logs in order.
func (e *Emitter) Emit(logs []Log) {
	for _, l := range logs {
		var ev *zerolog.Event

		switch l.Level {
		case DEBUG:
			ev = e.zl.Debug()
		case INFO:
			ev = e.zl.Info()
		case WARN:
			ev = e.zl.Warn()
		case ERROR:
			ev = e.zl.Error()
		default:
			ev = e.zl.Info()
		}

		if l.Err != nil {
			ev = ev.Err(l.Err)
		}

		ev.Msg(l.Message)
	}
}
