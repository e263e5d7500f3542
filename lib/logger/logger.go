/*package logger is the structured logger used by every gadget-subsample
command. Messages take alternating key/value pairs after the message string,
and child loggers made with With carry their pairs on every message.
*/
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Log is the global logger. Setup and SetupWriter replace it.
var Log = New(os.Stderr, "info", "console")

type Logger struct {
	z zerolog.Logger
}

// New creates a logger writing to wr. level is one of debug, info, warn, or
// error and format is console or json. Unrecognized values fall back to
// info and console.
func New(wr io.Writer, level, format string) *Logger {
	if strings.ToLower(format) != "json" {
		wr = zerolog.ConsoleWriter{Out: wr, TimeFormat: time.RFC3339}
	}
	z := zerolog.New(wr).Level(ParseLevel(level)).With().Timestamp().Logger()
	return &Logger{z: z}
}

// Setup replaces the global logger with one writing to stderr.
func Setup(level, format string) {
	SetupWriter(os.Stderr, level, format)
}

// SetupWriter replaces the global logger with one writing to wr.
func SetupWriter(wr io.Writer, level, format string) {
	Log = New(wr, level, format)
}

// ParseLevel converts a level name to a zerolog level. It is case
// insensitive and returns InfoLevel for unrecognized names.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	}
	return zerolog.InfoLevel
}

// Level returns the minimum level that l writes.
func (l *Logger) Level() zerolog.Level { return l.z.GetLevel() }

// With returns a child logger which adds the given pairs to every message.
func (l *Logger) With(args ...interface{}) *Logger {
	ctx := l.z.With()
	eachPair(args, func(key string, v interface{}) {
		switch v := v.(type) {
		case error:
			ctx = ctx.AnErr(key, v)
		case time.Duration:
			ctx = ctx.Dur(key, v)
		default:
			ctx = ctx.Interface(key, v)
		}
	})
	return &Logger{z: ctx.Logger()}
}

func (l *Logger) Debug(msg string, args ...interface{}) { send(l.z.Debug(), msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { send(l.z.Info(), msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { send(l.z.Warn(), msg, args) }

// Error logs at error level. An error value may be passed under any key.
func (l *Logger) Error(msg string, args ...interface{}) { send(l.z.Error(), msg, args) }

// send adds the pairs in args to e and writes it. e is nil when its level
// is disabled.
func send(e *zerolog.Event, msg string, args []interface{}) {
	if e == nil {
		return
	}
	eachPair(args, func(key string, v interface{}) {
		switch v := v.(type) {
		case error:
			e.AnErr(key, v)
		case time.Duration:
			e.Dur(key, v)
		default:
			e.Interface(key, v)
		}
	})
	e.Msg(msg)
}

// eachPair calls fn on each key/value pair in args. Keys which aren't
// strings are formatted with %v and a trailing key without a value is
// dropped.
func eachPair(args []interface{}, fn func(key string, v interface{})) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", args[i])
		}
		fn(key, args[i+1])
	}
}
