// Package logger is the process-wide component logger.
//
// Call sites tag every line with the component that produced it:
//
//	logger.InfoCF("publisher", "Relay accepted event", map[string]any{"relay": url})
//
// Output is rendered by zerolog: JSON lines by default, a human console
// format when Configure is called with Pretty.
package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var levelMap = map[LogLevel]zerolog.Level{
	DEBUG: zerolog.DebugLevel,
	INFO:  zerolog.InfoLevel,
	WARN:  zerolog.WarnLevel,
	ERROR: zerolog.ErrorLevel,
}

// Options controls how log lines are rendered.
type Options struct {
	Level  LogLevel
	Pretty bool
	Output io.Writer
}

var (
	mu   sync.RWMutex
	base = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)
)

// Configure replaces the process logger.
func Configure(opts Options) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	mu.Lock()
	defer mu.Unlock()
	base = zerolog.New(out).With().Timestamp().Logger().Level(levelMap[opts.Level])
}

func SetLevel(level LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	base = base.Level(levelMap[level])
}

func componentLogger(component string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if component == "" {
		return base
	}
	return base.With().Str("component", component).Logger()
}

func logMessage(level LogLevel, component, message string, fields map[string]any) {
	l := componentLogger(component)
	ev := l.WithLevel(levelMap[level])
	if ev == nil {
		return
	}
	if len(fields) > 0 {
		ev = ev.Fields(fields)
	}
	ev.Msg(message)
}

func InfoC(component, message string) { logMessage(INFO, component, message, nil) }
func WarnC(component, message string) { logMessage(WARN, component, message, nil) }

func DebugCF(component, message string, fields map[string]any) {
	logMessage(DEBUG, component, message, fields)
}

func InfoCF(component, message string, fields map[string]any) {
	logMessage(INFO, component, message, fields)
}

func WarnCF(component, message string, fields map[string]any) {
	logMessage(WARN, component, message, fields)
}

func ErrorCF(component, message string, fields map[string]any) {
	logMessage(ERROR, component, message, fields)
}
