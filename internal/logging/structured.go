// Package logging provides structured JSON logging for mapper and engine
// components.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

var (
	outputMu sync.RWMutex
	output   io.Writer = os.Stderr
)

func init() {
	zerolog.TimestampFieldName = "ts"
	zerolog.TimeFieldFormat = time.RFC3339
	SetLevel(Level(os.Getenv("OGM_LOG_LEVEL")))
}

// SetLevel sets the minimum level for every logger. Unknown values mean info.
func SetLevel(level Level) {
	zerolog.SetGlobalLevel(Level(strings.ToLower(string(level))).zerolog())
}

// SetOutput redirects loggers created afterwards.
func SetOutput(w io.Writer) {
	outputMu.Lock()
	defer outputMu.Unlock()
	output = w
}

// ConsoleOutput returns a human readable writer for terminals.
func ConsoleOutput(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
}

// Logger provides structured logging
type Logger struct {
	component string
	session   string
	zl        zerolog.Logger
}

// New creates a new logger for a component
func New(component string) *Logger {
	outputMu.RLock()
	w := output
	outputMu.RUnlock()
	return NewWithWriter(component, w)
}

// NewWithWriter creates a logger writing to w.
func NewWithWriter(component string, w io.Writer) *Logger {
	return &Logger{
		component: component,
		zl:        zerolog.New(w).With().Timestamp().Logger(),
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// WithSession sets the session context
func (l *Logger) WithSession(id string) *Logger {
	return &Logger{
		component: l.component,
		session:   id,
		zl:        l.zl,
	}
}

// Component returns the component name.
func (l *Logger) Component() string {
	return l.component
}

// log emits a structured log event
func (l *Logger) log(level Level, event string, extra map[string]any, err error, took time.Duration) {
	e := l.zl.WithLevel(level.zerolog())
	if e == nil {
		return
	}
	e = e.Str("component", l.component).Str("event", event)
	if l.session != "" {
		e = e.Str("session", l.session)
	}
	if took > 0 {
		e = e.Int64("duration_ms", took.Milliseconds())
	}
	if len(extra) > 0 {
		e = e.Interface("extra", extra)
	}
	if err != nil {
		e = e.Err(err)
	}
	e.Send()
}

// Debug logs a debug event
func (l *Logger) Debug(event string, extra map[string]any) {
	l.log(LevelDebug, event, extra, nil, 0)
}

// Info logs an info event
func (l *Logger) Info(event string, extra map[string]any) {
	l.log(LevelInfo, event, extra, nil, 0)
}

// Warn logs a warning event
func (l *Logger) Warn(event string, extra map[string]any, err error) {
	l.log(LevelWarn, event, extra, err, 0)
}

// Error logs an error event
func (l *Logger) Error(event string, extra map[string]any, err error) {
	l.log(LevelError, event, extra, err, 0)
}

// TimedEvent logs an event with duration
func (l *Logger) TimedEvent(event string, start time.Time, extra map[string]any) {
	took := time.Since(start)
	if took <= 0 {
		took = time.Nanosecond
	}
	l.log(LevelInfo, event, extra, nil, took)
}
