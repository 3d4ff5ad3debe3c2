// Package logging provides structured logging for the CLI and for embedders
// of the file-manager core.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vaultfm/vaultfm/internal/events"
)

// Logger wraps zerolog with mode-specific behavior.
type Logger struct {
	zlog     zerolog.Logger
	mode     string // "cli" or "library"
	eventBus *events.EventBus
	output   io.Writer
}

// NewLogger creates a new logger for the specified mode.
// In library mode warnings and errors are mirrored onto the event bus as
// LogEvents so a front end can surface them.
func NewLogger(mode string, eventBus *events.EventBus) *Logger {
	var out io.Writer = os.Stderr
	if mode == "cli" {
		// stderr is shared with the progress bars, logs go to stdout
		out = os.Stdout
	}
	l := &Logger{mode: mode, eventBus: eventBus}
	l.SetOutput(out)
	return l
}

// NewDefaultCLILogger creates a default CLI logger.
func NewDefaultCLILogger() *Logger {
	return NewLogger("cli", nil)
}

// NewNopLogger returns a logger that discards everything. Used by tests and as
// the fallback when a component is constructed without a logger.
func NewNopLogger() *Logger {
	return &Logger{zlog: zerolog.Nop(), mode: "library", output: io.Discard}
}

// OrNop returns l, or a discarding logger when l is nil.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return NewNopLogger()
	}
	return l
}

// Component returns a child logger tagged with a component name.
func (l *Logger) Component(name string) *Logger {
	child := *l
	child.zlog = l.zlog.With().Str("component", name).Logger()
	return &child
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// With creates a child logger context.
func (l *Logger) With() zerolog.Context {
	return l.zlog.With()
}

// SetOutput changes the output writer for the logger.
// Used to redirect logs through the progress bar container while uploading.
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
	zl := zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}).With().Timestamp().Logger()
	if l.mode != "cli" && l.eventBus != nil {
		zl = zl.Hook(busHook{bus: l.eventBus})
	}
	l.zlog = zl
}

// Output returns the current output writer.
func (l *Logger) Output() io.Writer {
	return l.output
}

// Debugf logs a debug message with printf-style formatting.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zlog.Debug().Msgf(format, args...)
}

// Infof logs an info message with printf-style formatting.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// Errorf logs an error message with printf-style formatting.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zlog.Error().Msgf(format, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zlog.Warn().Msgf(format, args...)
}

// busHook forwards warnings and errors to the event bus.
type busHook struct {
	bus *events.EventBus
}

func (h busHook) Run(_ *zerolog.Event, level zerolog.Level, msg string) {
	switch level {
	case zerolog.WarnLevel:
		h.bus.PublishLog(events.WarnLevel, msg, "", nil)
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		h.bus.PublishLog(events.ErrorLevel, msg, "", nil)
	}
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// ParseLevel maps a config string onto a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}
