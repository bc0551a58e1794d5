// Package logging builds the zerolog loggers used by the binaries. Pipeline
// packages never log; they return diagnostics that are surfaced here.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"courierval/internal"
)

// New returns a console logger when stderr is a terminal and format is not
// "json", otherwise a JSON logger.
func New(level, format string) zerolog.Logger {
	var writer io.Writer = os.Stderr
	if format != "json" && isTerminal(os.Stderr.Fd()) {
		writer = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
			NoColor:    os.Getenv("NO_COLOR") != "",
		}
	}
	return NewWithWriter(writer, level)
}

func NewWithWriter(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	logger := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	if lvl <= zerolog.DebugLevel {
		logger = logger.With().Caller().Logger()
	}
	return logger
}

// Diagnostics writes stage diagnostics at their own level.
func Diagnostics(logger zerolog.Logger, diags []internal.Diagnostic) {
	for _, d := range diags {
		var ev *zerolog.Event
		switch d.Level {
		case internal.LevelError:
			ev = logger.Error()
		case internal.LevelWarn:
			ev = logger.Warn()
		default:
			ev = logger.Info()
		}
		ev = ev.Str("stage", d.Stage).Str("kind", string(d.Kind))
		if d.ClientKey != "" {
			ev = ev.Str("client", d.ClientKey)
		}
		if d.Subject != "" {
			ev = ev.Str("subject", d.Subject)
		}
		ev.Msg(d.Message)
	}
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
