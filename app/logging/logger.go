package logging

import (
	"io"
	"log/slog"
	"time"

	"github.com/charmbracelet/log"
)

var formatters = map[string]log.Formatter{
	"text":   log.TextFormatter,
	"json":   log.JSONFormatter,
	"logfmt": log.LogfmtFormatter,
}

// New returns a slog logger backed by a charmbracelet handler. Unknown
// formats fall back to text.
func New(w io.Writer, debug bool, format string) *slog.Logger {
	formatter, ok := formatters[format]
	if !ok {
		formatter = log.TextFormatter
	}

	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}

	handler := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           level,
		Formatter:       formatter,
	})

	return slog.New(handler)
}

// Init installs the logger as the slog default and returns it.
func Init(w io.Writer, debug bool, format string) *slog.Logger {
	logger := New(w, debug, format)
	slog.SetDefault(logger)
	return logger
}
