// Package logging builds the process-wide structured logger. Components take
// a *log.Logger explicitly; there is no package-level instance.
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// New returns a logger writing to w. level is debug|info|warn|error (default
// info); format is text|json|logfmt (default text).
func New(w io.Writer, level, format string) *log.Logger {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	opts := log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           lvl,
		Prefix:          "uzima",
	}
	switch strings.ToLower(format) {
	case "json":
		opts.Formatter = log.JSONFormatter
	case "logfmt":
		opts.Formatter = log.LogfmtFormatter
	default:
		opts.Formatter = log.TextFormatter
	}
	return log.NewWithOptions(w, opts)
}

// Discard is a logger for tests and optional collaborators.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
