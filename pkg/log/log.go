// Package log configures the process-wide slog logger.
package log

import (
	"io"
	"log/slog"
	"strings"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// ParseLevel accepts slog level names in any case, including offsets such as
// "debug+2". Unknown names fall back to info.
func ParseLevel(name string) slog.Level {
	var level slog.Level

	err := level.UnmarshalText([]byte(strings.TrimSpace(name)))
	if err != nil {
		return slog.LevelInfo
	}

	return level
}

// Setup installs the default logger writing to w in the given format, text
// unless format is "json", and returns it.
func Setup(w io.Writer, level, format string) *slog.Logger {
	options := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, FormatJSON) {
		handler = slog.NewJSONHandler(w, options)
	} else {
		handler = slog.NewTextHandler(w, options)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// WithModule scopes the default logger to a component.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
