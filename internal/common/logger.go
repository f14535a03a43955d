package common

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"
)

// Fields carries structured attributes for the Log helpers.
type Fields map[string]any

var levels = map[string]slog.Level{
	"":      slog.LevelInfo,
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// ParseLevel maps debug, info, warn or error (any case) to a slog.Level.
// An empty string means info.
func ParseLevel(level string) (slog.Level, error) {
	if l, ok := levels[strings.ToLower(strings.TrimSpace(level))]; ok {
		return l, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level: %s", level)
}

// SetupLogger installs the process-wide logger on stderr. format is "json"
// or "console" (the default).
func SetupLogger(level slog.Level, format string) error {
	logger, err := newLogger(os.Stderr, level, format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

func newLogger(w io.Writer, level slog.Level, format string) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "", "console", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("invalid log format: %s", format)
}

// ComponentLogger returns the default logger tagged with a component name.
func ComponentLogger(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

// LogError logs msg at error level with err under the "error" key.
func LogError(err error, msg string, fields Fields) {
	logFields(slog.LevelError, msg, fields, slog.String("error", err.Error()))
}

// LogInfo logs msg at info level.
func LogInfo(msg string, fields Fields) {
	logFields(slog.LevelInfo, msg, fields)
}

// LogDebug logs msg at debug level.
func LogDebug(msg string, fields Fields) {
	logFields(slog.LevelDebug, msg, fields)
}

// logFields emits fields in key order so repeated lines line up.
func logFields(level slog.Level, msg string, fields Fields, lead ...slog.Attr) {
	ctx := context.Background()
	if !slog.Default().Enabled(ctx, level) {
		return
	}
	attrs := append(make([]slog.Attr, 0, len(lead)+len(fields)), lead...)
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	slog.LogAttrs(ctx, level, msg, attrs...)
}
