package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// level backs every handler built here so a config reload can change verbosity
// without rebuilding the logger.
var level = new(slog.LevelVar)

// ParseLevel maps "debug", "info", "warn"/"warning" and "error" (any case) to a
// slog.Level. Anything else is treated as info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger installs a JSON ("json") or text (anything else) logger on stdout
// as the slog default.
func SetupLogger(format, lvl string) {
	SetupLoggerTo(os.Stdout, format, lvl)
}

// SetupLoggerTo is SetupLogger with an explicit destination. The MCP server
// passes os.Stderr because stdout carries protocol frames.
func SetupLoggerTo(w io.Writer, format, lvl string) {
	level.Set(ParseLevel(lvl))

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level.Level() == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
	slog.Debug("logger initialised", "format", format, "level", level.Level().String())
}

// SetLevel changes the level of the installed logger in place.
func SetLevel(lvl string) {
	next := ParseLevel(lvl)
	if next == level.Level() {
		return
	}
	level.Set(next)
	slog.Info("log level changed", "level", next.String())
}

// Level reports the current logger level.
func Level() slog.Level {
	return level.Level()
}
