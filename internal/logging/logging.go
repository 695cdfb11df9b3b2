// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/xob0t/GoStego/internal/config"
)

// Init builds the logger for app from cfg and installs it as log.Logger.
// With no file configured, output is a human-readable console stream on
// stderr; otherwise JSON lines go to a size-rotated file.
func Init(app string, cfg config.LogConfig) zerolog.Logger {
	var out io.Writer
	if cfg.File == "" {
		out = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
	} else {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
	}

	logger := New(out, app, cfg.Level)
	log.Logger = logger
	return logger
}

// New returns a timestamped logger writing to w at the named level.
// Unknown levels fall back to info.
func New(w io.Writer, app, level string) zerolog.Logger {
	return zerolog.New(w).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Str("app", app).
		Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
