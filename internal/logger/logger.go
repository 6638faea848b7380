// Package logger builds the process-wide slog.Logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ekisa-team/emovec/internal/env"
)

type options struct {
	logToFile bool
	logFile   string
	level     *slog.LevelVar
	writer    io.Writer
}

// Option configures New.
type Option func(*options)

// WithLogToFile mirrors log records into a rotating file.
func WithLogToFile(enabled bool) Option {
	return func(o *options) { o.logToFile = enabled }
}

// WithLogFile sets the rotating file path.
func WithLogFile(path string) Option {
	return func(o *options) { o.logFile = path }
}

// WithLevel shares a level variable so callers can change the level later.
func WithLevel(level *slog.LevelVar) Option {
	return func(o *options) { o.level = level }
}

// WithWriter replaces stderr as the console destination.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.writer = w }
}

// New returns a logger for environment. Development logs are colored text,
// production logs are JSON. The file sink, when enabled, always writes JSON.
func New(environment env.Environment, opts ...Option) *slog.Logger {
	o := options{
		logFile: filepath.Join("logs", "emovec.log"),
		writer:  os.Stderr,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.level == nil {
		o.level = new(slog.LevelVar)
		if environment.IsProduction() {
			o.level.Set(slog.LevelInfo)
		} else {
			o.level.Set(slog.LevelDebug)
		}
	}

	var console slog.Handler
	if environment.IsProduction() {
		console = slog.NewJSONHandler(o.writer, &slog.HandlerOptions{Level: o.level})
	} else {
		console = tint.NewHandler(o.writer, &tint.Options{
			Level:      o.level,
			TimeFormat: time.Kitchen,
			NoColor:    environment == env.Test,
		})
	}

	if !o.logToFile {
		return slog.New(console)
	}

	file := &lumberjack.Logger{
		Filename:   o.logFile,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
	return slog.New(fanout{
		console,
		slog.NewJSONHandler(file, &slog.HandlerOptions{Level: o.level}),
	})
}

// ParseLevel maps debug/info/warn/error to a slog.Level.
func ParseLevel(s string) (slog.Level, bool) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, false
	}
	return level, true
}
