package logging

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

const defaultMaxSizeMB = 100

type Config struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	// MaxBackups caps the rotated files kept beside File. Zero keeps all.
	MaxBackups int
	// Quiet drops the stdout sink. The interactive chat command uses it so
	// log lines do not interleave with the conversation.
	Quiet      bool
}

// Init installs the process-wide slog logger and routes the stdlib log
// package into it. The returned closer is nil unless cfg.File is set.
func Init(cfg Config) (io.Closer, error) {
	level := ParseLevel(cfg.Level)
	var writers []io.Writer
	if !cfg.Quiet {
		writers = append(writers, os.Stdout)
	}

	var file *lumberjack.Logger
	if path := strings.TrimSpace(cfg.File); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("log directory: %w", err)
		}
		file = newFileWriter(path, cfg.MaxSizeMB, cfg.MaxBackups)
		writers = append(writers, file)
	}

	handler := newHandler(cfg.Format, sink(writers), level)
	slog.SetDefault(slog.New(handler))

	log.SetFlags(0)
	log.SetOutput(slog.NewLogLogger(handler, level).Writer())

	if file == nil {
		return nil, nil
	}
	return file, nil
}

// newFileWriter appends to path and renames it to a timestamped backup once
// the next write would pass maxSizeMB.
func newFileWriter(path string, maxSizeMB, maxBackups int) *lumberjack.Logger {
	if maxSizeMB <= 0 {
		maxSizeMB = defaultMaxSizeMB
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: max(maxBackups, 0),
		LocalTime:  true,
	}
}

func sink(writers []io.Writer) io.Writer {
	switch len(writers) {
	case 0:
		return io.Discard
	case 1:
		return writers[0]
	default:
		return io.MultiWriter(writers...)
	}
}

func newHandler(format string, w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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
