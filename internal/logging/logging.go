// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mbvlabs/seatguard/internal/config"
)

const (
	logFileName = "seatguard.log"
	maxSizeMB   = 10
	maxBackups  = 5
	maxAgeDays  = 28
	logDirPerm  = 0o755
)

// New builds a tint logger writing to stdout and, when cfg.Dir is set, to a
// rotated file as well. The returned closer releases the file.
func New(cfg config.LoggingConfig, stdout io.Writer) (*slog.Logger, io.Closer, error) {
	if stdout == nil {
		stdout = os.Stdout
	}
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		return newLogger(stdout, level, cfg.NoColor), nopCloser{}, nil
	}

	if err := os.MkdirAll(dir, logDirPerm); err != nil {
		return nil, nil, fmt.Errorf("create log dir failed: %w", err)
	}

	file := &lumberjack.Logger{
		Filename:   filepath.Join(dir, logFileName),
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}

	// Colors would end up as escape codes in the file.
	logger := newLogger(io.MultiWriter(stdout, file), level, true)
	logger.Info("file_logging_enabled", "path", file.Filename)
	return logger, file, nil
}

func newLogger(w io.Writer, level slog.Level, noColor bool) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
		AddSource:  true,
		NoColor:    noColor,
	}))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
