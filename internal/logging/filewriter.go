package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileLogConfig configures the rotating log file used while the browser owns the terminal.
type FileLogConfig struct {
	// Path is the log file to write (rotated in place)
	Path string

	// MaxSizeMB is the size at which the file is rotated (default 10)
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept (default 5)
	MaxBackups int

	// MaxAgeDays is how long rotated files are kept (default 30)
	MaxAgeDays int
}

func (c *FileLogConfig) applyDefaults() {
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 5
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = 30
	}
}

// NewFileLogger creates a logger that writes JSON lines to a lumberjack-rotated file.
// The returned closer must be closed on shutdown to flush the file handle.
func NewFileLogger(cfg FileLogConfig) (*Logger, func() error, error) {
	if cfg.Path == "" {
		return nil, nil, fmt.Errorf("log file path is empty")
	}
	cfg.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	writer := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB, // MB
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays, // days
		Compress:   true,
	}

	logger := &Logger{
		zlog: zerolog.New(writer).
			With().
			Timestamp().
			Int("pid", os.Getpid()).
			Logger(),
		mode:   "tui",
		output: writer,
	}

	return logger, writer.Close, nil
}
