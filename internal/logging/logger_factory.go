package logging

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/bastionzero/rsakit/internal/config"
)

// New builds a logger from cfg. Console loggers write to console
func New(cfg *config.LoggingConfig, console io.Writer) (Logger, error) {
	switch cfg.Type {
	case config.LogTypeConsole:
		return NewConsoleLogger(cfg.Level, console), nil
	case config.LogTypeFile:
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("file path required for file logger")
		}
		return NewFileLogger(cfg.Level, cfg.FilePath, cfg.MaxSize, cfg.MaxBackups, cfg.MaxAge), nil
	default:
		return nil, fmt.Errorf("unsupported log type: %s", cfg.Type)
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelInfo:
		return slog.LevelInfo
	case config.LogLevelWarning:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
