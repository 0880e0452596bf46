package logging

import (
	"io"
	"log/slog"

	"github.com/natefinch/lumberjack"
)

// FileLogger writes JSON records to a rotating file
type FileLogger struct {
	slogLogger
	writer *lumberjack.Logger
}

// NewFileLogger creates a file logger. maxSize is in megabytes and maxAge in days
func NewFileLogger(level string, filePath string, maxSize int, maxBackups int, maxAge int) *FileLogger {
	writer := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   true,
	}

	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	return &FileLogger{
		slogLogger: slogLogger{logger: slog.New(slog.NewJSONHandler(writer, opts))},
		writer:     writer,
	}
}

// Close closes the current log file
func (l *FileLogger) Close() error {
	return l.writer.Close()
}

var _ io.Closer = (*FileLogger)(nil)
