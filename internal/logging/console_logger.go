package logging

import (
	"io"
	"log/slog"
)

// NewConsoleLogger writes text records to w, normally os.Stderr so that stdout stays free for key material
func NewConsoleLogger(level string, w io.Writer) Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	return &slogLogger{logger: slog.New(slog.NewTextHandler(w, opts))}
}
