package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// sproutHandler is a custom slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<deviceID>\t<message>\t<key=value ...>
type sproutHandler struct {
	w        io.Writer
	deviceID string
	attrs    []slog.Attr
}

func (h *sproutHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *sproutHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")
	level := r.Level.String()

	_, err := fmt.Fprintf(h.w, "%s\t%s\t%s\t%s", ts, level, h.deviceID, r.Message)
	if err != nil {
		return err
	}

	for _, a := range h.attrs {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
		return true
	})

	_, err = fmt.Fprintln(h.w)
	return err
}

func (h *sproutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sproutHandler{
		w:        h.w,
		deviceID: h.deviceID,
		attrs:    append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *sproutHandler) WithGroup(string) slog.Handler { return h }

// newLogger creates a structured logger writing to both a size-rotated
// logDir/sprout.log and stderr. The returned closer releases the log file.
func newLogger(logDir, deviceID string) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	rotated := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "sprout.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     30, // days
	}

	w := io.MultiWriter(rotated, os.Stderr)
	handler := &sproutHandler{w: w, deviceID: deviceID}
	return slog.New(handler), rotated, nil
}

// slogAdapter wraps *slog.Logger to satisfy the sprout.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
