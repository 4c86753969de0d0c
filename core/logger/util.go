package logger

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Status maps error to a unified status string for logs.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Took returns rounded duration since start for compact logging.
func Took(start time.Time) time.Duration {
	return RoundMS(time.Since(start))
}

// RoundMS rounds duration to the nearest millisecond for consistent logging.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// SummarizeStrings joins up to limit elements and reports whether truncation happened.
func SummarizeStrings(values []string, limit int) (string, bool) {
	if limit <= 0 {
		return "", len(values) > 0
	}
	if len(values) <= limit {
		return strings.Join(values, ", "), false
	}
	return strings.Join(values[:limit], ", "), true
}

func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	if rid := RIDFrom(ctx); rid != "" {
		attrs = append(attrs, slog.String("rid", rid))
	}
	if userID := UserIDFrom(ctx); userID != 0 {
		attrs = append(attrs, slog.Int64("user_id", userID))
	}
	return attrs
}

// LogEvent emits an event-tagged record enriched with context metadata.
func LogEvent(ctx context.Context, log *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if log == nil {
		log = FromContext(ctx)
	}
	all := append([]slog.Attr{slog.String("event", event)}, contextAttrs(ctx)...)
	all = append(all, attrs...)
	log.LogAttrs(ctx, level, event, all...)
}

// Debug logs a debug event on the context logger.
func Debug(ctx context.Context, log *slog.Logger, event string, attrs ...slog.Attr) {
	LogEvent(ctx, log, slog.LevelDebug, event, attrs...)
}

// Info logs an info event on the context logger.
func Info(ctx context.Context, log *slog.Logger, event string, attrs ...slog.Attr) {
	LogEvent(ctx, log, slog.LevelInfo, event, attrs...)
}

// Warn logs a warning event on the context logger.
func Warn(ctx context.Context, log *slog.Logger, event string, attrs ...slog.Attr) {
	LogEvent(ctx, log, slog.LevelWarn, event, attrs...)
}

// Error logs an error event on the context logger.
func Error(ctx context.Context, log *slog.Logger, event string, attrs ...slog.Attr) {
	LogEvent(ctx, log, slog.LevelError, event, attrs...)
}
