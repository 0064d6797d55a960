// Package observability provides structured logging, metrics and health
// checks shared by the keel binaries.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogFormat is text or json.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// LogLevel is the minimum level written.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogConfig configures NewLogger.
type LogConfig struct {
	Level          LogLevel
	Format         LogFormat
	Output         io.Writer // defaults to os.Stderr
	AddSource      bool
	ServiceName    string
	ServiceVersion string
}

// DefaultLogConfig is used outside production: text on stderr.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:          LogLevelInfo,
		Format:         LogFormatText,
		Output:         os.Stderr,
		ServiceName:    "keel",
		ServiceVersion: "dev",
	}
}

// ProductionLogConfig writes JSON with source locations to stdout.
func ProductionLogConfig() LogConfig {
	return LogConfig{
		Level:          LogLevelInfo,
		Format:         LogFormatJSON,
		Output:         os.Stdout,
		AddSource:      true,
		ServiceName:    "keel",
		ServiceVersion: "unknown",
	}
}

// NewLogger creates a logger that stamps every record with the service
// attributes and the request, correlation and user ids found in the context.
func NewLogger(cfg LogConfig) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     parseSlogLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.Format == LogFormatJSON {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	var attrs []slog.Attr
	if cfg.ServiceName != "" {
		attrs = append(attrs, slog.String("service", cfg.ServiceName))
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, slog.String("version", cfg.ServiceVersion))
	}
	return slog.New(&contextHandler{handler: handler, attrs: attrs})
}

// LoggerFor builds a logger from the application settings. Production
// defaults to JSON; an explicit format always wins.
func LoggerFor(appEnv, level, format, version string) *slog.Logger {
	cfg := DefaultLogConfig()
	if appEnv == "production" {
		cfg = ProductionLogConfig()
	}
	if level != "" {
		cfg.Level = LogLevel(strings.ToLower(level))
	}
	if format != "" {
		cfg.Format = LogFormat(strings.ToLower(format))
	}
	if version != "" {
		cfg.ServiceVersion = version
	}
	return NewLogger(cfg)
}

// LoggerFromEnv creates a logger from APP_ENV, LOG_LEVEL, LOG_FORMAT and
// KEEL_VERSION. Binaries use it until the config is loaded.
func LoggerFromEnv() *slog.Logger {
	return LoggerFor(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), os.Getenv("KEEL_VERSION"))
}

func parseSlogLevel(level LogLevel) slog.Level {
	switch level {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type contextHandler struct {
	handler slog.Handler
	attrs   []slog.Attr
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(h.attrs...)
	if id := CorrelationIDFromContext(ctx); id != "" {
		r.AddAttrs(slog.String(CorrelationIDKey, id))
	}
	if id := RequestIDFromContext(ctx); id != "" {
		r.AddAttrs(slog.String(RequestIDKey, id))
	}
	if id := UserIDFromContext(ctx); id != "" {
		r.AddAttrs(slog.String(UserIDKey, id))
	}
	return h.handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{handler: h.handler.WithAttrs(attrs), attrs: h.attrs}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{handler: h.handler.WithGroup(name), attrs: h.attrs}
}
