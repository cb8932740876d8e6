package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nerrad567/sensor-net-proxy/internal/infrastructure/config"
)

// serviceName is attached to every log entry.
const serviceName = "sensor-net-proxy"

// logFilePermissions restricts the debug log file to the owner.
const logFilePermissions = 0o600

// Logger wraps slog.Logger with proxy-specific functionality.
//
// It provides structured logging with default fields and level-based filtering.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger

	file io.Closer
}

// New creates a new Logger with the specified configuration.
//
// It configures:
//   - Output format (JSON for production, text for development)
//   - Log level filtering
//   - Default fields (service name, version)
//   - Output destination
//   - An optional debug log file that receives every record at debug level
//
// Parameters:
//   - cfg: Logging configuration from config.yaml
//   - version: Application version for default field
//
// Returns:
//   - *Logger: Configured logger ready for use
//   - error: If the log file cannot be opened
func New(cfg config.LoggingConfig, version string) (*Logger, error) {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	handler := newHandler(output, cfg.Format, parseLevel(cfg.Level))

	var file *os.File
	if cfg.File.Path != "" {
		if dir := filepath.Dir(cfg.File.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("creating log directory: %w", err)
			}
		}
		f, err := os.OpenFile(cfg.File.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermissions)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		file = f
		handler = fanoutHandler{handler, newHandler(f, "text", slog.LevelDebug)}
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})

	l := &Logger{Logger: slog.New(handler)}
	if file != nil {
		l.file = file
	}
	return l, nil
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(format) == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// parseLevel converts a string log level to slog.Level.
//
// Supported levels: debug, info, warn, error
// Defaults to info if unrecognised.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// With returns a new Logger with additional default attributes.
//
// Example:
//
//	loopLogger := logger.With("component", "event-loop")
//	loopLogger.Info("started") // Includes component=event-loop
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// Close closes the debug log file, if any. Child loggers created with With
// share the file and must not be used afterwards.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Default creates a default logger for use before configuration is loaded.
//
// This logger outputs to stderr in text format at info level.
func Default() *Logger {
	return &Logger{
		Logger: slog.New(newHandler(os.Stderr, "text", slog.LevelInfo).WithAttrs([]slog.Attr{
			slog.String("service", serviceName),
		})),
	}
}

// fanoutHandler sends each record to every handler that accepts its level.
type fanoutHandler []slog.Handler

func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
