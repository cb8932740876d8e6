package mysensors

// Logger defines the logging interface used by the proxy components.
// It is satisfied by *logging.Logger and *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

func loggerOrNoop(l Logger) Logger {
	if l == nil {
		return noopLogger{}
	}
	return l
}
