package symspi

import "github.com/ehrlich-b/symspi/internal/logging"

// LogLevel selects which leveled log lines NewLogger emits.
type LogLevel = logging.LogLevel

const (
	LogLevelDebug = logging.LevelDebug
	LogLevelInfo  = logging.LevelInfo
	LogLevelWarn  = logging.LevelWarn
	LogLevelError = logging.LevelError
)

// LoggerConfig configures NewLogger.
type LoggerConfig = logging.Config

// NewLogger returns a Logger suitable for NewDevice, writing leveled,
// tagged lines to config.Output (stderr if config is nil). Pass the
// result's WithTag to distinguish log lines from multiple devices sharing
// a process.
func NewLogger(config *LoggerConfig) *logging.Logger {
	return logging.NewLogger(config)
}

// WithTag is a convenience wrapper for tagging a Logger returned by
// NewLogger before passing it to NewDevice; it exists so callers working
// only with the Logger interface can still reach this without a type
// assertion when they built the logger with NewLogger.
func WithTag(l *logging.Logger, tag string) *logging.Logger {
	return l.WithTag(tag)
}
