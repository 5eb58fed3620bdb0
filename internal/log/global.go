package log

import "log/slog"

// SetDefaultLogger routes the slog default through logger, so libraries
// logging via slog land in the same sink.
func SetDefaultLogger(logger *Logger) {
	slog.SetDefault(logger.slog)
}
