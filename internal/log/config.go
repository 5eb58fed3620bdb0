package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format is the record encoding.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "text"
}

// ParseFormat maps "json" to FormatJSON and anything else to text.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return FormatJSON
	}
	return FormatText
}

// ParseLevel maps a level name to its slog level. Unknown names mean warn,
// which keeps a terminal quiet.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	}
	return slog.LevelWarn
}

// Config holds configuration for the logger.
type Config struct {
	Level     slog.Level
	Format    Format
	Output    io.Writer // os.Stderr when nil
	AddSource bool

	// ServiceName and ServiceVersion are attached to every record.
	ServiceName    string
	ServiceVersion string
}

// DefaultConfig logs warnings and errors as text to stderr, leaving stdout
// to command output.
func DefaultConfig() Config {
	return Config{
		Level:       slog.LevelWarn,
		Format:      FormatText,
		Output:      os.Stderr,
		ServiceName: "calsync",
	}
}
