package cmd

import (
	"context"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/felixgeelhaar/calsync/internal/config"
	"github.com/felixgeelhaar/calsync/internal/log"
	"github.com/felixgeelhaar/calsync/internal/telemetry"
	"github.com/felixgeelhaar/calsync/internal/version"
)

// setupLogging builds the process logger. Logs go to stderr so stdout stays
// machine readable; flags win over the config file.
func setupLogging(cfg *config.Config, opts *globalOptions, stderr io.Writer) *log.Logger {
	info := version.GetInfo()

	level := cfg.Log.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	format := cfg.Log.Format
	if opts.LogFormat != "" {
		format = opts.LogFormat
	}

	logger := log.New(log.Config{
		Level:          log.ParseLevel(level),
		Format:         log.ParseFormat(format),
		Output:         stderr,
		AddSource:      false,
		ServiceName:    "calsync",
		ServiceVersion: info.Version,
	})

	log.SetDefaultLogger(logger)
	return logger
}

// setupTelemetry installs the tracer provider and returns its flush
// function. Failures only disable tracing.
func setupTelemetry(ctx context.Context, cfg *config.Config, logger *log.Logger) func() {
	if !cfg.Telemetry.Enabled {
		return func() {}
	}

	info := version.GetInfo()
	telemCfg := telemetry.Config{
		ServiceName:    "calsync",
		ServiceVersion: info.Version,
		Environment:    telemetryEnvironment(),
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       telemetryInsecure(),
		SampleRate:     clampSampleRate(cfg.Telemetry.SampleRate),
	}

	shutdown, err := telemetry.InitProvider(ctx, telemCfg)
	if err != nil {
		logger.Warn("Failed to initialize telemetry", "error", err)
		return func() {}
	}

	logger.Debug("Telemetry enabled",
		"endpoint", telemCfg.Endpoint,
		"sample_rate", telemCfg.SampleRate,
	)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to flush telemetry", "error", err)
		}
	}
}

func telemetryEnvironment() string {
	if env := os.Getenv("CALSYNC_ENV"); env != "" {
		return env
	}
	return "cli"
}

func telemetryInsecure() bool {
	v, _ := strconv.ParseBool(os.Getenv("CALSYNC_OTLP_INSECURE"))
	return v
}

func clampSampleRate(value float64) float64 {
	switch {
	case value <= 0:
		return 0.0
	case value >= 1:
		return 1.0
	default:
		return value
	}
}
