package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/felixgeelhaar/calsync/internal/errors"
)

func jsonLogger(level slog.Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(Config{Level: level, Format: FormatJSON, Output: &buf, ServiceName: "calsync", ServiceVersion: "1.0.0"}), &buf
}

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &rec))
	return rec
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelWarn,
		"":        slog.LevelWarn,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat("JSON"))
	assert.Equal(t, FormatText, ParseFormat("text"))
	assert.Equal(t, FormatText, ParseFormat("logfmt"))
	assert.Equal(t, "json", FormatJSON.String())
	assert.Equal(t, "text", FormatText.String())
}

func TestLevelFiltering(t *testing.T) {
	logger, buf := jsonLogger(slog.LevelWarn)

	logger.Info("hidden")
	assert.Empty(t, buf.String())
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))

	logger.Warn("shown", "attempt", 2)
	rec := lastRecord(t, buf)
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "calsync", rec["service"])
	assert.Equal(t, "1.0.0", rec["version"])
	assert.EqualValues(t, 2, rec["attempt"])
}

func TestSensitiveValuesAreMasked(t *testing.T) {
	logger, buf := jsonLogger(slog.LevelDebug)

	logger.With("token", "tok-123").Info("stored",
		"password", "secret",
		"email", "jane@example.com",
		slog.Group("request", slog.String("Authorization", "Bearer tok-123"), slog.String("path", "/events")),
	)

	out := buf.String()
	assert.NotContains(t, out, "tok-123")
	assert.NotContains(t, out, "secret")

	rec := lastRecord(t, buf)
	assert.Equal(t, redacted, rec["token"])
	assert.Equal(t, redacted, rec["password"])
	assert.Equal(t, "jane@example.com", rec["email"])
	req := rec["request"].(map[string]any)
	assert.Equal(t, redacted, req["Authorization"])
	assert.Equal(t, "/events", req["path"])
}

func TestWithError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want map[string]any
	}{
		{
			name: "plain error",
			err:  fmt.Errorf("disk full"),
			want: map[string]any{"error": "disk full"},
		},
		{
			name: "coded error with status",
			err:  errors.NewRequestFailed(500, "Server error"),
			want: map[string]any{"error": "Server error", "error_code": string(errors.ErrCodeRequestFailed), "status": float64(500)},
		},
		{
			name: "wrapped coded error with cause",
			err:  fmt.Errorf("listing: %w", errors.NewNetworkFailure(fmt.Errorf("connection refused"))),
			want: map[string]any{"error_code": string(errors.ErrCodeNetworkFailure), "cause": "connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := jsonLogger(slog.LevelDebug)
			logger.WithError(tt.err).Error("failed")
			rec := lastRecord(t, buf)
			for k, v := range tt.want {
				assert.Equal(t, v, rec[k], k)
			}
		})
	}

	logger, _ := jsonLogger(slog.LevelDebug)
	assert.Same(t, logger, logger.WithError(nil))
}

func TestDebugContextCarriesTraceIDs(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	logger, buf := jsonLogger(slog.LevelDebug)
	logger.DebugContext(ctx, "inside")
	rec := lastRecord(t, buf)
	assert.Equal(t, span.SpanContext().TraceID().String(), rec["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), rec["span_id"])

	logger.Debug("outside")
	rec = lastRecord(t, buf)
	assert.NotContains(t, rec, "trace_id")
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Output: &buf})
	logger.Info("hello", "user_id", "7")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "user_id=7")
}

func TestNopDiscards(t *testing.T) {
	logger := Nop()
	assert.False(t, logger.Enabled(context.Background(), slog.LevelError))
	logger.Error("nothing happens")
}
