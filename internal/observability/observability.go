// Package observability wires structured logging for the process.
//
// Logs always go to stderr in text or JSON form. When the standard OTel
// environment variables are set (OTEL_EXPORTER_OTLP_ENDPOINT or
// OTEL_LOGS_EXPORTER), log records are additionally exported through the
// OpenTelemetry log SDK.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// instrumentationName identifies this module's log records to exporters.
const instrumentationName = "github.com/nr1etech/xcorplatform-client"

// Instrument installs the process-wide default logger. format is "text" or
// "json"; anything else falls back to text.
func Instrument(level slog.Level, format string) error {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	otelHandler, err := newOTelHandler(context.Background(), level)
	if err != nil {
		return fmt.Errorf("configuring log export: %w", err)
	}
	if otelHandler != nil {
		handler = &teeHandler{handlers: []slog.Handler{handler, otelHandler}}
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// newOTelHandler builds an OTel-bridged slog handler from the standard OTel
// environment variables. Returns nil when no exporter is configured.
func newOTelHandler(ctx context.Context, level slog.Level) (slog.Handler, error) {
	exporterKind := os.Getenv("OTEL_LOGS_EXPORTER")
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	var (
		exporter sdklog.Exporter
		err      error
	)
	switch {
	case exporterKind == "none", exporterKind == "" && endpoint == "":
		return nil, nil
	case exporterKind == "console":
		exporter, err = stdoutlog.New()
	case os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL") == "grpc":
		exporter, err = otlploggrpc.New(ctx)
	default:
		exporter, err = otlploghttp.New(ctx)
	}
	if err != nil {
		return nil, err
	}

	// minsev drops records below the configured level before they reach the
	// batch processor, mirroring the stderr handler's level.
	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(
			minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), minSeverity(level)),
		),
	)

	return otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(provider)), nil
}

// minSeverity maps an slog level to the minimum OTel severity to export.
func minSeverity(level slog.Level) minsev.Severity {
	switch {
	case level <= slog.LevelDebug:
		return minsev.SeverityDebug
	case level <= slog.LevelInfo:
		return minsev.SeverityInfo
	case level <= slog.LevelWarn:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
