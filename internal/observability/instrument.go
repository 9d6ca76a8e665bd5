package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const instrumentationName = "github.com/florianilch/nimbridge"

// Instrument wires the process-wide logging pipeline: a stdout handler in
// the requested format, enriched with trace correlation, and an OTLP
// exporting bridge when the standard OTEL_* environment configures one.
// The returned shutdown flushes buffered exports.
func Instrument(ctx context.Context, level slog.Level, logFormat string) (func(context.Context) error, error) {
	stdoutHandler, err := newStdoutHandler(level, logFormat)
	if err != nil {
		return nil, err
	}

	handler := slog.Handler(stdoutHandler)
	shutdown := func(context.Context) error { return nil }

	exporter, err := newLogExporter(ctx)
	if err != nil {
		return nil, err
	}
	if exporter != nil {
		// The bridge applies the same level filter as the stdout handler,
		// enforced in the processor so disabled records are never exported.
		processor := minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), toSeverity(level))
		provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(processor))

		bridge := otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(provider))
		handler = newFanoutHandler(stdoutHandler, bridge)
		shutdown = provider.Shutdown

		// Instrumented dependencies that log through the OTel API directly
		// pick up the same pipeline.
		global.SetLoggerProvider(provider)
	}

	slog.SetDefault(slog.New(newTraceContextHandler(handler)))

	return shutdown, nil
}

// newStdoutHandler creates a handler for human-readable logs.
func newStdoutHandler(level slog.Level, logFormat string) (slog.Handler, error) {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	switch strings.ToLower(logFormat) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q (expected: json, text)", logFormat)
	}

	return handler, nil
}

// newLogExporter selects the log exporter from the standard OTel
// environment. Returns nil when no export destination is configured.
func newLogExporter(ctx context.Context) (sdklog.Exporter, error) {
	if os.Getenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT") == "" && os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		// The console exporter serves local debugging of the export path.
		if strings.EqualFold(os.Getenv("OTEL_LOGS_EXPORTER"), "console") {
			return stdoutlog.New()
		}
		return nil, nil
	}

	protocol := os.Getenv("OTEL_EXPORTER_OTLP_LOGS_PROTOCOL")
	if protocol == "" {
		protocol = os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL")
	}
	switch protocol {
	case "grpc":
		return otlploggrpc.New(ctx)
	case "", "http/protobuf":
		return otlploghttp.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q (expected: grpc, http/protobuf)", protocol)
	}
}

// toSeverity maps an slog level onto the minimum-severity scale used by the
// export processor.
func toSeverity(level slog.Level) minsev.Severity {
	switch {
	case level >= slog.LevelError:
		return minsev.SeverityError
	case level >= slog.LevelWarn:
		return minsev.SeverityWarn
	case level >= slog.LevelInfo:
		return minsev.SeverityInfo
	default:
		return minsev.SeverityDebug
	}
}
