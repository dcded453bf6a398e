package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/Sumatoshi-tech/rbmap"

// Providers holds the initialized observability providers.
type Providers struct {
	// Tracer is the named tracer for creating spans.
	Tracer trace.Tracer

	// Meter is the named meter for creating instruments.
	Meter metric.Meter

	// Logger is the context-aware structured logger.
	Logger *slog.Logger

	// Shutdown flushes pending telemetry. Call it once before exit.
	Shutdown func(ctx context.Context) error
}

// shutdownStack releases providers in reverse order of creation.
type shutdownStack []func(context.Context) error

func (s shutdownStack) run(ctx context.Context) error {
	errs := make([]error, 0, len(s))

	for _, fn := range slices.Backward(s) {
		errs = append(errs, fn(ctx))
	}

	return errors.Join(errs...)
}

// Init sets up tracing, metrics and logging and installs the tracer and meter
// providers as the OTel globals. Without an OTLPEndpoint both providers are
// no-ops and nothing leaves the process.
func Init(ctx context.Context, cfg Config) (Providers, error) {
	var (
		tp    trace.TracerProvider = nooptrace.NewTracerProvider()
		mp    metric.MeterProvider = noopmetric.NewMeterProvider()
		stack shutdownStack
	)

	if cfg.OTLPEndpoint != "" {
		res, err := resource.New(ctx, resource.WithAttributes(serviceAttributes(cfg)...))
		if err != nil {
			return Providers{}, fmt.Errorf("build otel resource: %w", err)
		}

		sdkTP, err := newOTLPTracerProvider(ctx, cfg, res)
		if err != nil {
			return Providers{}, fmt.Errorf("build tracer provider: %w", err)
		}

		stack = append(stack, sdkTP.Shutdown)

		sdkMP, err := newOTLPMeterProvider(ctx, cfg, res)
		if err != nil {
			return Providers{}, errors.Join(fmt.Errorf("build meter provider: %w", err), stack.run(ctx))
		}

		stack = append(stack, sdkMP.Shutdown)
		tp, mp = sdkTP, sdkMP
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	timeout := time.Duration(cfg.ShutdownTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = defaultShutdownTimeoutSec * time.Second
	}

	return Providers{
		Tracer: tp.Tracer(instrumentationName),
		Meter:  mp.Meter(instrumentationName),
		Logger: NewLogger(cfg),
		Shutdown: func(shutdownCtx context.Context) error {
			deadlineCtx, cancel := context.WithTimeout(shutdownCtx, timeout)
			defer cancel()

			return stack.run(deadlineCtx)
		},
	}, nil
}

// ParseOTLPHeaders parses an OTLP headers string in "key=value,key=value"
// format. Pairs without "=" are skipped. Returns nil when nothing parses.
func ParseOTLPHeaders(raw string) map[string]string {
	var headers map[string]string

	for pair := range strings.SplitSeq(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}

		if headers == nil {
			headers = make(map[string]string)
		}

		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	return headers
}

func serviceAttributes(cfg Config) []attribute.KeyValue {
	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}

	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}

	return attrs
}
