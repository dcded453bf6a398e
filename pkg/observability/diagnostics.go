package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	pathHealth  = "/healthz"
	pathReady   = "/readyz"
	pathMetrics = "/metrics"

	diagnosticsReadHeaderTimeout = 5 * time.Second
)

// DiagnosticsServer serves /healthz, /readyz and Prometheus /metrics over HTTP.
// Every request gets a server span from the given tracer.
type DiagnosticsServer struct {
	server        *http.Server
	listener      net.Listener
	meterProvider *sdkmetric.MeterProvider
}

// NewDiagnosticsServer listens on addr and starts serving in the background.
// Instruments created from [DiagnosticsServer.MeterProvider] are exported at /metrics.
func NewDiagnosticsServer(
	addr string, tracer trace.Tracer, logger *slog.Logger, checks ...ReadyCheck,
) (*DiagnosticsServer, error) {
	metricsHandler, mp, err := PrometheusHandler()
	if err != nil {
		return nil, fmt.Errorf("create prometheus handler: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(pathHealth, HealthHandler())
	mux.Handle(pathReady, ReadyHandler(checks...))
	mux.Handle(pathMetrics, metricsHandler)

	var lc net.ListenConfig

	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           HTTPMiddleware(tracer, mux),
		ReadHeaderTimeout: diagnosticsReadHeaderTimeout,
	}

	go func() {
		serveErr := srv.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Warn("diagnostics server stopped", "error", serveErr)
		}
	}()

	return &DiagnosticsServer{server: srv, listener: listener, meterProvider: mp}, nil
}

// Addr returns the address the server is listening on.
func (d *DiagnosticsServer) Addr() string {
	return d.listener.Addr().String()
}

// MeterProvider returns the provider whose instruments are served at /metrics.
func (d *DiagnosticsServer) MeterProvider() *sdkmetric.MeterProvider {
	return d.meterProvider
}

// Close stops the server and the metric pipeline behind it.
func (d *DiagnosticsServer) Close(ctx context.Context) error {
	return errors.Join(
		wrapErr("shutdown diagnostics server", d.server.Shutdown(ctx)),
		wrapErr("shutdown meter provider", d.meterProvider.Shutdown(ctx)),
	)
}

func wrapErr(msg string, err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w", msg, err)
}
