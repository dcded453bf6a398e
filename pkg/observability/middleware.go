package observability

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// statusRecorder remembers the first status code sent through it.
type statusRecorder struct {
	http.ResponseWriter

	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}

	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(buf []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}

	return sr.ResponseWriter.Write(buf) //nolint:wrapcheck // transparent writer.
}

// code is the status the client saw; handlers that write nothing answer 200.
func (sr *statusRecorder) code() int {
	if sr.status == 0 {
		return http.StatusOK
	}

	return sr.status
}

// HTTPMiddleware wraps next with one server span per request. The span starts
// as "METHOD /path" and is renamed to the matched [http.ServeMux] pattern
// once routing has happened, so unknown paths do not fan out span names.
func HTTPMiddleware(tracer trace.Tracer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(hr.Context(), propagation.HeaderCarrier(hr.Header))

		ctx, span := tracer.Start(ctx, hr.Method+" "+hr.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(hr.Method),
				semconv.URLPath(hr.URL.Path),
			),
		)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: rw}
		req := hr.WithContext(ctx)

		next.ServeHTTP(rec, req)

		if req.Pattern != "" {
			name, route := routeName(hr.Method, req.Pattern)
			span.SetName(name)
			span.SetAttributes(semconv.HTTPRoute(route))
		}

		status := rec.code()
		span.SetAttributes(semconv.HTTPResponseStatusCode(status))

		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	})
}

// routeName splits a mux pattern into a span name and its path template.
// Patterns without a method take the request method.
func routeName(method, pattern string) (name, route string) {
	if patternMethod, path, ok := strings.Cut(pattern, " "); ok {
		return patternMethod + " " + path, path
	}

	return method + " " + pattern, pattern
}
