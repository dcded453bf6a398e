package observability

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// attributePolicy decides which span attributes reach the exporter.
// Denied keys win over allowed prefixes.
type attributePolicy struct {
	allowPrefixes []string
	allowKeys     map[attribute.Key]bool
	denyKeys      map[attribute.Key]bool
}

// exportPolicy keeps rbmap and HTTP semantic attributes. Map keys and values
// are user data with unbounded cardinality and never leave the process.
var exportPolicy = attributePolicy{
	allowPrefixes: []string{"rbmap.", "http.", "url.", "error."},
	allowKeys:     map[attribute.Key]bool{"error": true},
	denyKeys:      map[attribute.Key]bool{"rbmap.key": true, "rbmap.value": true},
}

func (p attributePolicy) allows(key attribute.Key) bool {
	if p.denyKeys[key] {
		return false
	}

	if p.allowKeys[key] {
		return true
	}

	for _, prefix := range p.allowPrefixes {
		if strings.HasPrefix(string(key), prefix) {
			return true
		}
	}

	return false
}

// attributeFilter is a SpanProcessor that hides attributes outside the export
// policy from the delegate processor.
type attributeFilter struct {
	delegate sdktrace.SpanProcessor
	policy   attributePolicy
	logger   *slog.Logger
}

// NewAttributeFilter wraps delegate so that ended spans only carry exportable
// attributes. A non-nil logger receives one debug record per dropped key.
func NewAttributeFilter(delegate sdktrace.SpanProcessor, logger *slog.Logger) sdktrace.SpanProcessor {
	return &attributeFilter{delegate: delegate, policy: exportPolicy, logger: logger}
}

func (f *attributeFilter) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	f.delegate.OnStart(parent, s)
}

func (f *attributeFilter) OnEnd(s sdktrace.ReadOnlySpan) {
	f.delegate.OnEnd(&filteredSpan{ReadOnlySpan: s, kept: f.keep(s.Attributes())})
}

func (f *attributeFilter) Shutdown(ctx context.Context) error {
	err := f.delegate.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("attribute filter shutdown: %w", err)
	}

	return nil
}

func (f *attributeFilter) ForceFlush(ctx context.Context) error {
	err := f.delegate.ForceFlush(ctx)
	if err != nil {
		return fmt.Errorf("attribute filter flush: %w", err)
	}

	return nil
}

func (f *attributeFilter) keep(attrs []attribute.KeyValue) []attribute.KeyValue {
	kept := make([]attribute.KeyValue, 0, len(attrs))

	for _, kv := range attrs {
		if f.policy.allows(kv.Key) {
			kept = append(kept, kv)

			continue
		}

		if f.logger != nil {
			f.logger.Debug("span attribute dropped", "key", string(kv.Key))
		}
	}

	return kept
}

// filteredSpan is a ReadOnlySpan whose attributes were filtered once at end.
type filteredSpan struct {
	sdktrace.ReadOnlySpan

	kept []attribute.KeyValue
}

// Attributes returns the attributes that passed the export policy.
func (s *filteredSpan) Attributes() []attribute.KeyValue {
	return s.kept
}
