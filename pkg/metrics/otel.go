package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultServiceName names the OpenTelemetry instrumentation scope.
const DefaultServiceName = "pqledger"

// OTelTracer adapts OpenTelemetry to the Tracer interface. Spans go to the
// globally registered TracerProvider, which is a no-op until the
// application installs an SDK provider.
type OTelTracer struct {
	tracer trace.Tracer
}

// NewOTelTracer creates a tracer from the global provider.
func NewOTelTracer(serviceName string) *OTelTracer {
	if serviceName == "" {
		serviceName = DefaultServiceName
	}
	return &OTelTracer{tracer: otel.Tracer(serviceName)}
}

// NewOTelTracerFromProvider creates a tracer from an explicit provider.
func NewOTelTracerFromProvider(tp trace.TracerProvider, serviceName string) *OTelTracer {
	if serviceName == "" {
		serviceName = DefaultServiceName
	}
	return &OTelTracer{tracer: tp.Tracer(serviceName)}
}

// StartSpan starts an internal OpenTelemetry span.
func (t *OTelTracer) StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, SpanEnder) {
	ctx, span := t.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs.KeyValues()...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// KeyValues returns the set attributes as OpenTelemetry key-values.
func (a SpanAttributes) KeyValues() []attribute.KeyValue {
	var kv []attribute.KeyValue
	add := func(key, value string) {
		if value != "" {
			kv = append(kv, attribute.String(key, value))
		}
	}
	add("ledger.id", a.LedgerID)
	if a.HasIndex {
		kv = append(kv, attribute.Int64("ledger.index", int64(a.Index)))
	}
	add("crypto.kem_mode", a.KEMMode)
	add("crypto.sig_mode", a.SigMode)
	if a.Epoch > 0 {
		kv = append(kv, attribute.Int64("crypto.epoch", int64(a.Epoch)))
	}
	if a.Entries > 0 {
		kv = append(kv, attribute.Int("ledger.entries", a.Entries))
	}
	add("migration.kind", a.Migration)
	add("migration.from", a.From)
	add("migration.to", a.To)
	return kv
}
