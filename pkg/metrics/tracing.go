package metrics

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Span names for ledger operations.
const (
	SpanLedgerCreate   = "pqledger.ledger.create"
	SpanLedgerOpen     = "pqledger.ledger.open"
	SpanLedgerCommit   = "pqledger.ledger.commit"
	SpanLedgerRead     = "pqledger.ledger.read"
	SpanLedgerVerify   = "pqledger.ledger.verify"
	SpanLedgerMigrate  = "pqledger.ledger.migrate"
	SpanLedgerRetire   = "pqledger.ledger.retire"
	SpanKEMEncapsulate = "pqledger.kem.encapsulate"
	SpanSign           = "pqledger.sig.sign"
	SpanStoreAppend    = "pqledger.store.append"
	SpanArchiveExport  = "pqledger.archive.export"
	SpanArchiveImport  = "pqledger.archive.import"
)

// Tracer starts spans around ledger operations. NoOpTracer, SimpleTracer
// and OTelTracer implement it.
type Tracer interface {
	// StartSpan returns a context carrying the new span and the function
	// that ends it.
	StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, SpanEnder)
}

// SpanEnder ends a span. A non-nil error marks the span failed.
type SpanEnder func(err error)

// SpanAttributes describe the ledger object a span is about. Zero values
// are not exported.
type SpanAttributes struct {
	LedgerID string

	// Index is meaningful only when HasIndex is set; entry 0 is a valid
	// index.
	Index    uint64
	HasIndex bool

	KEMMode string
	SigMode string
	Epoch   uint32
	Entries int

	// Migration is "kem" or "signature"; From and To are mode names.
	Migration string
	From      string
	To        string
}

// ForEntry returns a copy of a scoped to the entry at index.
func (a SpanAttributes) ForEntry(index uint64) SpanAttributes {
	a.Index = index
	a.HasIndex = true
	return a
}

// NoOpTracer discards every span.
type NoOpTracer struct{}

// StartSpan returns ctx unchanged.
func (NoOpTracer) StartSpan(ctx context.Context, _ string, _ SpanAttributes) (context.Context, SpanEnder) {
	return ctx, func(error) {}
}

// RecordedSpan is a finished span kept by a SimpleTracer.
type RecordedSpan struct {
	Name     string
	Attrs    SpanAttributes
	Start    time.Time
	Duration time.Duration
	Err      error

	TraceID  string
	SpanID   string
	ParentID string
}

// SimpleTracer keeps finished spans in memory, in the order they ended.
// It backs the "simple" tracing mode and the tests.
type SimpleTracer struct {
	nextID atomic.Uint64

	mu    sync.Mutex
	spans []RecordedSpan
}

// NewSimpleTracer returns an empty SimpleTracer.
func NewSimpleTracer() *SimpleTracer {
	return &SimpleTracer{}
}

type spanRef struct {
	traceID string
	spanID  string
}

type spanRefKey struct{}

// StartSpan starts a span. A span already in ctx becomes its parent and
// shares its trace ID.
func (t *SimpleTracer) StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, SpanEnder) {
	span := RecordedSpan{
		Name:   name,
		Attrs:  attrs,
		Start:  time.Now(),
		SpanID: fmt.Sprintf("%016x", t.nextID.Add(1)),
	}
	if parent, ok := ctx.Value(spanRefKey{}).(spanRef); ok {
		span.TraceID = parent.traceID
		span.ParentID = parent.spanID
	} else {
		span.TraceID = uuid.NewString()
	}
	ctx = context.WithValue(ctx, spanRefKey{}, spanRef{traceID: span.TraceID, spanID: span.SpanID})

	var once sync.Once
	return ctx, func(err error) {
		once.Do(func() {
			span.Duration = time.Since(span.Start)
			span.Err = err
			t.mu.Lock()
			t.spans = append(t.spans, span)
			t.mu.Unlock()
		})
	}
}

// Spans returns a copy of every finished span.
func (t *SimpleTracer) Spans() []RecordedSpan {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]RecordedSpan(nil), t.spans...)
}

// Named returns the finished spans called name.
func (t *SimpleTracer) Named(name string) []RecordedSpan {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []RecordedSpan
	for _, s := range t.spans {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

// Reset drops every finished span.
func (t *SimpleTracer) Reset() {
	t.mu.Lock()
	t.spans = nil
	t.mu.Unlock()
}

// tracerBox gives atomic.Value a single concrete type to hold.
type tracerBox struct{ Tracer }

var globalTracer atomic.Value

func init() {
	globalTracer.Store(tracerBox{NoOpTracer{}})
}

// SetTracer installs the package-wide tracer. Nil restores NoOpTracer.
func SetTracer(t Tracer) {
	if t == nil {
		t = NoOpTracer{}
	}
	globalTracer.Store(tracerBox{t})
}

// GetTracer returns the package-wide tracer.
func GetTracer() Tracer {
	return globalTracer.Load().(tracerBox).Tracer
}

// StartSpan starts a span on the package-wide tracer.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, SpanEnder) {
	return GetTracer().StartSpan(ctx, name, attrs)
}
