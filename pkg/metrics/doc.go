// Package metrics provides observability for the ledger: counters and
// histograms, a Prometheus text exporter, tracing, structured logging and
// health checks.
//
// # Logging
//
// Logger is a leveled structured logger on top of logrus:
//
//	logger := metrics.ProductionLogger(os.Stderr).Named("pqledger")
//	logger.Info("ledger opened", metrics.Fields{"entries": 42})
//
// Secrets and plaintext are never passed to the logger.
//
// # Metrics
//
// Collector aggregates commit, read, verification and key lifecycle
// counters:
//
//	collector := metrics.NewCollector(metrics.Labels{"ledger": id})
//	exporter := metrics.NewPrometheusExporter(collector, "")
//	mux.Handle("/metrics", exporter.Handler())
//
// # Tracing
//
// Tracer is implemented by NoOpTracer, SimpleTracer (in-memory, for tests)
// and OTelTracer, which forwards to the OpenTelemetry TracerProvider
// registered with otel.SetTracerProvider.
//
// # Ledger observer
//
// LedgerObserver ties the three together; the ledger calls its On* hooks
// around every operation:
//
//	ctx, done := observer.OnCommit(ctx, index, len(plaintext), kemMode, sigMode)
//	err := commit(ctx)
//	done(err)
//
// # Health
//
// Server exposes /metrics, /health, /healthz and /readyz. Checks are plain
// functions; PingCheck wraps a store ping and SelfTestCheck the power-on
// self tests.
package metrics
