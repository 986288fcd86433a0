package metrics

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
)

// DefaultNamespace prefixes every exported metric name.
const DefaultNamespace = "pqledger"

// PrometheusExporter exports a Collector in Prometheus text format.
type PrometheusExporter struct {
	collector *Collector
	namespace string
}

// NewPrometheusExporter creates an exporter; an empty namespace uses
// DefaultNamespace.
func NewPrometheusExporter(c *Collector, namespace string) *PrometheusExporter {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &PrometheusExporter{collector: c, namespace: namespace}
}

// Handler returns an http.Handler that serves the metrics.
func (e *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		e.WriteMetrics(w)
	})
}

type promSample struct {
	name, help, typ string
	value           float64
}

// WriteMetrics writes all metrics in Prometheus text format.
func (e *PrometheusExporter) WriteMetrics(w io.Writer) {
	snap := e.collector.Snapshot()
	labels := formatLabels(snap.Labels)

	samples := []promSample{
		{"entries", "Number of entries in the ledger", "gauge", float64(snap.Entries)},
		{"commits_total", "Entries committed", "counter", float64(snap.CommitsTotal)},
		{"commits_failed_total", "Commits that left the ledger unchanged", "counter", float64(snap.CommitsFailed)},
		{"policy_denials_total", "Commits rejected by the policy gate", "counter", float64(snap.PolicyDenials)},
		{"committed_bytes_total", "Plaintext bytes committed", "counter", float64(snap.BytesCommitted)},
		{"reads_total", "Entries read", "counter", float64(snap.ReadsTotal)},
		{"read_failures_total", "Entry reads that failed authentication", "counter", float64(snap.ReadFailures)},
		{"wrong_era_keys_total", "Reads attempted with a key of another era", "counter", float64(snap.WrongEraKeys)},
		{"verifications_total", "Full chain verifications", "counter", float64(snap.VerificationsTotal)},
		{"verification_failures_total", "Chain verifications that failed", "counter", float64(snap.VerificationFailures)},
		{"kem_migrations_total", "KEM mode migrations", "counter", float64(snap.KEMMigrations)},
		{"signature_migrations_total", "Signature mode migrations", "counter", float64(snap.SignatureMigrations)},
		{"kem_epochs_retired_total", "KEM epochs whose secret key was erased", "counter", float64(snap.EpochsRetired)},
		{"uptime_seconds", "Time since the collector was created", "gauge", snap.Uptime.Seconds()},
	}
	for _, s := range samples {
		e.writeHeader(w, s.name, s.help, s.typ)
		e.writeMetric(w, s.name, labels, s.value)
	}

	e.writeHistogram(w, "commit_duration_milliseconds", "Commit duration in milliseconds", labels, snap.CommitLatency)
	e.writeHistogram(w, "read_duration_microseconds", "Entry read duration in microseconds", labels, snap.ReadLatency)
	e.writeHistogram(w, "verify_duration_milliseconds", "Chain verification duration in milliseconds", labels, snap.VerifyLatency)
}

func (e *PrometheusExporter) writeHeader(w io.Writer, name, help, typ string) {
	fmt.Fprintf(w, "# HELP %s_%s %s\n", e.namespace, name, help)
	fmt.Fprintf(w, "# TYPE %s_%s %s\n", e.namespace, name, typ)
}

func (e *PrometheusExporter) writeMetric(w io.Writer, name, labels string, value float64) {
	fmt.Fprintf(w, "%s_%s%s %g\n", e.namespace, name, braced(labels), value)
}

func (e *PrometheusExporter) writeHistogram(w io.Writer, name, help, labels string, h HistogramSummary) {
	e.writeHeader(w, name, help, "histogram")
	full := e.namespace + "_" + name

	for _, b := range h.Buckets {
		le := fmt.Sprintf("%g", b.UpperBound)
		if math.IsInf(b.UpperBound, 1) {
			le = "+Inf"
		}
		fmt.Fprintf(w, "%s_bucket%s %d\n", full, braced(joinLabels(labels, `le="`+le+`"`)), b.Count)
	}
	fmt.Fprintf(w, "%s_sum%s %g\n", full, braced(labels), h.Sum)
	fmt.Fprintf(w, "%s_count%s %d\n", full, braced(labels), h.Count)
}

func braced(labels string) string {
	if labels == "" {
		return ""
	}
	return "{" + labels + "}"
}

func joinLabels(a, b string) string {
	if a == "" {
		return b
	}
	return a + "," + b
}

// formatLabels renders labels sorted by key.
func formatLabels(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=\"%s\"", k, escapePromValue(labels[k])))
	}
	return strings.Join(parts, ",")
}

func escapePromValue(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(s)
}
