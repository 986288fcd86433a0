package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector aggregates ledger operation metrics.
type Collector struct {
	// Commit metrics
	commitsTotal   atomic.Uint64
	commitsFailed  atomic.Uint64
	policyDenials  atomic.Uint64
	bytesCommitted atomic.Uint64
	entries        atomic.Uint64
	commitLatency  *Histogram

	// Read metrics
	readsTotal   atomic.Uint64
	readFailures atomic.Uint64
	wrongEraKeys atomic.Uint64
	readLatency  *Histogram

	// Verification metrics
	verificationsTotal   atomic.Uint64
	verificationFailures atomic.Uint64
	verifyLatency        *Histogram

	// Key lifecycle metrics
	kemMigrations       atomic.Uint64
	signatureMigrations atomic.Uint64
	epochsRetired       atomic.Uint64

	createdAt atomic.Int64
	labels    Labels
}

// Labels represents key-value pairs for metric labeling.
type Labels map[string]string

// Default bucket configurations for histograms.
var (
	// CommitLatencyBuckets for commit duration (milliseconds). A commit
	// includes a KEM encapsulation and a signature, so code-based and
	// hash-based families land in the upper buckets.
	CommitLatencyBuckets = []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000}

	// ReadLatencyBuckets for entry reads (microseconds).
	ReadLatencyBuckets = []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 50000}

	// VerifyLatencyBuckets for full chain verification (milliseconds).
	VerifyLatencyBuckets = []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 30000}
)

// NewCollector creates a new metrics collector.
func NewCollector(labels Labels) *Collector {
	if labels == nil {
		labels = make(Labels)
	}
	c := &Collector{
		commitLatency: NewHistogram(CommitLatencyBuckets),
		readLatency:   NewHistogram(ReadLatencyBuckets),
		verifyLatency: NewHistogram(VerifyLatencyBuckets),
		labels:        labels,
	}
	c.createdAt.Store(time.Now().UnixNano())
	return c
}

// --- Commit Metrics ---

// CommitSucceeded records an appended entry of n plaintext bytes.
func (c *Collector) CommitSucceeded(n int, d time.Duration) {
	c.commitsTotal.Add(1)
	c.entries.Add(1)
	c.bytesCommitted.Add(uint64(n))
	c.commitLatency.Observe(float64(d.Microseconds()) / 1000)
}

// CommitFailed records a commit that left the ledger unchanged.
func (c *Collector) CommitFailed() {
	c.commitsFailed.Add(1)
}

// PolicyDenied records a commit rejected by the policy gate.
func (c *Collector) PolicyDenied() {
	c.policyDenials.Add(1)
}

// SetEntries sets the entry gauge, e.g. after opening a persisted ledger.
func (c *Collector) SetEntries(n uint64) {
	c.entries.Store(n)
}

// --- Read Metrics ---

// RecordRead records a successful entry read.
func (c *Collector) RecordRead(d time.Duration) {
	c.readsTotal.Add(1)
	c.readLatency.Observe(float64(d.Microseconds()))
}

// RecordReadFailure records a read that failed authentication or
// decapsulation.
func (c *Collector) RecordReadFailure() {
	c.readFailures.Add(1)
}

// RecordWrongEraKey records a read attempted with a key of another era.
func (c *Collector) RecordWrongEraKey() {
	c.wrongEraKeys.Add(1)
}

// --- Verification Metrics ---

// RecordVerification records a chain verification and its outcome.
func (c *Collector) RecordVerification(ok bool, d time.Duration) {
	c.verificationsTotal.Add(1)
	if !ok {
		c.verificationFailures.Add(1)
	}
	c.verifyLatency.Observe(float64(d.Milliseconds()))
}

// --- Key Lifecycle Metrics ---

// KEMMigrated records a KEM mode migration.
func (c *Collector) KEMMigrated() {
	c.kemMigrations.Add(1)
}

// SignatureMigrated records a signature mode migration.
func (c *Collector) SignatureMigrated() {
	c.signatureMigrations.Add(1)
}

// EpochRetired records an erased KEM epoch.
func (c *Collector) EpochRetired() {
	c.epochsRetired.Add(1)
}

// --- Snapshot ---

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	Timestamp time.Time
	Uptime    time.Duration

	CommitsTotal   uint64
	CommitsFailed  uint64
	PolicyDenials  uint64
	BytesCommitted uint64
	Entries        uint64

	ReadsTotal   uint64
	ReadFailures uint64
	WrongEraKeys uint64

	VerificationsTotal   uint64
	VerificationFailures uint64

	KEMMigrations       uint64
	SignatureMigrations uint64
	EpochsRetired       uint64

	CommitLatency HistogramSummary
	ReadLatency   HistogramSummary
	VerifyLatency HistogramSummary

	Labels Labels
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		Timestamp:            time.Now(),
		Uptime:               time.Since(time.Unix(0, c.createdAt.Load())),
		CommitsTotal:         c.commitsTotal.Load(),
		CommitsFailed:        c.commitsFailed.Load(),
		PolicyDenials:        c.policyDenials.Load(),
		BytesCommitted:       c.bytesCommitted.Load(),
		Entries:              c.entries.Load(),
		ReadsTotal:           c.readsTotal.Load(),
		ReadFailures:         c.readFailures.Load(),
		WrongEraKeys:         c.wrongEraKeys.Load(),
		VerificationsTotal:   c.verificationsTotal.Load(),
		VerificationFailures: c.verificationFailures.Load(),
		KEMMigrations:        c.kemMigrations.Load(),
		SignatureMigrations:  c.signatureMigrations.Load(),
		EpochsRetired:        c.epochsRetired.Load(),
		CommitLatency:        c.commitLatency.Summary(),
		ReadLatency:          c.readLatency.Summary(),
		VerifyLatency:        c.verifyLatency.Summary(),
		Labels:               c.labels,
	}
}

// Reset clears all metrics (useful for testing).
func (c *Collector) Reset() {
	for _, v := range []*atomic.Uint64{
		&c.commitsTotal, &c.commitsFailed, &c.policyDenials, &c.bytesCommitted, &c.entries,
		&c.readsTotal, &c.readFailures, &c.wrongEraKeys,
		&c.verificationsTotal, &c.verificationFailures,
		&c.kemMigrations, &c.signatureMigrations, &c.epochsRetired,
	} {
		v.Store(0)
	}
	c.commitLatency.Reset()
	c.readLatency.Reset()
	c.verifyLatency.Reset()
	c.createdAt.Store(time.Now().UnixNano())
}

// --- Global Collector ---

var (
	globalCollector   *Collector
	globalCollectorMu sync.Mutex
)

// Global returns the global metrics collector, creating it on first use.
func Global() *Collector {
	globalCollectorMu.Lock()
	defer globalCollectorMu.Unlock()
	if globalCollector == nil {
		globalCollector = NewCollector(Labels{"instance": "default"})
	}
	return globalCollector
}

// SetGlobal sets the global metrics collector.
func SetGlobal(c *Collector) {
	globalCollectorMu.Lock()
	defer globalCollectorMu.Unlock()
	globalCollector = c
}
