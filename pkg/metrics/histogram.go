package metrics

import (
	"math"
	"sort"
	"sync"
)

// SummaryQuantiles are the quantiles reported by Histogram.Summary.
var SummaryQuantiles = []float64{0.5, 0.9, 0.95, 0.99}

// Histogram counts observations into fixed cumulative buckets
// (Prometheus "le" semantics). It is safe for concurrent use.
type Histogram struct {
	mu     sync.RWMutex
	bounds []float64
	counts []uint64 // len(bounds)+1, last is the +Inf bucket
	sum    float64
	count  uint64
	min    float64
	max    float64
}

// NewHistogram creates a histogram with the given upper bounds. The bounds
// are copied and sorted.
func NewHistogram(bounds []float64) *Histogram {
	b := append([]float64(nil), bounds...)
	sort.Float64s(b)
	h := &Histogram{
		bounds: b,
		counts: make([]uint64, len(b)+1),
	}
	h.resetLocked()
	return h
}

// Observe records a value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.counts[sort.SearchFloat64s(h.bounds, v)]++
	h.sum += v
	h.count++
	h.min = math.Min(h.min, v)
	h.max = math.Max(h.max, v)
}

// HistogramSummary contains summarized histogram data.
type HistogramSummary struct {
	Count       uint64              `json:"count"`
	Sum         float64             `json:"sum"`
	Min         float64             `json:"min"`
	Max         float64             `json:"max"`
	Mean        float64             `json:"mean"`
	Buckets     []BucketCount       `json:"buckets"`
	Percentiles map[float64]float64 `json:"percentiles,omitempty"`
}

// BucketCount is one cumulative bucket.
type BucketCount struct {
	UpperBound float64 `json:"le"`
	Count      uint64  `json:"count"`
}

// Summary returns a summary of the histogram.
func (h *Histogram) Summary() HistogramSummary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.count == 0 {
		return HistogramSummary{
			Buckets:     []BucketCount{},
			Percentiles: map[float64]float64{},
		}
	}

	buckets := make([]BucketCount, 0, len(h.counts))
	var cumulative uint64
	for i, c := range h.counts {
		cumulative += c
		bound := math.Inf(1)
		if i < len(h.bounds) {
			bound = h.bounds[i]
		}
		buckets = append(buckets, BucketCount{UpperBound: bound, Count: cumulative})
	}

	percentiles := make(map[float64]float64, len(SummaryQuantiles))
	for _, q := range SummaryQuantiles {
		percentiles[q] = h.quantileLocked(q)
	}

	return HistogramSummary{
		Count:       h.count,
		Sum:         h.sum,
		Min:         h.min,
		Max:         h.max,
		Mean:        h.sum / float64(h.count),
		Buckets:     buckets,
		Percentiles: percentiles,
	}
}

// Quantile estimates the q-quantile by linear interpolation inside the
// bucket holding the target rank. It returns 0 for an empty histogram.
func (h *Histogram) Quantile(q float64) float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.quantileLocked(q)
}

func (h *Histogram) quantileLocked(q float64) float64 {
	if h.count == 0 {
		return 0
	}
	rank := q * float64(h.count)
	var cumulative uint64
	for i, c := range h.counts {
		cumulative += c
		if float64(cumulative) < rank || c == 0 {
			continue
		}
		switch {
		case i >= len(h.bounds):
			return h.max
		case i == 0:
			return math.Max(h.min, 0) + (h.bounds[0]-math.Max(h.min, 0))/2
		default:
			lower, upper := h.bounds[i-1], h.bounds[i]
			fraction := (rank - float64(cumulative-c)) / float64(c)
			return lower + fraction*(upper-lower)
		}
	}
	return h.max
}

// Reset clears all observations.
func (h *Histogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resetLocked()
}

func (h *Histogram) resetLocked() {
	for i := range h.counts {
		h.counts[i] = 0
	}
	h.sum = 0
	h.count = 0
	h.min = math.MaxFloat64
	h.max = -math.MaxFloat64
}

// Count returns the total number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Mean returns the mean of all observations.
func (h *Histogram) Mean() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.count == 0 {
		return 0
	}
	return h.sum / float64(h.count)
}
