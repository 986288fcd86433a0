package metrics

import (
	"math"
	"sync"
	"testing"
)

func TestHistogramSummary(t *testing.T) {
	h := NewHistogram([]float64{100, 10, 50}) // sorted internally

	for _, v := range []float64{5, 15, 60, 150} {
		h.Observe(v)
	}

	s := h.Summary()
	if s.Count != 4 || s.Sum != 230 || s.Min != 5 || s.Max != 150 || s.Mean != 57.5 {
		t.Errorf("summary = %+v", s)
	}

	want := []BucketCount{{10, 1}, {50, 2}, {100, 3}, {math.Inf(1), 4}}
	if len(s.Buckets) != len(want) {
		t.Fatalf("got %d buckets, want %d", len(s.Buckets), len(want))
	}
	for i, b := range want {
		if s.Buckets[i] != b {
			t.Errorf("bucket[%d] = %+v, want %+v", i, s.Buckets[i], b)
		}
	}
}

func TestHistogramBoundaryIsInclusive(t *testing.T) {
	h := NewHistogram([]float64{10, 20})
	h.Observe(10)
	if got := h.Summary().Buckets[0].Count; got != 1 {
		t.Errorf("value equal to bound landed outside bucket: count %d", got)
	}
}

func TestHistogramEmptyAndReset(t *testing.T) {
	h := NewHistogram(CommitLatencyBuckets)
	if h.Count() != 0 || h.Mean() != 0 || h.Quantile(0.5) != 0 {
		t.Error("empty histogram should report zeros")
	}
	if s := h.Summary(); s.Count != 0 || len(s.Buckets) != 0 {
		t.Errorf("empty summary = %+v", s)
	}

	h.Observe(3)
	h.Observe(700)
	h.Reset()
	if h.Count() != 0 {
		t.Errorf("count after reset = %d", h.Count())
	}
	h.Observe(1)
	if s := h.Summary(); s.Min != 1 || s.Max != 1 {
		t.Errorf("min/max not reset: %+v", s)
	}
}

func TestHistogramQuantiles(t *testing.T) {
	h := NewHistogram([]float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100})
	for i := 1; i <= 100; i++ {
		h.Observe(float64(i))
	}

	tests := []struct {
		q, want float64
	}{
		{0.5, 50},
		{0.9, 90},
		{0.95, 95},
	}
	for _, tt := range tests {
		if got := h.Quantile(tt.q); math.Abs(got-tt.want) > 1 {
			t.Errorf("Quantile(%v) = %.2f, want ~%.0f", tt.q, got, tt.want)
		}
	}

	s := h.Summary()
	for _, q := range SummaryQuantiles {
		if _, ok := s.Percentiles[q]; !ok {
			t.Errorf("summary missing quantile %v", q)
		}
	}
}

func TestHistogramOverflowQuantileUsesMax(t *testing.T) {
	h := NewHistogram([]float64{1})
	h.Observe(500)
	h.Observe(900)
	if got := h.Quantile(0.99); got != 900 {
		t.Errorf("Quantile(0.99) = %v, want max 900", got)
	}
}

func TestHistogramConcurrency(t *testing.T) {
	h := NewHistogram(ReadLatencyBuckets)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h.Observe(float64(j * 10))
			}
		}()
	}
	wg.Wait()

	if h.Count() != 1000 {
		t.Errorf("expected count 1000, got %d", h.Count())
	}
}
