package metrics

import (
	"testing"
	"time"
)

func TestObserveTradeLatencySetsPercentileGauges(t *testing.T) {
	r := NewRegistry()

	samples := []time.Duration{
		50 * time.Millisecond, 80 * time.Millisecond, 120 * time.Millisecond,
		90 * time.Millisecond, 200 * time.Millisecond,
	}
	for _, s := range samples {
		r.ObserveTradeLatency("direct", s)
	}

	if got := r.ring.P50(); got <= 0 {
		t.Fatalf("expected a positive p50 after observations, got %d", got)
	}
	if p90, p99 := r.ring.P90(), r.ring.P99(); p90 > p99 {
		t.Fatalf("expected p90 <= p99, got p90=%d p99=%d", p90, p99)
	}
}

func TestObserveSatisfiesLatencySink(t *testing.T) {
	r := NewRegistry()
	r.Observe("primary", 12.5)
	r.Observe("fallback", 40.0)
}
