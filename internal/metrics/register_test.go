package metrics

import "testing"

func TestPercentiles(t *testing.T) {
	m := NewMetrics()
	for i := int64(1); i <= 100; i++ {
		m.RecordLatency(i)
	}

	if p50 := m.P50(); p50 < 49 || p50 > 52 {
		t.Fatalf("expected p50 ~50, got %d", p50)
	}
	if p90 := m.P90(); p90 < 89 || p90 > 92 {
		t.Fatalf("expected p90 ~90, got %d", p90)
	}
	if p99 := m.P99(); p99 < 98 || p99 > 100 {
		t.Fatalf("expected p99 ~99, got %d", p99)
	}
}
