package monitoring

import (
	"testing"
	"time"
)

func TestCounterAccumulates(t *testing.T) {
	m := New(nil)
	m.Counter("ingested_total", 1, "kind=pdf")
	m.Counter("ingested_total", 2, "kind=pdf")
	counters, _ := m.Snapshot()
	if counters["ingested_total{kind=pdf}"] != 3 {
		t.Fatalf("counter = %v, want 3", counters["ingested_total{kind=pdf}"])
	}
}

func TestPercentiles(t *testing.T) {
	m := New(nil)
	for i := 1; i <= 100; i++ {
		m.Histogram("latency_ms", float64(i))
	}
	p50, p95, p99 := m.Percentiles("latency_ms")
	if p50 < 49 || p50 > 51 {
		t.Errorf("p50 = %v, want ~50", p50)
	}
	if p95 < 94 || p95 > 96 {
		t.Errorf("p95 = %v, want ~95", p95)
	}
	if p99 < 98 {
		t.Errorf("p99 = %v, want >= 98", p99)
	}
}

func TestHealthOverall(t *testing.T) {
	m := New(nil)
	m.RegisterHealth("store", func() HealthStatus { return Healthy })
	m.RegisterHealth("dispatcher", func() HealthStatus { return Degraded })
	if got := m.Overall(); got != Healthy {
		t.Errorf("Overall() = %v, want %v", got, Healthy)
	}

	m.RegisterHealth("index", func() HealthStatus { return Unhealthy })
	if got := m.Overall(); got != Unhealthy {
		t.Errorf("Overall() = %v, want %v", got, Unhealthy)
	}
}

func TestLogRequestUpdatesMetrics(t *testing.T) {
	m := New(nil)
	m.LogRequest("ingest", "POST", 200, 15*time.Millisecond)
	counters, _ := m.Snapshot()
	if counters["requests_total{endpoint=ingest,method=POST}"] != 1 {
		t.Fatalf("request counter not recorded: %v", counters)
	}
}
