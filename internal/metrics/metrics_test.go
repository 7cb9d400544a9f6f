package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"eventScope/internal/network"
)

func TestObserveResolve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}

	m.ObserveResolve(network.Homestead, "1", 20*time.Millisecond)
	m.ObserveResolve(network.Homestead, "1", 30*time.Millisecond)
	m.ObserveResolve(network.Goerli, "0", 10*time.Millisecond)

	if got := testutil.ToFloat64(m.resolveRequests.WithLabelValues("homestead", "1")); got != 2 {
		t.Fatalf("homestead success count mismatch: %v", got)
	}
	if got := testutil.ToFloat64(m.resolveRequests.WithLabelValues("goerli", "0")); got != 1 {
		t.Fatalf("goerli failure count mismatch: %v", got)
	}
}

func TestObserveRun(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}

	m.ObserveRun(network.Arbitrum, "ready", 5, 2)
	if got := testutil.ToFloat64(m.logsDecoded.WithLabelValues("arbitrum")); got != 5 {
		t.Fatalf("decoded count mismatch: %v", got)
	}
	if got := testutil.ToFloat64(m.logsSkipped.WithLabelValues("arbitrum")); got != 2 {
		t.Fatalf("skipped count mismatch: %v", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveResolve(network.Homestead, "1", time.Millisecond)
	m.ObserveRun(network.Homestead, "ready", 1, 0)
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := New(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}
