// Copyright 2025 Certen Protocol
//
// Metrics Tests

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNew_RegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatal("expected registered collectors to surface metric families")
	}

	m.CommitsTotal.Inc()
	m.CommitEventsTotal.Add(3)
	m.SyncFailuresTotal.WithLabelValues("ancestor_discovery").Inc()
	m.StoreOpsTotal.WithLabelValues("put").Inc()

	if got := testCounterValue(t, m.CommitsTotal); got != 1 {
		t.Errorf("CommitsTotal = %v, want 1", got)
	}
	if got := testCounterValue(t, m.CommitEventsTotal); got != 3 {
		t.Errorf("CommitEventsTotal = %v, want 3", got)
	}
}

func TestNew_DoubleRegisterFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatalf("first New: %v", err)
	}
	if _, err := New(reg); err == nil {
		t.Error("expected second New against the same registry to fail on duplicate registration")
	}
}

func testCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}
