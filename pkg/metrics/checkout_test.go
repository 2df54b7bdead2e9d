package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCheckoutMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)

	m.IncOrderCreated()
	m.IncOrderCreated()
	m.IncOrderFailure("INSUFFICIENT_STOCK")
	m.IncOrderCancelled()
	m.IncTransition("processing", "shipped")
	m.IncCartMerge("merge")
	m.AddMergeClamps(3)
	m.AddMergeClamps(0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got := plainCounter(t, mfs, "orders_created_total"); got != 2 {
		t.Fatalf("expected orders_created_total=2, got %f", got)
	}
	if got := plainCounter(t, mfs, "orders_cancelled_total"); got != 1 {
		t.Fatalf("expected orders_cancelled_total=1, got %f", got)
	}
	if got := plainCounter(t, mfs, "cart_merge_clamps_total"); got != 3 {
		t.Fatalf("expected cart_merge_clamps_total=3, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "order_failures_total", "code", "INSUFFICIENT_STOCK"); err != nil {
		t.Fatalf("fetch failures: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "order_status_transitions_total", "to", "shipped"); err != nil {
		t.Fatalf("fetch transitions: %v", err)
	} else if got != 1 {
		t.Fatalf("expected transition=1, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "cart_merges_total", "mode", "merge"); err != nil {
		t.Fatalf("fetch merges: %v", err)
	} else if got != 1 {
		t.Fatalf("expected merge=1, got %f", got)
	}
}

func TestCheckoutMetricsNilIsNoop(t *testing.T) {
	var m *CheckoutMetrics
	m.IncOrderCreated()
	m.IncOrderFailure("")
	m.IncCartMerge("noop")

	unregistered := NewCheckoutMetrics(nil)
	unregistered.IncOrderCancelled()
	unregistered.AddMergeClamps(1)
}

func plainCounter(t *testing.T, mfs []*dto.MetricFamily, name string) float64 {
	t.Helper()
	mf := findMetricFamily(mfs, name)
	if mf == nil || len(mf.GetMetric()) == 0 {
		t.Fatalf("metric %q not found", name)
	}
	return mf.GetMetric()[0].GetCounter().GetValue()
}
