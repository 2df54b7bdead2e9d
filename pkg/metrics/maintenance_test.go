package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMaintenanceMetricsRecordsSweeps(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMaintenanceMetrics(reg)

	m.ObserveRun("guest-cart-cleanup", 120*time.Millisecond, 14, 0, nil)
	m.ObserveRun("guest-cart-cleanup", 80*time.Millisecond, 3, 2, errors.New("cart 9: lock timeout"))
	m.ObserveRun("outbox-retention", time.Second, 0, 0, errors.New("connection refused"))
	m.IncLockSkipped()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got := labelledCounter(t, mfs, "maintenance_rows_removed_total", map[string]string{"job": "guest-cart-cleanup"}); got != 17 {
		t.Fatalf("expected 17 carts removed, got %f", got)
	}
	if got := labelledCounter(t, mfs, "maintenance_rows_failed_total", map[string]string{"job": "guest-cart-cleanup"}); got != 2 {
		t.Fatalf("expected 2 failed carts, got %f", got)
	}
	for _, tc := range []struct {
		job, outcome string
	}{
		{"guest-cart-cleanup", OutcomeOK},
		{"guest-cart-cleanup", OutcomePartial},
		{"outbox-retention", OutcomeFailed},
	} {
		if got := labelledCounter(t, mfs, "maintenance_job_runs_total", map[string]string{"job": tc.job, "outcome": tc.outcome}); got != 1 {
			t.Fatalf("expected one %s run of %s, got %f", tc.outcome, tc.job, got)
		}
	}
	if got := plainCounter(t, mfs, "maintenance_lock_skips_total"); got != 1 {
		t.Fatalf("expected one lock skip, got %f", got)
	}
	if got, err := fetchHistogramSum(mfs, "maintenance_job_duration_seconds", "job", "outbox-retention"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got != 1 {
		t.Fatalf("expected 1s observed, got %f", got)
	}
}

func TestRunOutcome(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		removed, failed int64
		err             error
		want            string
	}{
		{0, 0, nil, OutcomeOK},
		{5, 0, nil, OutcomeOK},
		{5, 1, boom, OutcomePartial},
		{0, 1, boom, OutcomeFailed},
		{0, 0, boom, OutcomeFailed},
	}
	for _, tc := range cases {
		if got := RunOutcome(tc.removed, tc.failed, tc.err); got != tc.want {
			t.Fatalf("RunOutcome(%d, %d, %v) = %s, want %s", tc.removed, tc.failed, tc.err, got, tc.want)
		}
	}
}

func TestMaintenanceMetricsWithoutRegistererIsNoop(t *testing.T) {
	var nilMetrics *MaintenanceMetrics
	nilMetrics.ObserveRun("guest-cart-cleanup", time.Second, 1, 0, nil)
	nilMetrics.IncLockSkipped()

	m := NewMaintenanceMetrics(nil)
	m.ObserveRun("", time.Second, 1, 1, errors.New("boom"))
	m.IncLockSkipped()
}

func labelledCounter(t *testing.T, mfs []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		t.Fatalf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if hasLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %q has no series %v", name, labels)
	return 0
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if hasLabels(metric.GetLabel(), map[string]string{label: value}) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if hasLabels(metric.GetLabel(), map[string]string{label: value}) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func hasLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok {
			if v != pair.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(want)
}
