package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCronJobMetricsObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	job := "carrier-capacity-reset"
	m.ObserveRun(job, 250*time.Millisecond, nil)
	m.ObserveRun(job, 100*time.Millisecond, errors.New("db down"))

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for result, want := range map[string]float64{"success": 1, "failure": 1} {
		metric, err := findMetric(mfs, "stockflow_cron_job_runs_total", map[string]string{"job": job, "result": result})
		if err != nil || metric.GetCounter().GetValue() != want {
			t.Fatalf("expected %s=%v, got %v (%v)", result, want, metric, err)
		}
	}
	hist, err := findMetric(mfs, "stockflow_cron_job_duration_seconds", map[string]string{"job": job})
	if err != nil || hist.GetHistogram().GetSampleCount() != 2 {
		t.Fatalf("expected two duration samples, got %v (%v)", hist, err)
	}
	gauge, err := findMetric(mfs, "stockflow_cron_job_last_success_timestamp_seconds", map[string]string{"job": job})
	if err != nil || gauge.GetGauge().GetValue() <= 0 {
		t.Fatalf("expected last success timestamp, got %v (%v)", gauge, err)
	}
}

func TestCronJobMetricsObserveCycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.ObserveCycle(CycleRan)
	m.ObserveCycle(CycleSkipped)
	m.ObserveCycle(CycleSkipped)
	m.ObserveCycle("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for outcome, want := range map[string]float64{CycleRan: 1, CycleSkipped: 2, "unknown": 1} {
		got, err := fetchCounterValue(mfs, "stockflow_cron_cycles_total", "outcome", outcome)
		if err != nil || got != want {
			t.Fatalf("outcome %s: expected %v, got %v (%v)", outcome, want, got, err)
		}
	}
}

func TestNilCronJobMetricsAreSafe(t *testing.T) {
	var m *CronJobMetrics
	m.ObserveRun("x", time.Second, nil)
	m.ObserveCycle(CycleRan)
	inert := NewCronJobMetrics(nil)
	inert.ObserveRun("x", time.Second, errors.New("boom"))
	inert.ObserveCycle(CycleLockError)
}
