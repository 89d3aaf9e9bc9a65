package engine

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMetrics_NilReceiverMethodsAreNoOps(t *testing.T) {
	var m *Metrics
	m.caseStarted()
	m.caseFinished()
	m.observePend("basket")
	m.observeTicket()
	m.observeDispatch("TASK", 10)
	m.observeRepair("S3")
	m.observePersistFailure("put")
}

func TestMetrics_CaseStartedIncrementsActiveGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.caseStarted()
	m.caseStarted()
	m.caseFinished()

	got := gatherGaugeValue(t, reg, "caseengine_cases_active")
	if got != 1 {
		t.Errorf("expected cases_active=1 after 2 starts and 1 finish, got %v", got)
	}
}

func TestMetrics_ObservePendIncrementsLabeledCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.observePend("manual_review")
	m.observePend("manual_review")

	mf := gatherFamily(t, reg, "caseengine_paths_pended_total")
	var total float64
	for _, metric := range mf.GetMetric() {
		total += metric.GetCounter().GetValue()
	}
	if total != 2 {
		t.Errorf("expected 2 pend observations, got %v", total)
	}
}

func gatherFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric family %q not found", name)
	return nil
}

func gatherGaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mf := gatherFamily(t, reg, name)
	if len(mf.GetMetric()) == 0 {
		t.Fatalf("metric family %q has no samples", name)
	}
	return mf.GetMetric()[0].GetGauge().GetValue()
}
