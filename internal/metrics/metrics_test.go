package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"/api/jobs", "/api/jobs"},
		{"/api/jobs/0b6f2c1e-8d7a-4a53-9a3e-2b1f5c7d9e01", "/api/jobs/{id}"},
		{"/api/dispatches/dsp-0b6f2c1e-8d7a-4a53-9a3e-2b1f5c7d9e01", "/api/dispatches/{id}"},
		{"/healthz", "/healthz"},
	}
	for _, tt := range tests {
		if got := NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// sampleValue reads a labelled sample of name from the default registry.
func sampleValue(t *testing.T, name, kind string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "kind" && lp.GetValue() == kind {
					if g := m.GetGauge(); g != nil {
						return g.GetValue()
					}
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestJobCollectors(t *testing.T) {
	JobScheduled("TEST")
	JobScheduled("TEST")
	JobRemoved("TEST", true)
	JobRemoved("TEST", false)
	JobScheduled("TEST")

	if got := sampleValue(t, "txsched_jobs_active", "TEST"); got != 1 {
		t.Errorf("active = %v, want 1", got)
	}
	if got := sampleValue(t, "txsched_jobs_scheduled_total", "TEST"); got != 3 {
		t.Errorf("scheduled = %v, want 3", got)
	}
	if got := sampleValue(t, "txsched_jobs_completed_total", "TEST"); got != 1 {
		t.Errorf("completed = %v, want 1", got)
	}
}
