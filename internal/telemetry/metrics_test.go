package telemetry

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

// gathered returns the family registered under name in the default registry.
func gathered(t *testing.T, name string) *dto.MetricFamily {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	n := 0
	for _, lp := range m.GetLabel() {
		if v, ok := want[lp.GetName()]; ok && v == lp.GetValue() {
			n++
		}
	}
	return n == len(want)
}

func TestCounters_Exported(t *testing.T) {
	tests := []struct {
		name   string
		inc    func()
		labels map[string]string
	}{
		{
			"launchpal_usage_records_total",
			func() { UsageRecordsTotal.WithLabelValues("products.create").Inc() },
			map[string]string{"endpoint": "products.create"},
		},
		{
			"launchpal_platform_requests_total",
			func() { PlatformRequestsTotal.WithLabelValues("producthunt", "create_product", "error").Inc() },
			map[string]string{"platform": "producthunt", "outcome": "error"},
		},
		{
			"launchpal_launch_transitions_total",
			func() { LaunchTransitionsTotal.WithLabelValues("live").Inc() },
			map[string]string{"to": "live"},
		},
		{
			"launchpal_oauth_grants_total",
			func() { OAuthGrantsTotal.WithLabelValues("authorization_code", "success").Inc() },
			map[string]string{"grant_type": "authorization_code"},
		},
		{
			"launchpal_background_job_runs_total",
			func() { BackgroundJobRunsTotal.WithLabelValues("metrics-collector", "success").Inc() },
			map[string]string{"job": "metrics-collector"},
		},
		{
			"launchpal_quota_denials_total",
			func() { QuotaDenialsTotal.Inc() },
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.inc()
			mf := gathered(t, tt.name)
			if mf == nil {
				t.Fatalf("%s not exported", tt.name)
			}
			for _, m := range mf.GetMetric() {
				if hasLabels(m, tt.labels) && m.GetCounter().GetValue() >= 1 {
					return
				}
			}
			t.Errorf("%s has no sample with labels %v", tt.name, tt.labels)
		})
	}
}

func TestHistograms_Observe(t *testing.T) {
	PlatformRequestDuration.WithLabelValues("producthunt", "get_metrics").Observe(0.2)
	HTTPRequestDuration.WithLabelValues("GET", "/api/products").Observe(0.01)

	for _, name := range []string{"launchpal_platform_request_duration_seconds", "http_request_duration_seconds"} {
		mf := gathered(t, name)
		if mf == nil || mf.GetType() != dto.MetricType_HISTOGRAM {
			t.Errorf("%s missing or not a histogram", name)
		}
	}
}

func TestDBOpenConnections(t *testing.T) {
	DBOpenConnections.Set(3)
	defer DBOpenConnections.Set(0)
	if got := testutil.ToFloat64(DBOpenConnections); got != 3 {
		t.Errorf("DBOpenConnections = %v, want 3", got)
	}
}

func TestOutcome(t *testing.T) {
	if Outcome(nil) != "success" || Outcome(errors.New("platform timeout")) != "error" {
		t.Error("Outcome labels changed")
	}
}
