package api

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/control"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/scan"
)

func TestEngineCollector(t *testing.T) {
	src := &mockSource{}
	src.set(42)
	src.snap.Paused = true
	src.snap.RunMode = scan.RunStep
	src.snap.Metrics = control.Metrics{
		Metrics:         scan.Metrics{PassCount: 10, OverrunCount: 2, LastPassUs: 1500},
		Queue:           control.QueueStats{Depth: 3, Capacity: 64, Accepted: 9, Rejected: 1},
		CommandsApplied: 8,
		CommandsFailed:  1,
	}

	families, err := newMetricsRegistry(src).Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	values := make(map[string]float64)
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), metricsNamespace+"_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "{" + lp.GetValue() + "}"
			}
			switch {
			case m.GetCounter() != nil:
				values[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[key] = m.GetGauge().GetValue()
			}
		}
	}

	want := map[string]float64{
		"cardcore_snapshot_seq":                        42,
		"cardcore_scan_passes_total":                   10,
		"cardcore_scan_overruns_total":                 2,
		"cardcore_scan_last_pass_seconds":              0.0015,
		"cardcore_command_queue_depth":                 3,
		"cardcore_command_queue_capacity":              64,
		"cardcore_commands_submitted_total{accepted}":  9,
		"cardcore_commands_submitted_total{rejected}":  1,
		"cardcore_commands_applied_total{applied}":     8,
		"cardcore_commands_applied_total{failed}":      1,
		"cardcore_engine_paused":                       1,
		"cardcore_test_mode":                           0,
		"cardcore_run_mode{RUN_STEP}":                  1,
	}
	for k, v := range want {
		got, ok := values[k]
		if !ok {
			t.Errorf("%s missing", k)
			continue
		}
		if got != v {
			t.Errorf("%s = %v, want %v", k, got, v)
		}
	}
}

func TestEngineCollectorWithoutSnapshot(t *testing.T) {
	families, err := newMetricsRegistry(&mockSource{}).Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if strings.HasPrefix(mf.GetName(), metricsNamespace+"_") {
			t.Errorf("unexpected metric %s before the first snapshot", mf.GetName())
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.ctrl.Tick()

	rec := env.do(t, http.MethodGet, "/metrics", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body) //nolint:errcheck // recorder body
	for _, name := range []string{"cardcore_scan_passes_total", "cardcore_config_applies_total", "go_goroutines"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("exposition lacks %s", name)
		}
	}
}
