package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "cardcore"

// engineCollector exports the counters of the latest snapshot. It reads
// the snapshot at scrape time, so values are as fresh as the last tick.
type engineCollector struct {
	src SnapshotSource

	seq           *prometheus.Desc
	passes        *prometheus.Desc
	overruns      *prometheus.Desc
	lastPass      *prometheus.Desc
	maxPass       *prometheus.Desc
	cardsExecuted *prometheus.Desc
	queueDepth    *prometheus.Desc
	queueCapacity *prometheus.Desc
	queued        *prometheus.Desc
	applied       *prometheus.Desc
	lastApply     *prometheus.Desc
	maxApply      *prometheus.Desc
	configApplies *prometheus.Desc
	paused        *prometheus.Desc
	testMode      *prometheus.Desc
	runMode       *prometheus.Desc
}

func newEngineCollector(src SnapshotSource) *engineCollector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", name), help, labels, nil)
	}
	return &engineCollector{
		src:           src,
		seq:           desc("snapshot_seq", "Sequence number of the latest snapshot."),
		passes:        desc("scan_passes_total", "Completed scan passes."),
		overruns:      desc("scan_overruns_total", "Scan passes that exceeded the scan interval."),
		lastPass:      desc("scan_last_pass_seconds", "Duration of the last scan pass."),
		maxPass:       desc("scan_max_pass_seconds", "Longest scan pass observed."),
		cardsExecuted: desc("cards_executed_total", "Card executions across all passes."),
		queueDepth:    desc("command_queue_depth", "Commands waiting in the queue."),
		queueCapacity: desc("command_queue_capacity", "Command queue capacity."),
		queued:        desc("commands_submitted_total", "Command submissions by outcome.", "outcome"),
		applied:       desc("commands_applied_total", "Dequeued commands by apply outcome.", "outcome"),
		lastApply:     desc("command_last_apply_latency_seconds", "Queue latency of the last applied command."),
		maxApply:      desc("command_max_apply_latency_seconds", "Longest queue latency observed."),
		configApplies: desc("config_applies_total", "Configuration swaps."),
		paused:        desc("engine_paused", "1 while the engine is paused in step or breakpoint mode."),
		testMode:      desc("test_mode", "1 while test mode is active."),
		runMode:       desc("run_mode", "Current run mode.", "mode"),
	}
}

// Describe implements prometheus.Collector.
func (c *engineCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.seq, c.passes, c.overruns, c.lastPass, c.maxPass, c.cardsExecuted,
		c.queueDepth, c.queueCapacity, c.queued, c.applied, c.lastApply,
		c.maxApply, c.configApplies, c.paused, c.testMode, c.runMode,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *engineCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.src.Latest()
	if snap == nil {
		return
	}
	m := snap.Metrics

	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}
	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	micros := func(us int64) float64 { return float64(us) / 1e6 }

	gauge(c.seq, float64(snap.Seq))
	counter(c.passes, m.PassCount)
	counter(c.overruns, m.OverrunCount)
	gauge(c.lastPass, micros(m.LastPassUs))
	gauge(c.maxPass, micros(m.MaxPassUs))
	counter(c.cardsExecuted, m.CardsExecuted)
	gauge(c.queueDepth, float64(m.Queue.Depth))
	gauge(c.queueCapacity, float64(m.Queue.Capacity))
	counter(c.queued, m.Queue.Accepted, "accepted")
	counter(c.queued, m.Queue.Rejected, "rejected")
	counter(c.applied, m.CommandsApplied, "applied")
	counter(c.applied, m.CommandsFailed, "failed")
	gauge(c.lastApply, micros(m.LastApplyLatencyUs))
	gauge(c.maxApply, micros(m.MaxApplyLatencyUs))
	counter(c.configApplies, m.ConfigApplies)
	gauge(c.paused, boolGauge(snap.Paused))
	gauge(c.testMode, boolGauge(snap.TestMode))
	gauge(c.runMode, 1, snap.RunMode.String())
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// newMetricsRegistry returns a registry holding the engine collector and
// the Go runtime collectors.
func newMetricsRegistry(src SnapshotSource) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		newEngineCollector(src),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// newMetricsHandler serves the Prometheus exposition for src.
func newMetricsHandler(src SnapshotSource) http.Handler {
	return promhttp.HandlerFor(newMetricsRegistry(src), promhttp.HandlerOpts{})
}
