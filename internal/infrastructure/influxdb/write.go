package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementScan = "scan_metrics"
	MeasurementCard = "card_values"
)

// ScanSample is one sample of engine counters.
type ScanSample struct {
	Seq             uint64
	RunMode         string
	PassCount       uint64
	OverrunCount    uint64
	LastPassUs      int64
	MaxPassUs       int64
	CardsExecuted   uint64
	QueueDepth      int
	QueueRejected   uint64
	CommandsApplied uint64
	CommandsFailed  uint64
	MaxApplyLatency int64
}

// CardSample is one sample of a card's signals.
type CardSample struct {
	ID       int
	Family   string
	Logical  bool
	Physical bool
	Trigger  bool
	Value    uint32
	State    string
}

// WriteScanMetrics records engine counters for site.
func (c *Client) WriteScanMetrics(site string, s ScanSample, at time.Time) {
	c.WritePointWithTime(MeasurementScan,
		map[string]string{
			"site":     site,
			"run_mode": s.RunMode,
		},
		map[string]interface{}{
			"seq":                  s.Seq,
			"pass_count":           s.PassCount,
			"overrun_count":        s.OverrunCount,
			"last_pass_us":         s.LastPassUs,
			"max_pass_us":          s.MaxPassUs,
			"cards_executed":       s.CardsExecuted,
			"queue_depth":          s.QueueDepth,
			"queue_rejected":       s.QueueRejected,
			"commands_applied":     s.CommandsApplied,
			"commands_failed":      s.CommandsFailed,
			"max_apply_latency_us": s.MaxApplyLatency,
		},
		at,
	)
}

// WriteCardValue records one card's signals for site.
func (c *Client) WriteCardValue(site string, s CardSample, at time.Time) {
	c.WritePointWithTime(MeasurementCard,
		map[string]string{
			"site":   site,
			"card":   strconv.Itoa(s.ID),
			"family": s.Family,
		},
		map[string]interface{}{
			"logical":  s.Logical,
			"physical": s.Physical,
			"trigger":  s.Trigger,
			"value":    int64(s.Value),
			"state":    s.State,
		},
		at,
	)
}

// WritePoint writes a custom point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
