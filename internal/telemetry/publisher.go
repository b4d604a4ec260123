// Package telemetry samples controller snapshots into a time-series sink.
//
// Every sample writes one scan-metrics point. Card values are written only
// for cards whose signals changed since the previous sample, plus a full
// set on the first sample and after a layout change.
package telemetry

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/card"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/control"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/infrastructure/influxdb"
)

// DefaultInterval is the sampling period when none is configured.
const DefaultInterval = 10 * time.Second

// Sink receives samples. *influxdb.Client implements it.
type Sink interface {
	WriteScanMetrics(site string, s influxdb.ScanSample, at time.Time)
	WriteCardValue(site string, s influxdb.CardSample, at time.Time)
}

// SnapshotSource returns the latest published snapshot (read-only).
type SnapshotSource interface {
	Latest() *control.Snapshot
}

// Publisher samples snapshots on a fixed interval.
type Publisher struct {
	sink     Sink
	src      SnapshotSource
	site     string
	interval time.Duration
	clock    clockwork.Clock

	last []card.Signals
}

// New creates a publisher. A nil clock uses the real clock.
func New(sink Sink, src SnapshotSource, site string, interval time.Duration, clock clockwork.Clock) *Publisher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Publisher{sink: sink, src: src, site: site, interval: interval, clock: clock}
}

// Run samples until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			p.Sample()
		}
	}
}

// Sample writes one sample and returns the number of card values written.
func (p *Publisher) Sample() int {
	snap := p.src.Latest()
	if snap == nil {
		return 0
	}
	now := p.clock.Now()
	p.sink.WriteScanMetrics(p.site, scanSample(snap), now)

	full := len(p.last) != len(snap.Cards)
	if full {
		p.last = make([]card.Signals, len(snap.Cards))
	}
	written := 0
	for i := range snap.Cards {
		c := &snap.Cards[i]
		if !full && p.last[i] == c.Signals {
			continue
		}
		p.sink.WriteCardValue(p.site, cardSample(c), now)
		p.last[i] = c.Signals
		written++
	}
	return written
}

func scanSample(s *control.Snapshot) influxdb.ScanSample {
	m := s.Metrics
	return influxdb.ScanSample{
		Seq:             s.Seq,
		RunMode:         s.RunMode.String(),
		PassCount:       m.PassCount,
		OverrunCount:    m.OverrunCount,
		LastPassUs:      m.LastPassUs,
		MaxPassUs:       m.MaxPassUs,
		CardsExecuted:   m.CardsExecuted,
		QueueDepth:      m.Queue.Depth,
		QueueRejected:   m.Queue.Rejected,
		CommandsApplied: m.CommandsApplied,
		CommandsFailed:  m.CommandsFailed,
		MaxApplyLatency: m.MaxApplyLatencyUs,
	}
}

func cardSample(c *card.Card) influxdb.CardSample {
	return influxdb.CardSample{
		ID:       c.ID,
		Family:   c.Family.String(),
		Logical:  c.Signals.LogicalState,
		Physical: c.Signals.PhysicalState,
		Trigger:  c.Signals.TriggerFlag,
		Value:    c.Signals.CurrentValue,
		State:    c.Signals.State.String(),
	}
}
