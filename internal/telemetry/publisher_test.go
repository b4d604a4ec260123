package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/card"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/control"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/infrastructure/influxdb"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/scan"
)

type mockSink struct {
	mu    sync.Mutex
	scans []influxdb.ScanSample
	cards []influxdb.CardSample
	sites []string
}

func (m *mockSink) WriteScanMetrics(site string, s influxdb.ScanSample, _ time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans = append(m.scans, s)
	m.sites = append(m.sites, site)
}

func (m *mockSink) WriteCardValue(_ string, s influxdb.CardSample, _ time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards = append(m.cards, s)
}

func (m *mockSink) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.scans), len(m.cards)
}

type staticSource struct{ snap *control.Snapshot }

func (s *staticSource) Latest() *control.Snapshot { return s.snap }

func testSnapshot() *control.Snapshot {
	layout := card.Layout{DI: 2, AI: 1}
	snap := &control.Snapshot{Seq: 7, Layout: layout, Cards: card.DefaultCards(layout), RunMode: scan.RunSlow}
	snap.Metrics.PassCount = 40
	snap.Metrics.Queue.Depth = 2
	snap.Metrics.MaxApplyLatencyUs = 120
	return snap
}

func TestSample(t *testing.T) {
	sink := &mockSink{}
	src := &staticSource{}
	p := New(sink, src, "plant-1", time.Second, clockwork.NewFakeClock())

	if n := p.Sample(); n != 0 {
		t.Fatalf("Sample() without snapshot = %d", n)
	}
	if scans, _ := sink.counts(); scans != 0 {
		t.Fatal("scan metrics written without a snapshot")
	}

	src.snap = testSnapshot()
	if n := p.Sample(); n != 3 {
		t.Fatalf("first Sample() wrote %d card values, want 3", n)
	}
	got := sink.scans[0]
	if got.Seq != 7 || got.RunMode != "RUN_SLOW" || got.PassCount != 40 || got.QueueDepth != 2 || got.MaxApplyLatency != 120 {
		t.Errorf("scan sample = %+v", got)
	}
	if sink.sites[0] != "plant-1" {
		t.Errorf("site = %q", sink.sites[0])
	}

	if n := p.Sample(); n != 0 {
		t.Errorf("unchanged Sample() wrote %d card values", n)
	}

	next := testSnapshot()
	next.Cards[2].Signals.CurrentValue = 512
	src.snap = next
	if n := p.Sample(); n != 1 {
		t.Fatalf("Sample() after one change wrote %d", n)
	}
	last := sink.cards[len(sink.cards)-1]
	if last.ID != 2 || last.Family != "AI" || last.Value != 512 || last.State != "STREAMING" {
		t.Errorf("card sample = %+v", last)
	}

	if scans, _ := sink.counts(); scans != 3 {
		t.Errorf("scan samples = %d, want one per snapshot sample", scans)
	}
}

func TestRunSamplesOnTick(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sink := &mockSink{}
	p := New(sink, &staticSource{snap: testSnapshot()}, "s", time.Second, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("BlockUntilContext() error = %v", err)
	}
	clock.Advance(time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if scans, _ := sink.counts(); scans > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no sample after a tick")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}
