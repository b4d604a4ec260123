// Package bridge connects the controller to an MQTT broker.
//
// Outbound, it watches the published snapshot and, when the sequence number
// changes, publishes the full snapshot (retained) and the state of every
// card whose signals changed. Inbound, it accepts JSON commands on the
// command topic, submits them through the audit layer and acknowledges each
// one on the ack topic.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/audit"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/card"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/control"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/infrastructure/mqtt"
)

// DefaultInterval is how often the snapshot is checked for changes.
const DefaultInterval = 100 * time.Millisecond

// Broker is the subset of the MQTT client used by the bridge.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// SnapshotSource returns the latest published snapshot (read-only).
type SnapshotSource interface {
	Latest() *control.Snapshot
}

// Submitter submits a command on behalf of a remote source.
type Submitter interface {
	Submit(ctx context.Context, cmd control.Command, source, actor string) (string, error)
}

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// CardState is the payload of a per-card state topic.
type CardState struct {
	ID       int         `json:"id"`
	Family   card.Family `json:"family"`
	Seq      uint64      `json:"seq"`
	State    card.State  `json:"state"`
	Logical  bool        `json:"logical"`
	Physical bool        `json:"physical"`
	Trigger  bool        `json:"trigger"`
	Value    uint32      `json:"value"`
	Repeat   uint32      `json:"repeat"`
}

// Ack is the payload published for every received command.
type Ack struct {
	ID       string `json:"id,omitempty"`
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// Options configure a Bridge.
type Options struct {
	QoS      byte
	Interval time.Duration
	Clock    clockwork.Clock
}

// Bridge publishes controller state and accepts remote commands.
type Bridge struct {
	broker Broker
	src    SnapshotSource
	sub    Submitter
	qos    byte
	every  time.Duration
	clock  clockwork.Clock
	topics mqtt.Topics
	logger Logger

	// owned by the Run goroutine
	lastSeq uint64
	primed  bool
	last    []card.Signals
}

// New creates a bridge.
func New(broker Broker, src SnapshotSource, sub Submitter, opts Options) *Bridge {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Bridge{
		broker: broker,
		src:    src,
		sub:    sub,
		qos:    opts.QoS,
		every:  opts.Interval,
		clock:  opts.Clock,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger.
func (b *Bridge) SetLogger(l Logger) {
	b.logger = l
}

// Subscribe registers the command handler.
func (b *Bridge) Subscribe() error {
	if err := b.broker.Subscribe(b.topics.Command(), b.qos, b.handleCommand); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}
	return nil
}

// Run publishes snapshot changes until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	ticker := b.clock.NewTicker(b.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			if _, err := b.Publish(); err != nil {
				b.logger.Warn("snapshot publish failed", "error", err)
			}
		}
	}
}

// Publish sends the current snapshot and changed card states when the
// sequence number moved since the last successful publish. It reports
// whether anything was sent. A failed publish is retried on the next call.
func (b *Bridge) Publish() (bool, error) {
	snap := b.src.Latest()
	if snap == nil || (b.primed && snap.Seq == b.lastSeq) {
		return false, nil
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return false, fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := b.broker.Publish(b.topics.Snapshot(), payload, b.qos, true); err != nil {
		return false, fmt.Errorf("publishing snapshot: %w", err)
	}

	if len(b.last) != len(snap.Cards) {
		b.last = make([]card.Signals, len(snap.Cards))
		b.primed = false
	}
	for i := range snap.Cards {
		c := &snap.Cards[i]
		if b.primed && b.last[i] == c.Signals {
			continue
		}
		if err := b.publishCard(snap.Seq, c); err != nil {
			return true, err
		}
		b.last[i] = c.Signals
	}

	b.lastSeq, b.primed = snap.Seq, true
	b.logger.Debug("snapshot published", "seq", snap.Seq)
	return true, nil
}

func (b *Bridge) publishCard(seq uint64, c *card.Card) error {
	payload, err := json.Marshal(CardState{
		ID:       c.ID,
		Family:   c.Family,
		Seq:      seq,
		State:    c.Signals.State,
		Logical:  c.Signals.LogicalState,
		Physical: c.Signals.PhysicalState,
		Trigger:  c.Signals.TriggerFlag,
		Value:    c.Signals.CurrentValue,
		Repeat:   c.Signals.RepeatCounter,
	})
	if err != nil {
		return fmt.Errorf("encoding card %d state: %w", c.ID, err)
	}
	if err := b.broker.Publish(b.topics.CardState(c.ID), payload, b.qos, true); err != nil {
		return fmt.Errorf("publishing card %d state: %w", c.ID, err)
	}
	return nil
}

// handleCommand decodes a command, submits it and publishes the ack. A
// malformed payload is acknowledged as rejected.
func (b *Bridge) handleCommand(_ string, payload []byte) error {
	ack := Ack{}
	cmd, err := control.DecodeCommand(bytes.NewReader(payload), false)
	if err != nil {
		ack.Error = fmt.Sprintf("malformed command: %v", err)
	} else {
		id, err := b.sub.Submit(context.Background(), cmd, audit.SourceMQTT, "")
		ack.ID = id
		ack.Accepted = err == nil
		if err != nil {
			ack.Error = err.Error()
		}
	}

	if !ack.Accepted {
		b.logger.Warn("mqtt command rejected", "id", ack.ID, "error", ack.Error)
	}

	out, err := json.Marshal(ack)
	if err != nil {
		return fmt.Errorf("encoding ack: %w", err)
	}
	if err := b.broker.Publish(b.topics.CommandAck(), out, b.qos, false); err != nil {
		return fmt.Errorf("publishing ack: %w", err)
	}
	return nil
}
