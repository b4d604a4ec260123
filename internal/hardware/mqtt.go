package hardware

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/infrastructure/mqtt"
)

// defaultWriteBuffer is the number of output changes that may be pending
// before new ones are dropped.
const defaultWriteBuffer = 256

// Broker is the subset of the MQTT client used by MQTTIO.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

type outputWrite struct {
	ch    int
	level bool
}

// MQTTIO reaches remote I/O modules over MQTT.
//
// Input modules publish their levels on cardcore/io/di/{ch} and
// cardcore/io/ai/{ch}; MQTTIO caches the latest value so reads never block.
// Output changes are queued and published to cardcore/io/do/{ch} by Run, so
// the engine never waits on the network. Only level changes are queued.
type MQTTIO struct {
	broker Broker
	qos    byte
	clock  clockwork.Clock
	start  time.Time
	logger Logger

	mu      sync.RWMutex
	digital map[int]bool
	analog  map[int]uint32
	last    map[int]bool

	writes  chan outputWrite
	dropped atomic.Uint64
}

// NewMQTTIO creates an MQTT-backed IO. Call Subscribe before the engine
// starts and Run in its own goroutine.
func NewMQTTIO(broker Broker, qos byte, clock clockwork.Clock) *MQTTIO {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MQTTIO{
		broker:  broker,
		qos:     qos,
		clock:   clock,
		start:   clock.Now(),
		logger:  noopLogger{},
		digital: make(map[int]bool),
		analog:  make(map[int]uint32),
		last:    make(map[int]bool),
		writes:  make(chan outputWrite, defaultWriteBuffer),
	}
}

// SetLogger sets the logger.
func (m *MQTTIO) SetLogger(l Logger) {
	m.logger = l
}

// Subscribe registers the input topic handlers.
func (m *MQTTIO) Subscribe() error {
	t := mqtt.Topics{}
	if err := m.broker.Subscribe(t.AllDigitalInputs(), m.qos, m.handleDigital); err != nil {
		return fmt.Errorf("subscribing digital inputs: %w", err)
	}
	if err := m.broker.Subscribe(t.AllAnalogInputs(), m.qos, m.handleAnalog); err != nil {
		return fmt.Errorf("subscribing analog inputs: %w", err)
	}
	return nil
}

// Run publishes queued output changes until ctx is cancelled.
func (m *MQTTIO) Run(ctx context.Context) error {
	t := mqtt.Topics{}
	for {
		select {
		case <-ctx.Done():
			return nil
		case w := <-m.writes:
			payload := []byte("0")
			if w.level {
				payload = []byte("1")
			}
			if err := m.broker.Publish(t.IODigitalOutput(w.ch), payload, m.qos, true); err != nil {
				m.logger.Warn("output publish failed", "channel", w.ch, "error", err)
				m.forget(w.ch)
			}
		}
	}
}

// Dropped returns the number of output changes discarded because the write
// queue was full.
func (m *MQTTIO) Dropped() uint64 {
	return m.dropped.Load()
}

func (m *MQTTIO) handleDigital(topic string, payload []byte) error {
	ch, err := channelOf(topic)
	if err != nil {
		return err
	}
	level, err := parseLevel(payload)
	if err != nil {
		return fmt.Errorf("digital input %d: %w", ch, err)
	}
	m.mu.Lock()
	m.digital[ch] = level
	m.mu.Unlock()
	return nil
}

func (m *MQTTIO) handleAnalog(topic string, payload []byte) error {
	ch, err := channelOf(topic)
	if err != nil {
		return err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(payload)), 10, 32)
	if err != nil {
		return fmt.Errorf("analog input %d: %w", ch, err)
	}
	m.mu.Lock()
	m.analog[ch] = uint32(v)
	m.mu.Unlock()
	return nil
}

// ReadDigitalInput implements IO. Unknown channels read low.
func (m *MQTTIO) ReadDigitalInput(ch int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.digital[ch]
}

// ReadAnalogInput implements IO. Unknown channels read zero.
func (m *MQTTIO) ReadAnalogInput(ch int) uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.analog[ch]
}

// WriteDigitalOutput implements IO.
func (m *MQTTIO) WriteDigitalOutput(ch int, level bool) {
	m.mu.Lock()
	prev, seen := m.last[ch]
	if seen && prev == level {
		m.mu.Unlock()
		return
	}
	m.last[ch] = level
	m.mu.Unlock()

	select {
	case m.writes <- outputWrite{ch: ch, level: level}:
	default:
		m.dropped.Add(1)
		m.forget(ch)
	}
}

// NowMs implements IO.
func (m *MQTTIO) NowMs() uint32 {
	return millis(m.clock, m.start)
}

// forget drops the remembered level so the next write is retried.
func (m *MQTTIO) forget(ch int) {
	m.mu.Lock()
	delete(m.last, ch)
	m.mu.Unlock()
}

func channelOf(topic string) (int, error) {
	i := strings.LastIndexByte(topic, '/')
	ch, err := strconv.Atoi(topic[i+1:])
	if err != nil || ch < 0 {
		return 0, fmt.Errorf("invalid channel in topic %q", topic)
	}
	return ch, nil
}

func parseLevel(payload []byte) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(string(payload))) {
	case "1", "true", "on", "high":
		return true, nil
	case "0", "false", "off", "low":
		return false, nil
	}
	return false, fmt.Errorf("invalid level %q", payload)
}
