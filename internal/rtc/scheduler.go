package rtc

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/control"
)

// DefaultPollInterval is how often Run checks for a new minute.
const DefaultPollInterval = time.Second

// Submitter accepts commands for the engine.
type Submitter interface {
	Submit(cmd control.Command) bool
}

// Logger is the logging interface used by the scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Scheduler turns schedule channels into RTC card commands once per minute.
// All methods are safe for concurrent use.
type Scheduler struct {
	submit Submitter
	clock  clockwork.Clock
	loc    *time.Location
	logger Logger

	mu       sync.Mutex
	channels []Channel
	lastKey  int64
	handled  bool
}

// NewScheduler creates a scheduler that reads wall-clock time in loc.
func NewScheduler(submit Submitter, clock clockwork.Clock, loc *time.Location) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{submit: submit, clock: clock, loc: loc, logger: noopLogger{}}
}

// SetLogger sets the logger.
func (s *Scheduler) SetLogger(l Logger) {
	s.logger = l
}

// SetChannels replaces the schedule. The current minute is evaluated again
// on the next poll.
func (s *Scheduler) SetChannels(chs []Channel) {
	cpy := make([]Channel, len(chs))
	copy(cpy, chs)

	s.mu.Lock()
	s.channels = cpy
	s.handled = false
	s.mu.Unlock()
}

// Channels returns a copy of the schedule.
func (s *Scheduler) Channels() []Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	cpy := make([]Channel, len(s.channels))
	copy(cpy, s.channels)
	return cpy
}

// Poll evaluates the schedule at the clock's current time.
func (s *Scheduler) Poll() bool {
	return s.PollAt(s.clock.Now())
}

// PollAt evaluates the schedule at now. It reports whether a new minute was
// handled. When the engine rejects a command the minute is left unhandled
// and retried on the next poll.
func (s *Scheduler) PollAt(now time.Time) bool {
	t := now.In(s.loc)
	key := MinuteKey(t)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handled && key == s.lastKey {
		return false
	}

	ok := true
	cleared := make(map[int]struct{}, len(s.channels))
	for _, ch := range s.channels {
		if !ch.Enabled {
			continue
		}
		if _, done := cleared[ch.CardID]; done {
			continue
		}
		cleared[ch.CardID] = struct{}{}
		ok = s.submit.Submit(control.SetRTCCardState(ch.CardID, false)) && ok
	}
	for _, ch := range s.channels {
		if ch.Enabled && ch.Matches(t) {
			s.logger.Debug("rtc channel matched", "channel", ch.ID, "card", ch.CardID, "time", t.Format("2006-01-02 15:04"))
			ok = s.submit.Submit(control.SetRTCCardState(ch.CardID, true)) && ok
		}
	}

	if !ok {
		s.logger.Warn("rtc commands rejected, retrying minute", "minute", key)
		return false
	}
	s.lastKey = key
	s.handled = true
	return true
}

// Run polls at interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	s.Poll()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			s.Poll()
		}
	}
}
