package rtc

import (
	"errors"
	"testing"
	"time"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/card"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/control"
)

func TestChannelMatchesHourMinute(t *testing.T) {
	ch := Every(0, 7)
	ch.Hour, ch.Minute = 14, 30

	at := time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC)
	if !ch.Matches(at) {
		t.Fatal("14:30 did not match")
	}
	for m := 0; m < 60; m++ {
		other := time.Date(2026, 3, 1, 14, m, 45, 0, time.UTC)
		if got := ch.Matches(other); got != (m == 30) {
			t.Errorf("Matches(14:%02d) = %v", m, got)
		}
	}
}

func TestChannelMatchesFields(t *testing.T) {
	// 2026-03-01 is a Sunday
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		mutate func(*Channel)
		want   bool
	}{
		{"all wildcard", func(*Channel) {}, true},
		{"year", func(c *Channel) { c.Year = 2026 }, true},
		{"wrong year", func(c *Channel) { c.Year = 2025 }, false},
		{"month and day", func(c *Channel) { c.Month, c.Day = 3, 1 }, true},
		{"sunday", func(c *Channel) { c.Weekday = 0 }, true},
		{"monday", func(c *Channel) { c.Weekday = 1 }, false},
		{"hour", func(c *Channel) { c.Hour = 9 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := Every(0, 0)
			tt.mutate(&ch)
			if got := ch.Matches(at); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMinuteKey(t *testing.T) {
	a := time.Date(2026, 12, 31, 23, 59, 10, 0, time.UTC)
	b := time.Date(2027, 1, 1, 0, 0, 50, 0, time.UTC)
	if MinuteKey(b)-MinuteKey(a) != 1 {
		t.Errorf("keys across new year differ by %d, want 1", MinuteKey(b)-MinuteKey(a))
	}
	if MinuteKey(a) != MinuteKey(a.Add(40*time.Second)) {
		t.Error("seconds changed the minute key")
	}
}

func TestValidateChannels(t *testing.T) {
	layout := card.Layout{DI: 1, RTC: 2} // RTC ids 1-2
	ok := Every(0, 1)
	tests := []struct {
		name string
		chs  []Channel
		ok   bool
	}{
		{"valid", []Channel{ok, Every(1, 2)}, true},
		{"duplicate id", []Channel{ok, ok}, false},
		{"not rtc", []Channel{Every(0, 0)}, false},
		{"out of range card", []Channel{Every(0, 5)}, false},
		{"bad hour", []Channel{func() Channel { c := ok; c.Hour = 24; return c }()}, false},
		{"bad weekday", []Channel{func() Channel { c := ok; c.Weekday = 7; return c }()}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChannels(tt.chs, layout)
			if tt.ok && err != nil {
				t.Errorf("ValidateChannels() error = %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidChannel) {
				t.Errorf("ValidateChannels() error = %v, want ErrInvalidChannel", err)
			}
		})
	}
}

type mockSubmitter struct {
	cmds   []control.Command
	reject bool
}

func (m *mockSubmitter) Submit(cmd control.Command) bool {
	if m.reject {
		return false
	}
	m.cmds = append(m.cmds, cmd)
	return true
}

func (m *mockSubmitter) states() []bool {
	out := make([]bool, 0, len(m.cmds))
	for _, c := range m.cmds {
		out = append(out, c.Enabled)
	}
	return out
}

func TestSchedulerPoll(t *testing.T) {
	sub := &mockSubmitter{}
	s := NewScheduler(sub, nil, time.UTC)

	match := Every(0, 7)
	match.Hour, match.Minute = 14, 30
	other := Every(1, 8)
	other.Hour = 3
	disabled := Every(2, 9)
	disabled.Enabled = false
	s.SetChannels([]Channel{match, other, disabled})

	at := time.Date(2026, 3, 1, 14, 30, 5, 0, time.UTC)
	if !s.PollAt(at) {
		t.Fatal("first poll of minute not handled")
	}
	// clear 7, clear 8, assert 7
	if len(sub.cmds) != 3 {
		t.Fatalf("commands = %d, want 3", len(sub.cmds))
	}
	got := sub.states()
	if got[0] || got[1] || !got[2] || sub.cmds[2].CardID != 7 {
		t.Errorf("commands = %+v", sub.cmds)
	}
	for _, c := range sub.cmds {
		if c.Kind != control.CmdSetRTCCardState {
			t.Errorf("kind = %s, want SET_RTC_CARD_STATE", c.Kind)
		}
	}

	if s.PollAt(at.Add(30 * time.Second)) {
		t.Error("same minute handled twice")
	}
	if !s.PollAt(at.Add(time.Minute)) {
		t.Error("next minute not handled")
	}
	if len(sub.cmds) != 5 {
		t.Errorf("commands after next minute = %d, want 5 (two clears)", len(sub.cmds))
	}
}

func TestSchedulerRetriesRejectedMinute(t *testing.T) {
	sub := &mockSubmitter{reject: true}
	s := NewScheduler(sub, nil, time.UTC)
	s.SetChannels([]Channel{Every(0, 1)})

	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if s.PollAt(at) {
		t.Fatal("rejected minute marked handled")
	}
	sub.reject = false
	if !s.PollAt(at.Add(time.Second)) {
		t.Error("retry of same minute not handled")
	}
	if len(sub.cmds) != 2 {
		t.Errorf("commands = %d, want clear + assert", len(sub.cmds))
	}
}

func TestSchedulerLocation(t *testing.T) {
	sub := &mockSubmitter{}
	loc := time.FixedZone("UTC+2", 2*60*60)
	s := NewScheduler(sub, nil, loc)
	ch := Every(0, 1)
	ch.Hour = 14
	s.SetChannels([]Channel{ch})

	s.PollAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	if len(sub.cmds) != 2 || !sub.cmds[1].Enabled {
		t.Errorf("12:00 UTC is 14:00 local, commands = %+v", sub.cmds)
	}
}
