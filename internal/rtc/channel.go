// Package rtc matches wall-clock schedules and drives RTC cards.
//
// A Channel is a wildcard-capable calendar pattern bound to one RTC card.
// The Scheduler polls the clock at a coarse interval; on each new minute it
// clears every bound card and asserts the cards whose channel matches. It
// never touches engine state directly: transitions are submitted as
// SET_RTC_CARD_STATE commands.
package rtc

import (
	"errors"
	"fmt"
	"time"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/card"
)

// Wildcard matches any value of a channel field.
const Wildcard = -1

// MaxChannels bounds the number of schedule channels.
const MaxChannels = 32

// ErrInvalidChannel is returned when a schedule channel fails validation.
var ErrInvalidChannel = errors.New("rtc: invalid channel")

// Channel is one schedule entry. Weekday follows time.Weekday (0 = Sunday).
type Channel struct {
	ID      int  `json:"id" yaml:"id"`
	Enabled bool `json:"enabled" yaml:"enabled"`
	Year    int  `json:"year" yaml:"year"`
	Month   int  `json:"month" yaml:"month"`
	Day     int  `json:"day" yaml:"day"`
	Weekday int  `json:"weekday" yaml:"weekday"`
	Hour    int  `json:"hour" yaml:"hour"`
	Minute  int  `json:"minute" yaml:"minute"`
	CardID  int  `json:"card_id" yaml:"card_id"`
}

// Every returns an enabled channel with all fields wildcarded.
func Every(id, cardID int) Channel {
	return Channel{
		ID: id, Enabled: true, CardID: cardID,
		Year: Wildcard, Month: Wildcard, Day: Wildcard,
		Weekday: Wildcard, Hour: Wildcard, Minute: Wildcard,
	}
}

// Matches reports whether every non-wildcard field equals t's civil field.
func (c Channel) Matches(t time.Time) bool {
	return field(c.Year, t.Year()) &&
		field(c.Month, int(t.Month())) &&
		field(c.Day, t.Day()) &&
		field(c.Weekday, int(t.Weekday())) &&
		field(c.Hour, t.Hour()) &&
		field(c.Minute, t.Minute())
}

func field(want, got int) bool {
	return want == Wildcard || want == got
}

// MinuteKey returns a monotonic minute number for t's civil date and time in
// t's location. Seconds are ignored.
func MinuteKey(t time.Time) int64 {
	y, m, d := t.Date()
	days := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
	return days*1440 + int64(t.Hour()*60+t.Minute())
}

type bounds struct {
	name     string
	v        int
	min, max int
}

// ValidateChannels checks field ranges, unique ids and that each channel is
// bound to an RTC card of layout.
func ValidateChannels(chs []Channel, layout card.Layout) error {
	if len(chs) > MaxChannels {
		return fmt.Errorf("%w: %d channels exceeds maximum of %d", ErrInvalidChannel, len(chs), MaxChannels)
	}
	seen := make(map[int]struct{}, len(chs))
	for _, c := range chs {
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("%w: duplicate id %d", ErrInvalidChannel, c.ID)
		}
		seen[c.ID] = struct{}{}

		for _, b := range []bounds{
			{"year", c.Year, 1970, 9999},
			{"month", c.Month, 1, 12},
			{"day", c.Day, 1, 31},
			{"weekday", c.Weekday, 0, 6},
			{"hour", c.Hour, 0, 23},
			{"minute", c.Minute, 0, 59},
		} {
			if b.v != Wildcard && (b.v < b.min || b.v > b.max) {
				return fmt.Errorf("%w: channel %d %s %d out of range", ErrInvalidChannel, c.ID, b.name, b.v)
			}
		}

		if f, ok := layout.FamilyOf(c.CardID); !ok || f != card.FamilyRTC {
			return fmt.Errorf("%w: channel %d card %d is not an RTC card", ErrInvalidChannel, c.ID, c.CardID)
		}
	}
	return nil
}
