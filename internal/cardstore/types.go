// Package cardstore persists card configurations and keeps the active one.
//
// Every applied configuration is stored as an immutable Revision in the
// config_revisions table. On startup the latest revision is loaded; when the
// database holds none the factory profile for the configured layout is used.
package cardstore

import (
	"fmt"
	"time"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/card"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/rtc"
)

// Revision sources.
const (
	SourceDefault = "default"
	SourceFile    = "file"
	SourceAPI     = "api"
)

// Revision is one complete card configuration.
type Revision struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	Source    string        `json:"source"`
	Note      string        `json:"note,omitempty"`
	Layout    card.Layout   `json:"layout"`
	Cards     []card.Card   `json:"cards"`
	Channels  []rtc.Channel `json:"channels"`
}

// Summary describes a stored revision without its cards.
type Summary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Source    string    `json:"source"`
	Note      string    `json:"note,omitempty"`
	Cards     int       `json:"cards"`
	Channels  int       `json:"channels"`
}

// Clone returns a deep copy.
func (r *Revision) Clone() *Revision {
	cpy := *r
	cpy.Cards = card.CloneCards(r.Cards)
	if r.Channels != nil {
		cpy.Channels = make([]rtc.Channel, len(r.Channels))
		copy(cpy.Channels, r.Channels)
	}
	return &cpy
}

// Validate checks the revision against the controller layout.
func (r *Revision) Validate(layout card.Layout) error {
	if r.Layout != layout {
		return fmt.Errorf("%w: revision %+v, controller %+v", ErrLayoutMismatch, r.Layout, layout)
	}
	if err := card.Validate(r.Cards, layout); err != nil {
		return err
	}
	return rtc.ValidateChannels(r.Channels, layout)
}

// Default returns the factory revision for layout: default cards and no
// schedule channels.
func Default(layout card.Layout) *Revision {
	return &Revision{
		Source:   SourceDefault,
		Layout:   layout,
		Cards:    card.DefaultCards(layout),
		Channels: []rtc.Channel{},
	}
}

// stripRuntime resets the runtime signals so stored cards carry only
// configuration.
func stripRuntime(cards []card.Card) []card.Card {
	out := card.CloneCards(cards)
	card.ResetSignals(out)
	return out
}
