// Package store holds the live runtime state of every card.
//
// State lives in one arena per family, addressed by a (family, index) Key,
// so lookups are O(1) and a family's states are contiguous. The card array
// stays the configuration and reporting surface: Load resets the arenas from
// it and Mirror copies runtime signals back into it.
package store

import (
	"fmt"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/card"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/engine"
)

// Key addresses one card's runtime state.
type Key struct {
	Family card.Family
	Index  int
}

func (k Key) String() string {
	return fmt.Sprintf("%s[%d]", k.Family, k.Index)
}

// Store is the runtime arena set for one layout. It is owned by the engine
// context and is not safe for concurrent use.
type Store struct {
	layout card.Layout
	arenas [card.FamilyCount][]engine.State
}

// New allocates zeroed arenas sized for layout.
func New(layout card.Layout) *Store {
	s := &Store{layout: layout}
	for _, f := range card.AllFamilies() {
		s.arenas[f] = make([]engine.State, layout.Count(f))
	}
	return s
}

// Layout returns the layout the store was sized for.
func (s *Store) Layout() card.Layout { return s.layout }

// KeyOf maps a card id to its key.
func (s *Store) KeyOf(id int) (Key, bool) {
	f, idx, ok := s.layout.Locate(id)
	if !ok {
		return Key{}, false
	}
	return Key{Family: f, Index: idx}, true
}

// Get returns the state for k, or nil when k is out of range.
func (s *Store) Get(k Key) *engine.State {
	if !k.Family.Valid() || k.Index < 0 || k.Index >= len(s.arenas[k.Family]) {
		return nil
	}
	return &s.arenas[k.Family][k.Index]
}

// State returns the state for card id, or nil when id is out of range.
func (s *Store) State(id int) *engine.State {
	k, ok := s.KeyOf(id)
	if !ok {
		return nil
	}
	return s.Get(k)
}

// Load resets every state to its family's safe default for the given cards
// and writes those defaults back into the cards. The cards must match the
// store's layout.
func (s *Store) Load(cards []card.Card) error {
	if len(cards) != s.layout.Total() {
		return fmt.Errorf("%w: %d cards for a layout of %d", card.ErrLayoutMismatch, len(cards), s.layout.Total())
	}
	for i := range cards {
		st := s.State(i)
		if st == nil {
			return fmt.Errorf("%w: card %d", card.ErrLayoutMismatch, i)
		}
		*st = engine.Initial(&cards[i])
		cards[i].Signals = st.Signals
	}
	return nil
}

// MirrorCard copies the runtime signals of c into c.Signals.
func (s *Store) MirrorCard(c *card.Card) {
	if st := s.State(c.ID); st != nil {
		c.Signals = st.Signals
	}
}

// Mirror copies every card's runtime signals into the card array.
func (s *Store) Mirror(cards []card.Card) {
	for i := range cards {
		s.MirrorCard(&cards[i])
	}
}
