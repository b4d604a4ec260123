package card

import "fmt"

// MaxCards bounds the total number of cards in a layout.
const MaxCards = 1024

// Layout is the per-family card count. Family boundaries derived from it are
// fixed for the controller's lifetime.
type Layout struct {
	DI   int `json:"di" yaml:"di" validate:"gte=0"`
	DO   int `json:"do" yaml:"do" validate:"gte=0"`
	AI   int `json:"ai" yaml:"ai" validate:"gte=0"`
	SIO  int `json:"sio" yaml:"sio" validate:"gte=0"`
	Math int `json:"math" yaml:"math" validate:"gte=0"`
	RTC  int `json:"rtc" yaml:"rtc" validate:"gte=0"`
}

// Count returns the number of cards of family f.
func (l Layout) Count(f Family) int {
	switch f {
	case FamilyDI:
		return l.DI
	case FamilyDO:
		return l.DO
	case FamilyAI:
		return l.AI
	case FamilySIO:
		return l.SIO
	case FamilyMath:
		return l.Math
	case FamilyRTC:
		return l.RTC
	}
	return 0
}

// Start returns the first card id of family f.
func (l Layout) Start(f Family) int {
	start := 0
	for _, g := range AllFamilies() {
		if g == f {
			return start
		}
		start += l.Count(g)
	}
	return start
}

// Total returns the number of cards in the layout.
func (l Layout) Total() int {
	return l.DI + l.DO + l.AI + l.SIO + l.Math + l.RTC
}

// Locate returns the family and in-family index of card id.
func (l Layout) Locate(id int) (Family, int, bool) {
	if id < 0 {
		return 0, 0, false
	}
	start := 0
	for _, f := range AllFamilies() {
		n := l.Count(f)
		if id < start+n {
			return f, id - start, true
		}
		start += n
	}
	return 0, 0, false
}

// FamilyOf returns the family of card id, or false when id is out of range.
func (l Layout) FamilyOf(id int) (Family, bool) {
	f, _, ok := l.Locate(id)
	return f, ok
}

// ID returns the card id of index i within family f.
func (l Layout) ID(f Family, i int) int {
	return l.Start(f) + i
}

// Contains reports whether id addresses a card in the layout.
func (l Layout) Contains(id int) bool {
	return id >= 0 && id < l.Total()
}

// Validate checks the counts.
func (l Layout) Validate() error {
	for _, f := range AllFamilies() {
		if l.Count(f) < 0 {
			return fmt.Errorf("%w: negative %s count", ErrInvalidLayout, f)
		}
	}
	if l.Total() == 0 {
		return fmt.Errorf("%w: no cards", ErrInvalidLayout)
	}
	if l.Total() > MaxCards {
		return fmt.Errorf("%w: %d cards exceeds maximum of %d", ErrInvalidLayout, l.Total(), MaxCards)
	}
	return nil
}

// LayoutOf derives the layout of a family-ordered card array.
func LayoutOf(cards []Card) Layout {
	var l Layout
	for i := range cards {
		switch cards[i].Family {
		case FamilyDI:
			l.DI++
		case FamilyDO:
			l.DO++
		case FamilyAI:
			l.AI++
		case FamilySIO:
			l.SIO++
		case FamilyMath:
			l.Math++
		case FamilyRTC:
			l.RTC++
		}
	}
	return l
}
