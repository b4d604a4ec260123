package card

// Default profile values.
const (
	DefaultDebounceMs = 50
	DefaultAIInputMax = 4095
	DefaultAIOutMax   = 10000
)

// SafeSignals returns the runtime signals a card starts with after boot or a
// config apply. Outputs rest at their idle level.
func SafeSignals(c *Card) Signals {
	var s Signals
	switch c.Family {
	case FamilyDI:
		s.State = StateIdle
	case FamilyDO, FamilySIO:
		s.State = StateIdle
		s.PhysicalState = c.Invert
	case FamilyAI:
		s.State = StateStreaming
	case FamilyMath:
		s.State = StateNone
		s.CurrentValue = c.Math.Fallback
	case FamilyRTC:
		s.State = StateNone
	}
	return s
}

// ResetSignals resets every card to its safe signals.
func ResetSignals(cards []Card) {
	for i := range cards {
		cards[i].Signals = SafeSignals(&cards[i])
	}
}

// DefaultCards builds the factory profile for a layout. Hardware cards use
// channel = index and each DO follows the DI with the same index, when the
// layout has one.
func DefaultCards(l Layout) []Card {
	cards := make([]Card, 0, l.Total())
	for _, f := range AllFamilies() {
		for i := 0; i < l.Count(f); i++ {
			c := Card{
				ID:      len(cards),
				Family:  f,
				Index:   i,
				Channel: VirtualChannel,
				Set:     Never(),
				Reset:   Never(),
			}
			switch f {
			case FamilyDI:
				c.Channel = i
				c.Set = Always()
				c.DI = DISettings{DebounceMs: DefaultDebounceMs, EdgeMode: EdgeRising}
			case FamilyDO:
				c.Channel = i
				c.Output = OutputSettings{Mode: ModeNormal, ActiveMs: 1000, RepeatCount: 1}
				if i < l.DI {
					c.Set = When(l.ID(FamilyDI, i), OpLogicalTrue, 0)
				}
			case FamilyAI:
				c.Channel = i
				c.AI = AISettings{InputMax: DefaultAIInputMax, OutputMax: DefaultAIOutMax, Alpha: maxAlpha}
			case FamilySIO:
				c.Output = OutputSettings{Mode: ModeNormal, ActiveMs: 1000, RepeatCount: 1}
			case FamilyMath:
				c.Math = MathSettings{InputA: Const(0), InputB: Const(0), ClampMin: 1, ClampMax: 0}
			case FamilyRTC:
				c.RTC = RTCSettings{TriggerDurationMs: 60000}
			}
			c.Signals = SafeSignals(&c)
			cards = append(cards, c)
		}
	}
	return cards
}
