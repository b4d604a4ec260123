package card

import "fmt"

// Validation limits.
const (
	maxAlpha       = 100
	legacyAlphaMax = 1000
)

// Validate checks a card array against a layout. It returns the first
// problem found, wrapped with ErrInvalidConfig (or ErrInvalidLayout /
// ErrLayoutMismatch for structural problems).
//
// A card array that passes Validate can be handed to the runtime without
// further checks; the evaluator and engines still fail closed on bad data.
func Validate(cards []Card, layout Layout) error {
	if err := layout.Validate(); err != nil {
		return err
	}
	if len(cards) != layout.Total() {
		return fmt.Errorf("%w: %d cards for a layout of %d", ErrLayoutMismatch, len(cards), layout.Total())
	}

	channels := make(map[Family]map[int]int, 3)
	for i := range cards {
		c := &cards[i]
		if err := validateIdentity(c, i, layout); err != nil {
			return err
		}
		if err := validateChannel(c, channels); err != nil {
			return err
		}
		if err := validateSettings(c, layout); err != nil {
			return err
		}
		if err := validateBlocks(c, layout); err != nil {
			return err
		}
	}
	return nil
}

func validateIdentity(c *Card, pos int, layout Layout) error {
	if c.ID != pos {
		return fmt.Errorf("%w: card at position %d has id %d", ErrLayoutMismatch, pos, c.ID)
	}
	f, idx, _ := layout.Locate(pos)
	if c.Family != f || c.Index != idx {
		return fmt.Errorf("%w: card %d is %s[%d], layout expects %s[%d]",
			ErrLayoutMismatch, c.ID, c.Family, c.Index, f, idx)
	}
	return nil
}

// validateChannel requires SIO, MATH and RTC cards to be virtual and forbids
// two hardware cards of one family sharing a channel.
func validateChannel(c *Card, seen map[Family]map[int]int) error {
	switch c.Family {
	case FamilySIO, FamilyMath, FamilyRTC:
		if !c.Virtual() {
			return fmt.Errorf("%w: card %d: %s cards have no hardware channel", ErrInvalidConfig, c.ID, c.Family)
		}
		return nil
	}
	if c.Virtual() {
		return nil
	}
	byCh, ok := seen[c.Family]
	if !ok {
		byCh = make(map[int]int)
		seen[c.Family] = byCh
	}
	if other, dup := byCh[c.Channel]; dup {
		return fmt.Errorf("%w: cards %d and %d share %s channel %d",
			ErrInvalidConfig, other, c.ID, c.Family, c.Channel)
	}
	byCh[c.Channel] = c.ID
	return nil
}

func validateSettings(c *Card, layout Layout) error {
	switch c.Family {
	case FamilyDI:
		if !c.DI.EdgeMode.Valid() {
			return fmt.Errorf("%w: card %d: invalid edge mode", ErrInvalidConfig, c.ID)
		}
	case FamilyDO, FamilySIO:
		if !c.Output.Mode.Valid() {
			return fmt.Errorf("%w: card %d: invalid output mode", ErrInvalidConfig, c.ID)
		}
	case FamilyAI:
		if c.AI.Alpha > maxAlpha {
			return fmt.Errorf("%w: card %d: alpha %d exceeds %d", ErrInvalidConfig, c.ID, c.AI.Alpha, maxAlpha)
		}
	case FamilyMath:
		for _, op := range []Operand{c.Math.InputA, c.Math.InputB} {
			if err := validateOperand(c.ID, op, layout); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateOperand(id int, op Operand, layout Layout) error {
	if op.Source == NoSource {
		return nil
	}
	f, ok := layout.FamilyOf(op.Source)
	if !ok {
		return fmt.Errorf("%w: card %d: operand source %d out of range", ErrInvalidConfig, id, op.Source)
	}
	if !f.HasNumeric() {
		return fmt.Errorf("%w: card %d: operand source %d is %s and has no value", ErrInvalidConfig, id, op.Source, f)
	}
	return nil
}

// validateBlocks checks Set and Reset. RTC cards are driven by the schedule
// and must keep both blocks at their disabled default.
func validateBlocks(c *Card, layout Layout) error {
	if c.Family == FamilyRTC {
		for name, b := range map[string]ConditionBlock{"set": c.Set, "reset": c.Reset} {
			if b.Combiner != CombineNone || b.A.Op != OpAlwaysFalse {
				return fmt.Errorf("%w: card %d: rtc %s condition must be ALWAYS_FALSE", ErrInvalidConfig, c.ID, name)
			}
		}
		return nil
	}
	if c.Family == FamilyAI {
		return nil
	}
	if err := ValidateBlock(c.Set, layout); err != nil {
		return fmt.Errorf("card %d set: %w", c.ID, err)
	}
	if err := ValidateBlock(c.Reset, layout); err != nil {
		return fmt.Errorf("card %d reset: %w", c.ID, err)
	}
	return nil
}

// ValidateBlock checks a condition block against a layout.
func ValidateBlock(b ConditionBlock, layout Layout) error {
	if !b.Combiner.Valid() {
		return fmt.Errorf("%w: invalid combiner %d", ErrInvalidConfig, b.Combiner)
	}
	if err := validateClause(b.A, layout); err != nil {
		return fmt.Errorf("clause a: %w", err)
	}
	if b.Combiner == CombineNone {
		return nil
	}
	if err := validateClause(b.B, layout); err != nil {
		return fmt.Errorf("clause b: %w", err)
	}
	return nil
}

func validateClause(cl Clause, layout Layout) error {
	if !cl.Op.Valid() {
		return fmt.Errorf("%w: invalid operator %d", ErrInvalidConfig, cl.Op)
	}
	if cl.Op.Kind() == KindConstant {
		return nil
	}
	f, ok := layout.FamilyOf(cl.Source)
	if !ok {
		return fmt.Errorf("%w: source %d out of range", ErrInvalidConfig, cl.Source)
	}
	if !OperatorLegal(f, cl.Op) {
		return fmt.Errorf("%w: operator %s not legal on %s source %d", ErrInvalidConfig, cl.Op, f, cl.Source)
	}
	return nil
}

// AlphaFromLegacy converts a legacy x10 alpha (0..1000) to percent.
func AlphaFromLegacy(v uint32) uint32 {
	if v > legacyAlphaMax {
		v = legacyAlphaMax
	}
	return v / 10
}
