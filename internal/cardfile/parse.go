package cardfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ccoveille/go-safecast"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/card"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/cardstore"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/rtc"
)

// ErrInvalidFile is returned when a layout file cannot be converted into a
// card configuration.
var ErrInvalidFile = errors.New("cardfile: invalid layout file")

// Load reads and converts the layout file at path.
func Load(path string) (*cardstore.Revision, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("reading layout file: %w", err)
	}
	rev, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rev.Note = path
	return rev, nil
}

// Parse converts a YAML layout document into a validated revision. Unknown
// keys are rejected.
func Parse(data []byte) (*cardstore.Revision, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	if err := validator.New().Struct(&f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			return nil, fmt.Errorf("%w: %s fails %q (value %v)", ErrInvalidFile, e.Namespace(), e.Tag(), e.Value())
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	layout := card.Layout{
		DI: len(f.DI), DO: len(f.DO), AI: len(f.AI),
		SIO: len(f.SIO), Math: len(f.Math), RTC: len(f.RTC),
	}
	if f.Layout != nil && *f.Layout != layout {
		return nil, fmt.Errorf("%w: declared layout %+v, sections describe %+v", ErrInvalidFile, *f.Layout, layout)
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	b := builder{layout: layout, cards: card.DefaultCards(layout)}
	b.digitalInputs(f.DI)
	b.outputs(card.FamilyDO, f.DO)
	b.analogInputs(f.AI)
	b.outputs(card.FamilySIO, f.SIO)
	b.maths(f.Math)
	b.rtcs(f.RTC)
	channels := b.schedules(f.Schedules)
	if b.err != nil {
		return nil, b.err
	}

	if err := card.Validate(b.cards, layout); err != nil {
		return nil, err
	}
	if err := rtc.ValidateChannels(channels, layout); err != nil {
		return nil, err
	}

	return &cardstore.Revision{
		Source:   cardstore.SourceFile,
		Layout:   layout,
		Cards:    b.cards,
		Channels: channels,
	}, nil
}

// builder fills the factory cards from file entries. The first error sticks.
type builder struct {
	layout card.Layout
	cards  []card.Card
	err    error
}

func (b *builder) fail(id int, field string, err error) {
	switch {
	case b.err != nil:
	case errors.Is(err, ErrInvalidFile):
		b.err = fmt.Errorf("card %d %s: %w", id, field, err)
	default:
		b.err = fmt.Errorf("%w: card %d %s: %w", ErrInvalidFile, id, field, err)
	}
}

func (b *builder) u32(id int, field string, v int64) uint32 {
	out, err := safecast.ToUint32(v)
	if err != nil {
		b.fail(id, field, err)
	}
	return out
}

func (b *builder) channel(c *card.Card, ch *int) {
	if ch != nil {
		c.Channel = *ch
	}
}

func (b *builder) blocks(c *card.Card, set, reset *Block) {
	if set != nil {
		c.Set = b.block(c.ID, "set", set)
	}
	if reset != nil {
		c.Reset = b.block(c.ID, "reset", reset)
	}
}

func (b *builder) block(id int, field string, blk *Block) card.ConditionBlock {
	out := card.ConditionBlock{
		A:        b.clause(id, field+".a", blk.A),
		B:        card.Clause{Op: card.OpAlwaysFalse},
		Combiner: blk.Combiner,
	}
	if blk.B != nil {
		out.B = b.clause(id, field+".b", blk.B)
	}
	return out
}

func (b *builder) clause(id int, field string, cl *Clause) card.Clause {
	out := card.Clause{Op: *cl.Op, Threshold: b.u32(id, field+".threshold", cl.Threshold)}
	if cl.Source == "" {
		if out.Op.Kind() != card.KindConstant {
			b.fail(id, field, fmt.Errorf("%s needs a source", out.Op))
		}
		return out
	}
	src, err := cl.Source.Resolve(b.layout)
	if err != nil {
		b.fail(id, field, err)
	}
	out.Source = src
	return out
}

func (b *builder) operand(id int, field string, op Operand) card.Operand {
	if op.Source == "" {
		return card.Const(b.u32(id, field, op.Value))
	}
	src, err := op.Source.Resolve(b.layout)
	if err != nil {
		b.fail(id, field, err)
	}
	return card.Operand{Source: src, Value: b.u32(id, field, op.Value)}
}

func (b *builder) digitalInputs(entries []DIEntry) {
	for i, e := range entries {
		c := &b.cards[b.layout.ID(card.FamilyDI, i)]
		b.channel(c, e.Channel)
		c.Invert = e.Invert
		c.DI.EdgeMode = e.Edge
		if e.Debounce != nil {
			c.DI.DebounceMs = b.u32(c.ID, "debounce", int64(*e.Debounce))
		}
		b.blocks(c, e.Set, e.Reset)
	}
}

func (b *builder) outputs(f card.Family, entries []OutputEntry) {
	for i, e := range entries {
		c := &b.cards[b.layout.ID(f, i)]
		b.channel(c, e.Channel)
		c.Invert = e.Invert
		c.Output.Mode = e.Mode
		c.Output.OnDelayMs = b.u32(c.ID, "on_delay", int64(e.OnDelay))
		if e.Active != 0 {
			c.Output.ActiveMs = b.u32(c.ID, "active", int64(e.Active))
		}
		if e.Repeat != nil {
			c.Output.RepeatCount = b.u32(c.ID, "repeat", int64(*e.Repeat))
		}
		b.blocks(c, e.Set, e.Reset)
	}
}

func (b *builder) analogInputs(entries []AIEntry) {
	for i, e := range entries {
		c := &b.cards[b.layout.ID(card.FamilyAI, i)]
		b.channel(c, e.Channel)
		c.AI.InputMin = b.u32(c.ID, "input_min", int64(e.InputMin))
		c.AI.OutputMin = b.u32(c.ID, "output_min", int64(e.OutputMin))
		if e.InputMax != nil {
			c.AI.InputMax = b.u32(c.ID, "input_max", int64(*e.InputMax))
		}
		if e.OutputMax != nil {
			c.AI.OutputMax = b.u32(c.ID, "output_max", int64(*e.OutputMax))
		}
		if e.Alpha != nil {
			alpha := b.u32(c.ID, "alpha", int64(*e.Alpha))
			if alpha > 100 {
				alpha = card.AlphaFromLegacy(alpha)
			}
			c.AI.Alpha = alpha
		}
	}
}

func (b *builder) maths(entries []MathEntry) {
	for i, e := range entries {
		c := &b.cards[b.layout.ID(card.FamilyMath, i)]
		c.Math.InputA = b.operand(c.ID, "a", e.A)
		c.Math.InputB = b.operand(c.ID, "b", e.B)
		c.Math.Fallback = b.u32(c.ID, "fallback", int64(e.Fallback))
		if e.ClampMin != nil || e.ClampMax != nil {
			c.Math.ClampMin, c.Math.ClampMax = 0, 0
			if e.ClampMin != nil {
				c.Math.ClampMin = b.u32(c.ID, "clamp_min", int64(*e.ClampMin))
			}
			if e.ClampMax != nil {
				c.Math.ClampMax = b.u32(c.ID, "clamp_max", int64(*e.ClampMax))
			}
		}
		c.Signals = card.SafeSignals(c)
		b.blocks(c, e.Set, e.Reset)
	}
}

func (b *builder) rtcs(entries []RTCEntry) {
	for i, e := range entries {
		c := &b.cards[b.layout.ID(card.FamilyRTC, i)]
		if e.TriggerDuration != nil {
			c.RTC.TriggerDurationMs = b.u32(c.ID, "trigger_duration", int64(*e.TriggerDuration))
		}
	}
}

func (b *builder) schedules(entries []ScheduleEntry) []rtc.Channel {
	out := make([]rtc.Channel, 0, len(entries))
	for _, e := range entries {
		id, err := e.Card.Resolve(b.layout)
		if err != nil && b.err == nil {
			b.err = fmt.Errorf("schedule %d: %w", e.ID, err)
		}
		ch := rtc.Every(e.ID, id)
		if e.Enabled != nil {
			ch.Enabled = *e.Enabled
		}
		ch.Year = orWildcard(e.Year)
		ch.Month = orWildcard(e.Month)
		ch.Day = orWildcard(e.Day)
		ch.Weekday = orWildcard(e.Weekday)
		ch.Hour = orWildcard(e.Hour)
		ch.Minute = orWildcard(e.Minute)
		out = append(out, ch)
	}
	return out
}

func orWildcard(v *int) int {
	if v == nil {
		return rtc.Wildcard
	}
	return *v
}
