// Package cardfile reads card configurations from YAML layout files.
//
// A layout file lists cards per family in id order, using token names for
// enums and family references ("DI0", "ai1") or plain ids for condition and
// operand sources. Durations accept either an integer millisecond count or a
// Go duration string ("250ms", "1m30s"). Settings a file omits keep the
// factory profile of card.DefaultCards.
//
//	di:
//	  - channel: 0
//	    debounce: 50ms
//	do:
//	  - mode: normal
//	    active: 2s
//	    set: {a: {source: DI0, op: logical_true}}
//	rtc:
//	  - trigger_duration: 1m
//	schedules:
//	  - {id: 0, card: RTC0, hour: 7, minute: 30}
package cardfile

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/card"
)

// File is the YAML document.
type File struct {
	// Layout is optional. When present it must match the section lengths.
	Layout *card.Layout `yaml:"layout"`

	DI        []DIEntry       `yaml:"di" validate:"dive"`
	DO        []OutputEntry   `yaml:"do" validate:"dive"`
	AI        []AIEntry       `yaml:"ai" validate:"dive"`
	SIO       []OutputEntry   `yaml:"sio" validate:"dive"`
	Math      []MathEntry     `yaml:"math" validate:"dive"`
	RTC       []RTCEntry      `yaml:"rtc" validate:"dive"`
	Schedules []ScheduleEntry `yaml:"schedules" validate:"dive"`
}

// DIEntry describes a digital input card.
type DIEntry struct {
	Channel  *int          `yaml:"channel" validate:"omitempty,gte=-1"`
	Invert   bool          `yaml:"invert"`
	Debounce *Millis       `yaml:"debounce"`
	Edge     card.EdgeMode `yaml:"edge"`
	Set      *Block        `yaml:"set"`
	Reset    *Block        `yaml:"reset"`
}

// OutputEntry describes a DO or SIO card.
type OutputEntry struct {
	Channel *int            `yaml:"channel" validate:"omitempty,gte=-1"`
	Invert  bool            `yaml:"invert"`
	Mode    card.OutputMode `yaml:"mode"`
	OnDelay Millis          `yaml:"on_delay"`
	Active  Millis          `yaml:"active"`
	Repeat  *int            `yaml:"repeat" validate:"omitempty,gte=0"`
	Set     *Block          `yaml:"set"`
	Reset   *Block          `yaml:"reset"`
}

// AIEntry describes an analog input card.
type AIEntry struct {
	Channel   *int `yaml:"channel" validate:"omitempty,gte=-1"`
	InputMin  int  `yaml:"input_min" validate:"gte=0"`
	InputMax  *int `yaml:"input_max" validate:"omitempty,gte=0"`
	OutputMin int  `yaml:"output_min" validate:"gte=0"`
	OutputMax *int `yaml:"output_max" validate:"omitempty,gte=0"`
	// Alpha is the EMA weight in percent. Values above 100 are read as the
	// legacy 0..1000 scale.
	Alpha *int `yaml:"alpha" validate:"omitempty,gte=0,lte=1000"`
}

// MathEntry describes a math card.
type MathEntry struct {
	A        Operand `yaml:"a"`
	B        Operand `yaml:"b"`
	ClampMin *int    `yaml:"clamp_min" validate:"omitempty,gte=0"`
	ClampMax *int    `yaml:"clamp_max" validate:"omitempty,gte=0"`
	Fallback int     `yaml:"fallback" validate:"gte=0"`
	Set      *Block  `yaml:"set"`
	Reset    *Block  `yaml:"reset"`
}

// RTCEntry describes an RTC card.
type RTCEntry struct {
	TriggerDuration *Millis `yaml:"trigger_duration"`
}

// ScheduleEntry describes an RTC schedule channel. Omitted calendar fields
// are wildcards.
type ScheduleEntry struct {
	ID      int   `yaml:"id" validate:"gte=0"`
	Card    Ref   `yaml:"card" validate:"required"`
	Enabled *bool `yaml:"enabled"`
	Year    *int  `yaml:"year" validate:"omitempty,gte=1970,lte=9999"`
	Month   *int  `yaml:"month" validate:"omitempty,gte=1,lte=12"`
	Day     *int  `yaml:"day" validate:"omitempty,gte=1,lte=31"`
	Weekday *int  `yaml:"weekday" validate:"omitempty,gte=0,lte=6"`
	Hour    *int  `yaml:"hour" validate:"omitempty,gte=0,lte=23"`
	Minute  *int  `yaml:"minute" validate:"omitempty,gte=0,lte=59"`
}

// Block is a Set or Reset condition.
type Block struct {
	A        *Clause       `yaml:"a" validate:"required"`
	B        *Clause       `yaml:"b"`
	Combiner card.Combiner `yaml:"combiner"`
}

// Clause is one condition test. Source may be omitted for ALWAYS_TRUE and
// ALWAYS_FALSE.
type Clause struct {
	Source    Ref            `yaml:"source"`
	Op        *card.Operator `yaml:"op" validate:"required"`
	Threshold int64          `yaml:"threshold" validate:"gte=0"`
}

// Operand is a math input: a constant value or a source card.
type Operand struct {
	Source Ref   `yaml:"source"`
	Value  int64 `yaml:"value" validate:"gte=0"`
}

// Ref names a card either by id ("12") or by family and index ("DI0").
// The empty Ref names no card.
type Ref string

// Resolve returns the card id Ref names in layout.
func (r Ref) Resolve(layout card.Layout) (int, error) {
	s := strings.TrimSpace(string(r))
	if s == "" {
		return 0, fmt.Errorf("%w: empty card reference", ErrInvalidFile)
	}
	if id, err := strconv.Atoi(s); err == nil {
		if !layout.Contains(id) {
			return 0, fmt.Errorf("%w: card id %d out of range", ErrInvalidFile, id)
		}
		return id, nil
	}

	split := strings.IndexFunc(s, func(c rune) bool { return c >= '0' && c <= '9' })
	if split <= 0 {
		return 0, fmt.Errorf("%w: bad card reference %q", ErrInvalidFile, s)
	}
	var f card.Family
	if err := f.UnmarshalText([]byte(s[:split])); err != nil {
		return 0, fmt.Errorf("%w: bad card reference %q: %w", ErrInvalidFile, s, err)
	}
	idx, err := strconv.Atoi(s[split:])
	if err != nil || idx >= layout.Count(f) {
		return 0, fmt.Errorf("%w: card reference %q out of range", ErrInvalidFile, s)
	}
	return layout.ID(f, idx), nil
}

// UnmarshalYAML accepts any scalar, so ids may be written unquoted.
func (r *Ref) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d: card reference must be a scalar", ErrInvalidFile, n.Line)
	}
	*r = Ref(n.Value)
	return nil
}

// Millis is a duration in milliseconds.
type Millis int64

// UnmarshalYAML accepts an integer millisecond count or a duration string.
func (m *Millis) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode && n.Tag == "!!str" {
		d, err := time.ParseDuration(strings.TrimSpace(n.Value))
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		*m = Millis(d.Milliseconds())
		return nil
	}
	return n.Decode((*int64)(m))
}
