package card

// VirtualChannel marks a card that is not bound to a hardware channel.
const VirtualChannel = -1

// NoSource marks a MATH operand that uses its constant value instead of
// reading another card.
const NoSource = -1

// Family identifies one of the six card kinds.
type Family uint8

const (
	FamilyDI Family = iota
	FamilyDO
	FamilyAI
	FamilySIO
	FamilyMath
	FamilyRTC

	// FamilyCount is the number of card families.
	FamilyCount = 6
)

var familyNames = []string{"DI", "DO", "AI", "SIO", "MATH", "RTC"}

// AllFamilies returns the families in id order.
func AllFamilies() []Family {
	return []Family{FamilyDI, FamilyDO, FamilyAI, FamilySIO, FamilyMath, FamilyRTC}
}

func (f Family) String() string { return tokenName(familyNames, uint8(f)) }

// Valid reports whether f is a known family.
func (f Family) Valid() bool { return int(f) < FamilyCount }

// MarshalText implements encoding.TextMarshaler.
func (f Family) MarshalText() ([]byte, error) { return marshalToken("family", familyNames, uint8(f)) }

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Family) UnmarshalText(b []byte) error { return unmarshalToken("family", familyNames, b, (*uint8)(f)) }

// IsMission reports whether the family runs the DO-style mission state
// machine (DO and SIO).
func (f Family) IsMission() bool { return f == FamilyDO || f == FamilySIO }

// HasBooleans reports whether the family carries meaningful boolean signals
// (logical, physical, trigger).
func (f Family) HasBooleans() bool { return f != FamilyAI && f.Valid() }

// HasNumeric reports whether the family carries a meaningful CurrentValue.
func (f Family) HasNumeric() bool { return f != FamilyRTC && f.Valid() }

// State is the family-specific runtime state of a card.
type State uint8

const (
	StateNone State = iota
	StateIdle
	StateFiltering
	StateQualified
	StateInhibited
	StateOnDelay
	StateActive
	StateFinished
	StateStreaming
)

var stateNames = []string{
	"NONE", "IDLE", "FILTERING", "QUALIFIED", "INHIBITED",
	"ON_DELAY", "ACTIVE", "FINISHED", "STREAMING",
}

func (s State) String() string { return tokenName(stateNames, uint8(s)) }

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) { return marshalToken("state", stateNames, uint8(s)) }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error { return unmarshalToken("state", stateNames, b, (*uint8)(s)) }

// Running reports whether a mission is in progress.
func (s State) Running() bool { return s == StateOnDelay || s == StateActive }

// EdgeMode selects which input transitions a DI counts.
type EdgeMode uint8

const (
	EdgeRising EdgeMode = iota
	EdgeFalling
	EdgeChange
)

var edgeNames = []string{"RISING", "FALLING", "CHANGE"}

func (e EdgeMode) String() string { return tokenName(edgeNames, uint8(e)) }

// Valid reports whether e is a known edge mode.
func (e EdgeMode) Valid() bool { return int(e) < len(edgeNames) }

// MarshalText implements encoding.TextMarshaler.
func (e EdgeMode) MarshalText() ([]byte, error) { return marshalToken("edge mode", edgeNames, uint8(e)) }

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *EdgeMode) UnmarshalText(b []byte) error { return unmarshalToken("edge mode", edgeNames, b, (*uint8)(e)) }

// OutputMode selects how a DO/SIO mission reacts to its Set condition.
type OutputMode uint8

const (
	// ModeNormal waits OnDelayMs before going active.
	ModeNormal OutputMode = iota
	// ModeImmediate skips the on-delay.
	ModeImmediate
	// ModeGated aborts a running mission as soon as Set drops.
	ModeGated
)

var outputModeNames = []string{"NORMAL", "IMMEDIATE", "GATED"}

func (m OutputMode) String() string { return tokenName(outputModeNames, uint8(m)) }

// Valid reports whether m is a known output mode.
func (m OutputMode) Valid() bool { return int(m) < len(outputModeNames) }

// MarshalText implements encoding.TextMarshaler.
func (m OutputMode) MarshalText() ([]byte, error) {
	return marshalToken("output mode", outputModeNames, uint8(m))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *OutputMode) UnmarshalText(b []byte) error {
	return unmarshalToken("output mode", outputModeNames, b, (*uint8)(m))
}

// Signals holds the runtime values of a card.
//
// Timing fields are family-specific:
//   - DI: StartOnMs is the time of the last qualifying edge
//   - DO/SIO: StartOnMs is the on-delay start, StartOffMs the active-window start
//   - RTC: StartOnMs is the trigger start
type Signals struct {
	LogicalState  bool   `json:"logical_state"`
	PhysicalState bool   `json:"physical_state"`
	TriggerFlag   bool   `json:"trigger_flag"`
	CurrentValue  uint32 `json:"current_value"`
	State         State  `json:"state"`
	StartOnMs     uint32 `json:"start_on_ms"`
	StartOffMs    uint32 `json:"start_off_ms"`
	RepeatCounter uint32 `json:"repeat_counter"`
}

// DISettings configures a digital input.
type DISettings struct {
	DebounceMs uint32   `json:"debounce_ms" yaml:"debounce_ms"`
	EdgeMode   EdgeMode `json:"edge_mode" yaml:"edge_mode"`
}

// OutputSettings configures a DO or SIO mission.
type OutputSettings struct {
	Mode        OutputMode `json:"mode" yaml:"mode"`
	OnDelayMs   uint32     `json:"on_delay_ms" yaml:"on_delay_ms"`
	ActiveMs    uint32     `json:"active_ms" yaml:"active_ms"`
	RepeatCount uint32     `json:"repeat_count" yaml:"repeat_count"`
}

// AISettings configures an analog input. Alpha is the EMA weight in percent
// (0..100); 100 disables smoothing.
type AISettings struct {
	InputMin  uint32 `json:"input_min" yaml:"input_min"`
	InputMax  uint32 `json:"input_max" yaml:"input_max"`
	OutputMin uint32 `json:"output_min" yaml:"output_min"`
	OutputMax uint32 `json:"output_max" yaml:"output_max"`
	Alpha     uint32 `json:"alpha" yaml:"alpha"`
}

// Operand is one MATH input: either a constant or another card's CurrentValue.
type Operand struct {
	Source int    `json:"source" yaml:"source"`
	Value  uint32 `json:"value" yaml:"value"`
}

// Const returns an operand holding a constant value.
func Const(v uint32) Operand { return Operand{Source: NoSource, Value: v} }

// MathSettings configures a math block. Clamping is enabled iff
// ClampMax >= ClampMin.
type MathSettings struct {
	InputA   Operand `json:"input_a" yaml:"input_a"`
	InputB   Operand `json:"input_b" yaml:"input_b"`
	ClampMin uint32  `json:"clamp_min" yaml:"clamp_min"`
	ClampMax uint32  `json:"clamp_max" yaml:"clamp_max"`
	Fallback uint32  `json:"fallback" yaml:"fallback"`
}

// ClampEnabled reports whether the clamp bounds are active.
func (m MathSettings) ClampEnabled() bool { return m.ClampMax >= m.ClampMin }

// RTCSettings configures an RTC card.
type RTCSettings struct {
	TriggerDurationMs uint32 `json:"trigger_duration_ms" yaml:"trigger_duration_ms"`
}

// Card is one automation unit: identity, configuration and the runtime
// signal mirror.
//
// Only the settings struct matching Family is meaningful; the others stay
// zero. Signals is written by the runtime store after every engine step and
// is never part of the configuration contract.
type Card struct {
	ID      int            `json:"id"`
	Family  Family         `json:"family"`
	Index   int            `json:"index"`
	Channel int            `json:"channel"`
	Invert  bool           `json:"invert"`
	Set     ConditionBlock `json:"set"`
	Reset   ConditionBlock `json:"reset"`

	DI     DISettings     `json:"di"`
	Output OutputSettings `json:"output"`
	AI     AISettings     `json:"ai"`
	Math   MathSettings   `json:"math"`
	RTC    RTCSettings    `json:"rtc"`

	Signals Signals `json:"signals"`
}

// Virtual reports whether the card has no hardware channel.
func (c *Card) Virtual() bool { return c.Channel < 0 }

// CloneCards returns an independent copy of a card array. Cards hold no
// pointers, so a slice copy is a deep copy.
func CloneCards(cards []Card) []Card {
	if cards == nil {
		return nil
	}
	cpy := make([]Card, len(cards))
	copy(cpy, cards)
	return cpy
}
