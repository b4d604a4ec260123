package control

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/card"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/scan"
)

// CommandKind identifies a control intent.
type CommandKind uint8

const (
	CmdSetRunMode CommandKind = iota
	CmdStepOnce
	CmdSetBreakpoint
	CmdSetTestMode
	CmdSetInputForce
	CmdSetOutputMask
	CmdSetOutputMaskGlobal
	CmdSetRTCCardState
)

var commandNames = [...]string{
	"SET_RUN_MODE", "STEP_ONCE", "SET_BREAKPOINT", "SET_TEST_MODE",
	"SET_INPUT_FORCE", "SET_OUTPUT_MASK", "SET_OUTPUT_MASK_GLOBAL", "SET_RTC_CARD_STATE",
}

func (k CommandKind) String() string {
	if int(k) < len(commandNames) {
		return commandNames[k]
	}
	return fmt.Sprintf("CommandKind(%d)", k)
}

// MarshalText implements encoding.TextMarshaler.
func (k CommandKind) MarshalText() ([]byte, error) {
	if int(k) >= len(commandNames) {
		return nil, fmt.Errorf("%w: kind %d", ErrUnknownCommand, k)
	}
	return []byte(commandNames[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *CommandKind) UnmarshalText(b []byte) error {
	s := strings.ToUpper(strings.TrimSpace(string(b)))
	for i, n := range commandNames {
		if n == s {
			*k = CommandKind(i) //nolint:gosec // eight entries
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownCommand, string(b))
}

// ForceMode overrides an input sample while test mode is active.
type ForceMode uint8

const (
	// ForceReal reads the hardware.
	ForceReal ForceMode = iota
	// ForceHigh pins a DI sample high.
	ForceHigh
	// ForceLow pins a DI sample low.
	ForceLow
	// ForceValue replaces an AI sample with a fixed value.
	ForceValue
)

var forceNames = [...]string{"REAL", "FORCED_HIGH", "FORCED_LOW", "FORCED_VALUE"}

func (m ForceMode) String() string {
	if int(m) < len(forceNames) {
		return forceNames[m]
	}
	return fmt.Sprintf("ForceMode(%d)", m)
}

// MarshalText implements encoding.TextMarshaler.
func (m ForceMode) MarshalText() ([]byte, error) {
	if int(m) >= len(forceNames) {
		return nil, fmt.Errorf("%w: force mode %d", ErrInvalidArgument, m)
	}
	return []byte(forceNames[m]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *ForceMode) UnmarshalText(b []byte) error {
	s := strings.ToUpper(strings.TrimSpace(string(b)))
	for i, n := range forceNames {
		if n == s {
			*m = ForceMode(i) //nolint:gosec // four entries
			return nil
		}
	}
	return fmt.Errorf("%w: force mode %q", ErrInvalidArgument, string(b))
}

// Command is one control intent crossing from the I/O side into the engine.
//
// Which fields are read depends on Kind:
//   - SET_RUN_MODE: RunMode
//   - SET_BREAKPOINT, SET_OUTPUT_MASK, SET_RTC_CARD_STATE: CardID, Enabled
//   - SET_TEST_MODE, SET_OUTPUT_MASK_GLOBAL: Enabled
//   - SET_INPUT_FORCE: CardID, Force, Value
type Command struct {
	ID      string       `json:"id"`
	Kind    CommandKind  `json:"kind"`
	CardID  int          `json:"card_id"`
	RunMode scan.RunMode `json:"run_mode"`
	Enabled bool         `json:"enabled"`
	Force   ForceMode    `json:"force"`
	Value   uint32       `json:"value"`

	// EnqueuedAt is stamped by Submit.
	EnqueuedAt time.Time `json:"-"`
	// Result, when set, receives the apply outcome. It must be buffered;
	// the engine never blocks on it.
	Result chan<- error `json:"-"`
}

// DecodeCommand reads one JSON command from r.
//
// Parameters:
//   - r: JSON body or MQTT payload
//   - strict: Reject unknown fields (the HTTP API); MQTT peers are lenient
//
// Returns:
//   - Command: Decoded but not yet validated against a layout
//   - error: A decode error, or ErrMissingKind when kind is absent or null
func DecodeCommand(r io.Reader, strict bool) (Command, error) {
	var wire struct {
		Command
		// shadows Command.Kind so an absent kind is detectable
		Kind *CommandKind `json:"kind"`
	}
	dec := json.NewDecoder(r)
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&wire); err != nil {
		return Command{}, err
	}
	if wire.Kind == nil {
		return Command{}, ErrMissingKind
	}
	cmd := wire.Command
	cmd.Kind = *wire.Kind
	return cmd, nil
}

func newCommand(kind CommandKind) Command {
	return Command{ID: uuid.NewString(), Kind: kind}
}

// SetRunMode builds a SET_RUN_MODE command.
func SetRunMode(m scan.RunMode) Command {
	c := newCommand(CmdSetRunMode)
	c.RunMode = m
	return c
}

// StepOnce builds a STEP_ONCE command.
func StepOnce() Command { return newCommand(CmdStepOnce) }

// SetBreakpoint builds a SET_BREAKPOINT command.
func SetBreakpoint(cardID int, enabled bool) Command {
	c := newCommand(CmdSetBreakpoint)
	c.CardID, c.Enabled = cardID, enabled
	return c
}

// SetTestMode builds a SET_TEST_MODE command.
func SetTestMode(active bool) Command {
	c := newCommand(CmdSetTestMode)
	c.Enabled = active
	return c
}

// SetInputForce builds a SET_INPUT_FORCE command.
func SetInputForce(cardID int, mode ForceMode, value uint32) Command {
	c := newCommand(CmdSetInputForce)
	c.CardID, c.Force, c.Value = cardID, mode, value
	return c
}

// SetOutputMask builds a SET_OUTPUT_MASK command.
func SetOutputMask(cardID int, masked bool) Command {
	c := newCommand(CmdSetOutputMask)
	c.CardID, c.Enabled = cardID, masked
	return c
}

// SetOutputMaskGlobal builds a SET_OUTPUT_MASK_GLOBAL command.
func SetOutputMaskGlobal(masked bool) Command {
	c := newCommand(CmdSetOutputMaskGlobal)
	c.Enabled = masked
	return c
}

// SetRTCCardState builds a SET_RTC_CARD_STATE command.
func SetRTCCardState(cardID int, on bool) Command {
	c := newCommand(CmdSetRTCCardState)
	c.CardID, c.Enabled = cardID, on
	return c
}

// Validate checks a command against a layout without touching engine state.
func Validate(cmd Command, layout card.Layout) error {
	switch cmd.Kind {
	case CmdSetRunMode:
		if !cmd.RunMode.Valid() {
			return fmt.Errorf("%w: run mode %d", ErrInvalidArgument, cmd.RunMode)
		}
	case CmdStepOnce, CmdSetTestMode, CmdSetOutputMaskGlobal:
	case CmdSetBreakpoint:
		if !layout.Contains(cmd.CardID) {
			return fmt.Errorf("%w: card %d", ErrInvalidTarget, cmd.CardID)
		}
	case CmdSetInputForce:
		return validateForce(cmd, layout)
	case CmdSetOutputMask:
		return requireFamily(cmd.CardID, layout, card.FamilyDO)
	case CmdSetRTCCardState:
		return requireFamily(cmd.CardID, layout, card.FamilyRTC)
	default:
		return fmt.Errorf("%w: kind %d", ErrUnknownCommand, cmd.Kind)
	}
	return nil
}

// validateForce allows HIGH/LOW on DI, VALUE on AI and REAL on either.
func validateForce(cmd Command, layout card.Layout) error {
	f, ok := layout.FamilyOf(cmd.CardID)
	if !ok {
		return fmt.Errorf("%w: card %d", ErrInvalidTarget, cmd.CardID)
	}
	switch cmd.Force {
	case ForceReal:
		if f == card.FamilyDI || f == card.FamilyAI {
			return nil
		}
	case ForceHigh, ForceLow:
		if f == card.FamilyDI {
			return nil
		}
	case ForceValue:
		if f == card.FamilyAI {
			return nil
		}
	default:
		return fmt.Errorf("%w: force mode %d", ErrInvalidArgument, cmd.Force)
	}
	return fmt.Errorf("%w: %s not allowed on %s card %d", ErrInvalidTarget, cmd.Force, f, cmd.CardID)
}

func requireFamily(id int, layout card.Layout, want card.Family) error {
	f, ok := layout.FamilyOf(id)
	if !ok {
		return fmt.Errorf("%w: card %d", ErrInvalidTarget, id)
	}
	if f != want {
		return fmt.Errorf("%w: card %d is %s, want %s", ErrInvalidTarget, id, f, want)
	}
	return nil
}
