package control

import "errors"

// Errors returned by the control package.
//
// Submit-time errors mean the command never reached the queue. Apply-time
// errors are delivered through Command.Result and leave engine state
// untouched.
var (
	// ErrUnknownCommand is returned for an unknown command kind.
	ErrUnknownCommand = errors.New("control: unknown command")

	// ErrMissingKind is returned by DecodeCommand when the payload names no
	// kind. The zero kind is SET_RUN_MODE, so it must never be implied.
	ErrMissingKind = errors.New("control: command kind is required")

	// ErrInvalidTarget is returned when a command addresses a card that does
	// not exist or whose family does not support the operation.
	ErrInvalidTarget = errors.New("control: invalid target card")

	// ErrInvalidArgument is returned for a bad mode token or force mode.
	ErrInvalidArgument = errors.New("control: invalid argument")

	// ErrQueueFull is returned when the command queue is at capacity.
	ErrQueueFull = errors.New("control: queue full")

	// ErrTestModeInactive is returned when a force or mask is applied outside
	// test mode.
	ErrTestModeInactive = errors.New("control: test mode inactive")

	// ErrPauseTimeout is returned when the engine does not acknowledge a
	// config-apply pause in time. The previous configuration stays active.
	ErrPauseTimeout = errors.New("control: engine pause timeout")
)
