package card

import "errors"

// Domain errors for the card package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, card.ErrInvalidConfig) {
//	    // reject the configuration
//	}
var (
	// ErrInvalidConfig is returned when a card array fails validation.
	ErrInvalidConfig = errors.New("card: invalid configuration")

	// ErrInvalidLayout is returned when family counts are negative or empty.
	ErrInvalidLayout = errors.New("card: invalid layout")

	// ErrLayoutMismatch is returned when a card array does not match the
	// controller's fixed layout.
	ErrLayoutMismatch = errors.New("card: layout mismatch")

	// ErrUnknownToken is returned when parsing an unrecognised enum token.
	ErrUnknownToken = errors.New("card: unknown token")
)
