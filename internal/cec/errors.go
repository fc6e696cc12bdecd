package cec

import "errors"

// Domain-specific errors for CEC parsing.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrMalformedFrame is returned when frame text cannot be parsed.
	// Malformed traffic is an expected bus condition: callers log and
	// drop, they do not abort.
	ErrMalformedFrame = errors.New("cec: malformed frame")

	// ErrInvalidPhysicalAddress is returned when a physical address
	// string is not a dotted quad of hex nibbles.
	ErrInvalidPhysicalAddress = errors.New("cec: invalid physical address")
)
