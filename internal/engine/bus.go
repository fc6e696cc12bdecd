package engine

import (
	"context"

	"github.com/calverley/cecd/internal/cec"
)

// Bus is the adapter boundary to the physical CEC bus.
//
// Implementations deliver inbound traffic as raw frame text through
// the callback registered by Start; the dispatcher owns parsing, so
// adapters stay byte-shovels. Callbacks must return promptly and must
// be invoked from at most one goroutine.
type Bus interface {
	// Start opens the adapter and wires the receive callback.
	// An error here is fatal to bootstrap: without a bus there is
	// nothing to schedule.
	Start(ctx context.Context, onFrame func(raw string)) error

	// Transmit sends one frame. Errors are expected operational
	// failures (bus busy, device vanished) and are never fatal.
	Transmit(f cec.Frame) error

	// Close releases the adapter. Implementations make it idempotent.
	Close() error
}

// Observer is a passive callback invoked with every successfully
// parsed inbound frame. Observers cannot transmit through their
// return value and never see synthetic ticks.
type Observer func(f cec.Frame)
