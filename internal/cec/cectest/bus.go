// Package cectest provides an in-memory bus adapter for tests.
//
// Several packages (engine, rules, daemon) exercise dispatch logic
// against recorded bus traffic; sharing one mock keeps their tests
// consistent with each other and with the adapter contract.
package cectest

import (
	"context"
	"errors"

	"github.com/calverley/cecd/internal/cec"
)

// Bus records transmitted frames in wire-text form and lets tests
// inject inbound traffic through the registered receive callback.
//
// Tests drive it from a single goroutine; it has no internal locking.
type Bus struct {
	// FailStart makes Start return an error.
	FailStart bool

	// FailSend makes Transmit return an error.
	FailSend bool

	onFrame func(raw string)
	sent    []string
	started bool
	closed  bool
}

// Start records the receive callback.
func (b *Bus) Start(_ context.Context, onFrame func(raw string)) error {
	if b.FailStart {
		return errors.New("cectest: start failed")
	}
	b.onFrame = onFrame
	b.started = true
	return nil
}

// Transmit appends the frame's wire text to the transmit log.
func (b *Bus) Transmit(f cec.Frame) error {
	if b.FailSend {
		return errors.New("cectest: transmit failed")
	}
	b.sent = append(b.sent, f.String())
	return nil
}

// Close marks the bus closed.
func (b *Bus) Close() error {
	b.closed = true
	return nil
}

// Inject delivers raw frame text to the receive callback, as the real
// adapter does for bus traffic. Injecting before Start is a no-op.
func (b *Bus) Inject(raw string) {
	if b.onFrame != nil {
		b.onFrame(raw)
	}
}

// Sent returns a copy of the transmitted wire text, in transmit order.
func (b *Bus) Sent() []string {
	out := make([]string, len(b.sent))
	copy(out, b.sent)
	return out
}

// Reset clears the transmit log. Staged tests use it to assert on one
// phase at a time.
func (b *Bus) Reset() {
	b.sent = nil
}

// Started reports whether Start succeeded.
func (b *Bus) Started() bool {
	return b.started
}

// Closed reports whether Close was called.
func (b *Bus) Closed() bool {
	return b.closed
}
