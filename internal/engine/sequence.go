package engine

import (
	"time"

	"github.com/calverley/cecd/internal/cec"
)

// Clock returns the current wall-clock time. Rules and wrappers take
// a Clock so tests can drive time explicitly; nil means time.Now.
type Clock func() time.Time

// Signal tells the dispatcher whether a sequence wants to keep
// receiving events.
type Signal int

const (
	// Continue keeps the sequence in the live set.
	Continue Signal = iota

	// Terminate removes the sequence once its final outputs are sent.
	Terminate
)

// String returns "continue" or "terminate".
func (s Signal) String() string {
	if s == Terminate {
		return "terminate"
	}
	return "continue"
}

// Sequence is a resumable automation rule.
//
// The dispatcher resumes a sequence by calling Step once per inbound
// event. A nil frame is a resumption with no event: the initial
// resumption at registration time, or a synthetic timer tick. Step
// returns the frames to transmit, in order, and a Signal; returning a
// non-nil error marks the sequence faulted, which removes it without
// transmitting anything from that resumption.
//
// Step must not block. The dispatcher is single-threaded and an event
// is processed fully before the next is considered; a sequence that
// waits for a reply does so by returning Continue with no outputs
// until a frame matches its predicate. Time-based logic belongs
// inside Step and re-evaluates on every resumption, whatever carried
// it there.
//
// Name identifies the rule in logs and for duplicate suppression: the
// dispatcher refuses a second live sequence with the same name.
type Sequence interface {
	Name() string
	Step(f *cec.Frame) ([]cec.Frame, Signal, error)
}
