package engine

import (
	"time"

	"github.com/calverley/cecd/internal/cec"
)

// WithDeadline bounds the wall-clock lifetime of a sequence.
//
// The wrapper records the time of its first resumption. Before
// forwarding any later input it checks the elapsed time; once the
// budget is exceeded the inner sequence is abandoned and the wrapper
// terminates silently, transmitting nothing. Composition is
// transparent: the dispatcher sees an ordinary Sequence, and wrappers
// nest.
//
// The wrapper reports the inner sequence's name so duplicate
// suppression treats wrapped and unwrapped instances as the same rule.
func WithDeadline(s Sequence, max time.Duration, now Clock) Sequence {
	if now == nil {
		now = time.Now
	}
	return &deadlineSequence{name: s.Name(), inner: s, max: max, now: now}
}

type deadlineSequence struct {
	name    string
	inner   Sequence
	max     time.Duration
	now     Clock
	started time.Time
}

func (d *deadlineSequence) Name() string {
	return d.name
}

func (d *deadlineSequence) Step(f *cec.Frame) ([]cec.Frame, Signal, error) {
	if d.started.IsZero() {
		d.started = d.now()
		return d.inner.Step(f)
	}
	if d.now().Sub(d.started) > d.max {
		d.inner = nil
		return nil, Terminate, nil
	}
	return d.inner.Step(f)
}
