// Package engine schedules automation sequences over a single stream
// of CEC bus events.
//
// # Architecture
//
//	bus adapter ──raw text──▶ Dispatcher ──cec.Frame──▶ observers (passive)
//	                              │
//	                              └─resumptions─▶ live sequences
//	                                                   │
//	                              bus adapter ◀─outputs┘
//
// The dispatcher is single-threaded by construction: one mutex
// serialises inbound events, synthetic ticks, registration and
// shutdown, so an event is fully processed before the next is
// considered. Sequences are cooperative state machines (see Sequence);
// WithDeadline bounds a sequence's wall-clock lifetime without the
// sequence knowing about it.
//
// # Ordering guarantees
//
//   - observers run in registration order
//   - sequences resume in registration order
//   - outputs of one resumption are transmitted in slice order
//   - a child spawned during a resumption transmits its first outputs
//     immediately after the outputs of the resumption that spawned it,
//     and is not resumed again until the next event
//
// # Fault isolation
//
// A sequence that returns an error or panics is logged and removed;
// nothing from the faulted resumption is transmitted and other
// sequences are unaffected. A panicking observer is logged and
// skipped. Malformed bus text is counted, logged and dropped before
// reaching observers or sequences. Transmit failures are logged at
// debug level and never escalate.
package engine
