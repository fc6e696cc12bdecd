// Package rules holds the automation sequences the engine schedules:
// long-running monitors for the console and the TV, and the one-shot
// children they spawn to act on the audio system.
//
// # Shape
//
// Every rule is a small state struct implementing engine.Sequence.
// A resumption inspects the input frame (nil for synthetic ticks),
// re-evaluates its timers against the injected clock and returns the
// frames to transmit. Monitors run for the life of the daemon and
// spawn children through the Spawner seam; one-shot children are
// bounded with engine.WithDeadline so an unanswered query cannot leave
// a sequence live forever.
//
// # Catalogue
//
//	console-monitor  polls the games console, marks it offline after
//	                 consecutive unanswered polls, routes the stream
//	                 back to the media dongle and settles the volume
//	audio-follows-tv polls the TV and keeps audio system power in step
//	ensure-audio-on  queries the audio system once and toggles power
//	                 if it reports standby
//	volume-ramp      reads the current volume and steps it to a target
//	                 with key press/release pairs
package rules
