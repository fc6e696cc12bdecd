package rules

import (
	"time"

	"github.com/calverley/cecd/internal/cec"
	"github.com/calverley/cecd/internal/engine"
)

// ConsoleMonitor returns the monitor that watches the games console
// and hands the stream back to the media dongle when it disappears.
// It never terminates on its own.
func (r *Rules) ConsoleMonitor() engine.Sequence {
	return &consoleMonitor{r: r}
}

// consoleMonitor tracks console liveness with polled power-status
// queries. A query unanswered within the response window counts as a
// miss; consecutive misses past the threshold declare the console
// offline. Any reply resets the count.
//
// While the console is believed off no polls are sent; an active
// source announcement is what brings it back.
type consoleMonitor struct {
	r         *Rules
	started   bool
	consoleOn bool
	awaiting  bool
	lastQuery time.Time
	lastPoll  time.Time
	misses    int
}

func (s *consoleMonitor) Name() string { return "console-monitor" }

func (s *consoleMonitor) Step(f *cec.Frame) ([]cec.Frame, engine.Signal, error) {
	d := s.r.devices
	now := s.r.now()

	if !s.started {
		s.started = true
		s.awaiting = true
		s.lastQuery = now
		s.lastPoll = now
		return []cec.Frame{cec.QueryPowerStatus(d.Local, d.Console)}, engine.Continue, nil
	}

	var outs []cec.Frame

	if f != nil {
		outs = append(outs, s.handleFrame(f)...)
	}

	if s.awaiting && now.Sub(s.lastQuery) > s.r.tuning.ResponseWindow {
		s.awaiting = false
		s.misses++
		s.r.logger.Debug("console poll unanswered", "misses", s.misses)
		if s.consoleOn && s.misses >= s.r.tuning.OfflineThreshold {
			outs = append(outs, s.goOffline()...)
		}
	}

	if s.consoleOn && !s.awaiting && now.Sub(s.lastPoll) >= s.r.tuning.ConsolePoll {
		s.awaiting = true
		s.lastQuery = now
		s.lastPoll = now
		outs = append(outs, cec.QueryPowerStatus(d.Local, d.Console))
	}

	return outs, engine.Continue, nil
}

// handleFrame applies one inbound frame to the monitor's state.
func (s *consoleMonitor) handleFrame(f *cec.Frame) []cec.Frame {
	d := s.r.devices

	switch {
	case f.From(d.Console, cec.OpReportPowerStatus):
		s.awaiting = false
		s.misses = 0
		status, ok := f.PowerStatus()
		if !ok {
			return nil
		}
		if powered(status) {
			// A power report alone flips the belief without the
			// switch-on actions; those ride on the active source
			// announcement.
			if !s.consoleOn {
				s.r.logger.Info("console is on")
				s.consoleOn = true
				s.lastPoll = s.r.now()
			}
			return nil
		}
		if s.consoleOn {
			s.r.logger.Info("console reported standby")
			return s.goOffline()
		}
		return nil

	case f.From(d.Console, cec.OpActiveSource):
		s.awaiting = false
		s.misses = 0
		if !s.consoleOn {
			s.goOnline()
		}
		return nil

	case f.From(d.Console, cec.OpStandby):
		// Backup detection; the poll cycle is the primary signal.
		if s.consoleOn {
			s.r.logger.Info("console broadcast standby")
			return s.goOffline()
		}
		return nil
	}

	return nil
}

// goOnline marks the console on and spawns the switch-on children:
// audio power first, then the volume ramp to the active level.
func (s *consoleMonitor) goOnline() {
	s.consoleOn = true
	s.lastPoll = s.r.now()
	s.r.logger.Info("console came online", "volume", s.r.volume.Active)
	s.r.spawner.Spawn(s.r.EnsureAudioOn())
	s.r.spawner.Spawn(s.r.VolumeRamp(s.r.volume.Active))
}

// goOffline routes the stream back to the dongle, settles the volume
// and, inside quiet hours, puts the TV on standby.
func (s *consoleMonitor) goOffline() []cec.Frame {
	d := s.r.devices

	s.consoleOn = false
	s.awaiting = false
	s.misses = 0
	s.r.logger.Info("console went offline", "stream_path", d.DonglePath.String())

	outs := []cec.Frame{cec.SetStreamPath(d.Local, d.DonglePath)}
	s.r.spawner.Spawn(s.r.VolumeRamp(s.r.volume.Idle))

	if s.r.quiet.Contains(s.r.now()) {
		s.r.logger.Info("quiet hours, sending tv to standby")
		outs = append(outs, cec.Standby(d.Local, d.TV))
	}
	return outs
}
