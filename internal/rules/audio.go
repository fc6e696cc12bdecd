package rules

import (
	"time"

	"github.com/calverley/cecd/internal/cec"
	"github.com/calverley/cecd/internal/engine"
)

// EnsureAudioOn returns the one-shot sequence that queries the audio
// system and toggles its power if it reports standby. Bounded by the
// AudioOnBudget deadline.
func (r *Rules) EnsureAudioOn() engine.Sequence {
	return engine.WithDeadline(&ensureAudioOn{r: r}, r.tuning.AudioOnBudget, r.now)
}

// ensureAudioOn is a query-act pair: one power-status query, then one
// decision on the reply. Replies from other devices or with other
// opcodes pass through without effect.
type ensureAudioOn struct {
	r       *Rules
	started bool
}

func (s *ensureAudioOn) Name() string { return "ensure-audio-on" }

func (s *ensureAudioOn) Step(f *cec.Frame) ([]cec.Frame, engine.Signal, error) {
	d := s.r.devices

	if !s.started {
		s.started = true
		return []cec.Frame{cec.QueryPowerStatus(d.Local, d.Soundbar)}, engine.Continue, nil
	}

	if f == nil || !f.From(d.Soundbar, cec.OpReportPowerStatus) {
		return nil, engine.Continue, nil
	}
	status, ok := f.PowerStatus()
	if !ok {
		return nil, engine.Continue, nil
	}

	if powered(status) {
		s.r.logger.Debug("audio system already on")
		return nil, engine.Terminate, nil
	}

	s.r.logger.Info("powering on audio system", "status", status.String())
	outs := []cec.Frame{
		cec.KeyPress(d.Local, d.Soundbar, cec.KeyPower),
		cec.KeyRelease(d.Local, d.Soundbar),
	}
	return outs, engine.Terminate, nil
}

// AudioFollowsTV returns the monitor that keeps audio system power in
// step with the TV. It never terminates on its own.
func (r *Rules) AudioFollowsTV() engine.Sequence {
	return &audioFollowsTV{r: r}
}

// audioFollowsTV polls the TV and reacts to power transitions. The TV
// is assumed off until its first report, so a TV already on at daemon
// start still brings the audio system up.
type audioFollowsTV struct {
	r        *Rules
	started  bool
	tvOn     bool
	lastPoll time.Time
}

func (s *audioFollowsTV) Name() string { return "audio-follows-tv" }

func (s *audioFollowsTV) Step(f *cec.Frame) ([]cec.Frame, engine.Signal, error) {
	d := s.r.devices

	if !s.started {
		s.started = true
		s.lastPoll = s.r.now()
		return []cec.Frame{cec.QueryPowerStatus(d.Local, d.TV)}, engine.Continue, nil
	}

	var outs []cec.Frame

	if f != nil && f.From(d.TV, cec.OpReportPowerStatus) {
		if status, ok := f.PowerStatus(); ok {
			on := powered(status)
			switch {
			case on && !s.tvOn:
				s.tvOn = true
				s.r.logger.Info("tv switched on, bringing audio system up")
				s.r.spawner.Spawn(s.r.EnsureAudioOn())
			case !on && s.tvOn:
				s.tvOn = false
				s.r.logger.Info("tv switched off, sending audio system to standby")
				outs = append(outs, cec.Standby(d.Local, d.Soundbar))
			}
		}
	}

	if s.r.now().Sub(s.lastPoll) >= s.r.tuning.TVPoll {
		s.lastPoll = s.r.now()
		outs = append(outs, cec.QueryPowerStatus(d.Local, d.TV))
	}

	return outs, engine.Continue, nil
}
