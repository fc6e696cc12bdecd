package rules

import (
	"github.com/calverley/cecd/internal/cec"
	"github.com/calverley/cecd/internal/engine"
)

// VolumeRamp returns the one-shot sequence that reads the current
// audio volume and steps it to target. Bounded by the VolumeBudget
// deadline. Ramps share one name, so only one volume adjustment runs
// at a time.
func (r *Rules) VolumeRamp(target uint8) engine.Sequence {
	return engine.WithDeadline(&volumeRamp{r: r, target: target}, r.tuning.VolumeBudget, r.now)
}

// volumeRamp queries the audio status once, then converts the distance
// to the target level into key press/release pairs.
type volumeRamp struct {
	r       *Rules
	target  uint8
	started bool
}

func (s *volumeRamp) Name() string { return "volume-ramp" }

func (s *volumeRamp) Step(f *cec.Frame) ([]cec.Frame, engine.Signal, error) {
	d := s.r.devices

	if !s.started {
		s.started = true
		return []cec.Frame{cec.QueryAudioStatus(d.Local, d.Soundbar)}, engine.Continue, nil
	}

	if f == nil || !f.From(d.Soundbar, cec.OpReportAudioStatus) {
		return nil, engine.Continue, nil
	}
	current, ok := f.AudioVolume()
	if !ok {
		return nil, engine.Continue, nil
	}

	s.r.logger.Info("ramping volume", "current", current, "target", s.target)
	return rampFrames(d.Local, d.Soundbar, current, s.target, s.r.volume.Step), engine.Terminate, nil
}

// rampFrames builds the press/release pairs stepping the volume from
// current to target. Ceiling division: a remainder short of a full
// step still takes one press.
func rampFrames(from, to cec.LogicalAddr, current, target, step uint8) []cec.Frame {
	if step == 0 {
		step = 1
	}

	var key cec.UserControl
	var delta int
	switch {
	case target > current:
		key = cec.KeyVolumeUp
		delta = int(target) - int(current)
	case current > target:
		key = cec.KeyVolumeDown
		delta = int(current) - int(target)
	default:
		return nil
	}

	presses := (delta + int(step) - 1) / int(step)
	outs := make([]cec.Frame, 0, presses*2)
	for i := 0; i < presses; i++ {
		outs = append(outs, cec.KeyPress(from, to, key), cec.KeyRelease(from, to))
	}
	return outs
}
