package rules

import (
	"testing"
	"time"

	"github.com/calverley/cecd/internal/cec"
)

func TestVolumeRamp(t *testing.T) {
	t.Run("queries audio status on start", func(t *testing.T) {
		h := newHarness(t, QuietHours{})

		h.d.AddSequence(h.rules.VolumeRamp(40))

		wantSent(t, h.bus, "15:71")
		wantLive(t, h.d, "volume-ramp")
	})

	t.Run("ramps up to the target", func(t *testing.T) {
		h := newHarness(t, QuietHours{})
		h.d.AddSequence(h.rules.VolumeRamp(40))
		h.bus.Reset()

		h.bus.Inject("51:7A:1E")

		wantSent(t, h.bus,
			"15:44:41", "15:45",
			"15:44:41", "15:45",
			"15:44:41", "15:45",
			"15:44:41", "15:45",
			"15:44:41", "15:45",
		)
		wantLive(t, h.d)
	})

	t.Run("ramps down to the target", func(t *testing.T) {
		h := newHarness(t, QuietHours{})
		h.d.AddSequence(h.rules.VolumeRamp(20))
		h.bus.Reset()

		h.bus.Inject("51:7A:1E")

		wantSent(t, h.bus,
			"15:44:42", "15:45",
			"15:44:42", "15:45",
			"15:44:42", "15:45",
			"15:44:42", "15:45",
			"15:44:42", "15:45",
		)
		wantLive(t, h.d)
	})

	t.Run("already at target transmits nothing", func(t *testing.T) {
		h := newHarness(t, QuietHours{})
		h.d.AddSequence(h.rules.VolumeRamp(30))
		h.bus.Reset()

		h.bus.Inject("51:7A:1E")

		wantSent(t, h.bus)
		wantLive(t, h.d)
	})

	t.Run("mute bit is ignored when reading the level", func(t *testing.T) {
		h := newHarness(t, QuietHours{})
		h.d.AddSequence(h.rules.VolumeRamp(30))
		h.bus.Reset()

		h.bus.Inject("51:7A:9E")

		wantSent(t, h.bus)
		wantLive(t, h.d)
	})

	t.Run("ignores unrelated frames", func(t *testing.T) {
		h := newHarness(t, QuietHours{})
		h.d.AddSequence(h.rules.VolumeRamp(40))

		h.bus.Inject("01:90:00")
		h.bus.Inject("51:90:00")

		wantLive(t, h.d, "volume-ramp")
	})

	t.Run("expires silently when nothing answers", func(t *testing.T) {
		h := newHarness(t, QuietHours{})
		h.d.AddSequence(h.rules.VolumeRamp(40))
		h.bus.Reset()

		h.clock.Advance(61 * time.Second)
		h.d.Tick()

		wantSent(t, h.bus)
		wantLive(t, h.d)
	})

	t.Run("only one ramp runs at a time", func(t *testing.T) {
		h := newHarness(t, QuietHours{})

		if !h.d.AddSequence(h.rules.VolumeRamp(40)) {
			t.Fatal("first ramp rejected")
		}
		if h.d.AddSequence(h.rules.VolumeRamp(20)) {
			t.Fatal("second ramp accepted while the first is live")
		}
		wantLive(t, h.d, "volume-ramp")
	})
}

func TestRampFrames(t *testing.T) {
	tests := []struct {
		name    string
		current uint8
		target  uint8
		step    uint8
		wantKey cec.UserControl
		presses int
	}{
		{name: "up exact steps", current: 30, target: 40, step: 2, wantKey: cec.KeyVolumeUp, presses: 5},
		{name: "down exact steps", current: 40, target: 30, step: 2, wantKey: cec.KeyVolumeDown, presses: 5},
		{name: "remainder rounds up", current: 30, target: 35, step: 2, wantKey: cec.KeyVolumeUp, presses: 3},
		{name: "step larger than delta", current: 30, target: 33, step: 10, wantKey: cec.KeyVolumeUp, presses: 1},
		{name: "zero step treated as one", current: 30, target: 33, step: 0, wantKey: cec.KeyVolumeUp, presses: 3},
		{name: "no distance", current: 30, target: 30, step: 2, presses: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rampFrames(cec.AddrRecorder1, cec.AddrAudioSystem, tt.current, tt.target, tt.step)

			if len(got) != tt.presses*2 {
				t.Fatalf("rampFrames returned %d frames, want %d", len(got), tt.presses*2)
			}
			for i := 0; i < len(got); i += 2 {
				press, release := got[i], got[i+1]
				if press.Opcode != cec.OpUserControlPressed || press.Params[0] != byte(tt.wantKey) {
					t.Fatalf("frame %d = %s, want key press %#02x", i, press.String(), byte(tt.wantKey))
				}
				if release.Opcode != cec.OpUserControlReleased {
					t.Fatalf("frame %d = %s, want key release", i+1, release.String())
				}
			}
		})
	}
}
