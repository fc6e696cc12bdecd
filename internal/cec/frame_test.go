package cec

import (
	"bytes"
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Frame
		wantErr bool
	}{
		{
			name:  "power report with payload",
			input: "01:90:00",
			want: Frame{
				Initiator:   AddrTV,
				Destination: AddrRecorder1,
				Opcode:      OpReportPowerStatus,
				Params:      []byte{0x00},
			},
		},
		{
			name:  "query without params",
			input: "10:8F",
			want: Frame{
				Initiator:   AddrRecorder1,
				Destination: AddrTV,
				Opcode:      OpGiveDevicePowerStatus,
			},
		},
		{
			name:  "broadcast active source",
			input: "4F:82:30:00",
			want: Frame{
				Initiator:   AddrPlayback1,
				Destination: AddrBroadcast,
				Opcode:      OpActiveSource,
				Params:      []byte{0x30, 0x00},
			},
		},
		{
			name:  "lowercase hex",
			input: "4f:82:30:00",
			want: Frame{
				Initiator:   AddrPlayback1,
				Destination: AddrBroadcast,
				Opcode:      OpActiveSource,
				Params:      []byte{0x30, 0x00},
			},
		},
		{
			name:  "single digit groups",
			input: "1:4",
			want: Frame{
				Initiator:   AddrTV,
				Destination: AddrRecorder1,
				Opcode:      OpImageViewOn,
			},
		},
		{
			name:    "header only",
			input:   "10",
			wantErr: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
		{
			name:    "empty group",
			input:   "10::8F",
			wantErr: true,
		},
		{
			name:    "trailing colon",
			input:   "10:8F:",
			wantErr: true,
		},
		{
			name:    "non-hex group",
			input:   "10:ZZ",
			wantErr: true,
		},
		{
			name:    "oversized group",
			input:   "100:8F",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) expected error, got %+v", tt.input, got)
				}
				if !errors.Is(err, ErrMalformedFrame) {
					t.Errorf("Parse(%q) error = %v, want ErrMalformedFrame", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.input, err)
			}
			assertFrameEqual(t, got, tt.want)
		})
	}
}

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
	}{
		{
			name:  "no params",
			frame: Build(AddrRecorder1, AddrTV, OpGiveDevicePowerStatus),
		},
		{
			name:  "one param",
			frame: Build(AddrTV, AddrRecorder1, OpReportPowerStatus, 0x01),
		},
		{
			name:  "broadcast with two params",
			frame: Build(AddrRecorder1, AddrBroadcast, OpSetStreamPath, 0x30, 0x00),
		},
		{
			name:  "key press",
			frame: Build(AddrRecorder1, AddrAudioSystem, OpUserControlPressed, byte(KeyPower)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := tt.frame.String()
			back, err := Parse(text)
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", text, err)
			}
			assertFrameEqual(t, back, tt.frame)
			if again := back.String(); again != text {
				t.Errorf("second format %q differs from first %q", again, text)
			}
		})
	}
}

func TestFrameString(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		want  string
	}{
		{
			name:  "query power status",
			frame: Build(AddrRecorder1, AddrTV, OpGiveDevicePowerStatus),
			want:  "10:8F",
		},
		{
			name:  "report power on",
			frame: Build(AddrTV, AddrRecorder1, OpReportPowerStatus, 0x00),
			want:  "01:90:00",
		},
		{
			name:  "set stream path broadcast",
			frame: Build(AddrRecorder1, AddrBroadcast, OpSetStreamPath, 0x30, 0x00),
			want:  "1F:86:30:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.frame.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFrameFrom(t *testing.T) {
	report, err := Parse("01:90:00")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if !report.From(AddrTV, OpReportPowerStatus) {
		t.Error("expected frame to match its own initiator and opcode")
	}
	if report.From(AddrPlayback1, OpReportPowerStatus) {
		t.Error("initiator mismatch should not match")
	}
	if report.From(AddrTV, OpActiveSource) {
		t.Error("opcode mismatch should not match")
	}

	active, err := Parse("4F:82:30:00")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if active.From(AddrTV, OpReportPowerStatus) {
		t.Error("unrelated frame should not satisfy the predicate")
	}
	if !active.Broadcast() {
		t.Error("expected broadcast destination")
	}
	if report.Broadcast() {
		t.Error("directed frame reported as broadcast")
	}
}

func TestFramePowerStatus(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   PowerStatus
		wantOK bool
	}{
		{name: "on", input: "01:90:00", want: PowerOn, wantOK: true},
		{name: "standby", input: "51:90:01", want: PowerStandby, wantOK: true},
		{name: "missing payload", input: "01:90", wantOK: false},
		{name: "wrong opcode", input: "01:7A:20", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.input, err)
			}
			got, ok := f.PowerStatus()
			if ok != tt.wantOK {
				t.Fatalf("PowerStatus() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("PowerStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFrameAudioVolume(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   uint8
		wantOK bool
	}{
		{name: "plain volume", input: "51:7A:20", want: 0x20, wantOK: true},
		{name: "mute bit stripped", input: "51:7A:A0", want: 0x20, wantOK: true},
		{name: "missing payload", input: "51:7A", wantOK: false},
		{name: "wrong opcode", input: "51:90:00", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.input, err)
			}
			got, ok := f.AudioVolume()
			if ok != tt.wantOK {
				t.Fatalf("AudioVolume() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("AudioVolume() = 0x%02X, want 0x%02X", got, tt.want)
			}
		})
	}
}

func TestBuildMasksAddresses(t *testing.T) {
	f := Build(LogicalAddr(0x11), LogicalAddr(0xFF), OpStandby)
	if f.Initiator != AddrRecorder1 {
		t.Errorf("Initiator = %d, want masked to %d", f.Initiator, AddrRecorder1)
	}
	if f.Destination != AddrBroadcast {
		t.Errorf("Destination = %d, want masked to %d", f.Destination, AddrBroadcast)
	}
}

func TestBuildCopiesParams(t *testing.T) {
	params := []byte{0x30, 0x00}
	f := Build(AddrRecorder1, AddrBroadcast, OpSetStreamPath, params...)
	params[0] = 0xFF
	if !bytes.Equal(f.Params, []byte{0x30, 0x00}) {
		t.Errorf("Params = %X, want copy unaffected by caller mutation", f.Params)
	}
}

// assertFrameEqual compares all frame fields, treating nil and empty
// params as distinct (the round-trip law is exact).
func assertFrameEqual(t *testing.T, got, want Frame) {
	t.Helper()
	if got.Initiator != want.Initiator {
		t.Errorf("Initiator = %v, want %v", got.Initiator, want.Initiator)
	}
	if got.Destination != want.Destination {
		t.Errorf("Destination = %v, want %v", got.Destination, want.Destination)
	}
	if got.Opcode != want.Opcode {
		t.Errorf("Opcode = %v, want %v", got.Opcode, want.Opcode)
	}
	if (got.Params == nil) != (want.Params == nil) || !bytes.Equal(got.Params, want.Params) {
		t.Errorf("Params = %X (nil=%v), want %X (nil=%v)", got.Params, got.Params == nil, want.Params, want.Params == nil)
	}
}
