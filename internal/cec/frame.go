package cec

import (
	"fmt"
	"strconv"
	"strings"
)

// Frame is a single CEC message.
//
// On the wire a frame is a header byte (initiator in the high nibble,
// destination in the low nibble), an opcode byte, and zero or more
// parameter bytes. Traffic crosses the adapter boundary as
// colon-separated two-hex-digit groups: "01:90:00" is TV to recorder,
// ReportPowerStatus, power on.
type Frame struct {
	// Initiator is the logical address of the sender.
	Initiator LogicalAddr

	// Destination is the logical address of the receiver
	// (AddrBroadcast for broadcast messages).
	Destination LogicalAddr

	// Opcode identifies the message.
	Opcode Opcode

	// Params carries the opcode-specific payload (may be empty).
	Params []byte
}

// minFrameGroups is header + opcode. Header-only frames are bus-level
// polls; nothing above the adapter consumes them, so the parser
// requires an opcode.
const minFrameGroups = 2

// Parse parses the textual frame representation used at the adapter
// boundary.
//
// The format is colon-separated hex byte groups, case-insensitive,
// one or two digits per group: "01:90:00", "4f:82:30:00".
//
// Parameters:
//   - s: Raw frame text as delivered by the bus adapter
//
// Returns:
//   - Frame: Parsed frame
//   - error: ErrMalformedFrame if the text is not a well-formed frame
func Parse(s string) (Frame, error) {
	groups := strings.Split(s, ":")
	if len(groups) < minFrameGroups {
		return Frame{}, fmt.Errorf("%w: need header and opcode groups, got %q", ErrMalformedFrame, s)
	}

	raw := make([]byte, len(groups))
	for i, g := range groups {
		if g == "" || len(g) > 2 {
			return Frame{}, fmt.Errorf("%w: bad byte group %q in %q", ErrMalformedFrame, g, s)
		}
		v, err := strconv.ParseUint(g, 16, 8)
		if err != nil {
			return Frame{}, fmt.Errorf("%w: bad byte group %q in %q", ErrMalformedFrame, g, s)
		}
		raw[i] = byte(v)
	}

	f := Frame{
		Initiator:   LogicalAddr(raw[0] >> 4),
		Destination: LogicalAddr(raw[0] & addrMask),
		Opcode:      Opcode(raw[1]),
	}
	if len(raw) > minFrameGroups {
		f.Params = raw[minFrameGroups:]
	}
	return f, nil
}

// Build constructs an outbound frame. Address arguments are masked to
// their 4-bit range; params are copied.
func Build(initiator, destination LogicalAddr, op Opcode, params ...byte) Frame {
	f := Frame{
		Initiator:   initiator & addrMask,
		Destination: destination & addrMask,
		Opcode:      op,
	}
	if len(params) > 0 {
		f.Params = make([]byte, len(params))
		copy(f.Params, params)
	}
	return f
}

// String returns the canonical wire text: uppercase two-digit hex
// groups joined by colons. Parse(f.String()) reproduces f exactly for
// every frame produced by Build.
func (f Frame) String() string {
	var b strings.Builder
	b.Grow((len(f.Params) + minFrameGroups) * 3)
	header := byte(f.Initiator&addrMask)<<4 | byte(f.Destination&addrMask)
	fmt.Fprintf(&b, "%02X:%02X", header, byte(f.Opcode))
	for _, p := range f.Params {
		fmt.Fprintf(&b, ":%02X", p)
	}
	return b.String()
}

// From reports whether the frame was sent by src with opcode op.
// Reply-waiting rules filter on both fields so unrelated traffic
// (vendor chatter, other devices' reports) cannot satisfy a wait.
func (f Frame) From(src LogicalAddr, op Opcode) bool {
	return f.Initiator == src && f.Opcode == op
}

// Broadcast reports whether the frame is addressed to every device.
func (f Frame) Broadcast() bool {
	return f.Destination == AddrBroadcast
}

// PowerStatus extracts the power state from a ReportPowerStatus frame.
// The second return is false when the frame is not a power report or
// carries no payload.
func (f Frame) PowerStatus() (PowerStatus, bool) {
	if f.Opcode != OpReportPowerStatus || len(f.Params) == 0 {
		return 0, false
	}
	return PowerStatus(f.Params[0]), true
}

// AudioVolume extracts the volume (0-127) from a ReportAudioStatus
// frame, ignoring the mute bit.
func (f Frame) AudioVolume() (uint8, bool) {
	if f.Opcode != OpReportAudioStatus || len(f.Params) == 0 {
		return 0, false
	}
	return f.Params[0] & 0x7F, true
}
