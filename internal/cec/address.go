package cec

import (
	"fmt"
	"strconv"
	"strings"
)

// LogicalAddr is a 4-bit CEC logical address (0-15).
//
// Logical addresses identify device roles on the bus, not cable
// positions: a device claims the address for its class when it joins.
// 15 is the broadcast destination and the unregistered initiator.
type LogicalAddr uint8

// Logical addresses for the device classes this system works with,
// per the CEC addressing table.
const (
	AddrTV          LogicalAddr = 0x0
	AddrRecorder1   LogicalAddr = 0x1
	AddrPlayback1   LogicalAddr = 0x4
	AddrAudioSystem LogicalAddr = 0x5
	AddrPlayback2   LogicalAddr = 0x8
	AddrBroadcast   LogicalAddr = 0xF
)

// addrMask keeps logical addresses within their 4-bit range.
const addrMask = 0x0F

// IsValid reports whether the address fits in 4 bits.
func (a LogicalAddr) IsValid() bool {
	return a <= addrMask
}

// String returns the device-class name for known addresses and the
// decimal value otherwise.
func (a LogicalAddr) String() string {
	switch a {
	case AddrTV:
		return "tv"
	case AddrRecorder1:
		return "recorder-1"
	case AddrPlayback1:
		return "playback-1"
	case AddrAudioSystem:
		return "audio-system"
	case AddrPlayback2:
		return "playback-2"
	case AddrBroadcast:
		return "broadcast"
	}
	return strconv.Itoa(int(a))
}

// PhysicalAddr is a 16-bit HDMI physical address: four 4-bit levels
// describing a device's position in the HDMI connection tree.
//
// Text form is a dotted quad, one hex nibble per level: "3.0.0.0" is
// a device plugged into the TV's input 3. The address travels on the
// wire as two big-endian bytes in routing message parameters.
type PhysicalAddr uint16

// paLevelCount is the number of levels in a physical address.
const paLevelCount = 4

// ParsePhysicalAddress parses a dotted-quad physical address string.
//
// Accepts four dot-separated hex nibbles: "3.0.0.0", "1.2.0.0".
//
// Parameters:
//   - s: Physical address string
//
// Returns:
//   - PhysicalAddr: Parsed address
//   - error: ErrInvalidPhysicalAddress if parsing fails
func ParsePhysicalAddress(s string) (PhysicalAddr, error) {
	parts := strings.Split(s, ".")
	if len(parts) != paLevelCount {
		return 0, fmt.Errorf("%w: expected a.b.c.d, got %q", ErrInvalidPhysicalAddress, s)
	}

	var pa uint16
	for i, part := range parts {
		level, err := strconv.ParseUint(part, 16, 8)
		if err != nil || level > uint64(addrMask) {
			return 0, fmt.Errorf("%w: level %d must be a single hex digit, got %q", ErrInvalidPhysicalAddress, i+1, part)
		}
		pa = pa<<4 | uint16(level)
	}

	return PhysicalAddr(pa), nil
}

// String returns the dotted-quad form ("3.0.0.0").
func (p PhysicalAddr) String() string {
	return fmt.Sprintf("%X.%X.%X.%X", uint16(p>>12)&addrMask, uint16(p>>8)&addrMask, uint16(p>>4)&addrMask, uint16(p)&addrMask)
}

// Bytes returns the two-byte on-wire encoding (big-endian), as carried
// in SetStreamPath and ActiveSource parameters.
func (p PhysicalAddr) Bytes() []byte {
	return []byte{byte(p >> 8), byte(p)}
}
