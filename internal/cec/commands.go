package cec

// Pure frame builders for the device operations the rules catalog
// performs. Each returns a ready-to-transmit frame and keeps no state.

// QueryPowerStatus asks a device to report its power state. The reply
// arrives as a ReportPowerStatus frame from the queried address.
func QueryPowerStatus(from, to LogicalAddr) Frame {
	return Build(from, to, OpGiveDevicePowerStatus)
}

// Wake powers a device up. ImageViewOn is the wake command displays
// and most sinks act on; devices without a screen treat it as a
// plain power-on.
func Wake(from, to LogicalAddr) Frame {
	return Build(from, to, OpImageViewOn)
}

// Standby puts a device into standby. With AddrBroadcast it puts the
// whole bus into standby.
func Standby(from, to LogicalAddr) Frame {
	return Build(from, to, OpStandby)
}

// KeyPress sends a remote-control key press. Pair it with KeyRelease;
// devices treat an unreleased key as held.
func KeyPress(from, to LogicalAddr, key UserControl) Frame {
	return Build(from, to, OpUserControlPressed, byte(key))
}

// KeyRelease releases the previously pressed key.
func KeyRelease(from, to LogicalAddr) Frame {
	return Build(from, to, OpUserControlReleased)
}

// QueryAudioStatus asks an audio system for its volume and mute state.
// The reply arrives as a ReportAudioStatus frame.
func QueryAudioStatus(from, to LogicalAddr) Frame {
	return Build(from, to, OpGiveAudioStatus)
}

// SetStreamPath broadcasts a request for the device at the given
// physical address to become the active source. Used to hand the
// screen to a device that does not announce itself.
func SetStreamPath(from LogicalAddr, path PhysicalAddr) Frame {
	return Build(from, AddrBroadcast, OpSetStreamPath, path.Bytes()...)
}

// ActiveSourceAnnounce broadcasts that the device at the given
// physical address is now the active source.
func ActiveSourceAnnounce(from LogicalAddr, path PhysicalAddr) Frame {
	return Build(from, AddrBroadcast, OpActiveSource, path.Bytes()...)
}
