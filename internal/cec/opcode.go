package cec

import "fmt"

// Opcode identifies a CEC message type.
type Opcode uint8

// Opcodes this system sends or reacts to. Anything else on the bus
// (vendor chatter, routing negotiation) is passed to observers and
// otherwise ignored.
const (
	OpFeatureAbort          Opcode = 0x00
	OpImageViewOn           Opcode = 0x04
	OpStandby               Opcode = 0x36
	OpUserControlPressed    Opcode = 0x44
	OpUserControlReleased   Opcode = 0x45
	OpGiveAudioStatus       Opcode = 0x71
	OpReportAudioStatus     Opcode = 0x7A
	OpActiveSource          Opcode = 0x82
	OpRequestActiveSource   Opcode = 0x85
	OpSetStreamPath         Opcode = 0x86
	OpDeviceVendorID        Opcode = 0x87
	OpGiveDevicePowerStatus Opcode = 0x8F
	OpReportPowerStatus     Opcode = 0x90
)

// String returns the opcode name for known opcodes and the hex value
// otherwise.
func (o Opcode) String() string {
	switch o {
	case OpFeatureAbort:
		return "FeatureAbort"
	case OpImageViewOn:
		return "ImageViewOn"
	case OpStandby:
		return "Standby"
	case OpUserControlPressed:
		return "UserControlPressed"
	case OpUserControlReleased:
		return "UserControlReleased"
	case OpGiveAudioStatus:
		return "GiveAudioStatus"
	case OpReportAudioStatus:
		return "ReportAudioStatus"
	case OpActiveSource:
		return "ActiveSource"
	case OpRequestActiveSource:
		return "RequestActiveSource"
	case OpSetStreamPath:
		return "SetStreamPath"
	case OpDeviceVendorID:
		return "DeviceVendorID"
	case OpGiveDevicePowerStatus:
		return "GiveDevicePowerStatus"
	case OpReportPowerStatus:
		return "ReportPowerStatus"
	}
	return fmt.Sprintf("0x%02X", uint8(o))
}

// PowerStatus is a device power state as carried in the first
// parameter of a ReportPowerStatus frame.
type PowerStatus uint8

const (
	PowerOn        PowerStatus = 0x00
	PowerStandby   PowerStatus = 0x01
	PowerToOn      PowerStatus = 0x02
	PowerToStandby PowerStatus = 0x03
)

// String returns a short lowercase state name.
func (p PowerStatus) String() string {
	switch p {
	case PowerOn:
		return "on"
	case PowerStandby:
		return "standby"
	case PowerToOn:
		return "to-on"
	case PowerToStandby:
		return "to-standby"
	}
	return fmt.Sprintf("0x%02X", uint8(p))
}

// UserControl is a remote-control key code carried in a
// UserControlPressed frame.
type UserControl uint8

const (
	KeyPower      UserControl = 0x40
	KeyVolumeUp   UserControl = 0x41
	KeyVolumeDown UserControl = 0x42
)
