// Package cec models HDMI-CEC frames and the bus vocabulary the
// automation rules speak.
//
// A frame crosses the adapter boundary as colon-separated hex text
// ("01:90:00"); Parse and Frame.String convert between the textual
// and structured forms and are exact inverses of each other. Logical
// addresses follow the CEC device-class table; physical addresses are
// HDMI tree positions carried in routing messages.
//
// The package also provides pure frame builders (QueryPowerStatus,
// KeyPress, SetStreamPath, ...) covering the operations this system
// speaks on the bus. Builders keep no state and touch no I/O.
package cec
