// Package cecclient drives the cec-client binary as a managed
// subprocess and exposes it as the engine's bus adapter.
//
// cec-client (part of libCEC) owns the HDMI-CEC hardware. This package
// starts it in line mode, registers on the bus as a recording device,
// and speaks its stdin/stdout protocol:
//
//   - inbound traffic arrives as "TRAFFIC: [ts] >> XX:YY:ZZ" lines,
//     which are forwarded to the engine as raw frame text
//   - "<<" traffic lines are echoes of our own transmissions and are
//     dropped
//   - frames are transmitted by writing "tx XX:YY:ZZ" to stdin
//
// The subprocess is supervised: if cec-client crashes (adapter unplug,
// libCEC fault) it is restarted with exponential backoff, and the
// engine keeps running across the gap. Startup blocks until cec-client
// reports that the adapter is open and registered, or until
// ReadyTimeout expires.
//
// Example configuration (in config.yaml):
//
//	bus:
//	  binary: "/usr/bin/cec-client"
//	  osd_name: "cecd"
//	  device: ""        # autodetect the adapter
//	  restart_on_failure: true
package cecclient
