// Package journal records HDMI-CEC bus activity into SQLite.
//
// The journal is a passive observer: it is handed every parsed inbound
// frame and builds a picture of the bus over time without ever
// transmitting. Two tables accumulate:
//
//   - cec_devices: one row per logical address seen as an initiator,
//     with last-seen time and frame count. The broadcast/unregistered
//     address (15) is never recorded as a device.
//   - cec_opcodes: one row per opcode seen, with last-seen time and
//     frame count.
//
// This answers the questions that matter when a sequence misbehaves:
// which devices are actually talking, which went quiet, and what the
// traffic mix looks like.
//
// The journal owns its database lifecycle. Start opens the file
// (creating the directory if needed), applies the schema, and prepares
// the upsert statements; Stop closes everything. Recording errors are
// logged and dropped so a full disk cannot stall frame dispatch.
//
// # Usage
//
//	j := journal.New(cfg.Journal)
//	j.SetLogger(logger)
//	if err := j.Start(); err != nil {
//	    return err
//	}
//	defer j.Stop()
//
//	dispatcher.AddObserver(j.Observe)
package journal
