// Package daemon supervises the automation for the life of the
// process.
//
// The manager owns the dispatcher lifecycle and the root monitors. It
// opens the bus, offers the monitors to the dispatcher and re-offers
// them on a fixed cadence. The dispatcher refuses duplicates by name,
// so a re-offer is a no-op while a monitor is alive and a restart
// with fresh state after one faults. Rule state never survives a
// fault; every offer builds new sequences.
package daemon
