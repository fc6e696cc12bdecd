// Package mirror publishes the daemon's view of the CEC bus to MQTT.
//
// Everything here flows outward. The mirror never subscribes and never
// turns broker traffic into CEC frames; the bus remains the single
// inbound event stream. Consumers (dashboards, Home Assistant, ad hoc
// mosquitto_sub) watch two surfaces:
//
//   - Mirror: an observer that derives per-device power, active-source,
//     and audio state from traffic and publishes a retained JSON
//     snapshot per role on change. Retention means a subscriber joining
//     later still sees the current state.
//   - HealthReporter: a periodic retained health snapshot (status,
//     uptime, traffic counters, live sequence names, adapter state)
//     plus a final "stopping" publication on shutdown.
//
// Both take a small Publisher interface rather than the concrete MQTT
// client, so tests run without a broker and the daemon can omit MQTT
// entirely when it is disabled in configuration.
package mirror
