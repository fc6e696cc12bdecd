package mirror

import (
	"time"

	"github.com/calverley/cecd/internal/engine"
	"github.com/calverley/cecd/internal/process"
)

// DeviceState is the retained per-role snapshot published to
// <prefix>/state/<role>.
// QoS: configured default, Retained: yes.
type DeviceState struct {
	// Role is the configured device role ("tv", "console", "soundbar").
	Role string `json:"role"`

	// Address is the device's CEC logical address.
	Address int `json:"address"`

	// Power is the last derived power state: "on", "standby", "to-on",
	// "to-standby", or "unknown" before any traffic.
	Power string `json:"power"`

	// ActiveSource reports whether this device last claimed the active
	// source. At most one role is active at a time.
	ActiveSource bool `json:"active_source"`

	// Volume is the last reported audio volume (0-127).
	// Only present for devices that report audio status.
	Volume *int `json:"volume,omitempty"`

	// Muted is the last reported mute state.
	// Only present for devices that report audio status.
	Muted *bool `json:"muted,omitempty"`

	// Timestamp is when this snapshot was published (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`
}

// HealthStatus represents the operational status of the daemon.
type HealthStatus string

const (
	// HealthHealthy indicates the daemon is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the daemon is running with issues
	// (adapter down, broker flapping).
	HealthDegraded HealthStatus = "degraded"

	// HealthStarting indicates the daemon is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the daemon is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is the retained health snapshot published to
// <prefix>/health.
// QoS: configured default, Retained: yes.
type HealthMessage struct {
	// Service identifies the publisher ("cecd").
	Service string `json:"service"`

	// Version is the daemon version.
	Version string `json:"version"`

	// Timestamp is when the snapshot was generated (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Status is the current operational status.
	Status HealthStatus `json:"status"`

	// Reason explains the status (especially for degraded/stopping).
	Reason string `json:"reason,omitempty"`

	// UptimeSeconds is how long the daemon has been running.
	UptimeSeconds int64 `json:"uptime_seconds"`

	// Bus describes the cec-client adapter process.
	Bus *process.Stats `json:"bus,omitempty"`

	// Traffic contains dispatcher frame counters.
	Traffic *engine.Stats `json:"traffic,omitempty"`

	// Sequences lists the names of currently live sequences.
	Sequences []string `json:"sequences"`
}
