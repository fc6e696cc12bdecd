package mirror

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/calverley/cecd/internal/cec"
	"github.com/calverley/cecd/internal/infrastructure/config"
	"github.com/calverley/cecd/internal/infrastructure/mqtt"
)

// Publisher is the interface for publishing mirror messages.
// This is typically implemented by an MQTT client.
type Publisher interface {
	// Publish sends a message to a topic with the specified QoS and retention.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// IsConnected returns true if the publisher is connected.
	IsConnected() bool
}

// Logger interface for structured logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Config holds construction options for the Mirror.
type Config struct {
	// Publisher is the MQTT client for publishing state. A nil
	// publisher makes the mirror derive state without publishing.
	Publisher Publisher

	// Topics builds the state topics (prefix from configuration).
	Topics mqtt.Topics

	// QoS is the publish QoS level.
	QoS byte

	// Devices maps roles to logical addresses.
	Devices config.DevicesConfig
}

// snapshot is the comparable per-role state used for deduplication.
// A publish happens only when a frame changes one of these fields.
type snapshot struct {
	power    string
	active   bool
	hasAudio bool
	volume   uint8
	muted    bool
}

// roleState pairs a configured role with its current snapshot.
type roleState struct {
	role string
	addr cec.LogicalAddr
	snap snapshot
}

// message builds the publishable state from the current snapshot.
func (rs *roleState) message(now time.Time) DeviceState {
	msg := DeviceState{
		Role:         rs.role,
		Address:      int(rs.addr),
		Power:        rs.snap.power,
		ActiveSource: rs.snap.active,
		Timestamp:    now,
	}
	if rs.snap.hasAudio {
		volume := int(rs.snap.volume)
		muted := rs.snap.muted
		msg.Volume = &volume
		msg.Muted = &muted
	}
	return msg
}

// Mirror derives per-device state from bus traffic and publishes a
// retained JSON snapshot per role when the state changes.
//
// It is wired as a dispatcher observer; it never transmits and never
// subscribes. Publish failures are logged and dropped so a broker
// outage cannot stall frame dispatch. The retained flag means the
// broker replays the last snapshot to late subscribers, so dropping
// an update loses nothing once the next change lands.
//
// Thread Safety: All methods are safe for concurrent use.
type Mirror struct {
	publisher Publisher
	topics    mqtt.Topics
	qos       byte

	mu     sync.Mutex
	byAddr map[cec.LogicalAddr]*roleState
	roles  []*roleState

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a mirror for the configured device roles.
// Roles start with power "unknown" until traffic says otherwise.
func New(cfg Config) *Mirror {
	m := &Mirror{
		publisher: cfg.Publisher,
		topics:    cfg.Topics,
		qos:       cfg.QoS,
		byAddr:    make(map[cec.LogicalAddr]*roleState),
	}

	add := func(role string, addr int) {
		rs := &roleState{
			role: role,
			addr: cec.LogicalAddr(addr),
			snap: snapshot{power: "unknown"},
		}
		m.byAddr[rs.addr] = rs
		m.roles = append(m.roles, rs)
	}
	add("tv", cfg.Devices.TV)
	add("console", cfg.Devices.Console)
	add("soundbar", cfg.Devices.Soundbar)

	return m
}

// SetLogger sets the logger for the mirror.
func (m *Mirror) SetLogger(logger Logger) {
	m.loggerMu.Lock()
	m.logger = logger
	m.loggerMu.Unlock()
}

// Observe derives state from an inbound frame and publishes every role
// whose snapshot changed. It matches the engine's observer signature
// and is wired via AddObserver.
func (m *Mirror) Observe(f cec.Frame) {
	now := time.Now().UTC()

	m.mu.Lock()
	changed := m.applyLocked(f)
	messages := make([]DeviceState, 0, len(changed))
	for _, rs := range changed {
		messages = append(messages, rs.message(now))
	}
	m.mu.Unlock()

	for _, msg := range messages {
		m.publish(msg)
	}
}

// PublishAll publishes the current snapshot of every role regardless
// of change. The daemon calls this once at startup to seed the
// retained topics and again on MQTT reconnection.
func (m *Mirror) PublishAll() {
	now := time.Now().UTC()

	m.mu.Lock()
	messages := make([]DeviceState, 0, len(m.roles))
	for _, rs := range m.roles {
		messages = append(messages, rs.message(now))
	}
	m.mu.Unlock()

	for _, msg := range messages {
		m.publish(msg)
	}
}

// applyLocked mutates role snapshots for one frame and returns the
// roles that changed. Caller holds m.mu.
func (m *Mirror) applyLocked(f cec.Frame) []*roleState {
	var changed []*roleState
	mark := func(rs *roleState, next snapshot) {
		if rs.snap != next {
			rs.snap = next
			changed = append(changed, rs)
		}
	}

	switch f.Opcode {
	case cec.OpReportPowerStatus:
		rs, ok := m.byAddr[f.Initiator]
		status, hasStatus := f.PowerStatus()
		if !ok || !hasStatus {
			return nil
		}
		next := rs.snap
		next.power = status.String()
		mark(rs, next)

	case cec.OpStandby:
		if f.Broadcast() {
			for _, rs := range m.roles {
				next := rs.snap
				next.power = "standby"
				mark(rs, next)
			}
			return changed
		}
		if rs, ok := m.byAddr[f.Destination]; ok {
			next := rs.snap
			next.power = "standby"
			mark(rs, next)
		}

	case cec.OpImageViewOn:
		if rs, ok := m.byAddr[f.Destination]; ok {
			next := rs.snap
			next.power = "on"
			mark(rs, next)
		}

	case cec.OpActiveSource:
		// The initiator claims the source. Every other role loses it,
		// including when the claimant is a device we don't watch.
		for _, rs := range m.roles {
			next := rs.snap
			next.active = rs.addr == f.Initiator
			mark(rs, next)
		}

	case cec.OpReportAudioStatus:
		rs, ok := m.byAddr[f.Initiator]
		volume, hasVolume := f.AudioVolume()
		if !ok || !hasVolume {
			return nil
		}
		next := rs.snap
		next.hasAudio = true
		next.volume = volume
		next.muted = f.Params[0]&0x80 != 0
		mark(rs, next)
	}

	return changed
}

// publish serialises and publishes one role state, retained.
func (m *Mirror) publish(msg DeviceState) {
	if m.publisher == nil {
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		m.logError("marshalling device state", err)
		return
	}

	topic := m.topics.DeviceState(msg.Role)
	if err := m.publisher.Publish(topic, payload, m.qos, true); err != nil {
		m.logError("publishing device state", err)
	}
}

// logError logs an error if logger is set.
func (m *Mirror) logError(msg string, err error) {
	m.loggerMu.RLock()
	logger := m.logger
	m.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
