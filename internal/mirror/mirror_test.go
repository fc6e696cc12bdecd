package mirror

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/calverley/cecd/internal/cec"
	"github.com/calverley/cecd/internal/infrastructure/config"
	"github.com/calverley/cecd/internal/infrastructure/mqtt"
)

// mockPublisher implements Publisher for testing.
type mockPublisher struct {
	mu         sync.Mutex
	connected  bool
	publishErr error
	messages   []publishedMessage
}

type publishedMessage struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

func newMockPublisher(connected bool) *mockPublisher {
	return &mockPublisher{connected: connected}
}

func (m *mockPublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.messages = append(m.messages, publishedMessage{
		topic:    topic,
		payload:  payload,
		qos:      qos,
		retained: retained,
	})
	return nil
}

func (m *mockPublisher) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockPublisher) getMessages() []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]publishedMessage, len(m.messages))
	copy(result, m.messages)
	return result
}

// recordingLogger implements Logger for testing.
type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Debug(msg string, keysAndValues ...any) {}
func (l *recordingLogger) Info(msg string, keysAndValues ...any)  {}
func (l *recordingLogger) Warn(msg string, keysAndValues ...any)  {}
func (l *recordingLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func testDevices() config.DevicesConfig {
	return config.DevicesConfig{
		Local:      1,
		TV:         0,
		Console:    4,
		Soundbar:   5,
		DonglePath: "3.0.0.0",
	}
}

func newTestMirror(pub Publisher) *Mirror {
	return New(Config{
		Publisher: pub,
		Topics:    mqtt.Topics{Prefix: "cecd"},
		QoS:       1,
		Devices:   testDevices(),
	})
}

// decodeState unmarshals a published payload.
func decodeState(t *testing.T, payload []byte) DeviceState {
	t.Helper()
	var state DeviceState
	if err := json.Unmarshal(payload, &state); err != nil {
		t.Fatalf("failed to unmarshal state: %v", err)
	}
	return state
}

func TestMirrorPublishesOnPowerReport(t *testing.T) {
	pub := newMockPublisher(true)
	m := newTestMirror(pub)

	m.Observe(cec.Build(cec.AddrTV, cec.AddrRecorder1, cec.OpReportPowerStatus, byte(cec.PowerOn)))

	messages := pub.getMessages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	msg := messages[0]
	if msg.topic != "cecd/state/tv" {
		t.Errorf("topic = %q, want cecd/state/tv", msg.topic)
	}
	if msg.qos != 1 {
		t.Errorf("qos = %d, want 1", msg.qos)
	}
	if !msg.retained {
		t.Error("state message should be retained")
	}

	state := decodeState(t, msg.payload)
	if state.Role != "tv" {
		t.Errorf("Role = %q, want tv", state.Role)
	}
	if state.Address != 0 {
		t.Errorf("Address = %d, want 0", state.Address)
	}
	if state.Power != "on" {
		t.Errorf("Power = %q, want on", state.Power)
	}
	if state.ActiveSource {
		t.Error("ActiveSource = true, want false")
	}
	if state.Volume != nil {
		t.Error("Volume set for a device that never reported audio")
	}
	if state.Timestamp.IsZero() {
		t.Error("Timestamp is zero")
	}
}

func TestMirrorDeduplicatesUnchangedState(t *testing.T) {
	pub := newMockPublisher(true)
	m := newTestMirror(pub)

	report := cec.Build(cec.AddrTV, cec.AddrRecorder1, cec.OpReportPowerStatus, byte(cec.PowerOn))
	m.Observe(report)
	m.Observe(report)
	m.Observe(report)

	if got := len(pub.getMessages()); got != 1 {
		t.Errorf("published %d messages for identical state, want 1", got)
	}

	// A different state publishes again.
	m.Observe(cec.Build(cec.AddrTV, cec.AddrRecorder1, cec.OpReportPowerStatus, byte(cec.PowerStandby)))

	if got := len(pub.getMessages()); got != 2 {
		t.Errorf("published %d messages after state change, want 2", got)
	}
}

func TestMirrorBroadcastStandby(t *testing.T) {
	pub := newMockPublisher(true)
	m := newTestMirror(pub)

	m.Observe(cec.Build(cec.AddrTV, cec.AddrBroadcast, cec.OpStandby))

	messages := pub.getMessages()
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages (all roles), got %d", len(messages))
	}

	topics := make(map[string]bool)
	for _, msg := range messages {
		topics[msg.topic] = true
		state := decodeState(t, msg.payload)
		if state.Power != "standby" {
			t.Errorf("%s Power = %q, want standby", msg.topic, state.Power)
		}
	}
	for _, want := range []string{"cecd/state/tv", "cecd/state/console", "cecd/state/soundbar"} {
		if !topics[want] {
			t.Errorf("missing publish on %s", want)
		}
	}
}

func TestMirrorDirectedStandby(t *testing.T) {
	pub := newMockPublisher(true)
	m := newTestMirror(pub)

	m.Observe(cec.Build(cec.AddrTV, cec.AddrPlayback1, cec.OpStandby))

	messages := pub.getMessages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if messages[0].topic != "cecd/state/console" {
		t.Errorf("topic = %q, want cecd/state/console", messages[0].topic)
	}

	state := decodeState(t, messages[0].payload)
	if state.Power != "standby" {
		t.Errorf("Power = %q, want standby", state.Power)
	}
}

func TestMirrorImageViewOn(t *testing.T) {
	pub := newMockPublisher(true)
	m := newTestMirror(pub)

	m.Observe(cec.Build(cec.AddrPlayback1, cec.AddrTV, cec.OpImageViewOn))

	messages := pub.getMessages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	state := decodeState(t, messages[0].payload)
	if state.Role != "tv" {
		t.Errorf("Role = %q, want tv", state.Role)
	}
	if state.Power != "on" {
		t.Errorf("Power = %q, want on", state.Power)
	}
}

func TestMirrorActiveSource(t *testing.T) {
	pub := newMockPublisher(true)
	m := newTestMirror(pub)

	// Console claims the source: one change.
	m.Observe(cec.Build(cec.AddrPlayback1, cec.AddrBroadcast, cec.OpActiveSource, 0x10, 0x00))

	messages := pub.getMessages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	state := decodeState(t, messages[0].payload)
	if state.Role != "console" || !state.ActiveSource {
		t.Errorf("state = %+v, want console with active source", state)
	}

	// A device we don't watch claims it: console loses the source.
	m.Observe(cec.Build(cec.AddrPlayback2, cec.AddrBroadcast, cec.OpActiveSource, 0x30, 0x00))

	messages = pub.getMessages()
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	state = decodeState(t, messages[1].payload)
	if state.Role != "console" || state.ActiveSource {
		t.Errorf("state = %+v, want console without active source", state)
	}
}

func TestMirrorAudioStatus(t *testing.T) {
	pub := newMockPublisher(true)
	m := newTestMirror(pub)

	// Mute bit set, volume 40.
	m.Observe(cec.Build(cec.AddrAudioSystem, cec.AddrRecorder1, cec.OpReportAudioStatus, 0xA8))

	messages := pub.getMessages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	state := decodeState(t, messages[0].payload)
	if state.Role != "soundbar" {
		t.Errorf("Role = %q, want soundbar", state.Role)
	}
	if state.Volume == nil || *state.Volume != 40 {
		t.Errorf("Volume = %v, want 40", state.Volume)
	}
	if state.Muted == nil || !*state.Muted {
		t.Errorf("Muted = %v, want true", state.Muted)
	}
	if state.Power != "unknown" {
		t.Errorf("Power = %q, want unknown (audio reports do not imply power)", state.Power)
	}
}

func TestMirrorIgnoresUnrelatedTraffic(t *testing.T) {
	pub := newMockPublisher(true)
	m := newTestMirror(pub)

	frames := []cec.Frame{
		// Opcode the mirror does not derive state from.
		cec.Build(cec.AddrTV, cec.AddrBroadcast, cec.OpDeviceVendorID, 0x00, 0x09, 0xB0),
		// Power report from a device we don't watch.
		cec.Build(cec.AddrPlayback2, cec.AddrRecorder1, cec.OpReportPowerStatus, byte(cec.PowerOn)),
		// Power report with no payload.
		cec.Build(cec.AddrTV, cec.AddrRecorder1, cec.OpReportPowerStatus),
		// Audio report with no payload.
		cec.Build(cec.AddrAudioSystem, cec.AddrRecorder1, cec.OpReportAudioStatus),
		// Standby directed at a device we don't watch.
		cec.Build(cec.AddrTV, cec.AddrPlayback2, cec.OpStandby),
	}
	for _, f := range frames {
		m.Observe(f)
	}

	if got := len(pub.getMessages()); got != 0 {
		t.Errorf("published %d messages for unrelated traffic, want 0", got)
	}
}

func TestMirrorPublishAll(t *testing.T) {
	pub := newMockPublisher(true)
	m := newTestMirror(pub)

	m.PublishAll()

	messages := pub.getMessages()
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	for _, msg := range messages {
		state := decodeState(t, msg.payload)
		if state.Power != "unknown" {
			t.Errorf("%s Power = %q, want unknown before traffic", msg.topic, state.Power)
		}
		if !msg.retained {
			t.Errorf("%s should be retained", msg.topic)
		}
	}

	// PublishAll repeats unchanged state on purpose (seeding retained
	// topics after reconnect).
	m.PublishAll()
	if got := len(pub.getMessages()); got != 6 {
		t.Errorf("published %d messages after second PublishAll, want 6", got)
	}
}

func TestMirrorNilPublisher(t *testing.T) {
	m := newTestMirror(nil)

	// Must derive state without panicking.
	m.Observe(cec.Build(cec.AddrTV, cec.AddrBroadcast, cec.OpStandby))
	m.PublishAll()
}

func TestMirrorLogsPublishFailure(t *testing.T) {
	pub := newMockPublisher(true)
	pub.publishErr = errors.New("broker gone")

	m := newTestMirror(pub)
	logger := &recordingLogger{}
	m.SetLogger(logger)

	m.Observe(cec.Build(cec.AddrTV, cec.AddrRecorder1, cec.OpReportPowerStatus, byte(cec.PowerOn)))

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.errors) != 1 {
		t.Errorf("logged %d errors, want 1", len(logger.errors))
	}
}
