package mqtt

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "cecd"

// Topics builds the MQTT topics cecd publishes to. The zero value uses
// the default prefix; construct with the configured prefix otherwise:
//
//	topics := mqtt.Topics{Prefix: cfg.MQTT.TopicPrefix}
//	topics.DeviceState("console") // "cecd/state/console"
//
// cecd only publishes. Subscribers (dashboards, Home Assistant, ad hoc
// mosquitto_sub) consume these topics; nothing flows back in.
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// DeviceState returns the retained state topic for a device role.
//
// Example: cecd/state/console
func (t Topics) DeviceState(role string) string {
	return t.prefix() + "/state/" + role
}

// Health returns the topic for periodic daemon health reports.
//
// Example: cecd/health
func (t Topics) Health() string {
	return t.prefix() + "/health"
}

// SystemStatus returns the online/offline status topic. The broker
// publishes the Last Will here on an unexpected disconnect.
//
// Example: cecd/system/status
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}

// AllDeviceStates returns a pattern matching every device state topic.
//
// Pattern: cecd/state/+
func (t Topics) AllDeviceStates() string {
	return t.prefix() + "/state/+"
}
