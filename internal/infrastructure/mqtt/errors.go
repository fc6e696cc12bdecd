package mqtt

import "errors"

// Sentinel errors for broker operations, matched with errors.Is.
var (
	// ErrNotConnected covers operations attempted before Connect or
	// after the link dropped.
	ErrNotConnected = errors.New("mqtt: not connected to broker")

	// ErrConnectionFailed wraps a failed initial Connect.
	ErrConnectionFailed = errors.New("mqtt: broker connection failed")

	// ErrPublishFailed wraps publishes the broker never acknowledged
	// or that failed validation.
	ErrPublishFailed = errors.New("mqtt: publish did not complete")

	// ErrInvalidQoS flags QoS levels outside 0, 1 and 2.
	ErrInvalidQoS = errors.New("mqtt: QoS must be 0, 1 or 2")

	// ErrInvalidTopic flags an empty publish topic.
	ErrInvalidTopic = errors.New("mqtt: empty topic")
)
