package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/calverley/cecd/internal/infrastructure/config"
)

const (
	// connectTimeout bounds the initial broker connection attempt.
	connectTimeout = 10 * time.Second

	// publishTimeout bounds waiting for a publish acknowledgement.
	publishTimeout = 5 * time.Second

	// disconnectQuiesce is how long Close lets in-flight work drain,
	// in milliseconds as paho expects.
	disconnectQuiesce = 1000

	// keepAlive is the ping interval that detects dead links.
	keepAlive = 60 * time.Second

	maxQoS = 2

	// maxPayloadSize caps a single publish at 1MB, in line with
	// common broker defaults.
	maxPayloadSize = 1 << 20
)

// Logger receives connection lifecycle problems. The signatures follow
// slog, so a *logging.Logger satisfies it directly.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Client is the daemon's publish-only broker connection.
//
// State flows one way: retained snapshots and health reports go out,
// nothing is subscribed. Reconnection is paho's job, tuned by the
// backoff in config.MQTTConfig; callers that care about connection
// transitions register callbacks with SetOnConnect and SetOnDisconnect.
//
// All methods are safe for concurrent use.
type Client struct {
	cfg    config.MQTTConfig
	topics Topics
	client pahomqtt.Client

	mu        sync.RWMutex
	connected bool

	cbMu         sync.RWMutex
	onConnect    func()
	onDisconnect func(error)

	logMu  sync.RWMutex
	logger Logger
}

// Connect dials the configured broker and returns a ready client.
//
// The session carries a retained Last Will on the system status topic
// so subscribers see an unexpected death without polling, and the
// matching online status is published after every (re)connection.
// Connect fails only when the first attempt cannot complete within its
// timeout; afterwards reconnection is automatic for the life of the
// client.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:    cfg,
		topics: Topics{Prefix: cfg.TopicPrefix},
	}
	c.client = pahomqtt.NewClient(c.clientOptions())

	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: no broker response within %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect handler runs on paho's goroutine and may not have
	// fired yet; mark connected here so IsConnected holds on return.
	c.setConnected(true)

	return c, nil
}

// clientOptions assembles the paho option set: broker URL and
// credentials, clean session, auto-reconnect backoff, a TLS 1.2 floor
// when enabled, the Last Will, and the handlers that track connection
// state.
func (c *Client) clientOptions() *pahomqtt.ClientOptions {
	cfg := c.cfg

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL()).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	opts.SetBinaryWill(c.topics.SystemStatus(), willStatus(cfg.Broker.ClientID).encode(), 1, true)

	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleDisconnect(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.warn("reconnecting to MQTT broker", "broker", cfg.BrokerURL())
	})

	return opts
}

// Topics returns the topic builder carrying the configured prefix.
func (c *Client) Topics() Topics {
	return c.topics
}

// Publish sends payload to topic and waits for the broker to accept
// it. retained asks the broker to hand the message to future
// subscribers too; state snapshots want that, transient events do not.
//
// The wait is bounded; a broker that stops acknowledging surfaces as
// ErrPublishFailed rather than a stuck caller.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case len(payload) > maxPayloadSize:
		return fmt.Errorf("%w: payload is %d bytes, limit %d", ErrPublishFailed, len(payload), maxPayloadSize)
	case !c.IsConnected():
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: no acknowledgement within %v", ErrPublishFailed, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Close publishes the graceful offline status and disconnects. Safe on
// a client whose link already dropped; the offline publish is skipped
// when there is nothing to send it over.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		payload := offlineStatus(c.cfg.Broker.ClientID).encode()
		token := c.client.Publish(c.topics.SystemStatus(), byte(c.cfg.QoS), true, payload)
		if !token.WaitTimeout(publishTimeout) {
			c.warn("offline status not acknowledged before disconnect")
		}
	}

	c.client.Disconnect(disconnectQuiesce)
	c.setConnected(false)
	return nil
}

// HealthCheck reports nil while the broker connection is up.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether the broker link is currently up.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// SetOnConnect registers a callback invoked after the initial connect
// and after every reconnect. Use it to reseed retained topics a broker
// restart may have lost.
func (c *Client) SetOnConnect(callback func()) {
	c.cbMu.Lock()
	c.onConnect = callback
	c.cbMu.Unlock()
}

// SetOnDisconnect registers a callback invoked when the connection
// drops, with the reason.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.cbMu.Lock()
	c.onDisconnect = callback
	c.cbMu.Unlock()
}

// SetLogger attaches a logger for lifecycle noise. Without one the
// client stays silent.
func (c *Client) SetLogger(logger Logger) {
	c.logMu.Lock()
	c.logger = logger
	c.logMu.Unlock()
}

// handleConnect runs on paho's goroutine after every (re)connection.
func (c *Client) handleConnect() {
	defer c.recoverCallback("connect")

	c.setConnected(true)
	c.client.Publish(c.topics.SystemStatus(), byte(c.cfg.QoS), true, onlineStatus(c.cfg.Broker.ClientID).encode())

	c.cbMu.RLock()
	cb := c.onConnect
	c.cbMu.RUnlock()
	if cb != nil {
		cb()
	}
}

// handleDisconnect runs on paho's goroutine when the link drops.
func (c *Client) handleDisconnect(err error) {
	defer c.recoverCallback("disconnect")

	c.setConnected(false)

	c.cbMu.RLock()
	cb := c.onDisconnect
	c.cbMu.RUnlock()
	if cb != nil {
		cb(err)
	}
}

// recoverCallback keeps a panicking callback from taking down paho's
// network loop.
func (c *Client) recoverCallback(event string) {
	if r := recover(); r != nil {
		c.error("MQTT "+event+" callback panicked", "panic", r)
	}
}

func (c *Client) setConnected(up bool) {
	c.mu.Lock()
	c.connected = up
	c.mu.Unlock()
}

func (c *Client) warn(msg string, args ...any) {
	c.logMu.RLock()
	l := c.logger
	c.logMu.RUnlock()
	if l != nil {
		l.Warn(msg, args...)
	}
}

func (c *Client) error(msg string, args ...any) {
	c.logMu.RLock()
	l := c.logger
	c.logMu.RUnlock()
	if l != nil {
		l.Error(msg, args...)
	}
}
