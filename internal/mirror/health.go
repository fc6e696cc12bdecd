package mirror

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/calverley/cecd/internal/engine"
	"github.com/calverley/cecd/internal/infrastructure/mqtt"
	"github.com/calverley/cecd/internal/process"
)

const defaultHealthInterval = 30 * time.Second

// DispatcherInfo exposes the dispatcher counters and live sequence
// names the health snapshot embeds. *engine.Dispatcher satisfies it.
type DispatcherInfo interface {
	Stats() engine.Stats
	Live() []string
}

// BusInfo exposes adapter process state. *cecclient.Client satisfies
// it.
type BusInfo interface {
	IsRunning() bool
	Stats() process.Stats
}

// HealthReporterConfig configures a HealthReporter.
type HealthReporterConfig struct {
	// Service names the publisher in health messages, default "cecd".
	Service string

	// Version is the daemon version string.
	Version string

	// Interval between periodic snapshots, default 30s.
	Interval time.Duration

	// Publisher carries snapshots to the broker.
	Publisher Publisher

	// Topics supplies the health topic.
	Topics mqtt.Topics

	// QoS for health publishes.
	QoS byte

	// Dispatcher and Bus feed the snapshot. Either may be nil, in
	// which case its section is omitted.
	Dispatcher DispatcherInfo
	Bus        BusInfo
}

// HealthReporter publishes retained health snapshots on a fixed
// interval, plus one-shot "starting" and "stopping" statuses around
// the daemon lifecycle.
type HealthReporter struct {
	cfg       HealthReporterConfig
	startTime time.Time

	quit chan struct{}
	once sync.Once
	wg   sync.WaitGroup

	logMu  sync.RWMutex
	logger Logger
}

// NewHealthReporter normalises the config and returns a reporter.
// Nothing is published until Start, PublishStarting or PublishNow.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	if cfg.Service == "" {
		cfg.Service = "cecd"
	}
	if cfg.Interval == 0 {
		cfg.Interval = defaultHealthInterval
	}
	return &HealthReporter{
		cfg:       cfg,
		startTime: time.Now(),
		quit:      make(chan struct{}),
	}
}

// Start launches the periodic reporting goroutine. The loop ends when
// ctx is cancelled or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.run(ctx)
}

// Stop ends periodic reporting and publishes a final "stopping"
// snapshot. Safe to call more than once; only the first call does
// anything.
func (h *HealthReporter) Stop() {
	h.once.Do(func() {
		close(h.quit)
		h.wg.Wait()
		// Best effort; the broker connection may already be gone.
		h.report(HealthStopping, "shutdown requested")
	})
}

// SetLogger installs a logger for publish failures.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.logMu.Lock()
	h.logger = logger
	h.logMu.Unlock()
}

// PublishStarting announces the daemon is coming up. Called once
// during init, before Start.
func (h *HealthReporter) PublishStarting() error {
	return h.report(HealthStarting, "daemon starting")
}

// PublishNow assesses current health and publishes it immediately,
// outside the periodic schedule.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.assess()
	return h.report(status, reason)
}

func (h *HealthReporter) run(ctx context.Context) {
	defer h.wg.Done()

	if err := h.PublishNow(); err != nil {
		h.logPublishError("initial health publish failed", err)
	}

	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.quit:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logPublishError("health publish failed", err)
			}
		}
	}
}

// assess derives the daemon's status from its two external
// attachments. Broker connectivity is checked first since a
// disconnected publisher also means the snapshot will not go out.
func (h *HealthReporter) assess() (HealthStatus, string) {
	if h.cfg.Publisher == nil || !h.cfg.Publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	if h.cfg.Bus == nil || !h.cfg.Bus.IsRunning() {
		return HealthDegraded, "CEC adapter not running"
	}
	return HealthHealthy, ""
}

// report publishes one retained snapshot with the given status.
func (h *HealthReporter) report(status HealthStatus, reason string) error {
	if h.cfg.Publisher == nil {
		return nil
	}

	payload, err := json.Marshal(h.snapshot(status, reason))
	if err != nil {
		return err
	}
	return h.cfg.Publisher.Publish(h.cfg.Topics.Health(), payload, h.cfg.QoS, true)
}

// snapshot assembles the health message body.
func (h *HealthReporter) snapshot(status HealthStatus, reason string) HealthMessage {
	msg := HealthMessage{
		Service:       h.cfg.Service,
		Version:       h.cfg.Version,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Reason:        reason,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Sequences:     []string{},
	}
	if h.cfg.Bus != nil {
		stats := h.cfg.Bus.Stats()
		msg.Bus = &stats
	}
	if h.cfg.Dispatcher != nil {
		stats := h.cfg.Dispatcher.Stats()
		msg.Traffic = &stats
		if live := h.cfg.Dispatcher.Live(); live != nil {
			msg.Sequences = live
		}
	}
	return msg
}

func (h *HealthReporter) logPublishError(msg string, err error) {
	h.logMu.RLock()
	logger := h.logger
	h.logMu.RUnlock()
	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
