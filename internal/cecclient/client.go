package cecclient

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/calverley/cecd/internal/cec"
	"github.com/calverley/cecd/internal/process"
)

// readyMarker is printed by cec-client once the adapter is open and
// the client is registered on the bus.
const readyMarker = "waiting for input"

// readyPollInterval is how often startup checks whether cec-client
// has already died while waiting for the ready marker.
const readyPollInterval = 100 * time.Millisecond

// Logger defines the logging interface used by the client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Client runs cec-client as a supervised subprocess and implements
// the engine's bus adapter interface.
type Client struct {
	config Config
	logger Logger

	mu      sync.Mutex
	proc    *process.Manager
	onFrame func(raw string)

	ready     chan struct{}
	readyOnce sync.Once
}

// New creates a client with the given configuration. Zero fields fall
// back to their defaults.
func New(cfg Config) (*Client, error) {
	def := DefaultConfig()
	if cfg.Binary == "" {
		cfg.Binary = def.Binary
	}
	if cfg.OSDName == "" {
		cfg.OSDName = def.OSDName
	}
	if cfg.LogLevel == 0 {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.ReadyTimeout == 0 {
		cfg.ReadyTimeout = def.ReadyTimeout
	}
	if cfg.RestartDelay == 0 {
		cfg.RestartDelay = def.RestartDelay
	}
	if cfg.GracefulTimeout == 0 {
		cfg.GracefulTimeout = def.GracefulTimeout
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("cecclient: invalid config: %w", err)
	}

	return &Client{
		config: cfg,
		logger: noopLogger{},
		ready:  make(chan struct{}),
	}, nil
}

// SetLogger sets the logger for the client and its subprocess manager.
func (c *Client) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Start launches cec-client and blocks until it reports a registered
// adapter, the context is cancelled, or ReadyTimeout expires. Received
// frames are forwarded to onFrame as raw text, one call per frame.
func (c *Client) Start(ctx context.Context, onFrame func(raw string)) error {
	c.mu.Lock()
	if c.proc != nil {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.onFrame = onFrame

	proc := process.NewManager(process.Config{
		Name:               "cec-client",
		Binary:             c.config.Binary,
		Args:               c.config.BuildArgs(),
		RestartOnFailure:   c.config.RestartOnFailure,
		RestartDelay:       c.config.RestartDelay,
		MaxRestartAttempts: c.config.MaxRestartAttempts,
		GracefulTimeout:    c.config.GracefulTimeout,
		StopLine:           "q",
		OnStdoutLine:       c.handleLine,
		OnStart: func() {
			c.logger.Info("cec-client started", "binary", c.config.Binary)
		},
		OnStop: func(err error) {
			if err != nil {
				c.logger.Warn("cec-client exited", "error", err)
			} else {
				c.logger.Info("cec-client stopped")
			}
		},
	})
	proc.SetLogger(c.logger)
	c.proc = proc
	c.mu.Unlock()

	if err := proc.Start(ctx); err != nil {
		return fmt.Errorf("cecclient: starting cec-client: %w", err)
	}

	if err := c.waitForReady(ctx, proc); err != nil {
		_ = proc.Stop()
		return err
	}

	c.logger.Info("cec adapter ready", "osd_name", c.config.OSDName)
	return nil
}

// waitForReady blocks until the ready marker has been seen on stdout.
func (c *Client) waitForReady(ctx context.Context, proc *process.Manager) error {
	timeout := time.NewTimer(c.config.ReadyTimeout)
	defer timeout.Stop()
	poll := time.NewTicker(readyPollInterval)
	defer poll.Stop()

	for {
		select {
		case <-c.ready:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("cecclient: waiting for adapter: %w", ctx.Err())
		case <-timeout.C:
			return fmt.Errorf("%w within %s", ErrNotReady, c.config.ReadyTimeout)
		case <-poll.C:
			// Fail fast if cec-client died before registering, e.g.
			// no adapter present or the device is held by another
			// process.
			if proc.Status() == process.StatusFailed {
				if err := proc.LastError(); err != nil {
					return fmt.Errorf("cecclient: cec-client failed before ready: %w", err)
				}
			}
		}
	}
}

// handleLine processes one line of cec-client stdout.
func (c *Client) handleLine(line string) {
	if strings.Contains(line, readyMarker) {
		c.readyOnce.Do(func() { close(c.ready) })
		return
	}

	raw, ok := parseTraffic(line)
	if !ok {
		c.logger.Debug("cec-client", "line", line)
		return
	}

	c.mu.Lock()
	onFrame := c.onFrame
	c.mu.Unlock()
	if onFrame != nil {
		onFrame(raw)
	}
}

// parseTraffic extracts the frame text from one line of cec-client
// output. The boolean reports whether the line carried inbound
// traffic; echoes of our own transmissions (marked "<<") and all
// non-traffic output yield false.
func parseTraffic(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "TRAFFIC:") {
		return "", false
	}
	idx := strings.Index(line, ">>")
	if idx < 0 {
		return "", false
	}
	raw := strings.TrimSpace(line[idx+2:])
	if raw == "" {
		return "", false
	}
	return strings.ToUpper(raw), true
}

// Transmit writes one frame to cec-client for transmission on the bus.
func (c *Client) Transmit(f cec.Frame) error {
	c.mu.Lock()
	proc := c.proc
	c.mu.Unlock()

	if proc == nil {
		return fmt.Errorf("cecclient: %w", process.ErrNotRunning)
	}
	if err := proc.WriteLine("tx " + f.String()); err != nil {
		return fmt.Errorf("cecclient: transmitting %s: %w", f, err)
	}
	return nil
}

// Close stops the cec-client subprocess. Safe to call before Start
// and more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	proc := c.proc
	c.mu.Unlock()

	if proc == nil {
		return nil
	}
	return proc.Stop()
}

// IsRunning reports whether the cec-client subprocess is up.
func (c *Client) IsRunning() bool {
	c.mu.Lock()
	proc := c.proc
	c.mu.Unlock()

	return proc != nil && proc.IsRunning()
}

// Stats reports the state of the managed cec-client process.
func (c *Client) Stats() process.Stats {
	c.mu.Lock()
	proc := c.proc
	c.mu.Unlock()

	if proc == nil {
		return process.Stats{Name: "cec-client", Status: process.StatusStopped}
	}
	return proc.Stats()
}
