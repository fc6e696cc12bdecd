package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/calverley/cecd/internal/engine"
	"github.com/calverley/cecd/internal/rules"
)

// Logger is the interface for logging messages.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output when no logger is provided.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// defaultRespawnInterval is the cadence of root monitor re-offers.
const defaultRespawnInterval = time.Minute

// Options configures a Manager.
type Options struct {
	// Dispatcher runs the sequences. Required; the manager owns its
	// lifecycle from Start to Stop.
	Dispatcher *engine.Dispatcher

	// Rules configures the automation catalogue. The Spawner field is
	// filled from Dispatcher and need not be set.
	Rules rules.Options

	// RespawnInterval is how often the root monitors are re-offered
	// to the dispatcher. Zero means one minute.
	RespawnInterval time.Duration

	// Logger receives lifecycle logs. Optional.
	Logger Logger
}

// Manager runs the automation for the life of the process: it starts
// the dispatcher, registers the root monitors and keeps them alive.
//
// A faulted root is removed by the dispatcher and comes back on the
// next respawn tick with fresh state. While a root is live the
// re-offer is refused by name and changes nothing.
type Manager struct {
	dispatcher *engine.Dispatcher
	interval   time.Duration
	logger     Logger

	// roots builds the catalogue's long-running monitors. Held as a
	// function so every offer registers fresh state.
	roots func() []engine.Sequence

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	closeErr error
}

// New validates options and builds the rule catalogue from them. The
// bus is not opened until Start.
func New(opts Options) (*Manager, error) {
	if opts.Dispatcher == nil {
		return nil, ErrNoDispatcher
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	interval := opts.RespawnInterval
	if interval <= 0 {
		interval = defaultRespawnInterval
	}

	ropts := opts.Rules
	ropts.Spawner = opts.Dispatcher
	r, err := rules.New(ropts)
	if err != nil {
		return nil, fmt.Errorf("building rules: %w", err)
	}

	return &Manager{
		dispatcher: opts.Dispatcher,
		interval:   interval,
		logger:     logger,
		roots:      r.Roots,
		done:       make(chan struct{}),
	}, nil
}

// Start opens the bus through the dispatcher, registers the root
// monitors and starts the respawn loop. A bus adapter failure aborts
// startup.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.dispatcher.Init(ctx); err != nil {
		return fmt.Errorf("starting dispatcher: %w", err)
	}

	m.offerRoots()

	m.wg.Add(1)
	go m.respawnLoop(ctx)

	m.logger.Info("automation running", "respawn_interval", m.interval.String())
	return nil
}

// Stop halts the respawn loop and closes the dispatcher, which closes
// the bus adapter. Safe to call multiple times; later calls return
// the first result.
func (m *Manager) Stop() error {
	m.stopOnce.Do(func() {
		close(m.done)
		m.wg.Wait()
		m.closeErr = m.dispatcher.Close()
		m.logger.Info("automation stopped")
	})
	return m.closeErr
}

// offerRoots registers every root monitor not already live. A
// successful offer at startup is first registration; later ones mean
// a root faulted and has been restarted.
func (m *Manager) offerRoots() {
	for _, s := range m.roots() {
		if m.dispatcher.AddSequence(s) {
			m.logger.Info("root monitor registered", "sequence", s.Name())
		}
	}
}

func (m *Manager) respawnLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			m.offerRoots()
		}
	}
}
