package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Status is the lifecycle state of a managed process.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
)

const (
	// readChunkSize is the read size for streams drained without a
	// line callback.
	readChunkSize = 4096

	// maxLineLength bounds a single line on a line-scanned stream.
	maxLineLength = 256 * 1024

	// stopLineGrace is how long Stop waits for a child to act on its
	// StopLine before falling back to signals.
	stopLineGrace = 2 * time.Second
)

// Logger is the consumer-side logging seam for the manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config describes one supervised child process.
type Config struct {
	// Name identifies the process in logs and stats.
	Name string

	// Binary is the executable path, Args its argument list.
	Binary string
	Args   []string

	// Env entries (key=value) are appended to the parent environment.
	// Leave nil to inherit unchanged.
	Env []string

	// WorkDir, when set, is the child's working directory.
	WorkDir string

	// RestartOnFailure relaunches the process after an unexpected
	// exit.
	RestartOnFailure bool

	// RestartDelay seeds the backoff between restart attempts; each
	// attempt doubles it up to MaxRestartDelay.
	RestartDelay    time.Duration
	MaxRestartDelay time.Duration

	// StableThreshold is the uptime after which the attempt counter
	// resets. A child that crashes faster than this burns through
	// MaxRestartAttempts; one that held steady gets a clean slate.
	StableThreshold time.Duration

	// MaxRestartAttempts caps consecutive relaunches, 0 = unlimited.
	MaxRestartAttempts int

	// GracefulTimeout is the SIGTERM grace before SIGKILL.
	GracefulTimeout time.Duration

	// StopLine, when set, is written to the child's stdin first when
	// Stop is called, letting line-oriented children quit on their own
	// before the process group is signalled.
	StopLine string

	// OnStdoutLine, when set, receives every stdout line. Without it
	// stdout is drained to debug logging.
	OnStdoutLine func(line string)

	// OnStart fires after each successful launch, restarts included.
	OnStart func()

	// OnStop fires when the child stops: nil for a requested stop,
	// the exit error otherwise.
	OnStop func(err error)
}

// DefaultConfig fills a Config for typical long-running daemons:
// restart on failure with a 5s-to-5m backoff, ten attempts, a two
// minute stable window and ten seconds of SIGTERM grace.
func DefaultConfig(name, binary string, args []string) Config {
	return Config{
		Name:               name,
		Binary:             binary,
		Args:               args,
		RestartOnFailure:   true,
		RestartDelay:       5 * time.Second,
		MaxRestartDelay:    5 * time.Minute,
		StableThreshold:    2 * time.Minute,
		MaxRestartAttempts: 10,
		GracefulTimeout:    10 * time.Second,
	}
}

// Manager supervises a single child process.
type Manager struct {
	config Config
	logger Logger

	mu            sync.RWMutex
	cmd           *exec.Cmd
	stdin         io.WriteCloser
	status        Status
	restartCount  int
	lastError     error
	startTime     time.Time
	stopRequested bool

	// done closes when the supervise goroutine exits; stop closes when
	// Stop is called, waking a pending restart backoff.
	done chan struct{}
	stop chan struct{}
}

// NewManager builds a Manager, filling zero timing fields from the
// defaults.
func NewManager(cfg Config) *Manager {
	if cfg.RestartDelay == 0 {
		cfg.RestartDelay = 5 * time.Second
	}
	if cfg.MaxRestartDelay == 0 {
		cfg.MaxRestartDelay = 5 * time.Minute
	}
	if cfg.StableThreshold == 0 {
		cfg.StableThreshold = 2 * time.Minute
	}
	if cfg.GracefulTimeout == 0 {
		cfg.GracefulTimeout = 10 * time.Second
	}

	return &Manager{
		config: cfg,
		logger: noopLogger{},
		status: StatusStopped,
	}
}

// SetLogger replaces the logger. Call before Start.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Start launches the child and begins supervising it. A child that
// exits unexpectedly is restarted per the Config; a failed launch
// leaves the manager in StatusFailed.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.status == StatusRunning || m.status == StatusStarting {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", m.config.Name, ErrAlreadyRunning)
	}
	m.status = StatusStarting
	m.stopRequested = false
	m.done = make(chan struct{})
	m.stop = make(chan struct{})
	m.mu.Unlock()

	if err := m.launch(ctx); err != nil {
		m.mu.Lock()
		m.status = StatusFailed
		m.lastError = err
		close(m.done)
		m.mu.Unlock()
		return err
	}

	go m.supervise(ctx)

	return nil
}

// Stop requests shutdown: SIGTERM to the process group, SIGKILL after
// the graceful timeout. It also cancels any restart pending in its
// backoff, and waits for supervision to wind down before returning.
func (m *Manager) Stop() error {
	m.mu.Lock()
	alreadyRequested := m.stopRequested
	m.stopRequested = true
	if m.stop != nil && !alreadyRequested {
		close(m.stop)
	}
	if m.status != StatusRunning && m.status != StatusStarting {
		done := m.done
		m.mu.Unlock()
		// A restart may be pending. Closing stop above unblocks it
		// and the supervise goroutine exits without relaunching.
		if done != nil {
			<-done
		}
		return nil
	}
	cmd := m.cmd
	done := m.done
	m.mu.Unlock()

	if cmd == nil || cmd.Process == nil || done == nil {
		return nil
	}

	// stopRequested is already set, so a child that quits on the stop
	// line is treated as a requested shutdown, not a crash.
	if m.config.StopLine != "" {
		if err := m.WriteLine(m.config.StopLine); err == nil {
			select {
			case <-done:
				m.logger.Info("process quit on stop command", "name", m.config.Name)
				return nil
			case <-time.After(stopLineGrace):
				m.logger.Debug("stop command unanswered, signalling", "name", m.config.Name)
			}
		}
	}

	pid := cmd.Process.Pid
	m.logger.Info("signalling process to stop", "name", m.config.Name, "pid", pid)

	// Negative PID signals the whole group created via Setpgid, so
	// grandchildren go down with the child.
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		m.logger.Warn("SIGTERM to process group failed", "name", m.config.Name, "error", err)
	}

	select {
	case <-done:
		m.logger.Info("process exited cleanly", "name", m.config.Name)
		return nil
	case <-time.After(m.config.GracefulTimeout):
		m.logger.Warn("graceful stop timed out, sending SIGKILL",
			"name", m.config.Name,
			"timeout", m.config.GracefulTimeout,
		)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("killing process group %s: %w", m.config.Name, err)
	}

	<-done
	m.logger.Info("process force killed", "name", m.config.Name)

	return nil
}

// WriteLine writes one line to the child's stdin, appending a newline.
// Returns ErrNotRunning when there is no process to write to.
func (m *Manager) WriteLine(line string) error {
	m.mu.RLock()
	stdin := m.stdin
	status := m.status
	m.mu.RUnlock()

	if status != StatusRunning || stdin == nil {
		return fmt.Errorf("%s: %w", m.config.Name, ErrNotRunning)
	}
	if _, err := io.WriteString(stdin, line+"\n"); err != nil {
		return fmt.Errorf("process: writing to %s stdin: %w", m.config.Name, err)
	}
	return nil
}

// Status returns the current lifecycle state.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// IsRunning reports whether the child is up.
func (m *Manager) IsRunning() bool {
	return m.Status() == StatusRunning
}

// LastError returns the most recent launch or exit error.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

// RestartCount returns how many relaunches the supervisor has done.
func (m *Manager) RestartCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.restartCount
}

// Uptime returns how long the child has been up, 0 when it is not.
func (m *Manager) Uptime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status != StatusRunning {
		return 0
	}
	return time.Since(m.startTime)
}

// PID returns the child's process ID, 0 when there is none.
func (m *Manager) PID() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cmd != nil && m.cmd.Process != nil {
		return m.cmd.Process.Pid
	}
	return 0
}

// Stats is a point-in-time snapshot of a managed process.
type Stats struct {
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	PID          int           `json:"pid,omitempty"`
	Uptime       time.Duration `json:"uptime,omitempty"`
	RestartCount int           `json:"restart_count"`
	LastError    string        `json:"last_error,omitempty"`
}

// Stats snapshots the process state for health reporting.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		Name:         m.config.Name,
		Status:       m.status,
		RestartCount: m.restartCount,
	}
	if m.cmd != nil && m.cmd.Process != nil {
		stats.PID = m.cmd.Process.Pid
	}
	if m.status == StatusRunning {
		stats.Uptime = time.Since(m.startTime)
	}
	if m.lastError != nil {
		stats.LastError = m.lastError.Error()
	}
	return stats
}

// launch starts the child once and wires its streams.
func (m *Manager) launch(ctx context.Context) error {
	m.logger.Info("launching process",
		"name", m.config.Name,
		"binary", m.config.Binary,
		"args", m.config.Args,
	)

	cmd := exec.CommandContext(ctx, m.config.Binary, m.config.Args...)

	// Own process group so Stop can signal children and grandchildren
	// in one go.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if m.config.Env != nil {
		cmd.Env = append(os.Environ(), m.config.Env...)
	}
	if m.config.WorkDir != "" {
		cmd.Dir = m.config.WorkDir
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("opening stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("opening stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("opening stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launching %s: %w", m.config.Name, err)
	}

	m.mu.Lock()
	m.cmd = cmd
	m.stdin = stdin
	m.status = StatusRunning
	m.startTime = time.Now()
	m.mu.Unlock()

	if m.config.OnStdoutLine != nil {
		go m.pumpLines(stdout)
	} else {
		go m.drainOutput("stdout", stdout)
	}
	go m.drainOutput("stderr", stderr)

	m.logger.Info("process up",
		"name", m.config.Name,
		"pid", cmd.Process.Pid,
	)

	if m.config.OnStart != nil {
		m.config.OnStart()
	}

	return nil
}

// pumpLines feeds stdout to the line callback, one line at a time.
func (m *Manager) pumpLines(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, readChunkSize), maxLineLength)
	for scanner.Scan() {
		m.config.OnStdoutLine(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		m.logger.Debug("stdout stream ended",
			"name", m.config.Name,
			"error", err,
		)
	}
}

// drainOutput reads a stream to EOF, logging chunks at debug.
func (m *Manager) drainOutput(stream string, r io.Reader) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			m.logger.Debug("child output",
				"name", m.config.Name,
				"stream", stream,
				"output", string(buf[:n]),
			)
		}
		if err != nil {
			if err != io.EOF {
				m.logger.Debug("output stream read failed",
					"name", m.config.Name,
					"stream", stream,
				)
			}
			return
		}
	}
}

// supervise waits on child exits and drives the restart loop until the
// child stops on request, restarting is exhausted, or the context ends.
func (m *Manager) supervise(ctx context.Context) {
	defer close(m.done)

	for {
		m.mu.RLock()
		cmd := m.cmd
		started := m.startTime
		m.mu.RUnlock()

		if cmd == nil {
			return
		}

		err := cmd.Wait()
		ranFor := time.Since(started)

		m.mu.Lock()
		stopRequested := m.stopRequested
		m.stdin = nil
		m.mu.Unlock()

		if stopRequested {
			m.logger.Info("process shut down on request", "name", m.config.Name)
			m.mu.Lock()
			m.status = StatusStopped
			m.mu.Unlock()
			if m.config.OnStop != nil {
				m.config.OnStop(nil)
			}
			return
		}

		m.logger.Warn("process died unexpectedly",
			"name", m.config.Name,
			"error", err,
			"uptime", ranFor.String(),
		)

		m.mu.Lock()
		m.lastError = err
		m.status = StatusFailed
		if ranFor >= m.config.StableThreshold {
			m.restartCount = 0
		}
		m.mu.Unlock()

		if m.config.OnStop != nil {
			m.config.OnStop(err)
		}

		if !m.config.RestartOnFailure {
			m.logger.Info("restart disabled, staying down", "name", m.config.Name)
			return
		}
		if !IsRecoverable(err) {
			m.logger.Error("exit error is not recoverable, staying down",
				"name", m.config.Name,
				"error", err,
			)
			return
		}

		if !m.relaunch(ctx) {
			return
		}
	}
}

// relaunch tries to bring the child back up, backing off between
// attempts. Returns false when the manager gives up or is stopped.
func (m *Manager) relaunch(ctx context.Context) bool {
	m.mu.RLock()
	stop := m.stop
	m.mu.RUnlock()

	for {
		m.mu.Lock()
		m.restartCount++
		attempt := m.restartCount
		m.mu.Unlock()

		if m.config.MaxRestartAttempts > 0 && attempt > m.config.MaxRestartAttempts {
			m.logger.Error("restart attempts exhausted",
				"name", m.config.Name,
				"attempts", attempt-1,
			)
			return false
		}

		delay := m.backoffDelay(attempt)
		m.logger.Info("relaunching process",
			"name", m.config.Name,
			"attempt", attempt,
			"delay", delay.String(),
		)

		select {
		case <-ctx.Done():
			m.logger.Info("context cancelled, abandoning relaunch", "name", m.config.Name)
			return false
		case <-stop:
			m.logger.Info("stop requested, abandoning relaunch", "name", m.config.Name)
			return false
		case <-time.After(delay):
		}

		m.mu.RLock()
		stopRequested := m.stopRequested
		m.mu.RUnlock()
		if stopRequested {
			return false
		}

		if err := m.launch(ctx); err != nil {
			m.logger.Error("relaunch failed",
				"name", m.config.Name,
				"error", err,
			)
			m.mu.Lock()
			m.lastError = err
			m.mu.Unlock()
			continue
		}
		return true
	}
}

// backoffDelay doubles RestartDelay per attempt up to MaxRestartDelay.
func (m *Manager) backoffDelay(attempt int) time.Duration {
	delay := m.config.RestartDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= m.config.MaxRestartDelay {
			return m.config.MaxRestartDelay
		}
	}
	if delay > m.config.MaxRestartDelay {
		return m.config.MaxRestartDelay
	}
	return delay
}
