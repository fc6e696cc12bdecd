package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/calverley/cecd/internal/cec"
)

// Options configures a Dispatcher.
type Options struct {
	// Bus is the adapter used for all inbound and outbound traffic.
	// Required.
	Bus Bus

	// Self is the logical address stamped as initiator on frames built
	// by Transmit. Zero means AddrRecorder1, the address this system
	// claims on the bus.
	Self cec.LogicalAddr

	// Logger receives lifecycle, fault and traffic logs. Optional.
	Logger Logger

	// TickInterval enables the synthetic tick loop when non-zero.
	// Ticks resume every live sequence with a nil frame so time-based
	// logic keeps moving on a quiet bus.
	TickInterval time.Duration
}

// Dispatcher owns the live sequence set and funnels every inbound
// event and outbound frame through one serialisation point.
//
// Thread Safety: all exported methods are safe for concurrent use
// except Spawn, which is reserved for calls made during a resumption,
// where the dispatch lock is already held.
type Dispatcher struct {
	bus          Bus
	self         cec.LogicalAddr
	logger       Logger
	tickInterval time.Duration

	// mu serialises dispatch passes, ticks, registration and close.
	// Event N+1 is never processed before event N finishes.
	mu        sync.Mutex
	observers []Observer
	live      []*liveSequence
	pending   []*liveSequence
	started   bool

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	// Traffic counters
	framesIn  atomic.Uint64
	framesOut atomic.Uint64
	malformed atomic.Uint64
	faults    atomic.Uint64
}

// liveSequence pairs a sequence with its removal mark. Removal is
// deferred: a pass marks entries done and compacts afterwards, so
// iteration order stays stable while sequences terminate mid-pass.
type liveSequence struct {
	seq     Sequence
	name    string
	done    bool
	faulted bool
}

// New creates a dispatcher. The bus is not opened until Init.
func New(opts Options) (*Dispatcher, error) {
	if opts.Bus == nil {
		return nil, ErrNoBus
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	self := opts.Self
	if self == 0 {
		self = cec.AddrRecorder1
	}

	return &Dispatcher{
		bus:          opts.Bus,
		self:         self,
		logger:       logger,
		tickInterval: opts.TickInterval,
		done:         make(chan struct{}),
	}, nil
}

// Init opens the bus adapter with the dispatcher's receive callback
// and, when configured, starts the tick loop. An adapter error aborts
// startup; there is nothing to schedule without a bus.
func (d *Dispatcher) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return nil
	}

	if err := d.bus.Start(ctx, d.handleRaw); err != nil {
		return fmt.Errorf("engine: starting bus adapter: %w", err)
	}
	d.started = true

	if d.tickInterval > 0 {
		d.wg.Add(1)
		go d.tickLoop()
	}

	d.logger.Info("dispatcher started", "self", d.self.String(), "tick_interval", d.tickInterval.String())
	return nil
}

// Close stops the tick loop and closes the bus adapter.
// Safe to call multiple times (uses sync.Once).
func (d *Dispatcher) Close() error {
	var err error
	d.closeOnce.Do(func() {
		close(d.done)
		d.wg.Wait()

		err = d.bus.Close()

		d.mu.Lock()
		remaining := len(d.live)
		d.mu.Unlock()
		d.logger.Info("dispatcher stopped", "live_sequences", remaining)
	})
	return err
}

// AddObserver registers a passive callback invoked with every parsed
// inbound frame, in registration order. Observers never see synthetic
// ticks. A panicking observer is logged and skipped for that frame;
// it stays registered.
func (d *Dispatcher) AddObserver(fn Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, fn)
}

// AddSequence registers a sequence and resumes it once immediately
// with no input. Frames produced by that first resumption are
// transmitted even if it terminates on the spot, in which case the
// sequence never joins the live set. A fault transmits nothing.
//
// Returns false when a live sequence already carries the same name
// (duplicate suppression) or the first resumption faulted.
//
// Safe to call from any goroutine; serialised against dispatch
// passes. From inside a Step use Spawn instead: AddSequence would
// deadlock on the dispatch lock.
func (d *Dispatcher) AddSequence(s Sequence) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	ls, ok := d.spawnLocked(s)
	if !ok {
		return false
	}
	d.flushPendingLocked()
	d.compactLocked()
	return !ls.faulted
}

// Spawn adds a child sequence from within a resumption (fan-out).
// The child joins the live set at once, but its first resumption is
// deferred until the spawning resumption's outputs have been
// transmitted, so the child's first outputs follow its parent's in
// the transmit log. The child is not resumed again until the next
// event. Returns false when the name is already live.
//
// Calling Spawn anywhere but inside a Step races the dispatcher; use
// AddSequence there.
func (d *Dispatcher) Spawn(s Sequence) bool {
	_, ok := d.spawnLocked(s)
	return ok
}

// Transmit builds a frame with the dispatcher's own bus identity as
// initiator and sends it. Sequences normally return their outputs
// from Step and let the dispatcher transmit them; Transmit is the
// escape hatch for sends outside that channel and is safe from within
// a resumption.
func (d *Dispatcher) Transmit(dst cec.LogicalAddr, op cec.Opcode, params ...byte) bool {
	return d.send(cec.Build(d.self, dst, op, params...))
}

// Tick feeds one synthetic resumption through the dispatch path.
// Sequences see a nil frame; observers are not invoked. The tick loop
// calls this on its interval, and tests call it to drive time-based
// logic on a quiet bus.
func (d *Dispatcher) Tick() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dispatchLocked(nil)
}

// Live returns the names of live sequences in registration order.
func (d *Dispatcher) Live() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	names := make([]string, 0, len(d.live))
	for _, ls := range d.live {
		if !ls.done {
			names = append(names, ls.name)
		}
	}
	return names
}

// Stats is a snapshot of dispatcher traffic counters.
type Stats struct {
	FramesIn  uint64 `json:"frames_in"`
	FramesOut uint64 `json:"frames_out"`
	Malformed uint64 `json:"malformed"`
	Faults    uint64 `json:"faults"`
}

// Stats returns current traffic counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		FramesIn:  d.framesIn.Load(),
		FramesOut: d.framesOut.Load(),
		Malformed: d.malformed.Load(),
		Faults:    d.faults.Load(),
	}
}

// handleRaw is the bus receive callback: parse, then one full
// dispatch pass under the lock.
func (d *Dispatcher) handleRaw(raw string) {
	f, err := cec.Parse(raw)
	if err != nil {
		d.malformed.Add(1)
		d.logger.Warn("dropping malformed frame", "raw", raw, "error", err)
		return
	}
	d.framesIn.Add(1)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.dispatchLocked(&f)
}

// tickLoop drives synthetic resumptions until Close.
func (d *Dispatcher) tickLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
			d.Tick()
		}
	}
}

// dispatchLocked runs one pass: observers (real frames only), then
// every sequence alive at the start of the pass. Children spawned
// during a resumption sit beyond the captured length, get their first
// resumption straight after their spawner, and then wait for the next
// event.
func (d *Dispatcher) dispatchLocked(f *cec.Frame) {
	d.flushPendingLocked()

	if f != nil {
		for _, observe := range d.observers {
			d.notifyObserver(observe, *f)
		}
	}

	count := len(d.live)
	for i := 0; i < count; i++ {
		d.resumeLocked(d.live[i], f)
		d.flushPendingLocked()
	}
	d.compactLocked()
}

// notifyObserver isolates observer panics from the pass.
func (d *Dispatcher) notifyObserver(observe Observer, f cec.Frame) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("observer panicked", "panic", r, "frame", f.String())
		}
	}()
	observe(f)
}

// resumeLocked steps one live sequence and applies the outcome.
func (d *Dispatcher) resumeLocked(ls *liveSequence, f *cec.Frame) {
	if ls.done {
		return
	}

	outs, sig, err := stepSequence(ls.seq, f)
	if err != nil {
		d.faults.Add(1)
		d.logger.Error("sequence faulted", "sequence", ls.name, "error", err)
		ls.done = true
		ls.faulted = true
		return
	}

	for _, out := range outs {
		d.send(out)
	}
	if sig == Terminate {
		d.logger.Debug("sequence finished", "sequence", ls.name)
		ls.done = true
	}
}

// spawnLocked checks duplicate names and queues the sequence for its
// first resumption. Callers hold d.mu.
func (d *Dispatcher) spawnLocked(s Sequence) (*liveSequence, bool) {
	name := s.Name()
	for _, ls := range d.live {
		if !ls.done && ls.name == name {
			d.logger.Debug("sequence already live, skipping", "sequence", name)
			return nil, false
		}
	}

	ls := &liveSequence{seq: s, name: name}
	d.live = append(d.live, ls)
	d.pending = append(d.pending, ls)
	return ls, true
}

// flushPendingLocked runs first resumptions for queued sequences in
// spawn order. A first resumption that spawns children extends the
// queue; the loop drains it. Entries that terminate or fault straight
// away are marked done and swept by the next compaction.
func (d *Dispatcher) flushPendingLocked() {
	for len(d.pending) > 0 {
		ls := d.pending[0]
		d.pending = d.pending[1:]

		outs, sig, err := stepSequence(ls.seq, nil)
		if err != nil {
			d.faults.Add(1)
			d.logger.Error("sequence faulted on first resumption", "sequence", ls.name, "error", err)
			ls.done = true
			ls.faulted = true
			continue
		}

		for _, out := range outs {
			d.send(out)
		}
		if sig == Terminate {
			d.logger.Debug("sequence finished on first resumption", "sequence", ls.name)
			ls.done = true
			continue
		}
		d.logger.Debug("sequence live", "sequence", ls.name)
	}
}

// compactLocked drops entries marked done, preserving order. Only
// called between passes; mid-pass indexes stay valid.
func (d *Dispatcher) compactLocked() {
	kept := d.live[:0]
	for _, ls := range d.live {
		if !ls.done {
			kept = append(kept, ls)
		}
	}
	for i := len(kept); i < len(d.live); i++ {
		d.live[i] = nil
	}
	d.live = kept
}

// send pushes one frame to the bus. Transmit failure is an expected
// bus condition: logged at debug, reported as false, never escalated.
func (d *Dispatcher) send(f cec.Frame) bool {
	if err := d.bus.Transmit(f); err != nil {
		d.logger.Debug("transmit failed", "frame", f.String(), "error", err)
		return false
	}
	d.framesOut.Add(1)
	return true
}

// stepSequence resumes a sequence, converting a panic into an error
// so one broken rule cannot take down the dispatcher.
func stepSequence(s Sequence, f *cec.Frame) (outs []cec.Frame, sig Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			outs, sig = nil, Continue
			err = fmt.Errorf("engine: sequence panic: %v", r)
		}
	}()
	return s.Step(f)
}
