package rules

import (
	"time"

	"github.com/calverley/cecd/internal/cec"
	"github.com/calverley/cecd/internal/engine"
)

// Logger is the minimal logging interface this package needs.
// Compatible with *logging.Logger from internal/infrastructure/logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output when no logger is provided.
type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// Spawner registers a child sequence from within a resumption.
// *engine.Dispatcher satisfies it.
type Spawner interface {
	Spawn(s engine.Sequence) bool
}

// Devices names the bus addresses automation acts on.
type Devices struct {
	// Local is stamped as initiator on every frame the rules build.
	Local cec.LogicalAddr

	TV       cec.LogicalAddr
	Soundbar cec.LogicalAddr
	Console  cec.LogicalAddr

	// DonglePath is the physical address the stream is routed to when
	// the console goes offline.
	DonglePath cec.PhysicalAddr
}

// Tuning carries the timers and thresholds the monitors run on.
// Zero fields take the defaults below.
type Tuning struct {
	// TVPoll is the cadence of TV power-status queries.
	TVPoll time.Duration

	// ConsolePoll is the cadence of console power-status queries while
	// the console is believed on.
	ConsolePoll time.Duration

	// ResponseWindow is how long a query waits for its reply before
	// counting as a miss.
	ResponseWindow time.Duration

	// OfflineThreshold is the number of consecutive misses after which
	// the console is declared offline.
	OfflineThreshold int

	// AudioOnBudget bounds the ensure-audio-on sequence.
	AudioOnBudget time.Duration

	// VolumeBudget bounds the volume-ramp sequence.
	VolumeBudget time.Duration
}

// Volume holds the target levels for the volume-ramp rule, in device
// units (0-127).
type Volume struct {
	// Active is the level set when the console comes online.
	Active uint8

	// Idle is the level set when the console goes offline.
	Idle uint8

	// Step is how many units one volume key press moves the device.
	Step uint8
}

// QuietHours is an hour-of-day window, inclusive of Start, exclusive
// of End. A window whose start is later than its end wraps past
// midnight. Start == End disables the window.
type QuietHours struct {
	Start int
	End   int
}

// Contains reports whether t falls inside the window.
func (q QuietHours) Contains(t time.Time) bool {
	if q.Start == q.End {
		return false
	}
	h := t.Hour()
	if q.Start < q.End {
		return h >= q.Start && h < q.End
	}
	return h >= q.Start || h < q.End
}

const (
	defaultTVPoll           = 500 * time.Millisecond
	defaultConsolePoll      = 5 * time.Second
	defaultResponseWindow   = 2 * time.Second
	defaultOfflineThreshold = 3
	defaultAudioOnBudget    = 5 * time.Second
	defaultVolumeBudget     = 60 * time.Second
	defaultVolumeStep       = 2
)

// Options configures a rule set.
type Options struct {
	// Spawner lets monitors fan out child sequences mid-resumption.
	// Required.
	Spawner Spawner

	Devices Devices
	Tuning  Tuning
	Volume  Volume
	Quiet   QuietHours

	// Clock supplies the time for polls, response windows and quiet
	// hours. Nil means time.Now.
	Clock engine.Clock

	// Logger receives rule transition logs. Optional.
	Logger Logger
}

// Rules builds the sequence catalogue from one shared configuration.
type Rules struct {
	spawner Spawner
	devices Devices
	tuning  Tuning
	volume  Volume
	quiet   QuietHours
	now     engine.Clock
	logger  Logger
}

// New validates options, applies defaults and returns the rule set.
func New(opts Options) (*Rules, error) {
	if opts.Spawner == nil {
		return nil, ErrNoSpawner
	}

	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	tuning := opts.Tuning
	if tuning.TVPoll <= 0 {
		tuning.TVPoll = defaultTVPoll
	}
	if tuning.ConsolePoll <= 0 {
		tuning.ConsolePoll = defaultConsolePoll
	}
	if tuning.ResponseWindow <= 0 {
		tuning.ResponseWindow = defaultResponseWindow
	}
	if tuning.OfflineThreshold <= 0 {
		tuning.OfflineThreshold = defaultOfflineThreshold
	}
	if tuning.AudioOnBudget <= 0 {
		tuning.AudioOnBudget = defaultAudioOnBudget
	}
	if tuning.VolumeBudget <= 0 {
		tuning.VolumeBudget = defaultVolumeBudget
	}

	volume := opts.Volume
	if volume.Step == 0 {
		volume.Step = defaultVolumeStep
	}

	return &Rules{
		spawner: opts.Spawner,
		devices: opts.Devices,
		tuning:  tuning,
		volume:  volume,
		quiet:   opts.Quiet,
		now:     now,
		logger:  logger,
	}, nil
}

// Roots returns the long-running monitors registered at startup, in
// the order they join the dispatcher.
func (r *Rules) Roots() []engine.Sequence {
	return []engine.Sequence{r.ConsoleMonitor(), r.AudioFollowsTV()}
}

// powered reports whether a power status counts as on. Devices heading
// to on are treated as on so transitions fire once, not twice.
func powered(st cec.PowerStatus) bool {
	return st == cec.PowerOn || st == cec.PowerToOn
}
