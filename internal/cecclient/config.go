package cecclient

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// libCEC log mask bits, combined into the -d argument.
const (
	LogError   = 1
	LogWarning = 2
	LogNotice  = 4
	LogTraffic = 8
	LogDebug   = 16
)

// maxOSDNameLength is the longest device name libCEC will accept.
const maxOSDNameLength = 13

// Config holds the configuration for the cec-client subprocess.
type Config struct {
	// Binary is the path to the cec-client executable.
	// Default: "/usr/bin/cec-client"
	Binary string

	// Device is the CEC adapter port to open (e.g. "/dev/ttyACM0", or
	// "RPI" for the Raspberry Pi's built-in adapter). If empty,
	// cec-client autodetects the first adapter.
	Device string

	// OSDName is the name this daemon announces on the CEC bus.
	// At most 13 characters. Default: "cecd"
	OSDName string

	// LogLevel is the libCEC log mask (-d flag). Traffic output
	// (bit 8) must be included or no frames will be seen.
	// Default: 15 (errors, warnings, notices and traffic)
	LogLevel int

	// ReadyTimeout is how long to wait for cec-client to open the
	// adapter and register on the bus.
	// Default: 30s
	ReadyTimeout time.Duration

	// RestartOnFailure enables automatic restart if cec-client crashes.
	// Default: true
	RestartOnFailure bool

	// RestartDelay is the base delay before restarting.
	// Default: 5s
	RestartDelay time.Duration

	// MaxRestartAttempts limits consecutive restart attempts.
	// 0 means unlimited.
	// Default: 10
	MaxRestartAttempts int

	// GracefulTimeout is how long to wait for graceful shutdown.
	// Default: 10s
	GracefulTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Binary:             "/usr/bin/cec-client",
		OSDName:            "cecd",
		LogLevel:           LogError | LogWarning | LogNotice | LogTraffic,
		ReadyTimeout:       30 * time.Second,
		RestartOnFailure:   true,
		RestartDelay:       5 * time.Second,
		MaxRestartAttempts: 10,
		GracefulTimeout:    10 * time.Second,
	}
}

// devicePattern allows the characters that appear in adapter port
// names. Anything else is rejected before reaching the command line.
var devicePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-/.:]+$`)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Binary == "" {
		return fmt.Errorf("cec-client binary path is required")
	}

	if c.OSDName == "" {
		return fmt.Errorf("osd_name is required")
	}
	if len(c.OSDName) > maxOSDNameLength {
		return fmt.Errorf("osd_name %q exceeds %d characters", c.OSDName, maxOSDNameLength)
	}

	if c.LogLevel < 1 || c.LogLevel > 31 {
		return fmt.Errorf("log_level must be between 1 and 31")
	}
	if c.LogLevel&LogTraffic == 0 {
		return fmt.Errorf("log_level must include traffic output (bit %d)", LogTraffic)
	}

	if c.Device != "" && !devicePattern.MatchString(c.Device) {
		return fmt.Errorf("device %q contains invalid characters", c.Device)
	}

	return nil
}

// BuildArgs constructs the command-line arguments for cec-client.
func (c *Config) BuildArgs() []string {
	var args []string

	// Register as a recording device, so the daemon takes logical
	// address 1 on the bus.
	args = append(args, "-t", "r")

	// Name shown in on-screen device lists (-o)
	args = append(args, "-o", c.OSDName)

	// Log mask (-d) - must include traffic or nothing is heard
	args = append(args, "-d", strconv.Itoa(c.LogLevel))

	// Adapter port, autodetected when absent
	if c.Device != "" {
		args = append(args, c.Device)
	}

	return args
}
