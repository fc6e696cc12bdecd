package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/calverley/cecd/internal/cec"
)

// Config is the root configuration structure for cecd.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Bus        BusConfig        `yaml:"bus"`
	Devices    DevicesConfig    `yaml:"devices"`
	Automation AutomationConfig `yaml:"automation"`
	Volume     VolumeConfig     `yaml:"volume"`
	QuietHours QuietHoursConfig `yaml:"quiet_hours"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Journal    JournalConfig    `yaml:"journal"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	Name string `yaml:"name"`

	// Timezone is the IANA zone quiet hours are evaluated in
	// (e.g. "Europe/London"). "Local" uses the system zone.
	Timezone string `yaml:"timezone"`
}

// BusConfig configures the supervised cec-client subprocess. It is
// validated when the adapter is constructed.
type BusConfig struct {
	// Binary is the path to the cec-client executable.
	Binary string `yaml:"binary"`

	// Device is the CEC adapter port (e.g. "/dev/ttyACM0", or "RPI"
	// for the Raspberry Pi's built-in adapter). Empty autodetects the
	// first adapter.
	Device string `yaml:"device,omitempty"`

	// OSDName is the name announced on the CEC bus. At most 13
	// characters.
	OSDName string `yaml:"osd_name"`

	// LogLevel is the libCEC log mask (-d flag). Traffic output
	// (bit 8) must be included or no frames will be seen.
	LogLevel int `yaml:"log_level"`

	// ReadyTimeoutSeconds is how long to wait for cec-client to open
	// the adapter and register on the bus.
	ReadyTimeoutSeconds int `yaml:"ready_timeout_seconds"`

	// RestartOnFailure enables automatic restart if cec-client crashes.
	RestartOnFailure bool `yaml:"restart_on_failure"`

	// RestartDelaySeconds is the base delay before restarting.
	RestartDelaySeconds int `yaml:"restart_delay_seconds"`

	// MaxRestartAttempts limits consecutive restart attempts.
	// 0 means unlimited.
	MaxRestartAttempts int `yaml:"max_restart_attempts"`

	// GracefulTimeoutSeconds is how long to wait for cec-client to
	// exit on its own before it is killed.
	GracefulTimeoutSeconds int `yaml:"graceful_timeout_seconds"`
}

// DevicesConfig maps the devices this daemon watches to their CEC
// logical addresses (0-15).
type DevicesConfig struct {
	// Local is the daemon's own address. cec-client registers as a
	// recording device, which claims address 1.
	Local int `yaml:"local"`

	// TV is the display, conventionally address 0.
	TV int `yaml:"tv"`

	// Console is the games console being monitored.
	Console int `yaml:"console"`

	// Soundbar is the audio system that follows the TV.
	Soundbar int `yaml:"soundbar"`

	// DonglePath is the HDMI physical address of the streaming dongle
	// the TV is routed to when the console goes offline.
	// Format: dotted quad, e.g. "3.0.0.0"
	DonglePath string `yaml:"dongle_path"`
}

// DongleAddr returns the parsed dongle physical address.
func (d *DevicesConfig) DongleAddr() (cec.PhysicalAddr, error) {
	return cec.ParsePhysicalAddress(d.DonglePath)
}

// AutomationConfig contains the timing knobs for the rule catalogue.
type AutomationConfig struct {
	// TickMs is the synthetic tick interval. Ticks advance timers in
	// monitors while the bus is quiet, so this must be no coarser than
	// the finest poll interval.
	TickMs int `yaml:"tick_ms"`

	// TVPollMs is how often the TV's power status is queried.
	TVPollMs int `yaml:"tv_poll_ms"`

	// ConsolePollMs is how often the console is queried while on.
	ConsolePollMs int `yaml:"console_poll_ms"`

	// ResponseWindowMs is how long a query may go unanswered before it
	// counts as a miss.
	ResponseWindowMs int `yaml:"response_window_ms"`

	// OfflineThreshold is the number of consecutive misses after which
	// the console is treated as off.
	OfflineThreshold int `yaml:"offline_threshold"`

	// AudioOnBudgetSeconds bounds the ensure-audio-on sequence.
	AudioOnBudgetSeconds int `yaml:"audio_on_budget_seconds"`

	// VolumeBudgetSeconds bounds a volume ramp.
	VolumeBudgetSeconds int `yaml:"volume_budget_seconds"`

	// RespawnSeconds is how often the daemon re-adds its root
	// sequences. Re-adding is a no-op while they are alive; it brings
	// them back if one faulted.
	RespawnSeconds int `yaml:"respawn_seconds"`
}

// TickInterval returns the synthetic tick interval as a Duration.
func (a *AutomationConfig) TickInterval() time.Duration {
	return time.Duration(a.TickMs) * time.Millisecond
}

// TVPoll returns the TV poll interval as a Duration.
func (a *AutomationConfig) TVPoll() time.Duration {
	return time.Duration(a.TVPollMs) * time.Millisecond
}

// ConsolePoll returns the console poll interval as a Duration.
func (a *AutomationConfig) ConsolePoll() time.Duration {
	return time.Duration(a.ConsolePollMs) * time.Millisecond
}

// ResponseWindow returns the query response window as a Duration.
func (a *AutomationConfig) ResponseWindow() time.Duration {
	return time.Duration(a.ResponseWindowMs) * time.Millisecond
}

// AudioOnBudget returns the ensure-audio-on budget as a Duration.
func (a *AutomationConfig) AudioOnBudget() time.Duration {
	return time.Duration(a.AudioOnBudgetSeconds) * time.Second
}

// VolumeBudget returns the volume ramp budget as a Duration.
func (a *AutomationConfig) VolumeBudget() time.Duration {
	return time.Duration(a.VolumeBudgetSeconds) * time.Second
}

// RespawnInterval returns the root respawn interval as a Duration.
func (a *AutomationConfig) RespawnInterval() time.Duration {
	return time.Duration(a.RespawnSeconds) * time.Second
}

// VolumeConfig contains the soundbar volume targets.
type VolumeConfig struct {
	// Active is the target volume while the console is in use.
	Active int `yaml:"active"`

	// Idle is the target volume after the console goes offline.
	Idle int `yaml:"idle"`

	// Step is the volume change per remote key press.
	Step int `yaml:"step"`
}

// QuietHoursConfig is the window in which the TV is put into standby
// when the console goes offline. Start == End disables the window.
type QuietHoursConfig struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// MQTTConfig contains MQTT broker connection settings for the state
// mirror. The daemon runs without MQTT when disabled.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// JournalConfig contains settings for the SQLite traffic journal.
type JournalConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: CECD_SECTION_KEY
// For example: CECD_MQTT_HOST, CECD_JOURNAL_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			Name:     "cecd",
			Timezone: "Local",
		},
		Bus: BusConfig{
			Binary:                 "/usr/bin/cec-client",
			OSDName:                "cecd",
			LogLevel:               15,
			ReadyTimeoutSeconds:    30,
			RestartOnFailure:       true,
			RestartDelaySeconds:    5,
			MaxRestartAttempts:     10,
			GracefulTimeoutSeconds: 10,
		},
		Devices: DevicesConfig{
			Local:      int(cec.AddrRecorder1),
			TV:         int(cec.AddrTV),
			Console:    int(cec.AddrPlayback1),
			Soundbar:   int(cec.AddrAudioSystem),
			DonglePath: "3.0.0.0",
		},
		Automation: AutomationConfig{
			TickMs:               250,
			TVPollMs:             500,
			ConsolePollMs:        5000,
			ResponseWindowMs:     2000,
			OfflineThreshold:     3,
			AudioOnBudgetSeconds: 5,
			VolumeBudgetSeconds:  60,
			RespawnSeconds:       60,
		},
		Volume: VolumeConfig{
			Active: 40,
			Idle:   30,
			Step:   2,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "cecd",
			},
			QoS:         1,
			TopicPrefix: "cecd",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Journal: JournalConfig{
			Enabled:     true,
			Path:        "./data/cecd.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: CECD_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Bus
	if v := os.Getenv("CECD_BUS_BINARY"); v != "" {
		cfg.Bus.Binary = v
	}
	if v := os.Getenv("CECD_BUS_DEVICE"); v != "" {
		cfg.Bus.Device = v
	}

	// MQTT
	if v := os.Getenv("CECD_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CECD_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CECD_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Journal
	if v := os.Getenv("CECD_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}

	// Logging
	if v := os.Getenv("CECD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// The bus section is validated separately when the cec-client adapter
// is constructed.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Timezone must resolve
	if c.Site.Timezone != "" {
		if _, err := time.LoadLocation(c.Site.Timezone); err != nil {
			errs = append(errs, fmt.Sprintf("site.timezone %q is not a valid zone", c.Site.Timezone))
		}
	}

	// Device addressing
	addrs := map[string]int{
		"devices.local":    c.Devices.Local,
		"devices.tv":       c.Devices.TV,
		"devices.console":  c.Devices.Console,
		"devices.soundbar": c.Devices.Soundbar,
	}
	seen := make(map[int]string, len(addrs))
	for name, addr := range addrs {
		if addr < 0 || addr > 14 {
			errs = append(errs, name+" must be a logical address between 0 and 14")
			continue
		}
		if other, dup := seen[addr]; dup {
			errs = append(errs, fmt.Sprintf("%s and %s share logical address %d", other, name, addr))
		}
		seen[addr] = name
	}
	if pa, err := c.Devices.DongleAddr(); err != nil {
		errs = append(errs, fmt.Sprintf("devices.dongle_path: %v", err))
	} else if pa == 0 {
		errs = append(errs, "devices.dongle_path must not be the root 0.0.0.0")
	}

	// Automation timing
	if c.Automation.TickMs < 1 {
		errs = append(errs, "automation.tick_ms must be positive")
	}
	if c.Automation.TVPollMs < 1 {
		errs = append(errs, "automation.tv_poll_ms must be positive")
	}
	if c.Automation.ConsolePollMs < 1 {
		errs = append(errs, "automation.console_poll_ms must be positive")
	}
	if c.Automation.ResponseWindowMs < 1 {
		errs = append(errs, "automation.response_window_ms must be positive")
	}
	if c.Automation.OfflineThreshold < 1 {
		errs = append(errs, "automation.offline_threshold must be at least 1")
	}
	if c.Automation.AudioOnBudgetSeconds < 1 {
		errs = append(errs, "automation.audio_on_budget_seconds must be positive")
	}
	if c.Automation.VolumeBudgetSeconds < 1 {
		errs = append(errs, "automation.volume_budget_seconds must be positive")
	}
	if c.Automation.RespawnSeconds < 1 {
		errs = append(errs, "automation.respawn_seconds must be positive")
	}

	// Volume targets
	if c.Volume.Active < 0 || c.Volume.Active > 100 {
		errs = append(errs, "volume.active must be between 0 and 100")
	}
	if c.Volume.Idle < 0 || c.Volume.Idle > 100 {
		errs = append(errs, "volume.idle must be between 0 and 100")
	}
	if c.Volume.Step < 1 || c.Volume.Step > 30 {
		errs = append(errs, "volume.step must be between 1 and 30")
	}

	// Quiet hours
	if c.QuietHours.Start < 0 || c.QuietHours.Start > 23 {
		errs = append(errs, "quiet_hours.start must be an hour between 0 and 23")
	}
	if c.QuietHours.End < 0 || c.QuietHours.End > 23 {
		errs = append(errs, "quiet_hours.end must be an hour between 0 and 23")
	}

	// MQTT
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
		if c.MQTT.TopicPrefix == "" {
			errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
		}
	}

	// Journal
	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, "journal.path is required when the journal is enabled")
	}
	if c.Journal.BusyTimeout < 0 {
		errs = append(errs, "journal.busy_timeout must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Location returns the zone quiet hours are evaluated in.
func (c *Config) Location() (*time.Location, error) {
	if c.Site.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Site.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading site timezone: %w", err)
	}
	return loc, nil
}

// BrokerURL returns the MQTT broker URL in paho's scheme://host:port form.
func (c *MQTTConfig) BrokerURL() string {
	scheme := "tcp"
	if c.Broker.TLS {
		scheme = "ssl"
	}
	return scheme + "://" + c.Broker.Host + ":" + strconv.Itoa(c.Broker.Port)
}
