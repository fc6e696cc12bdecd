// cecd - HDMI-CEC home theatre automation daemon
//
// cecd supervises a cec-client subprocess and turns the HDMI-CEC bus
// into the single event stream for a small home theatre:
//   - Watches the games console and routes the TV back to the media
//     dongle when the console disappears
//   - Keeps the soundbar powered and at a sane volume
//   - Puts the TV into standby when play stops inside quiet hours
//   - Mirrors derived device state and daemon health to MQTT
//   - Journals observed devices and opcodes to SQLite
//
// The bus is the only inbound event source. MQTT is an outward mirror
// and accepts no commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calverley/cecd/internal/cec"
	"github.com/calverley/cecd/internal/cecclient"
	"github.com/calverley/cecd/internal/daemon"
	"github.com/calverley/cecd/internal/engine"
	"github.com/calverley/cecd/internal/infrastructure/config"
	"github.com/calverley/cecd/internal/infrastructure/logging"
	"github.com/calverley/cecd/internal/infrastructure/mqtt"
	"github.com/calverley/cecd/internal/journal"
	"github.com/calverley/cecd/internal/mirror"
	"github.com/calverley/cecd/internal/rules"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting cecd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Quiet hours are evaluated in the site's zone, not the host's.
	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("resolving site timezone: %w", err)
	}
	clock := func() time.Time { return time.Now().In(loc) }

	// Build the cec-client adapter. The subprocess is not launched
	// until the daemon starts the dispatcher.
	bus, err := cecclient.New(busConfig(cfg))
	if err != nil {
		return fmt.Errorf("building CEC adapter: %w", err)
	}
	bus.SetLogger(log.With("component", "bus"))

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.With("component", "mqtt"))
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled, state mirror off")
	}

	// Start the traffic journal (optional)
	var trafficJournal *journal.Journal
	if cfg.Journal.Enabled {
		trafficJournal = journal.New(cfg.Journal)
		trafficJournal.SetLogger(log.With("component", "journal"))
		if err := trafficJournal.Start(); err != nil {
			return fmt.Errorf("starting journal: %w", err)
		}
		defer func() {
			log.Info("stopping journal")
			trafficJournal.Stop()
		}()
	} else {
		log.Info("traffic journal disabled")
	}

	// Build the dispatcher around the adapter
	dispatcher, err := engine.New(engine.Options{
		Bus:          bus,
		Self:         cec.LogicalAddr(cfg.Devices.Local),
		Logger:       log.With("component", "dispatcher"),
		TickInterval: cfg.Automation.TickInterval(),
	})
	if err != nil {
		return fmt.Errorf("building dispatcher: %w", err)
	}

	// Passive observers see every parsed inbound frame. They must be
	// registered before the bus opens so no traffic is missed.
	if trafficJournal != nil {
		dispatcher.AddObserver(trafficJournal.Observe)
	}

	var stateMirror *mirror.Mirror
	var reporter *mirror.HealthReporter
	if mqttClient != nil {
		stateMirror = mirror.New(mirror.Config{
			Publisher: mqttClient,
			Topics:    mqttClient.Topics(),
			QoS:       byte(cfg.MQTT.QoS),
			Devices:   cfg.Devices,
		})
		stateMirror.SetLogger(log.With("component", "mirror"))
		dispatcher.AddObserver(stateMirror.Observe)

		reporter = mirror.NewHealthReporter(mirror.HealthReporterConfig{
			Version:    version,
			Publisher:  mqttClient,
			Topics:     mqttClient.Topics(),
			QoS:        byte(cfg.MQTT.QoS),
			Dispatcher: dispatcher,
			Bus:        bus,
		})
		reporter.SetLogger(log.With("component", "health"))

		// Retained state is reseeded after every reconnection in case
		// the broker lost it.
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT connection established, reseeding retained state")
			stateMirror.PublishAll()
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT connection lost", "error", err)
		})

		if err := reporter.PublishStarting(); err != nil {
			log.Warn("publishing starting status", "error", err)
		}
	}

	// Build and start the automation
	ropts, err := rulesOptions(cfg, clock, log.With("component", "rules"))
	if err != nil {
		return err
	}
	manager, err := daemon.New(daemon.Options{
		Dispatcher:      dispatcher,
		Rules:           ropts,
		RespawnInterval: cfg.Automation.RespawnInterval(),
		Logger:          log.With("component", "automation"),
	})
	if err != nil {
		return fmt.Errorf("building daemon: %w", err)
	}

	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("starting daemon: %w", err)
	}
	defer func() {
		log.Info("stopping automation")
		if stopErr := manager.Stop(); stopErr != nil {
			log.Error("error stopping automation", "error", stopErr)
		}
	}()
	log.Info("automation started",
		"local_address", cfg.Devices.Local,
		"tick_interval", cfg.Automation.TickInterval().String(),
	)

	// Seed the retained topics and begin periodic health reports now
	// that the bus is up.
	if stateMirror != nil {
		stateMirror.PublishAll()
	}
	if reporter != nil {
		reporter.Start(ctx)
		defer reporter.Stop()
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, mqttClient, trafficJournal); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. Health reporter (publishes a final "stopping" status)
	// 2. Automation (closes the dispatcher and the cec-client process)
	// 3. Journal
	// 4. MQTT (publishes a graceful offline status)

	log.Info("cecd stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses CECD_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CECD_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// busConfig maps file configuration onto the adapter's native types.
func busConfig(cfg *config.Config) cecclient.Config {
	return cecclient.Config{
		Binary:             cfg.Bus.Binary,
		Device:             cfg.Bus.Device,
		OSDName:            cfg.Bus.OSDName,
		LogLevel:           cfg.Bus.LogLevel,
		ReadyTimeout:       time.Duration(cfg.Bus.ReadyTimeoutSeconds) * time.Second,
		RestartOnFailure:   cfg.Bus.RestartOnFailure,
		RestartDelay:       time.Duration(cfg.Bus.RestartDelaySeconds) * time.Second,
		MaxRestartAttempts: cfg.Bus.MaxRestartAttempts,
		GracefulTimeout:    time.Duration(cfg.Bus.GracefulTimeoutSeconds) * time.Second,
	}
}

// rulesOptions maps file configuration onto the rule catalogue's
// domain types.
func rulesOptions(cfg *config.Config, clock engine.Clock, log *logging.Logger) (rules.Options, error) {
	dongle, err := cfg.Devices.DongleAddr()
	if err != nil {
		return rules.Options{}, fmt.Errorf("parsing dongle path: %w", err)
	}

	return rules.Options{
		Devices: rules.Devices{
			Local:      cec.LogicalAddr(cfg.Devices.Local),
			TV:         cec.LogicalAddr(cfg.Devices.TV),
			Soundbar:   cec.LogicalAddr(cfg.Devices.Soundbar),
			Console:    cec.LogicalAddr(cfg.Devices.Console),
			DonglePath: dongle,
		},
		Tuning: rules.Tuning{
			TVPoll:           cfg.Automation.TVPoll(),
			ConsolePoll:      cfg.Automation.ConsolePoll(),
			ResponseWindow:   cfg.Automation.ResponseWindow(),
			OfflineThreshold: cfg.Automation.OfflineThreshold,
			AudioOnBudget:    cfg.Automation.AudioOnBudget(),
			VolumeBudget:     cfg.Automation.VolumeBudget(),
		},
		Volume: rules.Volume{
			Active: uint8(cfg.Volume.Active),
			Idle:   uint8(cfg.Volume.Idle),
			Step:   uint8(cfg.Volume.Step),
		},
		Quiet: rules.QuietHours{
			Start: cfg.QuietHours.Start,
			End:   cfg.QuietHours.End,
		},
		Clock:  clock,
		Logger: log,
	}, nil
}

// healthCheck verifies the optional infrastructure connections.
func healthCheck(ctx context.Context, mqttClient *mqtt.Client, trafficJournal *journal.Journal) error {
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if trafficJournal != nil {
		if err := trafficJournal.HealthCheck(ctx); err != nil {
			return fmt.Errorf("journal: %w", err)
		}
	}
	return nil
}
