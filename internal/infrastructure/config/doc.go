// Package config loads, defaults and validates the daemon's YAML
// configuration.
//
// Load layers its sources in a fixed order: built-in defaults, then
// the config file, then CECD_* environment variables, and finally a
// validation pass that collects every problem into one error instead
// of stopping at the first. Duration-valued settings are declared as
// integers with a unit suffix (tick_ms, respawn_seconds) and exposed
// through getter methods returning time.Duration.
//
// MQTT credentials belong in CECD_MQTT_USERNAME / CECD_MQTT_PASSWORD
// rather than the file, and the file itself should be mode 0600 when
// they are inlined anyway.
//
//	cfg, err := config.Load("/etc/cecd/config.yaml")
//	if err != nil {
//	    return err
//	}
//	poll := cfg.Automation.TVPoll()
package config
