// Package logging builds the daemon's structured loggers on log/slog.
//
// New produces a JSON or text logger with a level floor and constant
// service/version attributes; Default covers the window before
// configuration is parsed. Derived loggers from With carry a component
// tag per subsystem, and because Logger embeds *slog.Logger it
// satisfies the small consumer-side Logger interfaces declared across
// the daemon's packages.
//
// Configured in config.yaml:
//
//	logging:
//	  level: "info"    # debug, info, warn, error
//	  format: "json"   # json, text
//	  output: "stdout" # stdout, stderr
//
// Keep secrets out of log fields; usernames are fine, passwords and
// tokens are not.
package logging
