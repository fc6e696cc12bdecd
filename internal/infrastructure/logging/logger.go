package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/calverley/cecd/internal/infrastructure/config"
)

// serviceName tags every log line so aggregated streams can tell the
// daemon's output apart from its neighbours.
const serviceName = "cecd"

// Logger is the daemon's structured logger. It embeds *slog.Logger,
// so the slog call surface (Debug/Info/Warn/Error with key-value
// pairs) is available directly and the small consumer-side Logger
// interfaces declared across the daemon's packages are all satisfied
// by a *Logger.
type Logger struct {
	*slog.Logger
}

// New builds a logger from configuration: JSON or text lines, a level
// floor, stdout or stderr, and constant service/version fields on
// every record.
func New(cfg config.LoggingConfig, version string) *Logger {
	handler := newHandler(cfg, destination(cfg.Output)).WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(handler)}
}

// Default is the logger for the window before configuration loads:
// JSON at info level on stdout, version "dev".
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}

// With returns a derived logger carrying extra default attributes,
// typically the component tag handed to a subsystem:
//
//	bus.SetLogger(log.With("component", "bus"))
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

func destination(output string) io.Writer {
	if strings.EqualFold(output, "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

func newHandler(cfg config.LoggingConfig, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// parseLevel understands debug, info, warn/warning and error in any
// case, falling back to info for anything else.
func parseLevel(level string) slog.Level {
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
