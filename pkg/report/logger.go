package report

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// LogFormat selects the run log's on-disk encoding.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// LoggerConfig configures the run's logger.
type LoggerConfig struct {
	Level  zerolog.Level
	Format LogFormat
	Output io.Writer
}

// NewLogger builds the single serialized zerolog.Logger the whole run
// writes through — the orchestrator, watcher, every neighbor observer, and
// the sender/sniffer all derive sub-loggers from it via With().
func NewLogger(cfg LoggerConfig) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	var writer io.Writer = out
	if cfg.Format == LogFormatText {
		writer = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
	}

	return zerolog.New(writer).Level(cfg.Level).With().Timestamp().Logger()
}

// ParseLevel maps the config's string log level onto a zerolog.Level,
// defaulting to Info for anything unrecognized.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
