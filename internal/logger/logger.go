// Package logger builds the zerolog logger shared by the commands.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Config selects level, format and destination.
type Config struct {
	// Level is a zerolog level name or one of NORMAL, DEBUG, EXTRA.
	Level string
	// JSON writes one JSON object per line instead of console output.
	JSON   bool
	Output io.Writer
}

// ParseLevel accepts zerolog level names (any case) and the legacy names
// NORMAL (info), DEBUG (debug) and EXTRA (trace). Empty means info.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NORMAL":
		return zerolog.InfoLevel, nil
	case "EXTRA":
		return zerolog.TraceLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// New returns a logger for cfg.
func New(cfg Config) (zerolog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	zerolog.TimeFieldFormat = time.RFC3339
	if !cfg.JSON {
		noColor := true
		if f, ok := out.(*os.File); ok {
			noColor = !isatty.IsTerminal(f.Fd())
		}
		out = zerolog.ConsoleWriter{Out: out, NoColor: noColor, TimeFormat: time.TimeOnly}
	}

	return zerolog.New(out).With().Timestamp().Logger().Level(level), nil
}
