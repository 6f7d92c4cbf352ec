// Package logging configures the global zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Formats accepted by Setup.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options select the level and format of log output.
type Options struct {
	Level  string
	Format string
	// Out defaults to os.Stderr.
	Out *os.File
	// NoColor disables colors even on a terminal.
	NoColor bool
}

// ParseLevel maps a level name to a zerolog level. The empty string is
// info.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "off":
		return zerolog.Disabled, nil
	}
	return zerolog.NoLevel, fmt.Errorf("unknown log level %q (valid: trace, debug, info, warn, error)", s)
}

// Setup installs the global logger.
func Setup(opts Options) error {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	var w io.Writer
	switch opts.Format {
	case "", FormatConsole:
		w = ConsoleWriter(out, opts.NoColor)
	case FormatJSON:
		w = out
	default:
		return fmt.Errorf("unknown log format %q (valid: console, json)", opts.Format)
	}

	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return nil
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ConsoleWriter returns a human-readable writer for f. Colors are used only
// when f is a terminal.
func ConsoleWriter(f *os.File, noColor bool) zerolog.ConsoleWriter {
	noColor = noColor || !IsTerminal(f)
	w := zerolog.ConsoleWriter{Out: f, NoColor: noColor, TimeFormat: time.TimeOnly}
	w.FormatPrepare = func(m map[string]any) error {
		// "generate: django" reads better than a separate step field
		if step, ok := m["step"].(string); ok {
			if msg, _ := m[zerolog.MessageFieldName].(string); msg != "" {
				m[zerolog.MessageFieldName] = step + ": " + msg
				delete(m, "step")
			}
		}
		return nil
	}
	return w
}
