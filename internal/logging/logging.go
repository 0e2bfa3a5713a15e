// ABOUTME: Process logger setup
// ABOUTME: Builds a zerolog console logger writing to stdout and/or a log file
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options controls where and how much the daemon logs
type Options struct {
	Level string
	File  string

	// FileOnly suppresses stdout, used while the TUI owns the terminal
	FileOnly bool

	// Stdout overrides the console destination (default: os.Stdout)
	Stdout io.Writer
}

// ParseLevel maps a level name onto a zerolog level
func ParseLevel(name string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", name)
	}
}

// Setup builds the process logger and installs it as the zerolog global.
// The returned closer releases the log file, if any.
func Setup(opts Options) (zerolog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), nil, err
	}

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("error opening log file: %w", err)
		}
		writers = append(writers, zerolog.ConsoleWriter{Out: f, TimeFormat: "15:04:05", NoColor: true})
		closer = f
	}
	if !opts.FileOnly || opts.File == "" {
		writers = append(writers, zerolog.ConsoleWriter{Out: stdout, TimeFormat: "15:04:05"})
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(level).With().Timestamp().Logger()
	log.Logger = logger
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
