// ABOUTME: Volume and mute control capability
// ABOUTME: Defines the Control interface, level clamping, and the no-op control
package gain

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Default volume range and start level
const (
	DefaultMin     = 0
	DefaultMax     = 100
	DefaultInitial = 85
)

// Control adjusts output level. Implementations exist for builds with and
// without a level-capable codec; the playback engine only sees this interface.
type Control interface {
	// SetVolume applies a level and returns the level actually used after clamping
	SetVolume(level int) (int, error)

	SetMute(muted bool) error
	Muted() bool

	// StartOutput and StopOutput gate the analog stage around playback
	StartOutput() error
	StopOutput() error
}

// Config configures a gain control
type Config struct {
	Min     int
	Max     int
	Initial int
	Muted   bool

	Logger zerolog.Logger
}

// DefaultConfig returns the standard 0-100 range
func DefaultConfig() Config {
	return Config{
		Min:     DefaultMin,
		Max:     DefaultMax,
		Initial: DefaultInitial,
	}
}

// Validate checks the range
func (c Config) Validate() error {
	if c.Max <= c.Min {
		return fmt.Errorf("invalid volume range: %d..%d", c.Min, c.Max)
	}
	if c.Initial < c.Min || c.Initial > c.Max {
		return fmt.Errorf("initial volume %d outside range %d..%d", c.Initial, c.Min, c.Max)
	}
	return nil
}

// Clamp limits level to the configured range and logs a warning when it had to
func (c Config) Clamp(level int, log zerolog.Logger) int {
	switch {
	case level < c.Min:
		log.Warn().Int("requested", level).Int("min", c.Min).Msg("Volume below range, clamping")
		return c.Min
	case level > c.Max:
		log.Warn().Int("requested", level).Int("max", c.Max).Msg("Volume above range, clamping")
		return c.Max
	}
	return level
}

// Null is the control used when there is no level-capable hardware.
// Every operation succeeds without effect.
type Null struct{}

// SetVolume returns level unchanged
func (Null) SetVolume(level int) (int, error) { return level, nil }

// SetMute does nothing
func (Null) SetMute(bool) error { return nil }

// Muted always reports false
func (Null) Muted() bool { return false }

// StartOutput does nothing
func (Null) StartOutput() error { return nil }

// StopOutput does nothing
func (Null) StopOutput() error { return nil }
