// ABOUTME: Software gain stage
// ABOUTME: Scales int16 PCM in place by volume, mute, and output gate
package gain

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Software implements Control by scaling samples before they reach the bus.
// Its state may be changed from any goroutine while Apply runs on the
// playback goroutine.
type Software struct {
	config Config
	log    zerolog.Logger

	volume  atomic.Int32
	muted   atomic.Bool
	running atomic.Bool
}

// NewSoftware creates a software gain stage. The output gate starts open.
func NewSoftware(config Config) (*Software, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gain config: %w", err)
	}

	s := &Software{
		config: config,
		log:    config.Logger.With().Str("component", "gain").Logger(),
	}
	s.volume.Store(int32(config.Initial))
	s.muted.Store(config.Muted)
	s.running.Store(true)
	return s, nil
}

// SetVolume sets the level, clamped to the configured range
func (s *Software) SetVolume(level int) (int, error) {
	level = s.config.Clamp(level, s.log)
	s.volume.Store(int32(level))
	s.log.Debug().Int("volume", level).Msg("Volume set")
	return level, nil
}

// Volume returns the current level
func (s *Software) Volume() int {
	return int(s.volume.Load())
}

// SetMute sets mute state
func (s *Software) SetMute(muted bool) error {
	s.muted.Store(muted)
	s.log.Debug().Bool("muted", muted).Msg("Mute set")
	return nil
}

// Muted returns mute state
func (s *Software) Muted() bool {
	return s.muted.Load()
}

// StartOutput opens the output gate
func (s *Software) StartOutput() error {
	s.running.Store(true)
	return nil
}

// StopOutput closes the output gate; samples are silenced until StartOutput
func (s *Software) StopOutput() error {
	s.running.Store(false)
	return nil
}

// Apply scales samples in place with clipping protection
func (s *Software) Apply(samples []int16) {
	multiplier := s.multiplier()
	if multiplier == 1.0 {
		return
	}

	for i, sample := range samples {
		scaled := int32(math.Round(float64(sample) * multiplier))
		if scaled > math.MaxInt16 {
			scaled = math.MaxInt16
		} else if scaled < math.MinInt16 {
			scaled = math.MinInt16
		}
		samples[i] = int16(scaled)
	}
}

// multiplier maps the current level onto 0.0 .. 1.0 across the configured range
func (s *Software) multiplier() float64 {
	if s.muted.Load() || !s.running.Load() {
		return 0.0
	}
	span := s.config.Max - s.config.Min
	return float64(int(s.volume.Load())-s.config.Min) / float64(span)
}
