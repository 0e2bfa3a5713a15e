// ABOUTME: Decoder adapter with a single active session
// ABOUTME: Owns codec configuration, scratch memory, and exactly-once release
package decode

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MaxFrameMs is the longest frame a packet can decode to
const MaxFrameMs = 120

// DefaultSlowDecode is the decode duration above which a packet is logged as slow
const DefaultSlowDecode = 10 * time.Millisecond

var (
	// ErrAlreadyConfigured is returned by Init while a session is active
	ErrAlreadyConfigured = errors.New("decoder already configured")
	// ErrSessionClosed is returned when decoding on a released session
	ErrSessionClosed = errors.New("decoder session closed")
	// ErrDecode wraps codec failures for a single packet
	ErrDecode = errors.New("decode failed")
)

// Config is the decoder configuration, fixed by the engine's output format
type Config struct {
	SampleRate int
	Channels   int // channels produced by the codec
	FrameMs    int
	Expansion  int // samples are later duplicated this many times in place
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("invalid channel count: %d", c.Channels)
	}
	if c.FrameMs <= 0 || c.FrameMs > MaxFrameMs {
		return fmt.Errorf("invalid frame duration: %dms", c.FrameMs)
	}
	if c.Expansion < 1 {
		return fmt.Errorf("invalid expansion factor: %d", c.Expansion)
	}
	return nil
}

// FrameSamples returns interleaved samples in one nominal frame
func (c Config) FrameSamples() int {
	return c.SampleRate / 1000 * c.FrameMs * c.Channels
}

// ScratchSamples returns the scratch capacity needed for the largest
// decodable packet after expansion
func (c Config) ScratchSamples() int {
	return c.SampleRate / 1000 * MaxFrameMs * c.Channels * c.Expansion
}

// PacketDecoder decodes one compressed packet into interleaved PCM and
// returns the number of samples per channel. Implementations may also
// implement io.Closer.
type PacketDecoder interface {
	Decode(packet []byte, pcm []int16) (int, error)
}

// Factory creates a codec backend for a configuration
type Factory func(config Config) (PacketDecoder, error)

// AdapterConfig configures an Adapter
type AdapterConfig struct {
	// Factory builds the codec backend (default: NewOpus)
	Factory Factory

	// SlowDecode is the threshold for slow-decode logging (default: 10ms)
	SlowDecode time.Duration

	Logger zerolog.Logger
}

// Adapter creates decoder sessions and enforces that only one is active
type Adapter struct {
	config AdapterConfig
	log    zerolog.Logger

	mu     sync.Mutex
	active *Session
}

// NewAdapter creates a decoder adapter
func NewAdapter(config AdapterConfig) *Adapter {
	if config.Factory == nil {
		config.Factory = NewOpus
	}
	if config.SlowDecode <= 0 {
		config.SlowDecode = DefaultSlowDecode
	}

	return &Adapter{
		config: config,
		log:    config.Logger.With().Str("component", "decoder").Logger(),
	}
}

// Init creates the decoder session. It fails with ErrAlreadyConfigured
// while a previous session has not been closed.
func (a *Adapter) Init(config Config) (*Session, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid decoder config: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active != nil {
		return nil, ErrAlreadyConfigured
	}

	dec, err := a.config.Factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	s := &Session{
		adapter: a,
		config:  config,
		dec:     dec,
		scratch: make([]int16, config.ScratchSamples()),
	}
	a.active = s

	a.log.Debug().
		Int("sample_rate", config.SampleRate).
		Int("channels", config.Channels).
		Int("frame_ms", config.FrameMs).
		Int("scratch_samples", len(s.scratch)).
		Msg("Decoder configured")

	return s, nil
}

// IsConfigured reports whether a session is active
func (a *Adapter) IsConfigured() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active != nil
}

func (a *Adapter) release(s *Session) {
	a.mu.Lock()
	if a.active == s {
		a.active = nil
	}
	a.mu.Unlock()
}

// SessionStats counts decoder work for one session
type SessionStats struct {
	Packets     int64
	Samples     int64 // interleaved samples produced, before expansion
	SlowDecodes int64
	DecodeTime  time.Duration
}

// Session is one configured decoder, owned by the goroutine that created it
type Session struct {
	adapter *Adapter
	config  Config
	dec     PacketDecoder
	scratch []int16
	stats   SessionStats

	once   sync.Once
	closed bool
}

// Config returns the session configuration
func (s *Session) Config() Config {
	return s.config
}

// Decode decodes one packet into the scratch buffer and returns the number
// of interleaved samples written at its start.
func (s *Session) Decode(packet []byte) (int, error) {
	if s.closed {
		return 0, ErrSessionClosed
	}

	start := time.Now()
	n, err := s.dec.Decode(packet, s.scratch)
	elapsed := time.Since(start)

	if err != nil {
		return 0, fmt.Errorf("%w: packet %d (%d bytes): %w", ErrDecode, s.stats.Packets, len(packet), err)
	}

	samples := n * s.config.Channels
	s.stats.Packets++
	s.stats.Samples += int64(samples)
	s.stats.DecodeTime += elapsed

	if elapsed > s.adapter.config.SlowDecode {
		s.stats.SlowDecodes++
		s.adapter.log.Debug().
			Dur("elapsed", elapsed).
			Int("bytes", len(packet)).
			Int("samples", samples).
			Msg("Slow decode")
	}

	return samples, nil
}

// Buffer returns the full scratch buffer. Decoded samples occupy the
// prefix reported by Decode; the remainder is room for expansion.
func (s *Session) Buffer() []int16 {
	return s.scratch
}

// Stats returns the session counters
func (s *Session) Stats() SessionStats {
	return s.stats
}

// Close releases the codec and scratch memory. Only the first call does
// any work; it reports whether this call performed the release.
func (s *Session) Close() bool {
	released := false
	s.once.Do(func() {
		released = true
		s.closed = true
		if c, ok := s.dec.(io.Closer); ok {
			if err := c.Close(); err != nil {
				s.adapter.log.Warn().Err(err).Msg("Decoder close failed")
			}
		}
		s.dec = nil
		s.scratch = nil
		s.adapter.release(s)
		s.adapter.log.Debug().Int64("packets", s.stats.Packets).Msg("Decoder released")
	})
	return released
}
