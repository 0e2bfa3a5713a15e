// ABOUTME: Playback controller public API
// ABOUTME: Validates commands, posts intents, and exposes atomic status snapshots
package playback

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Resonate-Protocol/resonate-speaker/pkg/audio"
	"github.com/Resonate-Protocol/resonate-speaker/pkg/audio/decode"
	"github.com/Resonate-Protocol/resonate-speaker/pkg/audio/gain"
	"github.com/Resonate-Protocol/resonate-speaker/pkg/audio/ogg"
	"github.com/Resonate-Protocol/resonate-speaker/pkg/audio/output"
	"github.com/Resonate-Protocol/resonate-speaker/pkg/audio/upmix"
)

// Defaults for Config fields left zero
const (
	DefaultBlockCount    = 8
	DefaultSilenceBlocks = 2
	DefaultPingTimeout   = 100 * time.Millisecond
	DefaultMaxPathLen    = 255

	// NoSilenceBlocks disables silence priming for buses that need none
	NoSilenceBlocks = -1
)

// Config holds player configuration
type Config struct {
	// Format is the output bus format (default: audio.DefaultFormat)
	Format audio.Format

	// DecoderChannels is the channel count the codec decodes to (default: 1)
	DecoderChannels int

	// BlockCount is the number of output blocks in the pool (default: 8)
	BlockCount int

	// SilenceBlocks is the number of silence blocks written when starting,
	// resuming, and stopping (default: 2, NoSilenceBlocks for none)
	SilenceBlocks int

	// BlockTimeout bounds waiting for a free block (default: 2s)
	BlockTimeout time.Duration

	// WriteTimeout bounds waiting for the bus to take a block (default: 2s)
	WriteTimeout time.Duration

	// PingTimeout bounds Ping (default: 100ms)
	PingTimeout time.Duration

	// ChunkSize is the container read size (default: 2048)
	ChunkSize int

	// MaxPathLen rejects longer paths (default: 255)
	MaxPathLen int

	// FS is where audio files are opened. Leading slashes are stripped, so
	// os.DirFS("/") accepts absolute paths.
	FS fs.FS

	// Bus is the audio output (default: output.NewNull())
	Bus output.Bus

	// Gain controls level (default: gain.Null). If it also implements
	// output.Processor, it runs on every PCM run.
	Gain gain.Control

	// Volume is the accepted level range and the initial level and mute
	Volume gain.Config

	// AutoMute stops the gain output stage while not playing
	AutoMute bool

	// DecoderFactory builds the codec backend (default: decode.NewOpus)
	DecoderFactory decode.Factory

	// Yield runs after every file read and every packet (default: runtime.Gosched)
	Yield func()

	// OnStateChange is called when playback state changes
	OnStateChange func(State)

	// OnError is called when a session fails
	OnError func(error)

	Logger zerolog.Logger
}

func (c *Config) applyDefaults() {
	if c.Format == (audio.Format{}) {
		c.Format = audio.DefaultFormat()
	}
	if c.DecoderChannels == 0 {
		c.DecoderChannels = audio.DefaultDecoderChannels
	}
	if c.BlockCount == 0 {
		c.BlockCount = DefaultBlockCount
	}
	if c.SilenceBlocks == 0 {
		c.SilenceBlocks = DefaultSilenceBlocks
	}
	if c.BlockTimeout == 0 {
		c.BlockTimeout = output.DefaultBlockTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = output.DefaultWriteTimeout
	}
	if c.PingTimeout == 0 {
		c.PingTimeout = DefaultPingTimeout
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = ogg.DefaultChunkSize
	}
	if c.MaxPathLen == 0 {
		c.MaxPathLen = DefaultMaxPathLen
	}
	if c.Bus == nil {
		c.Bus = output.NewNull()
	}
	if c.Gain == nil {
		c.Gain = gain.Null{}
	}
	if c.Volume.Min == 0 && c.Volume.Max == 0 {
		c.Volume.Max = gain.DefaultMax
		if c.Volume.Initial == 0 {
			c.Volume.Initial = gain.DefaultInitial
		}
	}
	if c.DecoderFactory == nil {
		c.DecoderFactory = decode.NewOpus
	}
	if c.Yield == nil {
		c.Yield = runtime.Gosched
	}
}

// Validate checks the configuration after defaults are applied
func (c Config) Validate() error {
	if err := c.Format.Validate(); err != nil {
		return err
	}
	if _, err := upmix.Factor(c.DecoderChannels, c.Format.Channels); err != nil {
		return err
	}
	if c.BlockCount < 2 {
		return fmt.Errorf("block count %d too small", c.BlockCount)
	}
	if c.SilenceBlocks < NoSilenceBlocks || c.SilenceBlocks >= c.BlockCount {
		return fmt.Errorf("silence blocks %d must be below block count %d", c.SilenceBlocks, c.BlockCount)
	}
	if c.FS == nil {
		return fmt.Errorf("no filesystem configured")
	}
	return c.Volume.Validate()
}

// silenceCount is the number of silence blocks to prime
func (c Config) silenceCount() int {
	return max(c.SilenceBlocks, 0)
}

// Stats counts work done by the current or last session
type Stats struct {
	TagsSkipped   int64
	Packets       int64
	Samples       int64
	Blocks        int64
	SilenceBlocks int64
	PaddedBlocks  int64
	SlowDecodes   int64
	DecodeTime    time.Duration
	BytesRead     int64
	LastError     string
}

// Status is a point-in-time view of the player
type Status struct {
	State     State
	Ready     bool
	Playing   bool
	Paused    bool
	Volume    int
	VolumeMin int
	VolumeMax int
	Muted     bool
	OutputOn  bool
	Path      string
	SessionID string
	Stats     Stats
}

// request is a validated, opened Start waiting for the playback goroutine
type request struct {
	path string
	file fs.File
}

// Player is the playback controller
type Player struct {
	config  Config
	log     zerolog.Logger
	factor  int
	adapter *decode.Adapter
	events  *events
	pings   *pinger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// mu guards the command-side fields below
	mu            sync.Mutex
	ready         bool
	disabling     bool
	closed        bool
	claimed       bool
	pending       *request
	sessionCancel context.CancelFunc
	sessionDone   chan struct{}
	pool          *output.BlockPool
	scheduler     *output.Scheduler

	state  atomic.Int32
	volume atomic.Int32
	muted  atomic.Bool
	// outputOn tracks the auto-mute gate and never touches muted
	outputOn atomic.Bool

	statusMu  sync.Mutex
	path      string
	sessionID string
	stats     Stats
}

// New creates a player and starts its playback goroutine. The audio path
// is not usable until Enable succeeds.
func New(config Config) (*Player, error) {
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParam, err)
	}

	factor, _ := upmix.Factor(config.DecoderChannels, config.Format.Channels)
	log := config.Logger.With().Str("component", "playback").Logger()
	ctx, cancel := context.WithCancel(context.Background())

	p := &Player{
		config: config,
		log:    log,
		factor: factor,
		adapter: decode.NewAdapter(decode.AdapterConfig{
			Factory: config.DecoderFactory,
			Logger:  config.Logger,
		}),
		events: newEvents(),
		pings:  newPinger(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	p.volume.Store(int32(config.Volume.Initial))
	p.muted.Store(config.Volume.Muted)
	p.outputOn.Store(true)

	go p.run()

	return p, nil
}

// Enable configures the bus, allocates the block pool, and applies the
// initial gain. Enabling an enabled player is a no-op. On failure the
// player stays not ready.
func (p *Player) Enable() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if p.ready {
		return nil
	}

	format := p.config.Format
	err := p.config.Bus.Configure(output.BusConfig{
		Format: format,
		Blocks: p.config.BlockCount,
		Logger: p.config.Logger,
	})
	if err != nil {
		p.log.Error().Err(err).Msg("Audio bus configuration failed")
		return fmt.Errorf("%w: %w", ErrHardware, err)
	}

	pool := output.NewBlockPool(p.config.BlockCount, format.BlockSize())
	processor, _ := p.config.Gain.(output.Processor)
	scheduler, err := output.NewScheduler(output.SchedulerConfig{
		Format:       format,
		Pool:         pool,
		Bus:          p.config.Bus,
		BlockTimeout: p.config.BlockTimeout,
		WriteTimeout: p.config.WriteTimeout,
		Processor:    processor,
		Logger:       p.config.Logger,
	})
	if err != nil {
		p.config.Bus.Close()
		return fmt.Errorf("%w: %w", ErrHardware, err)
	}

	if _, err := p.config.Gain.SetVolume(int(p.volume.Load())); err != nil {
		p.config.Bus.Close()
		return fmt.Errorf("%w: %w", ErrCodecControl, err)
	}
	if err := p.config.Gain.SetMute(p.muted.Load()); err != nil {
		p.config.Bus.Close()
		return fmt.Errorf("%w: %w", ErrCodecControl, err)
	}
	if p.config.AutoMute {
		if err := p.config.Gain.StopOutput(); err != nil {
			p.log.Warn().Err(err).Msg("Gain stop failed")
		}
		p.outputOn.Store(false)
	}

	p.pool = pool
	p.scheduler = scheduler
	p.ready = true

	p.log.Info().
		Str("format", format.String()).
		Int("decoder_channels", p.config.DecoderChannels).
		Int("factor", p.factor).
		Int("blocks", p.config.BlockCount).
		Msg("Audio path enabled")
	return nil
}

// Disable stops any playback, waits for the session to end, and releases
// the bus. The player is not ready afterwards.
func (p *Player) Disable() error {
	p.mu.Lock()
	p.disabling = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.disabling = false
		p.mu.Unlock()
	}()

	if err := p.Stop(); err != nil && !errors.Is(err, ErrNotReady) {
		return err
	}

	p.mu.Lock()
	done := p.sessionDone
	p.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-time.After(p.teardownBudget()):
			return fmt.Errorf("%w: playback did not stop", ErrHardware)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready {
		return nil
	}
	p.ready = false
	p.pool = nil
	p.scheduler = nil

	if err := p.config.Bus.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrHardware, err)
	}
	p.log.Info().Msg("Audio path disabled")
	return nil
}

// Reset disables and re-enables the audio path
func (p *Player) Reset() error {
	if err := p.Disable(); err != nil {
		return err
	}
	return p.Enable()
}

// teardownBudget is how long a session may take to notice Stop and clean up
func (p *Player) teardownBudget() time.Duration {
	n := time.Duration(p.config.silenceCount() + 2)
	return n*(p.config.BlockTimeout+p.config.WriteTimeout) + time.Second
}

// Start validates path, opens the file, and hands it to the playback
// goroutine. Errors after the file is open are reported through OnError.
func (p *Player) Start(filePath string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready || p.disabling {
		p.log.Error().Msg("Device is not ready")
		return ErrNotReady
	}
	if p.claimed {
		p.log.Error().Msg("Device is busy")
		return ErrBusy
	}
	if filePath == "" {
		return ErrEmptyPath
	}
	if len(filePath) >= p.config.MaxPathLen {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrPathTooLong, len(filePath), p.config.MaxPathLen-1)
	}

	name := strings.TrimPrefix(path.Clean(filePath), "/")
	file, err := p.config.FS.Open(name)
	if err != nil {
		p.log.Error().Err(err).Str("path", filePath).Msg("Cannot open audio file")
		return fmt.Errorf("%w: %w", ErrFileOpen, err)
	}

	p.claimed = true
	p.pending = &request{path: filePath, file: file}
	p.sessionDone = make(chan struct{})
	p.events.post(EventStart, 0)

	p.log.Info().Str("path", filePath).Msg("Start posted")
	return nil
}

// Stop requests the current session to stop. Stopping when nothing plays
// succeeds without effect.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready {
		return ErrNotReady
	}
	if !p.claimed {
		p.log.Debug().Msg("Stop ignored, not playing")
		return nil
	}

	p.events.post(EventStop, 0)
	if p.sessionCancel != nil {
		p.sessionCancel()
	}
	return nil
}

// Pause pauses (true) or resumes (false) the current session. Requests that
// do not apply, such as pausing when nothing plays, succeed without effect.
func (p *Player) Pause(pause bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready {
		return ErrNotReady
	}
	if !p.claimed {
		return nil
	}

	if pause {
		p.events.post(EventPause, EventResume)
	} else {
		p.events.post(EventResume, EventPause)
	}
	return nil
}

// SetVolume sets the output level, clamped to the configured range, and
// returns the level applied.
func (p *Player) SetVolume(level int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready {
		return 0, ErrNotReady
	}

	level = p.config.Volume.Clamp(level, p.log)
	applied, err := p.config.Gain.SetVolume(level)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCodecControl, err)
	}
	p.volume.Store(int32(applied))
	p.log.Info().Int("volume", applied).Msg("Volume set")
	return applied, nil
}

// SetMute mutes or unmutes output
func (p *Player) SetMute(muted bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready {
		return ErrNotReady
	}
	if err := p.config.Gain.SetMute(muted); err != nil {
		return fmt.Errorf("%w: %w", ErrCodecControl, err)
	}
	p.muted.Store(muted)
	p.log.Info().Bool("muted", muted).Msg("Mute set")
	return nil
}

// Ping probes the playback goroutine. It returns PingAlive on an answer,
// PingStopped if a session ended while waiting, or PingTimeout.
func (p *Player) Ping() PingResult {
	reply := p.pings.register()
	p.events.post(EventPing, 0)

	timer := time.NewTimer(p.config.PingTimeout)
	defer timer.Stop()

	select {
	case r := <-reply:
		return r
	case <-timer.C:
		p.pings.unregister(reply)
		// a reply may have raced the timer
		select {
		case r := <-reply:
			return r
		default:
		}
		return PingTimeout
	}
}

// IsPlaying reports whether a session is active, including while paused
func (p *Player) IsPlaying() bool {
	s := p.State()
	return s == StatePlaying || s == StatePaused
}

// IsPaused reports whether the session is paused
func (p *Player) IsPaused() bool {
	return p.State() == StatePaused
}

// State returns the lifecycle state
func (p *Player) State() State {
	return State(p.state.Load())
}

// Volume returns the current level
func (p *Player) Volume() int {
	return int(p.volume.Load())
}

// Muted returns the user mute state. The auto-mute gate is reported
// separately by OutputOn.
func (p *Player) Muted() bool {
	return p.muted.Load()
}

// OutputOn reports whether the gain output stage is open
func (p *Player) OutputOn() bool {
	return p.outputOn.Load()
}

// Ready reports whether Enable has succeeded
func (p *Player) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}

// Status returns a snapshot of the player
func (p *Player) Status() Status {
	state := p.State()
	ready := p.Ready()

	p.statusMu.Lock()
	defer p.statusMu.Unlock()

	return Status{
		State:     state,
		Ready:     ready,
		Playing:   state == StatePlaying || state == StatePaused,
		Paused:    state == StatePaused,
		Volume:    p.Volume(),
		VolumeMin: p.config.Volume.Min,
		VolumeMax: p.config.Volume.Max,
		Muted:     p.Muted(),
		OutputOn:  p.OutputOn(),
		Path:      p.path,
		SessionID: p.sessionID,
		Stats:     p.stats,
	}
}

// Close stops playback, disables the audio path, and ends the playback goroutine
func (p *Player) Close() error {
	err := p.Disable()

	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	<-p.done
	p.pings.close()
	return err
}

func (p *Player) setState(s State) {
	if State(p.state.Swap(int32(s))) == s {
		return
	}
	p.log.Debug().Str("state", s.String()).Msg("State changed")
	if p.config.OnStateChange != nil {
		p.config.OnStateChange(s)
	}
}

func (p *Player) reportError(err error) {
	p.log.Error().Err(err).Str("category", CategoryOf(err).String()).Msg("Playback failed")

	p.statusMu.Lock()
	p.stats.LastError = err.Error()
	p.statusMu.Unlock()

	if p.config.OnError != nil {
		p.config.OnError(err)
	}
}
