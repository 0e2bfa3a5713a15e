//go:build cgo && !nohw

// ABOUTME: Oto-based audio bus
// ABOUTME: Streams queued blocks to the system device through an oto player
package output

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/rs/zerolog"
)

func init() {
	Register("oto", func() (Bus, error) { return NewOto(), nil })
}

// oto allows a single context per process
var (
	otoMu     sync.Mutex
	otoCtx    *oto.Context
	otoFormat [2]int
)

func sharedOtoContext(sampleRate, channels int, bufferSize time.Duration) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoFormat != [2]int{sampleRate, channels} {
			return nil, fmt.Errorf("oto context already running at %dHz/%dch", otoFormat[0], otoFormat[1])
		}
		if err := otoCtx.Resume(); err != nil {
			return nil, fmt.Errorf("failed to resume oto context: %w", err)
		}
		return otoCtx, nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   bufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	otoCtx = ctx
	otoFormat = [2]int{sampleRate, channels}
	return ctx, nil
}

// Oto is a bus backed by an oto player pulling from the block queue
type Oto struct {
	mu     sync.Mutex
	config BusConfig
	queue  *blockQueue
	player *oto.Player
	log    zerolog.Logger
}

// NewOto creates an unconfigured oto bus
func NewOto() *Oto {
	return &Oto{}
}

// Configure opens the device at the given format
func (o *Oto) Configure(config BusConfig) error {
	if err := config.Format.Validate(); err != nil {
		return fmt.Errorf("oto bus: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.closePlayer()

	config = config.withDefaults()
	frame := time.Duration(config.Format.FrameMs) * time.Millisecond
	ctx, err := sharedOtoContext(config.Format.SampleRate, config.Format.Channels, 2*frame)
	if err != nil {
		return err
	}

	o.config = config
	o.queue = newBlockQueue(config.Blocks)
	o.log = config.Logger.With().Str("component", "bus").Str("backend", "oto").Logger()
	o.player = ctx.NewPlayer(queueReader{o.queue})
	o.player.SetBufferSize(config.Format.BlockSize())

	o.log.Info().Str("format", config.Format.String()).Msg("Audio output initialized")
	return nil
}

// Write queues a block
func (o *Oto) Write(ctx context.Context, b *Block, timeout time.Duration) error {
	o.mu.Lock()
	q := o.queue
	o.mu.Unlock()

	if q == nil {
		b.Release()
		return ErrNotConfigured
	}
	return q.push(ctx, b, timeout)
}

// Trigger applies a transport command to queue and player
func (o *Oto) Trigger(t Trigger) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.queue == nil {
		return ErrNotConfigured
	}
	o.log.Debug().Str("trigger", t.String()).Msg("Bus trigger")

	if t == TriggerStart {
		o.queue.running.Store(true)
		o.player.Play()
		return nil
	}

	err := o.queue.trigger(t, o.config.DrainTimeout)
	o.player.Pause()
	return err
}

// Close releases the player. The process-wide context stays suspended for reuse.
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.closePlayer()

	otoMu.Lock()
	if otoCtx != nil {
		if err := otoCtx.Suspend(); err != nil {
			o.log.Warn().Err(err).Msg("oto context suspend failed")
		}
	}
	otoMu.Unlock()
	return nil
}

// closePlayer stops and frees the player (must hold o.mu)
func (o *Oto) closePlayer() {
	if o.queue != nil {
		o.queue.running.Store(false)
		o.queue.drop()
	}
	if o.player != nil {
		if err := o.player.Close(); err != nil {
			o.log.Warn().Err(err).Msg("oto player close failed")
		}
		o.player = nil
	}
	o.queue = nil
}

// queueReader adapts the block queue to the io.Reader oto pulls from
type queueReader struct {
	q *blockQueue
}

func (r queueReader) Read(p []byte) (int, error) {
	r.q.read(p)
	return len(p), nil
}
