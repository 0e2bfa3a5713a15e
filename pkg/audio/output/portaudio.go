//go:build portaudio && cgo && !nohw

// ABOUTME: PortAudio-based audio bus
// ABOUTME: Cross-platform output pulling queued blocks from the PortAudio stream callback
package output

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

func init() {
	Register("portaudio", func() (Bus, error) { return NewPortAudio(), nil })
}

// PortAudio is a bus backed by the default PortAudio output stream
type PortAudio struct {
	mu          sync.Mutex
	config      BusConfig
	queue       *blockQueue
	stream      *portaudio.Stream
	started     bool
	initialized bool
	scratch     []byte
	log         zerolog.Logger
}

// NewPortAudio creates an unconfigured PortAudio bus
func NewPortAudio() *PortAudio {
	return &PortAudio{}
}

// Configure opens the default output stream at the given format. The
// stream stays stopped until TriggerStart.
func (p *PortAudio) Configure(config BusConfig) error {
	if err := config.Format.Validate(); err != nil {
		return fmt.Errorf("portaudio bus: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.closeStream()

	config = config.withDefaults()
	p.log = config.Logger.With().Str("component", "bus").Str("backend", "portaudio").Logger()

	if !p.initialized {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize portaudio: %w", err)
		}
		p.initialized = true
	}

	queue := newBlockQueue(config.Blocks)
	frames := config.Format.FrameSamples()

	stream, err := portaudio.OpenDefaultStream(0, config.Format.Channels, float64(config.Format.SampleRate), frames,
		func(out []int16) {
			// the callback only runs between Start and Stop, serialized by PortAudio
			if cap(p.scratch) < len(out)*2 {
				p.scratch = make([]byte, len(out)*2)
			}
			buf := p.scratch[:len(out)*2]
			queue.read(buf)
			for i := range out {
				out[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
			}
		})
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}

	p.config = config
	p.queue = queue
	p.stream = stream

	p.log.Info().Str("format", config.Format.String()).Msg("Audio output initialized")
	return nil
}

// Write queues a block
func (p *PortAudio) Write(ctx context.Context, b *Block, timeout time.Duration) error {
	p.mu.Lock()
	q := p.queue
	p.mu.Unlock()

	if q == nil {
		b.Release()
		return ErrNotConfigured
	}
	return q.push(ctx, b, timeout)
}

// Trigger applies a transport command to queue and stream
func (p *PortAudio) Trigger(t Trigger) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return ErrNotConfigured
	}
	p.log.Debug().Str("trigger", t.String()).Msg("Bus trigger")

	if t == TriggerStart {
		p.queue.running.Store(true)
		if !p.started {
			if err := p.stream.Start(); err != nil {
				return fmt.Errorf("failed to start stream: %w", err)
			}
			p.started = true
		}
		return nil
	}

	err := p.queue.trigger(t, p.config.DrainTimeout)
	p.stopStream()
	return err
}

// Close releases the stream and terminates PortAudio
func (p *PortAudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closeStream()
	if p.initialized {
		p.initialized = false
		return portaudio.Terminate()
	}
	return nil
}

// stopStream stops the stream if running (must hold p.mu)
func (p *PortAudio) stopStream() {
	if !p.started {
		return
	}
	if err := p.stream.Stop(); err != nil {
		p.log.Warn().Err(err).Msg("Stream stop error")
	}
	p.started = false
}

// closeStream stops and closes the stream (must hold p.mu)
func (p *PortAudio) closeStream() {
	if p.queue != nil {
		p.queue.running.Store(false)
		p.queue.drop()
		p.queue = nil
	}
	if p.stream != nil {
		p.stopStream()
		if err := p.stream.Close(); err != nil {
			p.log.Warn().Err(err).Msg("Stream close error")
		}
		p.stream = nil
	}
}
