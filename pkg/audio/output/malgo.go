//go:build cgo && !nohw

// ABOUTME: Malgo-based audio bus
// ABOUTME: Feeds queued blocks to a miniaudio playback device from its data callback
package output

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"
)

func init() {
	Register("malgo", func() (Bus, error) { return NewMalgo(), nil })
}

// Malgo is a bus backed by a miniaudio device
type Malgo struct {
	mu       sync.Mutex
	config   BusConfig
	queue    *blockQueue
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	log      zerolog.Logger
}

// NewMalgo creates an unconfigured malgo bus
func NewMalgo() *Malgo {
	return &Malgo{}
}

// Configure initializes the playback device at the given format. The
// device stays stopped until TriggerStart.
func (m *Malgo) Configure(config BusConfig) error {
	if err := config.Format.Validate(); err != nil {
		return fmt.Errorf("malgo bus: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeDevice()

	config = config.withDefaults()
	m.log = config.Logger.With().Str("component", "bus").Str("backend", "malgo").Logger()

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	queue := newBlockQueue(config.Blocks)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(config.Format.Channels)
	deviceConfig.SampleRate = uint32(config.Format.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(config.Format.FrameSamples())
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, pInput []byte, frameCount uint32) {
			queue.read(pOutput)
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	m.config = config
	m.queue = queue
	m.device = device

	m.log.Info().Str("format", config.Format.String()).Msg("Audio output initialized")
	return nil
}

// Write queues a block
func (m *Malgo) Write(ctx context.Context, b *Block, timeout time.Duration) error {
	m.mu.Lock()
	q := m.queue
	m.mu.Unlock()

	if q == nil {
		b.Release()
		return ErrNotConfigured
	}
	return q.push(ctx, b, timeout)
}

// Trigger applies a transport command to queue and device
func (m *Malgo) Trigger(t Trigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return ErrNotConfigured
	}
	m.log.Debug().Str("trigger", t.String()).Msg("Bus trigger")

	if t == TriggerStart {
		m.queue.running.Store(true)
		if !m.device.IsStarted() {
			if err := m.device.Start(); err != nil {
				return fmt.Errorf("failed to start device: %w", err)
			}
		}
		return nil
	}

	err := m.queue.trigger(t, m.config.DrainTimeout)
	if m.device.IsStarted() {
		if stopErr := m.device.Stop(); stopErr != nil {
			m.log.Warn().Err(stopErr).Msg("Device stop error")
		}
	}
	return err
}

// Close releases the device and context
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeDevice()

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			m.log.Warn().Err(err).Msg("malgo context uninit error")
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

// closeDevice stops and uninitializes the device (must hold m.mu)
func (m *Malgo) closeDevice() {
	if m.queue != nil {
		m.queue.running.Store(false)
		m.queue.drop()
		m.queue = nil
	}
	if m.device != nil {
		if m.device.IsStarted() {
			if err := m.device.Stop(); err != nil {
				m.log.Warn().Err(err).Msg("Device stop error")
			}
		}
		m.device.Uninit()
		m.device = nil
	}
}
