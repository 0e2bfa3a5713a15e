// ABOUTME: Opus audio encoder
// ABOUTME: Encodes int16 frames to Opus packets with libopus
package encode

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// maxPacketSize is the largest packet libopus will produce
const maxPacketSize = 4000

// OpusConfig configures an OpusEncoder
type OpusConfig struct {
	SampleRate int
	Channels   int
	FrameMs    int // default: 20
	Bitrate    int // bits per second, 0 keeps the libopus default
}

// OpusEncoder encodes Opus audio
type OpusEncoder struct {
	encoder   *opus.Encoder
	channels  int
	frameSize int // samples per channel
	packet    []byte
}

// NewOpus creates a new Opus encoder
func NewOpus(config OpusConfig) (*OpusEncoder, error) {
	if config.FrameMs == 0 {
		config.FrameMs = 20
	}
	switch config.FrameMs {
	case 10, 20, 40, 60:
	default:
		return nil, fmt.Errorf("unsupported opus frame duration: %dms", config.FrameMs)
	}

	encoder, err := opus.NewEncoder(config.SampleRate, config.Channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}
	if config.Bitrate > 0 {
		if err := encoder.SetBitrate(config.Bitrate); err != nil {
			return nil, fmt.Errorf("failed to set opus bitrate: %w", err)
		}
	}

	return &OpusEncoder{
		encoder:   encoder,
		channels:  config.Channels,
		frameSize: config.SampleRate / 1000 * config.FrameMs,
		packet:    make([]byte, maxPacketSize),
	}, nil
}

// FrameSamples returns interleaved samples per frame
func (e *OpusEncoder) FrameSamples() int {
	return e.frameSize * e.channels
}

// Encode converts one frame to an Opus packet. The returned slice is a copy.
func (e *OpusEncoder) Encode(pcm []int16) ([]byte, error) {
	if len(pcm) != e.FrameSamples() {
		return nil, fmt.Errorf("opus frame has %d samples, want %d", len(pcm), e.FrameSamples())
	}

	n, err := e.encoder.Encode(pcm, e.packet)
	if err != nil {
		return nil, fmt.Errorf("opus encode error: %w", err)
	}

	out := make([]byte, n)
	copy(out, e.packet[:n])
	return out, nil
}

// Close releases resources
func (e *OpusEncoder) Close() error {
	return nil
}
