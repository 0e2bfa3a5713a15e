// ABOUTME: Opus codec backend
// ABOUTME: Wraps libopus through hraban/opus for the decoder adapter
package decode

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// OpusDecoder decodes Opus packets
type OpusDecoder struct {
	decoder  *opus.Decoder
	channels int
}

// NewOpus creates an Opus backend at the configured rate and channel count.
// libopus mixes the stream's own channel layout to the requested one.
func NewOpus(config Config) (PacketDecoder, error) {
	dec, err := opus.NewDecoder(config.SampleRate, config.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	return &OpusDecoder{
		decoder:  dec,
		channels: config.Channels,
	}, nil
}

// Decode decodes one packet into pcm and returns samples per channel
func (d *OpusDecoder) Decode(packet []byte, pcm []int16) (int, error) {
	if len(pcm) < d.channels {
		return 0, fmt.Errorf("pcm buffer too small: %d samples", len(pcm))
	}
	n, err := d.decoder.Decode(packet, pcm)
	if err != nil {
		return 0, fmt.Errorf("opus decode failed: %w", err)
	}
	return n, nil
}
