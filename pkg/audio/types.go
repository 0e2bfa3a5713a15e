// ABOUTME: Audio type definitions
// ABOUTME: Defines the PCM output format and block sizing helpers
package audio

import (
	"encoding/binary"
	"fmt"
)

// Default engine output configuration. The device-side encoder produces
// 48 kHz mono Opus in 20 ms frames; the bus is clocked for interleaved stereo.
const (
	DefaultSampleRate      = 48000
	DefaultChannels        = 2
	DefaultDecoderChannels = 1
	DefaultBitDepth        = 16
	DefaultFrameMs         = 20
)

// Format describes the PCM layout delivered to the output bus
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
	FrameMs    int // duration covered by one output block
}

// DefaultFormat returns the engine's fixed output format
func DefaultFormat() Format {
	return Format{
		SampleRate: DefaultSampleRate,
		Channels:   DefaultChannels,
		BitDepth:   DefaultBitDepth,
		FrameMs:    DefaultFrameMs,
	}
}

// Validate checks that the format can be used to size blocks
func (f Format) Validate() error {
	if f.SampleRate <= 0 || f.SampleRate%1000 != 0 {
		return fmt.Errorf("invalid sample rate: %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("invalid channel count: %d", f.Channels)
	}
	if f.BitDepth != 16 {
		return fmt.Errorf("unsupported bit depth: %d (supported: 16)", f.BitDepth)
	}
	if f.FrameMs <= 0 {
		return fmt.Errorf("invalid frame duration: %dms", f.FrameMs)
	}
	return nil
}

// BytesPerSample returns the size of one sample of one channel
func (f Format) BytesPerSample() int {
	return f.BitDepth / 8
}

// FrameSamples returns samples per channel in one frame
func (f Format) FrameSamples() int {
	return (f.SampleRate / 1000) * f.FrameMs
}

// BlockSamples returns the interleaved sample count of one output block
func (f Format) BlockSamples() int {
	return f.FrameSamples() * f.Channels
}

// BlockSize returns the byte size of one output block
func (f Format) BlockSize() int {
	return f.BlockSamples() * f.BytesPerSample()
}

// String implements fmt.Stringer
func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit/%dms", f.SampleRate, f.Channels, f.BitDepth, f.FrameMs)
}

// PutInt16LE packs samples into dst as little-endian 16-bit PCM.
// It returns the number of bytes written, bounded by len(dst).
func PutInt16LE(dst []byte, samples []int16) int {
	n := len(samples)
	if limit := len(dst) / 2; n > limit {
		n = limit
	}
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(samples[i]))
	}
	return n * 2
}

// Int16LE unpacks little-endian 16-bit PCM
func Int16LE(src []byte) []int16 {
	samples := make([]int16, len(src)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(src[i*2:]))
	}
	return samples
}
