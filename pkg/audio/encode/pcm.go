// ABOUTME: PCM sources for the encoder
// ABOUTME: Reads raw little-endian 16-bit PCM and synthesizes test tones
package encode

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"
)

// ReadPCM reads raw interleaved little-endian 16-bit PCM until EOF
func ReadPCM(r io.Reader) ([]int16, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pcm: %w", err)
	}
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("pcm input has odd length %d", len(data))
	}

	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples, nil
}

// Tone synthesizes a sine wave at freq Hz with the same signal on every
// channel. Amplitude is a fraction of full scale.
func Tone(freq float64, duration time.Duration, sampleRate, channels int, amplitude float64) []int16 {
	frames := int(math.Round(duration.Seconds() * float64(sampleRate)))
	out := make([]int16, frames*channels)

	for i := 0; i < frames; i++ {
		v := int16(amplitude * math.MaxInt16 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
		for ch := 0; ch < channels; ch++ {
			out[i*channels+ch] = v
		}
	}
	return out
}
