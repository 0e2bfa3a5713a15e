// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for packet encoders that feed the Ogg writer
package encode

// Encoder encodes one frame of interleaved PCM into a compressed packet
type Encoder interface {
	// Encode converts exactly FrameSamples interleaved samples to a packet
	Encode(pcm []int16) ([]byte, error)

	// FrameSamples is the number of interleaved samples per frame
	FrameSamples() int

	// Close releases encoder resources
	Close() error
}
