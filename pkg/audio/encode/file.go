// ABOUTME: Ogg/Opus file writer
// ABOUTME: Frames encoded packets into an Ogg stream the demuxer can read
package encode

import (
	"fmt"
	"io"

	"github.com/Resonate-Protocol/resonate-speaker/pkg/audio/ogg"
)

// DefaultVendor is written into the comment header
const DefaultVendor = "resonate-speaker"

// opusPreSkip is the standard encoder lookahead at 48 kHz
const opusPreSkip = 312

// FileConfig configures a File
type FileConfig struct {
	SampleRate int
	Channels   int
	FrameMs    int    // default: 20
	Bitrate    int    // default: libopus choice
	Serial     uint32 // logical stream serial number
	Vendor     string // default: DefaultVendor

	// PacketsPerPage groups packets on a page (default: 1)
	PacketsPerPage int

	// Encoder overrides the Opus encoder, mainly for tests
	Encoder Encoder
}

// File writes a single-stream Ogg/Opus file
type File struct {
	w       *ogg.Writer
	enc     Encoder
	config  FileConfig
	pending []int16
	page    [][]byte
	granule int64
	packets int64
	closed  bool
}

// NewFile writes the Opus headers to w and returns a writer for audio
func NewFile(w io.Writer, config FileConfig) (*File, error) {
	if config.Vendor == "" {
		config.Vendor = DefaultVendor
	}
	if config.PacketsPerPage <= 0 {
		config.PacketsPerPage = 1
	}

	enc := config.Encoder
	if enc == nil {
		opusEnc, err := NewOpus(OpusConfig{
			SampleRate: config.SampleRate,
			Channels:   config.Channels,
			FrameMs:    config.FrameMs,
			Bitrate:    config.Bitrate,
		})
		if err != nil {
			return nil, err
		}
		enc = opusEnc
	}

	f := &File{
		w:      ogg.NewWriter(w, config.Serial),
		enc:    enc,
		config: config,
	}

	head := ogg.OpusHead{
		Version:         1,
		Channels:        config.Channels,
		PreSkip:         opusPreSkip,
		InputSampleRate: uint32(config.SampleRate),
	}
	if err := f.w.WriteOpusHeaders(head, config.Vendor); err != nil {
		return nil, fmt.Errorf("write opus headers: %w", err)
	}
	return f, nil
}

// Write encodes interleaved PCM. Samples that do not fill a frame are
// held until the next Write or Close.
func (f *File) Write(pcm []int16) error {
	if f.closed {
		return io.ErrClosedPipe
	}

	f.pending = append(f.pending, pcm...)
	frame := f.enc.FrameSamples()
	for len(f.pending) >= frame {
		if err := f.encodeFrame(f.pending[:frame]); err != nil {
			return err
		}
		f.pending = f.pending[frame:]
	}
	return nil
}

func (f *File) encodeFrame(pcm []int16) error {
	packet, err := f.enc.Encode(pcm)
	if err != nil {
		return err
	}

	f.packets++
	f.granule += int64(len(pcm) / f.config.Channels)
	f.page = append(f.page, packet)
	if len(f.page) >= f.config.PacketsPerPage {
		return f.flush()
	}
	return nil
}

func (f *File) flush() error {
	if len(f.page) == 0 {
		return nil
	}
	if err := f.w.WritePackets(f.granule, f.page...); err != nil {
		return fmt.Errorf("write page: %w", err)
	}
	f.page = f.page[:0]
	return nil
}

// Packets returns the number of audio packets encoded so far
func (f *File) Packets() int64 {
	return f.packets
}

// Close pads the last partial frame with silence, writes the end of
// stream page, and releases the encoder
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	if len(f.pending) > 0 {
		frame := make([]int16, f.enc.FrameSamples())
		copy(frame, f.pending)
		f.pending = nil
		if err := f.encodeFrame(frame); err != nil {
			return err
		}
	}
	if err := f.flush(); err != nil {
		return err
	}
	if err := f.w.Finish(f.granule); err != nil {
		return fmt.Errorf("write end of stream: %w", err)
	}
	return f.enc.Close()
}
