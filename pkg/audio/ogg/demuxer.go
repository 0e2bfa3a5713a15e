// ABOUTME: Incremental Ogg/Opus demuxer
// ABOUTME: Pulls fixed-size chunks from a reader and yields audio packets after the headers
package ogg

import (
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/rs/zerolog"
)

// DefaultChunkSize is the number of bytes pulled from the reader per read
const DefaultChunkSize = 2048

// DemuxerConfig configures a Demuxer
type DemuxerConfig struct {
	// ChunkSize is the read size (default: DefaultChunkSize)
	ChunkSize int

	// Yield runs after every read so other goroutines get the processor
	// (default: runtime.Gosched)
	Yield func()

	Logger zerolog.Logger
}

// DemuxStats counts demuxer activity
type DemuxStats struct {
	BytesRead    int64
	Reads        int64
	Pages        int64
	ForeignPages int64
	Packets      int64
	TagsSkipped  int64
}

// Demuxer extracts Opus packets from a single logical Ogg stream. The first
// page provides the serial number and the identification header; the
// packet that follows the header is the comment header and is dropped.
type Demuxer struct {
	r      io.Reader
	config DemuxerConfig
	log    zerolog.Logger

	sync   Sync
	stream *Stream
	head   OpusHead
	chunk  []byte

	tagsSkipped bool
	eof         bool
	closed      bool
	stats       DemuxStats
}

// NewDemuxer creates a demuxer reading from r
func NewDemuxer(r io.Reader, config DemuxerConfig) *Demuxer {
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkSize
	}
	if config.Yield == nil {
		config.Yield = runtime.Gosched
	}

	return &Demuxer{
		r:      r,
		config: config,
		log:    config.Logger.With().Str("component", "demux").Logger(),
		chunk:  make([]byte, config.ChunkSize),
	}
}

// Next returns the next audio packet. The slice is only valid until the
// following call. io.EOF marks a normal end of stream.
func (d *Demuxer) Next() ([]byte, error) {
	if d.closed {
		return nil, io.EOF
	}

	for {
		if d.stream != nil {
			if pkt, ok := d.stream.PacketOut(); ok {
				if !d.tagsSkipped {
					d.tagsSkipped = true
					d.stats.TagsSkipped++
					if !IsOpusTags(pkt.Data) {
						d.log.Warn().Int("bytes", len(pkt.Data)).Msg("Second packet is not OpusTags, skipping anyway")
					}
					d.log.Debug().Msg("Tags packet skipped")
					continue
				}
				d.stats.Packets++
				return pkt.Data, nil
			}
		}

		if page, ok := d.sync.PageOut(); ok {
			d.stats.Pages++
			if err := d.handlePage(page); err != nil {
				return nil, err
			}
			continue
		}

		if d.eof {
			if d.stream == nil {
				return nil, ErrNoHeader
			}
			return nil, io.EOF
		}

		if err := d.fill(); err != nil {
			return nil, err
		}
	}
}

// fill reads one chunk into the sync buffer
func (d *Demuxer) fill() error {
	n, err := d.r.Read(d.chunk)
	d.stats.Reads++
	if n > 0 {
		d.stats.BytesRead += int64(n)
		d.sync.Write(d.chunk[:n])
	}

	d.config.Yield()

	switch {
	case errors.Is(err, io.EOF):
		d.eof = true
	case err != nil:
		return fmt.Errorf("read container: %w", err)
	case n == 0:
		// a reader that makes no progress is treated as exhausted
		d.eof = true
	}
	return nil
}

// handlePage routes a page to the logical stream, initializing it from the first page
func (d *Demuxer) handlePage(page Page) error {
	if d.stream == nil {
		stream := NewStream(page.Serial)
		if err := stream.PageIn(page); err != nil {
			return err
		}

		pkt, ok := stream.PacketOut()
		if !ok {
			return ErrNoHeader
		}
		head, err := ParseOpusHead(pkt.Data)
		if err != nil {
			return err
		}
		if head.MappingFamily != 0 {
			return fmt.Errorf("%w: family %d", ErrUnsupportedMapping, head.MappingFamily)
		}

		d.stream = stream
		d.head = head
		d.log.Info().
			Uint32("serial", page.Serial).
			Uint32("sample_rate", head.InputSampleRate).
			Int("channels", head.Channels).
			Uint16("pre_skip", head.PreSkip).
			Msg("Opus stream header parsed")
		return nil
	}

	if page.Serial != d.stream.Serial() {
		d.stats.ForeignPages++
		return nil
	}
	return d.stream.PageIn(page)
}

// Header returns the parsed identification header once the first page is read
func (d *Demuxer) Header() (OpusHead, bool) {
	return d.head, d.stream != nil
}

// Stats returns demuxer counters
func (d *Demuxer) Stats() DemuxStats {
	return d.stats
}

// Close releases the sync buffer and stream state. It is safe to call more
// than once and reports whether this call performed the release.
func (d *Demuxer) Close() bool {
	if d.closed {
		return false
	}
	d.closed = true
	d.sync.Reset()
	d.stream = nil
	d.chunk = nil
	return true
}
