// ABOUTME: Logical bitstream packet assembly
// ABOUTME: Reassembles codec packets from the lacing of consecutive pages
package ogg

// Packet is one codec packet of a logical stream. Data is borrowed from the
// stream and valid until the next PageIn.
type Packet struct {
	Data     []byte
	Granule  int64 // -1 unless the packet is the last one completed on its page
	PacketNo int64
	BOS      bool
	EOS      bool
}

// Stream assembles packets for a single logical stream, identified by its
// serial number.
type Stream struct {
	serial uint32

	started bool
	seq     uint32

	partial []byte
	open    bool // partial holds the head of an unfinished packet

	arena    []byte
	queue    []Packet
	head     int
	packetNo int64
	lost     int64
}

// NewStream creates a stream context for the given serial number
func NewStream(serial uint32) *Stream {
	return &Stream{serial: serial}
}

// Serial returns the stream's serial number
func (s *Stream) Serial() uint32 {
	return s.serial
}

// Lost returns how many page sequence gaps have been observed
func (s *Stream) Lost() int64 {
	return s.lost
}

// PageIn submits a page to the stream. Packets completed by the page become
// available through PacketOut.
func (s *Stream) PageIn(p Page) error {
	if p.Serial != s.serial {
		return ErrSerialMismatch
	}

	if s.head >= len(s.queue) {
		s.queue = s.queue[:0]
		s.head = 0
		s.arena = s.arena[:0]
	}

	if s.started && p.Sequence != s.seq+1 {
		s.lost++
		s.partial = s.partial[:0]
		s.open = false
	}
	s.started = true
	s.seq = p.Sequence

	cont := p.Continued()
	if !cont && s.open {
		// the previous page promised a continuation that never came
		s.partial = s.partial[:0]
		s.open = false
	}
	skip := cont && !s.open

	completed := -1
	off := 0
	for _, lace := range p.Lacing {
		seg := p.Body[off : off+int(lace)]
		off += int(lace)

		if skip {
			if lace < 255 {
				skip = false
			}
			continue
		}

		s.partial = append(s.partial, seg...)
		s.open = true
		if lace == 255 {
			continue
		}

		start := len(s.arena)
		s.arena = append(s.arena, s.partial...)
		s.queue = append(s.queue, Packet{
			Data:     s.arena[start:len(s.arena):len(s.arena)],
			Granule:  -1,
			PacketNo: s.packetNo,
			BOS:      s.packetNo == 0,
		})
		s.packetNo++
		completed = len(s.queue) - 1
		s.partial = s.partial[:0]
		s.open = false
	}

	if completed >= 0 {
		s.queue[completed].Granule = p.Granule
		s.queue[completed].EOS = p.EOS() && !s.open
	}

	return nil
}

// PacketOut returns the next complete packet, or false when the stream
// needs another page.
func (s *Stream) PacketOut() (Packet, bool) {
	if s.head >= len(s.queue) {
		return Packet{}, false
	}
	pkt := s.queue[s.head]
	s.head++
	return pkt, true
}

// Reset clears all stream state but keeps the serial number
func (s *Stream) Reset() {
	*s = Stream{serial: s.serial}
}
