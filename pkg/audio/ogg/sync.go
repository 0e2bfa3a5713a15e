// ABOUTME: Ogg page synchronization buffer
// ABOUTME: Accepts raw byte chunks and extracts CRC-verified pages
package ogg

import (
	"bytes"
	"encoding/binary"
)

// Sync accumulates raw container bytes and carves complete pages out of
// them, skipping garbage and pages that fail their checksum.
type Sync struct {
	buf     []byte
	start   int
	skipped int64
}

// Write appends raw stream bytes. It never fails.
func (s *Sync) Write(p []byte) (int, error) {
	if s.start > 0 && s.start >= len(s.buf)/2 {
		n := copy(s.buf, s.buf[s.start:])
		s.buf = s.buf[:n]
		s.start = 0
	}
	s.buf = append(s.buf, p...)
	return len(p), nil
}

// PageOut returns the next complete page. ok is false when more data is
// needed. The returned page borrows from the buffer.
func (s *Sync) PageOut() (page Page, ok bool) {
	for {
		data := s.buf[s.start:]
		if len(data) < headerSize {
			return Page{}, false
		}

		if !bytes.HasPrefix(data, []byte(capturePattern)) {
			idx := bytes.Index(data[1:], []byte(capturePattern))
			if idx < 0 {
				// keep a possible partial capture pattern at the tail
				drop := len(data) - (len(capturePattern) - 1)
				s.start += drop
				s.skipped += int64(drop)
				return Page{}, false
			}
			s.start += idx + 1
			s.skipped += int64(idx + 1)
			continue
		}

		nseg := int(data[26])
		if len(data) < headerSize+nseg {
			return Page{}, false
		}
		bodyLen := 0
		for _, l := range data[headerSize : headerSize+nseg] {
			bodyLen += int(l)
		}
		total := headerSize + nseg + bodyLen
		if len(data) < total {
			return Page{}, false
		}

		raw := data[:total]
		if binary.LittleEndian.Uint32(raw[22:]) != checksum(raw) {
			// false capture or corrupt page: resync one byte further
			s.start++
			s.skipped++
			continue
		}

		s.start += total
		return parseHeader(raw), true
	}
}

// Skipped returns the number of bytes discarded while resynchronizing
func (s *Sync) Skipped() int64 {
	return s.skipped
}

// Buffered returns the number of bytes waiting to be framed
func (s *Sync) Buffered() int {
	return len(s.buf) - s.start
}

// Reset drops all buffered data
func (s *Sync) Reset() {
	s.buf = nil
	s.start = 0
	s.skipped = 0
}
