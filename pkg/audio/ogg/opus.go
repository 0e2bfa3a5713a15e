// ABOUTME: Opus identification and comment header handling
// ABOUTME: Parses OpusHead and recognizes OpusTags packets
package ogg

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	opusHeadMagic = "OpusHead"
	opusTagsMagic = "OpusTags"
	opusHeadSize  = 19
)

var (
	// ErrNoHeader is returned when the stream ends or the first page holds no header packet
	ErrNoHeader = errors.New("ogg: missing opus header packet")
	// ErrBadHeader is returned when the identification header cannot be parsed
	ErrBadHeader = errors.New("ogg: cannot parse opus header")
	// ErrUnsupportedMapping is returned for multistream channel mappings
	ErrUnsupportedMapping = errors.New("ogg: unsupported opus channel mapping")
)

// OpusHead is the Opus identification header
type OpusHead struct {
	Version         uint8
	Channels        int
	PreSkip         uint16
	InputSampleRate uint32
	OutputGain      int16
	MappingFamily   uint8
	StreamCount     int
	CoupledCount    int
	Mapping         []byte
}

// ParseOpusHead decodes an identification header packet
func ParseOpusHead(data []byte) (OpusHead, error) {
	var h OpusHead

	if len(data) < opusHeadSize || !bytes.HasPrefix(data, []byte(opusHeadMagic)) {
		return h, fmt.Errorf("%w: not an OpusHead packet", ErrBadHeader)
	}

	h.Version = data[8]
	if h.Version>>4 != 0 {
		return h, fmt.Errorf("%w: unsupported version %d", ErrBadHeader, h.Version)
	}

	h.Channels = int(data[9])
	if h.Channels == 0 {
		return h, fmt.Errorf("%w: zero channels", ErrBadHeader)
	}

	h.PreSkip = binary.LittleEndian.Uint16(data[10:])
	h.InputSampleRate = binary.LittleEndian.Uint32(data[12:])
	h.OutputGain = int16(binary.LittleEndian.Uint16(data[16:]))
	h.MappingFamily = data[18]

	if h.MappingFamily == 0 {
		if h.Channels > 2 {
			return h, fmt.Errorf("%w: %d channels with mapping family 0", ErrBadHeader, h.Channels)
		}
		h.StreamCount = 1
		h.CoupledCount = h.Channels - 1
		return h, nil
	}

	if len(data) < opusHeadSize+2+h.Channels {
		return h, fmt.Errorf("%w: truncated channel mapping table", ErrBadHeader)
	}
	h.StreamCount = int(data[19])
	h.CoupledCount = int(data[20])
	h.Mapping = append([]byte(nil), data[21:21+h.Channels]...)

	return h, nil
}

// Marshal encodes the header as an identification packet
func (h OpusHead) Marshal() []byte {
	size := opusHeadSize
	if h.MappingFamily != 0 {
		size += 2 + len(h.Mapping)
	}

	buf := make([]byte, size)
	copy(buf, opusHeadMagic)
	buf[8] = h.Version
	buf[9] = byte(h.Channels)
	binary.LittleEndian.PutUint16(buf[10:], h.PreSkip)
	binary.LittleEndian.PutUint32(buf[12:], h.InputSampleRate)
	binary.LittleEndian.PutUint16(buf[16:], uint16(h.OutputGain))
	buf[18] = h.MappingFamily
	if h.MappingFamily != 0 {
		buf[19] = byte(h.StreamCount)
		buf[20] = byte(h.CoupledCount)
		copy(buf[21:], h.Mapping)
	}
	return buf
}

// IsOpusTags reports whether data is an OpusTags comment packet
func IsOpusTags(data []byte) bool {
	return bytes.HasPrefix(data, []byte(opusTagsMagic))
}

// OpusTags builds a comment header packet with the given vendor string and no comments
func OpusTags(vendor string) []byte {
	buf := make([]byte, 8+4+len(vendor)+4)
	copy(buf, opusTagsMagic)
	binary.LittleEndian.PutUint32(buf[8:], uint32(len(vendor)))
	copy(buf[12:], vendor)
	binary.LittleEndian.PutUint32(buf[12+len(vendor):], 0)
	return buf
}
