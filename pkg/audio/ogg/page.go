// ABOUTME: Ogg page layout, header parsing, and CRC
// ABOUTME: Shared by the sync buffer (reading) and the page writer
package ogg

import (
	"encoding/binary"
	"errors"
)

const (
	capturePattern = "OggS"
	headerSize     = 27
	maxSegments    = 255

	// Header type flags
	FlagContinued = 0x01
	FlagBOS       = 0x02
	FlagEOS       = 0x04
)

var (
	// ErrSerialMismatch is returned when a page is fed to a stream with a different serial
	ErrSerialMismatch = errors.New("ogg: page serial does not match stream")
	// ErrPageTooLarge is returned when a page would need more than 255 lacing values
	ErrPageTooLarge = errors.New("ogg: page payload exceeds 255 segments")
)

// Page is one framing page of an Ogg physical stream. Pages returned by
// Sync.PageOut borrow Lacing and Body from the sync buffer and are only
// valid until the next Write.
type Page struct {
	Version    uint8
	HeaderType byte
	Granule    int64
	Serial     uint32
	Sequence   uint32
	Lacing     []byte
	Body       []byte
}

// Continued reports whether the first packet continues one from the previous page
func (p Page) Continued() bool { return p.HeaderType&FlagContinued != 0 }

// BOS reports whether this is the first page of a logical stream
func (p Page) BOS() bool { return p.HeaderType&FlagBOS != 0 }

// EOS reports whether this is the last page of a logical stream
func (p Page) EOS() bool { return p.HeaderType&FlagEOS != 0 }

// Size returns the encoded size of the page in bytes
func (p Page) Size() int {
	return headerSize + len(p.Lacing) + len(p.Body)
}

// marshal encodes the page including its checksum
func (p Page) marshal() ([]byte, error) {
	if len(p.Lacing) > maxSegments {
		return nil, ErrPageTooLarge
	}

	buf := make([]byte, p.Size())
	copy(buf[0:], capturePattern)
	buf[4] = p.Version
	buf[5] = p.HeaderType
	binary.LittleEndian.PutUint64(buf[6:], uint64(p.Granule))
	binary.LittleEndian.PutUint32(buf[14:], p.Serial)
	binary.LittleEndian.PutUint32(buf[18:], p.Sequence)
	buf[26] = byte(len(p.Lacing))
	copy(buf[headerSize:], p.Lacing)
	copy(buf[headerSize+len(p.Lacing):], p.Body)

	binary.LittleEndian.PutUint32(buf[22:], checksum(buf))
	return buf, nil
}

// parseHeader decodes the fixed header fields of raw, which must hold the
// complete page
func parseHeader(raw []byte) Page {
	nseg := int(raw[26])
	return Page{
		Version:    raw[4],
		HeaderType: raw[5],
		Granule:    int64(binary.LittleEndian.Uint64(raw[6:])),
		Serial:     binary.LittleEndian.Uint32(raw[14:]),
		Sequence:   binary.LittleEndian.Uint32(raw[18:]),
		Lacing:     raw[headerSize : headerSize+nseg],
		Body:       raw[headerSize+nseg:],
	}
}

// Lace splits a packet length into lacing values. A packet whose length is
// a multiple of 255 is terminated by a zero lacing value.
func Lace(size int) []byte {
	lacing := make([]byte, 0, size/255+1)
	for size >= 255 {
		lacing = append(lacing, 255)
		size -= 255
	}
	return append(lacing, byte(size))
}

var crcTable = crcChecksumTable()

// checksum computes the Ogg CRC of a page with its checksum field zeroed
func checksum(page []byte) uint32 {
	var crc uint32
	for i, b := range page {
		if i >= 22 && i < 26 {
			b = 0
		}
		crc = (crc << 8) ^ crcTable[byte(crc>>24)^b]
	}
	return crc
}

func crcChecksumTable() *[256]uint32 {
	var table [256]uint32
	const poly = 0x04c11db7

	for i := range table {
		r := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if r&0x80000000 != 0 {
				r = (r << 1) ^ poly
			} else {
				r <<= 1
			}
		}
		table[i] = r
	}
	return &table
}
