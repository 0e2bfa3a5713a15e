// ABOUTME: Ogg page writer
// ABOUTME: Frames packets into checksummed pages, used for fixtures and tooling
package ogg

import (
	"io"
)

// Writer frames packets of a single logical stream into Ogg pages
type Writer struct {
	w        io.Writer
	serial   uint32
	sequence uint32
	started  bool
}

// NewWriter creates a page writer for one logical stream
func NewWriter(w io.Writer, serial uint32) *Writer {
	return &Writer{w: w, serial: serial}
}

// WritePage writes a page as given, filling in serial and sequence number
func (w *Writer) WritePage(p Page) error {
	p.Serial = w.serial
	p.Sequence = w.sequence
	if !w.started {
		p.HeaderType |= FlagBOS
	}

	buf, err := p.marshal()
	if err != nil {
		return err
	}
	if _, err := w.w.Write(buf); err != nil {
		return err
	}

	w.started = true
	w.sequence++
	return nil
}

// WritePackets writes the packets on a single page ending at granule
func (w *Writer) WritePackets(granule int64, packets ...[]byte) error {
	var lacing, body []byte
	for _, p := range packets {
		lacing = append(lacing, Lace(len(p))...)
		body = append(body, p...)
	}
	return w.WritePage(Page{Granule: granule, Lacing: lacing, Body: body})
}

// WriteOpusHeaders writes the identification and comment header pages
func (w *Writer) WriteOpusHeaders(head OpusHead, vendor string) error {
	if err := w.WritePackets(0, head.Marshal()); err != nil {
		return err
	}
	return w.WritePackets(0, OpusTags(vendor))
}

// Finish writes an empty end-of-stream page
func (w *Writer) Finish(granule int64) error {
	return w.WritePage(Page{HeaderType: FlagEOS, Granule: granule})
}
