// ABOUTME: Tests for the incremental Ogg/Opus demuxer
// ABOUTME: Builds container fixtures with Writer and checks the packets that come out
package ogg

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/iotest"
)

func buildOpusFile(t *testing.T, head OpusHead, packets ...[]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := NewWriter(&buf, 0xCAFE)
	if err := w.WriteOpusHeaders(head, "resonate-test"); err != nil {
		t.Fatalf("write headers: %v", err)
	}
	for i, p := range packets {
		if err := w.WritePackets(int64((i+1)*960), p); err != nil {
			t.Fatalf("write packet %d: %v", i, err)
		}
	}
	if err := w.Finish(int64(len(packets) * 960)); err != nil {
		t.Fatalf("finish: %v", err)
	}
	return buf.Bytes()
}

func drain(t *testing.T, d *Demuxer) ([][]byte, error) {
	t.Helper()

	var out [][]byte
	for {
		pkt, err := d.Next()
		if err != nil {
			return out, err
		}
		out = append(out, append([]byte(nil), pkt...))
	}
}

func TestDemuxerYieldsAudioPackets(t *testing.T) {
	packets := [][]byte{[]byte("pkt-one"), bytes.Repeat([]byte{0x11}, 700), []byte("pkt-three")}
	data := buildOpusFile(t, monoHead(), packets...)

	yields := 0
	d := NewDemuxer(bytes.NewReader(data), DemuxerConfig{
		ChunkSize: 64,
		Yield:     func() { yields++ },
	})

	got, err := drain(t, d)
	if err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	if len(got) != len(packets) {
		t.Fatalf("expected %d packets, got %d", len(packets), len(got))
	}
	for i := range packets {
		if !bytes.Equal(got[i], packets[i]) {
			t.Errorf("packet %d mismatch", i)
		}
	}

	stats := d.Stats()
	if stats.TagsSkipped != 1 {
		t.Errorf("expected tags skipped once, got %d", stats.TagsSkipped)
	}
	if stats.Packets != int64(len(packets)) {
		t.Errorf("expected %d packets counted, got %d", len(packets), stats.Packets)
	}
	if stats.BytesRead != int64(len(data)) {
		t.Errorf("expected %d bytes read, got %d", len(data), stats.BytesRead)
	}
	if int64(yields) != stats.Reads {
		t.Errorf("expected one yield per read (%d), got %d", stats.Reads, yields)
	}

	head, ok := d.Header()
	if !ok || head.Channels != 1 || head.InputSampleRate != 48000 {
		t.Errorf("unexpected header %+v (ok=%v)", head, ok)
	}
}

func TestDemuxerSkipsSecondPacketEvenIfNotTags(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 5)
	if err := w.WritePackets(0, monoHead().Marshal()); err != nil {
		t.Fatal(err)
	}
	if err := w.WritePackets(960, []byte("audio-a"), []byte("audio-b")); err != nil {
		t.Fatal(err)
	}

	d := NewDemuxer(&buf, DemuxerConfig{Yield: func() {}})
	got, err := drain(t, d)
	if err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	if len(got) != 1 || string(got[0]) != "audio-b" {
		t.Errorf("expected only audio-b, got %q", got)
	}
}

func TestDemuxerErrors(t *testing.T) {
	var garbage bytes.Buffer
	w := NewWriter(&garbage, 1)
	if err := w.WritePackets(0, []byte("not an opus header at all")); err != nil {
		t.Fatal(err)
	}

	surround := OpusHead{
		Version:       1,
		Channels:      2,
		MappingFamily: 1,
		StreamCount:   1,
		CoupledCount:  1,
		Mapping:       []byte{0, 1},
	}

	tests := []struct {
		name     string
		data     []byte
		expected error
	}{
		{"empty file", nil, ErrNoHeader},
		{"no pages", []byte("this is not an ogg file"), ErrNoHeader},
		{"bad header", garbage.Bytes(), ErrBadHeader},
		{"multistream mapping", buildOpusFile(t, surround), ErrUnsupportedMapping},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDemuxer(bytes.NewReader(tt.data), DemuxerConfig{Yield: func() {}})
			_, err := d.Next()
			if !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestDemuxerIgnoresForeignSerial(t *testing.T) {
	var buf bytes.Buffer
	own := NewWriter(&buf, 100)
	other := NewWriter(&buf, 200)

	if err := own.WriteOpusHeaders(monoHead(), "main"); err != nil {
		t.Fatal(err)
	}
	if err := other.WritePackets(0, []byte("foreign")); err != nil {
		t.Fatal(err)
	}
	if err := own.WritePackets(960, []byte("mine")); err != nil {
		t.Fatal(err)
	}

	d := NewDemuxer(&buf, DemuxerConfig{Yield: func() {}})
	got, err := drain(t, d)
	if err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	if len(got) != 1 || string(got[0]) != "mine" {
		t.Errorf("expected only own packets, got %q", got)
	}
	if d.Stats().ForeignPages != 1 {
		t.Errorf("expected 1 foreign page, got %d", d.Stats().ForeignPages)
	}
}

func TestDemuxerReadError(t *testing.T) {
	boom := errors.New("flash read failed")
	d := NewDemuxer(iotest.ErrReader(boom), DemuxerConfig{Yield: func() {}})

	_, err := d.Next()
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped read error, got %v", err)
	}
}

func TestDemuxerOneByteReads(t *testing.T) {
	data := buildOpusFile(t, monoHead(), []byte("a"), []byte("b"))
	d := NewDemuxer(iotest.OneByteReader(bytes.NewReader(data)), DemuxerConfig{Yield: func() {}})

	got, err := drain(t, d)
	if err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 packets, got %d", len(got))
	}
}

func TestDemuxerClose(t *testing.T) {
	data := buildOpusFile(t, monoHead(), []byte("a"))
	d := NewDemuxer(bytes.NewReader(data), DemuxerConfig{Yield: func() {}})

	if !d.Close() {
		t.Error("first close should release")
	}
	if d.Close() {
		t.Error("second close should be a no-op")
	}
	if _, err := d.Next(); err != io.EOF {
		t.Errorf("expected io.EOF after close, got %v", err)
	}
}
