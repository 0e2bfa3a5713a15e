// ABOUTME: Tests for the Ogg/Opus file writer
// ABOUTME: Writes with a stub encoder and reads back through the demuxer
package encode

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/Resonate-Protocol/resonate-speaker/pkg/audio/ogg"
)

// countingEncoder emits a one-byte packet holding the frame number
type countingEncoder struct {
	frame  int
	n      int
	closed bool
}

func (e *countingEncoder) Encode(pcm []int16) ([]byte, error) {
	e.n++
	return []byte{byte(e.n), byte(pcm[0])}, nil
}

func (e *countingEncoder) FrameSamples() int { return e.frame }

func (e *countingEncoder) Close() error {
	e.closed = true
	return nil
}

func readPackets(t *testing.T, data []byte) ([][]byte, ogg.OpusHead, ogg.DemuxStats) {
	t.Helper()

	d := ogg.NewDemuxer(bytes.NewReader(data), ogg.DemuxerConfig{Yield: func() {}})
	defer d.Close()

	var packets [][]byte
	for {
		p, err := d.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next() failed: %v", err)
		}
		packets = append(packets, append([]byte(nil), p...))
	}
	head, ok := d.Header()
	if !ok {
		t.Fatal("no header parsed")
	}
	return packets, head, d.Stats()
}

func TestFileRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := &countingEncoder{frame: 4}

	f, err := NewFile(&buf, FileConfig{SampleRate: 48000, Channels: 1, Serial: 7, Encoder: enc})
	if err != nil {
		t.Fatalf("NewFile() failed: %v", err)
	}

	// 10 samples: two full frames and a partial one padded on close
	if err := f.Write([]int16{1, 1, 1, 1, 2, 2}); err != nil {
		t.Fatal(err)
	}
	if err := f.Write([]int16{2, 2, 3, 3}); err != nil {
		t.Fatal(err)
	}
	if f.Packets() != 2 {
		t.Errorf("Packets() before close = %d, want 2", f.Packets())
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if !enc.closed {
		t.Error("encoder not closed")
	}
	if err := f.Write([]int16{1}); err == nil {
		t.Error("Write() after Close succeeded")
	}

	packets, head, stats := readPackets(t, buf.Bytes())
	if len(packets) != 3 {
		t.Fatalf("got %d packets, want 3", len(packets))
	}
	for i, p := range packets {
		if int(p[0]) != i+1 || int(p[1]) != i+1 {
			t.Errorf("packet %d = %v", i, p)
		}
	}
	if head.Channels != 1 || head.InputSampleRate != 48000 {
		t.Errorf("header = %+v", head)
	}
	if stats.TagsSkipped != 1 {
		t.Errorf("TagsSkipped = %d, want 1", stats.TagsSkipped)
	}
}

func TestFilePacketsPerPage(t *testing.T) {
	var buf bytes.Buffer
	f, err := NewFile(&buf, FileConfig{
		SampleRate:     48000,
		Channels:       2,
		PacketsPerPage: 3,
		Encoder:        &countingEncoder{frame: 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Write(make([]int16, 14)); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	packets, _, stats := readPackets(t, buf.Bytes())
	if len(packets) != 7 {
		t.Fatalf("got %d packets, want 7", len(packets))
	}
	// two header pages, three audio pages, one end of stream page
	if stats.Pages != 6 {
		t.Errorf("Pages = %d, want 6", stats.Pages)
	}
}

func TestFileWithOpus(t *testing.T) {
	var buf bytes.Buffer
	f, err := NewFile(&buf, FileConfig{SampleRate: 48000, Channels: 1})
	if err != nil {
		t.Fatalf("NewFile() failed: %v", err)
	}
	if err := f.Write(Tone(440, 100*time.Millisecond, 48000, 1, 0.3)); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	packets, _, _ := readPackets(t, buf.Bytes())
	if len(packets) != 5 {
		t.Errorf("got %d packets, want 5", len(packets))
	}
}

func TestTone(t *testing.T) {
	pcm := Tone(1000, 10*time.Millisecond, 48000, 2, 1)
	if len(pcm) != 960 {
		t.Fatalf("len = %d, want 960", len(pcm))
	}
	for i := 0; i < len(pcm); i += 2 {
		if pcm[i] != pcm[i+1] {
			t.Fatalf("channels differ at frame %d", i/2)
		}
	}
	if pcm[0] != 0 {
		t.Errorf("first sample = %d, want 0", pcm[0])
	}
}

func TestReadPCM(t *testing.T) {
	got, err := ReadPCM(bytes.NewReader([]byte{0x01, 0x00, 0xff, 0xff}))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != -1 {
		t.Errorf("ReadPCM() = %v", got)
	}

	if _, err := ReadPCM(bytes.NewReader([]byte{1, 2, 3})); err == nil {
		t.Error("ReadPCM() accepted odd length")
	}
}
