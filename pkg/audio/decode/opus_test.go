// ABOUTME: Tests for the Opus backend
// ABOUTME: Encodes real packets with libopus and decodes them through a session
package decode

import (
	"math"
	"testing"

	"gopkg.in/hraban/opus.v2"
)

func encodeTone(t *testing.T, channels int) []byte {
	t.Helper()

	enc, err := opus.NewEncoder(48000, channels, opus.AppAudio)
	if err != nil {
		t.Fatalf("failed to create encoder: %v", err)
	}

	pcm := make([]int16, 960*channels)
	for i := 0; i < 960; i++ {
		v := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/48000))
		for c := 0; c < channels; c++ {
			pcm[i*channels+c] = v
		}
	}

	data := make([]byte, 4000)
	n, err := enc.Encode(pcm, data)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	return data[:n]
}

func TestNewOpus(t *testing.T) {
	decoder, err := NewOpus(monoConfig())
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	if decoder == nil {
		t.Fatal("expected decoder to be created")
	}
}

func TestNewOpus_InvalidSampleRate(t *testing.T) {
	config := monoConfig()
	config.SampleRate = 44100 // libopus only accepts 8/12/16/24/48 kHz

	decoder, err := NewOpus(config)
	if err == nil {
		t.Fatal("expected error for unsupported sample rate")
	}
	if decoder != nil {
		t.Fatal("if error is returned, decoder must be nil")
	}
}

func TestOpusSessionDecodesFrame(t *testing.T) {
	packet := encodeTone(t, 1)

	adapter := NewAdapter(AdapterConfig{})
	session, err := adapter.Init(monoConfig())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	defer session.Close()

	n, err := session.Decode(packet)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != 960 {
		t.Errorf("expected 960 samples for a 20ms mono frame, got %d", n)
	}
}

func TestOpusDownmixesStereoStream(t *testing.T) {
	packet := encodeTone(t, 2)

	dec, err := NewOpus(monoConfig())
	if err != nil {
		t.Fatal(err)
	}

	pcm := make([]int16, 5760)
	n, err := dec.Decode(packet, pcm)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != 960 {
		t.Errorf("expected 960 samples per channel, got %d", n)
	}
}

func TestOpusRejectsGarbage(t *testing.T) {
	dec, err := NewOpus(monoConfig())
	if err != nil {
		t.Fatal(err)
	}

	pcm := make([]int16, 5760)
	// TOC byte announcing code 3 with a zero frame count is invalid
	if _, err := dec.Decode([]byte{0x03, 0x00}, pcm); err == nil {
		t.Error("expected decode error for malformed packet")
	}
}
