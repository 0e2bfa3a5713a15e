// ABOUTME: Tests for audio types
// ABOUTME: Tests block sizing and PCM packing helpers
package audio

import "testing"

func TestDefaultFormatSizing(t *testing.T) {
	f := DefaultFormat()

	if err := f.Validate(); err != nil {
		t.Fatalf("default format should be valid: %v", err)
	}
	if f.FrameSamples() != 960 {
		t.Errorf("expected 960 frame samples, got %d", f.FrameSamples())
	}
	if f.BlockSamples() != 1920 {
		t.Errorf("expected 1920 block samples, got %d", f.BlockSamples())
	}
	if f.BlockSize() != 3840 {
		t.Errorf("expected 3840 byte blocks, got %d", f.BlockSize())
	}
}

func TestFormatValidate(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		ok     bool
	}{
		{"default", DefaultFormat(), true},
		{"mono 16k", Format{SampleRate: 16000, Channels: 1, BitDepth: 16, FrameMs: 10}, true},
		{"fractional khz", Format{SampleRate: 44100, Channels: 2, BitDepth: 16, FrameMs: 20}, false},
		{"no channels", Format{SampleRate: 48000, Channels: 0, BitDepth: 16, FrameMs: 20}, false},
		{"24 bit", Format{SampleRate: 48000, Channels: 2, BitDepth: 24, FrameMs: 20}, false},
		{"zero frame", Format{SampleRate: 48000, Channels: 2, BitDepth: 16}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.format.Validate()
			if tt.ok && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestPutInt16LE(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768}
	buf := make([]byte, len(samples)*2)

	n := PutInt16LE(buf, samples)
	if n != len(buf) {
		t.Fatalf("expected %d bytes, got %d", len(buf), n)
	}

	if buf[2] != 0x01 || buf[3] != 0x00 {
		t.Errorf("expected little-endian 1, got % x", buf[2:4])
	}
	if buf[4] != 0xff || buf[5] != 0xff {
		t.Errorf("expected 0xffff for -1, got % x", buf[4:6])
	}

	back := Int16LE(buf)
	for i := range samples {
		if back[i] != samples[i] {
			t.Errorf("sample %d: expected %d, got %d", i, samples[i], back[i])
		}
	}
}

func TestPutInt16LE_ShortDestination(t *testing.T) {
	buf := make([]byte, 3)
	n := PutInt16LE(buf, []int16{1, 2, 3})
	if n != 2 {
		t.Errorf("expected 2 bytes written, got %d", n)
	}
}
