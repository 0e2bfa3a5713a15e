// ABOUTME: Unit tests for Opus encoder
// ABOUTME: Tests encoder construction and frame size checks
package encode

import (
	"strings"
	"testing"
	"time"
)

func TestNewOpus(t *testing.T) {
	tests := []struct {
		name        string
		config      OpusConfig
		wantErr     bool
		errContains string
	}{
		{
			name:   "48kHz mono",
			config: OpusConfig{SampleRate: 48000, Channels: 1},
		},
		{
			name:   "48kHz stereo 10ms",
			config: OpusConfig{SampleRate: 48000, Channels: 2, FrameMs: 10},
		},
		{
			name:        "unsupported frame duration",
			config:      OpusConfig{SampleRate: 48000, Channels: 1, FrameMs: 15},
			wantErr:     true,
			errContains: "frame duration",
		},
		{
			name:        "unsupported sample rate",
			config:      OpusConfig{SampleRate: 44100, Channels: 1},
			wantErr:     true,
			errContains: "opus encoder",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoder, err := NewOpus(tt.config)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NewOpus() expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("NewOpus() error = %v, want error containing %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewOpus() unexpected error: %v", err)
			}
			defer encoder.Close()
		})
	}
}

func TestOpusEncode(t *testing.T) {
	encoder, err := NewOpus(OpusConfig{SampleRate: 48000, Channels: 1})
	if err != nil {
		t.Fatalf("NewOpus() failed: %v", err)
	}
	defer encoder.Close()

	if encoder.FrameSamples() != 960 {
		t.Fatalf("FrameSamples() = %d, want 960", encoder.FrameSamples())
	}

	packet, err := encoder.Encode(Tone(440, 20*time.Millisecond, 48000, 1, 0.5))
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	if len(packet) == 0 {
		t.Error("Encode() returned empty packet")
	}

	if _, err := encoder.Encode(make([]int16, 100)); err == nil {
		t.Error("Encode() accepted a short frame")
	}
}
