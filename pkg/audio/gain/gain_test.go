// ABOUTME: Tests for gain controls
// ABOUTME: Covers range clamping, mute, output gating, and sample scaling
package gain

import (
	"math"
	"testing"
)

func newSoftware(t *testing.T) *Software {
	t.Helper()
	s, err := NewSoftware(DefaultConfig())
	if err != nil {
		t.Fatalf("NewSoftware: %v", err)
	}
	return s
}

func TestSoftwareClampsVolume(t *testing.T) {
	s := newSoftware(t)

	tests := []struct {
		requested int
		expected  int
	}{
		{50, 50},
		{-10, 0},
		{150, 100},
		{100, 100},
		{0, 0},
	}

	for _, tt := range tests {
		got, err := s.SetVolume(tt.requested)
		if err != nil {
			t.Fatalf("SetVolume(%d): %v", tt.requested, err)
		}
		if got != tt.expected {
			t.Errorf("SetVolume(%d): expected %d, got %d", tt.requested, tt.expected, got)
		}
		if s.Volume() != tt.expected {
			t.Errorf("Volume() after SetVolume(%d): expected %d, got %d", tt.requested, tt.expected, s.Volume())
		}
	}
}

func TestSoftwareApply(t *testing.T) {
	s := newSoftware(t)

	tests := []struct {
		name     string
		volume   int
		muted    bool
		input    []int16
		expected []int16
	}{
		{"full volume", 100, false, []int16{1000, -1000}, []int16{1000, -1000}},
		{"half volume", 50, false, []int16{1000, -1000}, []int16{500, -500}},
		{"muted", 100, true, []int16{1000, -1000}, []int16{0, 0}},
		{"zero volume", 0, false, []int16{math.MaxInt16, math.MinInt16}, []int16{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.SetVolume(tt.volume)
			s.SetMute(tt.muted)

			samples := append([]int16(nil), tt.input...)
			s.Apply(samples)
			for i := range samples {
				if samples[i] != tt.expected[i] {
					t.Errorf("sample %d: expected %d, got %d", i, tt.expected[i], samples[i])
				}
			}
		})
	}
}

func TestSoftwareOutputGate(t *testing.T) {
	s := newSoftware(t)
	s.SetVolume(100)

	s.StopOutput()
	samples := []int16{1234}
	s.Apply(samples)
	if samples[0] != 0 {
		t.Errorf("expected silence while output stopped, got %d", samples[0])
	}

	s.StartOutput()
	samples[0] = 1234
	s.Apply(samples)
	if samples[0] != 1234 {
		t.Errorf("expected passthrough after StartOutput, got %d", samples[0])
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"inverted range", Config{Min: 100, Max: 0}, true},
		{"initial outside", Config{Min: 0, Max: 100, Initial: 120}, true},
		{"offset range", Config{Min: 20, Max: 80, Initial: 50}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNullControl(t *testing.T) {
	var c Control = Null{}

	level, err := c.SetVolume(250)
	if err != nil || level != 250 {
		t.Errorf("expected passthrough 250, got %d (%v)", level, err)
	}
	if err := c.SetMute(true); err != nil {
		t.Errorf("SetMute: %v", err)
	}
	if c.Muted() {
		t.Error("null control never reports muted")
	}
}

func TestSoftwareImplementsControl(t *testing.T) {
	var _ Control = (*Software)(nil)
}
