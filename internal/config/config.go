// ABOUTME: Daemon configuration file
// ABOUTME: YAML settings with defaults, validation, and conversion to engine config
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Resonate-Protocol/resonate-speaker/pkg/audio"
	"github.com/Resonate-Protocol/resonate-speaker/pkg/audio/gain"
	"github.com/Resonate-Protocol/resonate-speaker/pkg/audio/upmix"
	"github.com/Resonate-Protocol/resonate-speaker/pkg/playback"
)

const (
	DefaultPath       = "/etc/resonate-speaker/config.yml"
	DefaultLibraryDir = "/lfs/audio"
	DefaultBackend    = "oto"
	DefaultPort       = 8928
)

// Config is the daemon configuration
type Config struct {
	Audio    AudioConfig    `yaml:"audio"`
	Volume   VolumeConfig   `yaml:"volume"`
	Library  LibraryConfig  `yaml:"library"`
	Watchdog WatchdogConfig `yaml:"watchdog"`
	Control  ControlConfig  `yaml:"control"`
	Log      LogConfig      `yaml:"log"`
}

// AudioConfig describes the output path
type AudioConfig struct {
	SampleRate      int           `yaml:"sample_rate"`
	Channels        int           `yaml:"channels"`
	DecoderChannels int           `yaml:"decoder_channels"`
	BitDepth        int           `yaml:"bit_depth"`
	FrameMs         int           `yaml:"frame_ms"`
	BlockCount      int           `yaml:"block_count"`
	SilenceBlocks   int           `yaml:"silence_blocks"`
	BlockTimeout    time.Duration `yaml:"block_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ChunkSize       int           `yaml:"chunk_size"`
	Backend         string        `yaml:"backend"`
	MaxPathLen      int           `yaml:"max_path_len"`
}

// VolumeConfig holds the level range and start state
type VolumeConfig struct {
	Initial  int  `yaml:"initial"`
	Min      int  `yaml:"min"`
	Max      int  `yaml:"max"`
	Muted    bool `yaml:"muted"`
	AutoMute bool `yaml:"auto_mute"`
}

// LibraryConfig locates audio files for play-by-index
type LibraryConfig struct {
	Dir string `yaml:"dir"`
}

// WatchdogConfig controls the liveness supervisor
type WatchdogConfig struct {
	Interval  time.Duration `yaml:"interval"`
	MaxLosses int           `yaml:"max_losses"`
}

// ControlConfig controls the remote endpoint
type ControlConfig struct {
	Port int    `yaml:"port"`
	MDNS bool   `yaml:"mdns"`
	Name string `yaml:"name,omitempty"`
}

// LogConfig controls logging output
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	format := audio.DefaultFormat()
	return &Config{
		Audio: AudioConfig{
			SampleRate:      format.SampleRate,
			Channels:        format.Channels,
			DecoderChannels: audio.DefaultDecoderChannels,
			BitDepth:        format.BitDepth,
			FrameMs:         format.FrameMs,
			BlockCount:      playback.DefaultBlockCount,
			SilenceBlocks:   playback.DefaultSilenceBlocks,
			BlockTimeout:    2 * time.Second,
			WriteTimeout:    2 * time.Second,
			ChunkSize:       2048,
			Backend:         DefaultBackend,
			MaxPathLen:      playback.DefaultMaxPathLen,
		},
		Volume: VolumeConfig{
			Initial: gain.DefaultInitial,
			Min:     gain.DefaultMin,
			Max:     gain.DefaultMax,
		},
		Library: LibraryConfig{
			Dir: DefaultLibraryDir,
		},
		Watchdog: WatchdogConfig{
			Interval:  5 * time.Second,
			MaxLosses: 3,
		},
		Control: ControlConfig{
			Port: DefaultPort,
			MDNS: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the configuration at path. A missing file yields the defaults.
// Keys absent from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges and the channel relationship
func (c *Config) Validate() error {
	if err := c.Format().Validate(); err != nil {
		return err
	}
	if _, err := upmix.Factor(c.Audio.DecoderChannels, c.Audio.Channels); err != nil {
		return fmt.Errorf("audio.decoder_channels: %w", err)
	}
	if c.Audio.BlockCount < 2 {
		return fmt.Errorf("audio.block_count must be at least 2, got %d", c.Audio.BlockCount)
	}
	if c.Audio.SilenceBlocks < 0 || c.Audio.SilenceBlocks >= c.Audio.BlockCount {
		return fmt.Errorf("audio.silence_blocks must be in [0, %d), got %d", c.Audio.BlockCount, c.Audio.SilenceBlocks)
	}
	if c.Audio.BlockTimeout <= 0 || c.Audio.WriteTimeout <= 0 {
		return fmt.Errorf("audio timeouts must be positive")
	}
	if c.Audio.ChunkSize <= 0 {
		return fmt.Errorf("audio.chunk_size must be positive, got %d", c.Audio.ChunkSize)
	}
	if c.Audio.MaxPathLen <= 1 {
		return fmt.Errorf("audio.max_path_len too small: %d", c.Audio.MaxPathLen)
	}
	if err := c.VolumeRange().Validate(); err != nil {
		return fmt.Errorf("volume: %w", err)
	}
	if c.Watchdog.Interval < 0 || c.Watchdog.MaxLosses < 0 {
		return fmt.Errorf("watchdog settings must not be negative")
	}
	if c.Control.Port < 0 || c.Control.Port > 65535 {
		return fmt.Errorf("control.port out of range: %d", c.Control.Port)
	}
	return nil
}

// Format returns the output bus format
func (c *Config) Format() audio.Format {
	return audio.Format{
		SampleRate: c.Audio.SampleRate,
		Channels:   c.Audio.Channels,
		BitDepth:   c.Audio.BitDepth,
		FrameMs:    c.Audio.FrameMs,
	}
}

// VolumeRange returns the gain configuration
func (c *Config) VolumeRange() gain.Config {
	return gain.Config{
		Min:     c.Volume.Min,
		Max:     c.Volume.Max,
		Initial: c.Volume.Initial,
		Muted:   c.Volume.Muted,
	}
}

// PlayerConfig fills the engine settings carried by the file. Collaborators
// (filesystem, bus, gain, callbacks) are left for the caller.
func (c *Config) PlayerConfig() playback.Config {
	silence := c.Audio.SilenceBlocks
	if silence == 0 {
		silence = playback.NoSilenceBlocks
	}
	return playback.Config{
		Format:          c.Format(),
		DecoderChannels: c.Audio.DecoderChannels,
		BlockCount:      c.Audio.BlockCount,
		SilenceBlocks:   silence,
		BlockTimeout:    c.Audio.BlockTimeout,
		WriteTimeout:    c.Audio.WriteTimeout,
		ChunkSize:       c.Audio.ChunkSize,
		MaxPathLen:      c.Audio.MaxPathLen,
		Volume:          c.VolumeRange(),
		AutoMute:        c.Volume.AutoMute,
	}
}

// Save writes the configuration to path atomically using temp file + rename
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename config file: %w", err)
	}

	tmpPath = ""
	return nil
}
