// ABOUTME: Audio bus capability interface and backend registry
// ABOUTME: Backends register by name; builds without hardware register disabled stubs
package output

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Resonate-Protocol/resonate-speaker/pkg/audio"
)

var (
	// ErrWriteTimeout is returned when the bus does not accept a block in time
	ErrWriteTimeout = errors.New("bus write timed out")
	// ErrUnknownBackend is returned by New for an unregistered name
	ErrUnknownBackend = errors.New("unknown audio backend")
	// ErrAudioDisabled is returned for hardware backends left out of the build
	ErrAudioDisabled = errors.New("audio hardware was disabled during compilation")
	// ErrNotConfigured is returned when using a bus before Configure
	ErrNotConfigured = errors.New("bus not configured")
)

// Trigger is a transport command for the bus
type Trigger int

const (
	// TriggerStart begins consuming queued blocks
	TriggerStart Trigger = iota
	// TriggerStop halts consumption, keeping queued blocks
	TriggerStop
	// TriggerDrain plays out everything queued, then stops
	TriggerDrain
	// TriggerDrop discards everything queued and stops
	TriggerDrop
)

// String returns the trigger name
func (t Trigger) String() string {
	switch t {
	case TriggerStart:
		return "start"
	case TriggerStop:
		return "stop"
	case TriggerDrain:
		return "drain"
	case TriggerDrop:
		return "drop"
	default:
		return fmt.Sprintf("trigger(%d)", int(t))
	}
}

// BusConfig configures a bus
type BusConfig struct {
	Format audio.Format

	// Blocks is the number of blocks the bus may hold queued
	Blocks int

	// DrainTimeout bounds TriggerDrain (default: Blocks * FrameMs * 2)
	DrainTimeout time.Duration

	Logger zerolog.Logger
}

func (c BusConfig) withDefaults() BusConfig {
	if c.Blocks <= 0 {
		c.Blocks = 8
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = time.Duration(c.Blocks*c.Format.FrameMs*2) * time.Millisecond
	}
	return c
}

// Bus is the audio output transport. Write takes ownership of the block
// and releases it to its pool once consumed, or immediately on error.
type Bus interface {
	Configure(config BusConfig) error
	Write(ctx context.Context, b *Block, timeout time.Duration) error
	Trigger(t Trigger) error
	Close() error
}

// Factory creates an unconfigured bus
type Factory func() (Bus, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a backend available under name
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// New creates the backend registered under name
func New(name string) (Bus, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownBackend, name, Backends())
	}
	return factory()
}

// Backends lists registered backend names
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func disabledBackend() (Bus, error) {
	return nil, ErrAudioDisabled
}
