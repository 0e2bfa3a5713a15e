// ABOUTME: Output scheduler splitting PCM runs into fixed-size blocks
// ABOUTME: Handles silence priming, zero padding, optional gain, and backpressure
package output

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Resonate-Protocol/resonate-speaker/pkg/audio"
)

// Default bounded waits for pool allocation and bus writes
const (
	DefaultBlockTimeout = 2 * time.Second
	DefaultWriteTimeout = 2 * time.Second
)

// Processor transforms samples in place before they are packed into blocks
type Processor interface {
	Apply(samples []int16)
}

// SchedulerConfig configures a Scheduler
type SchedulerConfig struct {
	Format audio.Format
	Pool   *BlockPool
	Bus    Bus

	// BlockTimeout bounds waiting for a free block (default: 2s)
	BlockTimeout time.Duration
	// WriteTimeout bounds waiting for the bus to accept a block (default: 2s)
	WriteTimeout time.Duration

	// Processor, when set, runs over every PCM run before packing
	Processor Processor

	Logger zerolog.Logger
}

// SchedulerStats counts scheduler output
type SchedulerStats struct {
	Blocks        int64 // audio blocks, including padded ones
	SilenceBlocks int64
	PaddedBlocks  int64
}

// Scheduler packs PCM into pool blocks and hands them to the bus. It is
// used by a single goroutine.
type Scheduler struct {
	config       SchedulerConfig
	log          zerolog.Logger
	blockSamples int
	stats        SchedulerStats
}

// NewScheduler creates a scheduler. The pool's block size must match the format.
func NewScheduler(config SchedulerConfig) (*Scheduler, error) {
	if err := config.Format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid output format: %w", err)
	}
	if config.Pool == nil || config.Bus == nil {
		return nil, fmt.Errorf("scheduler needs a pool and a bus")
	}
	if config.Pool.BlockSize() != config.Format.BlockSize() {
		return nil, fmt.Errorf("%w: pool %d bytes, format %d bytes", ErrBlockSize, config.Pool.BlockSize(), config.Format.BlockSize())
	}
	if config.BlockTimeout <= 0 {
		config.BlockTimeout = DefaultBlockTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}

	return &Scheduler{
		config:       config,
		log:          config.Logger.With().Str("component", "scheduler").Logger(),
		blockSamples: config.Format.BlockSamples(),
	}, nil
}

// BlockSamples returns the interleaved samples held by one block
func (s *Scheduler) BlockSamples() int {
	return s.blockSamples
}

// Prime submits n all-silence blocks
func (s *Scheduler) Prime(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		b, err := s.config.Pool.Get(ctx, s.config.BlockTimeout)
		if err != nil {
			return fmt.Errorf("silence block %d: %w", i, err)
		}
		clear(b.Data)
		if err := s.config.Bus.Write(ctx, b, s.config.WriteTimeout); err != nil {
			return fmt.Errorf("silence block %d: %w", i, err)
		}
		s.stats.SilenceBlocks++
	}
	s.log.Debug().Int("blocks", n).Msg("Silence primed")
	return nil
}

// Write splits pcm into blocks, zero-padding the last one, and submits them.
// pcm may be modified by the configured Processor.
func (s *Scheduler) Write(ctx context.Context, pcm []int16) error {
	if s.config.Processor != nil {
		s.config.Processor.Apply(pcm)
	}

	for off := 0; off < len(pcm); off += s.blockSamples {
		end := min(off+s.blockSamples, len(pcm))

		b, err := s.config.Pool.Get(ctx, s.config.BlockTimeout)
		if err != nil {
			return err
		}

		n := audio.PutInt16LE(b.Data, pcm[off:end])
		if n < len(b.Data) {
			clear(b.Data[n:])
			s.stats.PaddedBlocks++
		}

		if err := s.config.Bus.Write(ctx, b, s.config.WriteTimeout); err != nil {
			return err
		}
		s.stats.Blocks++
	}
	return nil
}

// Stats returns scheduler counters
func (s *Scheduler) Stats() SchedulerStats {
	return s.stats
}

// ResetStats zeroes the counters
func (s *Scheduler) ResetStats() {
	s.stats = SchedulerStats{}
}
