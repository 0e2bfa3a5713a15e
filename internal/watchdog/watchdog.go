// ABOUTME: Liveness supervisor for the playback goroutine
// ABOUTME: Pings periodically and reports a hang after too many lost replies
package watchdog

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Resonate-Protocol/resonate-speaker/pkg/playback"
)

// Defaults for Config fields left zero
const (
	DefaultInterval  = 5 * time.Second
	DefaultMaxLosses = 3
)

// Target is the probed engine
type Target interface {
	Ping() playback.PingResult
	IsPaused() bool
}

// Config holds watchdog configuration
type Config struct {
	Interval  time.Duration
	MaxLosses int

	// OnHung is called once each time the loss counter exceeds MaxLosses
	OnHung func(losses int)

	Logger zerolog.Logger
}

// Watchdog counts consecutive unanswered pings
type Watchdog struct {
	target Target
	config Config
	log    zerolog.Logger

	mu     sync.Mutex
	losses int
	hung   bool
	probes int64
}

// New creates a watchdog for target
func New(target Target, config Config) *Watchdog {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.MaxLosses <= 0 {
		config.MaxLosses = DefaultMaxLosses
	}
	return &Watchdog{
		target: target,
		config: config,
		log:    config.Logger.With().Str("component", "watchdog").Logger(),
	}
}

// Run probes every interval until ctx is done
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.log.Info().Dur("interval", w.config.Interval).Int("max_losses", w.config.MaxLosses).Msg("Watchdog started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Watchdog stopped")
			return
		case <-ticker.C:
			w.Check()
		}
	}
}

// Check runs one probe and reports whether the target is considered healthy.
// Probes are skipped while playback is paused.
func (w *Watchdog) Check() bool {
	if w.target.IsPaused() {
		w.log.Debug().Msg("Ping skipped while playback is paused")
		return true
	}

	result := w.target.Ping()

	w.mu.Lock()
	w.probes++
	if result != playback.PingTimeout {
		if w.losses > 0 {
			w.log.Info().Int("losses", w.losses).Msg("Playback goroutine answering again")
		}
		w.losses = 0
		w.hung = false
		w.mu.Unlock()
		return true
	}

	w.losses++
	losses := w.losses
	fire := losses > w.config.MaxLosses && !w.hung
	if fire {
		w.hung = true
	}
	w.mu.Unlock()

	w.log.Warn().Int("losses", losses).Msg("Ping lost")
	if fire {
		w.log.Error().Int("losses", losses).Msg("Playback goroutine is not responding")
		if w.config.OnHung != nil {
			w.config.OnHung(losses)
		}
	}
	return losses <= w.config.MaxLosses
}

// Losses returns the current consecutive loss count
func (w *Watchdog) Losses() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.losses
}

// Probes returns how many pings were sent
func (w *Watchdog) Probes() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.probes
}
