// ABOUTME: Null audio bus
// ABOUTME: Consumes blocks on a wall-clock schedule without producing sound
package output

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

func init() {
	Register("null", func() (Bus, error) { return NewNull(), nil })
}

// Null is a bus that discards audio at the real-time rate of its format,
// so playback timing and backpressure behave as on hardware.
type Null struct {
	mu     sync.Mutex
	config BusConfig
	queue  *blockQueue
	log    zerolog.Logger

	done chan struct{}
	wg   sync.WaitGroup
}

// NewNull creates an unconfigured null bus
func NewNull() *Null {
	return &Null{}
}

// Configure sets the format and starts the consuming clock
func (n *Null) Configure(config BusConfig) error {
	if err := config.Format.Validate(); err != nil {
		return fmt.Errorf("null bus: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.queue != nil {
		n.stopClock()
	}

	n.config = config.withDefaults()
	n.queue = newBlockQueue(n.config.Blocks)
	n.log = config.Logger.With().Str("component", "bus").Str("backend", "null").Logger()
	n.done = make(chan struct{})

	n.wg.Add(1)
	go n.clock(n.queue, n.done, n.config.Format.BlockSize(), time.Duration(n.config.Format.FrameMs)*time.Millisecond)

	n.log.Info().Str("format", n.config.Format.String()).Msg("Null bus configured")
	return nil
}

func (n *Null) clock(q *blockQueue, done chan struct{}, blockSize int, period time.Duration) {
	defer n.wg.Done()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	buf := make([]byte, blockSize)
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			q.read(buf)
		}
	}
}

// Write queues a block
func (n *Null) Write(ctx context.Context, b *Block, timeout time.Duration) error {
	q := n.current()
	if q == nil {
		b.Release()
		return ErrNotConfigured
	}
	return q.push(ctx, b, timeout)
}

// Trigger applies a transport command
func (n *Null) Trigger(t Trigger) error {
	n.mu.Lock()
	q, timeout := n.queue, n.config.DrainTimeout
	n.mu.Unlock()

	if q == nil {
		return ErrNotConfigured
	}
	n.log.Debug().Str("trigger", t.String()).Msg("Bus trigger")
	return q.trigger(t, timeout)
}

// Consumed returns how many blocks the clock has played out
func (n *Null) Consumed() int64 {
	q := n.current()
	if q == nil {
		return 0
	}
	return q.consumed.Load()
}

// Close stops the clock and releases queued blocks
func (n *Null) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.queue == nil {
		return nil
	}
	n.stopClock()
	n.queue = nil
	return nil
}

// stopClock ends the clock goroutine (must hold n.mu)
func (n *Null) stopClock() {
	close(n.done)
	n.wg.Wait()
	n.queue.running.Store(false)
	n.queue.drop()
}

func (n *Null) current() *blockQueue {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.queue
}
