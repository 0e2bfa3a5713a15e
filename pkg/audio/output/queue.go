// ABOUTME: Block queue shared by bus backends
// ABOUTME: Buffers accepted blocks until the device clock pulls their bytes
package output

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// blockQueue holds blocks a bus has accepted. The writer side pushes whole
// blocks; the device side reads bytes at its own pace and releases each
// block back to its pool once fully read.
type blockQueue struct {
	blocks  chan *Block
	running atomic.Bool

	mu  sync.Mutex
	cur *Block
	off int

	consumed  atomic.Int64
	underruns atomic.Int64
}

func newBlockQueue(capacity int) *blockQueue {
	return &blockQueue{blocks: make(chan *Block, capacity)}
}

// push queues b, waiting up to timeout for room
func (q *blockQueue) push(ctx context.Context, b *Block, timeout time.Duration) error {
	select {
	case q.blocks <- b:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case q.blocks <- b:
		return nil
	case <-timer.C:
		b.Release()
		return ErrWriteTimeout
	case <-ctx.Done():
		b.Release()
		return ctx.Err()
	}
}

// read fills p from queued blocks. While stopped, or when the queue runs
// dry, the rest of p is silence. It returns the number of audio bytes.
func (q *blockQueue) read(p []byte) int {
	if !q.running.Load() {
		clear(p)
		return 0
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for n < len(p) {
		if q.cur == nil {
			select {
			case b := <-q.blocks:
				q.cur = b
				q.off = 0
			default:
				q.underruns.Add(1)
				clear(p[n:])
				return n
			}
		}

		c := copy(p[n:], q.cur.Data[q.off:])
		n += c
		q.off += c
		if q.off == len(q.cur.Data) {
			q.cur.Release()
			q.cur = nil
			q.consumed.Add(1)
		}
	}
	return n
}

// pending returns blocks not yet fully consumed
func (q *blockQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.blocks)
	if q.cur != nil {
		n++
	}
	return n
}

// drop releases everything queued without playing it
func (q *blockQueue) drop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cur != nil {
		q.cur.Release()
		q.cur = nil
	}
	for {
		select {
		case b := <-q.blocks:
			b.Release()
		default:
			return
		}
	}
}

// drain waits for the device to consume everything queued
func (q *blockQueue) drain(timeout time.Duration) error {
	q.running.Store(true)

	deadline := time.Now().Add(timeout)
	for q.pending() > 0 {
		if time.Now().After(deadline) {
			return fmt.Errorf("drain: %d blocks left: %w", q.pending(), ErrWriteTimeout)
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

// trigger applies the queue side of a transport command
func (q *blockQueue) trigger(t Trigger, drainTimeout time.Duration) error {
	switch t {
	case TriggerStart:
		q.running.Store(true)
	case TriggerStop:
		q.running.Store(false)
	case TriggerDrain:
		err := q.drain(drainTimeout)
		q.running.Store(false)
		if err != nil {
			q.drop()
			return err
		}
	case TriggerDrop:
		q.running.Store(false)
		q.drop()
	default:
		return fmt.Errorf("unsupported trigger: %s", t)
	}
	return nil
}
