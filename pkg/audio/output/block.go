// ABOUTME: Fixed-capacity pool of output blocks
// ABOUTME: Blocks pass pool -> scheduler -> bus -> pool with single ownership
package output

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

var (
	// ErrPoolTimeout is returned when no block frees up within the timeout
	ErrPoolTimeout = errors.New("block pool: allocation timed out")
	// ErrBlockSize is returned when pool and bus disagree on block size
	ErrBlockSize = errors.New("block size mismatch")
)

// Block is one output buffer. Data always has the pool's block size.
type Block struct {
	Data []byte

	pool *BlockPool
	held atomic.Bool
}

// Release returns the block to its pool. Releasing a block that is not
// held is a no-op.
func (b *Block) Release() {
	if !b.held.CompareAndSwap(true, false) {
		return
	}
	b.pool.free <- b
}

// BlockPool hands out a fixed number of equally sized blocks
type BlockPool struct {
	free      chan *Block
	count     int
	blockSize int
}

// NewBlockPool allocates count blocks of blockSize bytes
func NewBlockPool(count, blockSize int) *BlockPool {
	p := &BlockPool{
		free:      make(chan *Block, count),
		count:     count,
		blockSize: blockSize,
	}
	for i := 0; i < count; i++ {
		p.free <- &Block{Data: make([]byte, blockSize), pool: p}
	}
	return p
}

// Get takes a block, waiting up to timeout for one to be released
func (p *BlockPool) Get(ctx context.Context, timeout time.Duration) (*Block, error) {
	select {
	case b := <-p.free:
		b.held.Store(true)
		return b, nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case b := <-p.free:
		b.held.Store(true)
		return b, nil
	case <-timer.C:
		return nil, ErrPoolTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Available returns the number of free blocks
func (p *BlockPool) Available() int {
	return len(p.free)
}

// Count returns the total number of blocks
func (p *BlockPool) Count() int {
	return p.count
}

// BlockSize returns the size of each block in bytes
func (p *BlockPool) BlockSize() int {
	return p.blockSize
}
