// ABOUTME: Coalescing command flags and ping reply fan-out
// ABOUTME: Posting an already pending command is a no-op; only presence matters
package playback

import (
	"context"
	"sync"
)

// Event is a set of command flags
type Event uint8

const (
	EventStart Event = 1 << iota
	EventStop
	EventPause
	EventResume
	EventPing
)

// events holds pending command flags for the playback goroutine
type events struct {
	mu      sync.Mutex
	pending Event
	notify  chan struct{}
}

func newEvents() *events {
	return &events{notify: make(chan struct{}, 1)}
}

// post sets flags in set and clears those in clear atomically
func (e *events) post(set, clear Event) {
	e.mu.Lock()
	e.pending = e.pending&^clear | set
	e.mu.Unlock()

	select {
	case e.notify <- struct{}{}:
	default:
	}
}

// take returns and clears the pending flags in mask
func (e *events) take(mask Event) Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	got := e.pending & mask
	e.pending &^= got
	return got
}

// has reports pending flags in mask without consuming them
func (e *events) has(mask Event) Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending & mask
}

// wait blocks until a flag in mask is pending, then takes it
func (e *events) wait(ctx context.Context, mask Event) (Event, error) {
	for {
		if got := e.take(mask); got != 0 {
			return got, nil
		}
		select {
		case <-e.notify:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// pinger fans a single reply out to every waiting Ping call
type pinger struct {
	mu      sync.Mutex
	waiters map[chan PingResult]struct{}
	closed  bool
}

func newPinger() *pinger {
	return &pinger{waiters: make(map[chan PingResult]struct{})}
}

// register adds a waiter; a closed pinger answers Stopped right away
func (p *pinger) register() chan PingResult {
	ch := make(chan PingResult, 1)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		ch <- PingStopped
		return ch
	}
	p.waiters[ch] = struct{}{}
	return ch
}

func (p *pinger) unregister(ch chan PingResult) {
	p.mu.Lock()
	delete(p.waiters, ch)
	p.mu.Unlock()
}

// reply answers and removes all current waiters
func (p *pinger) reply(r PingResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for ch := range p.waiters {
		ch <- r
		delete(p.waiters, ch)
	}
}

// close answers Stopped to current and future waiters
func (p *pinger) close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.reply(PingStopped)
}
