// ABOUTME: Tests for command event flags and ping fan-out
// ABOUTME: Checks coalescing, mutual clearing, and waiter replies
package playback

import (
	"context"
	"testing"
	"time"
)

func TestEventsCoalesce(t *testing.T) {
	e := newEvents()
	e.post(EventStart, 0)
	e.post(EventStart, 0)

	if got := e.take(EventStart); got != EventStart {
		t.Fatalf("expected start, got %b", got)
	}
	if got := e.take(EventStart); got != 0 {
		t.Errorf("repeated posts must coalesce, got %b", got)
	}
}

func TestEventsPauseClearsResume(t *testing.T) {
	e := newEvents()
	e.post(EventResume, EventPause)
	e.post(EventPause, EventResume)

	if got := e.has(EventPause | EventResume); got != EventPause {
		t.Errorf("expected only pause pending, got %b", got)
	}
}

func TestEventsWait(t *testing.T) {
	e := newEvents()

	go func() {
		time.Sleep(5 * time.Millisecond)
		e.post(EventPing|EventStop, 0)
	}()

	got, err := e.wait(context.Background(), EventPing)
	if err != nil {
		t.Fatal(err)
	}
	if got != EventPing {
		t.Errorf("expected ping, got %b", got)
	}
	if e.has(EventStop) == 0 {
		t.Error("unwaited events must stay pending")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.wait(ctx, EventStart); err == nil {
		t.Error("expected context error")
	}
}

func TestPingerFansOut(t *testing.T) {
	p := newPinger()
	a := p.register()
	b := p.register()

	p.reply(PingAlive)
	if <-a != PingAlive || <-b != PingAlive {
		t.Error("every waiter must get the reply")
	}

	c := p.register()
	p.unregister(c)
	p.reply(PingAlive)
	select {
	case r := <-c:
		t.Errorf("unregistered waiter got %s", r)
	default:
	}

	p.close()
	if r := <-p.register(); r != PingStopped {
		t.Errorf("closed pinger: expected stopped, got %s", r)
	}
}
