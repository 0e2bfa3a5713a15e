// ABOUTME: Tests for the block pool, scheduler, and bus queue
// ABOUTME: Uses a recording bus to check block sizing, padding, and priming
package output

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"testing/quick"
	"time"

	"github.com/Resonate-Protocol/resonate-speaker/pkg/audio"
)

// recordingBus copies every written block and releases it immediately
type recordingBus struct {
	blocks   [][]byte
	triggers []Trigger
	writeErr error
}

func (r *recordingBus) Configure(BusConfig) error { return nil }

func (r *recordingBus) Write(ctx context.Context, b *Block, timeout time.Duration) error {
	defer b.Release()
	if r.writeErr != nil {
		return r.writeErr
	}
	r.blocks = append(r.blocks, append([]byte(nil), b.Data...))
	return nil
}

func (r *recordingBus) Trigger(t Trigger) error {
	r.triggers = append(r.triggers, t)
	return nil
}

func (r *recordingBus) Close() error { return nil }

type halve struct{}

func (halve) Apply(samples []int16) {
	for i := range samples {
		samples[i] /= 2
	}
}

func testFormat() audio.Format {
	return audio.Format{SampleRate: 8000, Channels: 2, BitDepth: 16, FrameMs: 1} // 16 samples, 32 bytes
}

func newTestScheduler(t *testing.T, bus Bus, p Processor) *Scheduler {
	t.Helper()
	format := testFormat()
	s, err := NewScheduler(SchedulerConfig{
		Format:       format,
		Pool:         NewBlockPool(4, format.BlockSize()),
		Bus:          bus,
		BlockTimeout: 50 * time.Millisecond,
		Processor:    p,
	})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	return s
}

func TestBlockPoolTimeout(t *testing.T) {
	pool := NewBlockPool(1, 8)
	ctx := context.Background()

	b, err := pool.Get(ctx, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	if len(b.Data) != 8 {
		t.Errorf("expected 8 byte block, got %d", len(b.Data))
	}

	if _, err := pool.Get(ctx, 10*time.Millisecond); !errors.Is(err, ErrPoolTimeout) {
		t.Fatalf("expected ErrPoolTimeout, got %v", err)
	}

	b.Release()
	b.Release() // second release must not duplicate the block
	if pool.Available() != 1 {
		t.Errorf("expected 1 available block, got %d", pool.Available())
	}
}

func TestBlockPoolReleaseUnblocksGet(t *testing.T) {
	pool := NewBlockPool(1, 8)
	b, _ := pool.Get(context.Background(), time.Second)

	go func() {
		time.Sleep(10 * time.Millisecond)
		b.Release()
	}()

	if _, err := pool.Get(context.Background(), time.Second); err != nil {
		t.Fatalf("expected released block, got %v", err)
	}
}

func TestBlockPoolContextCancel(t *testing.T) {
	pool := NewBlockPool(1, 8)
	pool.Get(context.Background(), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := pool.Get(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSchedulerPadsFinalBlock(t *testing.T) {
	bus := &recordingBus{}
	s := newTestScheduler(t, bus, nil)

	pcm := make([]int16, 20) // one full block and 4 samples
	for i := range pcm {
		pcm[i] = int16(i + 1)
	}

	if err := s.Write(context.Background(), pcm); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(bus.blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(bus.blocks))
	}

	second := audio.Int16LE(bus.blocks[1])
	for i, v := range second {
		want := int16(0)
		if i < 4 {
			want = int16(17 + i)
		}
		if v != want {
			t.Errorf("sample %d of padded block: expected %d, got %d", i, want, v)
		}
	}

	if stats := s.Stats(); stats.Blocks != 2 || stats.PaddedBlocks != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestSchedulerBlockSizeProperty(t *testing.T) {
	blockSize := testFormat().BlockSize()
	blockSamples := testFormat().BlockSamples()

	f := func(n uint8) bool {
		bus := &recordingBus{}
		s := newTestScheduler(t, bus, nil)
		if err := s.Write(context.Background(), make([]int16, int(n))); err != nil {
			return false
		}
		if len(bus.blocks) != (int(n)+blockSamples-1)/blockSamples {
			return false
		}
		for _, b := range bus.blocks {
			if len(b) != blockSize {
				return false
			}
		}
		return true
	}

	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestSchedulerPrime(t *testing.T) {
	bus := &recordingBus{}
	s := newTestScheduler(t, bus, nil)

	if err := s.Prime(context.Background(), 3); err != nil {
		t.Fatalf("prime: %v", err)
	}
	if len(bus.blocks) != 3 {
		t.Fatalf("expected 3 silence blocks, got %d", len(bus.blocks))
	}
	for i, b := range bus.blocks {
		if !bytes.Equal(b, make([]byte, len(b))) {
			t.Errorf("block %d is not silent", i)
		}
	}
	if s.Stats().SilenceBlocks != 3 {
		t.Errorf("expected 3 silence blocks counted, got %d", s.Stats().SilenceBlocks)
	}
}

func TestSchedulerAppliesProcessor(t *testing.T) {
	bus := &recordingBus{}
	s := newTestScheduler(t, bus, halve{})

	pcm := make([]int16, 16)
	for i := range pcm {
		pcm[i] = 100
	}
	if err := s.Write(context.Background(), pcm); err != nil {
		t.Fatal(err)
	}
	if got := audio.Int16LE(bus.blocks[0])[0]; got != 50 {
		t.Errorf("expected processed sample 50, got %d", got)
	}
}

func TestSchedulerWriteError(t *testing.T) {
	busErr := errors.New("bus fault")
	bus := &recordingBus{writeErr: busErr}
	s := newTestScheduler(t, bus, nil)

	if err := s.Write(context.Background(), make([]int16, 16)); !errors.Is(err, busErr) {
		t.Errorf("expected bus error, got %v", err)
	}
	if s.config.Pool.Available() != s.config.Pool.Count() {
		t.Error("failed write must return the block to the pool")
	}
}

func TestNewSchedulerBlockSizeMismatch(t *testing.T) {
	_, err := NewScheduler(SchedulerConfig{
		Format: testFormat(),
		Pool:   NewBlockPool(2, 7),
		Bus:    &recordingBus{},
	})
	if !errors.Is(err, ErrBlockSize) {
		t.Errorf("expected ErrBlockSize, got %v", err)
	}
}

func TestQueueReadAndRelease(t *testing.T) {
	pool := NewBlockPool(2, 4)
	q := newBlockQueue(2)
	ctx := context.Background()

	for i := byte(1); i <= 2; i++ {
		b, _ := pool.Get(ctx, time.Second)
		copy(b.Data, []byte{i, i, i, i})
		if err := q.push(ctx, b, time.Second); err != nil {
			t.Fatal(err)
		}
	}

	buf := make([]byte, 6)
	if n := q.read(buf); n != 0 || !bytes.Equal(buf, make([]byte, 6)) {
		t.Fatalf("stopped queue must produce silence, got %v", buf)
	}

	q.running.Store(true)
	if n := q.read(buf); n != 6 {
		t.Fatalf("expected 6 bytes, got %d", n)
	}
	if !bytes.Equal(buf, []byte{1, 1, 1, 1, 2, 2}) {
		t.Errorf("unexpected data %v", buf)
	}
	if pool.Available() != 1 {
		t.Errorf("expected first block released, %d available", pool.Available())
	}

	n := q.read(buf)
	if n != 2 || !bytes.Equal(buf, []byte{2, 2, 0, 0, 0, 0}) {
		t.Errorf("expected underrun padding, got %v (%d)", buf, n)
	}
	if q.underruns.Load() != 1 {
		t.Errorf("expected 1 underrun, got %d", q.underruns.Load())
	}
	if pool.Available() != 2 {
		t.Errorf("expected all blocks released, %d available", pool.Available())
	}
}

func TestQueuePushTimeoutReleases(t *testing.T) {
	pool := NewBlockPool(2, 4)
	q := newBlockQueue(1)
	ctx := context.Background()

	first, _ := pool.Get(ctx, time.Second)
	q.push(ctx, first, time.Second)

	second, _ := pool.Get(ctx, time.Second)
	if err := q.push(ctx, second, 5*time.Millisecond); !errors.Is(err, ErrWriteTimeout) {
		t.Fatalf("expected ErrWriteTimeout, got %v", err)
	}
	if pool.Available() != 1 {
		t.Errorf("timed out block must return to pool, %d available", pool.Available())
	}

	q.trigger(TriggerDrop, 0)
	if pool.Available() != 2 {
		t.Errorf("drop must release queued blocks, %d available", pool.Available())
	}
}

func TestNullBusDrains(t *testing.T) {
	format := audio.Format{SampleRate: 8000, Channels: 1, BitDepth: 16, FrameMs: 2}
	bus := NewNull()
	if err := bus.Configure(BusConfig{Format: format, Blocks: 4, DrainTimeout: time.Second}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	defer bus.Close()

	pool := NewBlockPool(4, format.BlockSize())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		b, err := pool.Get(ctx, time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if err := bus.Write(ctx, b, time.Second); err != nil {
			t.Fatal(err)
		}
	}

	if err := bus.Trigger(TriggerStart); err != nil {
		t.Fatal(err)
	}
	if err := bus.Trigger(TriggerDrain); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if bus.Consumed() != 3 {
		t.Errorf("expected 3 consumed blocks, got %d", bus.Consumed())
	}
	if pool.Available() != 4 {
		t.Errorf("expected all blocks back, %d available", pool.Available())
	}
}

func TestNullBusNotConfigured(t *testing.T) {
	bus := NewNull()
	if err := bus.Trigger(TriggerStart); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestNewBackend(t *testing.T) {
	bus, err := New("null")
	if err != nil || bus == nil {
		t.Fatalf("expected null backend, got %v", err)
	}

	if _, err := New("alsa"); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("expected ErrUnknownBackend, got %v", err)
	}

	names := Backends()
	for _, want := range []string{"malgo", "null", "oto", "portaudio"} {
		found := false
		for _, n := range names {
			found = found || n == want
		}
		if !found {
			t.Errorf("backend %q not registered", want)
		}
	}
}

func TestTriggerString(t *testing.T) {
	if TriggerDrain.String() != "drain" || Trigger(9).String() != "trigger(9)" {
		t.Error("unexpected trigger names")
	}
}
