// ABOUTME: Audio output package feeding fixed-size PCM blocks to a bus
// ABOUTME: Provides the block pool, Bus capability interface, scheduler, and backends
// Package output moves PCM from the playback loop to an audio bus.
//
// Blocks come from a fixed BlockPool, are filled by the Scheduler, handed
// to a Bus, and return to the pool once the bus has consumed them. Every
// block written is exactly the configured block size.
//
// Backends: "null" (clocked sink, always available), "oto" and "malgo"
// (built with cgo, excluded with -tags nohw).
//
// Example:
//
//	bus, err := output.New("oto")
//	err = bus.Configure(output.BusConfig{Format: format, Blocks: 8})
//	pool := output.NewBlockPool(8, format.BlockSize())
//	sched, err := output.NewScheduler(output.SchedulerConfig{Format: format, Pool: pool, Bus: bus})
//	err = sched.Prime(ctx, 2)
//	err = bus.Trigger(output.TriggerStart)
//	err = sched.Write(ctx, pcm)
package output
