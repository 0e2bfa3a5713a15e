// ABOUTME: Playback controller package
// ABOUTME: Single-owner state machine driving demux, decode, upmix, and output
// Package playback plays Ogg/Opus files from a filesystem to an audio bus.
//
// A Player owns one goroutine that runs the whole hardware path. Other
// goroutines post intents (Start, Stop, Pause, Resume, Ping) that coalesce
// instead of queueing, and read status through atomic snapshots.
//
// Example:
//
//	player, err := playback.New(playback.Config{
//		FS:  os.DirFS("/"),
//		Bus: output.NewNull(),
//	})
//	err = player.Enable()
//	err = player.Start("/lfs/audio/1.opus")
//	...
//	player.Close()
package playback
