// ABOUTME: Audio decoder package for the playback engine
// ABOUTME: Provides the session-guarded decoder adapter and the Opus backend
// Package decode turns compressed codec packets into interleaved int16 PCM.
//
// An Adapter hands out at most one Session at a time. The session's
// scratch buffer is sized for the largest frame the codec can produce,
// multiplied by the post-processing expansion factor, so the caller can
// up-mix in place without reallocating.
//
// Example:
//
//	adapter := decode.NewAdapter(decode.AdapterConfig{Factory: decode.NewOpus})
//	session, err := adapter.Init(decode.Config{SampleRate: 48000, Channels: 1, FrameMs: 20, Expansion: 2})
//	defer session.Close()
//	n, err := session.Decode(packet)
//	pcm := session.Buffer()[:n]
package decode
