// ABOUTME: Audio encoder package for producing playable Ogg/Opus files
// ABOUTME: Provides the Opus packet encoder, PCM sources, and the Ogg file writer
// Package encode produces files the playback engine can play.
//
// It is used by tooling and tests, never by the playback path itself.
// PCM comes in as interleaved int16 samples, is cut into fixed frames,
// encoded with libopus, and framed into Ogg pages.
//
// Example:
//
//	w, err := encode.NewFile(f, encode.FileConfig{SampleRate: 48000, Channels: 1})
//	err = w.Write(encode.Tone(440, time.Second, 48000, 1, 0.5))
//	err = w.Close()
package encode
