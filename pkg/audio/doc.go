// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format and PCM packing helpers shared by the playback pipeline
// Package audio provides the PCM format shared by every stage of the
// playback pipeline.
//
// Format fixes the output bus layout (sample rate, interleaved channels,
// bit depth, frame duration) and derives block sizes from it:
//
//	format := audio.DefaultFormat()      // 48000Hz, 2ch, 16bit, 20ms
//	size := format.BlockSize()            // 3840 bytes
//	n := audio.PutInt16LE(block, samples) // pack PCM into a block
package audio
