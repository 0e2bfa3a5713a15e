// ABOUTME: Sample rate conversion for PCM fed to the encoder
// ABOUTME: Brings arbitrary raw PCM to the engine rate before Opus encoding
// Package resample converts interleaved int16 PCM between sample rates.
//
// It interpolates linearly, which is adequate for test material and
// prompts, and keeps state between calls so input can arrive in chunks.
//
// Example:
//
//	r := resample.New(44100, 48000, 1)
//	n := r.Resample(input, output)
package resample
