// ABOUTME: Linear interpolation resampler for int16 PCM
// ABOUTME: Carries the last input frame across calls so chunked input resamples seamlessly
package resample

import "math"

// Resampler converts interleaved PCM from one rate to another
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	step       float64 // input frames advanced per output frame

	// pos is the next output position in input frames, relative to the
	// first frame of the next call; -1 addresses prev
	pos  float64
	prev []int16
}

// New creates a resampler for interleaved audio with the given channel count
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		step:       float64(inputRate) / float64(outputRate),
		prev:       make([]int16, channels),
	}
}

// Resample converts input and writes as many whole frames to output as
// the input covers. It returns the number of samples written.
func (r *Resampler) Resample(input []int16, output []int16) int {
	frames := len(input) / r.channels
	if frames == 0 {
		return 0
	}

	at := func(frame, ch int) float64 {
		if frame < 0 {
			return float64(r.prev[ch])
		}
		return float64(input[frame*r.channels+ch])
	}

	n := 0
	for n+r.channels <= len(output) {
		i := int(math.Floor(r.pos))
		if i+1 >= frames {
			break
		}
		frac := r.pos - float64(i)
		for ch := 0; ch < r.channels; ch++ {
			a, b := at(i, ch), at(i+1, ch)
			output[n+ch] = int16(math.Round(a + (b-a)*frac))
		}
		n += r.channels
		r.pos += r.step
	}

	copy(r.prev, input[(frames-1)*r.channels:frames*r.channels])
	r.pos -= float64(frames)
	return n
}

// All resamples a complete buffer. At equal rates it returns input as is.
func (r *Resampler) All(input []int16) []int16 {
	if r.inputRate == r.outputRate {
		return input
	}
	out := make([]int16, r.OutputSamplesNeeded(len(input))+r.channels)
	n := r.Resample(input, out)
	return out[:n]
}

// Reset forgets carried state
func (r *Resampler) Reset() {
	r.pos = 0
	clear(r.prev)
}

// OutputSamplesNeeded estimates the output size for a number of input samples
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	frames := inputSamples / r.channels
	return int(float64(frames)/r.step) * r.channels
}
