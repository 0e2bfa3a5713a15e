// ABOUTME: In-place channel duplication for mono-to-interleaved upmix
// ABOUTME: Expands decoded samples to the channel layout the output bus expects
package upmix

import "fmt"

// Factor returns the duplication factor that maps decoder channels onto
// bus channels. The bus channel count must be a whole multiple.
func Factor(decoderChannels, busChannels int) (int, error) {
	if decoderChannels <= 0 || busChannels <= 0 {
		return 0, fmt.Errorf("invalid channel counts: decoder=%d bus=%d", decoderChannels, busChannels)
	}
	if busChannels%decoderChannels != 0 {
		return 0, fmt.Errorf("bus channels %d are not a multiple of decoder channels %d",
			busChannels, decoderChannels)
	}
	return busChannels / decoderChannels, nil
}

// Duplicate replicates each of the first n samples of buf factor times, in
// place, so [1 2 3] becomes [1 1 2 2 3 3] for factor 2. It walks backward
// from the end so the overlapping source range is never overwritten before
// it is read. buf must hold at least n*factor samples; Duplicate panics
// otherwise. It returns n*factor.
func Duplicate(buf []int16, n, factor int) int {
	if n <= 0 || factor <= 0 {
		return 0
	}
	out := n * factor
	if len(buf) < out {
		panic(fmt.Sprintf("upmix: buffer holds %d samples, need %d", len(buf), out))
	}
	if factor == 1 {
		return n
	}

	for i := n - 1; i >= 0; i-- {
		s := buf[i]
		base := i * factor
		for k := factor - 1; k >= 0; k-- {
			buf[base+k] = s
		}
	}

	return out
}
