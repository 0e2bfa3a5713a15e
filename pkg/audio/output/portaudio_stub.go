//go:build !portaudio || !cgo || nohw

// ABOUTME: PortAudio stub for builds without the portaudio tag
// ABOUTME: Registers the backend name so selecting it reports a clear error
package output

func init() {
	Register("portaudio", disabledBackend)
}
