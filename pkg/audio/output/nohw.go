//go:build !cgo || nohw

// ABOUTME: Hardware backend stubs for builds without cgo or with -tags nohw
// ABOUTME: Keeps the backend names known so selection fails with a clear error
package output

func init() {
	Register("oto", disabledBackend)
	Register("malgo", disabledBackend)
}
