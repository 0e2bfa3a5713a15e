// ABOUTME: Playback error sentinels and failure categories
// ABOUTME: Classifies any engine error into config, resource, stream, or I/O
package playback

import (
	"errors"

	"github.com/Resonate-Protocol/resonate-speaker/pkg/audio/decode"
	"github.com/Resonate-Protocol/resonate-speaker/pkg/audio/ogg"
	"github.com/Resonate-Protocol/resonate-speaker/pkg/audio/output"
)

var (
	ErrNotReady     = errors.New("audio path not ready")
	ErrBusy         = errors.New("playback busy")
	ErrEmptyPath    = errors.New("empty file path")
	ErrPathTooLong  = errors.New("file path too long")
	ErrInvalidParam = errors.New("invalid parameter")
	ErrFileOpen     = errors.New("cannot open audio file")
	ErrFileRead     = errors.New("cannot read audio file")
	ErrHardware     = errors.New("audio hardware failure")
	ErrCodecControl = errors.New("codec control failure")
	ErrBusWrite     = errors.New("audio bus write failed")
	ErrClosed       = errors.New("player closed")
)

// Category groups errors by how the caller should react
type Category int

const (
	CategoryNone Category = iota
	CategoryConfig
	CategoryResource
	CategoryStream
	CategoryIO
)

// String returns the category name
func (c Category) String() string {
	switch c {
	case CategoryNone:
		return "none"
	case CategoryConfig:
		return "config"
	case CategoryResource:
		return "resource"
	case CategoryStream:
		return "stream"
	case CategoryIO:
		return "io"
	default:
		return "unknown"
	}
}

var categories = []struct {
	category Category
	errs     []error
}{
	{CategoryConfig, []error{ErrBusy, ErrEmptyPath, ErrPathTooLong, ErrInvalidParam}},
	{CategoryResource, []error{
		ErrNotReady, ErrHardware, ErrCodecControl, ErrClosed,
		output.ErrPoolTimeout, output.ErrBlockSize, output.ErrUnknownBackend,
		output.ErrAudioDisabled, output.ErrNotConfigured, decode.ErrAlreadyConfigured,
	}},
	{CategoryStream, []error{
		ogg.ErrNoHeader, ogg.ErrBadHeader, ogg.ErrUnsupportedMapping, ogg.ErrSerialMismatch,
		decode.ErrDecode,
	}},
	{CategoryIO, []error{ErrFileOpen, ErrFileRead, ErrBusWrite, output.ErrWriteTimeout}},
}

// CategoryOf classifies err. Unrecognized errors count as I/O failures.
func CategoryOf(err error) Category {
	if err == nil {
		return CategoryNone
	}
	for _, c := range categories {
		for _, target := range c.errs {
			if errors.Is(err, target) {
				return c.category
			}
		}
	}
	return CategoryIO
}
