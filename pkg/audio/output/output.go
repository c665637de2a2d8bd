// ABOUTME: Audio output interface definition
// ABOUTME: Common streaming interface for audio playback backends
package output

import (
	"errors"

	"github.com/musique/mpiano-go/pkg/audio"
)

var (
	// ErrNotOpen is returned when an output is used before Open
	ErrNotOpen = errors.New("output not opened")

	// ErrReleased is returned when an output is used after Release
	ErrReleased = errors.New("output released")
)

// Output represents a streaming audio output device
type Output interface {
	// Open configures the device. bufferSize is the stream capacity in bytes.
	Open(format audio.Format, bufferSize int) error

	// Start begins accepting writes. Calling it on a started output is a no-op.
	Start() error

	// Write queues samples and blocks until the device accepted them or the
	// output is stopped. A stopped output returns 0 immediately.
	// The returned count is in bytes.
	Write(samples []int16) (int, error)

	// Stop halts playback and discards queued audio
	Stop() error

	// Release frees the device. The output is unusable afterwards.
	Release() error
}

// New returns the output backend registered under name
func New(name string) (Output, error) {
	switch name {
	case "", "oto":
		return NewOto(), nil
	case "malgo":
		return NewMalgo(), nil
	case "portaudio":
		return NewPortAudio(), nil
	case "null":
		return NewNull(), nil
	}
	return nil, errors.New("unknown output backend: " + name)
}
