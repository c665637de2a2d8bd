//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package output

import (
	"errors"

	"github.com/musique/mpiano-go/pkg/audio"
)

var errPortAudioDisabled = errors.New("PortAudio support not enabled (build with -tags portaudio)")

// PortAudio output implementation (stub)
type PortAudio struct{}

// NewPortAudio creates a new PortAudio output
func NewPortAudio() Output {
	return &PortAudio{}
}

// Open initializes PortAudio
func (p *PortAudio) Open(format audio.Format, bufferSize int) error {
	return errPortAudioDisabled
}

// Start always fails
func (p *PortAudio) Start() error {
	return errPortAudioDisabled
}

// Write outputs audio samples
func (p *PortAudio) Write(samples []int16) (int, error) {
	return 0, errPortAudioDisabled
}

// Stop is a no-op
func (p *PortAudio) Stop() error {
	return nil
}

// Release releases resources
func (p *PortAudio) Release() error {
	return nil
}
